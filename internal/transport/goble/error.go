package goble

import (
	"context"
	"errors"
	"strings"

	"github.com/srg/sensectl/internal/transport"
)

// classify maps go-ble errors onto the closed transport.Kind set. This is the only place
// library error text is inspected.
func classify(op, address string, err error) error {
	if err == nil {
		return nil
	}

	var terr *transport.Error
	if errors.As(err, &terr) {
		return err
	}

	kind := transport.KindIO
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = transport.KindTimeout
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		kind = transport.KindAdapterOff
	case containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "not supported on this platform"),
		containsIgnoreCase(msg, "can't init hci"),
		containsIgnoreCase(msg, "operation not permitted"):
		kind = transport.KindAdapterOff
	case containsIgnoreCase(msg, "device not connected"),
		containsIgnoreCase(msg, "disconnected"),
		containsIgnoreCase(msg, "connection is not initialized"):
		kind = transport.KindNotConnected
	case containsIgnoreCase(msg, "timeout"), containsIgnoreCase(msg, "timed out"):
		kind = transport.KindTimeout
	case containsIgnoreCase(msg, "not permitted"), containsIgnoreCase(msg, "not supported"):
		kind = transport.KindUnsupported
	}
	return transport.NewError(kind, op, address, err)
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
