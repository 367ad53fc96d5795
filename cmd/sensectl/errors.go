package main

import (
	"errors"
	"fmt"

	"github.com/srg/sensectl/internal/connection"
	"github.com/srg/sensectl/internal/dispatch"
	"github.com/srg/sensectl/internal/transport"
	"github.com/srg/sensectl/pkg/config"
	"github.com/srg/sensectl/pkg/sense"
)

// Command-level errors
var (
	// ErrBrokerRequired means serve was started without an MQTT broker.
	ErrBrokerRequired = errors.New("mqtt broker is required (set mqtt.broker, SENSECTL_MQTT_BROKER or --broker)")
)

// FormatUserError turns a command error into a one-line message for the terminal.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var cerr *connection.ConnectError
	var xerr *dispatch.ExhaustedError
	switch {
	case errors.Is(err, config.ErrInvalid):
		return err.Error()
	case errors.Is(err, sense.ErrInvalidConfig):
		return err.Error()
	case errors.Is(err, transport.ErrAdapterOff):
		return "Bluetooth adapter unavailable; make sure Bluetooth is on and this process may use it"
	case errors.Is(err, connection.ErrNotWritable) && errors.As(err, &cerr):
		return fmt.Sprintf("device %s does not expose a writable command characteristic", cerr.Address)
	case errors.As(err, &cerr):
		return fmt.Sprintf("device %s unreachable after %d attempts (%s); is it powered on and in range?",
			cerr.Address, cerr.Attempts, transport.KindOf(cerr.Err))
	case errors.As(err, &xerr):
		return fmt.Sprintf("command %s not delivered after %d attempts: %v", xerr.Command, xerr.Attempts, errors.Unwrap(xerr.Err))
	default:
		return err.Error()
	}
}
