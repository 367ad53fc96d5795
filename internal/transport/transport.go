// Package transport describes the radio and GATT capabilities the connection core
// consumes. Implementations live in sub-packages; the core never imports a vendor stack.
package transport

import (
	"context"
	"strings"
	"time"
)

// Handle is an opaque resolved peripheral. A Handle is owned by whoever resolved it and is
// only ever passed back to the Transport that produced it.
type Handle interface {
	// Address returns the transport address the handle was resolved from.
	Address() string
}

// Resolver maps a known peripheral address to a Handle. It never scans.
type Resolver interface {
	Resolve(ctx context.Context, address string) (Handle, error)
}

// Property is a GATT characteristic property bit set.
type Property uint8

const (
	PropRead Property = 1 << iota
	PropWrite
	PropWriteWithoutResponse
	PropNotify
	PropIndicate
)

// Writable reports whether the characteristic accepts writes with or without response.
func (p Property) Writable() bool {
	return p&(PropWrite|PropWriteWithoutResponse) != 0
}

func (p Property) String() string {
	var names []string
	for _, n := range []struct {
		bit  Property
		name string
	}{
		{PropRead, "read"},
		{PropWrite, "write"},
		{PropWriteWithoutResponse, "write-without-response"},
		{PropNotify, "notify"},
		{PropIndicate, "indicate"},
	} {
		if p&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Characteristic is one discovered GATT characteristic.
type Characteristic struct {
	Service    string
	UUID       string
	Properties Property
}

// Transport is the BLE stack.
type Transport interface {
	Connect(ctx context.Context, h Handle, timeout time.Duration) error
	Disconnect(h Handle) error
	IsConnected(h Handle) bool
	Characteristics(h Handle) ([]Characteristic, error)
	WriteCharacteristic(ctx context.Context, h Handle, uuid string, data []byte, ack bool) error
}

// Radio is the full collaborator set consumed by the connection manager.
type Radio interface {
	Resolver
	Transport
}

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID 0000xxxx-0000-1000-8000-00805f9b34fb.
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID lowercases and strips dashes and a 0x prefix so UUIDs compare
// independently of formatting. UUIDs in the SIG base range collapse to their 16-bit form,
// which is how go-ble prints them.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// FindCharacteristic returns the characteristic with the given UUID.
func FindCharacteristic(chars []Characteristic, uuid string) (Characteristic, bool) {
	want := NormalizeUUID(uuid)
	for _, c := range chars {
		if NormalizeUUID(c.UUID) == want {
			return c, true
		}
	}
	return Characteristic{}, false
}
