package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// DeviceFactory creates the host ble.Device (can be overridden in tests).
//
//nolint:revive // DeviceFactory name mirrors the stack's own factory hooks
var DeviceFactory = func() (ble.Device, error) {
	return newHostDevice()
}

// Client is the subset of ble.Client the radio uses.
type Client interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	CancelConnection() error
}

// DialFunc opens a link to addr. It must honour ctx cancellation.
type DialFunc func(ctx context.Context, addr ble.Addr) (Client, error)

// deviceDialer adapts a ble.Device to a DialFunc.
func deviceDialer(dev ble.Device) DialFunc {
	return func(ctx context.Context, addr ble.Addr) (Client, error) {
		c, err := dev.Dial(ctx, addr)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
