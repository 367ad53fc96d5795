package sense

import (
	"errors"
	"fmt"

	"github.com/srg/sensectl/internal/codec"
)

// DefaultCharacteristic is the hood's command characteristic.
const DefaultCharacteristic = "0000fff3-0000-1000-8000-00805f9b34fb"

// ErrInvalidConfig is wrapped by every DeviceConfig validation failure.
var ErrInvalidConfig = errors.New("invalid device config")

// DeviceConfig identifies one hood and its level scales.
type DeviceConfig struct {
	// Address is the peripheral identity: a MAC address, or a CoreBluetooth UUID on macOS.
	Address string
	// LightMaxRaw is the raw light level sent for 100%.
	LightMaxRaw uint8
	// FanMaxRaw is the raw fan level sent for 100%.
	FanMaxRaw uint8
	// Characteristic is the command characteristic UUID.
	Characteristic string
}

// NewDeviceConfig returns the configuration for address with the stock scales.
func NewDeviceConfig(address string) DeviceConfig {
	return DeviceConfig{
		Address:        address,
		LightMaxRaw:    codec.DefaultLightMaxRaw,
		FanMaxRaw:      codec.DefaultFanMaxRaw,
		Characteristic: DefaultCharacteristic,
	}
}

// Validate checks the identity is set and both scales are non-zero.
func (c DeviceConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if c.LightMaxRaw == 0 {
		return fmt.Errorf("%w: light max raw must be in 1..255", ErrInvalidConfig)
	}
	if c.FanMaxRaw == 0 {
		return fmt.Errorf("%w: fan max raw must be in 1..255", ErrInvalidConfig)
	}
	if c.Characteristic == "" {
		return fmt.Errorf("%w: characteristic is required", ErrInvalidConfig)
	}
	return nil
}
