//go:build !darwin && !linux

package goble

import (
	"errors"

	"github.com/go-ble/ble"
)

func newHostDevice() (ble.Device, error) {
	return nil, errors.New("bluetooth is not supported on this platform")
}
