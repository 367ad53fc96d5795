//go:build linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

func newHostDevice() (ble.Device, error) {
	d, err := linux.NewDevice()
	if err != nil {
		return nil, err
	}
	return d, nil
}
