// Package goble implements the transport collaborator on top of github.com/go-ble/ble.
package goble

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensectl/internal/transport"
)

var (
	macAddressRe = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)
	// CoreBluetooth identifies peripherals by a per-host UUID instead of a MAC.
	platformIDRe = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}$`)
)

// Option configures a Radio.
type Option func(*Radio)

// WithDialer replaces the host device with dial. Used by tests and by callers that share
// one ble.Device between several radios.
func WithDialer(dial DialFunc) Option {
	return func(r *Radio) {
		r.dial = dial
	}
}

// Radio implements transport.Radio over a go-ble host device.
type Radio struct {
	logger *logrus.Logger

	initMu sync.Mutex
	dial   DialFunc
}

var _ transport.Radio = (*Radio)(nil)

// NewRadio creates a radio. The host device is opened lazily on first Resolve.
func NewRadio(logger *logrus.Logger, opts ...Option) *Radio {
	if logger == nil {
		logger = logrus.New()
	}
	r := &Radio{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ensureDialer opens the host device once.
func (r *Radio) ensureDialer() (DialFunc, error) {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	if r.dial != nil {
		return r.dial, nil
	}

	dev, err := DeviceFactory()
	if err != nil {
		r.logger.WithField("error", err).Error("Failed to create BLE device")
		return nil, transport.NewError(transport.KindAdapterOff, "resolve", "", fmt.Errorf("failed to create BLE device: %w", err))
	}
	r.dial = deviceDialer(dev)
	return r.dial, nil
}

// Resolve validates address and returns a handle for it. The address is not contacted.
func (r *Radio) Resolve(ctx context.Context, address string) (transport.Handle, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, transport.NewError(transport.KindNotFound, "resolve", address, errors.New("device address is empty"))
	}
	if !macAddressRe.MatchString(address) && !platformIDRe.MatchString(address) {
		return nil, transport.NewError(transport.KindNotFound, "resolve", address, errors.New("not a BLE address"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dial, err := r.ensureDialer()
	if err != nil {
		return nil, err
	}

	return &peripheral{
		address: address,
		addr:    ble.NewAddr(strings.ReplaceAll(address, "-", ":")),
		dial:    dial,
	}, nil
}

// Connect dials the peripheral and caches its GATT profile.
func (r *Radio) Connect(ctx context.Context, h transport.Handle, timeout time.Duration) error {
	p, err := r.peripheral(h, "connect")
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && !p.lost.Load() {
		return transport.NewError(transport.KindIO, "connect", p.address, errors.New("device already connected"))
	}
	if p.client != nil {
		// Lost link: stop its monitor and cancel the stale client before dialing again.
		if cancelErr := p.release().CancelConnection(); cancelErr != nil {
			r.logger.WithFields(logrus.Fields{
				"address": p.address,
				"error":   cancelErr,
			}).Warn("Failed to cancel stale connection")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"address": p.address,
		"timeout": timeout,
	}).Debug("Dialing BLE device...")

	connCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client, err := p.dial(connCtx, p.addr)
	if err != nil {
		return classify("connect", p.address, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			r.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return classify("discover", p.address, err)
	}

	p.install(client, profile)
	p.watch(r.logger, client)

	r.logger.WithFields(logrus.Fields{
		"address":         p.address,
		"services":        len(profile.Services),
		"characteristics": len(p.chars),
	}).Debug("BLE profile discovered")
	return nil
}

// Disconnect cancels the link. The handle can be connected again afterwards.
func (r *Radio) Disconnect(h transport.Handle) error {
	p, err := r.peripheral(h, "disconnect")
	if err != nil {
		return err
	}

	p.mu.Lock()
	client := p.release()
	p.mu.Unlock()

	if client == nil {
		return nil
	}
	return classify("disconnect", p.address, client.CancelConnection())
}

// IsConnected reports the link flag. It does not contact the peripheral.
func (r *Radio) IsConnected(h transport.Handle) bool {
	p, err := r.peripheral(h, "probe")
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && !p.lost.Load()
}

// Characteristics returns the cached characteristic table, sorted by service then UUID.
func (r *Radio) Characteristics(h transport.Handle) ([]transport.Characteristic, error) {
	p, err := r.peripheral(h, "discover")
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil, transport.NewError(transport.KindNotConnected, "discover", p.address, nil)
	}
	out := make([]transport.Characteristic, len(p.chars))
	copy(out, p.chars)
	return out, nil
}

// WriteCharacteristic writes data to uuid. ack selects write-with-response.
func (r *Radio) WriteCharacteristic(ctx context.Context, h transport.Handle, uuid string, data []byte, ack bool) error {
	p, err := r.peripheral(h, "write")
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	client := p.client
	char, ok := p.bleChars[transport.NormalizeUUID(uuid)]
	lost := p.lost.Load()
	p.mu.Unlock()

	if client == nil || lost {
		return transport.NewError(transport.KindNotConnected, "write", p.address, nil)
	}
	if !ok {
		return transport.NewError(transport.KindNotFound, "write", p.address, fmt.Errorf("characteristic %q not found", uuid))
	}

	if err := client.WriteCharacteristic(char, data, !ack); err != nil {
		werr := classify("write", p.address, err)
		if transport.IsKind(werr, transport.KindNotConnected) {
			p.lost.Store(true)
		}
		return werr
	}

	r.logger.WithFields(logrus.Fields{
		"address": p.address,
		"uuid":    uuid,
		"bytes":   len(data),
		"ack":     ack,
	}).Debug("Wrote characteristic")
	return nil
}

func (r *Radio) peripheral(h transport.Handle, op string) (*peripheral, error) {
	p, ok := h.(*peripheral)
	if !ok || p == nil {
		return nil, transport.NewError(transport.KindUnsupported, op, "", fmt.Errorf("handle %T was not resolved by this radio", h))
	}
	return p, nil
}

// flattenProfile converts a go-ble profile into the transport table and a lookup index.
func flattenProfile(profile *ble.Profile) ([]transport.Characteristic, map[string]*ble.Characteristic) {
	var chars []transport.Characteristic
	index := make(map[string]*ble.Characteristic)
	if profile == nil {
		return chars, index
	}

	for _, svc := range profile.Services {
		svcUUID := transport.NormalizeUUID(svc.UUID.String())
		for _, c := range svc.Characteristics {
			charUUID := transport.NormalizeUUID(c.UUID.String())
			chars = append(chars, transport.Characteristic{
				Service:    svcUUID,
				UUID:       charUUID,
				Properties: convertProperties(c.Property),
			})
			index[charUUID] = c
		}
	}

	sort.Slice(chars, func(i, j int) bool {
		if chars[i].Service != chars[j].Service {
			return chars[i].Service < chars[j].Service
		}
		return chars[i].UUID < chars[j].UUID
	})
	return chars, index
}

func convertProperties(p ble.Property) transport.Property {
	var out transport.Property
	if p&ble.CharRead != 0 {
		out |= transport.PropRead
	}
	if p&ble.CharWrite != 0 {
		out |= transport.PropWrite
	}
	if p&ble.CharWriteNR != 0 {
		out |= transport.PropWriteWithoutResponse
	}
	if p&ble.CharNotify != 0 {
		out |= transport.PropNotify
	}
	if p&ble.CharIndicate != 0 {
		out |= transport.PropIndicate
	}
	return out
}
