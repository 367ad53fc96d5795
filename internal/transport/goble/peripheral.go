package goble

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensectl/internal/groutine"
	"github.com/srg/sensectl/internal/transport"
)

// peripheral is the transport.Handle produced by Radio.Resolve.
type peripheral struct {
	address string
	addr    ble.Addr
	dial    DialFunc

	mu       sync.Mutex
	client   Client
	chars    []transport.Characteristic
	bleChars map[string]*ble.Characteristic
	lost     atomic.Bool
	stop     chan struct{}
}

func (p *peripheral) Address() string { return p.address }

// install records a fresh link. Caller holds p.mu.
func (p *peripheral) install(client Client, profile *ble.Profile) {
	p.client = client
	p.chars, p.bleChars = flattenProfile(profile)
	p.lost.Store(false)
	p.stop = make(chan struct{})
}

// release clears the link and returns the client that owned it. Caller holds p.mu.
func (p *peripheral) release() Client {
	client := p.client
	p.client = nil
	p.chars = nil
	p.bleChars = nil
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return client
}

// watch marks the link lost when the stack reports a disconnect. Only clients exposing
// Disconnected() (CoreBluetooth and HCI clients do) are watched. Caller holds p.mu.
func (p *peripheral) watch(logger *logrus.Logger, client Client) {
	dc, ok := client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		logger.Debug("Client does not support Disconnected() channel")
		return
	}

	stop := p.stop
	groutine.Go(context.Background(), "ble-link-monitor", func(ctx context.Context) {
		select {
		case <-dc.Disconnected():
			p.mu.Lock()
			current := p.client == client
			p.mu.Unlock()
			if current {
				p.lost.Store(true)
				logger.WithFields(logrus.Fields{
					"address":   p.address,
					"goroutine": groutine.Name(ctx),
				}).Warn("BLE stack reported disconnection")
			}
		case <-stop:
		}
	}, "address", p.address)
}
