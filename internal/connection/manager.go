// Package connection owns the lifecycle of the single BLE link to one peripheral.
//
// A Manager holds at most one transport handle. Every (re)connect releases the previous
// handle before resolving a new one, and every failure path releases the handle it
// created, so the host stack never accumulates orphaned links.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensectl/internal/transport"
)

// Options configures a Manager.
type Options struct {
	Address        string
	Characteristic string
	ConnectTimeout time.Duration
	Retry          RetryPolicy
	Clock          clockwork.Clock
	Logger         *logrus.Logger
}

// Manager connects, verifies and releases the link to one peripheral.
type Manager struct {
	radio   transport.Radio
	address string
	char    string
	timeout time.Duration
	retry   RetryPolicy
	clock   clockwork.Clock
	logger  *logrus.Logger

	// opMu serializes lifecycle operations; mu guards the fields below it.
	opMu   sync.Mutex
	mu     sync.RWMutex
	handle transport.Handle
	state  State
}

// NewManager creates a disconnected manager. Zero option fields take package defaults.
func NewManager(radio transport.Radio, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	return &Manager{
		radio:   radio,
		address: opts.Address,
		char:    opts.Characteristic,
		timeout: opts.ConnectTimeout,
		retry:   opts.Retry.withDefaults(),
		clock:   opts.Clock,
		logger:  opts.Logger,
		state:   State{Kind: StateDisconnected},
	}
}

// Address returns the peripheral address.
func (m *Manager) Address() string { return m.address }

// Policy returns the effective retry policy.
func (m *Manager) Policy() RetryPolicy { return m.retry }

// Clock returns the clock used for backoff.
func (m *Manager) Clock() clockwork.Clock { return m.clock }

// State returns the current lifecycle snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Linked reports whether the manager currently holds a transport handle.
func (m *Manager) Linked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle != nil
}

// Connect makes sure a verified link exists. An already live link costs one liveness
// probe. Otherwise up to MaxAttempts resolve/connect/verify attempts run, waiting
// Backoff(k) after failed attempt k. After the last failure the state is StateFailed with
// no handle held, and the returned *ConnectError matches ErrUnreachable.
func (m *Manager) Connect(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.currentHandle() != nil {
		if m.probeLocked() {
			m.logger.WithField("address", m.address).Debug("Link already live")
			return nil
		}
		m.releaseLocked("stale link")
	}

	var lastErr error
	for attempt := 0; attempt < m.retry.MaxAttempts; attempt++ {
		m.setState(State{Kind: StateConnecting, Attempt: attempt + 1})

		err := m.attemptLocked(ctx)
		if err == nil {
			m.setState(State{Kind: StateConnected})
			m.logger.WithFields(logrus.Fields{
				"address": m.address,
				"attempt": attempt + 1,
			}).Info("Connected to device")
			return nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			m.setState(State{Kind: StateDisconnected})
			return fmt.Errorf("connect %q: %w", m.address, ctxErr)
		}

		if attempt == m.retry.MaxAttempts-1 {
			break
		}

		backoff := m.retry.Backoff(attempt)
		m.logger.WithFields(logrus.Fields{
			"address": m.address,
			"attempt": attempt + 1,
			"backoff": backoff,
			"error":   err,
		}).Warn("Connect attempt failed, retrying")

		if err := Wait(ctx, m.clock, backoff); err != nil {
			m.setState(State{Kind: StateDisconnected})
			return fmt.Errorf("connect %q: %w", m.address, err)
		}
	}

	cerr := &ConnectError{Address: m.address, Attempts: m.retry.MaxAttempts, Err: lastErr}
	m.setState(State{Kind: StateFailed, Reason: cerr})
	m.logger.WithFields(logrus.Fields{
		"address":  m.address,
		"attempts": m.retry.MaxAttempts,
		"error":    lastErr,
	}).Error("Device unreachable")
	return cerr
}

// attemptLocked performs one resolve/connect/verify cycle. On error no handle is held.
func (m *Manager) attemptLocked(ctx context.Context) error {
	h, err := m.radio.Resolve(ctx, m.address)
	if err != nil {
		return &ResolutionError{Address: m.address, Err: err}
	}
	m.setHandle(h)

	if err := m.radio.Connect(ctx, h, m.timeout); err != nil {
		m.releaseLocked("connect failed")
		return err
	}

	if err := m.verifyWritableLocked(h); err != nil {
		m.releaseLocked("verification failed")
		return err
	}
	return nil
}

// verifyWritableLocked checks the command characteristic is present and writable.
func (m *Manager) verifyWritableLocked(h transport.Handle) error {
	chars, err := m.radio.Characteristics(h)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotWritable, err)
	}
	c, ok := transport.FindCharacteristic(chars, m.char)
	if !ok {
		return fmt.Errorf("%w: characteristic %q not found (%d discovered)", ErrNotWritable, m.char, len(chars))
	}
	if !c.Properties.Writable() {
		return fmt.Errorf("%w: characteristic %q has properties %s", ErrNotWritable, m.char, c.Properties)
	}
	return nil
}

// probeLocked reports whether the held handle is connected and the command
// characteristic still resolves as writable.
func (m *Manager) probeLocked() bool {
	h := m.currentHandle()
	if h == nil {
		return false
	}
	if !m.radio.IsConnected(h) {
		m.logger.WithField("address", m.address).Debug("Liveness probe: transport reports not connected")
		return false
	}
	if err := m.verifyWritableLocked(h); err != nil {
		m.logger.WithFields(logrus.Fields{
			"address": m.address,
			"error":   err,
		}).Debug("Liveness probe: characteristic table stale")
		return false
	}
	return true
}

// VerifyLive probes the link. A failed probe releases the handle, leaving the manager
// disconnected.
func (m *Manager) VerifyLive(ctx context.Context) bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	if m.probeLocked() {
		return true
	}
	if m.currentHandle() != nil {
		m.releaseLocked("liveness probe failed")
	}
	return false
}

// Disconnect releases the link. Transport errors are logged, never returned. Safe to
// call when already disconnected.
func (m *Manager) Disconnect() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.releaseLocked("disconnect requested")
}

// Write sends data to the command characteristic without requesting an acknowledgment.
// A write that reports the link gone releases the handle.
func (m *Manager) Write(ctx context.Context, data []byte) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	h := m.currentHandle()
	if h == nil {
		return ErrNotConnected
	}

	err := m.radio.WriteCharacteristic(ctx, h, m.char, data, false)
	if err != nil && transport.IsKind(err, transport.KindNotConnected) {
		m.releaseLocked("link lost during write")
	}
	return err
}

// releaseLocked disconnects and discards the held handle, if any.
func (m *Manager) releaseLocked(reason string) {
	h := m.currentHandle()

	// The slot is cleared before the transport call.
	m.mu.Lock()
	m.handle = nil
	m.state = State{Kind: StateDisconnected}
	m.mu.Unlock()

	if h == nil {
		m.logger.WithField("address", m.address).Debug("Disconnect called but already disconnected")
		return
	}

	if err := m.radio.Disconnect(h); err != nil && !errors.Is(err, transport.ErrNotConnected) {
		m.logger.WithFields(logrus.Fields{
			"address": m.address,
			"reason":  reason,
			"error":   err,
		}).Warn("Error disconnecting from device")
		return
	}
	m.logger.WithFields(logrus.Fields{
		"address": m.address,
		"reason":  reason,
	}).Info("Disconnected from device")
}

func (m *Manager) currentHandle() transport.Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle
}

func (m *Manager) setHandle(h transport.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handle = h
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}
