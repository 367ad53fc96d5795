// Package dispatch serializes command writes to the peripheral and recovers from
// transient link failures.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/sensectl/internal/codec"
	"github.com/srg/sensectl/internal/connection"
	"golang.org/x/sync/semaphore"
)

// DefaultSettleDelay is the pause held after a write before the next command may start.
const DefaultSettleDelay = 200 * time.Millisecond

// Options configures a Dispatcher.
type Options struct {
	// SettleDelay is the default post-write pause. Negative means none.
	SettleDelay time.Duration
	Logger      *logrus.Logger
}

// WriteOption customizes a single Write call.
type WriteOption func(*writeConfig)

type writeConfig struct {
	settle time.Duration
}

// WithSettleDelay overrides the post-write pause for one call.
func WithSettleDelay(d time.Duration) WriteOption {
	return func(c *writeConfig) { c.settle = d }
}

// Dispatcher is the single writer for one peripheral. A Write holds the exclusive region
// from connect through settle; concurrent callers queue in FIFO order.
type Dispatcher struct {
	conn   *connection.Manager
	sem    *semaphore.Weighted
	settle time.Duration
	logger *logrus.Logger
}

// New creates a dispatcher writing through conn.
func New(conn *connection.Manager, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}

	return &Dispatcher{
		conn:   conn,
		sem:    semaphore.NewWeighted(1),
		settle: opts.SettleDelay,
		logger: opts.Logger,
	}
}

// Write renders cmd and delivers it without acknowledgment. Each of the policy's
// MaxAttempts attempts connects, probes the link and writes; a failed probe or write
// drops the link and waits WriteRetryDelay before the next attempt. An unreachable
// device ends the call with the connection error. After the last failed attempt the
// link is released and the returned error matches ErrExhausted.
func (d *Dispatcher) Write(ctx context.Context, cmd codec.Command, opts ...WriteOption) error {
	if !cmd.Valid() {
		return ErrInvalidCommand
	}
	cfg := writeConfig{settle: d.settle}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire device for %s: %w", cmd, err)
	}
	defer d.sem.Release(1)

	packet := codec.Render(cmd)
	policy := d.conn.Policy()
	clock := d.conn.Clock()
	log := d.logger.WithFields(logrus.Fields{
		"address": d.conn.Address(),
		"opcode":  cmd.Opcode(),
		"raw":     cmd.Raw(),
	})

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := d.conn.Connect(ctx); err != nil {
			return err
		}

		if !d.conn.VerifyLive(ctx) {
			lastErr = &TransientError{Attempt: attempt, Err: ErrLinkNotLive}
		} else if err := d.conn.Write(ctx, packet.Bytes()); err != nil {
			lastErr = &TransientError{Attempt: attempt, Err: err}
		} else {
			log.WithField("payload", packet.String()).Debug("Command written")
			if err := connection.Wait(ctx, clock, cfg.settle); err != nil {
				log.WithField("error", err).Debug("Settle delay interrupted")
			}
			return nil
		}

		d.conn.Disconnect()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("write %s: %w", cmd, ctxErr)
		}
		if attempt == policy.MaxAttempts {
			break
		}

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   lastErr,
		}).Warn("Write attempt failed, retrying")

		if err := connection.Wait(ctx, clock, policy.WriteRetryDelay); err != nil {
			return fmt.Errorf("write %s: %w", cmd, err)
		}
	}

	xerr := &ExhaustedError{Command: cmd, Attempts: policy.MaxAttempts, Err: lastErr}
	log.WithFields(logrus.Fields{
		"attempts": policy.MaxAttempts,
		"error":    lastErr,
	}).Error("Write attempts exhausted")
	return xerr
}

// Probe connects and checks the link is live, inside the exclusive region.
func (d *Dispatcher) Probe(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire device for probe: %w", err)
	}
	defer d.sem.Release(1)

	if err := d.conn.Connect(ctx); err != nil {
		return err
	}
	if !d.conn.VerifyLive(ctx) {
		return ErrLinkNotLive
	}
	return nil
}

// Close waits for any in-flight write and releases the link.
func (d *Dispatcher) Close(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire device for close: %w", err)
	}
	defer d.sem.Release(1)

	d.conn.Disconnect()
	return nil
}
