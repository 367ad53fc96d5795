// Package sense controls a BLE range hood's fan and light.
//
// A Controller turns percentages and auto-mode requests into command packets and
// delivers them through a single serialized, self-healing link:
//
//	radio := goble.NewRadio(logger)
//	ctrl, err := sense.NewController(radio, sense.NewDeviceConfig("AA:BB:CC:DD:EE:FF"), sense.Options{Logger: logger})
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close(context.Background())
//	err = ctrl.SetFanPercent(ctx, 50)
package sense

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/srg/sensectl/internal/codec"
	"github.com/srg/sensectl/internal/connection"
	"github.com/srg/sensectl/internal/dispatch"
	"github.com/srg/sensectl/internal/transport"
)

type (
	// Radio resolves and drives BLE peripherals.
	Radio = transport.Radio
	// RetryPolicy bounds connect and write retries.
	RetryPolicy = connection.RetryPolicy
	// State is the link lifecycle snapshot.
	State = connection.State
)

// Re-exported so callers can match failures without importing internal packages.
var (
	ErrUnreachable = connection.ErrUnreachable
	ErrNotWritable = connection.ErrNotWritable
	ErrExhausted   = dispatch.ErrExhausted
)

// Options tunes the link. Zero fields take defaults.
type Options struct {
	ConnectTimeout time.Duration
	Retry          RetryPolicy
	SettleDelay    time.Duration
	Clock          clockwork.Clock
	Logger         *logrus.Logger
}

// Controller is the device facade. It keeps no record of levels sent.
type Controller struct {
	cfg        DeviceConfig
	conn       *connection.Manager
	dispatcher *dispatch.Dispatcher
	logger     *logrus.Logger
}

// NewController validates cfg and prepares a disconnected controller. The link is opened
// by the first command or Probe.
func NewController(radio Radio, cfg DeviceConfig, opts Options) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	conn := connection.NewManager(radio, connection.Options{
		Address:        cfg.Address,
		Characteristic: cfg.Characteristic,
		ConnectTimeout: opts.ConnectTimeout,
		Retry:          opts.Retry,
		Clock:          opts.Clock,
		Logger:         opts.Logger,
	})

	return &Controller{
		cfg:  cfg,
		conn: conn,
		dispatcher: dispatch.New(conn, dispatch.Options{
			SettleDelay: opts.SettleDelay,
			Logger:      opts.Logger,
		}),
		logger: opts.Logger,
	}, nil
}

// Config returns the device configuration.
func (c *Controller) Config() DeviceConfig { return c.cfg }

// State returns the link state.
func (c *Controller) State() State { return c.conn.State() }

// SetFanPercent runs the fan manually at pct percent, clamped to 0..100.
func (c *Controller) SetFanPercent(ctx context.Context, pct int) error {
	return c.send(ctx, codec.FanManual(codec.RawFromPercent(pct, c.cfg.FanMaxRaw)))
}

// SetFanAuto hands the fan back to the hood's own control.
func (c *Controller) SetFanAuto(ctx context.Context) error {
	return c.send(ctx, codec.FanAuto())
}

// SetLightPercent sets the light to pct percent, clamped to 0..100.
func (c *Controller) SetLightPercent(ctx context.Context, pct int) error {
	return c.send(ctx, codec.LightLevel(codec.RawFromPercent(pct, c.cfg.LightMaxRaw)))
}

// SetLightAuto hands the light back to the hood's own control.
func (c *Controller) SetLightAuto(ctx context.Context) error {
	return c.send(ctx, codec.LightAuto())
}

func (c *Controller) send(ctx context.Context, cmd codec.Command) error {
	c.logger.WithFields(logrus.Fields{
		"address": c.cfg.Address,
		"command": cmd.String(),
	}).Debug("Sending command")

	if err := c.dispatcher.Write(ctx, cmd); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}
	return nil
}

// Probe connects and checks the command characteristic is writable. The link stays open.
func (c *Controller) Probe(ctx context.Context) error {
	if err := c.dispatcher.Probe(ctx); err != nil {
		return fmt.Errorf("failed to probe %s: %w", c.cfg.Address, err)
	}
	return nil
}

// Close waits for an in-flight command and releases the link.
func (c *Controller) Close(ctx context.Context) error {
	return c.dispatcher.Close(ctx)
}
