// Package mqttbridge exposes a hood controller on an MQTT broker.
//
// Commands arrive on <prefix>/fan/set, <prefix>/light/set and
// <prefix>/light/brightness/set and are applied one at a time in arrival order. After
// each command the bridge publishes <prefix>/status, retained, as "online" or
// "unreachable"; the broker publishes "offline" as the bridge's will.
package mqttbridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const (
	defaultQueueSize      = 16
	defaultConnectTimeout = 10 * time.Second
	disconnectQuiesceMs   = 250
)

// Device is the controller surface the bridge drives.
type Device interface {
	SetFanPercent(ctx context.Context, pct int) error
	SetFanAuto(ctx context.Context) error
	SetLightPercent(ctx context.Context, pct int) error
	SetLightAuto(ctx context.Context) error
}

// ClientFactory builds the MQTT client. Tests replace it with a fake.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// DefaultClientFactory creates a paho client.
var DefaultClientFactory ClientFactory = mqtt.NewClient

// Config configures the broker connection.
type Config struct {
	Broker         string
	ClientID       string
	TopicPrefix    string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	// QueueSize bounds commands waiting for the device; excess commands are dropped.
	QueueSize int
}

type request struct {
	suffix  string
	payload []byte
}

// Bridge forwards MQTT commands to a Device.
type Bridge struct {
	cfg           Config
	device        Device
	logger        *logrus.Logger
	clientFactory ClientFactory

	queue chan request

	mu     sync.Mutex
	client mqtt.Client
}

// Option customizes a Bridge.
type Option func(*Bridge)

// WithClientFactory overrides DefaultClientFactory.
func WithClientFactory(f ClientFactory) Option {
	return func(b *Bridge) { b.clientFactory = f }
}

// New creates a bridge for device. It does not connect until Run.
func New(device Device, cfg Config, logger *logrus.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")

	b := &Bridge{
		cfg:           cfg,
		device:        device,
		logger:        logger,
		clientFactory: DefaultClientFactory,
		queue:         make(chan request, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Topic returns the full topic for suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.cfg.TopicPrefix + "/" + suffix
}

// options builds the paho client options.
func (b *Bridge) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(b.cfg.ConnectTimeout)
	opts.SetOrderMatters(false)
	opts.SetWill(b.Topic(TopicStatus), StatusOffline, 1, true)

	// Subscribing on every connect restores subscriptions after an automatic reconnect.
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		b.logger.WithField("broker", b.cfg.Broker).Info("Connected to MQTT broker")
		for _, suffix := range []string{TopicFanSet, TopicLightSet, TopicLightBrightnessSet} {
			topic := b.Topic(suffix)
			token := client.Subscribe(topic, 1, b.handler(suffix))
			if token.Wait() && token.Error() != nil {
				b.logger.WithFields(logrus.Fields{
					"topic": topic,
					"error": token.Error(),
				}).Error("Failed to subscribe")
				continue
			}
			b.logger.WithField("topic", topic).Debug("Subscribed")
		}
		b.publishStatus(client, StatusOnline)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.WithField("error", err).Warn("MQTT connection lost")
	})
	return opts
}

// handler enqueues messages for the worker. It never blocks the paho router.
func (b *Bridge) handler(suffix string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		req := request{suffix: suffix, payload: append([]byte(nil), msg.Payload()...)}
		select {
		case b.queue <- req:
		default:
			b.logger.WithFields(logrus.Fields{
				"topic":   msg.Topic(),
				"payload": string(req.payload),
			}).Warn("Command queue full, dropping command")
		}
	}
}

// Run connects to the broker and applies commands until ctx ends. On return the
// bridge has published "offline" and disconnected.
func (b *Bridge) Run(ctx context.Context) error {
	client := b.clientFactory(b.options())

	token := client.Connect()
	if !token.WaitTimeout(b.cfg.ConnectTimeout) {
		client.Disconnect(0)
		return errors.New("failed to connect to MQTT broker: connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	b.mu.Lock()
	b.client = client
	b.mu.Unlock()

	defer func() {
		b.publishStatus(client, StatusOffline)
		client.Disconnect(disconnectQuiesceMs)

		b.mu.Lock()
		b.client = nil
		b.mu.Unlock()
		b.logger.WithField("broker", b.cfg.Broker).Info("Disconnected from MQTT broker")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-b.queue:
			b.apply(ctx, client, req)
		}
	}
}

// apply runs one command and publishes the resulting status.
func (b *Bridge) apply(ctx context.Context, client mqtt.Client, req request) {
	log := b.logger.WithFields(logrus.Fields{
		"topic":   b.Topic(req.suffix),
		"payload": string(req.payload),
	})

	action, err := ParseAction(req.suffix, req.payload)
	if err != nil {
		log.WithField("error", err).Warn("Ignoring command")
		return
	}

	if err := b.execute(ctx, action); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithFields(logrus.Fields{
			"action": action.String(),
			"error":  err,
		}).Error("Command failed")
		b.publishStatus(client, StatusUnreachable)
		return
	}

	log.WithField("action", action.String()).Info("Command applied")
	b.publishStatus(client, StatusOnline)
}

func (b *Bridge) execute(ctx context.Context, a Action) error {
	switch {
	case a.Target == TargetFan && a.Auto:
		return b.device.SetFanAuto(ctx)
	case a.Target == TargetFan:
		return b.device.SetFanPercent(ctx, a.Percent)
	case a.Auto:
		return b.device.SetLightAuto(ctx)
	default:
		return b.device.SetLightPercent(ctx, a.Percent)
	}
}

func (b *Bridge) publishStatus(client mqtt.Client, status string) {
	topic := b.Topic(TopicStatus)
	token := client.Publish(topic, 1, true, status)
	if !token.WaitTimeout(b.cfg.ConnectTimeout) || token.Error() != nil {
		b.logger.WithFields(logrus.Fields{
			"topic":  topic,
			"status": status,
			"error":  token.Error(),
		}).Warn("Failed to publish status")
		return
	}
	b.logger.WithFields(logrus.Fields{
		"topic":  topic,
		"status": status,
	}).Debug("Published status")
}

// connected reports whether Run holds a connected client.
func (b *Bridge) connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client != nil && b.client.IsConnected()
}
