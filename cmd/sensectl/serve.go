package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/sensectl/internal/mqttbridge"
	"github.com/srg/sensectl/pkg/config"
)

// BridgeOptions are passed to every bridge serve creates. Tests inject a client factory.
var BridgeOptions []mqttbridge.Option

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bridge the hood to an MQTT broker",
		Long: fmt.Sprintf(`Subscribes to command topics on an MQTT broker and forwards them to the hood until
interrupted (SIGINT/SIGTERM).

Topics (prefix from mqtt.topic_prefix, default "sense"):
  <prefix>/fan/set               auto | on | off | 0-100
  <prefix>/light/set             auto | on | off | 0-100
  <prefix>/light/brightness/set  0-255
  <prefix>/status                online | unreachable | offline (published, retained)

Changing log_level in the config file takes effect without a restart.

Examples:
  sensectl serve --address %s --broker tcp://localhost:1883

%s`, exampleDeviceAddress, deviceAddressNote),
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("broker", "", "MQTT broker URL (e.g., tcp://localhost:1883)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, logrus.InfoLevel)
	if err != nil {
		return err
	}
	if s.cfg.MQTT.Broker == "" {
		return ErrBrokerRequired
	}
	cmd.SilenceUsage = true

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watchLogLevel(cmd, s)

	bridge := mqttbridge.New(s.ctrl, mqttbridge.Config{
		Broker:      s.cfg.MQTT.Broker,
		ClientID:    s.cfg.MQTT.ClientID,
		TopicPrefix: s.cfg.MQTT.TopicPrefix,
		Username:    s.cfg.MQTT.Username,
		Password:    s.cfg.MQTT.Password,
	}, s.logger, BridgeOptions...)

	printSuccess(cmd.OutOrStdout(), "Bridging %s to %s under %q", s.cfg.Device.Address, s.cfg.MQTT.Broker, s.cfg.MQTT.TopicPrefix)
	runErr := bridge.Run(ctx)

	if err := s.ctrl.Close(context.Background()); err != nil {
		s.logger.WithField("error", err).Warn("Failed to release device")
	}
	return runErr
}

// watchLogLevel applies log_level changes from the config file while serving, unless a
// flag fixed the level.
func watchLogLevel(cmd *cobra.Command, s *session) {
	if cmd.Flags().Changed("log-level") || cmd.Flags().Changed("verbose") {
		return
	}
	file, _ := cmd.Flags().GetString("config")
	_, err := config.Watch(config.LoadOptions{File: file, Flags: cmd.Flags()}, func(cfg *config.Config, err error) {
		if err != nil {
			s.logger.WithField("error", err).Warn("Ignoring invalid config change")
			return
		}
		level, err := cfg.Level(logrus.InfoLevel)
		if err != nil {
			return
		}
		if level != s.logger.GetLevel() {
			s.logger.SetLevel(level)
			s.logger.WithField("level", level).Info("Log level changed")
		}
	})
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		printWarning(cmd.ErrOrStderr(), "config reload disabled: %v", err)
	}
}
