package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/sensectl/internal/transport/goble"
	"github.com/srg/sensectl/pkg/config"
	"github.com/srg/sensectl/pkg/sense"
)

// RadioFactory builds the BLE radio. Tests replace it with a scripted radio.
var RadioFactory = func(logger *logrus.Logger) sense.Radio {
	return goble.NewRadio(logger)
}

const exampleDeviceAddress = "AA:BB:CC:DD:EE:FF"

const deviceAddressNote = `The device address is read from --address, SENSECTL_DEVICE_ADDRESS or device.address
in the config file. On macOS it is the CoreBluetooth peripheral UUID.`

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sensectl",
		Short: "Control a Bluetooth range hood's fan and light",
		Long: `Command-line controller for BLE range hoods that accept 8-byte fan/light commands:

- Set fan and light levels by percentage, or hand them back to automatic control
- Check that a hood is reachable and exposes its command characteristic
- Bridge the hood to an MQTT broker for home automation systems

Every command opens the link, retries transient failures and always releases the link.`,
		Version: formatVersion(version),
		// Silence Cobra's "Error:" prefix - main() prints clean errors
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("sensectl %s (commit %s, built %s)\n", formatVersion(version), commit, date))

	// Global flags
	root.PersistentFlags().String("config", "", "Config file (default: sensectl.yaml in ., ./config, ~/.config/sensectl, /etc/sensectl)")
	root.PersistentFlags().String("address", "", "Device address")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("verbose", false, "Verbose output (same as --log-level debug)")

	// Add -v as a short flag for --version
	root.Flags().BoolP("version", "v", false, "Show version information")

	root.AddCommand(newFanCmd())
	root.AddCommand(newLightCmd())
	root.AddCommand(newProbeCmd())
	root.AddCommand(newServeCmd())
	return root
}

// session is the configuration, logger and controller a command runs with.
type session struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctrl   *sense.Controller
}

// openSession loads configuration and builds a disconnected controller. fallback is the
// log level used when neither flags nor configuration choose one.
func openSession(cmd *cobra.Command, fallback logrus.Level) (*session, error) {
	logger, explicit, err := configureLogger(cmd, "verbose", fallback)
	if err != nil {
		return nil, err
	}

	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{File: file, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	if !explicit {
		level, err := cfg.Level(fallback)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}

	ctrl, err := sense.NewController(RadioFactory(logger), cfg.DeviceConfig(), cfg.ControllerOptions(logger))
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, ctrl: ctrl}, nil
}
