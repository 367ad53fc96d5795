package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the hood is reachable and accepts commands",
		Long: fmt.Sprintf(`Connects to the hood, verifies the command characteristic is present and writable,
then disconnects. No command is sent.

Examples:
  sensectl probe --address %s

%s`, exampleDeviceAddress, deviceAddressNote),
		Args: cobra.NoArgs,
		RunE: runProbe,
	}
}

func runProbe(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, logrus.PanicLevel)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() { _ = s.ctrl.Close(context.Background()) }()

	if err := s.ctrl.Probe(ctx); err != nil {
		return err
	}

	dev := s.ctrl.Config()
	out := cmd.OutOrStdout()
	printSuccess(out, "Device %s reachable", dev.Address)
	printDetail(out, "command characteristic %s is writable", dev.Characteristic)
	printDetail(out, "fan scale 0..%d, light scale 0..%d", dev.FanMaxRaw, dev.LightMaxRaw)
	return nil
}
