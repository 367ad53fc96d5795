package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/sensectl/internal/mqttbridge"
)

// newLevelCmd builds the fan and light commands, which differ only in their target.
func newLevelCmd(target mqttbridge.Target, topic, short, example string) *cobra.Command {
	return &cobra.Command{
		Use:   target.String() + " <percent|auto|on|off>",
		Short: short,
		Long: fmt.Sprintf(`%s

The level is a percentage (0-100; values outside are clamped), "auto" to return
control to the hood, "on" or "off".

Examples:
%s

%s`, short, example, deviceAddressNote),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := mqttbridge.ParseAction(topic, []byte(args[0]))
			if err != nil {
				return err
			}
			return runLevel(cmd, action)
		},
	}
}

func newFanCmd() *cobra.Command {
	return newLevelCmd(mqttbridge.TargetFan, mqttbridge.TopicFanSet, "Set the fan speed",
		fmt.Sprintf(`  # Run the fan at half speed
  sensectl fan 50 --address %s

  # Let the hood control the fan
  sensectl fan auto`, exampleDeviceAddress))
}

func newLightCmd() *cobra.Command {
	return newLevelCmd(mqttbridge.TargetLight, mqttbridge.TopicLightSet, "Set the light level",
		fmt.Sprintf(`  # Full brightness
  sensectl light on --address %s

  # Dim to 30%%
  sensectl light 30`, exampleDeviceAddress))
}

func runLevel(cmd *cobra.Command, action mqttbridge.Action) error {
	s, err := openSession(cmd, logrus.PanicLevel)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() { _ = s.ctrl.Close(context.Background()) }()

	switch {
	case action.Target == mqttbridge.TargetFan && action.Auto:
		err = s.ctrl.SetFanAuto(ctx)
	case action.Target == mqttbridge.TargetFan:
		err = s.ctrl.SetFanPercent(ctx, action.Percent)
	case action.Auto:
		err = s.ctrl.SetLightAuto(ctx)
	default:
		err = s.ctrl.SetLightPercent(ctx, action.Percent)
	}
	if err != nil {
		return err
	}

	printSuccess(cmd.OutOrStdout(), "%s set to %s", action.Target, describe(action))
	return nil
}

func describe(a mqttbridge.Action) string {
	if a.Auto {
		return "auto"
	}
	return fmt.Sprintf("%d%%", max(0, min(100, a.Percent)))
}
