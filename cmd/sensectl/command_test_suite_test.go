package main

import (
	"bytes"

	"github.com/sirupsen/logrus"
	"github.com/srg/sensectl/internal/testutils"
	"github.com/srg/sensectl/pkg/config"
	"github.com/srg/sensectl/pkg/sense"
	"github.com/stretchr/testify/suite"
)

// Test device address for consistent fake device identification
const TestDeviceAddress = "00:00:00:00:00:01"

// CommandTestSuite runs sensectl commands against a scripted radio.
type CommandTestSuite struct {
	suite.Suite

	Radio *testutils.FakeRadio

	savedFactory func(*logrus.Logger) sense.Radio
	savedPaths   []string
}

func (s *CommandTestSuite) SetupTest() {
	s.Radio = testutils.NewFakeRadio(sense.DefaultCharacteristic)

	s.savedFactory = RadioFactory
	RadioFactory = func(*logrus.Logger) sense.Radio { return s.Radio }

	s.savedPaths = config.SearchPaths
	config.SearchPaths = []string{s.T().TempDir()}

	// Keep retries fast.
	s.T().Setenv("SENSECTL_BLE_BACKOFF_BASE", "1ms")
	s.T().Setenv("SENSECTL_BLE_WRITE_RETRY_DELAY", "1ms")
	s.T().Setenv("SENSECTL_BLE_SETTLE_DELAY", "1ms")
}

func (s *CommandTestSuite) TearDownTest() {
	RadioFactory = s.savedFactory
	config.SearchPaths = s.savedPaths
}

// ExecuteCommand runs sensectl with args, returns stdout, stderr and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	cmd := newRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
