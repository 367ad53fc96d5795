package testutils

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// NewTestLogger returns a debug-level logger that discards output and records entries
// for assertions on the returned hook.
func NewTestLogger(t *testing.T) (*logrus.Logger, *test.Hook) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	hook := test.NewLocal(logger)
	return logger, hook
}
