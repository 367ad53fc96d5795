package dispatch

import (
	"errors"
	"fmt"

	"github.com/srg/sensectl/internal/codec"
)

var (
	// ErrExhausted is matched by the error Write returns after its last attempt failed.
	ErrExhausted = errors.New("write attempts exhausted")
	// ErrLinkNotLive marks an attempt whose liveness probe failed after connecting.
	ErrLinkNotLive = errors.New("link not live")
	// ErrInvalidCommand rejects a zero codec.Command.
	ErrInvalidCommand = errors.New("invalid command")
)

// TransientError is one failed write attempt. The dispatcher recovers from it by
// dropping the link and retrying.
type TransientError struct {
	Attempt int
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every write attempt failed. It matches ErrExhausted
// and the last attempt's cause with errors.Is.
type ExhaustedError struct {
	Command  codec.Command
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed to write %s after %d attempts: %v", e.Command, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Err} }
