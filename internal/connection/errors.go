package connection

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable is reported when every connect attempt failed.
	ErrUnreachable = errors.New("device unreachable")
	// ErrNotWritable means the command characteristic is missing or not writable.
	ErrNotWritable = errors.New("command characteristic not writable")
	// ErrNotConnected is returned by Write when no live link exists.
	ErrNotConnected = errors.New("not connected")
)

// ResolutionError means the radio could not resolve the address.
type ResolutionError struct {
	Address string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %q: %v", e.Address, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ConnectError is returned by Connect after the attempt budget is spent. It matches
// ErrUnreachable and the last attempt's cause with errors.Is.
type ConnectError struct {
	Address  string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("device %q unreachable after %d attempts: %v", e.Address, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() []error { return []error{ErrUnreachable, e.Err} }
