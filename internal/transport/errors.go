package transport

import (
	"errors"
	"fmt"
)

// Kind classifies transport failures. The set is closed: adapters map every library error
// onto one of these, so callers never inspect error text.
type Kind int

const (
	// KindIO is any failure not covered by a more specific kind.
	KindIO Kind = iota
	// KindNotFound means the address could not be resolved, or a GATT resource is missing.
	KindNotFound
	// KindNotConnected means the link is gone or was never established.
	KindNotConnected
	// KindTimeout means the operation did not complete in time.
	KindTimeout
	// KindUnsupported means the peripheral rejected the operation (e.g. not writable).
	KindUnsupported
	// KindAdapterOff means the host radio is unavailable or powered off.
	KindAdapterOff
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNotConnected:
		return "not_connected"
	case KindTimeout:
		return "timeout"
	case KindUnsupported:
		return "unsupported"
	case KindAdapterOff:
		return "adapter_off"
	default:
		return "io"
	}
}

// Error is a classified transport failure.
type Error struct {
	Kind    Kind
	Op      string // "resolve", "connect", "disconnect", "discover", "write"
	Address string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s %s", e.Op, e.Kind)
	if e.Address != "" {
		msg = fmt.Sprintf("%s %q: %s", e.Op, e.Address, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is to compare Error values by Kind, so the Err* sentinels below match
// any Error of the same kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Op == "" || t.Op == e.Op)
}

// Predefined sentinel errors, one per kind
var (
	ErrIO           = &Error{Kind: KindIO}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrNotConnected = &Error{Kind: KindNotConnected}
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrAdapterOff   = &Error{Kind: KindAdapterOff}
)

// NewError builds a classified error.
func NewError(kind Kind, op, address string, err error) *Error {
	return &Error{Kind: kind, Op: op, Address: address, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindIO when err carries
// no classification. KindOf(nil) is KindIO as well; check err != nil first.
func KindOf(err error) Kind {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return KindIO
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	var terr *Error
	return errors.As(err, &terr) && terr.Kind == kind
}
