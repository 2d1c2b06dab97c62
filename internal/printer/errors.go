package printer

import (
	"errors"
	"fmt"
)

// Kind is the stage an operation failed at.
type Kind int

const (
	UnknownKind Kind = iota
	// Connection covers discovery, binding and a link lost mid operation.
	Connection
	// Image covers unreadable sources, bad encodings and size limits.
	Image
	// Print is a write that kept failing until the retry budget ran out.
	Print
	// ProtocolErr is a reply that was missing or couldn't be decoded.
	ProtocolErr
)

func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection"
	case Image:
		return "image"
	case Print:
		return "print"
	case ProtocolErr:
		return "protocol"
	}
	return "unknown"
}

var (
	ErrNotReady = errors.New("Printer is not ready")
	ErrNoReply  = errors.New("Printer didn't reply")
)

// Error is the only error type the Printer returns.
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "connect" or "print".
	Op string
	// Attempts made before giving up, 0 when nothing was attempted.
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s %s error after %d attempts: %v", e.Op, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnknownKind
}
