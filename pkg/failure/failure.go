// Package failure defines the structured conditions a reconstruction can end
// with. Every stage reports failures as *Error so callers can branch on Kind
// with errors.Is against the exported sentinels.
package failure

import (
	"errors"
	"fmt"
)

// Kind enumerates the failure categories surfaced to callers.
type Kind int

const (
	KindDegenerateInput Kind = iota + 1 // too few or affinely dependent points
	KindNumericOverflow                 // predicate arithmetic left the safe range
	KindCancelled                       // caller requested abort
	KindEmptyResult                     // classification accepted no facets
)

func (k Kind) String() string {
	switch k {
	case KindDegenerateInput:
		return "degenerate input"
	case KindNumericOverflow:
		return "numeric overflow"
	case KindCancelled:
		return "cancelled"
	case KindEmptyResult:
		return "empty result"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrDegenerateInput = errors.New("degenerate input")
	ErrNumericOverflow = errors.New("numeric overflow")
	ErrCancelled       = errors.New("cancelled")
	ErrEmptyResult     = errors.New("empty result")
)

func (k Kind) sentinel() error {
	switch k {
	case KindDegenerateInput:
		return ErrDegenerateInput
	case KindNumericOverflow:
		return ErrNumericOverflow
	case KindCancelled:
		return ErrCancelled
	case KindEmptyResult:
		return ErrEmptyResult
	}
	return nil
}

// Error is a terminal condition raised by one pipeline stage.
type Error struct {
	Kind    Kind
	Stage   string // "hull", "delaunay", "cocone", ...
	Message string
	Err     error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New builds an *Error with a formatted message.
func New(kind Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around an underlying cause.
func Wrap(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// Degenerate is shorthand for New(KindDegenerateInput, ...).
func Degenerate(stage, format string, args ...any) *Error {
	return New(KindDegenerateInput, stage, format, args...)
}

// Overflow is shorthand for New(KindNumericOverflow, ...).
func Overflow(stage, format string, args ...any) *Error {
	return New(KindNumericOverflow, stage, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// WithStage returns err with Stage filled in when it is an *Error without one.
// Other errors are returned unchanged.
func WithStage(err error, stage string) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Stage == "" {
		cp := *fe
		cp.Stage = stage
		return &cp
	}
	return err
}
