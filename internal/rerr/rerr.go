// Package rerr defines the typed error taxonomy shared across reachcore's
// compute packages: validation failures, resource failures, and decode
// failures, per spec.md §7.
package rerr

import "fmt"

// Kind classifies why a compute call failed.
type Kind int

const (
	// Validation marks mismatched array lengths, out-of-range arguments,
	// and other caller-input mistakes.
	Validation Kind = iota
	// Resource marks thread-pool construction or allocation failures.
	Resource
	// Decode marks CH blob deserialization failures.
	Decode
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Resource:
		return "resource"
	case Decode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a typed compute-core error. All failures abort the current call
// immediately; no partial output is ever returned alongside an Error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a Validation-kind error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: Validation, Msg: fmt.Sprintf(format, args...)}
}

// Resourcef builds a Resource-kind error.
func Resourcef(err error, format string, args ...any) error {
	return &Error{Kind: Resource, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Decodef builds a Decode-kind error.
func Decodef(err error, format string, args ...any) error {
	return &Error{Kind: Decode, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Kind == kind
}
