package gravimetric

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the engine can report.
type Kind string

const (
	KindMalformedInput        Kind = "MalformedInput"
	KindInvalidMeasurement    Kind = "InvalidMeasurement"
	KindOutOfRangeEnvironment Kind = "OutOfRangeEnvironment"
	KindInsufficientSamples   Kind = "InsufficientSamples"
	KindUnsupportedRange      Kind = "UnsupportedRange"
)

// Error is the single error type returned by the engine. Field names the
// offending input (e.g. "aforo2.punto7.presion") when known.
type Error struct {
	Kind   Kind
	Field  string
	Detail string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Detail)
}

// Is matches on Kind only, so errors.Is(err, ErrUnsupportedRange) works for
// any field or detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMalformedInput        = &Error{Kind: KindMalformedInput}
	ErrInvalidMeasurement    = &Error{Kind: KindInvalidMeasurement}
	ErrOutOfRangeEnvironment = &Error{Kind: KindOutOfRangeEnvironment}
	ErrInsufficientSamples   = &Error{Kind: KindInsufficientSamples}
	ErrUnsupportedRange      = &Error{Kind: KindUnsupportedRange}
)

// KindOf returns the Kind carried by err, or "" if err did not come from
// this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, field string, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// withPrefix returns a copy of err with prefix prepended to its field path.
func withPrefix(err error, prefix string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	if cp.Field == "" {
		cp.Field = prefix
	} else {
		cp.Field = prefix + "." + cp.Field
	}
	return &cp
}
