package model

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure. The set is closed: every error that
// reaches the HTTP layer is mapped to exactly one of these.
type Kind uint8

const (
	// KindInferenceFailure is an unexpected failure while preprocessing or
	// running the model. It is also the kind of any unclassified error.
	KindInferenceFailure Kind = iota
	// KindNotReady means no predictor has been published yet.
	KindNotReady
	// KindBadInput means the caller sent something the pipeline cannot use.
	KindBadInput
)

// String implements Stringer.String for Kind.
func (k Kind) String() string {
	switch k {
	case KindNotReady:
		return "not ready"
	case KindBadInput:
		return "bad input"
	default:
		return "inference failure"
	}
}

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNotReady is returned by Handle.Get before a predictor is published.
var ErrNotReady = &Error{Kind: KindNotReady, Err: errors.New("model not loaded")}

// BadInputf builds a KindBadInput error. %w verbs are honoured.
func BadInputf(format string, args ...any) error {
	return &Error{Kind: KindBadInput, Err: fmt.Errorf(format, args...)}
}

// InferenceFailuref builds a KindInferenceFailure error. %w verbs are honoured.
func InferenceFailuref(format string, args ...any) error {
	return &Error{Kind: KindInferenceFailure, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err. Errors that were never classified are
// treated as inference failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInferenceFailure
}
