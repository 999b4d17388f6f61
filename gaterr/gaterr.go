// Package gaterr defines the structured error taxonomy shared across the
// gatekeeper components (spec.md §7): callers branch on Kind instead of
// matching error strings, and the policy evaluator uses Kind to decide
// whether a failure is retryable or terminal.
package gaterr

import "fmt"

// Kind classifies an error into one of the five families spec.md §7 names.
type Kind string

const (
	// KindInputFormat covers malformed signatures, bad hex, unknown node
	// types — rejected locally, no state mutation.
	KindInputFormat Kind = "input-format"
	// KindAuthorization covers unknown signers, inactive nodes, duplicate
	// submissions.
	KindAuthorization Kind = "authorization"
	// KindInvariant covers broken hash chains and Merkle mismatches —
	// fatal to the operation.
	KindInvariant Kind = "invariant"
	// KindTransient covers forge/timestamping-service/relay failures that
	// are retried with backoff.
	KindTransient Kind = "transient"
	// KindConfiguration covers invalid configuration — the process refuses
	// to start.
	KindConfiguration Kind = "configuration"
)

// Error is a structured (kind, message) pair. It wraps an optional
// underlying cause so callers can still use errors.Is/errors.As against it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Retryable reports whether the error's kind is one the evaluator should
// retry rather than reject terminally (spec.md §7 propagation policy: never
// silently downgrade a terminal error to a pending one).
func Retryable(err error) bool {
	var ge *Error
	if e, ok := err.(*Error); ok {
		ge = e
	} else {
		return false
	}
	return ge.Kind == KindTransient
}

// Is implements errors.Is support keyed on Kind, so callers can write
// errors.Is(err, gaterr.New(gaterr.KindAuthorization, "")) as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
