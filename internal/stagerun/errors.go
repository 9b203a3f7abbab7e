package stagerun

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a stage failure for retry decisions and reporting.
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindNotFound          Kind = "not_found"
	KindDownloadFailed    Kind = "download_failed"
	KindToolFailure       Kind = "tool_failure"
	KindModelError        Kind = "model_error"
	KindTimeout           Kind = "timeout"
	KindRateLimit         Kind = "rate_limit"
	KindMalformedResponse Kind = "malformed_response"
	KindOutOfRange        Kind = "out_of_range"
	KindEncoding          Kind = "encoding_error"
	KindUnsupportedSpec   Kind = "unsupported_spec"
	KindConfiguration     Kind = "configuration"
)

// Error tags a failure with its kind plus the stage and operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with a kind and operation context. A nil err still produces
// an error so collaborators can signal classified failures without a cause.
func Wrap(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf is Wrap with a formatted cause.
func Wrapf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Classify resolves the kind of an arbitrary error. Context deadline errors
// map to the timeout kind so per-attempt timeouts are retryable; anything
// untagged is unknown and therefore never retried.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return Classify(err) == kind
}
