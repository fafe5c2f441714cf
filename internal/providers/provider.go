// Package providers defines the uniform contract the orchestrator uses to
// talk to external synthesis services, plus the error classification that
// drives its retry decisions.
package providers

import (
	"context"
	"errors"
	"fmt"
)

// Params is the normalized input for a single provider invocation. Frame
// phases use Prompt/Style/AspectRatio; the interpolation phase uses the two
// frame URLs plus the motion parameters.
type Params struct {
	Prompt          string
	Style           string
	AspectRatio     string
	Quality         string
	FirstFrameURL   string
	LastFrameURL    string
	Motion          string
	Camera          string
	DurationSeconds int
	RequestID       string
	// Phase names the artifact being produced (first_frame, last_frame,
	// video); adapters use it to key persisted payloads.
	Phase string
}

// Adapter is implemented by every provider wrapper. Invoke blocks until the
// provider produced a result or the context expired; it never touches
// credits, billing belongs to the orchestrator alone.
type Adapter interface {
	Invoke(ctx context.Context, p Params) (string, error)
}

// ProgressAdapter is optionally implemented by adapters whose provider
// exposes incremental progress (the interpolation task API does). onProgress
// receives a 0-100 percentage; callers map it into their own scale.
type ProgressAdapter interface {
	InvokeWithProgress(ctx context.Context, p Params, onProgress func(pct int)) (string, error)
}

// ErrorKind classifies a provider failure for the retry policy.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindTransient ErrorKind = "transient"
	KindFatal     ErrorKind = "fatal"
	KindCanceled  ErrorKind = "canceled"
)

// Error is the classified failure adapters return. Message is sanitized for
// the job record; the wrapped cause carries provider detail for diagnostics.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the orchestrator may re-attempt the phase.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransient
}

func Timeout(msg string, cause error) *Error {
	return &Error{Kind: KindTimeout, Message: msg, cause: cause}
}

func Transient(msg string, cause error) *Error {
	return &Error{Kind: KindTransient, Message: msg, cause: cause}
}

func Fatal(msg string, cause error) *Error {
	return &Error{Kind: KindFatal, Message: msg, cause: cause}
}

func Canceled(cause error) *Error {
	return &Error{Kind: KindCanceled, Message: "canceled", cause: cause}
}

// Classify normalizes an arbitrary error from an adapter into *Error.
// Context expiry maps to timeout or canceled so it stays distinguishable from
// provider-side failures; anything unclassified is treated as fatal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout("provider timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return Canceled(err)
	}
	return Fatal("provider call failed", err)
}

// IsRetryable is a convenience over Classify for plain error values.
func IsRetryable(err error) bool {
	pe := Classify(err)
	return pe != nil && pe.Retryable()
}
