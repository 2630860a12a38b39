// Package errors carries the application failure taxonomy. Every terminal
// failure is tagged with a Kind so the CLI layer can map it onto distinct
// messages and exit signaling.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown    Kind = iota
	KindConfig          // invalid or missing caller input
	KindResolution      // listing unreachable, or no usable entries on it
	KindConnection      // persistent device connection unreachable or dropped
	KindTimeout         // watch deadline elapsed with no completion signal
	KindDownload        // download retries exhausted
)

// Error is the application error type. Msg is the human-readable part; Cause,
// when set, is the wrapped underlying error.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf extracts the Kind from an error chain, KindUnknown when none is
// present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func New(msg string) error { return &Error{Kind: KindUnknown, Msg: msg} }

func Config(msg string) error { return &Error{Kind: KindConfig, Msg: msg} }

func Resolution(msg string, cause error) error {
	return &Error{Kind: KindResolution, Msg: msg, Cause: cause}
}

func Connection(msg string, cause error) error {
	return &Error{Kind: KindConnection, Msg: msg, Cause: cause}
}

func Timeout(target string, after time.Duration) error {
	return &Error{Kind: KindTimeout, Msg: fmt.Sprintf("timed out after %s waiting for %s", after, target)}
}

func Download(url string, cause error) error {
	return &Error{Kind: KindDownload, Msg: fmt.Sprintf("download failed for %s", url), Cause: cause}
}

// Re-exports, so callers need only this package.

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
