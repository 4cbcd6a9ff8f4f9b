package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Use errors.Is to classify any error returned by the relay.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTransport       = errors.New("upstream unavailable")
	ErrParse           = errors.New("malformed upstream payload")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NotFoundf returns an error matching ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return &kindError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// InvalidArgumentf returns an error matching ErrInvalidArgument.
func InvalidArgumentf(format string, args ...any) error {
	return &kindError{kind: ErrInvalidArgument, msg: fmt.Sprintf(format, args...)}
}

// ParseError reports a malformed or incomplete upstream payload.
type ParseError struct {
	Format string // "earthquake", "forecast", "cap", "rss", "region"
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("parse %s: %s: %v", e.Format, e.Field, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// TransportError reports an upstream request that could not be completed.
// StatusCode is zero when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// FetchError is returned by resource resolution when the upstream fetch or
// the parse of its payload failed. The cause is preserved for errors.Is.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("resolve %s: %v", e.Key, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// BuildError reports an internally inconsistent region dataset. The process
// must not start with one.
type BuildError struct {
	Code   string
	Reason string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("region dataset inconsistent at %q: %s", e.Code, e.Reason)
}

// Expired reports whether an absolute expiry has passed. A zero expiry never
// expires.
func Expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && now.After(expiresAt)
}
