package election

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on.
var (
	ErrNoPrecincts     = errors.New("no precincts found")
	ErrInvalidResponse = errors.New("invalid overwrite response")
	ErrDuplicateCode   = errors.New("duplicate precinct code")
)

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind string

// Fetch failure kinds.
const (
	KindConnection     FetchErrorKind = "connection"
	KindTimeout        FetchErrorKind = "timeout"
	KindProtocolStatus FetchErrorKind = "protocol_status"
	KindUnknown        FetchErrorKind = "unknown"
)

// FetchError is returned by Fetcher implementations.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindProtocolStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s failure", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s failure: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is a transient network condition.
func (e *FetchError) Retryable() bool {
	return e.Kind == KindConnection || e.Kind == KindTimeout
}

// ParseError reports a structural element that could not be located or read.
type ParseError struct {
	URL    string
	Field  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s: field %q: %s", e.URL, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WriteError reports a failure to persist the output table.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// KindOf names the taxonomy bucket of err for reporting.
func KindOf(err error) string {
	var fetchErr *FetchError
	var parseErr *ParseError
	var writeErr *WriteError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fetchErr):
		if fetchErr.Kind == KindProtocolStatus {
			return "protocol"
		}
		return "network/" + string(fetchErr.Kind)
	case errors.As(err, &parseErr):
		return "parse/" + parseErr.Field
	case errors.As(err, &writeErr):
		return "write"
	default:
		return "other"
	}
}
