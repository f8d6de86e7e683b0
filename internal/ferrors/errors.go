// Package ferrors defines the typed error taxonomy used across the
// ingestion and query services, so callers can dispatch on error kind
// (§7 of the design) instead of matching on message strings.
package ferrors

import (
	stdErrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// transientMarker is implemented by errors that should trigger a
// reconnect-and-retry rather than a fail-and-log.
type transientMarker interface {
	error
	Transient() bool
}

// FetchError annotates a failed or non-200 HTTP fetch (§4.3).
type FetchError struct {
	Op         string
	URL        string
	StatusCode int // 0 if the request never got a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s: http %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Op, e.URL, e.Err)
}
func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps cause with fetch context.
func NewFetchError(op, url string, status int, cause error) error {
	return errors.WithStack(&FetchError{Op: op, URL: url, StatusCode: status, Err: cause})
}

// DecodeError indicates an image or video decode failure (§4.1, §4.2).
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Op, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError wraps cause with decode context.
func NewDecodeError(op string, cause error) error {
	return errors.WithStack(&DecodeError{Op: op, Err: cause})
}

// StoreError wraps a SQL failure, flagging whether it is transient
// (connection loss, should reconnect-and-retry) per §4.6/§7.
type StoreError struct {
	Op          string
	Err         error
	IsTransient bool
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }
func (e *StoreError) Transient() bool { return e.IsTransient }

// NewStoreError wraps cause with store context.
func NewStoreError(op string, cause error, transient bool) error {
	return errors.WithStack(&StoreError{Op: op, Err: cause, IsTransient: transient})
}

// ClassifyError indicates a URL could not be classified or resolved (§4.4).
type ClassifyError struct {
	Op  string
	URL string
	Err error
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classify %s: %s: %v", e.Op, e.URL, e.Err)
}
func (e *ClassifyError) Unwrap() error { return e.Err }

// NewClassifyError wraps cause with classification context.
func NewClassifyError(op, url string, cause error) error {
	return errors.WithStack(&ClassifyError{Op: op, URL: url, Err: cause})
}

// IsTransient reports whether err (or a wrapped cause) should be retried
// after reconnecting, per the transient-DB policy in §7.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var tm transientMarker
	if stdErrors.As(err, &tm) {
		return tm.Transient()
	}
	return false
}

// IsNotFound reports whether err represents an HTTP 404 (or a body
// containing the literal substring "404", per §4.3's special case).
func IsNotFound(err error) bool {
	var fe *FetchError
	if stdErrors.As(err, &fe) {
		return fe.StatusCode == 404
	}
	return false
}
