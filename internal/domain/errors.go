package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MissingSourceError is returned when a request does not identify a source tree.
type MissingSourceError struct {
	Fields []string
}

func (e *MissingSourceError) Error() string {
	if len(e.Fields) == 0 {
		return "path or url is required"
	}
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// NewMissingSourceError creates a new MissingSourceError
func NewMissingSourceError(fields ...string) *MissingSourceError {
	return &MissingSourceError{Fields: fields}
}

// CloneError represents a failed repository clone
type CloneError struct {
	URL      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CloneError) Error() string {
	msg := fmt.Sprintf("clone of %s failed (exit %d)", RedactURL(e.URL), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CloneError) Unwrap() error {
	return e.Err
}

// FetchError represents an error while downloading a repository archive
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ExtractionError represents a failure decompressing or unpacking an archive
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction of %s failed: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a local source path cannot be read
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source path %s is not readable: %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// GenerationError represents a failed run of the BOM generator
type GenerationError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("bom generation failed (exit %d)", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// PublishError represents a rejected upload to the tracking server
type PublishError struct {
	StatusCode int
	Err        error
}

func (e *PublishError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("publish failed: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("publish failed: %v", e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// RetryableError indicates an error that can be retried
type RetryableError struct {
	Err        error
	RetryAfter int // Seconds to wait before retry, 0 if unknown
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("retryable error (retry after %ds): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		switch pubErr.StatusCode {
		case 429, 502, 503, 504:
			return true
		}
	}

	return false
}

// RedactURL strips user info from a URL so credentials never reach logs
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	// Tokens are often passed as the username, so drop user info entirely
	u.User = nil
	return u.String()
}
