package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when the owning session was cancelled.
	ErrCancelled = errors.New("download cancelled")
	// ErrMergeFailed is returned when every merge strategy failed.
	ErrMergeFailed = errors.New("all merge strategies failed")
	// ErrStagedFileNotFound is returned when no staged file matches a session token.
	ErrStagedFileNotFound = errors.New("staged file not found")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
)

// ResolutionError wraps a provider failure while resolving a URL.
type ResolutionError struct {
	URL string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.URL, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// AcquisitionError wraps a failed stream download.
type AcquisitionError struct {
	Phase string
	Err   error
}

func (e *AcquisitionError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("download failed: %v", e.Err)
	}
	return fmt.Sprintf("%s download failed: %v", e.Phase, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// ValidationError reports a staged file that is missing or implausibly small.
type ValidationError struct {
	Path string
	Size int64
	Min  int64
}

func (e *ValidationError) Error() string {
	if e.Size < 0 {
		return fmt.Sprintf("file %s does not exist", e.Path)
	}
	return fmt.Sprintf("file %s too small: %d bytes (minimum %d)", e.Path, e.Size, e.Min)
}
