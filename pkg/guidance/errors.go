package guidance

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes the coordinator distinguishes.
var (
	ErrCapture          = errors.New("guidance: frame capture failed")
	ErrDetection        = errors.New("guidance: detection failed")
	ErrBackend          = errors.New("guidance: query backend failed")
	ErrRecognition      = errors.New("guidance: speech recognition failed")
	ErrPermissionDenied = errors.New("guidance: permission denied")
	ErrNotRunning       = errors.New("guidance: coordinator not running")
)

// BackendError wraps a failure from a QueryBackend implementation.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("guidance: query backend failed: %v", e.Err)
	}
	return fmt.Sprintf("guidance: query backend %s failed: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackend, e.Err}
}

// PermissionError reports which devices could not be opened.
type PermissionError struct {
	Missing []string
	Err     error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("guidance: permission denied for %v: %v", e.Missing, e.Err)
}

func (e *PermissionError) Unwrap() []error {
	return []error{ErrPermissionDenied, e.Err}
}
