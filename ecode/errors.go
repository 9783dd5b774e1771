// Package ecode defines the error taxonomy shared across the client:
// configuration errors surfaced before any command is attempted, boot-time
// capability errors, and the normalized wrapper for backend call failures.
package ecode

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a caller misuses an API, such as
// requesting memoization of a command outside the allow-list.
var ErrInvalidArgument = errors.New("invalid argument")

// ConfigError reports an invalid or unsupported configuration combination.
// It is detected at connect time, before any command is issued.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// NewConfigError creates a ConfigError with a formatted reason.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// BackendMissingError reports that the required backend is absent or
// unreachable during the boot-time capability check.
type BackendMissingError struct {
	Backend string
	Err     error
}

func (e *BackendMissingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s unavailable: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("backend %s unavailable", e.Backend)
}

func (e *BackendMissingError) Unwrap() error { return e.Err }

// BackendOutdatedError reports that the backend is below the minimum
// supported version.
type BackendOutdatedError struct {
	Backend string
	Current string
	Minimum string
}

func (e *BackendOutdatedError) Error() string {
	return fmt.Sprintf("backend %s version %s is below minimum %s", e.Backend, e.Current, e.Minimum)
}

// ConnectionError is the normalized wrapper for any backend call failure.
// Callers never see backend-native error types.
type ConnectionError struct {
	Command string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError wraps a backend failure for the given command.
func NewConnectionError(command string, err error) *ConnectionError {
	return &ConnectionError{Command: command, Err: err}
}

// IsConnection reports whether err is a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
