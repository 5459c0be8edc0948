package errors

import (
	"errors"
	"fmt"
)

// Exit codes for keypool
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitConfigError    = 2
	ExitControlError   = 3
	ExitServeError     = 4
	ExitCacheError     = 5
	ExitKeySourceError = 6
)

// KeypoolError is the base error type for keypool commands
type KeypoolError struct {
	Code    int
	Message string
	Cause   error
}

func (e *KeypoolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *KeypoolError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *KeypoolError) ExitCode() int {
	return e.Code
}

// New creates a new KeypoolError
func New(code int, message string) *KeypoolError {
	return &KeypoolError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a KeypoolError
func Wrap(code int, message string, cause error) *KeypoolError {
	return &KeypoolError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *KeypoolError {
	return Wrap(ExitConfigError, message, cause)
}

// ControlError returns an error for a failed call against the control API
func ControlError(op string, cause error) *KeypoolError {
	return Wrap(ExitControlError, fmt.Sprintf("control %s failed", op), cause)
}

// ServeError returns an error for a proxy or control listener that failed
func ServeError(surface string, cause error) *KeypoolError {
	return Wrap(ExitServeError, fmt.Sprintf("%s server failed", surface), cause)
}

// CacheError returns an error for credential cache operations
func CacheError(op string, cause error) *KeypoolError {
	return Wrap(ExitCacheError, fmt.Sprintf("credential cache %s failed", op), cause)
}

// KeySourceError returns an error for a failing credential helper
func KeySourceError(message string, cause error) *KeypoolError {
	return Wrap(ExitKeySourceError, message, cause)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *KeypoolError {
	return New(ExitGeneralError, message)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var kpErr *KeypoolError
	if errors.As(err, &kpErr) {
		return kpErr.ExitCode()
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
