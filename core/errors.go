package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Handler errors
	ErrUnsupportedHandler = errors.New("unsupported handler signature")
	ErrHandlerPanic       = errors.New("handler panicked")

	// Remote write errors
	ErrRemoteWriteRejected = errors.New("remote write rejected")
)

// LayerError provides structured error information with context
// It implements the error interface and supports error wrapping
type LayerError struct {
	Op      string // Operation that failed (e.g., "Config.Validate")
	Kind    string // Error kind (e.g., "config", "handler", "remotewrite")
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *LayerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *LayerError) Unwrap() error {
	return e.Err
}

// NewLayerError creates a new LayerError
func NewLayerError(op, kind string, err error) *LayerError {
	return &LayerError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// PanicError carries a recovered handler panic value.
// It matches ErrHandlerPanic with errors.Is.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrHandlerPanic
}
