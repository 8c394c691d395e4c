// Package nnerr defines the failure kinds shared by every layer of the engine.
//
// All errors are sentinel values or typed errors that unwrap to a sentinel, so
// callers can tell them apart with errors.Is:
//
//	if errors.Is(err, nnerr.ErrShapeMismatch) { ... }
package nnerr

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrShapeMismatch reports inconsistent tensor dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNoForwardPass reports a backward or score call without cached activations.
	ErrNoForwardPass = errors.New("no forward pass has been run on the current input")
	// ErrNotInitialized reports use of a network before Init.
	ErrNotInitialized = errors.New("network is not initialized")
	// ErrUnsupported reports an operation the layer family does not implement.
	ErrUnsupported = errors.New("operation not supported")
	// ErrNoOutputLayer reports a scoring call on a network without an output layer.
	ErrNoOutputLayer = errors.New("last layer is not an output layer")
	// ErrNoLabels reports a supervised call without labels.
	ErrNoLabels = errors.New("no labels set")
	// ErrNoLabelNames reports a predict call without registered label names.
	ErrNoLabelNames = errors.New("no label names registered")
	// ErrUnknownParam reports a parameter key that does not exist.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrInvalidConfig reports a configuration that cannot be built.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ShapeError provides detailed information about a dimension mismatch.
type ShapeError struct {
	Op   string // Operation that detected the mismatch
	Want string // Expected dimensions
	Got  string // Actual dimensions
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: want %s, got %s", e.Op, ErrShapeMismatch, e.Want, e.Got)
}

// Unwrap makes errors.Is(err, ErrShapeMismatch) succeed.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// Shape builds a ShapeError for a (rows, cols) mismatch.
func Shape(op string, wantRows, wantCols, gotRows, gotCols int) error {
	return &ShapeError{
		Op:   op,
		Want: dims(wantRows, wantCols),
		Got:  dims(gotRows, gotCols),
	}
}

// Columns builds a ShapeError for a column-count mismatch.
func Columns(op string, want, got int) error {
	return &ShapeError{
		Op:   op,
		Want: fmt.Sprintf("%d columns", want),
		Got:  fmt.Sprintf("%d columns", got),
	}
}

func dims(r, c int) string {
	if r < 0 {
		return fmt.Sprintf("[*, %d]", c)
	}
	return fmt.Sprintf("[%d, %d]", r, c)
}
