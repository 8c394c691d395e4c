package multilayer

import (
	"errors"

	"github.com/born-ml/multilayer/internal/nnerr"
)

// Errors returned by the network. They are the shared engine sentinels, so
// errors.Is works across packages.
var (
	ErrShapeMismatch  = nnerr.ErrShapeMismatch
	ErrNoForwardPass  = nnerr.ErrNoForwardPass
	ErrNotInitialized = nnerr.ErrNotInitialized
	ErrUnsupported    = nnerr.ErrUnsupported
	ErrNoOutputLayer  = nnerr.ErrNoOutputLayer
	ErrNoLabels       = nnerr.ErrNoLabels
	ErrNoLabelNames   = nnerr.ErrNoLabelNames
	ErrUnknownParam   = nnerr.ErrUnknownParam
	ErrInvalidConfig  = nnerr.ErrInvalidConfig

	// ErrLayerIndex reports a layer index outside the stack.
	ErrLayerIndex = errors.New("layer index out of range")

	// ErrPretrainOrder reports a layer pretrained before an earlier
	// pretrainable layer finished.
	ErrPretrainOrder = errors.New("earlier layer still waiting for pretraining")
)

// ShapeError describes a dimension mismatch.
type ShapeError = nnerr.ShapeError
