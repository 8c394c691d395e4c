package serialization

import (
	"encoding/json"
	"time"
)

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersionV2   = 2    // v2: With SHA-256 checksum
	HeaderAlignment   = 64   // Align tensor data to 64 bytes
	FixedHeaderSizeV2 = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffsetV2  = 0x20 // Checksum offset in v2 fixed header
)

// DTypeFloat64 is the only element type stored in checkpoints.
const DTypeFloat64 = "float64"

// Flags for the .born format.
const (
	FlagHasUpdater  uint32 = 1 << 1 // bit 1: updater state included
	FlagHasMetadata uint32 = 1 << 2 // bit 2: custom metadata included
)

// Tensor groups.
const (
	GroupParams  = "params"
	GroupState   = "state"
	GroupUpdater = "updater"
)

const engineVersion = "0.1.0"

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	EngineVersion string            `json:"engine_version"`
	ModelType     string            `json:"model_type"`
	ModelID       string            `json:"model_id"`
	CreatedAt     time.Time         `json:"created_at"`
	Iteration     int               `json:"iteration"`
	PretrainDone  []int             `json:"pretrain_done,omitempty"`
	Config        json.RawMessage   `json:"config"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "0_W", "2.mean", "1.velocity.1_W"
	Group  string `json:"group"`  // params, state or updater
	DType  string `json:"dtype"`  // always float64
	Shape  []int  `json:"shape"`  // tensor shape
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // size in bytes
}

// Tensor is one named float64 array.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
}

// Checkpoint is the in-memory form of a .born file.
type Checkpoint struct {
	ModelType string
	ModelID   string
	CreatedAt time.Time
	Iteration int
	// PretrainDone lists the layers whose pretraining has completed.
	PretrainDone []int
	// Config is the JSON encoded network configuration.
	Config   json.RawMessage
	Params   []Tensor
	State    []Tensor
	Updater  []Tensor
	Metadata map[string]string
}

func elements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
