package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
)

// ReaderOptions configures Read.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// Read decodes a checkpoint with strict validation.
func Read(r io.Reader) (*Checkpoint, error) {
	return ReadWithOptions(r, ReaderOptions{ValidationLevel: ValidationStrict})
}

// ReadWithOptions decodes a checkpoint from r.
func ReadWithOptions(r io.Reader, opts ReaderOptions) (*Checkpoint, error) {
	fixedHeader := make([]byte, FixedHeaderSizeV2)
	if _, err := io.ReadFull(r, fixedHeader); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixedHeader[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixedHeader[4:8]); version != FormatVersionV2 {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersionV2)
	}
	headerSize := binary.LittleEndian.Uint64(fixedHeader[16:24])
	dataSize := binary.LittleEndian.Uint64(fixedHeader[24:32])
	var stored [32]byte
	copy(stored[:], fixedHeader[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	// The data section must be exactly what the descriptors claim, so the
	// declared size cannot trigger an oversized allocation.
	var declared int64
	for _, t := range header.Tensors {
		declared += t.Size
	}
	if declared < 0 || uint64(declared) != dataSize {
		return nil, &ValidationError{
			Type:    "out_of_bounds",
			Details: fmt.Sprintf("tensors declare %d bytes, data section has %d", declared, dataSize),
		}
	}
	//nolint:gosec // G115: dataSize equals the validated descriptor total
	if err := ValidateHeader(&header, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	if padding := paddingAfter(int(headerSize)); padding > 0 {
		if _, err := io.CopyN(io.Discard, r, padding); err != nil {
			return nil, fmt.Errorf("failed to read padding: %w", err)
		}
	}
	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
			return nil, err
		}
	}

	c := &Checkpoint{
		ModelType:    header.ModelType,
		ModelID:      header.ModelID,
		CreatedAt:    header.CreatedAt,
		Iteration:    header.Iteration,
		PretrainDone: header.PretrainDone,
		Config:       header.Config,
		Metadata:     header.Metadata,
	}
	for _, meta := range header.Tensors {
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(len(data)) {
			return nil, &ValidationError{Type: "out_of_bounds", Tensor: meta.Name, Details: "outside data section"}
		}
		t := Tensor{
			Name:  meta.Name,
			Shape: meta.Shape,
			Data:  decodeFloats(data[meta.Offset : meta.Offset+meta.Size]),
		}
		switch meta.Group {
		case GroupParams:
			c.Params = append(c.Params, t)
		case GroupState:
			c.State = append(c.State, t)
		case GroupUpdater:
			c.Updater = append(c.Updater, t)
		default:
			return nil, &ValidationError{Type: "invalid_tensor", Tensor: meta.Name, Details: fmt.Sprintf("unknown group %q", meta.Group)}
		}
	}
	return c, nil
}

// LoadFile reads the checkpoint stored at path.
func LoadFile(path string) (*Checkpoint, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return Read(file)
}

func decodeFloats(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}
