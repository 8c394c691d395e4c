package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Write encodes c to w in .born v2 format.
func Write(w io.Writer, c *Checkpoint) error {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	header := Header{
		FormatVersion: FormatVersionV2,
		EngineVersion: engineVersion,
		ModelType:     c.ModelType,
		ModelID:       c.ModelID,
		CreatedAt:     created,
		Iteration:     c.Iteration,
		PretrainDone:  c.PretrainDone,
		Config:        c.Config,
		Metadata:      c.Metadata,
	}

	// Calculate tensor offsets and collect tensor data
	var (
		offset int64
		data   []byte
	)
	groups := []struct {
		name    string
		tensors []Tensor
	}{
		{GroupParams, c.Params},
		{GroupState, c.State},
		{GroupUpdater, c.Updater},
	}
	for _, g := range groups {
		for _, t := range g.tensors {
			if err := ValidateTensorName(t.Name); err != nil {
				return err
			}
			if elements(t.Shape) != len(t.Data) {
				return &ValidationError{
					Type:    "invalid_tensor",
					Tensor:  t.Name,
					Details: fmt.Sprintf("shape %v does not match %d values", t.Shape, len(t.Data)),
				}
			}
			size := int64(len(t.Data)) * 8
			header.Tensors = append(header.Tensors, TensorMeta{
				Name:   t.Name,
				Group:  g.name,
				DType:  DTypeFloat64,
				Shape:  t.Shape,
				Offset: offset,
				Size:   size,
			})
			data = appendFloats(data, t.Data)
			offset += size
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	flags := uint32(0)
	if len(c.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if len(c.Updater) > 0 {
		flags |= FlagHasUpdater
	}

	fixedHeader := make([]byte, FixedHeaderSizeV2)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersionV2))
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(len(data)))
	checksum := ComputeChecksum(data)
	copy(fixedHeader[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}
	if padding := paddingAfter(len(headerJSON)); padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// SaveFile writes c to path, replacing any existing file.
func SaveFile(path string, c *Checkpoint) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()
	return Write(file, c)
}

// paddingAfter returns the bytes needed to align the data section after a
// header JSON of the given length.
func paddingAfter(headerSize int) int64 {
	pos := int64(FixedHeaderSizeV2) + int64(headerSize)
	return (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
}

func appendFloats(dst []byte, values []float64) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	}
	return dst
}
