package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCheckpoint() *Checkpoint {
	return &Checkpoint{
		ModelType:    "MultiLayerNetwork",
		ModelID:      "0b6f3c1e-5a1d-4c59-9c1e-9d2f4c7a8b10",
		Iteration:    7,
		PretrainDone: []int{0},
		Config:       json.RawMessage(`{"seed":123}`),
		Params: []Tensor{
			{Name: "0_W", Shape: []int{2, 2}, Data: []float64{0.1, -0.2, math.Pi, 1e-300}},
			{Name: "0_b", Shape: []int{1, 2}, Data: []float64{0, math.Copysign(0, -1)}},
		},
		State:    []Tensor{{Name: "1.mean", Shape: []int{1, 2}, Data: []float64{0.5, 0.25}}},
		Updater:  []Tensor{{Name: "0.velocity.0_W", Shape: []int{4}, Data: []float64{1, 2, 3, 4}}},
		Metadata: map[string]string{"dataset": "iris"},
	}
}

func encode(t *testing.T, c *Checkpoint) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c))
	return buf.Bytes()
}

func TestWriteRead_RoundTrip(t *testing.T) {
	in := sampleCheckpoint()
	raw := encode(t, in)

	assert.Equal(t, MagicBytes, string(raw[0:4]))
	assert.Equal(t, uint32(FormatVersionV2), binary.LittleEndian.Uint32(raw[4:8]))
	flags := binary.LittleEndian.Uint32(raw[8:12])
	assert.NotZero(t, flags&FlagHasUpdater)
	assert.NotZero(t, flags&FlagHasMetadata)

	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	dataSize := binary.LittleEndian.Uint64(raw[24:32])
	assert.Equal(t, uint64(8*(4+2+2+4)), dataSize)
	dataStart := int64(FixedHeaderSizeV2) + int64(headerSize) + paddingAfter(int(headerSize))
	assert.Zero(t, dataStart%HeaderAlignment)
	assert.Equal(t, int64(len(raw)), dataStart+int64(dataSize))

	out, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, in.ModelType, out.ModelType)
	assert.Equal(t, in.ModelID, out.ModelID)
	assert.Equal(t, 7, out.Iteration)
	assert.Equal(t, []int{0}, out.PretrainDone)
	assert.JSONEq(t, `{"seed":123}`, string(out.Config))
	assert.Equal(t, in.Metadata, out.Metadata)
	require.Len(t, out.Params, 2)
	for i, p := range in.Params {
		assert.Equal(t, p.Name, out.Params[i].Name)
		assert.Equal(t, p.Shape, out.Params[i].Shape)
		for k := range p.Data {
			assert.Equal(t, math.Float64bits(p.Data[k]), math.Float64bits(out.Params[i].Data[k]))
		}
	}
	assert.Equal(t, in.State, out.State)
	assert.Equal(t, in.Updater, out.Updater)
}

func TestRead_ChecksumMismatch(t *testing.T) {
	raw := encode(t, sampleCheckpoint())
	raw[len(raw)-1] ^= 0xff

	_, err := Read(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = ReadWithOptions(bytes.NewReader(raw), ReaderOptions{SkipChecksumValidation: true})
	assert.NoError(t, err)
}

func TestRead_BadMagicAndVersion(t *testing.T) {
	raw := encode(t, sampleCheckpoint())

	bad := append([]byte(nil), raw...)
	copy(bad, "NOPE")
	_, err := Read(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidMagic)

	bad = append([]byte(nil), raw...)
	binary.LittleEndian.PutUint32(bad[4:8], 1)
	_, err = Read(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Read(bytes.NewReader(raw[:10]))
	assert.Error(t, err)
}

func TestRead_HeaderTooLarge(t *testing.T) {
	raw := encode(t, sampleCheckpoint())
	binary.LittleEndian.PutUint64(raw[16:24], MaxHeaderSize+1)
	_, err := Read(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestWrite_RejectsInvalidTensors(t *testing.T) {
	c := sampleCheckpoint()
	c.Params[0].Name = "../W"
	err := Write(&bytes.Buffer{}, c)
	assert.ErrorIs(t, err, ErrInvalidTensorName)

	c = sampleCheckpoint()
	c.Params[0].Shape = []int{3, 3}
	err = Write(&bytes.Buffer{}, c)
	assert.ErrorIs(t, err, ErrInvalidTensor)
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	require.NoError(t, SaveFile(path, sampleCheckpoint()))

	out, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Iteration)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.born"))
	assert.Error(t, err)
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name    string
		tensors []TensorMeta
		want    error
	}{
		{"contiguous", []TensorMeta{{Name: "a", Offset: 0, Size: 16}, {Name: "b", Offset: 16, Size: 16}}, nil},
		{"overlap", []TensorMeta{{Name: "a", Offset: 0, Size: 16}, {Name: "b", Offset: 8, Size: 16}}, ErrOffsetOverlap},
		{"out of bounds", []TensorMeta{{Name: "a", Offset: 24, Size: 16}}, ErrOutOfBounds},
		{"negative", []TensorMeta{{Name: "a", Offset: -8, Size: 8}}, ErrNegativeOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, 32)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	assert.NoError(t, ValidateTensorName("0_W"))
	assert.NoError(t, ValidateTensorName("1.velocity.1_b"))
	for _, bad := range []string{"", "a/b", `a\b`, "..", "a\x00b"} {
		assert.ErrorIs(t, ValidateTensorName(bad), ErrInvalidTensorName, bad)
	}
}

func TestValidateHeader_Levels(t *testing.T) {
	h := &Header{Tensors: []TensorMeta{
		{Name: "0_W", Group: GroupParams, DType: DTypeFloat64, Shape: []int{2}, Offset: 0, Size: 16},
		{Name: "0_b", Group: GroupParams, DType: DTypeFloat64, Shape: []int{2}, Offset: 8, Size: 16},
	}}
	assert.ErrorIs(t, ValidateHeader(h, 32, ValidationStrict), ErrOffsetOverlap)
	assert.NoError(t, ValidateHeader(h, 32, ValidationNormal))

	h.Tensors[1].DType = "float32"
	assert.ErrorIs(t, ValidateHeader(h, 32, ValidationNormal), ErrInvalidTensor)
	assert.NoError(t, ValidateHeader(h, 32, ValidationNone))
}
