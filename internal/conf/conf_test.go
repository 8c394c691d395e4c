package conf

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/multilayer/internal/nnerr"
)

func irisConfig() NetworkConfig {
	return NetworkConfig{
		Seed: 12345,
		Layers: []LayerConfig{
			{Type: Dense, NIn: 4, NOut: 3, Activation: "tanh"},
			{Type: Output, NOut: 3},
		},
	}
}

func TestBuild_Defaults(t *testing.T) {
	c, err := irisConfig().Build()
	require.NoError(t, err)
	assert.True(t, c.Built())
	assert.True(t, c.IsBackprop())
	assert.Equal(t, 1, c.Iterations)
	assert.Equal(t, BackpropStandard, c.BackpropType)
	assert.Equal(t, 1, c.TimeSteps())

	hidden, out := c.Layers[0], c.Layers[1]
	assert.Equal(t, "tanh", hidden.Activation)
	assert.Equal(t, DefaultWeightInit, hidden.WeightInit)
	assert.Equal(t, DefaultUpdater, hidden.Updater)
	assert.Equal(t, DefaultLearningRate, hidden.GetLearningRate())
	assert.Equal(t, DefaultMomentum, hidden.GetMomentum())
	assert.Empty(t, hidden.Loss)

	assert.Equal(t, 3, out.NIn)
	assert.Equal(t, DefaultOutputActivation, out.Activation)
	assert.Equal(t, DefaultLoss, out.Loss)
}

func TestBuild_MergesNetworkDefaults(t *testing.T) {
	c := irisConfig()
	c.Regularization = true
	c.Defaults = LayerConfig{Activation: "relu", L2: Float(0.01), LearningRate: Float(0.1), Updater: "adam"}
	c.Layers[1].LearningRate = Float(0.5)

	built, err := c.Build()
	require.NoError(t, err)
	assert.Equal(t, "tanh", built.Layers[0].Activation)
	assert.Equal(t, "relu", built.Layers[1].Activation)
	for _, l := range built.Layers {
		assert.Equal(t, 0.01, l.GetL2())
		assert.Equal(t, "adam", l.Updater)
		assert.True(t, l.UseRegularization)
	}
	assert.Equal(t, 0.1, built.Layers[0].GetLearningRate())
	assert.Equal(t, 0.5, built.Layers[1].GetLearningRate())
}

func TestBuild_ExplicitZeroOverridesDefaults(t *testing.T) {
	c := irisConfig()
	c.Defaults = LayerConfig{L1: Float(0.01), L2: Float(0.02), CorruptionLevel: Float(0.3)}
	c.Layers[0].L1 = Float(0)
	c.Layers[0].Momentum = Float(0)
	c.Layers[0].LearningRate = Float(0)
	c.Layers[0].CorruptionLevel = Float(0)

	built, err := c.Build()
	require.NoError(t, err)
	first, second := built.Layers[0], built.Layers[1]
	assert.Equal(t, 0.0, first.GetL1())
	assert.Equal(t, 0.02, first.GetL2())
	assert.Equal(t, 0.0, first.GetMomentum())
	assert.Equal(t, 0.0, first.GetLearningRate())
	assert.Equal(t, 0.0, first.GetCorruptionLevel())

	assert.Equal(t, 0.01, second.GetL1())
	assert.Equal(t, DefaultMomentum, second.GetMomentum())
	assert.Equal(t, DefaultLearningRate, second.GetLearningRate())
	assert.Equal(t, 0.3, second.GetCorruptionLevel())

	// Resolved values do not alias the network defaults.
	*second.L1 = 5
	assert.Equal(t, 0.01, *c.Defaults.L1)
}

func TestParseYAML_ExplicitZero(t *testing.T) {
	c, err := ParseYAML([]byte(`
defaults:
  momentum: 0.5
layers:
  - {type: dense, n_in: 4, n_out: 3, momentum: 0}
  - {type: output, n_out: 3}
`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Layers[0].GetMomentum())
	assert.Equal(t, 0.5, c.Layers[1].GetMomentum())
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	c := irisConfig()
	_, err := c.Build()
	require.NoError(t, err)
	assert.False(t, c.Built())
	assert.Zero(t, c.Layers[1].NIn)
	assert.Nil(t, c.Backprop)
}

func TestBuild_Idempotent(t *testing.T) {
	once, err := irisConfig().Build()
	require.NoError(t, err)
	twice, err := once.Build()
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestBuild_Pretrain(t *testing.T) {
	c := NetworkConfig{
		Pretrain: true,
		Layers: []LayerConfig{
			{Type: RBM, NIn: 10, NOut: 5},
			{Type: AutoEncoder, NOut: 4},
			{Type: Output, NOut: 3},
		},
	}
	built, err := c.Build()
	require.NoError(t, err)
	assert.True(t, built.Layers[0].Pretrain)
	assert.True(t, built.Layers[1].Pretrain)
	assert.False(t, built.Layers[2].Pretrain)
	assert.Equal(t, UnitBinary, built.Layers[0].HiddenUnit)
	assert.Equal(t, "mse", built.Layers[0].Loss)
	assert.Equal(t, 5, built.Layers[1].NIn)

	c.Pretrain = false
	built, err = c.Build()
	require.NoError(t, err)
	assert.False(t, built.Layers[0].Pretrain)
}

func TestBuild_Recurrent(t *testing.T) {
	c := NetworkConfig{
		InputType:    Recurrent(3, 5),
		BackpropType: BackpropTruncated,
		TBPTTLength:  2,
		Layers: []LayerConfig{
			{Type: RNN, NOut: 4},
			{Type: Output, NOut: 2},
		},
	}
	built, err := c.Build()
	require.NoError(t, err)
	assert.Equal(t, 5, built.TimeSteps())
	assert.Equal(t, 3, built.Layers[0].NIn)
	assert.Equal(t, 5, built.Layers[0].TimeSteps)
	assert.Equal(t, 2, built.Layers[0].TBPTTLength)
	assert.Equal(t, 4, built.Layers[1].NIn)

	c.TBPTTLength = 0
	_, err = c.Build()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestBuild_Convolution(t *testing.T) {
	c := NetworkConfig{
		InputType: Convolutional(6, 6, 1),
		Layers: []LayerConfig{
			{Type: Convolution, NOut: 2, KernelSize: []int{3, 3}},
			{Type: Output, NOut: 3},
		},
	}
	built, err := c.Build()
	require.NoError(t, err)
	conv := built.Layers[0]
	assert.Equal(t, 1, conv.NIn)
	assert.Equal(t, 6, conv.InputHeight)
	assert.Equal(t, []int{1, 1}, conv.Stride)
	assert.Equal(t, 2*4*4, built.Layers[1].NIn)

	c.Layers[0].Stride = []int{2, 2}
	_, err = c.Build()
	assert.ErrorIs(t, err, ErrInvalid)

	size, err := ConvOutputSize(28, 5, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 28, size)
}

func TestBuild_Preprocessors(t *testing.T) {
	c := NetworkConfig{
		InputType: Convolutional(4, 4, 2),
		Preprocessors: map[int]PreprocessorConfig{
			0: {Type: PreCnnToFeedForward, Height: 4, Width: 4, Depth: 2},
			1: {Type: PreZeroMean},
		},
		Layers: []LayerConfig{
			{Type: Dense, NOut: 5},
			{Type: Output, NOut: 2},
		},
	}
	built, err := c.Build()
	require.NoError(t, err)
	assert.Equal(t, 32, built.Layers[0].NIn)

	c.Preprocessors[0] = PreprocessorConfig{Type: PreCnnToFeedForward, Height: 3, Width: 4, Depth: 2}
	_, err = c.Build()
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)

	c.Preprocessors = map[int]PreprocessorConfig{5: {Type: PreZeroMean}}
	_, err = c.Build()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  NetworkConfig
		want error
	}{
		{"no layers", NetworkConfig{}, ErrInvalid},
		{"unknown type", NetworkConfig{Layers: []LayerConfig{{Type: "lstm", NIn: 2, NOut: 2}}}, ErrInvalid},
		{"missing n_in", NetworkConfig{Layers: []LayerConfig{{Type: Dense, NOut: 2}}}, ErrInvalid},
		{"missing n_out", NetworkConfig{Layers: []LayerConfig{{Type: Dense, NIn: 2}}}, ErrInvalid},
		{"rnn without input type", NetworkConfig{Layers: []LayerConfig{{Type: RNN, NIn: 2, NOut: 2}}}, ErrInvalid},
		{
			"width mismatch",
			NetworkConfig{Layers: []LayerConfig{{Type: Dense, NIn: 4, NOut: 3}, {Type: Output, NIn: 5, NOut: 2}}},
			nnerr.ErrShapeMismatch,
		},
		{"bad backprop type", NetworkConfig{BackpropType: "reverse", Layers: []LayerConfig{{Type: Dense, NIn: 2, NOut: 2}}}, ErrInvalid},
		{"bad input type", NetworkConfig{InputType: FeedForward(0), Layers: []LayerConfig{{Type: Dense, NOut: 2}}}, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Build()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}

func TestBackpropFlag(t *testing.T) {
	c := irisConfig()
	c.Backprop = Bool(false)
	built, err := c.Build()
	require.NoError(t, err)
	assert.False(t, built.IsBackprop())
}

func TestClone_IsDeep(t *testing.T) {
	c := irisConfig()
	c.Layers[0].KernelSize = []int{3, 3}
	c.Backprop = Bool(true)
	cp := c.Clone()
	cp.Layers[0].KernelSize[0] = 9
	cp.Layers[1].NOut = 7
	*cp.Backprop = false

	assert.Equal(t, 3, c.Layers[0].KernelSize[0])
	assert.Equal(t, 3, c.Layers[1].NOut)
	assert.True(t, *c.Backprop)
}

func TestJSON_RoundTripRebuilds(t *testing.T) {
	built, err := irisConfig().Build()
	require.NoError(t, err)
	data, err := json.Marshal(built)
	require.NoError(t, err)

	var decoded NetworkConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.Built())
	rebuilt, err := decoded.Build()
	require.NoError(t, err)
	assert.Equal(t, built, rebuilt)
}

const irisYAML = `
seed: 42
regularization: true
defaults:
  activation: tanh
  learning_rate: 0.1
  l2: 0.001
layers:
  - {type: dense, n_in: 4, n_out: 3}
  - {type: output, n_out: 3, activation: softmax, loss: mcxent}
`

func TestParseYAML(t *testing.T) {
	c, err := ParseYAML([]byte(irisYAML))
	require.NoError(t, err)
	assert.True(t, c.Built())
	assert.Equal(t, int64(42), c.Seed)
	assert.Equal(t, "tanh", c.Layers[0].Activation)
	assert.Equal(t, 0.1, c.Layers[1].GetLearningRate())
	assert.True(t, c.Layers[1].UseRegularization)

	_, err = ParseYAML([]byte("layers: ["))
	assert.Error(t, err)
	_, err = ParseYAML([]byte("seed: 1\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iris.yaml")
	require.NoError(t, os.WriteFile(path, []byte(irisYAML), 0o600))
	c, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Len(t, c.Layers, 2)

	_, err = LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalYAML_RoundTrip(t *testing.T) {
	c, err := ParseYAML([]byte(irisYAML))
	require.NoError(t, err)
	data, err := MarshalYAML(c)
	require.NoError(t, err)
	again, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, c.Layers[0].NOut, again.Layers[0].NOut)
	assert.Equal(t, c.Layers[1].Loss, again.Layers[1].Loss)
}

func TestInputType_String(t *testing.T) {
	assert.Equal(t, "feed_forward(4)", FeedForward(4).String())
	assert.Equal(t, "recurrent(3, t=5)", Recurrent(3, 5).String())
	assert.Equal(t, "convolutional(28x28x1)", Convolutional(28, 28, 1).String())
	assert.Equal(t, 784, ConvolutionalFlat(28, 28, 1).FlatSize())
}
