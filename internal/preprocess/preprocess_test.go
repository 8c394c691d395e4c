package preprocess_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/nnerr"
	"github.com/born-ml/multilayer/internal/preprocess"
)

func TestReshape_ValidatesWidth(t *testing.T) {
	p, err := preprocess.New(conf.PreprocessorConfig{Type: conf.PreCnnToFeedForward, Height: 2, Width: 2, Depth: 3})
	require.NoError(t, err)

	x := mat.NewDense(1, 12, nil)
	out, err := p.PreProcess(x)
	require.NoError(t, err)
	assert.Same(t, x, out)

	_, err = p.PreProcess(mat.NewDense(1, 8, nil))
	assert.True(t, errors.Is(err, nnerr.ErrShapeMismatch))
	_, err = p.Backprop(mat.NewDense(1, 8, nil))
	assert.True(t, errors.Is(err, nnerr.ErrShapeMismatch))
}

func TestZeroMean(t *testing.T) {
	p, err := preprocess.New(conf.PreprocessorConfig{Type: conf.PreZeroMean})
	require.NoError(t, err)
	out, err := p.PreProcess(mat.NewDense(2, 2, []float64{1, 10, 3, 20}))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -5, 1, 5}, out.RawMatrix().Data)
}

func TestUnitVariance(t *testing.T) {
	p, err := preprocess.New(conf.PreprocessorConfig{Type: conf.PreUnitVariance})
	require.NoError(t, err)

	_, err = p.Backprop(mat.NewDense(2, 2, nil))
	assert.True(t, errors.Is(err, nnerr.ErrNoForwardPass))

	out, err := p.PreProcess(mat.NewDense(2, 2, []float64{1, 5, 3, 5}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 5, 3, 5}, out.RawMatrix().Data)

	eps, err := p.Backprop(mat.NewDense(2, 2, []float64{2, 2, 2, 2}))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2, 2}, eps.RawMatrix().Data)

	out, err = p.PreProcess(mat.NewDense(2, 1, []float64{0, 4}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2}, out.RawMatrix().Data)
}

func TestNew_Unknown(t *testing.T) {
	_, err := preprocess.New(conf.PreprocessorConfig{Type: "rnn_to_cnn"})
	assert.True(t, errors.Is(err, nnerr.ErrInvalidConfig))
}
