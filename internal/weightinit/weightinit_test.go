package weightinit_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/weightinit"
)

func TestFill_SameSeedSameWeights(t *testing.T) {
	a := make([]float64, 50)
	b := make([]float64, 50)
	require.NoError(t, weightinit.Fill(a, weightinit.Xavier, 5, 10, nil, weightinit.NewRand(12345)))
	require.NoError(t, weightinit.Fill(b, weightinit.Xavier, 5, 10, nil, weightinit.NewRand(12345)))
	assert.Equal(t, a, b)

	c := make([]float64, 50)
	require.NoError(t, weightinit.Fill(c, weightinit.Xavier, 5, 10, nil, weightinit.NewRand(1)))
	assert.NotEqual(t, a, c)
}

func TestFill_XavierUniformBounds(t *testing.T) {
	w := make([]float64, 1000)
	require.NoError(t, weightinit.Fill(w, weightinit.XavierUniform, 4, 2, nil, weightinit.NewRand(7)))
	limit := math.Sqrt(1.0)
	for _, v := range w {
		assert.LessOrEqual(t, math.Abs(v), limit)
	}
}

func TestFill_Constants(t *testing.T) {
	w := []float64{3, 3}
	require.NoError(t, weightinit.Fill(w, weightinit.Zero, 1, 2, nil, weightinit.NewRand(0)))
	assert.Equal(t, []float64{0, 0}, w)
	require.NoError(t, weightinit.Fill(w, weightinit.Ones, 1, 2, nil, weightinit.NewRand(0)))
	assert.Equal(t, []float64{1, 1}, w)
}

func TestFill_Distribution(t *testing.T) {
	w := make([]float64, 20000)
	dist := &conf.Distribution{Kind: "normal", Mean: 2, Std: 0.5}
	require.NoError(t, weightinit.Fill(w, weightinit.Distribution, 10, 10, dist, weightinit.NewRand(3)))
	mean, std := stat.MeanStdDev(w, nil)
	assert.InDelta(t, 2.0, mean, 0.02)
	assert.InDelta(t, 0.5, std, 0.02)

	require.Error(t, weightinit.Fill(w, weightinit.Distribution, 10, 10, nil, weightinit.NewRand(3)))
	require.Error(t, weightinit.Fill(w, weightinit.Distribution, 10, 10,
		&conf.Distribution{Kind: "uniform", Lower: 1, Upper: 0}, weightinit.NewRand(3)))
}

func TestFill_Errors(t *testing.T) {
	w := make([]float64, 4)
	require.Error(t, weightinit.Fill(w, "orthogonal", 2, 2, nil, weightinit.NewRand(0)))
	require.Error(t, weightinit.Fill(w, weightinit.Xavier, 0, 2, nil, weightinit.NewRand(0)))
}
