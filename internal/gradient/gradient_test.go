package gradient_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/gradient"
)

func TestGradient_Order(t *testing.T) {
	g := gradient.New()
	g.Set("1_W", mat.NewDense(1, 1, []float64{1}))
	g.Set("0_W", mat.NewDense(1, 1, []float64{2}))
	g.Set("1_W", mat.NewDense(1, 1, []float64{3}))

	assert.Equal(t, []string{"1_W", "0_W"}, g.Keys())
	assert.Equal(t, 2, g.Len())
	m, ok := g.Get("1_W")
	require.True(t, ok)
	assert.Equal(t, 3.0, m.At(0, 0))
	_, ok = g.Get("2_W")
	assert.False(t, ok)
}

func TestGradient_FlattenedCopy(t *testing.T) {
	g := gradient.New()
	g.Set("0_W", mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	g.Set("0_b", mat.NewDense(1, 2, []float64{5, 6}))

	flat := g.Flattened()
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, flat.RawRowView(0))

	flat.Set(0, 0, 100)
	w, _ := g.Get("0_W")
	assert.Equal(t, 1.0, w.At(0, 0))
}

func TestGradient_FlattenedAliasesArena(t *testing.T) {
	arena := []float64{1, 2, 3, 4, 5, 6}
	g := gradient.New()
	g.SetView("0_W", mat.NewDense(2, 2, arena[0:4:4]), arena, 0)
	g.SetView("0_b", mat.NewDense(1, 2, arena[4:6:6]), arena, 4)

	flat := g.Flattened()
	flat.Set(0, 5, -1)
	assert.Equal(t, -1.0, arena[5])
}

func TestGradient_NonContiguousViewsAreCopied(t *testing.T) {
	arena := []float64{1, 2, 3, 4, 5, 6}
	g := gradient.New()
	g.SetView("1_b", mat.NewDense(1, 2, arena[4:6:6]), arena, 4)
	g.SetView("1_W", mat.NewDense(2, 2, arena[0:4:4]), arena, 0)

	flat := g.Flattened()
	assert.Equal(t, []float64{5, 6, 1, 2, 3, 4}, flat.RawRowView(0))
	flat.Set(0, 0, 0)
	assert.Equal(t, 1.0, arena[0])
}

func TestGradient_Merge(t *testing.T) {
	layer := gradient.New()
	layer.Set("W", mat.NewDense(1, 1, []float64{1}))
	layer.Set("b", mat.NewDense(1, 1, []float64{2}))

	g := gradient.New()
	g.Merge(3, layer)
	assert.Equal(t, []string{"3_W", "3_b"}, g.Keys())
	assert.Equal(t, 2, g.NumElements())
	assert.Nil(t, gradient.New().Flattened())
}

func TestGradient_Clone(t *testing.T) {
	src := mat.NewDense(1, 2, []float64{1, 2})
	g := gradient.New()
	g.Set("0_b", src)
	c := g.Clone()
	src.Set(0, 0, 9)
	m, _ := c.Get("0_b")
	assert.Equal(t, 1.0, m.At(0, 0))
}
