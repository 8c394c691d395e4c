package params_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/nnerr"
	"github.com/born-ml/multilayer/internal/params"
)

func newStore() *params.Store {
	return params.New([][]params.Spec{
		{{Name: "vb", Rows: 1, Cols: 4, PretrainOnly: true, Bias: true}, {Name: "b", Rows: 1, Cols: 3, Bias: true}, {Name: "W", Rows: 4, Cols: 3}},
		{{Name: "W", Rows: 3, Cols: 2}, {Name: "b", Rows: 1, Cols: 2, Bias: true}},
	})
}

func TestStore_Layout(t *testing.T) {
	s := newStore()
	assert.Equal(t, []string{"0_W", "0_b", "0_vb", "1_W", "1_b"}, s.Keys())
	assert.Equal(t, 12+3+4+6+2, s.Len())
	assert.Equal(t, 12+3+6+2, s.NumParams(true))
	assert.Equal(t, s.Len(), s.NumParams(false))

	v, ok := s.Lookup("1_W")
	require.True(t, ok)
	assert.Equal(t, 19, v.Offset)
}

func TestStore_ViewsAliasArena(t *testing.T) {
	s := newStore()
	w, err := s.Param("1_W")
	require.NoError(t, err)
	w.Set(0, 1, 42)
	assert.Equal(t, 42.0, s.Params().At(0, 20))

	flat := s.Params()
	flat.Set(0, 0, -7)
	w0, _ := s.Param("0_W")
	assert.Equal(t, -7.0, w0.At(0, 0))

	g, _ := s.GradView("0_b")
	g.Set(0, 2, 3)
	assert.Equal(t, 3.0, s.Gradients().At(0, 14))
	s.ZeroGrads()
	assert.Equal(t, 0.0, g.At(0, 2))
}

func TestStore_SetParamsRoundTrip(t *testing.T) {
	s := newStore()
	for i := range s.Arena() {
		s.Arena()[i] = float64(i) * 0.1
	}
	before := map[string]*mat.Dense{}
	for _, k := range s.Keys() {
		p, _ := s.Param(k)
		before[k] = mat.DenseCopyOf(p)
	}

	require.NoError(t, s.SetParams(s.Params()))
	require.NoError(t, s.SetParams(mat.DenseCopyOf(s.Params())))

	for _, k := range s.Keys() {
		p, _ := s.Param(k)
		assert.True(t, mat.Equal(before[k], p), k)
	}
}

func TestStore_SetParamsShape(t *testing.T) {
	s := newStore()
	err := s.SetParams(mat.NewDense(1, 3, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, nnerr.ErrShapeMismatch))
}

func TestStore_SetParam(t *testing.T) {
	s := newStore()
	require.NoError(t, s.SetParam("1_b", mat.NewDense(1, 2, []float64{5, 6})))
	assert.Equal(t, []float64{5, 6}, s.Arena()[25:27])

	err := s.SetParam("1_b", mat.NewDense(2, 1, []float64{5, 6}))
	assert.True(t, errors.Is(err, nnerr.ErrShapeMismatch))

	err = s.SetParam("3_W", mat.NewDense(1, 1, nil))
	assert.True(t, errors.Is(err, nnerr.ErrUnknownParam))
}

func TestStore_LayerParams(t *testing.T) {
	s := newStore()
	views := s.LayerParams(0)
	require.Len(t, views, 3)
	assert.Equal(t, "W", views[0].Spec.Name)
	assert.Equal(t, "vb", views[2].Spec.Name)
	assert.Nil(t, s.LayerParams(5))
}

func TestParseKey(t *testing.T) {
	layer, name, err := params.ParseKey("12_vb")
	require.NoError(t, err)
	assert.Equal(t, 12, layer)
	assert.Equal(t, "vb", name)

	for _, bad := range []string{"W", "x_W", "-1_W", "3_"} {
		_, _, err := params.ParseKey(bad)
		assert.True(t, errors.Is(err, nnerr.ErrUnknownParam), bad)
	}
}
