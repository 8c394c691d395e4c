// Package params implements the parameter arena shared by every layer.
//
// A Store owns two flat buffers of equal length: the parameter arena and the
// gradient arena. Every named layer parameter is a *mat.Dense view over a
// disjoint contiguous range of those buffers, so writing through a view is
// visible in the flat vector and vice versa:
//
//	store := params.New([][]params.Spec{
//	    {{Name: "W", Rows: 4, Cols: 3}, {Name: "b", Rows: 1, Cols: 3}},
//	})
//	w, _ := store.Param("0_W")
//	w.Set(0, 0, 1)              // store.Params().At(0, 0) == 1
//
// Ranges are laid out layer by layer; within a layer parameters are sorted by
// name (byte order) so the layout is deterministic.
package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/nnerr"
)

// Spec declares one named parameter of a layer.
type Spec struct {
	Name         string
	Rows, Cols   int
	PretrainOnly bool // excluded from NumParams(true), e.g. a visible bias
	Bias         bool // regularized with the bias coefficients
}

// Size returns Rows*Cols.
func (s Spec) Size() int {
	return s.Rows * s.Cols
}

// View is one bound parameter of a layer.
type View struct {
	Key    string
	Layer  int
	Spec   Spec
	Offset int
	Param  *mat.Dense
	Grad   *mat.Dense
}

// Store is the parameter and gradient arena of one network.
type Store struct {
	params []float64
	grads  []float64
	views  []View
	index  map[string]int
	layers [][]int // view indices per layer
}

// Key builds the composite key "<layer>_<name>".
func Key(layer int, name string) string {
	return strconv.Itoa(layer) + "_" + name
}

// ParseKey splits a composite key into its layer index and parameter name.
func ParseKey(key string) (int, string, error) {
	idx, name, ok := strings.Cut(key, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("%w: malformed key %q", nnerr.ErrUnknownParam, key)
	}
	layer, err := strconv.Atoi(idx)
	if err != nil || layer < 0 {
		return 0, "", fmt.Errorf("%w: malformed key %q", nnerr.ErrUnknownParam, key)
	}
	return layer, name, nil
}

// New allocates the arenas for the given per-layer parameter specs.
func New(layers [][]Spec) *Store {
	total := 0
	for _, specs := range layers {
		for _, sp := range specs {
			total += sp.Size()
		}
	}

	s := &Store{
		params: make([]float64, total),
		grads:  make([]float64, total),
		index:  make(map[string]int),
		layers: make([][]int, len(layers)),
	}

	off := 0
	for i, specs := range layers {
		sorted := append([]Spec(nil), specs...)
		sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Name < sorted[b].Name })
		for _, sp := range sorted {
			n := sp.Size()
			key := Key(i, sp.Name)
			v := View{
				Key:    key,
				Layer:  i,
				Spec:   sp,
				Offset: off,
				Param:  mat.NewDense(sp.Rows, sp.Cols, s.params[off:off+n:off+n]),
				Grad:   mat.NewDense(sp.Rows, sp.Cols, s.grads[off:off+n:off+n]),
			}
			s.index[key] = len(s.views)
			s.layers[i] = append(s.layers[i], len(s.views))
			s.views = append(s.views, v)
			off += n
		}
	}
	return s
}

// Len returns the total number of parameters, pretrain-only ones included.
func (s *Store) Len() int {
	return len(s.params)
}

// NumParams counts parameters; backpropOnly excludes pretrain-only entries.
func (s *Store) NumParams(backpropOnly bool) int {
	if !backpropOnly {
		return len(s.params)
	}
	n := 0
	for _, v := range s.views {
		if !v.Spec.PretrainOnly {
			n += v.Spec.Size()
		}
	}
	return n
}

// Params returns a 1×N matrix aliasing the parameter arena.
func (s *Store) Params() *mat.Dense {
	if len(s.params) == 0 {
		return nil
	}
	return mat.NewDense(1, len(s.params), s.params)
}

// Gradients returns a 1×N matrix aliasing the gradient arena.
func (s *Store) Gradients() *mat.Dense {
	if len(s.grads) == 0 {
		return nil
	}
	return mat.NewDense(1, len(s.grads), s.grads)
}

// Arena returns the raw parameter buffer.
func (s *Store) Arena() []float64 {
	return s.params
}

// GradArena returns the raw gradient buffer.
func (s *Store) GradArena() []float64 {
	return s.grads
}

// SetParams copies m (row-major, any shape with N elements) into the arena.
func (s *Store) SetParams(m mat.Matrix) error {
	r, c := m.Dims()
	if r*c != len(s.params) {
		return &nnerr.ShapeError{
			Op:   "params: set params",
			Want: fmt.Sprintf("%d elements", len(s.params)),
			Got:  fmt.Sprintf("%d elements ([%d, %d])", r*c, r, c),
		}
	}
	if d, ok := m.(*mat.Dense); ok && r == 1 {
		copy(s.params, d.RawRowView(0))
		return nil
	}
	k := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			s.params[k] = m.At(i, j)
			k++
		}
	}
	return nil
}

func (s *Store) lookup(key string) (*View, error) {
	i, ok := s.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", nnerr.ErrUnknownParam, key)
	}
	return &s.views[i], nil
}

// Param returns the view bound to key.
func (s *Store) Param(key string) (*mat.Dense, error) {
	v, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return v.Param, nil
}

// GradView returns the gradient view bound to key.
func (s *Store) GradView(key string) (*mat.Dense, error) {
	v, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return v.Grad, nil
}

// Lookup returns the full view record for key.
func (s *Store) Lookup(key string) (View, bool) {
	i, ok := s.index[key]
	if !ok {
		return View{}, false
	}
	return s.views[i], true
}

// SetParam copies m into the view bound to key.
func (s *Store) SetParam(key string, m mat.Matrix) error {
	v, err := s.lookup(key)
	if err != nil {
		return err
	}
	r, c := m.Dims()
	if r != v.Spec.Rows || c != v.Spec.Cols {
		return nnerr.Shape("params: set "+key, v.Spec.Rows, v.Spec.Cols, r, c)
	}
	v.Param.Copy(m)
	return nil
}

// LayerParams returns the views of layer i in canonical order.
func (s *Store) LayerParams(i int) []View {
	if i < 0 || i >= len(s.layers) {
		return nil
	}
	out := make([]View, len(s.layers[i]))
	for k, idx := range s.layers[i] {
		out[k] = s.views[idx]
	}
	return out
}

// NumLayers returns the number of layers the store was built for.
func (s *Store) NumLayers() int {
	return len(s.layers)
}

// Keys returns every composite key in canonical order.
func (s *Store) Keys() []string {
	keys := make([]string, len(s.views))
	for i, v := range s.views {
		keys[i] = v.Key
	}
	return keys
}

// ZeroGrads clears the gradient arena.
func (s *Store) ZeroGrads() {
	clear(s.grads)
}
