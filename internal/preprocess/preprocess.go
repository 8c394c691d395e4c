// Package preprocess implements the input preprocessors that run between
// layers of a network.
package preprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/nnerr"
)

// Preprocessor transforms the activations entering a layer.
type Preprocessor interface {
	// PreProcess transforms x. It may cache what Backprop needs.
	PreProcess(x *mat.Dense) (*mat.Dense, error)
	// Backprop maps the gradient w.r.t. the output back to the input.
	Backprop(eps *mat.Dense) (*mat.Dense, error)
}

// New returns the preprocessor described by c.
func New(c conf.PreprocessorConfig) (Preprocessor, error) {
	switch c.Type {
	case conf.PreCnnToFeedForward, conf.PreFeedForwardToCnn:
		return &Reshape{Kind: c.Type, Height: c.Height, Width: c.Width, Depth: c.Depth}, nil
	case conf.PreZeroMean:
		return &ZeroMean{}, nil
	case conf.PreUnitVariance:
		return &UnitVariance{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown preprocessor %q", nnerr.ErrInvalidConfig, c.Type)
	}
}

// Reshape converts between image and feed-forward layouts. Both layouts are
// the same flat channel-major row, so only the width is validated.
type Reshape struct {
	Kind                 string
	Height, Width, Depth int
}

func (r *Reshape) check(m *mat.Dense, op string) error {
	want := r.Height * r.Width * r.Depth
	if _, c := m.Dims(); c != want {
		return nnerr.Columns(fmt.Sprintf("preprocess %s: %s", r.Kind, op), want, c)
	}
	return nil
}

// PreProcess validates the width and returns x unchanged.
func (r *Reshape) PreProcess(x *mat.Dense) (*mat.Dense, error) {
	if err := r.check(x, "forward"); err != nil {
		return nil, err
	}
	return x, nil
}

// Backprop validates the width and returns eps unchanged.
func (r *Reshape) Backprop(eps *mat.Dense) (*mat.Dense, error) {
	if err := r.check(eps, "backprop"); err != nil {
		return nil, err
	}
	return eps, nil
}

// ZeroMean subtracts the minibatch mean of every column.
type ZeroMean struct{}

// PreProcess returns x with every column centered.
func (ZeroMean) PreProcess(x *mat.Dense) (*mat.Dense, error) {
	return center(x), nil
}

// Backprop centers the gradient, the exact derivative of centering.
func (ZeroMean) Backprop(eps *mat.Dense) (*mat.Dense, error) {
	return center(eps), nil
}

func center(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.DenseCopyOf(m)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		var mean float64
		for _, v := range col {
			mean += v
		}
		mean /= float64(r)
		for i := 0; i < r; i++ {
			out.Set(i, j, col[i]-mean)
		}
	}
	return out
}

// UnitVariance divides every column by its minibatch standard deviation.
// The scale is treated as a constant during backprop.
type UnitVariance struct {
	std []float64
}

// PreProcess scales every column to unit variance.
func (u *UnitVariance) PreProcess(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	u.std = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		var mean, ss float64
		for _, v := range col {
			mean += v
		}
		mean /= float64(r)
		for _, v := range col {
			ss += (v - mean) * (v - mean)
		}
		s := math.Sqrt(ss / float64(r))
		if s == 0 {
			s = 1
		}
		u.std[j] = s
	}
	return scaleColumns(x, u.std), nil
}

// Backprop divides the gradient by the cached scale.
func (u *UnitVariance) Backprop(eps *mat.Dense) (*mat.Dense, error) {
	if u.std == nil {
		return nil, fmt.Errorf("preprocess unit_variance: %w", nnerr.ErrNoForwardPass)
	}
	if _, c := eps.Dims(); c != len(u.std) {
		return nil, nnerr.Columns("preprocess unit_variance: backprop", len(u.std), c)
	}
	return scaleColumns(eps, u.std), nil
}

func scaleColumns(m *mat.Dense, div []float64) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 { return v / div[j] }, m)
	return &out
}
