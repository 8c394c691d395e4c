package layers

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/gradient"
	"github.com/born-ml/multilayer/internal/nnerr"
	"github.com/born-ml/multilayer/internal/params"
)

// RecurrentLayer is a simple recurrent layer:
//
//	h_t = f(x_t·W + h_{t-1}·RW + b),  h_{-1} = 0
//
// Sequences are time-major: row t*miniBatch+i holds example i at step t.
// With a truncated BPTT length k the recurrent gradient does not flow across
// segment boundaries (every k steps). Truncation affects the gradient only:
// the forward pass still runs over the whole sequence and the network
// applies one update per minibatch, not one per segment.
type RecurrentLayer struct {
	base
	miniBatch int
}

// ParamSpecs returns RW [nOut, nOut], W [nIn, nOut] and b [1, nOut].
func (l *RecurrentLayer) ParamSpecs() []params.Spec {
	return []params.Spec{
		{Name: "RW", Rows: l.cfg.NOut, Cols: l.cfg.NOut},
		{Name: "W", Rows: l.cfg.NIn, Cols: l.cfg.NOut},
		{Name: "b", Rows: 1, Cols: l.cfg.NOut, Bias: true},
	}
}

// InitParams initializes W and RW with the configured scheme.
func (l *RecurrentLayer) InitParams(rng *rand.Rand) error {
	return l.initParams(rng, l.cfg.NIn, l.cfg.NOut)
}

func (l *RecurrentLayer) timeSteps() int {
	if l.cfg.TimeSteps > 0 {
		return l.cfg.TimeSteps
	}
	return 1
}

func rowBlock(m *mat.Dense, t, miniBatch int) *mat.Dense {
	_, c := m.Dims()
	return m.Slice(t*miniBatch, (t+1)*miniBatch, 0, c).(*mat.Dense)
}

// Activate runs the recurrence over every time step.
func (l *RecurrentLayer) Activate(input *mat.Dense, _ bool) (*mat.Dense, error) {
	if err := l.checkColumns(input, l.cfg.NIn); err != nil {
		return nil, err
	}
	rows, _ := input.Dims()
	steps := l.timeSteps()
	if rows%steps != 0 {
		return nil, &nnerr.ShapeError{
			Op:   fmt.Sprintf("layer %d (rnn): activate", l.index),
			Want: fmt.Sprintf("rows divisible by %d time steps", steps),
			Got:  fmt.Sprintf("%d rows", rows),
		}
	}
	mb := rows / steps
	w, rw, b := l.params["W"], l.params["RW"], l.params["b"]

	pre := mat.NewDense(rows, l.cfg.NOut, nil)
	out := mat.NewDense(rows, l.cfg.NOut, nil)
	for t := 0; t < steps; t++ {
		z := rowBlock(pre, t, mb)
		z.Mul(rowBlock(input, t, mb), w)
		if t > 0 {
			var rec mat.Dense
			rec.Mul(rowBlock(out, t-1, mb), rw)
			z.Add(z, &rec)
		}
		addRowVector(z, b)
		rowBlock(out, t, mb).Copy(l.act.Forward(z))
	}

	l.miniBatch = mb
	l.input, l.preOut, l.output = input, pre, out
	return out, nil
}

// Backprop runs backpropagation through time.
func (l *RecurrentLayer) Backprop(epsilon *mat.Dense) (*gradient.Gradient, *mat.Dense, error) {
	if err := l.requireForward(); err != nil {
		return nil, nil, err
	}
	rows, cols := l.output.Dims()
	if er, ec := epsilon.Dims(); er != rows || ec != cols {
		return nil, nil, shapeErr(l.index, "backprop", rows, cols, er, ec)
	}
	mb, steps := l.miniBatch, rows/l.miniBatch
	w, rw := l.params["W"], l.params["RW"]
	gw, grw, gb := l.grads["W"], l.grads["RW"], l.grads["b"]
	gw.Zero()
	grw.Zero()
	gb.Zero()

	epsOut := mat.NewDense(rows, l.cfg.NIn, nil)
	bias := mat.NewDense(1, cols, nil)
	var carry *mat.Dense // dL/dh_t flowing back from step t+1
	for t := steps - 1; t >= 0; t-- {
		dh := mat.DenseCopyOf(rowBlock(epsilon, t, mb))
		if carry != nil {
			dh.Add(dh, carry)
		}
		dz := l.act.Backprop(rowBlock(l.preOut, t, mb), rowBlock(l.output, t, mb), dh)

		addMul(gw, rowBlock(l.input, t, mb).T(), dz)
		columnSums(bias, dz)
		gb.Add(gb, bias)
		rowBlock(epsOut, t, mb).Mul(dz, w.T())

		carry = nil
		if t == 0 {
			continue
		}
		addMul(grw, rowBlock(l.output, t-1, mb).T(), dz)
		if k := l.cfg.TBPTTLength; k > 0 && t%k == 0 {
			continue
		}
		carry = mat.NewDense(mb, cols, nil)
		carry.Mul(dz, rw.T())
	}
	return l.layerGradient("RW", "W", "b"), epsOut, nil
}

// addMul accumulates a·b into dst.
func addMul(dst *mat.Dense, a, b mat.Matrix) {
	var tmp mat.Dense
	tmp.Mul(a, b)
	dst.Add(dst, &tmp)
}
