package layers

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/gradient"
	"github.com/born-ml/multilayer/internal/nnerr"
	"github.com/born-ml/multilayer/internal/params"
)

// BatchNormLayer normalizes every column to zero mean and unit variance,
// then scales by gamma and shifts by beta.
//
// In training mode the statistics of the current minibatch are used and the
// running mean and variance are updated with the configured decay. In
// inference mode the running statistics are used.
type BatchNormLayer struct {
	base

	runningMean []float64
	runningVar  []float64

	// cached by the last forward pass
	xHat     *mat.Dense
	invStd   []float64
	training bool
}

func newBatchNorm(b base) *BatchNormLayer {
	n := b.cfg.NOut
	l := &BatchNormLayer{
		base:        b,
		runningMean: make([]float64, n),
		runningVar:  make([]float64, n),
	}
	for i := range l.runningVar {
		l.runningVar[i] = 1
	}
	return l
}

// ParamSpecs returns beta and gamma, both [1, n].
func (l *BatchNormLayer) ParamSpecs() []params.Spec {
	return []params.Spec{
		{Name: "beta", Rows: 1, Cols: l.cfg.NOut, Bias: true},
		{Name: "gamma", Rows: 1, Cols: l.cfg.NOut, Bias: true},
	}
}

// InitParams sets gamma to one and beta to zero.
func (l *BatchNormLayer) InitParams(rng *rand.Rand) error {
	return l.initParams(rng, l.cfg.NIn, l.cfg.NOut)
}

// Activate normalizes the input and applies the activation.
func (l *BatchNormLayer) Activate(input *mat.Dense, training bool) (*mat.Dense, error) {
	if err := l.checkColumns(input, l.cfg.NIn); err != nil {
		return nil, err
	}
	rows, cols := input.Dims()
	mean, variance := l.runningMean, l.runningVar
	if training {
		mean, variance = columnMoments(input)
		decay := l.cfg.Decay
		for j := 0; j < cols; j++ {
			l.runningMean[j] = decay*l.runningMean[j] + (1-decay)*mean[j]
			l.runningVar[j] = decay*l.runningVar[j] + (1-decay)*variance[j]
		}
	}

	l.invStd = make([]float64, cols)
	for j := range l.invStd {
		l.invStd[j] = 1 / math.Sqrt(variance[j]+l.cfg.Eps)
	}
	gamma := l.params["gamma"].RawRowView(0)
	beta := l.params["beta"].RawRowView(0)

	l.xHat = mat.NewDense(rows, cols, nil)
	pre := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		x := input.RawRowView(i)
		xh := l.xHat.RawRowView(i)
		p := pre.RawRowView(i)
		for j := range x {
			xh[j] = (x[j] - mean[j]) * l.invStd[j]
			p[j] = gamma[j]*xh[j] + beta[j]
		}
	}
	l.training = training
	l.input = input
	l.preOut = pre
	l.output = l.act.Forward(pre)
	return l.output, nil
}

// Backprop returns the beta and gamma gradients and dL/dX.
func (l *BatchNormLayer) Backprop(epsilon *mat.Dense) (*gradient.Gradient, *mat.Dense, error) {
	if err := l.requireForward(); err != nil {
		return nil, nil, err
	}
	rows, cols := l.output.Dims()
	if er, ec := epsilon.Dims(); er != rows || ec != cols {
		return nil, nil, shapeErr(l.index, "backprop", rows, cols, er, ec)
	}
	dy := l.act.Backprop(l.preOut, l.output, epsilon)
	gamma := l.params["gamma"].RawRowView(0)

	columnSums(l.grads["beta"], dy)
	var dyXHat mat.Dense
	dyXHat.MulElem(dy, l.xHat)
	columnSums(l.grads["gamma"], &dyXHat)

	epsOut := mat.NewDense(rows, cols, nil)
	if !l.training {
		for i := 0; i < rows; i++ {
			d, out := dy.RawRowView(i), epsOut.RawRowView(i)
			for j := range out {
				out[j] = d[j] * gamma[j] * l.invStd[j]
			}
		}
		return l.layerGradient("beta", "gamma"), epsOut, nil
	}

	sumDy := l.grads["beta"].RawRowView(0)
	sumDyXHat := l.grads["gamma"].RawRowView(0)
	n := float64(rows)
	for i := 0; i < rows; i++ {
		d, xh, out := dy.RawRowView(i), l.xHat.RawRowView(i), epsOut.RawRowView(i)
		for j := range out {
			out[j] = gamma[j] * l.invStd[j] / n * (n*d[j] - sumDy[j] - xh[j]*sumDyXHat[j])
		}
	}
	return l.layerGradient("beta", "gamma"), epsOut, nil
}

// Clear drops the cached activations and statistics.
func (l *BatchNormLayer) Clear() {
	l.base.Clear()
	l.xHat, l.invStd = nil, nil
}

// State returns copies of the running mean and variance.
func (l *BatchNormLayer) State() map[string][]float64 {
	return map[string][]float64{
		"mean": append([]float64(nil), l.runningMean...),
		"var":  append([]float64(nil), l.runningVar...),
	}
}

// LoadState restores the running statistics.
func (l *BatchNormLayer) LoadState(state map[string][]float64) error {
	mean, okM := state["mean"]
	variance, okV := state["var"]
	if !okM || !okV {
		return fmt.Errorf("layer %d: batch_norm state needs mean and var", l.index)
	}
	if len(mean) != len(l.runningMean) || len(variance) != len(l.runningVar) {
		return &nnerr.ShapeError{
			Op:   fmt.Sprintf("layer %d: load batch_norm state", l.index),
			Want: fmt.Sprintf("%d values", len(l.runningMean)),
			Got:  fmt.Sprintf("%d/%d values", len(mean), len(variance)),
		}
	}
	copy(l.runningMean, mean)
	copy(l.runningVar, variance)
	return nil
}

// columnMoments returns the per-column mean and biased variance of m.
func columnMoments(m *mat.Dense) (mean, variance []float64) {
	rows, cols := m.Dims()
	mean = make([]float64, cols)
	variance = make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j, v := range m.RawRowView(i) {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(rows)
	}
	for i := 0; i < rows; i++ {
		for j, v := range m.RawRowView(i) {
			d := v - mean[j]
			variance[j] += d * d
		}
	}
	for j := range variance {
		variance[j] /= float64(rows)
	}
	return mean, variance
}

var _ Stateful = (*BatchNormLayer)(nil)
