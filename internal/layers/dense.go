package layers

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/gradient"
	"github.com/born-ml/multilayer/internal/params"
)

// DenseLayer is a fully connected layer: A = f(X·W + b).
type DenseLayer struct {
	base
}

// ParamSpecs returns W [nIn, nOut] and b [1, nOut].
func (l *DenseLayer) ParamSpecs() []params.Spec {
	return []params.Spec{
		{Name: "W", Rows: l.cfg.NIn, Cols: l.cfg.NOut},
		{Name: "b", Rows: 1, Cols: l.cfg.NOut, Bias: true},
	}
}

// InitParams draws W from the configured scheme and zeroes the biases.
func (l *DenseLayer) InitParams(rng *rand.Rand) error {
	return l.initParams(rng, l.cfg.NIn, l.cfg.NOut)
}

// Activate computes f(X·W + b).
func (l *DenseLayer) Activate(input *mat.Dense, _ bool) (*mat.Dense, error) {
	if err := l.checkColumns(input, l.cfg.NIn); err != nil {
		return nil, err
	}
	l.input = input
	l.preOut = affine(input, l.params["W"], l.params["b"])
	l.output = l.act.Forward(l.preOut)
	return l.output, nil
}

// Backprop applies the activation derivative and the affine chain rule.
func (l *DenseLayer) Backprop(epsilon *mat.Dense) (*gradient.Gradient, *mat.Dense, error) {
	if err := l.requireForward(); err != nil {
		return nil, nil, err
	}
	r, c := l.output.Dims()
	if er, ec := epsilon.Dims(); er != r || ec != c {
		return nil, nil, shapeErr(l.index, "backprop", r, c, er, ec)
	}
	delta := l.act.Backprop(l.preOut, l.output, epsilon)
	return l.backpropDelta(delta)
}

// backpropDelta takes delta = dL/dZ and fills the W and b gradients.
func (l *DenseLayer) backpropDelta(delta *mat.Dense) (*gradient.Gradient, *mat.Dense, error) {
	l.grads["W"].Mul(l.input.T(), delta)
	columnSums(l.grads["b"], delta)

	var epsOut mat.Dense
	epsOut.Mul(delta, l.params["W"].T())
	return l.layerGradient("W", "b"), &epsOut, nil
}
