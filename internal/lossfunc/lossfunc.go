// Package lossfunc implements the loss functions scored by output layers.
//
// A Loss receives the labels, the output layer's pre-activation and its
// activation function. ScoreArray returns one unaveraged loss value per row;
// Gradient returns dL/dZ with respect to the pre-activation, also unaveraged
// (summed over the minibatch by the caller).
package lossfunc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/activation"
)

// Loss is a differentiable per-example loss.
type Loss interface {
	Name() string
	ScoreArray(labels, preOut *mat.Dense, act activation.Activation) []float64
	Gradient(labels, preOut *mat.Dense, act activation.Activation) *mat.Dense
}

const probFloor = 1e-10

func clip(p float64) float64 {
	return math.Min(1, math.Max(probFloor, p))
}

// rowLoss scores one row given labels y and activations a.
type rowLoss func(y, a []float64) float64

// rowGrad writes dL/dA for one row into dst.
type rowGrad func(dst, y, a []float64)

// generic is a loss defined row by row on the activations.
type generic struct {
	name     string
	score    rowLoss
	grad     rowGrad
	shortcut string // activation for which dL/dZ = a - y
}

func (g *generic) Name() string {
	return g.name
}

func (g *generic) ScoreArray(labels, preOut *mat.Dense, act activation.Activation) []float64 {
	a := act.Forward(preOut)
	r, _ := a.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = g.score(labels.RawRowView(i), a.RawRowView(i))
	}
	return out
}

func (g *generic) Gradient(labels, preOut *mat.Dense, act activation.Activation) *mat.Dense {
	a := act.Forward(preOut)
	if g.shortcut != "" && act.Name() == g.shortcut {
		var dz mat.Dense
		dz.Sub(a, labels)
		return &dz
	}
	r, c := a.Dims()
	da := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		g.grad(da.RawRowView(i), labels.RawRowView(i), a.RawRowView(i))
	}
	return act.Backprop(preOut, a, da)
}

func squaredError(y, a []float64) float64 {
	var s float64
	for j := range y {
		d := a[j] - y[j]
		s += d * d
	}
	return s
}

func crossEntropy(y, a []float64) float64 {
	var s float64
	for j := range y {
		if y[j] != 0 {
			s -= y[j] * math.Log(clip(a[j]))
		}
	}
	return s
}

func crossEntropyGrad(dst, y, a []float64) {
	for j := range dst {
		dst[j] = -y[j] / clip(a[j])
	}
}

var registry = map[string]Loss{
	"mse": &generic{
		name: "mse",
		score: func(y, a []float64) float64 {
			return squaredError(y, a) / float64(len(y))
		},
		grad: func(dst, y, a []float64) {
			n := float64(len(y))
			for j := range dst {
				dst[j] = 2 * (a[j] - y[j]) / n
			}
		},
	},
	"l2": &generic{
		name:  "l2",
		score: squaredError,
		grad: func(dst, y, a []float64) {
			for j := range dst {
				dst[j] = 2 * (a[j] - y[j])
			}
		},
	},
	"mcxent": &generic{
		name:     "mcxent",
		score:    crossEntropy,
		grad:     crossEntropyGrad,
		shortcut: "softmax",
	},
	"negativeloglikelihood": &generic{
		name:     "negativeloglikelihood",
		score:    crossEntropy,
		grad:     crossEntropyGrad,
		shortcut: "softmax",
	},
	"xent": &generic{
		name: "xent",
		score: func(y, a []float64) float64 {
			var s float64
			for j := range y {
				p := math.Min(1-probFloor, clip(a[j]))
				s -= y[j]*math.Log(p) + (1-y[j])*math.Log(1-p)
			}
			return s
		},
		grad: func(dst, y, a []float64) {
			for j := range dst {
				p := math.Min(1-probFloor, clip(a[j]))
				dst[j] = (p - y[j]) / (p * (1 - p))
			}
		},
		shortcut: "sigmoid",
	},
	"cosine_proximity": &generic{
		name: "cosine_proximity",
		score: func(y, a []float64) float64 {
			ny, na := floats.Norm(y, 2), floats.Norm(a, 2)
			if ny == 0 || na == 0 {
				return 0
			}
			return -floats.Dot(y, a) / (ny * na)
		},
		grad: func(dst, y, a []float64) {
			ny, na := floats.Norm(y, 2), floats.Norm(a, 2)
			if ny == 0 || na == 0 {
				floats.Scale(0, dst)
				return
			}
			dot := floats.Dot(y, a)
			for j := range dst {
				dst[j] = -(y[j]/(ny*na) - dot*a[j]/(ny*na*na*na))
			}
		},
	},
	"kl_divergence": &generic{
		name: "kl_divergence",
		score: func(y, a []float64) float64 {
			var s float64
			for j := range y {
				if y[j] > 0 {
					s += y[j] * math.Log(clip(y[j])/clip(a[j]))
				}
			}
			return s
		},
		grad: crossEntropyGrad,
	},
}

// Get returns the loss registered under name.
func Get(name string) (Loss, error) {
	l, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown loss function %q", name)
	}
	return l, nil
}
