// Package activation implements the element-wise and row-wise activation
// functions used by layers.
//
// Every activation exposes a forward map Z -> A and a backward map that turns
// the gradient with respect to A into the gradient with respect to Z:
//
//	act, _ := activation.Get("tanh")
//	a := act.Forward(z)
//	dz := act.Backprop(z, a, da)
package activation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Activation is a differentiable transfer function.
type Activation interface {
	// Name returns the identifier used in configurations.
	Name() string

	// Forward returns f(z) as a new matrix.
	Forward(z *mat.Dense) *mat.Dense

	// Backprop returns dL/dZ given the pre-activation z, the activation a = f(z)
	// and eps = dL/dA. The result is a new matrix shaped like z.
	Backprop(z, a, eps *mat.Dense) *mat.Dense
}

// elementwise is an activation applied independently to every element.
type elementwise struct {
	name string
	f    func(z float64) float64
	df   func(z, a float64) float64 // derivative df/dz expressed with z and a = f(z)
}

func (e *elementwise) Name() string {
	return e.name
}

func (e *elementwise) Forward(z *mat.Dense) *mat.Dense {
	var a mat.Dense
	a.Apply(func(_, _ int, v float64) float64 { return e.f(v) }, z)
	return &a
}

func (e *elementwise) Backprop(z, a, eps *mat.Dense) *mat.Dense {
	var dz mat.Dense
	dz.Apply(func(i, j int, v float64) float64 {
		return v * e.df(z.At(i, j), a.At(i, j))
	}, eps)
	return &dz
}

// Softmax normalizes every row into a probability distribution.
type Softmax struct{}

// Name returns "softmax".
func (Softmax) Name() string {
	return "softmax"
}

// Forward computes a numerically stable row-wise softmax.
func (Softmax) Forward(z *mat.Dense) *mat.Dense {
	r, c := z.Dims()
	a := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src := z.RawRowView(i)
		dst := a.RawRowView(i)
		maxV := floats.Max(src)
		for j, v := range src {
			dst[j] = math.Exp(v - maxV)
		}
		floats.Scale(1/floats.Sum(dst), dst)
	}
	return a
}

// Backprop applies the softmax Jacobian row by row: dz = a ⊙ (eps - <eps, a>).
func (Softmax) Backprop(_, a, eps *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	dz := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		ar := a.RawRowView(i)
		er := eps.RawRowView(i)
		dot := floats.Dot(ar, er)
		dst := dz.RawRowView(i)
		for j := range dst {
			dst[j] = ar[j] * (er[j] - dot)
		}
	}
	return dz
}

// Sigmoid returns the logistic function 1 / (1 + e^-z).
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

var registry = map[string]Activation{
	"identity": &elementwise{
		name: "identity",
		f:    func(z float64) float64 { return z },
		df:   func(_, _ float64) float64 { return 1 },
	},
	"sigmoid": &elementwise{
		name: "sigmoid",
		f:    Sigmoid,
		df:   func(_, a float64) float64 { return a * (1 - a) },
	},
	"tanh": &elementwise{
		name: "tanh",
		f:    math.Tanh,
		df:   func(_, a float64) float64 { return 1 - a*a },
	},
	"relu": &elementwise{
		name: "relu",
		f:    func(z float64) float64 { return math.Max(0, z) },
		df: func(z, _ float64) float64 {
			if z > 0 {
				return 1
			}
			return 0
		},
	},
	"leakyrelu": &elementwise{
		name: "leakyrelu",
		f: func(z float64) float64 {
			if z > 0 {
				return z
			}
			return 0.01 * z
		},
		df: func(z, _ float64) float64 {
			if z > 0 {
				return 1
			}
			return 0.01
		},
	},
	"softplus": &elementwise{
		name: "softplus",
		f:    func(z float64) float64 { return math.Log1p(math.Exp(z)) },
		df:   func(z, _ float64) float64 { return Sigmoid(z) },
	},
	"softsign": &elementwise{
		name: "softsign",
		f:    func(z float64) float64 { return z / (1 + math.Abs(z)) },
		df: func(z, _ float64) float64 {
			d := 1 + math.Abs(z)
			return 1 / (d * d)
		},
	},
	"hardtanh": &elementwise{
		name: "hardtanh",
		f:    func(z float64) float64 { return math.Max(-1, math.Min(1, z)) },
		df: func(z, _ float64) float64 {
			if z > -1 && z < 1 {
				return 1
			}
			return 0
		},
	},
	"softmax": Softmax{},
}

// Get returns the activation registered under name.
func Get(name string) (Activation, error) {
	act, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown activation %q", name)
	}
	return act, nil
}

// Names returns every registered activation identifier.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
