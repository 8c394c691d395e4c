// Package weightinit fills freshly allocated weight arenas.
package weightinit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/multilayer/internal/conf"
)

// Scheme names.
const (
	Xavier        = "xavier"
	XavierUniform = "xavier_uniform"
	ReLU          = "relu"
	Uniform       = "uniform"
	Zero          = "zero"
	Ones          = "ones"
	Distribution  = "distribution"
)

// NewRand returns the deterministic generator used for a given network seed.
func NewRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// Fill writes initial weights into dst according to scheme.
//
// fanIn and fanOut are the layer's input and output widths; dist is only
// consulted by the "distribution" scheme.
func Fill(dst []float64, scheme string, fanIn, fanOut int, dist *conf.Distribution, rng *rand.Rand) error {
	if fanIn <= 0 || fanOut <= 0 {
		return fmt.Errorf("weightinit: invalid fan-in/fan-out %d/%d", fanIn, fanOut)
	}
	fin, fout := float64(fanIn), float64(fanOut)

	switch scheme {
	case Xavier:
		normal(dst, 0, math.Sqrt(2/(fin+fout)), rng)
	case XavierUniform:
		s := math.Sqrt(6 / (fin + fout))
		uniform(dst, -s, s, rng)
	case ReLU:
		normal(dst, 0, math.Sqrt(2/fin), rng)
	case Uniform:
		a := 1 / math.Sqrt(fin)
		uniform(dst, -a, a, rng)
	case Zero:
		constant(dst, 0)
	case Ones:
		constant(dst, 1)
	case Distribution:
		if dist == nil {
			return fmt.Errorf("weightinit: scheme %q needs a distribution", scheme)
		}
		switch dist.Kind {
		case "normal", "gaussian":
			normal(dst, dist.Mean, dist.Std, rng)
		case "uniform":
			if dist.Upper <= dist.Lower {
				return fmt.Errorf("weightinit: uniform distribution needs lower < upper")
			}
			uniform(dst, dist.Lower, dist.Upper, rng)
		default:
			return fmt.Errorf("weightinit: unknown distribution %q", dist.Kind)
		}
	default:
		return fmt.Errorf("weightinit: unknown scheme %q", scheme)
	}
	return nil
}

func normal(dst []float64, mean, std float64, rng *rand.Rand) {
	sample(dst, distuv.Normal{Mu: mean, Sigma: std, Src: rng})
}

func uniform(dst []float64, lo, hi float64, rng *rand.Rand) {
	sample(dst, distuv.Uniform{Min: lo, Max: hi, Src: rng})
}

func sample(dst []float64, d distuv.Rander) {
	for i := range dst {
		dst[i] = d.Rand()
	}
}

func constant(dst []float64, v float64) {
	for i := range dst {
		dst[i] = v
	}
}
