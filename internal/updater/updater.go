// Package updater turns raw parameter gradients into parameter deltas.
//
// An Updater is the pure function (gradient, iteration) -> delta of one
// layer, plus whatever per-parameter accumulators the rule needs (momentum
// velocities, squared-gradient caches, Adam moments). Every rule rewrites
// the gradient buffer in place into the delta; the caller then applies
//
//	param = param - delta
//
// Example:
//
//	u, _ := updater.New("nesterovs", updater.Config{LearningRate: 0.1, Momentum: 0.9})
//	step := updater.Step{Updater: u}
//	step.Apply(updater.Param{Key: "0_W", Value: w, Grad: g}, iteration, miniBatch)
package updater

import (
	"fmt"
	"strings"
)

// Names of the supported rules.
const (
	None      = "none"
	SGD       = "sgd"
	Nesterovs = "nesterovs"
	AdaGrad   = "adagrad"
	RMSProp   = "rmsprop"
	Adam      = "adam"
)

// Updater converts a gradient into a delta in place.
type Updater interface {
	// Name returns the rule identifier.
	Name() string
	// Update rewrites grad (the gradient of the parameter identified by key)
	// into the delta to subtract from the parameter.
	Update(key string, grad []float64, iteration int)
	// StateDict exports the accumulators for serialization.
	StateDict() map[string][]float64
	// LoadStateDict restores accumulators exported by StateDict.
	LoadStateDict(state map[string][]float64) error
}

// Config holds the hyperparameters shared by the rules.
type Config struct {
	LearningRate float64 // used as given; 0 freezes the parameters
	Momentum     float64 // nesterovs only, used as given
	RMSDecay     float64 // rmsprop only, default: 0.95
	Beta1, Beta2 float64 // adam only, defaults: 0.9, 0.999
	Epsilon      float64 // adagrad/rmsprop/adam, default: 1e-6 (adagrad) or 1e-8
}

// New returns the rule registered under name.
//
// Parameters:
//   - name: one of none, sgd, nesterovs, adagrad, rmsprop, adam
//   - cfg: hyperparameters; zero RMSDecay, Beta1, Beta2 and Epsilon take
//     the rule defaults
func New(name string, cfg Config) (Updater, error) {
	switch name {
	case None:
		return noOp{}, nil
	case SGD, "":
		return &sgd{lr: cfg.LearningRate}, nil
	case Nesterovs:
		return newNesterovs(cfg), nil
	case AdaGrad:
		if cfg.Epsilon == 0 {
			cfg.Epsilon = 1e-6
		}
		return newAdaGrad(cfg), nil
	case RMSProp:
		if cfg.RMSDecay == 0 {
			cfg.RMSDecay = 0.95
		}
		if cfg.Epsilon == 0 {
			cfg.Epsilon = 1e-8
		}
		return newRMSProp(cfg), nil
	case Adam:
		if cfg.Beta1 == 0 {
			cfg.Beta1 = 0.9
		}
		if cfg.Beta2 == 0 {
			cfg.Beta2 = 0.999
		}
		if cfg.Epsilon == 0 {
			cfg.Epsilon = 1e-8
		}
		return newAdam(cfg), nil
	default:
		return nil, fmt.Errorf("unknown updater %q", name)
	}
}

// noOp passes the gradient through unchanged.
type noOp struct{}

func (noOp) Name() string                             { return None }
func (noOp) Update(string, []float64, int)            {}
func (noOp) StateDict() map[string][]float64          { return map[string][]float64{} }
func (noOp) LoadStateDict(map[string][]float64) error { return nil }

// sgd scales the gradient by the learning rate.
type sgd struct {
	lr float64
}

func (s *sgd) Name() string { return SGD }

func (s *sgd) Update(_ string, grad []float64, _ int) {
	for i := range grad {
		grad[i] *= s.lr
	}
}

func (s *sgd) StateDict() map[string][]float64          { return map[string][]float64{} }
func (s *sgd) LoadStateDict(map[string][]float64) error { return nil }

// accumulators is a per-parameter buffer map with prefixed state keys.
type accumulators map[string][]float64

func (a accumulators) get(key string, n int) []float64 {
	buf, ok := a[key]
	if !ok || len(buf) != n {
		buf = make([]float64, n)
		a[key] = buf
	}
	return buf
}

func (a accumulators) export(prefix string, dst map[string][]float64) {
	for k, v := range a {
		dst[prefix+"."+k] = append([]float64(nil), v...)
	}
}

func (a accumulators) load(prefix string, src map[string][]float64) {
	for k, v := range src {
		if key, ok := strings.CutPrefix(k, prefix+"."); ok && key != "" {
			a[key] = append([]float64(nil), v...)
		}
	}
}
