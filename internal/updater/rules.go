package updater

import "math"

// nesterovs implements Nesterov accelerated momentum.
//
//	v' = momentum*v - lr*g
//	delta = momentum*v - (1+momentum)*v'
type nesterovs struct {
	lr, momentum float64
	velocity     accumulators
}

func newNesterovs(cfg Config) *nesterovs {
	return &nesterovs{lr: cfg.LearningRate, momentum: cfg.Momentum, velocity: accumulators{}}
}

func (n *nesterovs) Name() string { return Nesterovs }

func (n *nesterovs) Update(key string, grad []float64, _ int) {
	v := n.velocity.get(key, len(grad))
	for i, g := range grad {
		prev := v[i]
		v[i] = n.momentum*prev - n.lr*g
		grad[i] = n.momentum*prev - (1+n.momentum)*v[i]
	}
}

func (n *nesterovs) StateDict() map[string][]float64 {
	out := map[string][]float64{}
	n.velocity.export("velocity", out)
	return out
}

func (n *nesterovs) LoadStateDict(state map[string][]float64) error {
	n.velocity.load("velocity", state)
	return nil
}

// adaGrad scales every element by the root of its accumulated squared gradient.
type adaGrad struct {
	lr, eps float64
	history accumulators
}

func newAdaGrad(cfg Config) *adaGrad {
	return &adaGrad{lr: cfg.LearningRate, eps: cfg.Epsilon, history: accumulators{}}
}

func (a *adaGrad) Name() string { return AdaGrad }

func (a *adaGrad) Update(key string, grad []float64, _ int) {
	h := a.history.get(key, len(grad))
	for i, g := range grad {
		h[i] += g * g
		grad[i] = a.lr * g / (math.Sqrt(h[i]) + a.eps)
	}
}

func (a *adaGrad) StateDict() map[string][]float64 {
	out := map[string][]float64{}
	a.history.export("history", out)
	return out
}

func (a *adaGrad) LoadStateDict(state map[string][]float64) error {
	a.history.load("history", state)
	return nil
}

// rmsProp divides by a moving average of squared gradients.
type rmsProp struct {
	lr, decay, eps float64
	cache          accumulators
}

func newRMSProp(cfg Config) *rmsProp {
	return &rmsProp{lr: cfg.LearningRate, decay: cfg.RMSDecay, eps: cfg.Epsilon, cache: accumulators{}}
}

func (r *rmsProp) Name() string { return RMSProp }

func (r *rmsProp) Update(key string, grad []float64, _ int) {
	c := r.cache.get(key, len(grad))
	for i, g := range grad {
		c[i] = r.decay*c[i] + (1-r.decay)*g*g
		grad[i] = r.lr * g / math.Sqrt(c[i]+r.eps)
	}
}

func (r *rmsProp) StateDict() map[string][]float64 {
	out := map[string][]float64{}
	r.cache.export("cache", out)
	return out
}

func (r *rmsProp) LoadStateDict(state map[string][]float64) error {
	r.cache.load("cache", state)
	return nil
}

// adam implements Adaptive Moment Estimation (Kingma & Ba, 2014).
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g²
//	delta = lr * m̂ / (sqrt(v̂) + eps)
//
// Bias correction uses t = iteration + 1.
type adam struct {
	lr, beta1, beta2, eps float64
	m, v                  accumulators
}

func newAdam(cfg Config) *adam {
	return &adam{
		lr: cfg.LearningRate, beta1: cfg.Beta1, beta2: cfg.Beta2, eps: cfg.Epsilon,
		m: accumulators{}, v: accumulators{},
	}
}

func (a *adam) Name() string { return Adam }

func (a *adam) Update(key string, grad []float64, iteration int) {
	m := a.m.get(key, len(grad))
	v := a.v.get(key, len(grad))
	t := float64(iteration + 1)
	c1 := 1 - math.Pow(a.beta1, t)
	c2 := 1 - math.Pow(a.beta2, t)
	for i, g := range grad {
		m[i] = a.beta1*m[i] + (1-a.beta1)*g
		v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
		grad[i] = a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.eps)
	}
}

// StateDict exports the moments as "m.<key>" and "v.<key>".
func (a *adam) StateDict() map[string][]float64 {
	out := map[string][]float64{}
	a.m.export("m", out)
	a.v.export("v", out)
	return out
}

func (a *adam) LoadStateDict(state map[string][]float64) error {
	a.m.load("m", state)
	a.v.load("v", state)
	return nil
}
