package updater

// Regularization holds the coefficients folded into the gradient before the rule runs.
type Regularization struct {
	Enabled        bool
	L1, L2         float64
	L1Bias, L2Bias float64
}

// Param is one parameter handled by a Step.
type Param struct {
	Key   string
	Value []float64 // parameter values, updated in place
	Grad  []float64 // raw gradient summed over the minibatch; rewritten into the delta
	Bias  bool
}

// Step runs the full update of one parameter: regularization, minibatch
// averaging, the update rule and the application param -= delta.
type Step struct {
	Updater        Updater
	Regularization Regularization
}

// Apply updates p.Value in place. miniBatch values below one count as one.
func (s Step) Apply(p Param, iteration, miniBatch int) {
	s.Prepare(p, miniBatch)
	s.Updater.Update(p.Key, p.Grad, iteration)
	for i, d := range p.Grad {
		p.Value[i] -= d
	}
}

// Prepare adds l2·w + l1·sign(w) to the gradient (bias coefficients for bias
// parameters) when regularization is enabled, then divides by miniBatch.
func (s Step) Prepare(p Param, miniBatch int) {
	l1, l2 := s.Regularization.L1, s.Regularization.L2
	if p.Bias {
		l1, l2 = s.Regularization.L1Bias, s.Regularization.L2Bias
	}
	regularize := s.Regularization.Enabled && (l1 != 0 || l2 != 0)
	n := 1.0
	if miniBatch > 1 {
		n = float64(miniBatch)
	}
	for i, g := range p.Grad {
		if regularize {
			w := p.Value[i]
			g += l2 * w
			switch {
			case w > 0:
				g += l1
			case w < 0:
				g -= l1
			}
		}
		p.Grad[i] = g / n
	}
}
