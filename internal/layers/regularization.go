package layers

import "gonum.org/v1/gonum/floats"

// CalcL1 returns l1·Σ|W| over the weight tensors, plus l1Bias·Σ|b| over the
// bias tensors when useBias is set. Pretrain-only tensors are never counted.
func (b *base) CalcL1(useBias bool) float64 {
	if !b.cfg.UseRegularization {
		return 0
	}
	var sum float64
	for _, sp := range b.specs {
		coef := b.coefficient(sp.Bias, useBias, b.cfg.GetL1(), b.cfg.GetL1Bias())
		if coef == 0 || sp.PretrainOnly {
			continue
		}
		sum += coef * floats.Norm(b.params[sp.Name].RawMatrix().Data, 1)
	}
	return sum
}

// CalcL2 returns 0.5·l2·ΣW² (plus 0.5·l2Bias·Σb² when useBias is set).
func (b *base) CalcL2(useBias bool) float64 {
	if !b.cfg.UseRegularization {
		return 0
	}
	var sum float64
	for _, sp := range b.specs {
		coef := b.coefficient(sp.Bias, useBias, b.cfg.GetL2(), b.cfg.GetL2Bias())
		if coef == 0 || sp.PretrainOnly {
			continue
		}
		n := floats.Norm(b.params[sp.Name].RawMatrix().Data, 2)
		sum += 0.5 * coef * n * n
	}
	return sum
}

func (b *base) coefficient(isBias, useBias bool, weight, bias float64) float64 {
	if !isBias {
		return weight
	}
	if !useBias {
		return 0
	}
	return bias
}
