package layers

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/multilayer/internal/activation"
	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/lossfunc"
	"github.com/born-ml/multilayer/internal/nnerr"
	"github.com/born-ml/multilayer/internal/params"
)

// pretrainBase is shared by the tied-weight families. On top of W and b it
// carries the visible bias vb used only by the reconstruction objective.
type pretrainBase struct {
	DenseLayer
	loss lossfunc.Loss
}

// ParamSpecs returns W [nIn, nOut], b [1, nOut] and the pretrain-only vb [1, nIn].
func (l *pretrainBase) ParamSpecs() []params.Spec {
	return []params.Spec{
		{Name: "W", Rows: l.cfg.NIn, Cols: l.cfg.NOut},
		{Name: "b", Rows: 1, Cols: l.cfg.NOut, Bias: true},
		{Name: "vb", Rows: 1, Cols: l.cfg.NIn, Bias: true, PretrainOnly: true},
	}
}

// DonePretrain clears the pending flag permanently.
func (l *pretrainBase) DonePretrain() {
	l.pretrainPending = false
}

// transposed builds the mirror base: nIn and nOut swapped, W' = Wᵀ, b' = vb, vb' = b.
func (l *pretrainBase) transposed() (pretrainBase, error) {
	cfg := l.cfg.Clone()
	cfg.NIn, cfg.NOut = l.cfg.NOut, l.cfg.NIn
	t := pretrainBase{
		DenseLayer: DenseLayer{base: base{
			index:           l.index,
			cfg:             &cfg,
			act:             l.act,
			pretrainPending: l.pretrainPending,
		}},
		loss: l.loss,
	}
	if l.params == nil {
		return t, fmt.Errorf("layer %d: transpose: %w", l.index, nnerr.ErrNotInitialized)
	}
	t.bindOwned(t.ParamSpecs())
	t.params["W"].Copy(l.params["W"].T())
	t.params["b"].Copy(l.params["vb"])
	t.params["vb"].Copy(l.params["b"])
	return t, nil
}

func (l *pretrainBase) checkPretrainInput(input *mat.Dense) error {
	if err := l.checkColumns(input, l.cfg.NIn); err != nil {
		return err
	}
	if l.params == nil {
		return fmt.Errorf("layer %d: pretrain: %w", l.index, nnerr.ErrNotInitialized)
	}
	return nil
}

func iterationsOrOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// AutoEncoderLayer is a denoising autoencoder with tied weights.
//
// Encoding is y = f(x̃·W + b) where x̃ is x with a CorruptionLevel fraction of
// the inputs zeroed. Decoding is z = f(y·Wᵀ + vb). Pretraining minimizes the
// configured loss between z and x.
type AutoEncoderLayer struct {
	pretrainBase
}

// Transpose returns the decoder view of the layer.
func (l *AutoEncoderLayer) Transpose() (Layer, error) {
	t, err := l.transposed()
	if err != nil {
		return nil, err
	}
	return &AutoEncoderLayer{pretrainBase: t}, nil
}

// Pretrain runs the reconstruction objective.
func (l *AutoEncoderLayer) Pretrain(input *mat.Dense, iterations int, step StepFunc, rng *rand.Rand) (float64, error) {
	if err := l.checkPretrainInput(input); err != nil {
		return 0, err
	}
	rows, _ := input.Dims()
	w, b, vb := l.params["W"], l.params["b"], l.params["vb"]

	var score float64
	for it := 0; it < iterationsOrOne(iterations); it++ {
		corrupted := l.corrupt(input, rng)

		preY := affine(corrupted, w, b)
		y := l.act.Forward(preY)
		var preZ mat.Dense
		preZ.Mul(y, w.T())
		addRowVector(&preZ, vb)

		score = floats.Sum(l.loss.ScoreArray(input, &preZ, l.act)) / float64(rows)

		deltaZ := l.loss.Gradient(input, &preZ, l.act)
		var dy mat.Dense
		dy.Mul(deltaZ, w)
		deltaY := l.act.Backprop(preY, y, &dy)

		// W receives both the encoder and the decoder contribution.
		gw := l.grads["W"]
		gw.Mul(corrupted.T(), deltaY)
		var dec mat.Dense
		dec.Mul(deltaZ.T(), y)
		gw.Add(gw, &dec)
		columnSums(l.grads["b"], deltaY)
		columnSums(l.grads["vb"], deltaZ)

		if err := step(l.layerGradient("W", "b", "vb"), rows); err != nil {
			return 0, err
		}
	}
	l.Clear()
	return score, nil
}

func (l *AutoEncoderLayer) corrupt(x *mat.Dense, rng *rand.Rand) *mat.Dense {
	level := l.cfg.GetCorruptionLevel()
	if level <= 0 {
		return x
	}
	drop := distuv.Bernoulli{P: level, Src: rng}
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		if drop.Rand() == 1 {
			return 0
		}
		return v
	}, x)
	return &out
}

// RBMLayer is a restricted Boltzmann machine trained with one step of
// contrastive divergence (CD-1).
type RBMLayer struct {
	pretrainBase
}

func newRBM(b base) (Layer, error) {
	switch b.cfg.HiddenUnit {
	case conf.UnitBinary, conf.UnitRectified, conf.UnitGaussian:
	default:
		return nil, fmt.Errorf("%w: layer %d: unknown hidden unit %q", nnerr.ErrInvalidConfig, b.index, b.cfg.HiddenUnit)
	}
	switch b.cfg.VisibleUnit {
	case conf.UnitBinary, conf.UnitGaussian, conf.UnitLinear:
	default:
		return nil, fmt.Errorf("%w: layer %d: unknown visible unit %q", nnerr.ErrInvalidConfig, b.index, b.cfg.VisibleUnit)
	}
	loss, err := lossfunc.Get(b.cfg.Loss)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", b.index, err)
	}
	return &RBMLayer{pretrainBase: pretrainBase{DenseLayer: DenseLayer{base: b}, loss: loss}}, nil
}

// Transpose returns the mirrored machine.
func (l *RBMLayer) Transpose() (Layer, error) {
	t, err := l.transposed()
	if err != nil {
		return nil, err
	}
	return &RBMLayer{pretrainBase: t}, nil
}

var identity, _ = activation.Get("identity")

// Pretrain runs CD-1 and returns the reconstruction score of the last iteration.
func (l *RBMLayer) Pretrain(input *mat.Dense, iterations int, step StepFunc, rng *rand.Rand) (float64, error) {
	if err := l.checkPretrainInput(input); err != nil {
		return 0, err
	}
	rows, _ := input.Dims()
	w, b, vb := l.params["W"], l.params["b"], l.params["vb"]

	var score float64
	for it := 0; it < iterationsOrOne(iterations); it++ {
		h0Pre := affine(input, w, b)
		h0Mean := l.hiddenMean(h0Pre)
		h0Sample := l.sampleHidden(h0Pre, h0Mean, rng)

		var v1Pre mat.Dense
		v1Pre.Mul(h0Sample, w.T())
		addRowVector(&v1Pre, vb)
		v1Mean := l.visibleMean(&v1Pre)
		v1Sample := l.sampleVisible(v1Mean, rng)

		h1Mean := l.hiddenMean(affine(v1Sample, w, b))

		score = floats.Sum(l.loss.ScoreArray(input, v1Mean, identity)) / float64(rows)

		// Descent direction: negative phase minus positive phase.
		gw := l.grads["W"]
		var pos mat.Dense
		pos.Mul(input.T(), h0Mean)
		gw.Mul(v1Sample.T(), h1Mean)
		gw.Sub(gw, &pos)

		var dh mat.Dense
		dh.Sub(h1Mean, h0Mean)
		columnSums(l.grads["b"], &dh)
		var dv mat.Dense
		dv.Sub(v1Sample, input)
		columnSums(l.grads["vb"], &dv)

		if err := step(l.layerGradient("W", "b", "vb"), rows); err != nil {
			return 0, err
		}
	}
	l.Clear()
	return score, nil
}

func (l *RBMLayer) hiddenMean(pre *mat.Dense) *mat.Dense {
	var out mat.Dense
	switch l.cfg.HiddenUnit {
	case conf.UnitRectified:
		out.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, pre)
	case conf.UnitGaussian:
		out.CloneFrom(pre)
	default:
		out.Apply(func(_, _ int, v float64) float64 { return activation.Sigmoid(v) }, pre)
	}
	return &out
}

func (l *RBMLayer) sampleHidden(pre, mean *mat.Dense, rng *rand.Rand) *mat.Dense {
	var out mat.Dense
	switch l.cfg.HiddenUnit {
	case conf.UnitRectified:
		out.Apply(func(i, j int, v float64) float64 {
			std := math.Sqrt(activation.Sigmoid(pre.At(i, j)))
			return math.Max(0, gaussian(v, std, rng))
		}, mean)
	case conf.UnitGaussian:
		out.Apply(func(_, _ int, v float64) float64 { return gaussian(v, 1, rng) }, mean)
	default:
		out.Apply(func(_, _ int, v float64) float64 { return bernoulli(v, rng) }, mean)
	}
	return &out
}

func (l *RBMLayer) visibleMean(pre *mat.Dense) *mat.Dense {
	var out mat.Dense
	if l.cfg.VisibleUnit == conf.UnitBinary {
		out.Apply(func(_, _ int, v float64) float64 { return activation.Sigmoid(v) }, pre)
		return &out
	}
	out.CloneFrom(pre)
	return &out
}

func (l *RBMLayer) sampleVisible(mean *mat.Dense, rng *rand.Rand) *mat.Dense {
	var out mat.Dense
	switch l.cfg.VisibleUnit {
	case conf.UnitGaussian:
		out.Apply(func(_, _ int, v float64) float64 { return gaussian(v, 1, rng) }, mean)
	case conf.UnitLinear:
		out.CloneFrom(mean)
	default:
		out.Apply(func(_, _ int, v float64) float64 { return bernoulli(v, rng) }, mean)
	}
	return &out
}

func bernoulli(p float64, rng *rand.Rand) float64 {
	return distuv.Bernoulli{P: p, Src: rng}.Rand()
}

func gaussian(mean, std float64, rng *rand.Rand) float64 {
	return distuv.Normal{Mu: mean, Sigma: std, Src: rng}.Rand()
}

var (
	_ Pretrainer = (*AutoEncoderLayer)(nil)
	_ Pretrainer = (*RBMLayer)(nil)
)
