// Package layers implements the layer families of the multi-layer engine.
//
// Every family satisfies Layer and is dispatched uniformly by the network.
// Families that support unsupervised pretraining also satisfy Pretrainer,
// the final supervised layer satisfies OutputLayer, and layers with
// non-trainable state (batch normalization) satisfy Stateful.
//
// Parameters are not owned by layers: the network allocates one arena
// (see package params) and binds each layer to its views with BindParams.
package layers

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/activation"
	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/gradient"
	"github.com/born-ml/multilayer/internal/lossfunc"
	"github.com/born-ml/multilayer/internal/nnerr"
	"github.com/born-ml/multilayer/internal/params"
	"github.com/born-ml/multilayer/internal/weightinit"
)

// Layer is one parametric transformation of the stack.
type Layer interface {
	// Index returns the position of the layer in its network.
	Index() int
	// Type returns the layer family.
	Type() conf.LayerType
	// Config returns the resolved layer configuration. It must not be modified.
	Config() *conf.LayerConfig

	// Activate runs the forward transform and caches input and output.
	Activate(input *mat.Dense, training bool) (*mat.Dense, error)
	// Backprop turns dL/dOutput into the layer gradient and dL/dInput.
	Backprop(epsilon *mat.Dense) (*gradient.Gradient, *mat.Dense, error)
	// Transpose returns the tied-weight mirror of the layer.
	Transpose() (Layer, error)

	NumParams(backpropOnly bool) int
	CalcL1(useBias bool) float64
	CalcL2(useBias bool) float64

	// ParamSpecs declares the parameters the layer needs.
	ParamSpecs() []params.Spec
	// BindParams attaches the arena views allocated for ParamSpecs.
	BindParams(views []params.View)
	// InitParams fills the bound parameters with their initial values.
	InitParams(rng *rand.Rand) error
	Param(name string) (*mat.Dense, error)
	SetParam(name string, m mat.Matrix) error

	Input() *mat.Dense
	Output() *mat.Dense
	// Clear drops every cached activation.
	Clear()
	// PretrainActive reports whether the layer still waits for pretraining.
	PretrainActive() bool
}

// StepFunc applies a layer-local gradient (keys are bare parameter names).
type StepFunc func(g *gradient.Gradient, miniBatch int) error

// Pretrainer is a layer with a local unsupervised objective.
type Pretrainer interface {
	Layer
	// Pretrain runs iterations of the local objective on input and returns the
	// final reconstruction score.
	Pretrain(input *mat.Dense, iterations int, step StepFunc, rng *rand.Rand) (float64, error)
	// DonePretrain marks pretraining as finished. It cannot be undone.
	DonePretrain()
}

// OutputLayer is a layer that scores its activations against labels.
type OutputLayer interface {
	Layer
	SetLabels(labels *mat.Dense)
	Labels() *mat.Dense
	// ComputeScore returns (Σ loss + l1 + l2) / miniBatch for the cached forward pass.
	ComputeScore(l1, l2 float64) (float64, error)
	// ComputeScoreForExamples returns loss_i + l1 + l2 for every row.
	ComputeScoreForExamples(l1, l2 float64) ([]float64, error)
	// BackpropFromLabels backpropagates the loss gradient dL/dZ.
	BackpropFromLabels() (*gradient.Gradient, *mat.Dense, error)
}

// Stateful is a layer carrying non-trainable state that must be persisted.
type Stateful interface {
	State() map[string][]float64
	LoadState(state map[string][]float64) error
}

// New instantiates the layer family described by cfg at position index.
func New(index int, cfg *conf.LayerConfig) (Layer, error) {
	b, err := newBase(index, cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Type {
	case conf.Dense:
		return &DenseLayer{base: b}, nil
	case conf.Output:
		loss, err := lossfunc.Get(cfg.Loss)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", index, err)
		}
		return &LossLayer{DenseLayer: DenseLayer{base: b}, loss: loss}, nil
	case conf.AutoEncoder:
		loss, err := lossfunc.Get(cfg.Loss)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", index, err)
		}
		return &AutoEncoderLayer{pretrainBase: pretrainBase{DenseLayer: DenseLayer{base: b}, loss: loss}}, nil
	case conf.RBM:
		return newRBM(b)
	case conf.BatchNorm:
		return newBatchNorm(b), nil
	case conf.RNN:
		return &RecurrentLayer{base: b}, nil
	case conf.Convolution:
		return newConvolution(b)
	default:
		return nil, fmt.Errorf("%w: layer %d: unknown type %q", nnerr.ErrInvalidConfig, index, cfg.Type)
	}
}

// base holds what every family shares: configuration, activation, bound
// parameter views and the activations cached by the last forward pass.
type base struct {
	index int
	cfg   *conf.LayerConfig
	act   activation.Activation

	specs  []params.Spec
	params map[string]*mat.Dense
	grads  map[string]*mat.Dense

	input  *mat.Dense
	preOut *mat.Dense
	output *mat.Dense

	pretrainPending bool
}

func newBase(index int, cfg *conf.LayerConfig) (base, error) {
	act, err := activation.Get(cfg.Activation)
	if err != nil {
		return base{}, fmt.Errorf("layer %d: %w", index, err)
	}
	return base{
		index:           index,
		cfg:             cfg,
		act:             act,
		pretrainPending: cfg.Pretrain,
	}, nil
}

func (b *base) Index() int                { return b.index }
func (b *base) Type() conf.LayerType      { return b.cfg.Type }
func (b *base) Config() *conf.LayerConfig { return b.cfg }
func (b *base) Input() *mat.Dense         { return b.input }
func (b *base) Output() *mat.Dense        { return b.output }
func (b *base) PretrainActive() bool      { return b.pretrainPending }

func (b *base) Clear() {
	b.input, b.preOut, b.output = nil, nil, nil
}

// Transpose is only supported by tied-weight families.
func (b *base) Transpose() (Layer, error) {
	return nil, fmt.Errorf("layer %d (%s): transpose: %w", b.index, b.cfg.Type, nnerr.ErrUnsupported)
}

func (b *base) BindParams(views []params.View) {
	b.specs = make([]params.Spec, len(views))
	b.params = make(map[string]*mat.Dense, len(views))
	b.grads = make(map[string]*mat.Dense, len(views))
	for i, v := range views {
		b.specs[i] = v.Spec
		b.params[v.Spec.Name] = v.Param
		b.grads[v.Spec.Name] = v.Grad
	}
}

// bindOwned allocates a private arena for layers created outside a network.
func (b *base) bindOwned(specs []params.Spec) {
	b.BindParams(params.New([][]params.Spec{specs}).LayerParams(0))
}

func (b *base) Param(name string) (*mat.Dense, error) {
	p, ok := b.params[name]
	if !ok {
		return nil, fmt.Errorf("layer %d: %w: %q", b.index, nnerr.ErrUnknownParam, name)
	}
	return p, nil
}

func (b *base) SetParam(name string, m mat.Matrix) error {
	p, err := b.Param(name)
	if err != nil {
		return err
	}
	pr, pc := p.Dims()
	r, c := m.Dims()
	if r != pr || c != pc {
		return nnerr.Shape(fmt.Sprintf("layer %d: set %s", b.index, name), pr, pc, r, c)
	}
	p.Copy(m)
	return nil
}

func (b *base) NumParams(backpropOnly bool) int {
	n := 0
	for _, sp := range b.specs {
		if backpropOnly && sp.PretrainOnly {
			continue
		}
		n += sp.Size()
	}
	return n
}

// initParams initializes weights with the configured scheme, "gamma" with
// ones and every bias with zeros.
func (b *base) initParams(rng *rand.Rand, fanIn, fanOut int) error {
	for _, sp := range b.specs {
		p := b.params[sp.Name]
		data := p.RawMatrix().Data
		switch {
		case sp.Name == "gamma":
			p.Apply(func(_, _ int, _ float64) float64 { return 1 }, p)
		case sp.Bias:
			clear(data)
		default:
			if err := weightinit.Fill(data, b.cfg.WeightInit, fanIn, fanOut, b.cfg.Dist, rng); err != nil {
				return fmt.Errorf("layer %d: %s: %w", b.index, sp.Name, err)
			}
		}
	}
	return nil
}

// checkColumns fails fast when the input width does not match nIn.
func (b *base) checkColumns(input *mat.Dense, want int) error {
	if input == nil {
		return fmt.Errorf("layer %d: nil input: %w", b.index, nnerr.ErrShapeMismatch)
	}
	if _, c := input.Dims(); c != want {
		return nnerr.Columns(fmt.Sprintf("layer %d (%s): activate", b.index, b.cfg.Type), want, c)
	}
	return nil
}

func (b *base) requireForward() error {
	if b.input == nil || b.preOut == nil {
		return fmt.Errorf("layer %d (%s): backprop: %w", b.index, b.cfg.Type, nnerr.ErrNoForwardPass)
	}
	return nil
}

// layerGradient wraps the bound gradient views of the named parameters.
func (b *base) layerGradient(names ...string) *gradient.Gradient {
	g := gradient.New()
	for _, n := range names {
		g.Set(n, b.grads[n])
	}
	return g
}

// addRowVector adds the 1×n vector v to every row of m in place.
func addRowVector(m, v *mat.Dense) {
	r, _ := m.Dims()
	bias := v.RawRowView(0)
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
}

// columnSums writes the column sums of m into the 1×n matrix dst.
func columnSums(dst, m *mat.Dense) {
	out := dst.RawRowView(0)
	clear(out)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := range out {
			out[j] += row[j]
		}
	}
}

// affine returns x·W + b.
func affine(x, w, bias *mat.Dense) *mat.Dense {
	var z mat.Dense
	z.Mul(x, w)
	addRowVector(&z, bias)
	return &z
}

func shapeErr(index int, op string, wantRows, wantCols, gotRows, gotCols int) error {
	return nnerr.Shape(fmt.Sprintf("layer %d: %s", index, op), wantRows, wantCols, gotRows, gotCols)
}
