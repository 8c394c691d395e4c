package conf

import (
	"fmt"

	"github.com/born-ml/multilayer/internal/nnerr"
)

// ErrInvalid is returned (wrapped) for configurations that cannot be built.
var ErrInvalid = nnerr.ErrInvalidConfig

// Family defaults.
const (
	DefaultActivation       = "sigmoid"
	DefaultOutputActivation = "softmax"
	DefaultWeightInit       = "xavier"
	DefaultLoss             = "mcxent"
	DefaultUpdater          = "sgd"
	DefaultLearningRate     = 1.0
	DefaultMomentum         = 0.9
	DefaultBatchNormDecay   = 0.9
	DefaultBatchNormEps     = 1e-5
)

// Preprocessor types.
const (
	PreCnnToFeedForward = "cnn_to_feed_forward"
	PreFeedForwardToCnn = "feed_forward_to_cnn"
	PreZeroMean         = "zero_mean"
	PreUnitVariance     = "unit_variance"
)

// Build validates c and returns a resolved copy.
//
// Resolution merges Defaults into every layer, applies family defaults,
// infers missing NIn values from the input type (or the previous layer),
// computes convolution geometry and checks that consecutive layers agree on
// their widths. Build is idempotent: building a built configuration yields
// an equal configuration.
func (c NetworkConfig) Build() (*NetworkConfig, error) {
	out := c.Clone()
	if len(out.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalid)
	}
	if out.Iterations <= 0 {
		out.Iterations = 1
	}
	if out.Backprop == nil {
		out.Backprop = Bool(true)
	}
	switch out.BackpropType {
	case "":
		out.BackpropType = BackpropStandard
	case BackpropStandard, BackpropTruncated:
	default:
		return nil, fmt.Errorf("%w: unknown backprop type %q", ErrInvalid, out.BackpropType)
	}
	if out.BackpropType == BackpropTruncated && out.TBPTTLength <= 0 {
		return nil, fmt.Errorf("%w: truncated_bptt requires a positive tbptt_length", ErrInvalid)
	}

	for idx := range out.Preprocessors {
		if idx < 0 || idx >= len(out.Layers) {
			return nil, fmt.Errorf("%w: preprocessor index %d out of range", ErrInvalid, idx)
		}
	}

	current, err := out.initialInputType()
	if err != nil {
		return nil, err
	}

	for i := range out.Layers {
		l := &out.Layers[i]
		if !l.Type.Valid() {
			return nil, fmt.Errorf("%w: layer %d: unknown type %q", ErrInvalid, i, l.Type)
		}
		out.resolveLayer(l)

		if pp, ok := out.Preprocessors[i]; ok {
			current, err = preprocessType(i, pp, current)
			if err != nil {
				return nil, err
			}
		}
		current, err = out.propagate(i, l, current)
		if err != nil {
			return nil, err
		}
	}

	out.built = true
	return out, nil
}

func (c *NetworkConfig) initialInputType() (InputType, error) {
	if c.InputType != nil {
		if err := c.InputType.validate(); err != nil {
			return InputType{}, err
		}
		return *c.InputType, nil
	}
	first := c.Layers[0]
	if first.NIn <= 0 {
		return InputType{}, fmt.Errorf("%w: layer 0: n_in must be set when no input type is configured", ErrInvalid)
	}
	if first.Type == Convolution || first.Type == RNN {
		return InputType{}, fmt.Errorf("%w: layer 0: %s layers require an input type", ErrInvalid, first.Type)
	}
	return *FeedForward(first.NIn), nil
}

// resolveLayer merges network defaults and family defaults into l.
func (c *NetworkConfig) resolveLayer(l *LayerConfig) {
	d := c.Defaults
	if l.Activation == "" {
		l.Activation = d.Activation
	}
	if l.Activation == "" {
		switch l.Type {
		case Output:
			l.Activation = DefaultOutputActivation
		case BatchNorm:
			l.Activation = "identity"
		default:
			l.Activation = DefaultActivation
		}
	}
	if l.WeightInit == "" {
		l.WeightInit = d.WeightInit
	}
	if l.WeightInit == "" {
		l.WeightInit = DefaultWeightInit
	}
	if l.Dist == nil && d.Dist != nil {
		dist := *d.Dist
		l.Dist = &dist
	}
	if l.Type == Output && l.Loss == "" {
		l.Loss = d.Loss
	}
	if l.Type == Output && l.Loss == "" {
		l.Loss = DefaultLoss
	}
	if l.Type.Pretrainable() && l.Loss == "" {
		l.Loss = d.Loss
	}
	if l.Type.Pretrainable() && l.Loss == "" {
		l.Loss = "mse"
	}
	l.L1 = pick(l.L1, d.L1, 0)
	l.L2 = pick(l.L2, d.L2, 0)
	l.L1Bias = pick(l.L1Bias, d.L1Bias, 0)
	l.L2Bias = pick(l.L2Bias, d.L2Bias, 0)
	l.LearningRate = pick(l.LearningRate, d.LearningRate, DefaultLearningRate)
	if l.Updater == "" {
		l.Updater = d.Updater
	}
	if l.Updater == "" {
		l.Updater = DefaultUpdater
	}
	l.Momentum = pick(l.Momentum, d.Momentum, DefaultMomentum)
	l.CorruptionLevel = pick(l.CorruptionLevel, d.CorruptionLevel, 0)
	if l.Type == RBM {
		if l.HiddenUnit == "" {
			l.HiddenUnit = UnitBinary
		}
		if l.VisibleUnit == "" {
			l.VisibleUnit = UnitBinary
		}
	}
	if l.Type == BatchNorm {
		if l.Decay == 0 {
			l.Decay = DefaultBatchNormDecay
		}
		if l.Eps == 0 {
			l.Eps = DefaultBatchNormEps
		}
	}
	if l.Type == Convolution {
		if len(l.KernelSize) == 0 {
			l.KernelSize = []int{5, 5}
		}
		if len(l.Stride) == 0 {
			l.Stride = []int{1, 1}
		}
		if len(l.Padding) == 0 {
			l.Padding = []int{0, 0}
		}
	}
	l.Pretrain = c.Pretrain && l.Type.Pretrainable()
	l.UseRegularization = c.Regularization
	if c.BackpropType == BackpropTruncated {
		l.TBPTTLength = c.TBPTTLength
	}
}

// pick returns a fresh copy of the layer's own value, else the network
// default, else fallback. An explicit 0 counts as set.
func pick(own, inherited *float64, fallback float64) *float64 {
	switch {
	case own != nil:
		return Float(*own)
	case inherited != nil:
		return Float(*inherited)
	}
	return Float(fallback)
}

// propagate resolves the input width of layer i and returns its output type.
func (c *NetworkConfig) propagate(i int, l *LayerConfig, in InputType) (InputType, error) {
	switch l.Type {
	case Convolution:
		return propagateConvolution(i, l, in)
	case RNN:
		if in.Kind != InputRecurrent {
			return InputType{}, fmt.Errorf("%w: layer %d: rnn layer needs recurrent input, got %s", ErrInvalid, i, in)
		}
	}

	width := in.FlatSize()
	if l.Type == BatchNorm && l.NOut == 0 {
		l.NOut = width
	}
	if l.NIn == 0 {
		l.NIn = width
	}
	if l.NIn != width {
		return InputType{}, &nnerr.ShapeError{
			Op:   fmt.Sprintf("conf: layer %d (%s)", i, l.Type),
			Want: fmt.Sprintf("n_in %d", width),
			Got:  fmt.Sprintf("n_in %d", l.NIn),
		}
	}
	if l.NOut <= 0 {
		return InputType{}, fmt.Errorf("%w: layer %d: n_out must be positive", ErrInvalid, i)
	}
	if l.Type == BatchNorm && l.NOut != l.NIn {
		return InputType{}, fmt.Errorf("%w: layer %d: batch_norm needs n_in == n_out", ErrInvalid, i)
	}

	if in.Kind == InputRecurrent {
		l.TimeSteps = in.TimeSteps
		return *Recurrent(l.NOut, in.TimeSteps), nil
	}
	return *FeedForward(l.NOut), nil
}

func propagateConvolution(i int, l *LayerConfig, in InputType) (InputType, error) {
	if !in.IsConvolutional() {
		return InputType{}, fmt.Errorf("%w: layer %d: convolution layer needs convolutional input, got %s", ErrInvalid, i, in)
	}
	if len(l.KernelSize) != 2 || len(l.Stride) != 2 || len(l.Padding) != 2 {
		return InputType{}, fmt.Errorf("%w: layer %d: kernel_size, stride and padding need two values", ErrInvalid, i)
	}
	if l.NIn == 0 {
		l.NIn = in.Depth
	}
	if l.NIn != in.Depth {
		return InputType{}, &nnerr.ShapeError{
			Op:   fmt.Sprintf("conf: layer %d (convolution)", i),
			Want: fmt.Sprintf("%d input channels", in.Depth),
			Got:  fmt.Sprintf("%d input channels", l.NIn),
		}
	}
	if l.NOut <= 0 {
		return InputType{}, fmt.Errorf("%w: layer %d: n_out must be positive", ErrInvalid, i)
	}
	kh, kw := l.KernelSize[0], l.KernelSize[1]
	sh, sw := l.Stride[0], l.Stride[1]
	ph, pw := l.Padding[0], l.Padding[1]
	if kh <= 0 || kw <= 0 || sh <= 0 || sw <= 0 || ph < 0 || pw < 0 {
		return InputType{}, fmt.Errorf("%w: layer %d: invalid kernel/stride/padding", ErrInvalid, i)
	}
	outH, err := convOut(in.Height, kh, sh, ph)
	if err != nil {
		return InputType{}, fmt.Errorf("layer %d height: %w", i, err)
	}
	outW, err := convOut(in.Width, kw, sw, pw)
	if err != nil {
		return InputType{}, fmt.Errorf("layer %d width: %w", i, err)
	}
	l.InputHeight = in.Height
	l.InputWidth = in.Width
	return *Convolutional(outH, outW, l.NOut), nil
}

// ConvOutputSize returns the spatial output size of a convolution along one axis.
func ConvOutputSize(in, kernel, stride, padding int) (int, error) {
	return convOut(in, kernel, stride, padding)
}

func convOut(in, kernel, stride, padding int) (int, error) {
	span := in - kernel + 2*padding
	if span < 0 {
		return 0, fmt.Errorf("%w: kernel %d larger than padded input %d", ErrInvalid, kernel, in+2*padding)
	}
	if span%stride != 0 {
		return 0, fmt.Errorf("%w: (input %d - kernel %d + 2*padding %d) not divisible by stride %d",
			ErrInvalid, in, kernel, padding, stride)
	}
	return span/stride + 1, nil
}

func preprocessType(i int, pp PreprocessorConfig, in InputType) (InputType, error) {
	switch pp.Type {
	case PreCnnToFeedForward:
		if pp.Height*pp.Width*pp.Depth != in.FlatSize() {
			return InputType{}, &nnerr.ShapeError{
				Op:   fmt.Sprintf("conf: preprocessor %d (%s)", i, pp.Type),
				Want: fmt.Sprintf("%d columns", in.FlatSize()),
				Got:  fmt.Sprintf("%dx%dx%d", pp.Height, pp.Width, pp.Depth),
			}
		}
		return *FeedForward(pp.Height * pp.Width * pp.Depth), nil
	case PreFeedForwardToCnn:
		if pp.Height*pp.Width*pp.Depth != in.FlatSize() {
			return InputType{}, &nnerr.ShapeError{
				Op:   fmt.Sprintf("conf: preprocessor %d (%s)", i, pp.Type),
				Want: fmt.Sprintf("%d columns", in.FlatSize()),
				Got:  fmt.Sprintf("%dx%dx%d", pp.Height, pp.Width, pp.Depth),
			}
		}
		return *Convolutional(pp.Height, pp.Width, pp.Depth), nil
	case PreZeroMean, PreUnitVariance:
		return in, nil
	default:
		return InputType{}, fmt.Errorf("%w: preprocessor %d: unknown type %q", ErrInvalid, i, pp.Type)
	}
}
