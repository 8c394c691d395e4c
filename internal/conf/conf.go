// Package conf describes network architectures for the multi-layer engine.
//
// A NetworkConfig holds the ordered list of LayerConfig values plus the
// network-wide switches (seed, pretraining, backprop, regularization, input
// type). Configurations are plain values: Build validates one, merges the
// network defaults into every layer, infers missing input widths and returns
// a resolved copy that is never mutated afterwards.
//
// Example:
//
//	cfg, err := conf.NetworkConfig{
//	    Seed: 12345,
//	    Defaults: conf.LayerConfig{LearningRate: conf.Float(0.1)},
//	    Layers: []conf.LayerConfig{
//	        {Type: conf.Dense, NIn: 4, NOut: 3, Activation: "tanh"},
//	        {Type: conf.Output, NOut: 3, Activation: "softmax", Loss: "mcxent"},
//	    },
//	}.Build()
package conf

// LayerType tags a layer family.
type LayerType string

// Supported layer families.
const (
	Dense       LayerType = "dense"
	Output      LayerType = "output"
	AutoEncoder LayerType = "autoencoder"
	RBM         LayerType = "rbm"
	BatchNorm   LayerType = "batch_norm"
	RNN         LayerType = "rnn"
	Convolution LayerType = "convolution"
)

// Pretrainable reports whether the family supports layer-wise unsupervised pretraining.
func (t LayerType) Pretrainable() bool {
	return t == AutoEncoder || t == RBM
}

// Valid reports whether t names a known family.
func (t LayerType) Valid() bool {
	switch t {
	case Dense, Output, AutoEncoder, RBM, BatchNorm, RNN, Convolution:
		return true
	default:
		return false
	}
}

// Backprop types.
const (
	BackpropStandard  = "standard"
	BackpropTruncated = "truncated_bptt"
)

// RBM unit types.
const (
	UnitBinary    = "binary"
	UnitGaussian  = "gaussian"
	UnitRectified = "rectified"
	UnitLinear    = "linear"
)

// Distribution parameterizes the "distribution" weight initialization.
type Distribution struct {
	Kind  string  `yaml:"kind" json:"kind"` // "normal" or "uniform"
	Mean  float64 `yaml:"mean,omitempty" json:"mean,omitempty"`
	Std   float64 `yaml:"std,omitempty" json:"std,omitempty"`
	Lower float64 `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper float64 `yaml:"upper,omitempty" json:"upper,omitempty"`
}

// LayerConfig is the architecture-time description of one layer.
//
// Zero values and nil pointers mean "unset": Build fills them from
// NetworkConfig.Defaults and then from the family defaults. The numeric
// hyperparameters are pointers so an explicit 0 overrides a default; read
// them through the Get accessors.
type LayerConfig struct {
	Type       LayerType     `yaml:"type" json:"type"`
	Name       string        `yaml:"name,omitempty" json:"name,omitempty"`
	NIn        int           `yaml:"n_in,omitempty" json:"n_in,omitempty"`
	NOut       int           `yaml:"n_out,omitempty" json:"n_out,omitempty"`
	Activation string        `yaml:"activation,omitempty" json:"activation,omitempty"`
	WeightInit string        `yaml:"weight_init,omitempty" json:"weight_init,omitempty"`
	Dist       *Distribution `yaml:"dist,omitempty" json:"dist,omitempty"`
	Loss       string        `yaml:"loss,omitempty" json:"loss,omitempty"`

	L1     *float64 `yaml:"l1,omitempty" json:"l1,omitempty"`
	L2     *float64 `yaml:"l2,omitempty" json:"l2,omitempty"`
	L1Bias *float64 `yaml:"l1_bias,omitempty" json:"l1_bias,omitempty"`
	L2Bias *float64 `yaml:"l2_bias,omitempty" json:"l2_bias,omitempty"`

	LearningRate *float64 `yaml:"learning_rate,omitempty" json:"learning_rate,omitempty"`
	Updater      string   `yaml:"updater,omitempty" json:"updater,omitempty"`
	Momentum     *float64 `yaml:"momentum,omitempty" json:"momentum,omitempty"`

	// rbm
	HiddenUnit  string `yaml:"hidden_unit,omitempty" json:"hidden_unit,omitempty"`
	VisibleUnit string `yaml:"visible_unit,omitempty" json:"visible_unit,omitempty"`

	// autoencoder
	CorruptionLevel *float64 `yaml:"corruption_level,omitempty" json:"corruption_level,omitempty"`

	// convolution: [height, width]
	KernelSize []int `yaml:"kernel_size,omitempty" json:"kernel_size,omitempty"`
	Stride     []int `yaml:"stride,omitempty" json:"stride,omitempty"`
	Padding    []int `yaml:"padding,omitempty" json:"padding,omitempty"`

	// batch_norm
	Decay float64 `yaml:"decay,omitempty" json:"decay,omitempty"`
	Eps   float64 `yaml:"eps,omitempty" json:"eps,omitempty"`

	// Resolved by Build.
	Pretrain          bool `yaml:"-" json:"pretrain,omitempty"`
	UseRegularization bool `yaml:"-" json:"use_regularization,omitempty"`
	InputHeight       int  `yaml:"-" json:"input_height,omitempty"`
	InputWidth        int  `yaml:"-" json:"input_width,omitempty"`
	TimeSteps         int  `yaml:"-" json:"time_steps,omitempty"`
	TBPTTLength       int  `yaml:"-" json:"tbptt_length,omitempty"`
}

// PreprocessorConfig describes an input preprocessor applied before a layer.
type PreprocessorConfig struct {
	Type   string `yaml:"type" json:"type"`
	Height int    `yaml:"height,omitempty" json:"height,omitempty"`
	Width  int    `yaml:"width,omitempty" json:"width,omitempty"`
	Depth  int    `yaml:"depth,omitempty" json:"depth,omitempty"`
}

// NetworkConfig is the architecture of a whole network.
type NetworkConfig struct {
	Seed           int64                      `yaml:"seed,omitempty" json:"seed,omitempty"`
	Iterations     int                        `yaml:"iterations,omitempty" json:"iterations,omitempty"`
	Pretrain       bool                       `yaml:"pretrain,omitempty" json:"pretrain,omitempty"`
	Backprop       *bool                      `yaml:"backprop,omitempty" json:"backprop,omitempty"`
	Regularization bool                       `yaml:"regularization,omitempty" json:"regularization,omitempty"`
	BackpropType   string                     `yaml:"backprop_type,omitempty" json:"backprop_type,omitempty"`
	TBPTTLength    int                        `yaml:"tbptt_length,omitempty" json:"tbptt_length,omitempty"`
	InputType      *InputType                 `yaml:"input_type,omitempty" json:"input_type,omitempty"`
	Preprocessors  map[int]PreprocessorConfig `yaml:"preprocessors,omitempty" json:"preprocessors,omitempty"`
	Defaults       LayerConfig                `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Layers         []LayerConfig              `yaml:"layers" json:"layers"`

	built bool
}

// Built reports whether c was produced by Build.
func (c *NetworkConfig) Built() bool {
	return c.built
}

// IsBackprop reports whether supervised backprop runs during fit (default true).
func (c *NetworkConfig) IsBackprop() bool {
	return c.Backprop == nil || *c.Backprop
}

// TimeSteps returns the configured sequence length, or 1 for non-recurrent input.
func (c *NetworkConfig) TimeSteps() int {
	if c.InputType != nil && c.InputType.Kind == InputRecurrent && c.InputType.TimeSteps > 0 {
		return c.InputType.TimeSteps
	}
	return 1
}

// Bool returns a pointer to v, for optional config fields.
func Bool(v bool) *bool {
	return &v
}

// Float returns a pointer to v, for optional config fields.
func Float(v float64) *float64 {
	return &v
}

func floatOf(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}

// GetL1 returns the L1 coefficient of the weights, 0 when unset.
func (l *LayerConfig) GetL1() float64 { return floatOf(l.L1) }

// GetL2 returns the L2 coefficient of the weights, 0 when unset.
func (l *LayerConfig) GetL2() float64 { return floatOf(l.L2) }

// GetL1Bias returns the L1 coefficient of the biases, 0 when unset.
func (l *LayerConfig) GetL1Bias() float64 { return floatOf(l.L1Bias) }

// GetL2Bias returns the L2 coefficient of the biases, 0 when unset.
func (l *LayerConfig) GetL2Bias() float64 { return floatOf(l.L2Bias) }

// GetLearningRate returns the learning rate, 0 when unset.
func (l *LayerConfig) GetLearningRate() float64 { return floatOf(l.LearningRate) }

// GetMomentum returns the nesterovs momentum, 0 when unset.
func (l *LayerConfig) GetMomentum() float64 { return floatOf(l.Momentum) }

// GetCorruptionLevel returns the autoencoder input corruption, 0 when unset.
func (l *LayerConfig) GetCorruptionLevel() float64 { return floatOf(l.CorruptionLevel) }

// Clone returns a deep copy of c.
func (c *NetworkConfig) Clone() *NetworkConfig {
	out := *c
	if c.Backprop != nil {
		out.Backprop = Bool(*c.Backprop)
	}
	if c.InputType != nil {
		it := *c.InputType
		out.InputType = &it
	}
	if c.Preprocessors != nil {
		out.Preprocessors = make(map[int]PreprocessorConfig, len(c.Preprocessors))
		for k, v := range c.Preprocessors {
			out.Preprocessors[k] = v
		}
	}
	out.Defaults = c.Defaults.Clone()
	out.Layers = make([]LayerConfig, len(c.Layers))
	for i := range c.Layers {
		out.Layers[i] = c.Layers[i].Clone()
	}
	return &out
}

// Clone returns a deep copy of l.
func (l LayerConfig) Clone() LayerConfig {
	out := l
	if l.Dist != nil {
		d := *l.Dist
		out.Dist = &d
	}
	out.L1, out.L2 = cloneFloat(l.L1), cloneFloat(l.L2)
	out.L1Bias, out.L2Bias = cloneFloat(l.L1Bias), cloneFloat(l.L2Bias)
	out.LearningRate, out.Momentum = cloneFloat(l.LearningRate), cloneFloat(l.Momentum)
	out.CorruptionLevel = cloneFloat(l.CorruptionLevel)
	out.KernelSize = cloneInts(l.KernelSize)
	out.Stride = cloneInts(l.Stride)
	out.Padding = cloneInts(l.Padding)
	return out
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	out := make([]int, len(s))
	copy(out, s)
	return out
}
