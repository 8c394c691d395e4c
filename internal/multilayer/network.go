// Package multilayer implements the multi-layer network engine.
//
// A Network is an ordered stack of layers built from a conf.NetworkConfig.
// It owns the parameter arena every layer is bound to, runs forward and
// backward passes over the stack, scores minibatches and drives training:
// layer-wise pretraining of the pretrainable layers followed by supervised
// backpropagation steps.
//
// Example:
//
//	net, err := multilayer.New(cfg)
//	if err != nil {
//	    return err
//	}
//	if err := net.Init(); err != nil {
//	    return err
//	}
//	if err := net.Fit(batch); err != nil {
//	    return err
//	}
//	labels, err := net.Predict(test)
//
// A Network is not safe for concurrent use.
package multilayer

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/gradient"
	"github.com/born-ml/multilayer/internal/layers"
	"github.com/born-ml/multilayer/internal/listener"
	"github.com/born-ml/multilayer/internal/params"
	"github.com/born-ml/multilayer/internal/preprocess"
	"github.com/born-ml/multilayer/internal/updater"
	"github.com/born-ml/multilayer/internal/weightinit"
)

// ModelType identifies networks in serialized checkpoints.
const ModelType = "MultiLayerNetwork"

// Network is a stack of layers trained as one model.
type Network struct {
	cfg    *conf.NetworkConfig
	layers []layers.Layer
	pre    map[int]preprocess.Preprocessor

	store       *params.Store
	updaters    []updater.Updater
	initialized bool

	input    *mat.Dense
	labels   *mat.Dense
	gradient *gradient.Gradient
	score    float64

	// forwarded is set while every layer cache holds a full forward pass
	// on input.
	forwarded bool

	// iteration counts supervised minibatches over the lifetime of the network.
	iteration int

	listeners []listener.IterationListener
	logger    *logrus.Logger
	modelID   string
	rng       *rand.Rand
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger used for training events.
func WithLogger(logger *logrus.Logger) Option {
	return func(n *Network) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithModelID overrides the generated model identifier.
func WithModelID(id string) Option {
	return func(n *Network) {
		if id != "" {
			n.modelID = id
		}
	}
}

// New creates the layers described by cfg. Parameters are allocated by Init.
//
// cfg is built first if it was not produced by conf.NetworkConfig.Build.
func New(cfg *conf.NetworkConfig, opts ...Option) (*Network, error) {
	if cfg == nil {
		return nil, fmt.Errorf("multilayer: nil configuration: %w", ErrInvalidConfig)
	}
	built := cfg
	if !cfg.Built() {
		var err error
		if built, err = cfg.Build(); err != nil {
			return nil, fmt.Errorf("multilayer: %w", err)
		}
	}

	n := &Network{
		cfg:     built,
		layers:  make([]layers.Layer, len(built.Layers)),
		pre:     make(map[int]preprocess.Preprocessor, len(built.Preprocessors)),
		logger:  logrus.StandardLogger(),
		modelID: uuid.NewString(),
		rng:     weightinit.NewRand(built.Seed),
	}
	for _, opt := range opts {
		opt(n)
	}

	for i := range built.Layers {
		l, err := layers.New(i, &built.Layers[i])
		if err != nil {
			return nil, fmt.Errorf("multilayer: %w", err)
		}
		n.layers[i] = l
	}
	for i, pc := range built.Preprocessors {
		p, err := preprocess.New(pc)
		if err != nil {
			return nil, fmt.Errorf("multilayer: preprocessor %d: %w", i, err)
		}
		n.pre[i] = p
	}
	return n, nil
}

// Init allocates the parameter arena, binds every layer to its views and
// initializes the weights from the configured seed. Calling Init again is a
// no-op and keeps the current parameters.
func (n *Network) Init() error {
	if n.initialized {
		return nil
	}

	specs := make([][]params.Spec, len(n.layers))
	for i, l := range n.layers {
		specs[i] = l.ParamSpecs()
	}
	store := params.New(specs)

	updaters := make([]updater.Updater, len(n.layers))
	for i, l := range n.layers {
		l.BindParams(store.LayerParams(i))
		if err := l.InitParams(n.rng); err != nil {
			return fmt.Errorf("multilayer: init: %w", err)
		}
		lc := l.Config()
		u, err := updater.New(lc.Updater, updater.Config{
			LearningRate: lc.GetLearningRate(),
			Momentum:     lc.GetMomentum(),
		})
		if err != nil {
			return fmt.Errorf("multilayer: layer %d: %w", i, err)
		}
		updaters[i] = u
	}

	n.store = store
	n.updaters = updaters
	n.initialized = true
	n.log().WithField("num_params", store.Len()).Debug("network initialized")
	return nil
}

// Initialized reports whether Init has run.
func (n *Network) Initialized() bool {
	return n.initialized
}

func (n *Network) requireInit(op string) error {
	if !n.initialized {
		return fmt.Errorf("multilayer: %s: %w", op, ErrNotInitialized)
	}
	return nil
}

func (n *Network) log() *logrus.Entry {
	return n.logger.WithField("model_id", n.modelID)
}

// Config returns the resolved configuration. It must not be modified.
func (n *Network) Config() *conf.NetworkConfig {
	return n.cfg
}

// ModelID returns the identifier attached to logs and checkpoints.
func (n *Network) ModelID() string {
	return n.modelID
}

// NumLayers returns the number of layers in the stack.
func (n *Network) NumLayers() int {
	return len(n.layers)
}

// Layer returns layer i.
func (n *Network) Layer(i int) (layers.Layer, error) {
	if err := n.checkIndex(i); err != nil {
		return nil, err
	}
	return n.layers[i], nil
}

// LayerNames returns the configured layer names. Unnamed layers are named
// after their index.
func (n *Network) LayerNames() []string {
	names := make([]string, len(n.layers))
	for i, l := range n.layers {
		names[i] = layerName(i, l.Config())
	}
	return names
}

// LayerByName returns the layer with the given name.
func (n *Network) LayerByName(name string) (layers.Layer, bool) {
	for i, l := range n.layers {
		if layerName(i, l.Config()) == name {
			return l, true
		}
	}
	return nil, false
}

func layerName(i int, lc *conf.LayerConfig) string {
	if lc.Name != "" {
		return lc.Name
	}
	return strconv.Itoa(i)
}

func (n *Network) checkIndex(i int) error {
	if i < 0 || i >= len(n.layers) {
		return fmt.Errorf("multilayer: %w: %d not in [0, %d)", ErrLayerIndex, i, len(n.layers))
	}
	return nil
}

// outputLayer returns the last layer when it scores against labels.
func (n *Network) outputLayer() (layers.OutputLayer, error) {
	out, ok := n.layers[len(n.layers)-1].(layers.OutputLayer)
	if !ok {
		return nil, fmt.Errorf("multilayer: %w", ErrNoOutputLayer)
	}
	return out, nil
}

// SetListeners replaces the iteration listeners.
func (n *Network) SetListeners(ls ...listener.IterationListener) {
	n.listeners = append([]listener.IterationListener(nil), ls...)
}

// AddListeners appends iteration listeners.
func (n *Network) AddListeners(ls ...listener.IterationListener) {
	n.listeners = append(n.listeners, ls...)
}

// IterationCount returns the number of supervised minibatches fitted so far.
func (n *Network) IterationCount() int {
	return n.iteration
}

// Score returns the score of the last ComputeGradientAndScore or fit step.
func (n *Network) Score() float64 {
	return n.score
}

// Gradient returns the gradient of the last backward pass.
func (n *Network) Gradient() *gradient.Gradient {
	return n.gradient
}

// SetInput stores the features of the current minibatch. A backward pass
// needs a new forward pass on x first.
func (n *Network) SetInput(x *mat.Dense) {
	n.input = x
	n.forwarded = false
}

// Input returns the features of the current minibatch.
func (n *Network) Input() *mat.Dense {
	return n.input
}

// SetLabels stores the labels of the current minibatch.
func (n *Network) SetLabels(y *mat.Dense) {
	n.labels = y
}

// Labels returns the labels of the current minibatch.
func (n *Network) Labels() *mat.Dense {
	return n.labels
}
