// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package multilayer

import (
	"io"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/dataset"
	"github.com/born-ml/multilayer/internal/listener"
	"github.com/born-ml/multilayer/internal/multilayer"
)

// Network

// Network is a multi-layer network.
type Network = multilayer.Network

// Option configures a Network.
type Option = multilayer.Option

// New creates a network from cfg. Call Init (or Fit) before use.
//
// Example:
//
//	net, err := multilayer.New(cfg, multilayer.WithLogger(logger))
func New(cfg *NetworkConfig, opts ...Option) (*Network, error) {
	return multilayer.New(cfg, opts...)
}

// WithLogger sets the logger used for training events.
func WithLogger(logger *logrus.Logger) Option {
	return multilayer.WithLogger(logger)
}

// WithModelID overrides the generated model identifier.
func WithModelID(id string) Option {
	return multilayer.WithModelID(id)
}

// Load reads a network written by Network.Save.
func Load(r io.Reader, opts ...Option) (*Network, error) {
	return multilayer.Load(r, opts...)
}

// LoadFile reads a network written by Network.SaveFile.
func LoadFile(path string, opts ...Option) (*Network, error) {
	return multilayer.LoadFile(path, opts...)
}

// Configuration

// NetworkConfig describes a whole network.
type NetworkConfig = conf.NetworkConfig

// LayerConfig describes one layer.
type LayerConfig = conf.LayerConfig

// InputType describes the layout of the network input.
type InputType = conf.InputType

// PreprocessorConfig describes an input preprocessor.
type PreprocessorConfig = conf.PreprocessorConfig

// LayerType tags a layer family.
type LayerType = conf.LayerType

// Layer families.
const (
	Dense       = conf.Dense
	Output      = conf.Output
	AutoEncoder = conf.AutoEncoder
	RBM         = conf.RBM
	BatchNorm   = conf.BatchNorm
	RNN         = conf.RNN
	Convolution = conf.Convolution
)

// Input type constructors.
var (
	FeedForwardInput       = conf.FeedForward
	RecurrentInput         = conf.Recurrent
	ConvolutionalInput     = conf.Convolutional
	ConvolutionalFlatInput = conf.ConvolutionalFlat
)

// Bool returns a pointer to v, for NetworkConfig.Backprop.
func Bool(v bool) *bool {
	return conf.Bool(v)
}

// Float returns a pointer to v, for the optional LayerConfig hyperparameters.
func Float(v float64) *float64 {
	return conf.Float(v)
}

// ParseYAML decodes and builds a YAML network configuration.
func ParseYAML(data []byte) (*NetworkConfig, error) {
	return conf.ParseYAML(data)
}

// LoadYAML reads and builds a YAML network configuration file.
func LoadYAML(path string) (*NetworkConfig, error) {
	return conf.LoadYAML(path)
}

// Data

// DataSet pairs features with one-hot labels.
type DataSet = dataset.DataSet

// Iterator yields minibatches.
type Iterator = dataset.Iterator

// NewDataSet pairs features with labels.
func NewDataSet(features, labels *mat.Dense) (*DataSet, error) {
	return dataset.New(features, labels)
}

// NewListIterator splits ds into minibatches of batchSize rows.
func NewListIterator(ds *DataSet, batchSize int) *dataset.ListIterator {
	return dataset.NewListIterator(ds, batchSize)
}

// LoadCSV reads a CSV file with the class in column labelIndex.
func LoadCSV(r io.Reader, labelIndex, numClasses int) (*DataSet, error) {
	return dataset.LoadCSV(r, labelIndex, numClasses)
}

// Blobs generates Gaussian clusters, one per class.
func Blobs(n, features, classes int, seed int64) *DataSet {
	return dataset.Blobs(n, features, classes, seed)
}

// Listeners

// Model is the view of a network a listener receives.
type Model = listener.Model

// IterationListener is notified after each supervised minibatch.
type IterationListener = listener.IterationListener

// ListenerFunc adapts a function to IterationListener.
type ListenerFunc = listener.Func

// NewScoreIterationListener logs the score every `every` iterations.
var NewScoreIterationListener = listener.NewScoreIterationListener

// Errors returned by Network operations.
var (
	ErrShapeMismatch  = multilayer.ErrShapeMismatch
	ErrNoForwardPass  = multilayer.ErrNoForwardPass
	ErrNotInitialized = multilayer.ErrNotInitialized
	ErrUnsupported    = multilayer.ErrUnsupported
	ErrNoOutputLayer  = multilayer.ErrNoOutputLayer
	ErrNoLabels       = multilayer.ErrNoLabels
	ErrNoLabelNames   = multilayer.ErrNoLabelNames
	ErrUnknownParam   = multilayer.ErrUnknownParam
	ErrInvalidConfig  = multilayer.ErrInvalidConfig
	ErrLayerIndex     = multilayer.ErrLayerIndex
	ErrPretrainOrder  = multilayer.ErrPretrainOrder
)
