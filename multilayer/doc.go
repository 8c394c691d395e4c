// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package multilayer provides a feed-forward multi-layer neural network:
// an ordered stack of layers trained by backpropagation, optionally preceded
// by greedy layer-wise unsupervised pretraining.
//
// # Overview
//
// This package contains:
//   - Network: the layer stack with forward and backward passes
//   - NetworkConfig / LayerConfig: the architecture description
//   - DataSet / Iterator: minibatches of features and one-hot labels
//   - Save / Load: the .born checkpoint format
//
// Every parameter of a network lives in one contiguous vector. Each layer
// parameter is a view into it, so Params, SetParams, Param and the layer
// views always agree.
//
// # Basic Usage
//
//	import "github.com/born-ml/multilayer/multilayer"
//
//	func main() {
//	    net, err := multilayer.New(&multilayer.NetworkConfig{
//	        Seed: 12345,
//	        Layers: []multilayer.LayerConfig{
//	            {Type: multilayer.Dense, NIn: 4, NOut: 3, Activation: "tanh"},
//	            {Type: multilayer.Output, NOut: 3, Activation: "softmax", Loss: "mcxent"},
//	        },
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    train := multilayer.Blobs(150, 4, 3, 42)
//	    it := multilayer.NewListIterator(train, 50)
//	    for epoch := range 10 {
//	        it.Reset()
//	        if err := net.FitIterator(it); err != nil {
//	            log.Fatal(err)
//	        }
//	        fmt.Println(epoch, net.Score())
//	    }
//
//	    labels, _ := net.Predict(train)
//	    _ = labels
//	}
//
// # Pretraining
//
// With NetworkConfig.Pretrain set, autoencoder and RBM layers are trained
// on their local reconstruction objective, in ascending order, the first
// time Fit sees data. Backprop then proceeds as usual unless
// NetworkConfig.Backprop is false.
//
// # Persistence
//
//	if err := net.SaveFile("model.born", true); err != nil {
//	    log.Fatal(err)
//	}
//	restored, err := multilayer.LoadFile("model.born")
//
// A restored network continues from the saved iteration count.
package multilayer
