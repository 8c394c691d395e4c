package multilayer

import (
	"fmt"

	"github.com/born-ml/multilayer/internal/dataset"
	"github.com/born-ml/multilayer/internal/layers"
)

// CalcL1 sums the L1 terms of every layer.
func (n *Network) CalcL1(useBias bool) float64 {
	var sum float64
	for _, l := range n.layers {
		sum += l.CalcL1(useBias)
	}
	return sum
}

// CalcL2 sums the L2 terms of every layer.
func (n *Network) CalcL2(useBias bool) float64 {
	var sum float64
	for _, l := range n.layers {
		sum += l.CalcL2(useBias)
	}
	return sum
}

// scoreForward runs ds through the network in inference mode and attaches
// its labels to the output layer.
func (n *Network) scoreForward(op string, ds *dataset.DataSet) (layers.OutputLayer, error) {
	if err := n.requireInit(op); err != nil {
		return nil, err
	}
	if ds == nil || ds.Features == nil {
		return nil, fmt.Errorf("multilayer: %s: %w", op, dataset.ErrEmpty)
	}
	out, err := n.outputLayer()
	if err != nil {
		return nil, err
	}
	if ds.Labels == nil {
		return nil, fmt.Errorf("multilayer: %s: %w", op, ErrNoLabels)
	}
	if _, err := n.feedForward(len(n.layers)-1, ds.Features, false); err != nil {
		return nil, err
	}
	out.SetLabels(ds.Labels)
	return out, nil
}

// ScoreDataSet returns the minibatch-averaged score of ds, regularization
// included, without changing the parameters or the cached score.
func (n *Network) ScoreDataSet(ds *dataset.DataSet) (float64, error) {
	out, err := n.scoreForward("score", ds)
	if err != nil {
		return 0, err
	}
	score, err := out.ComputeScore(n.CalcL1(true), n.CalcL2(true))
	if err != nil {
		return 0, fmt.Errorf("multilayer: %w", err)
	}
	return score, nil
}

// ScoreExamples returns one score per row of ds from a single forward pass.
//
// With includeRegularization the full L1 and L2 terms are added to every
// row, so row i equals ScoreDataSet of row i alone.
func (n *Network) ScoreExamples(ds *dataset.DataSet, includeRegularization bool) ([]float64, error) {
	out, err := n.scoreForward("score examples", ds)
	if err != nil {
		return nil, err
	}
	var l1, l2 float64
	if includeRegularization {
		l1, l2 = n.CalcL1(true), n.CalcL2(true)
	}
	scores, err := out.ComputeScoreForExamples(l1, l2)
	if err != nil {
		return nil, fmt.Errorf("multilayer: %w", err)
	}
	return scores, nil
}
