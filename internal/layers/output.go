package layers

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/gradient"
	"github.com/born-ml/multilayer/internal/lossfunc"
	"github.com/born-ml/multilayer/internal/nnerr"
)

// LossLayer is the output family: a dense layer scored by a loss function.
type LossLayer struct {
	DenseLayer
	loss   lossfunc.Loss
	labels *mat.Dense
}

// Loss returns the configured loss function.
func (l *LossLayer) Loss() lossfunc.Loss {
	return l.loss
}

// SetLabels stores the labels of the current minibatch.
func (l *LossLayer) SetLabels(labels *mat.Dense) {
	l.labels = labels
}

// Labels returns the labels of the current minibatch.
func (l *LossLayer) Labels() *mat.Dense {
	return l.labels
}

func (l *LossLayer) checkLabels() error {
	if err := l.requireForward(); err != nil {
		return err
	}
	if l.labels == nil {
		return fmt.Errorf("layer %d: %w", l.index, nnerr.ErrNoLabels)
	}
	r, c := l.output.Dims()
	if lr, lc := l.labels.Dims(); lr != r || lc != c {
		return shapeErr(l.index, "labels", r, c, lr, lc)
	}
	return nil
}

// ComputeScore returns the minibatch-averaged loss with the regularization terms.
func (l *LossLayer) ComputeScore(l1, l2 float64) (float64, error) {
	if err := l.checkLabels(); err != nil {
		return 0, err
	}
	rows := l.loss.ScoreArray(l.labels, l.preOut, l.act)
	return (floats.Sum(rows) + l1 + l2) / float64(len(rows)), nil
}

// ComputeScoreForExamples returns one score per row. The regularization
// terms are added in full to every row.
func (l *LossLayer) ComputeScoreForExamples(l1, l2 float64) ([]float64, error) {
	if err := l.checkLabels(); err != nil {
		return nil, err
	}
	rows := l.loss.ScoreArray(l.labels, l.preOut, l.act)
	floats.AddConst(l1+l2, rows)
	return rows, nil
}

// BackpropFromLabels backpropagates dL/dZ computed by the loss function.
func (l *LossLayer) BackpropFromLabels() (*gradient.Gradient, *mat.Dense, error) {
	if err := l.checkLabels(); err != nil {
		return nil, nil, err
	}
	return l.backpropDelta(l.loss.Gradient(l.labels, l.preOut, l.act))
}
