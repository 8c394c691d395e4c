package multilayer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/dataset"
)

// FeedForward runs x through every layer in inference mode and returns
// [x, a0, a1, ..., a(L-1)]. x becomes the current input.
func (n *Network) FeedForward(x *mat.Dense) ([]*mat.Dense, error) {
	return n.FeedForwardToLayer(len(n.layers)-1, x)
}

// FeedForwardToLayer runs x through layers 0..last and returns
// [x, a0, ..., a(last)]. The result is a prefix of FeedForward(x).
func (n *Network) FeedForwardToLayer(last int, x *mat.Dense) ([]*mat.Dense, error) {
	if err := n.requireInit("feed forward"); err != nil {
		return nil, err
	}
	if err := n.checkIndex(last); err != nil {
		return nil, err
	}
	n.SetInput(x)
	return n.feedForward(last, x, false)
}

// feedForward refreshes the caches of layers 0..last. Only a full pass on the
// current input leaves the network ready for a backward pass.
func (n *Network) feedForward(last int, x *mat.Dense, training bool) ([]*mat.Dense, error) {
	n.forwarded = false
	acts := make([]*mat.Dense, 0, last+2)
	acts = append(acts, x)
	cur := x
	for i := 0; i <= last; i++ {
		out, err := n.activateLayer(i, cur, training)
		if err != nil {
			return nil, err
		}
		acts = append(acts, out)
		cur = out
	}
	n.forwarded = last == len(n.layers)-1 && x == n.input
	return acts, nil
}

// activateLayer applies the preprocessor configured for layer i, if any, and
// then the layer itself.
func (n *Network) activateLayer(i int, x *mat.Dense, training bool) (*mat.Dense, error) {
	if p, ok := n.pre[i]; ok {
		var err error
		if x, err = p.PreProcess(x); err != nil {
			return nil, fmt.Errorf("multilayer: layer %d: %w", i, err)
		}
	}
	out, err := n.layers[i].Activate(x, training)
	if err != nil {
		return nil, fmt.Errorf("multilayer: %w", err)
	}
	return out, nil
}

// ActivateSelectedLayers runs only layers from..to on input, which must be
// the output of layer from-1 (or the network input when from is 0). The
// layer caches no longer describe one forward pass afterwards, so
// BackpropGradient needs a new FeedForward.
func (n *Network) ActivateSelectedLayers(from, to int, input *mat.Dense) (*mat.Dense, error) {
	if err := n.requireInit("activate selected layers"); err != nil {
		return nil, err
	}
	if err := n.checkIndex(from); err != nil {
		return nil, err
	}
	if err := n.checkIndex(to); err != nil {
		return nil, err
	}
	if from > to {
		return nil, fmt.Errorf("multilayer: %w: from %d > to %d", ErrLayerIndex, from, to)
	}
	n.forwarded = false
	cur := input
	for i := from; i <= to; i++ {
		out, err := n.activateLayer(i, cur, false)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}

// Output returns the final activation for x in inference mode.
func (n *Network) Output(x *mat.Dense) (*mat.Dense, error) {
	acts, err := n.FeedForward(x)
	if err != nil {
		return nil, err
	}
	return acts[len(acts)-1], nil
}

// OutputIterator returns the outputs of every remaining minibatch of it,
// stacked in order.
func (n *Network) OutputIterator(it dataset.Iterator) (*mat.Dense, error) {
	var outs []*mat.Dense
	for it.HasNext() {
		batch := it.Next()
		out, err := n.Output(batch.Features)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("multilayer: output: %w", dataset.ErrEmpty)
	}
	return stackRows(outs), nil
}

// stackRows concatenates matrices with equal column counts vertically.
func stackRows(ms []*mat.Dense) *mat.Dense {
	rows := 0
	_, cols := ms[0].Dims()
	for _, m := range ms {
		r, _ := m.Dims()
		rows += r
	}
	out := mat.NewDense(rows, cols, nil)
	at := 0
	for _, m := range ms {
		r, _ := m.Dims()
		out.Slice(at, at+r, 0, cols).(*mat.Dense).Copy(m)
		at += r
	}
	return out
}
