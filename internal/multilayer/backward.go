package multilayer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/gradient"
	"github.com/born-ml/multilayer/internal/params"
)

// BackpropGradient backpropagates epsilon, the gradient of some objective
// with respect to the network output, through every layer in reverse order.
// No output layer is required. FeedForward must have run on the current
// input, with no SetInput or partial forward pass since.
//
// It returns the parameter gradient keyed "<layer>_<name>" and the gradient
// with respect to the network input.
func (n *Network) BackpropGradient(epsilon *mat.Dense) (*gradient.Gradient, *mat.Dense, error) {
	if err := n.requireInit("backprop"); err != nil {
		return nil, nil, err
	}
	if !n.forwarded {
		return nil, nil, fmt.Errorf("multilayer: backprop: %w", ErrNoForwardPass)
	}
	last := len(n.layers) - 1
	g, eps, err := n.layers[last].Backprop(epsilon)
	if err != nil {
		return nil, nil, fmt.Errorf("multilayer: %w", err)
	}
	return n.backwardFrom(last, g, eps)
}

// backwardFrom continues a backward pass whose layer `start` already produced
// gradient g and epsilon eps for its input.
func (n *Network) backwardFrom(start int, g *gradient.Gradient, eps *mat.Dense) (*gradient.Gradient, *mat.Dense, error) {
	grads := make([]*gradient.Gradient, len(n.layers))
	grads[start] = g
	for i := start; i >= 0; i-- {
		if i < start {
			var err error
			grads[i], eps, err = n.layers[i].Backprop(eps)
			if err != nil {
				return nil, nil, fmt.Errorf("multilayer: %w", err)
			}
		}
		if p, ok := n.pre[i]; ok {
			var err error
			if eps, err = p.Backprop(eps); err != nil {
				return nil, nil, fmt.Errorf("multilayer: layer %d: %w", i, err)
			}
		}
	}
	return n.assemble(grads), eps, nil
}

// assemble merges per-layer gradients into one network gradient in arena
// order. Entries that are the layer's bound gradient views are recorded as
// arena views, so Flattened aliases the arena when no entry is missing.
func (n *Network) assemble(grads []*gradient.Gradient) *gradient.Gradient {
	full := gradient.New()
	arena := n.store.GradArena()
	for i, lg := range grads {
		if lg == nil {
			continue
		}
		for _, v := range n.store.LayerParams(i) {
			m, ok := lg.Get(v.Spec.Name)
			if !ok {
				continue
			}
			if m == v.Grad {
				full.SetView(v.Key, m, arena, v.Offset)
			} else {
				full.Set(v.Key, m)
			}
		}
	}
	return full
}

// ComputeGradientAndScore runs a training-mode forward pass on the current
// input, scores it against the current labels and backpropagates the loss.
// The results are available from Gradient and Score.
func (n *Network) ComputeGradientAndScore() error {
	if err := n.requireInit("compute gradient"); err != nil {
		return err
	}
	out, err := n.outputLayer()
	if err != nil {
		return err
	}
	if n.input == nil {
		return fmt.Errorf("multilayer: compute gradient: no input: %w", ErrNoForwardPass)
	}
	if n.labels == nil {
		return fmt.Errorf("multilayer: compute gradient: %w", ErrNoLabels)
	}

	if _, err := n.feedForward(len(n.layers)-1, n.input, true); err != nil {
		return err
	}
	out.SetLabels(n.labels)
	score, err := out.ComputeScore(n.CalcL1(true), n.CalcL2(true))
	if err != nil {
		return fmt.Errorf("multilayer: %w", err)
	}
	g, eps, err := out.BackpropFromLabels()
	if err != nil {
		return fmt.Errorf("multilayer: %w", err)
	}
	full, _, err := n.backwardFrom(len(n.layers)-1, g, eps)
	if err != nil {
		return err
	}
	n.gradient = full
	n.score = score
	return nil
}

// Update adds every gradient entry, scaled by the learning rate of its
// layer, to the matching parameter: param += lr * g. The gradient must cover
// exactly the backprop parameters of the network. Nothing is written unless
// every entry is valid. g becomes the current gradient.
func (n *Network) Update(g *gradient.Gradient) error {
	if err := n.requireInit("update"); err != nil {
		return err
	}
	if want := n.store.NumParams(true); g.NumElements() != want {
		return &ShapeError{
			Op:   "multilayer: update",
			Want: fmt.Sprintf("%d gradient elements", want),
			Got:  fmt.Sprintf("%d gradient elements", g.NumElements()),
		}
	}

	keys := g.Keys()
	views := make([]params.View, len(keys))
	for i, key := range keys {
		v, ok := n.store.Lookup(key)
		if !ok {
			return fmt.Errorf("multilayer: update: %w: %q", ErrUnknownParam, key)
		}
		m, _ := g.Get(key)
		if r, c := m.Dims(); r != v.Spec.Rows || c != v.Spec.Cols {
			return &ShapeError{
				Op:   "multilayer: update " + key,
				Want: fmt.Sprintf("[%d, %d]", v.Spec.Rows, v.Spec.Cols),
				Got:  fmt.Sprintf("[%d, %d]", r, c),
			}
		}
		views[i] = v
	}

	for i, key := range keys {
		v := views[i]
		m, _ := g.Get(key)
		lr := n.layers[v.Layer].Config().GetLearningRate()
		for r := 0; r < v.Spec.Rows; r++ {
			floats.AddScaled(v.Param.RawRowView(r), lr, m.RawRowView(r))
		}
	}
	n.gradient = g
	return nil
}
