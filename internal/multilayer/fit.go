package multilayer

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/dataset"
	"github.com/born-ml/multilayer/internal/gradient"
	"github.com/born-ml/multilayer/internal/layers"
	"github.com/born-ml/multilayer/internal/params"
	"github.com/born-ml/multilayer/internal/updater"
)

// Fit trains on one minibatch.
//
// Layers still waiting for pretraining are pretrained first, in ascending
// order and at most once each. Then, when backprop is enabled, one
// supervised step runs and the iteration counter advances by one. The
// network is initialized on demand.
//
// With backprop enabled the labels are checked before any layer is
// pretrained, so a rejected minibatch leaves parameters and pretrain state
// untouched.
func (n *Network) Fit(ds *dataset.DataSet) error {
	if ds == nil {
		return fmt.Errorf("multilayer: fit: %w", dataset.ErrEmpty)
	}
	if err := n.Init(); err != nil {
		return err
	}
	if n.cfg.IsBackprop() {
		if err := n.checkLabels(ds.Features, ds.Labels); err != nil {
			return err
		}
	}
	if err := n.pretrainPending(ds.Features); err != nil {
		return err
	}
	if !n.cfg.IsBackprop() {
		return nil
	}
	return n.fitBatch(ds.Features, ds.Labels)
}

// FitIterator fits every remaining minibatch of it. The iteration counter
// keeps counting from its current value.
func (n *Network) FitIterator(it dataset.Iterator) error {
	for it.HasNext() {
		if err := n.Fit(it.Next()); err != nil {
			return err
		}
	}
	return nil
}

// FitArrays fits one minibatch given as features and labels.
func (n *Network) FitArrays(x, y *mat.Dense) error {
	ds, err := dataset.New(x, y)
	if err != nil {
		return fmt.Errorf("multilayer: fit: %w", err)
	}
	return n.Fit(ds)
}

// FitFeatures pretrains the pending layers on unlabeled features.
func (n *Network) FitFeatures(x *mat.Dense) error {
	return n.Pretrain(x)
}

// Pretrain pretrains every pending layer on x, in ascending order.
func (n *Network) Pretrain(x *mat.Dense) error {
	if err := n.Init(); err != nil {
		return err
	}
	return n.pretrainPending(x)
}

func (n *Network) pretrainPending(x *mat.Dense) error {
	for i, l := range n.layers {
		if !l.PretrainActive() {
			continue
		}
		if err := n.PretrainLayer(i, x); err != nil {
			return err
		}
	}
	return nil
}

// PretrainLayer pretrains layer i on the activation that layers 0..i-1
// produce for the network input x, then marks it done. A layer that already
// finished pretraining is left untouched. Every earlier layer must have
// finished pretraining.
func (n *Network) PretrainLayer(i int, x *mat.Dense) error {
	if err := n.requireInit("pretrain"); err != nil {
		return err
	}
	if err := n.checkIndex(i); err != nil {
		return err
	}
	p, ok := n.layers[i].(layers.Pretrainer)
	if !ok {
		return fmt.Errorf("multilayer: pretrain layer %d (%s): %w", i, n.layers[i].Type(), ErrUnsupported)
	}
	if !p.PretrainActive() {
		return nil
	}
	for j := 0; j < i; j++ {
		if n.layers[j].PretrainActive() {
			return fmt.Errorf("multilayer: pretrain layer %d: %w: layer %d", i, ErrPretrainOrder, j)
		}
	}

	input := x
	if i > 0 {
		acts, err := n.feedForward(i-1, x, false)
		if err != nil {
			return err
		}
		input = acts[len(acts)-1]
	}
	if pre, ok := n.pre[i]; ok {
		var err error
		if input, err = pre.PreProcess(input); err != nil {
			return fmt.Errorf("multilayer: layer %d: %w", i, err)
		}
	}

	log := n.log().WithField("layer", i)
	log.Debug("pretraining layer")
	step := func(g *gradient.Gradient, miniBatch int) error {
		return n.applyLayerGradient(i, g, miniBatch)
	}
	n.forwarded = false
	score, err := p.Pretrain(input, n.cfg.Iterations, step, n.rng)
	if err != nil {
		return fmt.Errorf("multilayer: pretrain: %w", err)
	}
	p.DonePretrain()
	log.WithField("score", score).Debug("pretraining done")
	return nil
}

// checkLabels validates a supervised minibatch against the output layer.
func (n *Network) checkLabels(x, y *mat.Dense) error {
	if x == nil {
		return fmt.Errorf("multilayer: fit: %w", dataset.ErrEmpty)
	}
	if y == nil {
		return fmt.Errorf("multilayer: fit: %w", ErrNoLabels)
	}
	out, err := n.outputLayer()
	if err != nil {
		return err
	}
	xr, _ := x.Dims()
	yr, yc := y.Dims()
	if want := out.Config().NOut; yr != xr || yc != want {
		return &ShapeError{
			Op:   "multilayer: fit: labels",
			Want: fmt.Sprintf("[%d, %d]", xr, want),
			Got:  fmt.Sprintf("[%d, %d]", yr, yc),
		}
	}
	return nil
}

// fitBatch runs one supervised step. A failure before the update leaves the
// parameters unchanged.
func (n *Network) fitBatch(x, y *mat.Dense) error {
	if y == nil {
		return fmt.Errorf("multilayer: fit: %w", ErrNoLabels)
	}
	n.SetInput(x)
	n.SetLabels(y)
	if err := n.ComputeGradientAndScore(); err != nil {
		return err
	}

	rows, _ := x.Dims()
	miniBatch := rows / n.cfg.TimeSteps()
	if err := n.applyGradient(n.gradient, miniBatch); err != nil {
		return err
	}
	n.iteration++

	n.log().WithFields(logrus.Fields{
		"iteration": n.iteration,
		"score":     n.score,
	}).Trace("supervised step")
	for _, l := range n.listeners {
		l.IterationDone(n, n.iteration)
	}
	return nil
}

// applyGradient runs the layer updater over every entry of a network gradient.
func (n *Network) applyGradient(g *gradient.Gradient, miniBatch int) error {
	for _, key := range g.Keys() {
		v, ok := n.store.Lookup(key)
		if !ok {
			return fmt.Errorf("multilayer: apply gradient: %w: %q", ErrUnknownParam, key)
		}
		m, _ := g.Get(key)
		n.step(v, m, miniBatch)
	}
	return nil
}

// applyLayerGradient runs the updater of layer i over a gradient keyed by
// bare parameter names.
func (n *Network) applyLayerGradient(i int, g *gradient.Gradient, miniBatch int) error {
	for _, name := range g.Keys() {
		v, ok := n.store.Lookup(params.Key(i, name))
		if !ok {
			return fmt.Errorf("multilayer: layer %d: %w: %q", i, ErrUnknownParam, name)
		}
		m, _ := g.Get(name)
		n.step(v, m, miniBatch)
	}
	return nil
}

func (n *Network) step(v params.View, grad *mat.Dense, miniBatch int) {
	lc := n.layers[v.Layer].Config()
	s := updater.Step{
		Updater: n.updaters[v.Layer],
		Regularization: updater.Regularization{
			Enabled: lc.UseRegularization,
			L1:      lc.GetL1(),
			L2:      lc.GetL2(),
			L1Bias:  lc.GetL1Bias(),
			L2Bias:  lc.GetL2Bias(),
		},
	}
	s.Apply(updater.Param{
		Key:   v.Key,
		Value: v.Param.RawMatrix().Data,
		Grad:  flatten(grad),
		Bias:  v.Spec.Bias,
	}, n.iteration, miniBatch)
}

// flatten copies m row by row so the gradient itself is not rewritten into a delta.
func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}
