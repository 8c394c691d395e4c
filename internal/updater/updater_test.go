package updater_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/multilayer/internal/updater"
)

func TestSGD(t *testing.T) {
	u, err := updater.New(updater.SGD, updater.Config{LearningRate: 0.1})
	require.NoError(t, err)

	value := []float64{2.0}
	updater.Step{Updater: u}.Apply(updater.Param{Key: "0_W", Value: value, Grad: []float64{1.0}}, 0, 1)

	// x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0
	assert.InDelta(t, 1.9, value[0], 1e-12)
}

func TestSGD_ZeroLearningRateFreezes(t *testing.T) {
	u, err := updater.New("", updater.Config{})
	require.NoError(t, err)
	g := []float64{0.5, -2}
	u.Update("k", g, 0)
	assert.Equal(t, []float64{0, 0}, g)
}

func TestNesterovs_ZeroMomentumIsPlainSGD(t *testing.T) {
	u, err := updater.New(updater.Nesterovs, updater.Config{LearningRate: 0.1})
	require.NoError(t, err)
	for it := 0; it < 3; it++ {
		g := []float64{1}
		u.Update("k", g, it)
		assert.InDelta(t, 0.1, g[0], 1e-12, "iteration %d", it)
	}
}

func TestNone(t *testing.T) {
	u, err := updater.New(updater.None, updater.Config{LearningRate: 0.01})
	require.NoError(t, err)
	g := []float64{3}
	u.Update("k", g, 7)
	assert.Equal(t, []float64{3}, g)
}

func TestNesterovs(t *testing.T) {
	u, err := updater.New(updater.Nesterovs, updater.Config{LearningRate: 0.1, Momentum: 0.9})
	require.NoError(t, err)

	// step 1: v = -0.1, delta = 0 - 1.9*(-0.1) = 0.19
	g := []float64{1}
	u.Update("0_W", g, 0)
	assert.InDelta(t, 0.19, g[0], 1e-12)

	// step 2: v = 0.9*(-0.1) - 0.1 = -0.19, delta = 0.9*(-0.1) - 1.9*(-0.19) = 0.271
	g = []float64{1}
	u.Update("0_W", g, 1)
	assert.InDelta(t, 0.271, g[0], 1e-12)

	state := u.StateDict()
	require.Contains(t, state, "velocity.0_W")
	assert.InDelta(t, -0.19, state["velocity.0_W"][0], 1e-12)
}

func TestAdaptiveRulesFirstStep(t *testing.T) {
	for _, name := range []string{updater.AdaGrad, updater.Adam} {
		t.Run(name, func(t *testing.T) {
			u, err := updater.New(name, updater.Config{LearningRate: 0.01})
			require.NoError(t, err)
			g := []float64{4, -0.5}
			u.Update("1_b", g, 0)
			assert.InDelta(t, 0.01, g[0], 1e-6)
			assert.InDelta(t, -0.01, g[1], 1e-6)
		})
	}
}

func TestRMSProp(t *testing.T) {
	u, err := updater.New(updater.RMSProp, updater.Config{LearningRate: 0.1, RMSDecay: 0.5})
	require.NoError(t, err)
	g := []float64{2}
	u.Update("k", g, 0)
	// cache = 0.5*4 = 2, delta = 0.1*2/sqrt(2)
	assert.InDelta(t, 0.2/1.4142135623730951, g[0], 1e-6)
}

func TestStateDictRoundTrip(t *testing.T) {
	for _, name := range []string{updater.Nesterovs, updater.AdaGrad, updater.RMSProp, updater.Adam} {
		t.Run(name, func(t *testing.T) {
			a, err := updater.New(name, updater.Config{LearningRate: 0.05, Momentum: 0.9})
			require.NoError(t, err)
			b, err := updater.New(name, updater.Config{LearningRate: 0.05, Momentum: 0.9})
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				a.Update("0_W", []float64{1, -1, 0.5}, i)
			}
			require.NoError(t, b.LoadStateDict(a.StateDict()))
			assert.Equal(t, a.StateDict(), b.StateDict())

			ga := []float64{0.3, 0.2, -0.1}
			gb := []float64{0.3, 0.2, -0.1}
			a.Update("0_W", ga, 3)
			b.Update("0_W", gb, 3)
			assert.Equal(t, ga, gb)
		})
	}
}

func TestStep_Prepare(t *testing.T) {
	s := updater.Step{Regularization: updater.Regularization{Enabled: true, L1: 0.5, L2: 2, L1Bias: 1, L2Bias: 0}}

	w := updater.Param{Key: "0_W", Value: []float64{1, -1, 0}, Grad: []float64{4, 4, 4}}
	s.Prepare(w, 2)
	// (g + l2*w + l1*sign(w)) / miniBatch
	assert.Equal(t, []float64{(4 + 2 + 0.5) / 2, (4 - 2 - 0.5) / 2, 2}, w.Grad)

	b := updater.Param{Key: "0_b", Value: []float64{-3}, Grad: []float64{1}, Bias: true}
	s.Prepare(b, 1)
	assert.Equal(t, []float64{0}, b.Grad)

	s.Regularization.Enabled = false
	off := updater.Param{Key: "0_W", Value: []float64{5}, Grad: []float64{6}}
	s.Prepare(off, 3)
	assert.Equal(t, []float64{2}, off.Grad)
}

func TestNew_Unknown(t *testing.T) {
	_, err := updater.New("lbfgs", updater.Config{})
	require.Error(t, err)
}
