package lossfunc_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/activation"
	"github.com/born-ml/multilayer/internal/lossfunc"
)

func TestMCXENT_SoftmaxShortcut(t *testing.T) {
	loss, err := lossfunc.Get("mcxent")
	require.NoError(t, err)
	act, _ := activation.Get("softmax")

	z := mat.NewDense(1, 3, []float64{0.1, 0.2, 0.3})
	y := mat.NewDense(1, 3, []float64{0, 1, 0})
	a := act.Forward(z)

	g := loss.Gradient(y, z, act)
	for j := 0; j < 3; j++ {
		assert.InDelta(t, a.At(0, j)-y.At(0, j), g.At(0, j), 1e-15)
	}

	scores := loss.ScoreArray(y, z, act)
	require.Len(t, scores, 1)
	assert.InDelta(t, -math.Log(a.At(0, 1)), scores[0], 1e-12)
}

func TestScoreArray_OneValuePerRow(t *testing.T) {
	loss, _ := lossfunc.Get("mse")
	act, _ := activation.Get("identity")
	z := mat.NewDense(3, 2, []float64{1, 1, 0, 0, 2, 0})
	y := mat.NewDense(3, 2, []float64{1, 1, 1, 1, 0, 0})
	assert.Equal(t, []float64{0, 1, 2}, loss.ScoreArray(y, z, act))
}

// TestGradient_MatchesFiniteDifferences checks dL/dZ against the summed row scores.
func TestGradient_MatchesFiniteDifferences(t *testing.T) {
	zData := []float64{0.2, -0.4, 0.6, 0.1, 0.3, -0.5}
	yProb := []float64{0.2, 0.5, 0.3, 0.1, 0.1, 0.8}
	yBin := []float64{0, 1, 1, 1, 0, 0}

	cases := []struct {
		loss, act string
		labels    []float64
	}{
		{"mse", "identity", yBin},
		{"mse", "tanh", yBin},
		{"l2", "sigmoid", yBin},
		{"mcxent", "softmax", yProb},
		{"mcxent", "sigmoid", yBin},
		{"negativeloglikelihood", "softmax", yProb},
		{"xent", "sigmoid", yBin},
		{"xent", "softmax", yBin},
		{"cosine_proximity", "tanh", yProb},
		{"kl_divergence", "softmax", yProb},
	}
	for _, tc := range cases {
		t.Run(tc.loss+"/"+tc.act, func(t *testing.T) {
			loss, err := lossfunc.Get(tc.loss)
			require.NoError(t, err)
			act, err := activation.Get(tc.act)
			require.NoError(t, err)
			y := mat.NewDense(2, 3, tc.labels)

			got := loss.Gradient(y, mat.NewDense(2, 3, zData), act)

			want := make([]float64, len(zData))
			fd.Gradient(want, func(x []float64) float64 {
				return floats.Sum(loss.ScoreArray(y, mat.NewDense(2, 3, x), act))
			}, zData, &fd.Settings{Formula: fd.Central, Step: 1e-6})

			for i, w := range want {
				assert.InDelta(t, w, got.RawMatrix().Data[i], 1e-5, "element %d", i)
			}
		})
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := lossfunc.Get("hinge")
	require.Error(t, err)
}
