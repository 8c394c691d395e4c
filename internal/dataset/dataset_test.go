package dataset_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/dataset"
	"github.com/born-ml/multilayer/internal/nnerr"
)

func sample(t *testing.T) *dataset.DataSet {
	t.Helper()
	y, err := dataset.OneHot([]int{0, 1, 2, 1, 0}, 3)
	require.NoError(t, err)
	ds, err := dataset.New(mat.NewDense(5, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}), y)
	require.NoError(t, err)
	return ds
}

func TestNew_RowMismatch(t *testing.T) {
	_, err := dataset.New(mat.NewDense(2, 2, nil), mat.NewDense(3, 2, nil))
	assert.True(t, errors.Is(err, nnerr.ErrShapeMismatch))
}

func TestGetAndAsList(t *testing.T) {
	ds := sample(t)
	assert.Equal(t, 5, ds.NumExamples())
	assert.Equal(t, 3, ds.NumOutcomes())

	one := ds.Get(2)
	assert.Equal(t, []float64{5, 6}, one.Features.RawRowView(0))
	assert.Equal(t, []float64{0, 0, 1}, one.Labels.RawRowView(0))

	one.Features.Set(0, 0, 100)
	assert.Equal(t, 5.0, ds.Features.At(2, 0))

	list := ds.AsList()
	require.Len(t, list, 5)
	merged, err := dataset.Merge(list)
	require.NoError(t, err)
	assert.True(t, mat.Equal(ds.Features, merged.Features))
	assert.True(t, mat.Equal(ds.Labels, merged.Labels))
}

func TestSplitTestAndTrain(t *testing.T) {
	ds := sample(t)
	train, test, err := ds.SplitTestAndTrain(3)
	require.NoError(t, err)
	assert.Equal(t, 3, train.NumExamples())
	assert.Equal(t, 2, test.NumExamples())
	assert.Equal(t, []float64{7, 8}, test.Features.RawRowView(0))

	_, _, err = ds.SplitTestAndTrain(5)
	require.Error(t, err)
}

func TestShuffle_Deterministic(t *testing.T) {
	a, b := sample(t), sample(t)
	a.Shuffle(42)
	b.Shuffle(42)
	assert.True(t, mat.Equal(a.Features, b.Features))

	// rows keep their labels
	for i := 0; i < a.NumExamples(); i++ {
		first := a.Features.At(i, 0)
		orig := int(first-1) / 2
		want := []int{0, 1, 2, 1, 0}[orig]
		assert.Equal(t, 1.0, a.Labels.At(i, want))
	}
}

func TestNormalizeZeroMeanUnitVariance(t *testing.T) {
	ds := sample(t)
	ds.NormalizeZeroMeanUnitVariance()
	col := make([]float64, 5)
	for j := 0; j < 2; j++ {
		mat.Col(col, j, ds.Features)
		assert.InDelta(t, 0, floats.Sum(col), 1e-12)
		assert.InDelta(t, 5, floats.Dot(col, col), 1e-12)
	}
}

func TestBatchesAndIterator(t *testing.T) {
	ds := sample(t)
	batches := ds.Batches(2)
	require.Len(t, batches, 3)
	assert.Equal(t, 1, batches[2].NumExamples())

	it := dataset.NewListIterator(ds, 2)
	assert.Equal(t, 2, it.BatchSize())
	count := 0
	for it.HasNext() {
		require.NotNil(t, it.Next())
		count++
	}
	assert.Equal(t, 3, count)
	assert.Nil(t, it.Next())
	it.Reset()
	assert.True(t, it.HasNext())
}

func TestLabelName(t *testing.T) {
	ds := sample(t)
	_, err := ds.LabelName(0)
	assert.True(t, errors.Is(err, nnerr.ErrNoLabelNames))

	ds.LabelNames = []string{"a", "b", "c"}
	name, err := ds.LabelName(1)
	require.NoError(t, err)
	assert.Equal(t, "b", name)
	_, err = ds.LabelName(3)
	require.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	in := `# sepal,petal,class
5.1, 3.5, setosa
6.2, 2.9, versicolor
5.0, 3.4, setosa
`
	ds, err := dataset.LoadCSV(strings.NewReader(in), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.NumExamples())
	assert.Equal(t, []string{"setosa", "versicolor"}, ds.LabelNames)
	assert.Equal(t, []float64{0, 1, 0}, ds.Labels.RawRowView(1))
	assert.Equal(t, []float64{6.2, 2.9}, ds.Features.RawRowView(1))

	numeric, err := dataset.LoadCSV(strings.NewReader("1,0.5\n0,0.25\n"), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, numeric.LabelNames)
	assert.Equal(t, []float64{0, 1}, numeric.Labels.RawRowView(0))

	_, err = dataset.LoadCSV(strings.NewReader("1,x\n"), 0, 2)
	require.Error(t, err)
	_, err = dataset.LoadCSV(strings.NewReader("5,1\n"), 0, 2)
	require.Error(t, err)
	_, err = dataset.LoadCSV(strings.NewReader(""), 0, 2)
	assert.True(t, errors.Is(err, dataset.ErrEmpty))
}

func TestBlobs(t *testing.T) {
	ds := dataset.Blobs(30, 4, 3, 7)
	assert.Equal(t, 30, ds.NumExamples())
	assert.Equal(t, 3, ds.NumOutcomes())
	assert.Equal(t, []string{"class0", "class1", "class2"}, ds.LabelNames)
	assert.Equal(t, 1.0, ds.Labels.At(4, 1))

	again := dataset.Blobs(30, 4, 3, 7)
	assert.True(t, mat.Equal(ds.Features, again.Features))
}
