// Package dataset provides in-memory minibatches and iterators over them.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/nnerr"
)

// ErrEmpty is returned when an operation needs at least one example.
var ErrEmpty = errors.New("dataset: no examples")

// DataSet is a feature matrix with matching label rows.
//
// Labels are one-hot (or soft) rows; LabelNames maps label columns to names
// for prediction. Labels may be nil for unsupervised data.
type DataSet struct {
	Features   *mat.Dense
	Labels     *mat.Dense
	LabelNames []string
}

// New returns a dataset over features and labels. Row counts must match.
func New(features, labels *mat.Dense) (*DataSet, error) {
	if features == nil {
		return nil, ErrEmpty
	}
	if labels != nil {
		fr, _ := features.Dims()
		lr, lc := labels.Dims()
		if fr != lr {
			return nil, nnerr.Shape("dataset: new", fr, lc, lr, lc)
		}
	}
	return &DataSet{Features: features, Labels: labels}, nil
}

// NumExamples returns the number of rows.
func (d *DataSet) NumExamples() int {
	if d.Features == nil {
		return 0
	}
	r, _ := d.Features.Dims()
	return r
}

// NumOutcomes returns the label width, or 0 without labels.
func (d *DataSet) NumOutcomes() int {
	if d.Labels == nil {
		return 0
	}
	_, c := d.Labels.Dims()
	return c
}

// Get returns example i as a one-row dataset (copied).
func (d *DataSet) Get(i int) *DataSet {
	return d.rows([]int{i})
}

// rows copies the given rows into a new dataset.
func (d *DataSet) rows(idx []int) *DataSet {
	_, fc := d.Features.Dims()
	out := &DataSet{
		Features:   mat.NewDense(len(idx), fc, nil),
		LabelNames: d.LabelNames,
	}
	if d.Labels != nil {
		_, lc := d.Labels.Dims()
		out.Labels = mat.NewDense(len(idx), lc, nil)
	}
	for k, i := range idx {
		out.Features.SetRow(k, d.Features.RawRowView(i))
		if d.Labels != nil {
			out.Labels.SetRow(k, d.Labels.RawRowView(i))
		}
	}
	return out
}

// AsList returns every example as its own one-row dataset.
func (d *DataSet) AsList() []*DataSet {
	out := make([]*DataSet, d.NumExamples())
	for i := range out {
		out[i] = d.Get(i)
	}
	return out
}

// Merge concatenates datasets row-wise. Label names are taken from the first.
func Merge(list []*DataSet) (*DataSet, error) {
	if len(list) == 0 {
		return nil, ErrEmpty
	}
	var feats, labels []float64
	rows := 0
	_, fc := list[0].Features.Dims()
	lc := list[0].NumOutcomes()
	for _, d := range list {
		if _, c := d.Features.Dims(); c != fc {
			return nil, nnerr.Columns("dataset: merge features", fc, c)
		}
		if d.NumOutcomes() != lc {
			return nil, nnerr.Columns("dataset: merge labels", lc, d.NumOutcomes())
		}
		for i := 0; i < d.NumExamples(); i++ {
			feats = append(feats, d.Features.RawRowView(i)...)
			if lc > 0 {
				labels = append(labels, d.Labels.RawRowView(i)...)
			}
		}
		rows += d.NumExamples()
	}
	out := &DataSet{Features: mat.NewDense(rows, fc, feats), LabelNames: list[0].LabelNames}
	if lc > 0 {
		out.Labels = mat.NewDense(rows, lc, labels)
	}
	return out, nil
}

// SplitTestAndTrain puts the first numTrain examples in train and the rest in test.
func (d *DataSet) SplitTestAndTrain(numTrain int) (train, test *DataSet, err error) {
	n := d.NumExamples()
	if numTrain <= 0 || numTrain >= n {
		return nil, nil, fmt.Errorf("dataset: split %d of %d examples leaves an empty side", numTrain, n)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return d.rows(idx[:numTrain]), d.rows(idx[numTrain:]), nil
}

// Shuffle permutes the examples in place with a seeded generator.
func (d *DataSet) Shuffle(seed int64) {
	n := d.NumExamples()
	s := uint64(seed)
	rng := rand.New(rand.NewPCG(s, ^s))
	perm := rng.Perm(n)
	shuffled := d.rows(perm)
	d.Features, d.Labels = shuffled.Features, shuffled.Labels
}

// NormalizeZeroMeanUnitVariance standardizes every feature column in place.
// Constant columns are only centered.
func (d *DataSet) NormalizeZeroMeanUnitVariance() {
	r, c := d.Features.Dims()
	if r == 0 {
		return
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, d.Features)
		var mean, ss float64
		for _, v := range col {
			mean += v
		}
		mean /= float64(r)
		for _, v := range col {
			ss += (v - mean) * (v - mean)
		}
		std := math.Sqrt(ss / float64(r))
		if std == 0 {
			std = 1
		}
		for i, v := range col {
			d.Features.Set(i, j, (v-mean)/std)
		}
	}
}

// Batches splits the dataset into consecutive minibatches of size n; the last
// one may be smaller.
func (d *DataSet) Batches(n int) []*DataSet {
	total := d.NumExamples()
	if n <= 0 {
		n = total
	}
	var out []*DataSet
	for start := 0; start < total; start += n {
		end := min(start+n, total)
		idx := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			idx = append(idx, i)
		}
		out = append(out, d.rows(idx))
	}
	return out
}

// LabelName returns the name registered for label column i.
func (d *DataSet) LabelName(i int) (string, error) {
	if len(d.LabelNames) == 0 {
		return "", nnerr.ErrNoLabelNames
	}
	if i < 0 || i >= len(d.LabelNames) {
		return "", fmt.Errorf("dataset: label index %d out of range [0, %d)", i, len(d.LabelNames))
	}
	return d.LabelNames[i], nil
}

// OneHot builds a one-hot label matrix from class indices.
func OneHot(classes []int, numClasses int) (*mat.Dense, error) {
	m := mat.NewDense(len(classes), numClasses, nil)
	for i, c := range classes {
		if c < 0 || c >= numClasses {
			return nil, fmt.Errorf("dataset: class %d out of range [0, %d)", c, numClasses)
		}
		m.Set(i, c, 1)
	}
	return m, nil
}
