package multilayer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/dataset"
)

// PredictClasses returns the argmax of the network output for every row of x.
func (n *Network) PredictClasses(x *mat.Dense) ([]int, error) {
	out, err := n.Output(x)
	if err != nil {
		return nil, err
	}
	rows, _ := out.Dims()
	classes := make([]int, rows)
	for i := range classes {
		classes[i] = floats.MaxIdx(out.RawRowView(i))
	}
	return classes, nil
}

// Predict returns the label name of the most probable class for every
// example of ds. ds must carry label names.
func (n *Network) Predict(ds *dataset.DataSet) ([]string, error) {
	if ds == nil {
		return nil, fmt.Errorf("multilayer: predict: %w", dataset.ErrEmpty)
	}
	if len(ds.LabelNames) == 0 {
		return nil, fmt.Errorf("multilayer: predict: %w", ErrNoLabelNames)
	}
	classes, err := n.PredictClasses(ds.Features)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(classes))
	for i, c := range classes {
		if names[i], err = ds.LabelName(c); err != nil {
			return nil, fmt.Errorf("multilayer: predict: %w", err)
		}
	}
	return names, nil
}
