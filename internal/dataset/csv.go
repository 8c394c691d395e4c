package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LoadCSV reads numeric records with the class in column labelIndex.
//
// The class column may hold integer indices in [0, numClasses) or names; names
// are assigned indices in order of first appearance and become LabelNames.
// Integer classes get the names "0".."numClasses-1". Lines starting with '#'
// are skipped. A negative labelIndex loads features only.
func LoadCSV(r io.Reader, labelIndex, numClasses int) (*DataSet, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var (
		feats   []float64
		classes []int
		width   = -1
		names   []string
		byName  = map[string]int{}
		line    = 0
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: read csv: %w", err)
		}
		line++
		if labelIndex >= len(rec) {
			return nil, fmt.Errorf("dataset: csv line %d: label index %d out of range", line, labelIndex)
		}
		n := len(rec)
		if labelIndex >= 0 {
			n--
		}
		if width < 0 {
			width = n
		}
		if n != width {
			return nil, fmt.Errorf("dataset: csv line %d: %d features, want %d", line, n, width)
		}
		for j, field := range rec {
			field = strings.TrimSpace(field)
			if j == labelIndex {
				c, err := classOf(field, numClasses, byName, &names)
				if err != nil {
					return nil, fmt.Errorf("dataset: csv line %d: %w", line, err)
				}
				classes = append(classes, c)
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: csv line %d column %d: %w", line, j, err)
			}
			feats = append(feats, v)
		}
	}
	if line == 0 || width <= 0 {
		return nil, ErrEmpty
	}

	ds := &DataSet{Features: mat.NewDense(line, width, feats)}
	if labelIndex < 0 {
		return ds, nil
	}
	labels, err := OneHot(classes, numClasses)
	if err != nil {
		return nil, err
	}
	ds.Labels = labels
	if len(names) > 0 {
		ds.LabelNames = names
	} else {
		ds.LabelNames = make([]string, numClasses)
		for i := range ds.LabelNames {
			ds.LabelNames[i] = strconv.Itoa(i)
		}
	}
	return ds, nil
}

func classOf(field string, numClasses int, byName map[string]int, names *[]string) (int, error) {
	if c, err := strconv.Atoi(field); err == nil && len(*names) == 0 {
		if c < 0 || c >= numClasses {
			return 0, fmt.Errorf("class %d out of range [0, %d)", c, numClasses)
		}
		return c, nil
	}
	if c, ok := byName[field]; ok {
		return c, nil
	}
	if len(*names) >= numClasses {
		return 0, fmt.Errorf("more than %d distinct class names (%q)", numClasses, field)
	}
	byName[field] = len(*names)
	*names = append(*names, field)
	return byName[field], nil
}

// Blobs generates n examples of classes Gaussian clusters in features
// dimensions. The center of class c lies on axis c % features at distance
// 3*(1 + c/features); noise has standard deviation 0.5. Example i belongs to
// class i % classes.
func Blobs(n, features, classes int, seed int64) *DataSet {
	s := uint64(seed)
	rng := rand.New(rand.NewPCG(s, s+0x5851f42d4c957f2d))

	noise := distuv.Normal{Mu: 0, Sigma: 0.5, Src: rng}

	x := mat.NewDense(n, features, nil)
	label := make([]int, n)
	for i := 0; i < n; i++ {
		c := i % classes
		label[i] = c
		row := x.RawRowView(i)
		for j := range row {
			row[j] = noise.Rand()
		}
		row[c%features] += 3 * float64(1+c/features)
	}
	y, _ := OneHot(label, classes)
	names := make([]string, classes)
	for i := range names {
		names[i] = "class" + strconv.Itoa(i)
	}
	return &DataSet{Features: x, Labels: y, LabelNames: names}
}
