// Package dataset holds the labeled lead data consumed by training and
// tuning, together with its CSV codec and a synthetic generator.
package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

const (
	// NumFeatures is the width of a lead feature vector and of the serving
	// request body.
	NumFeatures = 15

	// TargetColumn is the header name of the label column.
	TargetColumn = "target"
)

// FeatureName returns the column name of feature i.
func FeatureName(i int) string {
	return fmt.Sprintf("feature_%d", i)
}

// DefaultFeatureNames returns feature_0 .. feature_{n-1}.
func DefaultFeatureNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = FeatureName(i)
	}
	return names
}

// Dataset is an immutable set of rows with a binary label each.
// It is safe for concurrent reads.
type Dataset struct {
	x     *mat.Dense
	y     []int
	names []string
}

// New builds a Dataset from a feature matrix and labels. Both are copied.
// A nil names slice yields the default feature_N names.
func New(x mat.Matrix, y []int, names []string) (*Dataset, error) {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return nil, lsErrors.Wrap(lsErrors.ErrEmptyData, "dataset.New")
	}
	if len(y) != r {
		return nil, lsErrors.NewShapeError(-1, r, len(y), "label count does not match row count")
	}
	if names == nil {
		names = DefaultFeatureNames(c)
	}
	if len(names) != c {
		return nil, lsErrors.NewShapeError(-1, c, len(names), "feature name count does not match column count")
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, lsErrors.NewShapeError(i, 1, label, "label must be 0 or 1")
		}
	}

	return &Dataset{
		x:     mat.DenseCopyOf(x),
		y:     append([]int(nil), y...),
		names: append([]string(nil), names...),
	}, nil
}

// FromRows builds a Dataset from row-major feature vectors. Every row must
// have the same width.
func FromRows(rows [][]float64, labels []int, names []string) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, lsErrors.Wrap(lsErrors.ErrEmptyData, "dataset.FromRows")
	}
	width := len(rows[0])
	if width == 0 {
		return nil, lsErrors.NewShapeError(0, 1, 0, "row has no features")
	}
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, lsErrors.NewShapeError(i, width, len(row), "ragged row")
		}
		data = append(data, row...)
	}
	return New(mat.NewDense(len(rows), width, data), labels, names)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.y)
}

// NumCols returns the feature width.
func (d *Dataset) NumCols() int {
	_, c := d.x.Dims()
	return c
}

// X returns a read-only view of the feature matrix.
func (d *Dataset) X() mat.Matrix {
	return d.x
}

// Labels returns a copy of the labels.
func (d *Dataset) Labels() []int {
	return append([]int(nil), d.y...)
}

// FeatureNames returns a copy of the column names.
func (d *Dataset) FeatureNames() []string {
	return append([]string(nil), d.names...)
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []float64 {
	return mat.Row(nil, i, d.x)
}

// Label returns the label of row i.
func (d *Dataset) Label(i int) int {
	return d.y[i]
}

// ClassCounts returns the number of rows per label.
func (d *Dataset) ClassCounts() map[int]int {
	counts := map[int]int{0: 0, 1: 0}
	for _, label := range d.y {
		counts[label]++
	}
	return counts
}

// Subset returns a new Dataset with the rows at idx, in that order.
func (d *Dataset) Subset(idx []int) (*Dataset, error) {
	if len(idx) == 0 {
		return nil, lsErrors.Wrap(lsErrors.ErrEmptyData, "dataset.Subset")
	}
	c := d.NumCols()
	x := mat.NewDense(len(idx), c, nil)
	y := make([]int, len(idx))
	for k, i := range idx {
		if i < 0 || i >= d.Len() {
			return nil, lsErrors.NewShapeError(k, d.Len(), i, "row index out of range")
		}
		x.SetRow(k, d.x.RawRowView(i))
		y[k] = d.y[i]
	}
	return &Dataset{x: x, y: y, names: d.FeatureNames()}, nil
}
