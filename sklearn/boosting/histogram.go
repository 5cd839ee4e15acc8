package boosting

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// BinMapper discretises each feature into at most MaxBin quantile bins.
// A value v falls in bin b when Thresholds[b-1] < v <= Thresholds[b]; values
// above the last threshold (and NaN) use the last bin.
type BinMapper struct {
	Thresholds [][]float64
}

// NewBinMapper computes bin thresholds for every column of X.
func NewBinMapper(X *mat.Dense, maxBin int) *BinMapper {
	rows, cols := X.Dims()
	m := &BinMapper{Thresholds: make([][]float64, cols)}

	values := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(values, j, X)
		m.Thresholds[j] = findBinThresholds(values, maxBin)
	}
	return m
}

// findBinThresholds returns ascending split candidates for one feature.
func findBinThresholds(values []float64, maxBin int) []float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if v == v { // skip NaN
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)

	unique := []float64{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			unique = append(unique, sorted[i])
		}
	}

	// Few distinct values: split between each consecutive pair.
	if len(unique) <= maxBin {
		bounds := make([]float64, 0, len(unique)-1)
		for i := 0; i+1 < len(unique); i++ {
			bounds = append(bounds, (unique[i]+unique[i+1])/2)
		}
		return bounds
	}

	// Otherwise equal-frequency cuts over the sorted sample.
	bounds := make([]float64, 0, maxBin-1)
	for k := 1; k < maxBin; k++ {
		q := sorted[k*len(sorted)/maxBin]
		if len(bounds) == 0 || q > bounds[len(bounds)-1] {
			bounds = append(bounds, q)
		}
	}
	// the largest value must stay to the right of every cut
	for len(bounds) > 0 && bounds[len(bounds)-1] >= sorted[len(sorted)-1] {
		bounds = bounds[:len(bounds)-1]
	}
	return bounds
}

// NumBins returns the number of bins of feature j.
func (m *BinMapper) NumBins(j int) int {
	return len(m.Thresholds[j]) + 1
}

// Bin maps a raw value of feature j to its bin index.
func (m *BinMapper) Bin(j int, v float64) uint8 {
	return uint8(sort.SearchFloat64s(m.Thresholds[j], v))
}

// Transform returns the column-major binned representation of X.
func (m *BinMapper) Transform(X *mat.Dense) [][]uint8 {
	rows, cols := X.Dims()
	out := make([][]uint8, cols)
	for j := 0; j < cols; j++ {
		col := make([]uint8, rows)
		for i := 0; i < rows; i++ {
			col[i] = m.Bin(j, X.At(i, j))
		}
		out[j] = col
	}
	return out
}

// HistogramBin accumulates gradient statistics of one bin.
type HistogramBin struct {
	Count   int
	SumGrad float64
	SumHess float64
}

// buildHistogram accumulates the statistics of rows idx for one binned column.
func buildHistogram(hist []HistogramBin, col []uint8, idx []int, grad, hess []float64) {
	for b := range hist {
		hist[b] = HistogramBin{}
	}
	for _, i := range idx {
		h := &hist[col[i]]
		h.Count++
		h.SumGrad += grad[i]
		h.SumHess += hess[i]
	}
}
