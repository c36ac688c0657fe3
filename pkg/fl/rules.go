package fl

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// quantizationField is the fixed-point scale simulated by QuantizedAverage.
const quantizationField = 1e4

// WeightedAverage is classic FedAvg: the sum of updates weighted by dataset
// size divided by the total weight.
func WeightedAverage(batch *UpdateBatch, weights AgentWeights) ([]float64, error) {
	dim, err := batch.Dim()
	if err != nil {
		return nil, err
	}

	sum := make([]float64, dim)
	var total float64
	for _, id := range batch.ids {
		w, ok := weights[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingWeight, id)
		}
		floats.AddScaled(sum, w, batch.updates[id])
		total += w
	}
	if total <= 0 {
		return nil, ErrZeroWeight
	}
	floats.Scale(1/total, sum)

	return sum, nil
}

// Mean averages the columns of an n_params × N matrix.
func Mean(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = stat.Mean(m.RawRowView(i), nil)
	}

	return out
}

// QuantizedAverage rounds the column mean to the nearest multiple of 1e-4,
// ties to even, to simulate fixed-point quantization loss.
func QuantizedAverage(m *mat.Dense) []float64 {
	out := Mean(m)
	for i, v := range out {
		out[i] = scalar.RoundEven(v*quantizationField, 0) / quantizationField
	}

	return out
}

// CoordinateMedian takes the per-coordinate median across agents. For an
// even number of agents the lower of the two middle values is returned.
func CoordinateMedian(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, rows)
	buf := make([]float64, cols)
	for i := range out {
		copy(buf, m.RawRowView(i))
		if slices.ContainsFunc(buf, math.IsNaN) {
			out[i] = math.NaN()
			continue
		}
		slices.Sort(buf)
		out[i] = stat.Quantile(0.5, stat.Empirical, buf, nil)
	}

	return out
}

// MajoritySign returns, per coordinate, the sign of the summed agent signs.
func MajoritySign(batch *UpdateBatch) ([]float64, error) {
	sum, err := signSum(batch)
	if err != nil {
		return nil, err
	}
	for i, v := range sum {
		sum[i] = sign(v)
	}

	return sum, nil
}

func signSum(batch *UpdateBatch) ([]float64, error) {
	dim, err := batch.Dim()
	if err != nil {
		return nil, err
	}
	sum := make([]float64, dim)
	for _, u := range batch.vectors() {
		for i, v := range u {
			sum[i] += sign(v)
		}
	}

	return sum, nil
}

// sign maps positives to 1, negatives to -1 and leaves zero and NaN as is.
func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return v
	}
}
