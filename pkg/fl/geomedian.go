package fl

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	geoMedianEps     = 1e-8
	geoMedianMaxIter = 100
	geoMedianFTol    = 1e-20
)

// GeoMedianResult is the outcome of the Weiszfeld solver.
type GeoMedianResult struct {
	Median     []float64
	Objective  float64
	Iterations int
	Converged  bool
}

// GeometricMedian returns the unweighted geometric median of the columns of
// m. When the solver hits its iteration cap the last iterate is returned.
func GeometricMedian(m *mat.Dense) []float64 {
	return Weiszfeld(columns(m), nil).Median
}

// Weiszfeld minimizes the weighted sum of Euclidean distances to points.
// Nil weights mean every point weighs one. Distances are floored at 1e-8 so
// an iterate landing on a point does not divide by zero.
func Weiszfeld(points [][]float64, weights []float64) GeoMedianResult {
	if weights == nil {
		weights = ones(len(points))
	}

	median := weightedMean(points, weights)
	objective := geoMedianObjective(median, points, weights)
	scaled := slices.Clone(weights)

	res := GeoMedianResult{}
	for res.Iterations < geoMedianMaxIter {
		res.Iterations++
		prev := objective
		for i, p := range points {
			scaled[i] = weights[i] / math.Max(floats.Distance(p, median, 2), geoMedianEps)
		}
		median = weightedMean(points, scaled)
		objective = geoMedianObjective(median, points, weights)
		if math.Abs(prev-objective) <= geoMedianFTol*objective {
			res.Converged = true
			break
		}
	}
	res.Median = median
	res.Objective = objective

	return res
}

func weightedMean(points [][]float64, weights []float64) []float64 {
	out := make([]float64, len(points[0]))
	for i, p := range points {
		floats.AddScaled(out, weights[i], p)
	}
	floats.Scale(1/floats.Sum(weights), out)

	return out
}

func geoMedianObjective(median []float64, points [][]float64, weights []float64) float64 {
	var total float64
	for i, p := range points {
		total += weights[i] * floats.Distance(p, median, 2)
	}

	return total
}

func columns(m *mat.Dense) [][]float64 {
	_, cols := m.Dims()
	out := make([][]float64, cols)
	for j := range out {
		out[j] = mat.Col(nil, j, m)
	}

	return out
}
