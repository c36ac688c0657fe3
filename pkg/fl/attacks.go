package fl

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	additiveNoiseStd = 1
	scaleBoost       = 10
)

// Attack corrupts the leading numCorrupt columns of a stacked n_params × N
// update matrix in place. The attacker sees every column before acting.
type Attack func(m *mat.Dense, numCorrupt int, rng *rand.Rand) error

// SignFlip negates the corrupt columns.
func SignFlip(m *mat.Dense, numCorrupt int, _ *rand.Rand) error {
	k := corruptCols(m, numCorrupt)
	rows, _ := m.Dims()
	for i := range rows {
		row := m.RawRowView(i)[:k]
		for j := range row {
			row[j] = -row[j]
		}
	}

	return nil
}

// AdditiveNoise adds standard normal noise to every entry of the corrupt
// columns.
func AdditiveNoise(m *mat.Dense, numCorrupt int, rng *rand.Rand) error {
	k := corruptCols(m, numCorrupt)
	normal := distuv.Normal{Mu: 0, Sigma: additiveNoiseStd, Src: rng}
	rows, _ := m.Dims()
	for i := range rows {
		row := m.RawRowView(i)[:k]
		for j := range row {
			row[j] += normal.Rand()
		}
	}

	return nil
}

// Scale amplifies the corrupt columns by adding ten times their value.
func Scale(m *mat.Dense, numCorrupt int, _ *rand.Rand) error {
	k := corruptCols(m, numCorrupt)
	rows, _ := m.Dims()
	for i := range rows {
		row := m.RawRowView(i)[:k]
		for j := range row {
			row[j] += scaleBoost * row[j]
		}
	}

	return nil
}

// MinSum has no construction of its own yet and behaves exactly like Scale.
func MinSum(m *mat.Dense, numCorrupt int, rng *rand.Rand) error {
	return Scale(m, numCorrupt, rng)
}

// MinMax overwrites every corrupt column with the vector built by
// MinMaxVector, using a random honest column as the reference.
func MinMax(m *mat.Dense, numCorrupt int, rng *rand.Rand) error {
	_, cols := m.Dims()
	if numCorrupt <= 0 {
		return nil
	}
	if numCorrupt >= cols {
		return fmt.Errorf("%w: %d corrupt of %d agents", ErrNoHonestAgents, numCorrupt, cols)
	}

	res, err := MinMaxVector(m, numCorrupt, numCorrupt+rng.IntN(cols-numCorrupt))
	if err != nil {
		return err
	}
	for j := range numCorrupt {
		m.SetCol(j, res.Malicious)
	}

	return nil
}

// MinMaxResult exposes the pieces of the min-max construction.
type MinMaxResult struct {
	Malicious  []float64
	HonestMean []float64
	// Direction is the unit vector pointing away from the honest mean.
	Direction []float64
	// Diameter is the largest pairwise distance among honest columns.
	Diameter float64
	// X is the positive root of the quadratic; the malicious vector sits
	// sqrt(X) away from the honest mean.
	X float64
}

// MinMaxVector builds the malicious vector m = avg + sqrt(x)*v2 where avg is
// the honest mean, v2 = -avg/|avg|, v1 = avg - honest[ref] and x is the
// positive root of (v2·v2)x² + 2(v2·v1)x + v1·v1 - dist² = 0, dist being the
// honest diameter. Columns from numCorrupt on are honest.
func MinMaxVector(m *mat.Dense, numCorrupt, ref int) (MinMaxResult, error) {
	_, cols := m.Dims()
	if numCorrupt < 0 || numCorrupt >= cols {
		return MinMaxResult{}, fmt.Errorf("%w: %d corrupt of %d agents", ErrNoHonestAgents, numCorrupt, cols)
	}
	if ref < numCorrupt || ref >= cols {
		return MinMaxResult{}, fmt.Errorf("%w: reference column %d is not honest", ErrInvalidConfig, ref)
	}

	honest := columns(m)[numCorrupt:]
	avg := weightedMean(honest, ones(len(honest)))

	v2 := slices.Clone(avg)
	floats.Scale(-1/floats.Norm(avg, 2), v2)

	var dist float64
	for i := range honest {
		for j := i + 1; j < len(honest); j++ {
			dist = math.Max(dist, floats.Distance(honest[i], honest[j], 2))
		}
	}

	v1 := floats.SubTo(make([]float64, len(avg)), avg, honest[ref-numCorrupt])

	a := floats.Dot(v2, v2)
	b := 2 * floats.Dot(v2, v1)
	c := floats.Dot(v1, v1) - dist*dist
	delta := b*b - 4*a*c
	if delta < 0 {
		return MinMaxResult{}, fmt.Errorf("%w: %g", ErrNegativeDiscriminant, delta)
	}
	x := (-b + math.Sqrt(delta)) / (2 * a)

	malicious := slices.Clone(avg)
	floats.AddScaled(malicious, math.Sqrt(x), v2)

	return MinMaxResult{
		Malicious:  malicious,
		HonestMean: avg,
		Direction:  v2,
		Diameter:   dist,
		X:          x,
	}, nil
}

// corruptCols clamps numCorrupt to the number of columns.
func corruptCols(m *mat.Dense, numCorrupt int) int {
	_, cols := m.Dims()

	return max(0, min(numCorrupt, cols))
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}

	return out
}
