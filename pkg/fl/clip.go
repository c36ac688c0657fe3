package fl

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Clip scales u in place so that its L2 norm is at most bound.
func Clip(u []float64, bound float64) {
	floats.Scale(1/math.Max(1, floats.Norm(u, 2)/bound), u)
}

// ClipBatch clips every update of the batch in place.
func ClipBatch(batch *UpdateBatch, bound float64) {
	for _, u := range batch.vectors() {
		Clip(u, bound)
	}
}
