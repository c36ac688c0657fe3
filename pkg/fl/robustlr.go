package fl

import "math"

// RobustLR assigns every coordinate +serverLR when the agents agree on its
// sign strongly enough, |Σ sign(u_i)| >= threshold, and -serverLR otherwise.
func RobustLR(batch *UpdateBatch, threshold, serverLR float64) ([]float64, error) {
	sum, err := signSum(batch)
	if err != nil {
		return nil, err
	}
	for i, v := range sum {
		if math.IsNaN(v) {
			continue
		}
		if math.Abs(v) < threshold {
			sum[i] = -serverLR
			continue
		}
		sum[i] = serverLR
	}

	return sum, nil
}

func constantLR(n int, serverLR float64) []float64 {
	lr := make([]float64, n)
	for i := range lr {
		lr[i] = serverLR
	}

	return lr
}
