package fl

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sink receives named scalar diagnostics per round.
type Sink interface {
	AddScalar(tag string, value float64, round uint64)
}

// ImportanceEstimator scores every parameter, typically with the diagonal
// of the Fisher information measured on a poisoned validation set. With
// adversarial false the labels are replaced by the true base class.
type ImportanceEstimator interface {
	Importance(params []float64, adversarial bool) ([]float64, error)
}

// NetMovement accumulates, across rounds, how much further the model moved
// along honest-important parameters than along adversary-important ones.
// It is owned by the caller.
type NetMovement struct {
	Cumulative float64
}

// ReportNorms emits the average L2 norm of honest and corrupt updates. The
// leading numCorrupt agents are the corrupt ones.
func ReportNorms(sink Sink, batch *UpdateBatch, numCorrupt int, round uint64) {
	var honest, corrupt []float64
	for i, u := range batch.vectors() {
		if i < numCorrupt {
			corrupt = append(corrupt, floats.Norm(u, 2))
			continue
		}
		honest = append(honest, floats.Norm(u, 2))
	}

	if len(honest) > 0 {
		sink.AddScalar("Norms/Avg_Honest_L2", stat.Mean(honest, nil), round)
	}
	if len(corrupt) > 0 {
		sink.AddScalar("Norms/Avg_Corrupt_L2", stat.Mean(corrupt, nil), round)
	}
}

// SignAgreement splits the applied update by which parameters the adversary
// and the honest task depend on most (top topK by importance) and by the
// sign of their learning rate, then reports the L2 norm of each part:
//
//	S1 adversary-only, lr > 0    S2 honest-only, lr > 0
//	S3 adversary-only, lr < 0    S4 honest-only, lr < 0
//
// acc.Cumulative grows by (S2-S4) - (S1-S3).
func SignAgreement(est ImportanceEstimator, sink Sink, acc *NetMovement, lr []float64, serverLR float64, prev, next []float64, topK int, round uint64) error {
	if len(prev) != len(next) || len(lr) != len(prev) {
		return fmt.Errorf("%w: lr %d, prev %d, next %d", ErrDimensionMismatch, len(lr), len(prev), len(next))
	}
	update := floats.SubTo(make([]float64, len(next)), next, prev)

	advImportance, err := est.Importance(prev, true)
	if err != nil {
		return err
	}
	honImportance, err := est.Importance(prev, false)
	if err != nil {
		return err
	}
	if len(advImportance) != len(prev) || len(honImportance) != len(prev) {
		return fmt.Errorf("%w: importance scores do not cover %d params", ErrDimensionMismatch, len(prev))
	}
	advTop := topIndices(advImportance, topK)
	honTop := topIndices(honImportance, topK)

	var maxAdv, maxHon, minAdv, minHon []float64
	for i := range update {
		adv, hon := advTop[i], honTop[i]
		if adv == hon {
			continue
		}
		switch lr[i] {
		case serverLR:
			if adv {
				maxAdv = append(maxAdv, update[i])
			} else {
				maxHon = append(maxHon, update[i])
			}
		case -serverLR:
			if adv {
				minAdv = append(minAdv, update[i])
			} else {
				minHon = append(minHon, update[i])
			}
		}
	}

	s1, s2 := floats.Norm(maxAdv, 2), floats.Norm(maxHon, 2)
	s3, s4 := floats.Norm(minAdv, 2), floats.Norm(minHon, 2)
	sink.AddScalar("Sign/Hon_Maxim_L2", s2, round)
	sink.AddScalar("Sign/Adv_Maxim_L2", s1, round)
	sink.AddScalar("Sign/Adv_Minim_L2", s3, round)
	sink.AddScalar("Sign/Hon_Minim_L2", s4, round)

	netAdv := s1 - s3
	netHon := s2 - s4
	sink.AddScalar("Sign/Adv_Net_L2", netAdv, round)
	sink.AddScalar("Sign/Hon_Net_L2", netHon, round)

	acc.Cumulative += netHon - netAdv
	sink.AddScalar("Sign/Model_Net_L2_Cumulative", acc.Cumulative, round)

	return nil
}

// topIndices marks the k entries with the largest scores.
func topIndices(scores []float64, k int) []bool {
	sorted := slices.Clone(scores)
	idx := make([]int, len(scores))
	floats.Argsort(sorted, idx)

	k = max(0, min(k, len(idx)))
	top := make([]bool, len(scores))
	for _, i := range idx[len(idx)-k:] {
		top[i] = true
	}

	return top
}
