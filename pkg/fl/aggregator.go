package fl

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// pcgStream is xored into the seed to derive the second PCG word.
const pcgStream = 0x9e3779b97f4a7c15

// Aggregator combines per-agent updates into one global update and applies
// it to a GlobalModel. The rule is resolved once at construction.
type Aggregator struct {
	cfg        Config
	weights    AgentWeights
	nParams    int
	numCorrupt int

	// honest is set for rules that aggregate the batch as submitted.
	honest func(*UpdateBatch, AgentWeights) ([]float64, error)
	// attack and combine are set for poisoning rules.
	attack  Attack
	combine func(*mat.Dense) []float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAggregator fails on an unknown rule or defense and on inconsistent
// numeric settings, so a bad configuration never reaches a round.
func NewAggregator(cfg Config, weights AgentWeights, nParams int) (*Aggregator, error) {
	if err := cfg.validate(nParams); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	a := &Aggregator{
		cfg:     cfg,
		weights: maps.Clone(weights),
		nParams: nParams,
		rng:     rand.New(rand.NewPCG(seed, seed^pcgStream)),
	}

	switch cfg.Rule {
	case RuleAverage:
		a.honest = WeightedAverage
	case RuleQuantizedAverage:
		a.honest = stacked(QuantizedAverage)
	case RuleCoordinateMedian:
		a.honest = stacked(CoordinateMedian)
	case RuleSign:
		a.honest = func(b *UpdateBatch, _ AgentWeights) ([]float64, error) {
			return MajoritySign(b)
		}
	case RuleGeometricMedian:
		a.honest = stacked(GeometricMedian)
	case RuleSignFlip:
		a.attack = SignFlip
	case RuleAdditiveNoise:
		a.attack = AdditiveNoise
	case RuleScale:
		a.attack = Scale
	case RuleMinMax:
		a.attack = MinMax
	case RuleMinSum:
		a.attack = MinSum
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRule, cfg.Rule)
	}

	if a.attack != nil {
		a.numCorrupt = cfg.numCorrupt()
		switch cfg.Defense {
		case DefenseNone:
			a.combine = Mean
		case DefenseCoordinateMedian:
			a.combine = CoordinateMedian
		case DefenseGeometricMedian:
			a.combine = GeometricMedian
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownDefense, cfg.Defense)
		}
	}

	return a, nil
}

func (a *Aggregator) Config() Config {
	return a.cfg
}

func (a *Aggregator) NumParams() int {
	return a.nParams
}

// NumCorrupt is the number of leading agents the configured attack
// corrupts, zero for honest rules.
func (a *Aggregator) NumCorrupt() int {
	return a.numCorrupt
}

// Aggregate runs one round with the weights given at construction.
func (a *Aggregator) Aggregate(model GlobalModel, batch *UpdateBatch, round uint64) (Report, error) {
	return a.AggregateWeighted(model, batch, a.weights, round)
}

// AggregateWeighted runs one round: learning rates, optional attack, rule,
// optional noise, and the write-back cur + lr ⊙ update. weights are the
// sample counts of this round and only matter for the average rule. The
// batch is never modified and the model is left untouched when an error is
// returned.
func (a *Aggregator) AggregateWeighted(model GlobalModel, batch *UpdateBatch, weights AgentWeights, round uint64) (Report, error) {
	dim, err := batch.Dim()
	if err != nil {
		return Report{}, err
	}
	if dim != a.nParams {
		return Report{}, fmt.Errorf("%w: updates have %d params, expected %d", ErrDimensionMismatch, dim, a.nParams)
	}
	cur := model.Params()
	if len(cur) != a.nParams {
		return Report{}, fmt.Errorf("%w: model has %d params, expected %d", ErrDimensionMismatch, len(cur), a.nParams)
	}

	work := batch.Clone()
	if a.cfg.ClipUpdates {
		ClipBatch(work, a.cfg.Clip)
	}

	lr := constantLR(a.nParams, a.cfg.ServerLR)
	if a.cfg.RobustLRThreshold > 0 {
		if lr, err = RobustLR(work, a.cfg.RobustLRThreshold, a.cfg.ServerLR); err != nil {
			return Report{}, err
		}
	}

	update, numCorrupt, err := a.aggregate(work, weights)
	if err != nil {
		return Report{}, err
	}

	var noiseStd float64
	if a.cfg.Noise > 0 {
		noiseStd = a.cfg.Noise * a.cfg.Clip
		a.addNoise(update, noiseStd)
	}

	next := floats.MulTo(make([]float64, a.nParams), lr, update)
	floats.Add(next, cur)
	if err := model.SetParams(next); err != nil {
		return Report{}, err
	}

	var negative int
	for _, v := range lr {
		if v < 0 {
			negative++
		}
	}

	return Report{
		Round:         round,
		NumAgents:     batch.Len(),
		NumCorrupt:    numCorrupt,
		Rule:          a.cfg.Rule,
		Defense:       a.cfg.Defense,
		UpdateNorm:    floats.Norm(update, 2),
		NegativeLR:    negative,
		NoiseStd:      noiseStd,
		LearningRates: lr,
	}, nil
}

func (a *Aggregator) aggregate(work *UpdateBatch, weights AgentWeights) ([]float64, int, error) {
	if a.honest != nil {
		update, err := a.honest(work, weights)

		return update, 0, err
	}

	m, err := work.Stack()
	if err != nil {
		return nil, 0, err
	}
	numCorrupt := corruptCols(m, a.numCorrupt)

	a.mu.Lock()
	err = a.attack(m, numCorrupt, a.rng)
	a.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}

	return a.combine(m), numCorrupt, nil
}

func (a *Aggregator) addNoise(update []float64, std float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	normal := distuv.Normal{Mu: 0, Sigma: std, Src: a.rng}
	for i := range update {
		update[i] += normal.Rand()
	}
}

func stacked(rule func(*mat.Dense) []float64) func(*UpdateBatch, AgentWeights) ([]float64, error) {
	return func(b *UpdateBatch, _ AgentWeights) ([]float64, error) {
		m, err := b.Stack()
		if err != nil {
			return nil, err
		}

		return rule(m), nil
	}
}
