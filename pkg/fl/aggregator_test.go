package fl_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/absmach/fedguard/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

var errWrite = errors.New("write failed")

type failingModel struct {
	params []float64
}

func (m *failingModel) Params() []float64 {
	return slices.Clone(m.params)
}

func (m *failingModel) SetParams([]float64) error {
	return errWrite
}

func TestAggregateEndToEnd(t *testing.T) {
	t.Parallel()
	agg, err := fl.NewAggregator(fl.Config{Rule: fl.RuleAverage, ServerLR: 0.1, NumCorrupt: -1}, unitWeights(3), 4)
	require.NoError(t, err)

	model := fl.NewModelFrom([]float32{1, 2, 3, 4})
	batch := newBatch(t, []float64{1, 1, 1, 1}, []float64{1, 1, 1, 1}, []float64{1, 1, 1, 1})

	report, err := agg.Aggregate(model, batch, 1)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{1.1, 2.1, 3.1, 4.1}, model.Params(), 1e-6)
	assert.Equal(t, uint64(1), model.Version())
	assert.Equal(t, uint64(1), report.Round)
	assert.Equal(t, 3, report.NumAgents)
	assert.Equal(t, 0, report.NumCorrupt)
	assert.Equal(t, fl.RuleAverage, report.Rule)
	assert.InDelta(t, 2, report.UpdateNorm, 1e-12)
	assert.Zero(t, report.NegativeLR)
	assert.Equal(t, []float64{0.1, 0.1, 0.1, 0.1}, report.LearningRates)
}

func TestAggregateIdenticalUpdates(t *testing.T) {
	t.Parallel()
	u := []float64{0.5, -0.25, 2, 0}
	rules := []fl.Rule{fl.RuleAverage, fl.RuleQuantizedAverage, fl.RuleCoordinateMedian, fl.RuleGeometricMedian}

	for _, rule := range rules {
		t.Run(rule.String(), func(t *testing.T) {
			t.Parallel()
			agg, err := fl.NewAggregator(fl.Config{Rule: rule, ServerLR: 1}, unitWeights(5), len(u))
			require.NoError(t, err)

			model := fl.NewModel(len(u))
			batch := newBatch(t, u, u, u, u, u)
			_, err = agg.Aggregate(model, batch, 1)
			require.NoError(t, err)
			assert.InDeltaSlice(t, u, model.Params(), 1e-6)
		})
	}
}

func TestAggregateSign(t *testing.T) {
	t.Parallel()
	agg, err := fl.NewAggregator(fl.Config{Rule: fl.RuleSign, ServerLR: 0.01}, nil, 3)
	require.NoError(t, err)

	model := fl.NewModel(3)
	_, err = agg.Aggregate(model, newBatch(t, []float64{3, -1, 0}, []float64{0.2, -5, 0}, []float64{-1, 2, 0}), 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.01, -0.01, 0}, model.Params(), 1e-6)
}

func TestAggregatePoisoning(t *testing.T) {
	t.Parallel()
	updates := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}, {1, 1}}
	cases := []struct {
		name       string
		cfg        fl.Config
		numCorrupt int
		expected   []float64
	}{
		{
			name:       "sign flip with plain mean",
			cfg:        fl.Config{Rule: fl.RuleSignFlip, ServerLR: 1, NumCorrupt: -1},
			numCorrupt: 3,
			expected:   []float64{-0.2, -0.2},
		},
		{
			name:       "sign flip against coordinate median",
			cfg:        fl.Config{Rule: fl.RuleSignFlip, Defense: fl.DefenseCoordinateMedian, ServerLR: 1, NumCorrupt: 2},
			numCorrupt: 2,
			expected:   []float64{1, 1},
		},
		{
			name:       "scale with plain mean",
			cfg:        fl.Config{Rule: fl.RuleScale, ServerLR: 1, NumCorrupt: -1},
			numCorrupt: 1,
			expected:   []float64{3, 3},
		},
		{
			name:       "scale against geometric median",
			cfg:        fl.Config{Rule: fl.RuleScale, Defense: fl.DefenseGeometricMedian, ServerLR: 1, NumCorrupt: 1},
			numCorrupt: 1,
			expected:   []float64{1, 1},
		},
		{
			name:       "corrupt count clamped to the batch",
			cfg:        fl.Config{Rule: fl.RuleSignFlip, ServerLR: 1, NumCorrupt: 9},
			numCorrupt: 5,
			expected:   []float64{-1, -1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tc.cfg.Seed = 42
			agg, err := fl.NewAggregator(tc.cfg, unitWeights(len(updates)), 2)
			require.NoError(t, err)

			model := fl.NewModel(2)
			report, err := agg.Aggregate(model, newBatch(t, updates...), 3)
			require.NoError(t, err)
			assert.Equal(t, tc.numCorrupt, report.NumCorrupt)
			assert.InDeltaSlice(t, tc.expected, model.Params(), 1e-4)
		})
	}
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	rules := []fl.Rule{fl.RuleSignFlip, fl.RuleAdditiveNoise, fl.RuleScale, fl.RuleMinMax, fl.RuleMinSum}
	for _, rule := range rules {
		t.Run(rule.String(), func(t *testing.T) {
			t.Parallel()
			updates := [][]float64{{1, 2}, {3, 1}, {-1, 0}, {0, 2}, {2, 2}}
			batch := newBatch(t, updates...)

			agg, err := fl.NewAggregator(fl.Config{Rule: rule, ServerLR: 1, Clip: 0.5, ClipUpdates: true, NumCorrupt: -1, Seed: 1}, unitWeights(len(updates)), 2)
			require.NoError(t, err)
			_, err = agg.Aggregate(fl.NewModel(2), batch, 1)
			require.NoError(t, err)

			for i, id := range batch.IDs() {
				got, _ := batch.Get(id)
				assert.Equal(t, updates[i], got)
			}
		})
	}
}

func TestAggregateRobustLR(t *testing.T) {
	t.Parallel()
	agg, err := fl.NewAggregator(fl.Config{Rule: fl.RuleAverage, ServerLR: 1, RobustLRThreshold: 2}, unitWeights(2), 2)
	require.NoError(t, err)

	model := fl.NewModel(2)
	report, err := agg.Aggregate(model, newBatch(t, []float64{1, 1}, []float64{1, -3}), 1)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, -1}, report.LearningRates)
	assert.Equal(t, 1, report.NegativeLR)
	assert.InDeltaSlice(t, []float64{1, 1}, model.Params(), 1e-6)
}

func TestAggregateNoise(t *testing.T) {
	t.Parallel()
	cfg := fl.Config{Rule: fl.RuleAverage, ServerLR: 1, Clip: 2, Noise: 0.5, Seed: 99}
	run := func() []float64 {
		agg, err := fl.NewAggregator(cfg, unitWeights(2), 64)
		require.NoError(t, err)
		model := fl.NewModel(64)
		report, err := agg.Aggregate(model, newBatch(t, make([]float64, 64), make([]float64, 64)), 1)
		require.NoError(t, err)
		assert.Equal(t, 1.0, report.NoiseStd)

		return model.Params()
	}

	first, second := run(), run()
	assert.Equal(t, first, second)
	assert.Greater(t, floats.Norm(first, 2), 0.0)
}

func TestAggregateClipsUpdates(t *testing.T) {
	t.Parallel()
	agg, err := fl.NewAggregator(fl.Config{Rule: fl.RuleAverage, ServerLR: 1, Clip: 1, ClipUpdates: true}, unitWeights(2), 2)
	require.NoError(t, err)

	model := fl.NewModel(2)
	_, err = agg.Aggregate(model, newBatch(t, []float64{3, 4}, []float64{0.3, 0.4}), 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.45, 0.6}, model.Params(), 1e-6)
}

func TestAggregateErrors(t *testing.T) {
	t.Parallel()
	agg, err := fl.NewAggregator(fl.Config{Rule: fl.RuleAverage, ServerLR: 1}, unitWeights(2), 2)
	require.NoError(t, err)

	cases := []struct {
		name  string
		model fl.GlobalModel
		batch *fl.UpdateBatch
		err   error
	}{
		{
			name:  "empty batch",
			model: fl.NewModel(2),
			batch: fl.NewUpdateBatch(),
			err:   fl.ErrNoUpdates,
		},
		{
			name:  "agents disagree on length",
			model: fl.NewModel(2),
			batch: newBatch(t, []float64{1, 2}, []float64{1}),
			err:   fl.ErrDimensionMismatch,
		},
		{
			name:  "updates do not match n_params",
			model: fl.NewModel(2),
			batch: newBatch(t, []float64{1, 2, 3}, []float64{1, 2, 3}),
			err:   fl.ErrDimensionMismatch,
		},
		{
			name:  "model does not match n_params",
			model: fl.NewModel(3),
			batch: newBatch(t, []float64{1, 2}, []float64{1, 2}),
			err:   fl.ErrDimensionMismatch,
		},
		{
			name:  "write-back fails",
			model: &failingModel{params: []float64{0, 0}},
			batch: newBatch(t, []float64{1, 2}, []float64{1, 2}),
			err:   errWrite,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := agg.Aggregate(tc.model, tc.batch, 1)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestAggregateErrorLeavesModel(t *testing.T) {
	t.Parallel()
	agg, err := fl.NewAggregator(fl.Config{Rule: fl.RuleMinMax, ServerLR: 1, NumCorrupt: 2}, nil, 2)
	require.NoError(t, err)

	model := fl.NewModelFrom([]float32{4, 5})
	_, err = agg.Aggregate(model, newBatch(t, []float64{1, 1}, []float64{2, 2}), 1)
	require.ErrorIs(t, err, fl.ErrNoHonestAgents)
	assert.Equal(t, []float32{4, 5}, model.Float32())
	assert.Zero(t, model.Version())
}

func TestNewAggregatorValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		cfg     fl.Config
		nParams int
		err     error
	}{
		{name: "unknown rule", cfg: fl.Config{Rule: fl.Rule(200)}, nParams: 1, err: fl.ErrUnknownRule},
		{name: "unknown defense", cfg: fl.Config{Rule: fl.RuleScale, Defense: fl.Defense(9)}, nParams: 1, err: fl.ErrUnknownDefense},
		{name: "no params", cfg: fl.Config{}, nParams: 0, err: fl.ErrInvalidConfig},
		{name: "negative server lr", cfg: fl.Config{ServerLR: -1}, nParams: 1, err: fl.ErrInvalidConfig},
		{name: "negative threshold", cfg: fl.Config{RobustLRThreshold: -1}, nParams: 1, err: fl.ErrInvalidConfig},
		{name: "negative clip", cfg: fl.Config{Clip: -1}, nParams: 1, err: fl.ErrInvalidConfig},
		{name: "noise without clip", cfg: fl.Config{Noise: 0.1}, nParams: 1, err: fl.ErrInvalidConfig},
		{name: "clipping without bound", cfg: fl.Config{ClipUpdates: true}, nParams: 1, err: fl.ErrInvalidConfig},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := fl.NewAggregator(tc.cfg, nil, tc.nParams)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestNewAggregatorIgnoresDefenseForHonestRules(t *testing.T) {
	t.Parallel()
	agg, err := fl.NewAggregator(fl.Config{Rule: fl.RuleCoordinateMedian, Defense: fl.DefenseGeometricMedian, ServerLR: 1}, nil, 2)
	require.NoError(t, err)
	assert.Zero(t, agg.NumCorrupt())
	assert.Equal(t, 2, agg.NumParams())
	assert.Equal(t, fl.DefenseGeometricMedian, agg.Config().Defense)
}

func TestAggregateWeighted(t *testing.T) {
	t.Parallel()
	agg, err := fl.NewAggregator(fl.Config{Rule: fl.RuleAverage, ServerLR: 1}, fl.AgentWeights{"agent-a": 1, "agent-b": 1}, 2)
	require.NoError(t, err)
	updates := [][]float64{{4, 0}, {0, 4}}

	cases := []struct {
		name     string
		weights  fl.AgentWeights
		expected []float64
		err      error
	}{
		{
			name:     "round weights override construction weights",
			weights:  fl.AgentWeights{"agent-a": 1, "agent-b": 3},
			expected: []float64{1, 3},
		},
		{
			name:     "construction weights when none given",
			weights:  nil,
			expected: []float64{2, 2},
		},
		{
			name:    "round weights must cover every agent",
			weights: fl.AgentWeights{"agent-a": 1},
			err:     fl.ErrMissingWeight,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			model := fl.NewModel(2)
			weights := tc.weights
			var err error
			if weights == nil {
				_, err = agg.Aggregate(model, newBatch(t, updates...), 1)
			} else {
				_, err = agg.AggregateWeighted(model, newBatch(t, updates...), weights, 1)
			}
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				assert.Zero(t, model.Version())

				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.expected, model.Params(), 1e-6)
		})
	}
}
