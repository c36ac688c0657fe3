package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/absmach/fedguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulationConfig(rule string, numCorrupt int) fedguard.Config {
	return fedguard.Config{
		Aggregator: fedguard.AggregatorConfig{
			Rule:       rule,
			Defense:    "none",
			ServerLR:   1,
			NumCorrupt: numCorrupt,
			Seed:       17,
		},
		Simulation: fedguard.SimulationConfig{
			Agents:    5,
			Params:    20,
			Rounds:    5,
			Step:      0.5,
			HonestStd: 0.01,
		},
	}
}

func TestRunSimulation(t *testing.T) {
	SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cases := []struct {
		name       string
		rule       string
		numCorrupt int
		converges  bool
	}{
		{name: "honest average converges", rule: "avg", numCorrupt: -1, converges: true},
		{name: "coordinate median converges", rule: "comed", numCorrupt: -1, converges: true},
		{name: "sign flip majority diverges", rule: "poison_sign_flip", numCorrupt: 3, converges: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conf := simulationConfig(tc.rule, tc.numCorrupt)
			SetConfig(conf)

			result, err := runSimulation(context.Background(), conf.Simulation, "")
			require.NoError(t, err)
			assert.Equal(t, tc.rule, result.Rule)
			assert.Len(t, result.Distances, conf.Simulation.Rounds)
			assert.Zero(t, result.SkippedRounds)
			if tc.converges {
				assert.Less(t, result.FinalDistance, result.InitialDistance)

				return
			}
			assert.Greater(t, result.FinalDistance, result.InitialDistance)
		})
	}
}

func TestRunSimulationInvalid(t *testing.T) {
	conf := simulationConfig("avg", -1)
	SetConfig(conf)

	conf.Simulation.Agents = 0
	_, err := runSimulation(context.Background(), conf.Simulation, "")
	assert.Error(t, err)
}

func TestRunSimulationCancelled(t *testing.T) {
	SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	conf := simulationConfig("avg", -1)
	SetConfig(conf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runSimulation(ctx, conf.Simulation, "")
	assert.ErrorIs(t, err, context.Canceled)
}
