package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/absmach/fedguard"
	"github.com/absmach/fedguard/pkg/fl"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const simSamplesPerAgent = 100

type simulationResult struct {
	JobID           string    `json:"job_id"`
	Rule            string    `json:"rule"`
	Defense         string    `json:"defense"`
	Agents          int       `json:"agents"`
	Params          int       `json:"params"`
	Rounds          int       `json:"rounds"`
	SkippedRounds   int       `json:"skipped_rounds"`
	InitialDistance float64   `json:"initial_distance"`
	FinalDistance   float64   `json:"final_distance"`
	Distances       []float64 `json:"distances"`
}

func NewSimulateCmd() *cobra.Command {
	var (
		agents      int
		params      int
		rounds      int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic attack/defense experiment",
		Long: `Run a synthetic federated training where honest agents pull the global
model towards a random target and the configured rule decides how much of
that progress survives the attack.

Examples:
  # Sign-flip attack with no defense
  FEDGUARD_RULE=poison_sign_flip fedguard simulate --agents 10 --rounds 30

  # Same attack with robust learning rate, metrics on :9090
  FEDGUARD_RULE=poison_sign_flip FEDGUARD_ROBUST_LR_THRESHOLD=4 \
    fedguard simulate --metrics-addr :9090`,
		Run: func(cmd *cobra.Command, _ []string) {
			sim := cfg.Simulation
			if cmd.Flags().Changed("agents") {
				sim.Agents = agents
			}
			if cmd.Flags().Changed("params") {
				sim.Params = params
			}
			if cmd.Flags().Changed("rounds") {
				sim.Rounds = rounds
			}

			result, err := runSimulation(cmd.Context(), sim, metricsAddr)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, result)
		},
	}

	cmd.Flags().IntVar(&agents, "agents", 0, "number of agents")
	cmd.Flags().IntVar(&params, "params", 0, "number of model parameters")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "number of rounds")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func runSimulation(ctx context.Context, sim fedguard.SimulationConfig, metricsAddr string) (simulationResult, error) {
	if sim.Agents <= 0 || sim.Params <= 0 || sim.Rounds <= 0 {
		return simulationResult{}, fmt.Errorf("agents, params and rounds must be positive, got %d, %d, %d", sim.Agents, sim.Params, sim.Rounds)
	}

	seed := cfg.Aggregator.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, ^seed))

	target := make([]float64, sim.Params)
	standard := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	for i := range target {
		target[i] = standard.Rand()
	}

	ids := make([]string, sim.Agents)
	for i := range ids {
		ids[i] = fmt.Sprintf("agent-%03d", i)
	}

	jobID := uuid.NewString()
	model := fl.NewModel(sim.Params)
	svc, err := newService(jobID, model, "")
	if err != nil {
		return simulationResult{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shut down metrics server", slog.Any("error", err))
			}
			if err := g.Wait(); err != nil {
				logger.Error("metrics server exited with error", slog.Any("error", err))
			}
		}()
	}

	result := simulationResult{
		JobID:           jobID,
		Rule:            cfg.Aggregator.Rule,
		Defense:         cfg.Aggregator.Defense,
		Agents:          sim.Agents,
		Params:          sim.Params,
		Rounds:          sim.Rounds,
		InitialDistance: floats.Distance(model.Params(), target, 2),
	}

	noise := distuv.Normal{Mu: 0, Sigma: sim.HonestStd, Src: rng}
	for r := 1; r <= sim.Rounds; r++ {
		if err := gctx.Err(); err != nil {
			return result, err
		}

		current := model.Params()
		envs := make([]fl.UpdateEnvelope, sim.Agents)
		for i, id := range ids {
			update := floats.SubTo(make([]float64, sim.Params), target, current)
			floats.Scale(sim.Step, update)
			for j := range update {
				update[j] += noise.Rand()
			}
			env, err := fl.EncodeEnvelope(id, simSamplesPerAgent, update, fl.FormatCBORF64)
			if err != nil {
				return result, err
			}
			env.JobID = jobID
			env.RoundID = uint64(r)
			envs[i] = env
		}

		if _, err := svc.AggregateRound(gctx, uint64(r), envs); err != nil {
			if errors.Is(err, fl.ErrNegativeDiscriminant) {
				result.SkippedRounds++
				continue
			}

			return result, err
		}

		distance := floats.Distance(model.Params(), target, 2)
		result.Distances = append(result.Distances, distance)
		logger.Info("Simulation round completed",
			slog.Int("round", r),
			slog.Float64("distance", distance),
		)
	}
	result.FinalDistance = floats.Distance(model.Params(), target, 2)

	return result, nil
}
