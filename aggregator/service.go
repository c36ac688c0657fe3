package aggregator

import (
	"context"
	"fmt"
	"sync"

	"github.com/absmach/fedguard/pkg/errors"
	"github.com/absmach/fedguard/pkg/fl"
)

type service struct {
	jobID   string
	agg     *fl.Aggregator
	model   *fl.Model
	reports Reports
	sink    fl.Sink

	mu        sync.Mutex
	started   bool
	lastRound uint64
}

// NewService aggregates the rounds of one job into model. A nil sink
// disables the norm diagnostics.
func NewService(jobID string, agg *fl.Aggregator, model *fl.Model, reports Reports, sink fl.Sink) Service {
	return &service{
		jobID:   jobID,
		agg:     agg,
		model:   model,
		reports: reports,
		sink:    sink,
	}
}

func (svc *service) AggregateRound(_ context.Context, round uint64, envs []fl.UpdateEnvelope) (fl.Report, error) {
	if len(envs) == 0 {
		return fl.Report{}, fl.ErrNoUpdates
	}
	for _, env := range envs {
		if env.RoundID != round {
			return fl.Report{}, fmt.Errorf("%w: agent %s sent round %d, aggregating %d", errors.ErrInvalidData, env.AgentID, env.RoundID, round)
		}
	}

	batch, weights, err := fl.NewBatchFromEnvelopes(envs)
	if err != nil {
		return fl.Report{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.started && round <= svc.lastRound {
		return fl.Report{}, fmt.Errorf("%w: round %d, last was %d", errors.ErrConflict, round, svc.lastRound)
	}

	// The round is applied to a copy and committed once its report is stored.
	next := fl.NewModelFrom(svc.model.Float32())
	report, err := svc.agg.AggregateWeighted(next, batch, weights, round)
	if err != nil {
		return fl.Report{}, err
	}
	if err := svc.reports.Save(svc.jobID, report); err != nil {
		return fl.Report{}, err
	}
	if err := svc.model.SetParams(next.Params()); err != nil {
		return fl.Report{}, err
	}
	svc.started = true
	svc.lastRound = round

	if svc.sink != nil {
		fl.ReportNorms(svc.sink, batch, svc.agg.NumCorrupt(), round)
	}

	return report, nil
}

func (svc *service) GlobalModel(_ context.Context) (ModelSnapshot, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return ModelSnapshot{
		Version: svc.model.Version(),
		Params:  svc.model.Float32(),
	}, nil
}

func (svc *service) GetReport(_ context.Context, round uint64) (fl.Report, error) {
	return svc.reports.Load(svc.jobID, round)
}

func (svc *service) ListReports(_ context.Context) ([]uint64, error) {
	return svc.reports.List(svc.jobID)
}
