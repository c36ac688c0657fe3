package aggregator

import (
	"context"

	"github.com/absmach/fedguard/pkg/fl"
)

type Service interface {
	// AggregateRound decodes the envelopes of one round, aggregates them and
	// applies the result to the global model. Rounds must increase.
	AggregateRound(ctx context.Context, round uint64, envs []fl.UpdateEnvelope) (fl.Report, error)
	GlobalModel(ctx context.Context) (ModelSnapshot, error)
	GetReport(ctx context.Context, round uint64) (fl.Report, error)
	ListReports(ctx context.Context) ([]uint64, error)
}

type ModelSnapshot struct {
	Version uint64    `json:"version"`
	Params  []float32 `json:"params"`
}

// Reports persists round reports of one job.
type Reports interface {
	Save(jobID string, r fl.Report) error
	Load(jobID string, round uint64) (fl.Report, error)
	List(jobID string) ([]uint64, error)
}
