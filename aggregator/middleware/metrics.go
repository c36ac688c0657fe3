package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedguard/aggregator"
	"github.com/absmach/fedguard/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ aggregator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     aggregator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc aggregator.Service) aggregator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) AggregateRound(ctx context.Context, round uint64, envs []fl.UpdateEnvelope) (fl.Report, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "aggregate-round").Add(1)
		mm.latency.With("method", "aggregate-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.AggregateRound(ctx, round, envs)
}

func (mm *metricsMiddleware) GlobalModel(ctx context.Context) (aggregator.ModelSnapshot, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "global-model").Add(1)
		mm.latency.With("method", "global-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GlobalModel(ctx)
}

func (mm *metricsMiddleware) GetReport(ctx context.Context, round uint64) (fl.Report, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-report").Add(1)
		mm.latency.With("method", "get-report").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetReport(ctx, round)
}

func (mm *metricsMiddleware) ListReports(ctx context.Context) ([]uint64, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-reports").Add(1)
		mm.latency.With("method", "list-reports").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListReports(ctx)
}
