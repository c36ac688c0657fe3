package middleware

import (
	"context"

	"github.com/absmach/fedguard/aggregator"
	"github.com/absmach/fedguard/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ aggregator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    aggregator.Service
}

func Tracing(tracer trace.Tracer, svc aggregator.Service) aggregator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) AggregateRound(ctx context.Context, round uint64, envs []fl.UpdateEnvelope) (fl.Report, error) {
	ctx, span := tm.tracer.Start(ctx, "aggregate-round", trace.WithAttributes(
		attribute.Int64("round", int64(round)),
		attribute.Int("updates", len(envs)),
	))
	defer span.End()

	return tm.svc.AggregateRound(ctx, round, envs)
}

func (tm *tracing) GlobalModel(ctx context.Context) (aggregator.ModelSnapshot, error) {
	ctx, span := tm.tracer.Start(ctx, "global-model")
	defer span.End()

	return tm.svc.GlobalModel(ctx)
}

func (tm *tracing) GetReport(ctx context.Context, round uint64) (fl.Report, error) {
	ctx, span := tm.tracer.Start(ctx, "get-report", trace.WithAttributes(
		attribute.Int64("round", int64(round)),
	))
	defer span.End()

	return tm.svc.GetReport(ctx, round)
}

func (tm *tracing) ListReports(ctx context.Context) ([]uint64, error) {
	ctx, span := tm.tracer.Start(ctx, "list-reports")
	defer span.End()

	return tm.svc.ListReports(ctx)
}
