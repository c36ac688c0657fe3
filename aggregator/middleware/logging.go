package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedguard/aggregator"
	"github.com/absmach/fedguard/pkg/fl"
)

var _ aggregator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    aggregator.Service
}

func Logging(logger *slog.Logger, svc aggregator.Service) aggregator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) AggregateRound(ctx context.Context, round uint64, envs []fl.UpdateEnvelope) (resp fl.Report, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("id", round),
				slog.Int("updates", len(envs)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Aggregate round failed", args...)

			return
		}
		args = append(args, slog.Group("report",
			slog.String("rule", resp.Rule.String()),
			slog.String("defense", resp.Defense.String()),
			slog.Int("num_corrupt", resp.NumCorrupt),
			slog.Float64("update_norm", resp.UpdateNorm),
			slog.Int("negative_lr", resp.NegativeLR),
		))
		lm.logger.Info("Aggregate round completed successfully", args...)
	}(time.Now())

	return lm.svc.AggregateRound(ctx, round, envs)
}

func (lm *loggingMiddleware) GlobalModel(ctx context.Context) (resp aggregator.ModelSnapshot, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.Uint64("version", resp.Version),
				slog.Int("params", len(resp.Params)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get global model failed", args...)

			return
		}
		lm.logger.Info("Get global model completed successfully", args...)
	}(time.Now())

	return lm.svc.GlobalModel(ctx)
}

func (lm *loggingMiddleware) GetReport(ctx context.Context, round uint64) (resp fl.Report, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round", round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get report failed", args...)

			return
		}
		lm.logger.Info("Get report completed successfully", args...)
	}(time.Now())

	return lm.svc.GetReport(ctx, round)
}

func (lm *loggingMiddleware) ListReports(ctx context.Context) (resp []uint64, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("total", len(resp)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List reports failed", args...)

			return
		}
		lm.logger.Info("List reports completed successfully", args...)
	}(time.Now())

	return lm.svc.ListReports(ctx)
}
