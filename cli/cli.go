package cli

import (
	"log/slog"
	"sync"

	"github.com/absmach/fedguard"
	"github.com/absmach/fedguard/aggregator"
	"github.com/absmach/fedguard/aggregator/middleware"
	"github.com/absmach/fedguard/pkg/fl"
	"github.com/absmach/fedguard/pkg/prometheus"
	"github.com/go-kit/kit/metrics"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const svcName = "fedguard"

var (
	cfg    fedguard.Config
	logger = slog.Default()
	tracer = noop.NewTracerProvider().Tracer(svcName)
)

type instruments struct {
	counter     metrics.Counter
	latency     metrics.Histogram
	diagnostics metrics.Gauge
}

// serviceInstruments registers the collectors once per process.
var serviceInstruments = sync.OnceValue(func() instruments {
	counter, latency := prometheus.MakeMetrics(svcName, "aggregator")

	return instruments{
		counter:     counter,
		latency:     latency,
		diagnostics: prometheus.MakeDiagnostics(svcName),
	}
})

func SetConfig(c fedguard.Config) {
	cfg = c
}

func SetLogger(l *slog.Logger) {
	logger = l
}

func SetTracer(t trace.Tracer) {
	tracer = t
}

// newService builds the aggregator for one job and wraps it in the logging,
// tracing and metrics middleware. Agent weights come from the envelopes of
// every round. An empty reportsDir keeps reports in memory.
func newService(jobID string, model *fl.Model, reportsDir string) (aggregator.Service, error) {
	flCfg, err := cfg.Aggregator.FLConfig()
	if err != nil {
		return nil, err
	}
	agg, err := fl.NewAggregator(flCfg, nil, model.Len())
	if err != nil {
		return nil, err
	}

	reports := aggregator.NewMemoryReports()
	if reportsDir != "" {
		store, err := fl.NewReportStore(reportsDir)
		if err != nil {
			return nil, err
		}
		reports = store
	}

	inst := serviceInstruments()
	svc := aggregator.NewService(jobID, agg, model, reports, aggregator.NewGaugeSink(inst.diagnostics))
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	svc = middleware.Metrics(inst.counter, inst.latency, svc)

	return svc, nil
}
