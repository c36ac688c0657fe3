package aggregator

import (
	"github.com/absmach/fedguard/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ fl.Sink = (*gaugeSink)(nil)

type gaugeSink struct {
	gauge metrics.Gauge
}

// NewGaugeSink publishes diagnostics on a gauge labelled by "tag". Only the
// latest value of every tag is kept.
func NewGaugeSink(gauge metrics.Gauge) fl.Sink {
	return &gaugeSink{gauge: gauge}
}

func (s *gaugeSink) AddScalar(tag string, value float64, _ uint64) {
	s.gauge.With("tag", tag).Set(value)
}
