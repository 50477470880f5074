package eval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/embedbench/sdk/tensor"
)

// PromSinkOptions configures a PromSink.
type PromSinkOptions struct {
	// Registerer receives the sink's collectors. Defaults to the global
	// Prometheus registerer.
	Registerer prometheus.Registerer
}

// PromSink implements Sink by exposing logged payloads as Prometheus
// metrics: the most recent scalar value per tag as a gauge, artifact volume
// as a counter, and the last logged step per tag as a gauge. Raw image and
// video data is not exported; pair the sink with a JSONLSink when artifacts
// need to be kept.
type PromSink struct {
	scalarGauge     *prometheus.GaugeVec
	stepGauge       *prometheus.GaugeVec
	artifactCounter *prometheus.CounterVec
}

var _ Sink = (*PromSink)(nil)

// NewPromSink creates the sink and registers its collectors. Registering two
// sinks on one registerer panics with a duplicate-collector error, matching
// Prometheus conventions.
func NewPromSink(opts PromSinkOptions) *PromSink {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PromSink{
		scalarGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eval_metric",
				Help: "Most recent scalar metric value per tag.",
			},
			[]string{"name", "prefix"},
		),
		stepGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eval_last_step",
				Help: "Global step of the most recent log call per tag.",
			},
			[]string{"name", "prefix"},
		),
		artifactCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eval_artifacts_total",
				Help: "Total number of image and video artifacts logged.",
			},
			[]string{"kind", "name", "prefix"},
		),
	}
}

// LogScalar implements Sink.
func (s *PromSink) LogScalar(value float64, step int64, name, prefix string) error {
	s.scalarGauge.WithLabelValues(name, prefix).Set(value)
	s.stepGauge.WithLabelValues(name, prefix).Set(float64(step))
	return nil
}

// LogImage implements Sink.
func (s *PromSink) LogImage(img tensor.Dense, step int64, name, prefix string) error {
	s.artifactCounter.WithLabelValues("image", name, prefix).Inc()
	s.stepGauge.WithLabelValues(name, prefix).Set(float64(step))
	return nil
}

// LogVideo implements Sink.
func (s *PromSink) LogVideo(vid tensor.Dense, step int64, name, prefix string) error {
	s.artifactCounter.WithLabelValues("video", name, prefix).Inc()
	s.stepGauge.WithLabelValues(name, prefix).Set(float64(step))
	return nil
}
