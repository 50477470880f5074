package eval

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/embedbench/sdk/tensor"
)

// OTelSinkOptions configures an OTelSink. Both fields are optional; an
// unset tracer skips spans and an unset meter provider skips metrics.
type OTelSinkOptions struct {
	// Tracer creates one span per logged payload when set.
	Tracer trace.Tracer

	// MeterProvider supplies the meter the sink's instruments are created
	// from.
	MeterProvider metric.MeterProvider
}

// OTelSink implements Sink by recording scalar metrics into an OpenTelemetry
// histogram and counting image/video artifacts, optionally wrapping each
// call in a span.
//
// Instruments:
//   - eval.metric (histogram): scalar metric values, attributed by name and prefix
//   - eval.artifacts (counter): logged artifact count, attributed by kind, name and prefix
type OTelSink struct {
	tracer          trace.Tracer
	scalarHistogram metric.Float64Histogram
	artifactCounter metric.Int64Counter
}

var _ Sink = (*OTelSink)(nil)

// NewOTelSink creates the sink and its metric instruments.
//
// Example:
//
//	sink, err := eval.NewOTelSink(eval.OTelSinkOptions{
//	    Tracer:        tracer,
//	    MeterProvider: meterProvider,
//	})
func NewOTelSink(opts OTelSinkOptions) (*OTelSink, error) {
	s := &OTelSink{tracer: opts.Tracer}

	if opts.MeterProvider != nil {
		meter := opts.MeterProvider.Meter("github.com/embedbench/sdk/eval")
		var err error

		s.scalarHistogram, err = meter.Float64Histogram(
			"eval.metric",
			metric.WithDescription("Scalar metric values emitted by evaluators"),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("create metric histogram: %w", err)
		}

		s.artifactCounter, err = meter.Int64Counter(
			"eval.artifacts",
			metric.WithDescription("Number of image and video artifacts logged"),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("create artifact counter: %w", err)
		}
	}
	return s, nil
}

// LogScalar implements Sink.
func (s *OTelSink) LogScalar(value float64, step int64, name, prefix string) error {
	ctx := context.Background()
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "eval.log_scalar")
		defer span.End()
		span.SetAttributes(
			attribute.String("eval.name", name),
			attribute.String("eval.prefix", prefix),
			attribute.Int64("eval.step", step),
			attribute.Float64("eval.value", value),
		)
	}
	if s.scalarHistogram != nil {
		s.scalarHistogram.Record(ctx, value, metric.WithAttributes(
			attribute.String("eval.name", name),
			attribute.String("eval.prefix", prefix),
		))
	}
	return nil
}

// LogImage implements Sink.
func (s *OTelSink) LogImage(img tensor.Dense, step int64, name, prefix string) error {
	s.recordArtifact("image", img, step, name, prefix)
	return nil
}

// LogVideo implements Sink.
func (s *OTelSink) LogVideo(vid tensor.Dense, step int64, name, prefix string) error {
	s.recordArtifact("video", vid, step, name, prefix)
	return nil
}

func (s *OTelSink) recordArtifact(kind string, t tensor.Dense, step int64, name, prefix string) {
	ctx := context.Background()
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "eval.log_"+kind)
		defer span.End()
		span.SetAttributes(
			attribute.String("eval.name", name),
			attribute.String("eval.prefix", prefix),
			attribute.Int64("eval.step", step),
			attribute.String("eval.shape", t.String()),
		)
	}
	if s.artifactCounter != nil {
		s.artifactCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("eval.kind", kind),
			attribute.String("eval.name", name),
			attribute.String("eval.prefix", prefix),
		))
	}
}
