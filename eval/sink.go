package eval

import (
	"fmt"

	"github.com/embedbench/sdk/tensor"
)

// Sink receives the payloads an Output logs. Each operation is keyed by the
// global step, a tag name, and a namespace prefix; implementations decide
// rendering and storage. Operations must not fail for well-formed payloads,
// but sinks doing I/O surface transport errors to the caller.
//
// Output.Log never calls a sink concurrently with itself; sinks shared
// between goroutines must serialize internally (JSONLSink does).
type Sink interface {
	// LogScalar records one numeric metric value.
	LogScalar(value float64, step int64, name, prefix string) error

	// LogImage records a 2-D or 3-D image tensor (H x W or H x W x C).
	LogImage(img tensor.Dense, step int64, name, prefix string) error

	// LogVideo records a 3-D or 4-D video tensor (T x H x W or T x H x W x C).
	LogVideo(vid tensor.Dense, step int64, name, prefix string) error
}

// MultiSink fans every call out to each sink in order, stopping at the first
// error.
type MultiSink []Sink

var _ Sink = MultiSink(nil)

// NewMultiSink bundles sinks into one. A nil or empty argument list yields a
// sink that accepts and drops everything.
func NewMultiSink(sinks ...Sink) MultiSink {
	return MultiSink(sinks)
}

// LogScalar implements Sink.
func (m MultiSink) LogScalar(value float64, step int64, name, prefix string) error {
	for i, s := range m {
		if err := s.LogScalar(value, step, name, prefix); err != nil {
			return fmt.Errorf("eval: sink %d: %w", i, err)
		}
	}
	return nil
}

// LogImage implements Sink.
func (m MultiSink) LogImage(img tensor.Dense, step int64, name, prefix string) error {
	for i, s := range m {
		if err := s.LogImage(img, step, name, prefix); err != nil {
			return fmt.Errorf("eval: sink %d: %w", i, err)
		}
	}
	return nil
}

// LogVideo implements Sink.
func (m MultiSink) LogVideo(vid tensor.Dense, step int64, name, prefix string) error {
	for i, s := range m {
		if err := s.LogVideo(vid, step, name, prefix); err != nil {
			return fmt.Errorf("eval: sink %d: %w", i, err)
		}
	}
	return nil
}
