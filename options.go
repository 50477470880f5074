package sdk

import (
	"log/slog"

	"github.com/embedbench/sdk/eval"
)

// Option configures a Session.
type Option func(*sessionConfig)

// sessionConfig holds configuration for a Session instance.
type sessionConfig struct {
	sink        eval.Sink
	evaluators  *eval.Registry
	prefix      string
	parallelism int
	logger      *slog.Logger
}

// WithSink sets the sink merged results are logged to. A session needs
// exactly one sink; fan out to several with eval.NewMultiSink.
func WithSink(sink eval.Sink) Option {
	return func(c *sessionConfig) {
		c.sink = sink
	}
}

// WithEvaluators sets the registry evaluators are built from.
// If not provided, eval.DefaultRegistry() is used.
func WithEvaluators(reg *eval.Registry) Option {
	return func(c *sessionConfig) {
		c.evaluators = reg
	}
}

// WithPrefix namespaces every tag the session logs (e.g., "valid").
func WithPrefix(prefix string) Option {
	return func(c *sessionConfig) {
		c.prefix = prefix
	}
}

// WithParallelism bounds concurrent evaluate calls per evaluator.
// If not provided, the number of CPUs is used.
func WithParallelism(n int) Option {
	return func(c *sessionConfig) {
		c.parallelism = n
	}
}

// WithLogger sets a custom logger for the session.
// If not provided, a default logger will be created.
func WithLogger(logger *slog.Logger) Option {
	return func(c *sessionConfig) {
		c.logger = logger
	}
}
