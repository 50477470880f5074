package sdk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/embedbench/sdk/embedding"
	"github.com/embedbench/sdk/eval"
)

// Session bundles a configured evaluation setup: the sink merged results are
// logged to, the registry evaluators are built from, and the runner defaults
// applied to every Evaluate call.
//
// A Session is safe for concurrent use. Close releases the sink when it holds
// resources (the JSONL sink's file handle, for example); operations on a
// closed session fail with ErrSessionClosed.
type Session struct {
	sink   eval.Sink
	reg    *eval.Registry
	runner *eval.Runner
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewSession creates a session from the provided options. A sink is required;
// everything else has defaults.
//
// Example:
//
//	sink, err := eval.NewJSONLSink("results.jsonl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, err := sdk.NewSession(
//	    sdk.WithSink(sink),
//	    sdk.WithPrefix("valid"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
func NewSession(opts ...Option) (*Session, error) {
	cfg := &sessionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.sink == nil {
		return nil, NewValidationError("NewSession", fmt.Errorf("%w: a sink is required", ErrInvalidConfig))
	}
	if cfg.evaluators == nil {
		cfg.evaluators = eval.DefaultRegistry()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	runner, err := eval.NewRunner(eval.RunnerOptions{
		Sink:        cfg.sink,
		Prefix:      cfg.prefix,
		Parallelism: cfg.parallelism,
	})
	if err != nil {
		return nil, NewValidationError("NewSession", err)
	}

	return &Session{
		sink:   cfg.sink,
		reg:    cfg.evaluators,
		runner: runner,
		logger: cfg.logger,
	}, nil
}

// Evaluators returns the registry evaluators are built from.
func (s *Session) Evaluators() *eval.Registry {
	return s.reg
}

// Sink returns the sink merged results are logged to.
func (s *Session) Sink() eval.Sink {
	return s.sink
}

// New builds a configured evaluator from the session's registry.
func (s *Session) New(name string, opts map[string]any) (eval.Evaluator, error) {
	return s.reg.New(name, opts)
}

// Evaluate runs the given evaluators over one batch of model outputs and logs
// one merged result per evaluator at the given step.
func (s *Session) Evaluate(ctx context.Context, evs []eval.Evaluator, steps []embedding.Step, step int64) (*eval.RunReport, error) {
	if err := s.guard("Session.Evaluate"); err != nil {
		return nil, err
	}

	report, err := s.runner.Run(ctx, evs, steps, step)
	if err != nil {
		return nil, err
	}

	s.logger.Info("evaluation run complete",
		"run_id", report.RunID,
		"step", step,
		"evaluators", len(report.Evaluators),
		"duration", report.Duration)
	return report, nil
}

// EvaluateNamed builds each named evaluator with default options from the
// session's registry, then evaluates them over steps.
func (s *Session) EvaluateNamed(ctx context.Context, names []string, steps []embedding.Step, step int64) (*eval.RunReport, error) {
	if err := s.guard("Session.EvaluateNamed"); err != nil {
		return nil, err
	}

	evs := make([]eval.Evaluator, 0, len(names))
	for _, name := range names {
		ev, err := s.reg.New(name, nil)
		if err != nil {
			return nil, NewValidationError("Session.EvaluateNamed", err)
		}
		evs = append(evs, ev)
	}
	return s.Evaluate(ctx, evs, steps, step)
}

// Close releases the session's sink when it holds resources. Close is
// idempotent; any operation after Close fails with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if closer, ok := s.sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return NewInternalError("Session.Close", err)
		}
	}
	return nil
}

// guard rejects operations on a closed session.
func (s *Session) guard(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &SDKError{Op: op, Kind: KindValidation, Err: ErrSessionClosed}
	}
	return nil
}
