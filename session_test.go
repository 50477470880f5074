package sdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/embedbench/sdk/embedding"
	"github.com/embedbench/sdk/eval"
	"github.com/embedbench/sdk/tensor"
)

// recordSink implements eval.Sink and counts calls by kind.
type recordSink struct {
	mu      sync.Mutex
	scalars []float64
	images  int
	videos  int
}

func (r *recordSink) LogScalar(value float64, step int64, name, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scalars = append(r.scalars, value)
	return nil
}

func (r *recordSink) LogImage(img tensor.Dense, step int64, name, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images++
	return nil
}

func (r *recordSink) LogVideo(vid tensor.Dense, step int64, name, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos++
	return nil
}

// closableSink adds a Close method so session shutdown can be observed.
type closableSink struct {
	recordSink
	closeErr   error
	closeCalls int
}

func (c *closableSink) Close() error {
	c.closeCalls++
	return c.closeErr
}

// quietLogger discards everything the session logs.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// twoTrajectories returns aligned steps for two trajectories of one task.
func twoTrajectories() []embedding.Step {
	var steps []embedding.Step
	for _, tr := range []struct {
		id   string
		vals []float64
	}{
		{"a", []float64{0, 1, 2}},
		{"b", []float64{0.1, 1.1, 2.1}},
	} {
		for _, v := range tr.vals {
			steps = append(steps, embedding.Step{
				TrajectoryID: tr.id,
				TaskID:       "push",
				Emb:          []float64{v},
			})
		}
	}
	return steps
}

func TestNewSession(t *testing.T) {
	t.Run("requires a sink", func(t *testing.T) {
		_, err := NewSession()
		if err == nil {
			t.Fatal("expected error without a sink")
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("error %v does not match ErrInvalidConfig", err)
		}
		if !errors.Is(err, &SDKError{Kind: KindValidation}) {
			t.Errorf("error %v is not a validation error", err)
		}
	})

	t.Run("default registry", func(t *testing.T) {
		s, err := NewSession(WithSink(&recordSink{}), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if s.Evaluators() == nil {
			t.Fatal("expected a default registry")
		}
		found := false
		for _, name := range s.Evaluators().Names() {
			if name == "kendalls_tau" {
				found = true
			}
		}
		if !found {
			t.Error("default registry is missing kendalls_tau")
		}
	})

	t.Run("custom registry", func(t *testing.T) {
		reg := eval.NewRegistry()
		s, err := NewSession(WithSink(&recordSink{}), WithEvaluators(reg), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if s.Evaluators() != reg {
			t.Error("custom registry was replaced")
		}
	})

	t.Run("negative parallelism", func(t *testing.T) {
		_, err := NewSession(WithSink(&recordSink{}), WithParallelism(-1))
		if err == nil {
			t.Fatal("expected error for negative parallelism")
		}
		if !errors.Is(err, &SDKError{Kind: KindValidation}) {
			t.Errorf("error %v is not a validation error", err)
		}
	})

	t.Run("sink accessor", func(t *testing.T) {
		sink := &recordSink{}
		s, err := NewSession(WithSink(sink), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if s.Sink() != eval.Sink(sink) {
			t.Error("sink accessor does not return the configured sink")
		}
	})
}

func TestSessionNew(t *testing.T) {
	s, err := NewSession(WithSink(&recordSink{}), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	ev, err := s.New("kendalls_tau", nil)
	if err != nil {
		t.Fatalf("failed to build evaluator: %v", err)
	}
	if ev.Name() != "kendalls_tau" {
		t.Errorf("evaluator name = %q, want kendalls_tau", ev.Name())
	}

	if _, err := s.New("confusion_matrix", nil); err == nil {
		t.Error("expected error for unknown evaluator")
	}
}

func TestSessionEvaluateNamed(t *testing.T) {
	t.Run("single evaluator end to end", func(t *testing.T) {
		sink := &recordSink{}
		s, err := NewSession(WithSink(sink), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		report, err := s.EvaluateNamed(context.Background(), []string{"kendalls_tau"}, twoTrajectories(), 7)
		if err != nil {
			t.Fatalf("EvaluateNamed() error = %v", err)
		}

		if report.RunID == "" {
			t.Error("report has no run ID")
		}
		if len(report.Evaluators) != 1 {
			t.Fatalf("report has %d evaluators, want 1", len(report.Evaluators))
		}
		if report.Evaluators[0].Name != "kendalls_tau" {
			t.Errorf("evaluator name = %q, want kendalls_tau", report.Evaluators[0].Name)
		}

		// One task class, so one unit: one merged scalar and a fan-out of
		// two per-pair distance images.
		if len(sink.scalars) != 1 {
			t.Fatalf("sink saw %d scalars, want 1", len(sink.scalars))
		}
		if got := sink.scalars[0]; got < 0.999 || got > 1.001 {
			t.Errorf("logged scalar = %v, want 1.0", got)
		}
		if sink.images != 2 {
			t.Errorf("sink saw %d images, want 2", sink.images)
		}
	})

	t.Run("unknown evaluator", func(t *testing.T) {
		s, err := NewSession(WithSink(&recordSink{}), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		_, err = s.EvaluateNamed(context.Background(), []string{"confusion_matrix"}, twoTrajectories(), 0)
		if err == nil {
			t.Fatal("expected error for unknown evaluator")
		}
		if !strings.Contains(err.Error(), "unknown evaluator") {
			t.Errorf("error = %v, want mention of unknown evaluator", err)
		}
		if !errors.Is(err, &SDKError{Kind: KindValidation}) {
			t.Errorf("error %v is not a validation error", err)
		}
	})

	t.Run("empty steps", func(t *testing.T) {
		s, err := NewSession(WithSink(&recordSink{}), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		_, err = s.EvaluateNamed(context.Background(), []string{"kendalls_tau"}, nil, 0)
		if err == nil {
			t.Fatal("expected error for empty steps")
		}
	})
}

func TestSessionEvaluate(t *testing.T) {
	sink := &recordSink{}
	s, err := NewSession(WithSink(sink), WithPrefix("valid"), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	ev, err := s.New("kendalls_tau", nil)
	if err != nil {
		t.Fatalf("failed to build evaluator: %v", err)
	}

	report, err := s.Evaluate(context.Background(), []eval.Evaluator{ev}, twoTrajectories(), 3)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(report.Evaluators) != 1 {
		t.Fatalf("report has %d evaluators, want 1", len(report.Evaluators))
	}
	if len(sink.scalars) != 1 {
		t.Errorf("sink saw %d scalars, want 1", len(sink.scalars))
	}
}

func TestSessionClose(t *testing.T) {
	t.Run("closes closable sink once", func(t *testing.T) {
		sink := &closableSink{}
		s, err := NewSession(WithSink(sink), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("second Close() error = %v", err)
		}
		if sink.closeCalls != 1 {
			t.Errorf("sink closed %d times, want 1", sink.closeCalls)
		}
	})

	t.Run("evaluate after close", func(t *testing.T) {
		s, err := NewSession(WithSink(&recordSink{}), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		_, err = s.EvaluateNamed(context.Background(), []string{"kendalls_tau"}, twoTrajectories(), 0)
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("error %v does not match ErrSessionClosed", err)
		}
	})

	t.Run("close error is wrapped", func(t *testing.T) {
		sink := &closableSink{closeErr: errors.New("disk full")}
		s, err := NewSession(WithSink(sink), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		err = s.Close()
		if err == nil {
			t.Fatal("expected error from failing sink")
		}
		if !errors.Is(err, &SDKError{Kind: KindInternal}) {
			t.Errorf("error %v is not an internal error", err)
		}
	})

	t.Run("plain sink needs no close", func(t *testing.T) {
		s, err := NewSession(WithSink(&recordSink{}), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	})
}
