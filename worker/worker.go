package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	sdk "github.com/embedbench/sdk"
	"github.com/embedbench/sdk/eval"
	"github.com/embedbench/sdk/queue"
	"github.com/embedbench/sdk/registry"
)

// Options configures the worker behavior.
type Options struct {
	// RedisURL is the Redis connection string (e.g., "redis://localhost:6379").
	// Default: "redis://localhost:6379".
	RedisURL string

	// Evaluators is the factory registry used to build the evaluator each
	// unit names. Default: eval.DefaultRegistry().
	Evaluators *eval.Registry

	// Names lists the evaluator queues to consume. Default: every name
	// registered in Evaluators.
	Names []string

	// Concurrency is the number of consumer goroutines. Default: 4.
	Concurrency int

	// ShutdownTimeout is the time to wait for in-flight units during
	// graceful shutdown. Default: 30s.
	ShutdownTimeout time.Duration

	// HealthAddr is the gRPC listen address for grpc_health_v1 probes.
	// Default: ":50051".
	HealthAddr string

	// Discovery is the worker registry for self-registration. When nil,
	// the worker tries EMBEDBENCH_REGISTRY_ENDPOINTS and runs
	// undiscoverable if that is unset too.
	Discovery registry.Registry

	// Logger is the structured logger for worker operations. Default: a
	// JSON logger on stdout.
	Logger *slog.Logger
}

// Run starts the worker loop with the given options and blocks until a
// SIGTERM/SIGINT arrives or startup fails.
//
// It connects to Redis, serves grpc_health_v1 probes on HealthAddr,
// registers with the worker registry when one is available, and starts
// Concurrency consumer goroutines. Each consumer pops a unit from the
// evaluator queues, builds the named evaluator, evaluates the unit's
// steps, and pushes the Result onto the run's results list.
//
// On shutdown the health status flips to NOT_SERVING, no new units are
// popped, and Run waits up to ShutdownTimeout for in-flight units before
// returning. The worker deregisters on the way out.
func Run(opts Options) error {
	opts = applyDefaults(opts)

	workerID := generateWorkerID()

	logger := opts.Logger.With("worker_id", workerID)
	logger.Info("worker starting",
		"concurrency", opts.Concurrency,
		"redis_url", opts.RedisURL,
		"evaluators", opts.Names,
	)

	redisClient, err := queue.NewRedisClient(queue.RedisOptions{
		URL: opts.RedisURL,
	})
	if err != nil {
		return sdk.NewTransportError("worker.Run", err)
	}
	defer redisClient.Close()

	health, err := newHealthServer(opts.HealthAddr)
	if err != nil {
		return sdk.NewTransportError("worker.Run", err)
	}
	health.start(logger)
	defer health.stop(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	discovery := opts.Discovery
	if discovery == nil {
		cli, err := registry.NewClientFromEnv()
		if err != nil {
			logger.Warn("worker registry unavailable", "error", err)
		} else if cli != nil {
			discovery = cli
			defer cli.Close()
		}
	}

	if discovery != nil {
		info := registry.WorkerInfo{
			ID:         workerID,
			QueueAddr:  opts.RedisURL,
			HealthAddr: health.addr(),
			Evaluators: opts.Names,
			Version:    sdk.Version,
			StartedAt:  time.Now(),
		}

		if err := discovery.Register(ctx, info); err != nil {
			return sdk.NewTransportError("worker.Run", fmt.Errorf("failed to register worker: %w", err))
		}
		logger.Info("worker registered", "health_addr", info.HealthAddr)

		defer func() {
			// Use a fresh context for cleanup since ctx is cancelled by then
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cleanupCancel()
			if err := discovery.Deregister(cleanupCtx, info); err != nil {
				logger.Error("failed to deregister worker", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func(consumerNum int) {
			defer wg.Done()
			consumeLoop(ctx, consumerNum, opts.Evaluators, redisClient, opts.Names, workerID, logger)
		}(i)
	}

	logger.Info("worker started", "consumers", opts.Concurrency)

	sig := <-sigChan
	logger.Info("received signal, initiating graceful shutdown", "signal", sig)

	health.setServing(false)
	cancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		logger.Info("worker shutdown complete")
	case <-time.After(opts.ShutdownTimeout):
		logger.Warn("worker shutdown timeout exceeded", "timeout", opts.ShutdownTimeout)
	}

	return nil
}

// consumeLoop is the main loop for a single consumer goroutine. It pops
// units from the evaluator queues, processes them, and pushes results
// until the context is cancelled.
func consumeLoop(ctx context.Context, consumerNum int, reg *eval.Registry, client queue.Client, names []string, workerID string, logger *slog.Logger) {
	logger = logger.With("consumer", consumerNum)
	logger.Debug("consumer loop started", "queues", names)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("consumer loop stopped", "reason", "context_cancelled")
			return
		default:
		}

		unit, err := client.PopAny(ctx, names)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("consumer loop stopped", "reason", "context_error")
				return
			}
			logger.Error("failed to pop unit", "error", err)
			continue
		}
		if unit == nil {
			continue
		}

		logger.Info("received unit",
			"run_id", unit.RunID,
			"index", unit.Index,
			"total", unit.Total,
			"evaluator", unit.Evaluator,
		)

		result := processUnit(ctx, reg, *unit, workerID, logger)

		// The result must reach the collector even when shutdown began
		// mid-unit, so the push gets its own context.
		pushCtx, pushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.PushResult(pushCtx, result); err != nil {
			logger.Error("failed to push result", "error", err)
		}
		pushCancel()
	}
}

// processUnit evaluates a single unit and always returns a Result; failures
// are carried in the Error field so the collector can surface them.
func processUnit(ctx context.Context, reg *eval.Registry, unit queue.Unit, workerID string, logger *slog.Logger) queue.Result {
	startedAt := time.Now().UnixMilli()

	result := queue.Result{
		RunID:     unit.RunID,
		Index:     unit.Index,
		WorkerID:  workerID,
		StartedAt: startedAt,
	}

	ev, err := reg.New(unit.Evaluator, unit.Options)
	if err != nil {
		result.Error = err.Error()
		result.CompletedAt = time.Now().UnixMilli()
		logger.Error("failed to build evaluator", "evaluator", unit.Evaluator, "error", err)
		return result
	}

	steps, err := unit.Steps()
	if err != nil {
		result.Error = err.Error()
		result.CompletedAt = time.Now().UnixMilli()
		logger.Error("failed to decode unit steps", "error", err)
		return result
	}

	out, err := ev.Evaluate(ctx, steps)
	if err != nil {
		result.Error = err.Error()
		result.CompletedAt = time.Now().UnixMilli()
		logger.Error("evaluation failed", "evaluator", unit.Evaluator, "error", err)
		return result
	}

	if err := result.SetOutput(out); err != nil {
		result.Error = err.Error()
		result.CompletedAt = time.Now().UnixMilli()
		logger.Error("failed to encode output", "error", err)
		return result
	}

	result.CompletedAt = time.Now().UnixMilli()

	logger.Info("unit completed",
		"run_id", unit.RunID,
		"index", unit.Index,
		"evaluator", unit.Evaluator,
		"duration_ms", result.CompletedAt-result.StartedAt,
	)

	return result
}

// generateWorkerID creates a unique identifier for this worker instance
// from hostname, PID, and a UUID suffix.
func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	pid := os.Getpid()
	id := uuid.New().String()[:8]

	return fmt.Sprintf("%s-%d-%s", hostname, pid, id)
}

// applyDefaults fills unset options with their defaults.
func applyDefaults(opts Options) Options {
	if opts.RedisURL == "" {
		opts.RedisURL = "redis://localhost:6379"
	}
	if opts.Evaluators == nil {
		opts.Evaluators = eval.DefaultRegistry()
	}
	if len(opts.Names) == 0 {
		opts.Names = opts.Evaluators.Names()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	if opts.HealthAddr == "" {
		opts.HealthAddr = ":50051"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return opts
}
