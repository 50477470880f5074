// Package registry provides worker discovery backed by etcd.
//
// Evaluation workers register themselves at startup so drivers can find
// queue consumers without static configuration. Each worker holds an etcd
// lease with a TTL and renews it from a background goroutine; a worker that
// crashes or loses connectivity disappears from discovery once its lease
// expires. Drivers query live workers with Workers or WorkersFor and can
// follow membership changes with Watch.
package registry

import (
	"context"
	"slices"
	"time"
)

// WorkerInfo describes a registered evaluation worker.
//
// Multiple workers can run simultaneously, each with a unique ID. The entry
// carries enough for a driver to decide where to route units and for
// orchestrators to probe health.
type WorkerInfo struct {
	// ID uniquely identifies this worker instance (typically a UUID).
	ID string `json:"id"`

	// QueueAddr is the Redis endpoint the worker consumes units from,
	// e.g. "redis://localhost:6379".
	QueueAddr string `json:"queue_addr"`

	// HealthAddr is the worker's gRPC endpoint serving standard
	// grpc_health_v1 probes, as "host:port".
	HealthAddr string `json:"health_addr"`

	// Evaluators lists the evaluator names this worker consumes queues
	// for.
	Evaluators []string `json:"evaluators"`

	// Version is the SDK version the worker was built against.
	Version string `json:"version"`

	// StartedAt is when this worker instance came up.
	StartedAt time.Time `json:"started_at"`
}

// Serves reports whether the worker consumes the named evaluator's queue.
func (w WorkerInfo) Serves(evaluator string) bool {
	return slices.Contains(w.Evaluators, evaluator)
}

// Registry is the worker registration and discovery interface.
//
// Implementations must be safe for concurrent use. Entries are tied to
// leases with a TTL so stale workers drop out of discovery on their own.
//
// Example usage:
//
//	reg, _ := registry.NewClient(cfg)
//	defer reg.Close()
//
//	info := registry.WorkerInfo{
//	    ID:         uuid.NewString(),
//	    QueueAddr:  "redis://localhost:6379",
//	    HealthAddr: "localhost:50051",
//	    Evaluators: []string{"kendalls_tau", "classify_knn"},
//	    StartedAt:  time.Now(),
//	}
//
//	reg.Register(ctx, info)
//	defer reg.Deregister(ctx, info)
type Registry interface {
	// Register adds a worker to the registry. The worker is discoverable
	// immediately and stays registered while its lease is renewed; the
	// implementation renews in the background until Deregister or Close.
	// Registering an already-registered ID updates the entry in place.
	Register(ctx context.Context, info WorkerInfo) error

	// Deregister removes a worker from the registry by revoking its
	// lease. Deregistering an unknown worker is a no-op.
	Deregister(ctx context.Context, info WorkerInfo) error

	// Workers returns all currently registered workers, in arbitrary
	// order.
	Workers(ctx context.Context) ([]WorkerInfo, error)

	// WorkersFor returns the workers that consume the named evaluator's
	// queue.
	WorkersFor(ctx context.Context, evaluator string) ([]WorkerInfo, error)

	// Watch returns a channel that receives the full worker list whenever
	// membership changes: a worker registers, deregisters, or its lease
	// expires. The current list is sent immediately. The channel closes
	// when the context ends or the registry is closed.
	Watch(ctx context.Context) (<-chan []WorkerInfo, error)

	// Close releases registry resources and stops all background
	// goroutines. Methods called afterwards return errors.
	Close() error
}

// Config holds registry connection configuration for an etcd cluster.
type Config struct {
	// Endpoints is the list of etcd endpoints, e.g. ["host1:2379",
	// "host2:2379"]. Required.
	Endpoints []string `json:"endpoints"`

	// Namespace is the etcd key prefix for all worker entries. Workers
	// are stored under /{namespace}/workers/{id}. Default: "embedbench".
	Namespace string `json:"namespace"`

	// TTL is the lease time-to-live in seconds. A worker that fails to
	// renew within this interval drops out of discovery. Default: 30.
	TTL int `json:"ttl"`

	// TLS configures secure etcd communication. Nil disables TLS.
	TLS *TLSConfig `json:"tls"`
}

// TLSConfig holds certificate paths for mutual TLS with etcd.
type TLSConfig struct {
	// Enabled determines whether TLS is active. If false, the remaining
	// fields are ignored.
	Enabled bool `json:"enabled"`

	// CertFile is the path to the client certificate (PEM).
	CertFile string `json:"cert_file"`

	// KeyFile is the path to the client private key (PEM).
	KeyFile string `json:"key_file"`

	// CAFile is the path to the certificate authority bundle (PEM) used
	// to verify the etcd server.
	CAFile string `json:"ca_file"`
}
