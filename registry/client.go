package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Client implements Registry on an etcd cluster.
//
// The client registers workers under leased keys and renews every lease
// from a background goroutine (every TTL/3) so entries survive exactly as
// long as the worker does. All methods are safe for concurrent use.
//
// Example usage:
//
//	cfg := registry.Config{
//	    Endpoints: []string{"localhost:2379"},
//	    TTL:       30,
//	}
//	client, err := registry.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
type Client struct {
	client    *clientv3.Client
	namespace string
	ttl       int

	// Lease tracking for keepalive, keyed by worker ID.
	mu         sync.RWMutex
	leases     map[string]clientv3.LeaseID
	cancelFns  map[string]context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	closedChan chan struct{}
}

var _ Registry = (*Client)(nil)

// NewClient connects to the etcd cluster described by cfg and verifies
// connectivity with a health check. The returned client must be closed with
// Close to stop background keepalive goroutines.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("registry endpoints cannot be empty")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "embedbench"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30
	}

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsInfo, err := newTLSInfo(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		tlsConfig, err := tlsInfo.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		clientCfg.TLS = tlsConfig
	}

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Verify connectivity with a quick health check
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err = cli.Get(ctx, "health-check"); err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &Client{
		client:     cli,
		namespace:  namespace,
		ttl:        ttl,
		leases:     make(map[string]clientv3.LeaseID),
		cancelFns:  make(map[string]context.CancelFunc),
		closedChan: make(chan struct{}),
	}, nil
}

// NewClientFromEnv creates a registry client from the
// EMBEDBENCH_REGISTRY_ENDPOINTS environment variable, a comma-separated
// list of etcd endpoints.
//
// When the variable is unset this returns (nil, nil): the caller runs
// without registry integration rather than failing, so local setups need
// no etcd.
func NewClientFromEnv() (*Client, error) {
	endpoints := os.Getenv("EMBEDBENCH_REGISTRY_ENDPOINTS")
	if endpoints == "" {
		// Not an error - caller works but isn't registered
		return nil, nil
	}

	endpointList := strings.Split(endpoints, ",")
	for i, ep := range endpointList {
		endpointList[i] = strings.TrimSpace(ep)
	}

	return NewClient(Config{Endpoints: endpointList})
}

// Register adds a worker to the registry.
//
// The worker is discoverable immediately and stays registered while the
// lease holds. A background goroutine renews the lease every TTL/3
// seconds. Registering an already-registered ID updates the entry and
// restarts its keepalive.
func (c *Client) Register(ctx context.Context, info WorkerInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("registry client is closed")
	}

	// Cancel existing keepalive if re-registering
	if cancelFn, exists := c.cancelFns[info.ID]; exists {
		cancelFn()
		delete(c.cancelFns, info.ID)
	}

	leaseResp, err := c.client.Grant(ctx, int64(c.ttl))
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal worker info: %w", err)
	}

	key := c.workerKey(info.ID)
	if _, err := c.client.Put(ctx, key, string(data), clientv3.WithLease(leaseResp.ID)); err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}

	c.leases[info.ID] = leaseResp.ID

	keepaliveCtx, cancel := context.WithCancel(context.Background())
	c.cancelFns[info.ID] = cancel

	c.wg.Add(1)
	go c.keepalive(keepaliveCtx, leaseResp.ID, info.ID)

	return nil
}

// Deregister removes a worker from the registry by revoking its lease,
// which deletes the entry and stops the keepalive goroutine. Deregistering
// an unknown worker is a no-op.
func (c *Client) Deregister(ctx context.Context, info WorkerInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("registry client is closed")
	}

	if cancelFn, exists := c.cancelFns[info.ID]; exists {
		cancelFn()
		delete(c.cancelFns, info.ID)
	}

	leaseID, exists := c.leases[info.ID]
	if !exists {
		return nil
	}

	if _, err := c.client.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}

	delete(c.leases, info.ID)

	return nil
}

// Workers returns all currently registered workers, in arbitrary order.
func (c *Client) Workers(ctx context.Context) ([]WorkerInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("registry client is closed")
	}

	return c.list(ctx)
}

// WorkersFor returns the workers that consume the named evaluator's queue.
func (c *Client) WorkersFor(ctx context.Context, evaluator string) ([]WorkerInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("registry client is closed")
	}

	all, err := c.list(ctx)
	if err != nil {
		return nil, err
	}

	workers := make([]WorkerInfo, 0, len(all))
	for _, w := range all {
		if w.Serves(evaluator) {
			workers = append(workers, w)
		}
	}
	return workers, nil
}

// list queries all worker entries under the namespace prefix. Callers hold
// whatever locking they need; list itself only touches the etcd client.
func (c *Client) list(ctx context.Context) ([]WorkerInfo, error) {
	resp, err := c.client.Get(ctx, c.workerPrefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover workers: %w", err)
	}

	workers := make([]WorkerInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var info WorkerInfo
		if err := json.Unmarshal(kv.Value, &info); err != nil {
			// Skip invalid entries
			continue
		}
		workers = append(workers, info)
	}

	return workers, nil
}

// Watch returns a channel that receives the full worker list whenever
// membership changes. The current list is sent immediately; afterwards
// every registration, deregistration, or lease expiry triggers a fresh
// snapshot. The channel closes when the context ends or Close is called.
func (c *Client) Watch(ctx context.Context) (<-chan []WorkerInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("registry client is closed")
	}

	workers, err := c.list(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan []WorkerInfo, 1)
	ch <- workers

	watchChan := c.client.Watch(ctx, c.workerPrefix(), clientv3.WithPrefix())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closedChan:
				return
			case watchResp, ok := <-watchChan:
				if !ok {
					return
				}
				if watchResp.Err() != nil {
					return
				}

				// Fetch a fresh snapshot after any change
				workers, err := c.list(context.Background())
				if err != nil {
					continue
				}

				select {
				case ch <- workers:
				case <-ctx.Done():
					return
				case <-c.closedChan:
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close releases all resources and stops background goroutines. Active
// watches are terminated and their channels closed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	for _, cancel := range c.cancelFns {
		cancel()
	}
	c.cancelFns = make(map[string]context.CancelFunc)

	close(c.closedChan)
	c.mu.Unlock()

	c.wg.Wait()

	return c.client.Close()
}

// keepalive renews the lease every TTL/3 seconds to maintain worker
// presence. It stops when the context is cancelled (Deregister or Close)
// or the lease becomes invalid.
func (c *Client) keepalive(ctx context.Context, leaseID clientv3.LeaseID, workerID string) {
	defer c.wg.Done()

	interval := time.Duration(c.ttl) * time.Second / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closedChan:
			return
		case <-ticker.C:
			if _, err := c.client.KeepAliveOnce(context.Background(), leaseID); err != nil {
				// Lease is gone, stop renewing
				c.mu.Lock()
				delete(c.leases, workerID)
				delete(c.cancelFns, workerID)
				c.mu.Unlock()
				return
			}
		}
	}
}

// workerKey is the etcd key for one worker: /namespace/workers/id.
func (c *Client) workerKey(id string) string {
	return fmt.Sprintf("/%s/workers/%s", c.namespace, id)
}

// workerPrefix is the etcd prefix holding all worker entries.
func (c *Client) workerPrefix() string {
	return fmt.Sprintf("/%s/workers/", c.namespace)
}
