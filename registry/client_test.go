package registry

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerInfo_Serves(t *testing.T) {
	info := WorkerInfo{Evaluators: []string{"kendalls_tau", "classify_knn"}}

	assert.True(t, info.Serves("kendalls_tau"))
	assert.True(t, info.Serves("classify_knn"))
	assert.False(t, info.Serves("reward_plot"))
	assert.False(t, WorkerInfo{}.Serves("kendalls_tau"))
}

func TestWorkerInfo_JSONRoundTrip(t *testing.T) {
	info := WorkerInfo{
		ID:         "worker-1",
		QueueAddr:  "redis://localhost:6379",
		HealthAddr: "localhost:50051",
		Evaluators: []string{"kendalls_tau", "nearest_neighbour"},
		Version:    "0.3.0",
		StartedAt:  time.Now().UTC().Truncate(time.Second),
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var got WorkerInfo
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, info.QueueAddr, got.QueueAddr)
	assert.Equal(t, info.HealthAddr, got.HealthAddr)
	assert.Equal(t, info.Evaluators, got.Evaluators)
	assert.Equal(t, info.Version, got.Version)
	assert.True(t, got.StartedAt.Equal(info.StartedAt))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry endpoints cannot be empty")
}

func TestNewClientFromEnv_Unset(t *testing.T) {
	t.Setenv("EMBEDBENCH_REGISTRY_ENDPOINTS", "")

	client, err := NewClientFromEnv()
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestWorkerKeys(t *testing.T) {
	c := &Client{namespace: "embedbench"}

	assert.Equal(t, "/embedbench/workers/abc", c.workerKey("abc"))
	assert.Equal(t, "/embedbench/workers/", c.workerPrefix())
}

func TestNewTLSInfo(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		info, err := newTLSInfo(nil)
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("disabled", func(t *testing.T) {
		info, err := newTLSInfo(&TLSConfig{Enabled: false, CertFile: "c", KeyFile: "k", CAFile: "ca"})
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("missing cert file", func(t *testing.T) {
		_, err := newTLSInfo(&TLSConfig{Enabled: true, KeyFile: "k", CAFile: "ca"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cert file is required")
	})

	t.Run("missing key file", func(t *testing.T) {
		_, err := newTLSInfo(&TLSConfig{Enabled: true, CertFile: "c", CAFile: "ca"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key file is required")
	})

	t.Run("missing CA file", func(t *testing.T) {
		_, err := newTLSInfo(&TLSConfig{Enabled: true, CertFile: "c", KeyFile: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CA file is required")
	})

	t.Run("nonexistent certificate paths", func(t *testing.T) {
		info, err := newTLSInfo(&TLSConfig{
			Enabled:  true,
			CertFile: "/nonexistent/cert.pem",
			KeyFile:  "/nonexistent/key.pem",
			CAFile:   "/nonexistent/ca.pem",
		})
		require.NoError(t, err)

		_, err = info.ClientConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load client certificate")
	})

	t.Run("nil info client config", func(t *testing.T) {
		var info *tlsInfo
		cfg, err := info.ClientConfig()
		require.NoError(t, err)
		assert.Nil(t, cfg)
	})
}

// TestIntegration_Lifecycle exercises register/discover/watch/deregister
// against a live etcd cluster.
func TestIntegration_Lifecycle(t *testing.T) {
	endpoints := os.Getenv("EMBEDBENCH_REGISTRY_ENDPOINTS")
	if endpoints == "" {
		t.Skip("EMBEDBENCH_REGISTRY_ENDPOINTS not set, skipping integration test")
	}

	client, err := NewClient(Config{
		Endpoints: strings.Split(endpoints, ","),
		Namespace: "embedbench-test",
		TTL:       5,
	})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tau := WorkerInfo{
		ID:         uuid.NewString(),
		QueueAddr:  "redis://localhost:6379",
		HealthAddr: "localhost:50051",
		Evaluators: []string{"kendalls_tau"},
		StartedAt:  time.Now(),
	}
	knn := WorkerInfo{
		ID:         uuid.NewString(),
		QueueAddr:  "redis://localhost:6379",
		HealthAddr: "localhost:50052",
		Evaluators: []string{"classify_knn", "kendalls_tau"},
		StartedAt:  time.Now(),
	}

	require.NoError(t, client.Register(ctx, tau))
	require.NoError(t, client.Register(ctx, knn))
	defer client.Deregister(ctx, tau)

	workers, err := client.Workers(ctx)
	require.NoError(t, err)
	ids := make(map[string]bool, len(workers))
	for _, w := range workers {
		ids[w.ID] = true
	}
	assert.True(t, ids[tau.ID], "registered worker %s not discovered", tau.ID)
	assert.True(t, ids[knn.ID], "registered worker %s not discovered", knn.ID)

	knnWorkers, err := client.WorkersFor(ctx, "classify_knn")
	require.NoError(t, err)
	require.Len(t, knnWorkers, 1)
	assert.Equal(t, knn.ID, knnWorkers[0].ID)

	watch, err := client.Watch(ctx)
	require.NoError(t, err)

	// Initial snapshot arrives immediately.
	select {
	case workers := <-watch:
		assert.NotEmpty(t, workers)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for initial watch snapshot")
	}

	// Deregistration shows up as a membership change.
	require.NoError(t, client.Deregister(ctx, knn))

	deadline := time.After(10 * time.Second)
	for {
		select {
		case workers, ok := <-watch:
			require.True(t, ok, "watch channel closed early")
			still := false
			for _, w := range workers {
				if w.ID == knn.ID {
					still = true
				}
			}
			if !still {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for deregistration to reach the watch")
		}
	}
}
