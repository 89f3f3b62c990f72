package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/atlas/pkg/config"
	"github.com/cuemby/atlas/pkg/executor"
	"github.com/cuemby/atlas/pkg/graphbuilder"
	"github.com/cuemby/atlas/pkg/provider"
	"github.com/cuemby/atlas/pkg/storage"
	"github.com/cuemby/atlas/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *storage.BoltStore {
	t.Helper()
	s, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fastCfg() config.Executor {
	return config.Executor{PoolSize: 8, PollInterval: 5 * time.Millisecond}
}

func TestExecutorProvisionsSingleDataCentreToCompletion(t *testing.T) {
	store := newTestStore(t)
	builder := graphbuilder.New(store)
	g, err := builder.Create(context.Background(), "prod", 2, 1)
	require.NoError(t, err)
	clusterID := g.Root().Cluster

	exec := executor.New(store, provider.NewFakeProvider(), nil, fastCfg())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, exec.Run(ctx, clusterID, types.PhaseProvision))

	rows, err := store.ListNodesByCluster(clusterID)
	require.NoError(t, err)
	for _, n := range rows {
		assert.Equal(t, types.StateProvisioned, n.State, "node %s (%s) should be PROVISIONED", n.ID, n.Type)
	}
}

func TestExecutorRetriesTransientFailureToSuccess(t *testing.T) {
	store := newTestStore(t)
	builder := graphbuilder.New(store)
	g, err := builder.Create(context.Background(), "prod", 1, 1)
	require.NoError(t, err)
	clusterID := g.Root().Cluster

	fake := provider.NewFakeProvider()
	fake.FailOn["CreateVPC"] = 1 // first call fails, retry succeeds

	exec := executor.New(store, fake, nil, fastCfg())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, exec.Run(ctx, clusterID, types.PhaseProvision))

	rows, err := store.ListNodesByCluster(clusterID)
	require.NoError(t, err)
	for _, n := range rows {
		assert.Equal(t, types.StateProvisioned, n.State)
	}
}

func TestExecutorRecoversFromCrashMidRun(t *testing.T) {
	store := newTestStore(t)
	builder := graphbuilder.New(store)
	g, err := builder.Create(context.Background(), "prod", 1, 1)
	require.NoError(t, err)
	clusterID := g.Root().Cluster

	// Simulate a crash: the DataCentre task is stuck PROVISIONING, as if its
	// goroutine never returned before the process died.
	var dcID string
	for _, n := range g.Nodes() {
		if n.Type == types.TaskDataCentre {
			dcID = n.ID
		}
	}
	require.NotEmpty(t, dcID)
	require.NoError(t, store.UpdateNodeState(dcID, types.StateProvisioning))

	exec := executor.New(store, provider.NewFakeProvider(), nil, fastCfg())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Load (inside Run) marks the stuck node FAILED, retryFailed re-arms it
	// on the first tick, and the run still reaches completion.
	require.NoError(t, exec.Run(ctx, clusterID, types.PhaseProvision))

	rows, err := store.ListNodesByCluster(clusterID)
	require.NoError(t, err)
	for _, n := range rows {
		assert.Equal(t, types.StateProvisioned, n.State)
	}
}

func TestExecutorMultiDataCentreMultiInstance(t *testing.T) {
	store := newTestStore(t)
	builder := graphbuilder.New(store)
	g, err := builder.Create(context.Background(), "prod", 3, 2)
	require.NoError(t, err)
	clusterID := g.Root().Cluster

	exec := executor.New(store, provider.NewFakeProvider(), nil, fastCfg())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, exec.Run(ctx, clusterID, types.PhaseProvision))

	rows, err := store.ListNodesByCluster(clusterID)
	require.NoError(t, err)
	instanceCount := 0
	for _, n := range rows {
		assert.Equal(t, types.StateProvisioned, n.State)
		if n.Type == types.TaskCreateInstance {
			instanceCount++
		}
	}
	assert.Equal(t, 6, instanceCount)
}

func TestExecutorDeletePhaseDeletesEveryNode(t *testing.T) {
	store := newTestStore(t)
	builder := graphbuilder.New(store)
	g, err := builder.Create(context.Background(), "prod", 1, 1)
	require.NoError(t, err)
	clusterID := g.Root().Cluster

	fake := provider.NewFakeProvider()
	exec := executor.New(store, fake, nil, fastCfg())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, exec.Run(ctx, clusterID, types.PhaseProvision))

	rows, err := store.ListNodesByCluster(clusterID)
	require.NoError(t, err)
	for _, n := range rows {
		require.NoError(t, store.UpdateNodeState(n.ID, types.StatePendingDeletion))
	}

	require.NoError(t, exec.Run(ctx, clusterID, types.PhaseDelete))

	rows, err = store.ListNodesByCluster(clusterID)
	require.NoError(t, err)
	for _, n := range rows {
		assert.Equal(t, types.StateDeleted, n.State)
	}
}
