package task_test

import (
	"context"
	"testing"

	"github.com/cuemby/atlas/pkg/atlaserr"
	"github.com/cuemby/atlas/pkg/provider"
	"github.com/cuemby/atlas/pkg/storage"
	"github.com/cuemby/atlas/pkg/task"
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

// fakeRunner is a minimal task.Runner backed by plain maps, for predicate
// tests that don't need a full execgraph.Graph.
type fakeRunner struct {
	predecessors map[string][]*task.Node
	successors   map[string][]*task.Node
}

func (f *fakeRunner) Predecessors(id string) []*task.Node { return f.predecessors[id] }
func (f *fakeRunner) Successors(id string) []*task.Node   { return f.successors[id] }

func TestPersistRejectsAlreadyPersisted(t *testing.T) {
	store := newTestStore(t)
	_, err := task.Persist(store, "already-set", types.TaskVPC, "cluster-1", "")
	require.Error(t, err)
	var inv *atlaserr.InvariantViolation
	assert.ErrorAs(t, err, &inv)
}

func TestPersistInsertsPendingProvision(t *testing.T) {
	store := newTestStore(t)
	n, err := task.Persist(store, "", types.TaskVPC, "cluster-1", "dc-1")
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, types.StatePendingProvision, n.State())
}

func TestCanProvisionRootHasNoPredecessors(t *testing.T) {
	root := task.NewNode("root", types.TaskCluster, "c1", "", types.StatePendingProvision, nil)
	r := &fakeRunner{predecessors: map[string][]*task.Node{}}
	assert.True(t, task.CanProvision(root, r))
}

func TestCanProvisionWaitsOnPredecessors(t *testing.T) {
	child := task.NewNode("child", types.TaskDataCentre, "c1", "", types.StatePendingProvision, nil)
	parentPending := task.NewNode("parent", types.TaskCluster, "c1", "", types.StatePendingProvision, nil)
	r := &fakeRunner{predecessors: map[string][]*task.Node{"child": {parentPending}}}
	assert.False(t, task.CanProvision(child, r))

	parentDone := task.NewNode("parent", types.TaskCluster, "c1", "", types.StateProvisioned, nil)
	r = &fakeRunner{predecessors: map[string][]*task.Node{"child": {parentDone}}}
	assert.True(t, task.CanProvision(child, r))
}

func TestCanProvisionFalseWhenNotPending(t *testing.T) {
	n := task.NewNode("n", types.TaskVPC, "c1", "", types.StateProvisioned, nil)
	r := &fakeRunner{}
	assert.False(t, task.CanProvision(n, r))
}

func TestCanDeleteLeafHasNoSuccessors(t *testing.T) {
	leaf := task.NewNode("leaf", types.TaskBindIP, "c1", "", types.StatePendingDeletion, nil)
	r := &fakeRunner{successors: map[string][]*task.Node{}}
	assert.True(t, task.CanDelete(leaf, r))
}

func TestCanDeleteWaitsOnSuccessors(t *testing.T) {
	parent := task.NewNode("parent", types.TaskVPC, "c1", "", types.StatePendingDeletion, nil)
	childNotDeleted := task.NewNode("child", types.TaskSubNets, "c1", "", types.StateDeleting, nil)
	r := &fakeRunner{successors: map[string][]*task.Node{"parent": {childNotDeleted}}}
	assert.False(t, task.CanDelete(parent, r))

	childDeleted := task.NewNode("child", types.TaskSubNets, "c1", "", types.StateDeleted, nil)
	r = &fakeRunner{successors: map[string][]*task.Node{"parent": {childDeleted}}}
	assert.True(t, task.CanDelete(parent, r))
}

func TestSetStateAndPayload(t *testing.T) {
	store := newTestStore(t)
	n, err := task.Persist(store, "", types.TaskVPC, "c1", "dc1")
	require.NoError(t, err)

	require.NoError(t, task.SetState(store, n, types.StateProvisioning))
	assert.Equal(t, types.StateProvisioning, n.State())

	got, err := store.GetNode(n.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateProvisioning, got.State)

	payload := []byte(`{"vpc_id":"vpc-1"}`)
	require.NoError(t, task.SetPayload(store, n, payload))
	assert.JSONEq(t, string(payload), string(n.Payload()))
}

func TestRetryFailedRoutesByPriorPhase(t *testing.T) {
	store := newTestStore(t)
	n, err := task.Persist(store, "", types.TaskVPC, "c1", "dc1")
	require.NoError(t, err)
	require.NoError(t, task.SetState(store, n, types.StateFailed))

	require.NoError(t, task.RetryFailed(store, n, false))
	assert.Equal(t, types.StatePendingProvision, n.State())

	require.NoError(t, task.SetState(store, n, types.StateFailed))
	require.NoError(t, task.RetryFailed(store, n, true))
	assert.Equal(t, types.StatePendingDeletion, n.State())
}

func TestRetryFailedRejectsNonFailed(t *testing.T) {
	store := newTestStore(t)
	n, err := task.Persist(store, "", types.TaskVPC, "c1", "dc1")
	require.NoError(t, err)

	err = task.RetryFailed(store, n, false)
	require.Error(t, err)
	var inv *atlaserr.InvariantViolation
	assert.ErrorAs(t, err, &inv)
}

func TestRunStructuralNoopReachesTerminalState(t *testing.T) {
	store := newTestStore(t)
	n, err := task.Persist(store, "", types.TaskRole, "c1", "dc1")
	require.NoError(t, err)
	require.NoError(t, task.SetState(store, n, types.StateProvisioning))

	prov := provider.NewFakeProvider()
	result := task.Run(context.Background(), store, n, types.ActionProvision, prov)
	require.NoError(t, result.Err)
	require.NoError(t, task.Apply(store, result))
	assert.Equal(t, types.StateProvisioned, n.State())
}

func TestRunVPCProvisionSucceeds(t *testing.T) {
	store := newTestStore(t)
	n, err := task.Persist(store, "", types.TaskVPC, "c1", "dc1")
	require.NoError(t, err)
	require.NoError(t, task.SetState(store, n, types.StateProvisioning))

	prov := provider.NewFakeProvider()
	result := task.Run(context.Background(), store, n, types.ActionProvision, prov)
	require.NoError(t, result.Err)
	require.NoError(t, task.Apply(store, result))
	assert.Equal(t, types.StateProvisioned, n.State())
	assert.Contains(t, string(n.Payload()), "vpc_id")
}

func TestRunFailsAndMarksFailedOnProviderError(t *testing.T) {
	store := newTestStore(t)
	n, err := task.Persist(store, "", types.TaskVPC, "c1", "dc1")
	require.NoError(t, err)
	require.NoError(t, task.SetState(store, n, types.StateProvisioning))

	prov := provider.NewFakeProvider()
	prov.FailOn["CreateVPC"] = 1

	result := task.Run(context.Background(), store, n, types.ActionProvision, prov)
	require.Error(t, result.Err)
	var execErr *atlaserr.TaskExecutionError
	assert.ErrorAs(t, result.Err, &execErr)
	require.NoError(t, task.Apply(store, result))
	assert.Equal(t, types.StateFailed, n.State())
}

func TestRunRetryThenSucceedsCycle(t *testing.T) {
	store := newTestStore(t)
	n, err := task.Persist(store, "", types.TaskVPC, "c1", "dc1")
	require.NoError(t, err)

	prov := provider.NewFakeProvider()
	prov.FailOn["CreateVPC"] = 1

	require.NoError(t, task.SetState(store, n, types.StateProvisioning))
	result := task.Run(context.Background(), store, n, types.ActionProvision, prov)
	require.Error(t, result.Err)
	require.NoError(t, task.Apply(store, result))
	assert.Equal(t, types.StateFailed, n.State())

	require.NoError(t, task.RetryFailed(store, n, false))
	assert.Equal(t, types.StatePendingProvision, n.State())

	require.NoError(t, task.SetState(store, n, types.StateProvisioning))
	result = task.Run(context.Background(), store, n, types.ActionProvision, prov)
	require.NoError(t, result.Err)
	require.NoError(t, task.Apply(store, result))
	assert.Equal(t, types.StateProvisioned, n.State())
}

func TestRunUnknownTypeTagFails(t *testing.T) {
	store := newTestStore(t)
	n := task.NewNode("n1", types.TaskType("Bogus"), "c1", "dc1", types.StateProvisioning, nil)
	result := task.Run(context.Background(), store, n, types.ActionProvision, provider.NewFakeProvider())
	require.Error(t, result.Err)
	var cfgErr *atlaserr.ConfigurationError
	assert.ErrorAs(t, result.Err, &cfgErr)
	require.NoError(t, task.Apply(store, result))
	assert.Equal(t, types.StateProvisioning, n.State(), "an early-return error applies no state transition")
}

func TestCreateInstanceUsesDataCentreScopedParents(t *testing.T) {
	store := newTestStore(t)
	dcID := "dc-1"

	subnet, err := task.Persist(store, "", types.TaskSubNets, "c1", dcID)
	require.NoError(t, err)
	require.NoError(t, task.SetPayload(store, subnet, []byte(`{"subnet_id":"subnet-1"}`)))
	require.NoError(t, task.SetState(store, subnet, types.StateProvisioned))

	sg, err := task.Persist(store, "", types.TaskSecurityGroups, "c1", dcID)
	require.NoError(t, err)
	require.NoError(t, task.SetPayload(store, sg, []byte(`{"security_group_id":"sg-1"}`)))
	require.NoError(t, task.SetState(store, sg, types.StateProvisioned))

	instance, err := task.Persist(store, "", types.TaskCreateInstance, "c1", dcID)
	require.NoError(t, err)
	require.NoError(t, task.SetState(store, instance, types.StateProvisioning))

	result := task.Run(context.Background(), store, instance, types.ActionProvision, provider.NewFakeProvider())
	require.NoError(t, result.Err)
	require.NoError(t, task.Apply(store, result))
	assert.Equal(t, types.StateProvisioned, instance.State())
	assert.Contains(t, string(instance.Payload()), "instance_id")
}
