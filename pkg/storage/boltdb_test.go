package storage_test

import (
	"testing"

	"github.com/cuemby/atlas/pkg/storage"
	"github.com/cuemby/atlas/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *storage.BoltStore {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClusterRoundTrip(t *testing.T) {
	store := newTestStore(t)

	c, err := store.InsertCluster("prod")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "prod", c.Name)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := store.GetCluster(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Name, got.Name)

	require.NoError(t, store.DeleteCluster(c.ID))
	_, err = store.GetCluster(c.ID)
	assert.Error(t, err)
}

func TestDataCentreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	c, err := store.InsertCluster("prod")
	require.NoError(t, err)

	dc1, err := store.InsertDataCentre(c.ID)
	require.NoError(t, err)
	dc2, err := store.InsertDataCentre(c.ID)
	require.NoError(t, err)

	otherCluster, err := store.InsertCluster("staging")
	require.NoError(t, err)
	_, err = store.InsertDataCentre(otherCluster.ID)
	require.NoError(t, err)

	dcs, err := store.ListDataCentres(c.ID)
	require.NoError(t, err)
	assert.Len(t, dcs, 2)
	ids := []string{dcs[0].ID, dcs[1].ID}
	assert.ElementsMatch(t, []string{dc1.ID, dc2.ID}, ids)
}

func TestNodeRoundTrip(t *testing.T) {
	store := newTestStore(t)

	c, err := store.InsertCluster("prod")
	require.NoError(t, err)

	n, err := store.InsertNode(&types.Node{
		Type:    types.TaskVPC,
		Cluster: c.ID,
		State:   types.StatePendingProvision,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)

	got, err := store.GetNode(n.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskVPC, got.Type)
	assert.Equal(t, types.StatePendingProvision, got.State)

	require.NoError(t, store.UpdateNodeState(n.ID, types.StateProvisioning))
	got, err = store.GetNode(n.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateProvisioning, got.State)

	payload := []byte(`{"vpc_id":"vpc-1"}`)
	require.NoError(t, store.UpdateNodePayload(n.ID, payload))
	got, err = store.GetNode(n.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got.Payload))

	require.NoError(t, store.DeleteNode(n.ID))
	_, err = store.GetNode(n.ID)
	assert.Error(t, err)
}

func TestListNodesByCluster(t *testing.T) {
	store := newTestStore(t)

	c1, err := store.InsertCluster("a")
	require.NoError(t, err)
	c2, err := store.InsertCluster("b")
	require.NoError(t, err)

	_, err = store.InsertNode(&types.Node{Type: types.TaskCluster, Cluster: c1.ID, State: types.StatePendingProvision})
	require.NoError(t, err)
	_, err = store.InsertNode(&types.Node{Type: types.TaskCluster, Cluster: c1.ID, State: types.StatePendingProvision})
	require.NoError(t, err)
	_, err = store.InsertNode(&types.Node{Type: types.TaskCluster, Cluster: c2.ID, State: types.StatePendingProvision})
	require.NoError(t, err)

	nodes, err := store.ListNodesByCluster(c1.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestNodesByType(t *testing.T) {
	store := newTestStore(t)

	c, err := store.InsertCluster("prod")
	require.NoError(t, err)
	dc, err := store.InsertDataCentre(c.ID)
	require.NoError(t, err)

	subnet, err := store.InsertNode(&types.Node{Type: types.TaskSubNets, Cluster: c.ID, DataCentre: dc.ID, State: types.StatePendingProvision})
	require.NoError(t, err)
	_, err = store.InsertNode(&types.Node{Type: types.TaskVPC, Cluster: c.ID, DataCentre: dc.ID, State: types.StatePendingProvision})
	require.NoError(t, err)

	rows, err := store.NodesByType(dc.ID, types.TaskSubNets)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, subnet.ID, rows[0].ID)
}

func TestEdgesAndParentPayloads(t *testing.T) {
	store := newTestStore(t)

	c, err := store.InsertCluster("prod")
	require.NoError(t, err)

	vpc, err := store.InsertNode(&types.Node{
		Type: types.TaskVPC, Cluster: c.ID, State: types.StateProvisioned,
		Payload: []byte(`{"vpc_id":"vpc-1"}`),
	})
	require.NoError(t, err)
	igw, err := store.InsertNode(&types.Node{Type: types.TaskInternetGateway, Cluster: c.ID, State: types.StatePendingProvision})
	require.NoError(t, err)

	edge, err := store.InsertEdge(&types.Edge{Cluster: c.ID, FromNode: vpc.ID, ToNode: igw.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)

	edges, err := store.EdgesByCluster(c.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	parents, err := store.ParentPayloads(igw.ID, "")
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, types.TaskVPC, parents[0].Type)
	assert.JSONEq(t, `{"vpc_id":"vpc-1"}`, string(parents[0].Payload))

	filtered, err := store.ParentPayloads(igw.ID, types.TaskVPC)
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	none, err := store.ParentPayloads(igw.ID, types.TaskRouteTable)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.DeleteEdge(edge.ID))
	edges, err = store.EdgesByCluster(c.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)
}
