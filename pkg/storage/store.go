package storage

import (
	"github.com/cuemby/atlas/pkg/types"
)

// Store is the transactional persistence interface over clusters, data
// centres, nodes, and edges. Implementations must make every method one
// atomic unit: a crash mid-call must never leave a row half-written.
type Store interface {
	// Clusters
	InsertCluster(name string) (*types.Cluster, error)
	GetCluster(id string) (*types.Cluster, error)
	DeleteCluster(id string) error

	// Data centres
	InsertDataCentre(clusterID string) (*types.DataCentre, error)
	ListDataCentres(clusterID string) ([]*types.DataCentre, error)

	// Nodes
	InsertNode(node *types.Node) (*types.Node, error)
	GetNode(id string) (*types.Node, error)
	ListNodesByCluster(clusterID string) ([]*types.Node, error)
	// NodesByType returns every node of typ within one data centre. Used
	// for payload channels that aren't reachable by a single edge hop (the
	// canonical topology never wires SubNets/SecurityGroups directly to
	// CreateInstance — both are DC-scoped siblings of CreateInstance's
	// actual predecessor, CreateEBS).
	NodesByType(dataCentreID string, typ types.TaskType) ([]*types.Node, error)
	UpdateNodeState(id string, state types.State) error
	UpdateNodePayload(id string, payload []byte) error
	DeleteNode(id string) error

	// Edges
	InsertEdge(edge *types.Edge) (*types.Edge, error)
	EdgesByCluster(clusterID string) ([]*types.Edge, error)
	DeleteEdge(id string) error

	// ParentPayloads returns (type, state, payload) triples for every node
	// with an edge into nodeID, optionally filtered to a single type tag.
	// Implemented store-side so a task resumed after a crash always sees
	// authoritative state.
	ParentPayloads(nodeID string, typeFilter types.TaskType) ([]types.ParentPayload, error)

	Close() error
}
