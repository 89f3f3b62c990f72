// Package graphbuilder constructs the canonical DAG topology for a new
// cluster and persists it, and reconstructs an existing cluster's DAG from
// the store on load.
package graphbuilder

import (
	"context"

	"github.com/cuemby/atlas/pkg/atlaserr"
	"github.com/cuemby/atlas/pkg/execgraph"
	"github.com/cuemby/atlas/pkg/log"
	"github.com/cuemby/atlas/pkg/storage"
	"github.com/cuemby/atlas/pkg/task"
	"github.com/cuemby/atlas/pkg/types"
)

// Builder constructs and loads cluster DAGs against a Store.
type Builder struct {
	store storage.Store
}

// New returns a Builder backed by store.
func New(store storage.Store) *Builder {
	return &Builder{store: store}
}

// Create builds a fresh cluster and its DAG: one root Cluster task, nDCs
// data centres each with their structural and networking tasks, and nNodes
// instance task groups per data centre. Every node and edge is persisted.
// The resulting graph is verified acyclic before it is returned.
//
// nDCs == 0 yields the single-node Cluster-only graph. nNodes == 0 yields a
// DC skeleton with no instance-family tasks.
func (b *Builder) Create(ctx context.Context, name string, nNodes, nDCs int) (*execgraph.Graph, error) {
	cluster, err := b.store.InsertCluster(name)
	if err != nil {
		return nil, atlaserr.NewStoreError("InsertCluster", err)
	}

	g := execgraph.New()

	clusterNode, err := b.persistNode(g, types.TaskCluster, cluster.ID, "")
	if err != nil {
		return nil, err
	}

	for dcIndex := 0; dcIndex < nDCs; dcIndex++ {
		dc, err := b.store.InsertDataCentre(cluster.ID)
		if err != nil {
			return nil, atlaserr.NewStoreError("InsertDataCentre", err)
		}

		dcNode, err := b.persistNode(g, types.TaskDataCentre, cluster.ID, dc.ID)
		if err != nil {
			return nil, err
		}
		role, err := b.persistNode(g, types.TaskRole, cluster.ID, dc.ID)
		if err != nil {
			return nil, err
		}
		vpc, err := b.persistNode(g, types.TaskVPC, cluster.ID, dc.ID)
		if err != nil {
			return nil, err
		}
		securityGroups, err := b.persistNode(g, types.TaskSecurityGroups, cluster.ID, dc.ID)
		if err != nil {
			return nil, err
		}
		internetGateway, err := b.persistNode(g, types.TaskInternetGateway, cluster.ID, dc.ID)
		if err != nil {
			return nil, err
		}
		routeTable, err := b.persistNode(g, types.TaskRouteTable, cluster.ID, dc.ID)
		if err != nil {
			return nil, err
		}
		subnets, err := b.persistNode(g, types.TaskSubNets, cluster.ID, dc.ID)
		if err != nil {
			return nil, err
		}
		firewallRules, err := b.persistNode(g, types.TaskFirewallRules, cluster.ID, dc.ID)
		if err != nil {
			return nil, err
		}

		edges := [][2]*task.Node{
			{clusterNode, dcNode},
			{dcNode, role},
			{dcNode, vpc},
			{vpc, securityGroups},
			{vpc, internetGateway},
			{vpc, routeTable},
			{vpc, subnets},
			{internetGateway, routeTable},
			{routeTable, subnets},
			{securityGroups, firewallRules},
		}

		for n := 0; n < nNodes; n++ {
			createInstance, err := b.persistNode(g, types.TaskCreateInstance, cluster.ID, dc.ID)
			if err != nil {
				return nil, err
			}
			createEBS, err := b.persistNode(g, types.TaskCreateEBS, cluster.ID, dc.ID)
			if err != nil {
				return nil, err
			}
			attachEBS, err := b.persistNode(g, types.TaskAttachEBS, cluster.ID, dc.ID)
			if err != nil {
				return nil, err
			}
			bindSecurityGroup, err := b.persistNode(g, types.TaskBindSecurityGroup, cluster.ID, dc.ID)
			if err != nil {
				return nil, err
			}
			bindIP, err := b.persistNode(g, types.TaskBindIP, cluster.ID, dc.ID)
			if err != nil {
				return nil, err
			}

			edges = append(edges,
				[2]*task.Node{dcNode, createEBS},
				[2]*task.Node{createEBS, createInstance},
				[2]*task.Node{createInstance, attachEBS},
				[2]*task.Node{createInstance, bindIP},
				[2]*task.Node{createInstance, bindSecurityGroup},
				[2]*task.Node{securityGroups, bindSecurityGroup},
			)
		}

		if err := b.persistEdges(g, cluster.ID, dc.ID, edges); err != nil {
			return nil, err
		}
		// Every data centre's nodes and edges are built and persisted
		// before moving to the next iteration; the loop runs to
		// completion and the graph is returned once, after all nDCs
		// have been processed.
	}

	if err := g.CheckAcyclic(); err != nil {
		return nil, err
	}

	return g, nil
}

// Load reconstructs the in-memory DAG for an existing cluster from the
// store. Any node found PROVISIONING or DELETING is assumed to be the
// victim of a crash and is forcibly transitioned to FAILED before it can be
// scheduled.
func (b *Builder) Load(ctx context.Context, clusterID string) (*execgraph.Graph, error) {
	rows, err := b.store.ListNodesByCluster(clusterID)
	if err != nil {
		return nil, atlaserr.NewStoreError("ListNodesByCluster", err)
	}

	g := execgraph.New()
	for _, row := range rows {
		if _, ok := task.Lookup(row.Type); !ok {
			return nil, atlaserr.NewConfigurationError("unknown type tag on load: " + string(row.Type))
		}

		state := row.State
		if state == types.StateProvisioning || state == types.StateDeleting {
			log.WarnEvent().Str("node_id", row.ID).Str("state", string(state)).
				Msg("node was in-flight on load, marking FAILED")
			if err := b.store.UpdateNodeState(row.ID, types.StateFailed); err != nil {
				return nil, atlaserr.NewStoreError("UpdateNodeState", err)
			}
			state = types.StateFailed
		}

		g.AddNode(task.NewNode(row.ID, row.Type, row.Cluster, row.DataCentre, state, row.Payload))
	}

	edges, err := b.store.EdgesByCluster(clusterID)
	if err != nil {
		return nil, atlaserr.NewStoreError("EdgesByCluster", err)
	}
	for _, e := range edges {
		g.AddEdge(e.FromNode, e.ToNode)
	}

	if err := g.CheckAcyclic(); err != nil {
		return nil, err
	}

	return g, nil
}

func (b *Builder) persistNode(g *execgraph.Graph, typ types.TaskType, clusterID, dcID string) (*task.Node, error) {
	n, err := task.Persist(b.store, "", typ, clusterID, dcID)
	if err != nil {
		return nil, err
	}
	g.AddNode(n)
	return n, nil
}

func (b *Builder) persistEdges(g *execgraph.Graph, clusterID, dcID string, edges [][2]*task.Node) error {
	for _, pair := range edges {
		from, to := pair[0], pair[1]
		if _, err := b.store.InsertEdge(&types.Edge{
			Cluster:    clusterID,
			DataCentre: dcID,
			FromNode:   from.ID,
			ToNode:     to.ID,
		}); err != nil {
			return atlaserr.NewStoreError("InsertEdge", err)
		}
		g.AddEdge(from.ID, to.ID)
	}
	return nil
}
