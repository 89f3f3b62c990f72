// Package execgraph is the in-memory execution DAG: a thin query layer over
// adjacency lists of task.Node values, with no third-party graph library.
// That choice is deliberate and grounded on the retrieval pack's own
// DAG-shaped orchestrators, which all hand-roll adjacency maps rather than
// pull in a generic graph dependency.
package execgraph

import (
	"fmt"
	"sort"

	"github.com/cuemby/atlas/pkg/atlaserr"
	"github.com/cuemby/atlas/pkg/task"
	"github.com/cuemby/atlas/pkg/types"
)

// Graph is an adjacency-list DAG over *task.Node. Once built it is mutated
// only at construction time (edges added); during execution it is read
// only, so no locking is needed for its topology — only each Node's own
// cached state field is mutated, and always by whichever goroutine owns
// that task at the moment (the executor's single-writer dispatcher).
type Graph struct {
	nodes       map[string]*task.Node
	successors  map[string][]string
	predecessor map[string][]string
	root        string
}

var _ task.Runner = (*Graph)(nil)

// New builds an empty Graph. Nodes and edges are added with AddNode and
// AddEdge, then the result should be validated with CheckAcyclic before use.
func New() *Graph {
	return &Graph{
		nodes:       make(map[string]*task.Node),
		successors:  make(map[string][]string),
		predecessor: make(map[string][]string),
	}
}

// AddNode registers n in the graph. A node of type Cluster becomes the
// graph's root.
func (g *Graph) AddNode(n *task.Node) {
	g.nodes[n.ID] = n
	if n.Type == types.TaskCluster {
		g.root = n.ID
	}
}

// AddEdge records fromID -> toID: toID may only provision after fromID has
// provisioned, and fromID may only delete after toID has deleted.
func (g *Graph) AddEdge(fromID, toID string) {
	g.successors[fromID] = append(g.successors[fromID], toID)
	g.predecessor[toID] = append(g.predecessor[toID], fromID)
}

// Node returns the handle for id, or nil if unknown.
func (g *Graph) Node(id string) *task.Node { return g.nodes[id] }

// Nodes returns every node in the graph, sorted by id.
func (g *Graph) Nodes() []*task.Node {
	out := make([]*task.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Root returns the unique topological source, the cluster's Cluster task.
func (g *Graph) Root() *task.Node { return g.nodes[g.root] }

// Predecessors implements task.Runner.
func (g *Graph) Predecessors(nodeID string) []*task.Node {
	ids := g.predecessor[nodeID]
	out := make([]*task.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

// Successors implements task.Runner.
func (g *Graph) Successors(nodeID string) []*task.Node {
	ids := g.successors[nodeID]
	out := make([]*task.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

// CheckAcyclic verifies the edge set is acyclic via Kahn's algorithm (repeatedly
// removing zero-in-degree nodes). Returns an InvariantViolation if a cycle
// remains once no more nodes can be removed.
func (g *Graph) CheckAcyclic() error {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.predecessor[id])
	}

	queue := make([]string, 0, len(g.nodes))
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, succ := range g.successors[id] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if visited != len(g.nodes) {
		return atlaserr.NewInvariantViolation("edge set is not acyclic")
	}
	return nil
}

// RunnableProvisionTasks returns every node with CanProvision == true.
func (g *Graph) RunnableProvisionTasks() []*task.Node {
	var out []*task.Node
	for _, n := range g.Nodes() {
		if task.CanProvision(n, g) {
			out = append(out, n)
		}
	}
	return out
}

// RunnableDeleteTasks returns every node with CanDelete == true.
func (g *Graph) RunnableDeleteTasks() []*task.Node {
	var out []*task.Node
	for _, n := range g.Nodes() {
		if task.CanDelete(n, g) {
			out = append(out, n)
		}
	}
	return out
}

// NodesInState is a linear filter over every node's cached state.
func (g *Graph) NodesInState(s types.State) []*task.Node {
	var out []*task.Node
	for _, n := range g.Nodes() {
		if n.State() == s {
			out = append(out, n)
		}
	}
	return out
}

// PercentComplete is |PROVISIONED| / |nodes| during the provision phase and
// |DELETED| / |nodes| during the delete phase.
func (g *Graph) PercentComplete(phase types.Phase) float64 {
	if len(g.nodes) == 0 {
		return 100
	}
	terminal := types.StateProvisioned
	if phase == types.PhaseDelete {
		terminal = types.StateDeleted
	}
	return float64(len(g.NodesInState(terminal))) * 100 / float64(len(g.nodes))
}

// Info formats a one-line progress snapshot, in the spirit of the source's
// periodic progress summary.
func (g *Graph) Info(phase types.Phase) string {
	pending := len(g.NodesInState(types.StatePendingProvision)) + len(g.NodesInState(types.StatePendingDeletion))
	failed := len(g.NodesInState(types.StateFailed))
	terminal := types.StateProvisioned
	inFlight := types.StateProvisioning
	if phase == types.PhaseDelete {
		terminal = types.StateDeleted
		inFlight = types.StateDeleting
	}
	complete := len(g.NodesInState(terminal))
	executing := len(g.NodesInState(inFlight))
	return fmt.Sprintf("%.2f%% done:  Pending: %d, Failed: %d, Complete: %d, Executing: %d",
		g.PercentComplete(phase), pending, failed, complete, executing)
}

// Complete is true iff every node is in the terminal state for phase.
func (g *Graph) Complete(phase types.Phase) bool {
	terminal := types.StateProvisioned
	if phase == types.PhaseDelete {
		terminal = types.StateDeleted
	}
	for _, n := range g.nodes {
		if n.State() != terminal {
			return false
		}
	}
	return true
}
