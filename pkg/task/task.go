// Package task implements the per-node state machine and polymorphic
// provision/delete behaviour keyed on a node's type tag.
package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/atlas/pkg/atlaserr"
	"github.com/cuemby/atlas/pkg/provider"
	"github.com/cuemby/atlas/pkg/storage"
	"github.com/cuemby/atlas/pkg/types"
)

// Node is the in-memory handle for one persisted task row: an id, a type
// tag, owning cluster and data centre, and a cached state and payload. Authoritative state always lives in the store; every mutation
// goes through the store first and refreshes the cache. Only the dispatcher
// goroutine calls SetState/SetPayload on a given Node — Run itself returns
// the outcome as plain data instead of writing it, so a worker goroutine
// never touches the same field the dispatcher is reading.
//
// This is a lightweight handle: the node does not hold its own neighbour
// lists (those are reached through a Runner), to avoid the dual
// in-memory/persisted ambiguity the source's inheritance-based tasks had.
type Node struct {
	ID         string
	Type       types.TaskType
	Cluster    string
	DataCentre string

	state   types.State
	payload json.RawMessage
}

// State returns the node's cached state.
func (n *Node) State() types.State { return n.state }

// Payload returns the node's cached payload.
func (n *Node) Payload() json.RawMessage { return n.payload }

// NewNode builds an in-memory handle for a freshly-persisted row.
func NewNode(id string, typ types.TaskType, cluster, dataCentre string, state types.State, payload json.RawMessage) *Node {
	return &Node{ID: id, Type: typ, Cluster: cluster, DataCentre: dataCentre, state: state, payload: payload}
}

// Runner is the dependency the dispatcher needs to evaluate predicates: a
// node's neighbours. pkg/execgraph's Graph
// implements this by delegating neighbour lookup to its adjacency lists.
type Runner interface {
	Predecessors(nodeID string) []*Node
	Successors(nodeID string) []*Node
}

// CanProvision is true iff the node is PENDING_PROVISION and every
// predecessor is PROVISIONED. A node with no predecessors (the cluster
// root) always satisfies the predecessor clause.
func CanProvision(n *Node, r Runner) bool {
	if n.state != types.StatePendingProvision {
		return false
	}
	for _, p := range r.Predecessors(n.ID) {
		if p.state != types.StateProvisioned {
			return false
		}
	}
	return true
}

// CanDelete is true iff the node is PENDING_DELETION and every successor is
// DELETED. Leaves (no successors) always satisfy the successor clause.
func CanDelete(n *Node, r Runner) bool {
	if n.state != types.StatePendingDeletion {
		return false
	}
	for _, s := range r.Successors(n.ID) {
		if s.state != types.StateDeleted {
			return false
		}
	}
	return true
}

// Persist inserts a new row in PENDING_PROVISION with an empty payload and
// returns the resulting handle. Fails with InvariantViolation if nodeID is
// already set, mirroring "persist called twice".
func Persist(store storage.Store, nodeID string, typ types.TaskType, cluster, dataCentre string) (*Node, error) {
	if nodeID != "" {
		return nil, atlaserr.NewInvariantViolation("task already persisted: " + nodeID)
	}
	row := &types.Node{
		Type:       typ,
		Cluster:    cluster,
		DataCentre: dataCentre,
		State:      types.StatePendingProvision,
	}
	inserted, err := store.InsertNode(row)
	if err != nil {
		return nil, atlaserr.NewStoreError("InsertNode", err)
	}
	return NewNode(inserted.ID, inserted.Type, inserted.Cluster, inserted.DataCentre, inserted.State, inserted.Payload), nil
}

// SetState updates the row and the in-memory cache atomically with respect
// to this node: callers never see a torn state between the two.
func SetState(store storage.Store, n *Node, s types.State) error {
	if err := store.UpdateNodeState(n.ID, s); err != nil {
		return atlaserr.NewStoreError("UpdateNodeState", err)
	}
	n.state = s
	return nil
}

// SetPayload updates the row and the in-memory cache.
func SetPayload(store storage.Store, n *Node, payload []byte) error {
	if err := store.UpdateNodePayload(n.ID, payload); err != nil {
		return atlaserr.NewStoreError("UpdateNodePayload", err)
	}
	n.payload = payload
	return nil
}

// Parents returns (type, state, payload) triples for every predecessor row,
// optionally filtered to a single type tag. This goes through the store (an
// edge+node join), not through in-memory traversal, so a task resumed after
// a crash always sees authoritative state.
func Parents(store storage.Store, n *Node, typeFilter types.TaskType) ([]types.ParentPayload, error) {
	parents, err := store.ParentPayloads(n.ID, typeFilter)
	if err != nil {
		return nil, atlaserr.NewStoreError("ParentPayloads", err)
	}
	return parents, nil
}

// RetryFailed resets a FAILED node back to the appropriate PENDING_* state:
// PENDING_PROVISION if it never reached PROVISIONED, PENDING_DELETION if it
// had been PROVISIONED before failing during deletion. wasProvisioned
// records which branch the node failed in, since State alone cannot
// disambiguate once it has decayed to FAILED.
func RetryFailed(store storage.Store, n *Node, wasProvisioned bool) error {
	if n.state != types.StateFailed {
		return atlaserr.NewInvariantViolation(fmt.Sprintf("retry_failed called on node %s in state %s", n.ID, n.state))
	}
	target := types.StatePendingProvision
	if wasProvisioned {
		target = types.StatePendingDeletion
	}
	return SetState(store, n, target)
}

// Result is the outcome of one Run call, handed back to the dispatcher as a
// plain value instead of being written into n directly. NextState is the
// zero value when Run returned before reaching the provider (an unknown
// type tag or invalid action): no state transition applies in that case,
// exactly as if the call had never been made.
type Result struct {
	Node      *Node
	NextState types.State
	Payload   []byte
	Err       error
}

// Run executes action's provider calls for n's concrete type via the
// registered Behavior and returns the resulting state transition, payload,
// and error as data. Run never calls SetState or SetPayload itself — it
// only reads n (ID, Type, DataCentre) and the store. The caller (the
// dispatcher's drainResults, pkg/executor) is the sole writer of a node's
// cached state and payload, so the worker goroutine Run executes on and the
// dispatcher goroutine reading other nodes concurrently never touch the
// same memory. Run assumes the caller has already transitioned n to the
// in-flight state (PROVISIONING or DELETING) and persisted it before
// submitting to the worker pool — this is the dispatcher's job, done
// synchronously before handoff so a node can never be scheduled twice while
// its goroutine is still queued.
func Run(ctx context.Context, store storage.Store, n *Node, action types.Action, prov provider.Provider) Result {
	behavior, ok := Lookup(n.Type)
	if !ok {
		return Result{Node: n, Err: atlaserr.NewConfigurationError("unknown type tag: " + string(n.Type))}
	}

	var terminal types.State
	switch action {
	case types.ActionProvision:
		terminal = types.StateProvisioned
	case types.ActionDelete:
		terminal = types.StateDeleted
	default:
		return Result{Node: n, Err: atlaserr.NewInvariantViolation("invalid action: " + string(action))}
	}

	var (
		payload []byte
		err     error
	)
	switch action {
	case types.ActionProvision:
		payload, err = behavior.Provision(ctx, store, n, prov)
	case types.ActionDelete:
		payload, err = behavior.Delete(ctx, store, n, prov)
	}

	if err != nil {
		return Result{Node: n, NextState: types.StateFailed, Err: atlaserr.NewTaskExecutionError(n.ID, string(n.Type), err)}
	}

	return Result{Node: n, NextState: terminal, Payload: payload}
}

// Apply performs the state and payload writes a Result calls for. It is
// meant to be called from the dispatcher goroutine only, once per drained
// Result, never concurrently for the same node.
func Apply(store storage.Store, r Result) error {
	if r.NextState == "" {
		return nil
	}
	if r.Payload != nil {
		if err := SetPayload(store, r.Node, r.Payload); err != nil {
			return err
		}
	}
	return SetState(store, r.Node, r.NextState)
}
