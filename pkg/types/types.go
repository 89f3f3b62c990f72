// Package types holds the data model shared across Atlas: clusters, data
// centres, persisted task rows, edges, and the closed enums describing
// their lifecycle. It is deliberately free of behaviour — persistence
// lives in pkg/storage, state-machine and provisioning behaviour in
// pkg/task.
package types

import (
	"encoding/json"
	"time"
)

// Cluster is the top-level provisioning unit. Created once, never mutated,
// deleted only after all of its nodes are deleted.
type Cluster struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DataCentre is a partition within a cluster; each one owns its own VPC and
// instance set.
type DataCentre struct {
	ID        string    `json:"id"`
	Cluster   string    `json:"cluster"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskType is the closed set of concrete node kinds the builder and
// dispatcher know about. The zero value is never valid.
type TaskType string

const (
	TaskCluster           TaskType = "Cluster"
	TaskDataCentre        TaskType = "DataCentre"
	TaskRole              TaskType = "Role"
	TaskVPC               TaskType = "VPC"
	TaskSecurityGroups    TaskType = "SecurityGroups"
	TaskBindSecurityGroup TaskType = "BindSecurityGroup"
	TaskInternetGateway   TaskType = "InternetGateway"
	TaskRouteTable        TaskType = "RouteTable"
	TaskSubNets           TaskType = "SubNets"
	TaskFirewallRules     TaskType = "FirewallRules"
	TaskCreateEBS         TaskType = "CreateEBS"
	TaskAttachEBS         TaskType = "AttachEBS"
	TaskCreateInstance    TaskType = "CreateInstance"
	TaskBindIP            TaskType = "BindIP"
)

// AllTaskTypes is the closed set, builder/registry order. Load detects an
// unknown type tag through pkg/task's registry (task.Lookup), not this list.
var AllTaskTypes = []TaskType{
	TaskCluster, TaskDataCentre, TaskRole, TaskVPC, TaskSecurityGroups,
	TaskBindSecurityGroup, TaskInternetGateway, TaskRouteTable, TaskSubNets,
	TaskFirewallRules, TaskCreateEBS, TaskAttachEBS, TaskCreateInstance,
	TaskBindIP,
}

// State is one of the seven states in the task lifecycle.
type State string

const (
	StatePendingProvision State = "PENDING_PROVISION"
	StateProvisioning     State = "PROVISIONING"
	StateProvisioned      State = "PROVISIONED"
	StatePendingDeletion  State = "PENDING_DELETION"
	StateDeleting         State = "DELETING"
	StateDeleted          State = "DELETED"
	StateFailed           State = "FAILED"
)

// Action selects which half of the state machine Run exercises.
type Action string

const (
	ActionProvision Action = "PROVISION"
	ActionDelete    Action = "DELETE"
)

// Phase selects which ready-set query and terminal state the executor uses
// for an entire run.
type Phase string

const (
	PhaseProvision Phase = "PROVISION"
	PhaseDelete    Phase = "DELETE"
)

// Node is a persisted task row: the authoritative state of one DAG node.
// The type tag in Type selects behaviour; Payload carries the
// provider-assigned identifiers downstream tasks depend on.
type Node struct {
	ID         string          `json:"id"`
	Type       TaskType        `json:"type"`
	Cluster    string          `json:"cluster"`
	DataCentre string          `json:"data_centre,omitempty"`
	State      State           `json:"state"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Edge is a directed provisioning dependency within one cluster: ToNode may
// only provision after FromNode has provisioned, and symmetrically FromNode
// may only delete after ToNode has deleted.
type Edge struct {
	ID         string `json:"id"`
	Cluster    string `json:"cluster"`
	DataCentre string `json:"data_centre,omitempty"`
	FromNode   string `json:"from_node"`
	ToNode     string `json:"to_node"`
}

// ParentPayload is one row of a parent lookup: the producing task's type,
// its current state, and its raw payload. pkg/task unmarshals Payload into
// a typed struct keyed on Type at the task boundary.
type ParentPayload struct {
	Type    TaskType
	State   State
	Payload json.RawMessage
}

// VPCPayload is emitted by a provisioned VPC task.
type VPCPayload struct {
	VPCID string `json:"vpc_id"`
}

// InternetGatewayPayload is emitted by a provisioned InternetGateway task.
type InternetGatewayPayload struct {
	VPCID     string `json:"vpc_id"`
	GatewayID string `json:"gateway_id"`
}

// RouteTablePayload is emitted by a provisioned RouteTable task.
type RouteTablePayload struct {
	VPCID        string `json:"vpc_id"`
	GatewayID    string `json:"gateway_id"`
	RouteTableID string `json:"route_table_id"`
}

// SubNetPayload is emitted by a provisioned SubNets task.
type SubNetPayload struct {
	VPCID        string `json:"vpc_id"`
	GatewayID    string `json:"gateway_id"`
	RouteTableID string `json:"route_table_id"`
	SubnetID     string `json:"subnet_id"`
}

// SecurityGroupPayload is emitted by a provisioned SecurityGroups task.
type SecurityGroupPayload struct {
	SecurityGroupID string `json:"security_group_id"`
}

// InstancePayload is emitted by a provisioned CreateInstance task.
type InstancePayload struct {
	InstanceID string `json:"instance_id"`
}
