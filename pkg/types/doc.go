/*
Package types defines the core data structures shared across Atlas.

This package has no dependencies on any other Atlas package: other
packages import types, never the reverse.

# Core Types

Cluster topology:
  - Cluster: the top-level provisioning unit a user names and creates
  - DataCentre: one logical region/AZ group within a Cluster

Task graph:
  - TaskType: the closed set of 14 resource kinds the graph can contain
    (Cluster, DataCentre, Role, VPC, SecurityGroups, BindSecurityGroup,
    InternetGateway, RouteTable, SubNets, FirewallRules, CreateEBS,
    AttachEBS, CreateInstance, BindIP)
  - State: the 7-state lifecycle a task row moves through
    (PENDING_PROVISION, PROVISIONING, PROVISIONED, PENDING_DELETION,
    DELETING, DELETED, FAILED)
  - Node: one persisted task row — its type, owning cluster/data centre,
    current state, and opaque JSON payload
  - Edge: a directed dependency between two Nodes' IDs
  - Action / Phase: which half of the lifecycle (PROVISION or DELETE) an
    operation is currently driving

Payloads:

Each provider-effectful task type has its own typed payload struct
(VPCPayload, InternetGatewayPayload, RouteTablePayload, SubNetPayload,
SecurityGroupPayload, InstancePayload). A Node stores its payload as
json.RawMessage; behaviors in pkg/task unmarshal into the concrete type
they expect.

# Design Patterns

Enumeration pattern: every enum (TaskType, State, Action, Phase) is a
typed string constant, never an int, so persisted rows remain readable
and stable across versions.

Self-describing IDs: Cluster, DataCentre, Node, and Edge all carry their
own string ID, generated once when the row is inserted into the store and
never reused.
*/
package types
