package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/atlas/pkg/provider"
	"github.com/cuemby/atlas/pkg/storage"
	"github.com/cuemby/atlas/pkg/types"
)

// vpcBehavior creates the data centre's VPC on a fixed CIDR, tags it, and
// waits for it to become available.
type vpcBehavior struct{}

func (vpcBehavior) Provision(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	vpcID, err := prov.CreateVPC(ctx, provider.VPCCIDR)
	if err != nil {
		return nil, fmt.Errorf("create vpc: %w", err)
	}
	if err := prov.Tag(ctx, vpcID, map[string]string{"atlas:node": n.ID}); err != nil {
		return nil, fmt.Errorf("tag vpc: %w", err)
	}
	if err := prov.WaitVPCAvailable(ctx, vpcID); err != nil {
		return nil, fmt.Errorf("wait vpc available: %w", err)
	}
	return json.Marshal(types.VPCPayload{VPCID: vpcID})
}

func (vpcBehavior) Delete(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	return nil, nil
}

// internetGatewayBehavior creates a gateway, tags it, and attaches it to the
// parent VPC.
type internetGatewayBehavior struct{}

func (internetGatewayBehavior) Provision(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	vpc, err := parentVPC(store, n)
	if err != nil {
		return nil, err
	}
	gatewayID, err := prov.CreateInternetGateway(ctx)
	if err != nil {
		return nil, fmt.Errorf("create internet gateway: %w", err)
	}
	if err := prov.Tag(ctx, gatewayID, map[string]string{"atlas:node": n.ID}); err != nil {
		return nil, fmt.Errorf("tag internet gateway: %w", err)
	}
	if err := prov.AttachInternetGateway(ctx, vpc.VPCID, gatewayID); err != nil {
		return nil, fmt.Errorf("attach internet gateway: %w", err)
	}
	return json.Marshal(types.InternetGatewayPayload{VPCID: vpc.VPCID, GatewayID: gatewayID})
}

func (internetGatewayBehavior) Delete(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	return nil, nil
}

// routeTableBehavior creates a route table on the VPC and adds the default
// route to the internet gateway.
type routeTableBehavior struct{}

func (routeTableBehavior) Provision(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	gw, err := parentInternetGateway(store, n)
	if err != nil {
		return nil, err
	}
	routeTableID, err := prov.CreateRouteTable(ctx, gw.VPCID)
	if err != nil {
		return nil, fmt.Errorf("create route table: %w", err)
	}
	if err := prov.CreateRoute(ctx, routeTableID, provider.DefaultRouteCIDR, gw.GatewayID); err != nil {
		return nil, fmt.Errorf("create route: %w", err)
	}
	return json.Marshal(types.RouteTablePayload{
		VPCID:        gw.VPCID,
		GatewayID:    gw.GatewayID,
		RouteTableID: routeTableID,
	})
}

func (routeTableBehavior) Delete(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	return nil, nil
}

// subNetsBehavior creates the instance subnet and associates it with the
// parent route table.
type subNetsBehavior struct{}

func (subNetsBehavior) Provision(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	rt, err := parentRouteTable(store, n)
	if err != nil {
		return nil, err
	}
	subnetID, err := prov.CreateSubnet(ctx, rt.VPCID, provider.SubnetCIDR)
	if err != nil {
		return nil, fmt.Errorf("create subnet: %w", err)
	}
	if err := prov.AssociateRouteTable(ctx, rt.RouteTableID, subnetID); err != nil {
		return nil, fmt.Errorf("associate route table: %w", err)
	}
	return json.Marshal(types.SubNetPayload{
		VPCID:        rt.VPCID,
		GatewayID:    rt.GatewayID,
		RouteTableID: rt.RouteTableID,
		SubnetID:     subnetID,
	})
}

func (subNetsBehavior) Delete(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	return nil, nil
}

// securityGroupsBehavior creates a security group on the parent VPC and
// authorises ICMP ingress from anywhere.
type securityGroupsBehavior struct{}

func (securityGroupsBehavior) Provision(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	vpc, err := parentVPC(store, n)
	if err != nil {
		return nil, err
	}
	groupID, err := prov.CreateSecurityGroup(ctx, vpc.VPCID, "atlas-"+n.ID, "atlas-managed security group")
	if err != nil {
		return nil, fmt.Errorf("create security group: %w", err)
	}
	if err := prov.AuthorizeIngress(ctx, groupID, provider.ICMPProtocol, provider.DefaultRouteCIDR); err != nil {
		return nil, fmt.Errorf("authorize ingress: %w", err)
	}
	return json.Marshal(types.SecurityGroupPayload{SecurityGroupID: groupID})
}

func (securityGroupsBehavior) Delete(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	return nil, nil
}

// createInstanceBehavior launches one instance into the parent subnet and
// security group, waiting until it is running.
type createInstanceBehavior struct{}

func (createInstanceBehavior) Provision(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	subnet, err := parentSubnet(store, n)
	if err != nil {
		return nil, err
	}
	sg, err := parentSecurityGroup(store, n)
	if err != nil {
		return nil, err
	}
	instanceID, err := prov.CreateInstance(ctx, subnet.SubnetID, sg.SecurityGroupID)
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	if err := prov.WaitInstanceRunning(ctx, instanceID); err != nil {
		return nil, fmt.Errorf("wait instance running: %w", err)
	}
	return json.Marshal(types.InstancePayload{InstanceID: instanceID})
}

func (createInstanceBehavior) Delete(ctx context.Context, store storage.Store, n *Node, prov provider.Provider) ([]byte, error) {
	return nil, nil
}

// The parentX helpers below fetch exactly one typed parent payload,
// unmarshalling at the task boundary per the typed-payload re-architecture.
// A missing or multiply-ambiguous parent, or a parent whose payload is not
// yet written, is returned as a plain error, not a ConfigurationError: Run
// wraps it as a TaskExecutionError, so the task is marked FAILED and the
// executor retries it like any provider failure. The builder's canonical
// topology gives each of these tasks exactly one parent of the expected
// type.

func parentVPC(store storage.Store, n *Node) (types.VPCPayload, error) {
	var out types.VPCPayload
	rows, err := Parents(store, n, types.TaskVPC)
	if err != nil {
		return out, err
	}
	if len(rows) != 1 {
		return out, fmt.Errorf("expected exactly one VPC parent, found %d", len(rows))
	}
	err = json.Unmarshal(rows[0].Payload, &out)
	return out, err
}

func parentInternetGateway(store storage.Store, n *Node) (types.InternetGatewayPayload, error) {
	var out types.InternetGatewayPayload
	rows, err := Parents(store, n, types.TaskInternetGateway)
	if err != nil {
		return out, err
	}
	if len(rows) != 1 {
		return out, fmt.Errorf("expected exactly one InternetGateway parent, found %d", len(rows))
	}
	err = json.Unmarshal(rows[0].Payload, &out)
	return out, err
}

func parentRouteTable(store storage.Store, n *Node) (types.RouteTablePayload, error) {
	var out types.RouteTablePayload
	rows, err := Parents(store, n, types.TaskRouteTable)
	if err != nil {
		return out, err
	}
	if len(rows) != 1 {
		return out, fmt.Errorf("expected exactly one RouteTable parent, found %d", len(rows))
	}
	err = json.Unmarshal(rows[0].Payload, &out)
	return out, err
}

// parentSubnet and parentSecurityGroup look up their source node by type
// within the owning data centre rather than by direct edge: the canonical
// topology never wires SubNets or SecurityGroups as a graph predecessor of
// CreateInstance (CreateInstance's only predecessor is CreateEBS), yet
// CreateInstance still needs their provider ids. Both are DC-scoped
// singletons, so a (data_centre, type) lookup is unambiguous.

func parentSubnet(store storage.Store, n *Node) (types.SubNetPayload, error) {
	var out types.SubNetPayload
	rows, err := store.NodesByType(n.DataCentre, types.TaskSubNets)
	if err != nil {
		return out, fmt.Errorf("lookup subnet in data centre: %w", err)
	}
	if len(rows) != 1 {
		return out, fmt.Errorf("expected exactly one SubNets node in data centre %s, found %d", n.DataCentre, len(rows))
	}
	err = json.Unmarshal(rows[0].Payload, &out)
	return out, err
}

func parentSecurityGroup(store storage.Store, n *Node) (types.SecurityGroupPayload, error) {
	var out types.SecurityGroupPayload
	rows, err := store.NodesByType(n.DataCentre, types.TaskSecurityGroups)
	if err != nil {
		return out, fmt.Errorf("lookup security group in data centre: %w", err)
	}
	if len(rows) != 1 {
		return out, fmt.Errorf("expected exactly one SecurityGroups node in data centre %s, found %d", n.DataCentre, len(rows))
	}
	err = json.Unmarshal(rows[0].Payload, &out)
	return out, err
}
