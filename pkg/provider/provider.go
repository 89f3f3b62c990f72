// Package provider defines the cloud-provider capability set tasks issue
// their create/attach/tag operations against, plus a real AWS-backed
// implementation and a deterministic fake for tests.
package provider

import "context"

// Provider is the capability set consumed by pkg/task's provider-effectful
// behaviors. Every method is assumed synchronous and may return a provider
// error, which the caller wraps as a TaskExecutionError.
type Provider interface {
	CreateVPC(ctx context.Context, cidr string) (vpcID string, err error)
	WaitVPCAvailable(ctx context.Context, vpcID string) error
	CreateInternetGateway(ctx context.Context) (gatewayID string, err error)
	AttachInternetGateway(ctx context.Context, vpcID, gatewayID string) error
	CreateRouteTable(ctx context.Context, vpcID string) (routeTableID string, err error)
	CreateRoute(ctx context.Context, routeTableID, destinationCIDR, gatewayID string) error
	CreateSubnet(ctx context.Context, vpcID, cidr string) (subnetID string, err error)
	AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) error
	CreateSecurityGroup(ctx context.Context, vpcID, name, description string) (groupID string, err error)
	AuthorizeIngress(ctx context.Context, groupID, protocol, cidr string) error
	CreateInstance(ctx context.Context, subnetID, securityGroupID string) (instanceID string, err error)
	WaitInstanceRunning(ctx context.Context, instanceID string) error
	Tag(ctx context.Context, resourceID string, tags map[string]string) error
}

// Canonical CIDR blocks the builder's VPC/SubNets tasks provision with.
const (
	VPCCIDR    = "192.168.0.0/16"
	SubnetCIDR = "192.168.1.0/24"

	// DefaultRouteCIDR is the destination of the default route a RouteTable
	// task adds pointing at its InternetGateway.
	DefaultRouteCIDR = "0.0.0.0/0"

	// ICMPProtocol is the ingress protocol a SecurityGroups task authorises.
	ICMPProtocol = "icmp"
)
