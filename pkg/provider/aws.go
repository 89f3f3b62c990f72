package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// AWSProvider implements Provider over a real EC2 client, grounded on the
// AWSClient wrapper pattern: one struct holding the service client, one
// method per capability, using the SDK's own input/output types and
// waiters rather than hand-rolled polling.
type AWSProvider struct {
	client *ec2.Client
}

var _ Provider = (*AWSProvider)(nil)

// NewAWSProvider loads the default AWS config (environment, shared config
// file, or EC2 instance role, in that order) and returns a Provider backed
// by it.
func NewAWSProvider(ctx context.Context) (*AWSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWSProvider{client: ec2.NewFromConfig(cfg)}, nil
}

func (p *AWSProvider) CreateVPC(ctx context.Context, cidr string) (string, error) {
	out, err := p.client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String(cidr),
	})
	if err != nil {
		return "", fmt.Errorf("create vpc: %w", err)
	}
	return aws.ToString(out.Vpc.VpcId), nil
}

func (p *AWSProvider) WaitVPCAvailable(ctx context.Context, vpcID string) error {
	waiter := ec2.NewVpcAvailableWaiter(p.client)
	return waiter.Wait(ctx, &ec2.DescribeVpcsInput{
		VpcIds: []string{vpcID},
	}, waitTimeout)
}

func (p *AWSProvider) CreateInternetGateway(ctx context.Context) (string, error) {
	out, err := p.client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return "", fmt.Errorf("create internet gateway: %w", err)
	}
	return aws.ToString(out.InternetGateway.InternetGatewayId), nil
}

func (p *AWSProvider) AttachInternetGateway(ctx context.Context, vpcID, gatewayID string) error {
	_, err := p.client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		VpcId:             aws.String(vpcID),
		InternetGatewayId: aws.String(gatewayID),
	})
	if err != nil {
		return fmt.Errorf("attach internet gateway: %w", err)
	}
	return nil
}

func (p *AWSProvider) CreateRouteTable(ctx context.Context, vpcID string) (string, error) {
	out, err := p.client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId: aws.String(vpcID),
	})
	if err != nil {
		return "", fmt.Errorf("create route table: %w", err)
	}
	return aws.ToString(out.RouteTable.RouteTableId), nil
}

func (p *AWSProvider) CreateRoute(ctx context.Context, routeTableID, destinationCIDR, gatewayID string) error {
	_, err := p.client.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(routeTableID),
		DestinationCidrBlock: aws.String(destinationCIDR),
		GatewayId:            aws.String(gatewayID),
	})
	if err != nil {
		return fmt.Errorf("create route: %w", err)
	}
	return nil
}

func (p *AWSProvider) CreateSubnet(ctx context.Context, vpcID, cidr string) (string, error) {
	out, err := p.client.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:     aws.String(vpcID),
		CidrBlock: aws.String(cidr),
	})
	if err != nil {
		return "", fmt.Errorf("create subnet: %w", err)
	}
	return aws.ToString(out.Subnet.SubnetId), nil
}

func (p *AWSProvider) AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) error {
	_, err := p.client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(routeTableID),
		SubnetId:     aws.String(subnetID),
	})
	if err != nil {
		return fmt.Errorf("associate route table: %w", err)
	}
	return nil
}

func (p *AWSProvider) CreateSecurityGroup(ctx context.Context, vpcID, name, description string) (string, error) {
	out, err := p.client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		VpcId:       aws.String(vpcID),
		GroupName:   aws.String(name),
		Description: aws.String(description),
	})
	if err != nil {
		return "", fmt.Errorf("create security group: %w", err)
	}
	return aws.ToString(out.GroupId), nil
}

func (p *AWSProvider) AuthorizeIngress(ctx context.Context, groupID, protocol, cidr string) error {
	_, err := p.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(groupID),
		IpPermissions: []ec2types.IpPermission{
			{
				IpProtocol: aws.String(protocol),
				IpRanges: []ec2types.IpRange{
					{CidrIp: aws.String(cidr)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("authorize ingress: %w", err)
	}
	return nil
}

func (p *AWSProvider) CreateInstance(ctx context.Context, subnetID, securityGroupID string) (string, error) {
	out, err := p.client.RunInstances(ctx, &ec2.RunInstancesInput{
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SubnetId:         aws.String(subnetID),
		SecurityGroupIds: []string{securityGroupID},
	})
	if err != nil {
		return "", fmt.Errorf("run instances: %w", err)
	}
	if len(out.Instances) == 0 {
		return "", fmt.Errorf("run instances: empty reservation")
	}
	return aws.ToString(out.Instances[0].InstanceId), nil
}

func (p *AWSProvider) WaitInstanceRunning(ctx context.Context, instanceID string) error {
	waiter := ec2.NewInstanceRunningWaiter(p.client)
	return waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	}, waitTimeout)
}

func (p *AWSProvider) Tag(ctx context.Context, resourceID string, tags map[string]string) error {
	ec2Tags := make([]ec2types.Tag, 0, len(tags))
	for k, v := range tags {
		ec2Tags = append(ec2Tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	_, err := p.client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{resourceID},
		Tags:      ec2Tags,
	})
	if err != nil {
		return fmt.Errorf("create tags: %w", err)
	}
	return nil
}
