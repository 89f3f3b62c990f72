package provider

import (
	"context"
	"fmt"
	"sync"
)

// FakeProvider is a deterministic, in-memory Provider for tests. It
// generates sequential ids per resource kind and supports injecting a
// failure for the Nth call to a named operation, so tests can exercise the
// FAILED -> retry -> success cycle the executor's retry policy guarantees.
type FakeProvider struct {
	mu sync.Mutex

	counters map[string]int

	// FailOn maps an operation name to the 1-indexed call number that
	// should fail. A failure is consumed once a matching call happens;
	// subsequent calls to the same operation succeed.
	FailOn map[string]int
}

var _ Provider = (*FakeProvider)(nil)

// NewFakeProvider returns a FakeProvider with no injected failures.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		counters: make(map[string]int),
		FailOn:   make(map[string]int),
	}
}

func (p *FakeProvider) nextID(kind string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[kind]++
	return fmt.Sprintf("%s-%d", kind, p.counters[kind])
}

// maybeFail increments op's call count and returns an error if this call
// number matches an injected failure for op, consuming it.
func (p *FakeProvider) maybeFail(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters["op:"+op]++
	n := p.counters["op:"+op]
	if failAt, ok := p.FailOn[op]; ok && failAt == n {
		delete(p.FailOn, op)
		return fmt.Errorf("fake provider: injected failure for %s (call %d)", op, n)
	}
	return nil
}

func (p *FakeProvider) CreateVPC(ctx context.Context, cidr string) (string, error) {
	if err := p.maybeFail("CreateVPC"); err != nil {
		return "", err
	}
	return p.nextID("vpc"), nil
}

func (p *FakeProvider) WaitVPCAvailable(ctx context.Context, vpcID string) error {
	return p.maybeFail("WaitVPCAvailable")
}

func (p *FakeProvider) CreateInternetGateway(ctx context.Context) (string, error) {
	if err := p.maybeFail("CreateInternetGateway"); err != nil {
		return "", err
	}
	return p.nextID("igw"), nil
}

func (p *FakeProvider) AttachInternetGateway(ctx context.Context, vpcID, gatewayID string) error {
	return p.maybeFail("AttachInternetGateway")
}

func (p *FakeProvider) CreateRouteTable(ctx context.Context, vpcID string) (string, error) {
	if err := p.maybeFail("CreateRouteTable"); err != nil {
		return "", err
	}
	return p.nextID("rtb"), nil
}

func (p *FakeProvider) CreateRoute(ctx context.Context, routeTableID, destinationCIDR, gatewayID string) error {
	return p.maybeFail("CreateRoute")
}

func (p *FakeProvider) CreateSubnet(ctx context.Context, vpcID, cidr string) (string, error) {
	if err := p.maybeFail("CreateSubnet"); err != nil {
		return "", err
	}
	return p.nextID("subnet"), nil
}

func (p *FakeProvider) AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) error {
	return p.maybeFail("AssociateRouteTable")
}

func (p *FakeProvider) CreateSecurityGroup(ctx context.Context, vpcID, name, description string) (string, error) {
	if err := p.maybeFail("CreateSecurityGroup"); err != nil {
		return "", err
	}
	return p.nextID("sg"), nil
}

func (p *FakeProvider) AuthorizeIngress(ctx context.Context, groupID, protocol, cidr string) error {
	return p.maybeFail("AuthorizeIngress")
}

func (p *FakeProvider) CreateInstance(ctx context.Context, subnetID, securityGroupID string) (string, error) {
	if err := p.maybeFail("CreateInstance"); err != nil {
		return "", err
	}
	return p.nextID("instance"), nil
}

func (p *FakeProvider) WaitInstanceRunning(ctx context.Context, instanceID string) error {
	return p.maybeFail("WaitInstanceRunning")
}

func (p *FakeProvider) Tag(ctx context.Context, resourceID string, tags map[string]string) error {
	return p.maybeFail("Tag")
}
