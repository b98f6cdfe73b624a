package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/DrSkyle/cloudledger/pkg/engine"
	"github.com/DrSkyle/cloudledger/pkg/resource"
)

// Provider opens per-scope clients, assuming the configured role in each
// target account.
type Provider struct {
	RoleName string
}

var _ engine.Provider = (*Provider)(nil)

func NewProvider(roleName string) *Provider {
	return &Provider{RoleName: roleName}
}

func (p *Provider) Connect(ctx context.Context, scope engine.Scope) (engine.ScopeClient, error) {
	cfg, accountID, err := NewConfig(ctx, scope.Region, scope.AccountID, p.RoleName)
	if err != nil {
		return nil, err
	}
	return newClient(cfg, accountID, scope.Region), nil
}

// Client holds the per-scope service clients.
type Client struct {
	accountID string
	region    string

	ec2   *ec2.Client
	rds   *rds.Client
	s3    *s3.Client
	fn    *lambda.Client
	elb   *elasticloadbalancingv2.Client
	ddb   *dynamodb.Client
	trail *cloudtrail.Client
}

func newClient(cfg aws.Config, accountID, region string) *Client {
	return &Client{
		accountID: accountID,
		region:    region,
		ec2:       ec2.NewFromConfig(cfg),
		rds:       rds.NewFromConfig(cfg),
		s3:        s3.NewFromConfig(cfg),
		fn:        lambda.NewFromConfig(cfg),
		elb:       elasticloadbalancingv2.NewFromConfig(cfg),
		ddb:       dynamodb.NewFromConfig(cfg),
		trail:     cloudtrail.NewFromConfig(cfg),
	}
}

// Collect dispatches to the per-type collector.
func (c *Client) Collect(ctx context.Context, t resource.Type) ([]resource.Record, error) {
	switch t {
	case resource.TypeEC2Instance:
		return c.collectInstances(ctx)
	case resource.TypeSecurityGroup:
		return c.collectSecurityGroups(ctx)
	case resource.TypeEBSVolume:
		return c.collectVolumes(ctx)
	case resource.TypeRDSInstance:
		return c.collectDBInstances(ctx)
	case resource.TypeS3Bucket:
		return c.collectBuckets(ctx)
	case resource.TypeLambda:
		return c.collectFunctions(ctx)
	case resource.TypeLoadBalancer:
		return c.collectLoadBalancers(ctx)
	case resource.TypeDynamoTable:
		return c.collectTables(ctx)
	}
	return nil, fmt.Errorf("no collector for resource type %q", t)
}
