// Package mock provides a synthetic provider exercising the full pipeline
// without cloud credentials. Used by --mock and by engine tests.
package mock

import (
	"context"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/engine"
	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/trail"
)

const mockAccount = "123456789012"

// Provider hands out the same synthetic client for every scope.
type Provider struct {
	// Records overrides the synthetic snapshot when set.
	Records map[resource.Type][]resource.Record
	// Events overrides the synthetic audit records when set.
	Events []trail.RawEvent
}

var _ engine.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Connect(ctx context.Context, scope engine.Scope) (engine.ScopeClient, error) {
	return &client{provider: p, scope: scope}, nil
}

type client struct {
	provider *Provider
	scope    engine.Scope
}

func (c *client) Collect(ctx context.Context, t resource.Type) ([]resource.Record, error) {
	if c.provider.Records != nil {
		return c.provider.Records[t], nil
	}
	if t != resource.TypeEC2Instance {
		return nil, nil
	}

	// 1. Running instance with a couple of security groups.
	return []resource.Record{
		{
			Type:       resource.TypeEC2Instance,
			AccountID:  mockAccount,
			Region:     c.scope.Region,
			NaturalKey: "i-0mock1234567890",
			Fields: map[string]resource.Value{
				"state":              resource.String("running"),
				"instance_type":      resource.String("t3.medium"),
				"security_group_ids": resource.Set([]string{"sg-0mock1", "sg-0mock2"}),
				"tags":               resource.Map(map[string]string{"env": "demo"}),
				"launch_time":        resource.Time(time.Now().Add(-30 * 24 * time.Hour)),
			},
			ObservedAt: time.Now(),
		},
	}, nil
}

func (c *client) FetchEvents(ctx context.Context, since time.Time) ([]trail.RawEvent, error) {
	if c.provider.Events != nil {
		return c.provider.Events, nil
	}
	return []trail.RawEvent{
		{
			EventID:          "mock-event-1",
			EventName:        "StartInstances",
			EventSource:      "ec2.amazonaws.com",
			EventTime:        time.Now().Add(-10 * time.Minute),
			AwsRegion:        c.scope.Region,
			RecipientAccount: mockAccount,
			UserIdentity:     map[string]any{"userName": "demo-operator"},
			RequestParameters: map[string]any{
				"instancesSet": map[string]any{
					"items": []any{map[string]any{"instanceId": "i-0mock1234567890"}},
				},
			},
		},
	}, nil
}
