package engine

import (
	"context"
	"testing"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/config"
	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/storage"
	"github.com/DrSkyle/cloudledger/pkg/trail"
)

type staticProvider struct {
	records map[resource.Type][]resource.Record
	events  []trail.RawEvent
}

func (p *staticProvider) Connect(ctx context.Context, scope Scope) (ScopeClient, error) {
	return p, nil
}

func (p *staticProvider) Collect(ctx context.Context, t resource.Type) ([]resource.Record, error) {
	return p.records[t], nil
}

func (p *staticProvider) FetchEvents(ctx context.Context, since time.Time) ([]trail.RawEvent, error) {
	return p.events, nil
}

func instance(key, state string) resource.Record {
	return resource.Record{
		Type:       resource.TypeEC2Instance,
		AccountID:  "111111111111",
		Region:     "us-east-1",
		NaturalKey: key,
		Fields:     map[string]resource.Value{"state": resource.String(state)},
		ObservedAt: time.Now(),
	}
}

func TestEngine_FullRun(t *testing.T) {
	// 1. Setup: a store, a provider with one instance and one stop event.
	store := storage.NewMemory()
	provider := &staticProvider{
		records: map[resource.Type][]resource.Record{
			resource.TypeEC2Instance: {instance("i-1", "running")},
		},
		events: []trail.RawEvent{{
			EventID:          "ev-stop",
			EventName:        "StopInstances",
			EventSource:      "ec2.amazonaws.com",
			EventTime:        time.Now().Add(-3 * time.Minute),
			RecipientAccount: "111111111111",
			AwsRegion:        "us-east-1",
			UserIdentity:     map[string]any{"userName": "alice"},
			RequestParameters: map[string]any{
				"instancesSet": map[string]any{
					"items": []any{map[string]any{"instanceId": "i-1"}},
				},
			},
		}},
	}

	cfg := config.Config{Types: "ec2_instance", SkipTelemetry: true}
	eng, err := New(context.Background(), store, provider, WithConfig(cfg))
	if err != nil {
		t.Fatalf("engine init: %v", err)
	}

	// 2. First run inserts the instance and ingests the event.
	report, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if report.EventsIngested != 1 {
		t.Errorf("events ingested = %d, want 1", report.EventsIngested)
	}
	if res := report.PerType[resource.TypeEC2Instance]; res.Inserted != 1 || res.Changes != 0 {
		t.Errorf("first run counters: %+v", res)
	}

	// 3. Second run observes the stop; the change is attributed to alice.
	provider.records[resource.TypeEC2Instance] = []resource.Record{instance("i-1", "stopped")}

	report, err = eng.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res := report.PerType[resource.TypeEC2Instance]; res.Updated != 1 || res.Changes != 1 {
		t.Errorf("second run counters: %+v", res)
	}
	if report.EventsIngested != 0 {
		t.Errorf("re-ingested %d events, want 0 (idempotent by id)", report.EventsIngested)
	}

	history := store.AllHistory()
	if len(history) != 1 {
		t.Fatalf("history rows = %d, want 1", len(history))
	}
	if history[0].ChangedBy != "alice" || history[0].NewValue != "stopped" {
		t.Errorf("unexpected history entry: %+v", history[0])
	}
}

func TestEngine_FailedScopeIsReported(t *testing.T) {
	store := storage.NewMemory()
	provider := &failingProvider{}

	cfg := config.Config{Types: "ec2_instance", SkipTelemetry: true}
	eng, err := New(context.Background(), store, provider, WithConfig(cfg))
	if err != nil {
		t.Fatalf("engine init: %v", err)
	}

	report, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run errored without strict mode: %v", err)
	}
	if len(report.FailedScopes) != 1 {
		t.Errorf("failed scopes = %v, want one entry", report.FailedScopes)
	}
	if !report.Partial() {
		t.Error("report not marked partial")
	}
}

func TestEngine_StrictModeFailsPartialRuns(t *testing.T) {
	store := storage.NewMemory()
	provider := &failingProvider{}

	cfg := config.Config{Types: "ec2_instance", SkipTelemetry: true, StrictMode: true}
	eng, err := New(context.Background(), store, provider, WithConfig(cfg))
	if err != nil {
		t.Fatalf("engine init: %v", err)
	}

	_, err = eng.Run(context.Background())
	if err != ErrPartialRun {
		t.Errorf("strict run error = %v, want ErrPartialRun", err)
	}
}

func TestEngine_PartialScopeKeepsHealthyCollectors(t *testing.T) {
	// 1. Setup: one scope where security groups fail but EC2 succeeds.
	store := storage.NewMemory()
	provider := &flakyProvider{
		records: map[resource.Type][]resource.Record{
			resource.TypeEC2Instance: {instance("i-1", "running")},
		},
		failType: resource.TypeSecurityGroup,
	}

	cfg := config.Config{Types: "ec2_instance,security_group", SkipTelemetry: true}
	eng, err := New(context.Background(), store, provider, WithConfig(cfg))
	if err != nil {
		t.Fatalf("engine init: %v", err)
	}

	// 2. The scope is reported failed, but the healthy collector's records
	// still reconcile.
	report, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run errored without strict mode: %v", err)
	}
	if len(report.FailedScopes) != 1 {
		t.Errorf("failed scopes = %v, want one entry", report.FailedScopes)
	}
	if res := report.PerType[resource.TypeEC2Instance]; res.Processed != 1 || res.Inserted != 1 {
		t.Errorf("healthy collector's records dropped: %+v", res)
	}
}

type failingProvider struct{}

func (p *failingProvider) Connect(ctx context.Context, scope Scope) (ScopeClient, error) {
	return nil, context.DeadlineExceeded
}

// flakyProvider serves records for every type except failType, which errors.
type flakyProvider struct {
	records  map[resource.Type][]resource.Record
	failType resource.Type
}

func (p *flakyProvider) Connect(ctx context.Context, scope Scope) (ScopeClient, error) {
	return p, nil
}

func (p *flakyProvider) Collect(ctx context.Context, t resource.Type) ([]resource.Record, error) {
	if t == p.failType {
		return nil, context.DeadlineExceeded
	}
	return p.records[t], nil
}

func (p *flakyProvider) FetchEvents(ctx context.Context, since time.Time) ([]trail.RawEvent, error) {
	return nil, nil
}
