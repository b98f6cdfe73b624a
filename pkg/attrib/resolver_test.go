package attrib

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/trail"
)

type fakeEvents struct {
	events []trail.ActivityEvent
	err    error
}

func (f *fakeEvents) EventsForResource(ctx context.Context, t resource.Type, resourceID string, from, to time.Time) ([]trail.ActivityEvent, error) {
	return f.events, f.err
}

func ec2Spec(t *testing.T) resource.Spec {
	t.Helper()
	spec, ok := resource.SpecFor(resource.TypeEC2Instance)
	if !ok {
		t.Fatal("missing ec2_instance spec")
	}
	return spec
}

func TestResolve_MappedActionBeatsProximity(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// 1. A mapped StopInstances 10 minutes out and an unmapped CreateTags
	// only 2 minutes out.
	src := &fakeEvents{events: []trail.ActivityEvent{
		{ID: "ev-far", Action: "StopInstances", Actor: "alice", Time: at.Add(-10 * time.Minute)},
		{ID: "ev-near", Action: "CreateTags", Actor: "bob", Time: at.Add(-2 * time.Minute)},
	}}

	actor, err := NewResolver(src).Resolve(context.Background(), ec2Spec(t), "i-1", "state", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor != "alice" {
		t.Errorf("actor = %s, want alice", actor)
	}
}

func TestResolve_NearestAmongMapped(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	src := &fakeEvents{events: []trail.ActivityEvent{
		{ID: "ev-a", Action: "StopInstances", Actor: "alice", Time: at.Add(-3 * time.Hour)},
		{ID: "ev-b", Action: "StartInstances", Actor: "bob", Time: at.Add(5 * time.Minute)},
	}}

	actor, err := NewResolver(src).Resolve(context.Background(), ec2Spec(t), "i-1", "state", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor != "bob" {
		t.Errorf("actor = %s, want bob", actor)
	}
}

func TestResolve_UnmappedFieldFallsBackToAnyEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// "private_ip" has no action mapping, so any event on the resource is a
	// candidate.
	src := &fakeEvents{events: []trail.ActivityEvent{
		{ID: "ev-1", Action: "ModifyInstanceAttribute", Actor: "carol", Time: at.Add(-time.Minute)},
	}}

	actor, err := NewResolver(src).Resolve(context.Background(), ec2Spec(t), "i-1", "private_ip", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor != "carol" {
		t.Errorf("actor = %s, want carol", actor)
	}
}

func TestResolve_OutsideWindowIsUnknown(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	src := &fakeEvents{events: []trail.ActivityEvent{
		{ID: "ev-old", Action: "StopInstances", Actor: "alice", Time: at.Add(-25 * time.Hour)},
	}}

	actor, err := NewResolver(src).Resolve(context.Background(), ec2Spec(t), "i-1", "state", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor != ActorUnknown {
		t.Errorf("actor = %s, want %s", actor, ActorUnknown)
	}
}

func TestResolve_TieBreaksOnEventID(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	src := &fakeEvents{events: []trail.ActivityEvent{
		{ID: "ev-b", Action: "StopInstances", Actor: "bob", Time: at.Add(-5 * time.Minute)},
		{ID: "ev-a", Action: "StartInstances", Actor: "alice", Time: at.Add(5 * time.Minute)},
	}}

	actor, err := NewResolver(src).Resolve(context.Background(), ec2Spec(t), "i-1", "state", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor != "alice" {
		t.Errorf("actor = %s, want alice (smaller event id on equal distance)", actor)
	}
}

func TestResolve_LookupErrorSurfaces(t *testing.T) {
	src := &fakeEvents{err: errors.New("connection refused")}

	actor, err := NewResolver(src).Resolve(context.Background(), ec2Spec(t), "i-1", "state", time.Now())
	if err == nil {
		t.Fatal("expected error from failed lookup")
	}
	if actor != ActorUnknown {
		t.Errorf("actor = %s, want %s on error", actor, ActorUnknown)
	}
}

func TestResolve_CustomWindow(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	src := &fakeEvents{events: []trail.ActivityEvent{
		{ID: "ev-1", Action: "StopInstances", Actor: "alice", Time: at.Add(-2 * time.Hour)},
	}}

	actor, err := NewResolver(src).WithWindow(time.Hour).Resolve(context.Background(), ec2Spec(t), "i-1", "state", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor != ActorUnknown {
		t.Errorf("actor = %s, want %s outside the tightened window", actor, ActorUnknown)
	}
}
