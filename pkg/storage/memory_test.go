package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/trail"
)

func storedInstance(account, key, state string) StoredRecord {
	return StoredRecord{
		Type:       resource.TypeEC2Instance,
		AccountID:  account,
		Region:     "us-east-1",
		NaturalKey: key,
		Fields:     map[string]string{"state": state},
	}
}

func TestMemory_ReconcileCommits(t *testing.T) {
	m := NewMemory()

	err := m.Reconcile(context.Background(), func(tx Tx) error {
		if err := tx.InsertResource(context.Background(), storedInstance("111111111111", "i-1", "running")); err != nil {
			return err
		}
		return tx.AppendChange(context.Background(), ChangeEntry{
			ResourceType: resource.TypeEC2Instance,
			ResourceID:   "i-1",
			Field:        "state",
		})
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	stored, _ := m.ResourcesByType(context.Background(), resource.TypeEC2Instance)
	if len(stored) != 1 {
		t.Errorf("stored %d records, want 1", len(stored))
	}
	if m.HistoryLen() != 1 {
		t.Errorf("history rows = %d, want 1", m.HistoryLen())
	}
}

func TestMemory_ReconcileRollsBackOnError(t *testing.T) {
	m := NewMemory()

	err := m.Reconcile(context.Background(), func(tx Tx) error {
		if err := tx.InsertResource(context.Background(), storedInstance("111111111111", "i-1", "running")); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected the batch error to surface")
	}

	// Fail-atomic: the buffered insert never applied.
	stored, _ := m.ResourcesByType(context.Background(), resource.TypeEC2Instance)
	if len(stored) != 0 {
		t.Errorf("rolled-back batch left %d records", len(stored))
	}
}

func TestMemory_UpdateMergesChangedFields(t *testing.T) {
	m := NewMemory()
	rec := storedInstance("111111111111", "i-1", "running")
	rec.Fields["instance_type"] = "t3.medium"

	_ = m.Reconcile(context.Background(), func(tx Tx) error {
		return tx.InsertResource(context.Background(), rec)
	})

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := m.Reconcile(context.Background(), func(tx Tx) error {
		return tx.UpdateResource(context.Background(), rec, map[string]string{"state": "stopped"}, at)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, _ := m.ResourcesByType(context.Background(), resource.TypeEC2Instance)
	if stored[0].Fields["state"] != "stopped" {
		t.Errorf("state = %s, want stopped", stored[0].Fields["state"])
	}
	if stored[0].Fields["instance_type"] != "t3.medium" {
		t.Error("unchanged field was lost by the merge")
	}
	if !stored[0].UpdatedAt.Equal(at) {
		t.Errorf("updated_at = %s, want %s", stored[0].UpdatedAt, at)
	}
}

func TestMemory_IngestEventsIdempotent(t *testing.T) {
	m := NewMemory()
	events := []trail.ActivityEvent{
		{ID: "ev-1", ResourceType: resource.TypeEC2Instance, ResourceID: "i-1", Time: time.Now()},
		{ID: "ev-2", ResourceType: resource.TypeEC2Instance, ResourceID: "i-1", Time: time.Now()},
	}

	n, err := m.IngestEvents(context.Background(), events)
	if err != nil || n != 2 {
		t.Fatalf("first ingest = (%d, %v), want (2, nil)", n, err)
	}

	n, err = m.IngestEvents(context.Background(), events)
	if err != nil || n != 0 {
		t.Errorf("second ingest = (%d, %v), want (0, nil)", n, err)
	}
}

func TestMemory_EventsForResourceWindow(t *testing.T) {
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, _ = m.IngestEvents(context.Background(), []trail.ActivityEvent{
		{ID: "ev-in", ResourceType: resource.TypeEC2Instance, ResourceID: "i-1", Time: base},
		{ID: "ev-out", ResourceType: resource.TypeEC2Instance, ResourceID: "i-1", Time: base.Add(-48 * time.Hour)},
		{ID: "ev-other", ResourceType: resource.TypeEC2Instance, ResourceID: "i-2", Time: base},
	})

	got, err := m.EventsForResource(context.Background(), resource.TypeEC2Instance, "i-1",
		base.Add(-24*time.Hour), base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ev-in" {
		t.Errorf("events = %+v, want only ev-in", got)
	}
}

func TestMemory_PruneEvents(t *testing.T) {
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, _ = m.IngestEvents(context.Background(), []trail.ActivityEvent{
		{ID: "ev-old", ResourceType: resource.TypeEC2Instance, ResourceID: "i-1", Time: base.Add(-10 * 24 * time.Hour)},
		{ID: "ev-new", ResourceType: resource.TypeEC2Instance, ResourceID: "i-1", Time: base},
	})

	n, err := m.PruneEvents(context.Background(), base.Add(-7*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("prune = (%d, %v), want (1, nil)", n, err)
	}

	got, _ := m.EventsForResource(context.Background(), resource.TypeEC2Instance, "i-1",
		base.Add(-30*24*time.Hour), base.Add(time.Hour))
	if len(got) != 1 || got[0].ID != "ev-new" {
		t.Errorf("events after prune = %+v", got)
	}
}

func TestMemory_HistoryNewestFirst(t *testing.T) {
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = m.Reconcile(context.Background(), func(tx Tx) error {
		for i, field := range []string{"state", "instance_type", "tags"} {
			err := tx.AppendChange(context.Background(), ChangeEntry{
				ResourceType: resource.TypeEC2Instance,
				ResourceID:   "i-1",
				Field:        field,
				ChangedAt:    base.Add(time.Duration(i) * time.Minute),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	got, err := m.History(context.Background(), resource.TypeEC2Instance, "i-1", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("history rows = %d, want 2 (limit)", len(got))
	}
	if got[0].Field != "tags" || got[1].Field != "instance_type" {
		t.Errorf("history order = %s, %s; want newest first", got[0].Field, got[1].Field)
	}
}
