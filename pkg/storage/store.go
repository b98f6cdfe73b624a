// Package storage owns the relational persistence boundary: one table per
// resource type keyed by (type, account id, natural key), a shared
// activity_events table idempotent by event id, and the append-only
// change_history table.
package storage

import (
	"context"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/trail"
)

// StoredRecord is the persisted form of a resource snapshot. Field values
// are canonical strings (resource.Value.Canonical output).
type StoredRecord struct {
	Type       resource.Type
	AccountID  string
	Region     string
	NaturalKey string
	Fields     map[string]string
	UpdatedAt  time.Time
}

// ChangeEntry is one append-only change-history row.
type ChangeEntry struct {
	ResourceType resource.Type
	ResourceID   string
	Field        string
	OldValue     string
	NewValue     string
	ChangedBy    string
	AccountID    string
	Region       string
	ChangedAt    time.Time
}

// Tx exposes the writes available inside a reconciliation batch. All writes
// for one batch commit or roll back together.
type Tx interface {
	InsertResource(ctx context.Context, rec StoredRecord) error
	// UpdateResource applies the changed field values plus a timestamp bump
	// in one statement.
	UpdateResource(ctx context.Context, rec StoredRecord, changed map[string]string, at time.Time) error
	// TouchResource refreshes the timestamp alone, marking "observed,
	// unchanged".
	TouchResource(ctx context.Context, rec StoredRecord, at time.Time) error
	AppendChange(ctx context.Context, entry ChangeEntry) error
}

// Store is the storage handle passed into the orchestrator and resolver.
type Store interface {
	// ResourcesByType loads every stored record for one resource type.
	ResourcesByType(ctx context.Context, t resource.Type) ([]StoredRecord, error)

	// Reconcile runs fn inside a single transaction. Any error rolls the
	// whole batch back.
	Reconcile(ctx context.Context, fn func(tx Tx) error) error

	// IngestEvents stores normalized activity events, skipping ids already
	// present. Returns the number of newly inserted rows.
	IngestEvents(ctx context.Context, events []trail.ActivityEvent) (int, error)

	// EventsForResource returns events for one resource inside [from, to],
	// ordered by time.
	EventsForResource(ctx context.Context, t resource.Type, resourceID string, from, to time.Time) ([]trail.ActivityEvent, error)

	// History returns the most recent change entries for a resource, newest
	// first.
	History(ctx context.Context, t resource.Type, resourceID string, limit int) ([]ChangeEntry, error)

	// PruneEvents drops activity events older than the retention cutoff.
	PruneEvents(ctx context.Context, before time.Time) (int64, error)

	Close()
}
