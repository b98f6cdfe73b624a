//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/trail"
)

func startPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("cloudledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgres(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestPostgres_ReconcileRoundTrip(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := StoredRecord{
		Type:       resource.TypeEC2Instance,
		AccountID:  "111111111111",
		Region:     "us-east-1",
		NaturalKey: "i-1",
		Fields:     map[string]string{"state": "running", "instance_type": "t3.medium"},
		UpdatedAt:  at,
	}

	// 1. Insert inside a transaction.
	err := store.Reconcile(ctx, func(tx Tx) error {
		return tx.InsertResource(ctx, rec)
	})
	require.NoError(t, err)

	stored, err := store.ResourcesByType(ctx, resource.TypeEC2Instance)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "running", stored[0].Fields["state"])

	// 2. JSONB merge keeps untouched keys.
	err = store.Reconcile(ctx, func(tx Tx) error {
		return tx.UpdateResource(ctx, rec, map[string]string{"state": "stopped"}, at.Add(time.Hour))
	})
	require.NoError(t, err)

	stored, err = store.ResourcesByType(ctx, resource.TypeEC2Instance)
	require.NoError(t, err)
	require.Equal(t, "stopped", stored[0].Fields["state"])
	require.Equal(t, "t3.medium", stored[0].Fields["instance_type"])

	// 3. A failing batch rolls everything back.
	err = store.Reconcile(ctx, func(tx Tx) error {
		other := rec
		other.NaturalKey = "i-2"
		if err := tx.InsertResource(ctx, other); err != nil {
			return err
		}
		// Duplicate primary key forces the rollback.
		return tx.InsertResource(ctx, rec)
	})
	require.Error(t, err)

	stored, err = store.ResourcesByType(ctx, resource.TypeEC2Instance)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestPostgres_EventsAndHistory(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []trail.ActivityEvent{
		{
			ID: "ev-1", Time: base.Add(-3 * time.Minute), Action: "StopInstances",
			Source: "ec2.amazonaws.com", Actor: "alice",
			ResourceType: resource.TypeEC2Instance, ResourceID: "i-1",
			Summary:   map[string]string{"action": "stopinstances"},
			AccountID: "111111111111", Region: "us-east-1",
		},
		{
			ID: "ev-2", Time: base.Add(-48 * time.Hour), Action: "StartInstances",
			Source: "ec2.amazonaws.com", Actor: "bob",
			ResourceType: resource.TypeEC2Instance, ResourceID: "i-1",
			AccountID:    "111111111111", Region: "us-east-1",
		},
	}

	// 1. Ingest is idempotent by event id.
	n, err := store.IngestEvents(ctx, events)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = store.IngestEvents(ctx, events)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	// 2. The window query excludes the distant event.
	got, err := store.EventsForResource(ctx, resource.TypeEC2Instance, "i-1",
		base.Add(-24*time.Hour), base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "alice", got[0].Actor)

	// 3. History returns newest first.
	err = store.Reconcile(ctx, func(tx Tx) error {
		for i, field := range []string{"state", "tags"} {
			entry := ChangeEntry{
				ResourceType: resource.TypeEC2Instance,
				ResourceID:   "i-1",
				Field:        field,
				OldValue:     "a",
				NewValue:     "b",
				ChangedBy:    "alice",
				AccountID:    "111111111111",
				Region:       "us-east-1",
				ChangedAt:    base.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.AppendChange(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	history, err := store.History(ctx, resource.TypeEC2Instance, "i-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "tags", history[0].Field)

	// 4. Prune removes the stale event.
	pruned, err := store.PruneEvents(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)
}
