package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/trail"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Postgres implements Store over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects, pings and applies pending migrations.
func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := applyMigrations(dbURL); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func applyMigrations(dbURL string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("failed to init migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) ResourcesByType(ctx context.Context, t resource.Type) ([]StoredRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT resource_type, account_id, region, natural_key, fields, updated_at
		FROM resources
		WHERE resource_type = $1`, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var rec StoredRecord
		var rtype string
		if err := rows.Scan(&rtype, &rec.AccountID, &rec.Region, &rec.NaturalKey, &rec.Fields, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resource row: %w", err)
		}
		rec.Type = resource.Type(rtype)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Reconcile wraps fn in one transaction: the whole batch commits or rolls
// back, never partially.
func (p *Postgres) Reconcile(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(pgtx pgx.Tx) error {
		return fn(&pgTx{tx: pgtx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) InsertResource(ctx context.Context, rec StoredRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO resources (resource_type, account_id, region, natural_key, fields, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(rec.Type), rec.AccountID, rec.Region, rec.NaturalKey, rec.Fields, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert resource %s: %w", rec.NaturalKey, err)
	}
	return nil
}

func (t *pgTx) UpdateResource(ctx context.Context, rec StoredRecord, changed map[string]string, at time.Time) error {
	// fields || $4 merges only the changed keys; unchanged values keep their
	// stored representation. Filters on the primary key columns, same as
	// TouchResource.
	_, err := t.tx.Exec(ctx, `
		UPDATE resources
		SET fields = fields || $4, updated_at = $5
		WHERE resource_type = $1 AND account_id = $2 AND natural_key = $3`,
		string(rec.Type), rec.AccountID, rec.NaturalKey, changed, at)
	if err != nil {
		return fmt.Errorf("failed to update resource %s: %w", rec.NaturalKey, err)
	}
	return nil
}

func (t *pgTx) TouchResource(ctx context.Context, rec StoredRecord, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE resources
		SET updated_at = $4
		WHERE resource_type = $1 AND account_id = $2 AND natural_key = $3`,
		string(rec.Type), rec.AccountID, rec.NaturalKey, at)
	if err != nil {
		return fmt.Errorf("failed to touch resource %s: %w", rec.NaturalKey, err)
	}
	return nil
}

func (t *pgTx) AppendChange(ctx context.Context, entry ChangeEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO change_history
			(id, resource_type, resource_id, field, old_value, new_value, changed_by, account_id, region, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(), string(entry.ResourceType), entry.ResourceID, entry.Field,
		entry.OldValue, entry.NewValue, entry.ChangedBy, entry.AccountID,
		entry.Region, entry.ChangedAt)
	if err != nil {
		return fmt.Errorf("failed to append change for %s.%s: %w", entry.ResourceID, entry.Field, err)
	}
	return nil
}

// IngestEvents is idempotent by event id: re-ingesting a seen id is a no-op.
func (p *Postgres) IngestEvents(ctx context.Context, events []trail.ActivityEvent) (int, error) {
	inserted := 0
	for _, ev := range events {
		tag, err := p.pool.Exec(ctx, `
			INSERT INTO activity_events
				(event_id, event_time, action, source, actor, resource_type, resource_id, summary, account_id, region)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (event_id) DO NOTHING`,
			ev.ID, ev.Time, ev.Action, ev.Source, ev.Actor,
			string(ev.ResourceType), ev.ResourceID, ev.Summary, ev.AccountID, ev.Region)
		if err != nil {
			return inserted, fmt.Errorf("failed to ingest event %s: %w", ev.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (p *Postgres) EventsForResource(ctx context.Context, t resource.Type, resourceID string, from, to time.Time) ([]trail.ActivityEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT event_id, event_time, action, source, actor, resource_type, resource_id, summary, account_id, region
		FROM activity_events
		WHERE resource_type = $1 AND resource_id = $2 AND event_time BETWEEN $3 AND $4
		ORDER BY event_time`,
		string(t), resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []trail.ActivityEvent
	for rows.Next() {
		var ev trail.ActivityEvent
		var rtype string
		if err := rows.Scan(&ev.ID, &ev.Time, &ev.Action, &ev.Source, &ev.Actor,
			&rtype, &ev.ResourceID, &ev.Summary, &ev.AccountID, &ev.Region); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.ResourceType = resource.Type(rtype)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *Postgres) History(ctx context.Context, t resource.Type, resourceID string, limit int) ([]ChangeEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT resource_type, resource_id, field, old_value, new_value, changed_by, account_id, region, changed_at
		FROM change_history
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY changed_at DESC
		LIMIT $3`,
		string(t), resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []ChangeEntry
	for rows.Next() {
		var entry ChangeEntry
		var rtype string
		if err := rows.Scan(&rtype, &entry.ResourceID, &entry.Field, &entry.OldValue,
			&entry.NewValue, &entry.ChangedBy, &entry.AccountID, &entry.Region, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry.ResourceType = resource.Type(rtype)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (p *Postgres) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM activity_events WHERE event_time < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return tag.RowsAffected(), nil
}
