// Package reconcile drives one snapshot pass for a resource type: insert new
// resources, classify field differences on known ones, attribute accepted
// changes and append their history rows. This package exclusively owns
// resource mutation and change-history emission.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/attrib"
	"github.com/DrSkyle/cloudledger/pkg/diff"
	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/storage"
)

// Result carries the per-batch counters.
type Result struct {
	Processed int
	Inserted  int
	Updated   int
	Changes   int
}

// Reconciler upserts observed records against the store.
type Reconciler struct {
	store    storage.Store
	resolver *attrib.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

func New(store storage.Store, resolver *attrib.Resolver, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// Run reconciles one batch of observed records for a single resource type.
// All writes happen inside one transaction; any failure rolls the whole
// batch back and the counters report zero. Records are processed in input
// order.
func (r *Reconciler) Run(ctx context.Context, spec resource.Spec, batch []resource.Record) (Result, error) {
	stored, err := r.store.ResourcesByType(ctx, spec.Type)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load stored %s records: %w", spec.Type, err)
	}

	byIdentity := make(map[string]storage.StoredRecord, len(stored))
	for _, rec := range stored {
		byIdentity[recordIdentity(rec)] = rec
	}

	var res Result
	err = r.store.Reconcile(ctx, func(tx storage.Tx) error {
		for _, observed := range batch {
			res.Processed++

			// Identity is (type, account, key): a reused natural key under a
			// different account misses the lookup and inserts a fresh row, it
			// never mutates the existing one.
			existing, ok := byIdentity[observed.Identity()]
			if !ok {
				if err := tx.InsertResource(ctx, toStored(observed, r.now())); err != nil {
					return err
				}
				res.Inserted++
				continue
			}

			changed := r.classify(spec, existing, observed)
			if len(changed) == 0 {
				// Observed but unchanged: refresh the timestamp so staleness
				// queries can tell "unchanged" from "not seen".
				if err := tx.TouchResource(ctx, existing, r.now()); err != nil {
					return err
				}
				continue
			}

			at := r.now()
			for _, field := range sortedKeys(changed) {
				actor := r.attribute(ctx, spec, observed, field, at)
				entry := storage.ChangeEntry{
					ResourceType: spec.Type,
					ResourceID:   observed.NaturalKey,
					Field:        field,
					OldValue:     existing.Fields[field],
					NewValue:     changed[field],
					ChangedBy:    actor,
					AccountID:    observed.AccountID,
					Region:       observed.Region,
					ChangedAt:    at,
				}
				if err := tx.AppendChange(ctx, entry); err != nil {
					return err
				}
				res.Changes++
			}

			if err := tx.UpdateResource(ctx, existing, changed, at); err != nil {
				return err
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		// Fail-atomic: the store rolled back, so nothing was written.
		return Result{}, fmt.Errorf("reconcile batch for %s failed: %w", spec.Type, err)
	}
	return res, nil
}

// classify runs the significance rules over every tracked field and returns
// the accepted new canonical values.
func (r *Reconciler) classify(spec resource.Spec, existing storage.StoredRecord, observed resource.Record) map[string]string {
	changed := map[string]string{}
	for _, field := range spec.Fields {
		newVal, ok := observed.Fields[field]
		if !ok {
			// Collector did not report the field this pass; skip rather than
			// record a phantom clear.
			continue
		}
		canonical := newVal.Canonical()
		if diff.Significant(spec, field, existing.Fields[field], canonical) {
			changed[field] = canonical
		}
	}
	return changed
}

func (r *Reconciler) attribute(ctx context.Context, spec resource.Spec, observed resource.Record, field string, at time.Time) string {
	actor, err := r.resolver.Resolve(ctx, spec, observed.NaturalKey, field, at)
	if err != nil {
		// Attribution misses never block the change write.
		r.logger.Warn("attribution lookup failed",
			"type", string(spec.Type), "resource", observed.NaturalKey,
			"field", field, "error", err)
		return attrib.ActorUnknown
	}
	return actor
}

func toStored(rec resource.Record, at time.Time) storage.StoredRecord {
	fields := make(map[string]string, len(rec.Fields))
	for name, val := range rec.Fields {
		fields[name] = val.Canonical()
	}
	return storage.StoredRecord{
		Type:       rec.Type,
		AccountID:  rec.AccountID,
		Region:     rec.Region,
		NaturalKey: rec.NaturalKey,
		Fields:     fields,
		UpdatedAt:  at,
	}
}

func recordIdentity(rec storage.StoredRecord) string {
	return fmt.Sprintf("%s|%s|%s", rec.Type, rec.AccountID, rec.NaturalKey)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
