// Package engine wires collection, event ingestion and reconciliation into
// one run: collection tasks fan out across the worker pool per (account,
// region), then each resource type reconciles single-threaded against the
// store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/cloudledger/pkg/attrib"
	"github.com/DrSkyle/cloudledger/pkg/config"
	"github.com/DrSkyle/cloudledger/pkg/engine/swarm"
	"github.com/DrSkyle/cloudledger/pkg/reconcile"
	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/storage"
	"github.com/DrSkyle/cloudledger/pkg/telemetry"
	"github.com/DrSkyle/cloudledger/pkg/trail"
	"github.com/DrSkyle/cloudledger/pkg/version"
)

// ErrPartialRun indicates some (account, region) scopes failed outright.
var ErrPartialRun = errors.New("run completed with failed scopes")

// Scope is one (account, region) collection target.
type Scope struct {
	AccountID   string
	AccountName string
	Region      string
}

func (s Scope) String() string {
	account := s.AccountID
	if account == "" {
		account = "caller"
	}
	return fmt.Sprintf("%s:%s", account, s.Region)
}

// ScopeClient is the per-scope boundary into the cloud provider: thin
// read-only fetches, no decisions.
type ScopeClient interface {
	// Collect returns the current-state records for one resource type.
	Collect(ctx context.Context, t resource.Type) ([]resource.Record, error)
	// FetchEvents returns raw audit records since the given time. The
	// allow-list is applied by the normalizer, not here.
	FetchEvents(ctx context.Context, since time.Time) ([]trail.RawEvent, error)
}

// Provider opens ScopeClients. Connection failures are per-scope errors, not
// run aborts.
type Provider interface {
	Connect(ctx context.Context, scope Scope) (ScopeClient, error)
}

// Engine is the runtime core.
type Engine struct {
	Store    storage.Store
	Provider Provider
	Swarm    *swarm.Engine
	Logger   *slog.Logger
	Tracer   trace.Tracer

	cfg config.Config
	now func() time.Time
}

// Option defines a functional configuration override.
type Option func(*Engine)

// New initializes the Engine.
func New(ctx context.Context, store storage.Store, provider Provider, opts ...Option) (*Engine, error) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: redactSensitiveData,
	})
	e := &Engine{
		Store:    store,
		Provider: provider,
		Swarm:    swarm.NewEngine(),
		Logger:   slog.New(handler),
		Tracer:   otel.Tracer("cloudledger/engine"),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	slog.SetDefault(e.Logger)

	if !e.cfg.SkipTelemetry {
		if _, err := telemetry.Init(ctx, version.AppName, version.Current, e.cfg.OtelEndpoint); err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		}
	}

	return e, nil
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

// WithConfig sets raw config.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
		if cfg.MaxConcurrency > 0 {
			e.Swarm.MaxWorkers = cfg.MaxConcurrency
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Run executes one full collection + reconciliation pass.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Run")
	defer span.End()
	defer e.recoverPanic(ctx)

	types, err := e.cfg.TypeList()
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: e.now(),
		PerType:   map[resource.Type]reconcile.Result{},
	}

	// Retention sweep keeps the attribution window bounded by data, not by a
	// runtime timer.
	pruned, err := e.Store.PruneEvents(ctx, e.now().Add(-e.cfg.Retention()))
	if err != nil {
		e.Logger.Warn("Event prune failed", "error", err)
	} else if pruned > 0 {
		e.Logger.Info("Pruned stale activity events", "count", pruned)
	}

	e.Logger.Info("Starting run",
		"run_id", report.RunID,
		"types", len(types),
		"concurrency", e.Swarm.MaxWorkers)

	e.Swarm.Start(ctx)
	defer e.Swarm.Stop()

	collected := e.collect(ctx, types, report)

	// Reconciliation is single-threaded per resource type: one writer per
	// table, so transactional isolation is all the coordination needed.
	for _, t := range types {
		spec, ok := resource.SpecFor(t)
		if !ok {
			continue
		}
		res, err := e.reconcileType(ctx, spec, collected[t])
		if err != nil {
			e.Logger.Error("Reconcile failed", "type", string(t), "error", err)
			report.FailedTypes = append(report.FailedTypes, string(t))
			continue
		}
		report.PerType[t] = res
	}

	report.FinishedAt = e.now()

	if len(report.FailedScopes) > 0 || len(report.FailedTypes) > 0 {
		span.SetAttributes(
			attribute.Bool("run.partial", true),
			attribute.Int("run.failed_scopes", len(report.FailedScopes)),
		)
		if e.cfg.StrictMode {
			e.Logger.Error("Strict Mode: failing due to partial results")
			return report, ErrPartialRun
		}
		e.Logger.Warn("Run finished with failed scopes (StrictMode=false)",
			"failed", len(report.FailedScopes))
	}

	return report, nil
}

// collect fans one task per scope out across the pool and gathers records
// per resource type. Tasks only touch the accumulator under its lock; they
// share nothing else.
func (e *Engine) collect(ctx context.Context, types []resource.Type, report *Report) map[resource.Type][]resource.Record {
	var (
		mu        sync.Mutex
		collected = map[resource.Type][]resource.Record{}
		wg        sync.WaitGroup
	)
	since := e.now().Add(-e.cfg.Lookback())

	for _, account := range e.cfg.AccountList() {
		for _, region := range e.cfg.RegionList() {
			scope := Scope{AccountID: account, Region: region}
			wg.Add(1)
			e.Swarm.Submit(func(taskCtx context.Context) error {
				defer wg.Done()
				records, events, err := e.collectScope(taskCtx, scope, types, since)
				mu.Lock()
				defer mu.Unlock()
				// Partial scopes still contribute: records from healthy
				// collectors reconcile even when a sibling in the same scope
				// failed.
				for t, recs := range records {
					collected[t] = append(collected[t], recs...)
				}
				report.EventsIngested += events
				if err != nil {
					report.FailedScopes = append(report.FailedScopes, scope.String())
					return err
				}
				return nil
			})
		}
	}
	wg.Wait()
	return collected
}

// collectScope pulls resources and trail events for one (account, region).
func (e *Engine) collectScope(ctx context.Context, scope Scope, types []resource.Type, since time.Time) (map[resource.Type][]resource.Record, int, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.collectScope", trace.WithAttributes(
		attribute.String("scope", scope.String()),
	))
	defer span.End()

	client, err := e.Provider.Connect(ctx, scope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.Logger.Error("Scope connect failed", "scope", scope.String(), "error", err)
		return nil, 0, err
	}

	records := map[resource.Type][]resource.Record{}
	var firstErr error
	for _, t := range types {
		recs, err := client.Collect(ctx, t)
		if err != nil {
			// Empty list plus side-channel error; siblings keep going.
			e.Logger.Error("Collector failed", "scope", scope.String(), "type", string(t), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		records[t] = recs
	}

	ingested, err := e.ingestEvents(ctx, client, since)
	if err != nil {
		e.Logger.Error("Event fetch failed", "scope", scope.String(), "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		span.RecordError(firstErr)
		span.SetStatus(codes.Error, firstErr.Error())
		return records, ingested, firstErr
	}
	return records, ingested, nil
}

func (e *Engine) ingestEvents(ctx context.Context, client ScopeClient, since time.Time) (int, error) {
	raws, err := client.FetchEvents(ctx, since)
	if err != nil {
		return 0, err
	}
	var events []trail.ActivityEvent
	for _, raw := range raws {
		ev, ok := trail.Normalize(raw)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return e.Store.IngestEvents(ctx, events)
}

func (e *Engine) reconcileType(ctx context.Context, spec resource.Spec, batch []resource.Record) (reconcile.Result, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.reconcileType", trace.WithAttributes(
		attribute.String("resource.type", string(spec.Type)),
		attribute.Int("batch.size", len(batch)),
	))
	defer span.End()

	resolver := attrib.NewResolver(e.Store)
	rec := reconcile.New(e.Store, resolver, e.Logger)
	res, err := rec.Run(ctx, spec, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return reconcile.Result{}, err
	}

	e.Logger.Info("Reconciled",
		"type", string(spec.Type),
		"processed", res.Processed,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"changes", res.Changes)
	return res, nil
}

// recoverPanic keeps a crash inside the run from taking down a host app.
func (e *Engine) recoverPanic(ctx context.Context) {
	if r := recover(); r != nil {
		_, span := e.Tracer.Start(ctx, "CriticalPanic")
		stack := debug.Stack()
		span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, "CRITICAL FAILURE")
		span.SetAttributes(attribute.String("crash.stack", string(stack)))
		span.End()

		e.Logger.Error("CRITICAL FAILURE", "error", r, "stack", string(stack))
	}
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"password": true, "access_key": true, "token": true, "secret": true,
		"api_key": true, "private_key": true, "auth_token": true,
		"credential": true, "connection_string": true,
	}
	if sensitiveKeys[a.Key] {
		return slog.Attr{Key: a.Key, Value: slog.StringValue("[REDACTED]")}
	}
	return a
}
