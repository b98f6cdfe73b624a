// Package attrib maps a detected field change to the most plausible causing
// activity event and its actor. Best-effort nearest-match, not a verified
// causal trace.
package attrib

import (
	"context"
	"fmt"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/trail"
)

// DefaultWindow bounds how far an event may sit from the detected change and
// still be considered a plausible cause. Applied uniformly; events outside
// resolve to the unknown actor rather than a low-confidence guess.
const DefaultWindow = 24 * time.Hour

// ActorUnknown is returned when no plausible causing event exists.
const ActorUnknown = "unknown"

// EventSource is the read-only slice of the store the resolver needs.
type EventSource interface {
	EventsForResource(ctx context.Context, t resource.Type, resourceID string, from, to time.Time) ([]trail.ActivityEvent, error)
}

// Resolver finds the best actor for a resource+field+time.
type Resolver struct {
	events EventSource
	window time.Duration
}

func NewResolver(events EventSource) *Resolver {
	return &Resolver{events: events, window: DefaultWindow}
}

// WithWindow overrides the proximity bound. Zero or negative keeps the
// default.
func (r *Resolver) WithWindow(w time.Duration) *Resolver {
	if w > 0 {
		r.window = w
	}
	return r
}

// Resolve returns the actor of the nearest-in-time plausible event for the
// given field change at the reference time. Two-stage filter: first restrict
// to the field's mapped action names when a mapping exists (relevance beats
// proximity), then pick the candidate with the smallest absolute time
// distance. Ties break on the smaller event id for reproducibility.
func (r *Resolver) Resolve(ctx context.Context, spec resource.Spec, resourceID, field string, at time.Time) (string, error) {
	candidates, err := r.events.EventsForResource(ctx, spec.Type, resourceID, at.Add(-r.window), at.Add(r.window))
	if err != nil {
		return ActorUnknown, fmt.Errorf("event lookup failed: %w", err)
	}

	if actions, ok := spec.FieldActions[field]; ok {
		candidates = filterByAction(candidates, actions)
	}

	var best *trail.ActivityEvent
	var bestDist time.Duration
	for i := range candidates {
		ev := &candidates[i]
		dist := absDuration(ev.Time.Sub(at))
		if dist > r.window {
			continue
		}
		switch {
		case best == nil, dist < bestDist:
			best, bestDist = ev, dist
		case dist == bestDist && ev.ID < best.ID:
			best = ev
		}
	}

	if best == nil {
		return ActorUnknown, nil
	}
	return best.Actor, nil
}

func filterByAction(events []trail.ActivityEvent, actions []string) []trail.ActivityEvent {
	allowed := make(map[string]bool, len(actions))
	for _, a := range actions {
		allowed[a] = true
	}
	var out []trail.ActivityEvent
	for _, ev := range events {
		if allowed[ev.Action] {
			out = append(out, ev)
		}
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
