package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/DrSkyle/cloudledger/pkg/reconcile"
	"github.com/DrSkyle/cloudledger/pkg/resource"
)

// Report summarizes one run: per-type counters plus the scopes that failed
// outright. No single failure halts the others; this is where the damage is
// tallied.
type Report struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	EventsIngested int
	PerType        map[resource.Type]reconcile.Result
	FailedScopes   []string
	FailedTypes    []string
}

// Partial reports whether any scope or type failed.
func (r *Report) Partial() bool {
	return len(r.FailedScopes) > 0 || len(r.FailedTypes) > 0
}

// Plain renders the run summary without styling. Deterministic: types
// sorted, durations omitted.
func (r *Report) Plain() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RUN SUMMARY\n")
	fmt.Fprintf(&b, "events ingested: %d\n", r.EventsIngested)

	types := make([]string, 0, len(r.PerType))
	for t := range r.PerType {
		types = append(types, string(t))
	}
	sort.Strings(types)

	fmt.Fprintf(&b, "%-18s %10s %10s %10s %10s\n", "TYPE", "PROCESSED", "INSERTED", "UPDATED", "CHANGES")
	for _, t := range types {
		res := r.PerType[resource.Type(t)]
		fmt.Fprintf(&b, "%-18s %10d %10d %10d %10d\n", t, res.Processed, res.Inserted, res.Updated, res.Changes)
	}

	if len(r.FailedScopes) > 0 {
		fmt.Fprintf(&b, "failed scopes: %s\n", strings.Join(r.FailedScopes, ", "))
	}
	if len(r.FailedTypes) > 0 {
		fmt.Fprintf(&b, "failed types: %s\n", strings.Join(r.FailedTypes, ", "))
	}
	return b.String()
}

// Render returns the styled terminal summary.
func (r *Report) Render() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99"))
	warnStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF5555"))

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("RUN %s", r.RunID)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "duration: %s, events ingested: %d\n",
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), r.EventsIngested)
	b.WriteString(r.Plain())

	if r.Partial() {
		b.WriteString(warnStyle.Render("partial run: some scopes or types failed"))
		b.WriteString("\n")
	}
	return b.String()
}
