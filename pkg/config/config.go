// Package config defines runtime configuration and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

// Config holds engine settings, populated from flags, the config file and
// the environment.
type Config struct {
	DatabaseURL string
	Regions     string // comma-separated
	Accounts    string // comma-separated account ids; empty means caller account
	RoleName    string // role assumed in each target account
	Types       string // comma-separated resource type names; empty means defaults

	LookbackHours  int
	RetentionDays  int
	MaxConcurrency int

	MockMode   bool
	StrictMode bool
	JsonLogs   bool
	Verbose    bool

	OtelEndpoint  string
	SkipTelemetry bool
}

// RegionList splits the configured regions, falling back to the default.
func (c Config) RegionList() []string {
	return splitCSV(c.Regions, []string{DefaultRegion})
}

// AccountList splits the configured account ids. Empty means "the caller's
// own account" and is represented as a single empty entry.
func (c Config) AccountList() []string {
	return splitCSV(c.Accounts, []string{""})
}

// TypeList resolves the configured resource-type names. Unknown names are an
// error so typos fail loudly instead of silently scanning nothing.
func (c Config) TypeList() ([]resource.Type, error) {
	names := splitCSV(c.Types, nil)
	if len(names) == 0 {
		return DefaultTypes(), nil
	}
	var out []resource.Type
	for _, name := range names {
		t, ok := resource.ParseType(name)
		if !ok {
			return nil, fmt.Errorf("unknown resource type %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// Lookback returns the activity-log fetch window.
func (c Config) Lookback() time.Duration {
	hours := c.LookbackHours
	if hours <= 0 {
		hours = DefaultLookbackHours
	}
	return time.Duration(hours) * time.Hour
}

// Retention returns how long ingested events are kept.
func (c Config) Retention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func splitCSV(s string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
