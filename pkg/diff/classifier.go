// Package diff decides whether a field-level difference between the stored
// and the freshly observed value is worth recording. Snapshot sources return
// the same logical value in wildly different shapes across runs (native list
// vs. serialized string, timezone present or not, "True" vs "true", [] vs {}
// for "nothing"), so a naive string compare would flood the change history on
// every pass. The rules below run in order; the first one that matches wins.
package diff

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/resource"
)

// ignoredFields are internal bookkeeping columns that never constitute a
// user-visible change.
var ignoredFields = map[string]bool{
	"updated_at":   true,
	"observed_at":  true,
	"last_updated": true,
	"account_id":   true,
	"account_name": true,
	"region":       true,
	"request_id":   true,
	"session_id":   true,
	"schema_rev":   true,
}

// autoTagPrefixes are platform-injected provenance keys stripped before tag
// comparison. CloudFormation and autoscaling stamp these on every stack
// operation without any operator intent behind them.
var autoTagPrefixes = []string{
	"aws:",
	"cloudformation:",
	"elasticbeanstalk:",
	"lambda:createdBy",
}

var timestampHints = []string{
	"time", "date", "created", "started", "modified", "launch", "expir",
}

// Significant reports whether old vs. new for the given field is a real
// change. Both sides are canonical string forms (what the store round-trips).
// Deterministic and side-effect free.
func Significant(spec resource.Spec, field, oldVal, newVal string) bool {
	oldTrim := strings.TrimSpace(oldVal)
	newTrim := strings.TrimSpace(newVal)

	// 1. Exact match after trimming.
	if oldTrim == newTrim {
		return false
	}

	// 2. Both empty-ish, whatever the empty literal.
	if emptyish(oldTrim) && emptyish(newTrim) {
		return false
	}

	// 3. Boolean spelling drift ("True" vs "true").
	if ob, oerr := strconv.ParseBool(strings.ToLower(oldTrim)); oerr == nil {
		if nb, nerr := strconv.ParseBool(strings.ToLower(newTrim)); nerr == nil && ob == nb {
			return false
		}
	}

	// 4. Bookkeeping columns.
	if ignoredFields[field] {
		return false
	}

	// 5. Tag maps compare after stripping platform-injected keys.
	if spec.TagFields[field] {
		return !tagMapsEqual(oldTrim, newTrim)
	}

	// 6. JSON objects compare structurally, ignoring key order.
	if oldObj, ok := parseJSONObject(oldTrim); ok {
		if newObj, ok2 := parseJSONObject(newTrim); ok2 {
			return !reflect.DeepEqual(oldObj, newObj)
		}
	}

	// 7. Adjacency lists compare as sets.
	if spec.OrderInsensitive[field] {
		return !listsEqualUnordered(oldTrim, newTrim)
	}

	// 8. Timestamps compare in UTC at second precision.
	if looksLikeTimestamp(field) {
		if ot, ok := parseTimestamp(oldTrim); ok {
			if nt, ok2 := parseTimestamp(newTrim); ok2 {
				return !ot.Equal(nt)
			}
		}
	}

	// 9. Formatted numerics compare as floats.
	if spec.NumericFields[field] {
		if of, oerr := parseNumber(oldTrim); oerr == nil {
			if nf, nerr := parseNumber(newTrim); nerr == nil {
				return of != nf
			}
		}
	}

	// 10. Default: canonical strings differ.
	return true
}

func emptyish(s string) bool {
	switch s {
	case "", "[]", "{}", "null", "none", "None":
		return true
	}
	return false
}

func parseJSONObject(s string) (map[string]any, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}

// tagMapsEqual parses both sides as key/value maps, drops automatic keys and
// compares the remainder for entry equality.
func tagMapsEqual(oldVal, newVal string) bool {
	om := parseTagMap(oldVal)
	nm := parseTagMap(newVal)
	stripAutoKeys(om)
	stripAutoKeys(nm)
	if len(om) != len(nm) {
		return false
	}
	for k, v := range om {
		if nv, ok := nm[k]; !ok || nv != v {
			return false
		}
	}
	return true
}

func parseTagMap(s string) map[string]string {
	out := map[string]string{}
	if emptyish(s) {
		return out
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err == nil {
		return m
	}
	// Legacy serialization: "k1=v1,k2=v2".
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return out
}

func stripAutoKeys(m map[string]string) {
	for k := range m {
		for _, prefix := range autoTagPrefixes {
			if strings.HasPrefix(k, prefix) {
				delete(m, k)
				break
			}
		}
	}
}

// listsEqualUnordered normalizes each side into a sorted list of element
// strings and compares. Handles JSON arrays (string or object elements),
// brace-delimited set literals and plain comma-separated strings.
func listsEqualUnordered(oldVal, newVal string) bool {
	ol := normalizeList(oldVal)
	nl := normalizeList(newVal)
	if len(ol) != len(nl) {
		return false
	}
	for i := range ol {
		if ol[i] != nl[i] {
			return false
		}
	}
	return true
}

func normalizeList(s string) []string {
	var items []string
	switch {
	case strings.HasPrefix(s, "["):
		var raw []any
		if err := json.Unmarshal([]byte(s), &raw); err == nil {
			for _, el := range raw {
				items = append(items, canonicalElement(el))
			}
			break
		}
		items = splitDelimited(strings.Trim(s, "[]"))
	case strings.HasPrefix(s, "{"):
		// Set literal spelling, e.g. {sg-1, sg-2}.
		items = splitDelimited(strings.Trim(s, "{}"))
	default:
		items = splitDelimited(s)
	}
	sort.Strings(items)
	return items
}

func canonicalElement(el any) string {
	if s, ok := el.(string); ok {
		return s
	}
	// Nested objects inside adjacency lists canonicalize to JSON; key order
	// is stable because encoding/json sorts map keys.
	b, err := json.Marshal(el)
	if err != nil {
		return ""
	}
	return string(b)
}

func splitDelimited(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func looksLikeTimestamp(field string) bool {
	lower := strings.ToLower(field)
	for _, hint := range timestampHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp tries the known layouts, defaults to UTC when no zone is
// present and truncates to whole seconds.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}

func parseNumber(s string) (float64, error) {
	cleaned := strings.TrimSpace(strings.TrimSuffix(s, "%"))
	return strconv.ParseFloat(cleaned, 64)
}
