package resource

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// Kind enumerates the value shapes a tracked field can take.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindStringList
	KindStringSet
	KindMap
	KindTime
)

// Value is a tagged sum over the field value shapes snapshot sources produce.
// Collectors build Values; the classifier and storage layer consume the
// canonical string form, which is what survives a round-trip through the
// database.
type Value struct {
	kind Kind
	str  string
	num  int64
	flag bool
	list []string
	kv   map[string]string
	ts   time.Time
}

func String(s string) Value { return Value{kind: KindString, str: s} }
func Int(n int64) Value     { return Value{kind: KindInt, num: n} }
func Bool(b bool) Value     { return Value{kind: KindBool, flag: b} }

// List preserves element order.
func List(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindStringList, list: cp}
}

// Set is order-free; elements are sorted on canonicalization.
func Set(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindStringSet, list: cp}
}

func Map(kv map[string]string) Value {
	cp := make(map[string]string, len(kv))
	for k, v := range kv {
		cp[k] = v
	}
	return Value{kind: KindMap, kv: cp}
}

func Time(t time.Time) Value { return Value{kind: KindTime, ts: t} }

func (v Value) Kind() Kind { return v.kind }

// Canonical returns the stable string form of the value. This is the form
// persisted in the resource row and in change-history old/new columns, so it
// must be deterministic: sets sorted, map keys sorted, timestamps in UTC.
func (v Value) Canonical() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindStringList:
		return marshalList(v.list)
	case KindStringSet:
		sorted := make([]string, len(v.list))
		copy(sorted, v.list)
		sort.Strings(sorted)
		return marshalList(sorted)
	case KindMap:
		return marshalMap(v.kv)
	case KindTime:
		return v.ts.UTC().Format(time.RFC3339)
	}
	return ""
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func marshalMap(kv map[string]string) string {
	if len(kv) == 0 {
		return "{}"
	}
	// encoding/json sorts map keys, which gives us the stable form for free.
	b, err := json.Marshal(kv)
	if err != nil {
		return "{}"
	}
	return string(b)
}
