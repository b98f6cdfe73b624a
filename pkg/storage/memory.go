package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DrSkyle/cloudledger/pkg/resource"
	"github.com/DrSkyle/cloudledger/pkg/trail"
)

// Memory is an in-memory Store used by tests and mock mode. Transactions are
// buffered and applied on commit, matching the fail-atomic batch semantics of
// the Postgres implementation.
type Memory struct {
	mu        sync.Mutex
	resources map[string]StoredRecord // keyed by type|account|key
	events    map[string]trail.ActivityEvent
	history   []ChangeEntry
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		resources: map[string]StoredRecord{},
		events:    map[string]trail.ActivityEvent{},
	}
}

func recordKey(t resource.Type, accountID, naturalKey string) string {
	return string(t) + "|" + accountID + "|" + naturalKey
}

func (m *Memory) ResourcesByType(ctx context.Context, t resource.Type) ([]StoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StoredRecord
	for _, rec := range m.resources {
		if rec.Type == t {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NaturalKey < out[j].NaturalKey })
	return out, nil
}

func (m *Memory) Reconcile(ctx context.Context, fn func(tx Tx) error) error {
	buf := &memTx{}
	if err := fn(buf); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range buf.ops {
		op(m)
	}
	return nil
}

type memTx struct {
	ops []func(*Memory)
}

func (t *memTx) InsertResource(ctx context.Context, rec StoredRecord) error {
	cp := cloneRecord(rec)
	t.ops = append(t.ops, func(m *Memory) {
		m.resources[recordKey(cp.Type, cp.AccountID, cp.NaturalKey)] = cp
	})
	return nil
}

func (t *memTx) UpdateResource(ctx context.Context, rec StoredRecord, changed map[string]string, at time.Time) error {
	key := recordKey(rec.Type, rec.AccountID, rec.NaturalKey)
	cp := make(map[string]string, len(changed))
	for k, v := range changed {
		cp[k] = v
	}
	t.ops = append(t.ops, func(m *Memory) {
		stored, ok := m.resources[key]
		if !ok {
			return
		}
		for k, v := range cp {
			stored.Fields[k] = v
		}
		stored.UpdatedAt = at
		m.resources[key] = stored
	})
	return nil
}

func (t *memTx) TouchResource(ctx context.Context, rec StoredRecord, at time.Time) error {
	key := recordKey(rec.Type, rec.AccountID, rec.NaturalKey)
	t.ops = append(t.ops, func(m *Memory) {
		stored, ok := m.resources[key]
		if !ok {
			return
		}
		stored.UpdatedAt = at
		m.resources[key] = stored
	})
	return nil
}

func (t *memTx) AppendChange(ctx context.Context, entry ChangeEntry) error {
	t.ops = append(t.ops, func(m *Memory) {
		m.history = append(m.history, entry)
	})
	return nil
}

func (m *Memory) IngestEvents(ctx context.Context, events []trail.ActivityEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, ev := range events {
		if _, seen := m.events[ev.ID]; seen {
			continue
		}
		m.events[ev.ID] = ev
		inserted++
	}
	return inserted, nil
}

func (m *Memory) EventsForResource(ctx context.Context, t resource.Type, resourceID string, from, to time.Time) ([]trail.ActivityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []trail.ActivityEvent
	for _, ev := range m.events {
		if ev.ResourceType != t || ev.ResourceID != resourceID {
			continue
		}
		if ev.Time.Before(from) || ev.Time.After(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (m *Memory) History(ctx context.Context, t resource.Type, resourceID string, limit int) ([]ChangeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ChangeEntry
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		entry := m.history[i]
		if entry.ResourceType == t && entry.ResourceID == resourceID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *Memory) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, ev := range m.events {
		if ev.Time.Before(before) {
			delete(m.events, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() {}

// HistoryLen reports the total number of change entries. Test helper.
func (m *Memory) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// AllHistory returns a copy of every change entry in append order. Test
// helper.
func (m *Memory) AllHistory() []ChangeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChangeEntry, len(m.history))
	copy(out, m.history)
	return out
}

func cloneRecord(rec StoredRecord) StoredRecord {
	cp := rec
	cp.Fields = make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		cp.Fields[k] = v
	}
	return cp
}
