package store

import (
    "context"
    "sort"
    "sync"
)

// MemoryRecords is an in-process Records used in development and tests.
type MemoryRecords struct {
    mu      sync.RWMutex
    records map[string]Record
}

func NewMemoryRecords() *MemoryRecords {
    return &MemoryRecords{records: make(map[string]Record)}
}

func (m *MemoryRecords) Save(ctx context.Context, r Record) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.records[r.ID] = r
    return nil
}

func (m *MemoryRecords) Get(ctx context.Context, id string) (Record, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    r, ok := m.records[id]
    if !ok { return Record{}, ErrNotFound }
    return r, nil
}

func (m *MemoryRecords) ListByCase(ctx context.Context, caseNumber string) ([]Record, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    var out []Record
    for _, r := range m.records {
        if r.CaseNumber == caseNumber { out = append(out, r) }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
    return out, nil
}
