package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps records in process. It is meant for tests and local
// development.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Store(ctx context.Context, record Record) error {
	return m.StoreBatch(ctx, []Record{record})
}

func (m *MemoryStorage) StoreBatch(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records = append(m.records, cloneRecord(r))
	}
	return nil
}

func (m *MemoryStorage) Query(ctx context.Context, criteria Criteria) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []Record
	for _, r := range m.records {
		if criteria.Match(r) {
			out = append(out, cloneRecord(r))
		}
	}
	m.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return paginate(out, criteria.Limit, criteria.Offset), nil
}

func (m *MemoryStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, r := range m.records {
		if criteria.Match(r) {
			n++
		}
	}
	return n, nil
}

// Records returns every stored record in insertion order.
func (m *MemoryStorage) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = cloneRecord(r)
	}
	return out
}

func cloneRecord(r Record) Record {
	if r.Metadata != nil {
		md := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			md[k] = v
		}
		r.Metadata = md
	}
	return r
}

func paginate(records []Record, limit, offset int) []Record {
	if offset > 0 {
		if offset >= len(records) {
			return nil
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
