package audit

import "context"

// Reader queries stored records.
type Reader struct {
	storage Storage
}

func NewReader(storage Storage) *Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &Reader{storage: storage}
}

func (r *Reader) Find(ctx context.Context, criteria Criteria) ([]Record, error) {
	return r.storage.Query(ctx, criteria)
}

// Count uses the storage's Counter when available and otherwise counts the
// query result in memory.
func (r *Reader) Count(ctx context.Context, criteria Criteria) (int64, error) {
	if c, ok := r.storage.(Counter); ok {
		return c.Count(ctx, criteria)
	}
	criteria.Limit, criteria.Offset = 0, 0
	records, err := r.storage.Query(ctx, criteria)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}
