package audit

import (
	"context"
	"time"
)

// Storage persists records. Implementations must never update or delete a
// stored record.
type Storage interface {
	Store(ctx context.Context, record Record) error
	Query(ctx context.Context, criteria Criteria) ([]Record, error)
}

// BatchStorage stores several records atomically.
type BatchStorage interface {
	StoreBatch(ctx context.Context, records []Record) error
}

// Counter is implemented by storages that can count without loading records.
type Counter interface {
	Count(ctx context.Context, criteria Criteria) (int64, error)
}

// Criteria filters records. Zero fields match everything. Results are
// ordered newest first.
type Criteria struct {
	Actor      string
	TenantID   string
	Action     string
	Result     Result
	RequestID  string
	BypassOnly bool
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

// Match reports whether r satisfies the criteria, ignoring pagination.
func (c Criteria) Match(r Record) bool {
	switch {
	case c.Actor != "" && r.Actor != c.Actor:
		return false
	case c.TenantID != "" && r.TenantIDClaimed != c.TenantID:
		return false
	case c.Action != "" && r.Action != c.Action:
		return false
	case c.Result != "" && r.Result != c.Result:
		return false
	case c.RequestID != "" && r.RequestID != c.RequestID:
		return false
	case c.BypassOnly && !r.BypassUsed:
		return false
	case !c.StartTime.IsZero() && r.CreatedAt.Before(c.StartTime):
		return false
	case !c.EndTime.IsZero() && !r.CreatedAt.Before(c.EndTime):
		return false
	}
	return true
}
