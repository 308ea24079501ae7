package alert

import (
	"context"
	"log/slog"
)

// Op names the data-access operation that produced a violation.
type Op string

const (
	OpFind   Op = "find"
	OpList   Op = "list"
	OpCount  Op = "count"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Kind classifies how a violation was detected.
type Kind string

const (
	// KindForeignRow means a row of another tenant was returned to the
	// application layer.
	KindForeignRow Kind = "foreign_row"
	// KindRowPolicy means the database row policy rejected a write.
	KindRowPolicy Kind = "row_policy"
	// KindTenantMismatch means the caller supplied a tenant id that disagrees
	// with the active scope, or tried to change a row's tenant.
	KindTenantMismatch Kind = "tenant_mismatch"
)

// Violation is a detected breach of tenant isolation. Every violation is a
// bug somewhere in the stack and must reach an operator.
type Violation struct {
	Kind        Kind
	Table       string
	Op          Op
	TenantID    string
	RowTenantID string
	RequestID   string
	Err         error
}

// Alerter receives violations. Implementations must be safe for concurrent use
// and must not block the request for long.
type Alerter interface {
	Alert(ctx context.Context, v *Violation)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(ctx context.Context, v *Violation)

func (f AlerterFunc) Alert(ctx context.Context, v *Violation) { f(ctx, v) }

// NoOp drops violations.
type NoOp struct{}

func (NoOp) Alert(context.Context, *Violation) {}

// LogAlerter writes violations at error level.
type LogAlerter struct {
	log *slog.Logger
}

func NewLogAlerter(log *slog.Logger) *LogAlerter {
	if log == nil {
		log = slog.Default()
	}
	return &LogAlerter{log: log}
}

func (a *LogAlerter) Alert(ctx context.Context, v *Violation) {
	if v == nil {
		return
	}
	attrs := []any{
		slog.String("kind", string(v.Kind)),
		slog.String("table", v.Table),
		slog.String("op", string(v.Op)),
		slog.String("scope_tenant_id", v.TenantID),
	}
	if v.RowTenantID != "" {
		attrs = append(attrs, slog.String("row_tenant_id", v.RowTenantID))
	}
	if v.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", v.RequestID))
	}
	if v.Err != nil {
		attrs = append(attrs, slog.Any("error", v.Err))
	}
	a.log.ErrorContext(ctx, "tenant isolation violation", attrs...)
}

// Multi fans a violation out to every alerter.
func Multi(alerters ...Alerter) Alerter {
	list := make([]Alerter, 0, len(alerters))
	for _, a := range alerters {
		if a != nil {
			list = append(list, a)
		}
	}
	return multi(list)
}

type multi []Alerter

func (m multi) Alert(ctx context.Context, v *Violation) {
	for _, a := range m {
		a.Alert(ctx, v)
	}
}
