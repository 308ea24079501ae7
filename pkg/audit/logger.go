package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextExtractor reads a value from the request context; found is false
// when the value is absent.
type contextExtractor func(context.Context) (string, bool)

// Option configures a Logger.
type Option func(*Logger)

// WithActorExtractor sets how the acting principal is read from the context.
func WithActorExtractor(fn contextExtractor) Option {
	return func(l *Logger) { l.actor = fn }
}

func WithTenantIDExtractor(fn contextExtractor) Option {
	return func(l *Logger) { l.tenantID = fn }
}

func WithRequestIDExtractor(fn contextExtractor) Option {
	return func(l *Logger) { l.requestID = fn }
}

// WithRedactor removes sensitive metadata before records are stored.
func WithRedactor(r *Redactor) Option {
	return func(l *Logger) { l.redactor = r }
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// Logger writes audit records populated from the request context.
type Logger struct {
	storage   Storage
	actor     contextExtractor
	tenantID  contextExtractor
	requestID contextExtractor
	redactor  *Redactor
	now       func() time.Time
}

// NewLogger creates a logger. It panics when storage is nil.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action.
func (l *Logger) Log(ctx context.Context, action string, opts ...RecordOption) error {
	r := l.fromContext(ctx)
	r.Action = action
	r.Result = ResultSuccess
	return l.Write(ctx, r, opts...)
}

// LogError records a failed action.
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...RecordOption) error {
	r := l.fromContext(ctx)
	r.Action = action
	r.Result = ResultFailure
	if err != nil {
		r.Error = err.Error()
	}
	return l.Write(ctx, r, opts...)
}

// Write stores r after applying opts. Missing identity fields are filled
// from the context, ID and CreatedAt are always assigned here.
func (l *Logger) Write(ctx context.Context, r Record, opts ...RecordOption) error {
	base := l.fromContext(ctx)
	if r.Actor == "" {
		r.Actor = base.Actor
	}
	if r.TenantIDClaimed == "" {
		r.TenantIDClaimed = base.TenantIDClaimed
	}
	if r.RequestID == "" {
		r.RequestID = base.RequestID
	}
	r.ID = uuid.New().String()
	r.CreatedAt = l.now().UTC()

	for _, opt := range opts {
		opt(&r)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if l.redactor != nil {
		r.Metadata = l.redactor.Redact(r.Metadata)
	}

	return l.storage.Store(ctx, r)
}

func (l *Logger) fromContext(ctx context.Context) Record {
	var r Record
	if l.actor != nil {
		if v, ok := l.actor(ctx); ok {
			r.Actor = v
		}
	}
	if l.tenantID != nil {
		if v, ok := l.tenantID(ctx); ok {
			r.TenantIDClaimed = v
		}
	}
	if l.requestID != nil {
		if v, ok := l.requestID(ctx); ok {
			r.RequestID = v
		}
	}
	return r
}
