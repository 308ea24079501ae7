package audit

import (
	"fmt"
	"time"
)

// Result is the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	// ResultPanic marks an action that panicked; the panic is re-raised after
	// the record is written.
	ResultPanic Result = "panic"
	// ResultDenied marks an attempt refused before the action ran.
	ResultDenied Result = "denied"
)

// Record is one append-only audit entry. Records written by the bypass path
// have BypassUsed set; TenantIDClaimed is the tenant of the scope the
// privileged principal was acting from, if any.
type Record struct {
	ID              string         `json:"id" bson:"_id"`
	Actor           string         `json:"actor" bson:"actor"`
	TenantIDClaimed string         `json:"tenant_id_claimed,omitempty" bson:"tenant_id_claimed,omitempty"`
	BypassUsed      bool           `json:"bypass_used" bson:"bypass_used"`
	RequestID       string         `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Action          string         `json:"action" bson:"action"`
	Reason          string         `json:"reason,omitempty" bson:"reason,omitempty"`
	Result          Result         `json:"result" bson:"result"`
	Error           string         `json:"error,omitempty" bson:"error,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at" bson:"created_at"`
}

// Validate checks the fields every record must carry.
func (r *Record) Validate() error {
	switch {
	case r.Action == "":
		return fmt.Errorf("%w: action is required", ErrInvalidRecord)
	case r.Actor == "":
		return fmt.Errorf("%w: actor is required", ErrInvalidRecord)
	case r.Result == "":
		return fmt.Errorf("%w: result is required", ErrInvalidRecord)
	}
	return nil
}

// RecordOption adjusts a record before it is stored.
type RecordOption func(*Record)

func WithMetadata(key string, value any) RecordOption {
	return func(r *Record) {
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata[key] = value
	}
}

func WithReason(reason string) RecordOption {
	return func(r *Record) { r.Reason = reason }
}

func WithResult(result Result) RecordOption {
	return func(r *Record) { r.Result = result }
}

// WithBypass marks the record as written for a bypass run.
func WithBypass() RecordOption {
	return func(r *Record) { r.BypassUsed = true }
}

// WithActor overrides the actor taken from the context.
func WithActor(actor string) RecordOption {
	return func(r *Record) { r.Actor = actor }
}
