package bypass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tenantguard/pkg/audit"
	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

const (
	DefaultAction       = "bypass.run"
	DefaultFanOutAction = "bypass.for_each_tenant"

	unknownActor = "unknown"
)

// Auditor persists audit records. *audit.Logger satisfies it.
type Auditor interface {
	Write(ctx context.Context, record audit.Record, opts ...audit.RecordOption) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithEnabled turns the bypass path on. It is off by default.
func WithEnabled(enabled bool) Option {
	return func(r *Runner) { r.enabled = enabled }
}

// WithConfig applies an environment-loaded Config.
func WithConfig(cfg Config) Option {
	return func(r *Runner) {
		r.enabled = cfg.Enabled
		if cfg.AuditTimeout > 0 {
			r.auditTimeout = cfg.AuditTimeout
		}
		if cfg.Concurrency > 0 {
			r.concurrency = cfg.Concurrency
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithConcurrency bounds the parallelism of ForEachTenant.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMetrics counts runs as tenantguard_bypass_runs_total{action,result}.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(r *Runner) {
		runs := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantguard",
			Name:      "bypass_runs_total",
			Help:      "Number of audited cross-tenant runs",
		}, []string{"action", "result"})
		if err := reg.Register(runs); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(errors.Join(ErrMetrics, err))
			}
			runs = are.ExistingCollector.(*prometheus.CounterVec)
		}
		r.runs = runs
	}
}

// RunOption describes one run for the audit trail.
type RunOption func(*run)

type run struct {
	action   string
	reason   string
	metadata map[string]any
}

func WithAction(action string) RunOption {
	return func(r *run) { r.action = action }
}

// WithReason records why the privileged principal needed cross-tenant access.
func WithReason(reason string) RunOption {
	return func(r *run) { r.reason = reason }
}

func WithMetadata(key string, value any) RunOption {
	return func(r *run) {
		if r.metadata == nil {
			r.metadata = make(map[string]any)
		}
		r.metadata[key] = value
	}
}

// Runner is the only way to run code without the tenant predicate. Each run
// requires a privileged scope installed by the access middleware and the
// runner to be enabled, and writes exactly one audit record whatever the
// outcome.
type Runner struct {
	auditor      Auditor
	enabled      bool
	log          *slog.Logger
	auditTimeout time.Duration
	concurrency  int
	runs         *prometheus.CounterVec
}

// New creates a runner. It panics when auditor is nil.
func New(auditor Auditor, opts ...Option) *Runner {
	if auditor == nil {
		panic("bypass: auditor cannot be nil")
	}
	r := &Runner{
		auditor:      auditor,
		log:          slog.Default(),
		auditTimeout: 5 * time.Second,
		concurrency:  4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether the bypass path is switched on.
func (r *Runner) Enabled() bool { return r.enabled }

// Run executes fn with a context whose scope is elevated: the scoped
// repository drops the tenant predicate and the connection binder sets the
// privileged marker. A panic in fn is audited and then re-raised. A failure
// to write the audit record is joined into the returned error.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error, opts ...RunOption) (err error) {
	ro := run{action: DefaultAction}
	for _, opt := range opts {
		opt(&ro)
	}

	s, err := r.authorize(ctx, ro)
	if err != nil {
		return err
	}
	elevated, err := tenant.Elevate(ctx)
	if err != nil {
		// The request was cleared between the check and the elevation.
		return r.deny(ctx, s, ro, err)
	}

	defer func() {
		p := recover()
		err = r.finish(ctx, s, ro, err, p)
		if p != nil {
			panic(p)
		}
	}()

	return fn(elevated)
}

// ForEachTenant runs fn once per tenant, each with an ordinary scope for that
// tenant, so row policies still apply to every call. It is the cross-tenant
// path for reporting that does not need the predicate dropped. The first
// error cancels the remaining calls. A panic in fn is re-raised on the
// calling goroutine once the other calls have stopped. One audit record
// covers the whole run.
func (r *Runner) ForEachTenant(ctx context.Context, tenantIDs []string, fn func(ctx context.Context, tenantID string) error, opts ...RunOption) (err error) {
	ro := run{action: DefaultFanOutAction}
	for _, opt := range opts {
		opt(&ro)
	}
	WithMetadata("tenants", tenantIDs)(&ro)

	s, err := r.authorize(ctx, ro)
	if err != nil {
		return err
	}
	if len(tenantIDs) == 0 {
		return r.deny(ctx, s, ro, ErrNoTenants)
	}

	defer func() {
		p := recover()
		err = r.finish(ctx, s, ro, err, p)
		if p != nil {
			panic(p)
		}
	}()

	var (
		panicOnce sync.Once
		panicked  any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range tenantIDs {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					panicOnce.Do(func() { panicked = p })
					err = fmt.Errorf("bypass: tenant %q panicked: %v", id, p)
				}
			}()
			tctx, err := tenant.Set(gctx, id,
				tenant.WithPrincipal(s.PrincipalID),
				tenant.WithRequestID(s.RequestID),
			)
			if err != nil {
				return fmt.Errorf("bypass: tenant %q: %w", id, err)
			}
			return fn(tctx, id)
		})
	}
	werr := g.Wait()
	if panicked != nil {
		panic(panicked)
	}
	return werr
}

// authorize checks the preconditions of a run. Every refusal is audited,
// including attempts from a context whose request has already been cleared.
func (r *Runner) authorize(ctx context.Context, ro run) (tenant.Scope, error) {
	s, ok := tenant.Get(ctx)
	switch {
	case !ok:
		return s, r.deny(ctx, s, ro, tenant.ErrContextNotSet)
	case !r.enabled:
		return s, r.deny(ctx, s, ro, ErrDisabled)
	case !s.Privileged:
		return s, r.deny(ctx, s, ro, tenant.ErrNotPrivileged)
	}
	return s, nil
}

// deny writes a denied record for an attempt that never ran and returns
// denied, joined with the audit error if the record was lost.
func (r *Runner) deny(ctx context.Context, s tenant.Scope, ro run, denied error) error {
	rec := r.record(s, ro)
	rec.BypassUsed = false
	rec.Result = audit.ResultDenied
	rec.Error = denied.Error()
	if aerr := r.write(ctx, rec); aerr != nil {
		return errors.Join(denied, aerr)
	}
	r.log.WarnContext(ctx, "bypass: denied",
		slog.String("action", ro.action),
		slog.String("actor", rec.Actor),
		slog.Any("error", denied),
	)
	return denied
}

func (r *Runner) finish(ctx context.Context, s tenant.Scope, ro run, runErr error, panicked any) error {
	rec := r.record(s, ro)
	switch {
	case panicked != nil:
		rec.Result = audit.ResultPanic
		rec.Error = fmt.Sprint(panicked)
	case runErr != nil:
		rec.Result = audit.ResultFailure
		rec.Error = runErr.Error()
	default:
		rec.Result = audit.ResultSuccess
	}

	if aerr := r.write(ctx, rec); aerr != nil {
		r.log.ErrorContext(ctx, "bypass: audit record lost",
			slog.String("action", ro.action),
			slog.String("actor", rec.Actor),
			slog.String("result", string(rec.Result)),
			slog.Any("error", aerr),
		)
		return errors.Join(runErr, aerr)
	}
	return runErr
}

func (r *Runner) record(s tenant.Scope, ro run) audit.Record {
	actor := s.PrincipalID
	if actor == "" {
		actor = unknownActor
	}
	return audit.Record{
		Actor:           actor,
		TenantIDClaimed: s.TenantID,
		BypassUsed:      true,
		RequestID:       s.RequestID,
		Action:          ro.action,
		Reason:          ro.reason,
		Metadata:        ro.metadata,
	}
}

// write stores rec with a context detached from the caller, so a cancelled
// request still leaves its audit record behind.
func (r *Runner) write(ctx context.Context, rec audit.Record) error {
	if r.runs != nil {
		r.runs.WithLabelValues(rec.Action, string(rec.Result)).Inc()
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.auditTimeout)
	defer cancel()
	if err := r.auditor.Write(wctx, rec); err != nil {
		return errors.Join(ErrAuditFailed, err)
	}
	return nil
}
