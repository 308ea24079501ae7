package tenantctl

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/pkg/audit"
)

func newAuditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the audit trail of cross-tenant runs",
	}
	cmd.AddCommand(newAuditListCmd(a))
	return cmd
}

type auditListFlags struct {
	backend    string
	actor      string
	tenantID   string
	action     string
	result     string
	requestID  string
	bypassOnly bool
	since      time.Duration
	limit      int
	offset     int
}

func (f auditListFlags) criteria(now time.Time) audit.Criteria {
	c := audit.Criteria{
		Actor:      f.actor,
		TenantID:   f.tenantID,
		Action:     f.action,
		Result:     audit.Result(f.result),
		RequestID:  f.requestID,
		BypassOnly: f.bypassOnly,
		Limit:      f.limit,
		Offset:     f.offset,
	}
	if f.since > 0 {
		c.StartTime = now.Add(-f.since)
	}
	return c
}

func newAuditListCmd(a *app) *cobra.Command {
	var f auditListFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit records, newest first",
		Example: `  tenantctl audit list --bypass-only --since 24h
  tenantctl audit list --actor admin-1 --result denied -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			backend := f.backend
			if backend == "" {
				backend = a.cfg.AuditBackend
			}
			storage, closeFn, err := a.openAudit(ctx, backend)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := audit.NewReader(storage).Find(ctx, f.criteria(time.Now()))
			if err != nil {
				return err
			}
			return a.printRecords(records)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.backend, "backend", "", "Audit storage: postgres or mongo (default from TENANTGUARD_AUDIT_BACKEND)")
	fl.StringVar(&f.actor, "actor", "", "Only records of this principal")
	fl.StringVar(&f.tenantID, "tenant", "", "Only records claimed from this tenant")
	fl.StringVar(&f.action, "action", "", "Only records of this action")
	fl.StringVar(&f.result, "result", "", "Only records with this result: success, failure, panic or denied")
	fl.StringVar(&f.requestID, "request-id", "", "Only records of this request")
	fl.BoolVar(&f.bypassOnly, "bypass-only", false, "Only records where the tenant predicate was dropped")
	fl.DurationVar(&f.since, "since", 0, "Only records newer than this")
	fl.IntVar(&f.limit, "limit", 50, "Maximum number of records")
	fl.IntVar(&f.offset, "offset", 0, "Number of records to skip")
	return cmd
}

func (a *app) printRecords(records []audit.Record) error {
	if a.output == outputJSON {
		if records == nil {
			records = []audit.Record{}
		}
		return a.printJSON(records)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		bypass := "no"
		if r.BypassUsed {
			bypass = "yes"
		}
		rows = append(rows, []string{
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Actor,
			orDash(r.TenantIDClaimed),
			bypass,
			r.Action,
			string(r.Result),
			orDash(r.RequestID),
			orDash(r.Reason),
		})
	}
	return a.printTable([]string{"CREATED_AT", "ACTOR", "TENANT", "BYPASS", "ACTION", "RESULT", "REQUEST_ID", "REASON"}, rows)
}
