package tenantctl

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/pkg/pg"
	"github.com/dmitrymomot/tenantguard/pkg/rowpolicy"
)

type policyFlags struct {
	tables       []string
	tenantColumn string
}

func (f *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.tables, "table", "t", nil, "Tenant-scoped table, may be schema-qualified (repeatable)")
	cmd.Flags().StringVar(&f.tenantColumn, "tenant-column", rowpolicy.DefaultTenantColumn, "Column holding the owning tenant id")
	_ = cmd.MarkFlagRequired("table")
}

func (f *policyFlags) policies() []rowpolicy.Policy {
	out := make([]rowpolicy.Policy, 0, len(f.tables))
	for _, t := range f.tables {
		out = append(out, rowpolicy.Policy{Table: t, TenantColumn: f.tenantColumn})
	}
	return out
}

func newPolicyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage row policies of tenant-scoped tables",
	}
	cmd.AddCommand(
		newPolicySQLCmd(a),
		newPolicyApplyCmd(a),
		newPolicyVerifyCmd(a),
	)
	return cmd
}

func newPolicySQLCmd(a *app) *cobra.Command {
	var f policyFlags
	cmd := &cobra.Command{
		Use:     "sql",
		Short:   "Print a goose migration installing the policies",
		Example: `  tenantctl policy sql --table orders --table invoices > migrations/00004_orders_policy.sql`,
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			sql, err := rowpolicy.MigrationSQL(f.policies()...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.out, sql)
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func newPolicyApplyCmd(a *app) *cobra.Command {
	var f policyFlags
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Install the policies in one transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, binderCfg, _, err := a.openPG(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			var opts []rowpolicy.ApplyOption
			def := pg.DefaultBinderConfig()
			if binderCfg.TenantSetting != def.TenantSetting || binderCfg.PrivilegedSetting != def.PrivilegedSetting {
				opts = append(opts, rowpolicy.WithSettings(binderCfg.TenantSetting, binderCfg.PrivilegedSetting))
			}

			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()

			if err := rowpolicy.Apply(ctx, tx, f.policies(), opts...); err != nil {
				return err
			}
			if err := tx.Commit(ctx); err != nil {
				return err
			}
			a.log.InfoContext(ctx, "tenantctl: policies applied", "tables", f.tables)

			if a.output == outputJSON {
				return a.printJSON(map[string]any{"applied": f.tables})
			}
			for _, t := range f.tables {
				fmt.Fprintf(a.out, "Policy applied to %s\n", t)
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// ErrUnprotected is returned by policy verify when any table fails the check.
var ErrUnprotected = errors.New("one or more tables are not protected")

func newPolicyVerifyCmd(a *app) *cobra.Command {
	var tables []string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that tables have forced row security with a policy",
		Long:  "Exits non-zero when any table lacks enabled and forced row security or has no policy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, _, _, err := a.openPG(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses := make([]rowpolicy.Status, 0, len(tables))
			for _, t := range tables {
				st, err := rowpolicy.Inspect(ctx, pool, t)
				if err != nil && !errors.Is(err, rowpolicy.ErrTableNotFound) {
					return err
				}
				statuses = append(statuses, st)
			}
			if err := a.printStatuses(statuses); err != nil {
				return err
			}

			if err := rowpolicy.Verify(ctx, pool, tables...); err != nil {
				a.log.ErrorContext(ctx, "tenantctl: verification failed", "error", err)
				return ErrUnprotected
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&tables, "table", "t", nil, "Table to verify (repeatable)")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

type statusView struct {
	Table     string `json:"table"`
	Enabled   bool   `json:"enabled"`
	Forced    bool   `json:"forced"`
	Policies  int    `json:"policies"`
	Protected bool   `json:"protected"`
}

func (a *app) printStatuses(statuses []rowpolicy.Status) error {
	views := make([]statusView, 0, len(statuses))
	for _, st := range statuses {
		views = append(views, statusView{
			Table:     st.Table,
			Enabled:   st.Enabled,
			Forced:    st.Forced,
			Policies:  st.Policies,
			Protected: st.Protected(),
		})
	}
	if a.output == outputJSON {
		return a.printJSON(views)
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.Table,
			strconv.FormatBool(v.Enabled),
			strconv.FormatBool(v.Forced),
			strconv.Itoa(v.Policies),
			strconv.FormatBool(v.Protected),
		})
	}
	return a.printTable([]string{"TABLE", "ENABLED", "FORCED", "POLICIES", "PROTECTED"}, rows)
}
