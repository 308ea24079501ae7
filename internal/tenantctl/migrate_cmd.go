package tenantctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/migrations"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the isolation schema migrations",
		Long:  "Installs the session helper functions, the tenants registry and the audit log table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, _, cfg, err := a.openPG(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pg.Migrate(ctx, pool, migrations.FS, cfg, a.log); err != nil {
				return err
			}
			if a.output == outputJSON {
				return a.printJSON(map[string]string{"status": "applied"})
			}
			fmt.Fprintln(a.out, "Migrations applied")
			return nil
		},
	}
}
