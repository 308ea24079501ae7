package tenantctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/pkg/config"
	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/redis"
	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

func newTenantsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Inspect the tenants registry",
	}

	var table string
	active := &cobra.Command{
		Use:   "active",
		Short: "List the ids of active tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, _, _, err := a.openPG(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			ids, err := tenant.NewPGProvider(pool, table).ListActive(ctx)
			if err != nil {
				return err
			}
			if a.output == outputJSON {
				if ids == nil {
					ids = []string{}
				}
				return a.printJSON(ids)
			}
			for _, id := range ids {
				fmt.Fprintln(a.out, id)
			}
			return nil
		},
	}
	active.Flags().StringVar(&table, "registry-table", tenant.DefaultTenantsTable, "Table holding the tenants registry")

	cmd.AddCommand(active, newTenantsInvalidateCmd(a))
	return cmd
}

// newTenantsInvalidateCmd drops shared cache entries so a suspension takes
// effect before the cache TTL runs out.
func newTenantsInvalidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <tenant-id>...",
		Short: "Remove tenants from the shared Redis cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, ids []string) error {
			ctx := cmd.Context()
			var cfg redis.Config
			if err := config.Load(&cfg, a.loadOptions()...); err != nil {
				return err
			}
			client, err := redis.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(); err != nil {
					a.log.WarnContext(ctx, "tenantctl: redis close", logger.Error(err))
				}
			}()

			cache := tenant.NewRedisCache(client, cfg.KeyPrefix, 0)
			for _, id := range ids {
				if err := cache.Delete(ctx, id); err != nil {
					return fmt.Errorf("invalidate %s: %w", id, err)
				}
				a.log.InfoContext(ctx, "tenantctl: tenant cache entry removed", logger.TenantID(id))
			}
			if a.output == outputJSON {
				return a.printJSON(map[string]any{"invalidated": ids})
			}
			fmt.Fprintf(a.out, "Invalidated %d tenant(s)\n", len(ids))
			return nil
		},
	}
}
