// Package bypass is the single audited path for cross-tenant work.
//
// Runner.Run elevates the tenant scope of a privileged principal so that the
// scoped repository stops adding the tenant predicate and the connection
// binder marks the database session as privileged. Every run writes exactly
// one audit record, on success, failure and panic alike. A run is refused
// unless the runner is enabled (off by default, see Config) and the scope was
// marked privileged by the access middleware; refused attempts by a scoped
// principal are audited as denied.
//
//	runner := bypass.New(auditLogger, bypass.WithConfig(cfg))
//
//	err := runner.Run(ctx, func(ctx context.Context) error {
//		orders, err := repo.List(ctx) // every tenant's orders
//		...
//	}, bypass.WithAction("report.orders"), bypass.WithReason("monthly revenue"))
//
// Runner.ForEachTenant is the narrower alternative for reports that only
// need to visit several tenants: each call runs under an ordinary scope for
// one tenant, so row policies keep applying, and the run as a whole is
// audited once.
package bypass
