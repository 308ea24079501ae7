// Package scoped is the data-access layer for tenant-scoped tables. A
// Repository refuses to run without a tenant scope on the context and
// applies the scope to every statement it builds:
//
//   - reads, updates and deletes are conjoined with tenant_id = <scope tenant>;
//   - inserts are stamped with the scope tenant, and a disagreeing value is
//     rejected as a violation;
//   - the tenant column can never be updated;
//   - every row read back is checked against the scope before it is decoded.
//
// Only a scope elevated by the bypass package suppresses the predicate.
//
// Statements are built with squirrel and run on any pgx querier. When the
// querier is a pool configured by pg.Binder, the database row policy applies
// the same restriction a second time; a write rejected by that policy, or a
// foreign row that slips through, is returned as a *ViolationError (matching
// ErrPolicyViolation) and reported to the configured alert.Alerter.
//
// # Usage
//
//	type Order struct {
//		ID       string `db:"id"`
//		TenantID string `db:"tenant_id"`
//		Total    int64  `db:"total"`
//	}
//
//	orders := scoped.New[Order](pool, scoped.Table{
//		Name:    "orders",
//		Columns: []string{"id", "tenant_id", "total"},
//	}, scoped.WithAlerter(alerter))
//
//	list, err := orders.List(ctx, sq.Gt{"total": 100})
//	if errors.Is(err, tenant.ErrContextNotSet) {
//		// no tenant scope: nothing was queried
//	}
package scoped
