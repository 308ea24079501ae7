// Package rowpolicy generates, applies and verifies the PostgreSQL row-level
// security policies that back tenant isolation in the database itself.
//
// Every tenant-scoped table gets one policy whose USING and WITH CHECK
// clauses both read
//
//	tenant_id::text = app_current_tenant() OR app_is_privileged()
//
// The helper functions read the session settings written by pg.Binder and
// are installed by the bundled migrations. Row security is forced, so the
// policy also applies to the table owner, and a trigger rejects updates that
// change the tenant column. An unbound session sees no rows and cannot write
// any.
//
//	policies := []rowpolicy.Policy{{Table: "orders"}, {Table: "invoices"}}
//	if err := rowpolicy.Apply(ctx, tx, policies); err != nil {
//		return err
//	}
//	if err := rowpolicy.Verify(ctx, pool, "orders", "invoices"); err != nil {
//		return err // rowpolicy.ErrPolicyMissing or rowpolicy.ErrTableNotFound
//	}
//
// MigrationSQL renders the same statements as a goose migration file.
package rowpolicy
