// Package pg provides the PostgreSQL side of tenant isolation on top of the
// pgx/v5 driver: a connection pool whose connections are bound to the
// tenant of whoever checks them out, goose migrations, health checks and
// error classification helpers.
//
// # Session binding
//
// Row-level security policies decide visibility from two session settings
// (by default app.tenant_id and app.privileged). Binder is the only writer of
// those settings. Binder.Configure installs two pool hooks:
//
//   - BeforeAcquire binds the identity found on the acquiring context: the
//     tenant id of its tenant.Scope, or the privileged marker when the scope
//     was elevated by the bypass path, or the denying state when no scope is
//     present. A connection that cannot be bound is discarded.
//
//   - AfterRelease resets the settings to the denying state with a detached
//     timeout, so a cancelled request still cleans up. A connection that
//     cannot be reset is discarded instead of being returned to the pool.
//
// Every checkout binds and every checkin resets, so a connection never
// carries a previous tenant into the next unit of work.
//
// # Usage
//
//	var cfg pg.Config
//	var bcfg pg.BinderConfig
//	config.MustLoad(&cfg)
//	config.MustLoad(&bcfg)
//
//	binder := pg.NewBinder(bcfg, log)
//	pool, err := pg.Connect(ctx, cfg, binder)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//		return err
//	}
//
// The database role in PG_CONN_URL must not be a superuser and must not have
// BYPASSRLS, otherwise the row policies are not evaluated.
//
// # Error Handling
//
// IsRowSecurityViolation reports writes rejected by a row policy; the scoped
// repository turns those into policy violations. IsNotFoundError,
// IsDuplicateKeyError and IsForeignKeyViolationError classify the usual cases.
package pg
