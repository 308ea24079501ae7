// Package audit records privileged actions in an append-only trail.
//
// The bypass package writes exactly one Record for every cross-tenant run:
// who ran it, which tenant they were acting from, the reason given, and
// whether it succeeded, failed or panicked. Records are never updated or
// deleted by this package, and the bundled Postgres migration backs that
// with a trigger on the audit_records table.
//
// # Storage
//
//   - MemoryStorage keeps records in process, for tests.
//   - PGStorage writes to audit_records through pgx.
//   - MongoStorage writes to a MongoDB collection.
//   - AsyncWriter batches writes into any BatchStorage while still
//     reporting each record's storage error to its caller.
//
// # Usage
//
//	storage := audit.NewPGStorage(pool)
//	logger := audit.NewLogger(storage,
//		audit.WithActorExtractor(tenant.PrincipalExtractor()),
//		audit.WithTenantIDExtractor(tenant.IDExtractor()),
//		audit.WithRequestIDExtractor(tenant.RequestIDExtractor()),
//		audit.WithRedactor(audit.NewRedactor("card_*")),
//	)
//
//	err := logger.Log(ctx, "tenant.export", audit.WithReason("quarterly report"))
//
// Read records back with Reader:
//
//	records, err := audit.NewReader(storage).Find(ctx, audit.Criteria{BypassOnly: true, Limit: 50})
package audit
