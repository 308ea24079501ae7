// Package requestid assigns each HTTP request a correlation id and carries
// it on the request context.
//
// The access middleware copies the id into the tenant scope, so audit
// records of cross-tenant runs and isolation alerts can be joined with the
// request logs:
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
//	r.Use(access.Middleware(identity))
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	auditLog := audit.NewLogger(storage, audit.WithRequestIDExtractor(requestid.Extractor()))
//
// Client supplied ids longer than 128 characters or containing anything but
// letters, digits, '-' and '_' are replaced.
package requestid
