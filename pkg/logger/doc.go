// Package logger builds the structured slog loggers used across tenantguard.
//
// New returns a *slog.Logger whose handler is wrapped by LogHandlerDecorator,
// which adds attributes read from the record's context. WithIsolationContext
// registers the tenant scope and request id extractors, so every record
// logged with a request context names the tenant it was produced for:
//
//	var cfg logger.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	log := logger.New(logger.WithConfig(cfg), logger.WithIsolationContext())
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "order listed", logger.Table("orders"))
//
// Attributes are evaluated per record: once a request's tenant scope is
// released, records logged with its context no longer carry the tenant.
package logger
