package pg

import "time"

type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`                   // ConnectionString must use a role that is neither superuser nor BYPASSRLS.
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`      // MaxOpenConns is the maximum number of open connections to the database.
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`       // MaxIdleConns is the number of connections kept open while idle.
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`  // HealthCheckPeriod is the period between health checks.
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"` // MaxConnIdleTime is the maximum amount of time a connection may be idle to be reused.
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`  // MaxConnLifetime is the maximum amount of time a connection may be reused.

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`  // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"` // RetryInterval is the base interval between retry attempts.

	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"schema_migrations"` // MigrationsTable stores the applied migration version.
}

// BinderConfig names the session settings the row policies read.
type BinderConfig struct {
	// TenantSetting carries the bound tenant id; empty means deny.
	TenantSetting string `env:"PG_TENANT_SETTING" envDefault:"app.tenant_id"`
	// PrivilegedSetting is "on" only inside the audited bypass path.
	PrivilegedSetting string `env:"PG_PRIVILEGED_SETTING" envDefault:"app.privileged"`
	// ResetTimeout bounds the reset on checkin; a connection that cannot be reset is destroyed.
	ResetTimeout time.Duration `env:"PG_RESET_TIMEOUT" envDefault:"2s"`
}

// DefaultBinderConfig matches the settings used by the bundled migrations.
func DefaultBinderConfig() BinderConfig {
	return BinderConfig{
		TenantSetting:     "app.tenant_id",
		PrivilegedSetting: "app.privileged",
		ResetTimeout:      2 * time.Second,
	}
}
