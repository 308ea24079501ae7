package bypass

import "time"

// Config is the operational switch for the bypass path.
type Config struct {
	Enabled      bool          `env:"TENANTGUARD_ALLOW_BYPASS" envDefault:"false"`
	AuditTimeout time.Duration `env:"TENANTGUARD_BYPASS_AUDIT_TIMEOUT" envDefault:"5s"`
	Concurrency  int           `env:"TENANTGUARD_BYPASS_CONCURRENCY" envDefault:"4"`
}
