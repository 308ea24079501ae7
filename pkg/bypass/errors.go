package bypass

import "errors"

var (
	ErrDisabled    = errors.New("bypass: cross-tenant path is disabled")
	ErrAuditFailed = errors.New("bypass: failed to write audit record")
	ErrNoTenants   = errors.New("bypass: no tenants given")
	ErrMetrics     = errors.New("bypass: failed to register metrics")
)
