package scoped

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/tenantguard/pkg/alert"
)

var (
	ErrNotFound        = errors.New("scoped: record not found")
	ErrPolicyViolation = errors.New("scoped: tenant isolation policy violation")
	ErrTenantRequired  = errors.New("scoped: insert under bypass requires an explicit tenant id")
	ErrNoValues        = errors.New("scoped: no values to write")
	ErrInvalidTable    = errors.New("scoped: invalid table definition")
	ErrKeyRequired     = errors.New("scoped: key is required")
)

// ViolationError carries the detail of a detected isolation breach. It
// matches ErrPolicyViolation with errors.Is. The detail is for operators;
// handlers must not expose it to end users.
type ViolationError struct {
	Violation alert.Violation
}

func (e *ViolationError) Error() string {
	v := e.Violation
	msg := fmt.Sprintf("scoped: tenant isolation violation (%s) on %s during %s", v.Kind, v.Table, v.Op)
	if v.Err != nil {
		msg += ": " + v.Err.Error()
	}
	return msg
}

func (e *ViolationError) Is(target error) bool {
	return target == ErrPolicyViolation
}

func (e *ViolationError) Unwrap() error {
	return e.Violation.Err
}
