package rowpolicy

import "errors"

var (
	ErrInvalidPolicy  = errors.New("rowpolicy: policy requires a table name")
	ErrInvalidSetting = errors.New("rowpolicy: setting names must have the form prefix.name")
	ErrApplyFailed    = errors.New("rowpolicy: failed to apply policy")
	ErrTableNotFound  = errors.New("rowpolicy: table not found")
	ErrPolicyMissing  = errors.New("rowpolicy: table is not protected by a forced row policy")
)
