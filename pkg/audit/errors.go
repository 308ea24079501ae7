package audit

import "errors"

var (
	ErrInvalidRecord       = errors.New("audit: invalid record")
	ErrStorageNotAvailable = errors.New("audit: storage is unavailable")
	ErrStoreFailed         = errors.New("audit: failed to store record")
	ErrQueryFailed         = errors.New("audit: failed to query records")
)
