package mongo

import "errors"

var (
	ErrMissingURL             = errors.New("mongo connection url is required")
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")
)
