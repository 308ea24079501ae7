package alert

import "errors"

// ErrDuplicateMetric is returned when the violation counter is already
// registered on the registry.
var ErrDuplicateMetric = errors.New("alert: metric already registered")
