package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups the non-nil errors under "errors". It returns an empty Attr
// when all are nil.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records err under "error", or returns an empty Attr for nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func TenantID(id string) slog.Attr {
	return slog.String("tenant_id", id)
}

func PrincipalID(id string) slog.Attr {
	return slog.String("principal_id", id)
}

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// Table records the database table an operation touched.
func Table(name string) slog.Attr {
	return slog.String("table", name)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}
