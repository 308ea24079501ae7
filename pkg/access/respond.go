package access

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/tenantguard/pkg/scoped"
	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

// ErrorHandler writes the response for a request the middleware rejected.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusCode maps isolation errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, tenant.ErrContextNotSet):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorizedTenantAccess), errors.Is(err, tenant.ErrTenantSuspended):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, scoped.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(status int, err error) string {
	switch {
	case errors.Is(err, tenant.ErrTenantSuspended):
		return "tenant_suspended"
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status == http.StatusForbidden:
		return "forbidden"
	case status == http.StatusBadRequest:
		return "bad_request"
	case status == http.StatusNotFound:
		return "not_found"
	default:
		return "internal_server_error"
	}
}

// DefaultErrorHandler responds with a JSON error whose message is the status
// text only. Server-side failures, isolation violations included, are logged
// in full and stay opaque to the client.
func DefaultErrorHandler(log *slog.Logger) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status := StatusCode(err)

		level := slog.LevelInfo
		msg := "access: request rejected"
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
			msg = "access: request failed"
			if errors.Is(err, scoped.ErrPolicyViolation) {
				msg = "access: tenant isolation violation"
			}
		}
		log.Log(r.Context(), level, msg,
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)

		writeError(w, status, errorCode(status, err))
	}
}

// WriteError responds to a request whose handler failed with err, using the
// same mapping as the middleware.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	DefaultErrorHandler(slog.Default())(w, r, err)
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{
		Code:    code,
		Message: http.StatusText(status),
	}})
}

// Recoverer turns panics in the wrapped handler into an opaque 500. It must
// wrap the access middleware so the tenant scope is already released when
// the panic is handled. http.ErrAbortHandler is re-raised.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	handle := DefaultErrorHandler(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				err, ok := p.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", p)
				}
				handle(w, r, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
