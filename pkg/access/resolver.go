package access

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	// MaxTenantIDLength keeps identifiers DNS-compatible.
	MaxTenantIDLength = 63

	DefaultTenantHeader = "X-Tenant-ID"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// TenantResolver extracts the requested tenant from a request.
// It returns an empty string when the request names no tenant.
type TenantResolver func(r *http.Request) (string, error)

func validIdentifier(id string) bool {
	return id != "" && len(id) <= MaxTenantIDLength && identifierPattern.MatchString(id)
}

func checked(source, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if !validIdentifier(value) {
		return "", fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, source, value)
	}
	return value, nil
}

// HeaderResolver reads the tenant from a request header, X-Tenant-ID by default.
func HeaderResolver(name string) TenantResolver {
	if name == "" {
		name = DefaultTenantHeader
	}
	return func(r *http.Request) (string, error) {
		return checked("header", r.Header.Get(name))
	}
}

// PathResolver reads the tenant from the 1-based path segment at position.
// Position 2 reads "acme" from /stores/acme/orders.
func PathResolver(position int) TenantResolver {
	return func(r *http.Request) (string, error) {
		if position < 1 {
			return "", fmt.Errorf("access: invalid path position %d", position)
		}
		path := strings.Trim(r.URL.Path, "/")
		if path == "" {
			return "", nil
		}
		parts := strings.Split(path, "/")
		if position > len(parts) {
			return "", nil
		}
		return checked("path segment", parts[position-1])
	}
}

// SubdomainResolver reads the tenant from the first label of the host,
// skipping "www". Hosts without a subdomain.domain.tld shape yield nothing.
// When suffix is set, only hosts ending in it are considered.
func SubdomainResolver(suffix string) TenantResolver {
	return func(r *http.Request) (string, error) {
		host := r.Host
		if i := strings.LastIndex(host, ":"); i != -1 {
			host = host[:i]
		}
		if suffix != "" {
			if !strings.HasSuffix(host, suffix) || len(host) <= len(suffix) {
				return "", nil
			}
		}

		labels := strings.Split(host, ".")
		if len(labels) < 3 {
			return "", nil
		}
		sub := labels[0]
		if sub == "www" {
			if len(labels) < 4 {
				return "", nil
			}
			sub = labels[1]
		}
		return checked("subdomain", sub)
	}
}

// URLParamResolver reads a chi route parameter. The middleware must run
// inside the router for the parameter to be populated.
func URLParamResolver(name string) TenantResolver {
	return func(r *http.Request) (string, error) {
		return checked("url param", chi.URLParam(r, name))
	}
}

// CompositeResolver returns the first non-empty result of resolvers. A
// malformed identifier in a source consulted before the match fails the
// request instead of falling through.
func CompositeResolver(resolvers ...TenantResolver) TenantResolver {
	return func(r *http.Request) (string, error) {
		var errs []error
		for _, resolve := range resolvers {
			id, err := resolve(r)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if id != "" && len(errs) == 0 {
				return id, nil
			}
		}
		return "", errors.Join(errs...)
	}
}
