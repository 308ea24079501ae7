package audit

import "strings"

const redacted = "[redacted]"

// defaultRedactedKeys never belong in an audit trail.
var defaultRedactedKeys = []string{
	"password", "secret", "token", "access_token", "refresh_token", "api_key", "authorization", "private_key",
}

// Redactor replaces sensitive metadata values. Keys match case-insensitively;
// a key ending in "*" matches by prefix.
type Redactor struct {
	exact  map[string]struct{}
	prefix []string
}

// NewRedactor creates a redactor for the default sensitive keys plus keys.
func NewRedactor(keys ...string) *Redactor {
	r := &Redactor{exact: make(map[string]struct{})}
	for _, k := range append(append([]string(nil), defaultRedactedKeys...), keys...) {
		k = strings.ToLower(strings.TrimSpace(k))
		switch {
		case k == "":
		case strings.HasSuffix(k, "*"):
			r.prefix = append(r.prefix, strings.TrimSuffix(k, "*"))
		default:
			r.exact[k] = struct{}{}
		}
	}
	return r
}

// Redact returns a copy of metadata with sensitive values replaced.
func (r *Redactor) Redact(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if r.sensitive(k) {
			out[k] = redacted
			continue
		}
		out[k] = v
	}
	return out
}

func (r *Redactor) sensitive(key string) bool {
	key = strings.ToLower(key)
	if _, ok := r.exact[key]; ok {
		return true
	}
	for _, p := range r.prefix {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
