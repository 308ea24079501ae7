package access

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the credential payload understood by JWTResolver.
type Claims struct {
	jwt.RegisteredClaims
	Tenants       []string `json:"tenants,omitempty"`
	DefaultTenant string   `json:"tid,omitempty"`
	Privileged    bool     `json:"priv,omitempty"`
}

// TokenExtractor reads the raw token from a request. It returns an empty
// string when the request carries none.
type TokenExtractor func(r *http.Request) string

// BearerToken reads "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// CookieToken reads the token from the named cookie.
func CookieToken(name string) TokenExtractor {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

// JWTOption configures a JWTResolver.
type JWTOption func(*JWTResolver)

func WithIssuer(iss string) JWTOption {
	return func(j *JWTResolver) { j.issuer = iss }
}

func WithAudience(aud string) JWTOption {
	return func(j *JWTResolver) { j.audience = aud }
}

// WithLeeway tolerates clock skew when validating exp and nbf.
func WithLeeway(d time.Duration) JWTOption {
	return func(j *JWTResolver) { j.leeway = d }
}

func WithTokenExtractor(fn TokenExtractor) JWTOption {
	return func(j *JWTResolver) {
		if fn != nil {
			j.extract = fn
		}
	}
}

// JWTResolver authenticates HS256 tokens issued by the identity provider and
// turns their claims into a Principal: sub is the principal id, tenants the
// granted tenants, tid the default tenant and priv the privileged flag.
type JWTResolver struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	extract  TokenExtractor
	now      func() time.Time
}

// NewJWTResolver creates a resolver verifying tokens with secret.
func NewJWTResolver(secret string, opts ...JWTOption) (*JWTResolver, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	j := &JWTResolver{
		secret:  []byte(secret),
		extract: BearerToken,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Resolve implements IdentityResolver.
func (j *JWTResolver) Resolve(r *http.Request) (*Principal, error) {
	raw := j.extract(r)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.leeway),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(j.audience))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, parserOpts...); err != nil {
		return nil, errors.Join(ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, errors.Join(ErrUnauthenticated, ErrInvalidClaims)
	}

	return &Principal{
		ID:            claims.Subject,
		Tenants:       claims.Tenants,
		DefaultTenant: claims.DefaultTenant,
		Privileged:    claims.Privileged,
	}, nil
}

// Issue signs a token for p valid for ttl. It is meant for tooling and tests;
// production credentials come from the identity provider.
func (j *JWTResolver) Issue(p Principal, ttl time.Duration) (string, error) {
	if p.ID == "" {
		return "", ErrInvalidClaims
	}
	now := j.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Tenants:       p.Tenants,
		DefaultTenant: p.DefaultTenant,
		Privileged:    p.Privileged,
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}
