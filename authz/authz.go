// Package authz authenticates administrative callers: manual tier override
// and emergency-mode activation both require a bearer token identifying a
// human admin, never just possession of a maintainer signing key.
package authz

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/forgepolicy/gatekeeper/gaterr"
)

// HeaderAuthorization is the header carrying the admin bearer token.
const HeaderAuthorization = "Authorization"

// Principal is an authenticated admin identity, used as the audit Actor and
// the activating identity recorded against emergency-mode and override
// entries.
type Principal struct {
	Subject string
	Scopes  []string
}

// HasScope reports whether p was granted scope.
func (p Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Scopes a Principal may carry. ScopeEmergencyMode is deliberately separate
// from ScopeOverrideTier: emergency-mode activation waives the review period and the
// economic veto, a materially larger blast radius than a single tier bump.
const (
	ScopeOverrideTier  = "gatekeeper:override-tier"
	ScopeEmergencyMode = "gatekeeper:emergency-mode"
)

var (
	// ErrMissingToken means the caller presented no bearer token at all.
	ErrMissingToken = gaterr.New(gaterr.KindAuthorization, "missing admin bearer token")
	// ErrInvalidToken means the token failed signature or claim validation.
	ErrInvalidToken = gaterr.New(gaterr.KindAuthorization, "invalid admin bearer token")
	// ErrInsufficientScope means the token verified but lacks the scope the
	// requested operation needs.
	ErrInsufficientScope = gaterr.New(gaterr.KindAuthorization, "admin token lacks required scope")
)

// claims is the JWT payload shape: a subject and a space-separated scope
// string, following the conventional OAuth2 "scope" claim.
type claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Verifier validates admin bearer tokens against a fixed HMAC secret. A real
// deployment may instead verify against an external IdP's public key; the
// Verifier's public surface (Authenticate) does not change either way.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier keyed by secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Authenticate parses and validates a bearer token, returning the admin
// Principal it identifies. It never mutates caller state; rejecting a token
// here must leave everything untouched, per SPEC_FULL.md's admin-layer
// requirement that unauthenticated or improperly scoped callers cause no
// state change.
func (v *Verifier) Authenticate(tokenString string) (Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Principal{}, ErrMissingToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return Principal{}, ErrInvalidToken
	}

	return Principal{Subject: c.Subject, Scopes: strings.Fields(c.Scope)}, nil
}

// FromRequest extracts and authenticates the bearer token carried in r's
// Authorization header.
func (v *Verifier) FromRequest(r *http.Request) (Principal, error) {
	header := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	if header == "" {
		return Principal{}, ErrMissingToken
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Principal{}, ErrInvalidToken
	}
	return v.Authenticate(strings.TrimSpace(strings.TrimPrefix(header, prefix)))
}

// RequireScope authenticates r and checks that the resulting Principal
// carries scope, returning an authorization error (never mutating caller
// state) when either step fails.
func (v *Verifier) RequireScope(r *http.Request, scope string) (Principal, error) {
	principal, err := v.FromRequest(r)
	if err != nil {
		return Principal{}, err
	}
	if !principal.HasScope(scope) {
		return Principal{}, ErrInsufficientScope
	}
	return principal, nil
}

type contextKey int

const principalKey contextKey = 0

// WithPrincipal attaches principal to ctx, for handlers downstream of an
// authenticating middleware to retrieve via FromContext.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// FromContext retrieves the Principal attached by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
