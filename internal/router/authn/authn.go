// Package authn validates the bearer tokens carried on every router request (spec
// §4.6 "Authorization"): either a static HMAC key or an OIDC issuer's JWKS, with a
// required project-access claim enforced per request.
package authn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// subjectClaims is the ordered list of claim keys accepted as the request's subject,
// per spec §4.6.
var subjectClaims = []string{"sub", "oid", "user_id", "username", "email", "upn", "appid"}

// Options configures the authenticator (spec §6 env vars).
type Options struct {
	Issuer             string
	Audience           string
	ProjectClaimKey    string // default "infraweave-projects"
	JWKSURL            string
	SigningKey         string // HMAC secret; mutually exclusive with JWKSURL
	Insecure           bool   // dev-mode: disables all checks; MUST be explicit
}

// Identity is the authenticated caller, resolved from token claims.
type Identity struct {
	Subject  string
	Projects []string
	// AllProjects is set only on the Insecure dev-mode identity, which passes every
	// project-scope check.
	AllProjects bool
}

// HasProject reports whether id is scoped to project.
func (id Identity) HasProject(project string) bool {
	if id.AllProjects {
		return true
	}
	for _, p := range id.Projects {
		if p == project {
			return true
		}
	}
	return false
}

// Authenticator validates bearer tokens into an Identity.
type Authenticator struct {
	opts Options

	mu    sync.Mutex
	cache *jwksCache
}

func New(opts Options) (*Authenticator, error) {
	if opts.ProjectClaimKey == "" {
		opts.ProjectClaimKey = "infraweave-projects"
	}
	if !opts.Insecure && opts.JWKSURL == "" && opts.SigningKey == "" {
		return nil, apperrors.New(apperrors.Malformed, "authn: neither JWKS URL nor signing key configured")
	}
	return &Authenticator{opts: opts}, nil
}

// Authenticate validates rawToken and returns the caller's Identity. In Insecure mode
// (spec §4.6 "MUST be refused by default") it returns an Identity scoped to every
// project without validating anything; callers must gate this mode behind an explicit
// config flag.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string) (Identity, error) {
	if a.opts.Insecure {
		return Identity{Subject: "insecure-dev", AllProjects: true}, nil
	}
	if rawToken == "" {
		return Identity{}, apperrors.New(apperrors.Unauthenticated, "missing bearer token")
	}

	keyFunc, err := a.keyFunc(ctx)
	if err != nil {
		return Identity{}, err
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, keyFunc,
		jwt.WithAudience(a.opts.Audience),
		jwt.WithIssuer(a.opts.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, apperrors.Wrap(apperrors.InvalidToken, err, "token validation failed")
	}

	subject := ""
	for _, key := range subjectClaims {
		if v, ok := claims[key].(string); ok && v != "" {
			subject = v
			break
		}
	}
	if subject == "" {
		return Identity{}, apperrors.New(apperrors.InvalidToken, "no recognized subject claim present")
	}

	projects, err := extractProjects(claims, a.opts.ProjectClaimKey)
	if err != nil {
		return Identity{}, err
	}

	return Identity{Subject: subject, Projects: projects}, nil
}

func (a *Authenticator) keyFunc(ctx context.Context) (jwt.Keyfunc, error) {
	if a.opts.SigningKey != "" {
		return func(*jwt.Token) (any, error) { return []byte(a.opts.SigningKey), nil }, nil
	}

	a.mu.Lock()
	if a.cache == nil {
		jwksURL := a.opts.JWKSURL
		if jwksURL == "" {
			jwksURL = fmt.Sprintf("%s/.well-known/jwks.json", a.opts.Issuer)
		}
		a.cache = newJWKSCache(jwksURL)
	}
	cache := a.cache
	a.mu.Unlock()

	return cache.keyfunc(ctx), nil
}

func extractProjects(claims jwt.MapClaims, key string) ([]string, error) {
	raw, ok := claims[key]
	if !ok {
		return nil, apperrors.New(apperrors.Forbidden, "token carries no %q claim", key)
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, apperrors.New(apperrors.Malformed, "unexpected type for %q claim", key)
	}
}

// httpClientTimeout bounds JWKS discovery requests (spec §5 "every network operation
// has a bounded timeout").
const httpClientTimeout = 30 * time.Second
