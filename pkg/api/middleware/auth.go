package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/config"
)

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	Subject  string
	Username string
	Email    string
	Roles    []string
	Groups   []string
	Guest    bool
}

// HasRole reports whether the identity carries a realm or client role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Context key type for storing the identity
type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFromContext retrieves the authenticated identity from the
// request context. Returns nil on unauthenticated routes or when
// called before the auth middleware has run.
func IdentityFromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// withIdentity stores the identity in the context and enriches the
// logging context with the acting subject.
func withIdentity(ctx context.Context, id *Identity) context.Context {
	if lc := logger.FromContext(ctx); lc != nil {
		ctx = logger.WithContext(ctx, lc.WithActor(id.Subject, "user"))
	}
	return context.WithValue(ctx, identityContextKey, id)
}

// extractBearerToken extracts the token from a Bearer Authorization header.
// Returns the token string and true if successful, or empty string and false if not.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	return parts[1], true
}

var errMissingToken = errors.New("missing bearer token")

// tokenClaims is the Keycloak claim shape the API consumes.
type tokenClaims struct {
	PreferredUsername string   `json:"preferred_username"`
	Email             string   `json:"email"`
	Guest             bool     `json:"guest"`
	Groups            []string `json:"groups"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	ResourceAccess map[string]struct {
		Roles []string `json:"roles"`
	} `json:"resource_access"`
}

// devClaims adds the registered claims so unverified dev-mode parsing
// can read the subject.
type devClaims struct {
	jwt.RegisteredClaims
	tokenClaims
}

// Authenticator validates bearer tokens against the configured OIDC
// issuer.
//
// The JWKS-backed verifier is created lazily on the first request so
// the server starts even when the issuer is briefly unreachable;
// concurrent first requests share one discovery round trip.
type Authenticator struct {
	cfg config.AuthConfig

	mu       sync.RWMutex
	verifier *oidc.IDTokenVerifier
	sf       singleflight.Group
}

// NewAuthenticator creates an authenticator for the auth configuration.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// idTokenVerifier returns the cached verifier, running OIDC discovery
// once under singleflight when it does not exist yet.
func (a *Authenticator) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	a.mu.RLock()
	v := a.verifier
	a.mu.RUnlock()
	if v != nil {
		return v, nil
	}

	result, err, _ := a.sf.Do("discovery", func() (any, error) {
		provider, err := oidc.NewProvider(ctx, a.cfg.IssuerURL())
		if err != nil {
			return nil, err
		}
		audience := a.cfg.Audience
		if audience == "" {
			audience = a.cfg.ClientID
		}
		verifier := provider.Verifier(&oidc.Config{ClientID: audience})

		a.mu.Lock()
		a.verifier = verifier
		a.mu.Unlock()
		return verifier, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*oidc.IDTokenVerifier), nil
}

// identify resolves the request's identity.
//
// With verification enabled the token signature, issuer, expiry and
// audience are all checked against the issuer's JWKS. With it disabled
// (local development) claims are read without verification, and a
// missing token maps to a fixed dev identity.
func (a *Authenticator) identify(r *http.Request) (*Identity, error) {
	token, ok := extractBearerToken(r)

	if !a.cfg.VerifyToken {
		if !ok {
			return &Identity{Subject: "dev", Username: "dev"}, nil
		}
		var claims devClaims
		if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
			return nil, err
		}
		return identityFromClaims(claims.Subject, &claims.tokenClaims, a.cfg.ClientID), nil
	}

	if !ok {
		return nil, errMissingToken
	}

	verifier, err := a.idTokenVerifier(r.Context())
	if err != nil {
		return nil, err
	}
	idToken, err := verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, err
	}

	var claims tokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}
	return identityFromClaims(idToken.Subject, &claims, a.cfg.ClientID), nil
}

func identityFromClaims(subject string, claims *tokenClaims, clientID string) *Identity {
	roles := append([]string(nil), claims.RealmAccess.Roles...)
	if client, ok := claims.ResourceAccess[clientID]; ok {
		roles = append(roles, client.Roles...)
	}
	return &Identity{
		Subject:  subject,
		Username: claims.PreferredUsername,
		Email:    claims.Email,
		Roles:    roles,
		Groups:   claims.Groups,
		Guest:    claims.Guest,
	}
}

// Authenticate is the bearer-auth middleware. Requests without a valid
// identity are rejected with 401.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.identify(r)
		if err != nil {
			logger.DebugCtx(r.Context(), "authentication failed", "error", err)
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Valid bearer token required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}
