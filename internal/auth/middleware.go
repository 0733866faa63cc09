package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-registration/internal/config"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	rolesKey  contextKey = "roles"
)

// Middleware verifies bearer tokens against the OIDC issuer and stashes the
// subject plus roles in the request context.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	if cfg.OIDCIssuer == "" {
		panic("OIDC_ISSUER env var not set")
	}

	provider, err := oidc.NewProvider(context.Background(), cfg.OIDCIssuer)
	if err != nil {
		panic(fmt.Sprintf("Failed to create OIDC provider: %v", err))
	}

	verifier := provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			idToken, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			var claims tokenClaims
			if err := idToken.Claims(&claims); err != nil {
				http.Error(w, "failed to parse claims", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.Sub)
			ctx = context.WithValue(ctx, rolesKey, claims.roles())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff gates an endpoint behind the staff capability. It runs after
// Middleware and rejects before any business lookup happens.
func RequireStaff(staffRoles []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasAnyRole(r.Context(), staffRoles) {
				http.Error(w, "staff access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

// Roles returns the authenticated caller's roles.
func Roles(ctx context.Context) []string {
	if roles, ok := ctx.Value(rolesKey).([]string); ok {
		return roles
	}
	return nil
}

// HasAnyRole reports whether the caller holds at least one of the wanted
// roles.
func HasAnyRole(ctx context.Context, wanted []string) bool {
	held := Roles(ctx)
	for _, want := range wanted {
		for _, have := range held {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

type tokenClaims struct {
	Sub         string   `json:"sub"`
	Roles       []string `json:"roles"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// roles merges the flat claim with the Keycloak-style realm_access claim.
func (c tokenClaims) roles() []string {
	if len(c.Roles) > 0 {
		return c.Roles
	}
	return c.RealmAccess.Roles
}
