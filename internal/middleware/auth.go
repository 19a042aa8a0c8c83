package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/logger"
)

type authUserCtxKey struct{}
type claimsCtxKey struct{}

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*user.TokenClaims, error)
}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":               true,
	"/health/ready":         true,
	"/api/v1/auth/login":    true,
	"/api/v1/auth/register": true,
	"/api/v1/auth/refresh":  true,
}

// passwordChangeExempt paths are allowed even when MustChangePassword is true.
var passwordChangeExempt = map[string]bool{
	"/api/v1/auth/change-password": true,
	"/api/v1/auth/logout":          true,
	"/api/v1/auth/me":              true,
}

// DefaultUserID identifies the synthetic admin injected when auth is disabled.
const DefaultUserID = "00000000-0000-0000-0000-000000000000"

// Auth returns middleware that validates JWT credentials. The token is taken
// from the Authorization bearer header first, then from the access cookie
// named cookieName. On /ws the ?token= query parameter is also accepted.
// When authEnabled is false, a default admin context is injected.
func Auth(validator TokenValidator, authEnabled bool, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				defaultUser := &user.User{
					ID:       DefaultUserID,
					Email:    "admin@localhost",
					Username: "admin",
					FullName: "Admin",
					Role:     user.RoleAdmin,
					Enabled:  true,
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), defaultUser)))
				return
			}

			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := extractToken(w, r, cookieName)
			if !ok {
				return
			}

			claims, err := validator.ValidateAccessToken(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if claims.MustChangePassword && !passwordChangeExempt[r.URL.Path] {
				writeAuthError(w, http.StatusForbidden, "password change required")
				return
			}

			u := &user.User{
				ID:                 claims.UserID,
				Email:              claims.Email,
				Username:           claims.Username,
				Role:               claims.Role,
				Enabled:            true,
				MustChangePassword: claims.MustChangePassword,
			}

			ctx := context.WithValue(WithUser(r.Context(), u), claimsCtxKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken finds the access token on the request or writes a 401.
func extractToken(w http.ResponseWriter, r *http.Request, cookieName string) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || token == "" {
			writeAuthError(w, http.StatusUnauthorized, "invalid authorization header")
			return "", false
		}
		return token, true
	}

	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}

	if r.URL.Path == "/ws" {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, true
		}
	}

	writeAuthError(w, http.StatusUnauthorized, "authorization required")
	return "", false
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + strings.ReplaceAll(msg, `"`, `'`) + `"}`))
}

// UserFromContext returns the authenticated user from the request context.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}

// ClaimsFromContext returns the verified token claims, or nil when auth is disabled.
func ClaimsFromContext(ctx context.Context) *user.TokenClaims {
	c, _ := ctx.Value(claimsCtxKey{}).(*user.TokenClaims)
	return c
}

// WithUser returns a context carrying u as the authenticated user. The user
// ID is also attached to log records written with the context.
func WithUser(ctx context.Context, u *user.User) context.Context {
	if u != nil {
		ctx = logger.WithUserID(ctx, u.ID)
	}
	return context.WithValue(ctx, authUserCtxKey{}, u)
}
