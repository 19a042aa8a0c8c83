package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/scrumix/scrumix/internal/domain/user"
)

// RequireRole restricts a route to callers holding one of roles. It must run
// after Auth: requests without a user get 401, other roles get 403.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		allowed[r] = true
		names = append(names, string(r))
	}
	denied := strings.Join(names, " or ") + " privileges required"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			switch {
			case u == nil:
				writeAuthError(w, http.StatusUnauthorized, "authorization required")
			case !allowed[u.Role]:
				slog.WarnContext(r.Context(), "role check failed",
					"path", r.URL.Path, "role", u.Role, "required", names)
				writeAuthError(w, http.StatusForbidden, denied)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
