package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/logger"
	"github.com/scrumix/scrumix/internal/middleware"
)

func TestRequireRole(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		user     *user.User
		wantCode int
	}{
		{name: "admin allowed", user: &user.User{ID: "a", Role: user.RoleAdmin}, wantCode: http.StatusOK},
		{name: "user denied", user: &user.User{ID: "b", Role: user.RoleUser}, wantCode: http.StatusForbidden},
		{name: "anonymous", user: nil, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inject := func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if tt.user != nil {
						r = r.WithContext(middleware.WithUser(r.Context(), tt.user))
					}
					next.ServeHTTP(w, r)
				})
			}
			handler := inject(middleware.RequireRole(user.RoleAdmin)(inner))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", http.NoBody))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestRequireRole_DisabledAuthAdmin(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.Auth(nil, false, "access_token")(middleware.RequireRole(user.RoleAdmin)(inner))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireRole_MultipleRolesMessage(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.RequireRole(user.RoleAdmin, "auditor")(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", http.NoBody)
	req = req.WithContext(middleware.WithUser(req.Context(), &user.User{ID: "u", Role: user.RoleUser}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "admin or auditor privileges required") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestWithUser_TagsLogContext(t *testing.T) {
	ctx := middleware.WithUser(context.Background(), &user.User{ID: "user-9"})
	if got := logger.UserID(ctx); got != "user-9" {
		t.Errorf("log user_id = %q, want user-9", got)
	}
	if got := middleware.UserFromContext(ctx); got == nil || got.ID != "user-9" {
		t.Errorf("UserFromContext = %+v", got)
	}
}
