package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/middleware"
)

type fakeValidator struct {
	tokens map[string]*user.TokenClaims
}

func (f *fakeValidator) ValidateAccessToken(_ context.Context, token string) (*user.TokenClaims, error) {
	c, ok := f.tokens[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

func newValidator() *fakeValidator {
	return &fakeValidator{tokens: map[string]*user.TokenClaims{
		"good": {UserID: "u-1", Email: "a@b.c", Username: "alice", Role: user.RoleUser},
		"mcp":  {UserID: "u-2", Email: "x@y.z", Username: "bob", Role: user.RoleAdmin, MustChangePassword: true},
	}}
}

func okHandler(t *testing.T, wantUser string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := middleware.UserFromContext(r.Context())
		if wantUser != "" && (u == nil || u.ID != wantUser) {
			t.Errorf("user = %+v, want id %q", u, wantUser)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_Disabled_InjectsDefaultAdmin(t *testing.T) {
	handler := middleware.Auth(nil, false, "access_token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := middleware.UserFromContext(r.Context())
		if u == nil {
			t.Fatal("expected user in context")
		}
		if u.Role != user.RoleAdmin {
			t.Errorf("role = %q, want admin", u.Role)
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuth_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		header   string
		cookie   string
		wantCode int
		wantUser string
	}{
		{name: "no credentials", path: "/api/v1/projects", wantCode: http.StatusUnauthorized},
		{name: "public path", path: "/api/v1/auth/login", wantCode: http.StatusOK},
		{name: "health", path: "/health", wantCode: http.StatusOK},
		{name: "bearer ok", path: "/api/v1/projects", header: "Bearer good", wantCode: http.StatusOK, wantUser: "u-1"},
		{name: "bearer invalid", path: "/api/v1/projects", header: "Bearer nope", wantCode: http.StatusUnauthorized},
		{name: "malformed header", path: "/api/v1/projects", header: "Token good", wantCode: http.StatusUnauthorized},
		{name: "cookie ok", path: "/api/v1/projects", cookie: "good", wantCode: http.StatusOK, wantUser: "u-1"},
		{name: "header wins over cookie", path: "/api/v1/projects", header: "Bearer nope", cookie: "good", wantCode: http.StatusUnauthorized},
		{name: "ws query token", path: "/ws?token=good", wantCode: http.StatusOK, wantUser: "u-1"},
		{name: "query token outside ws", path: "/api/v1/projects?token=good", wantCode: http.StatusUnauthorized},
		{name: "must change password blocked", path: "/api/v1/projects", header: "Bearer mcp", wantCode: http.StatusForbidden},
		{name: "must change password exempt", path: "/api/v1/auth/change-password", header: "Bearer mcp", wantCode: http.StatusOK, wantUser: "u-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Auth(newValidator(), true, "access_token")(okHandler(t, tt.wantUser))
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestAuth_ClaimsInContext(t *testing.T) {
	handler := middleware.Auth(newValidator(), true, "access_token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := middleware.ClaimsFromContext(r.Context())
		if c == nil || c.Username != "alice" {
			t.Errorf("claims = %+v", c)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", http.NoBody)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
}
