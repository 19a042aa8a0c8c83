package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/middleware"
)

func (h *Handlers) sameSite() http.SameSite {
	switch strings.ToLower(h.Cookies.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (h *Handlers) cookie(name, value, path string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: h.sameSite(),
		MaxAge:   int(maxAge / time.Second),
	}
	if maxAge < 0 {
		c.MaxAge = -1
	}
	return c
}

func (h *Handlers) refreshPath() string {
	if h.Cookies.RefreshPath == "" {
		return "/api/v1/auth"
	}
	return h.Cookies.RefreshPath
}

// setSession writes the access and refresh cookies.
func (h *Handlers) setSession(w http.ResponseWriter, resp *user.LoginResponse, rawRefresh string) {
	http.SetCookie(w, h.cookie(h.Cookies.AccessName, resp.AccessToken, "/", time.Duration(resp.ExpiresIn)*time.Second))
	http.SetCookie(w, h.cookie(h.Cookies.RefreshName, rawRefresh, h.refreshPath(), h.RefreshExpiry))
}

func (h *Handlers) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(h.Cookies.AccessName, "", "/", -1))
	http.SetCookie(w, h.cookie(h.Cookies.RefreshName, "", h.refreshPath(), -1))
}

// Register handles POST /api/v1/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	u, err := h.Auth.Register(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.LoginRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}

	resp, rawRefresh, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		slog.Debug("login failed", "email", req.Email, "username", req.Username, "error", err)
		writeDomainError(w, err, "")
		return
	}

	h.setSession(w, resp, rawRefresh)
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(h.Cookies.RefreshName)
	if err != nil || c.Value == "" {
		writeError(w, http.StatusUnauthorized, "no refresh token")
		return
	}

	resp, rawRefresh, err := h.Auth.RefreshTokens(r.Context(), c.Value)
	if err != nil {
		slog.Debug("token refresh failed", "error", err)
		h.clearSession(w)
		writeDomainError(w, err, "")
		return
	}

	h.setSession(w, resp, rawRefresh)
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	var jti string
	var expiry time.Time
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		jti = claims.JTI
		expiry = time.Unix(claims.Expiry, 0)
	}

	if err := h.Auth.Logout(r.Context(), u.ID, jti, expiry); err != nil {
		writeInternalError(w, err)
		return
	}

	h.clearSession(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[user.ChangePasswordRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if err := h.Auth.ChangePassword(r.Context(), u.ID, req); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

// Me handles GET /api/v1/auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	me, err := h.Auth.Me(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// UpdateMe handles PUT /api/v1/auth/me
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[user.ProfileUpdate](w, r, h.bodyLimit())
	if !ok {
		return
	}
	me, err := h.Auth.UpdateProfile(r.Context(), u.ID, req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// ListUsers handles GET /api/v1/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	users, err := h.Auth.ListUsers(r.Context(), r.URL.Query().Get("search"), page)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeList(w, users)
}

// GetUser handles GET /api/v1/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.GetUser(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// CreateUser handles POST /api/v1/users (admin only)
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	u, err := h.Auth.CreateUser(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// UpdateUser handles PUT /api/v1/users/{id} (admin only)
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	u, err := h.Auth.UpdateUser(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DeleteUser handles DELETE /api/v1/users/{id} (admin only)
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.DeleteUser(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
