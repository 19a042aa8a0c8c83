package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/scrumix/scrumix/internal/config"
	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/port/database"
)

var (
	errInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	errAccountDisabled    = fmt.Errorf("%w: account is disabled", domain.ErrUnauthorized)
	errInvalidRefresh     = fmt.Errorf("%w: invalid refresh token", domain.ErrUnauthorized)
)

// AuthService handles accounts, password checks and JWT/refresh tokens.
type AuthService struct {
	store  database.Store
	cfg    *config.Auth
	secret []byte
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.Store, cfg *config.Auth) *AuthService {
	return &AuthService{
		store:  store,
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
	}
}

// Register creates a regular user account. Self-registration never grants admin.
func (s *AuthService) Register(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	req.Role = user.RoleUser
	return s.CreateUser(ctx, req)
}

// CreateUser creates an account with a bcrypt-hashed password and the requested role.
func (s *AuthService) CreateUser(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ts := now()
	u := &user.User{
		ID:           newID(),
		Email:        req.Email,
		Username:     req.Username,
		FullName:     req.FullName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Enabled:      true,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login authenticates by email or username and returns an access token plus
// the raw refresh token, which is only ever stored hashed.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (*user.LoginResponse, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	var (
		u   *user.User
		err error
	)
	if req.Email != "" {
		u, err = s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	} else {
		u, err = s.store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", errInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", errInvalidCredentials
	}
	if !u.Enabled {
		return nil, "", errAccountDisabled
	}

	ts := now()
	u.LastLoginAt = &ts
	if err := s.store.UpdateUser(ctx, u); err != nil {
		slog.Warn("failed to record last login", "user_id", u.ID, "error", err)
	}

	return s.issue(ctx, u)
}

// issue signs an access token and stores a new refresh token for u.
func (s *AuthService) issue(ctx context.Context, u *user.User) (*user.LoginResponse, string, error) {
	accessToken, err := s.signJWT(u)
	if err != nil {
		return nil, "", fmt.Errorf("sign jwt: %w", err)
	}

	rawToken, rt, err := s.newRefreshToken(u.ID)
	if err != nil {
		return nil, "", err
	}
	if err := s.store.CreateRefreshToken(ctx, rt); err != nil {
		return nil, "", fmt.Errorf("store refresh token: %w", err)
	}
	return s.response(accessToken, u), rawToken, nil
}

func (s *AuthService) newRefreshToken(userID string) (string, *user.RefreshToken, error) {
	rawToken, err := generateRandomToken(32)
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	ts := now()
	return rawToken, &user.RefreshToken{
		ID:        newID(),
		UserID:    userID,
		TokenHash: hashSHA256(rawToken),
		ExpiresAt: ts.Add(s.cfg.RefreshTokenExpiry),
		CreatedAt: ts,
	}, nil
}

func (s *AuthService) response(accessToken string, u *user.User) *user.LoginResponse {
	return &user.LoginResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(s.cfg.AccessTokenExpiry.Seconds()),
		User:        *u,
	}
}

// RefreshTokens validates a refresh token, atomically rotates it and issues
// a new access token.
func (s *AuthService) RefreshTokens(ctx context.Context, rawToken string) (*user.LoginResponse, string, error) {
	if rawToken == "" {
		return nil, "", errInvalidRefresh
	}
	tokenHash := hashSHA256(rawToken)

	rt, err := s.store.GetRefreshTokenByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", errInvalidRefresh
		}
		return nil, "", fmt.Errorf("get refresh token: %w", err)
	}
	if time.Now().After(rt.ExpiresAt) {
		return nil, "", fmt.Errorf("%w: refresh token expired", domain.ErrUnauthorized)
	}

	u, err := s.store.GetUser(ctx, rt.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if !u.Enabled {
		return nil, "", errAccountDisabled
	}

	accessToken, err := s.signJWT(u)
	if err != nil {
		return nil, "", fmt.Errorf("sign jwt: %w", err)
	}

	newRaw, newRT, err := s.newRefreshToken(u.ID)
	if err != nil {
		return nil, "", err
	}
	if err := s.store.RotateRefreshToken(ctx, tokenHash, newRT); err != nil {
		// A concurrent refresh already consumed the old token.
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", errInvalidRefresh
		}
		return nil, "", fmt.Errorf("rotate refresh token: %w", err)
	}
	return s.response(accessToken, u), newRaw, nil
}

// Logout deletes all refresh tokens of a user and revokes the current access
// token by JTI. Pass an empty jti to skip revocation.
func (s *AuthService) Logout(ctx context.Context, userID, jti string, tokenExpiry time.Time) error {
	if jti != "" {
		if err := s.store.RevokeToken(ctx, jti, tokenExpiry); err != nil {
			slog.Warn("failed to revoke access token on logout", "jti", jti, "error", err)
		}
	}
	return s.store.DeleteRefreshTokensByUser(ctx, userID)
}

// ValidateAccessToken verifies a JWT and returns its claims. Revocation is
// checked fail-closed.
func (s *AuthService) ValidateAccessToken(ctx context.Context, tokenStr string) (*user.TokenClaims, error) {
	claims, err := s.verifyJWT(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnauthorized, err.Error())
	}

	revoked, err := s.store.IsTokenRevoked(ctx, claims.JTI)
	if err != nil {
		slog.Error("token revocation check failed, denying token", "jti", claims.JTI, "error", err)
		return nil, fmt.Errorf("%w: unable to verify token status", domain.ErrUnauthorized)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token has been revoked", domain.ErrUnauthorized)
	}
	return claims, nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID string) (*user.User, error) {
	return s.store.GetUser(ctx, userID)
}

// UpdateProfile applies the caller's own profile changes.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req user.ProfileUpdate) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		u.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Username != nil {
		u.Username = strings.TrimSpace(*req.Username)
	}
	if req.AvatarURL != nil {
		u.AvatarURL = *req.AvatarURL
	}
	u.UpdatedAt = now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns accounts matching search.
func (s *AuthService) ListUsers(ctx context.Context, search string, page domain.Page) ([]user.User, error) {
	return s.store.ListUsers(ctx, search, page)
}

// GetUser returns a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*user.User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateUser applies an admin change of name, role or enabled flag.
// Disabling an account drops its refresh tokens.
func (s *AuthService) UpdateUser(ctx context.Context, id string, req user.UpdateRequest) (*user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != "" {
		u.FullName = req.FullName
	}
	if req.Role != "" {
		if !user.ValidRoles[req.Role] {
			return nil, domain.Invalid("invalid role: must be admin or user")
		}
		u.Role = req.Role
	}
	if req.Enabled != nil {
		u.Enabled = *req.Enabled
	}
	u.UpdatedAt = now()

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	if !u.Enabled {
		if err := s.store.DeleteRefreshTokensByUser(ctx, u.ID); err != nil {
			slog.Warn("failed to drop refresh tokens of disabled user", "user_id", u.ID, "error", err)
		}
	}
	return u, nil
}

// DeleteUser removes a user and their refresh tokens.
func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	return s.store.DeleteUser(ctx, id)
}

// ResetPassword sets a new password without checking the old one and forces
// a change at next login.
func (s *AuthService) ResetPassword(ctx context.Context, id, password string) error {
	if len(password) < user.MinPasswordLength {
		return domain.Invalid("password must be at least 8 characters")
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.MustChangePassword = true
	u.UpdatedAt = now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return err
	}
	return s.store.DeleteRefreshTokensByUser(ctx, u.ID)
}

// SeedDefaultAdmin creates the initial admin user if no users exist.
func (s *AuthService) SeedDefaultAdmin(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx, "", domain.Page{Limit: 1})
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}
	if s.cfg.DefaultAdminPass == "" {
		slog.Warn("no users exist and no default admin password is configured")
		return nil
	}

	u, err := s.CreateUser(ctx, &user.CreateRequest{
		Email:    s.cfg.DefaultAdminEmail,
		Username: s.cfg.DefaultAdminUsername,
		FullName: "Administrator",
		Password: s.cfg.DefaultAdminPass,
		Role:     user.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	u.MustChangePassword = true
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("set must_change_password: %w", err)
	}

	slog.Info("seeded default admin user", "email", u.Email)
	return nil
}

// EnsureUser stores u unless a user with its ID already exists. It backs the
// synthetic identity used when authentication is disabled.
func (s *AuthService) EnsureUser(ctx context.Context, u *user.User) error {
	_, err := s.store.GetUser(ctx, u.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	ts := now()
	row := *u
	row.CreatedAt, row.UpdatedAt = ts, ts
	if err := s.store.CreateUser(ctx, &row); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// ChangePassword verifies the old password, stores the new hash and clears
// the MustChangePassword flag.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req user.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)); err != nil {
		return domain.Invalid("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u.PasswordHash = string(hash)
	u.MustChangePassword = false
	u.UpdatedAt = now()

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// StartTokenCleanup periodically purges expired revoked tokens until ctx is
// cancelled.
func (s *AuthService) StartTokenCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.store.PurgeExpiredTokens(ctx)
				if err != nil {
					slog.Warn("failed to purge expired tokens", "error", err)
				} else if n > 0 {
					slog.Info("purged expired revoked tokens", "count", n)
				}
			}
		}
	}()
}

// --- JWT (HS256) ---

var jwtHeader = base64URLEncode([]byte(`{"alg":"HS256","typ":"JWT"}`))

func (s *AuthService) signJWT(u *user.User) (string, error) {
	ts := time.Now()
	claims := user.TokenClaims{
		UserID:             u.ID,
		Email:              u.Email,
		Username:           u.Username,
		Role:               u.Role,
		IssuedAt:           ts.Unix(),
		Expiry:             ts.Add(s.cfg.AccessTokenExpiry).Unix(),
		JTI:                newID(),
		Audience:           s.cfg.Audience,
		Issuer:             s.cfg.Issuer,
		MustChangePassword: u.MustChangePassword,
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := jwtHeader + "." + base64URLEncode(payload)
	return signingInput + "." + s.sign(signingInput), nil
}

func (s *AuthService) sign(input string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(input))
	return base64URLEncode(mac.Sum(nil))
}

func (s *AuthService) verifyJWT(tokenStr string) (*user.TokenClaims, error) {
	parts := strings.SplitN(tokenStr, ".", 3)
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}
	if parts[0] != jwtHeader {
		return nil, errors.New("unsupported token header")
	}

	expected := s.sign(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return nil, errors.New("invalid signature")
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var claims user.TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	switch {
	case time.Now().Unix() > claims.Expiry:
		return nil, errors.New("token expired")
	case claims.Audience != s.cfg.Audience:
		return nil, errors.New("invalid token audience")
	case claims.Issuer != s.cfg.Issuer:
		return nil, errors.New("invalid token issuer")
	case claims.UserID == "" || claims.JTI == "":
		return nil, errors.New("incomplete token claims")
	}
	return &claims, nil
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

func hashSHA256(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

func generateRandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
