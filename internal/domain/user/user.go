// Package user defines the user domain model for authentication and authorization.
package user

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
)

// Role represents the system-wide authorization level of a user.
// Project-level scrum roles live in the project package.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ValidRoles is the set of all valid user roles.
var ValidRoles = map[Role]bool{
	RoleAdmin: true,
	RoleUser:  true,
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

// User represents a registered user.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Username           string     `json:"username"`
	FullName           string     `json:"full_name"`
	PasswordHash       string     `json:"-"` // never serialized
	Role               Role       `json:"role"`
	Enabled            bool       `json:"enabled"`
	MustChangePassword bool       `json:"must_change_password"`
	AvatarURL          string     `json:"avatar_url,omitempty"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Summary is the public projection of a user embedded in other resources.
type Summary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Summarize returns the public projection of u.
func (u *User) Summarize() Summary {
	return Summary{ID: u.ID, Username: u.Username, FullName: u.FullName, Email: u.Email}
}

// CreateRequest is the input for registering a new user.
type CreateRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
	Role     Role   `json:"role"`
}

// Normalize trims whitespace and lower-cases the email.
func (r *CreateRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	r.FullName = strings.TrimSpace(r.FullName)
	if r.Role == "" {
		r.Role = RoleUser
	}
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Email == "" {
		return domain.Invalid("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return domain.Invalid("invalid email format")
	}
	if r.Username == "" {
		return domain.Invalid("username is required")
	}
	if !usernamePattern.MatchString(r.Username) {
		return domain.Invalid("username must be 3-50 characters of letters, digits, '.', '_' or '-'")
	}
	if r.Password == "" {
		return domain.Invalid("password is required")
	}
	if len(r.Password) < MinPasswordLength {
		return domain.Invalid("password must be at least 8 characters")
	}
	if !ValidRoles[r.Role] {
		return domain.Invalid("invalid role: must be admin or user")
	}
	return nil
}

// UpdateRequest is the admin input for updating an existing user.
type UpdateRequest struct {
	FullName string `json:"full_name,omitempty"`
	Role     Role   `json:"role,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// ProfileUpdate is the self-service input for updating one's own profile.
type ProfileUpdate struct {
	FullName  *string `json:"full_name,omitempty"`
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Validate checks the optional fields that were supplied.
func (r *ProfileUpdate) Validate() error {
	if r.Username != nil && !usernamePattern.MatchString(*r.Username) {
		return domain.Invalid("username must be 3-50 characters of letters, digits, '.', '_' or '-'")
	}
	return nil
}

// LoginRequest is the input for user authentication. Either Email or
// Username identifies the account.
type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks that the LoginRequest has all required fields.
func (r *LoginRequest) Validate() error {
	if r.Email == "" && r.Username == "" {
		return domain.Invalid("email or username is required")
	}
	if r.Password == "" {
		return domain.Invalid("password is required")
	}
	return nil
}

// ChangePasswordRequest is the input for changing one's own password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"` //nolint:gosec // request field
	NewPassword string `json:"new_password"` //nolint:gosec // request field
}

// Validate checks both passwords are present and the new one is long enough.
func (r *ChangePasswordRequest) Validate() error {
	if r.OldPassword == "" {
		return domain.Invalid("old_password is required")
	}
	if len(r.NewPassword) < MinPasswordLength {
		return domain.Invalid("new password must be at least 8 characters")
	}
	if r.NewPassword == r.OldPassword {
		return domain.Invalid("new password must differ from the old one")
	}
	return nil
}

// LoginResponse is returned after successful authentication.
type LoginResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // response field, not a hardcoded secret
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds until access token expires
	User        User   `json:"user"`
}

// TokenClaims contains the JWT payload fields.
type TokenClaims struct {
	UserID             string `json:"sub"`
	Email              string `json:"email"`
	Username           string `json:"username"`
	Role               Role   `json:"role"`
	IssuedAt           int64  `json:"iat"`
	Expiry             int64  `json:"exp"`
	JTI                string `json:"jti"`
	Audience           string `json:"aud"`
	Issuer             string `json:"iss"`
	MustChangePassword bool   `json:"mcp,omitempty"`
}

// RefreshToken represents a stored refresh token.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
