package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/user"
)

const userColumns = `id, email, username, full_name, password_hash, role, enabled, must_change_password, avatar_url, last_login_at, created_at, updated_at`

func scanUser(row scannable) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FullName, &u.PasswordHash, &u.Role, &u.Enabled,
		&u.MustChangePassword, &u.AvatarURL, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Email, u.Username, u.FullName, u.PasswordHash, u.Role, u.Enabled,
		u.MustChangePassword, u.AvatarURL, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return constraintWrap(err, "create user %s", u.Email)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get user %s", id)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, notFoundWrap(err, "get user by email %s", email)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username))
	if err != nil {
		return nil, notFoundWrap(err, "get user by username %s", username)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, search string, page domain.Page) ([]user.User, error) {
	var w where
	if search != "" {
		p := likePattern(search)
		w.add("(email ILIKE ? OR username ILIKE ? OR full_name ILIKE ?)", p, p, p)
	}
	q := `SELECT ` + userColumns + ` FROM users` + w.sql() + ` ORDER BY created_at` + w.page(page)

	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := collect(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET email = $2, username = $3, full_name = $4, password_hash = $5, role = $6,
		       enabled = $7, must_change_password = $8, avatar_url = $9, last_login_at = $10, updated_at = $11
		WHERE id = $1`,
		u.ID, u.Email, u.Username, u.FullName, u.PasswordHash, u.Role,
		u.Enabled, u.MustChangePassword, u.AvatarURL, u.LastLoginAt, u.UpdatedAt,
	)
	return execExpectOne(tag, err, "update user %s", u.ID)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete user %s", id)
}

// ListUserIDs returns the IDs of all enabled users.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users WHERE enabled ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return collect(rows, func(r scannable) (string, error) {
		var id string
		return id, r.Scan(&id)
	})
}
