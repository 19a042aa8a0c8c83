package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/user"
)

func (s *Store) uniqueUser(u *user.User) error {
	for _, other := range s.users {
		if other.ID == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return exists("user email %s", u.Email)
		}
		if strings.EqualFold(other.Username, u.Username) {
			return exists("username %s", u.Username)
		}
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return exists("user %s", u.ID)
	}
	if err := s.uniqueUser(u); err != nil {
		return err
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("get user %s", id)
	}
	return &u, nil
}

func (s *Store) findUser(match func(user.User) bool) (*user.User, bool) {
	for _, u := range s.users {
		if match(u) {
			return &u, true
		}
	}
	return nil, false
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.findUser(func(u user.User) bool { return strings.EqualFold(u.Email, email) })
	if !ok {
		return nil, notFound("get user by email %s", email)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.findUser(func(u user.User) bool { return strings.EqualFold(u.Username, username) })
	if !ok {
		return nil, notFound("get user by username %s", username)
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context, search string, p domain.Page) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.users, func(u user.User) bool { return matches(search, u.Email, u.Username, u.FullName) })
	slices.SortFunc(out, byCreated(func(u user.User) time.Time { return u.CreatedAt }))
	return page(out, p), nil
}

func (s *Store) UpdateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return notFound("update user %s", u.ID)
	}
	if err := s.uniqueUser(u); err != nil {
		return err
	}
	u.UpdatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

// DeleteUser removes the user with their memberships, assignments,
// authorships, tokens and deliveries.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return notFound("delete user %s", id)
	}
	delete(s.users, id)
	for k := range s.members {
		if k.userID == id {
			delete(s.members, k)
		}
	}
	for h, rt := range s.refreshTokens {
		if rt.UserID == id {
			delete(s.refreshTokens, h)
		}
	}
	unlinkOther(s.taskAssignees, id)
	unlinkOther(s.docAuthors, id)
	for k := range s.deliveries {
		if k.otherID == id {
			delete(s.deliveries, k)
		}
	}
	for bid, b := range s.backlogs {
		if b.AssigneeID != nil && *b.AssigneeID == id {
			b.AssigneeID = nil
			s.backlogs[bid] = b
		}
	}
	for nid, n := range s.notes {
		if n.AuthorID != nil && *n.AuthorID == id {
			n.AuthorID = nil
			s.notes[nid] = n
		}
	}
	for nid, n := range s.notifications {
		if n.CreatedBy != nil && *n.CreatedBy == id {
			n.CreatedBy = nil
			s.notifications[nid] = n
		}
	}
	for aid, a := range s.actionItems {
		if a.AssigneeID != nil && *a.AssigneeID == id {
			a.AssigneeID = nil
			s.actionItems[aid] = a
		}
	}
	return nil
}

func (s *Store) ListUserIDs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := values(s.users, func(u user.User) bool { return u.Enabled })
	slices.SortFunc(users, byCreated(func(u user.User) time.Time { return u.CreatedAt }))
	ids := make([]string, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	return ids, nil
}

// --- Tokens ---

func (s *Store) CreateRefreshToken(_ context.Context, rt *user.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rt.UserID]; !ok {
		return notFound("user %s", rt.UserID)
	}
	rt.CreatedAt = s.now()
	s.refreshTokens[rt.TokenHash] = *rt
	return nil
}

func (s *Store) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*user.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.refreshTokens[tokenHash]
	if !ok {
		return nil, notFound("get refresh token")
	}
	return &rt, nil
}

func (s *Store) DeleteRefreshTokensByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, rt := range s.refreshTokens {
		if rt.UserID == userID {
			delete(s.refreshTokens, h)
		}
	}
	return nil
}

func (s *Store) RotateRefreshToken(_ context.Context, oldTokenHash string, newRT *user.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refreshTokens[oldTokenHash]; !ok {
		return notFound("lock old token")
	}
	delete(s.refreshTokens, oldTokenHash)
	newRT.CreatedAt = s.now()
	s.refreshTokens[newRT.TokenHash] = *newRT
	return nil
}

func (s *Store) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.revoked[jti]; !ok {
		s.revoked[jti] = expiresAt
	}
	return nil
}

func (s *Store) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *Store) PurgeExpiredTokens(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for jti, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, jti)
			n++
		}
	}
	for h, rt := range s.refreshTokens {
		if rt.ExpiresAt.Before(now) {
			delete(s.refreshTokens, h)
			n++
		}
	}
	return n, nil
}
