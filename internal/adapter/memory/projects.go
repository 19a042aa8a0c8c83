package memory

import (
	"context"
	"slices"
	"time"

	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/project"
)

func (s *Store) CreateProject(_ context.Context, p *project.Project, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return exists("project %s", p.ID)
	}
	if _, ok := s.users[ownerID]; !ok {
		return notFound("add project owner %s", ownerID)
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt, p.LastActivityAt = now, now, now
	p.Version = 1
	s.projects[p.ID] = *p
	s.members[memberKey{p.ID, ownerID}] = project.Member{ProjectID: p.ID, UserID: ownerID, Role: project.RoleOwner, JoinedAt: now}
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, notFound("get project %s", id)
	}
	return &p, nil
}

func (s *Store) ListProjects(_ context.Context, f project.Filter) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.projects, func(p project.Project) bool {
		if f.MemberID != "" {
			if _, ok := s.members[memberKey{p.ID, f.MemberID}]; !ok {
				return false
			}
		}
		if f.Status != "" && p.Status != f.Status {
			return false
		}
		return matches(f.Search, p.Name, p.Description)
	})
	slices.SortFunc(out, func(a, b project.Project) int { return b.LastActivityAt.Compare(a.LastActivityAt) })
	return page(out, f.Page), nil
}

func (s *Store) UpdateProject(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.projects[p.ID]
	if !ok {
		return notFound("update project %s", p.ID)
	}
	if cur.Version != p.Version {
		return conflict("update project %s", p.ID)
	}
	now := s.now()
	p.Version++
	p.UpdatedAt, p.LastActivityAt = now, now
	p.CreatedAt = cur.CreatedAt
	s.projects[p.ID] = *p
	return nil
}

// touch bumps a project's activity timestamp. Callers hold the write lock.
func (s *Store) touch(projectID string) {
	if p, ok := s.projects[projectID]; ok {
		p.LastActivityAt = s.now()
		s.projects[projectID] = p
	}
}

// DeleteProject removes the project and everything it owns.
func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return notFound("delete project %s", id)
	}
	delete(s.projects, id)
	for k := range s.members {
		if k.projectID == id {
			delete(s.members, k)
		}
	}
	for sid, sp := range s.sprints {
		if sp.ProjectID == id {
			s.dropSprint(sid)
		}
	}
	for bid, b := range s.backlogs {
		if b.ProjectID == id {
			s.dropBacklog(bid)
		}
	}
	for mid, m := range s.meetings {
		if m.ProjectID == id {
			s.dropMeeting(mid)
		}
	}
	for did, d := range s.docs {
		if d.ProjectID == id {
			s.dropDoc(did)
		}
	}
	for nid, n := range s.notifications {
		if n.ProjectID != nil && *n.ProjectID == id {
			s.dropNotification(nid)
		}
	}
	return nil
}

func (s *Store) ProjectStats(_ context.Context, projectID string) (*project.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &project.Stats{
		ProjectID:       projectID,
		BacklogByStatus: map[string]int{},
		TaskByStatus:    map[string]int{},
		SprintByStatus:  map[string]int{},
	}
	for _, b := range s.backlogs {
		if b.ProjectID != projectID {
			continue
		}
		st.BacklogByStatus[string(b.Status)]++
		if b.Status != backlog.StatusCancelled {
			st.TotalStoryPoints += b.Points()
		}
		if b.Status == backlog.StatusDone {
			st.CompletedPoints += b.Points()
		}
	}
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			st.TaskByStatus[string(t.Status)]++
		}
	}
	for _, sp := range s.sprints {
		if sp.ProjectID == projectID {
			st.SprintByStatus[string(sp.Status)]++
		}
	}
	for k := range s.members {
		if k.projectID == projectID {
			st.MemberCount++
		}
	}
	if st.TotalStoryPoints > 0 {
		st.CompletionPercent = float64(st.CompletedPoints) * 100 / float64(st.TotalStoryPoints)
	}
	return st, nil
}

// --- Members ---

func (s *Store) decorate(m project.Member) project.Member {
	if u, ok := s.users[m.UserID]; ok {
		sum := u.Summarize()
		m.User = &sum
	}
	return m
}

func (s *Store) ListMembers(_ context.Context, projectID string) ([]project.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.members, func(m project.Member) bool { return m.ProjectID == projectID })
	for i := range out {
		out[i] = s.decorate(out[i])
	}
	slices.SortFunc(out, byCreated(func(m project.Member) time.Time { return m.JoinedAt }))
	return out, nil
}

func (s *Store) GetMember(_ context.Context, projectID, userID string) (*project.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{projectID, userID}]
	if !ok {
		return nil, notFound("get member %s/%s", projectID, userID)
	}
	m = s.decorate(m)
	return &m, nil
}

func (s *Store) AddMember(_ context.Context, m *project.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[m.ProjectID]; !ok {
		return notFound("project %s", m.ProjectID)
	}
	if _, ok := s.users[m.UserID]; !ok {
		return notFound("user %s", m.UserID)
	}
	key := memberKey{m.ProjectID, m.UserID}
	if _, ok := s.members[key]; ok {
		return exists("add member %s to %s", m.UserID, m.ProjectID)
	}
	m.JoinedAt = s.now()
	s.members[key] = project.Member{ProjectID: m.ProjectID, UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}
	return nil
}

func (s *Store) UpdateMemberRole(_ context.Context, projectID, userID string, role project.MemberRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{projectID, userID}
	m, ok := s.members[key]
	if !ok {
		return notFound("update member %s/%s", projectID, userID)
	}
	m.Role = role
	s.members[key] = m
	return nil
}

func (s *Store) RemoveMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{projectID, userID}
	if _, ok := s.members[key]; !ok {
		return notFound("remove member %s/%s", projectID, userID)
	}
	delete(s.members, key)
	return nil
}
