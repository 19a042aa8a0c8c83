package memory

import (
	"context"
	"slices"
	"time"

	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/sprint"
)

func (s *Store) checkBacklogRefs(b *backlog.Item) error {
	if _, ok := s.projects[b.ProjectID]; !ok {
		return notFound("project %s", b.ProjectID)
	}
	if id := b.InSprint(); id != "" {
		if _, ok := s.sprints[id]; !ok {
			return notFound("sprint %s", id)
		}
	}
	if id := b.Parent(); id != "" {
		if _, ok := s.backlogs[id]; !ok {
			return notFound("parent backlog item %s", id)
		}
	}
	if b.AssigneeID != nil {
		if _, ok := s.users[*b.AssigneeID]; !ok {
			return notFound("user %s", *b.AssigneeID)
		}
	}
	return nil
}

func (s *Store) CreateBacklog(_ context.Context, b *backlog.Item, adj []sprint.PointAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.backlogs[b.ID]; ok {
		return exists("backlog item %s", b.ID)
	}
	if err := s.checkBacklogRefs(b); err != nil {
		return err
	}
	if err := s.checkAdjustments(adj); err != nil {
		return err
	}
	now := s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	s.backlogs[b.ID] = *b
	s.applyAdjustments(adj, now)
	s.touch(b.ProjectID)
	return nil
}

// checkAdjustments and applyAdjustments expect the write lock held.
func (s *Store) checkAdjustments(adj []sprint.PointAdjustment) error {
	for _, a := range adj {
		if _, ok := s.sprints[a.SprintID]; !ok && a.Delta != 0 {
			return notFound("adjust velocity of sprint %s", a.SprintID)
		}
	}
	return nil
}

func (s *Store) applyAdjustments(adj []sprint.PointAdjustment, now time.Time) {
	for _, a := range adj {
		if a.Delta == 0 {
			continue
		}
		sp := s.sprints[a.SprintID]
		sp.VelocityPoints = max(sp.VelocityPoints+a.Delta, 0)
		sp.UpdatedAt = now
		s.sprints[a.SprintID] = sp
	}
}

func (s *Store) GetBacklog(_ context.Context, id string) (*backlog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backlogs[id]
	if !ok {
		return nil, notFound("get backlog item %s", id)
	}
	return &b, nil
}

func (s *Store) listBacklogs(keep func(backlog.Item) bool) []backlog.Item {
	out := values(s.backlogs, keep)
	backlog.SortItems(out)
	return out
}

func (s *Store) GetBacklogs(_ context.Context, ids []string) ([]backlog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBacklogs(func(b backlog.Item) bool { return slices.Contains(ids, b.ID) }), nil
}

func (s *Store) ListBacklogs(_ context.Context, f backlog.Filter) ([]backlog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.listBacklogs(func(b backlog.Item) bool {
		switch {
		case f.ProjectID != "" && b.ProjectID != f.ProjectID,
			f.Status != "" && b.Status != f.Status,
			f.Priority != "" && b.Priority != f.Priority,
			f.ItemType != "" && b.ItemType != f.ItemType,
			f.SprintID != "" && b.InSprint() != f.SprintID,
			f.RootsOnly && b.ParentID != nil:
			return false
		}
		return matches(f.Search, b.Title, b.Description)
	})
	return page(out, f.Page), nil
}

func (s *Store) ListChildren(_ context.Context, parentID string) ([]backlog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBacklogs(func(b backlog.Item) bool { return b.Parent() == parentID }), nil
}

func (s *Store) ListDescendants(_ context.Context, projectID, path string) ([]backlog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBacklogs(func(b backlog.Item) bool {
		return b.ProjectID == projectID && backlog.IsDescendantPath(b.Path, path)
	}), nil
}

func (s *Store) UpdateBacklog(_ context.Context, b *backlog.Item, rebase *backlog.Rebase, adj []sprint.PointAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.backlogs[b.ID]
	if !ok {
		return notFound("update backlog item %s", b.ID)
	}
	if err := s.checkBacklogRefs(b); err != nil {
		return err
	}
	if err := s.checkAdjustments(adj); err != nil {
		return err
	}

	now := s.now()
	b.UpdatedAt = now
	b.CreatedAt = cur.CreatedAt
	s.backlogs[b.ID] = *b

	if rebase != nil {
		for id, d := range s.backlogs {
			if d.ProjectID == rebase.ProjectID && backlog.IsDescendantPath(d.Path, rebase.OldPath) {
				rebase.Apply(&d)
				d.UpdatedAt = now
				s.backlogs[id] = d
			}
		}
	}
	s.applyAdjustments(adj, now)
	s.touch(b.ProjectID)
	return nil
}

// dropBacklog deletes an item with its subtree, criteria and tasks.
// Callers hold the write lock.
func (s *Store) dropBacklog(id string) {
	if _, ok := s.backlogs[id]; !ok {
		return
	}
	delete(s.backlogs, id)
	for cid, c := range s.criteria {
		if c.BacklogID == id {
			delete(s.criteria, cid)
		}
	}
	for tid, t := range s.tasks {
		if t.BacklogID == id {
			s.dropTask(tid)
		}
	}
	for cid, c := range s.backlogs {
		if c.Parent() == id {
			s.dropBacklog(cid)
		}
	}
}

func (s *Store) DeleteBacklog(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backlogs[id]
	if !ok {
		return notFound("delete backlog item %s", id)
	}
	s.dropBacklog(id)
	s.touch(b.ProjectID)
	return nil
}

// RebuildHierarchy walks parent links from the roots and rewrites level,
// path and root of every item whose stored values differ.
func (s *Store) RebuildHierarchy(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	children := make(map[string][]string)
	var roots []string
	for id, b := range s.backlogs {
		if b.ProjectID != projectID {
			continue
		}
		if b.ParentID == nil {
			roots = append(roots, id)
		} else {
			children[*b.ParentID] = append(children[*b.ParentID], id)
		}
	}

	var changed int64
	now := s.now()
	var walk func(id, rootID, parentPath string, level int)
	walk = func(id, rootID, parentPath string, level int) {
		b := s.backlogs[id]
		path := id
		if parentPath != "" {
			path = parentPath + backlog.PathSeparator + id
		}
		if b.RootID != rootID || b.Level != level || b.Path != path {
			b.RootID, b.Level, b.Path, b.UpdatedAt = rootID, level, path, now
			s.backlogs[id] = b
			changed++
		}
		if level >= 1000 {
			return
		}
		for _, c := range children[id] {
			walk(c, rootID, path, level+1)
		}
	}
	for _, r := range roots {
		walk(r, r, "", 0)
	}
	return changed, nil
}

func (s *Store) SprintPoints(_ context.Context, sprintID string) (completed, remaining int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.backlogs {
		if b.InSprint() != sprintID {
			continue
		}
		switch b.Status {
		case backlog.StatusDone:
			completed += b.Points()
		case backlog.StatusCancelled:
		default:
			remaining += b.Points()
		}
	}
	return completed, remaining, nil
}

func (s *Store) RemainingPoints(_ context.Context, projectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.backlogs {
		if b.ProjectID == projectID && b.Status != backlog.StatusDone && b.Status != backlog.StatusCancelled {
			n += b.Points()
		}
	}
	return n, nil
}

func (s *Store) BacklogStats(_ context.Context, projectID string) (*backlog.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &backlog.Stats{
		ProjectID:  projectID,
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
		ByType:     map[string]int{},
	}
	for _, b := range s.backlogs {
		if b.ProjectID != projectID {
			continue
		}
		st.Total++
		st.ByStatus[string(b.Status)]++
		st.ByPriority[string(b.Priority)]++
		st.ByType[string(b.ItemType)]++
		if b.StoryPoints == nil {
			st.Unestimated++
		}
		if b.Status != backlog.StatusCancelled {
			st.TotalPoints += b.Points()
		}
		if b.Status == backlog.StatusDone {
			st.CompletedPoints += b.Points()
		}
	}
	return st, nil
}

// --- Acceptance criteria ---

func (s *Store) CreateCriteria(_ context.Context, c *backlog.Criteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.backlogs[c.BacklogID]; !ok {
		return notFound("backlog item %s", c.BacklogID)
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.criteria[c.ID] = *c
	return nil
}

func (s *Store) GetCriteria(_ context.Context, id string) (*backlog.Criteria, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.criteria[id]
	if !ok {
		return nil, notFound("get acceptance criteria %s", id)
	}
	return &c, nil
}

func (s *Store) ListCriteria(_ context.Context, backlogID string) ([]backlog.Criteria, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.criteria, func(c backlog.Criteria) bool { return c.BacklogID == backlogID })
	slices.SortFunc(out, byCreated(func(c backlog.Criteria) time.Time { return c.CreatedAt }))
	return out, nil
}

func (s *Store) UpdateCriteria(_ context.Context, c *backlog.Criteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.criteria[c.ID]
	if !ok {
		return notFound("update acceptance criteria %s", c.ID)
	}
	c.UpdatedAt = s.now()
	c.CreatedAt, c.BacklogID = cur.CreatedAt, cur.BacklogID
	s.criteria[c.ID] = *c
	return nil
}

func (s *Store) DeleteCriteria(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.criteria[id]; !ok {
		return notFound("delete acceptance criteria %s", id)
	}
	delete(s.criteria, id)
	return nil
}
