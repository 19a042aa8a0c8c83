package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/sprint"
	"github.com/scrumix/scrumix/internal/domain/velocity"
)

// checkActive enforces at most one active sprint per project.
func (s *Store) checkActive(sp *sprint.Sprint) error {
	if sp.Status != sprint.StatusActive {
		return nil
	}
	for _, other := range s.sprints {
		if other.ID != sp.ID && other.ProjectID == sp.ProjectID && other.Status == sprint.StatusActive {
			return conflict("project %s already has an active sprint", sp.ProjectID)
		}
	}
	return nil
}

func (s *Store) CreateSprint(_ context.Context, sp *sprint.Sprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[sp.ProjectID]; !ok {
		return notFound("project %s", sp.ProjectID)
	}
	if _, ok := s.sprints[sp.ID]; ok {
		return exists("sprint %s", sp.ID)
	}
	if err := s.checkActive(sp); err != nil {
		return err
	}
	now := s.now()
	sp.CreatedAt, sp.UpdatedAt = now, now
	s.sprints[sp.ID] = *sp
	s.touch(sp.ProjectID)
	return nil
}

func (s *Store) GetSprint(_ context.Context, id string) (*sprint.Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.sprints[id]
	if !ok {
		return nil, notFound("get sprint %s", id)
	}
	return &sp, nil
}

func (s *Store) ListSprints(_ context.Context, f sprint.Filter) ([]sprint.Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.sprints, func(sp sprint.Sprint) bool {
		return (f.ProjectID == "" || sp.ProjectID == f.ProjectID) && (f.Status == "" || sp.Status == f.Status)
	})
	slices.SortFunc(out, func(a, b sprint.Sprint) int {
		return cmp.Or(b.StartDate.Compare(a.StartDate), b.CreatedAt.Compare(a.CreatedAt))
	})
	return page(out, f.Page), nil
}

// UpdateSprint writes everything except the velocity counter.
func (s *Store) UpdateSprint(_ context.Context, sp *sprint.Sprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sprints[sp.ID]
	if !ok {
		return notFound("update sprint %s", sp.ID)
	}
	if err := s.checkActive(sp); err != nil {
		return err
	}
	sp.UpdatedAt = s.now()
	sp.VelocityPoints = cur.VelocityPoints
	sp.CreatedAt = cur.CreatedAt
	s.sprints[sp.ID] = *sp
	s.touch(sp.ProjectID)
	return nil
}

// dropSprint deletes a sprint, detaching its work. Callers hold the write lock.
func (s *Store) dropSprint(id string) {
	delete(s.sprints, id)
	for key, sn := range s.snapshots {
		if sn.SprintID == id {
			delete(s.snapshots, key)
		}
	}
	for bid, b := range s.backlogs {
		if b.SprintID != nil && *b.SprintID == id {
			b.SprintID = nil
			s.backlogs[bid] = b
		}
	}
	for tid, t := range s.tasks {
		if t.SprintID != nil && *t.SprintID == id {
			t.SprintID = nil
			s.tasks[tid] = t
		}
	}
	for mid, m := range s.meetings {
		if m.SprintID != nil && *m.SprintID == id {
			m.SprintID = nil
			s.meetings[mid] = m
		}
	}
}

func (s *Store) DeleteSprint(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sprints[id]; !ok {
		return notFound("delete sprint %s", id)
	}
	s.dropSprint(id)
	return nil
}

func (s *Store) GetActiveSprint(_ context.Context, projectID string) (*sprint.Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sp := range s.sprints {
		if sp.ProjectID == projectID && sp.Status == sprint.StatusActive {
			return &sp, nil
		}
	}
	return nil, notFound("get active sprint of %s", projectID)
}

func (s *Store) SetSprintVelocity(_ context.Context, sprintID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.sprints[sprintID]
	if !ok {
		return notFound("set sprint velocity %s", sprintID)
	}
	sp.VelocityPoints = max(points, 0)
	sp.UpdatedAt = s.now()
	s.sprints[sprintID] = sp
	return nil
}

func (s *Store) SprintStats(_ context.Context, sprintID string) (*sprint.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.sprints[sprintID]
	if !ok {
		return nil, notFound("get sprint %s", sprintID)
	}
	st := &sprint.Stats{
		SprintID:       sprintID,
		VelocityPoints: sp.VelocityPoints,
		Capacity:       sp.Capacity,
		ItemsByStatus:  map[string]int{},
	}
	for _, b := range s.backlogs {
		if b.InSprint() != sprintID {
			continue
		}
		st.ItemsByStatus[string(b.Status)]++
		st.ItemCount++
		if b.Status != backlog.StatusCancelled {
			st.TotalPoints += b.Points()
		}
		if b.Status == backlog.StatusDone {
			st.CompletedPoints += b.Points()
		}
	}
	if remaining := sp.EndDate.Sub(s.now()); remaining > 0 {
		st.DaysRemaining = int(remaining.Hours()/24) + 1
	}
	return st, nil
}

// --- Burndown ---

func snapshotKey(sprintID string, day time.Time) string {
	return sprintID + "@" + day.Format(time.DateOnly)
}

func (s *Store) UpsertSnapshot(_ context.Context, snap *velocity.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sprints[snap.SprintID]; !ok {
		return notFound("upsert burndown snapshot %s", snap.SprintID)
	}
	snap.Date = velocity.Day(snap.Date)
	key := snapshotKey(snap.SprintID, snap.Date)
	if cur, ok := s.snapshots[key]; ok {
		snap.ID, snap.CreatedAt = cur.ID, cur.CreatedAt
	} else if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now()
	}
	s.snapshots[key] = *snap
	return nil
}

func (s *Store) ListSnapshots(_ context.Context, sprintID string) ([]velocity.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.snapshots, func(sn velocity.Snapshot) bool { return sn.SprintID == sprintID })
	slices.SortFunc(out, func(a, b velocity.Snapshot) int { return a.Date.Compare(b.Date) })
	return out, nil
}
