package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/meeting"
)

func (s *Store) CreateMeeting(_ context.Context, m *meeting.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[m.ProjectID]; !ok {
		return notFound("project %s", m.ProjectID)
	}
	if m.SprintID != nil {
		if _, ok := s.sprints[*m.SprintID]; !ok {
			return notFound("sprint %s", *m.SprintID)
		}
	}
	now := s.now()
	m.CreatedAt, m.UpdatedAt = now, now
	s.meetings[m.ID] = *m
	s.touch(m.ProjectID)
	return nil
}

func (s *Store) GetMeeting(_ context.Context, id string) (*meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, notFound("get meeting %s", id)
	}
	return &m, nil
}

func (s *Store) ListMeetings(_ context.Context, f meeting.Filter) ([]meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.meetings, func(m meeting.Meeting) bool {
		switch {
		case f.ProjectID != "" && m.ProjectID != f.ProjectID,
			f.SprintID != "" && (m.SprintID == nil || *m.SprintID != f.SprintID),
			f.MeetingType != "" && m.MeetingType != f.MeetingType,
			f.UpcomingFrom != nil && m.StartDatetime.Before(*f.UpcomingFrom):
			return false
		}
		return true
	})
	slices.SortFunc(out, func(a, b meeting.Meeting) int { return a.StartDatetime.Compare(b.StartDatetime) })
	return page(out, f.Page), nil
}

func (s *Store) UpdateMeeting(_ context.Context, m *meeting.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.meetings[m.ID]
	if !ok {
		return notFound("update meeting %s", m.ID)
	}
	if m.SprintID != nil {
		if _, ok := s.sprints[*m.SprintID]; !ok {
			return notFound("sprint %s", *m.SprintID)
		}
	}
	m.UpdatedAt = s.now()
	m.CreatedAt, m.ProjectID = cur.CreatedAt, cur.ProjectID
	s.meetings[m.ID] = *m
	return nil
}

// dropMeeting deletes a meeting with its agenda, notes and action items.
func (s *Store) dropMeeting(id string) {
	delete(s.meetings, id)
	for k, a := range s.agenda {
		if a.MeetingID == id {
			delete(s.agenda, k)
		}
	}
	for k, n := range s.notes {
		if n.MeetingID == id {
			delete(s.notes, k)
		}
	}
	for k, a := range s.actionItems {
		if a.MeetingID == id {
			delete(s.actionItems, k)
		}
	}
}

func (s *Store) DeleteMeeting(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[id]; !ok {
		return notFound("delete meeting %s", id)
	}
	s.dropMeeting(id)
	return nil
}

// --- Agenda ---

func (s *Store) CreateAgendaItem(_ context.Context, a *meeting.AgendaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[a.MeetingID]; !ok {
		return notFound("meeting %s", a.MeetingID)
	}
	a.CreatedAt = s.now()
	s.agenda[a.ID] = *a
	return nil
}

func (s *Store) GetAgendaItem(_ context.Context, id string) (*meeting.AgendaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agenda[id]
	if !ok {
		return nil, notFound("get agenda item %s", id)
	}
	return &a, nil
}

func (s *Store) ListAgenda(_ context.Context, meetingID string) ([]meeting.AgendaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.agenda, func(a meeting.AgendaItem) bool { return a.MeetingID == meetingID })
	slices.SortFunc(out, func(a, b meeting.AgendaItem) int {
		return cmp.Or(cmp.Compare(a.OrderIndex, b.OrderIndex), a.CreatedAt.Compare(b.CreatedAt))
	})
	return out, nil
}

func (s *Store) UpdateAgendaItem(_ context.Context, a *meeting.AgendaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.agenda[a.ID]
	if !ok {
		return notFound("update agenda item %s", a.ID)
	}
	cur.Title, cur.OrderIndex = a.Title, a.OrderIndex
	s.agenda[a.ID] = cur
	return nil
}

func (s *Store) DeleteAgendaItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agenda[id]; !ok {
		return notFound("delete agenda item %s", id)
	}
	delete(s.agenda, id)
	return nil
}

func (s *Store) ReorderAgenda(_ context.Context, meetingID string, itemIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range itemIDs {
		if a, ok := s.agenda[id]; !ok || a.MeetingID != meetingID {
			return domain.Invalid("agenda item %s does not belong to meeting %s", id, meetingID)
		}
	}
	for i, id := range itemIDs {
		a := s.agenda[id]
		a.OrderIndex = i
		s.agenda[id] = a
	}
	return nil
}

// --- Notes ---

func (s *Store) CreateNote(_ context.Context, n *meeting.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[n.MeetingID]; !ok {
		return notFound("meeting %s", n.MeetingID)
	}
	now := s.now()
	n.CreatedAt, n.UpdatedAt = now, now
	s.notes[n.ID] = *n
	return nil
}

func (s *Store) GetNote(_ context.Context, id string) (*meeting.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, notFound("get meeting note %s", id)
	}
	return &n, nil
}

func (s *Store) ListNotes(_ context.Context, meetingID string) ([]meeting.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.notes, func(n meeting.Note) bool { return n.MeetingID == meetingID })
	slices.SortFunc(out, byCreated(func(n meeting.Note) time.Time { return n.CreatedAt }))
	return out, nil
}

func (s *Store) UpdateNote(_ context.Context, n *meeting.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.notes[n.ID]
	if !ok {
		return notFound("update meeting note %s", n.ID)
	}
	cur.Content = n.Content
	cur.UpdatedAt = s.now()
	s.notes[n.ID] = cur
	n.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *Store) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return notFound("delete meeting note %s", id)
	}
	delete(s.notes, id)
	return nil
}

// --- Action items ---

func (s *Store) CreateActionItem(_ context.Context, a *meeting.ActionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[a.MeetingID]; !ok {
		return notFound("meeting %s", a.MeetingID)
	}
	if a.AssigneeID != nil {
		if err := s.requireUsers([]string{*a.AssigneeID}); err != nil {
			return err
		}
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.actionItems[a.ID] = *a
	return nil
}

func (s *Store) GetActionItem(_ context.Context, id string) (*meeting.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actionItems[id]
	if !ok {
		return nil, notFound("get action item %s", id)
	}
	return &a, nil
}

func (s *Store) ListActionItems(_ context.Context, meetingID string) ([]meeting.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.actionItems, func(a meeting.ActionItem) bool { return a.MeetingID == meetingID })
	slices.SortFunc(out, byCreated(func(a meeting.ActionItem) time.Time { return a.CreatedAt }))
	return out, nil
}

func (s *Store) UpdateActionItem(_ context.Context, a *meeting.ActionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.actionItems[a.ID]
	if !ok {
		return notFound("update action item %s", a.ID)
	}
	if a.AssigneeID != nil {
		if err := s.requireUsers([]string{*a.AssigneeID}); err != nil {
			return err
		}
	}
	cur.Title, cur.AssigneeID, cur.DueDate, cur.Done = a.Title, a.AssigneeID, a.DueDate, a.Done
	cur.UpdatedAt = s.now()
	s.actionItems[a.ID] = cur
	a.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *Store) DeleteActionItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actionItems[id]; !ok {
		return notFound("delete action item %s", id)
	}
	delete(s.actionItems, id)
	return nil
}
