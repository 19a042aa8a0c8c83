package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/meeting"
	"github.com/scrumix/scrumix/internal/port/database"
)

// MeetingService manages meetings and their agenda, notes and action items.
type MeetingService struct {
	store database.Store
}

// NewMeetingService creates a new MeetingService.
func NewMeetingService(store database.Store) *MeetingService {
	return &MeetingService{store: store}
}

// List returns meetings matching the filter, earliest first.
func (s *MeetingService) List(ctx context.Context, f meeting.Filter) ([]meeting.Meeting, error) {
	if f.MeetingType != "" && !meeting.ValidTypes[f.MeetingType] {
		return nil, domain.Invalid("invalid meeting_type %q", f.MeetingType)
	}
	return s.store.ListMeetings(ctx, f)
}

// Get returns a meeting by ID.
func (s *MeetingService) Get(ctx context.Context, id string) (*meeting.Meeting, error) {
	return s.store.GetMeeting(ctx, id)
}

// Create schedules a meeting.
func (s *MeetingService) Create(ctx context.Context, req *meeting.CreateRequest) (*meeting.Meeting, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ts := now()
	m := &meeting.Meeting{
		ID:              newID(),
		ProjectID:       req.ProjectID,
		SprintID:        req.SprintID,
		Title:           req.Title,
		MeetingType:     req.MeetingType,
		StartDatetime:   req.StartDatetime.UTC(),
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Description:     req.Description,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	if m.SprintID != nil && *m.SprintID == "" {
		m.SprintID = nil
	}
	if err := s.checkSprint(ctx, m); err != nil {
		return nil, err
	}
	if err := s.store.CreateMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	return m, nil
}

func (s *MeetingService) checkSprint(ctx context.Context, m *meeting.Meeting) error {
	if m.SprintID == nil {
		return nil
	}
	sp, err := s.store.GetSprint(ctx, *m.SprintID)
	if err != nil {
		return err
	}
	if sp.ProjectID != m.ProjectID {
		return domain.Invalid("sprint belongs to another project")
	}
	return nil
}

// Update applies partial changes to a meeting.
func (s *MeetingService) Update(ctx context.Context, id string, req meeting.UpdateRequest) (*meeting.Meeting, error) {
	m, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(m); err != nil {
		return nil, err
	}
	if err := s.checkSprint(ctx, m); err != nil {
		return nil, err
	}
	if err := s.store.UpdateMeeting(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a meeting with its agenda, notes and action items.
func (s *MeetingService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteMeeting(ctx, id)
}

// --- Agenda ---

// ListAgenda returns a meeting's agenda in order.
func (s *MeetingService) ListAgenda(ctx context.Context, meetingID string) ([]meeting.AgendaItem, error) {
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.store.ListAgenda(ctx, meetingID)
}

// GetAgendaItem returns one agenda item.
func (s *MeetingService) GetAgendaItem(ctx context.Context, id string) (*meeting.AgendaItem, error) {
	return s.store.GetAgendaItem(ctx, id)
}

// AddAgendaItem appends an item to the agenda unless an order is given.
func (s *MeetingService) AddAgendaItem(ctx context.Context, meetingID string, req meeting.AgendaRequest) (*meeting.AgendaItem, error) {
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return nil, domain.Invalid("title is required")
	}
	items, err := s.ListAgenda(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	a := &meeting.AgendaItem{
		ID:         newID(),
		MeetingID:  meetingID,
		Title:      *req.Title,
		OrderIndex: len(items),
		CreatedAt:  now(),
	}
	if req.OrderIndex != nil {
		if *req.OrderIndex < 0 {
			return nil, domain.Invalid("order_index must be >= 0")
		}
		a.OrderIndex = *req.OrderIndex
	}
	if err := s.store.CreateAgendaItem(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAgendaItem renames or moves an agenda item.
func (s *MeetingService) UpdateAgendaItem(ctx context.Context, id string, req meeting.AgendaRequest) (*meeting.AgendaItem, error) {
	a, err := s.store.GetAgendaItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, domain.Invalid("title cannot be empty")
		}
		a.Title = *req.Title
	}
	if req.OrderIndex != nil {
		if *req.OrderIndex < 0 {
			return nil, domain.Invalid("order_index must be >= 0")
		}
		a.OrderIndex = *req.OrderIndex
	}
	if err := s.store.UpdateAgendaItem(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAgendaItem removes an agenda item.
func (s *MeetingService) DeleteAgendaItem(ctx context.Context, id string) error {
	return s.store.DeleteAgendaItem(ctx, id)
}

// ReorderAgenda renumbers the agenda in the given order. The list must name
// every item of the meeting exactly once.
func (s *MeetingService) ReorderAgenda(ctx context.Context, meetingID string, req meeting.ReorderRequest) ([]meeting.AgendaItem, error) {
	items, err := s.ListAgenda(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	ids := dedupe(req.ItemIDs)
	if len(ids) != len(req.ItemIDs) || len(ids) != len(items) {
		return nil, domain.Invalid("item_ids must list every agenda item once")
	}
	known := make(map[string]bool, len(items))
	for i := range items {
		known[items[i].ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return nil, domain.Invalid("agenda item %s does not belong to this meeting", id)
		}
	}
	if err := s.store.ReorderAgenda(ctx, meetingID, ids); err != nil {
		return nil, err
	}
	return s.store.ListAgenda(ctx, meetingID)
}

// --- Notes ---

// ListNotes returns a meeting's notes, oldest first.
func (s *MeetingService) ListNotes(ctx context.Context, meetingID string) ([]meeting.Note, error) {
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, meetingID)
}

// GetNote returns one note.
func (s *MeetingService) GetNote(ctx context.Context, id string) (*meeting.Note, error) {
	return s.store.GetNote(ctx, id)
}

// AddNote records a note by authorID. An unknown author is stored as none.
func (s *MeetingService) AddNote(ctx context.Context, meetingID, authorID string, req meeting.NoteRequest) (*meeting.Note, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.Invalid("content is required")
	}
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	ts := now()
	n := &meeting.Note{
		ID:        newID(),
		MeetingID: meetingID,
		Content:   req.Content,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if authorID != "" {
		if _, err := s.store.GetUser(ctx, authorID); err == nil {
			n.AuthorID = &authorID
		}
	}
	if err := s.store.CreateNote(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// UpdateNote replaces a note's content.
func (s *MeetingService) UpdateNote(ctx context.Context, id string, req meeting.NoteRequest) (*meeting.Note, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.Invalid("content is required")
	}
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Content = req.Content
	if err := s.store.UpdateNote(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteNote removes a note.
func (s *MeetingService) DeleteNote(ctx context.Context, id string) error {
	return s.store.DeleteNote(ctx, id)
}

// --- Action items ---

// ListActionItems returns a meeting's action items.
func (s *MeetingService) ListActionItems(ctx context.Context, meetingID string) ([]meeting.ActionItem, error) {
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.store.ListActionItems(ctx, meetingID)
}

// GetActionItem returns one action item.
func (s *MeetingService) GetActionItem(ctx context.Context, id string) (*meeting.ActionItem, error) {
	return s.store.GetActionItem(ctx, id)
}

// AddActionItem records a follow-up of a meeting.
func (s *MeetingService) AddActionItem(ctx context.Context, meetingID string, req meeting.ActionItemRequest) (*meeting.ActionItem, error) {
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	ts := now()
	a := &meeting.ActionItem{ID: newID(), MeetingID: meetingID, CreatedAt: ts, UpdatedAt: ts}
	if err := req.Apply(a); err != nil {
		return nil, err
	}
	if err := s.store.CreateActionItem(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateActionItem applies partial changes to an action item.
func (s *MeetingService) UpdateActionItem(ctx context.Context, id string, req meeting.ActionItemRequest) (*meeting.ActionItem, error) {
	a, err := s.store.GetActionItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(a); err != nil {
		return nil, err
	}
	if err := s.store.UpdateActionItem(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteActionItem removes an action item.
func (s *MeetingService) DeleteActionItem(ctx context.Context, id string) error {
	return s.store.DeleteActionItem(ctx, id)
}
