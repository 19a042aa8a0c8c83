package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/meeting"
)

const meetingColumns = `id, project_id, sprint_id, title, meeting_type, start_datetime, duration_minutes, location, description, created_at, updated_at`

func scanMeeting(row scannable) (meeting.Meeting, error) {
	var m meeting.Meeting
	err := row.Scan(&m.ID, &m.ProjectID, &m.SprintID, &m.Title, &m.MeetingType, &m.StartDatetime,
		&m.DurationMinutes, &m.Location, &m.Description, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *Store) CreateMeeting(ctx context.Context, m *meeting.Meeting) error {
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.ProjectID, m.SprintID, m.Title, m.MeetingType, m.StartDatetime, m.DurationMinutes,
		m.Location, m.Description, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return constraintWrap(err, "create meeting")
	}
	return nil
}

func (s *Store) GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error) {
	m, err := scanMeeting(s.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get meeting %s", id)
	}
	return &m, nil
}

func (s *Store) ListMeetings(ctx context.Context, f meeting.Filter) ([]meeting.Meeting, error) {
	var w where
	if f.ProjectID != "" {
		w.add("project_id = ?", f.ProjectID)
	}
	if f.SprintID != "" {
		w.add("sprint_id = ?", f.SprintID)
	}
	if f.MeetingType != "" {
		w.add("meeting_type = ?", f.MeetingType)
	}
	if f.UpcomingFrom != nil {
		w.add("start_datetime >= ?", *f.UpcomingFrom)
	}
	q := `SELECT ` + meetingColumns + ` FROM meetings` + w.sql() + ` ORDER BY start_datetime` + w.page(f.Page)

	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return collect(rows, scanMeeting)
}

func (s *Store) UpdateMeeting(ctx context.Context, m *meeting.Meeting) error {
	m.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE meetings SET sprint_id = $2, title = $3, meeting_type = $4, start_datetime = $5, duration_minutes = $6,
		       location = $7, description = $8, updated_at = $9
		WHERE id = $1`,
		m.ID, m.SprintID, m.Title, m.MeetingType, m.StartDatetime, m.DurationMinutes, m.Location, m.Description, m.UpdatedAt)
	return execExpectOne(tag, err, "update meeting %s", m.ID)
}

func (s *Store) DeleteMeeting(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete meeting %s", id)
}

// --- Agenda ---

func scanAgenda(row scannable) (meeting.AgendaItem, error) {
	var a meeting.AgendaItem
	err := row.Scan(&a.ID, &a.MeetingID, &a.Title, &a.OrderIndex, &a.CreatedAt)
	return a, err
}

func (s *Store) CreateAgendaItem(ctx context.Context, a *meeting.AgendaItem) error {
	a.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meeting_agendas (id, meeting_id, title, order_index, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.MeetingID, a.Title, a.OrderIndex, a.CreatedAt)
	if err != nil {
		return constraintWrap(err, "create agenda item")
	}
	return nil
}

func (s *Store) GetAgendaItem(ctx context.Context, id string) (*meeting.AgendaItem, error) {
	a, err := scanAgenda(s.pool.QueryRow(ctx,
		`SELECT id, meeting_id, title, order_index, created_at FROM meeting_agendas WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get agenda item %s", id)
	}
	return &a, nil
}

func (s *Store) ListAgenda(ctx context.Context, meetingID string) ([]meeting.AgendaItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, meeting_id, title, order_index, created_at FROM meeting_agendas
		WHERE meeting_id = $1 ORDER BY order_index, created_at`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list agenda: %w", err)
	}
	return collect(rows, scanAgenda)
}

func (s *Store) UpdateAgendaItem(ctx context.Context, a *meeting.AgendaItem) error {
	tag, err := s.pool.Exec(ctx, `UPDATE meeting_agendas SET title = $2, order_index = $3 WHERE id = $1`,
		a.ID, a.Title, a.OrderIndex)
	return execExpectOne(tag, err, "update agenda item %s", a.ID)
}

func (s *Store) DeleteAgendaItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meeting_agendas WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete agenda item %s", id)
}

// ReorderAgenda assigns order_index by position in itemIDs. Every ID must
// belong to the meeting.
func (s *Store) ReorderAgenda(ctx context.Context, meetingID string, itemIDs []string) error {
	return s.inTx(ctx, "reorder agenda", func(tx pgx.Tx) error {
		for i, id := range itemIDs {
			tag, err := tx.Exec(ctx, `UPDATE meeting_agendas SET order_index = $3 WHERE id = $1 AND meeting_id = $2`,
				id, meetingID, i)
			if err != nil {
				return fmt.Errorf("reorder agenda item %s: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				return domain.Invalid("agenda item %s does not belong to meeting %s", id, meetingID)
			}
		}
		return nil
	})
}

// --- Notes ---

func scanNote(row scannable) (meeting.Note, error) {
	var n meeting.Note
	err := row.Scan(&n.ID, &n.MeetingID, &n.AuthorID, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (s *Store) CreateNote(ctx context.Context, n *meeting.Note) error {
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meeting_notes (id, meeting_id, author_id, content, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.MeetingID, n.AuthorID, n.Content, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return constraintWrap(err, "create meeting note")
	}
	return nil
}

func (s *Store) GetNote(ctx context.Context, id string) (*meeting.Note, error) {
	n, err := scanNote(s.pool.QueryRow(ctx,
		`SELECT id, meeting_id, author_id, content, created_at, updated_at FROM meeting_notes WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get meeting note %s", id)
	}
	return &n, nil
}

func (s *Store) ListNotes(ctx context.Context, meetingID string) ([]meeting.Note, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, meeting_id, author_id, content, created_at, updated_at FROM meeting_notes
		WHERE meeting_id = $1 ORDER BY created_at`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list meeting notes: %w", err)
	}
	return collect(rows, scanNote)
}

func (s *Store) UpdateNote(ctx context.Context, n *meeting.Note) error {
	n.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE meeting_notes SET content = $2, updated_at = $3 WHERE id = $1`,
		n.ID, n.Content, n.UpdatedAt)
	return execExpectOne(tag, err, "update meeting note %s", n.ID)
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meeting_notes WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete meeting note %s", id)
}

// --- Action items ---

const actionItemColumns = `id, meeting_id, title, assignee_id, due_date, done, created_at, updated_at`

func scanActionItem(row scannable) (meeting.ActionItem, error) {
	var a meeting.ActionItem
	err := row.Scan(&a.ID, &a.MeetingID, &a.Title, &a.AssigneeID, &a.DueDate, &a.Done, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *Store) CreateActionItem(ctx context.Context, a *meeting.ActionItem) error {
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meeting_action_items (`+actionItemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.MeetingID, a.Title, a.AssigneeID, a.DueDate, a.Done, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return constraintWrap(err, "create action item")
	}
	return nil
}

func (s *Store) GetActionItem(ctx context.Context, id string) (*meeting.ActionItem, error) {
	a, err := scanActionItem(s.pool.QueryRow(ctx, `SELECT `+actionItemColumns+` FROM meeting_action_items WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get action item %s", id)
	}
	return &a, nil
}

func (s *Store) ListActionItems(ctx context.Context, meetingID string) ([]meeting.ActionItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+actionItemColumns+` FROM meeting_action_items WHERE meeting_id = $1 ORDER BY created_at`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list action items: %w", err)
	}
	return collect(rows, scanActionItem)
}

func (s *Store) UpdateActionItem(ctx context.Context, a *meeting.ActionItem) error {
	a.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE meeting_action_items SET title = $2, assignee_id = $3, due_date = $4, done = $5, updated_at = $6 WHERE id = $1`,
		a.ID, a.Title, a.AssigneeID, a.DueDate, a.Done, a.UpdatedAt)
	return execExpectOne(tag, err, "update action item %s", a.ID)
}

func (s *Store) DeleteActionItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meeting_action_items WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete action item %s", id)
}
