// Package meeting defines scrum meetings with agenda, notes and action items.
package meeting

import (
	"time"

	"github.com/scrumix/scrumix/internal/domain"
)

// Type classifies a meeting.
type Type string

const (
	TypeSprintPlanning      Type = "sprint_planning"
	TypeDailyStandup        Type = "daily_standup"
	TypeSprintReview        Type = "sprint_review"
	TypeSprintRetrospective Type = "sprint_retrospective"
	TypeOther               Type = "other"
)

// ValidTypes is the set of accepted meeting types.
var ValidTypes = map[Type]bool{
	TypeSprintPlanning:      true,
	TypeDailyStandup:        true,
	TypeSprintReview:        true,
	TypeSprintRetrospective: true,
	TypeOther:               true,
}

// Meeting is a scheduled scrum ceremony.
type Meeting struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	SprintID        *string   `json:"sprint_id"`
	Title           string    `json:"title"`
	MeetingType     Type      `json:"meeting_type"`
	StartDatetime   time.Time `json:"start_datetime"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EndsAt returns the scheduled end of the meeting.
func (m *Meeting) EndsAt() time.Time {
	return m.StartDatetime.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// CreateRequest holds the fields needed to schedule a meeting.
type CreateRequest struct {
	ProjectID       string    `json:"project_id"`
	SprintID        *string   `json:"sprint_id,omitempty"`
	Title           string    `json:"title"`
	MeetingType     Type      `json:"meeting_type"`
	StartDatetime   time.Time `json:"start_datetime"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
}

// Validate applies defaults and checks required fields.
func (r *CreateRequest) Validate() error {
	if r.MeetingType == "" {
		r.MeetingType = TypeOther
	}
	if r.ProjectID == "" {
		return domain.Invalid("project_id is required")
	}
	if r.Title == "" {
		return domain.Invalid("title is required")
	}
	if r.StartDatetime.IsZero() {
		return domain.Invalid("start_datetime is required")
	}
	return validate(r.MeetingType, r.DurationMinutes)
}

// UpdateRequest holds optional fields for a partial meeting update.
type UpdateRequest struct {
	Title           *string    `json:"title,omitempty"`
	MeetingType     *Type      `json:"meeting_type,omitempty"`
	StartDatetime   *time.Time `json:"start_datetime,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Location        *string    `json:"location,omitempty"`
	Description     *string    `json:"description,omitempty"`
	SprintID        *string    `json:"sprint_id,omitempty"`
}

// Apply copies the set fields onto m and validates the result.
func (r *UpdateRequest) Apply(m *Meeting) error {
	if r.Title != nil {
		if *r.Title == "" {
			return domain.Invalid("title cannot be empty")
		}
		m.Title = *r.Title
	}
	if r.MeetingType != nil {
		m.MeetingType = *r.MeetingType
	}
	if r.StartDatetime != nil {
		m.StartDatetime = *r.StartDatetime
	}
	if r.DurationMinutes != nil {
		m.DurationMinutes = *r.DurationMinutes
	}
	if r.Location != nil {
		m.Location = *r.Location
	}
	if r.Description != nil {
		m.Description = *r.Description
	}
	if r.SprintID != nil {
		if *r.SprintID == "" {
			m.SprintID = nil
		} else {
			id := *r.SprintID
			m.SprintID = &id
		}
	}
	return validate(m.MeetingType, m.DurationMinutes)
}

func validate(t Type, minutes int) error {
	if !ValidTypes[t] {
		return domain.Invalid("invalid meeting_type %q", t)
	}
	if minutes <= 0 {
		return domain.Invalid("duration_minutes must be > 0")
	}
	if minutes > 24*60 {
		return domain.Invalid("duration_minutes must not exceed one day")
	}
	return nil
}

// Filter narrows a meeting listing.
type Filter struct {
	ProjectID   string
	SprintID    string
	MeetingType Type
	// UpcomingFrom, when set, keeps meetings starting at or after it.
	UpcomingFrom *time.Time
	domain.Page
}

// AgendaItem is one entry of a meeting agenda.
type AgendaItem struct {
	ID         string    `json:"id"`
	MeetingID  string    `json:"meeting_id"`
	Title      string    `json:"title"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// AgendaRequest creates or updates an agenda item.
type AgendaRequest struct {
	Title      *string `json:"title,omitempty"`
	OrderIndex *int    `json:"order_index,omitempty"`
}

// ReorderRequest lists agenda item IDs in their new order.
type ReorderRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// Note is a free-form note taken during a meeting.
type Note struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	AuthorID  *string   `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteRequest creates or updates a note.
type NoteRequest struct {
	Content string `json:"content"`
}

// ActionItem is a follow-up agreed in a meeting.
type ActionItem struct {
	ID         string     `json:"id"`
	MeetingID  string     `json:"meeting_id"`
	Title      string     `json:"title"`
	AssigneeID *string    `json:"assignee_id"`
	DueDate    *time.Time `json:"due_date"`
	Done       bool       `json:"done"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ActionItemRequest creates or updates an action item.
type ActionItemRequest struct {
	Title      *string    `json:"title,omitempty"`
	AssigneeID *string    `json:"assignee_id,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Done       *bool      `json:"done,omitempty"`
}

// Apply copies the set fields onto a.
func (r *ActionItemRequest) Apply(a *ActionItem) error {
	if r.Title != nil {
		a.Title = *r.Title
	}
	if r.AssigneeID != nil {
		if *r.AssigneeID == "" {
			a.AssigneeID = nil
		} else {
			id := *r.AssigneeID
			a.AssigneeID = &id
		}
	}
	if r.DueDate != nil {
		a.DueDate = r.DueDate
	}
	if r.Done != nil {
		a.Done = *r.Done
	}
	if a.Title == "" {
		return domain.Invalid("title is required")
	}
	return nil
}
