// Package notification defines in-app notifications and their per-user delivery state.
package notification

import (
	"time"

	"github.com/scrumix/scrumix/internal/domain"
)

// Priority expresses how prominently a notification is shown.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriorities is the set of accepted notification priorities.
var ValidPriorities = map[Priority]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// Status is the per-recipient state of a notification.
type Status string

const (
	StatusUnread    Status = "unread"
	StatusRead      Status = "read"
	StatusDismissed Status = "dismissed"
)

// ValidStatuses is the set of accepted delivery statuses.
var ValidStatuses = map[Status]bool{
	StatusUnread:    true,
	StatusRead:      true,
	StatusDismissed: true,
}

// Notification types raised by the system.
const (
	TypeTaskAssigned    = "task_assigned"
	TypeSprintStarted   = "sprint_started"
	TypeSprintCompleted = "sprint_completed"
	TypeMemberAdded     = "project_member_added"
	TypeAnnouncement    = "announcement"
)

// EventCreated is the websocket event type pushed to recipients.
const EventCreated = "notification.created"

// Notification is a message addressed to one or more users.
type Notification struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	NotificationType string     `json:"notification_type"`
	Priority         Priority   `json:"priority"`
	EntityType       string     `json:"entity_type,omitempty"`
	EntityID         string     `json:"entity_id,omitempty"`
	ProjectID        *string    `json:"project_id"`
	CreatedBy        *string    `json:"created_by"`
	ActionURL        string     `json:"action_url,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Delivery is a notification as seen by one recipient.
type Delivery struct {
	Notification
	UserID string     `json:"user_id"`
	Status Status     `json:"status"`
	ReadAt *time.Time `json:"read_at"`
}

// CreateRequest addresses a new notification. With ProjectID set and no
// explicit recipients, every project member receives it; with neither set
// the notification is broadcast to all users.
type CreateRequest struct {
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	NotificationType string     `json:"notification_type"`
	Priority         Priority   `json:"priority"`
	EntityType       string     `json:"entity_type,omitempty"`
	EntityID         string     `json:"entity_id,omitempty"`
	ProjectID        *string    `json:"project_id,omitempty"`
	ActionURL        string     `json:"action_url,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RecipientIDs     []string   `json:"recipient_ids,omitempty"`
}

// Validate applies defaults and checks required fields.
func (r *CreateRequest) Validate() error {
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.NotificationType == "" {
		r.NotificationType = TypeAnnouncement
	}
	if r.Title == "" {
		return domain.Invalid("title is required")
	}
	if r.Message == "" {
		return domain.Invalid("message is required")
	}
	if !ValidPriorities[r.Priority] {
		return domain.Invalid("invalid priority %q", r.Priority)
	}
	return nil
}

// Filter narrows a user's notification listing.
type Filter struct {
	UserID string
	Status Status
	domain.Page
}
