package messagequeue

import "time"

// NotificationCreatedPayload is the schema for notifications.created messages.
type NotificationCreatedPayload struct {
	NotificationID string    `json:"notification_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Type           string    `json:"notification_type"`
	Priority       string    `json:"priority"`
	ProjectID      string    `json:"project_id,omitempty"`
	ActionURL      string    `json:"action_url,omitempty"`
	RecipientIDs   []string  `json:"recipient_ids"`
	CreatedAt      time.Time `json:"created_at"`
}

// VelocityUpdatedPayload is the schema for velocity.updated messages.
type VelocityUpdatedPayload struct {
	ProjectID       string    `json:"project_id"`
	SprintID        string    `json:"sprint_id"`
	VelocityPoints  int       `json:"velocity_points"`
	CompletedPoints int       `json:"completed_points"`
	RemainingPoints int       `json:"remaining_points"`
	SnapshotDate    time.Time `json:"snapshot_date"`
}
