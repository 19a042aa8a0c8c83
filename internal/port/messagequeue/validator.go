package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch subject {
	case SubjectNotificationCreated:
		var p NotificationCreatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.NotificationID == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("notification_id is required"))
		}
	case SubjectVelocityUpdated:
		var p VelocityUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.SprintID == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("sprint_id is required"))
		}
	}
	return nil
}
