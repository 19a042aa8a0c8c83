package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidNotificationCreated(t *testing.T) {
	data := []byte(`{"notification_id":"n1","title":"Hi","message":"m","notification_type":"announcement","priority":"low","recipient_ids":["u1"]}`)
	if err := Validate(SubjectNotificationCreated, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateNotificationMissingID(t *testing.T) {
	err := Validate(SubjectNotificationCreated, []byte(`{"title":"Hi"}`))
	if err == nil || !strings.Contains(err.Error(), "notification_id") {
		t.Fatalf("expected notification_id error, got %v", err)
	}
}

func TestValidateValidVelocityUpdated(t *testing.T) {
	data := []byte(`{"project_id":"p1","sprint_id":"s1","velocity_points":13,"completed_points":13,"remaining_points":8}`)
	if err := Validate(SubjectVelocityUpdated, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateVelocityWrongType(t *testing.T) {
	err := Validate(SubjectVelocityUpdated, []byte(`{"sprint_id":"s1","velocity_points":"many"}`))
	if err == nil || !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectVelocityUpdated, []byte(`{not json`))
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected invalid JSON error, got %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	if err := Validate("something.else", []byte(`{"any":"thing"}`)); err != nil {
		t.Fatalf("unknown subjects should pass: %v", err)
	}
}
