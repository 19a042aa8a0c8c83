package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/domain"
)

func TestCreateRequest_Validate(t *testing.T) {
	req := CreateRequest{Title: "Sprint started", Message: "Sprint 4 is live"}
	require.NoError(t, req.Validate())
	assert.Equal(t, PriorityMedium, req.Priority)
	assert.Equal(t, TypeAnnouncement, req.NotificationType)

	assert.ErrorIs(t, (&CreateRequest{Message: "m"}).Validate(), domain.ErrValidation)
	assert.ErrorIs(t, (&CreateRequest{Title: "t"}).Validate(), domain.ErrValidation)
	assert.ErrorIs(t, (&CreateRequest{Title: "t", Message: "m", Priority: "meh"}).Validate(), domain.ErrValidation)
}
