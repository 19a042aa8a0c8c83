package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/domain"
)

func TestCreateRequest_Validate(t *testing.T) {
	req := CreateRequest{BacklogID: "b1", Title: "write tests"}
	require.NoError(t, req.Validate())
	assert.Equal(t, StatusTodo, req.Status)
	assert.Equal(t, PriorityMedium, req.Priority)

	assert.ErrorIs(t, (&CreateRequest{Title: "x"}).Validate(), domain.ErrValidation)
	assert.ErrorIs(t, (&CreateRequest{BacklogID: "b1"}).Validate(), domain.ErrValidation)
	assert.ErrorIs(t, (&CreateRequest{BacklogID: "b1", Title: "x", Priority: "urgent"}).Validate(), domain.ErrValidation)
}

func TestUpdateRequest_Apply(t *testing.T) {
	sprintID := "s1"
	tk := Task{Title: "t", Status: StatusTodo, Priority: PriorityLow, SprintID: &sprintID}

	done := StatusDone
	clear := ""
	require.NoError(t, (&UpdateRequest{Status: &done, SprintID: &clear}).Apply(&tk))
	assert.Equal(t, StatusDone, tk.Status)
	assert.Nil(t, tk.SprintID)

	bad := Status("blocked")
	assert.Error(t, (&UpdateRequest{Status: &bad}).Apply(&tk))
}
