package sprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRequest_Validate(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)

	valid := CreateRequest{ProjectID: "p1", Name: "Sprint 1", StartDate: start, EndDate: end}
	require.NoError(t, valid.Validate())

	noName := valid
	noName.Name = ""
	assert.Error(t, noName.Validate())

	reversed := valid
	reversed.StartDate, reversed.EndDate = end, start
	assert.Error(t, reversed.Validate())

	negative := valid
	negative.Capacity = -1
	assert.Error(t, negative.Validate())
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusPlanning, StatusActive))
	assert.NoError(t, ValidateTransition(StatusActive, StatusCompleted))
	assert.NoError(t, ValidateTransition(StatusActive, StatusCancelled))
	assert.Error(t, ValidateTransition(StatusCompleted, StatusActive))
	assert.Error(t, ValidateTransition(StatusPlanning, StatusCompleted))
	assert.Error(t, ValidateTransition(StatusCancelled, StatusPlanning))
}

func TestSprint_Days(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s := Sprint{StartDate: start, EndDate: start.AddDate(0, 0, 10)}
	assert.Equal(t, 10, s.Days())

	s.EndDate = start
	assert.Equal(t, 1, s.Days())

	// Ending earlier in the day than it started still spans both dates.
	s.StartDate = time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	s.EndDate = time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, s.Days())
}

func TestUpdateRequest_Apply(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s := Sprint{Name: "S1", StartDate: start, EndDate: start.AddDate(0, 0, 14)}

	goal := "ship login"
	require.NoError(t, (&UpdateRequest{Goal: &goal}).Apply(&s))
	assert.Equal(t, goal, s.Goal)

	early := start.AddDate(0, 0, -1)
	assert.Error(t, (&UpdateRequest{EndDate: &early}).Apply(&s))
}
