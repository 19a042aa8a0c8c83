package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"admin", "reset-password"},
		{"admin", "create-user"},
		{"admin", "list-users"},
		{"maintenance", "rebuild-hierarchy"},
		{"maintenance", "recalc-velocity"},
	} {
		cmd, rest, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMigrateDownRejectsZeroSteps(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "down", "--steps", "0"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--steps")
}
