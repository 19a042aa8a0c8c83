package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/project"
	"github.com/scrumix/scrumix/internal/domain/user"
)

func TestProjectService_CreatorBecomesOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, project.StatusPlanning, f.project.Status)
	assert.Equal(t, 1, f.project.Version)

	members, err := f.projects.ListMembers(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, f.owner.ID, members[0].UserID)
	assert.Equal(t, project.RoleOwner, members[0].Role)

	_, err = f.projects.Create(ctx, f.owner.ID, &project.CreateRequest{Name: ""})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProjectService_ListOnlyMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := registerUser(t, f.auth, "stranger")

	mine, err := f.projects.List(ctx, f.owner, project.Filter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := f.projects.List(ctx, stranger, project.Filter{})
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = f.projects.List(ctx, f.owner, project.Filter{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProjectService_Authorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dev := f.member(t, "dev", project.RoleDeveloper)
	stranger := registerUser(t, f.auth, "stranger")
	admin := &user.User{ID: "root", Role: user.RoleAdmin}

	m, err := f.projects.Authorize(ctx, dev, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.RoleDeveloper, m.Role)

	_, err = f.projects.Authorize(ctx, dev, f.project.ID, project.RoleOwner)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.projects.Authorize(ctx, stranger, f.project.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	m, err = f.projects.Authorize(ctx, admin, f.project.ID, project.RoleOwner)
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = f.projects.Authorize(ctx, dev, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.projects.Authorize(ctx, nil, f.project.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProjectService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := project.StatusActive
	p, err := f.projects.Update(ctx, f.project.ID, project.UpdateRequest{Name: ptr("Apollo 11"), Status: &active})
	require.NoError(t, err)
	assert.Equal(t, "Apollo 11", p.Name)
	assert.Equal(t, project.StatusActive, p.Status)
	assert.Equal(t, 2, p.Version)

	_, err = f.projects.Update(ctx, f.project.ID, project.UpdateRequest{Color: ptr("red")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.projects.Update(ctx, "missing", project.UpdateRequest{Name: ptr("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProjectService_Members(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dev := f.member(t, "dev", project.RoleDeveloper)

	_, err := f.projects.AddMember(ctx, f.owner.ID, f.project.ID, project.AddMemberRequest{UserID: dev.ID})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = f.projects.AddMember(ctx, f.owner.ID, f.project.ID, project.AddMemberRequest{UserID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m, err := f.projects.UpdateMemberRole(ctx, f.project.ID, dev.ID, project.RoleScrumMaster)
	require.NoError(t, err)
	assert.Equal(t, project.RoleScrumMaster, m.Role)

	_, err = f.projects.UpdateMemberRole(ctx, f.project.ID, f.owner.ID, project.RoleDeveloper)
	assert.ErrorIs(t, err, domain.ErrValidation, "last owner cannot be demoted")
	assert.ErrorIs(t, f.projects.RemoveMember(ctx, f.project.ID, f.owner.ID), domain.ErrValidation)

	_, err = f.projects.UpdateMemberRole(ctx, f.project.ID, dev.ID, project.RoleOwner)
	require.NoError(t, err)
	require.NoError(t, f.projects.RemoveMember(ctx, f.project.ID, f.owner.ID))

	members, err := f.projects.ListMembers(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, dev.ID, members[0].UserID)
}

func TestProjectService_StatsAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item(t, "A", 3, withStatus(backlog.StatusDone))
	f.item(t, "B", 1)

	st, err := f.projects.Stats(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalStoryPoints)
	assert.Equal(t, 3, st.CompletedPoints)
	assert.InDelta(t, 75.0, st.CompletionPercent, 0.001)

	require.NoError(t, f.projects.Delete(ctx, f.project.ID))
	_, err = f.projects.Get(ctx, f.project.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	items, err := f.backlogs.List(ctx, backlog.Filter{ProjectID: f.project.ID})
	require.NoError(t, err)
	assert.Empty(t, items)
}
