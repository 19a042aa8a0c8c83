package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/project"
)

func TestBacklogService_CreatePlacesItems(t *testing.T) {
	f := newFixture(t)

	epic := f.item(t, "Checkout", 0, func(r *backlog.CreateRequest) { r.ItemType = backlog.TypeEpic })
	story := f.item(t, "Pay by card", 3, underParent(epic.ID))
	bug := f.item(t, "Card declined twice", 1, underParent(story.ID))

	assert.Equal(t, 0, epic.Level)
	assert.Equal(t, epic.ID, epic.RootID)
	assert.Equal(t, epic.ID, epic.Path)

	assert.Equal(t, 1, story.Level)
	assert.Equal(t, epic.ID, story.RootID)
	assert.Equal(t, epic.ID+"/"+story.ID, story.Path)

	assert.Equal(t, 2, bug.Level)
	assert.Equal(t, epic.ID, bug.RootID)
	assert.Equal(t, story.Path+"/"+bug.ID, bug.Path)
}

func TestBacklogService_CreateRejectsForeignParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.projects.Create(ctx, f.owner.ID, &project.CreateRequest{Name: "Gemini"})
	require.NoError(t, err)
	foreign, err := f.backlogs.Create(ctx, &backlog.CreateRequest{ProjectID: other.ID, Title: "Elsewhere"})
	require.NoError(t, err)

	_, err = f.backlogs.Create(ctx, &backlog.CreateRequest{ProjectID: f.project.ID, Title: "x", ParentID: &foreign.ID})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.backlogs.Create(ctx, &backlog.CreateRequest{ProjectID: f.project.ID, Title: "x", ParentID: ptr("missing")})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.backlogs.Create(ctx, &backlog.CreateRequest{ProjectID: f.project.ID, Title: "x", Status: "bogus"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestBacklogService_Reparent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.item(t, "A", 0)
	b := f.item(t, "B", 0, underParent(a.ID))
	c := f.item(t, "C", 0, underParent(b.ID))
	x := f.item(t, "X", 0)

	moved, err := f.backlogs.Update(ctx, b.ID, backlog.UpdateRequest{ParentID: &x.ID})
	require.NoError(t, err)
	assert.Equal(t, x.ID+"/"+b.ID, moved.Path)
	assert.Equal(t, x.ID, moved.RootID)
	assert.Equal(t, 1, moved.Level)

	child, err := f.backlogs.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, x.ID+"/"+b.ID+"/"+c.ID, child.Path)
	assert.Equal(t, x.ID, child.RootID)
	assert.Equal(t, 2, child.Level)

	// Promote to root.
	root, err := f.backlogs.Update(ctx, b.ID, backlog.UpdateRequest{ParentID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, root.ParentID)
	assert.Equal(t, b.ID, root.Path)
	assert.Equal(t, 0, root.Level)

	child, err = f.backlogs.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID+"/"+c.ID, child.Path)
	assert.Equal(t, b.ID, child.RootID)
	assert.Equal(t, 1, child.Level)
}

func TestBacklogService_ReparentRejectsCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.item(t, "A", 0)
	b := f.item(t, "B", 0, underParent(a.ID))

	_, err := f.backlogs.Update(ctx, a.ID, backlog.UpdateRequest{ParentID: &a.ID})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.backlogs.Update(ctx, a.ID, backlog.UpdateRequest{ParentID: &b.ID})
	require.ErrorIs(t, err, domain.ErrValidation)

	unchanged, err := f.backlogs.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Path, unchanged.Path)
}

func TestBacklogService_TreeQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.item(t, "A", 0)
	b := f.item(t, "B", 0, underParent(a.ID))
	c := f.item(t, "C", 0, underParent(b.ID))
	f.item(t, "D", 0)

	tree, err := f.backlogs.Tree(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2)

	var top *backlog.Node
	for _, n := range tree {
		if n.ID == a.ID {
			top = n
		}
	}
	require.NotNil(t, top)
	require.Len(t, top.Children, 1)
	require.Len(t, top.Children[0].Children, 1)
	assert.Equal(t, c.ID, top.Children[0].Children[0].ID)

	children, err := f.backlogs.Children(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, b.ID, children[0].ID)

	ancestors, err := f.backlogs.Ancestors(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, a.ID, ancestors[0].ID)
	assert.Equal(t, b.ID, ancestors[1].ID)

	desc, err := f.backlogs.Descendants(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, desc, 2)

	roots, err := f.backlogs.List(ctx, backlog.Filter{ProjectID: f.project.ID, RootsOnly: true})
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}

func TestBacklogService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.item(t, "A", 0)
	b := f.item(t, "B", 0, underParent(a.ID))

	require.NoError(t, f.backlogs.Delete(ctx, a.ID))
	_, err := f.backlogs.Get(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.backlogs.Delete(ctx, a.ID), domain.ErrNotFound)
}

func TestBacklogService_RebuildHierarchy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.item(t, "A", 0)
	f.item(t, "B", 0, underParent(a.ID))

	_, err := f.backlogs.RebuildHierarchy(ctx, f.project.ID)
	require.NoError(t, err)

	_, err = f.backlogs.RebuildHierarchy(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBacklogService_Criteria(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := f.item(t, "Login", 2)

	_, err := f.backlogs.CreateCriteria(ctx, it.ID, backlog.CriteriaRequest{})
	require.ErrorIs(t, err, domain.ErrValidation)

	c, err := f.backlogs.CreateCriteria(ctx, it.ID, backlog.CriteriaRequest{Title: ptr("Shows an error on bad password")})
	require.NoError(t, err)
	assert.False(t, c.IsMet)

	c, err = f.backlogs.UpdateCriteria(ctx, c.ID, backlog.CriteriaRequest{IsMet: ptr(true)})
	require.NoError(t, err)
	assert.True(t, c.IsMet)

	list, err := f.backlogs.ListCriteria(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, f.backlogs.DeleteCriteria(ctx, c.ID))
	_, err = f.backlogs.GetCriteria(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBacklogService_CompletionTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := f.item(t, "Ship", 1)
	assert.Nil(t, it.CompletedAt)

	done := backlog.StatusDone
	it, err := f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{Status: &done})
	require.NoError(t, err)
	require.NotNil(t, it.CompletedAt)
	assert.WithinDuration(t, time.Now(), *it.CompletedAt, time.Minute)

	todo := backlog.StatusTodo
	it, err = f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{Status: &todo})
	require.NoError(t, err)
	assert.Nil(t, it.CompletedAt)
}

func TestBacklogService_ClosedSprintAcceptsNoNewItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1", time.Now(), 14)
	kept := f.item(t, "Shipped", 3, inSprint(sp.ID), withStatus(backlog.StatusDone))
	_, err := f.sprints.Start(ctx, f.owner.ID, sp.ID)
	require.NoError(t, err)
	_, err = f.sprints.Complete(ctx, f.owner.ID, sp.ID)
	require.NoError(t, err)
	require.Equal(t, 3, f.velocityOf(t, sp.ID))

	late := f.item(t, "Late", 5, withStatus(backlog.StatusDone))
	_, err = f.backlogs.Update(ctx, late.ID, backlog.UpdateRequest{SprintID: &sp.ID})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 3, f.velocityOf(t, sp.ID), "final velocity is unchanged")

	_, err = f.backlogs.Create(ctx, &backlog.CreateRequest{ProjectID: f.project.ID, Title: "Later", SprintID: &sp.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)

	renamed, err := f.backlogs.Update(ctx, kept.ID, backlog.UpdateRequest{Title: ptr("Shipped v2")})
	require.NoError(t, err, "items already in the sprint stay editable")
	assert.Equal(t, "Shipped v2", renamed.Title)
}

func TestBacklogService_ClearStoryPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1", time.Now(), 14)
	it := f.item(t, "Spike", 8, inSprint(sp.ID), withStatus(backlog.StatusDone))
	require.Equal(t, 8, f.velocityOf(t, sp.ID))

	cleared, err := f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{StoryPoints: backlog.ClearPoints()})
	require.NoError(t, err)
	assert.Nil(t, cleared.StoryPoints)
	assert.Equal(t, 0, f.velocityOf(t, sp.ID))
}
