package backlog

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/domain"
)

func item(id string) *Item {
	return &Item{ID: id, ProjectID: "p1", Priority: PriorityMedium}
}

func TestPlace(t *testing.T) {
	root := item("a")
	require.NoError(t, Place(root, nil))
	assert.Equal(t, 0, root.Level)
	assert.Equal(t, "a", root.Path)
	assert.Equal(t, "a", root.RootID)
	assert.Nil(t, root.ParentID)

	child := item("b")
	require.NoError(t, Place(child, root))
	assert.Equal(t, 1, child.Level)
	assert.Equal(t, "a/b", child.Path)
	assert.Equal(t, "a", child.RootID)
	assert.Equal(t, "a", child.Parent())

	grandchild := item("c")
	require.NoError(t, Place(grandchild, child))
	assert.Equal(t, 2, grandchild.Level)
	assert.Equal(t, "a/b/c", grandchild.Path)
	assert.Equal(t, []string{"a", "b"}, AncestorIDs(grandchild.Path))
}

func TestPlace_OtherProject(t *testing.T) {
	parent := item("a")
	require.NoError(t, Place(parent, nil))
	parent.ProjectID = "p2"

	err := Place(item("b"), parent)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestReparent(t *testing.T) {
	a, b, c, x := item("a"), item("b"), item("c"), item("x")
	require.NoError(t, Place(a, nil))
	require.NoError(t, Place(b, a))
	require.NoError(t, Place(c, b))
	require.NoError(t, Place(x, nil))

	t.Run("rejects self", func(t *testing.T) {
		moved := *b
		_, err := Reparent(&moved, &moved)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("rejects descendant", func(t *testing.T) {
		moved := *b
		_, err := Reparent(&moved, c)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("moves subtree under another root", func(t *testing.T) {
		moved := *b
		rb, err := Reparent(&moved, x)
		require.NoError(t, err)
		assert.Equal(t, "x/b", moved.Path)
		assert.Equal(t, 1, moved.Level)
		assert.Equal(t, "x", moved.RootID)

		desc := *c
		rb.Apply(&desc)
		assert.Equal(t, "x/b/c", desc.Path)
		assert.Equal(t, 2, desc.Level)
		assert.Equal(t, "x", desc.RootID)
	})

	t.Run("promotes to root", func(t *testing.T) {
		moved := *b
		rb, err := Reparent(&moved, nil)
		require.NoError(t, err)
		assert.Equal(t, "b", moved.Path)
		assert.Equal(t, 0, moved.Level)
		assert.Equal(t, -1, rb.LevelDelta)

		desc := *c
		rb.Apply(&desc)
		assert.Equal(t, "b/c", desc.Path)
		assert.Equal(t, 1, desc.Level)
		assert.Equal(t, "b", desc.RootID)
	})
}

func TestIsDescendantPath(t *testing.T) {
	assert.True(t, IsDescendantPath("a/b/c", "a/b"))
	assert.False(t, IsDescendantPath("a/b", "a/b"))
	assert.False(t, IsDescendantPath("a/bc", "a/b"))
}

func TestBuildTree(t *testing.T) {
	now := time.Now()
	a, b, c, d := item("a"), item("b"), item("c"), item("d")
	require.NoError(t, Place(a, nil))
	require.NoError(t, Place(d, nil))
	require.NoError(t, Place(b, a))
	require.NoError(t, Place(c, a))
	a.CreatedAt, d.CreatedAt = now, now.Add(time.Second)
	b.Priority, c.Priority = PriorityLow, PriorityCritical

	roots := BuildTree([]Item{*b, *d, *c, *a})
	require.Len(t, roots, 2)
	assert.Equal(t, "a", roots[0].ID)
	assert.Equal(t, "d", roots[1].ID)
	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, "c", roots[0].Children[0].ID, "critical sorts before low")
	assert.Equal(t, "b", roots[0].Children[1].ID)
	assert.Empty(t, roots[1].Children)
}

func TestStampCompletion(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	it := Item{Status: StatusDone}
	it.StampCompletion(StatusInProgress, now)
	require.NotNil(t, it.CompletedAt)
	assert.Equal(t, now, *it.CompletedAt)

	later := now.Add(time.Hour)
	it.StampCompletion(StatusDone, later)
	assert.Equal(t, now, *it.CompletedAt, "staying done keeps the original timestamp")

	it.Status = StatusTodo
	it.StampCompletion(StatusDone, later)
	assert.Nil(t, it.CompletedAt)
}

func TestUpdateRequest_Apply(t *testing.T) {
	pts := 5
	base := Item{Title: "t", Status: StatusTodo, Priority: PriorityMedium, ItemType: TypeStory, StoryPoints: &pts}

	empty := ""
	out, err := (&UpdateRequest{SprintID: &empty}).Apply(Item{Title: "t", Status: StatusTodo, Priority: PriorityLow, ItemType: TypeBug, SprintID: &empty})
	require.NoError(t, err)
	assert.Nil(t, out.SprintID)

	_, err = (&UpdateRequest{StoryPoints: SetPoints(-1)}).Apply(base)
	assert.ErrorIs(t, err, domain.ErrValidation)

	bad := Status("blocked")
	_, err = (&UpdateRequest{Status: &bad}).Apply(base)
	assert.ErrorIs(t, err, domain.ErrValidation)

	out, err = (&UpdateRequest{StoryPoints: SetPoints(8)}).Apply(base)
	require.NoError(t, err)
	assert.Equal(t, 8, out.Points())
	assert.Equal(t, 5, base.Points(), "apply must not mutate the input")

	out, err = (&UpdateRequest{StoryPoints: ClearPoints()}).Apply(base)
	require.NoError(t, err)
	assert.Nil(t, out.StoryPoints)

	out, err = (&UpdateRequest{}).Apply(base)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Points(), "absent field keeps the estimate")
}

func TestUpdateRequest_StoryPointsJSON(t *testing.T) {
	cases := map[string]struct {
		body  string
		set   bool
		value *int
	}{
		"absent": {body: `{"title":"x"}`},
		"null":   {body: `{"story_points":null}`, set: true},
		"number": {body: `{"story_points":13}`, set: true, value: ptrInt(13)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var req UpdateRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, tc.set, req.StoryPoints.Set)
			assert.Equal(t, tc.value, req.StoryPoints.Value)
		})
	}

	var req UpdateRequest
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"story_points":"many"}`), &req), domain.ErrValidation)
}

func ptrInt(n int) *int { return &n }
