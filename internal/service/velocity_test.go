package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/velocity"
	"github.com/scrumix/scrumix/internal/port/messagequeue"
)

func TestVelocity_IntoAndOutOfDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1", time.Now().AddDate(0, 0, -1), 14)
	it := f.item(t, "Story", 5, inSprint(sp.ID))

	done, todo := backlog.StatusDone, backlog.StatusTodo
	_, err := f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, 5, f.velocityOf(t, sp.ID))

	// Staying done is not counted twice.
	_, err = f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{Title: ptr("Story (renamed)")})
	require.NoError(t, err)
	assert.Equal(t, 5, f.velocityOf(t, sp.ID))

	_, err = f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{Status: &todo})
	require.NoError(t, err)
	assert.Equal(t, 0, f.velocityOf(t, sp.ID))
}

func TestVelocity_PointDeltaWhileDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1", time.Now(), 14)
	it := f.item(t, "Story", 3, inSprint(sp.ID), withStatus(backlog.StatusDone))
	assert.Equal(t, 3, f.velocityOf(t, sp.ID), "created done counts immediately")

	_, err := f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{StoryPoints: backlog.SetPoints(8)})
	require.NoError(t, err)
	assert.Equal(t, 8, f.velocityOf(t, sp.ID))
}

func TestVelocity_SprintMoveWhileDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := f.sprint(t, "S1", time.Now(), 14)
	s2 := f.sprint(t, "S2", time.Now().AddDate(0, 0, 14), 14)
	it := f.item(t, "Story", 5, inSprint(s1.ID), withStatus(backlog.StatusDone))

	_, err := f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{SprintID: &s2.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, f.velocityOf(t, s1.ID))
	assert.Equal(t, 5, f.velocityOf(t, s2.ID))

	_, err = f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{SprintID: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, 0, f.velocityOf(t, s2.ID))
}

func TestVelocity_FloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1", time.Now(), 14)
	it := f.item(t, "Story", 5, inSprint(sp.ID), withStatus(backlog.StatusDone))

	require.NoError(t, f.store.SetSprintVelocity(ctx, sp.ID, 2))
	todo := backlog.StatusTodo
	_, err := f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{Status: &todo})
	require.NoError(t, err)
	assert.Equal(t, 0, f.velocityOf(t, sp.ID))
}

func TestVelocity_SnapshotSums(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1", time.Now().AddDate(0, 0, -2), 10)
	f.item(t, "Done", 3, inSprint(sp.ID), withStatus(backlog.StatusDone))
	f.item(t, "Doing", 5, inSprint(sp.ID), withStatus(backlog.StatusInProgress))
	f.item(t, "Dropped", 8, inSprint(sp.ID), withStatus(backlog.StatusCancelled))
	f.item(t, "Elsewhere", 13)

	snap, err := f.velocity.Snapshot(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.CompletedPoints)
	assert.Equal(t, 5, snap.RemainingPoints)

	snaps, err := f.store.ListSnapshots(ctx, sp.ID)
	require.NoError(t, err)
	assert.Len(t, snaps, 1, "one row per sprint and day")
}

func TestVelocity_AccountingPublishesAndInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1", time.Now(), 14)
	it := f.item(t, "Story", 2, inSprint(sp.ID))

	_, err := f.velocity.Metrics(ctx, f.project.ID, 0)
	require.NoError(t, err)
	require.True(t, f.cache.has(velocityCacheKey(f.project.ID)))

	done := backlog.StatusDone
	_, err = f.backlogs.Update(ctx, it.ID, backlog.UpdateRequest{Status: &done})
	require.NoError(t, err)
	assert.False(t, f.cache.has(velocityCacheKey(f.project.ID)))

	events := f.eventsOn(messagequeue.SubjectVelocityUpdated)
	require.NotEmpty(t, events)
	var p messagequeue.VelocityUpdatedPayload
	require.NoError(t, json.Unmarshal(events[len(events)-1].data, &p))
	assert.Equal(t, sp.ID, p.SprintID)
	assert.Equal(t, 2, p.VelocityPoints)
	assert.Equal(t, 2, p.CompletedPoints)
}

func TestVelocity_TrendAndChart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f.velocity.clock = func() time.Time { return start }
	sp := f.sprint(t, "S1", start, 10)
	a := f.item(t, "A", 4, inSprint(sp.ID))
	f.item(t, "B", 6, inSprint(sp.ID))

	_, err := f.velocity.Snapshot(ctx, sp.ID)
	require.NoError(t, err)

	rep, err := f.velocity.Trend(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, velocity.TrendInsufficientData, rep.Trend)
	assert.False(t, rep.OnTrack)

	done := backlog.StatusDone
	f.velocity.clock = func() time.Time { return start.AddDate(0, 0, 2) }
	_, err = f.backlogs.Update(ctx, a.ID, backlog.UpdateRequest{Status: &done})
	require.NoError(t, err)

	rep, err = f.velocity.Trend(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, velocity.TrendDecreasing, rep.Trend)
	// Ideal after 2 of 10 days is 8 remaining; actual is 6.
	assert.True(t, rep.OnTrack)

	chart, err := f.velocity.Chart(ctx, sp.ID)
	require.NoError(t, err)
	assert.Len(t, chart.Actual, 2)
	assert.Len(t, chart.Ideal, 11)
}

func TestVelocity_MetricsAndForecast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	for i, pts := range []int{10, 20, 30, 40} {
		sp := f.sprint(t, "S", base.AddDate(0, 0, 14*i), 14)
		f.item(t, "done", pts, inSprint(sp.ID), withStatus(backlog.StatusDone))
		_, err := f.sprints.Start(ctx, f.owner.ID, sp.ID)
		require.NoError(t, err)
		_, err = f.sprints.Complete(ctx, f.owner.ID, sp.ID)
		require.NoError(t, err)
	}
	f.item(t, "open", 65)

	m, err := f.velocity.Metrics(ctx, f.project.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, m.SprintCount, "default window is three here")
	assert.InDelta(t, 30.0, m.Average, 0.001)
	assert.Equal(t, 20, m.Min)
	assert.Equal(t, 40, m.Max)
	require.Len(t, m.Series, 3)
	assert.Equal(t, 20, m.Series[0].Points, "oldest first")
	assert.Equal(t, 65, m.RemainingPoints)
	require.NotNil(t, m.ForecastSprints)
	assert.Equal(t, 3, *m.ForecastSprints)

	all, err := f.velocity.Metrics(ctx, f.project.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, all.SprintCount)
	assert.InDelta(t, 25.0, all.Average, 0.001)

	_, err = f.velocity.Metrics(ctx, f.project.ID, domain.MaxLimit+1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVelocity_MetricsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.velocity.Metrics(ctx, f.project.ID, 0)
	require.NoError(t, err)
	_, err = f.velocity.Metrics(ctx, f.project.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.sets)

	_, err = f.velocity.Metrics(ctx, f.project.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.sets, "non-default windows bypass the cache")

	_, err = f.velocity.Metrics(ctx, "missing", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVelocity_Recalculate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1", time.Now(), 14)
	f.item(t, "A", 3, inSprint(sp.ID), withStatus(backlog.StatusDone))
	f.item(t, "B", 4, inSprint(sp.ID), withStatus(backlog.StatusDone))
	require.NoError(t, f.store.SetSprintVelocity(ctx, sp.ID, 99))

	got, err := f.velocity.Recalculate(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.VelocityPoints)
}
