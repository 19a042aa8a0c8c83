package velocity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/sprint"
)

func ptr[T any](v T) *T { return &v }

func itemIn(sprintID string, status backlog.Status, pts int) backlog.Item {
	it := backlog.Item{Status: status, StoryPoints: ptr(pts)}
	if sprintID != "" {
		it.SprintID = ptr(sprintID)
	}
	return it
}

func TestAdjustments(t *testing.T) {
	tests := []struct {
		name   string
		before backlog.Item
		after  backlog.Item
		want   []sprint.PointAdjustment
	}{
		{
			name:   "into done adds points",
			before: itemIn("s1", backlog.StatusInProgress, 5),
			after:  itemIn("s1", backlog.StatusDone, 5),
			want:   []sprint.PointAdjustment{{SprintID: "s1", Delta: 5}},
		},
		{
			name:   "out of done subtracts points",
			before: itemIn("s1", backlog.StatusDone, 5),
			after:  itemIn("s1", backlog.StatusInReview, 5),
			want:   []sprint.PointAdjustment{{SprintID: "s1", Delta: -5}},
		},
		{
			name:   "point change while done applies delta",
			before: itemIn("s1", backlog.StatusDone, 5),
			after:  itemIn("s1", backlog.StatusDone, 8),
			want:   []sprint.PointAdjustment{{SprintID: "s1", Delta: 3}},
		},
		{
			name:   "sprint move while done transfers points",
			before: itemIn("s1", backlog.StatusDone, 5),
			after:  itemIn("s2", backlog.StatusDone, 5),
			want:   []sprint.PointAdjustment{{SprintID: "s1", Delta: -5}, {SprintID: "s2", Delta: 5}},
		},
		{
			name:   "done without sprint contributes nothing",
			before: itemIn("", backlog.StatusTodo, 5),
			after:  itemIn("", backlog.StatusDone, 5),
		},
		{
			name:   "removed from sprint while done",
			before: itemIn("s1", backlog.StatusDone, 3),
			after:  itemIn("", backlog.StatusDone, 3),
			want:   []sprint.PointAdjustment{{SprintID: "s1", Delta: -3}},
		},
		{
			name:   "unchanged done item",
			before: itemIn("s1", backlog.StatusDone, 3),
			after:  itemIn("s1", backlog.StatusDone, 3),
		},
		{
			name:   "not done status change",
			before: itemIn("s1", backlog.StatusTodo, 3),
			after:  itemIn("s1", backlog.StatusInProgress, 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Adjustments(tt.before, tt.after))
		})
	}
}

func TestAdjustments_UnestimatedItem(t *testing.T) {
	before := backlog.Item{Status: backlog.StatusTodo, SprintID: ptr("s1")}
	after := backlog.Item{Status: backlog.StatusDone, SprintID: ptr("s1")}
	assert.Empty(t, Adjustments(before, after))
}

func TestAffectedSprints(t *testing.T) {
	assert.Equal(t, []string{"s1", "s2"}, AffectedSprints(itemIn("s1", backlog.StatusDone, 1), itemIn("s2", backlog.StatusDone, 1)))
	assert.Equal(t, []string{"s1"}, AffectedSprints(itemIn("s1", backlog.StatusTodo, 1), itemIn("s1", backlog.StatusDone, 1)))
	assert.Empty(t, AffectedSprints(itemIn("", backlog.StatusTodo, 1), itemIn("", backlog.StatusDone, 1)))
}

func testSprint() sprint.Sprint {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return sprint.Sprint{ID: "s1", StartDate: start, EndDate: start.AddDate(0, 0, 10)}
}

func snap(s sprint.Sprint, day, completed, remaining int) Snapshot {
	return Snapshot{SprintID: s.ID, Date: s.StartDate.AddDate(0, 0, day), CompletedPoints: completed, RemainingPoints: remaining}
}

func TestAnalyzeTrend_InsufficientData(t *testing.T) {
	s := testSprint()
	rep := AnalyzeTrend(s, nil)
	assert.Equal(t, TrendInsufficientData, rep.Trend)
	assert.False(t, rep.OnTrack)

	rep = AnalyzeTrend(s, []Snapshot{snap(s, 0, 0, 40)})
	assert.Equal(t, TrendInsufficientData, rep.Trend)
	assert.False(t, rep.OnTrack)
	assert.Equal(t, 40, rep.CurrentRemaining)
}

func TestAnalyzeTrend_Decreasing(t *testing.T) {
	s := testSprint()
	rep := AnalyzeTrend(s, []Snapshot{snap(s, 0, 0, 40), snap(s, 5, 25, 15)})

	assert.Equal(t, TrendDecreasing, rep.Trend)
	assert.InDelta(t, -5.0, rep.Slope, 1e-9)
	assert.InDelta(t, 20.0, rep.IdealRemaining, 1e-9)
	assert.True(t, rep.OnTrack)
	require.NotNil(t, rep.ProjectedCompletion)
	assert.Equal(t, s.StartDate.AddDate(0, 0, 8), *rep.ProjectedCompletion)
}

func TestAnalyzeTrend_BehindSchedule(t *testing.T) {
	s := testSprint()
	rep := AnalyzeTrend(s, []Snapshot{snap(s, 0, 0, 40), snap(s, 5, 10, 30)})
	assert.Equal(t, TrendDecreasing, rep.Trend)
	assert.False(t, rep.OnTrack)
}

func TestAnalyzeTrend_IncreasingAndFlat(t *testing.T) {
	s := testSprint()
	up := AnalyzeTrend(s, []Snapshot{snap(s, 0, 0, 20), snap(s, 2, 0, 30)})
	assert.Equal(t, TrendIncreasing, up.Trend)
	assert.Nil(t, up.ProjectedCompletion)

	flat := AnalyzeTrend(s, []Snapshot{snap(s, 0, 0, 20), snap(s, 2, 0, 20)})
	assert.Equal(t, TrendFlat, flat.Trend)
	assert.Zero(t, flat.Slope)
}

func TestAnalyzeTrend_SameDaySnapshots(t *testing.T) {
	s := testSprint()
	rep := AnalyzeTrend(s, []Snapshot{snap(s, 0, 0, 20), snap(s, 0, 5, 15)})
	assert.InDelta(t, -5.0, rep.Slope, 1e-9, "days between is clamped to one")
}

func TestBuildChart(t *testing.T) {
	s := testSprint()
	c := BuildChart(s, []Snapshot{snap(s, 0, 0, 40)}, 0)
	assert.Equal(t, 40, c.TotalPoints)
	require.Len(t, c.Ideal, 11)
	assert.InDelta(t, 40.0, c.Ideal[0].Remaining, 1e-9)
	assert.InDelta(t, 20.0, c.Ideal[5].Remaining, 1e-9)
	assert.InDelta(t, 0.0, c.Ideal[10].Remaining, 1e-9)

	empty := BuildChart(s, nil, 12)
	assert.Equal(t, 12, empty.TotalPoints)
	assert.NotNil(t, empty.Actual)
}

func TestBurndown_ClockTimesIgnored(t *testing.T) {
	// Ends earlier in the day than it starts: three calendar days, two intervals.
	s := sprint.Sprint{
		ID:        "s-evening",
		StartDate: time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC),
	}
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 := jan1.AddDate(0, 0, 1)
	jan3 := jan1.AddDate(0, 0, 2)

	c := BuildChart(s, nil, 10)
	require.Len(t, c.Ideal, 3)
	assert.Equal(t, jan1, c.Ideal[0].Date)
	assert.InDelta(t, 5.0, c.Ideal[1].Remaining, 1e-9)
	assert.Equal(t, jan3, c.Ideal[2].Date)
	assert.Equal(t, c.EndDate, c.Ideal[2].Date)
	assert.InDelta(t, 0.0, c.Ideal[2].Remaining, 1e-9)

	rep := AnalyzeTrend(s, []Snapshot{
		{SprintID: s.ID, Date: jan1, RemainingPoints: 10},
		{SprintID: s.ID, Date: jan2, CompletedPoints: 5, RemainingPoints: 5},
	})
	assert.InDelta(t, 5.0, rep.IdealRemaining, 1e-9)
	assert.True(t, rep.OnTrack)
	assert.Equal(t, TrendDecreasing, rep.Trend)
}

func TestComputeMetrics(t *testing.T) {
	sprints := []sprint.Sprint{
		{ID: "a", VelocityPoints: 20},
		{ID: "b", VelocityPoints: 30},
		{ID: "c", VelocityPoints: 25},
	}
	m := ComputeMetrics("p1", sprints, 100)
	assert.Equal(t, 3, m.SprintCount)
	assert.InDelta(t, 25.0, m.Average, 1e-9)
	assert.Equal(t, 20, m.Min)
	assert.Equal(t, 30, m.Max)
	require.NotNil(t, m.ForecastSprints)
	assert.Equal(t, 4, *m.ForecastSprints)
	assert.Len(t, m.Series, 3)

	m = ComputeMetrics("p1", []sprint.Sprint{{ID: "a", VelocityPoints: 30}}, 100)
	require.NotNil(t, m.ForecastSprints)
	assert.Equal(t, 4, *m.ForecastSprints, "forecast rounds up")
}

func TestComputeMetrics_NoHistory(t *testing.T) {
	m := ComputeMetrics("p1", nil, 50)
	assert.Zero(t, m.SprintCount)
	assert.Nil(t, m.ForecastSprints)
	assert.NotNil(t, m.Series)

	m = ComputeMetrics("p1", []sprint.Sprint{{ID: "z"}}, 50)
	assert.Nil(t, m.ForecastSprints, "zero average gives no forecast")
}
