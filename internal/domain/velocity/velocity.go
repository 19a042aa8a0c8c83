// Package velocity implements sprint point accounting, burndown trend
// analysis and velocity forecasting.
package velocity

import (
	"math"
	"time"

	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/sprint"
)

// Trend labels.
const (
	TrendInsufficientData = "insufficient_data"
	TrendDecreasing       = "decreasing"
	TrendIncreasing       = "increasing"
	TrendFlat             = "flat"
)

// Event types published when accounting changes.
const (
	EventUpdated         = "velocity.updated"
	EventBurndownUpdated = "burndown.updated"
)

// Snapshot is the burndown state of a sprint on one day.
type Snapshot struct {
	ID              string    `json:"id"`
	SprintID        string    `json:"sprint_id"`
	ProjectID       string    `json:"project_id"`
	Date            time.Time `json:"snapshot_date"`
	CompletedPoints int       `json:"completed_points"`
	RemainingPoints int       `json:"remaining_points"`
	CreatedAt       time.Time `json:"created_at"`
}

// Total returns completed plus remaining points.
func (s Snapshot) Total() int {
	return s.CompletedPoints + s.RemainingPoints
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) float64 {
	return Day(b).Sub(Day(a)).Hours() / 24
}

// Adjustments returns the sprint velocity changes implied by an item moving
// from before to after. Only items that are done and assigned to a sprint
// contribute their story points.
func Adjustments(before, after backlog.Item) []sprint.PointAdjustment {
	oldSprint, oldPts := contribution(before)
	newSprint, newPts := contribution(after)

	if oldSprint == newSprint {
		if oldSprint == "" || oldPts == newPts {
			return nil
		}
		return []sprint.PointAdjustment{{SprintID: oldSprint, Delta: newPts - oldPts}}
	}

	var adj []sprint.PointAdjustment
	if oldSprint != "" && oldPts != 0 {
		adj = append(adj, sprint.PointAdjustment{SprintID: oldSprint, Delta: -oldPts})
	}
	if newSprint != "" && newPts != 0 {
		adj = append(adj, sprint.PointAdjustment{SprintID: newSprint, Delta: newPts})
	}
	return adj
}

func contribution(it backlog.Item) (string, int) {
	if it.Status != backlog.StatusDone || it.InSprint() == "" {
		return "", 0
	}
	return it.InSprint(), it.Points()
}

// AffectedSprints returns the distinct sprints an item belonged to before or
// after a change, in that order.
func AffectedSprints(before, after backlog.Item) []string {
	var ids []string
	if s := before.InSprint(); s != "" {
		ids = append(ids, s)
	}
	if s := after.InSprint(); s != "" && s != before.InSprint() {
		ids = append(ids, s)
	}
	return ids
}

// Accounting reports whether a change can alter sprint points or burndown.
func Accounting(before, after backlog.Item) bool {
	return before.Status != after.Status ||
		before.Points() != after.Points() ||
		before.InSprint() != after.InSprint()
}

// TrendReport is the linear trend of a sprint's burndown.
type TrendReport struct {
	SprintID            string     `json:"sprint_id"`
	Trend               string     `json:"trend"`
	Slope               float64    `json:"slope"`
	OnTrack             bool       `json:"on_track"`
	SnapshotCount       int        `json:"snapshot_count"`
	CurrentRemaining    int        `json:"current_remaining"`
	IdealRemaining      float64    `json:"ideal_remaining"`
	ProjectedCompletion *time.Time `json:"projected_completion,omitempty"`
}

// idealAt returns the remaining points on the ideal line at day t.
func idealAt(s sprint.Sprint, total int, t time.Time) float64 {
	duration := float64(s.Days())
	elapsed := daysBetween(s.StartDate, t)
	elapsed = math.Max(0, math.Min(elapsed, duration))
	return float64(total) * (1 - elapsed/duration)
}

// AnalyzeTrend computes the trend between the first and last snapshot,
// which must be ordered by date.
func AnalyzeTrend(s sprint.Sprint, snaps []Snapshot) TrendReport {
	rep := TrendReport{SprintID: s.ID, SnapshotCount: len(snaps), Trend: TrendInsufficientData}
	if len(snaps) > 0 {
		rep.CurrentRemaining = snaps[len(snaps)-1].RemainingPoints
	}
	if len(snaps) < 2 {
		return rep
	}

	first, last := snaps[0], snaps[len(snaps)-1]
	days := math.Max(daysBetween(first.Date, last.Date), 1)
	rep.Slope = float64(last.RemainingPoints-first.RemainingPoints) / days

	switch {
	case rep.Slope < 0:
		rep.Trend = TrendDecreasing
		daysLeft := math.Ceil(float64(last.RemainingPoints) / -rep.Slope)
		eta := Day(last.Date).AddDate(0, 0, int(daysLeft))
		rep.ProjectedCompletion = &eta
	case rep.Slope > 0:
		rep.Trend = TrendIncreasing
	default:
		rep.Trend = TrendFlat
	}

	rep.IdealRemaining = idealAt(s, first.Total(), last.Date)
	rep.OnTrack = float64(last.RemainingPoints) <= rep.IdealRemaining
	return rep
}

// IdealPoint is one day of the ideal burndown line.
type IdealPoint struct {
	Date      time.Time `json:"date"`
	Remaining float64   `json:"remaining_points"`
}

// Chart is the burndown of a sprint with its ideal line.
type Chart struct {
	SprintID    string       `json:"sprint_id"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	TotalPoints int          `json:"total_points"`
	Actual      []Snapshot   `json:"actual"`
	Ideal       []IdealPoint `json:"ideal"`
}

// BuildChart combines ordered snapshots with one ideal point per sprint day.
// The ideal line starts at the first snapshot's total, or at fallbackTotal
// when there are no snapshots.
func BuildChart(s sprint.Sprint, snaps []Snapshot, fallbackTotal int) Chart {
	total := fallbackTotal
	if len(snaps) > 0 {
		total = snaps[0].Total()
	}
	if snaps == nil {
		snaps = []Snapshot{}
	}
	c := Chart{
		SprintID:    s.ID,
		StartDate:   Day(s.StartDate),
		EndDate:     Day(s.EndDate),
		TotalPoints: total,
		Actual:      snaps,
	}
	days := s.Days()
	c.Ideal = make([]IdealPoint, 0, days+1)
	for d := 0; d <= days; d++ {
		day := c.StartDate.AddDate(0, 0, d)
		c.Ideal = append(c.Ideal, IdealPoint{Date: day, Remaining: idealAt(s, total, day)})
	}
	return c
}

// SprintVelocity is the completed points of one sprint.
type SprintVelocity struct {
	SprintID string    `json:"sprint_id"`
	Name     string    `json:"name"`
	EndDate  time.Time `json:"end_date"`
	Points   int       `json:"velocity_points"`
}

// Metrics summarizes a project's velocity history and forecast.
type Metrics struct {
	ProjectID       string           `json:"project_id"`
	SprintCount     int              `json:"sprint_count"`
	Average         float64          `json:"average_velocity"`
	Min             int              `json:"min_velocity"`
	Max             int              `json:"max_velocity"`
	Series          []SprintVelocity `json:"sprints"`
	RemainingPoints int              `json:"remaining_points"`
	ForecastSprints *int             `json:"forecast_sprints"`
}

// ComputeMetrics summarizes completed sprints and forecasts how many sprints
// the remaining backlog points need at the average velocity.
func ComputeMetrics(projectID string, completed []sprint.Sprint, remaining int) Metrics {
	m := Metrics{
		ProjectID:       projectID,
		SprintCount:     len(completed),
		Series:          make([]SprintVelocity, 0, len(completed)),
		RemainingPoints: remaining,
	}
	if len(completed) == 0 {
		return m
	}

	sum := 0
	m.Min = completed[0].VelocityPoints
	for _, s := range completed {
		v := s.VelocityPoints
		sum += v
		m.Min = min(m.Min, v)
		m.Max = max(m.Max, v)
		m.Series = append(m.Series, SprintVelocity{SprintID: s.ID, Name: s.Name, EndDate: s.EndDate, Points: v})
	}
	m.Average = float64(sum) / float64(len(completed))
	if m.Average > 0 {
		n := int(math.Ceil(float64(remaining) / m.Average))
		m.ForecastSprints = &n
	}
	return m
}

// UpdatedEvent is published when a sprint's accounting changed.
type UpdatedEvent struct {
	ProjectID string    `json:"project_id"`
	SprintID  string    `json:"sprint_id"`
	Velocity  int       `json:"velocity_points"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
}
