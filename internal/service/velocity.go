package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	sxotel "github.com/scrumix/scrumix/internal/adapter/otel"
	"github.com/scrumix/scrumix/internal/config"
	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/sprint"
	"github.com/scrumix/scrumix/internal/domain/velocity"
	"github.com/scrumix/scrumix/internal/port/cache"
	"github.com/scrumix/scrumix/internal/port/database"
)

// VelocityService keeps burndown snapshots current and computes velocity
// metrics and forecasts.
type VelocityService struct {
	store   database.Store
	cache   cache.Cache
	events  *EventPublisher
	cfg     config.Velocity
	metrics *sxotel.Metrics
	group   singleflight.Group
	clock   func() time.Time
}

// NewVelocityService creates a velocity service. cache, events and metrics may be nil.
func NewVelocityService(store database.Store, c cache.Cache, events *EventPublisher, cfg config.Velocity, metrics *sxotel.Metrics) *VelocityService {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 6
	}
	return &VelocityService{store: store, cache: c, events: events, cfg: cfg, metrics: metrics, clock: time.Now}
}

func velocityCacheKey(projectID string) string {
	return cache.Key("velocity", projectID)
}

// Refresh snapshots every listed sprint for today, publishes the new figures
// and drops the project's cached metrics. Errors are logged; the caller's
// change is already committed.
func (s *VelocityService) Refresh(ctx context.Context, projectID string, sprintIDs []string) {
	for _, id := range sprintIDs {
		snap, err := s.Snapshot(ctx, id)
		if err != nil {
			slog.Warn("burndown snapshot failed", "sprint_id", id, "error", err)
			continue
		}
		sp, err := s.store.GetSprint(ctx, id)
		if err != nil {
			slog.Warn("load sprint after accounting", "sprint_id", id, "error", err)
			continue
		}
		s.events.PublishVelocity(ctx, velocity.UpdatedEvent{
			ProjectID: projectID,
			SprintID:  id,
			Velocity:  sp.VelocityPoints,
			Snapshot:  snap,
		})
	}
	s.Invalidate(ctx, projectID)
}

// Invalidate drops the cached metrics of a project.
func (s *VelocityService) Invalidate(ctx context.Context, projectID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, velocityCacheKey(projectID)); err != nil {
		slog.Warn("velocity cache invalidation failed", "project_id", projectID, "error", err)
	}
}

// Snapshot upserts today's burndown row of a sprint from its current items.
func (s *VelocityService) Snapshot(ctx context.Context, sprintID string) (*velocity.Snapshot, error) {
	sp, err := s.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	ctx, span := sxotel.StartVelocitySpan(ctx, "snapshot", sp.ProjectID, sprintID)
	defer span.End()

	completed, remaining, err := s.store.SprintPoints(ctx, sprintID)
	if err != nil {
		return nil, fmt.Errorf("sum sprint points: %w", err)
	}
	ts := s.clock()
	snap := &velocity.Snapshot{
		ID:              newID(),
		SprintID:        sprintID,
		ProjectID:       sp.ProjectID,
		Date:            velocity.Day(ts),
		CompletedPoints: completed,
		RemainingPoints: remaining,
		CreatedAt:       ts.UTC(),
	}
	if err := s.store.UpsertSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("upsert snapshot: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Add(ctx, s.metrics.SnapshotsRecorded, 1, sp.ProjectID)
	}
	return snap, nil
}

// Recalculate recomputes a sprint's velocity points from its done items.
func (s *VelocityService) Recalculate(ctx context.Context, sprintID string) (*sprint.Sprint, error) {
	sp, err := s.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	completed, _, err := s.store.SprintPoints(ctx, sprintID)
	if err != nil {
		return nil, fmt.Errorf("sum sprint points: %w", err)
	}
	if completed != sp.VelocityPoints {
		slog.Info("sprint velocity corrected", "sprint_id", sprintID, "from", sp.VelocityPoints, "to", completed)
	}
	if err := s.store.SetSprintVelocity(ctx, sprintID, completed); err != nil {
		return nil, err
	}
	s.Refresh(ctx, sp.ProjectID, []string{sprintID})
	return s.store.GetSprint(ctx, sprintID)
}

// Chart returns a sprint's recorded burndown with the ideal line.
func (s *VelocityService) Chart(ctx context.Context, sprintID string) (*velocity.Chart, error) {
	sp, snaps, err := s.history(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	fallback := 0
	if len(snaps) == 0 {
		completed, remaining, err := s.store.SprintPoints(ctx, sprintID)
		if err != nil {
			return nil, fmt.Errorf("sum sprint points: %w", err)
		}
		fallback = completed + remaining
	}
	c := velocity.BuildChart(*sp, snaps, fallback)
	return &c, nil
}

// Trend classifies a sprint's burndown and tells whether it is on track.
func (s *VelocityService) Trend(ctx context.Context, sprintID string) (*velocity.TrendReport, error) {
	sp, snaps, err := s.history(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	rep := velocity.AnalyzeTrend(*sp, snaps)
	return &rep, nil
}

func (s *VelocityService) history(ctx context.Context, sprintID string) (*sprint.Sprint, []velocity.Snapshot, error) {
	sp, err := s.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, nil, err
	}
	snaps, err := s.store.ListSnapshots(ctx, sprintID)
	if err != nil {
		return nil, nil, fmt.Errorf("list snapshots: %w", err)
	}
	return sp, snaps, nil
}

// Metrics returns velocity statistics over the last window completed sprints
// of a project and a forecast for its open backlog. window <= 0 uses the
// configured default, which is the only cached window.
func (s *VelocityService) Metrics(ctx context.Context, projectID string, window int) (*velocity.Metrics, error) {
	if window <= 0 {
		window = s.cfg.HistoryWindow
	}
	if window > domain.MaxLimit {
		return nil, domain.Invalid("window must not exceed %d", domain.MaxLimit)
	}
	cacheable := window == s.cfg.HistoryWindow && s.cache != nil
	key := velocityCacheKey(projectID)

	if cacheable {
		var m velocity.Metrics
		found, err := cache.GetJSON(ctx, s.cache, key, &m)
		if err != nil {
			slog.Warn("velocity cache read failed", "project_id", projectID, "error", err)
		}
		if found {
			s.count(ctx, true, projectID)
			return &m, nil
		}
		s.count(ctx, false, projectID)
	}

	v, err, _ := s.group.Do(projectID+"/"+strconv.Itoa(window), func() (any, error) {
		m, err := s.compute(ctx, projectID, window)
		if err != nil {
			return nil, err
		}
		if cacheable {
			if err := cache.SetJSON(ctx, s.cache, key, m, s.cfg.CacheTTL); err != nil {
				slog.Warn("velocity cache write failed", "project_id", projectID, "error", err)
			}
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*velocity.Metrics), nil
}

func (s *VelocityService) compute(ctx context.Context, projectID string, window int) (*velocity.Metrics, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	start := time.Now()
	ctx, span := sxotel.StartVelocitySpan(ctx, "metrics", projectID, "")
	defer span.End()

	var (
		completed []sprint.Sprint
		remaining int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		completed, err = s.store.ListSprints(gctx, sprint.Filter{
			ProjectID: projectID,
			Status:    sprint.StatusCompleted,
			Page:      domain.Page{Limit: window},
		})
		return err
	})
	g.Go(func() error {
		var err error
		remaining, err = s.store.RemainingPoints(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load velocity history: %w", err)
	}

	// Oldest first so the series reads left to right.
	slices.Reverse(completed)
	m := velocity.ComputeMetrics(projectID, completed, remaining)

	if s.metrics != nil {
		s.metrics.MetricsDuration.Record(ctx, time.Since(start).Seconds())
	}
	return &m, nil
}

func (s *VelocityService) count(ctx context.Context, hit bool, projectID string) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.Add(ctx, s.metrics.VelocityCacheHits, 1, projectID)
		return
	}
	s.metrics.Add(ctx, s.metrics.VelocityCacheMisses, 1, projectID)
}
