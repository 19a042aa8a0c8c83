package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/sprint"
)

const sprintColumns = `id, project_id, name, goal, status, start_date, end_date, capacity, velocity_points, created_at, updated_at`

func scanSprint(row scannable) (sprint.Sprint, error) {
	var sp sprint.Sprint
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.Goal, &sp.Status, &sp.StartDate, &sp.EndDate,
		&sp.Capacity, &sp.VelocityPoints, &sp.CreatedAt, &sp.UpdatedAt)
	return sp, err
}

// activeConflict turns a violation of the one-active-sprint index into ErrConflict.
func activeConflict(err error, format string, args ...any) error {
	err = constraintWrap(err, format, args...)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("%s: project already has an active sprint: %w", fmt.Sprintf(format, args...), domain.ErrConflict)
	}
	return err
}

func (s *Store) CreateSprint(ctx context.Context, sp *sprint.Sprint) error {
	now := time.Now().UTC()
	sp.CreatedAt, sp.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sprints (`+sprintColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sp.ID, sp.ProjectID, sp.Name, sp.Goal, sp.Status, sp.StartDate, sp.EndDate,
		sp.Capacity, sp.VelocityPoints, sp.CreatedAt, sp.UpdatedAt)
	if err != nil {
		return activeConflict(err, "create sprint")
	}
	return nil
}

func (s *Store) GetSprint(ctx context.Context, id string) (*sprint.Sprint, error) {
	sp, err := scanSprint(s.pool.QueryRow(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get sprint %s", id)
	}
	return &sp, nil
}

func (s *Store) ListSprints(ctx context.Context, f sprint.Filter) ([]sprint.Sprint, error) {
	var w where
	if f.ProjectID != "" {
		w.add("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	q := `SELECT ` + sprintColumns + ` FROM sprints` + w.sql() + ` ORDER BY start_date DESC, created_at DESC` + w.page(f.Page)

	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	return collect(rows, scanSprint)
}

func (s *Store) UpdateSprint(ctx context.Context, sp *sprint.Sprint) error {
	sp.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE sprints SET name = $2, goal = $3, status = $4, start_date = $5, end_date = $6, capacity = $7, updated_at = $8
		WHERE id = $1`,
		sp.ID, sp.Name, sp.Goal, sp.Status, sp.StartDate, sp.EndDate, sp.Capacity, sp.UpdatedAt)
	if err != nil {
		return activeConflict(err, "update sprint %s", sp.ID)
	}
	return execExpectOne(tag, nil, "update sprint %s", sp.ID)
}

func (s *Store) DeleteSprint(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sprints WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete sprint %s", id)
}

func (s *Store) GetActiveSprint(ctx context.Context, projectID string) (*sprint.Sprint, error) {
	sp, err := scanSprint(s.pool.QueryRow(ctx,
		`SELECT `+sprintColumns+` FROM sprints WHERE project_id = $1 AND status = 'active'`, projectID))
	if err != nil {
		return nil, notFoundWrap(err, "get active sprint of %s", projectID)
	}
	return &sp, nil
}

func (s *Store) SetSprintVelocity(ctx context.Context, sprintID string, points int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sprints SET velocity_points = GREATEST($2, 0), updated_at = now() WHERE id = $1`, sprintID, points)
	return execExpectOne(tag, err, "set sprint velocity %s", sprintID)
}

func (s *Store) SprintStats(ctx context.Context, sprintID string) (*sprint.Stats, error) {
	sp, err := s.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	st := &sprint.Stats{SprintID: sprintID, VelocityPoints: sp.VelocityPoints, Capacity: sp.Capacity}

	if st.ItemsByStatus, err = countBy(ctx, s.pool,
		`SELECT status, count(*) FROM backlogs WHERE sprint_id = $1 GROUP BY status`, sprintID); err != nil {
		return nil, fmt.Errorf("sprint stats: %w", err)
	}
	for _, n := range st.ItemsByStatus {
		st.ItemCount += n
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(story_points) FILTER (WHERE status <> 'cancelled'), 0),
		       COALESCE(SUM(story_points) FILTER (WHERE status = 'done'), 0)
		FROM backlogs WHERE sprint_id = $1`, sprintID).Scan(&st.TotalPoints, &st.CompletedPoints)
	if err != nil {
		return nil, fmt.Errorf("sprint stats points: %w", err)
	}

	if remaining := time.Until(sp.EndDate); remaining > 0 {
		st.DaysRemaining = int(remaining.Hours()/24) + 1
	}
	return st, nil
}
