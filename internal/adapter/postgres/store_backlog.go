package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/sprint"
)

const backlogColumns = `id, project_id, sprint_id, parent_id, root_id, level, path, title, description, status, priority,
	item_type, story_points, label, assignee_id, completed_at, created_at, updated_at`

const backlogOrder = ` ORDER BY level, CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, created_at`

func scanBacklog(row scannable) (backlog.Item, error) {
	var b backlog.Item
	err := row.Scan(&b.ID, &b.ProjectID, &b.SprintID, &b.ParentID, &b.RootID, &b.Level, &b.Path, &b.Title,
		&b.Description, &b.Status, &b.Priority, &b.ItemType, &b.StoryPoints, &b.Label, &b.AssigneeID,
		&b.CompletedAt, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *Store) CreateBacklog(ctx context.Context, b *backlog.Item, adj []sprint.PointAdjustment) error {
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	return s.inTx(ctx, "create backlog item", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO backlogs (`+backlogColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			b.ID, b.ProjectID, b.SprintID, b.ParentID, b.RootID, b.Level, b.Path, b.Title, b.Description,
			b.Status, b.Priority, b.ItemType, b.StoryPoints, b.Label, b.AssigneeID, b.CompletedAt, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return constraintWrap(err, "create backlog item")
		}
		return adjustVelocity(ctx, tx, adj, now)
	})
}

func (s *Store) GetBacklog(ctx context.Context, id string) (*backlog.Item, error) {
	b, err := scanBacklog(s.pool.QueryRow(ctx, `SELECT `+backlogColumns+` FROM backlogs WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get backlog item %s", id)
	}
	return &b, nil
}

func (s *Store) GetBacklogs(ctx context.Context, ids []string) ([]backlog.Item, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+backlogColumns+` FROM backlogs WHERE id = ANY($1)`+backlogOrder, ids)
	if err != nil {
		return nil, fmt.Errorf("get backlog items: %w", err)
	}
	return collect(rows, scanBacklog)
}

func (s *Store) ListBacklogs(ctx context.Context, f backlog.Filter) ([]backlog.Item, error) {
	var w where
	if f.ProjectID != "" {
		w.add("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Priority != "" {
		w.add("priority = ?", f.Priority)
	}
	if f.ItemType != "" {
		w.add("item_type = ?", f.ItemType)
	}
	if f.SprintID != "" {
		w.add("sprint_id = ?", f.SprintID)
	}
	if f.RootsOnly {
		w.add("parent_id IS NULL")
	}
	if f.Search != "" {
		pat := likePattern(f.Search)
		w.add("(title ILIKE ? OR description ILIKE ?)", pat, pat)
	}
	q := `SELECT ` + backlogColumns + ` FROM backlogs` + w.sql() + backlogOrder + w.page(f.Page)

	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list backlog items: %w", err)
	}
	return collect(rows, scanBacklog)
}

func (s *Store) ListChildren(ctx context.Context, parentID string) ([]backlog.Item, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+backlogColumns+` FROM backlogs WHERE parent_id = $1`+backlogOrder, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", parentID, err)
	}
	return collect(rows, scanBacklog)
}

func (s *Store) ListDescendants(ctx context.Context, projectID, path string) ([]backlog.Item, error) {
	prefix := path + backlog.PathSeparator
	rows, err := s.pool.Query(ctx, `
		SELECT `+backlogColumns+` FROM backlogs
		WHERE project_id = $1 AND left(path, length($2)) = $2`+backlogOrder, projectID, prefix)
	if err != nil {
		return nil, fmt.Errorf("list descendants of %s: %w", path, err)
	}
	return collect(rows, scanBacklog)
}

// UpdateBacklog writes the item, rebases its subtree and adjusts sprint
// velocity counters in a single transaction.
func (s *Store) UpdateBacklog(ctx context.Context, b *backlog.Item, rebase *backlog.Rebase, adj []sprint.PointAdjustment) error {
	b.UpdatedAt = time.Now().UTC()
	return s.inTx(ctx, "update backlog item", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE backlogs SET sprint_id = $2, parent_id = $3, root_id = $4, level = $5, path = $6, title = $7,
			       description = $8, status = $9, priority = $10, item_type = $11, story_points = $12, label = $13,
			       assignee_id = $14, completed_at = $15, updated_at = $16
			WHERE id = $1`,
			b.ID, b.SprintID, b.ParentID, b.RootID, b.Level, b.Path, b.Title, b.Description, b.Status,
			b.Priority, b.ItemType, b.StoryPoints, b.Label, b.AssigneeID, b.CompletedAt, b.UpdatedAt)
		if err := execExpectOne(tag, err, "update backlog item %s", b.ID); err != nil {
			return err
		}

		if rebase != nil {
			oldPrefix := rebase.OldPath + backlog.PathSeparator
			if _, err := tx.Exec(ctx, `
				UPDATE backlogs
				SET path = $3 || substr(path, length($2) + 1), level = level + $4, root_id = $5, updated_at = $6
				WHERE project_id = $1 AND left(path, length($7)) = $7`,
				rebase.ProjectID, rebase.OldPath, rebase.NewPath, rebase.LevelDelta, rebase.RootID, b.UpdatedAt, oldPrefix,
			); err != nil {
				return fmt.Errorf("rebase subtree of %s: %w", b.ID, err)
			}
		}

		return adjustVelocity(ctx, tx, adj, b.UpdatedAt)
	})
}

// adjustVelocity applies point deltas to sprint counters, flooring at zero.
// A missing sprint fails the transaction.
func adjustVelocity(ctx context.Context, tx pgx.Tx, adj []sprint.PointAdjustment, at time.Time) error {
	for _, a := range adj {
		if a.Delta == 0 {
			continue
		}
		tag, err := tx.Exec(ctx, `
			UPDATE sprints SET velocity_points = GREATEST(velocity_points + $2, 0), updated_at = $3 WHERE id = $1`,
			a.SprintID, a.Delta, at)
		if err := execExpectOne(tag, err, "adjust velocity of sprint %s", a.SprintID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBacklog removes the item; descendants go with it through the parent cascade.
func (s *Store) DeleteBacklog(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM backlogs WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete backlog item %s", id)
}

// RebuildHierarchy recomputes root_id, level and path from parent links.
func (s *Store) RebuildHierarchy(ctx context.Context, projectID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		WITH RECURSIVE tree AS (
			SELECT id, id AS root_id, 0 AS level, id::text AS path
			FROM backlogs WHERE project_id = $1 AND parent_id IS NULL
			UNION ALL
			SELECT b.id, t.root_id, t.level + 1, t.path || '/' || b.id::text
			FROM backlogs b JOIN tree t ON b.parent_id = t.id
			WHERE b.project_id = $1 AND t.level < 1000
		)
		UPDATE backlogs b SET root_id = t.root_id, level = t.level, path = t.path, updated_at = now()
		FROM tree t
		WHERE b.id = t.id AND (b.root_id <> t.root_id OR b.level <> t.level OR b.path <> t.path)`, projectID)
	if err != nil {
		return 0, fmt.Errorf("rebuild hierarchy of %s: %w", projectID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) SprintPoints(ctx context.Context, sprintID string) (completed, remaining int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(story_points) FILTER (WHERE status = 'done'), 0),
		       COALESCE(SUM(story_points) FILTER (WHERE status NOT IN ('done', 'cancelled')), 0)
		FROM backlogs WHERE sprint_id = $1`, sprintID).Scan(&completed, &remaining)
	if err != nil {
		return 0, 0, fmt.Errorf("sprint points %s: %w", sprintID, err)
	}
	return completed, remaining, nil
}

func (s *Store) RemainingPoints(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(story_points), 0) FROM backlogs
		WHERE project_id = $1 AND status NOT IN ('done', 'cancelled')`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("remaining points %s: %w", projectID, err)
	}
	return n, nil
}

func (s *Store) BacklogStats(ctx context.Context, projectID string) (*backlog.Stats, error) {
	st := &backlog.Stats{ProjectID: projectID}
	var err error
	for _, g := range []struct {
		dst *map[string]int
		col string
	}{
		{&st.ByStatus, "status"},
		{&st.ByPriority, "priority"},
		{&st.ByType, "item_type"},
	} {
		*g.dst, err = countBy(ctx, s.pool,
			`SELECT `+g.col+`, count(*) FROM backlogs WHERE project_id = $1 GROUP BY `+g.col, projectID)
		if err != nil {
			return nil, fmt.Errorf("backlog stats by %s: %w", g.col, err)
		}
	}

	err = s.pool.QueryRow(ctx, `
		SELECT count(*),
		       COALESCE(SUM(story_points) FILTER (WHERE status <> 'cancelled'), 0),
		       COALESCE(SUM(story_points) FILTER (WHERE status = 'done'), 0),
		       count(*) FILTER (WHERE story_points IS NULL)
		FROM backlogs WHERE project_id = $1`, projectID).
		Scan(&st.Total, &st.TotalPoints, &st.CompletedPoints, &st.Unestimated)
	if err != nil {
		return nil, fmt.Errorf("backlog stats totals: %w", err)
	}
	return st, nil
}

// --- Acceptance criteria ---

const criteriaColumns = `id, backlog_id, title, is_met, created_at, updated_at`

func scanCriteria(row scannable) (backlog.Criteria, error) {
	var c backlog.Criteria
	err := row.Scan(&c.ID, &c.BacklogID, &c.Title, &c.IsMet, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) CreateCriteria(ctx context.Context, c *backlog.Criteria) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx, `INSERT INTO acceptance_criteria (`+criteriaColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.BacklogID, c.Title, c.IsMet, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return constraintWrap(err, "create acceptance criteria")
	}
	return nil
}

func (s *Store) GetCriteria(ctx context.Context, id string) (*backlog.Criteria, error) {
	c, err := scanCriteria(s.pool.QueryRow(ctx, `SELECT `+criteriaColumns+` FROM acceptance_criteria WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get acceptance criteria %s", id)
	}
	return &c, nil
}

func (s *Store) ListCriteria(ctx context.Context, backlogID string) ([]backlog.Criteria, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+criteriaColumns+` FROM acceptance_criteria WHERE backlog_id = $1 ORDER BY created_at`, backlogID)
	if err != nil {
		return nil, fmt.Errorf("list acceptance criteria: %w", err)
	}
	return collect(rows, scanCriteria)
}

func (s *Store) UpdateCriteria(ctx context.Context, c *backlog.Criteria) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE acceptance_criteria SET title = $2, is_met = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Title, c.IsMet, c.UpdatedAt)
	return execExpectOne(tag, err, "update acceptance criteria %s", c.ID)
}

func (s *Store) DeleteCriteria(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM acceptance_criteria WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete acceptance criteria %s", id)
}
