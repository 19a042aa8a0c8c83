package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scrumix/scrumix/internal/domain/task"
	"github.com/scrumix/scrumix/internal/domain/user"
)

const taskColumns = `t.id, t.project_id, t.backlog_id, t.sprint_id, t.title, t.description, t.status, t.priority, t.due_date, t.created_at, t.updated_at`

func scanTask(row scannable) (task.Task, error) {
	var t task.Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.BacklogID, &t.SprintID, &t.Title, &t.Description, &t.Status,
		&t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// loadSummaries maps owner IDs to user summaries. sql must select
// (owner_id, user id, username, full_name, email) filtered by ANY($1).
func (s *Store) loadSummaries(ctx context.Context, sql string, ids []string) (map[string][]user.Summary, error) {
	rows, err := s.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]user.Summary, len(ids))
	for rows.Next() {
		var owner string
		var u user.Summary
		if err := rows.Scan(&owner, &u.ID, &u.Username, &u.FullName, &u.Email); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], u)
	}
	return out, rows.Err()
}

// loadTitles maps owner IDs to tag titles. sql must select (owner_id, title).
func (s *Store) loadTitles(ctx context.Context, sql string, ids []string) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]string, len(ids))
	for rows.Next() {
		var owner, title string
		if err := rows.Scan(&owner, &title); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], title)
	}
	return out, rows.Err()
}

func (s *Store) attachTaskRelations(ctx context.Context, tasks []task.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	assignees, err := s.loadSummaries(ctx, `
		SELECT a.task_id, u.id, u.username, u.full_name, u.email
		FROM task_assignees a JOIN users u ON u.id = a.user_id
		WHERE a.task_id = ANY($1) ORDER BY u.username`, ids)
	if err != nil {
		return fmt.Errorf("load task assignees: %w", err)
	}
	tags, err := s.loadTitles(ctx, `
		SELECT tt.task_id, g.title FROM task_tags tt JOIN tags g ON g.id = tt.tag_id
		WHERE tt.task_id = ANY($1) ORDER BY g.title`, ids)
	if err != nil {
		return fmt.Errorf("load task tags: %w", err)
	}
	for i := range tasks {
		tasks[i].Assignees = orEmpty(assignees[tasks[i].ID])
		tasks[i].Tags = orEmpty(tags[tasks[i].ID])
	}
	return nil
}

func (s *Store) CreateTask(ctx context.Context, t *task.Task, assigneeIDs []string) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	err := s.inTx(ctx, "create task", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO tasks (id, project_id, backlog_id, sprint_id, title, description, status, priority, due_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.ID, t.ProjectID, t.BacklogID, t.SprintID, t.Title, t.Description, t.Status, t.Priority, t.DueDate,
			t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return constraintWrap(err, "create task")
		}
		return assignTx(ctx, tx, t.ID, assigneeIDs)
	})
	if err != nil {
		return err
	}
	loaded := []task.Task{*t}
	if err := s.attachTaskRelations(ctx, loaded); err != nil {
		return err
	}
	*t = loaded[0]
	return nil
}

func assignTx(ctx context.Context, q querier, taskID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO task_assignees (task_id, user_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`, taskID, userIDs)
	if err != nil {
		return constraintWrap(err, "assign task %s", taskID)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	loaded := []task.Task{t}
	if err := s.attachTaskRelations(ctx, loaded); err != nil {
		return nil, err
	}
	return &loaded[0], nil
}

func (s *Store) ListTasks(ctx context.Context, f task.Filter) ([]task.Task, error) {
	var w where
	if f.ProjectID != "" {
		w.add("t.project_id = ?", f.ProjectID)
	}
	if f.BacklogID != "" {
		w.add("t.backlog_id = ?", f.BacklogID)
	}
	if f.SprintID != "" {
		w.add("t.sprint_id = ?", f.SprintID)
	}
	if f.TagID != "" {
		w.add("EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id = t.id AND tt.tag_id = ?)", f.TagID)
	}
	if f.Status != "" {
		w.add("t.status = ?", f.Status)
	}
	if f.Search != "" {
		pat := likePattern(f.Search)
		w.add("(t.title ILIKE ? OR t.description ILIKE ?)", pat, pat)
	}
	q := `SELECT ` + taskColumns + ` FROM tasks t` + w.sql() + ` ORDER BY t.created_at DESC` + w.page(f.Page)

	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := collect(rows, scanTask)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return tasks, s.attachTaskRelations(ctx, tasks)
}

func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET sprint_id = $2, title = $3, description = $4, status = $5, priority = $6, due_date = $7, updated_at = $8
		WHERE id = $1`,
		t.ID, t.SprintID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.UpdatedAt)
	return execExpectOne(tag, err, "update task %s", t.ID)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete task %s", id)
}

func (s *Store) AssignTask(ctx context.Context, taskID string, userIDs []string) error {
	return assignTx(ctx, s.pool, taskID, userIDs)
}

func (s *Store) UnassignTask(ctx context.Context, taskID string, userIDs []string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM task_assignees WHERE task_id = $1 AND user_id = ANY($2)`, taskID, userIDs)
	if err != nil {
		return fmt.Errorf("unassign task %s: %w", taskID, err)
	}
	return nil
}

func (s *Store) TaskStats(ctx context.Context, projectID string, now time.Time) (*task.Stats, error) {
	st := &task.Stats{ProjectID: projectID}
	var err error
	if st.ByStatus, err = countBy(ctx, s.pool,
		`SELECT status, count(*) FROM tasks WHERE project_id = $1 GROUP BY status`, projectID); err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	for _, n := range st.ByStatus {
		st.Total += n
	}
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM tasks
		WHERE project_id = $1 AND due_date < $2 AND status NOT IN ('done', 'cancelled')`, projectID, now).Scan(&st.Overdue)
	if err != nil {
		return nil, fmt.Errorf("task stats overdue: %w", err)
	}
	return st, nil
}
