package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/project"
	"github.com/scrumix/scrumix/internal/domain/user"
)

const projectColumns = `p.id, p.name, p.description, p.status, p.start_date, p.end_date, p.color, p.version, p.last_activity_at, p.created_at, p.updated_at`

func scanProject(row scannable) (project.Project, error) {
	var p project.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.StartDate, &p.EndDate, &p.Color,
		&p.Version, &p.LastActivityAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateProject stores p and its owner membership in one transaction.
func (s *Store) CreateProject(ctx context.Context, p *project.Project, ownerID string) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt, p.LastActivityAt = now, now, now
	p.Version = 1

	return s.inTx(ctx, "create project", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO projects (id, name, description, status, start_date, end_date, color, version, last_activity_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			p.ID, p.Name, p.Description, p.Status, p.StartDate, p.EndDate, p.Color, p.Version,
			p.LastActivityAt, p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return constraintWrap(err, "create project")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
			p.ID, ownerID, project.RoleOwner, now,
		); err != nil {
			return constraintWrap(err, "add project owner %s", ownerID)
		}
		return nil
	})
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get project %s", id)
	}
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context, f project.Filter) ([]project.Project, error) {
	var w where
	if f.MemberID != "" {
		w.add("EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?)", f.MemberID)
	}
	if f.Status != "" {
		w.add("p.status = ?", f.Status)
	}
	if f.Search != "" {
		pat := likePattern(f.Search)
		w.add("(p.name ILIKE ? OR p.description ILIKE ?)", pat, pat)
	}
	q := `SELECT ` + projectColumns + ` FROM projects p` + w.sql() + ` ORDER BY p.last_activity_at DESC` + w.page(f.Page)

	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return collect(rows, scanProject)
}

// UpdateProject writes p when its version still matches and bumps it.
func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET name = $2, description = $3, status = $4, start_date = $5, end_date = $6, color = $7,
		       version = version + 1, last_activity_at = $8, updated_at = $8
		WHERE id = $1 AND version = $9`,
		p.ID, p.Name, p.Description, p.Status, p.StartDate, p.EndDate, p.Color, now, p.Version)
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetProject(ctx, p.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("update project %s: %w", p.ID, domain.ErrConflict)
	}
	p.Version++
	p.UpdatedAt, p.LastActivityAt = now, now
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete project %s", id)
}

func (s *Store) ProjectStats(ctx context.Context, projectID string) (*project.Stats, error) {
	st := &project.Stats{ProjectID: projectID}
	var err error

	if st.BacklogByStatus, err = countBy(ctx, s.pool,
		`SELECT status, count(*) FROM backlogs WHERE project_id = $1 GROUP BY status`, projectID); err != nil {
		return nil, fmt.Errorf("project stats backlog: %w", err)
	}
	if st.TaskByStatus, err = countBy(ctx, s.pool,
		`SELECT status, count(*) FROM tasks WHERE project_id = $1 GROUP BY status`, projectID); err != nil {
		return nil, fmt.Errorf("project stats tasks: %w", err)
	}
	if st.SprintByStatus, err = countBy(ctx, s.pool,
		`SELECT status, count(*) FROM sprints WHERE project_id = $1 GROUP BY status`, projectID); err != nil {
		return nil, fmt.Errorf("project stats sprints: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(story_points) FILTER (WHERE status <> 'cancelled'), 0),
		       COALESCE(SUM(story_points) FILTER (WHERE status = 'done'), 0),
		       (SELECT count(*) FROM project_members WHERE project_id = $1)
		FROM backlogs WHERE project_id = $1`, projectID).
		Scan(&st.TotalStoryPoints, &st.CompletedPoints, &st.MemberCount)
	if err != nil {
		return nil, fmt.Errorf("project stats points: %w", err)
	}
	if st.TotalStoryPoints > 0 {
		st.CompletionPercent = float64(st.CompletedPoints) * 100 / float64(st.TotalStoryPoints)
	}
	return st, nil
}

// --- Members ---

const memberColumns = `m.project_id, m.user_id, m.role, m.joined_at, u.id, u.username, u.full_name, u.email`

func scanMember(row scannable) (project.Member, error) {
	var m project.Member
	var u user.Summary
	if err := row.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt, &u.ID, &u.Username, &u.FullName, &u.Email); err != nil {
		return m, err
	}
	m.User = &u
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, projectID string) ([]project.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+memberColumns+`
		FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1 ORDER BY m.joined_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return collect(rows, scanMember)
}

func (s *Store) GetMember(ctx context.Context, projectID, userID string) (*project.Member, error) {
	m, err := scanMember(s.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1 AND m.user_id = $2`, projectID, userID))
	if err != nil {
		return nil, notFoundWrap(err, "get member %s/%s", projectID, userID)
	}
	return &m, nil
}

func (s *Store) AddMember(ctx context.Context, m *project.Member) error {
	m.JoinedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
		m.ProjectID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return constraintWrap(err, "add member %s to %s", m.UserID, m.ProjectID)
	}
	return nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, projectID, userID string, role project.MemberRole) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE project_members SET role = $3 WHERE project_id = $1 AND user_id = $2`, projectID, userID, role)
	return execExpectOne(tag, err, "update member %s/%s", projectID, userID)
}

func (s *Store) RemoveMember(ctx context.Context, projectID, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	return execExpectOne(tag, err, "remove member %s/%s", projectID, userID)
}
