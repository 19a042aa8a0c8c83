package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/tag"
)

func scanTag(row scannable) (tag.Tag, error) {
	var t tag.Tag
	err := row.Scan(&t.ID, &t.Title, &t.CreatedAt)
	return t, err
}

func (s *Store) CreateTag(ctx context.Context, t *tag.Tag) error {
	t.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `INSERT INTO tags (id, title, created_at) VALUES ($1, $2, $3)`, t.ID, t.Title, t.CreatedAt)
	if err != nil {
		return constraintWrap(err, "create tag %q", t.Title)
	}
	return nil
}

func (s *Store) GetTag(ctx context.Context, id string) (*tag.Tag, error) {
	t, err := scanTag(s.pool.QueryRow(ctx, `SELECT id, title, created_at FROM tags WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get tag %s", id)
	}
	return &t, nil
}

func (s *Store) ListTags(ctx context.Context, search string, page domain.Page) ([]tag.Tag, error) {
	var w where
	if search != "" {
		w.add("title ILIKE ?", likePattern(search))
	}
	rows, err := s.pool.Query(ctx, `SELECT id, title, created_at FROM tags`+w.sql()+` ORDER BY lower(title)`+w.page(page), w.args...)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return collect(rows, scanTag)
}

func (s *Store) UpdateTag(ctx context.Context, t *tag.Tag) error {
	tg, err := s.pool.Exec(ctx, `UPDATE tags SET title = $2 WHERE id = $1`, t.ID, t.Title)
	return execExpectOne(tg, err, "update tag %s", t.ID)
}

func (s *Store) DeleteTag(ctx context.Context, id string) error {
	tg, err := s.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	return execExpectOne(tg, err, "delete tag %s", id)
}

func (s *Store) TagTask(ctx context.Context, tagID, taskID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, taskID, tagID)
	if err != nil {
		return constraintWrap(err, "tag task %s", taskID)
	}
	return nil
}

func (s *Store) UntagTask(ctx context.Context, tagID, taskID string) error {
	tg, err := s.pool.Exec(ctx, `DELETE FROM task_tags WHERE task_id = $1 AND tag_id = $2`, taskID, tagID)
	return execExpectOne(tg, err, "untag task %s", taskID)
}

func (s *Store) TagDocumentation(ctx context.Context, tagID, docID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documentation_tags (documentation_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, docID, tagID)
	if err != nil {
		return constraintWrap(err, "tag documentation %s", docID)
	}
	return nil
}

func (s *Store) UntagDocumentation(ctx context.Context, tagID, docID string) error {
	tg, err := s.pool.Exec(ctx,
		`DELETE FROM documentation_tags WHERE documentation_id = $1 AND tag_id = $2`, docID, tagID)
	return execExpectOne(tg, err, "untag documentation %s", docID)
}
