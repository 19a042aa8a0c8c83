package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scrumix/scrumix/internal/domain/documentation"
)

const docColumns = `d.id, d.project_id, d.title, d.doc_type, d.description, d.content, d.file_url, d.created_at, d.updated_at`

func scanDocumentation(row scannable) (documentation.Documentation, error) {
	var d documentation.Documentation
	err := row.Scan(&d.ID, &d.ProjectID, &d.Title, &d.DocType, &d.Description, &d.Content, &d.FileURL,
		&d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (s *Store) attachDocRelations(ctx context.Context, docs []documentation.Documentation) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	authors, err := s.loadSummaries(ctx, `
		SELECT a.documentation_id, u.id, u.username, u.full_name, u.email
		FROM documentation_authors a JOIN users u ON u.id = a.user_id
		WHERE a.documentation_id = ANY($1) ORDER BY u.username`, ids)
	if err != nil {
		return fmt.Errorf("load documentation authors: %w", err)
	}
	tags, err := s.loadTitles(ctx, `
		SELECT dt.documentation_id, g.title FROM documentation_tags dt JOIN tags g ON g.id = dt.tag_id
		WHERE dt.documentation_id = ANY($1) ORDER BY g.title`, ids)
	if err != nil {
		return fmt.Errorf("load documentation tags: %w", err)
	}
	for i := range docs {
		docs[i].Authors = orEmpty(authors[docs[i].ID])
		docs[i].Tags = orEmpty(tags[docs[i].ID])
	}
	return nil
}

func addAuthorsTx(ctx context.Context, q querier, docID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO documentation_authors (documentation_id, user_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`, docID, userIDs)
	if err != nil {
		return constraintWrap(err, "add authors to documentation %s", docID)
	}
	return nil
}

func (s *Store) CreateDocumentation(ctx context.Context, d *documentation.Documentation, authorIDs []string) error {
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	err := s.inTx(ctx, "create documentation", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO documentations (id, project_id, title, doc_type, description, content, file_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			d.ID, d.ProjectID, d.Title, d.DocType, d.Description, d.Content, d.FileURL, d.CreatedAt, d.UpdatedAt,
		); err != nil {
			return constraintWrap(err, "create documentation")
		}
		return addAuthorsTx(ctx, tx, d.ID, authorIDs)
	})
	if err != nil {
		return err
	}
	loaded := []documentation.Documentation{*d}
	if err := s.attachDocRelations(ctx, loaded); err != nil {
		return err
	}
	*d = loaded[0]
	return nil
}

func (s *Store) GetDocumentation(ctx context.Context, id string) (*documentation.Documentation, error) {
	d, err := scanDocumentation(s.pool.QueryRow(ctx, `SELECT `+docColumns+` FROM documentations d WHERE d.id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get documentation %s", id)
	}
	loaded := []documentation.Documentation{d}
	if err := s.attachDocRelations(ctx, loaded); err != nil {
		return nil, err
	}
	return &loaded[0], nil
}

func (s *Store) ListDocumentation(ctx context.Context, f documentation.Filter) ([]documentation.Documentation, error) {
	var w where
	if f.ProjectID != "" {
		w.add("d.project_id = ?", f.ProjectID)
	}
	if f.DocType != "" {
		w.add("d.doc_type = ?", f.DocType)
	}
	if f.TagID != "" {
		w.add("EXISTS (SELECT 1 FROM documentation_tags dt WHERE dt.documentation_id = d.id AND dt.tag_id = ?)", f.TagID)
	}
	if f.Search != "" {
		pat := likePattern(f.Search)
		w.add("(d.title ILIKE ? OR d.description ILIKE ? OR d.content ILIKE ?)", pat, pat, pat)
	}
	q := `SELECT ` + docColumns + ` FROM documentations d` + w.sql() + ` ORDER BY d.updated_at DESC` + w.page(f.Page)

	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list documentation: %w", err)
	}
	docs, err := collect(rows, scanDocumentation)
	if err != nil {
		return nil, fmt.Errorf("scan documentation: %w", err)
	}
	return docs, s.attachDocRelations(ctx, docs)
}

func (s *Store) UpdateDocumentation(ctx context.Context, d *documentation.Documentation) error {
	d.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE documentations SET title = $2, doc_type = $3, description = $4, content = $5, file_url = $6, updated_at = $7
		WHERE id = $1`,
		d.ID, d.Title, d.DocType, d.Description, d.Content, d.FileURL, d.UpdatedAt)
	return execExpectOne(tag, err, "update documentation %s", d.ID)
}

func (s *Store) DeleteDocumentation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documentations WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete documentation %s", id)
}

func (s *Store) AddAuthors(ctx context.Context, docID string, userIDs []string) error {
	return addAuthorsTx(ctx, s.pool, docID, userIDs)
}

func (s *Store) RemoveAuthors(ctx context.Context, docID string, userIDs []string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documentation_authors WHERE documentation_id = $1 AND user_id = ANY($2)`, docID, userIDs)
	if err != nil {
		return fmt.Errorf("remove authors from documentation %s: %w", docID, err)
	}
	return nil
}
