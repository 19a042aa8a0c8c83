package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scrumix/scrumix/internal/domain"
)

func TestWhereBuilder(t *testing.T) {
	var w where
	w.add("project_id = ?", "p1")
	w.add("status = ?", "todo")
	w.add("(title ILIKE ? OR description ILIKE ?)", "%a%", "%a%")
	got := w.sql() + w.page(domain.Page{Skip: 5, Limit: 10})

	want := " WHERE project_id = $1 AND status = $2 AND (title ILIKE $3 OR description ILIKE $4) LIMIT $5 OFFSET $6"
	if got != want {
		t.Errorf("sql = %q\nwant %q", got, want)
	}
	if len(w.args) != 6 || w.args[4] != 10 || w.args[5] != 5 {
		t.Errorf("args = %v", w.args)
	}
}

func TestWhereEmpty(t *testing.T) {
	var w where
	if w.sql() != "" {
		t.Errorf("empty where = %q", w.sql())
	}
	if got := w.page(domain.Page{}); got != " LIMIT $1 OFFSET $2" || w.args[0] != domain.DefaultLimit {
		t.Errorf("page = %q args %v", got, w.args)
	}
}

func TestLikePattern(t *testing.T) {
	if got := likePattern(`50%_off\`); got != `%50\%\_off\\%` {
		t.Errorf("likePattern = %q", got)
	}
}

func TestConstraintWrap(t *testing.T) {
	unique := &pgconn.PgError{Code: pgUniqueViolation}
	if err := constraintWrap(unique, "create tag %s", "x"); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("unique violation = %v", err)
	}
	fk := &pgconn.PgError{Code: pgForeignKeyViolation}
	if err := constraintWrap(fmt.Errorf("wrapped: %w", fk), "add member"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("fk violation = %v", err)
	}
	other := errors.New("boom")
	if err := constraintWrap(other, "x"); !errors.Is(err, other) {
		t.Errorf("other = %v", err)
	}
}

func TestNotFoundWrap(t *testing.T) {
	if err := notFoundWrap(pgx.ErrNoRows, "get sprint %s", "s1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ErrNoRows = %v", err)
	}
}
