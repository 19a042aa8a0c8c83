// Package tag defines labels attachable to tasks and documentation.
package tag

import (
	"strings"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
)

// Tag is a free-form label. Titles are unique regardless of case.
type Tag struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Request creates or renames a tag.
type Request struct {
	Title string `json:"title"`
}

// Normalize trims surrounding whitespace from the title.
func (r *Request) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
}

// Validate checks the title.
func (r *Request) Validate() error {
	if r.Title == "" {
		return domain.Invalid("title is required")
	}
	if len(r.Title) > 100 {
		return domain.Invalid("title exceeds 100 characters")
	}
	return nil
}

// SameTitle reports whether two titles collide under case folding.
func SameTitle(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
