// Package documentation defines project documents and their authorship.
package documentation

import (
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/user"
)

// Type classifies a document.
type Type string

const (
	TypeSprintReview        Type = "sprint_review"
	TypeSprintRetrospective Type = "sprint_retrospective"
	TypeRequirement         Type = "requirement"
	TypeDesignArchitecture  Type = "design_architecture"
	TypeMeetingReport       Type = "meeting_report"
	TypeUserGuide           Type = "user_guide"
	TypeOther               Type = "other"
)

// ValidTypes is the set of accepted document types.
var ValidTypes = map[Type]bool{
	TypeSprintReview:        true,
	TypeSprintRetrospective: true,
	TypeRequirement:         true,
	TypeDesignArchitecture:  true,
	TypeMeetingReport:       true,
	TypeUserGuide:           true,
	TypeOther:               true,
}

// Documentation is a document attached to a project.
type Documentation struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Title       string         `json:"title"`
	DocType     Type           `json:"doc_type"`
	Description string         `json:"description"`
	Content     string         `json:"content"`
	FileURL     string         `json:"file_url,omitempty"`
	Authors     []user.Summary `json:"authors"`
	Tags        []string       `json:"tags"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a document.
type CreateRequest struct {
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	DocType     Type     `json:"doc_type"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	FileURL     string   `json:"file_url,omitempty"`
	AuthorIDs   []string `json:"author_ids,omitempty"`
}

// Validate applies defaults and checks required fields.
func (r *CreateRequest) Validate() error {
	if r.DocType == "" {
		r.DocType = TypeOther
	}
	if r.ProjectID == "" {
		return domain.Invalid("project_id is required")
	}
	if r.Title == "" {
		return domain.Invalid("title is required")
	}
	if !ValidTypes[r.DocType] {
		return domain.Invalid("invalid doc_type %q", r.DocType)
	}
	return nil
}

// UpdateRequest holds optional fields for a partial document update.
type UpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	DocType     *Type   `json:"doc_type,omitempty"`
	Description *string `json:"description,omitempty"`
	Content     *string `json:"content,omitempty"`
	FileURL     *string `json:"file_url,omitempty"`
}

// Apply copies the set fields onto d and validates the result.
func (r *UpdateRequest) Apply(d *Documentation) error {
	if r.Title != nil {
		if *r.Title == "" {
			return domain.Invalid("title cannot be empty")
		}
		d.Title = *r.Title
	}
	if r.DocType != nil {
		if !ValidTypes[*r.DocType] {
			return domain.Invalid("invalid doc_type %q", *r.DocType)
		}
		d.DocType = *r.DocType
	}
	if r.Description != nil {
		d.Description = *r.Description
	}
	if r.Content != nil {
		d.Content = *r.Content
	}
	if r.FileURL != nil {
		d.FileURL = *r.FileURL
	}
	return nil
}

// AuthorsRequest names users to add as or remove from authors.
type AuthorsRequest struct {
	UserIDs []string `json:"user_ids"`
}

// Filter narrows a documentation listing.
type Filter struct {
	ProjectID string
	DocType   Type
	Search    string
	TagID     string
	domain.Page
}
