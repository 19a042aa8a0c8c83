package service

import (
	"context"
	"fmt"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/documentation"
	"github.com/scrumix/scrumix/internal/port/database"
)

// DocumentationService manages project documents, their authors and tags.
type DocumentationService struct {
	store database.Store
}

// NewDocumentationService creates a new DocumentationService.
func NewDocumentationService(store database.Store) *DocumentationService {
	return &DocumentationService{store: store}
}

// List returns documents matching the filter.
func (s *DocumentationService) List(ctx context.Context, f documentation.Filter) ([]documentation.Documentation, error) {
	if f.DocType != "" && !documentation.ValidTypes[f.DocType] {
		return nil, domain.Invalid("invalid doc_type %q", f.DocType)
	}
	return s.store.ListDocumentation(ctx, f)
}

// Get returns a document by ID.
func (s *DocumentationService) Get(ctx context.Context, id string) (*documentation.Documentation, error) {
	return s.store.GetDocumentation(ctx, id)
}

// Create stores a document. The creator is an author unless authors are named.
func (s *DocumentationService) Create(ctx context.Context, creatorID string, req *documentation.CreateRequest) (*documentation.Documentation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	authors := dedupe(req.AuthorIDs)
	if len(authors) == 0 && creatorID != "" {
		if _, err := s.store.GetUser(ctx, creatorID); err == nil {
			authors = []string{creatorID}
		}
	}

	ts := now()
	d := &documentation.Documentation{
		ID:          newID(),
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		DocType:     req.DocType,
		Description: req.Description,
		Content:     req.Content,
		FileURL:     req.FileURL,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := s.store.CreateDocumentation(ctx, d, authors); err != nil {
		return nil, fmt.Errorf("create documentation: %w", err)
	}
	return s.store.GetDocumentation(ctx, d.ID)
}

// Update applies partial changes to a document.
func (s *DocumentationService) Update(ctx context.Context, id string, req documentation.UpdateRequest) (*documentation.Documentation, error) {
	d, err := s.store.GetDocumentation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(d); err != nil {
		return nil, err
	}
	if err := s.store.UpdateDocumentation(ctx, d); err != nil {
		return nil, err
	}
	return s.store.GetDocumentation(ctx, id)
}

// Delete removes a document.
func (s *DocumentationService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteDocumentation(ctx, id)
}

// AddAuthors adds users to a document's authors.
func (s *DocumentationService) AddAuthors(ctx context.Context, id string, req documentation.AuthorsRequest) (*documentation.Documentation, error) {
	ids := dedupe(req.UserIDs)
	if len(ids) == 0 {
		return nil, domain.Invalid("user_ids is required")
	}
	if err := s.store.AddAuthors(ctx, id, ids); err != nil {
		return nil, err
	}
	return s.store.GetDocumentation(ctx, id)
}

// RemoveAuthors removes users from a document's authors.
func (s *DocumentationService) RemoveAuthors(ctx context.Context, id string, req documentation.AuthorsRequest) (*documentation.Documentation, error) {
	ids := dedupe(req.UserIDs)
	if len(ids) == 0 {
		return nil, domain.Invalid("user_ids is required")
	}
	if err := s.store.RemoveAuthors(ctx, id, ids); err != nil {
		return nil, err
	}
	return s.store.GetDocumentation(ctx, id)
}

// Tag attaches a tag to a document.
func (s *DocumentationService) Tag(ctx context.Context, id, tagID string) (*documentation.Documentation, error) {
	if err := s.store.TagDocumentation(ctx, tagID, id); err != nil {
		return nil, err
	}
	return s.store.GetDocumentation(ctx, id)
}

// Untag detaches a tag from a document.
func (s *DocumentationService) Untag(ctx context.Context, id, tagID string) (*documentation.Documentation, error) {
	if err := s.store.UntagDocumentation(ctx, tagID, id); err != nil {
		return nil, err
	}
	return s.store.GetDocumentation(ctx, id)
}
