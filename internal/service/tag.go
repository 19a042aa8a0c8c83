package service

import (
	"context"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/documentation"
	"github.com/scrumix/scrumix/internal/domain/tag"
	"github.com/scrumix/scrumix/internal/domain/task"
	"github.com/scrumix/scrumix/internal/port/database"
)

// TagService manages the global tag catalog.
type TagService struct {
	store database.Store
}

// NewTagService creates a new TagService.
func NewTagService(store database.Store) *TagService {
	return &TagService{store: store}
}

// List returns tags whose title contains search.
func (s *TagService) List(ctx context.Context, search string, page domain.Page) ([]tag.Tag, error) {
	return s.store.ListTags(ctx, search, page)
}

// Get returns a tag by ID.
func (s *TagService) Get(ctx context.Context, id string) (*tag.Tag, error) {
	return s.store.GetTag(ctx, id)
}

// Create adds a tag. A title already taken, ignoring case, yields
// domain.ErrAlreadyExists.
func (s *TagService) Create(ctx context.Context, req tag.Request) (*tag.Tag, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t := &tag.Tag{ID: newID(), Title: req.Title, CreatedAt: now()}
	if err := s.store.CreateTag(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update renames a tag.
func (s *TagService) Update(ctx context.Context, id string, req tag.Request) (*tag.Tag, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t, err := s.store.GetTag(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Title = req.Title
	if err := s.store.UpdateTag(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a tag from the catalog and from everything it labels.
func (s *TagService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTag(ctx, id)
}

// Tasks returns the tasks labelled with a tag.
func (s *TagService) Tasks(ctx context.Context, id string, page domain.Page) ([]task.Task, error) {
	if _, err := s.store.GetTag(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, task.Filter{TagID: id, Page: page})
}

// Documentation returns the documents labelled with a tag.
func (s *TagService) Documentation(ctx context.Context, id string, page domain.Page) ([]documentation.Documentation, error) {
	if _, err := s.store.GetTag(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListDocumentation(ctx, documentation.Filter{TagID: id, Page: page})
}
