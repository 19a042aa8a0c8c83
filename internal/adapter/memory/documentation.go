package memory

import (
	"context"
	"slices"

	"github.com/scrumix/scrumix/internal/domain/documentation"
)

func (s *Store) withDocRelations(d documentation.Documentation) documentation.Documentation {
	d.Authors = s.summaries(linked(s.docAuthors, d.ID))
	d.Tags = s.tagTitles(linked(s.docTags, d.ID))
	return d
}

func (s *Store) CreateDocumentation(_ context.Context, d *documentation.Documentation, authorIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[d.ProjectID]; !ok {
		return notFound("project %s", d.ProjectID)
	}
	if err := s.requireUsers(authorIDs); err != nil {
		return err
	}
	now := s.now()
	d.CreatedAt, d.UpdatedAt = now, now
	d.Authors, d.Tags = nil, nil
	s.docs[d.ID] = *d
	for _, uid := range authorIDs {
		s.docAuthors[linkKey{d.ID, uid}] = struct{}{}
	}
	*d = s.withDocRelations(*d)
	s.touch(d.ProjectID)
	return nil
}

func (s *Store) GetDocumentation(_ context.Context, id string) (*documentation.Documentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, notFound("get documentation %s", id)
	}
	d = s.withDocRelations(d)
	return &d, nil
}

func (s *Store) ListDocumentation(_ context.Context, f documentation.Filter) ([]documentation.Documentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.docs, func(d documentation.Documentation) bool {
		if f.ProjectID != "" && d.ProjectID != f.ProjectID || f.DocType != "" && d.DocType != f.DocType {
			return false
		}
		if f.TagID != "" {
			if _, ok := s.docTags[linkKey{d.ID, f.TagID}]; !ok {
				return false
			}
		}
		return matches(f.Search, d.Title, d.Description, d.Content)
	})
	slices.SortFunc(out, func(a, b documentation.Documentation) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	out = page(out, f.Page)
	for i := range out {
		out[i] = s.withDocRelations(out[i])
	}
	return out, nil
}

func (s *Store) UpdateDocumentation(_ context.Context, d *documentation.Documentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[d.ID]
	if !ok {
		return notFound("update documentation %s", d.ID)
	}
	cur.Title, cur.DocType, cur.Description, cur.Content, cur.FileURL = d.Title, d.DocType, d.Description, d.Content, d.FileURL
	cur.UpdatedAt = s.now()
	s.docs[d.ID] = cur
	d.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *Store) dropDoc(id string) {
	delete(s.docs, id)
	unlinkOwner(s.docAuthors, id)
	unlinkOwner(s.docTags, id)
}

func (s *Store) DeleteDocumentation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return notFound("delete documentation %s", id)
	}
	s.dropDoc(id)
	return nil
}

func (s *Store) AddAuthors(_ context.Context, docID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return notFound("add authors to documentation %s", docID)
	}
	if err := s.requireUsers(userIDs); err != nil {
		return err
	}
	for _, uid := range userIDs {
		s.docAuthors[linkKey{docID, uid}] = struct{}{}
	}
	return nil
}

func (s *Store) RemoveAuthors(_ context.Context, docID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range userIDs {
		delete(s.docAuthors, linkKey{docID, uid})
	}
	return nil
}
