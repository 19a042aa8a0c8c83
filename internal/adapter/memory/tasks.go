package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/tag"
	"github.com/scrumix/scrumix/internal/domain/task"
)

func (s *Store) withTaskRelations(t task.Task) task.Task {
	t.Assignees = s.summaries(linked(s.taskAssignees, t.ID))
	t.Tags = s.tagTitles(linked(s.taskTags, t.ID))
	return t
}

func (s *Store) CreateTask(_ context.Context, t *task.Task, assigneeIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return exists("task %s", t.ID)
	}
	if _, ok := s.backlogs[t.BacklogID]; !ok {
		return notFound("backlog item %s", t.BacklogID)
	}
	if t.SprintID != nil {
		if _, ok := s.sprints[*t.SprintID]; !ok {
			return notFound("sprint %s", *t.SprintID)
		}
	}
	if err := s.requireUsers(assigneeIDs); err != nil {
		return err
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	t.Assignees, t.Tags = nil, nil
	s.tasks[t.ID] = *t
	for _, uid := range assigneeIDs {
		s.taskAssignees[linkKey{t.ID, uid}] = struct{}{}
	}
	*t = s.withTaskRelations(*t)
	s.touch(t.ProjectID)
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound("get task %s", id)
	}
	t = s.withTaskRelations(t)
	return &t, nil
}

func (s *Store) ListTasks(_ context.Context, f task.Filter) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.tasks, func(t task.Task) bool {
		switch {
		case f.ProjectID != "" && t.ProjectID != f.ProjectID,
			f.BacklogID != "" && t.BacklogID != f.BacklogID,
			f.SprintID != "" && (t.SprintID == nil || *t.SprintID != f.SprintID),
			f.Status != "" && t.Status != f.Status:
			return false
		}
		if f.TagID != "" {
			if _, ok := s.taskTags[linkKey{t.ID, f.TagID}]; !ok {
				return false
			}
		}
		return matches(f.Search, t.Title, t.Description)
	})
	slices.SortFunc(out, func(a, b task.Task) int { return b.CreatedAt.Compare(a.CreatedAt) })
	out = page(out, f.Page)
	for i := range out {
		out[i] = s.withTaskRelations(out[i])
	}
	return out, nil
}

func (s *Store) UpdateTask(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[t.ID]
	if !ok {
		return notFound("update task %s", t.ID)
	}
	if t.SprintID != nil {
		if _, ok := s.sprints[*t.SprintID]; !ok {
			return notFound("sprint %s", *t.SprintID)
		}
	}
	cur.SprintID, cur.Title, cur.Description = t.SprintID, t.Title, t.Description
	cur.Status, cur.Priority, cur.DueDate = t.Status, t.Priority, t.DueDate
	cur.UpdatedAt = s.now()
	s.tasks[t.ID] = cur
	t.UpdatedAt = cur.UpdatedAt
	s.touch(cur.ProjectID)
	return nil
}

// dropTask deletes a task with its links. Callers hold the write lock.
func (s *Store) dropTask(id string) {
	delete(s.tasks, id)
	unlinkOwner(s.taskAssignees, id)
	unlinkOwner(s.taskTags, id)
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return notFound("delete task %s", id)
	}
	s.dropTask(id)
	return nil
}

func (s *Store) AssignTask(_ context.Context, taskID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return notFound("assign task %s", taskID)
	}
	if err := s.requireUsers(userIDs); err != nil {
		return err
	}
	for _, uid := range userIDs {
		s.taskAssignees[linkKey{taskID, uid}] = struct{}{}
	}
	return nil
}

func (s *Store) UnassignTask(_ context.Context, taskID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range userIDs {
		delete(s.taskAssignees, linkKey{taskID, uid})
	}
	return nil
}

func (s *Store) TaskStats(_ context.Context, projectID string, now time.Time) (*task.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &task.Stats{ProjectID: projectID, ByStatus: map[string]int{}}
	for _, t := range s.tasks {
		if t.ProjectID != projectID {
			continue
		}
		st.Total++
		st.ByStatus[string(t.Status)]++
		if t.DueDate != nil && t.DueDate.Before(now) && t.Status != task.StatusDone && t.Status != task.StatusCancelled {
			st.Overdue++
		}
	}
	return st, nil
}

// --- Tags ---

func (s *Store) uniqueTag(t *tag.Tag) error {
	for _, other := range s.tags {
		if other.ID != t.ID && strings.EqualFold(other.Title, t.Title) {
			return exists("tag %q", t.Title)
		}
	}
	return nil
}

func (s *Store) CreateTag(_ context.Context, t *tag.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.uniqueTag(t); err != nil {
		return err
	}
	t.CreatedAt = s.now()
	s.tags[t.ID] = *t
	return nil
}

func (s *Store) GetTag(_ context.Context, id string) (*tag.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[id]
	if !ok {
		return nil, notFound("get tag %s", id)
	}
	return &t, nil
}

func (s *Store) ListTags(_ context.Context, search string, p domain.Page) ([]tag.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.tags, func(t tag.Tag) bool { return matches(search, t.Title) })
	slices.SortFunc(out, func(a, b tag.Tag) int { return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) })
	return page(out, p), nil
}

func (s *Store) UpdateTag(_ context.Context, t *tag.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tags[t.ID]
	if !ok {
		return notFound("update tag %s", t.ID)
	}
	if err := s.uniqueTag(t); err != nil {
		return err
	}
	cur.Title = t.Title
	s.tags[t.ID] = cur
	return nil
}

func (s *Store) DeleteTag(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[id]; !ok {
		return notFound("delete tag %s", id)
	}
	delete(s.tags, id)
	unlinkOther(s.taskTags, id)
	unlinkOther(s.docTags, id)
	return nil
}

func (s *Store) link(links map[linkKey]struct{}, ownerOK bool, owner, tagID, what string) error {
	if !ownerOK {
		return notFound("%s %s", what, owner)
	}
	if _, ok := s.tags[tagID]; !ok {
		return notFound("tag %s", tagID)
	}
	links[linkKey{owner, tagID}] = struct{}{}
	return nil
}

func unlink(links map[linkKey]struct{}, owner, tagID, what string) error {
	key := linkKey{owner, tagID}
	if _, ok := links[key]; !ok {
		return notFound("untag %s %s", what, owner)
	}
	delete(links, key)
	return nil
}

func (s *Store) TagTask(_ context.Context, tagID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[taskID]
	return s.link(s.taskTags, ok, taskID, tagID, "task")
}

func (s *Store) UntagTask(_ context.Context, tagID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return unlink(s.taskTags, taskID, tagID, "task")
}

func (s *Store) TagDocumentation(_ context.Context, tagID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[docID]
	return s.link(s.docTags, ok, docID, tagID, "documentation")
}

func (s *Store) UntagDocumentation(_ context.Context, tagID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return unlink(s.docTags, docID, tagID, "documentation")
}
