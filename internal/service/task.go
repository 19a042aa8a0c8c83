package service

import (
	"context"
	"fmt"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/task"
	"github.com/scrumix/scrumix/internal/port/database"
)

// TaskService manages tasks under backlog items.
type TaskService struct {
	store database.Store
}

// NewTaskService creates a new TaskService.
func NewTaskService(store database.Store) *TaskService {
	return &TaskService{store: store}
}

// List returns tasks matching the filter.
func (s *TaskService) List(ctx context.Context, f task.Filter) ([]task.Task, error) {
	if f.Status != "" && !task.ValidStatuses[f.Status] {
		return nil, domain.Invalid("invalid status %q", f.Status)
	}
	return s.store.ListTasks(ctx, f)
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// Create adds a task to a backlog item. The task inherits the item's project.
func (s *TaskService) Create(ctx context.Context, req *task.CreateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	item, err := s.store.GetBacklog(ctx, req.BacklogID)
	if err != nil {
		return nil, err
	}

	ts := now()
	t := &task.Task{
		ID:          newID(),
		ProjectID:   item.ProjectID,
		BacklogID:   item.ID,
		SprintID:    req.SprintID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if t.SprintID != nil && *t.SprintID == "" {
		t.SprintID = nil
	}
	if t.SprintID == nil {
		t.SprintID = item.SprintID
	}
	if err := s.checkSprint(ctx, t); err != nil {
		return nil, err
	}
	if err := s.store.CreateTask(ctx, t, dedupe(req.AssigneeIDs)); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return s.store.GetTask(ctx, t.ID)
}

func (s *TaskService) checkSprint(ctx context.Context, t *task.Task) error {
	if t.SprintID == nil {
		return nil
	}
	sp, err := s.store.GetSprint(ctx, *t.SprintID)
	if err != nil {
		return err
	}
	if sp.ProjectID != t.ProjectID {
		return domain.Invalid("sprint belongs to another project")
	}
	return nil
}

// Update applies partial changes to a task.
func (s *TaskService) Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(t); err != nil {
		return nil, err
	}
	if err := s.checkSprint(ctx, t); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, id)
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTask(ctx, id)
}

// Assign adds users to a task's assignees. Already assigned users are kept.
func (s *TaskService) Assign(ctx context.Context, id string, req task.AssignRequest) (*task.Task, error) {
	ids := dedupe(req.UserIDs)
	if len(ids) == 0 {
		return nil, domain.Invalid("user_ids is required")
	}
	if err := s.store.AssignTask(ctx, id, ids); err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, id)
}

// Unassign removes users from a task's assignees.
func (s *TaskService) Unassign(ctx context.Context, id string, req task.AssignRequest) (*task.Task, error) {
	ids := dedupe(req.UserIDs)
	if len(ids) == 0 {
		return nil, domain.Invalid("user_ids is required")
	}
	if err := s.store.UnassignTask(ctx, id, ids); err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, id)
}

// Tag attaches a tag to a task.
func (s *TaskService) Tag(ctx context.Context, id, tagID string) (*task.Task, error) {
	if err := s.store.TagTask(ctx, tagID, id); err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, id)
}

// Untag detaches a tag from a task.
func (s *TaskService) Untag(ctx context.Context, id, tagID string) (*task.Task, error) {
	if err := s.store.UntagTask(ctx, tagID, id); err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, id)
}

// Stats counts a project's tasks by status and overdue ones.
func (s *TaskService) Stats(ctx context.Context, projectID string) (*task.Stats, error) {
	return s.store.TaskStats(ctx, projectID, time.Now().UTC())
}
