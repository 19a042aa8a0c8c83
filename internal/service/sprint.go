package service

import (
	"context"
	"fmt"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/notification"
	"github.com/scrumix/scrumix/internal/domain/sprint"
	"github.com/scrumix/scrumix/internal/port/database"
)

// SprintService handles sprints, their lifecycle and sprint backlogs.
type SprintService struct {
	store    database.Store
	backlogs *BacklogService
	velocity *VelocityService
	notifier *NotificationService
}

// NewSprintService creates a sprint service. notifier may be nil.
func NewSprintService(store database.Store, backlogs *BacklogService, vel *VelocityService, notifier *NotificationService) *SprintService {
	return &SprintService{store: store, backlogs: backlogs, velocity: vel, notifier: notifier}
}

// List returns a project's sprints, most recent first.
func (s *SprintService) List(ctx context.Context, f sprint.Filter) ([]sprint.Sprint, error) {
	if f.Status != "" && !sprint.ValidStatuses[f.Status] {
		return nil, domain.Invalid("invalid status %q", f.Status)
	}
	return s.store.ListSprints(ctx, f)
}

// Get returns a sprint by ID.
func (s *SprintService) Get(ctx context.Context, id string) (*sprint.Sprint, error) {
	return s.store.GetSprint(ctx, id)
}

// Create stores a new sprint in planning state.
func (s *SprintService) Create(ctx context.Context, req *sprint.CreateRequest) (*sprint.Sprint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ts := now()
	sp := &sprint.Sprint{
		ID:        newID(),
		ProjectID: req.ProjectID,
		Name:      req.Name,
		Goal:      req.Goal,
		Status:    sprint.StatusPlanning,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Capacity:  req.Capacity,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.store.CreateSprint(ctx, sp); err != nil {
		return nil, fmt.Errorf("create sprint: %w", err)
	}
	return sp, nil
}

// Update changes name, goal, dates or capacity.
func (s *SprintService) Update(ctx context.Context, id string, req sprint.UpdateRequest) (*sprint.Sprint, error) {
	sp, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(sp); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSprint(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// Delete removes a sprint. Its items return to the product backlog.
func (s *SprintService) Delete(ctx context.Context, id string) error {
	sp, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSprint(ctx, id); err != nil {
		return err
	}
	s.velocity.Invalidate(ctx, sp.ProjectID)
	return nil
}

// Start activates a planned sprint. A project has at most one active sprint;
// starting a second one yields domain.ErrConflict.
func (s *SprintService) Start(ctx context.Context, actorID, id string) (*sprint.Sprint, error) {
	sp, err := s.transition(ctx, id, sprint.StatusActive)
	if err != nil {
		return nil, err
	}
	s.velocity.Refresh(ctx, sp.ProjectID, []string{sp.ID})
	s.notifier.NotifyProject(ctx, sp.ProjectID, actorID, notification.CreateRequest{
		Title:            "Sprint started",
		Message:          fmt.Sprintf("%s has started", sp.Name),
		NotificationType: notification.TypeSprintStarted,
		Priority:         notification.PriorityMedium,
		EntityType:       "sprint",
		EntityID:         sp.ID,
		ActionURL:        "/sprints/" + sp.ID,
	})
	return sp, nil
}

// Complete closes an active sprint and records its final burndown.
func (s *SprintService) Complete(ctx context.Context, actorID, id string) (*sprint.Sprint, error) {
	sp, err := s.transition(ctx, id, sprint.StatusCompleted)
	if err != nil {
		return nil, err
	}
	s.velocity.Refresh(ctx, sp.ProjectID, []string{sp.ID})
	s.notifier.NotifyProject(ctx, sp.ProjectID, actorID, notification.CreateRequest{
		Title:            "Sprint completed",
		Message:          fmt.Sprintf("%s completed with %d velocity points", sp.Name, sp.VelocityPoints),
		NotificationType: notification.TypeSprintCompleted,
		Priority:         notification.PriorityMedium,
		EntityType:       "sprint",
		EntityID:         sp.ID,
		ActionURL:        "/sprints/" + sp.ID,
	})
	return sp, nil
}

// Cancel abandons a planned or active sprint.
func (s *SprintService) Cancel(ctx context.Context, id string) (*sprint.Sprint, error) {
	sp, err := s.transition(ctx, id, sprint.StatusCancelled)
	if err != nil {
		return nil, err
	}
	s.velocity.Invalidate(ctx, sp.ProjectID)
	return sp, nil
}

func (s *SprintService) transition(ctx context.Context, id string, to sprint.Status) (*sprint.Sprint, error) {
	sp, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sprint.ValidateTransition(sp.Status, to); err != nil {
		return nil, err
	}
	if to == sprint.StatusActive {
		active, err := s.store.GetActiveSprint(ctx, sp.ProjectID)
		if err == nil && active.ID != sp.ID {
			return nil, fmt.Errorf("%w: sprint %q is already active", domain.ErrConflict, active.Name)
		}
	}
	sp.Status = to
	if err := s.store.UpdateSprint(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// Items returns the backlog items planned into a sprint.
func (s *SprintService) Items(ctx context.Context, id string, page domain.Page) ([]backlog.Item, error) {
	sp, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.ListBacklogs(ctx, backlog.Filter{ProjectID: sp.ProjectID, SprintID: id, Page: page})
}

// AddItem moves a backlog item of the same project into the sprint.
func (s *SprintService) AddItem(ctx context.Context, id, backlogID string) (*backlog.Item, error) {
	sp, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return nil, err
	}
	if sp.Status == sprint.StatusCompleted || sp.Status == sprint.StatusCancelled {
		return nil, domain.Invalid("cannot add items to a %s sprint", sp.Status)
	}
	return s.backlogs.Update(ctx, backlogID, backlog.UpdateRequest{SprintID: &sp.ID})
}

// RemoveItem returns an item of the sprint to the product backlog.
func (s *SprintService) RemoveItem(ctx context.Context, id, backlogID string) (*backlog.Item, error) {
	item, err := s.store.GetBacklog(ctx, backlogID)
	if err != nil {
		return nil, err
	}
	if item.InSprint() != id {
		return nil, fmt.Errorf("backlog item %s in sprint %s: %w", backlogID, id, domain.ErrNotFound)
	}
	none := ""
	return s.backlogs.Update(ctx, backlogID, backlog.UpdateRequest{SprintID: &none})
}

// Stats returns item counts and point totals of a sprint.
func (s *SprintService) Stats(ctx context.Context, id string) (*sprint.Stats, error) {
	return s.store.SprintStats(ctx, id)
}
