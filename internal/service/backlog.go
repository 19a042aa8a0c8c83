package service

import (
	"context"
	"fmt"
	"log/slog"

	sxotel "github.com/scrumix/scrumix/internal/adapter/otel"
	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/sprint"
	"github.com/scrumix/scrumix/internal/domain/velocity"
	"github.com/scrumix/scrumix/internal/port/database"
)

// BacklogService maintains the backlog tree and drives velocity accounting
// when items change status, points or sprint.
type BacklogService struct {
	store    database.Store
	velocity *VelocityService
	metrics  *sxotel.Metrics
}

// NewBacklogService creates a backlog service. metrics may be nil.
func NewBacklogService(store database.Store, vel *VelocityService, metrics *sxotel.Metrics) *BacklogService {
	return &BacklogService{store: store, velocity: vel, metrics: metrics}
}

// List returns a project's items matching the filter.
func (s *BacklogService) List(ctx context.Context, f backlog.Filter) ([]backlog.Item, error) {
	if f.Status != "" && !backlog.ValidStatuses[f.Status] {
		return nil, domain.Invalid("invalid status %q", f.Status)
	}
	if f.ItemType != "" && !backlog.ValidTypes[f.ItemType] {
		return nil, domain.Invalid("invalid item_type %q", f.ItemType)
	}
	return s.store.ListBacklogs(ctx, f)
}

// Tree returns all items of a project nested under their parents.
func (s *BacklogService) Tree(ctx context.Context, projectID string) ([]*backlog.Node, error) {
	items, err := s.store.ListBacklogs(ctx, backlog.Filter{ProjectID: projectID, Page: domain.All})
	if err != nil {
		return nil, err
	}
	return backlog.BuildTree(items), nil
}

// Get returns an item by ID.
func (s *BacklogService) Get(ctx context.Context, id string) (*backlog.Item, error) {
	return s.store.GetBacklog(ctx, id)
}

// Create places a new item in the tree. Creating an item that is already
// done in a sprint counts its points toward the sprint's velocity.
func (s *BacklogService) Create(ctx context.Context, req *backlog.CreateRequest) (*backlog.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ts := now()
	item := &backlog.Item{
		ID:          newID(),
		ProjectID:   req.ProjectID,
		SprintID:    req.SprintID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		ItemType:    req.ItemType,
		StoryPoints: req.StoryPoints,
		Label:       req.Label,
		AssigneeID:  req.AssigneeID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := s.checkSprint(ctx, item, ""); err != nil {
		return nil, err
	}

	var parent *backlog.Item
	if req.ParentID != nil && *req.ParentID != "" {
		p, err := s.store.GetBacklog(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		parent = p
	}
	if err := backlog.Place(item, parent); err != nil {
		return nil, err
	}
	item.StampCompletion("", ts)

	adj := velocity.Adjustments(backlog.Item{}, *item)
	if err := s.store.CreateBacklog(ctx, item, adj); err != nil {
		return nil, fmt.Errorf("create backlog item: %w", err)
	}
	if len(adj) > 0 {
		s.countAdjustments(ctx, item.ProjectID, len(adj))
	}
	if sid := item.InSprint(); sid != "" {
		s.velocity.Refresh(ctx, item.ProjectID, []string{sid})
	}
	return item, nil
}

// checkSprint verifies that the item's sprint belongs to the item's project
// and, when the item joins it, that the sprint is still open. current is the
// sprint the item is in now, "" for new items.
func (s *BacklogService) checkSprint(ctx context.Context, item *backlog.Item, current string) error {
	sid := item.InSprint()
	if sid == "" || sid == current {
		return nil
	}
	sp, err := s.store.GetSprint(ctx, sid)
	if err != nil {
		return err
	}
	if sp.ProjectID != item.ProjectID {
		return domain.Invalid("sprint belongs to another project")
	}
	if sp.Status == sprint.StatusCompleted || sp.Status == sprint.StatusCancelled {
		return domain.Invalid("cannot add items to a %s sprint", sp.Status)
	}
	return nil
}

// Update applies changes to an item. Moving it to another parent rewrites
// its subtree; a change of status, points or sprint adjusts the velocity of
// the affected sprints in the same transaction and refreshes their burndown.
func (s *BacklogService) Update(ctx context.Context, id string, req backlog.UpdateRequest) (*backlog.Item, error) {
	before, err := s.store.GetBacklog(ctx, id)
	if err != nil {
		return nil, err
	}

	after, err := req.Apply(*before)
	if err != nil {
		return nil, err
	}
	if err := s.checkSprint(ctx, &after, before.InSprint()); err != nil {
		return nil, err
	}

	var rebase *backlog.Rebase
	if req.ParentID != nil && *req.ParentID != before.Parent() {
		ctx, span := sxotel.StartHierarchySpan(ctx, "reparent", before.ProjectID)
		rebase, err = s.reparent(ctx, &after, *req.ParentID)
		span.End()
		if err != nil {
			return nil, err
		}
	}

	after.StampCompletion(before.Status, now())
	adj := velocity.Adjustments(*before, after)

	if err := s.store.UpdateBacklog(ctx, &after, rebase, adj); err != nil {
		return nil, fmt.Errorf("update backlog item: %w", err)
	}
	s.countAdjustments(ctx, after.ProjectID, len(adj))

	if velocity.Accounting(*before, after) {
		s.velocity.Refresh(ctx, after.ProjectID, velocity.AffectedSprints(*before, after))
	}
	return &after, nil
}

func (s *BacklogService) reparent(ctx context.Context, item *backlog.Item, parentID string) (*backlog.Rebase, error) {
	var parent *backlog.Item
	if parentID != "" {
		p, err := s.store.GetBacklog(ctx, parentID)
		if err != nil {
			return nil, err
		}
		parent = p
	}
	return backlog.Reparent(item, parent)
}

func (s *BacklogService) countAdjustments(ctx context.Context, projectID string, n int) {
	if s.metrics != nil && n > 0 {
		s.metrics.Add(ctx, s.metrics.VelocityUpdates, int64(n), projectID)
	}
}

// Delete removes an item with its descendants and refreshes the burndown of
// the sprints that held any of them. Velocity already earned stays with the
// sprint.
func (s *BacklogService) Delete(ctx context.Context, id string) error {
	item, err := s.store.GetBacklog(ctx, id)
	if err != nil {
		return err
	}
	desc, err := s.store.ListDescendants(ctx, item.ProjectID, item.Path)
	if err != nil {
		return err
	}

	var sprints []string
	seen := map[string]bool{}
	for _, it := range append(desc, *item) {
		if sid := it.InSprint(); sid != "" && !seen[sid] {
			seen[sid] = true
			sprints = append(sprints, sid)
		}
	}

	if err := s.store.DeleteBacklog(ctx, id); err != nil {
		return err
	}
	if len(sprints) > 0 {
		s.velocity.Refresh(ctx, item.ProjectID, sprints)
	} else {
		s.velocity.Invalidate(ctx, item.ProjectID)
	}
	return nil
}

// Children returns the direct children of an item.
func (s *BacklogService) Children(ctx context.Context, id string) ([]backlog.Item, error) {
	if _, err := s.store.GetBacklog(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListChildren(ctx, id)
}

// Ancestors returns the chain from the root down to the item's parent.
func (s *BacklogService) Ancestors(ctx context.Context, id string) ([]backlog.Item, error) {
	item, err := s.store.GetBacklog(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := backlog.AncestorIDs(item.Path)
	if len(ids) == 0 {
		return []backlog.Item{}, nil
	}
	items, err := s.store.GetBacklogs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]backlog.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]backlog.Item, 0, len(ids))
	for _, aid := range ids {
		if it, ok := byID[aid]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// Descendants returns every item below the given one.
func (s *BacklogService) Descendants(ctx context.Context, id string) ([]backlog.Item, error) {
	item, err := s.store.GetBacklog(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.ListDescendants(ctx, item.ProjectID, item.Path)
}

// RebuildHierarchy recomputes level, path and root of every item in a project.
func (s *BacklogService) RebuildHierarchy(ctx context.Context, projectID string) (int64, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return 0, err
	}
	ctx, span := sxotel.StartHierarchySpan(ctx, "rebuild", projectID)
	defer span.End()

	n, err := s.store.RebuildHierarchy(ctx, projectID)
	if err != nil {
		return 0, err
	}
	slog.Info("backlog hierarchy rebuilt", "project_id", projectID, "changed", n)
	return n, nil
}

// Stats returns status, priority and type counts of a project's backlog.
func (s *BacklogService) Stats(ctx context.Context, projectID string) (*backlog.Stats, error) {
	return s.store.BacklogStats(ctx, projectID)
}

// --- Acceptance criteria ---

// ListCriteria returns the acceptance criteria of an item.
func (s *BacklogService) ListCriteria(ctx context.Context, backlogID string) ([]backlog.Criteria, error) {
	if _, err := s.store.GetBacklog(ctx, backlogID); err != nil {
		return nil, err
	}
	return s.store.ListCriteria(ctx, backlogID)
}

// GetCriteria returns one acceptance criterion.
func (s *BacklogService) GetCriteria(ctx context.Context, id string) (*backlog.Criteria, error) {
	return s.store.GetCriteria(ctx, id)
}

// CreateCriteria adds an acceptance criterion to an item.
func (s *BacklogService) CreateCriteria(ctx context.Context, backlogID string, req backlog.CriteriaRequest) (*backlog.Criteria, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, domain.Invalid("title is required")
	}
	ts := now()
	c := &backlog.Criteria{
		ID:        newID(),
		BacklogID: backlogID,
		Title:     *req.Title,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if req.IsMet != nil {
		c.IsMet = *req.IsMet
	}
	if err := s.store.CreateCriteria(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCriteria changes the title or met flag of a criterion.
func (s *BacklogService) UpdateCriteria(ctx context.Context, id string, req backlog.CriteriaRequest) (*backlog.Criteria, error) {
	c, err := s.store.GetCriteria(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		if *req.Title == "" {
			return nil, domain.Invalid("title cannot be empty")
		}
		c.Title = *req.Title
	}
	if req.IsMet != nil {
		c.IsMet = *req.IsMet
	}
	if err := s.store.UpdateCriteria(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCriteria removes a criterion.
func (s *BacklogService) DeleteCriteria(ctx context.Context, id string) error {
	return s.store.DeleteCriteria(ctx, id)
}
