package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/notification"
	"github.com/scrumix/scrumix/internal/domain/project"
	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/port/database"
)

// ProjectService handles projects, their membership and access checks.
type ProjectService struct {
	store    database.Store
	notifier *NotificationService
}

// NewProjectService creates a new ProjectService. notifier may be nil.
func NewProjectService(store database.Store, notifier *NotificationService) *ProjectService {
	return &ProjectService{store: store, notifier: notifier}
}

// Authorize checks that actor may act on the project with one of roles (any
// role when none are given). Admins always pass and get a nil member back.
// A missing project is reported as not found before membership is checked.
func (s *ProjectService) Authorize(ctx context.Context, actor *user.User, projectID string, roles ...project.MemberRole) (*project.Member, error) {
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return nil, nil
	}

	m, err := s.store.GetMember(ctx, projectID, actor.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: not a member of this project", domain.ErrForbidden)
	}
	if err != nil {
		return nil, err
	}
	if !m.HasRole(roles...) {
		return nil, fmt.Errorf("%w: requires project role %v", domain.ErrForbidden, roles)
	}
	return m, nil
}

// List returns the projects actor is a member of.
func (s *ProjectService) List(ctx context.Context, actor *user.User, f project.Filter) ([]project.Project, error) {
	if f.Status != "" && !project.ValidStatuses[f.Status] {
		return nil, domain.Invalid("invalid status %q", f.Status)
	}
	f.MemberID = actor.ID
	return s.store.ListProjects(ctx, f)
}

// Get returns a project by ID.
func (s *ProjectService) Get(ctx context.Context, id string) (*project.Project, error) {
	return s.store.GetProject(ctx, id)
}

// Create validates the request and stores the project with ownerID as owner.
func (s *ProjectService) Create(ctx context.Context, ownerID string, req *project.CreateRequest) (*project.Project, error) {
	if err := project.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	ts := now()
	p := &project.Project{
		ID:             newID(),
		Name:           req.Name,
		Description:    req.Description,
		Status:         req.Status,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Color:          req.Color,
		Version:        1,
		LastActivityAt: ts,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if err := s.store.CreateProject(ctx, p, ownerID); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// Update applies partial updates to a project. A concurrent write yields
// domain.ErrConflict.
func (s *ProjectService) Update(ctx context.Context, id string, req project.UpdateRequest) (*project.Project, error) {
	if err := project.ValidateUpdateRequest(req); err != nil {
		return nil, err
	}

	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(p)
	if err := p.ValidateDates(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a project together with everything it owns.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteProject(ctx, id)
}

// Stats returns status counts and story point totals of a project.
func (s *ProjectService) Stats(ctx context.Context, id string) (*project.Stats, error) {
	st, err := s.store.ProjectStats(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.TotalStoryPoints > 0 {
		st.CompletionPercent = float64(st.CompletedPoints) * 100 / float64(st.TotalStoryPoints)
	}
	return st, nil
}

// ListMembers returns the members of a project with their user summaries.
func (s *ProjectService) ListMembers(ctx context.Context, projectID string) ([]project.Member, error) {
	return s.store.ListMembers(ctx, projectID)
}

// AddMember adds a user to a project and notifies them.
func (s *ProjectService) AddMember(ctx context.Context, actorID, projectID string, req project.AddMemberRequest) (*project.Member, error) {
	if req.UserID == "" {
		return nil, domain.Invalid("user_id is required")
	}
	if req.Role == "" {
		req.Role = project.RoleDeveloper
	}
	if err := project.ValidateMemberRole(req.Role); err != nil {
		return nil, err
	}

	m := &project.Member{ProjectID: projectID, UserID: req.UserID, Role: req.Role, JoinedAt: now()}
	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, err
	}

	p, err := s.store.GetProject(ctx, projectID)
	if err == nil {
		s.notifier.NotifyUsers(ctx, []string{req.UserID}, actorID, notification.CreateRequest{
			Title:            "Added to project",
			Message:          fmt.Sprintf("You were added to %s as %s", p.Name, req.Role),
			NotificationType: notification.TypeMemberAdded,
			Priority:         notification.PriorityMedium,
			EntityType:       "project",
			EntityID:         projectID,
			ActionURL:        "/projects/" + projectID,
		}, projectID)
	}
	return s.store.GetMember(ctx, projectID, req.UserID)
}

// UpdateMemberRole changes a member's role. The last owner cannot be demoted.
func (s *ProjectService) UpdateMemberRole(ctx context.Context, projectID, userID string, role project.MemberRole) (*project.Member, error) {
	if err := project.ValidateMemberRole(role); err != nil {
		return nil, err
	}
	if role != project.RoleOwner {
		if err := s.keepOwner(ctx, projectID, userID); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateMemberRole(ctx, projectID, userID, role); err != nil {
		return nil, err
	}
	return s.store.GetMember(ctx, projectID, userID)
}

// RemoveMember removes a user from a project. The last owner cannot leave.
func (s *ProjectService) RemoveMember(ctx context.Context, projectID, userID string) error {
	if err := s.keepOwner(ctx, projectID, userID); err != nil {
		return err
	}
	return s.store.RemoveMember(ctx, projectID, userID)
}

// keepOwner fails when userID is the project's only owner.
func (s *ProjectService) keepOwner(ctx context.Context, projectID, userID string) error {
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return err
	}
	owners, isOwner := 0, false
	for i := range members {
		if members[i].Role == project.RoleOwner {
			owners++
			if members[i].UserID == userID {
				isOwner = true
			}
		}
	}
	if isOwner && owners == 1 {
		return domain.Invalid("a project must keep at least one owner")
	}
	return nil
}
