// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/documentation"
	"github.com/scrumix/scrumix/internal/domain/meeting"
	"github.com/scrumix/scrumix/internal/domain/notification"
	"github.com/scrumix/scrumix/internal/domain/project"
	"github.com/scrumix/scrumix/internal/domain/sprint"
	"github.com/scrumix/scrumix/internal/domain/tag"
	"github.com/scrumix/scrumix/internal/domain/task"
	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/domain/velocity"
)

// Store is the port interface for database operations.
type Store interface {
	UserStore
	TokenStore
	ProjectStore
	SprintStore
	BacklogStore
	BurndownStore
	TaskStore
	MeetingStore
	DocumentationStore
	TagStore
	NotificationStore

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
	ListUsers(ctx context.Context, search string, page domain.Page) ([]user.User, error)
	UpdateUser(ctx context.Context, u *user.User) error
	DeleteUser(ctx context.Context, id string) error
}

// TokenStore persists refresh tokens and the access token blacklist.
type TokenStore interface {
	CreateRefreshToken(ctx context.Context, rt *user.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*user.RefreshToken, error)
	DeleteRefreshTokensByUser(ctx context.Context, userID string) error
	// RotateRefreshToken atomically replaces the token with oldTokenHash by newRT.
	RotateRefreshToken(ctx context.Context, oldTokenHash string, newRT *user.RefreshToken) error
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// ProjectStore persists projects and their membership.
type ProjectStore interface {
	// CreateProject stores p and makes ownerID its owner in one transaction.
	CreateProject(ctx context.Context, p *project.Project, ownerID string) error
	GetProject(ctx context.Context, id string) (*project.Project, error)
	ListProjects(ctx context.Context, f project.Filter) ([]project.Project, error)
	// UpdateProject writes p if its version matches, otherwise returns domain.ErrConflict.
	UpdateProject(ctx context.Context, p *project.Project) error
	DeleteProject(ctx context.Context, id string) error
	ProjectStats(ctx context.Context, projectID string) (*project.Stats, error)

	ListMembers(ctx context.Context, projectID string) ([]project.Member, error)
	GetMember(ctx context.Context, projectID, userID string) (*project.Member, error)
	AddMember(ctx context.Context, m *project.Member) error
	UpdateMemberRole(ctx context.Context, projectID, userID string, role project.MemberRole) error
	RemoveMember(ctx context.Context, projectID, userID string) error
}

// SprintStore persists sprints.
type SprintStore interface {
	CreateSprint(ctx context.Context, s *sprint.Sprint) error
	GetSprint(ctx context.Context, id string) (*sprint.Sprint, error)
	// ListSprints orders by start date, most recent first.
	ListSprints(ctx context.Context, f sprint.Filter) ([]sprint.Sprint, error)
	UpdateSprint(ctx context.Context, s *sprint.Sprint) error
	DeleteSprint(ctx context.Context, id string) error
	// GetActiveSprint returns domain.ErrNotFound when the project has no active sprint.
	GetActiveSprint(ctx context.Context, projectID string) (*sprint.Sprint, error)
	SetSprintVelocity(ctx context.Context, sprintID string, points int) error
	SprintStats(ctx context.Context, sprintID string) (*sprint.Stats, error)
}

// BacklogStore persists the backlog tree and acceptance criteria.
type BacklogStore interface {
	// CreateBacklog inserts item and applies the sprint point adjustments in
	// one transaction.
	CreateBacklog(ctx context.Context, item *backlog.Item, adj []sprint.PointAdjustment) error
	GetBacklog(ctx context.Context, id string) (*backlog.Item, error)
	GetBacklogs(ctx context.Context, ids []string) ([]backlog.Item, error)
	ListBacklogs(ctx context.Context, f backlog.Filter) ([]backlog.Item, error)
	ListChildren(ctx context.Context, parentID string) ([]backlog.Item, error)
	// ListDescendants returns every item whose path lies below path.
	ListDescendants(ctx context.Context, projectID, path string) ([]backlog.Item, error)
	// UpdateBacklog writes item, rewrites its subtree when rebase is non-nil
	// and applies the sprint point adjustments, all in one transaction.
	// Velocity counters never drop below zero.
	UpdateBacklog(ctx context.Context, item *backlog.Item, rebase *backlog.Rebase, adj []sprint.PointAdjustment) error
	// DeleteBacklog removes the item and its descendants.
	DeleteBacklog(ctx context.Context, id string) error
	// RebuildHierarchy recomputes level, path and root_id of every item in a project.
	RebuildHierarchy(ctx context.Context, projectID string) (int64, error)
	// SprintPoints sums story points of a sprint's items: done ones as
	// completed, the rest except cancelled as remaining.
	SprintPoints(ctx context.Context, sprintID string) (completed, remaining int, err error)
	// RemainingPoints sums story points of a project's open items.
	RemainingPoints(ctx context.Context, projectID string) (int, error)
	BacklogStats(ctx context.Context, projectID string) (*backlog.Stats, error)

	CreateCriteria(ctx context.Context, c *backlog.Criteria) error
	GetCriteria(ctx context.Context, id string) (*backlog.Criteria, error)
	ListCriteria(ctx context.Context, backlogID string) ([]backlog.Criteria, error)
	UpdateCriteria(ctx context.Context, c *backlog.Criteria) error
	DeleteCriteria(ctx context.Context, id string) error
}

// BurndownStore persists daily burndown snapshots.
type BurndownStore interface {
	// UpsertSnapshot inserts or replaces the row for (sprint, date).
	UpsertSnapshot(ctx context.Context, s *velocity.Snapshot) error
	// ListSnapshots orders by date ascending.
	ListSnapshots(ctx context.Context, sprintID string) ([]velocity.Snapshot, error)
}

// TaskStore persists tasks with their assignees and tags.
type TaskStore interface {
	CreateTask(ctx context.Context, t *task.Task, assigneeIDs []string) error
	GetTask(ctx context.Context, id string) (*task.Task, error)
	ListTasks(ctx context.Context, f task.Filter) ([]task.Task, error)
	UpdateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, id string) error
	AssignTask(ctx context.Context, taskID string, userIDs []string) error
	UnassignTask(ctx context.Context, taskID string, userIDs []string) error
	TaskStats(ctx context.Context, projectID string, now time.Time) (*task.Stats, error)
}

// MeetingStore persists meetings and their agenda, notes and action items.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, m *meeting.Meeting) error
	GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error)
	ListMeetings(ctx context.Context, f meeting.Filter) ([]meeting.Meeting, error)
	UpdateMeeting(ctx context.Context, m *meeting.Meeting) error
	DeleteMeeting(ctx context.Context, id string) error

	CreateAgendaItem(ctx context.Context, a *meeting.AgendaItem) error
	GetAgendaItem(ctx context.Context, id string) (*meeting.AgendaItem, error)
	ListAgenda(ctx context.Context, meetingID string) ([]meeting.AgendaItem, error)
	UpdateAgendaItem(ctx context.Context, a *meeting.AgendaItem) error
	DeleteAgendaItem(ctx context.Context, id string) error
	// ReorderAgenda sets order_index of the listed items to their position.
	ReorderAgenda(ctx context.Context, meetingID string, itemIDs []string) error

	CreateNote(ctx context.Context, n *meeting.Note) error
	GetNote(ctx context.Context, id string) (*meeting.Note, error)
	ListNotes(ctx context.Context, meetingID string) ([]meeting.Note, error)
	UpdateNote(ctx context.Context, n *meeting.Note) error
	DeleteNote(ctx context.Context, id string) error

	CreateActionItem(ctx context.Context, a *meeting.ActionItem) error
	GetActionItem(ctx context.Context, id string) (*meeting.ActionItem, error)
	ListActionItems(ctx context.Context, meetingID string) ([]meeting.ActionItem, error)
	UpdateActionItem(ctx context.Context, a *meeting.ActionItem) error
	DeleteActionItem(ctx context.Context, id string) error
}

// DocumentationStore persists project documents and their authors.
type DocumentationStore interface {
	CreateDocumentation(ctx context.Context, d *documentation.Documentation, authorIDs []string) error
	GetDocumentation(ctx context.Context, id string) (*documentation.Documentation, error)
	ListDocumentation(ctx context.Context, f documentation.Filter) ([]documentation.Documentation, error)
	UpdateDocumentation(ctx context.Context, d *documentation.Documentation) error
	DeleteDocumentation(ctx context.Context, id string) error
	AddAuthors(ctx context.Context, docID string, userIDs []string) error
	RemoveAuthors(ctx context.Context, docID string, userIDs []string) error
}

// TagStore persists tags and their links to tasks and documentation.
type TagStore interface {
	// CreateTag returns domain.ErrAlreadyExists when the title is taken (case-insensitively).
	CreateTag(ctx context.Context, t *tag.Tag) error
	GetTag(ctx context.Context, id string) (*tag.Tag, error)
	ListTags(ctx context.Context, search string, page domain.Page) ([]tag.Tag, error)
	UpdateTag(ctx context.Context, t *tag.Tag) error
	DeleteTag(ctx context.Context, id string) error
	TagTask(ctx context.Context, tagID, taskID string) error
	UntagTask(ctx context.Context, tagID, taskID string) error
	TagDocumentation(ctx context.Context, tagID, docID string) error
	UntagDocumentation(ctx context.Context, tagID, docID string) error
}

// NotificationStore persists notifications and their per-user delivery state.
type NotificationStore interface {
	// CreateNotification stores n and an unread delivery per recipient.
	CreateNotification(ctx context.Context, n *notification.Notification, recipientIDs []string) error
	GetNotification(ctx context.Context, id string) (*notification.Notification, error)
	// ListDeliveries returns a user's non-expired notifications, newest first.
	ListDeliveries(ctx context.Context, f notification.Filter, now time.Time) ([]notification.Delivery, error)
	CountUnread(ctx context.Context, userID string, now time.Time) (int, error)
	SetDeliveryStatus(ctx context.Context, notificationID, userID string, status notification.Status) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, id string) error
	PurgeExpiredNotifications(ctx context.Context, before time.Time) (int64, error)
	// ListUserIDs returns the IDs of all enabled users.
	ListUserIDs(ctx context.Context) ([]string, error)
}
