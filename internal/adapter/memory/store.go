// Package memory implements database.Store on in-process maps. It backs
// local development and the HTTP tests; nothing survives a restart.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
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
	"github.com/scrumix/scrumix/internal/port/database"
)

var _ database.Store = (*Store)(nil)

type memberKey struct{ projectID, userID string }

type linkKey struct{ ownerID, otherID string }

type delivery struct {
	status notification.Status
	readAt *time.Time
}

// Store is a mutex-guarded set of tables. Every read returns copies.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users         map[string]user.User
	refreshTokens map[string]user.RefreshToken // by hash
	revoked       map[string]time.Time

	projects map[string]project.Project
	members  map[memberKey]project.Member

	sprints   map[string]sprint.Sprint
	backlogs  map[string]backlog.Item
	criteria  map[string]backlog.Criteria
	snapshots map[string]velocity.Snapshot // by sprint + day

	tasks         map[string]task.Task
	taskAssignees map[linkKey]struct{}
	tags          map[string]tag.Tag
	taskTags      map[linkKey]struct{}

	meetings    map[string]meeting.Meeting
	agenda      map[string]meeting.AgendaItem
	notes       map[string]meeting.Note
	actionItems map[string]meeting.ActionItem

	docs       map[string]documentation.Documentation
	docAuthors map[linkKey]struct{}
	docTags    map[linkKey]struct{}

	notifications map[string]notification.Notification
	deliveries    map[linkKey]delivery // notification, user
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		users:         make(map[string]user.User),
		refreshTokens: make(map[string]user.RefreshToken),
		revoked:       make(map[string]time.Time),
		projects:      make(map[string]project.Project),
		members:       make(map[memberKey]project.Member),
		sprints:       make(map[string]sprint.Sprint),
		backlogs:      make(map[string]backlog.Item),
		criteria:      make(map[string]backlog.Criteria),
		snapshots:     make(map[string]velocity.Snapshot),
		tasks:         make(map[string]task.Task),
		taskAssignees: make(map[linkKey]struct{}),
		tags:          make(map[string]tag.Tag),
		taskTags:      make(map[linkKey]struct{}),
		meetings:      make(map[string]meeting.Meeting),
		agenda:        make(map[string]meeting.AgendaItem),
		notes:         make(map[string]meeting.Note),
		actionItems:   make(map[string]meeting.ActionItem),
		docs:          make(map[string]documentation.Documentation),
		docAuthors:    make(map[linkKey]struct{}),
		docTags:       make(map[linkKey]struct{}),
		notifications: make(map[string]notification.Notification),
		deliveries:    make(map[linkKey]delivery),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrNotFound)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrConflict)
}

func exists(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrAlreadyExists)
}

// page cuts items to p, treating a zero limit as the default.
func page[T any](items []T, p domain.Page) []T {
	if p.Limit <= 0 {
		p.Limit = domain.DefaultLimit
	}
	start, end := p.Window(len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

// values returns the map's values filtered by keep.
func values[K comparable, V any](m map[K]V, keep func(V) bool) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// matches is a case-insensitive substring test over any of fields.
func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func byCreated[T any](created func(T) time.Time) func(a, b T) int {
	return func(a, b T) int { return created(a).Compare(created(b)) }
}

// linked returns the "other" IDs of links owned by ownerID.
func linked(links map[linkKey]struct{}, ownerID string) []string {
	var out []string
	for k := range links {
		if k.ownerID == ownerID {
			out = append(out, k.otherID)
		}
	}
	slices.Sort(out)
	return out
}

func unlinkOwner(links map[linkKey]struct{}, ownerID string) {
	for k := range links {
		if k.ownerID == ownerID {
			delete(links, k)
		}
	}
}

func unlinkOther(links map[linkKey]struct{}, otherID string) {
	for k := range links {
		if k.otherID == otherID {
			delete(links, k)
		}
	}
}

func (s *Store) summaries(userIDs []string) []user.Summary {
	out := make([]user.Summary, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out = append(out, u.Summarize())
		}
	}
	slices.SortFunc(out, func(a, b user.Summary) int { return cmp.Compare(a.Username, b.Username) })
	return out
}

func (s *Store) tagTitles(tagIDs []string) []string {
	out := make([]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		if t, ok := s.tags[id]; ok {
			out = append(out, t.Title)
		}
	}
	slices.Sort(out)
	return out
}

func (s *Store) requireUsers(ids []string) error {
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			return notFound("user %s", id)
		}
	}
	return nil
}
