package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/adapter/memory"
	"github.com/scrumix/scrumix/internal/config"
	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/project"
	"github.com/scrumix/scrumix/internal/domain/sprint"
	"github.com/scrumix/scrumix/internal/domain/user"
)

// mapCache is an in-process cache.Cache that counts writes.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type capturedEvent struct {
	subject string
	data    []byte
}

// fixture wires every service over one memory store with a project owned
// by owner.
type fixture struct {
	store  *memory.Store
	cache  *mapCache
	events *EventPublisher

	mu       sync.Mutex
	captured []capturedEvent

	auth          *AuthService
	projects      *ProjectService
	sprints       *SprintService
	backlogs      *BacklogService
	velocity      *VelocityService
	notifications *NotificationService
	tasks         *TaskService
	meetings      *MeetingService
	docs          *DocumentationService
	tags          *TagService

	owner   *user.User
	project *project.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(), cache: newMapCache()}

	f.events = NewEventPublisher(nil, nil, nil)
	f.events.SetLocalHandler(func(_ context.Context, subject string, data []byte) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.captured = append(f.captured, capturedEvent{subject: subject, data: data})
		return nil
	})

	f.auth = NewAuthService(f.store, testAuthConfig())
	f.notifications = NewNotificationService(f.store, f.events, config.Notifications{Retention: 24 * time.Hour}, nil)
	f.projects = NewProjectService(f.store, f.notifications)
	f.velocity = NewVelocityService(f.store, f.cache, f.events, config.Velocity{HistoryWindow: 3, CacheTTL: time.Minute}, nil)
	f.backlogs = NewBacklogService(f.store, f.velocity, nil)
	f.sprints = NewSprintService(f.store, f.backlogs, f.velocity, f.notifications)
	f.tasks = NewTaskService(f.store)
	f.meetings = NewMeetingService(f.store)
	f.docs = NewDocumentationService(f.store)
	f.tags = NewTagService(f.store)

	f.owner = registerUser(t, f.auth, "owner")
	p, err := f.projects.Create(context.Background(), f.owner.ID, &project.CreateRequest{Name: "Apollo"})
	require.NoError(t, err)
	f.project = p
	return f
}

func (f *fixture) eventsOn(subject string) []capturedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []capturedEvent
	for _, e := range f.captured {
		if e.subject == subject {
			out = append(out, e)
		}
	}
	return out
}

func (f *fixture) member(t *testing.T, name string, role project.MemberRole) *user.User {
	t.Helper()
	u := registerUser(t, f.auth, name)
	_, err := f.projects.AddMember(context.Background(), f.owner.ID, f.project.ID, project.AddMemberRequest{UserID: u.ID, Role: role})
	require.NoError(t, err)
	return u
}

func (f *fixture) sprint(t *testing.T, name string, start time.Time, days int) *sprint.Sprint {
	t.Helper()
	sp, err := f.sprints.Create(context.Background(), &sprint.CreateRequest{
		ProjectID: f.project.ID,
		Name:      name,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, days),
	})
	require.NoError(t, err)
	return sp
}

func (f *fixture) item(t *testing.T, title string, points int, opts ...func(*backlog.CreateRequest)) *backlog.Item {
	t.Helper()
	req := &backlog.CreateRequest{ProjectID: f.project.ID, Title: title}
	if points > 0 {
		req.StoryPoints = &points
	}
	for _, o := range opts {
		o(req)
	}
	it, err := f.backlogs.Create(context.Background(), req)
	require.NoError(t, err)
	return it
}

func inSprint(id string) func(*backlog.CreateRequest) {
	return func(r *backlog.CreateRequest) { r.SprintID = &id }
}

func underParent(id string) func(*backlog.CreateRequest) {
	return func(r *backlog.CreateRequest) { r.ParentID = &id }
}

func withStatus(s backlog.Status) func(*backlog.CreateRequest) {
	return func(r *backlog.CreateRequest) { r.Status = s }
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) velocityOf(t *testing.T, sprintID string) int {
	t.Helper()
	sp, err := f.store.GetSprint(context.Background(), sprintID)
	require.NoError(t, err)
	return sp.VelocityPoints
}
