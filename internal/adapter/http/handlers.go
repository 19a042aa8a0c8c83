package http

import (
	"context"
	"net/http"
	"time"

	"github.com/scrumix/scrumix/internal/config"
	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/project"
	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/middleware"
	"github.com/scrumix/scrumix/internal/port/messagequeue"
	"github.com/scrumix/scrumix/internal/service"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Auth          *service.AuthService
	Projects      *service.ProjectService
	Sprints       *service.SprintService
	Backlogs      *service.BacklogService
	Velocity      *service.VelocityService
	Tasks         *service.TaskService
	Meetings      *service.MeetingService
	Docs          *service.DocumentationService
	Tags          *service.TagService
	Notifications *service.NotificationService

	// DB, Queue and EventBreaker back the readiness probe. Queue and
	// EventBreaker may be nil.
	DB           Pinger
	Queue        messagequeue.Queue
	EventBreaker interface{ State() string }

	Cookies       config.Cookie
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	BodyLimit     int64
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit <= 0 {
		return 1 << 20
	}
	return h.BodyLimit
}

// authorize checks the caller's membership in projectID and writes the
// error response when it fails.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request, projectID string, roles ...project.MemberRole) bool {
	if _, err := h.Projects.Authorize(r.Context(), middleware.UserFromContext(r.Context()), projectID, roles...); err != nil {
		writeDomainError(w, err, "project not found")
		return false
	}
	return true
}

// caller returns the authenticated user or writes a 401.
func caller(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}
	return u, true
}

// visibleProjects returns the IDs of projects the caller may read, or nil
// for admins, who see everything.
func (h *Handlers) visibleProjects(ctx context.Context, u *user.User) (map[string]bool, error) {
	if u.IsAdmin() {
		return nil, nil
	}
	projects, err := h.Projects.List(ctx, u, project.Filter{Page: domain.All})
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(projects))
	for i := range projects {
		ids[projects[i].ID] = true
	}
	return ids, nil
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	type readiness struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		NATS     string `json:"nats"`
		Events   string `json:"events,omitempty"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st := readiness{Status: "ok", Postgres: "ok", NATS: "disabled"}
	code := http.StatusOK
	if h.DB != nil {
		if err := h.DB.Ping(ctx); err != nil {
			st.Postgres = "unavailable"
			st.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	if h.Queue != nil {
		st.NATS = "ok"
		if !h.Queue.IsConnected() {
			// A broker outage drops live events but leaves the API usable.
			st.NATS = "disconnected"
		}
	}
	if h.EventBreaker != nil {
		st.Events = h.EventBreaker.State()
	}
	writeJSON(w, code, st)
}
