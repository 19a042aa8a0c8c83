package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	sxotel "github.com/scrumix/scrumix/internal/adapter/otel"
	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/middleware"
	"github.com/scrumix/scrumix/internal/port/cache"
)

// RouterConfig carries the cross-cutting pieces NewRouter wires around the
// API routes. Nil limiters, cache and websocket handler are skipped.
type RouterConfig struct {
	CORSOrigin     string
	RequestTimeout time.Duration

	AuthEnabled bool
	Validator   middleware.TokenValidator

	RateLimiter *middleware.RateLimiter
	// AuthLimiter applies to login, register and refresh.
	AuthLimiter *middleware.RateLimiter

	IdempotencyCache cache.Cache
	IdempotencyTTL   time.Duration

	// ServiceName enables OpenTelemetry HTTP spans when set.
	ServiceName string
	WebSocket   http.HandlerFunc
}

// NewRouter builds the full HTTP handler: middleware chain, health probes,
// websocket endpoint and the /api/v1 routes.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(CORS(cfg.CORSOrigin))
	r.Use(SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.ServiceName != "" {
		r.Use(sxotel.HTTPMiddleware(cfg.ServiceName))
	}
	r.Use(middleware.Auth(cfg.Validator, cfg.AuthEnabled, h.Cookies.AccessName))

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	// Outside the request timeout: the connection is long-lived.
	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket)
	}

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler)
		}
		if cfg.IdempotencyCache != nil {
			r.Use(middleware.Idempotency(cfg.IdempotencyCache, cfg.IdempotencyTTL))
		}
		MountRoutes(r, h, cfg.AuthLimiter)
	})

	return r
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, authLimiter *middleware.RateLimiter) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": "1.0.0"})
		})

		// Auth
		r.Group(func(r chi.Router) {
			if authLimiter != nil {
				r.Use(authLimiter.Handler)
			}
			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
			r.Post("/auth/refresh", h.Refresh)
		})
		r.Post("/auth/logout", h.Logout)
		r.Post("/auth/change-password", h.ChangePassword)
		r.Get("/auth/me", h.Me)
		r.Put("/auth/me", h.UpdateMe)

		// Users
		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}", h.GetUser)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(user.RoleAdmin))
			r.Post("/users", h.CreateUser)
			r.Put("/users/{id}", h.UpdateUser)
			r.Delete("/users/{id}", h.DeleteUser)
		})

		// Projects
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)
		r.Get("/projects/{id}", h.GetProject)
		r.Put("/projects/{id}", h.UpdateProject)
		r.Delete("/projects/{id}", h.DeleteProject)
		r.Get("/projects/{id}/stats", h.ProjectStats)
		r.Get("/projects/{id}/velocity", h.ProjectVelocity)

		// Members (nested under projects)
		r.Get("/projects/{id}/members", h.ListMembers)
		r.Post("/projects/{id}/members", h.AddMember)
		r.Put("/projects/{id}/members/{userID}", h.UpdateMember)
		r.Delete("/projects/{id}/members/{userID}", h.RemoveMember)

		// Sprints (nested under projects)
		r.Get("/projects/{id}/sprints", h.ListSprints)
		r.Post("/projects/{id}/sprints", h.CreateSprint)

		// Sprints (direct access)
		r.Get("/sprints/{id}", h.GetSprint)
		r.Put("/sprints/{id}", h.UpdateSprint)
		r.Delete("/sprints/{id}", h.DeleteSprint)
		r.Post("/sprints/{id}/start", h.StartSprint)
		r.Post("/sprints/{id}/complete", h.CompleteSprint)
		r.Post("/sprints/{id}/cancel", h.CancelSprint)
		r.Get("/sprints/{id}/backlogs", h.SprintBacklog)
		r.Post("/sprints/{id}/backlogs/{backlogID}", h.AddSprintItem)
		r.Delete("/sprints/{id}/backlogs/{backlogID}", h.RemoveSprintItem)
		r.Get("/sprints/{id}/tasks", h.SprintTasks)
		r.Get("/sprints/{id}/stats", h.SprintStats)
		r.Get("/sprints/{id}/burndown", h.SprintBurndown)
		r.Get("/sprints/{id}/trend", h.SprintTrend)
		r.Post("/sprints/{id}/burndown/snapshot", h.SprintSnapshot)
		r.Post("/sprints/{id}/velocity/recalculate", h.RecalculateVelocity)

		// Backlogs (nested under projects)
		r.Get("/projects/{id}/backlogs", h.ListBacklogs)
		r.Post("/projects/{id}/backlogs", h.CreateBacklog)
		r.Get("/projects/{id}/backlogs/tree", h.BacklogTree)
		r.Get("/projects/{id}/backlogs/stats", h.BacklogStats)
		r.With(middleware.RequireRole(user.RoleAdmin)).Post("/projects/{id}/backlogs/rebuild-hierarchy", h.RebuildHierarchy)

		// Backlogs (direct access)
		r.Get("/backlogs/{id}", h.GetBacklog)
		r.Put("/backlogs/{id}", h.UpdateBacklog)
		r.Delete("/backlogs/{id}", h.DeleteBacklog)
		r.Get("/backlogs/{id}/children", h.BacklogChildren)
		r.Get("/backlogs/{id}/ancestors", h.BacklogAncestors)
		r.Get("/backlogs/{id}/descendants", h.BacklogDescendants)
		r.Get("/backlogs/{id}/tasks", h.BacklogTasks)

		// Acceptance criteria
		r.Get("/backlogs/{id}/criteria", h.ListCriteria)
		r.Post("/backlogs/{id}/criteria", h.CreateCriteria)
		r.Get("/criteria/{id}", h.GetCriteria)
		r.Put("/criteria/{id}", h.UpdateCriteria)
		r.Delete("/criteria/{id}", h.DeleteCriteria)

		// Tasks
		r.Get("/projects/{id}/tasks", h.ListTasks)
		r.Post("/projects/{id}/tasks", h.CreateTask)
		r.Get("/projects/{id}/tasks/stats", h.TaskStats)
		r.Get("/tasks/{id}", h.GetTask)
		r.Put("/tasks/{id}", h.UpdateTask)
		r.Delete("/tasks/{id}", h.DeleteTask)
		r.Post("/tasks/{id}/assign", h.AssignTask)
		r.Post("/tasks/{id}/unassign", h.UnassignTask)
		r.Post("/tasks/{id}/tags/{tagID}", h.TagTask)
		r.Delete("/tasks/{id}/tags/{tagID}", h.UntagTask)

		// Meetings
		r.Get("/projects/{id}/meetings", h.ListMeetings)
		r.Post("/projects/{id}/meetings", h.CreateMeeting)
		r.Get("/meetings/{id}", h.GetMeeting)
		r.Put("/meetings/{id}", h.UpdateMeeting)
		r.Delete("/meetings/{id}", h.DeleteMeeting)

		r.Get("/meetings/{id}/agenda", h.ListAgenda)
		r.Post("/meetings/{id}/agenda", h.AddAgendaItem)
		r.Put("/meetings/{id}/agenda/reorder", h.ReorderAgenda)
		r.Get("/agenda-items/{id}", h.GetAgendaItem)
		r.Put("/agenda-items/{id}", h.UpdateAgendaItem)
		r.Delete("/agenda-items/{id}", h.DeleteAgendaItem)

		r.Get("/meetings/{id}/notes", h.ListNotes)
		r.Post("/meetings/{id}/notes", h.AddNote)
		r.Get("/notes/{id}", h.GetNote)
		r.Put("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)

		r.Get("/meetings/{id}/action-items", h.ListActionItems)
		r.Post("/meetings/{id}/action-items", h.AddActionItem)
		r.Get("/action-items/{id}", h.GetActionItem)
		r.Put("/action-items/{id}", h.UpdateActionItem)
		r.Delete("/action-items/{id}", h.DeleteActionItem)

		// Documentation
		r.Get("/projects/{id}/documentation", h.ListDocumentation)
		r.Post("/projects/{id}/documentation", h.CreateDocumentation)
		r.Get("/documentation/{id}", h.GetDocumentation)
		r.Put("/documentation/{id}", h.UpdateDocumentation)
		r.Delete("/documentation/{id}", h.DeleteDocumentation)
		r.Post("/documentation/{id}/authors", h.AddDocAuthors)
		r.Delete("/documentation/{id}/authors", h.RemoveDocAuthors)
		r.Post("/documentation/{id}/tags/{tagID}", h.TagDoc)
		r.Delete("/documentation/{id}/tags/{tagID}", h.UntagDoc)

		// Tags
		r.Get("/tags", h.ListTags)
		r.Post("/tags", h.CreateTag)
		r.Get("/tags/{id}", h.GetTag)
		r.Put("/tags/{id}", h.UpdateTag)
		r.Delete("/tags/{id}", h.DeleteTag)
		r.Get("/tags/{id}/tasks", h.TagTasks)
		r.Get("/tags/{id}/documentation", h.TagDocumentation)

		// Notifications
		r.Get("/notifications", h.ListNotifications)
		r.Post("/notifications", h.CreateNotification)
		r.Get("/notifications/unread-count", h.UnreadCount)
		r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)
		r.Post("/notifications/{id}/dismiss", h.DismissNotification)
		r.Delete("/notifications/{id}", h.DeleteNotification)
	})
}
