package http

import (
	"net/http"
	"strconv"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/sprint"
	"github.com/scrumix/scrumix/internal/domain/task"
	"github.com/scrumix/scrumix/internal/middleware"
)

// loadSprint fetches the sprint named by the {id} param and checks the
// caller belongs to its project.
func (h *Handlers) loadSprint(w http.ResponseWriter, r *http.Request) (*sprint.Sprint, bool) {
	sp, err := h.Sprints.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return nil, false
	}
	if !h.authorize(w, r, sp.ProjectID) {
		return nil, false
	}
	return sp, true
}

func actorID(r *http.Request) string {
	if u := middleware.UserFromContext(r.Context()); u != nil {
		return u.ID
	}
	return ""
}

// ListSprints handles GET /api/v1/projects/{id}/sprints
func (h *Handlers) ListSprints(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	sprints, err := h.Sprints.List(r.Context(), sprint.Filter{
		ProjectID: id,
		Status:    sprint.Status(r.URL.Query().Get("status")),
		Page:      page,
	})
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeList(w, sprints)
}

// CreateSprint handles POST /api/v1/projects/{id}/sprints
func (h *Handlers) CreateSprint(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	req, ok := readJSON[sprint.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	req.ProjectID = id
	sp, err := h.Sprints.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// GetSprint handles GET /api/v1/sprints/{id}
func (h *Handlers) GetSprint(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// UpdateSprint handles PUT /api/v1/sprints/{id}
func (h *Handlers) UpdateSprint(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[sprint.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Sprints.Update(r.Context(), sp.ID, req)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteSprint handles DELETE /api/v1/sprints/{id}
func (h *Handlers) DeleteSprint(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	if err := h.Sprints.Delete(r.Context(), sp.ID); err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartSprint handles POST /api/v1/sprints/{id}/start
func (h *Handlers) StartSprint(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	started, err := h.Sprints.Start(r.Context(), actorID(r), sp.ID)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, started)
}

// CompleteSprint handles POST /api/v1/sprints/{id}/complete
func (h *Handlers) CompleteSprint(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	done, err := h.Sprints.Complete(r.Context(), actorID(r), sp.ID)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, done)
}

// CancelSprint handles POST /api/v1/sprints/{id}/cancel
func (h *Handlers) CancelSprint(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	cancelled, err := h.Sprints.Cancel(r.Context(), sp.ID)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

// SprintBacklog handles GET /api/v1/sprints/{id}/backlogs
func (h *Handlers) SprintBacklog(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	items, err := h.Sprints.Items(r.Context(), sp.ID, page)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeList(w, items)
}

// AddSprintItem handles POST /api/v1/sprints/{id}/backlogs/{backlogID}
func (h *Handlers) AddSprintItem(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	item, err := h.Sprints.AddItem(r.Context(), sp.ID, urlParam(r, "backlogID"))
	if err != nil {
		writeDomainError(w, err, "backlog item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// RemoveSprintItem handles DELETE /api/v1/sprints/{id}/backlogs/{backlogID}
func (h *Handlers) RemoveSprintItem(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	item, err := h.Sprints.RemoveItem(r.Context(), sp.ID, urlParam(r, "backlogID"))
	if err != nil {
		writeDomainError(w, err, "backlog item not in sprint")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// SprintTasks handles GET /api/v1/sprints/{id}/tasks
func (h *Handlers) SprintTasks(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	tasks, err := h.Tasks.List(r.Context(), task.Filter{
		ProjectID: sp.ProjectID,
		SprintID:  sp.ID,
		Status:    task.Status(r.URL.Query().Get("status")),
		Page:      page,
	})
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeList(w, tasks)
}

// SprintStats handles GET /api/v1/sprints/{id}/stats
func (h *Handlers) SprintStats(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	st, err := h.Sprints.Stats(r.Context(), sp.ID)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ---------------------------------------------------------------------------
// Velocity and burndown
// ---------------------------------------------------------------------------

// SprintBurndown handles GET /api/v1/sprints/{id}/burndown
func (h *Handlers) SprintBurndown(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	chart, err := h.Velocity.Chart(r.Context(), sp.ID)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

// SprintTrend handles GET /api/v1/sprints/{id}/trend
func (h *Handlers) SprintTrend(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	rep, err := h.Velocity.Trend(r.Context(), sp.ID)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// SprintSnapshot handles POST /api/v1/sprints/{id}/burndown/snapshot
func (h *Handlers) SprintSnapshot(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	snap, err := h.Velocity.Snapshot(r.Context(), sp.ID)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RecalculateVelocity handles POST /api/v1/sprints/{id}/velocity/recalculate
func (h *Handlers) RecalculateVelocity(w http.ResponseWriter, r *http.Request) {
	sp, ok := h.loadSprint(w, r)
	if !ok {
		return
	}
	updated, err := h.Velocity.Recalculate(r.Context(), sp.ID)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ProjectVelocity handles GET /api/v1/projects/{id}/velocity
func (h *Handlers) ProjectVelocity(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	window := 0
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeDomainError(w, domain.Invalid("window must be an integer"), "")
			return
		}
		window = n
	}
	m, err := h.Velocity.Metrics(r.Context(), id, window)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}
