package http

import (
	"net/http"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/task"
)

func (h *Handlers) loadTask(w http.ResponseWriter, r *http.Request) (*task.Task, bool) {
	t, err := h.Tasks.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return nil, false
	}
	if !h.authorize(w, r, t.ProjectID) {
		return nil, false
	}
	return t, true
}

// ListTasks handles GET /api/v1/projects/{id}/tasks
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	tasks, err := h.Tasks.List(r.Context(), task.Filter{
		ProjectID: id,
		BacklogID: q.Get("backlog_id"),
		SprintID:  q.Get("sprint_id"),
		TagID:     q.Get("tag_id"),
		Status:    task.Status(q.Get("status")),
		Search:    q.Get("search"),
		Page:      page,
	})
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeList(w, tasks)
}

// CreateTask handles POST /api/v1/projects/{id}/tasks
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	req, ok := readJSON[task.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if req.BacklogID != "" {
		item, err := h.Backlogs.Get(r.Context(), req.BacklogID)
		if err != nil {
			writeDomainError(w, err, "backlog item not found")
			return
		}
		if item.ProjectID != id {
			writeDomainError(w, domain.Invalid("backlog item belongs to another project"), "")
			return
		}
	}
	t, err := h.Tasks.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "backlog item not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// TaskStats handles GET /api/v1/projects/{id}/tasks/stats
func (h *Handlers) TaskStats(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	st, err := h.Tasks.Stats(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTask handles PUT /api/v1/tasks/{id}
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[task.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Tasks.Update(r.Context(), t.ID, req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	if err := h.Tasks.Delete(r.Context(), t.ID); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignTask handles POST /api/v1/tasks/{id}/assign
func (h *Handlers) AssignTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[task.AssignRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Tasks.Assign(r.Context(), t.ID, req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// UnassignTask handles POST /api/v1/tasks/{id}/unassign
func (h *Handlers) UnassignTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[task.AssignRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Tasks.Unassign(r.Context(), t.ID, req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// TagTask handles POST /api/v1/tasks/{id}/tags/{tagID}
func (h *Handlers) TagTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	updated, err := h.Tasks.Tag(r.Context(), t.ID, urlParam(r, "tagID"))
	if err != nil {
		writeDomainError(w, err, "tag not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// UntagTask handles DELETE /api/v1/tasks/{id}/tags/{tagID}
func (h *Handlers) UntagTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	updated, err := h.Tasks.Untag(r.Context(), t.ID, urlParam(r, "tagID"))
	if err != nil {
		writeDomainError(w, err, "tag not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
