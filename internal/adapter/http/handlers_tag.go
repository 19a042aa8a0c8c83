package http

import (
	"net/http"

	"github.com/scrumix/scrumix/internal/domain/documentation"
	"github.com/scrumix/scrumix/internal/domain/tag"
	"github.com/scrumix/scrumix/internal/domain/task"
)

// ListTags handles GET /api/v1/tags
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	tags, err := h.Tags.List(r.Context(), r.URL.Query().Get("search"), page)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeList(w, tags)
}

// CreateTag handles POST /api/v1/tags
func (h *Handlers) CreateTag(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tag.Request](w, r, h.bodyLimit())
	if !ok {
		return
	}
	t, err := h.Tags.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTag handles GET /api/v1/tags/{id}
func (h *Handlers) GetTag(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tags.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "tag not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTag handles PUT /api/v1/tags/{id}
func (h *Handlers) UpdateTag(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tag.Request](w, r, h.bodyLimit())
	if !ok {
		return
	}
	t, err := h.Tags.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "tag not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTag handles DELETE /api/v1/tags/{id}
func (h *Handlers) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.Tags.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "tag not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TagTasks handles GET /api/v1/tags/{id}/tasks. Only tasks of projects the
// caller belongs to are returned.
func (h *Handlers) TagTasks(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	tasks, err := h.Tags.Tasks(r.Context(), urlParam(r, "id"), page)
	if err != nil {
		writeDomainError(w, err, "tag not found")
		return
	}
	visible, err := h.visibleProjects(r.Context(), u)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if visible != nil {
		kept := make([]task.Task, 0, len(tasks))
		for i := range tasks {
			if visible[tasks[i].ProjectID] {
				kept = append(kept, tasks[i])
			}
		}
		tasks = kept
	}
	writeList(w, tasks)
}

// TagDocumentation handles GET /api/v1/tags/{id}/documentation
func (h *Handlers) TagDocumentation(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	docs, err := h.Tags.Documentation(r.Context(), urlParam(r, "id"), page)
	if err != nil {
		writeDomainError(w, err, "tag not found")
		return
	}
	visible, err := h.visibleProjects(r.Context(), u)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if visible != nil {
		kept := make([]documentation.Documentation, 0, len(docs))
		for i := range docs {
			if visible[docs[i].ProjectID] {
				kept = append(kept, docs[i])
			}
		}
		docs = kept
	}
	writeList(w, docs)
}
