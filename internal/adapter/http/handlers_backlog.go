package http

import (
	"context"
	"net/http"

	"github.com/scrumix/scrumix/internal/domain/backlog"
	"github.com/scrumix/scrumix/internal/domain/task"
)

func (h *Handlers) loadBacklog(w http.ResponseWriter, r *http.Request, id string) (*backlog.Item, bool) {
	item, err := h.Backlogs.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "backlog item not found")
		return nil, false
	}
	if !h.authorize(w, r, item.ProjectID) {
		return nil, false
	}
	return item, true
}

// ListBacklogs handles GET /api/v1/projects/{id}/backlogs
func (h *Handlers) ListBacklogs(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	rootsOnly, err := boolParam(r, "roots_only")
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	q := r.URL.Query()
	items, err := h.Backlogs.List(r.Context(), backlog.Filter{
		ProjectID: id,
		Status:    backlog.Status(q.Get("status")),
		Priority:  backlog.Priority(q.Get("priority")),
		ItemType:  backlog.ItemType(q.Get("item_type")),
		SprintID:  q.Get("sprint_id"),
		Search:    q.Get("search"),
		RootsOnly: rootsOnly,
		Page:      page,
	})
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeList(w, items)
}

// BacklogTree handles GET /api/v1/projects/{id}/backlogs/tree
func (h *Handlers) BacklogTree(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	tree, err := h.Backlogs.Tree(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeList(w, tree)
}

// BacklogStats handles GET /api/v1/projects/{id}/backlogs/stats
func (h *Handlers) BacklogStats(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	st, err := h.Backlogs.Stats(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// RebuildHierarchy handles POST /api/v1/projects/{id}/backlogs/rebuild-hierarchy.
// Mounted behind the admin role check.
func (h *Handlers) RebuildHierarchy(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	n, err := h.Backlogs.RebuildHierarchy(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// CreateBacklog handles POST /api/v1/projects/{id}/backlogs
func (h *Handlers) CreateBacklog(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	req, ok := readJSON[backlog.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	req.ProjectID = id
	item, err := h.Backlogs.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "parent or sprint not found")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// GetBacklog handles GET /api/v1/backlogs/{id}
func (h *Handlers) GetBacklog(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadBacklog(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// UpdateBacklog handles PUT /api/v1/backlogs/{id}
func (h *Handlers) UpdateBacklog(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadBacklog(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	req, ok := readJSON[backlog.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Backlogs.Update(r.Context(), item.ID, req)
	if err != nil {
		writeDomainError(w, err, "backlog item not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteBacklog handles DELETE /api/v1/backlogs/{id}
func (h *Handlers) DeleteBacklog(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadBacklog(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	if err := h.Backlogs.Delete(r.Context(), item.ID); err != nil {
		writeDomainError(w, err, "backlog item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) relatives(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) ([]backlog.Item, error)) {
	item, ok := h.loadBacklog(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	items, err := fn(r.Context(), item.ID)
	if err != nil {
		writeDomainError(w, err, "backlog item not found")
		return
	}
	writeList(w, items)
}

// BacklogChildren handles GET /api/v1/backlogs/{id}/children
func (h *Handlers) BacklogChildren(w http.ResponseWriter, r *http.Request) {
	h.relatives(w, r, h.Backlogs.Children)
}

// BacklogAncestors handles GET /api/v1/backlogs/{id}/ancestors
func (h *Handlers) BacklogAncestors(w http.ResponseWriter, r *http.Request) {
	h.relatives(w, r, h.Backlogs.Ancestors)
}

// BacklogDescendants handles GET /api/v1/backlogs/{id}/descendants
func (h *Handlers) BacklogDescendants(w http.ResponseWriter, r *http.Request) {
	h.relatives(w, r, h.Backlogs.Descendants)
}

// BacklogTasks handles GET /api/v1/backlogs/{id}/tasks
func (h *Handlers) BacklogTasks(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadBacklog(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	tasks, err := h.Tasks.List(r.Context(), task.Filter{
		ProjectID: item.ProjectID,
		BacklogID: item.ID,
		Status:    task.Status(r.URL.Query().Get("status")),
		Page:      page,
	})
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeList(w, tasks)
}

// ---------------------------------------------------------------------------
// Acceptance criteria
// ---------------------------------------------------------------------------

func (h *Handlers) loadCriteria(w http.ResponseWriter, r *http.Request) (*backlog.Criteria, bool) {
	c, err := h.Backlogs.GetCriteria(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "acceptance criteria not found")
		return nil, false
	}
	if _, ok := h.loadBacklog(w, r, c.BacklogID); !ok {
		return nil, false
	}
	return c, true
}

// ListCriteria handles GET /api/v1/backlogs/{id}/criteria
func (h *Handlers) ListCriteria(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadBacklog(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	list, err := h.Backlogs.ListCriteria(r.Context(), item.ID)
	if err != nil {
		writeDomainError(w, err, "backlog item not found")
		return
	}
	writeList(w, list)
}

// CreateCriteria handles POST /api/v1/backlogs/{id}/criteria
func (h *Handlers) CreateCriteria(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadBacklog(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	req, ok := readJSON[backlog.CriteriaRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	c, err := h.Backlogs.CreateCriteria(r.Context(), item.ID, req)
	if err != nil {
		writeDomainError(w, err, "backlog item not found")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetCriteria handles GET /api/v1/criteria/{id}
func (h *Handlers) GetCriteria(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCriteria(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCriteria handles PUT /api/v1/criteria/{id}
func (h *Handlers) UpdateCriteria(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCriteria(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[backlog.CriteriaRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Backlogs.UpdateCriteria(r.Context(), c.ID, req)
	if err != nil {
		writeDomainError(w, err, "acceptance criteria not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteCriteria handles DELETE /api/v1/criteria/{id}
func (h *Handlers) DeleteCriteria(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCriteria(w, r)
	if !ok {
		return
	}
	if err := h.Backlogs.DeleteCriteria(r.Context(), c.ID); err != nil {
		writeDomainError(w, err, "acceptance criteria not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
