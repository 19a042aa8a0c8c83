package http

import (
	"net/http"

	"github.com/scrumix/scrumix/internal/domain/project"
)

// ListProjects handles GET /api/v1/projects
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	projects, err := h.Projects.List(r.Context(), u, project.Filter{
		Search: q.Get("search"),
		Status: project.Status(q.Get("status")),
		Page:   page,
	})
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeList(w, projects)
}

// CreateProject handles POST /api/v1/projects
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[project.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	p, err := h.Projects.Create(r.Context(), u.ID, &req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/v1/projects/{id}
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	p, err := h.Projects.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject handles PUT /api/v1/projects/{id}
func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id, project.ManagerRoles...) {
		return
	}
	req, ok := readJSON[project.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	p, err := h.Projects.Update(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/v1/projects/{id}
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id, project.RoleOwner) {
		return
	}
	if err := h.Projects.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProjectStats handles GET /api/v1/projects/{id}/stats
func (h *Handlers) ProjectStats(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	st, err := h.Projects.Stats(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListMembers handles GET /api/v1/projects/{id}/members
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	members, err := h.Projects.ListMembers(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeList(w, members)
}

// AddMember handles POST /api/v1/projects/{id}/members
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	id := urlParam(r, "id")
	if !h.authorize(w, r, id, project.RoleOwner) {
		return
	}
	req, ok := readJSON[project.AddMemberRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	m, err := h.Projects.AddMember(r.Context(), u.ID, id, req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// UpdateMember handles PUT /api/v1/projects/{id}/members/{userID}
func (h *Handlers) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id, project.RoleOwner) {
		return
	}
	req, ok := readJSON[project.UpdateMemberRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	m, err := h.Projects.UpdateMemberRole(r.Context(), id, urlParam(r, "userID"), req.Role)
	if err != nil {
		writeDomainError(w, err, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// RemoveMember handles DELETE /api/v1/projects/{id}/members/{userID}
func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id, project.RoleOwner) {
		return
	}
	if err := h.Projects.RemoveMember(r.Context(), id, urlParam(r, "userID")); err != nil {
		writeDomainError(w, err, "member not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
