package http

import (
	"net/http"

	"github.com/scrumix/scrumix/internal/domain/documentation"
)

func (h *Handlers) loadDoc(w http.ResponseWriter, r *http.Request) (*documentation.Documentation, bool) {
	d, err := h.Docs.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "documentation not found")
		return nil, false
	}
	if !h.authorize(w, r, d.ProjectID) {
		return nil, false
	}
	return d, true
}

// ListDocumentation handles GET /api/v1/projects/{id}/documentation
func (h *Handlers) ListDocumentation(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	docs, err := h.Docs.List(r.Context(), documentation.Filter{
		ProjectID: id,
		DocType:   documentation.Type(q.Get("doc_type")),
		Search:    q.Get("search"),
		TagID:     q.Get("tag_id"),
		Page:      page,
	})
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeList(w, docs)
}

// CreateDocumentation handles POST /api/v1/projects/{id}/documentation
func (h *Handlers) CreateDocumentation(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	req, ok := readJSON[documentation.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	req.ProjectID = id
	d, err := h.Docs.Create(r.Context(), actorID(r), &req)
	if err != nil {
		writeDomainError(w, err, "author not found")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetDocumentation handles GET /api/v1/documentation/{id}
func (h *Handlers) GetDocumentation(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDoc(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateDocumentation handles PUT /api/v1/documentation/{id}
func (h *Handlers) UpdateDocumentation(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDoc(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[documentation.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Docs.Update(r.Context(), d.ID, req)
	if err != nil {
		writeDomainError(w, err, "documentation not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteDocumentation handles DELETE /api/v1/documentation/{id}
func (h *Handlers) DeleteDocumentation(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDoc(w, r)
	if !ok {
		return
	}
	if err := h.Docs.Delete(r.Context(), d.ID); err != nil {
		writeDomainError(w, err, "documentation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDocAuthors handles POST /api/v1/documentation/{id}/authors
func (h *Handlers) AddDocAuthors(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDoc(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[documentation.AuthorsRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Docs.AddAuthors(r.Context(), d.ID, req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// RemoveDocAuthors handles DELETE /api/v1/documentation/{id}/authors
func (h *Handlers) RemoveDocAuthors(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDoc(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[documentation.AuthorsRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Docs.RemoveAuthors(r.Context(), d.ID, req)
	if err != nil {
		writeDomainError(w, err, "documentation not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// TagDoc handles POST /api/v1/documentation/{id}/tags/{tagID}
func (h *Handlers) TagDoc(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDoc(w, r)
	if !ok {
		return
	}
	updated, err := h.Docs.Tag(r.Context(), d.ID, urlParam(r, "tagID"))
	if err != nil {
		writeDomainError(w, err, "tag not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// UntagDoc handles DELETE /api/v1/documentation/{id}/tags/{tagID}
func (h *Handlers) UntagDoc(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDoc(w, r)
	if !ok {
		return
	}
	updated, err := h.Docs.Untag(r.Context(), d.ID, urlParam(r, "tagID"))
	if err != nil {
		writeDomainError(w, err, "tag not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
