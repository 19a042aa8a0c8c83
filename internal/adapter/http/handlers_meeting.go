package http

import (
	"net/http"
	"time"

	"github.com/scrumix/scrumix/internal/domain/meeting"
)

func (h *Handlers) loadMeeting(w http.ResponseWriter, r *http.Request, id string) (*meeting.Meeting, bool) {
	m, err := h.Meetings.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "meeting not found")
		return nil, false
	}
	if !h.authorize(w, r, m.ProjectID) {
		return nil, false
	}
	return m, true
}

// ListMeetings handles GET /api/v1/projects/{id}/meetings
func (h *Handlers) ListMeetings(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	upcoming, err := boolParam(r, "upcoming")
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	q := r.URL.Query()
	f := meeting.Filter{
		ProjectID:   id,
		SprintID:    q.Get("sprint_id"),
		MeetingType: meeting.Type(q.Get("meeting_type")),
		Page:        page,
	}
	if upcoming {
		now := time.Now().UTC()
		f.UpcomingFrom = &now
	}
	meetings, err := h.Meetings.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeList(w, meetings)
}

// CreateMeeting handles POST /api/v1/projects/{id}/meetings
func (h *Handlers) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}
	req, ok := readJSON[meeting.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	req.ProjectID = id
	m, err := h.Meetings.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "sprint not found")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// GetMeeting handles GET /api/v1/meetings/{id}
func (h *Handlers) GetMeeting(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// UpdateMeeting handles PUT /api/v1/meetings/{id}
func (h *Handlers) UpdateMeeting(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	req, ok := readJSON[meeting.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Meetings.Update(r.Context(), m.ID, req)
	if err != nil {
		writeDomainError(w, err, "meeting not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteMeeting handles DELETE /api/v1/meetings/{id}
func (h *Handlers) DeleteMeeting(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	if err := h.Meetings.Delete(r.Context(), m.ID); err != nil {
		writeDomainError(w, err, "meeting not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Agenda
// ---------------------------------------------------------------------------

func (h *Handlers) loadAgendaItem(w http.ResponseWriter, r *http.Request) (*meeting.AgendaItem, bool) {
	a, err := h.Meetings.GetAgendaItem(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agenda item not found")
		return nil, false
	}
	if _, ok := h.loadMeeting(w, r, a.MeetingID); !ok {
		return nil, false
	}
	return a, true
}

// ListAgenda handles GET /api/v1/meetings/{id}/agenda
func (h *Handlers) ListAgenda(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	items, err := h.Meetings.ListAgenda(r.Context(), m.ID)
	if err != nil {
		writeDomainError(w, err, "meeting not found")
		return
	}
	writeList(w, items)
}

// AddAgendaItem handles POST /api/v1/meetings/{id}/agenda
func (h *Handlers) AddAgendaItem(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	req, ok := readJSON[meeting.AgendaRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	a, err := h.Meetings.AddAgendaItem(r.Context(), m.ID, req)
	if err != nil {
		writeDomainError(w, err, "meeting not found")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ReorderAgenda handles PUT /api/v1/meetings/{id}/agenda/reorder
func (h *Handlers) ReorderAgenda(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	req, ok := readJSON[meeting.ReorderRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	items, err := h.Meetings.ReorderAgenda(r.Context(), m.ID, req)
	if err != nil {
		writeDomainError(w, err, "agenda item not found")
		return
	}
	writeList(w, items)
}

// GetAgendaItem handles GET /api/v1/agenda-items/{id}
func (h *Handlers) GetAgendaItem(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAgendaItem(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAgendaItem handles PUT /api/v1/agenda-items/{id}
func (h *Handlers) UpdateAgendaItem(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAgendaItem(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[meeting.AgendaRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Meetings.UpdateAgendaItem(r.Context(), a.ID, req)
	if err != nil {
		writeDomainError(w, err, "agenda item not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAgendaItem handles DELETE /api/v1/agenda-items/{id}
func (h *Handlers) DeleteAgendaItem(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAgendaItem(w, r)
	if !ok {
		return
	}
	if err := h.Meetings.DeleteAgendaItem(r.Context(), a.ID); err != nil {
		writeDomainError(w, err, "agenda item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Notes
// ---------------------------------------------------------------------------

func (h *Handlers) loadNote(w http.ResponseWriter, r *http.Request) (*meeting.Note, bool) {
	n, err := h.Meetings.GetNote(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "note not found")
		return nil, false
	}
	if _, ok := h.loadMeeting(w, r, n.MeetingID); !ok {
		return nil, false
	}
	return n, true
}

// ListNotes handles GET /api/v1/meetings/{id}/notes
func (h *Handlers) ListNotes(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	notes, err := h.Meetings.ListNotes(r.Context(), m.ID)
	if err != nil {
		writeDomainError(w, err, "meeting not found")
		return
	}
	writeList(w, notes)
}

// AddNote handles POST /api/v1/meetings/{id}/notes
func (h *Handlers) AddNote(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	req, ok := readJSON[meeting.NoteRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	n, err := h.Meetings.AddNote(r.Context(), m.ID, actorID(r), req)
	if err != nil {
		writeDomainError(w, err, "meeting not found")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// GetNote handles GET /api/v1/notes/{id}
func (h *Handlers) GetNote(w http.ResponseWriter, r *http.Request) {
	n, ok := h.loadNote(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// UpdateNote handles PUT /api/v1/notes/{id}
func (h *Handlers) UpdateNote(w http.ResponseWriter, r *http.Request) {
	n, ok := h.loadNote(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[meeting.NoteRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Meetings.UpdateNote(r.Context(), n.ID, req)
	if err != nil {
		writeDomainError(w, err, "note not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteNote handles DELETE /api/v1/notes/{id}
func (h *Handlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	n, ok := h.loadNote(w, r)
	if !ok {
		return
	}
	if err := h.Meetings.DeleteNote(r.Context(), n.ID); err != nil {
		writeDomainError(w, err, "note not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Action items
// ---------------------------------------------------------------------------

func (h *Handlers) loadActionItem(w http.ResponseWriter, r *http.Request) (*meeting.ActionItem, bool) {
	a, err := h.Meetings.GetActionItem(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "action item not found")
		return nil, false
	}
	if _, ok := h.loadMeeting(w, r, a.MeetingID); !ok {
		return nil, false
	}
	return a, true
}

// ListActionItems handles GET /api/v1/meetings/{id}/action-items
func (h *Handlers) ListActionItems(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	items, err := h.Meetings.ListActionItems(r.Context(), m.ID)
	if err != nil {
		writeDomainError(w, err, "meeting not found")
		return
	}
	writeList(w, items)
}

// AddActionItem handles POST /api/v1/meetings/{id}/action-items
func (h *Handlers) AddActionItem(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMeeting(w, r, urlParam(r, "id"))
	if !ok {
		return
	}
	req, ok := readJSON[meeting.ActionItemRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	a, err := h.Meetings.AddActionItem(r.Context(), m.ID, req)
	if err != nil {
		writeDomainError(w, err, "meeting not found")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GetActionItem handles GET /api/v1/action-items/{id}
func (h *Handlers) GetActionItem(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadActionItem(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateActionItem handles PUT /api/v1/action-items/{id}
func (h *Handlers) UpdateActionItem(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadActionItem(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[meeting.ActionItemRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	updated, err := h.Meetings.UpdateActionItem(r.Context(), a.ID, req)
	if err != nil {
		writeDomainError(w, err, "action item not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteActionItem handles DELETE /api/v1/action-items/{id}
func (h *Handlers) DeleteActionItem(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadActionItem(w, r)
	if !ok {
		return
	}
	if err := h.Meetings.DeleteActionItem(r.Context(), a.ID); err != nil {
		writeDomainError(w, err, "action item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
