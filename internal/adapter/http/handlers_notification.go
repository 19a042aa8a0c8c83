package http

import (
	"net/http"

	"github.com/scrumix/scrumix/internal/domain/notification"
	"github.com/scrumix/scrumix/internal/domain/project"
)

// ListNotifications handles GET /api/v1/notifications
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	list, err := h.Notifications.List(r.Context(), notification.Filter{
		UserID: u.ID,
		Status: notification.Status(r.URL.Query().Get("status")),
		Page:   page,
	})
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeList(w, list)
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.Notifications.UnreadCount(r.Context(), u.ID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
}

// CreateNotification handles POST /api/v1/notifications. Project
// notifications need a managing role in the project; anything else is
// reserved for admins.
func (h *Handlers) CreateNotification(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[notification.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	switch {
	case req.ProjectID != nil && *req.ProjectID != "":
		if !h.authorize(w, r, *req.ProjectID, project.ManagerRoles...) {
			return
		}
	case !u.IsAdmin():
		writeError(w, http.StatusForbidden, "only admins may address notifications outside a project")
		return
	default:
		req.ProjectID = nil
	}
	n, err := h.Notifications.Create(r.Context(), u.ID, &req)
	if err != nil {
		writeDomainError(w, err, "recipient not found")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// MarkNotificationRead handles POST /api/v1/notifications/{id}/read
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.Notifications.MarkRead(r.Context(), urlParam(r, "id"), u.ID); err != nil {
		writeDomainError(w, err, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(notification.StatusRead)})
}

// DismissNotification handles POST /api/v1/notifications/{id}/dismiss
func (h *Handlers) DismissNotification(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.Notifications.Dismiss(r.Context(), urlParam(r, "id"), u.ID); err != nil {
		writeDomainError(w, err, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(notification.StatusDismissed)})
}

// MarkAllNotificationsRead handles POST /api/v1/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.Notifications.MarkAllRead(r.Context(), u.ID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// DeleteNotification handles DELETE /api/v1/notifications/{id}. Only the
// creator or an admin may delete.
func (h *Handlers) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.Notifications.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "notification not found")
		return
	}
	if !u.IsAdmin() && (n.CreatedBy == nil || *n.CreatedBy != u.ID) {
		writeError(w, http.StatusForbidden, "only the creator may delete this notification")
		return
	}
	if err := h.Notifications.Delete(r.Context(), n.ID); err != nil {
		writeDomainError(w, err, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
