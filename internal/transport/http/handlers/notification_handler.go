package handlers

import (
	"net/http"

	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/middleware"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	unreadOnly := r.URL.Query().Get("unread_only") == "true"
	limit, offset := pagination(r)

	notifications, err := h.notificationService.List(r.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		writeServiceError(w, r, "list notifications", err)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	notificationID, ok := pathUUID(w, r, "id", "notification")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), userID, notificationID); err != nil {
		writeServiceError(w, r, "mark notification read", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notificationService.MarkAllRead(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "mark all notifications read", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
