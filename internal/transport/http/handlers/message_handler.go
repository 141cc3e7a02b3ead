package handlers

import (
	"net/http"
	"strings"

	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/middleware"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID, ok := pathUUID(w, r, "id", "channel")
	if !ok {
		return
	}

	var input service.SendMessageInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if strings.TrimSpace(input.Content) == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CONTENT", "Message content is required")
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, channelID, input)
	if err != nil {
		writeServiceError(w, r, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID, ok := pathUUID(w, r, "id", "channel")
	if !ok {
		return
	}

	limit, offset := pagination(r)
	page, err := h.messageService.List(r.Context(), userID, channelID, limit, offset)
	if err != nil {
		writeServiceError(w, r, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathUUID(w, r, "id", "message")
	if !ok {
		return
	}

	var input service.EditMessageInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if strings.TrimSpace(input.Content) == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CONTENT", "Message content is required")
		return
	}

	msg, err := h.messageService.Edit(r.Context(), userID, messageID, input)
	if err != nil {
		writeServiceError(w, r, "edit message", err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathUUID(w, r, "id", "message")
	if !ok {
		return
	}

	if err := h.messageService.Delete(r.Context(), userID, messageID); err != nil {
		writeServiceError(w, r, "delete message", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
