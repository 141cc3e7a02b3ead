package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/middleware"
	"github.com/vedran77/taskflow/pkg/validator"
)

type ChannelHandler struct {
	channelService *service.ChannelService
}

func NewChannelHandler(channelService *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{channelService: channelService}
}

type addChannelMemberRequest struct {
	UserID uuid.UUID          `json:"user_id"`
	Role   domain.ChannelRole `json:"role,omitempty"`
}

// Create handles both POST /channels and POST /projects/{id}/channels; the
// path project wins over the body.
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateChannelInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if r.PathValue("id") != "" {
		projectID, ok := pathUUID(w, r, "id", "project")
		if !ok {
			return
		}
		input.ProjectID = &projectID
	}

	if errs := validator.ValidateChannel(input.Name, string(input.Type)); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	ch, err := h.channelService.Create(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, r, "create channel", err)
		return
	}

	writeJSON(w, http.StatusCreated, ch)
}

func (h *ChannelHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	channels, err := h.channelService.ListByProject(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, r, "list channels", err)
		return
	}

	if channels == nil {
		channels = []domain.Channel{}
	}

	writeJSON(w, http.StatusOK, channels)
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID, ok := pathUUID(w, r, "id", "channel")
	if !ok {
		return
	}

	ch, err := h.channelService.Get(r.Context(), userID, channelID)
	if err != nil {
		writeServiceError(w, r, "get channel", err)
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID, ok := pathUUID(w, r, "id", "channel")
	if !ok {
		return
	}

	members, err := h.channelService.ListMembers(r.Context(), userID, channelID)
	if err != nil {
		writeServiceError(w, r, "list channel members", err)
		return
	}

	if members == nil {
		members = []domain.ChannelMember{}
	}

	writeJSON(w, http.StatusOK, members)
}

func (h *ChannelHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID, ok := pathUUID(w, r, "id", "channel")
	if !ok {
		return
	}

	var input addChannelMemberRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER", "user_id is required")
		return
	}

	member, err := h.channelService.AddMember(r.Context(), userID, channelID, input.UserID, input.Role)
	if err != nil {
		writeServiceError(w, r, "add channel member", err)
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

func (h *ChannelHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID, ok := pathUUID(w, r, "id", "channel")
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, r, "uid", "user")
	if !ok {
		return
	}

	if err := h.channelService.RemoveMember(r.Context(), userID, channelID, targetID); err != nil {
		writeServiceError(w, r, "remove channel member", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
