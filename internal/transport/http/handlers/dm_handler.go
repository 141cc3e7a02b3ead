package handlers

import (
	"net/http"

	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/middleware"
)

// DMHandler serves two-person PRIVATE_DM channels. Messages in them go
// through MessageHandler like any other channel.
type DMHandler struct {
	channelService *service.ChannelService
}

func NewDMHandler(channelService *service.ChannelService) *DMHandler {
	return &DMHandler{channelService: channelService}
}

func (h *DMHandler) Open(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID, ok := pathUUID(w, r, "uid", "user")
	if !ok {
		return
	}

	ch, err := h.channelService.OpenDirect(r.Context(), userID, otherID)
	if err != nil {
		writeServiceError(w, r, "open dm", err)
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (h *DMHandler) List(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channelService.ListDirect(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "list dms", err)
		return
	}

	if channels == nil {
		channels = []domain.Channel{}
	}

	writeJSON(w, http.StatusOK, channels)
}
