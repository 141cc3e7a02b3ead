package handlers

import (
	"net/http"

	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/middleware"
	"github.com/vedran77/taskflow/pkg/validator"
)

type InvitationHandler struct {
	invitationService *service.InvitationService
}

func NewInvitationHandler(invitationService *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

func (h *InvitationHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	var input service.SendInvitationInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateInvitation(input.Email); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	inv, err := h.invitationService.Send(r.Context(), userID, projectID, input)
	if err != nil {
		writeServiceError(w, r, "send invitation", err)
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvitationHandler) ListForProject(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	invitations, err := h.invitationService.ListForProject(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, r, "list project invitations", err)
		return
	}

	writeJSON(w, http.StatusOK, invitations)
}

func (h *InvitationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.invitationService.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "list invitations", err)
		return
	}

	writeJSON(w, http.StatusOK, invitations)
}

func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	invitationID, ok := pathUUID(w, r, "id", "invitation")
	if !ok {
		return
	}

	inv, err := h.invitationService.Accept(r.Context(), userID, invitationID)
	if err != nil {
		writeServiceError(w, r, "accept invitation", err)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

func (h *InvitationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	invitationID, ok := pathUUID(w, r, "id", "invitation")
	if !ok {
		return
	}

	inv, err := h.invitationService.Decline(r.Context(), userID, invitationID)
	if err != nil {
		writeServiceError(w, r, "decline invitation", err)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}
