package handlers

import (
	"net/http"

	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/middleware"
	"github.com/vedran77/taskflow/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateRegister(input.Email, input.Name, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.Register(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateLogin(input.Email, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.Login(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, "login", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input refreshRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TOKEN", "refresh_token is required")
		return
	}

	resp, err := h.authService.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		writeServiceError(w, r, "refresh", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input refreshRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.authService.Logout(r.Context(), userID, input.RefreshToken); err != nil {
		writeServiceError(w, r, "logout", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "me", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
