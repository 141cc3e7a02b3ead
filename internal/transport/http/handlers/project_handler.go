package handlers

import (
	"net/http"

	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/middleware"
	"github.com/vedran77/taskflow/pkg/validator"
)

type ProjectHandler struct {
	projectService *service.ProjectService
}

func NewProjectHandler(projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

type updateMemberRoleRequest struct {
	Role domain.ProjectRole `json:"role"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateProjectInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateProject(input.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	project, err := h.projectService.Create(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, r, "create project", err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectService.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "list projects", err)
		return
	}

	if projects == nil {
		projects = []domain.Project{}
	}

	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.projectService.Get(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, r, "get project", err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	var input service.UpdateProjectInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if input.Name != nil {
		if errs := validator.ValidateProject(*input.Name); errs.HasErrors() {
			writeValidationErrors(w, errs)
			return
		}
	}

	project, err := h.projectService.Update(r.Context(), userID, projectID, input)
	if err != nil {
		writeServiceError(w, r, "update project", err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	if err := h.projectService.Delete(r.Context(), userID, projectID); err != nil {
		writeServiceError(w, r, "delete project", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	members, err := h.projectService.ListMembers(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, r, "list project members", err)
		return
	}

	writeJSON(w, http.StatusOK, members)
}

func (h *ProjectHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, r, "uid", "user")
	if !ok {
		return
	}

	var input updateMemberRoleRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	member, err := h.projectService.UpdateMemberRole(r.Context(), userID, projectID, targetID, input.Role)
	if err != nil {
		writeServiceError(w, r, "update member role", err)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, r, "uid", "user")
	if !ok {
		return
	}

	if err := h.projectService.RemoveMember(r.Context(), userID, projectID, targetID); err != nil {
		writeServiceError(w, r, "remove project member", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
