package handlers

import (
	"net/http"

	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/middleware"
	"github.com/vedran77/taskflow/pkg/validator"
)

type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

type assignRequest struct {
	Assignments []service.AssignmentInput `json:"assignments"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	var input service.CreateTaskInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateTask(input.Title); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	task, err := h.taskService.Create(r.Context(), userID, projectID, input)
	if err != nil {
		writeServiceError(w, r, "create task", err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	var status *domain.TaskStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.TaskStatus(s)
		if !st.IsValid() {
			writeError(w, http.StatusBadRequest, "INVALID_STATUS", "status must be TODO, IN_PROGRESS or DONE")
			return
		}
		status = &st
	}

	tasks, err := h.taskService.ListByProject(r.Context(), userID, projectID, status)
	if err != nil {
		writeServiceError(w, r, "list tasks", err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "list my tasks", err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	taskID, ok := pathUUID(w, r, "id", "task")
	if !ok {
		return
	}

	task, err := h.taskService.Get(r.Context(), userID, taskID)
	if err != nil {
		writeServiceError(w, r, "get task", err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	taskID, ok := pathUUID(w, r, "id", "task")
	if !ok {
		return
	}

	var input service.UpdateTaskInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if input.Title != nil {
		if errs := validator.ValidateTask(*input.Title); errs.HasErrors() {
			writeValidationErrors(w, errs)
			return
		}
	}

	task, err := h.taskService.Update(r.Context(), userID, taskID, input)
	if err != nil {
		writeServiceError(w, r, "update task", err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	taskID, ok := pathUUID(w, r, "id", "task")
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), userID, taskID); err != nil {
		writeServiceError(w, r, "delete task", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	taskID, ok := pathUUID(w, r, "id", "task")
	if !ok {
		return
	}

	var input assignRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if len(input.Assignments) == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_ASSIGNMENTS", "At least one assignment is required")
		return
	}

	task, err := h.taskService.Assign(r.Context(), userID, taskID, input.Assignments)
	if err != nil {
		writeServiceError(w, r, "assign task", err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	taskID, ok := pathUUID(w, r, "id", "task")
	if !ok {
		return
	}
	assigneeID, ok := pathUUID(w, r, "uid", "user")
	if !ok {
		return
	}

	if err := h.taskService.Unassign(r.Context(), userID, taskID, assigneeID); err != nil {
		writeServiceError(w, r, "unassign task", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
