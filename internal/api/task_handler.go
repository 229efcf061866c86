package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ListTasks возвращает активные tasks.
// GET /api/v1/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tasks, err := h.manager.Tasks().ListActive(r.Context(), offset, limit)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t, false)
	}

	List(w, result, len(result))
}

// CreateTask создаёт новый task и сразу пробует его назначить.
// POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Title == "" {
		BadRequest(w, "title is required")
		return
	}
	if req.TemplateID == "" {
		BadRequest(w, "template_id is required")
		return
	}
	if req.TimeLimitSeconds <= 0 {
		BadRequest(w, "time_limit_seconds must be positive")
		return
	}

	task, err := h.manager.CreateTask(r.Context(), req.Title, req.Reward, req.TimeLimitSeconds, req.TemplateID, req.Data)
	if HandleDomainError(w, h.logger, err, "template not found") {
		return
	}

	Created(w, TaskFromDomain(*task, false))
}

// GetTask возвращает task с полным логом событий.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.manager.Tasks().Get(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, TaskFromDomain(*task, true))
}

// AssignTask вручную запускает назначение task.
// POST /api/v1/tasks/{id}/assign
func (h *Handler) AssignTask(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.AssignTask(r.Context(), r.PathValue("id")); err != nil {
		if HandleDomainError(w, h.logger, err, "task not found") {
			return
		}
	}

	task, err := h.manager.Tasks().Get(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, TaskFromDomain(*task, false))
}
