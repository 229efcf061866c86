package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Foreman/internal/manager"
	"github.com/shaiso/Foreman/internal/scheduling"
	"github.com/shaiso/Foreman/internal/taskstore"
)

// Машиночитаемые коды ошибок API.
const (
	codeBadRequest   = "BAD_REQUEST"
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeInvalidState = "INVALID_STATE"
	codeInternal     = "INTERNAL_ERROR"
)

// Ответы API всегда завёрнуты: данные под "data", ошибки под
// "error" с кодом и сообщением.
type dataEnvelope struct {
	Data any `json:"data"`
}

type listEnvelope struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Success — 200 с данными.
func Success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, dataEnvelope{Data: data})
}

// Created — 201 с созданным ресурсом.
func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, dataEnvelope{Data: data})
}

// List — 200 со списком и общим числом элементов.
func List(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, listEnvelope{Data: data, Total: total})
}

// Error — ответ с ошибкой заданного кода.
func Error(w http.ResponseWriter, status int, code, message string) {
	var env errorEnvelope
	env.Error.Code = code
	env.Error.Message = message
	writeJSON(w, status, env)
}

// BadRequest — 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, codeBadRequest, message)
}

// NotFound — 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, codeNotFound, message)
}

// Conflict — 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, codeConflict, message)
}

// InvalidState — 422: запрос корректен, но состояние ресурса
// не допускает операцию.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, codeInvalidState, message)
}

// InternalError — 500; текст ошибки не раскрывается клиенту.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, codeInternal, "internal server error")
}

// HandleDomainError переводит доменную ошибку в HTTP-ответ.
// Возвращает true, если ошибка была и ответ отправлен.
func HandleDomainError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, taskstore.ErrTaskNotFound),
		errors.Is(err, taskstore.ErrTemplateNotFound),
		errors.Is(err, scheduling.ErrWorkerNotFound):
		NotFound(w, notFoundMsg)
	case errors.Is(err, taskstore.ErrInvalidTransition),
		errors.Is(err, taskstore.ErrExpired),
		errors.Is(err, manager.ErrNotAssignable):
		InvalidState(w, err.Error())
	case errors.Is(err, taskstore.ErrDuplicateSubmission):
		Conflict(w, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}
