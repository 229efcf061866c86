package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Foreman/internal/domain"
)

// Task DTOs

// CreateTaskRequest — запрос на создание task.
type CreateTaskRequest struct {
	Title            string         `json:"title"`
	Reward           uint64         `json:"reward"`
	TimeLimitSeconds int            `json:"time_limit_seconds"`
	TemplateID       string         `json:"template_id"`
	Data             map[string]any `json:"data,omitempty"`
}

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID               uuid.UUID          `json:"id"`
	Title            string             `json:"title"`
	Reward           uint64             `json:"reward"`
	TimeLimitSeconds int                `json:"time_limit_seconds"`
	TemplateID       string             `json:"template_id"`
	Status           domain.TaskStatus  `json:"status"`
	AssignedTo       string             `json:"assigned_to,omitempty"`
	Events           []domain.TaskEvent `json:"events,omitempty"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task, withEvents bool) TaskResponse {
	resp := TaskResponse{
		ID:               t.ID,
		Title:            t.Title,
		Reward:           t.Reward,
		TimeLimitSeconds: t.TimeLimitSeconds,
		TemplateID:       t.TemplateID,
		Status:           t.Status(),
		AssignedTo:       t.AssignedTo(),
	}
	if withEvents {
		resp.Events = t.Events
	}
	return resp
}

// Worker DTOs

// WorkerResponse — ответ с записью worker'а.
type WorkerResponse struct {
	PeerID         string    `json:"peer_id"`
	Recipient      string    `json:"recipient"`
	Nonce          uint64    `json:"nonce"`
	TotalTasks     int       `json:"total_tasks"`
	TasksCompleted int       `json:"tasks_completed"`
	TasksRejected  int       `json:"tasks_rejected"`
	Outstanding    int       `json:"outstanding"`
	TotalEarned    uint64    `json:"total_earned"`
	LastPayout     time.Time `json:"last_payout"`
	Banned         bool      `json:"banned"`
}

// WorkerFromDomain конвертирует domain.WorkerRecord в WorkerResponse.
func WorkerFromDomain(w domain.WorkerRecord) WorkerResponse {
	return WorkerResponse{
		PeerID:         w.PeerID,
		Recipient:      w.Recipient,
		Nonce:          w.Nonce,
		TotalTasks:     w.TotalTasks,
		TasksCompleted: w.TasksCompleted,
		TasksRejected:  w.TasksRejected,
		Outstanding:    w.Outstanding(),
		TotalEarned:    w.TotalEarned,
		LastPayout:     w.LastPayout,
		Banned:         w.Banned,
	}
}

// SetBannedRequest — запрос на бан/разбан worker'а.
type SetBannedRequest struct {
	Banned bool `json:"banned"`
}

// Template DTOs

// CreateTemplateRequest — запрос на создание шаблона.
type CreateTemplateRequest struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Schema map[string]any `json:"schema,omitempty"`
}

// TemplateResponse — ответ с шаблоном.
type TemplateResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Schema    map[string]any `json:"schema,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TemplateFromDomain конвертирует domain.Template в TemplateResponse.
func TemplateFromDomain(t domain.Template) TemplateResponse {
	return TemplateResponse{
		ID:        t.ID,
		Title:     t.Title,
		Schema:    t.Schema,
		CreatedAt: t.CreatedAt,
	}
}

// AccessCodeResponse — ответ с выпущенным кодом доступа.
type AccessCodeResponse struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// SetMaintenanceRequest — запрос на переключение maintenance mode.
type SetMaintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

// BalanceResponse — баланс платёжного аккаунта в ledger'е.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}
