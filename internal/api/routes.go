package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("POST /api/v1/tasks", chain(http.HandlerFunc(h.CreateTask)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))
	mux.Handle("POST /api/v1/tasks/{id}/assign", chain(http.HandlerFunc(h.AssignTask)))

	// Workers
	mux.Handle("GET /api/v1/workers", chain(http.HandlerFunc(h.ListWorkers)))
	mux.Handle("GET /api/v1/workers/{peer_id}", chain(http.HandlerFunc(h.GetWorker)))
	mux.Handle("PUT /api/v1/workers/{peer_id}/banned", chain(http.HandlerFunc(h.SetWorkerBanned)))
	mux.Handle("GET /api/v1/queue", chain(http.HandlerFunc(h.GetQueue)))
	mux.Handle("PUT /api/v1/maintenance", chain(http.HandlerFunc(h.SetMaintenance)))

	// Templates
	mux.Handle("GET /api/v1/templates", chain(http.HandlerFunc(h.ListTemplates)))
	mux.Handle("POST /api/v1/templates", chain(http.HandlerFunc(h.CreateTemplate)))
	mux.Handle("GET /api/v1/templates/{id}", chain(http.HandlerFunc(h.GetTemplate)))

	// Access codes / payments
	mux.Handle("POST /api/v1/accesscodes", chain(http.HandlerFunc(h.IssueAccessCode)))
	mux.Handle("GET /api/v1/payments/{id}", chain(http.HandlerFunc(h.GetPayment)))
	mux.Handle("GET /api/v1/balance", chain(http.HandlerFunc(h.GetBalance)))
}
