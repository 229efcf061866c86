package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Foreman/internal/domain"
)

// ListWorkers возвращает все записи workers.
// GET /api/v1/workers
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.manager.Scheduler().Workers().List(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	result := make([]WorkerResponse, len(workers))
	for i, rec := range workers {
		result[i] = WorkerFromDomain(rec)
	}

	List(w, result, len(result))
}

// GetWorker возвращает запись worker'а.
// GET /api/v1/workers/{peer_id}
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	rec, err := h.manager.Scheduler().Workers().Get(r.Context(), r.PathValue("peer_id"))
	if HandleDomainError(w, h.logger, err, "worker not found") {
		return
	}

	Success(w, WorkerFromDomain(*rec))
}

// SetWorkerBanned банит или разбанивает worker'а.
// PUT /api/v1/workers/{peer_id}/banned
func (h *Handler) SetWorkerBanned(w http.ResponseWriter, r *http.Request) {
	var req SetBannedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	rec, err := h.manager.Scheduler().Workers().Update(r.Context(), r.PathValue("peer_id"), func(rec *domain.WorkerRecord) {
		rec.Banned = req.Banned
	})
	if HandleDomainError(w, h.logger, err, "worker not found") {
		return
	}

	Success(w, WorkerFromDomain(*rec))
}

// GetQueue возвращает снапшот очереди планировщика.
// GET /api/v1/queue
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	snapshot := h.manager.Scheduler().Queue().Snapshot()
	List(w, snapshot, len(snapshot))
}

// SetMaintenance переключает maintenance mode.
// PUT /api/v1/maintenance
func (h *Handler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	var req SetMaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	h.manager.Scheduler().SetMaintenance(req.Enabled)
	Success(w, map[string]bool{"maintenance": req.Enabled})
}
