package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/Foreman/internal/store"
)

// IssueAccessCode выпускает одноразовый код доступа.
// POST /api/v1/accesscodes
func (h *Handler) IssueAccessCode(w http.ResponseWriter, r *http.Request) {
	codes := h.manager.Scheduler().Codes()
	if codes == nil {
		InvalidState(w, "access codes are not enabled")
		return
	}

	code, err := codes.Issue(r.Context())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, AccessCodeResponse{Code: code.Code, CreatedAt: code.CreatedAt})
}

// GetPayment возвращает сохранённый платёж по ID.
// GET /api/v1/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.manager.Payments().Payment(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(w, "payment not found")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, payment)
}

// GetBalance возвращает баланс платёжного аккаунта в ledger'е.
// GET /api/v1/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := h.manager.Payments().PaymentAccount()
	if account == "" {
		InvalidState(w, "payment account is not configured")
		return
	}

	balance, err := h.manager.Ledger().TokenBalance(r.Context(), account)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, BalanceResponse{Account: account, Balance: balance})
}
