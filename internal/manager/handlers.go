package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Foreman/internal/payments"
	"github.com/shaiso/Foreman/internal/prover"
	"github.com/shaiso/Foreman/internal/scheduling"
	"github.com/shaiso/Foreman/internal/taskstore"
	"github.com/shaiso/Foreman/internal/telemetry"
	"github.com/shaiso/Foreman/internal/transport"
)

// registerHandlers ставит обработчики на все входящие kinds.
func (m *Manager) registerHandlers() error {
	handlers := map[transport.Kind]transport.Handler{
		transport.KindRequestToWork:    m.handleRequestToWork,
		transport.KindTaskAccepted:     m.handleTaskAccepted,
		transport.KindTaskRejected:     m.handleTaskRejected,
		transport.KindTaskCompleted:    m.handleTaskCompleted,
		transport.KindProofRequest:     m.handleProofRequest,
		transport.KindBulkProofRequest: m.handleBulkProofRequest,
		transport.KindPayoutRequest:    m.handlePayoutRequest,
	}
	for kind, h := range handlers {
		if err := m.transport.Register(kind, h); err != nil {
			return err
		}
	}
	return nil
}

// errorCode переводит доменные ошибки в машиночитаемые коды протокола.
func errorCode(err error) string {
	switch {
	case errors.Is(err, scheduling.ErrAccessCodeRequired):
		return "access_code_required"
	case errors.Is(err, scheduling.ErrAccessCodeInvalid):
		return "access_code_invalid"
	case errors.Is(err, scheduling.ErrWorkerBanned):
		return "worker_banned"
	case errors.Is(err, scheduling.ErrMaintenance):
		return "maintenance"
	case errors.Is(err, scheduling.ErrWorkerNotFound):
		return "worker_not_found"
	case errors.Is(err, taskstore.ErrTaskNotFound):
		return "task_not_found"
	case errors.Is(err, taskstore.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, taskstore.ErrExpired):
		return "expired"
	case errors.Is(err, taskstore.ErrDuplicateSubmission):
		return "duplicate_submission"
	case errors.Is(err, payments.ErrPaymentAccountMissing):
		return "payment_account_missing"
	case errors.Is(err, payments.ErrProofMismatch):
		return "proof_mismatch"
	case errors.Is(err, payments.ErrEmptyBatch):
		return "empty_batch"
	case errors.Is(err, prover.ErrProofInvalid):
		return "proof_invalid"
	case errors.Is(err, prover.ErrProverUnavailable):
		return "prover_unavailable"
	default:
		return "internal"
	}
}

// fail собирает ответ-ошибку протокола.
func fail(err error) (*transport.Message, error) {
	return transport.NewErrorMessage(PeerID, errorCode(err), err.Error()), nil
}

// handleRequestToWork — допуск worker'а к работе.
func (m *Manager) handleRequestToWork(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var req transport.RequestToWork
	if err := msg.Decode(&req); err != nil {
		return fail(err)
	}
	if req.PeerID == "" {
		req.PeerID = msg.From
	}

	rec, err := m.scheduler.ConnectWorker(ctx, req.PeerID, req.Recipient, req.Nonce, req.AccessCode)
	if err != nil {
		return fail(err)
	}

	telemetry.QueuedWorkers.Set(float64(m.scheduler.Queue().Len()))
	return transport.NewMessage(transport.KindWorkAdmitted, PeerID, &transport.WorkAdmitted{
		ManagerKey:     m.payments.ManagerKey(),
		PaymentAccount: m.payments.PaymentAccount(),
		Nonce:          rec.Nonce,
	})
}

// handleTaskAccepted — worker принял task.
func (m *Manager) handleTaskAccepted(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var dec transport.TaskDecision
	if err := msg.Decode(&dec); err != nil {
		return fail(err)
	}
	if err := m.ProcessAcceptance(ctx, dec.TaskID, dec.PeerID); err != nil {
		return fail(err)
	}
	return nil, nil
}

// handleTaskRejected — worker отклонил task.
func (m *Manager) handleTaskRejected(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var dec transport.TaskDecision
	if err := msg.Decode(&dec); err != nil {
		return fail(err)
	}
	reason := dec.Reason
	if reason == "" {
		reason = "rejected by worker"
	}
	if err := m.ProcessRejection(ctx, dec.TaskID, dec.PeerID, reason); err != nil {
		return fail(err)
	}
	return nil, nil
}

// handleTaskCompleted — worker сдал результат.
func (m *Manager) handleTaskCompleted(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var res transport.TaskResult
	if err := msg.Decode(&res); err != nil {
		return fail(err)
	}
	if err := m.ProcessSubmission(ctx, res.TaskID, res.PeerID, res.Result); err != nil {
		return fail(err)
	}
	return nil, nil
}

// handleProofRequest — proof над платежами worker'а.
func (m *Manager) handleProofRequest(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var req transport.ProofRequest
	if err := msg.Decode(&req); err != nil {
		return fail(err)
	}

	started := time.Now()
	proof, err := m.payments.ProcessProofRequest(ctx, req.Payments)
	if err != nil {
		return fail(err)
	}
	telemetry.ProofDuration.Observe(time.Since(started).Seconds())
	return transport.NewMessage(transport.KindProofResponse, PeerID, &transport.ProofResponse{Proof: *proof})
}

// handleBulkProofRequest — агрегация набора proof'ов в один.
func (m *Manager) handleBulkProofRequest(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var req transport.BulkProofRequest
	if err := msg.Decode(&req); err != nil {
		return fail(err)
	}

	recipient := req.Recipient
	if recipient == "" {
		rec, err := m.scheduler.Workers().Get(ctx, req.PeerID)
		if err != nil {
			return fail(err)
		}
		recipient = rec.Recipient
	}

	started := time.Now()
	proof, err := m.payments.BulkPaymentProofs(ctx, recipient, req.Proofs)
	if err != nil {
		return fail(err)
	}
	telemetry.ProofDuration.Observe(time.Since(started).Seconds())

	claim, err := m.ledger.BuildClaimInstruction(proof)
	if err != nil {
		return fail(err)
	}
	return transport.NewMessage(transport.KindProofResponse, PeerID, &transport.ProofResponse{Proof: *proof, Claim: claim})
}

// handlePayoutRequest — time-based выплата по запросу worker'а.
func (m *Manager) handlePayoutRequest(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var req transport.PayoutRequest
	if err := msg.Decode(&req); err != nil {
		return fail(err)
	}
	peerID := req.PeerID
	if peerID == "" {
		peerID = msg.From
	}

	rec, err := m.scheduler.Workers().Get(ctx, peerID)
	if err != nil {
		return fail(err)
	}
	if rec.Banned {
		return fail(fmt.Errorf("%w: %s", scheduling.ErrWorkerBanned, peerID))
	}

	payment, err := m.payments.ProcessPayoutRequest(ctx, peerID)
	if err != nil {
		return fail(err)
	}
	if payment == nil {
		// Онлайна не накопилось: отвечаем без платежа.
		return transport.NewMessage(transport.KindAck, PeerID, nil)
	}

	telemetry.PaymentsIssued.Inc()
	telemetry.PaymentAmount.Observe(float64(payment.Amount))
	return transport.NewMessage(transport.KindPayment, PeerID, &transport.PaymentPayload{Payment: *payment})
}
