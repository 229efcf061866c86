package transport

import (
	"github.com/shaiso/Foreman/internal/chain"
	"github.com/shaiso/Foreman/internal/domain"
)

// RequestToWork — тело KindRequestToWork.
type RequestToWork struct {
	// PeerID — идентификатор worker'а.
	PeerID string `json:"peer_id"`

	// Recipient — платёжный адрес worker'а.
	Recipient string `json:"recipient"`

	// AccessCode — одноразовый код доступа (для новых workers,
	// если manager их требует).
	AccessCode string `json:"access_code,omitempty"`

	// Nonce — стартовый nonce для новой записи worker'а (worker
	// приносит его из своего локального состояния).
	Nonce uint64 `json:"nonce,omitempty"`
}

// WorkAdmitted — ответ на RequestToWork.
type WorkAdmitted struct {
	// ManagerKey — публичный ключ manager'а (hex).
	ManagerKey string `json:"manager_key"`

	// PaymentAccount — платёжный аккаунт manager'а.
	PaymentAccount string `json:"payment_account"`

	// Nonce — текущий nonce worker'а по данным manager'а.
	Nonce uint64 `json:"nonce"`
}

// TaskPayload — тело KindTask: всё, что worker'у нужно для выполнения.
type TaskPayload struct {
	TaskID           string         `json:"task_id"`
	Title            string         `json:"title"`
	Reward           uint64         `json:"reward"`
	TimeLimitSeconds int            `json:"time_limit_seconds"`
	TemplateID       string         `json:"template_id"`
	Data             map[string]any `json:"data,omitempty"`
}

// TaskDecision — тело KindTaskAccepted / KindTaskRejected.
type TaskDecision struct {
	TaskID string `json:"task_id"`
	PeerID string `json:"peer_id"`

	// Reason заполняется только для отклонения.
	Reason string `json:"reason,omitempty"`
}

// TaskResult — тело KindTaskCompleted.
type TaskResult struct {
	TaskID string         `json:"task_id"`
	PeerID string         `json:"peer_id"`
	Result map[string]any `json:"result"`
}

// ProofRequest — тело KindProofRequest.
type ProofRequest struct {
	PeerID   string                 `json:"peer_id"`
	Payments []domain.SignedPayment `json:"payments"`
}

// BulkProofRequest — тело KindBulkProofRequest.
type BulkProofRequest struct {
	PeerID    string                `json:"peer_id"`
	Recipient string                `json:"recipient"`
	Proofs    []domain.PaymentProof `json:"proofs"`
}

// ProofResponse — тело KindProofResponse.
//
// Для агрегатных proof'ов manager прикладывает готовую claim-
// инструкцию: worker подписывает и отправляет её в ledger сам.
type ProofResponse struct {
	Proof domain.PaymentProof `json:"proof"`
	Claim *chain.Instruction  `json:"claim,omitempty"`
}

// PayoutRequest — тело KindPayoutRequest.
type PayoutRequest struct {
	PeerID string `json:"peer_id"`
}

// PaymentPayload — тело KindPayment.
type PaymentPayload struct {
	// TaskID — пометка, за какой task платёж (пустой для time-based).
	TaskID  string               `json:"task_id,omitempty"`
	Payment domain.SignedPayment `json:"payment"`
}
