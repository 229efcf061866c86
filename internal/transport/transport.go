package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Ошибки транспорта.
var (
	// ErrDuplicateHandler — на kind уже зарегистрирован обработчик.
	ErrDuplicateHandler = errors.New("handler already registered for message kind")

	// ErrNoHandler — для kind нет зарегистрированного обработчика.
	ErrNoHandler = errors.New("no handler for message kind")

	// ErrPeerUnreachable — адресат недоступен.
	ErrPeerUnreachable = errors.New("peer unreachable")
)

// Kind — тип сообщения протокола manager/worker.
type Kind string

// Виды сообщений.
const (
	// KindRequestToWork — worker просит допуск к работе.
	KindRequestToWork Kind = "request_to_work"

	// KindWorkAdmitted — ответ manager'а на request_to_work.
	KindWorkAdmitted Kind = "work_admitted"

	// KindTask — manager доставляет task worker'у.
	KindTask Kind = "task"

	// KindTaskAccepted — worker принял task.
	KindTaskAccepted Kind = "task_accepted"

	// KindTaskRejected — worker отклонил task.
	KindTaskRejected Kind = "task_rejected"

	// KindTaskCompleted — worker сдал результат.
	KindTaskCompleted Kind = "task_completed"

	// KindProofRequest — worker просит proof над своими платежами.
	KindProofRequest Kind = "proof_request"

	// KindBulkProofRequest — worker просит агрегировать набор proof'ов.
	KindBulkProofRequest Kind = "bulk_proof_request"

	// KindProofResponse — ответ с готовым proof'ом.
	KindProofResponse Kind = "proof_response"

	// KindPayoutRequest — worker просит time-based выплату.
	KindPayoutRequest Kind = "payout_request"

	// KindPayment — manager доставляет подписанный платёж.
	KindPayment Kind = "payment"

	// KindAck — подтверждение без полезной нагрузки.
	KindAck Kind = "ack"

	// KindError — ответ с ошибкой.
	KindError Kind = "error"
)

// ExpectsResponse сообщает, ждёт ли отправитель kind содержательный
// ответ (а не только ack).
func (k Kind) ExpectsResponse() bool {
	switch k {
	case KindRequestToWork, KindProofRequest, KindBulkProofRequest, KindPayoutRequest:
		return true
	default:
		return false
	}
}

// Message — конверт сообщения между peer'ами.
type Message struct {
	// Kind — тип сообщения.
	Kind Kind `json:"kind"`

	// From — peer ID отправителя.
	From string `json:"from"`

	// CorrelationID связывает ответ с запросом.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload — сериализованное тело (структуры из messages.go).
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage собирает конверт с сериализованным телом.
func NewMessage(kind Kind, from string, payload any) (*Message, error) {
	msg := &Message{Kind: kind, From: from}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// Decode десериализует тело сообщения в v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Kind, err)
	}
	return nil
}

// Handler обрабатывает входящее сообщение. Возвращённое сообщение
// (если не nil) уходит отправителю как ответ.
type Handler func(ctx context.Context, msg *Message) (*Message, error)

// Transport доставляет сообщения между manager'ом и worker'ами.
//
// Реализации: Hub (in-process, для тестов и embedded режима)
// и AMQP (RabbitMQ, production).
type Transport interface {
	// Register ставит обработчик на kind.
	// Повторная регистрация того же kind — ErrDuplicateHandler.
	Register(kind Kind, h Handler) error

	// Request отправляет сообщение peer'у и ждёт ответ.
	Request(ctx context.Context, to string, msg *Message) (*Message, error)

	// Notify отправляет сообщение без ожидания содержательного ответа.
	Notify(ctx context.Context, to string, msg *Message) error

	// Close останавливает транспорт.
	Close() error
}

// ErrorResponse — тело сообщения KindError.
type ErrorResponse struct {
	// Code — машиночитаемый код ошибки.
	Code string `json:"code"`

	// Message — описание для человека.
	Message string `json:"message"`
}

// Error реализует error.
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewErrorMessage собирает ответ-ошибку.
func NewErrorMessage(from, code, message string) *Message {
	msg, _ := NewMessage(KindError, from, &ErrorResponse{Code: code, Message: message})
	return msg
}

// AsError разворачивает сообщение KindError в ErrorResponse.
// Для остальных kind возвращает nil.
func AsError(msg *Message) *ErrorResponse {
	if msg == nil || msg.Kind != KindError {
		return nil
	}
	var resp ErrorResponse
	if err := msg.Decode(&resp); err != nil {
		return &ErrorResponse{Code: "malformed", Message: err.Error()}
	}
	return &resp
}
