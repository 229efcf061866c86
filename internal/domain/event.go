package domain

import "time"

// EventType — тип события в логе task.
//
// Жизненный цикл:
//
//	create → assign → accept → submission → payout
//	           ↘ reject → (снова assign)
type EventType string

const (
	// EventCreate — task создан производящим peer'ом.
	EventCreate EventType = "create"

	// EventAssign — task назначен worker'у.
	EventAssign EventType = "assign"

	// EventAccept — worker принял task (в пределах окна принятия).
	EventAccept EventType = "accept"

	// EventReject — task отклонён (worker'ом или manager'ом по таймауту).
	EventReject EventType = "reject"

	// EventSubmission — worker сдал результат (в пределах time limit).
	EventSubmission EventType = "submission"

	// EventPayout — к task прикреплён платёж. Терминальное событие.
	EventPayout EventType = "payout"
)

// TaskEvent — неизменяемый факт о task с меткой времени.
//
// Discriminated union: Type определяет, какие поля заполнены.
// Везде, где решаются переходы, Type матчится исчерпывающе.
type TaskEvent struct {
	// Type — дискриминатор варианта.
	Type EventType `json:"type"`

	// Timestamp — момент добавления события.
	Timestamp time.Time `json:"timestamp"`

	// PeerID — peer, к которому относится событие:
	// создатель (create), назначенный worker (assign/reject),
	// принявший worker (accept), сдавший worker (submission).
	PeerID string `json:"peer_id,omitempty"`

	// Reason — причина отклонения (только reject).
	Reason string `json:"reason,omitempty"`

	// Result — результат работы (только submission).
	Result map[string]any `json:"result,omitempty"`

	// Payment — подписанный платёж (только payout).
	Payment *SignedPayment `json:"payment,omitempty"`
}

// TaskStatus — производный статус task (тип последнего события).
type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "CREATED"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusAccepted  TaskStatus = "ACCEPTED"
	TaskStatusRejected  TaskStatus = "REJECTED"
	TaskStatusSubmitted TaskStatus = "SUBMITTED"
	TaskStatusPaid      TaskStatus = "PAID"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusPaid
}

// Assignable возвращает true, если task можно назначать
// (последнее событие create или reject).
func (s TaskStatus) Assignable() bool {
	return s == TaskStatusCreated || s == TaskStatusRejected
}
