package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — единица работы, которую manager раздаёт worker'ам.
//
// Task — event-sourced запись: текущее состояние не хранится отдельно,
// а выводится из типа последнего события в Events. Любая мутация —
// это добавление события в конец лога и перезапись всей записи целиком.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// Title — человекочитаемое название.
	Title string `json:"title"`

	// Reward — вознаграждение за выполнение (в минимальных единицах токена).
	// Фиксируется при создании и никогда не меняется.
	Reward uint64 `json:"reward"`

	// TimeLimitSeconds — время на выполнение после принятия (accept).
	TimeLimitSeconds int `json:"time_limit_seconds"`

	// TemplateID — шаблон, по которому выполняется работа.
	TemplateID string `json:"template_id"`

	// Data — данные, привязанные к шаблону.
	Data map[string]any `json:"data,omitempty"`

	// Events — append-only лог событий. Первое событие всегда create.
	Events []TaskEvent `json:"events"`
}

// LastEvent возвращает последнее событие лога (nil для пустого лога).
func (t *Task) LastEvent() *TaskEvent {
	if len(t.Events) == 0 {
		return nil
	}
	return &t.Events[len(t.Events)-1]
}

// Status возвращает производный статус task — по типу последнего события.
func (t *Task) Status() TaskStatus {
	last := t.LastEvent()
	if last == nil {
		return ""
	}
	switch last.Type {
	case EventCreate:
		return TaskStatusCreated
	case EventAssign:
		return TaskStatusAssigned
	case EventAccept:
		return TaskStatusAccepted
	case EventReject:
		return TaskStatusRejected
	case EventSubmission:
		return TaskStatusSubmitted
	case EventPayout:
		return TaskStatusPaid
	default:
		return ""
	}
}

// AssignedTo возвращает peer последнего события assign ("" если не назначен).
func (t *Task) AssignedTo() string {
	for i := len(t.Events) - 1; i >= 0; i-- {
		if t.Events[i].Type == EventAssign {
			return t.Events[i].PeerID
		}
	}
	return ""
}

// AcceptedBy возвращает peer последнего события accept ("" если не принят).
func (t *Task) AcceptedBy() string {
	for i := len(t.Events) - 1; i >= 0; i-- {
		if t.Events[i].Type == EventAccept {
			return t.Events[i].PeerID
		}
	}
	return ""
}

// HasSubmission проверяет, есть ли в логе событие submission.
func (t *Task) HasSubmission() bool {
	for i := range t.Events {
		if t.Events[i].Type == EventSubmission {
			return true
		}
	}
	return false
}

// Append добавляет событие в конец лога.
func (t *Task) Append(ev TaskEvent) {
	t.Events = append(t.Events, ev)
}

// TimeLimit возвращает лимит выполнения как Duration.
func (t *Task) TimeLimit() time.Duration {
	return time.Duration(t.TimeLimitSeconds) * time.Second
}
