package taskstore

import "errors"

// Ошибки task store.
var (
	// ErrTaskNotFound — task не найден ни в одном namespace.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTemplateNotFound — шаблон task не найден.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidTransition — недопустимый переход состояния
	// (validation error: состояние task не меняется).
	ErrInvalidTransition = errors.New("invalid task transition")

	// ErrExpired — дедлайн (окно принятия или time limit) истёк.
	// Отличается от ErrInvalidTransition: ведёт к reject-and-reassign,
	// а не к простому отказу.
	ErrExpired = errors.New("deadline expired")

	// ErrDuplicateSubmission — task уже содержит событие submission.
	ErrDuplicateSubmission = errors.New("duplicate submission")
)
