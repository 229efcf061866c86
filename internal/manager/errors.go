package manager

import "errors"

// Ошибки manager'а.
var (
	// ErrStopped — операция на остановленном manager'е.
	ErrStopped = errors.New("manager stopped")

	// ErrNotAssignable — task нельзя назначить в текущем статусе.
	ErrNotAssignable = errors.New("task is not assignable")
)
