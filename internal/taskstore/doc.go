// Package taskstore реализует event-sourced машину состояний task
// поверх entity store.
//
// Состояние task — чистая функция последнего события лога:
//
//	create → assign → accept → submission → payout
//	           ↘ reject → (снова assign)
//
// Каждый переход валидируется по последнему событию и записывается
// как добавление события + перезапись всей записи одним write.
// Ошибки разделены на validation (ErrInvalidTransition) и expired
// (ErrExpired) — вторые ведут к reject-and-reassign в reconciliation.
package taskstore
