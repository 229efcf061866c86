// Package domain содержит доменные типы Foreman.
//
// Основные сущности:
//   - Task и TaskEvent — event-sourced единица работы
//   - WorkerRecord — персистентное состояние worker'а
//   - SignedPayment, PaymentProof — платёжные артефакты
//   - Template, AccessCode — шаблоны работ и коды доступа
//
// Типы не содержат логики хранения и переходов — этим занимаются
// taskstore, scheduling и payments.
package domain
