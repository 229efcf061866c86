// Package payments выпускает подписанные платежи worker'ам и
// агрегирует платёжные proofs.
//
// Каждый платёж привязан к строго возрастающему nonce получателя:
// manager подписывает платёж текущим nonce и сразу увеличивает
// сохранённый счётчик на единицу. BulkPaymentProofs сворачивает
// набор проверенных proof'ов в один агрегат, сохраняя границы
// диапазона nonce и суммарную сумму в публичных сигналах.
package payments
