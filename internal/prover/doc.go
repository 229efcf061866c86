// Package prover — генерация и проверка платёжных zero-knowledge proofs.
//
// Реализации:
//   - client.go — HTTP-клиент внешнего prover-сервиса (production)
//   - local.go  — детерминированный prover на подписях (dev, тесты)
//
// Сам circuit вне зоны ответственности этого репозитория: пакет
// оперирует только публичными сигналами и непрозрачными blob'ами.
package prover
