package payments

import "errors"

// Ошибки платёжного менеджера.
var (
	// ErrPaymentAccountMissing — платёжный аккаунт не сконфигурирован.
	// Конфигурационная ошибка: операция пропускается, не падает процесс.
	ErrPaymentAccountMissing = errors.New("payment account not configured")

	// ErrProofMismatch — публичные сигналы proof'а не совпадают с
	// ожидаемым получателем/платёжным аккаунтом. Бракуется весь батч.
	ErrProofMismatch = errors.New("proof public signals mismatch")

	// ErrEmptyBatch — пустой батч proof'ов.
	ErrEmptyBatch = errors.New("empty proof batch")
)
