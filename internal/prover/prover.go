package prover

import (
	"context"
	"errors"

	"github.com/shaiso/Foreman/internal/domain"
)

// Ошибки prover'а.
var (
	// ErrProofInvalid — proof не прошёл криптографическую проверку.
	ErrProofInvalid = errors.New("proof verification failed")

	// ErrProverUnavailable — prover-сервис недоступен или вернул отказ.
	ErrProverUnavailable = errors.New("prover unavailable")
)

// Prover генерирует и проверяет платёжные proofs.
//
// Генерация и проверка — тяжёлые I/O-bound операции (внешний
// сервис или нативный circuit), поэтому обе принимают context.
type Prover interface {
	// Prove строит proof над набором подписанных платежей одного
	// получателя. Публичные сигналы агрегата: minNonce, maxNonce,
	// суммарный amount, ключ manager'а и усечённые хэши
	// получателя/платёжного аккаунта.
	Prove(ctx context.Context, payments []domain.SignedPayment) (*domain.PaymentProof, error)

	// Verify проверяет proof криптографически.
	// Невалидный proof — ErrProofInvalid.
	Verify(ctx context.Context, proof *domain.PaymentProof) error
}
