// Package chain строит on-chain инструкции для зачисления платежей
// по агрегатным proof'ам.
package chain

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/shaiso/Foreman/internal/domain"
)

// Ошибки взаимодействия с ledger'ом.
var (
	// ErrLedgerUnavailable — RPC ledger'а недоступен.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrEmptyProof — proof без покрытых платежей.
	ErrEmptyProof = errors.New("proof covers no payments")
)

// Instruction — инструкция claim для отправки в ledger.
//
// Worker подписывает и отправляет её сам: manager только собирает
// аргументы из публичных сигналов proof'а.
type Instruction struct {
	// Program — адрес программы зачисления.
	Program string `json:"program"`

	// Method — вызываемый метод.
	Method string `json:"method"`

	// Args — аргументы метода.
	Args ClaimArgs `json:"args"`
}

// ClaimArgs — аргументы метода claim.
type ClaimArgs struct {
	// Proof — blob proof'а (hex).
	Proof string `json:"proof"`

	// MinNonce, MaxNonce — покрытый диапазон nonce.
	MinNonce uint64 `json:"min_nonce"`
	MaxNonce uint64 `json:"max_nonce"`

	// Amount — зачисляемая сумма.
	Amount uint64 `json:"amount"`

	// ManagerKey — ключ manager'а, подписавшего платежи (hex).
	ManagerKey string `json:"manager_key"`

	// PaymentAccount — усечённый хэш платёжного аккаунта (hex).
	PaymentAccount string `json:"payment_account"`
}

// Ledger — внешний ledger, принимающий claims.
type Ledger interface {
	// BuildClaimInstruction собирает инструкцию claim из proof'а.
	BuildClaimInstruction(proof *domain.PaymentProof) (*Instruction, error)

	// TokenBalance возвращает баланс платёжного аккаунта.
	TokenBalance(ctx context.Context, account string) (uint64, error)
}

// buildClaim — общая для реализаций сборка инструкции.
func buildClaim(program string, proof *domain.PaymentProof) (*Instruction, error) {
	sig := proof.PublicSignals
	if sig.Amount == 0 && sig.MinNonce == 0 && sig.MaxNonce == 0 {
		return nil, ErrEmptyProof
	}
	if _, err := hex.DecodeString(proof.Proof); err != nil {
		return nil, errors.New("proof blob is not hex")
	}

	return &Instruction{
		Program: program,
		Method:  "claim",
		Args: ClaimArgs{
			Proof:          proof.Proof,
			MinNonce:       sig.MinNonce,
			MaxNonce:       sig.MaxNonce,
			Amount:         sig.Amount,
			ManagerKey:     sig.ManagerKey,
			PaymentAccount: sig.PaymentAccount,
		},
	}, nil
}
