package prover

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/shaiso/Foreman/internal/domain"
)

// Local — детерминированный prover для разработки и тестов.
//
// Не строит настоящий zero-knowledge circuit: проверяет ed25519
// подписи платежей, агрегирует сигналы и аттестует их keyed-хэшем
// от собственного секрета. Proof проверяем только тем же экземпляром
// (тем же секретом) — для production используется Client.
type Local struct {
	secret []byte
}

// NewLocal создаёт Local prover с данным секретом.
func NewLocal(secret []byte) *Local {
	return &Local{secret: secret}
}

// Prove проверяет подписи платежей и собирает агрегатный proof.
func (l *Local) Prove(_ context.Context, payments []domain.SignedPayment) (*domain.PaymentProof, error) {
	if len(payments) == 0 {
		return nil, fmt.Errorf("%w: empty payment set", ErrProofInvalid)
	}

	first := payments[0]
	signals := domain.PublicSignals{
		MinNonce:       first.Nonce,
		MaxNonce:       first.Nonce,
		ManagerKey:     first.ManagerKey,
		Recipient:      domain.TruncatedHash(first.Recipient),
		PaymentAccount: domain.TruncatedHash(first.PaymentAccount),
	}

	for i := range payments {
		p := &payments[i]
		if p.Recipient != first.Recipient || p.PaymentAccount != first.PaymentAccount {
			return nil, fmt.Errorf("%w: mixed recipients in payment set", ErrProofInvalid)
		}

		pub := domain.HexBytes(p.ManagerKey)
		sig := domain.HexBytes(p.Signature)
		if len(pub) != ed25519.PublicKeySize || !ed25519.Verify(pub, p.CanonicalBytes(), sig) {
			return nil, fmt.Errorf("%w: bad signature on payment nonce %d", ErrProofInvalid, p.Nonce)
		}

		if p.Nonce < signals.MinNonce {
			signals.MinNonce = p.Nonce
		}
		if p.Nonce > signals.MaxNonce {
			signals.MaxNonce = p.Nonce
		}
		signals.Amount += p.Amount
	}

	return &domain.PaymentProof{
		Proof:         l.attest(&signals),
		PublicSignals: signals,
	}, nil
}

// Verify перепроверяет аттестацию сигналов.
func (l *Local) Verify(_ context.Context, proof *domain.PaymentProof) error {
	want := l.attest(&proof.PublicSignals)
	if !hmac.Equal([]byte(want), []byte(proof.Proof)) {
		return fmt.Errorf("%w: nonces %d-%d", ErrProofInvalid,
			proof.PublicSignals.MinNonce, proof.PublicSignals.MaxNonce)
	}
	return nil
}

// attest возвращает keyed BLAKE2b над каноничными байтами сигналов.
func (l *Local) attest(signals *domain.PublicSignals) string {
	h, err := blake2b.New256(l.secret)
	if err != nil {
		// blake2b принимает ключи до 64 байт; секрет длиннее — ошибка конфигурации
		panic(fmt.Sprintf("prover: bad secret: %v", err))
	}
	h.Write(signals.Bytes())
	return hex.EncodeToString(h.Sum(nil))
}
