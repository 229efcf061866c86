package payments

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Foreman/internal/domain"
)

// Максимум параллельных проверок proof'ов при агрегации.
const verifyConcurrency = 8

// BulkPaymentProofs сворачивает набор proof'ов одного получателя в
// один агрегатный proof.
//
// Каждый входной proof сначала сверяется по публичным сигналам
// (получатель, платёжный аккаунт, ключ manager'а), затем проверяется
// криптографически. Любое расхождение бракует весь батч: частичная
// агрегация дала бы дыру в диапазоне nonce.
//
// Агрегат строится через два placeholder-платежа: половина суммы на
// minNonce, остаток на maxNonce. Внешний верификатор видит в
// сигналах те же границы и ту же сумму, что и у исходного набора.
func (m *Manager) BulkPaymentProofs(ctx context.Context, recipient string, proofs []domain.PaymentProof) (*domain.PaymentProof, error) {
	if len(proofs) == 0 {
		return nil, ErrEmptyBatch
	}

	wantRecipient := domain.TruncatedHash(recipient)
	wantAccount := domain.TruncatedHash(m.paymentAccount)

	minNonce := proofs[0].PublicSignals.MinNonce
	maxNonce := proofs[0].PublicSignals.MaxNonce
	var total uint64

	for i := range proofs {
		sig := &proofs[i].PublicSignals
		if sig.Recipient != wantRecipient || sig.PaymentAccount != wantAccount || sig.ManagerKey != m.signer.PublicKey() {
			return nil, fmt.Errorf("proof %d: %w", i, ErrProofMismatch)
		}
		if sig.MinNonce < minNonce {
			minNonce = sig.MinNonce
		}
		if sig.MaxNonce > maxNonce {
			maxNonce = sig.MaxNonce
		}
		total += sig.Amount
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyConcurrency)
	for i := range proofs {
		proof := &proofs[i]
		g.Go(func() error {
			if err := m.prover.Verify(gctx, proof); err != nil {
				return fmt.Errorf("proof nonces %d-%d: %w",
					proof.PublicSignals.MinNonce, proof.PublicSignals.MaxNonce, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	half := total / 2
	placeholders := []domain.SignedPayment{
		{
			Version:        domain.PaymentVersion,
			Amount:         half,
			Recipient:      recipient,
			PaymentAccount: m.paymentAccount,
			Nonce:          minNonce,
			Label:          "bulk aggregate",
		},
		{
			Version:        domain.PaymentVersion,
			Amount:         total - half,
			Recipient:      recipient,
			PaymentAccount: m.paymentAccount,
			Nonce:          maxNonce,
			Label:          "bulk aggregate",
		},
	}
	for i := range placeholders {
		m.signer.Sign(&placeholders[i])
	}

	aggregate, err := m.prover.Prove(ctx, placeholders)
	if err != nil {
		return nil, fmt.Errorf("aggregate proof: %w", err)
	}

	m.logger.Info("bulk proofs aggregated",
		"proofs", len(proofs),
		"min_nonce", minNonce,
		"max_nonce", maxNonce,
		"amount", total,
	)
	return aggregate, nil
}
