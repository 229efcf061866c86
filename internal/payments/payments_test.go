package payments

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/prover"
	"github.com/shaiso/Foreman/internal/scheduling"
	"github.com/shaiso/Foreman/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	st := store.NewMem()
	workers := scheduling.NewWorkerStore(st)
	seed := make([]byte, ed25519.SeedSize)
	copy(seed, "foreman-payments-test-seed")
	return New(Config{
		Workers:        workers,
		Store:          st,
		Signer:         NewSigner(ed25519.NewKeyFromSeed(seed)),
		Prover:         prover.NewLocal([]byte("test-prover-secret")),
		PaymentAccount: "acct-main",
	})
}

func addWorker(t *testing.T, m *Manager, peerID, recipient string, nonce uint64) {
	t.Helper()
	err := m.workers.Put(context.Background(), &domain.WorkerRecord{
		PeerID:    peerID,
		Recipient: recipient,
		Nonce:     nonce,
	})
	if err != nil {
		t.Fatalf("put worker: %v", err)
	}
}

func TestGeneratePaymentAdvancesNonce(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	addWorker(t, m, "peer-a", "addr-a", 1)
	addWorker(t, m, "peer-b", "addr-b", 100)

	// Interleave payments to two workers: each worker's nonce advances
	// by exactly one per payment, independently of the other.
	for i := 0; i < 5; i++ {
		pa, err := m.GeneratePayment(ctx, "peer-a", 10, "acct-main", "")
		if err != nil {
			t.Fatalf("generate for a: %v", err)
		}
		if pa.Nonce != uint64(1+i) {
			t.Fatalf("payment %d for a: nonce = %d, want %d", i, pa.Nonce, 1+i)
		}

		pb, err := m.GeneratePayment(ctx, "peer-b", 10, "acct-main", "")
		if err != nil {
			t.Fatalf("generate for b: %v", err)
		}
		if pb.Nonce != uint64(100+i) {
			t.Fatalf("payment %d for b: nonce = %d, want %d", i, pb.Nonce, 100+i)
		}
	}

	rec, err := m.workers.Get(ctx, "peer-a")
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if rec.Nonce != 6 {
		t.Errorf("stored nonce = %d, want 6", rec.Nonce)
	}
}

func TestGeneratePaymentSignedAndPersisted(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	addWorker(t, m, "peer-a", "addr-a", 7)

	p, err := m.GeneratePayment(ctx, "peer-a", 500, "acct-main", "task reward")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !VerifyPayment(p) {
		t.Error("payment signature does not verify")
	}
	if p.ID == "" {
		t.Error("payment ID not set")
	}

	got, err := m.Payment(ctx, p.ID)
	if err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if got.Nonce != 7 || got.Amount != 500 || got.Recipient != "addr-a" {
		t.Errorf("persisted payment = %+v, want nonce 7 amount 500 recipient addr-a", got)
	}
}

func TestGeneratePaymentMissingAccount(t *testing.T) {
	m := newTestManager(t)
	addWorker(t, m, "peer-a", "addr-a", 0)

	_, err := m.GeneratePayment(context.Background(), "peer-a", 10, "", "")
	if !errors.Is(err, ErrPaymentAccountMissing) {
		t.Fatalf("err = %v, want ErrPaymentAccountMissing", err)
	}
}

func TestProcessPayoutRequest(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start.Add(90 * time.Second) }

	err := m.workers.Put(ctx, &domain.WorkerRecord{
		PeerID:     "peer-a",
		Recipient:  "addr-a",
		Nonce:      3,
		LastPayout: start,
	})
	if err != nil {
		t.Fatalf("put worker: %v", err)
	}

	p, err := m.ProcessPayoutRequest(ctx, "peer-a")
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if p.Amount != 90 {
		t.Errorf("amount = %d, want 90 (90s at rate 1)", p.Amount)
	}

	rec, err := m.workers.Get(ctx, "peer-a")
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if !rec.LastPayout.Equal(start.Add(90 * time.Second)) {
		t.Errorf("lastPayout not advanced: %v", rec.LastPayout)
	}
	if rec.TotalEarned != 90 {
		t.Errorf("totalEarned = %d, want 90", rec.TotalEarned)
	}
	if rec.Nonce != 4 {
		t.Errorf("nonce = %d, want 4", rec.Nonce)
	}
}

func TestGeneratePaymentConcurrentNonces(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	addWorker(t, m, "peer-a", "addr-a", 1)

	// The transport handles every inbound message in its own
	// goroutine, so payment issuance for one peer races unless it is
	// serialized. All nonces must come out distinct.
	const n = 32
	nonces := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := m.GeneratePayment(ctx, "peer-a", 10, "acct-main", "")
			if err != nil {
				t.Errorf("generate: %v", err)
				return
			}
			nonces <- p.Nonce
		}()
	}
	wg.Wait()
	close(nonces)

	seen := make(map[uint64]bool, n)
	for nonce := range nonces {
		if seen[nonce] {
			t.Fatalf("nonce %d issued twice", nonce)
		}
		seen[nonce] = true
	}
	if len(seen) != n {
		t.Fatalf("issued %d payments, want %d", len(seen), n)
	}

	rec, err := m.workers.Get(ctx, "peer-a")
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if rec.Nonce != 1+n {
		t.Errorf("stored nonce = %d, want %d", rec.Nonce, 1+n)
	}
}

func TestProcessPayoutRequestNoUptime(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Less than a second of uptime rounds down to a zero amount.
	m.now = func() time.Time { return start.Add(300 * time.Millisecond) }

	err := m.workers.Put(ctx, &domain.WorkerRecord{
		PeerID:     "peer-a",
		Recipient:  "addr-a",
		Nonce:      3,
		LastPayout: start,
	})
	if err != nil {
		t.Fatalf("put worker: %v", err)
	}

	p, err := m.ProcessPayoutRequest(ctx, "peer-a")
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if p != nil {
		t.Fatalf("payment = %+v, want none for zero amount", p)
	}

	// Neither the nonce nor the accrual window moves: the sub-second
	// remainder keeps counting toward the next payout.
	rec, err := m.workers.Get(ctx, "peer-a")
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if rec.Nonce != 3 {
		t.Errorf("nonce = %d, want 3", rec.Nonce)
	}
	if !rec.LastPayout.Equal(start) {
		t.Errorf("lastPayout = %v, want %v", rec.LastPayout, start)
	}
}

func TestBulkSingleProof(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	addWorker(t, m, "peer-a", "addr-a", 5)

	p, err := m.GeneratePayment(ctx, "peer-a", 100, "acct-main", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	proof, err := m.ProcessProofRequest(ctx, []domain.SignedPayment{*p})
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	agg, err := m.BulkPaymentProofs(ctx, "addr-a", []domain.PaymentProof{*proof})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	sig := agg.PublicSignals
	if sig.MinNonce != 5 || sig.MaxNonce != 5 || sig.Amount != 100 {
		t.Errorf("aggregate signals = %+v, want min 5 max 5 amount 100", sig)
	}
}

func TestBulkAggregation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	addWorker(t, m, "peer-a", "addr-a", 1)

	// Ten payments, nonces 1..10, one proof each.
	proofs := make([]domain.PaymentProof, 0, 10)
	for i := 0; i < 10; i++ {
		p, err := m.GeneratePayment(ctx, "peer-a", 1_000_000, "acct-main", "")
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		proof, err := m.ProcessProofRequest(ctx, []domain.SignedPayment{*p})
		if err != nil {
			t.Fatalf("prove %d: %v", i, err)
		}
		proofs = append(proofs, *proof)
	}

	agg, err := m.BulkPaymentProofs(ctx, "addr-a", proofs)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	sig := agg.PublicSignals
	if sig.Amount != 10_000_000 {
		t.Errorf("aggregate amount = %d, want 10000000", sig.Amount)
	}
	if sig.MinNonce != 1 || sig.MaxNonce != 10 {
		t.Errorf("aggregate nonce range = %d-%d, want 1-10", sig.MinNonce, sig.MaxNonce)
	}
	if err := m.prover.Verify(ctx, agg); err != nil {
		t.Errorf("aggregate does not verify: %v", err)
	}

	// One corrupted proof fails the whole batch and names its range.
	proofs[4].Proof = "deadbeef"
	_, err = m.BulkPaymentProofs(ctx, "addr-a", proofs)
	if !errors.Is(err, prover.ErrProofInvalid) {
		t.Fatalf("err = %v, want ErrProofInvalid", err)
	}
	if want := fmt.Sprintf("nonces %d-%d", 5, 5); !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not name range %q", err, want)
	}
}

func TestBulkOddAmountSplit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	addWorker(t, m, "peer-a", "addr-a", 1)

	var proofs []domain.PaymentProof
	for _, amount := range []uint64{3, 4} {
		p, err := m.GeneratePayment(ctx, "peer-a", amount, "acct-main", "")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		proof, err := m.ProcessProofRequest(ctx, []domain.SignedPayment{*p})
		if err != nil {
			t.Fatalf("prove: %v", err)
		}
		proofs = append(proofs, *proof)
	}

	// Odd total must survive the half/remainder split without loss.
	agg, err := m.BulkPaymentProofs(ctx, "addr-a", proofs)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if agg.PublicSignals.Amount != 7 {
		t.Errorf("aggregate amount = %d, want 7", agg.PublicSignals.Amount)
	}
}

func TestBulkRecipientMismatch(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	addWorker(t, m, "peer-a", "addr-a", 1)

	p, err := m.GeneratePayment(ctx, "peer-a", 50, "acct-main", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	proof, err := m.ProcessProofRequest(ctx, []domain.SignedPayment{*p})
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	_, err = m.BulkPaymentProofs(ctx, "addr-someone-else", []domain.PaymentProof{*proof})
	if !errors.Is(err, ErrProofMismatch) {
		t.Fatalf("err = %v, want ErrProofMismatch", err)
	}
}

func TestBulkEmptyBatch(t *testing.T) {
	m := newTestManager(t)
	_, err := m.BulkPaymentProofs(context.Background(), "addr-a", nil)
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("err = %v, want ErrEmptyBatch", err)
	}
}
