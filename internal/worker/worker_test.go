package worker

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/shaiso/Foreman/internal/chain"
	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/manager"
	"github.com/shaiso/Foreman/internal/payments"
	"github.com/shaiso/Foreman/internal/prover"
	"github.com/shaiso/Foreman/internal/scheduling"
	"github.com/shaiso/Foreman/internal/store"
	"github.com/shaiso/Foreman/internal/taskstore"
	"github.com/shaiso/Foreman/internal/transport"
)

func newEnv(t *testing.T) (*manager.Manager, *transport.Hub) {
	t.Helper()

	st := store.NewMem()
	workers := scheduling.NewWorkerStore(st)
	hub := transport.NewHub()

	seed := make([]byte, ed25519.SeedSize)
	copy(seed, "foreman-worker-test-seed")

	m := manager.New(manager.Config{
		Tasks:     taskstore.New(taskstore.Config{Store: st}),
		Templates: taskstore.NewTemplateStore(st),
		Scheduler: scheduling.New(scheduling.Config{Workers: workers}),
		Payments: payments.New(payments.Config{
			Workers:        workers,
			Store:          st,
			Signer:         payments.NewSigner(ed25519.NewKeyFromSeed(seed)),
			Prover:         prover.NewLocal([]byte("test-secret")),
			PaymentAccount: "acct-main",
		}),
		Ledger:    chain.NewOffline("claim-prog"),
		Transport: hub.Attach(manager.PeerID),
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(m.Stop)

	tpl := &domain.Template{ID: "echo", Title: "Echo", CreatedAt: time.Now()}
	if err := m.Templates().Put(context.Background(), tpl); err != nil {
		t.Fatalf("put template: %v", err)
	}

	return m, hub
}

func TestWorkerEarnsPaymentForTask(t *testing.T) {
	ctx := context.Background()
	m, hub := newEnv(t)

	w := New(Config{
		PeerID:    "w1",
		Recipient: "addr-w1",
		Transport: hub.Attach("w1"),
	})
	if err := w.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if w.ManagerKey() == "" {
		t.Fatal("manager key not received on admission")
	}

	// Delivery, acceptance, execution and submission all run inline
	// over the in-process hub.
	task, err := m.CreateTask(ctx, "echo it", 250, 60, "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := m.Tasks().Get(ctx, task.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status() != domain.TaskStatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", got.Status())
	}

	// Settlement happens on the sweep.
	m.Reconcile(ctx)

	received := w.Payments()
	if len(received) != 1 {
		t.Fatalf("payments received = %d, want 1", len(received))
	}
	if received[0].Amount != 250 {
		t.Errorf("amount = %d, want 250", received[0].Amount)
	}
	if w.Nonce() != received[0].Nonce+1 {
		t.Errorf("nonce = %d, want %d", w.Nonce(), received[0].Nonce+1)
	}
}

func TestWorkerRejectsUnknownTemplate(t *testing.T) {
	ctx := context.Background()
	m, hub := newEnv(t)

	tpl := &domain.Template{ID: "exotic", Title: "Exotic", CreatedAt: time.Now()}
	if err := m.Templates().Put(ctx, tpl); err != nil {
		t.Fatalf("put template: %v", err)
	}

	w := New(Config{PeerID: "w1", Recipient: "addr-w1", Transport: hub.Attach("w1")})
	if err := w.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	task, err := m.CreateTask(ctx, "no executor", 100, 60, "exotic", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := m.Tasks().Get(ctx, task.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status() != domain.TaskStatusRejected {
		t.Fatalf("status = %s, want REJECTED", got.Status())
	}

	rec, err := m.Scheduler().Workers().Get(ctx, "w1")
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if rec.TasksRejected != 1 {
		t.Errorf("rejected = %d, want 1", rec.TasksRejected)
	}
}

func TestWorkerProofRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, hub := newEnv(t)

	w := New(Config{PeerID: "w1", Recipient: "addr-w1", Transport: hub.Attach("w1")})
	if err := w.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Earn a few payments, then fold them into proofs.
	for i := 0; i < 3; i++ {
		if _, err := m.CreateTask(ctx, "echo", 100, 60, "echo", nil); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	m.Reconcile(ctx)

	if got := len(w.Payments()); got != 3 {
		t.Fatalf("payments = %d, want 3", got)
	}

	proof, err := w.RequestProof(ctx)
	if err != nil {
		t.Fatalf("request proof: %v", err)
	}
	if proof.PublicSignals.Amount != 300 {
		t.Errorf("proof amount = %d, want 300", proof.PublicSignals.Amount)
	}

	agg, claim, err := w.RequestBulkProof(ctx, []domain.PaymentProof{*proof})
	if err != nil {
		t.Fatalf("bulk proof: %v", err)
	}
	if agg.PublicSignals.Amount != 300 {
		t.Errorf("aggregate amount = %d, want 300", agg.PublicSignals.Amount)
	}

	// The manager attaches a ready claim instruction to the aggregate.
	if claim == nil {
		t.Fatal("no claim instruction attached to aggregate proof")
	}
	if claim.Args.Amount != 300 {
		t.Errorf("claim amount = %d, want 300", claim.Args.Amount)
	}
	if claim.Program != "claim-prog" {
		t.Errorf("claim program = %q, want claim-prog", claim.Program)
	}
	if claim.Args.MinNonce != agg.PublicSignals.MinNonce || claim.Args.MaxNonce != agg.PublicSignals.MaxNonce {
		t.Errorf("claim nonce range %d-%d does not match proof %d-%d",
			claim.Args.MinNonce, claim.Args.MaxNonce,
			agg.PublicSignals.MinNonce, agg.PublicSignals.MaxNonce)
	}
}

func TestWorkerPayoutRequest(t *testing.T) {
	ctx := context.Background()
	m, hub := newEnv(t)

	w := New(Config{PeerID: "w1", Recipient: "addr-w1", Transport: hub.Attach("w1")})
	if err := w.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	start := time.Now().Add(-time.Minute)
	if _, err := m.Scheduler().Workers().Update(ctx, "w1", func(rec *domain.WorkerRecord) {
		rec.LastPayout = start
	}); err != nil {
		t.Fatalf("update worker: %v", err)
	}

	p, err := w.RequestPayout(ctx)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if p.Amount < 60 {
		t.Errorf("amount = %d, want >= 60", p.Amount)
	}
	if len(w.Payments()) != 1 {
		t.Errorf("payments = %d, want 1", len(w.Payments()))
	}
}

func TestWorkerPayoutRequestNoUptime(t *testing.T) {
	ctx := context.Background()
	_, hub := newEnv(t)

	w := New(Config{PeerID: "w1", Recipient: "addr-w1", Transport: hub.Attach("w1")})
	if err := w.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Fresh connection, no uptime accrued yet: the manager answers
	// without a payment and the worker treats that as "nothing due".
	p, err := w.RequestPayout(ctx)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if p != nil {
		t.Fatalf("payment = %+v, want none", p)
	}
	if len(w.Payments()) != 0 {
		t.Errorf("payments = %d, want 0", len(w.Payments()))
	}
}
