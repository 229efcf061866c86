package manager

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Foreman/internal/chain"
	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/payments"
	"github.com/shaiso/Foreman/internal/prover"
	"github.com/shaiso/Foreman/internal/scheduling"
	"github.com/shaiso/Foreman/internal/store"
	"github.com/shaiso/Foreman/internal/taskstore"
	"github.com/shaiso/Foreman/internal/transport"
)

// testWorker — worker, подключённый к Hub: копит доставленные tasks
// и платежи.
type testWorker struct {
	peerID   string
	ep       *transport.Endpoint
	tasks    chan transport.TaskPayload
	payments chan transport.PaymentPayload
}

func newTestEnv(t *testing.T, paymentAccount string) (*Manager, *transport.Hub) {
	t.Helper()

	st := store.NewMem()
	workers := scheduling.NewWorkerStore(st)
	hub := transport.NewHub()

	seed := make([]byte, ed25519.SeedSize)
	copy(seed, "foreman-manager-test-seed")
	signer := payments.NewSigner(ed25519.NewKeyFromSeed(seed))

	pay := payments.New(payments.Config{
		Workers:        workers,
		Store:          st,
		Signer:         signer,
		Prover:         prover.NewLocal([]byte("test-secret")),
		PaymentAccount: paymentAccount,
	})

	m := New(Config{
		Tasks:     taskstore.New(taskstore.Config{Store: st}),
		Templates: taskstore.NewTemplateStore(st),
		Scheduler: scheduling.New(scheduling.Config{Workers: workers}),
		Payments:  pay,
		Ledger:    chain.NewOffline("claim-prog"),
		Transport: hub.Attach(PeerID),
	})
	if err := m.registerHandlers(); err != nil {
		t.Fatalf("register handlers: %v", err)
	}

	tpl := &domain.Template{ID: "echo", Title: "Echo", CreatedAt: time.Now()}
	if err := m.templates.Put(context.Background(), tpl); err != nil {
		t.Fatalf("put template: %v", err)
	}

	return m, hub
}

func connectWorker(t *testing.T, hub *transport.Hub, peerID string) *testWorker {
	t.Helper()

	w := &testWorker{
		peerID:   peerID,
		ep:       hub.Attach(peerID),
		tasks:    make(chan transport.TaskPayload, 8),
		payments: make(chan transport.PaymentPayload, 8),
	}

	err := w.ep.Register(transport.KindTask, func(_ context.Context, msg *transport.Message) (*transport.Message, error) {
		var payload transport.TaskPayload
		if err := msg.Decode(&payload); err != nil {
			return nil, err
		}
		w.tasks <- payload
		return nil, nil
	})
	if err != nil {
		t.Fatalf("register task handler: %v", err)
	}
	err = w.ep.Register(transport.KindPayment, func(_ context.Context, msg *transport.Message) (*transport.Message, error) {
		var payload transport.PaymentPayload
		if err := msg.Decode(&payload); err != nil {
			return nil, err
		}
		w.payments <- payload
		return nil, nil
	})
	if err != nil {
		t.Fatalf("register payment handler: %v", err)
	}

	msg, _ := transport.NewMessage(transport.KindRequestToWork, peerID, &transport.RequestToWork{
		PeerID:    peerID,
		Recipient: "addr-" + peerID,
		Nonce:     1,
	})
	if _, err := w.ep.Request(context.Background(), PeerID, msg); err != nil {
		t.Fatalf("connect %s: %v", peerID, err)
	}
	return w
}

func (w *testWorker) deliveredTask(t *testing.T) transport.TaskPayload {
	t.Helper()
	select {
	case payload := <-w.tasks:
		return payload
	default:
		t.Fatalf("no task delivered to %s", w.peerID)
		return transport.TaskPayload{}
	}
}

func TestCreateTaskUnknownTemplate(t *testing.T) {
	m, _ := newTestEnv(t, "acct-main")
	_, err := m.CreateTask(context.Background(), "t", 100, 60, "no-such-template", nil)
	if !errors.Is(err, taskstore.ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}
}

func TestTaskLifecyclePaidOut(t *testing.T) {
	ctx := context.Background()
	m, hub := newTestEnv(t, "acct-main")
	w := connectWorker(t, hub, "w1")

	task, err := m.CreateTask(ctx, "echo once", 500, 60, "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Task delivered immediately: a free worker was queued.
	delivered := w.deliveredTask(t)
	if delivered.TaskID != task.ID.String() {
		t.Fatalf("delivered task %s, want %s", delivered.TaskID, task.ID)
	}

	accept, _ := transport.NewMessage(transport.KindTaskAccepted, "w1", &transport.TaskDecision{TaskID: delivered.TaskID, PeerID: "w1"})
	if _, err := w.ep.Request(ctx, PeerID, accept); err != nil {
		t.Fatalf("accept: %v", err)
	}

	done, _ := transport.NewMessage(transport.KindTaskCompleted, "w1", &transport.TaskResult{
		TaskID: delivered.TaskID,
		PeerID: "w1",
		Result: map[string]any{"text": "hi"},
	})
	if _, err := w.ep.Request(ctx, PeerID, done); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Settlement happens on the next sweep.
	m.Reconcile(ctx)

	got, err := m.tasks.Get(ctx, delivered.TaskID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status() != domain.TaskStatusPaid {
		t.Fatalf("status = %s, want PAID", got.Status())
	}

	select {
	case payload := <-w.payments:
		if payload.Payment.Amount != 500 {
			t.Errorf("payment amount = %d, want 500", payload.Payment.Amount)
		}
		if payload.Payment.Nonce != 1 {
			t.Errorf("payment nonce = %d, want 1", payload.Payment.Nonce)
		}
	default:
		t.Fatal("no payment delivered")
	}

	rec, err := m.scheduler.Workers().Get(ctx, "w1")
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if rec.TotalEarned != 500 || rec.TasksCompleted != 1 {
		t.Errorf("worker = earned %d completed %d, want 500/1", rec.TotalEarned, rec.TasksCompleted)
	}
	if rec.Outstanding() != 0 {
		t.Errorf("outstanding = %d, want 0", rec.Outstanding())
	}
}

func TestAcceptTimeoutReassigned(t *testing.T) {
	ctx := context.Background()
	m, hub := newTestEnv(t, "acct-main")
	w1 := connectWorker(t, hub, "w1")
	w2 := connectWorker(t, hub, "w2")

	task, err := m.CreateTask(ctx, "slow accept", 100, 60, "echo", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first := w1.deliveredTask(t)

	// w1 never answers; the sweep past the accept window reclaims the
	// task and hands it to the next worker in the queue.
	m.now = func() time.Time { return time.Now().Add(m.tasks.AcceptWindow() + time.Second) }
	m.Reconcile(ctx)

	second := w2.deliveredTask(t)
	if second.TaskID != first.TaskID || second.TaskID != task.ID.String() {
		t.Fatalf("reassigned task %s, want %s", second.TaskID, task.ID)
	}

	rec, err := m.scheduler.Workers().Get(ctx, "w1")
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if rec.TasksRejected != 1 {
		t.Errorf("w1 rejected = %d, want 1", rec.TasksRejected)
	}
	if rec.Outstanding() != 0 {
		t.Errorf("w1 outstanding = %d, want 0", rec.Outstanding())
	}
}

func TestAcceptTimeoutSkipsTimedOutWorker(t *testing.T) {
	ctx := context.Background()
	m, hub := newTestEnv(t, "acct-main")
	w1 := connectWorker(t, hub, "w1")

	task, err := m.CreateTask(ctx, "slow accept", 100, 60, "echo", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w1.deliveredTask(t)

	// w1 is the only worker, so the reclaimed task has nowhere to go:
	// it must wait for the next sweep instead of bouncing straight
	// back to the worker that just timed out.
	m.now = func() time.Time { return time.Now().Add(m.tasks.AcceptWindow() + time.Second) }
	m.Reconcile(ctx)

	select {
	case got := <-w1.tasks:
		t.Fatalf("task %s re-delivered to the timed-out worker", got.TaskID)
	default:
	}

	stored, err := m.tasks.Get(ctx, task.ID.String())
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if stored.Status() != domain.TaskStatusRejected {
		t.Errorf("status = %s, want %s", stored.Status(), domain.TaskStatusRejected)
	}

	rec, err := m.scheduler.Workers().Get(ctx, "w1")
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if rec.TasksRejected != 1 {
		t.Errorf("w1 rejected = %d, want 1", rec.TasksRejected)
	}
}

func TestWorkerRejectionReassigns(t *testing.T) {
	ctx := context.Background()
	m, hub := newTestEnv(t, "acct-main")
	w1 := connectWorker(t, hub, "w1")
	w2 := connectWorker(t, hub, "w2")

	if _, err := m.CreateTask(ctx, "picky", 100, 60, "echo", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	delivered := w1.deliveredTask(t)

	reject, _ := transport.NewMessage(transport.KindTaskRejected, "w1", &transport.TaskDecision{
		TaskID: delivered.TaskID,
		PeerID: "w1",
		Reason: "not my kind of work",
	})
	if _, err := w1.ep.Request(ctx, PeerID, reject); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// Rejection immediately retries assignment with the next worker.
	second := w2.deliveredTask(t)
	if second.TaskID != delivered.TaskID {
		t.Fatalf("reassigned %s, want %s", second.TaskID, delivered.TaskID)
	}
}

func TestSettleDeferredWithoutPaymentAccount(t *testing.T) {
	ctx := context.Background()
	m, hub := newTestEnv(t, "")
	w := connectWorker(t, hub, "w1")

	if _, err := m.CreateTask(ctx, "unpaid", 100, 60, "echo", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	delivered := w.deliveredTask(t)

	accept, _ := transport.NewMessage(transport.KindTaskAccepted, "w1", &transport.TaskDecision{TaskID: delivered.TaskID, PeerID: "w1"})
	if _, err := w.ep.Request(ctx, PeerID, accept); err != nil {
		t.Fatalf("accept: %v", err)
	}
	done, _ := transport.NewMessage(transport.KindTaskCompleted, "w1", &transport.TaskResult{TaskID: delivered.TaskID, PeerID: "w1"})
	if _, err := w.ep.Request(ctx, PeerID, done); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// No payment account: the task must survive the sweep untouched,
	// ready for retry once the account is configured.
	m.Reconcile(ctx)

	got, err := m.tasks.Get(ctx, delivered.TaskID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status() != domain.TaskStatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", got.Status())
	}
}

func TestPendingTaskWithoutWorkers(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestEnv(t, "acct-main")

	task, err := m.CreateTask(ctx, "nobody home", 100, 60, "echo", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	m.Reconcile(ctx)

	got, err := m.tasks.Get(ctx, task.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status() != domain.TaskStatusCreated {
		t.Fatalf("status = %s, want CREATED", got.Status())
	}
}

func TestPayoutRequestOverTransport(t *testing.T) {
	ctx := context.Background()
	m, hub := newTestEnv(t, "acct-main")
	w := connectWorker(t, hub, "w1")

	// Rewind lastPayout so some uptime has accrued.
	start := time.Now().Add(-2 * time.Minute)
	if _, err := m.scheduler.Workers().Update(ctx, "w1", func(rec *domain.WorkerRecord) {
		rec.LastPayout = start
	}); err != nil {
		t.Fatalf("update worker: %v", err)
	}

	req, _ := transport.NewMessage(transport.KindPayoutRequest, "w1", &transport.PayoutRequest{PeerID: "w1"})
	resp, err := w.ep.Request(ctx, PeerID, req)
	if err != nil {
		t.Fatalf("payout request: %v", err)
	}

	var payload transport.PaymentPayload
	if err := resp.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Payment.Amount < 120 {
		t.Errorf("amount = %d, want >= 120 (2 minutes at rate 1)", payload.Payment.Amount)
	}
	if !payments.VerifyPayment(&payload.Payment) {
		t.Error("payment signature does not verify")
	}
}
