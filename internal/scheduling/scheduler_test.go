package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/store"
)

func newScheduler(t *testing.T, requireCodes bool) (*Scheduler, *store.Mem) {
	t.Helper()
	mem := store.NewMem()
	s := New(Config{
		Workers:            NewWorkerStore(mem),
		Codes:              NewAccessCodeStore(mem),
		RequireAccessCodes: requireCodes,
	})
	return s, mem
}

func TestQueue_AddRemoveOrder(t *testing.T) {
	q := NewQueue()

	for _, p := range []string{"a", "b", "c"} {
		if err := q.AddPeer(p); err != nil {
			t.Fatalf("add %s: %v", p, err)
		}
	}

	if err := q.AddPeer("a"); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("expected ErrAlreadyQueued, got %v", err)
	}

	q.RemovePeer("b")
	got := q.Snapshot()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("expected [a c], got %v", got)
	}

	// Removing a missing peer is a no-op
	q.RemovePeer("b")
	if q.Len() != 2 {
		t.Errorf("expected len 2, got %d", q.Len())
	}
}

func TestQueue_DequeueToTail(t *testing.T) {
	q := NewQueue()
	_ = q.AddPeer("a")
	_ = q.AddPeer("b")
	_ = q.AddPeer("c")

	q.DequeuePeer("a")
	got := q.Snapshot()
	if got[0] != "b" || got[1] != "c" || got[2] != "a" {
		t.Errorf("expected [b c a], got %v", got)
	}
}

func TestConnectWorker_New(t *testing.T) {
	s, _ := newScheduler(t, false)
	ctx := context.Background()

	rec, err := s.ConnectWorker(ctx, "w1", "recipient-1", 7, "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if rec.Nonce != 7 {
		t.Errorf("nonce should start at the supplied value, got %d", rec.Nonce)
	}
	if !s.Queue().Contains("w1") {
		t.Error("worker should be queued after connect")
	}
	if rec.LastActivity.IsZero() || rec.LastPayout.IsZero() {
		t.Error("timestamps should be set on connect")
	}
}

func TestConnectWorker_DoubleConnect(t *testing.T) {
	s, _ := newScheduler(t, false)
	ctx := context.Background()

	if _, err := s.ConnectWorker(ctx, "w1", "r", 0, ""); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if _, err := s.ConnectWorker(ctx, "w1", "r", 0, ""); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("expected ErrAlreadyQueued, got %v", err)
	}
}

func TestConnectWorker_AccessCodes(t *testing.T) {
	s, _ := newScheduler(t, true)
	ctx := context.Background()

	// Unknown worker without a code is rejected
	if _, err := s.ConnectWorker(ctx, "w1", "r", 0, ""); !errors.Is(err, ErrAccessCodeRequired) {
		t.Fatalf("expected ErrAccessCodeRequired, got %v", err)
	}

	// With a valid unused code the record is created and marked redeemed
	code, err := s.codes.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec, err := s.ConnectWorker(ctx, "w1", "r", 0, code.Code)
	if err != nil {
		t.Fatalf("connect with code: %v", err)
	}
	if !rec.AccessCodeRedeemed {
		t.Error("record should be marked accessCodeRedeemed")
	}

	// The same code cannot be redeemed by a second worker
	if _, err := s.ConnectWorker(ctx, "w2", "r", 0, code.Code); !errors.Is(err, ErrAccessCodeInvalid) {
		t.Errorf("expected ErrAccessCodeInvalid for reused code, got %v", err)
	}

	// A failed redeem leaves no worker record behind (atomic connect)
	if _, err := s.workers.Get(ctx, "w2"); !errors.Is(err, ErrWorkerNotFound) {
		t.Errorf("w2 record should not exist after failed connect, got %v", err)
	}
}

func TestConnectWorker_Banned(t *testing.T) {
	s, _ := newScheduler(t, false)
	ctx := context.Background()

	_, _ = s.ConnectWorker(ctx, "w1", "r", 0, "")
	_ = s.DisconnectWorker(ctx, "w1")
	_, _ = s.workers.Update(ctx, "w1", func(rec *domain.WorkerRecord) { rec.Banned = true })

	if _, err := s.ConnectWorker(ctx, "w1", "r", 0, ""); !errors.Is(err, ErrWorkerBanned) {
		t.Errorf("expected ErrWorkerBanned, got %v", err)
	}
}

func TestConnectWorker_Maintenance(t *testing.T) {
	s, _ := newScheduler(t, false)
	ctx := context.Background()

	// Admin record created ahead of time
	admin := &domain.WorkerRecord{PeerID: "admin", IsAdmin: true}
	_ = s.workers.Put(ctx, admin)

	s.SetMaintenance(true)

	if _, err := s.ConnectWorker(ctx, "w1", "r", 0, ""); !errors.Is(err, ErrMaintenance) {
		t.Errorf("expected ErrMaintenance for regular worker, got %v", err)
	}
	if _, err := s.ConnectWorker(ctx, "admin", "r", 0, ""); err != nil {
		t.Errorf("admin should connect during maintenance: %v", err)
	}
}

func TestSelectWorker_SkipsBusy(t *testing.T) {
	s, _ := newScheduler(t, false)
	ctx := context.Background()

	// Queue [a, b, c]; a and b are busy (>= 3 outstanding tasks)
	for _, p := range []string{"a", "b", "c"} {
		if _, err := s.ConnectWorker(ctx, p, "r", 0, ""); err != nil {
			t.Fatalf("connect %s: %v", p, err)
		}
	}
	for _, p := range []string{"a", "b"} {
		_, _ = s.workers.Update(ctx, p, func(rec *domain.WorkerRecord) {
			rec.TotalTasks = 3
		})
	}

	rec, err := s.SelectWorker(ctx)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if rec == nil || rec.PeerID != "c" {
		t.Fatalf("expected c, got %+v", rec)
	}

	// c removed, a and b keep their positions
	got := s.Queue().Snapshot()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}

	// Everyone left is busy: nil, no error
	rec, err = s.SelectWorker(ctx)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if rec != nil {
		t.Errorf("expected no candidate, got %+v", rec)
	}
}

func TestSelectWorker_EmptyQueue(t *testing.T) {
	s, _ := newScheduler(t, false)

	rec, err := s.SelectWorker(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil on empty queue, got %+v", rec)
	}
}

func TestDisconnectWorker_Idempotent(t *testing.T) {
	s, _ := newScheduler(t, false)
	ctx := context.Background()

	_, _ = s.ConnectWorker(ctx, "w1", "r", 0, "")

	if err := s.DisconnectWorker(ctx, "w1"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if s.Queue().Contains("w1") {
		t.Error("worker should be removed from the queue")
	}

	// Second disconnect is a no-op
	if err := s.DisconnectWorker(ctx, "w1"); err != nil {
		t.Errorf("disconnect should be idempotent: %v", err)
	}
}
