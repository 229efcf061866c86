package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Foreman/internal/chain"
	"github.com/shaiso/Foreman/internal/manager"
	"github.com/shaiso/Foreman/internal/payments"
	"github.com/shaiso/Foreman/internal/prover"
	"github.com/shaiso/Foreman/internal/scheduling"
	"github.com/shaiso/Foreman/internal/store"
	"github.com/shaiso/Foreman/internal/taskstore"
	"github.com/shaiso/Foreman/internal/transport"
)

func newTestMux(t *testing.T) (*http.ServeMux, *manager.Manager) {
	t.Helper()

	st := store.NewMem()
	workers := scheduling.NewWorkerStore(st)
	hub := transport.NewHub()

	seed := make([]byte, ed25519.SeedSize)
	copy(seed, "foreman-api-test-seed")

	m := manager.New(manager.Config{
		Tasks:     taskstore.New(taskstore.Config{Store: st}),
		Templates: taskstore.NewTemplateStore(st),
		Scheduler: scheduling.New(scheduling.Config{
			Workers: workers,
			Codes:   scheduling.NewAccessCodeStore(st),
		}),
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

	h := NewHandler(Config{Manager: m, Logger: slog.Default()})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux, m
}

func do(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetTask(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/templates", CreateTemplateRequest{ID: "echo", Title: "Echo"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template: status %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, mux, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{
		Title:            "do it",
		Reward:           100,
		TimeLimitSeconds: 60,
		TemplateID:       "echo",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: status %d: %s", rec.Code, rec.Body)
	}

	var created struct {
		Data TaskResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Data.Status != "CREATED" {
		t.Errorf("status = %s, want CREATED", created.Data.Status)
	}

	rec = do(t, mux, http.MethodGet, "/api/v1/tasks/"+created.Data.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get task: status %d", rec.Code)
	}

	var got struct {
		Data TaskResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Data.Events) != 1 {
		t.Errorf("events = %d, want 1 (create)", len(got.Data.Events))
	}
}

func TestCreateTaskValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{Title: "no template", TimeLimitSeconds: 60})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing template: status %d, want 400", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{
		Title:            "ghost",
		TimeLimitSeconds: 60,
		TemplateID:       "no-such",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown template: status %d, want 404", rec.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := do(t, mux, http.MethodGet, "/api/v1/tasks/2f3c7e1a-0000-0000-0000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestIssueAccessCode(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/accesscodes", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Data AccessCodeResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Code == "" {
		t.Error("empty access code")
	}
}

func TestBanWorker(t *testing.T) {
	mux, m := newTestMux(t)
	ctx := context.Background()

	if _, err := m.Scheduler().ConnectWorker(ctx, "w1", "addr-w1", 0, ""); err != nil {
		t.Fatalf("connect: %v", err)
	}

	rec := do(t, mux, http.MethodPut, "/api/v1/workers/w1/banned", SetBannedRequest{Banned: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Data WorkerResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.Banned {
		t.Error("worker not banned in response")
	}
}

func TestMaintenanceToggle(t *testing.T) {
	mux, m := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/api/v1/maintenance", SetMaintenanceRequest{Enabled: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !m.Scheduler().InMaintenance() {
		t.Error("maintenance mode not enabled")
	}
}

func TestGetBalance(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/balance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Data BalanceResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Account != "acct-main" {
		t.Errorf("account = %q, want acct-main", resp.Data.Account)
	}
	// The offline ledger always reports zero.
	if resp.Data.Balance != 0 {
		t.Errorf("balance = %d, want 0", resp.Data.Balance)
	}
}
