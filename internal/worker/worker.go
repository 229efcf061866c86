package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Foreman/internal/chain"
	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/payments"
	"github.com/shaiso/Foreman/internal/transport"
)

// Ошибки worker'а.
var (
	// ErrUnknownTemplate — на task нет исполнителя.
	ErrUnknownTemplate = errors.New("no executor for template")

	// ErrNotConnected — операция до успешного подключения.
	ErrNotConnected = errors.New("worker not connected")

	// ErrBadSignature — платёж не прошёл проверку подписи.
	ErrBadSignature = errors.New("payment signature invalid")
)

// Executor выполняет task по шаблону.
type Executor func(ctx context.Context, task *transport.TaskPayload) (map[string]any, error)

// Worker — peer, выполняющий tasks за плату.
//
// Подключается к manager'у через транспорт, принимает назначенные
// tasks, исполняет их зарегистрированными executors и копит
// подписанные платежи локально.
type Worker struct {
	peerID     string
	recipient  string
	accessCode string
	manager    string

	transport transport.Transport
	executors map[string]Executor
	logger    *slog.Logger

	mu         sync.RWMutex
	connected  bool
	managerKey string
	account    string
	nonce      uint64
	received   []domain.SignedPayment
}

// Config — конфигурация Worker.
type Config struct {
	// PeerID — идентификатор peer'а в транспорте.
	PeerID string

	// Recipient — платёжный адрес worker'а.
	Recipient string

	// AccessCode — одноразовый код для первого подключения.
	AccessCode string

	// ManagerPeerID — адрес manager'а (default: "manager").
	ManagerPeerID string

	// Transport — подключённый транспорт worker'а.
	Transport transport.Transport

	// Logger
	Logger *slog.Logger
}

// New создаёт Worker c executor'ом echo по умолчанию.
func New(cfg Config) *Worker {
	manager := cfg.ManagerPeerID
	if manager == "" {
		manager = "manager"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Worker{
		peerID:     cfg.PeerID,
		recipient:  cfg.Recipient,
		accessCode: cfg.AccessCode,
		manager:    manager,
		transport:  cfg.Transport,
		executors:  make(map[string]Executor),
		logger:     logger,
	}
	w.executors["echo"] = echoExecutor
	return w
}

// RegisterExecutor ставит исполнителя на шаблон.
func (w *Worker) RegisterExecutor(templateID string, exec Executor) {
	w.executors[templateID] = exec
}

// Connect регистрирует обработчики и просит у manager'а допуск.
func (w *Worker) Connect(ctx context.Context) error {
	if err := w.transport.Register(transport.KindTask, w.handleTask); err != nil {
		return err
	}
	if err := w.transport.Register(transport.KindPayment, w.handlePayment); err != nil {
		return err
	}

	msg, err := transport.NewMessage(transport.KindRequestToWork, w.peerID, &transport.RequestToWork{
		PeerID:     w.peerID,
		Recipient:  w.recipient,
		AccessCode: w.accessCode,
		Nonce:      w.Nonce(),
	})
	if err != nil {
		return err
	}

	resp, err := w.transport.Request(ctx, w.manager, msg)
	if err != nil {
		return fmt.Errorf("request to work: %w", err)
	}

	var admitted transport.WorkAdmitted
	if err := resp.Decode(&admitted); err != nil {
		return err
	}

	w.mu.Lock()
	w.connected = true
	w.managerKey = admitted.ManagerKey
	w.account = admitted.PaymentAccount
	w.nonce = admitted.Nonce
	w.mu.Unlock()

	w.logger.Info("admitted to work",
		"manager", w.manager,
		"payment_account", admitted.PaymentAccount,
		"nonce", admitted.Nonce,
	)
	return nil
}

// handleTask — принять назначенный task, выполнить и сдать результат.
//
// Task без известного executor'а отклоняется сразу, не съедая окно
// принятия.
func (w *Worker) handleTask(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	var task transport.TaskPayload
	if err := msg.Decode(&task); err != nil {
		return nil, err
	}
	logger := w.logger.With("task_id", task.TaskID, "template_id", task.TemplateID)

	exec, ok := w.executors[task.TemplateID]
	if !ok {
		logger.Warn("rejecting task", "reason", ErrUnknownTemplate)
		return nil, w.decide(ctx, transport.KindTaskRejected, task.TaskID, ErrUnknownTemplate.Error())
	}

	if err := w.decide(ctx, transport.KindTaskAccepted, task.TaskID, ""); err != nil {
		return nil, err
	}
	logger.Info("task accepted")

	execCtx := ctx
	if task.TimeLimitSeconds > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeLimitSeconds)*time.Second)
		defer cancel()
	}

	result, err := exec(execCtx, &task)
	if err != nil {
		logger.Warn("execution failed", "error", err)
		return nil, w.decide(ctx, transport.KindTaskRejected, task.TaskID, err.Error())
	}

	done, err := transport.NewMessage(transport.KindTaskCompleted, w.peerID, &transport.TaskResult{
		TaskID: task.TaskID,
		PeerID: w.peerID,
		Result: result,
	})
	if err != nil {
		return nil, err
	}
	if err := w.transport.Notify(ctx, w.manager, done); err != nil {
		return nil, fmt.Errorf("submit result: %w", err)
	}

	logger.Info("task submitted")
	return nil, nil
}

// decide отправляет manager'у решение по task'у.
func (w *Worker) decide(ctx context.Context, kind transport.Kind, taskID, reason string) error {
	msg, err := transport.NewMessage(kind, w.peerID, &transport.TaskDecision{
		TaskID: taskID,
		PeerID: w.peerID,
		Reason: reason,
	})
	if err != nil {
		return err
	}
	return w.transport.Notify(ctx, w.manager, msg)
}

// handlePayment — принять и сохранить подписанный платёж.
//
// Платёж с плохой подписью или чужим nonce отбрасывается: такой
// платёж не удастся включить в proof.
func (w *Worker) handlePayment(_ context.Context, msg *transport.Message) (*transport.Message, error) {
	var payload transport.PaymentPayload
	if err := msg.Decode(&payload); err != nil {
		return nil, err
	}
	if err := w.acceptPayment(payload.Payment); err != nil {
		return nil, err
	}
	return nil, nil
}

// acceptPayment проверяет и запоминает платёж.
func (w *Worker) acceptPayment(p domain.SignedPayment) error {
	if !payments.VerifyPayment(&p) {
		return fmt.Errorf("%w: payment %s", ErrBadSignature, p.ID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if p.Nonce < w.nonce {
		// Повторная доставка уже учтённого платежа.
		w.logger.Debug("stale payment ignored", "payment_id", p.ID, "nonce", p.Nonce)
		return nil
	}
	w.received = append(w.received, p)
	w.nonce = p.Nonce + 1

	w.logger.Info("payment received",
		"payment_id", p.ID,
		"amount", p.Amount,
		"nonce", p.Nonce,
	)
	return nil
}

// RequestPayout просит time-based выплату за время онлайна.
func (w *Worker) RequestPayout(ctx context.Context) (*domain.SignedPayment, error) {
	if !w.isConnected() {
		return nil, ErrNotConnected
	}

	msg, err := transport.NewMessage(transport.KindPayoutRequest, w.peerID, &transport.PayoutRequest{PeerID: w.peerID})
	if err != nil {
		return nil, err
	}
	resp, err := w.transport.Request(ctx, w.manager, msg)
	if err != nil {
		return nil, err
	}
	if resp.Kind == transport.KindAck {
		// Онлайна ещё не накопилось, платёж не выпущен.
		return nil, nil
	}

	var payload transport.PaymentPayload
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}
	if err := w.acceptPayment(payload.Payment); err != nil {
		return nil, err
	}
	return &payload.Payment, nil
}

// RequestProof просит proof над всеми накопленными платежами.
func (w *Worker) RequestProof(ctx context.Context) (*domain.PaymentProof, error) {
	if !w.isConnected() {
		return nil, ErrNotConnected
	}

	msg, err := transport.NewMessage(transport.KindProofRequest, w.peerID, &transport.ProofRequest{
		PeerID:   w.peerID,
		Payments: w.Payments(),
	})
	if err != nil {
		return nil, err
	}
	resp, err := w.transport.Request(ctx, w.manager, msg)
	if err != nil {
		return nil, err
	}

	var payload transport.ProofResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}
	return &payload.Proof, nil
}

// RequestBulkProof просит агрегировать набор proof'ов в один.
// Вместе с агрегатом manager возвращает claim-инструкцию для
// самостоятельного зачисления в ledger.
func (w *Worker) RequestBulkProof(ctx context.Context, proofs []domain.PaymentProof) (*domain.PaymentProof, *chain.Instruction, error) {
	if !w.isConnected() {
		return nil, nil, ErrNotConnected
	}

	msg, err := transport.NewMessage(transport.KindBulkProofRequest, w.peerID, &transport.BulkProofRequest{
		PeerID:    w.peerID,
		Recipient: w.recipient,
		Proofs:    proofs,
	})
	if err != nil {
		return nil, nil, err
	}
	resp, err := w.transport.Request(ctx, w.manager, msg)
	if err != nil {
		return nil, nil, err
	}

	var payload transport.ProofResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, nil, err
	}
	return &payload.Proof, payload.Claim, nil
}

// Payments возвращает копию накопленных платежей.
func (w *Worker) Payments() []domain.SignedPayment {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.SignedPayment, len(w.received))
	copy(out, w.received)
	return out
}

// Nonce возвращает следующий ожидаемый nonce.
func (w *Worker) Nonce() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.nonce
}

// ManagerKey возвращает ключ manager'а, полученный при подключении.
func (w *Worker) ManagerKey() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.managerKey
}

func (w *Worker) isConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// echoExecutor — исполнитель по умолчанию: возвращает входные данные.
func echoExecutor(_ context.Context, task *transport.TaskPayload) (map[string]any, error) {
	if task.Data == nil {
		return map[string]any{}, nil
	}
	return task.Data, nil
}
