package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Foreman/internal/chain"
	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/payments"
	"github.com/shaiso/Foreman/internal/scheduling"
	"github.com/shaiso/Foreman/internal/taskstore"
	"github.com/shaiso/Foreman/internal/telemetry"
	"github.com/shaiso/Foreman/internal/transport"
)

// Default configuration values.
const (
	defaultReconcileInterval = 10 * time.Second
	defaultBacklogBatch      = 10

	// PeerID — адрес manager'а в транспорте.
	PeerID = "manager"
)

// Manager — центральный компонент системы, который:
//   - Принимает workers через транспорт (admission control)
//   - Создаёт tasks и распределяет их по очереди workers
//   - Периодически сверяет активные tasks с дедлайнами (reconcile)
//   - Выписывает подписанные платежи за сданные tasks
//   - Агрегирует платёжные proofs по запросам workers
type Manager struct {
	tasks     *taskstore.TaskStore
	templates *taskstore.TemplateStore
	scheduler *scheduling.Scheduler
	payments  *payments.Manager
	ledger    chain.Ledger
	transport transport.Transport

	// Configuration
	reconcileInterval time.Duration
	payoutSchedule    string

	// Reconcile re-entrancy guard: пропускаем цикл, если предыдущий
	// ещё не завершился.
	reconciling sync.Mutex

	// Lifecycle
	logger     *slog.Logger
	cron       *cron.Cron
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация Manager.
type Config struct {
	Tasks     *taskstore.TaskStore
	Templates *taskstore.TemplateStore
	Scheduler *scheduling.Scheduler
	Payments  *payments.Manager
	Ledger    chain.Ledger
	Transport transport.Transport

	// ReconcileInterval — период сверки активных tasks (default: 10s).
	ReconcileInterval time.Duration

	// PayoutSchedule — cron-выражение для time-based выплат всем
	// подключённым workers. Пустое — выплаты только по запросу.
	PayoutSchedule string

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Manager.
func New(cfg Config) *Manager {
	reconcileInterval := cfg.ReconcileInterval
	if reconcileInterval <= 0 {
		reconcileInterval = defaultReconcileInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		tasks:             cfg.Tasks,
		templates:         cfg.Templates,
		scheduler:         cfg.Scheduler,
		payments:          cfg.Payments,
		ledger:            cfg.Ledger,
		transport:         cfg.Transport,
		reconcileInterval: reconcileInterval,
		payoutSchedule:    cfg.PayoutSchedule,
		logger:            logger,
		now:               time.Now,
	}
}

// Start запускает Manager.
//
// Запускает:
//   - Обработчики входящих сообщений workers
//   - Reconcile горутину для сверки дедлайнов
//   - Cron для периодических выплат (если настроен)
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel

	m.logger.Info("starting manager",
		"reconcile_interval", m.reconcileInterval,
		"payout_schedule", m.payoutSchedule,
	)

	if err := m.registerHandlers(); err != nil {
		cancel()
		return fmt.Errorf("register handlers: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.reconcileLoop(ctx)
	}()

	if m.payoutSchedule != "" {
		m.cron = cron.New()
		_, err := m.cron.AddFunc(m.payoutSchedule, func() {
			m.payoutSweep(ctx)
		})
		if err != nil {
			cancel()
			return fmt.Errorf("parse payout schedule %q: %w", m.payoutSchedule, err)
		}
		m.cron.Start()
	}

	m.logger.Info("manager started")
	return nil
}

// Stop останавливает Manager.
func (m *Manager) Stop() {
	m.stoppedMu.Lock()
	m.stopped = true
	m.stoppedMu.Unlock()

	m.logger.Info("stopping manager...")

	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.wg.Wait()

	m.logger.Info("manager stopped")
}

// IsStopped проверяет, остановлен ли Manager.
func (m *Manager) IsStopped() bool {
	m.stoppedMu.RLock()
	defer m.stoppedMu.RUnlock()
	return m.stopped
}

// Scheduler возвращает планировщик (для API и CLI).
func (m *Manager) Scheduler() *scheduling.Scheduler {
	return m.scheduler
}

// Tasks возвращает хранилище tasks (для API и CLI).
func (m *Manager) Tasks() *taskstore.TaskStore {
	return m.tasks
}

// Templates возвращает хранилище шаблонов (для API и CLI).
func (m *Manager) Templates() *taskstore.TemplateStore {
	return m.templates
}

// Payments возвращает платёжный менеджер (для API и CLI).
func (m *Manager) Payments() *payments.Manager {
	return m.payments
}

// Ledger возвращает подключённый ledger.
func (m *Manager) Ledger() chain.Ledger {
	return m.ledger
}

// CreateTask создаёт task по шаблону и ставит его в работу.
//
// Шаблон обязателен: task без известного шаблона worker не сможет
// выполнить.
func (m *Manager) CreateTask(ctx context.Context, title string, reward uint64, timeLimitSeconds int, templateID string, data map[string]any) (*domain.Task, error) {
	if _, err := m.templates.Get(ctx, templateID); err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:               uuid.New(),
		Title:            title,
		Reward:           reward,
		TimeLimitSeconds: timeLimitSeconds,
		TemplateID:       templateID,
		Data:             data,
	}
	if err := m.tasks.Create(ctx, task, PeerID); err != nil {
		return nil, err
	}

	telemetry.TasksCreated.Inc()
	m.logger.Info("task created",
		"task_id", task.ID,
		"template_id", templateID,
		"reward", reward,
	)

	// Пробуем назначить сразу, не дожидаясь reconcile.
	if err := m.AssignTask(ctx, task.ID.String()); err != nil {
		m.logger.Warn("immediate assignment failed", "task_id", task.ID, "error", err)
	}
	return task, nil
}

// AssignTask назначает task свободному worker'у из очереди.
//
// Отсутствие свободного worker'а — не ошибка: task остаётся
// назначаемым, его подберёт следующий reconcile.
func (m *Manager) AssignTask(ctx context.Context, taskID string) error {
	return m.assignAvoiding(ctx, taskID, "")
}

// assignAvoiding — AssignTask, пропускающий avoidPeer. Используется
// при немедленном перепоручении после отказа: повторное назначение
// тому же worker'у откладывается до следующей сверки.
func (m *Manager) assignAvoiding(ctx context.Context, taskID, avoidPeer string) error {
	task, err := m.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.Status().Assignable() {
		return fmt.Errorf("%w: %s is %s", ErrNotAssignable, taskID, task.Status())
	}

	rec, err := m.scheduler.SelectWorker(ctx)
	if err != nil {
		return fmt.Errorf("select worker: %w", err)
	}
	if rec == nil {
		m.logger.Debug("no eligible worker", "task_id", taskID)
		return nil
	}
	if rec.PeerID == avoidPeer {
		m.scheduler.Requeue(rec.PeerID)
		m.logger.Debug("only the rejecting worker available, deferred", "task_id", taskID)
		return nil
	}

	if _, err := m.tasks.Assign(ctx, taskID, rec.PeerID); err != nil {
		m.scheduler.Requeue(rec.PeerID)
		return err
	}
	if _, err := m.scheduler.Workers().Update(ctx, rec.PeerID, func(w *domain.WorkerRecord) {
		w.TotalTasks++
		w.LastActivity = m.now()
	}); err != nil {
		return err
	}

	msg, err := transport.NewMessage(transport.KindTask, PeerID, &transport.TaskPayload{
		TaskID:           taskID,
		Title:            task.Title,
		Reward:           task.Reward,
		TimeLimitSeconds: task.TimeLimitSeconds,
		TemplateID:       task.TemplateID,
		Data:             task.Data,
	})
	if err != nil {
		return err
	}
	if err := m.transport.Notify(ctx, rec.PeerID, msg); err != nil {
		// Worker недоступен: снимаем назначение и отключаем его,
		// task вернётся в назначаемые.
		m.logger.Warn("task delivery failed", "task_id", taskID, "peer_id", rec.PeerID, "error", err)
		if _, rerr := m.tasks.Reject(ctx, taskID, "delivery failed"); rerr != nil {
			m.logger.Error("revert undelivered assignment", "task_id", taskID, "error", rerr)
		}
		if derr := m.scheduler.DisconnectWorker(ctx, rec.PeerID); derr != nil {
			m.logger.Warn("disconnect unreachable worker", "peer_id", rec.PeerID, "error", derr)
		}
		return nil
	}

	m.scheduler.Requeue(rec.PeerID)
	telemetry.TasksAssigned.Inc()
	m.logger.Info("task assigned", "task_id", taskID, "peer_id", rec.PeerID)
	return nil
}

// ProcessAcceptance фиксирует принятие task worker'ом.
func (m *Manager) ProcessAcceptance(ctx context.Context, taskID, peerID string) error {
	if _, err := m.tasks.Accept(ctx, taskID, peerID); err != nil {
		return err
	}
	_, err := m.scheduler.Workers().Update(ctx, peerID, func(w *domain.WorkerRecord) {
		w.TasksAccepted++
		w.LastActivity = m.now()
	})
	if err != nil {
		return err
	}

	m.logger.Info("task accepted", "task_id", taskID, "peer_id", peerID)
	return nil
}

// ProcessRejection фиксирует отказ worker'а от task и сразу пробует
// перепоручить task другому worker'у.
func (m *Manager) ProcessRejection(ctx context.Context, taskID, peerID, reason string) error {
	task, err := m.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.AssignedTo() != peerID {
		return fmt.Errorf("%w: %s is not assigned to %s", taskstore.ErrInvalidTransition, taskID, peerID)
	}

	if _, err := m.tasks.Reject(ctx, taskID, reason); err != nil {
		return err
	}
	if _, err := m.scheduler.Workers().Update(ctx, peerID, func(w *domain.WorkerRecord) {
		w.TasksRejected++
		w.LastActivity = m.now()
	}); err != nil {
		return err
	}

	telemetry.TasksCompleted.WithLabelValues("rejected").Inc()
	m.logger.Info("task rejected", "task_id", taskID, "peer_id", peerID, "reason", reason)

	if err := m.assignAvoiding(ctx, taskID, peerID); err != nil {
		m.logger.Warn("reassignment failed", "task_id", taskID, "error", err)
	}
	return nil
}

// ProcessSubmission фиксирует сдачу результата. Выплата произойдёт
// в ближайшем reconcile.
func (m *Manager) ProcessSubmission(ctx context.Context, taskID, peerID string, result map[string]any) error {
	if _, err := m.tasks.Submit(ctx, taskID, peerID, result); err != nil {
		return err
	}
	_, err := m.scheduler.Workers().Update(ctx, peerID, func(w *domain.WorkerRecord) {
		w.TasksCompleted++
		w.LastActivity = m.now()
	})
	if err != nil {
		return err
	}

	m.logger.Info("task submitted", "task_id", taskID, "peer_id", peerID)
	return nil
}
