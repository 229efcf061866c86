package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/payments"
	"github.com/shaiso/Foreman/internal/telemetry"
	"github.com/shaiso/Foreman/internal/transport"
)

// Причины принудительных reject'ов.
const (
	reasonAcceptTimeout = "worker took too long to accept/reject"
	reasonWorkTimeout   = "task time limit exceeded"
)

// reconcileLoop — цикл периодической сверки активных tasks.
func (m *Manager) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(m.reconcileInterval)
	defer ticker.Stop()

	// Первая сверка сразу при старте (подхватываем tasks, назначенные
	// до рестарта).
	m.Reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reconcile(ctx)
		}
	}
}

// Reconcile выполняет один проход по активным tasks: двигает
// просроченные, выплачивает сданные, назначает свободные и
// поднимает backlog.
//
// Повторный вход пропускается: затянувшаяся сверка не должна
// накладываться на следующую.
func (m *Manager) Reconcile(ctx context.Context) {
	if !m.reconciling.TryLock() {
		m.logger.Debug("reconcile already running, skipping")
		return
	}
	defer m.reconciling.Unlock()

	started := m.now()

	tasks, err := m.tasks.ListActive(ctx, 0, 0)
	if err != nil {
		m.logger.Error("list active tasks", "error", err)
		return
	}

	for i := range tasks {
		task := &tasks[i]
		if err := m.reconcileTask(ctx, task); err != nil {
			// Ошибка одного task не прерывает сверку остальных.
			m.logger.Error("reconcile task",
				"task_id", task.ID,
				"status", task.Status(),
				"error", err,
			)
		}
	}

	if n, err := m.tasks.PromoteBacklog(ctx, defaultBacklogBatch); err != nil {
		m.logger.Error("promote backlog", "error", err)
	} else if n > 0 {
		m.logger.Info("backlog promoted", "count", n)
	}

	telemetry.ActiveTasks.Set(float64(len(tasks)))
	telemetry.QueuedWorkers.Set(float64(m.scheduler.Queue().Len()))
	telemetry.ReconcileDuration.Observe(m.now().Sub(started).Seconds())
}

// reconcileTask сверяет один task по его производному статусу.
func (m *Manager) reconcileTask(ctx context.Context, task *domain.Task) error {
	id := task.ID.String()
	last := task.LastEvent()

	switch task.Status() {
	case domain.TaskStatusCreated, domain.TaskStatusRejected:
		return m.AssignTask(ctx, id)

	case domain.TaskStatusAssigned:
		// Worker не ответил за окно принятия: снимаем назначение.
		if m.now().Sub(last.Timestamp) < m.tasks.AcceptWindow() {
			return nil
		}
		return m.forceReject(ctx, id, task.AssignedTo(), reasonAcceptTimeout, false)

	case domain.TaskStatusAccepted:
		if m.now().Sub(last.Timestamp) < task.TimeLimit() {
			return nil
		}
		return m.forceReject(ctx, id, task.AcceptedBy(), reasonWorkTimeout, true)

	case domain.TaskStatusSubmitted:
		return m.settle(ctx, task)
	}
	return nil
}

// forceReject снимает task с worker'а по таймауту и пробует
// перепоручить его.
func (m *Manager) forceReject(ctx context.Context, taskID, peerID, reason string, accepted bool) error {
	var err error
	if accepted {
		_, err = m.tasks.RejectAccepted(ctx, taskID, reason)
	} else {
		_, err = m.tasks.Reject(ctx, taskID, reason)
	}
	if err != nil {
		return err
	}

	if _, err := m.scheduler.Workers().Update(ctx, peerID, func(w *domain.WorkerRecord) {
		w.TasksRejected++
	}); err != nil {
		return err
	}

	telemetry.TasksCompleted.WithLabelValues("rejected").Inc()
	m.logger.Warn("task reclaimed from worker",
		"task_id", taskID,
		"peer_id", peerID,
		"reason", reason,
	)

	// Перепоручаем кому угодно, кроме только что просрочившего
	// worker'а: он получит шанс не раньше следующей сверки.
	return m.assignAvoiding(ctx, taskID, peerID)
}

// settle выписывает платёж за сданный task и закрывает его.
//
// Отсутствие платёжного аккаунта — конфигурационная проблема, а не
// повод терять task: он остаётся сданным до следующей сверки.
func (m *Manager) settle(ctx context.Context, task *domain.Task) error {
	id := task.ID.String()
	peerID := task.AcceptedBy()

	payment, err := m.payments.GeneratePayment(ctx, peerID, task.Reward, m.payments.PaymentAccount(), "task "+id)
	if err != nil {
		if errors.Is(err, payments.ErrPaymentAccountMissing) {
			m.logger.Warn("payment account not configured, payout deferred", "task_id", id)
			return nil
		}
		return fmt.Errorf("generate payment: %w", err)
	}

	if _, err := m.tasks.Payout(ctx, id, payment); err != nil {
		return fmt.Errorf("record payout: %w", err)
	}
	if _, err := m.scheduler.Workers().Update(ctx, peerID, func(w *domain.WorkerRecord) {
		w.TotalEarned += payment.Amount
	}); err != nil {
		return err
	}

	telemetry.TasksCompleted.WithLabelValues("paid").Inc()
	telemetry.PaymentsIssued.Inc()
	telemetry.PaymentAmount.Observe(float64(payment.Amount))
	m.logger.Info("task paid out",
		"task_id", id,
		"peer_id", peerID,
		"payment_id", payment.ID,
		"amount", payment.Amount,
	)

	// Платёж уже персистентен: сбой доставки терпим, worker заберёт
	// его повторным запросом.
	msg, err := transport.NewMessage(transport.KindPayment, PeerID, &transport.PaymentPayload{
		TaskID:  id,
		Payment: *payment,
	})
	if err != nil {
		return err
	}
	if err := m.transport.Notify(ctx, peerID, msg); err != nil {
		m.logger.Warn("payment delivery failed", "payment_id", payment.ID, "peer_id", peerID, "error", err)
	}
	return nil
}

// payoutSweep выписывает time-based платежи всем workers в очереди.
func (m *Manager) payoutSweep(ctx context.Context) {
	for _, peerID := range m.scheduler.Queue().Snapshot() {
		payment, err := m.payments.ProcessPayoutRequest(ctx, peerID)
		if err != nil {
			m.logger.Warn("scheduled payout failed", "peer_id", peerID, "error", err)
			continue
		}
		if payment == nil {
			// Не накопилось ни секунды онлайна.
			continue
		}

		telemetry.PaymentsIssued.Inc()
		telemetry.PaymentAmount.Observe(float64(payment.Amount))

		msg, err := transport.NewMessage(transport.KindPayment, PeerID, &transport.PaymentPayload{Payment: *payment})
		if err != nil {
			m.logger.Error("encode payout", "peer_id", peerID, "error", err)
			continue
		}
		if err := m.transport.Notify(ctx, peerID, msg); err != nil {
			m.logger.Warn("payout delivery failed", "peer_id", peerID, "error", err)
		}
	}
}
