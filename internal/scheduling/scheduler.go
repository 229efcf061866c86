package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/store"
)

// Default configuration values.
const (
	defaultBusyLimit = 3
)

// Scheduler — admission control и выбор worker'ов.
//
// Объединяет in-memory очередь (Queue) и персистентные записи
// (WorkerStore): connect проводит peer через цепочку проверок и
// ставит в очередь, select выбирает первого незанятого.
type Scheduler struct {
	queue   *Queue
	workers *WorkerStore
	codes   *AccessCodeStore

	// requireAccessCodes — требовать одноразовый код при первом подключении.
	requireAccessCodes bool

	// busyLimit — порог незакрытых задач, после которого worker
	// пропускается при выборе.
	busyLimit int

	// maintenance — в maintenance mode подключаются только администраторы.
	maintenance   bool
	maintenanceMu sync.RWMutex

	logger *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Queue   *Queue
	Workers *WorkerStore
	Codes   *AccessCodeStore

	// RequireAccessCodes — гейтинг первого подключения кодом доступа.
	RequireAccessCodes bool

	// BusyLimit — порог занятости (default: 3).
	BusyLimit int

	// Logger
	Logger *slog.Logger
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	busyLimit := cfg.BusyLimit
	if busyLimit <= 0 {
		busyLimit = defaultBusyLimit
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	queue := cfg.Queue
	if queue == nil {
		queue = NewQueue()
	}

	return &Scheduler{
		queue:              queue,
		workers:            cfg.Workers,
		codes:              cfg.Codes,
		requireAccessCodes: cfg.RequireAccessCodes,
		busyLimit:          busyLimit,
		logger:             logger,
		now:                time.Now,
	}
}

// SetMaintenance включает или выключает maintenance mode.
func (s *Scheduler) SetMaintenance(on bool) {
	s.maintenanceMu.Lock()
	s.maintenance = on
	s.maintenanceMu.Unlock()
}

// InMaintenance возвращает текущее состояние maintenance mode.
func (s *Scheduler) InMaintenance() bool {
	s.maintenanceMu.RLock()
	defer s.maintenanceMu.RUnlock()
	return s.maintenance
}

// Queue возвращает очередь (для снапшотов и метрик).
func (s *Scheduler) Queue() *Queue {
	return s.queue
}

// Workers возвращает WorkerStore.
func (s *Scheduler) Workers() *WorkerStore {
	return s.workers
}

// Codes возвращает AccessCodeStore (nil, если коды не настроены).
func (s *Scheduler) Codes() *AccessCodeStore {
	return s.codes
}

// ConnectWorker проводит peer через admission-проверки и ставит в очередь.
//
// Порядок проверок фиксирован; любая неудача обрывает подключение
// целиком: персистентные мутации (погашение кода, запись worker'а)
// собираются в батч и коммитятся одним шагом перед enqueue, так что
// частичного состояния не остаётся.
func (s *Scheduler) ConnectWorker(ctx context.Context, peerID, recipient string, nonce uint64, accessCode string) (*domain.WorkerRecord, error) {
	rec, err := s.workers.Get(ctx, peerID)
	if err != nil && !errors.Is(err, ErrWorkerNotFound) {
		return nil, err
	}
	known := rec != nil

	// 1. Новому worker'у без кода отказываем, если коды обязательны.
	if s.requireAccessCodes && !known && accessCode == "" {
		return nil, ErrAccessCodeRequired
	}

	// 2. Забаненный worker не подключается.
	if known && rec.Banned {
		return nil, ErrWorkerBanned
	}

	// 3. Maintenance mode пропускает только администраторов.
	if s.InMaintenance() && (!known || !rec.IsAdmin) {
		return nil, ErrMaintenance
	}

	now := s.now()
	var b store.Batch

	switch {
	case !known:
		// 4. Новый worker: погасить код (если требуется) и создать запись.
		if s.requireAccessCodes {
			if err := s.codes.Redeem(ctx, accessCode, peerID, now, &b); err != nil {
				return nil, err
			}
		}
		rec = &domain.WorkerRecord{
			PeerID:             peerID,
			Recipient:          recipient,
			Nonce:              nonce,
			AccessCodeRedeemed: s.requireAccessCodes,
		}

	case s.requireAccessCodes && !rec.AccessCodeRedeemed:
		// 5. Существующий worker, коды стали обязательными позже: догасить.
		if accessCode == "" {
			return nil, ErrAccessCodeRequired
		}
		if err := s.codes.Redeem(ctx, accessCode, peerID, now, &b); err != nil {
			return nil, err
		}
		rec.AccessCodeRedeemed = true
	}

	// 6. Двойной connect.
	if s.queue.Contains(peerID) {
		return nil, ErrAlreadyQueued
	}

	// 7. Обновить таймстемпы, закоммитить мутации, встать в очередь.
	rec.LastPayout = now
	rec.LastActivity = now
	if err := s.workers.PutBatch(rec, &b); err != nil {
		return nil, err
	}
	if err := s.workers.Commit(ctx, &b); err != nil {
		return nil, err
	}
	if err := s.queue.AddPeer(peerID); err != nil {
		return nil, err
	}

	s.logger.Info("worker connected",
		"peer_id", peerID,
		"known", known,
		"queue_len", s.queue.Len(),
	)
	return rec, nil
}

// SelectWorker возвращает первого незанятого worker'а из очереди,
// убирая его из неё (remove, не ротация). Пропущенные занятые
// worker'ы сохраняют свои позиции.
//
// Пустая очередь или сплошь занятые worker'ы — нормальный исход:
// возвращается nil без ошибки.
func (s *Scheduler) SelectWorker(ctx context.Context) (*domain.WorkerRecord, error) {
	for _, peerID := range s.queue.Snapshot() {
		rec, err := s.workers.Get(ctx, peerID)
		if err != nil {
			if errors.Is(err, ErrWorkerNotFound) {
				// Запись пропала — чистим очередь и идём дальше.
				s.queue.RemovePeer(peerID)
				continue
			}
			return nil, err
		}

		if rec.Banned || rec.IsBusy(s.busyLimit) {
			continue
		}

		s.queue.RemovePeer(peerID)
		return rec, nil
	}
	return nil, nil
}

// Requeue возвращает peer в хвост очереди (после назначения task).
// Повторная постановка уже стоящего peer'а — no-op.
func (s *Scheduler) Requeue(peerID string) {
	if err := s.queue.AddPeer(peerID); err != nil && !errors.Is(err, ErrAlreadyQueued) {
		s.logger.Warn("requeue failed", "peer_id", peerID, "error", err)
	}
}

// DisconnectWorker убирает peer из очереди, фиксируя lastActivity.
// Идемпотентна: отсутствие peer'а в очереди — не ошибка.
func (s *Scheduler) DisconnectWorker(ctx context.Context, peerID string) error {
	if !s.queue.Contains(peerID) {
		return nil
	}

	if _, err := s.workers.Update(ctx, peerID, func(rec *domain.WorkerRecord) {
		rec.LastActivity = s.now()
	}); err != nil && !errors.Is(err, ErrWorkerNotFound) {
		return err
	}

	s.queue.RemovePeer(peerID)
	s.logger.Info("worker disconnected", "peer_id", peerID, "queue_len", s.queue.Len())
	return nil
}
