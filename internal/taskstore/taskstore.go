package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/store"
)

// Default configuration values.
const (
	defaultAcceptWindow = 30 * time.Second
	defaultMaxActive    = 100
)

// TaskStore применяет правила переходов состояния task поверх entity store.
//
// Единственный владелец event-лога task: никакой другой компонент не
// мутирует его напрямую. Каждый переход:
//  1. читает текущую запись,
//  2. валидирует по последнему событию,
//  3. добавляет событие и записывает запись целиком одним write.
type TaskStore struct {
	store store.Store

	// acceptWindow — сколько времени у worker'а на accept/reject после assign.
	acceptWindow time.Duration

	// maxActive — ограничение размера активного набора; сверх него
	// новые tasks попадают в backlog.
	maxActive int

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация TaskStore.
type Config struct {
	Store store.Store

	// AcceptWindow — окно принятия (default: 30s).
	AcceptWindow time.Duration

	// MaxActive — размер активного набора (default: 100).
	MaxActive int
}

// New создаёт TaskStore.
func New(cfg Config) *TaskStore {
	acceptWindow := cfg.AcceptWindow
	if acceptWindow <= 0 {
		acceptWindow = defaultAcceptWindow
	}

	maxActive := cfg.MaxActive
	if maxActive <= 0 {
		maxActive = defaultMaxActive
	}

	return &TaskStore{
		store:        cfg.Store,
		acceptWindow: acceptWindow,
		maxActive:    maxActive,
		now:          time.Now,
	}
}

// AcceptWindow возвращает окно принятия.
func (s *TaskStore) AcceptWindow() time.Duration {
	return s.acceptWindow
}

// Create записывает task с начальным событием create.
//
// Если активный набор заполнен, task попадает в backlog и будет
// продвинут reconciliation-циклом, когда место освободится.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task, producer string) error {
	if len(task.Events) != 0 {
		return fmt.Errorf("%w: task already has events", ErrInvalidTransition)
	}

	task.Append(domain.TaskEvent{
		Type:      domain.EventCreate,
		Timestamp: s.now(),
		PeerID:    producer,
	})

	active, err := store.Count(ctx, s.store, store.PrefixTasksActive)
	if err != nil {
		return fmt.Errorf("count active: %w", err)
	}

	key := store.ActiveTaskKey(task.ID.String())
	if active >= s.maxActive {
		key = store.BacklogTaskKey(task.ID.String())
	}
	return s.write(ctx, key, task)
}

// Get возвращает task, просматривая active, затем completed, затем backlog.
func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	for _, key := range []string{
		store.ActiveTaskKey(id),
		store.CompletedTaskKey(id),
		store.BacklogTaskKey(id),
	} {
		task, err := s.read(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return task, nil
	}
	return nil, ErrTaskNotFound
}

// Assign добавляет событие assign.
//
// Допустимо только когда последнее событие — create или reject.
func (s *TaskStore) Assign(ctx context.Context, id, peer string) (*domain.Task, error) {
	task, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}

	last := task.LastEvent()
	if last.Type != domain.EventCreate && last.Type != domain.EventReject {
		return nil, fmt.Errorf("%w: cannot assign task in state %s", ErrInvalidTransition, task.Status())
	}

	task.Append(domain.TaskEvent{
		Type:      domain.EventAssign,
		Timestamp: s.now(),
		PeerID:    peer,
	})
	if err := s.write(ctx, store.ActiveTaskKey(id), task); err != nil {
		return nil, err
	}
	return task, nil
}

// Accept добавляет событие accept от worker'а peer.
//
// Допустимо только когда последнее событие — assign на этого же peer,
// и окно принятия ещё не истекло (граница включительно = истекло).
func (s *TaskStore) Accept(ctx context.Context, id, peer string) (*domain.Task, error) {
	task, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}

	last := task.LastEvent()
	if last.Type != domain.EventAssign {
		return nil, fmt.Errorf("%w: cannot accept task in state %s", ErrInvalidTransition, task.Status())
	}
	if last.PeerID != peer {
		return nil, fmt.Errorf("%w: task assigned to %s, not %s", ErrInvalidTransition, last.PeerID, peer)
	}
	if s.now().Sub(last.Timestamp) >= s.acceptWindow {
		return nil, fmt.Errorf("%w: acceptance window of %s passed", ErrExpired, s.acceptWindow)
	}

	task.Append(domain.TaskEvent{
		Type:      domain.EventAccept,
		Timestamp: s.now(),
		PeerID:    peer,
	})
	if err := s.write(ctx, store.ActiveTaskKey(id), task); err != nil {
		return nil, err
	}
	return task, nil
}

// Reject добавляет событие reject с причиной.
//
// Допустимо только когда последнее событие — assign; отклонение
// атрибутируется назначенному worker'у независимо от инициатора
// (сам worker или manager по таймауту).
func (s *TaskStore) Reject(ctx context.Context, id, reason string) (*domain.Task, error) {
	task, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}

	last := task.LastEvent()
	if last.Type != domain.EventAssign {
		return nil, fmt.Errorf("%w: cannot reject task in state %s", ErrInvalidTransition, task.Status())
	}

	task.Append(domain.TaskEvent{
		Type:      domain.EventReject,
		Timestamp: s.now(),
		PeerID:    last.PeerID,
		Reason:    reason,
	})
	if err := s.write(ctx, store.ActiveTaskKey(id), task); err != nil {
		return nil, err
	}
	return task, nil
}

// RejectAccepted отклоняет task, у которого истёк time limit после accept.
//
// Используется только reconciliation-циклом: обычный reject допустим
// лишь из состояния assigned.
func (s *TaskStore) RejectAccepted(ctx context.Context, id, reason string) (*domain.Task, error) {
	task, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}

	last := task.LastEvent()
	if last.Type != domain.EventAccept {
		return nil, fmt.Errorf("%w: cannot reject accepted task in state %s", ErrInvalidTransition, task.Status())
	}

	task.Append(domain.TaskEvent{
		Type:      domain.EventReject,
		Timestamp: s.now(),
		PeerID:    last.PeerID,
		Reason:    reason,
	})
	if err := s.write(ctx, store.ActiveTaskKey(id), task); err != nil {
		return nil, err
	}
	return task, nil
}

// Submit добавляет событие submission с результатом от worker'а peer.
//
// Допустимо только когда последнее событие — accept этого же peer,
// time limit task не истёк и submission ещё не было.
func (s *TaskStore) Submit(ctx context.Context, id, peer string, result map[string]any) (*domain.Task, error) {
	task, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}

	if task.HasSubmission() {
		return nil, fmt.Errorf("%w: task %s", ErrDuplicateSubmission, id)
	}

	last := task.LastEvent()
	if last.Type != domain.EventAccept {
		return nil, fmt.Errorf("%w: cannot submit task in state %s", ErrInvalidTransition, task.Status())
	}
	if last.PeerID != peer {
		return nil, fmt.Errorf("%w: task accepted by %s, not %s", ErrInvalidTransition, last.PeerID, peer)
	}
	if s.now().Sub(last.Timestamp) >= task.TimeLimit() {
		return nil, fmt.Errorf("%w: time limit of %s passed", ErrExpired, task.TimeLimit())
	}

	task.Append(domain.TaskEvent{
		Type:      domain.EventSubmission,
		Timestamp: s.now(),
		PeerID:    peer,
		Result:    result,
	})
	if err := s.write(ctx, store.ActiveTaskKey(id), task); err != nil {
		return nil, err
	}
	return task, nil
}

// Payout добавляет терминальное событие payout с платежом и атомарно
// переносит запись из active в completed namespace.
func (s *TaskStore) Payout(ctx context.Context, id string, payment *domain.SignedPayment) (*domain.Task, error) {
	task, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}

	last := task.LastEvent()
	if last.Type != domain.EventSubmission {
		return nil, fmt.Errorf("%w: cannot pay out task in state %s", ErrInvalidTransition, task.Status())
	}

	task.Append(domain.TaskEvent{
		Type:      domain.EventPayout,
		Timestamp: s.now(),
		PeerID:    last.PeerID,
		Payment:   payment,
	})

	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}

	var b store.Batch
	b.Put(store.CompletedTaskKey(id), data)
	b.Delete(store.ActiveTaskKey(id))
	if err := s.store.Commit(ctx, &b); err != nil {
		return nil, fmt.Errorf("move task to completed: %w", err)
	}
	return task, nil
}

// ListActive возвращает активные tasks в порядке ключей.
func (s *TaskStore) ListActive(ctx context.Context, offset, limit int) ([]domain.Task, error) {
	entries, err := s.store.Query(ctx, store.PrefixTasksActive, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query active: %w", err)
	}

	tasks := make([]domain.Task, 0, len(entries))
	for _, e := range entries {
		var task domain.Task
		if err := json.Unmarshal(e.Value, &task); err != nil {
			return nil, fmt.Errorf("unmarshal task %s: %w", e.Key, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// CountActive возвращает размер активного набора.
func (s *TaskStore) CountActive(ctx context.Context) (int, error) {
	return store.Count(ctx, s.store, store.PrefixTasksActive)
}

// PromoteBacklog переносит до n tasks из backlog в активный набор.
// Возвращает количество продвинутых tasks.
func (s *TaskStore) PromoteBacklog(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	entries, err := s.store.Query(ctx, store.PrefixTasksBacklog, 0, n)
	if err != nil {
		return 0, fmt.Errorf("query backlog: %w", err)
	}

	for i, e := range entries {
		id := e.Key[len(store.PrefixTasksBacklog):]

		var b store.Batch
		b.Put(store.ActiveTaskKey(id), e.Value)
		b.Delete(e.Key)
		if err := s.store.Commit(ctx, &b); err != nil {
			return i, fmt.Errorf("promote task %s: %w", id, err)
		}
	}
	return len(entries), nil
}

// --- Helpers ---

// getActive читает task из active namespace; отсутствие — ErrTaskNotFound.
func (s *TaskStore) getActive(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.read(ctx, store.ActiveTaskKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	return task, err
}

func (s *TaskStore) read(ctx context.Context, key string) (*domain.Task, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", key, err)
	}
	return &task, nil
}

func (s *TaskStore) write(ctx context.Context, key string, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write task %s: %w", key, err)
	}
	return nil
}
