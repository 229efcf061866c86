package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/store"
)

// WorkerStore — персистентные записи worker'ов поверх entity store.
type WorkerStore struct {
	store store.Store
}

// NewWorkerStore создаёт WorkerStore.
func NewWorkerStore(s store.Store) *WorkerStore {
	return &WorkerStore{store: s}
}

// Get возвращает запись worker'а (ErrWorkerNotFound, если её нет).
func (s *WorkerStore) Get(ctx context.Context, peerID string) (*domain.WorkerRecord, error) {
	data, err := s.store.Get(ctx, store.WorkerKey(peerID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotFound, peerID)
	}
	if err != nil {
		return nil, err
	}

	var rec domain.WorkerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal worker %s: %w", peerID, err)
	}
	return &rec, nil
}

// Put записывает запись worker'а целиком.
func (s *WorkerStore) Put(ctx context.Context, rec *domain.WorkerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal worker: %w", err)
	}
	return s.store.Put(ctx, store.WorkerKey(rec.PeerID), data)
}

// PutBatch добавляет запись worker'а в батч вместо немедленной записи.
func (s *WorkerStore) PutBatch(rec *domain.WorkerRecord, b *store.Batch) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal worker: %w", err)
	}
	b.Put(store.WorkerKey(rec.PeerID), data)
	return nil
}

// Commit применяет накопленный батч к подлежащему store.
func (s *WorkerStore) Commit(ctx context.Context, b *store.Batch) error {
	return s.store.Commit(ctx, b)
}

// Update читает запись, применяет fn и записывает результат.
func (s *WorkerStore) Update(ctx context.Context, peerID string, fn func(*domain.WorkerRecord)) (*domain.WorkerRecord, error) {
	rec, err := s.Get(ctx, peerID)
	if err != nil {
		return nil, err
	}
	fn(rec)
	if err := s.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List возвращает все записи worker'ов в порядке peer id.
func (s *WorkerStore) List(ctx context.Context) ([]domain.WorkerRecord, error) {
	entries, err := s.store.Query(ctx, store.PrefixWorkers, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("query workers: %w", err)
	}

	workers := make([]domain.WorkerRecord, 0, len(entries))
	for _, e := range entries {
		var rec domain.WorkerRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal worker %s: %w", e.Key, err)
		}
		workers = append(workers, rec)
	}
	return workers, nil
}
