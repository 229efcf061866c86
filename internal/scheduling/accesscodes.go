package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/store"
)

// AccessCodeStore — одноразовые коды доступа поверх entity store.
type AccessCodeStore struct {
	store store.Store
}

// NewAccessCodeStore создаёт AccessCodeStore.
func NewAccessCodeStore(s store.Store) *AccessCodeStore {
	return &AccessCodeStore{store: s}
}

// Issue выпускает новый непогашенный код.
func (s *AccessCodeStore) Issue(ctx context.Context) (*domain.AccessCode, error) {
	code := &domain.AccessCode{
		Code:      uuid.NewString(),
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(code)
	if err != nil {
		return nil, fmt.Errorf("marshal access code: %w", err)
	}
	if err := s.store.Put(ctx, store.AccessCodeKey(code.Code), data); err != nil {
		return nil, err
	}
	return code, nil
}

// Get возвращает код (ErrAccessCodeInvalid, если его нет).
func (s *AccessCodeStore) Get(ctx context.Context, code string) (*domain.AccessCode, error) {
	data, err := s.store.Get(ctx, store.AccessCodeKey(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccessCodeInvalid
	}
	if err != nil {
		return nil, err
	}

	var ac domain.AccessCode
	if err := json.Unmarshal(data, &ac); err != nil {
		return nil, fmt.Errorf("unmarshal access code: %w", err)
	}
	return &ac, nil
}

// Redeem проверяет код и возвращает его погашенную версию, добавляя
// запись в батч. Сам батч коммитит вызывающая сторона — погашение
// становится видимым только вместе с остальными мутациями connect'а.
func (s *AccessCodeStore) Redeem(ctx context.Context, code, peerID string, now time.Time, b *store.Batch) error {
	ac, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	if ac.Redeemed {
		return ErrAccessCodeInvalid
	}

	ac.Redeemed = true
	ac.RedeemedBy = peerID
	ac.RedeemedAt = &now

	data, err := json.Marshal(ac)
	if err != nil {
		return fmt.Errorf("marshal access code: %w", err)
	}
	b.Put(store.AccessCodeKey(code), data)
	return nil
}
