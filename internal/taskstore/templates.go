package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/store"
)

// TemplateStore — хранилище шаблонов работ поверх entity store.
type TemplateStore struct {
	store store.Store
}

// NewTemplateStore создаёт TemplateStore.
func NewTemplateStore(s store.Store) *TemplateStore {
	return &TemplateStore{store: s}
}

// Get возвращает шаблон по id (ErrTemplateNotFound, если его нет).
func (s *TemplateStore) Get(ctx context.Context, id string) (*domain.Template, error) {
	data, err := s.store.Get(ctx, store.TemplateKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var tpl domain.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("unmarshal template %s: %w", id, err)
	}
	return &tpl, nil
}

// Put записывает шаблон.
func (s *TemplateStore) Put(ctx context.Context, tpl *domain.Template) error {
	data, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	return s.store.Put(ctx, store.TemplateKey(tpl.ID), data)
}

// List возвращает все шаблоны в порядке id.
func (s *TemplateStore) List(ctx context.Context) ([]domain.Template, error) {
	entries, err := s.store.Query(ctx, store.PrefixTemplates, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}

	templates := make([]domain.Template, 0, len(entries))
	for _, e := range entries {
		var tpl domain.Template
		if err := json.Unmarshal(e.Value, &tpl); err != nil {
			return nil, fmt.Errorf("unmarshal template %s: %w", e.Key, err)
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}
