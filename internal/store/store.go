package store

import (
	"context"
	"errors"
)

// Ошибки entity store.
var (
	// ErrNotFound — запись с таким ключом отсутствует.
	ErrNotFound = errors.New("not found")
)

// Entry — пара ключ/значение из prefix-запроса.
type Entry struct {
	Key   string
	Value []byte
}

// Batch — набор put/delete операций, применяемый атомарно.
type Batch struct {
	ops []op
}

type op struct {
	key    string
	value  []byte
	delete bool
}

// Put добавляет запись в батч.
func (b *Batch) Put(key string, value []byte) {
	b.ops = append(b.ops, op{key: key, value: value})
}

// Delete добавляет удаление в батч.
func (b *Batch) Delete(key string) {
	b.ops = append(b.ops, op{key: key, delete: true})
}

// Len возвращает количество операций в батче.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Store — упорядоченное key-value хранилище с prefix-сканированием.
//
// Единственный источник истины для всего персистентного состояния.
// Компоненты не обращаются к Store напрямую — только через обёртки
// (taskstore, scheduling, payments), сохраняя инвариант "каждая
// мутация — запись целой записи".
type Store interface {
	// Get возвращает значение по ключу (ErrNotFound, если записи нет).
	Get(ctx context.Context, key string) ([]byte, error)

	// Put записывает значение по ключу (перезаписывает существующее).
	Put(ctx context.Context, key string, value []byte) error

	// Delete удаляет запись (отсутствие записи — не ошибка).
	Delete(ctx context.Context, key string) error

	// Commit атомарно применяет все операции батча.
	Commit(ctx context.Context, b *Batch) error

	// Query возвращает записи с ключами, начинающимися с prefix,
	// в порядке ключей, с offset/limit (limit <= 0 — без ограничения).
	Query(ctx context.Context, prefix string, offset, limit int) ([]Entry, error)

	// QueryKeys возвращает ключи с данным префиксом в порядке ключей.
	QueryKeys(ctx context.Context, prefix string) ([]string, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}

// Count возвращает количество записей с данным префиксом.
func Count(ctx context.Context, s Store, prefix string) (int, error) {
	keys, err := s.QueryKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
