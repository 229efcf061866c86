package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Hub — in-process транспорт: все peer'ы живут в одном процессе и
// обмениваются сообщениями прямыми вызовами обработчиков.
//
// Используется в тестах и в embedded режиме (manager и workers в
// одном бинаре).
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewHub создаёт пустой Hub.
func NewHub() *Hub {
	return &Hub{endpoints: make(map[string]*Endpoint)}
}

// Endpoint — точка подключения одного peer'а к Hub.
type Endpoint struct {
	hub    *Hub
	peerID string

	mu       sync.RWMutex
	handlers map[Kind]Handler
	closed   bool
}

// Attach регистрирует peer'а в Hub и возвращает его Endpoint.
// Повторное подключение того же peer ID заменяет прежний Endpoint.
func (h *Hub) Attach(peerID string) *Endpoint {
	ep := &Endpoint{
		hub:      h,
		peerID:   peerID,
		handlers: make(map[Kind]Handler),
	}

	h.mu.Lock()
	h.endpoints[peerID] = ep
	h.mu.Unlock()

	return ep
}

// endpoint возвращает Endpoint peer'а или nil.
func (h *Hub) endpoint(peerID string) *Endpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.endpoints[peerID]
}

// detach убирает Endpoint из Hub (если он всё ещё текущий).
func (h *Hub) detach(ep *Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.endpoints[ep.peerID] == ep {
		delete(h.endpoints, ep.peerID)
	}
}

// Register ставит обработчик на kind.
func (e *Endpoint) Register(kind Kind, handler Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.handlers[kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, kind)
	}
	e.handlers[kind] = handler
	return nil
}

// Request доставляет сообщение peer'у и возвращает его ответ.
// Ответ KindError разворачивается в *ErrorResponse.
func (e *Endpoint) Request(ctx context.Context, to string, msg *Message) (*Message, error) {
	target := e.hub.endpoint(to)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrPeerUnreachable, to)
	}

	if msg.From == "" {
		msg.From = e.peerID
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = uuid.NewString()
	}

	resp, err := target.dispatch(ctx, msg)
	if err != nil {
		return nil, err
	}
	if errResp := AsError(resp); errResp != nil {
		return nil, errResp
	}
	if resp != nil {
		resp.CorrelationID = msg.CorrelationID
	}
	return resp, nil
}

// Notify доставляет сообщение без содержательного ответа.
func (e *Endpoint) Notify(ctx context.Context, to string, msg *Message) error {
	_, err := e.Request(ctx, to, msg)
	return err
}

// Close отключает Endpoint от Hub.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.hub.detach(e)
	return nil
}

// dispatch вызывает обработчик kind у этого Endpoint.
func (e *Endpoint) dispatch(ctx context.Context, msg *Message) (*Message, error) {
	e.mu.RLock()
	closed := e.closed
	handler := e.handlers[msg.Kind]
	e.mu.RUnlock()

	if closed {
		return nil, fmt.Errorf("%w: %s", ErrPeerUnreachable, e.peerID)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, msg.Kind)
	}
	return handler(ctx, msg)
}

var _ Transport = (*Endpoint)(nil)
