package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Топология: один direct exchange, у каждого peer'а своя очередь,
// привязанная по routing key = peer ID.
const (
	exchangePeers = "foreman.peers"

	defaultRequestTimeoutSec = 30
)

// peerQueue возвращает имя очереди peer'а.
func peerQueue(peerID string) string {
	return "foreman.peer." + peerID
}

// AMQP — транспорт поверх RabbitMQ.
//
// Запрос публикуется в очередь адресата с reply-to на эксклюзивную
// очередь отправителя; ответ сопоставляется по correlation ID.
// После reconnect топология и consumers поднимаются заново.
type AMQP struct {
	conn   *Connection
	peerID string
	logger *slog.Logger

	requestTimeout time.Duration

	mu       sync.Mutex
	handlers map[Kind]Handler
	pending  map[string]chan *Message

	replyQueue string
	closed     bool
	closedCh   chan struct{}
}

// NewAMQP подключает peer'а к брокеру: объявляет топологию, свою
// очередь и reply-очередь, запускает consumers.
//
// Таймаут запросов настраивается переменной MQ_REQUEST_TIMEOUT_SEC.
func NewAMQP(conn *Connection, peerID string, logger *slog.Logger) (*AMQP, error) {
	timeout := defaultRequestTimeoutSec
	if v := os.Getenv("MQ_REQUEST_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = n
		}
	}

	t := &AMQP{
		conn:           conn,
		peerID:         peerID,
		logger:         logger,
		requestTimeout: time.Duration(timeout) * time.Second,
		handlers:       make(map[Kind]Handler),
		pending:        make(map[string]chan *Message),
		closedCh:       make(chan struct{}),
	}

	if err := t.setup(); err != nil {
		return nil, err
	}
	go t.watchReconnect()

	return t, nil
}

// setup объявляет топологию и запускает consumers на текущем канале.
func (t *AMQP) setup() error {
	ch := t.conn.Channel()
	if ch == nil {
		return ErrPeerUnreachable
	}

	err := ch.ExchangeDeclare(exchangePeers, "direct", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	queue := peerQueue(t.peerID)
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, t.peerID, exchangePeers, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue, err)
	}

	// Эксклюзивная auto-delete очередь для ответов на наши запросы.
	reply, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare reply queue: %w", err)
	}
	t.mu.Lock()
	t.replyQueue = reply.Name
	t.mu.Unlock()

	inbox, err := ch.Consume(queue, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	replies, err := ch.Consume(reply.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume replies: %w", err)
	}

	go t.serveInbox(inbox)
	go t.serveReplies(replies)

	return nil
}

// watchReconnect восстанавливает топологию после переподключения.
func (t *AMQP) watchReconnect() {
	for {
		select {
		case <-t.closedCh:
			return
		case <-t.conn.ReconnectNotify():
			if err := t.setup(); err != nil {
				t.logger.Error("restore topology after reconnect", "error", err)
			}
		}
	}
}

// serveInbox обрабатывает входящие запросы и уведомления.
func (t *AMQP) serveInbox(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		var msg Message
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			t.logger.Warn("malformed message dropped", "error", err)
			continue
		}

		go t.handle(&msg, d.ReplyTo, d.CorrelationId)
	}
}

// handle диспетчеризует сообщение и публикует ответ, если его ждут.
func (t *AMQP) handle(msg *Message, replyTo, correlationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.requestTimeout)
	defer cancel()

	t.mu.Lock()
	handler := t.handlers[msg.Kind]
	t.mu.Unlock()

	var resp *Message
	switch {
	case handler == nil:
		resp = NewErrorMessage(t.peerID, "no_handler", string(msg.Kind))
	default:
		var err error
		resp, err = handler(ctx, msg)
		if err != nil {
			resp = NewErrorMessage(t.peerID, "handler_error", err.Error())
		}
	}

	if replyTo == "" {
		return
	}
	if resp == nil {
		resp = &Message{Kind: KindAck, From: t.peerID}
	}
	resp.CorrelationID = correlationID

	if err := t.publish(ctx, "", replyTo, resp, "", correlationID); err != nil {
		t.logger.Warn("publish reply failed", "error", err, "kind", msg.Kind)
	}
}

// serveReplies сопоставляет ответы с ожидающими запросами.
func (t *AMQP) serveReplies(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		var msg Message
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			t.logger.Warn("malformed reply dropped", "error", err)
			continue
		}

		t.mu.Lock()
		waiter := t.pending[d.CorrelationId]
		delete(t.pending, d.CorrelationId)
		t.mu.Unlock()

		if waiter != nil {
			waiter <- &msg
		}
	}
}

// Register ставит обработчик на kind.
func (t *AMQP) Register(kind Kind, handler Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.handlers[kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, kind)
	}
	t.handlers[kind] = handler
	return nil
}

// Request отправляет сообщение peer'у и ждёт ответ.
func (t *AMQP) Request(ctx context.Context, to string, msg *Message) (*Message, error) {
	if msg.From == "" {
		msg.From = t.peerID
	}
	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
		msg.CorrelationID = correlationID
	}

	waiter := make(chan *Message, 1)
	t.mu.Lock()
	replyTo := t.replyQueue
	t.pending[correlationID] = waiter
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, t.requestTimeout)
	defer cancel()

	if err := t.publish(ctx, exchangePeers, to, msg, replyTo, correlationID); err != nil {
		t.mu.Lock()
		delete(t.pending, correlationID)
		t.mu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pending, correlationID)
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s: %v", ErrPeerUnreachable, to, ctx.Err())
	case resp := <-waiter:
		if errResp := AsError(resp); errResp != nil {
			return nil, errResp
		}
		return resp, nil
	}
}

// Notify отправляет сообщение без ожидания содержательного ответа.
func (t *AMQP) Notify(ctx context.Context, to string, msg *Message) error {
	if msg.From == "" {
		msg.From = t.peerID
	}
	return t.publish(ctx, exchangePeers, to, msg, "", msg.CorrelationID)
}

// publish сериализует и публикует сообщение.
func (t *AMQP) publish(ctx context.Context, exchange, routingKey string, msg *Message, replyTo, correlationID string) error {
	ch := t.conn.Channel()
	if ch == nil {
		return ErrPeerUnreachable
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Kind, err)
	}

	err = ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       replyTo,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", msg.Kind, routingKey, err)
	}
	return nil
}

// Close останавливает транспорт. Соединение остаётся за вызывающим.
func (t *AMQP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	close(t.closedCh)
	return nil
}

var _ Transport = (*AMQP)(nil)
