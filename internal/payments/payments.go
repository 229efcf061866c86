package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Foreman/internal/domain"
	"github.com/shaiso/Foreman/internal/prover"
	"github.com/shaiso/Foreman/internal/scheduling"
	"github.com/shaiso/Foreman/internal/store"
)

// Default configuration values.
const (
	defaultPayoutRate = 1 // единиц токена за секунду онлайна
)

// Manager выпускает, хранит и агрегирует платежи.
//
// Инварианты:
//   - nonce получателя растёт ровно на единицу на каждый платёж;
//   - платёж персистится до возврата вызывающей стороне: повторная
//     доставка уже подписанного платежа безопасна, переиспользование
//     nonce — никогда.
type Manager struct {
	workers *scheduling.WorkerStore
	store   store.Store
	signer  *Signer
	prover  prover.Prover

	// paymentAccount — платёжный аккаунт manager'а; пустой аккаунт
	// делает выпуск платежей невозможным (ErrPaymentAccountMissing).
	paymentAccount string

	// payoutRate — единиц токена за секунду онлайна (time-based payout).
	payoutRate uint64

	// Выпуск платежей сериализуется по получателю: чтение nonce,
	// подпись и инкремент — не атомарная операция, а транспорт
	// обрабатывает входящие сообщения в отдельных goroutines.
	peerMu    sync.Mutex
	peerLocks map[string]*sync.Mutex

	logger *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация Manager.
type Config struct {
	Workers *scheduling.WorkerStore
	Store   store.Store
	Signer  *Signer
	Prover  prover.Prover

	// PaymentAccount — идентификатор платёжного аккаунта.
	PaymentAccount string

	// PayoutRate — единиц за секунду онлайна (default: 1).
	PayoutRate uint64

	// Logger
	Logger *slog.Logger
}

// New создаёт Manager.
func New(cfg Config) *Manager {
	payoutRate := cfg.PayoutRate
	if payoutRate == 0 {
		payoutRate = defaultPayoutRate
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		workers:        cfg.Workers,
		store:          cfg.Store,
		signer:         cfg.Signer,
		prover:         cfg.Prover,
		paymentAccount: cfg.PaymentAccount,
		payoutRate:     payoutRate,
		peerLocks:      make(map[string]*sync.Mutex),
		logger:         logger,
		now:            time.Now,
	}
}

// peerLock возвращает мьютекс выпуска платежей для peer'а.
func (m *Manager) peerLock(peerID string) *sync.Mutex {
	m.peerMu.Lock()
	defer m.peerMu.Unlock()

	l, ok := m.peerLocks[peerID]
	if !ok {
		l = &sync.Mutex{}
		m.peerLocks[peerID] = l
	}
	return l
}

// ManagerKey возвращает hex публичного ключа manager'а.
func (m *Manager) ManagerKey() string {
	return m.signer.PublicKey()
}

// PaymentAccount возвращает сконфигурированный платёжный аккаунт.
func (m *Manager) PaymentAccount() string {
	return m.paymentAccount
}

// GeneratePayment выпускает подписанный платёж worker'у.
//
// Использует текущий nonce worker'а, подписывает, увеличивает
// сохранённый nonce ровно на единицу и персистит платёж до возврата.
// Инкремент nonce и персист не атомарны с доставкой: сбой доставки
// после персиста терпим — платёж можно доставить повторно.
func (m *Manager) GeneratePayment(ctx context.Context, peerID string, amount uint64, paymentAccount, label string) (*domain.SignedPayment, error) {
	lock := m.peerLock(peerID)
	lock.Lock()
	defer lock.Unlock()

	return m.generateLocked(ctx, peerID, amount, paymentAccount, label)
}

// generateLocked — тело GeneratePayment; вызывающий держит
// per-peer мьютекс.
func (m *Manager) generateLocked(ctx context.Context, peerID string, amount uint64, paymentAccount, label string) (*domain.SignedPayment, error) {
	if paymentAccount == "" {
		return nil, ErrPaymentAccountMissing
	}

	rec, err := m.workers.Get(ctx, peerID)
	if err != nil {
		return nil, err
	}

	payment := &domain.SignedPayment{
		Version:        domain.PaymentVersion,
		Amount:         amount,
		Recipient:      rec.Recipient,
		PaymentAccount: paymentAccount,
		Nonce:          rec.Nonce,
		Label:          label,
	}
	m.signer.Sign(payment)

	if _, err := m.workers.Update(ctx, peerID, func(rec *domain.WorkerRecord) {
		rec.Nonce++
	}); err != nil {
		return nil, fmt.Errorf("advance nonce: %w", err)
	}

	data, err := json.Marshal(payment)
	if err != nil {
		return nil, fmt.Errorf("marshal payment: %w", err)
	}
	if err := m.store.Put(ctx, store.PaymentKey(payment.ID), data); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	m.logger.Info("payment generated",
		"peer_id", peerID,
		"payment_id", payment.ID,
		"amount", amount,
		"nonce", payment.Nonce,
	)
	return payment, nil
}

// ProcessPayoutRequest выпускает time-based платёж за время онлайна
// с момента последней выплаты и сдвигает lastPayout.
//
// Если онлайна накопилось меньше секунды, платёж не выпускается
// (nil без ошибки): нулевая сумма не стоит потраченного nonce, а
// lastPayout не сдвигается — недоплаченное время не сгорает.
func (m *Manager) ProcessPayoutRequest(ctx context.Context, peerID string) (*domain.SignedPayment, error) {
	lock := m.peerLock(peerID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.workers.Get(ctx, peerID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	elapsed := now.Sub(rec.LastPayout)
	if elapsed < 0 {
		elapsed = 0
	}
	amount := uint64(elapsed/time.Second) * m.payoutRate
	if amount == 0 {
		return nil, nil
	}

	payment, err := m.generateLocked(ctx, peerID, amount, m.paymentAccount, "uptime payout")
	if err != nil {
		return nil, err
	}

	if _, err := m.workers.Update(ctx, peerID, func(rec *domain.WorkerRecord) {
		rec.LastPayout = now
		rec.TotalEarned += amount
	}); err != nil {
		return nil, err
	}
	return payment, nil
}

// ProcessProofRequest строит proof над платежами, которые принёс сам
// worker. Дополнительной проверки диапазона nonce здесь нет: эта
// граница доверия — self-service генерация по уже подписанным
// платежам, а не межworker'ная агрегация.
func (m *Manager) ProcessProofRequest(ctx context.Context, payments []domain.SignedPayment) (*domain.PaymentProof, error) {
	return m.prover.Prove(ctx, payments)
}

// Payment возвращает сохранённый платёж по id.
func (m *Manager) Payment(ctx context.Context, id string) (*domain.SignedPayment, error) {
	data, err := m.store.Get(ctx, store.PaymentKey(id))
	if err != nil {
		return nil, err
	}

	var p domain.SignedPayment
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payment %s: %w", id, err)
	}
	return &p, nil
}
