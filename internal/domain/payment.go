package domain

import (
	"encoding/binary"
	"encoding/hex"
)

// PaymentVersion — текущая версия формата платежа.
const PaymentVersion = 1

// SignedPayment — подписанная запись о платеже.
//
// Nonce для одного получателя строго возрастает и никогда не
// переиспользуется: два платежа с одним nonce не могут быть
// одновременно валидными.
type SignedPayment struct {
	// ID — детерминированный идентификатор: hex(BLAKE2b-256(CanonicalBytes)).
	ID string `json:"id"`

	// Version — версия формата.
	Version int `json:"version"`

	// Amount — сумма платежа.
	Amount uint64 `json:"amount"`

	// Recipient — адрес получателя.
	Recipient string `json:"recipient"`

	// PaymentAccount — идентификатор платёжного аккаунта manager'а.
	PaymentAccount string `json:"payment_account"`

	// ManagerKey — публичный ключ manager'а (hex, ed25519).
	ManagerKey string `json:"manager_key"`

	// Nonce — строго возрастающий счётчик для данного получателя.
	Nonce uint64 `json:"nonce"`

	// Label — опциональная пометка (назначение платежа).
	Label string `json:"label,omitempty"`

	// Signature — ed25519 подпись manager'а над CanonicalBytes (hex).
	Signature string `json:"signature"`
}

// CanonicalBytes возвращает каноничное байтовое представление полей
// платежа — ровно то, что подписывается и хэшируется.
//
// Формат: version(u16) | amount(u64) | nonce(u64), затем
// recipient, payment account, manager key и label как
// len(u32)-префиксованные строки. Всё big-endian.
func (p *SignedPayment) CanonicalBytes() []byte {
	buf := make([]byte, 0, 64+len(p.Recipient)+len(p.PaymentAccount)+len(p.ManagerKey)+len(p.Label))
	buf = binary.BigEndian.AppendUint16(buf, uint16(p.Version))
	buf = binary.BigEndian.AppendUint64(buf, p.Amount)
	buf = binary.BigEndian.AppendUint64(buf, p.Nonce)
	for _, s := range []string{p.Recipient, p.PaymentAccount, p.ManagerKey, p.Label} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

// PublicSignals — публичные сигналы платёжного proof'а.
//
// Позволяют верификатору (on-chain или нет) подтвердить агрегат,
// не перепроверяя каждый отдельный платёж.
type PublicSignals struct {
	// MinNonce, MaxNonce — границы диапазона nonce, покрытого proof'ом.
	MinNonce uint64 `json:"min_nonce"`
	MaxNonce uint64 `json:"max_nonce"`

	// Amount — суммарная сумма всех платежей в proof'е.
	Amount uint64 `json:"amount"`

	// ManagerKey — публичный ключ manager'а (hex).
	ManagerKey string `json:"manager_key"`

	// Recipient — усечённый BLAKE2b-хэш адреса получателя (hex).
	Recipient string `json:"recipient"`

	// PaymentAccount — усечённый BLAKE2b-хэш платёжного аккаунта (hex).
	PaymentAccount string `json:"payment_account"`
}

// Bytes возвращает каноничное байтовое представление сигналов.
func (s *PublicSignals) Bytes() []byte {
	buf := make([]byte, 0, 32+len(s.ManagerKey)+len(s.Recipient)+len(s.PaymentAccount))
	buf = binary.BigEndian.AppendUint64(buf, s.MinNonce)
	buf = binary.BigEndian.AppendUint64(buf, s.MaxNonce)
	buf = binary.BigEndian.AppendUint64(buf, s.Amount)
	for _, f := range []string{s.ManagerKey, s.Recipient, s.PaymentAccount} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f)))
		buf = append(buf, f...)
	}
	return buf
}

// PaymentProof — криптографический proof над одним или несколькими
// подписанными платежами одного получателя.
type PaymentProof struct {
	// Proof — непрозрачный blob proof'а (hex).
	Proof string `json:"proof"`

	// PublicSignals — публичные сигналы proof'а.
	PublicSignals PublicSignals `json:"public_signals"`
}

// HexBytes декодирует hex-строку ("" → nil). Ошибки декодирования
// означают повреждённые данные и транслируются в пустой результат.
func HexBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
