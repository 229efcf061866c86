package payments

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/shaiso/Foreman/internal/domain"
)

// Signer подписывает платежи приватным ключом manager'а.
type Signer struct {
	priv ed25519.PrivateKey
	pub  string // hex публичного ключа
}

// NewSigner создаёт Signer из приватного ключа.
func NewSigner(priv ed25519.PrivateKey) *Signer {
	return &Signer{
		priv: priv,
		pub:  hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
	}
}

// LoadSigner читает ключ из MANAGER_KEY (hex seed, 32 байта).
// Пустая переменная — сгенерировать эфемерный ключ (только dev:
// подписи не переживут рестарт).
func LoadSigner() (*Signer, bool, error) {
	seedHex := os.Getenv("MANAGER_KEY")
	if seedHex == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, false, fmt.Errorf("generate key: %w", err)
		}
		return NewSigner(priv), true, nil
	}

	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, false, fmt.Errorf("MANAGER_KEY must be a %d-byte hex seed", ed25519.SeedSize)
	}
	return NewSigner(ed25519.NewKeyFromSeed(seed)), false, nil
}

// PublicKey возвращает hex публичного ключа manager'а.
func (s *Signer) PublicKey() string {
	return s.pub
}

// Sign заполняет ManagerKey, Signature и детерминированный ID платежа.
func (s *Signer) Sign(p *domain.SignedPayment) {
	p.ManagerKey = s.pub
	p.Signature = hex.EncodeToString(ed25519.Sign(s.priv, p.CanonicalBytes()))
	p.ID = domain.ContentID(p.CanonicalBytes())
}

// VerifyPayment проверяет подпись платежа по вшитому в него ключу.
func VerifyPayment(p *domain.SignedPayment) bool {
	pub := domain.HexBytes(p.ManagerKey)
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, p.CanonicalBytes(), domain.HexBytes(p.Signature))
}
