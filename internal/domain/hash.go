package domain

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// truncatedHashLen — длина усечённого хэша в байтах (128 бит).
const truncatedHashLen = 16

// ContentID возвращает hex(BLAKE2b-256(data)) — детерминированный
// идентификатор по содержимому.
func ContentID(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// TruncatedHash возвращает усечённый (128-битный) BLAKE2b-хэш строки
// в hex. В таком виде адрес получателя и платёжный аккаунт попадают
// в публичные сигналы proof'а.
func TruncatedHash(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:truncatedHashLen])
}
