package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/tiomoreno/requiety-sub000/internal/server/config"
	"golang.org/x/crypto/argon2"
)

const (
	// SaltSize — размер соли установки (байты).
	SaltSize = 16

	// KeySize — размер симметричного ключа (байты).
	// Для AES-256 используется 32 байта.
	KeySize = 32
)

// KDFParams описывает параметры derivation ключа (KDF) на базе Argon2id.
//
// Поля:
//   - Time: количество итераций (CPU cost)
//   - Memory: объём памяти в KiB (memory cost)
//   - Threads: число потоков
//   - KeyLen: длина выводимого ключа в байтах
type KDFParams struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultKDFParams возвращает параметры KDF по умолчанию.
//
// Ключ выводится один раз при открытии кодека, поэтому параметры
// могут быть дорогими: 64 MiB и две итерации.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:    2,
		Memory:  64 * 1024, // 64 MiB
		Threads: 2,
		KeyLen:  KeySize,
	}
}

// ParamsFromConfig переносит crypto.argon2 из конфига в KDFParams.
// Нулевые поля заменяются значениями по умолчанию.
func ParamsFromConfig(c config.Argon2Config) KDFParams {
	p := DefaultKDFParams()
	if c.Time != 0 {
		p.Time = c.Time
	}
	if c.MemoryKiB != 0 {
		p.Memory = c.MemoryKiB
	}
	if c.Threads != 0 {
		p.Threads = c.Threads
	}
	return p
}

// NewSalt генерирует криптографически стойкую соль длиной n байт.
func NewSalt(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("rand salt: %w", err)
	}
	return b, nil
}

// DeriveKey выводит симметричный ключ из masterSecret и salt с использованием Argon2id.
//
// Важно: одни и те же secret, salt и p всегда дают один и тот же ключ,
// иначе ранее зашифрованные значения не расшифруются.
func DeriveKey(masterSecret string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(
		[]byte(masterSecret),
		salt,
		p.Time,
		p.Memory,
		p.Threads,
		p.KeyLen,
	)
}
