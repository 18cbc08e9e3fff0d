// Package crypto содержит кодек секретов: шифрование значений секретных
// переменных и OAuth2-токенов перед записью в хранилище.
//
// Зашифрованное значение — это строка вида:
//
//	"rq1:" + base64(nonce(12) + ciphertext)
//
// Префикс "rq1:" служит маркером: по нему репозитории понимают,
// что значение уже зашифровано и повторно шифровать его не нужно.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strings"

	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
)

const (
	// FormatMagic — маркер зашифрованного значения.
	FormatMagic = "rq1:"

	// NonceSize — размер nonce для AES-GCM.
	NonceSize = 12
)

// Codec — контракт кодека секретов.
//
// Encrypt и Decrypt возвращают serr.ErrEncryptionUnavailable,
// если на машине нет источника ключа. Decrypt("") всегда возвращает "".
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(opaque string) (string, error)
	IsEncrypted(value string) bool
}

// IsEncrypted сообщает, несёт ли value маркер зашифрованного значения.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, FormatMagic)
}

// AESCodec шифрует секреты AES-256-GCM ключом, выведенным через Argon2id.
//
// Ключ выводится один раз в NewAESCodec; сам кодек безопасен
// для конкурентного использования.
type AESCodec struct {
	aead cipher.AEAD
}

// NewAESCodec выводит ключ из masterSecret и salt и готовит AES-GCM.
//
// Ошибки:
//   - ErrInvalidKey если KDF вернул ключ неправильной длины,
//   - ErrEmptySecret если masterSecret пустой,
//   - обёрнутые ошибки инициализации AES/GCM.
func NewAESCodec(masterSecret string, salt []byte, p KDFParams) (*AESCodec, error) {
	if masterSecret == "" {
		return nil, ErrEmptySecret
	}
	key := DeriveKey(masterSecret, salt, p)
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &AESCodec{aead: gcm}, nil
}

// IsEncrypted реализует Codec.
func (c *AESCodec) IsEncrypted(value string) bool { return IsEncrypted(value) }

// UnavailableCodec используется, когда источника ключа нет.
// Любая попытка шифрования или расшифровки непустого значения
// завершается serr.ErrEncryptionUnavailable.
type UnavailableCodec struct{}

// Encrypt реализует Codec.
func (UnavailableCodec) Encrypt(string) (string, error) {
	return "", serr.ErrEncryptionUnavailable
}

// Decrypt реализует Codec.
func (UnavailableCodec) Decrypt(opaque string) (string, error) {
	if opaque == "" {
		return "", nil
	}
	return "", serr.ErrEncryptionUnavailable
}

// IsEncrypted реализует Codec.
func (UnavailableCodec) IsEncrypted(value string) bool { return IsEncrypted(value) }
