package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey возвращается, если DeriveKey вернул ключ неправильной длины.
	// Для AES-256 ожидается 32 байта.
	ErrInvalidKey = errors.New("invalid key length")

	// ErrEmptySecret возвращается, если мастер-секрет пустой.
	ErrEmptySecret = errors.New("empty master secret")
)

// Encrypt шифрует plaintext и возвращает "rq1:" + base64(nonce + ciphertext).
//
// Для каждого вызова генерируется новый nonce, поэтому два шифрования
// одного и того же значения дают разные строки.
//
// Ошибки:
//   - ошибки генератора случайных чисел.
func (c *AESCodec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	return FormatMagic + base64.StdEncoding.EncodeToString(blob), nil
}
