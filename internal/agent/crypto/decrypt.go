package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
)

var (
	// ErrInvalidFormat возвращается, если строка не начинается с "rq1:"
	// или её base64-часть повреждена.
	ErrInvalidFormat = errors.New("invalid ciphertext format")

	// ErrAuthFailed возвращается, если расшифровка не удалась:
	// другой ключ или данные повреждены.
	// Детали ошибки намеренно скрываются.
	ErrAuthFailed = errors.New("decryption failed (wrong key or corrupted data)")

	// ErrCiphertextShort возвращается, если blob не может
	// содержать nonce и минимальный ciphertext.
	ErrCiphertextShort = errors.New("ciphertext too short")
)

// Decrypt расшифровывает строку, сформированную Encrypt.
//
// Пустая строка возвращается как есть: это «значение не задано».
//
// Ошибки:
//   - ErrInvalidFormat если маркер отсутствует или base64 некорректен,
//   - ErrCiphertextShort если blob слишком короткий,
//   - ErrAuthFailed если ключ не тот или данные повреждены.
func (c *AESCodec) Decrypt(opaque string) (string, error) {
	if opaque == "" {
		return "", nil
	}
	if !strings.HasPrefix(opaque, FormatMagic) {
		return "", ErrInvalidFormat
	}

	blob, err := base64.StdEncoding.DecodeString(opaque[len(FormatMagic):])
	if err != nil {
		return "", ErrInvalidFormat
	}
	if len(blob) < NonceSize+c.aead.Overhead() {
		return "", ErrCiphertextShort
	}

	nonce := blob[:NonceSize]
	ciphertext := blob[NonceSize:]

	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(plain), nil
}
