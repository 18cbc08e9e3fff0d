package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// NewSigningKey возвращает случайный ключ подписи (48 байт, base64url).
// Используется, когда auth.jwt.signing_key в конфиге пуст: токены тогда
// действительны только до перезапуска сервера.
func NewSigningKey() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
