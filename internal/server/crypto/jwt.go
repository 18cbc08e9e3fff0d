// Package crypto содержит криптографические примитивы локального API:
//   - выпуск JWT-токена доступа для UI и CLI;
//   - генерацию ключа подписи, если он не задан в конфиге.
package crypto

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tiomoreno/requiety-sub000/internal/server/config"
)

// JWTConfig описывает параметры генерации JWT-токена доступа.
type JWTConfig struct {
	// Issuer — значение поля iss (кто выдал токен).
	Issuer string
	// Audience — значение поля aud (для кого предназначен токен).
	Audience string
	// SigningKey — секретный ключ подписи (HS256).
	SigningKey string
	// TTL — срок жизни токена.
	TTL time.Duration
}

// ConfigFromAuth собирает JWTConfig из настроек auth и ключа подписи.
func ConfigFromAuth(a config.AuthConfig, signingKey string) JWTConfig {
	return JWTConfig{
		Issuer:     a.Issuer,
		Audience:   a.Audience,
		SigningKey: signingKey,
		TTL:        a.TokenTTL,
	}
}

// NewAccessToken создаёт и подписывает токен доступа для клиента subject
// (например, "cli" или "ui").
//
// Токен содержит стандартные RegisteredClaims: iss, aud, sub, iat, exp.
// Используется алгоритм подписи HS256.
func NewAccessToken(subject string, cfg JWTConfig) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(cfg.TTL)

	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Audience:  []string{cfg.Audience},
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString([]byte(cfg.SigningKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}
