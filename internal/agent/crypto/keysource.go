package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tiomoreno/requiety-sub000/internal/server/config"
)

// Источники мастер-секрета, в порядке приоритета.
const (
	SourceEnv    = "env"
	SourcePrompt = "prompt"
	SourceFile   = "file"
	SourceNone   = "none"
)

// defaultSalt используется, если salt_file не задан.
var defaultSalt = []byte("requiety/secrets")

// KeyOptions управляет выбором источника ключа.
//
// Prompt вызывается, только если секрета нет в окружении;
// CreateKeyFile разрешает сгенерировать файл ключа при первом запуске.
type KeyOptions struct {
	Prompt        func() (string, error)
	CreateKeyFile bool
}

// OpenCodec выбирает источник мастер-секрета и возвращает готовый кодек.
//
// Порядок:
//  1. переменная окружения cfg.MasterKeyEnv;
//  2. opts.Prompt (пароль, введённый в CLI);
//  3. файл ключа cfg.KeyFile (создаётся с правами 0600, если разрешено).
//
// Если ни один источник недоступен, возвращается UnavailableCodec
// и SourceNone — это не ошибка: несекретные данные продолжают работать.
func OpenCodec(cfg config.CryptoConfig, opts KeyOptions) (Codec, string, error) {
	secret, source, err := resolveSecret(cfg, opts)
	if err != nil {
		return nil, "", err
	}
	if source == SourceNone {
		return UnavailableCodec{}, SourceNone, nil
	}

	salt, err := loadOrCreateSalt(cfg.SaltFile)
	if err != nil {
		return nil, "", err
	}

	codec, err := NewAESCodec(secret, salt, ParamsFromConfig(cfg.Argon2))
	if err != nil {
		return nil, "", err
	}
	return codec, source, nil
}

func resolveSecret(cfg config.CryptoConfig, opts KeyOptions) (string, string, error) {
	if cfg.MasterKeyEnv != "" {
		if v := strings.TrimSpace(os.Getenv(cfg.MasterKeyEnv)); v != "" {
			return v, SourceEnv, nil
		}
	}

	if opts.Prompt != nil {
		pw, err := opts.Prompt()
		if err != nil {
			return "", "", fmt.Errorf("read master password: %w", err)
		}
		if pw != "" {
			return pw, SourcePrompt, nil
		}
	}

	if cfg.KeyFile == "" {
		return "", SourceNone, nil
	}

	b, err := os.ReadFile(cfg.KeyFile)
	switch {
	case err == nil:
		secret := strings.TrimSpace(string(b))
		if secret == "" {
			return "", "", fmt.Errorf("key file %s is empty", cfg.KeyFile)
		}
		return secret, SourceFile, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", "", fmt.Errorf("read key file: %w", err)
	}

	if !opts.CreateKeyFile {
		return "", SourceNone, nil
	}

	raw, err := NewSalt(KeySize)
	if err != nil {
		return "", "", err
	}
	secret := base64.StdEncoding.EncodeToString(raw)
	if err := writePrivate(cfg.KeyFile, []byte(secret+"\n")); err != nil {
		return "", "", fmt.Errorf("write key file: %w", err)
	}
	return secret, SourceFile, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	if path == "" {
		return defaultSalt, nil
	}

	b, err := os.ReadFile(path)
	if err == nil {
		salt, derr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(b)))
		if derr != nil || len(salt) < SaltSize {
			return nil, fmt.Errorf("salt file %s is corrupted", path)
		}
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read salt file: %w", err)
	}

	salt, err := NewSalt(SaltSize)
	if err != nil {
		return nil, err
	}
	if err := writePrivate(path, []byte(base64.StdEncoding.EncodeToString(salt)+"\n")); err != nil {
		return nil, fmt.Errorf("write salt file: %w", err)
	}
	return salt, nil
}

// writePrivate создаёт каталог 0700 и файл 0600.
func writePrivate(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
