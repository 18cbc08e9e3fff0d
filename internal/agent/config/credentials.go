// Package config содержит функции для работы с локальной конфигурацией CLI-клиента.
//
// Сервер локального API при старте выпускает токен доступа и пишет его
// вместе с адресом API в файл:
//
//	<data_dir>/credentials.json
//
// CLI читает этот файл, чтобы ходить в запущенный API (команда remote).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileName — имя файла учётных данных в каталоге данных.
const FileName = "credentials.json"

// Credentials содержит адрес локального API и токен доступа к нему.
type Credentials struct {
	Endpoint  string    `json:"endpoint"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired сообщает, истёк ли токен к моменту now. Пустой токен считается истёкшим.
func (c *Credentials) Expired(now time.Time) bool {
	if c.Token == "" {
		return true
	}
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// DefaultPath возвращает путь к файлу учётных данных в каталоге данных.
//
// Формат пути:
//
//	<dataDir>/credentials.json
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Load загружает конфигурацию из указанного файла.
//
// Если файл не существует, возвращает пустую конфигурацию без ошибки.
// Если файл существует, но содержит некорректный JSON, возвращает ошибку.
func Load(path string) (*Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// дефолтный конфиг, если файла нет
			return &Credentials{}, nil
		}
		return nil, err
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save сохраняет конфигурацию в указанный файл в JSON формате.
//
// При необходимости создаёт директорию назначения с правами 0700.
// Файл конфигурации записывается с правами 0600.
func Save(path string, c *Credentials) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// Remove удаляет файл учётных данных. Отсутствие файла — не ошибка.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
