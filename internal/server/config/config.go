// Package config отвечает за:
// - чтение requiety.yaml
// - подстановку переменных окружения вида ${REQUIETY_MASTER_KEY}
// - проставление дефолтов
// - валидацию (чтобы приложение не стартовало с дырявыми настройками)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stretchr/testify/assert/yaml"
)

// Драйверы документного хранилища.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config — корневая структура всего конфига.
type Config struct {
	Env     string        `yaml:"env"`      // dev|prod
	DataDir string        `yaml:"data_dir"` // каталог данных приложения
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Crypto  CryptoConfig  `yaml:"crypto"`
	Runner  RunnerConfig  `yaml:"runner"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig — настройки локального HTTP API.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // время на graceful shutdown
}

// StoreConfig — настройки документного хранилища.
type StoreConfig struct {
	Driver     string           `yaml:"driver"` // memory|file|sqlite|postgres
	Path       string           `yaml:"path"`   // файл для file/sqlite
	DSN        string           `yaml:"dsn"`    // строка подключения для postgres
	Migrations MigrationsConfig `yaml:"migrations"`
}

// MigrationsConfig — настройки миграций (только postgres).
type MigrationsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CryptoConfig — откуда брать мастер-ключ для шифрования секретов.
type CryptoConfig struct {
	KeyFile      string       `yaml:"key_file"`       // файл ключа, создаётся при первом запуске
	SaltFile     string       `yaml:"salt_file"`      // соль установки для argon2id
	MasterKeyEnv string       `yaml:"master_key_env"` // имя переменной окружения с мастер-ключом
	Argon2       Argon2Config `yaml:"argon2"`
}

// Argon2Config — параметры argon2id для вывода ключа.
type Argon2Config struct {
	Time      uint32 `yaml:"time"`
	MemoryKiB uint32 `yaml:"memory_kib"`
	Threads   uint8  `yaml:"threads"`
}

// RunnerConfig — настройки раннера коллекций.
type RunnerConfig struct {
	StepDelay time.Duration `yaml:"step_delay"` // пауза между запросами
}

// AuthConfig — токен доступа к локальному API.
type AuthConfig struct {
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	JWT      JWTConfig     `yaml:"jwt"`
}

// JWTConfig — как подписываем JWT.
type JWTConfig struct {
	Algorithm  string `yaml:"algorithm"`   // сейчас поддерживаем только HS256
	SigningKey string `yaml:"signing_key"` // пустой — генерируется при старте
}

// LogConfig — настройки логирования (zap).
type LogConfig struct {
	Level      string `yaml:"level"`  // debug|info|warn|error
	Format     string `yaml:"format"` // json|console
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load читает YAML, подставляет переменные окружения вида ${VAR},
// затем парсит в структуру, проставляет дефолты и валидирует.
func Load(path string) (*Config, error) {
	return load(path, "")
}

func load(path, dataDir string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать конфиг: %w", err)
	}

	expanded := ExpandEnvStrict(string(raw))
	raw = []byte(expanded)

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("не удалось распарсить yaml: %w", err)
	}

	return finish(&cfg, dataDir)
}

// finish применяет переопределения из окружения, dataDir и дефолты.
func finish(cfg *Config, dataDir string) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault читает конфиг, если файл есть, иначе возвращает Default().
//
// Используется CLI: конфиг для него необязателен.
func LoadOrDefault(path string) (*Config, error) {
	return LoadOrDefaultIn(path, "")
}

// LoadOrDefaultIn — как LoadOrDefault, но непустой dataDir перекрывает
// data_dir из файла и окружения. Пути, не заданные явно (store, ключи, логи),
// считаются от него.
func LoadOrDefaultIn(path, dataDir string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return load(path, dataDir)
		}
	}
	return finish(&Config{}, dataDir)
}

// Default возвращает полностью заполненный конфиг без файла и окружения.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ExpandEnvStrict заменяет ${VAR} на значение из окружения.
// Если переменная не задана — оставляем ${VAR} как есть,
// а потом Validate() упадёт с понятной ошибкой.
func ExpandEnvStrict(s string) string {
	re := regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)
	return re.ReplaceAllStringFunc(s, func(m string) string {
		sub := re.FindStringSubmatch(m)
		if len(sub) != 2 {
			return m
		}
		if val, ok := os.LookupEnv(sub[1]); ok {
			return val
		}
		return m
	})
}

// DefaultDataDir возвращает $HOME/.requiety (или ./.requiety, если home неизвестен).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".requiety"
	}
	return filepath.Join(home, ".requiety")
}

// ApplyDefaults — дефолтные значения, если в yaml поле не задано.
func ApplyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 7811
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreSQLite
	}
	if cfg.Store.Path == "" {
		switch cfg.Store.Driver {
		case StoreFile:
			cfg.Store.Path = filepath.Join(cfg.DataDir, "requiety.json")
		case StoreSQLite:
			cfg.Store.Path = filepath.Join(cfg.DataDir, "requiety.db")
		}
	}

	if cfg.Crypto.KeyFile == "" {
		cfg.Crypto.KeyFile = filepath.Join(cfg.DataDir, "master.key")
	}
	if cfg.Crypto.SaltFile == "" {
		cfg.Crypto.SaltFile = filepath.Join(cfg.DataDir, "master.salt")
	}
	if cfg.Crypto.MasterKeyEnv == "" {
		cfg.Crypto.MasterKeyEnv = "REQUIETY_MASTER_KEY"
	}
	if cfg.Crypto.Argon2.Time == 0 {
		cfg.Crypto.Argon2.Time = 2
	}
	if cfg.Crypto.Argon2.MemoryKiB == 0 {
		cfg.Crypto.Argon2.MemoryKiB = 64 * 1024
	}
	if cfg.Crypto.Argon2.Threads == 0 {
		cfg.Crypto.Argon2.Threads = 2
	}

	if cfg.Runner.StepDelay == 0 {
		cfg.Runner.StepDelay = 100 * time.Millisecond
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "requiety"
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "requiety-ui"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Auth.JWT.Algorithm == "" {
		cfg.Auth.JWT.Algorithm = "HS256"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = filepath.Join(cfg.DataDir, "logs")
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 20
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 30
	}
}

// Validate проверяет, что конфиг заполнен корректно.
// Если что-то не так — возвращаем ошибку и приложение НЕ стартует.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host обязателен")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port некорректен: %d", c.Server.Port)
	}

	// Хранилище
	switch c.Store.Driver {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path обязателен для store.driver=%s", c.Store.Driver)
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn обязателен для store.driver=postgres")
		}
		if strings.Contains(c.Store.DSN, "${") {
			return fmt.Errorf("store.dsn содержит неподставленную переменную: %q", c.Store.DSN)
		}
	default:
		return fmt.Errorf("store.driver должен быть memory|file|sqlite|postgres (сейчас %q)", c.Store.Driver)
	}

	if c.Crypto.Argon2.Time == 0 || c.Crypto.Argon2.MemoryKiB == 0 || c.Crypto.Argon2.Threads == 0 {
		return errors.New("crypto.argon2 должен быть настроен")
	}

	if c.Runner.StepDelay < 0 {
		return fmt.Errorf("runner.step_delay не может быть отрицательным: %s", c.Runner.StepDelay)
	}

	// JWT
	alg := strings.ToUpper(strings.TrimSpace(c.Auth.JWT.Algorithm))
	if alg != "HS256" {
		return fmt.Errorf("auth.jwt.algorithm должен быть HS256 (сейчас %q)", c.Auth.JWT.Algorithm)
	}
	key := strings.TrimSpace(c.Auth.JWT.SigningKey)
	if key != "" {
		if strings.Contains(key, "${") && strings.Contains(key, "}") {
			return fmt.Errorf("auth.jwt.signing_key содержит неподставленную переменную: %q", key)
		}
		// Для HS256 ключ должен быть длинным и случайным
		if len(key) < 32 {
			return fmt.Errorf("auth.jwt.signing_key слишком короткий (%d символов); нужно >= 32", len(key))
		}
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format должен быть json|console (сейчас %q)", c.Log.Format)
	}

	return nil
}

// ApplyEnvOverrides даёт возможность переопределять некоторые настройки
// через переменные окружения без ${...} в yaml.
// Например REQUIETY_PORT=9090 переопределит server.port.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("REQUIETY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("REQUIETY_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("REQUIETY_STORE"); v != "" {
		c.Store.Driver = v
	}
}
