package tests

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tiomoreno/requiety-sub000/internal/server/config"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
)

func TestExpandEnvStrict_ReplacesExistingEnv(t *testing.T) {
	t.Setenv("REQUIETY_TEST_DSN", "postgres://u:p@localhost:5432/requiety")

	in := `dsn: "${REQUIETY_TEST_DSN}"`
	out := config.ExpandEnvStrict(in)

	if out != `dsn: "postgres://u:p@localhost:5432/requiety"` {
		t.Fatalf("expected env to be expanded, got %q", out)
	}
}

func TestExpandEnvStrict_LeavesUnknownEnvAsIs(t *testing.T) {
	in := `signing_key: "${REQUIETY_MISSING_ENV}"`
	out := config.ExpandEnvStrict(in)

	if out != in {
		t.Fatalf("expected unknown env placeholder to remain unchanged, got %q", out)
	}
}

func TestApplyDefaults_SetsExpectedDefaults(t *testing.T) {
	cfg := &config.Config{DataDir: "/tmp/rq"}
	config.ApplyDefaults(cfg)

	if cfg.Env != "dev" {
		t.Fatalf("expected Env=dev, got %q", cfg.Env)
	}
	if cfg.Server.Port != 7811 {
		t.Fatalf("expected Server.Port=7811, got %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != config.StoreSQLite {
		t.Fatalf("expected Store.Driver=sqlite, got %q", cfg.Store.Driver)
	}
	if cfg.Store.Path != filepath.Join("/tmp/rq", "requiety.db") {
		t.Fatalf("unexpected Store.Path %q", cfg.Store.Path)
	}
	if cfg.Crypto.KeyFile != filepath.Join("/tmp/rq", "master.key") {
		t.Fatalf("unexpected Crypto.KeyFile %q", cfg.Crypto.KeyFile)
	}
	if cfg.Crypto.MasterKeyEnv != "REQUIETY_MASTER_KEY" {
		t.Fatalf("unexpected Crypto.MasterKeyEnv %q", cfg.Crypto.MasterKeyEnv)
	}
	if cfg.Runner.StepDelay != 100*time.Millisecond {
		t.Fatalf("expected Runner.StepDelay=100ms, got %s", cfg.Runner.StepDelay)
	}
	if cfg.Auth.JWT.Algorithm != "HS256" {
		t.Fatalf("expected Auth.JWT.Algorithm=HS256, got %q", cfg.Auth.JWT.Algorithm)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected Log.Level=info, got %q", cfg.Log.Level)
	}
	if cfg.Log.Dir != filepath.Join("/tmp/rq", "logs") {
		t.Fatalf("unexpected Log.Dir %q", cfg.Log.Dir)
	}
}

func TestApplyDefaults_FileDriverUsesJSONPath(t *testing.T) {
	cfg := &config.Config{DataDir: "/tmp/rq", Store: config.StoreConfig{Driver: config.StoreFile}}
	config.ApplyDefaults(cfg)

	if cfg.Store.Path != filepath.Join("/tmp/rq", "requiety.json") {
		t.Fatalf("unexpected Store.Path %q", cfg.Store.Path)
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
}

func TestValidate_ServerHostRequired(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Server.Host = ""

	if err := cfg.Validate(); err == nil {
		t.Fatalf("%s, got nil", serr.ErrExpectedError.Error())
	}
}

func TestValidate_UnknownStoreDriver(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Store.Driver = "mongo"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("%s, got nil", serr.ErrExpectedError.Error())
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Store.Driver = config.StorePostgres
	cfg.Store.DSN = ""

	if err := cfg.Validate(); err == nil {
		t.Fatalf("%s, got nil", serr.ErrExpectedError.Error())
	}

	cfg.Store.DSN = "${REQUIETY_DSN}"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("%s for unexpanded dsn, got nil", serr.ErrExpectedError.Error())
	}
}

func TestValidate_NegativeStepDelay(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Runner.StepDelay = -time.Millisecond

	if err := cfg.Validate(); err == nil {
		t.Fatalf("%s, got nil", serr.ErrExpectedError.Error())
	}
}

func TestValidate_JWTSigningKeyMustBeLong(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Auth.JWT.SigningKey = "short-key"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("%s, got nil", serr.ErrExpectedError.Error())
	}
}

func TestValidate_RejectsUnexpandedEnvInSigningKey(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Auth.JWT.SigningKey = "${REQUIETY_JWT_SIGNING_KEY_WHICH_IS_LONG}"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("%s, got nil", serr.ErrExpectedError.Error())
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := minimalValidConfig()

	t.Setenv("REQUIETY_PORT", "9090")
	t.Setenv("REQUIETY_DATA_DIR", "/var/lib/requiety")
	t.Setenv("REQUIETY_STORE", "memory")
	cfg.ApplyEnvOverrides()

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port=9090, got %d", cfg.Server.Port)
	}
	if cfg.DataDir != "/var/lib/requiety" {
		t.Fatalf("expected data dir override, got %q", cfg.DataDir)
	}
	if cfg.Store.Driver != config.StoreMemory {
		t.Fatalf("expected store override, got %q", cfg.Store.Driver)
	}
}

func TestLoad_ExpandsEnv_AppliesDefaults_AndValidates(t *testing.T) {
	t.Setenv("REQUIETY_TEST_SIGNING_KEY", "supersecretkeysupersecretkey123456")

	tmpDir := t.TempDir()
	yml := `
env: dev
data_dir: "` + tmpDir + `"
server:
  host: "127.0.0.1"
  port: 0
store:
  driver: "file"
runner:
  step_delay: 5ms
auth:
  jwt:
    algorithm: ""
    signing_key: "${REQUIETY_TEST_SIGNING_KEY}"
log:
  level: ""
  format: "json"
`

	p := filepath.Join(tmpDir, "requiety.yaml")
	if err := os.WriteFile(p, []byte(yml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load(p)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	// проверяем дефолты
	if cfg.Server.Port != 7811 {
		t.Fatalf("expected default port=7811, got %d", cfg.Server.Port)
	}
	if cfg.Store.Path != filepath.Join(tmpDir, "requiety.json") {
		t.Fatalf("unexpected store path %q", cfg.Store.Path)
	}
	if cfg.Runner.StepDelay != 5*time.Millisecond {
		t.Fatalf("expected step delay 5ms, got %s", cfg.Runner.StepDelay)
	}
	if cfg.Auth.JWT.Algorithm != "HS256" {
		t.Fatalf("expected default jwt algorithm HS256, got %q", cfg.Auth.JWT.Algorithm)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Log.Level)
	}

	// проверяем, что env подставился (не остался ${...})
	if strings.Contains(cfg.Auth.JWT.SigningKey, "${") {
		t.Fatalf("expected signing key to be expanded, got %q", cfg.Auth.JWT.SigningKey)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	t.Setenv("REQUIETY_DATA_DIR", t.TempDir())

	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault returned error: %v", err)
	}
	if cfg.Store.Driver != config.StoreSQLite {
		t.Fatalf("expected default driver, got %q", cfg.Store.Driver)
	}
}

func TestLoadOrDefaultIn_DataDirWins(t *testing.T) {
	t.Setenv("REQUIETY_DATA_DIR", t.TempDir())
	dir := t.TempDir()

	cfg, err := config.LoadOrDefaultIn("", dir)
	if err != nil {
		t.Fatalf("LoadOrDefaultIn returned error: %v", err)
	}
	if cfg.DataDir != dir {
		t.Fatalf("expected data dir %q, got %q", dir, cfg.DataDir)
	}
	if cfg.Store.Path != filepath.Join(dir, "requiety.db") {
		t.Fatalf("store path must follow data dir, got %q", cfg.Store.Path)
	}
	if cfg.Crypto.KeyFile != filepath.Join(dir, "master.key") {
		t.Fatalf("key file must follow data dir, got %q", cfg.Crypto.KeyFile)
	}
}

func TestLoadOrDefaultIn_FileWithDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	p := filepath.Join(tmpDir, "requiety.yaml")
	yml := "data_dir: /should/not/be/used\nstore:\n  driver: file\n"
	if err := os.WriteFile(p, []byte(yml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dir := t.TempDir()
	cfg, err := config.LoadOrDefaultIn(p, dir)
	if err != nil {
		t.Fatalf("LoadOrDefaultIn returned error: %v", err)
	}
	if cfg.Store.Path != filepath.Join(dir, "requiety.json") {
		t.Fatalf("unexpected store path %q", cfg.Store.Path)
	}
}

// --- helpers ---

func minimalValidConfig() *config.Config {
	return &config.Config{
		Env:     "dev",
		DataDir: "/tmp/requiety",
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 7811,
		},
		Store: config.StoreConfig{
			Driver: config.StoreMemory,
		},
		Crypto: config.CryptoConfig{
			Argon2: config.Argon2Config{Time: 1, MemoryKiB: 1024, Threads: 1},
		},
		Auth: config.AuthConfig{
			JWT: config.JWTConfig{
				Algorithm:  "HS256",
				SigningKey: "supersecretkeysupersecretkey123456",
			},
		},
		Log: config.LogConfig{Format: "json"},
	}
}
