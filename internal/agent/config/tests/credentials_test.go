package tests

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/tiomoreno/requiety-sub000/internal/agent/config"
)

func TestDefaultPath_InDataDir(t *testing.T) {
	dir := t.TempDir()

	want := filepath.Join(dir, "credentials.json")
	if p := config.DefaultPath(dir); p != want {
		t.Fatalf("expected %q, got %q", want, p)
	}
}

func TestLoad_FileNotExists_ReturnsEmptyCredentials(t *testing.T) {
	tmpDir := t.TempDir()
	p := filepath.Join(tmpDir, "no-such-file.json")

	creds, err := config.Load(p)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if creds == nil {
		t.Fatalf("expected non-nil creds")
	}
	if creds.Token != "" || creds.Endpoint != "" {
		t.Fatalf("expected empty creds, got %+v", *creds)
	}
	if !creds.Expired(time.Now()) {
		t.Fatalf("empty token must be treated as expired")
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	p := filepath.Join(tmpDir, "a", "credentials.json") // вложенная директория

	want := &config.Credentials{
		Endpoint:  "http://127.0.0.1:7811",
		Token:     "token-1",
		ExpiresAt: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	if err := config.Save(p, want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := config.Load(p)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got.Endpoint != want.Endpoint {
		t.Fatalf("expected Endpoint=%q, got %q", want.Endpoint, got.Endpoint)
	}
	if got.Token != want.Token {
		t.Fatalf("expected Token=%q, got %q", want.Token, got.Token)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("expected ExpiresAt=%v, got %v", want.ExpiresAt, got.ExpiresAt)
	}

	// проверим права файла только на linux, на винде он гарантирует эти права.
	if runtime.GOOS != "windows" {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("Stat returned error: %v", err)
		}
		perm := st.Mode().Perm()

		// ожидаем, что группа/остальные не имеют доступа
		if perm&0o077 != 0 {
			t.Fatalf("expected no group/other permissions, got %o", perm)
		}
	}
}

func TestLoad_BadJSON_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	p := filepath.Join(tmpDir, "credentials.json")

	if err := os.WriteFile(p, []byte("{bad-json"), 0o600); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	_, err := config.Load(p)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := &config.Credentials{Token: "t", ExpiresAt: now.Add(time.Minute)}
	if c.Expired(now) {
		t.Fatalf("token valid for another minute reported expired")
	}
	if !c.Expired(now.Add(time.Minute)) {
		t.Fatalf("token at expiry must be expired")
	}

	c.ExpiresAt = time.Time{}
	if c.Expired(now) {
		t.Fatalf("zero ExpiresAt means no expiry")
	}
}

func TestRemove(t *testing.T) {
	p := filepath.Join(t.TempDir(), "credentials.json")
	if err := config.Save(p, &config.Credentials{Token: "x"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := config.Remove(p); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if err := config.Remove(p); err != nil {
		t.Fatalf("second Remove must be a no-op, got %v", err)
	}
}
