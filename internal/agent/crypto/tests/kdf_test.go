package tests

import (
	"bytes"
	"testing"

	"github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/server/config"
)

func TestDefaultKDFParams(t *testing.T) {
	p := crypto.DefaultKDFParams()

	if p.KeyLen != crypto.KeySize {
		t.Fatalf("expected KeyLen=%d, got %d", crypto.KeySize, p.KeyLen)
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		t.Fatalf("expected non-zero params, got %+v", p)
	}
}

func TestParamsFromConfig_OverridesNonZero(t *testing.T) {
	p := crypto.ParamsFromConfig(config.Argon2Config{Time: 3, MemoryKiB: 2048})

	if p.Time != 3 || p.Memory != 2048 {
		t.Fatalf("expected overrides, got %+v", p)
	}
	if p.Threads != crypto.DefaultKDFParams().Threads {
		t.Fatalf("expected default threads, got %d", p.Threads)
	}
}

func TestNewSalt_LengthAndRandomness(t *testing.T) {
	s1, err := crypto.NewSalt(crypto.SaltSize)
	if err != nil {
		t.Fatalf("NewSalt error: %v", err)
	}
	s2, err := crypto.NewSalt(crypto.SaltSize)
	if err != nil {
		t.Fatalf("NewSalt error: %v", err)
	}
	if len(s1) != crypto.SaltSize {
		t.Fatalf("expected len=%d, got %d", crypto.SaltSize, len(s1))
	}
	if bytes.Equal(s1, s2) {
		t.Fatalf("expected different salts")
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	p := fastParams()
	salt := []byte("0123456789abcdef")

	k1 := crypto.DeriveKey("pw", salt, p)
	k2 := crypto.DeriveKey("pw", salt, p)
	k3 := crypto.DeriveKey("other", salt, p)

	if !bytes.Equal(k1, k2) {
		t.Fatalf("expected same key for same input")
	}
	if bytes.Equal(k1, k3) {
		t.Fatalf("expected different key for different secret")
	}
	if len(k1) != crypto.KeySize {
		t.Fatalf("expected key len %d, got %d", crypto.KeySize, len(k1))
	}
}
