package tests

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
)

// fastParams — дешёвые параметры argon2id, чтобы тесты не тормозили.
func fastParams() crypto.KDFParams {
	return crypto.KDFParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: crypto.KeySize}
}

func newCodec(t *testing.T, secret string) *crypto.AESCodec {
	t.Helper()
	c, err := crypto.NewAESCodec(secret, []byte("0123456789abcdef"), fastParams())
	require.NoError(t, err)
	return c
}

func TestEncryptDecrypt_RoundTrip_Success(t *testing.T) {
	c := newCodec(t, "StrongPass123!")

	enc, err := c.Encrypt("sek")
	require.NoError(t, err)
	require.NotEqual(t, "sek", enc)
	require.True(t, strings.HasPrefix(enc, crypto.FormatMagic))
	require.True(t, c.IsEncrypted(enc))

	got, err := c.Decrypt(enc)
	require.NoError(t, err)
	require.Equal(t, "sek", got)
}

func TestEncrypt_UsesFreshNonce(t *testing.T) {
	c := newCodec(t, "pw")

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestEncryptDecrypt_EmptyPlaintext(t *testing.T) {
	c := newCodec(t, "pw")

	enc, err := c.Encrypt("")
	require.NoError(t, err)
	require.True(t, c.IsEncrypted(enc))

	got, err := c.Decrypt(enc)
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestDecrypt_EmptyString_ShortCircuits(t *testing.T) {
	c := newCodec(t, "pw")

	got, err := c.Decrypt("")
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestDecrypt_WrongKey_ReturnsErrAuthFailed(t *testing.T) {
	enc, err := newCodec(t, "pw").Encrypt("secret")
	require.NoError(t, err)

	_, err = newCodec(t, "wrong").Decrypt(enc)
	require.ErrorIs(t, err, crypto.ErrAuthFailed)
}

func TestDecrypt_NoMarker_ReturnsErrInvalidFormat(t *testing.T) {
	c := newCodec(t, "pw")

	_, err := c.Decrypt("plaintext")
	require.ErrorIs(t, err, crypto.ErrInvalidFormat)

	_, err = c.Decrypt(crypto.FormatMagic + "%%%not-base64")
	require.ErrorIs(t, err, crypto.ErrInvalidFormat)
}

func TestDecrypt_Short_ReturnsErrCiphertextShort(t *testing.T) {
	c := newCodec(t, "pw")

	_, err := c.Decrypt(crypto.FormatMagic + "AAAA")
	require.ErrorIs(t, err, crypto.ErrCiphertextShort)
}

func TestNewAESCodec_EmptySecret(t *testing.T) {
	_, err := crypto.NewAESCodec("", []byte("0123456789abcdef"), fastParams())
	require.ErrorIs(t, err, crypto.ErrEmptySecret)
}

func TestUnavailableCodec(t *testing.T) {
	var c crypto.Codec = crypto.UnavailableCodec{}

	_, err := c.Encrypt("x")
	require.True(t, errors.Is(err, serr.ErrEncryptionUnavailable))

	_, err = c.Decrypt(crypto.FormatMagic + "abc")
	require.ErrorIs(t, err, serr.ErrEncryptionUnavailable)

	got, err := c.Decrypt("")
	require.NoError(t, err)
	require.Equal(t, "", got)

	require.True(t, c.IsEncrypted(crypto.FormatMagic+"abc"))
	require.False(t, c.IsEncrypted("abc"))
}
