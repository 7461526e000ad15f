package security

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/mediastudio/studio-api/internal/core/domain"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	c, err := NewCodec(key)
	if err != nil {
		t.Fatalf("NewCodec returned error: %v", err)
	}
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	binary := make([]byte, 257)
	if _, err := rand.Read(binary); err != nil {
		t.Fatalf("rand: %v", err)
	}

	for _, in := range [][]byte{
		{},
		[]byte("sk-abcdefghijklmnop"),
		[]byte("r8_ünïcødé-kéy"),
		{0x00, 0xff, 0x00},
		binary,
	} {
		env, err := c.Encrypt(in)
		if err != nil {
			t.Fatalf("Encrypt returned error: %v", err)
		}
		if !IsEncrypted(env) {
			t.Fatalf("envelope not recognised: %q", env)
		}

		out, err := c.Decrypt(env)
		if err != nil {
			t.Fatalf("Decrypt returned error: %v", err)
		}
		if !bytes.Equal(in, out) {
			t.Fatalf("round trip mismatch: %x != %x", in, out)
		}
	}
}

func TestCodec_FreshNonce(t *testing.T) {
	c := newTestCodec(t)
	a, errA := c.EncryptString("same")
	b, errB := c.EncryptString("same")
	if errA != nil || errB != nil {
		t.Fatalf("EncryptString returned error: %v %v", errA, errB)
	}
	if a == b {
		t.Fatalf("two encryptions produced the same envelope")
	}
}

func TestCodec_TamperedEnvelope(t *testing.T) {
	c := newTestCodec(t)
	env, err := c.EncryptString("sk-live-secret")
	if err != nil {
		t.Fatalf("EncryptString returned error: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(env, EnvelopePrefix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := EnvelopePrefix + base64.RawURLEncoding.EncodeToString(raw)

	if _, err := c.Decrypt(tampered); !errors.Is(err, domain.ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
}

func TestCodec_ForeignKey(t *testing.T) {
	env, err := newTestCodec(t).EncryptString("sk-live-secret")
	if err != nil {
		t.Fatalf("EncryptString returned error: %v", err)
	}
	if _, err := newTestCodec(t).DecryptString(env); !errors.Is(err, domain.ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
}

func TestCodec_MalformedEnvelope(t *testing.T) {
	c := newTestCodec(t)
	for _, in := range []string{
		"sk-plaintext-key",
		EnvelopePrefix + "***",
		EnvelopePrefix + "c2hvcnQ",
	} {
		if _, err := c.Decrypt(in); !errors.Is(err, domain.ErrDecryption) {
			t.Fatalf("%q: expected ErrDecryption, got %v", in, err)
		}
	}
}

func TestIsEncrypted_LegacyValues(t *testing.T) {
	for _, v := range []string{
		"",
		"sk-abcdefghijklmnop",
		"r8_abcdefghijklmnopqrstuvwxyz",
		"enc:v1:",
		"enc:v1:c2hvcnQ",
		"enc:v1:not base64 at all but long enough to pass the length check",
	} {
		if IsEncrypted(v) {
			t.Fatalf("%q must not look encrypted", v)
		}
	}
}

func TestNewCodec_KeyLength(t *testing.T) {
	if _, err := NewCodec(make([]byte, 16)); err == nil {
		t.Fatalf("expected error for a 16 byte key")
	}
}

func TestParseKey(t *testing.T) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand: %v", err)
	}

	for name, in := range map[string]string{
		"hex":    hex.EncodeToString(raw),
		"base64": base64.StdEncoding.EncodeToString(raw),
	} {
		k, stretched, err := ParseKey(in)
		if err != nil {
			t.Fatalf("%s: ParseKey returned error: %v", name, err)
		}
		if stretched || !bytes.Equal(raw, k) {
			t.Fatalf("%s: expected the raw key back, stretched=%v", name, stretched)
		}
	}

	k, stretched, err := ParseKey("a passphrase that is not a key")
	if err != nil {
		t.Fatalf("ParseKey returned error: %v", err)
	}
	if !stretched || len(k) != 32 {
		t.Fatalf("expected a stretched 32 byte key, got stretched=%v len=%d", stretched, len(k))
	}

	if _, _, err := ParseKey("  "); err == nil {
		t.Fatalf("expected error for a blank key")
	}
}
