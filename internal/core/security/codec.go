package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mediastudio/studio-api/internal/core/domain"
)

// EnvelopePrefix marks a value produced by Codec.Encrypt.
// Format: enc:v1:base64url(nonce|ciphertext|tag)
const EnvelopePrefix = "enc:v1:"

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

// Codec encrypts stored third-party credentials with AES-256-GCM under a
// server-held key. The envelope is self-describing: Decrypt needs nothing but
// the envelope and the key.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a Codec from a 32 byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("codec: key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("codec: create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("codec: create GCM: %w", err)
	}
	return &Codec{aead: gcm}, nil
}

// ParseKey decodes a configured key. 64 hex characters or base64 of 32 bytes
// are used as-is; anything else is stretched with SHA-256 and stretched is
// reported so the caller can warn about it.
func ParseKey(s string) (key []byte, stretched bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false, errors.New("codec: encryption key is empty")
	}
	if len(s) == hex.EncodedLen(keySize) {
		if b, err := hex.DecodeString(s); err == nil {
			return b, false, nil
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil && len(b) == keySize {
			return b, false, nil
		}
	}
	sum := sha256.Sum256([]byte(s))
	return sum[:], true, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("codec: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return EnvelopePrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// EncryptString is Encrypt for string values.
func (c *Codec) EncryptString(plaintext string) (string, error) {
	return c.Encrypt([]byte(plaintext))
}

// Decrypt opens an envelope. Any malformed, tampered or foreign-key envelope
// yields an error wrapping domain.ErrDecryption.
func (c *Codec) Decrypt(envelope string) ([]byte, error) {
	if !strings.HasPrefix(envelope, EnvelopePrefix) {
		return nil, fmt.Errorf("%w: missing envelope prefix", domain.ErrDecryption)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(envelope, EnvelopePrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encoding", domain.ErrDecryption)
	}
	if len(raw) < nonceSize+tagSize {
		return nil, fmt.Errorf("%w: envelope too short", domain.ErrDecryption)
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", domain.ErrDecryption)
	}
	return plaintext, nil
}

// DecryptString is Decrypt for string values.
func (c *Codec) DecryptString(envelope string) (string, error) {
	b, err := c.Decrypt(envelope)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsEncrypted is a cheap shape check telling envelopes apart from legacy
// plaintext keys. It does not prove the envelope decrypts.
func IsEncrypted(value string) bool {
	if !strings.HasPrefix(value, EnvelopePrefix) {
		return false
	}
	body := value[len(EnvelopePrefix):]
	if base64.RawURLEncoding.DecodedLen(len(body)) < nonceSize+tagSize {
		return false
	}
	for _, r := range body {
		if !isBase64URL(r) {
			return false
		}
	}
	return true
}

func isBase64URL(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}
