// Package secrets seals provider token material before it is written to the store.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedPrefix = "sb1:"
	nonceLength  = 24
	keyLength    = 32
)

var (
	// ErrMalformed is returned when a sealed value cannot be decoded.
	ErrMalformed = errors.New("secrets: malformed sealed value")
	// ErrDecrypt is returned when a sealed value fails authentication.
	ErrDecrypt = errors.New("secrets: unable to open sealed value")
	// ErrNoKey is returned when a sealed value is opened without a configured secret.
	ErrNoKey = errors.New("secrets: sealed value found but no secret is configured")
)

// KeyParams controls the argon2id derivation of the sealing key.
type KeyParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
}

// DefaultKeyParams is tuned for the handful of credentials opened per request.
var DefaultKeyParams = KeyParams{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
}

// Box seals and opens strings. A nil *Box stores values unchanged.
type Box struct {
	secret []byte
	params KeyParams
	rand   io.Reader
}

// NewBox returns a Box keyed by secret, or nil when secret is empty.
func NewBox(secret string) *Box {
	return NewBoxWithParams(secret, DefaultKeyParams)
}

// NewBoxWithParams is NewBox with explicit key derivation parameters.
func NewBoxWithParams(secret string, params KeyParams) *Box {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	return &Box{secret: []byte(secret), params: params, rand: rand.Reader}
}

// Seal encrypts plaintext. Empty input stays empty so optional columns remain blank.
func (b *Box) Seal(plaintext string) (string, error) {
	if b == nil || plaintext == "" {
		return plaintext, nil
	}

	salt := make([]byte, b.params.SaltLength)
	if _, err := io.ReadFull(b.rand, salt); err != nil {
		return "", fmt.Errorf("secrets: read salt: %w", err)
	}
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(b.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: read nonce: %w", err)
	}

	key := b.deriveKey(salt)
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &key)

	return sealedPrefix +
		base64.RawStdEncoding.EncodeToString(salt) + ":" +
		base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix are
// returned unchanged so rows written before a secret was configured stay readable.
func (b *Box) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if b == nil {
		return "", ErrNoKey
	}

	parts := strings.Split(strings.TrimPrefix(value, sealedPrefix), ":")
	if len(parts) != 2 {
		return "", ErrMalformed
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformed
	}
	payload, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil || len(payload) < nonceLength+secretbox.Overhead {
		return "", ErrMalformed
	}

	var nonce [nonceLength]byte
	copy(nonce[:], payload[:nonceLength])
	key := b.deriveKey(salt)

	plaintext, ok := secretbox.Open(nil, payload[nonceLength:], &nonce, &key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

func (b *Box) deriveKey(salt []byte) [keyLength]byte {
	derived := argon2.IDKey(b.secret, salt, b.params.Iterations, b.params.Memory, b.params.Parallelism, keyLength)
	var key [keyLength]byte
	copy(key[:], derived)
	return key
}
