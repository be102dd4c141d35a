package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

const nonceSize = 12

// ErrInvalidCookie reports a cookie value that fails decoding or
// authentication. Tampered and stale values surface identically.
var ErrInvalidCookie = errors.New("invalid session cookie")

// Sealer encrypts and authenticates the opaque session handle carried in the
// cookie. AES-256-GCM with a key derived from the configured session secret;
// a random nonce per seal means the same handle never produces the same
// cookie value twice.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the sealing key from secret.
func NewSealer(secret string) (*Sealer, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns base64url(nonce + ciphertext) for the session ID.
func (s *Sealer) Seal(sessionID string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(sessionID), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open recovers the session ID from a cookie value produced by Seal.
func (s *Sealer) Open(value string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", ErrInvalidCookie
	}
	if len(raw) < nonceSize+1 {
		return "", ErrInvalidCookie
	}
	plain, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrInvalidCookie
	}
	return string(plain), nil
}
