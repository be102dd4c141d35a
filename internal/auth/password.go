package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/credfort/credfort-backend/internal/pkg/metrics"
)

// ErrMalformedHash reports a stored hash that cannot be parsed or uses an
// unsupported algorithm. It is a storage-corruption signal, never returned for
// an ordinary password mismatch.
var ErrMalformedHash = errors.New("malformed password hash")

// Hasher hashes and verifies passwords. Verify returns (false, nil) for a
// mismatch; errors are reserved for unusable hash encodings.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
}

// Argon2Params captures the tunable cost parameters for Argon2id.
type Argon2Params struct {
	Memory     uint32
	Time       uint32
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

// DefaultArgon2Params returns the production cost parameters: 10 passes over
// 64 MiB with parallelism 8.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:     64 * 1024,
		Time:       10,
		Threads:    8,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Argon2Hasher implements Hasher with Argon2id, emitting PHC-encoded strings
// of the form $argon2id$v=19$m=...,t=...,p=...$salt$key.
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher builds a hasher with the given parameters. Zero-value fields
// fall back to the defaults.
func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	def := DefaultArgon2Params()
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.Threads == 0 {
		params.Threads = def.Threads
	}
	if params.SaltLength == 0 {
		params.SaltLength = def.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = def.KeyLength
	}
	return &Argon2Hasher{params: params}
}

// Hash returns a PHC-encoded argon2id hash of the password. A fresh random
// salt makes every call produce a different encoding for the same input.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	start := time.Now()
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLength)
	metrics.HashDurationSeconds.Observe(time.Since(start).Seconds())
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash with the parameters and salt embedded in encoded
// and compares in constant time. A wrong password is (false, nil); only an
// unparseable encoding yields ErrMalformedHash.
func (h *Argon2Hasher) Verify(encoded, password string) (bool, error) {
	salt, key, params, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func decodeHash(encoded string) (salt, key []byte, params Argon2Params, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, params, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, params, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return nil, nil, params, ErrMalformedHash
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, ErrMalformedHash
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, params, ErrMalformedHash
	}
	return salt, key, params, nil
}
