package auth

import (
	"errors"
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Argon2Hasher {
	t.Helper()
	// Low cost parameters keep the suite fast; encodings are shape-identical
	// to production output.
	return NewArgon2Hasher(Argon2Params{
		Memory:     1024,
		Time:       1,
		Threads:    1,
		SaltLength: 16,
		KeyLength:  32,
	})
}

func TestHashPassword(t *testing.T) {
	hasher := testHasher(t)
	password := "testpassword123"

	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == "" {
		t.Error("Hash should not be empty")
	}
	if hash == password {
		t.Error("Hash should not equal original password")
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("Hash should be PHC argon2id encoded, got %q", hash)
	}
}

func TestVerifyPassword(t *testing.T) {
	hasher := testHasher(t)
	password := "testpassword123"

	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	match, err := hasher.Verify(hash, password)
	if err != nil {
		t.Fatalf("Verify returned error for valid hash: %v", err)
	}
	if !match {
		t.Error("Verify should match the original password")
	}

	match, err = hasher.Verify(hash, "wrongpassword")
	if err != nil {
		t.Fatalf("Verify should not error on mismatch: %v", err)
	}
	if match {
		t.Error("Verify should not match a wrong password")
	}
}

func TestHashPassword_DifferentHashes(t *testing.T) {
	hasher := testHasher(t)
	password := "testpassword123"

	hash1, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	hash2, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	// Fresh salt per call.
	if hash1 == hash2 {
		t.Error("Same password should produce different hashes")
	}

	for _, h := range []string{hash1, hash2} {
		match, err := hasher.Verify(h, password)
		if err != nil || !match {
			t.Errorf("Hash %q should verify the original password (match=%v, err=%v)", h, match, err)
		}
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	hasher := testHasher(t)

	cases := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"plaintext", "notahash"},
		{"wrong algorithm", "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{"wrong version", "$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{"missing sections", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA"},
		{"bad salt base64", "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5"},
		{"bad key base64", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$!!!"},
		{"garbled params", "$argon2id$v=19$m=abc$c2FsdA$a2V5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			match, err := hasher.Verify(tc.encoded, "whatever")
			if !errors.Is(err, ErrMalformedHash) {
				t.Errorf("Verify(%q) error = %v, want ErrMalformedHash", tc.encoded, err)
			}
			if match {
				t.Errorf("Verify(%q) should not report a match", tc.encoded)
			}
		})
	}
}

func TestVerifyPassword_ParamsFromEncoding(t *testing.T) {
	// Verification reads cost parameters out of the encoded string, so a hash
	// produced under one cost profile verifies under a hasher built with
	// different defaults.
	producer := NewArgon2Hasher(Argon2Params{Memory: 2048, Time: 2, Threads: 1, SaltLength: 16, KeyLength: 32})
	consumer := testHasher(t)

	hash, err := producer.Hash("crossparams1A")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	match, err := consumer.Verify(hash, "crossparams1A")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !match {
		t.Error("Verify should honour the parameters embedded in the encoding")
	}
}

func TestNewArgon2Hasher_ZeroFieldsUseDefaults(t *testing.T) {
	hasher := NewArgon2Hasher(Argon2Params{})
	def := DefaultArgon2Params()
	if hasher.params != def {
		t.Errorf("Zero params should fall back to defaults, got %+v", hasher.params)
	}
}
