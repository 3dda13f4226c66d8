package security

import (
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()

	// Light parameters keep the test fast; format handling is identical.
	h, err := NewHasher(Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher returned error: %v", err)
	}
	return h
}

func TestHasher_HashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("Sup3r$ecret!")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if !strings.HasPrefix(encoded, "argon2id$v=19$") {
		t.Fatalf("unexpected digest prefix: %s", encoded)
	}

	ok, err := h.Verify("Sup3r$ecret!", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected matching password to verify")
	}

	ok, err = h.Verify("wrong-password", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatched password to fail verification")
	}
}

func TestHasher_SaltVariesPerHash(t *testing.T) {
	h := testHasher(t)

	first, err := h.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := h.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct digests for repeated hashing")
	}
}

func TestHasher_VerifyMalformedDigest(t *testing.T) {
	h := testHasher(t)

	cases := []string{
		"",
		"not-a-digest",
		"argon2id$v=19$m=8192,t=1,p=1$only-four-parts",
		"bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"argon2id$v=19$m=abc,t=1,p=1$c2FsdA$aGFzaA",
	}

	for _, digest := range cases {
		if _, err := h.Verify("anything", digest); err == nil {
			t.Fatalf("expected error for digest %q", digest)
		}
	}
}

func TestNewHasher_RejectsWeakConfig(t *testing.T) {
	cases := []Argon2Config{
		{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Iterations: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Iterations: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 4, KeyLength: 32},
		{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}

	for i, cfg := range cases {
		if _, err := NewHasher(cfg); err == nil {
			t.Fatalf("case %d: expected config validation error", i)
		}
	}
}

func TestHasher_ConcurrentHashingWithGate(t *testing.T) {
	h, err := NewHasher(Argon2Config{
		Memory:        8 * 1024,
		Iterations:    1,
		Parallelism:   1,
		SaltLength:    16,
		KeyLength:     32,
		MaxConcurrent: 2,
	})
	if err != nil {
		t.Fatalf("NewHasher returned error: %v", err)
	}

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := h.Hash("concurrent-input")
			done <- err
		}()
	}

	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Hash returned error: %v", err)
		}
	}
}
