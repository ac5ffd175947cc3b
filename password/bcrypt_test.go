package password

import (
	"strings"
	"testing"
)

func newTestHasher(t *testing.T) *Bcrypt {
	t.Helper()

	b, err := NewBcrypt(Config{Cost: 10})
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}
	return b
}

func TestHashVerifyRoundTrip(t *testing.T) {
	b := newTestHasher(t)

	hash, err := b.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash equals plaintext")
	}

	ok, err := b.Verify("correct horse battery", hash)
	if err != nil || !ok {
		t.Fatalf("Verify = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = b.Verify("wrong password!!", hash)
	if err != nil {
		t.Fatalf("mismatch must not error: %v", err)
	}
	if ok {
		t.Fatal("wrong password verified")
	}
}

func TestHashLengthBounds(t *testing.T) {
	b := newTestHasher(t)

	if _, err := b.Hash("short"); err == nil {
		t.Fatal("expected short passwords to be rejected")
	}
	if _, err := b.Hash(strings.Repeat("x", 73)); err == nil {
		t.Fatal("expected over-72-byte passwords to be rejected")
	}
	if _, err := b.Hash(strings.Repeat("x", 72)); err != nil {
		t.Fatalf("72-byte password rejected: %v", err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	b := newTestHasher(t)

	if _, err := b.Verify("whatever-pass", "not-a-bcrypt-hash"); err == nil {
		t.Fatal("expected an error for a malformed stored hash")
	}
}

func TestNewBcryptCostBounds(t *testing.T) {
	if _, err := NewBcrypt(Config{Cost: 4}); err == nil {
		t.Fatal("expected low cost to be rejected")
	}
	if _, err := NewBcrypt(Config{Cost: 40}); err == nil {
		t.Fatal("expected out-of-range cost to be rejected")
	}
}
