package core

import (
	"regexp"
	"strconv"
	"testing"
)

func TestNewMagicLinkToken_FormatAndUniqueness(t *testing.T) {
	hexPattern := regexp.MustCompile(`^[0-9a-f]{64}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := NewMagicLinkToken()
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		if !hexPattern.MatchString(tok) {
			t.Fatalf("token %q is not 64 hex chars", tok)
		}
		if seen[tok] {
			t.Fatalf("token %q generated twice", tok)
		}
		seen[tok] = true
	}
}

func TestNewSMSOTP_Range(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewSMSOTP()
		if err != nil {
			t.Fatalf("generate otp: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("otp %q is not 6 digits", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("otp %q is not numeric: %v", code, err)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("otp %d out of range", n)
		}
	}
}

func TestHashSecret(t *testing.T) {
	h1 := HashSecret("some-secret")
	h2 := HashSecret("some-secret")
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
	if HashSecret("other-secret") == h1 {
		t.Fatalf("distinct secrets produced identical hashes")
	}
}
