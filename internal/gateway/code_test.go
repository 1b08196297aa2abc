package gateway

import (
	"testing"
	"time"
)

func TestConnectionCodeMintsAndReuses(t *testing.T) {
	clock := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	ci := newCodeIssuer(time.Minute)
	ci.now = func() time.Time { return clock }

	first, expiresAt, err := ci.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if len(first) != codeLength {
		t.Fatalf("code length = %d, want %d", len(first), codeLength)
	}
	if !expiresAt.Equal(clock.Add(time.Minute)) {
		t.Fatalf("expiresAt = %v, want %v", expiresAt, clock.Add(time.Minute))
	}

	second, _, err := ci.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if second != first {
		t.Fatalf("unexpired code regenerated: %q then %q", first, second)
	}

	clock = clock.Add(2 * time.Minute)
	third, _, err := ci.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if third == first {
		t.Fatalf("expired code was reused")
	}
}

func TestConnectionCodeValidate(t *testing.T) {
	clock := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	ci := newCodeIssuer(time.Minute)
	ci.now = func() time.Time { return clock }

	if !ci.Validate("") {
		t.Fatalf("empty code should always validate")
	}
	if ci.Validate("ABCDEFGH") {
		t.Fatalf("code validated before any was minted")
	}

	code, _, err := ci.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !ci.Validate(code) {
		t.Fatalf("live code rejected")
	}
	if ci.Validate("WRONGCOD") {
		t.Fatalf("wrong code accepted")
	}

	clock = clock.Add(2 * time.Minute)
	if ci.Validate(code) {
		t.Fatalf("expired code accepted")
	}
}
