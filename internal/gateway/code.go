package gateway

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"sync"
	"time"
)

const codeLength = 8

// codeIssuer owns the short-lived connection code gating new clients.
// The code regenerates on demand once expired; it is never persisted.
type codeIssuer struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	code      string
	expiresAt time.Time
}

func newCodeIssuer(ttl time.Duration) *codeIssuer {
	return &codeIssuer{ttl: ttl, now: time.Now}
}

// Current returns the live code, minting a fresh one if absent or expired.
func (ci *codeIssuer) Current() (code string, expiresAt time.Time, err error) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	now := ci.now().UTC()
	if ci.code == "" || !now.Before(ci.expiresAt) {
		fresh, err := generateCode()
		if err != nil {
			return "", time.Time{}, err
		}
		ci.code = fresh
		ci.expiresAt = now.Add(ci.ttl)
	}
	return ci.code, ci.expiresAt, nil
}

// Validate checks a presented code against the live one. An empty code is
// accepted: clients presenting no code authenticate permissively.
func (ci *codeIssuer) Validate(presented string) bool {
	if presented == "" {
		return true
	}
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if ci.code == "" || !ci.now().UTC().Before(ci.expiresAt) {
		return false
	}
	return presented == ci.code
}

func generateCode() (string, error) {
	raw := make([]byte, 5)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate connection code: %w", err)
	}
	return base32.StdEncoding.EncodeToString(raw)[:codeLength], nil
}
