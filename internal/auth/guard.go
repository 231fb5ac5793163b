package auth

import (
	"crypto/subtle"
	"strings"
	"sync"
)

// TokenProvider supplies the shared secret. The server wires in either the
// credential store or a fixed token from the environment.
type TokenProvider interface {
	LoadOrCreateToken() (string, error)
}

// StaticToken is a TokenProvider returning a fixed value, used when the
// operator pins the token through an environment variable.
type StaticToken string

// LoadOrCreateToken returns the fixed token.
func (s StaticToken) LoadOrCreateToken() (string, error) {
	return string(s), nil
}

// Guard verifies presented tokens against the shared secret. The secret is
// materialized from the provider on first use and held for the process
// lifetime. Safe for concurrent use.
type Guard struct {
	provider TokenProvider

	once  sync.Once
	token string
	err   error
}

// NewGuard creates a Guard backed by the given provider.
func NewGuard(provider TokenProvider) *Guard {
	return &Guard{provider: provider}
}

// Token returns the shared secret, loading it on first call. Callers that
// want provider failures surfaced at startup call this once during wiring.
func (g *Guard) Token() (string, error) {
	g.once.Do(func() {
		g.token, g.err = g.provider.LoadOrCreateToken()
	})
	return g.token, g.err
}

// Verify reports whether candidate matches the shared secret. Candidates
// that are empty after trimming always fail, as does a provider error.
// The comparison runs in constant time over the full length of the longer
// string, so timing reveals neither the token length nor how deep a prefix
// matched.
func (g *Guard) Verify(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}

	token, err := g.Token()
	if err != nil || token == "" {
		return false
	}

	return constantTimeEqual(candidate, token)
}

// constantTimeEqual compares a and b byte by byte across the longer of the
// two lengths, folding the length check into the same accumulated result.
func constantTimeEqual(a, b string) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	v := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	for i := 0; i < n; i++ {
		var ca, cb byte
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		v &= subtle.ConstantTimeByteEq(ca, cb)
	}
	return v == 1
}
