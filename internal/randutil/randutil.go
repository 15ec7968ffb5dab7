// Package randutil constructs the fast PRNGs used throughout the harness.
//
// Every worker goroutine owns its own generator, seeded once from the
// system entropy source. Determinism across runs is explicitly not a goal,
// but all consumers accept an injected *rand.Rand so tests can pin a seed.
package randutil

import (
	crand "crypto/rand"
	"math/rand/v2"
)

// New returns a ChaCha8-backed generator seeded from crypto/rand.
func New() *rand.Rand {
	var seed [32]byte
	// crypto/rand.Read is documented never to fail.
	if _, err := crand.Read(seed[:]); err != nil {
		panic("randutil: entropy source failed: " + err.Error())
	}
	return rand.New(rand.NewChaCha8(seed))
}

// NewSeeded returns a deterministic generator for tests.
func NewSeeded(seed uint64) *rand.Rand {
	var s [32]byte
	for i := 0; i < 8; i++ {
		s[i] = byte(seed >> (8 * i))
	}
	return rand.New(rand.NewChaCha8(s))
}
