package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator generates predictable request IDs: "<prefix>-1",
// "<prefix>-2", ...
//
// This keeps golden traces byte-identical across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedIDGenerator creates a generator. An empty prefix defaults to "req".
func NewFixedIDGenerator(prefix string) *FixedIDGenerator {
	if prefix == "" {
		prefix = "req"
	}
	return &FixedIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
