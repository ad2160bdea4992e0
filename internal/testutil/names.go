package testutil

import (
	"fmt"
	"sync"
)

// FixedNames returns predetermined pseudonyms for testing.
//
// Names are returned in order; once they are exhausted the generator falls
// back to "user-N". A sequence with repeats exercises pseudonym collision
// handling.
//
// Thread-safety: FixedNames is safe for concurrent use via internal mutex.
type FixedNames struct {
	mu    sync.Mutex
	names []string
	idx   int
}

// NewFixedNames creates a generator that returns names in order.
//
// Example:
//
//	gen := NewFixedNames("ada", "grace")
//	gen.Generate() // "ada"
//	gen.Generate() // "grace"
//	gen.Generate() // "user-3"
func NewFixedNames(names ...string) *FixedNames {
	return &FixedNames{names: names}
}

// Generate returns the next predetermined pseudonym.
func (g *FixedNames) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idx++
	if g.idx <= len(g.names) {
		return g.names[g.idx-1]
	}
	return fmt.Sprintf("user-%d", g.idx)
}
