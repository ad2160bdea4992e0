package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedNames_InOrderThenFallback(t *testing.T) {
	gen := NewFixedNames("ada", "grace")
	assert.Equal(t, "ada", gen.Generate())
	assert.Equal(t, "grace", gen.Generate())
	assert.Equal(t, "user-3", gen.Generate())
	assert.Equal(t, "user-4", gen.Generate())
}

func TestFixedNames_Empty(t *testing.T) {
	gen := NewFixedNames()
	assert.Equal(t, "user-1", gen.Generate())
}

func TestFixedNames_Deterministic(t *testing.T) {
	g1 := NewFixedNames("a", "a", "b")
	g2 := NewFixedNames("a", "a", "b")
	for i := 0; i < 10; i++ {
		assert.Equal(t, g1.Generate(), g2.Generate())
	}
}
