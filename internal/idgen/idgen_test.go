package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewIDFixedWidthAndAlphabet(t *testing.T) {
	g := New()
	id := g.NewID()

	assert.Len(t, id, base62Len)
	for _, r := range id {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestNewIDUnique(t *testing.T) {
	g := New()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.NewID()
		assert.False(t, seen[id], "duplicate id generated")
		seen[id] = true
	}
}

func TestEncodeZeroUUIDPadsToWidth(t *testing.T) {
	var zero uuid.UUID
	encoded := Encode(zero)
	assert.Len(t, encoded, base62Len)
	for _, r := range encoded {
		assert.Equal(t, byte('0'), byte(r))
	}
}

func TestEncodeDeterministic(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, Encode(id), Encode(id))
}
