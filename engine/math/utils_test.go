package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, uint32(1), Clamp(uint32(0), 1, 10))
	assert.Equal(t, uint32(10), Clamp(uint32(42), 1, 10))
	assert.Equal(t, uint32(5), Clamp(uint32(5), 1, 10))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}

func TestInRange(t *testing.T) {
	assert.True(t, InRange(1, 1, 16384))
	assert.True(t, InRange(16384, 1, 16384))
	assert.False(t, InRange(0, 1, 16384))
	assert.False(t, InRange(16385, 1, 16384))
}
