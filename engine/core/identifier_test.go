package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResourceID(t *testing.T) {
	a := NewResourceID()
	b := NewResourceID()

	assert.False(t, a.IsNil())
	assert.NotEqual(t, a, b)
	assert.True(t, NilResourceID.IsNil())
	assert.Equal(t, uuid.Nil.String(), NilResourceID.String())

	_, err := uuid.Parse(a.String())
	assert.NoError(t, err)
}
