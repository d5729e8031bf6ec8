package rhi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func TestTeardownRunsInReverse(t *testing.T) {
	var order []string
	td := rhi.NewTeardown("test")
	for _, name := range []string{"surface", "swapchain", "views"} {
		name := name
		td.Push(name, func() { order = append(order, name) })
	}
	assert.Equal(t, 3, td.Len())

	td.Run()
	assert.Equal(t, []string{"views", "swapchain", "surface"}, order)
	assert.Zero(t, td.Len())

	td.Run()
	assert.Len(t, order, 3)
}
