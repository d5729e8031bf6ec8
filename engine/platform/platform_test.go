package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatformBeforeStartup(t *testing.T) {
	p := New(Options{ApplicationName: "test", Width: 640, Height: 480})

	assert.False(t, p.IsValid())
	assert.Nil(t, p.Native())
	assert.True(t, p.ShouldClose())

	w, h := p.FramebufferSize()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), h)

	// no window, nothing to do
	p.PumpMessages()
	p.SetTitle("ignored")
	p.Resize(800, 600)
	assert.NoError(t, p.Shutdown())
}

func TestFramebufferSizeCallback(t *testing.T) {
	p := New(Options{Width: 640, Height: 480})

	p.framebufferSizeCallback(nil, 1024, 768)
	w, h := p.FramebufferSize()
	assert.Equal(t, uint32(1024), w)
	assert.Equal(t, uint32(768), h)

	p.framebufferSizeCallback(nil, -1, 10)
	w, _ = p.FramebufferSize()
	assert.Equal(t, uint32(1024), w)
}
