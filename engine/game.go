package engine

import (
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

// Game is the application the engine drives. Every hook is optional.
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize runs once the device, swap chain and pipeline exist.
type Initialize func(e *Engine) error
type Update func(deltaTime float64) error

// Render records state and draws for the current frame. The swap chain image is
// already bound as the render target and the command list is recording.
type Render func(pipeline *rhi.Pipeline, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
