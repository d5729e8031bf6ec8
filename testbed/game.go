package testbed

import (
	"github.com/spaghettifunk/anima-rhi/engine"
	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

// wireframePeriod is how long each fill mode is kept, in seconds.
const wireframePeriod = 2.0

// TestGame draws a fullscreen triangle with the configured shader, switching
// between solid and wireframe fill. Without a shader it only clears.
type TestGame struct {
	*engine.Game
}

type gameState struct {
	shader rhi.Shader

	width  uint32
	height uint32

	elapsed float64
	frames  uint64
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	state := g.state()
	state.shader = e.Shader()
	if state.shader == nil {
		core.LogInfo("no shader configured, the testbed only clears the screen")
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	g.state().elapsed += deltaTime
	return nil
}

// FillMode is the fill mode the next frame draws with.
func (g *TestGame) FillMode() rhi.FillMode {
	if int(g.state().elapsed/wireframePeriod)%2 == 1 {
		return rhi.FillWireframe
	}
	return rhi.FillSolid
}

func (g *TestGame) Render(pipeline *rhi.Pipeline, deltaTime float64) error {
	state := g.state()
	state.frames++
	if state.shader == nil {
		return nil
	}

	if err := pipeline.SetShader(state.shader); err != nil {
		return err
	}
	if err := pipeline.SetPrimitiveTopology(rhi.TopologyTriangleList); err != nil {
		return err
	}
	if err := pipeline.SetCullMode(rhi.CullNone); err != nil {
		return err
	}
	if err := pipeline.SetFillMode(g.FillMode()); err != nil {
		return err
	}
	// the vertex shader generates the triangle from the vertex index
	return pipeline.Draw(3)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed shut down after %d frames", g.state().frames)
	return nil
}
