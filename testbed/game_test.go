package testbed

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rhi/engine"
	"github.com/spaghettifunk/anima-rhi/engine/config"
	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/headless"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func startEngine(t *testing.T, withShader bool) (*TestGame, *engine.Engine, *headless.Device) {
	t.Helper()
	cfg := config.Default()
	cfg.Renderer.Backend = "headless"
	if withShader {
		dir := t.TempDir()
		cfg.Renderer.VertexShader = filepath.Join(dir, "vert.spv")
		cfg.Renderer.PixelShader = filepath.Join(dir, "frag.spv")
		require.NoError(t, os.WriteFile(cfg.Renderer.VertexShader, []byte{0x03, 0x02, 0x23, 0x07}, 0o644))
		require.NoError(t, os.WriteFile(cfg.Renderer.PixelShader, []byte{0x03, 0x02, 0x23, 0x07}, 0o644))
	}

	tg := NewTestGame()
	e, err := engine.New(cfg, tg.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })

	device, ok := e.Device().(*headless.Device)
	require.True(t, ok)
	return tg, e, device
}

func TestFillModeAlternates(t *testing.T) {
	tg := NewTestGame()
	assert.Equal(t, rhi.FillSolid, tg.FillMode())

	require.NoError(t, tg.Update(2.5))
	assert.Equal(t, rhi.FillWireframe, tg.FillMode())

	require.NoError(t, tg.Update(2.0))
	assert.Equal(t, rhi.FillSolid, tg.FillMode())
}

func TestClearsWithoutShader(t *testing.T) {
	tg, e, device := startEngine(t, false)
	device.ResetCalls()

	require.NoError(t, e.RunFrames(context.Background(), 2))
	assert.Zero(t, device.Count("Draw"))
	assert.Equal(t, 2, device.Count("ClearRenderTarget"))
	assert.Equal(t, uint64(2), tg.state().frames)
	assert.Equal(t, uint32(1280), tg.state().width)
}

func TestDrawsTriangle(t *testing.T) {
	tg, e, device := startEngine(t, true)
	device.ResetCalls()

	require.NoError(t, e.RunFrames(context.Background(), 2))
	assert.Equal(t, 2, device.Count("Draw"))
	assert.Equal(t, 1, device.Count("SetFillMode"), "unchanged fill mode is pushed once")

	tg.state().elapsed = 2.5
	require.NoError(t, e.RunFrames(context.Background(), 1))

	calls := device.CallsNamed("SetFillMode")
	require.Len(t, calls, 2)
	assert.Equal(t, rhi.FillWireframe, calls[1].Args[0])
}
