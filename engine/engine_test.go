package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rhi/engine/config"
	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/headless"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func headlessConfig() *config.Config {
	cfg := config.Default()
	cfg.Renderer.Backend = "headless"
	cfg.Window.Width = 800
	cfg.Window.Height = 600
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, game *Game, opts ...Option) (*Engine, *headless.Device) {
	t.Helper()
	e, err := New(cfg, game, opts...)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })

	device, ok := e.Device().(*headless.Device)
	require.True(t, ok)
	return e, device
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := headlessConfig()
	cfg.Renderer.BufferCount = 0

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestRunRequiresInitialize(t *testing.T) {
	e, err := New(headlessConfig(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, e.RunFrames(context.Background(), 1), core.ErrNotInitialized)
	assert.NoError(t, e.Shutdown())
}

func TestInitializeRegistersSubsystems(t *testing.T) {
	e, device := newEngine(t, headlessConfig(), nil)

	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.True(t, device.Initialized())
	assert.True(t, e.SwapChain().IsInitialized())
	assert.Equal(t, uint32(800), e.SwapChain().Width())
	assert.NotNil(t, e.Pipeline())
	assert.NotNil(t, e.Profiler())
	assert.Nil(t, e.Shader())

	assert.Error(t, e.Initialize(), "second initialize")
}

func TestRunFramesClearsAndPresents(t *testing.T) {
	e, device := newEngine(t, headlessConfig(), nil)
	device.ResetCalls()

	require.NoError(t, e.RunFrames(context.Background(), 3))

	assert.Equal(t, uint64(3), e.Frames())
	assert.Equal(t, 3, device.Count("AcquireNextImage"))
	assert.Equal(t, 3, device.Count("Submit"))
	assert.Equal(t, 3, device.Count("Present"))
	assert.Equal(t, 3, device.Count("ClearRenderTarget"))
	assert.Zero(t, device.Count("Draw"))
	assert.Equal(t, EngineStageInitialized, e.Stage())

	// every frame targets the image it acquired
	for _, c := range device.CallsNamed("SetRenderTargets") {
		views := c.Args[0].([]rhi.Handle)
		assert.Len(t, views, 1)
	}
}

func TestGameHooks(t *testing.T) {
	var (
		initialized bool
		updates     int
		resizes     [][2]uint32
		shutdown    bool
	)
	shader := headless.NewShader(true, true)
	game := &Game{
		FnInitialize: func(e *Engine) error {
			initialized = true
			return nil
		},
		FnUpdate: func(deltaTime float64) error {
			assert.GreaterOrEqual(t, deltaTime, 0.0)
			updates++
			return nil
		},
		FnRender: func(pipeline *rhi.Pipeline, deltaTime float64) error {
			if err := pipeline.SetShader(shader); err != nil {
				return err
			}
			if err := pipeline.SetCullMode(rhi.CullNone); err != nil {
				return err
			}
			return pipeline.Draw(3)
		},
		FnOnResize: func(width, height uint32) error {
			resizes = append(resizes, [2]uint32{width, height})
			return nil
		},
		FnShutdown: func() error {
			shutdown = true
			return nil
		},
	}
	e, device := newEngine(t, headlessConfig(), game)
	assert.True(t, initialized)
	assert.Equal(t, [][2]uint32{{800, 600}}, resizes)
	device.ResetCalls()

	require.NoError(t, e.RunFrames(context.Background(), 2))
	assert.Equal(t, 2, updates)
	assert.Equal(t, 2, device.Count("Draw"))
	// state that did not change is not pushed again
	assert.Equal(t, 1, device.Count("SetCullMode"))
	assert.Equal(t, 1, device.Count("SetVertexShader"))
	assert.Equal(t, uint64(1), e.Profiler().LastFrame.DrawCalls)

	require.NoError(t, e.Shutdown())
	assert.True(t, shutdown)
	assert.Equal(t, EngineStageUninitialized, e.Stage())
}

func TestGameErrorsStopTheRun(t *testing.T) {
	boom := errors.New("boom")
	game := &Game{
		FnRender: func(pipeline *rhi.Pipeline, deltaTime float64) error {
			return boom
		},
	}
	e, _ := newEngine(t, headlessConfig(), game)

	err := e.RunFrames(context.Background(), 5)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, e.Frames())
}

func TestWindowResize(t *testing.T) {
	window := headless.NewWindow(800, 600)
	var resized []uint32
	game := &Game{
		FnOnResize: func(width, height uint32) error {
			resized = append(resized, width)
			return nil
		},
	}
	e, device := newEngine(t, headlessConfig(), game, WithWindow(window))
	require.NoError(t, e.RunFrames(context.Background(), 1))

	window.Resize(1024, 768)
	device.ResetCalls()
	require.NoError(t, e.RunFrames(context.Background(), 1))

	assert.Equal(t, uint32(1024), e.SwapChain().Width())
	assert.Equal(t, uint32(768), e.SwapChain().Height())
	assert.Equal(t, 1, device.Count("CreateSwapChain"))
	assert.Equal(t, []uint32{800, 1024}, resized)
	assert.Equal(t, uint64(2), e.Frames())
}

func TestMinimisedWindowSkipsFrames(t *testing.T) {
	window := headless.NewWindow(800, 600)
	e, device := newEngine(t, headlessConfig(), nil, WithWindow(window))
	window.Resize(0, 0)
	device.ResetCalls()

	presented, err := e.frame(context.Background())
	require.NoError(t, err)
	assert.False(t, presented)
	assert.Zero(t, device.Count("AcquireNextImage"))
	assert.Equal(t, uint32(800), e.SwapChain().Width())
}

func TestOutOfDateRecreatesSwapChain(t *testing.T) {
	e, device := newEngine(t, headlessConfig(), nil)
	device.SetOutOfDate(true)
	device.ResetCalls()

	presented, err := e.frame(context.Background())
	require.NoError(t, err)
	assert.False(t, presented)
	assert.Equal(t, 1, device.Count("CreateSwapChain"))

	device.SetOutOfDate(false)
	require.NoError(t, e.RunFrames(context.Background(), 1))
	assert.Equal(t, uint64(1), e.Frames())
}

func TestDeviceLostStopsTheRun(t *testing.T) {
	e, device := newEngine(t, headlessConfig(), nil)
	device.FailOn("Submit", core.ErrDeviceLost)

	err := e.RunFrames(context.Background(), 3)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
}

func TestCancelledContextStopsCleanly(t *testing.T) {
	e, device := newEngine(t, headlessConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	device.ResetCalls()

	assert.NoError(t, e.Run(ctx))
	assert.Zero(t, device.Count("AcquireNextImage"))
}

func TestReloadResizesWindow(t *testing.T) {
	window := headless.NewWindow(800, 600)
	e, _ := newEngine(t, headlessConfig(), nil, WithWindow(window))

	next := headlessConfig()
	next.Window.Width = 640
	next.Window.Height = 480
	next.Renderer.BufferCount = 3
	e.Reload(headlessConfig())
	e.Reload(next)

	require.NoError(t, e.RunFrames(context.Background(), 1))
	w, h := window.FramebufferSize()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), h)
	assert.Equal(t, uint32(640), e.SwapChain().Width())
	assert.Same(t, next, e.Config())
	// buffer count changes wait for a restart
	assert.Equal(t, uint32(2), e.SwapChain().BufferCount())
}

func TestShaderLoadedFromConfig(t *testing.T) {
	dir := t.TempDir()
	vert := filepath.Join(dir, "vert.spv")
	frag := filepath.Join(dir, "frag.spv")
	require.NoError(t, os.WriteFile(vert, []byte{1, 2, 3, 4}, 0o644))
	require.NoError(t, os.WriteFile(frag, []byte{5, 6, 7, 8}, 0o644))

	cfg := headlessConfig()
	cfg.Renderer.VertexShader = vert
	cfg.Renderer.PixelShader = frag
	e, device := newEngine(t, cfg, nil)

	require.NotNil(t, e.Shader())
	assert.True(t, e.Shader().HasVertexShader())
	assert.True(t, e.Shader().HasPixelShader())
	assert.Equal(t, 1, device.Count("LoadShader"))

	require.NoError(t, e.Shutdown())
	assert.Equal(t, 1, device.Count("UnloadShader"))
	assert.Zero(t, device.Live())
}

func TestMissingShaderFailsInitialize(t *testing.T) {
	cfg := headlessConfig()
	cfg.Renderer.VertexShader = filepath.Join(t.TempDir(), "missing.spv")

	e, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Error(t, e.Initialize())
	assert.Equal(t, EngineStageUninitialized, e.Stage())
}

func TestShutdownReleasesEverything(t *testing.T) {
	e, device := newEngine(t, headlessConfig(), nil)
	require.NoError(t, e.RunFrames(context.Background(), 2))

	require.NoError(t, e.Shutdown())
	assert.Zero(t, device.Live())
	assert.False(t, device.Initialized())
	assert.NoError(t, e.Shutdown())
}
