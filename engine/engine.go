package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spaghettifunk/anima-rhi/engine/config"
	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/platform"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/headless"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"

	// registers the Vulkan backend
	_ "github.com/spaghettifunk/anima-rhi/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Window is what the engine presents to. The platform window and the headless
// window both qualify.
type Window interface {
	rhi.Window
	// FramebufferSize is zero while the window is minimised.
	FramebufferSize() (uint32, uint32)
}

type resizableWindow interface {
	Resize(width, height uint32)
}

type Option func(e *Engine)

// WithWindow replaces the window the engine would otherwise create.
func WithWindow(w Window) Option {
	return func(e *Engine) {
		e.window = w
	}
}

type Engine struct {
	config *config.Config
	game   *Game
	stage  Stage

	registry *core.Registry
	profiler *core.Profiler
	clock    *core.Clock
	lastTime float64
	frames   uint64

	platform  *platform.Platform
	window    Window
	device    rhi.Device
	swapChain *rhi.SwapChain
	pipeline  *rhi.Pipeline
	shader    rhi.Shader

	reloads chan *config.Config
}

func New(cfg *config.Config, game *Game, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		err = fmt.Errorf("invalid config: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	if game == nil {
		game = &Game{}
	}

	e := &Engine{
		config:   cfg,
		game:     game,
		stage:    EngineStageUninitialized,
		registry: core.NewRegistry(),
		profiler: core.NewProfiler(),
		clock:    core.NewClock(),
		reloads:  make(chan *config.Config, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Initialize brings up window, device, swap chain and pipeline, in that order,
// and registers them so Shutdown releases them in reverse.
func (e *Engine) Initialize() error {
	if e.stage != EngineStageUninitialized {
		return fmt.Errorf("engine initialize: already initialized")
	}
	e.stage = EngineStageInitializing
	core.SetLogLevel(e.config.Application.LogLevel)

	if err := e.initialize(); err != nil {
		e.unloadShader()
		if shutdownErr := e.registry.ShutdownAll(); shutdownErr != nil {
			core.LogError("cleanup after failed initialization: %s", shutdownErr)
		}
		e.stage = EngineStageUninitialized
		return err
	}

	e.stage = EngineStageInitialized
	core.LogInfo("engine initialized with the %s device %s", e.config.Renderer.Backend, e.device.Name())
	return nil
}

func (e *Engine) initialize() error {
	cfg := e.config
	backend, err := cfg.BackendType()
	if err != nil {
		return err
	}

	if err := e.registry.Register(core.SubsystemProfiler, e.profiler); err != nil {
		return err
	}

	if e.window == nil {
		if backend == rhi.BackendHeadless {
			e.window = headless.NewWindow(cfg.Window.Width, cfg.Window.Height)
		} else {
			e.platform = platform.New(platform.Options{
				ApplicationName: cfg.Application.Name,
				X:               cfg.Window.X,
				Y:               cfg.Window.Y,
				Width:           cfg.Window.Width,
				Height:          cfg.Window.Height,
			})
			if err := e.platform.Startup(); err != nil {
				return err
			}
			if err := e.registry.Register(core.SubsystemPlatform, e.platform); err != nil {
				return err
			}
			e.window = e.platform
		}
	}

	device, err := rhi.NewDevice(backend, rhi.DeviceConfig{
		ApplicationName: cfg.Application.Name,
		Window:          e.window,
		Validation:      cfg.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	e.device = device
	if err := e.registry.Register(core.SubsystemDevice, deviceSubsystem{device}); err != nil {
		return err
	}

	desc, err := cfg.SwapChainDesc()
	if err != nil {
		return err
	}
	if w, h := e.window.FramebufferSize(); w > 0 && h > 0 {
		desc.Width, desc.Height = w, h
	}
	// registered before the check so a half built chain is still torn down
	e.swapChain = rhi.NewSwapChain(device, e.window, desc)
	if err := e.registry.Register(core.SubsystemSwapChain, e.swapChain); err != nil {
		return err
	}
	if !e.swapChain.IsInitialized() {
		return fmt.Errorf("failed to create the swap chain: %w", core.ErrNotInitialized)
	}

	opts := append(cfg.PipelineOptions(), rhi.WithProfiler(e.profiler))
	pipeline, err := rhi.NewPipeline(device, opts...)
	if err != nil {
		return err
	}
	e.pipeline = pipeline
	if err := e.registry.Register(core.SubsystemPipeline, pipeline); err != nil {
		return err
	}

	if err := e.loadShader(); err != nil {
		return err
	}

	if err := e.registry.InitializeAll(); err != nil {
		return err
	}

	if e.game.FnInitialize != nil {
		if err := e.game.FnInitialize(e); err != nil {
			return fmt.Errorf("game initialize: %w", err)
		}
	}
	if e.game.FnOnResize != nil {
		if err := e.game.FnOnResize(e.swapChain.Width(), e.swapChain.Height()); err != nil {
			return fmt.Errorf("game resize: %w", err)
		}
	}
	return nil
}

// loadShader loads the configured SPIR-V pair, if any.
func (e *Engine) loadShader() error {
	r := e.config.Renderer
	if r.VertexShader == "" && r.PixelShader == "" {
		return nil
	}
	loader, ok := e.device.(rhi.ShaderLoader)
	if !ok {
		core.LogWarn("the %s device cannot load shaders, frames will only be cleared", e.device.Name())
		return nil
	}

	read := func(path string) ([]byte, error) {
		if path == "" {
			return nil, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			err = fmt.Errorf("failed to read shader %s: %w", path, err)
			core.LogError(err.Error())
			return nil, err
		}
		return data, nil
	}
	vertex, err := read(r.VertexShader)
	if err != nil {
		return err
	}
	pixel, err := read(r.PixelShader)
	if err != nil {
		return err
	}

	shader, err := loader.LoadShader(vertex, pixel)
	if err != nil {
		return err
	}
	e.shader = shader
	return nil
}

func (e *Engine) unloadShader() {
	if e.shader == nil {
		return
	}
	if loader, ok := e.device.(rhi.ShaderLoader); ok {
		loader.UnloadShader(e.shader)
	}
	e.shader = nil
}

// Run renders until ctx is done or the window is closed.
func (e *Engine) Run(ctx context.Context) error {
	return e.run(ctx, 0)
}

// RunFrames presents n frames, or fewer when ctx is done or the window closes
// first.
func (e *Engine) RunFrames(ctx context.Context, n uint64) error {
	if n == 0 {
		return nil
	}
	return e.run(ctx, n)
}

func (e *Engine) run(ctx context.Context, limit uint64) error {
	if e.stage != EngineStageInitialized {
		err := fmt.Errorf("engine run: %w", core.ErrNotInitialized)
		core.LogError(err.Error())
		return err
	}
	e.stage = EngineStageRunning
	defer func() { e.stage = EngineStageInitialized }()

	e.clock.Start()
	e.lastTime = 0
	target := e.frames + limit

	for limit == 0 || e.frames < target {
		if ctx.Err() != nil {
			return nil
		}
		if e.platform != nil {
			e.platform.PumpMessages()
			if e.platform.ShouldClose() {
				core.LogInfo("window closed, stopping")
				return nil
			}
		}

		presented, err := e.frame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if !presented {
			// minimised, or the swap chain was rebuilt
			select {
			case <-ctx.Done():
			case <-time.After(time.Millisecond):
			}
		}
	}
	return nil
}

// frame renders and presents one frame. It reports false when nothing was
// presented without that being an error.
func (e *Engine) frame(ctx context.Context) (bool, error) {
	e.applyReload()

	width, height := e.window.FramebufferSize()
	if width == 0 || height == 0 {
		return false, nil
	}
	if reqWidth, reqHeight := e.swapChain.RequestedSize(); width != reqWidth || height != reqHeight {
		if err := e.resize(width, height); err != nil {
			return false, err
		}
	}

	e.clock.Update()
	now := e.clock.Elapsed()
	delta := now - e.lastTime
	e.lastTime = now

	if e.game.FnUpdate != nil {
		if err := e.game.FnUpdate(delta); err != nil {
			return false, fmt.Errorf("game update: %w", err)
		}
	}

	if err := e.swapChain.AcquireNextImage(ctx); err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			return false, e.swapChain.Recreate()
		}
		return false, err
	}

	cl := e.swapChain.CommandList()
	if err := cl.Begin(ctx); err != nil {
		return false, err
	}
	if err := e.pipeline.SetRenderTargetView(e.swapChain.RenderTargetView(), nil, true); err != nil {
		return false, err
	}
	if err := e.pipeline.SetViewport(e.swapChain.Viewport()); err != nil {
		return false, err
	}
	if e.game.FnRender != nil {
		if err := e.game.FnRender(e.pipeline, delta); err != nil {
			return false, fmt.Errorf("game render: %w", err)
		}
	}
	// the clear is committed here when the game drew nothing
	if err := e.pipeline.Bind(); err != nil {
		return false, err
	}
	if err := cl.End(); err != nil {
		return false, err
	}
	if err := cl.Submit(e.swapChain.ImageAcquiredSemaphore()); err != nil {
		return false, err
	}
	if err := e.swapChain.Present(); err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			return false, e.swapChain.Recreate()
		}
		return false, err
	}

	e.clock.Update()
	e.profiler.FrameEnd(e.clock.Elapsed() - now)
	e.frames++
	if e.frames%600 == 0 {
		fps, ms := e.profiler.Frame()
		core.LogDebug("frame %d: %.0f fps, %.2f ms, %d draw calls", e.frames, fps, ms, e.profiler.LastFrame.DrawCalls)
	}
	return true, nil
}

func (e *Engine) resize(width, height uint32) error {
	if err := e.swapChain.Resize(width, height); err != nil {
		return err
	}
	if e.game.FnOnResize != nil {
		if err := e.game.FnOnResize(e.swapChain.Width(), e.swapChain.Height()); err != nil {
			return fmt.Errorf("game resize: %w", err)
		}
	}
	return nil
}

// Reload hands a new config to the running engine. It is safe to call from any
// goroutine; the newest config wins and is applied before the next frame.
func (e *Engine) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	for {
		select {
		case e.reloads <- cfg:
			return
		default:
		}
		select {
		case <-e.reloads:
		default:
		}
	}
}

func (e *Engine) applyReload() {
	var cfg *config.Config
	select {
	case cfg = <-e.reloads:
	default:
		return
	}

	core.SetLogLevel(cfg.Application.LogLevel)

	if cfg.Window.Width != e.config.Window.Width || cfg.Window.Height != e.config.Window.Height {
		if w, ok := e.window.(resizableWindow); ok {
			w.Resize(cfg.Window.Width, cfg.Window.Height)
		}
	}

	old, now := e.config.Renderer, cfg.Renderer
	if old.Backend != now.Backend || old.Format != now.Format || old.BufferCount != now.BufferCount ||
		!slices.Equal(old.PresentMode, now.PresentMode) || old.Validation != now.Validation {
		core.LogWarn("renderer settings changed, they apply after a restart")
	}
	e.config = cfg
}

func (e *Engine) Shutdown() error {
	if e.stage == EngineStageUninitialized {
		return nil
	}
	e.stage = EngineStageShuttingDown

	var errs []error
	if e.game.FnShutdown != nil {
		if err := e.game.FnShutdown(); err != nil {
			errs = append(errs, fmt.Errorf("game shutdown: %w", err))
		}
	}
	if e.device != nil {
		if err := e.device.WaitIdle(); err != nil {
			core.LogWarn("device did not go idle: %s", err)
		}
	}
	e.unloadShader()
	if err := e.registry.ShutdownAll(); err != nil {
		errs = append(errs, err)
	}

	e.stage = EngineStageUninitialized
	core.LogInfo("engine shut down after %d frames", e.frames)
	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage {
	return e.stage
}

func (e *Engine) Frames() uint64 {
	return e.frames
}

func (e *Engine) Config() *config.Config {
	return e.config
}

func (e *Engine) Device() rhi.Device {
	return e.device
}

func (e *Engine) SwapChain() *rhi.SwapChain {
	return e.swapChain
}

func (e *Engine) Pipeline() *rhi.Pipeline {
	return e.pipeline
}

// Shader is the configured shader, nil when none was loaded.
func (e *Engine) Shader() rhi.Shader {
	return e.shader
}

func (e *Engine) Profiler() *core.Profiler {
	return e.registry.Profiler()
}

// deviceSubsystem lets the registry shut the device down after the swap chain.
type deviceSubsystem struct {
	rhi.Device
}

func (d deviceSubsystem) Initialize() error {
	if !d.Initialized() {
		return fmt.Errorf("%s device: %w", d.Name(), core.ErrNotInitialized)
	}
	return nil
}
