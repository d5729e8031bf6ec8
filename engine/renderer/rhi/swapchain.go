package rhi

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/math"
)

const DefaultMaxResolution uint32 = 16384

type SwapChainState uint8

const (
	StateUninitialized SwapChainState = iota
	StateReady
	StateImageAcquired
	StateResizing
)

func (s SwapChainState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateImageAcquired:
		return "image_acquired"
	case StateResizing:
		return "resizing"
	}
	return fmt.Sprintf("SwapChainState(%d)", uint8(s))
}

type SwapChainDesc struct {
	Width       uint32
	Height      uint32
	Format      Format
	BufferCount uint32
	Flags       PresentFlags
	// MaxResolution bounds both dimensions, DefaultMaxResolution when zero.
	MaxResolution uint32
}

type swapChainImage struct {
	image       Handle
	view        Handle
	framebuffer Handle
}

// SwapChain owns the presentation objects of a window and sequences the
// acquire/present protocol. It is not safe for concurrent use.
type SwapChain struct {
	device Device
	window Window
	desc   SwapChainDesc

	state       SwapChainState
	initialized bool
	validated   bool

	surface    Handle
	swapChain  Handle
	format     Format
	extent     Extent // negotiated by the backend, may differ from desc
	images     []swapChainImage
	semaphores []*Semaphore

	renderPass   Handle
	commandPool  Handle
	commandLists []*CommandList

	// presentation objects, rebuilt on resize
	presentation *Teardown
	// command lists, rebuilt on resize
	frames *Teardown
	// render pass and command pool, destroyed with the chain
	owned *Teardown

	imageIndex    uint32
	semaphoreSlot uint32
	imageAcquired bool
	everAcquired  bool

	acquiresSinceReset uint32
	poolResets         uint64
}

// NewSwapChain builds the chain right away. Failures are logged and leave the
// chain uninitialized, check IsInitialized.
func NewSwapChain(device Device, window Window, desc SwapChainDesc) *SwapChain {
	if desc.MaxResolution == 0 {
		desc.MaxResolution = DefaultMaxResolution
	}
	sc := &SwapChain{
		device:       device,
		window:       window,
		desc:         desc,
		state:        StateUninitialized,
		presentation: NewTeardown("swapchain"),
		frames:       NewTeardown("swapchain frames"),
		owned:        NewTeardown("swapchain owned"),
	}

	if device == nil || !device.Initialized() {
		core.LogError("swapchain: invalid device")
		return sc
	}
	if window == nil || !window.IsValid() {
		core.LogError("swapchain: invalid window")
		return sc
	}
	if err := sc.validateResolution(desc.Width, desc.Height); err != nil {
		return sc
	}
	if desc.BufferCount < 1 {
		core.LogError("swapchain: buffer count must be at least 1, got %d", desc.BufferCount)
		return sc
	}
	sc.validated = true

	if err := sc.create(); err != nil {
		return sc
	}
	if err := sc.createCommandPool(); err != nil {
		return sc
	}
	if err := sc.createCommandLists(); err != nil {
		return sc
	}

	sc.initialized = true
	sc.state = StateReady
	core.LogInfo("swapchain created %dx%d, %d buffers, %d images, format %s",
		sc.extent.Width, sc.extent.Height, desc.BufferCount, len(sc.images), sc.format)
	return sc
}

func (sc *SwapChain) validateResolution(width, height uint32) error {
	if !math.InRange(width, 1, sc.desc.MaxResolution) || !math.InRange(height, 1, sc.desc.MaxResolution) {
		err := fmt.Errorf("swapchain: %dx%d outside 1..%d: %w", width, height, sc.desc.MaxResolution, core.ErrInvalidResolution)
		core.LogWarn(err.Error())
		return err
	}
	return nil
}

func (sc *SwapChain) fail(format string, err error) error {
	err = fmt.Errorf(format, err)
	core.LogError(err.Error())
	return err
}

// create builds surface, swap chain, image views, render pass, framebuffers and
// the semaphore ring, in that order.
func (sc *SwapChain) create() error {
	d := sc.device

	surface, err := d.CreateSurface(sc.window)
	if err != nil {
		return sc.fail("swapchain: failed to create surface: %w", err)
	}
	sc.surface = surface
	sc.presentation.Push("surface", func() {
		d.DestroySurface(sc.surface)
		sc.surface = nil
	})

	native, err := d.CreateSwapChain(SwapChainCreateInfo{
		Surface:     sc.surface,
		Width:       sc.desc.Width,
		Height:      sc.desc.Height,
		Format:      sc.desc.Format,
		BufferCount: sc.desc.BufferCount,
		Flags:       sc.desc.Flags,
	})
	if err != nil {
		return sc.fail("swapchain: failed to create swap chain: %w", err)
	}
	sc.swapChain = native.Handle
	sc.format = native.Format
	sc.extent = native.Extent
	if sc.extent.Width == 0 || sc.extent.Height == 0 {
		sc.extent = Extent{Width: sc.desc.Width, Height: sc.desc.Height}
	}
	if sc.extent.Width != sc.desc.Width || sc.extent.Height != sc.desc.Height {
		core.LogDebug("swapchain: requested %dx%d, surface gave %dx%d",
			sc.desc.Width, sc.desc.Height, sc.extent.Width, sc.extent.Height)
	}
	sc.presentation.Push("swap chain", func() {
		d.DestroySwapChain(sc.swapChain)
		sc.swapChain = nil
	})

	images, err := d.SwapChainImages(sc.swapChain)
	if err != nil {
		return sc.fail("swapchain: failed to get images: %w", err)
	}
	sc.images = make([]swapChainImage, len(images))
	for i, image := range images {
		sc.images[i].image = image
	}

	sc.presentation.Push("image views", func() {
		for i := range sc.images {
			d.DestroyImageView(sc.images[i].view)
			sc.images[i].view = nil
		}
	})
	for i := range sc.images {
		view, err := d.CreateImageView(sc.images[i].image, sc.format)
		if err != nil {
			return sc.fail("swapchain: failed to create image view: %w", err)
		}
		sc.images[i].view = view
	}

	if sc.renderPass == nil {
		pass, err := d.CreateRenderPass(sc.format)
		if err != nil {
			return sc.fail("swapchain: failed to create render pass: %w", err)
		}
		sc.renderPass = pass
		sc.owned.Push("render pass", func() {
			d.DestroyRenderPass(sc.renderPass)
			sc.renderPass = nil
		})
	}

	sc.presentation.Push("framebuffers", func() {
		for i := range sc.images {
			d.DestroyFramebuffer(sc.images[i].framebuffer)
			sc.images[i].framebuffer = nil
		}
	})
	for i := range sc.images {
		fb, err := d.CreateFramebuffer(sc.renderPass, []Handle{sc.images[i].view}, sc.extent.Width, sc.extent.Height)
		if err != nil {
			return sc.fail("swapchain: failed to create framebuffer: %w", err)
		}
		sc.images[i].framebuffer = fb
	}

	sc.semaphores = make([]*Semaphore, 0, sc.desc.BufferCount)
	sc.presentation.Push("semaphores", func() {
		for _, s := range sc.semaphores {
			s.Destroy()
		}
		sc.semaphores = nil
	})
	for i := uint32(0); i < sc.desc.BufferCount; i++ {
		s, err := NewSemaphore(d)
		if err != nil {
			return err
		}
		sc.semaphores = append(sc.semaphores, s)
	}
	return nil
}

func (sc *SwapChain) createCommandPool() error {
	pool, err := sc.device.CreateCommandPool()
	if err != nil {
		return sc.fail("swapchain: failed to create command pool: %w", err)
	}
	sc.commandPool = pool
	sc.owned.Push("command pool", func() {
		sc.device.DestroyCommandPool(sc.commandPool)
		sc.commandPool = nil
	})
	return nil
}

func (sc *SwapChain) createCommandLists() error {
	sc.commandLists = make([]*CommandList, 0, sc.desc.BufferCount)
	sc.frames.Push("command lists", func() {
		for _, cl := range sc.commandLists {
			cl.Destroy()
		}
		sc.commandLists = nil
	})
	for i := uint32(0); i < sc.desc.BufferCount; i++ {
		cl, err := NewCommandList(sc.device, sc.commandPool, i)
		if err != nil {
			return err
		}
		sc.commandLists = append(sc.commandLists, cl)
	}
	return nil
}

// resetCommandPool waits for every list still in flight and recycles the pool.
func (sc *SwapChain) resetCommandPool(ctx context.Context) error {
	for _, cl := range sc.commandLists {
		if err := cl.WaitIdle(ctx); err != nil {
			return err
		}
	}
	if err := sc.device.ResetCommandPool(sc.commandPool); err != nil {
		return sc.fail("swapchain: failed to reset command pool: %w", err)
	}
	for _, cl := range sc.commandLists {
		cl.Recycle()
	}
	sc.acquiresSinceReset = 0
	sc.poolResets++
	return nil
}

// AcquireNextImage waits for the next presentable image. ctx is checked before
// any blocking work starts, the native acquire itself has no timeout.
func (sc *SwapChain) AcquireNextImage(ctx context.Context) error {
	if !sc.initialized {
		err := fmt.Errorf("swapchain: acquire: %w", core.ErrNotInitialized)
		core.LogError(err.Error())
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if sc.acquiresSinceReset >= sc.desc.BufferCount {
		if err := sc.resetCommandPool(ctx); err != nil {
			return err
		}
	}

	slot := uint32(0)
	if sc.everAcquired {
		slot = (sc.imageIndex + 1) % sc.desc.BufferCount
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	index, err := sc.device.AcquireNextImage(sc.swapChain, sc.semaphores[slot].Handle())
	if err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			core.LogWarn("swapchain: out of date on acquire")
		}
		return sc.fail("swapchain: failed to acquire next image: %w", err)
	}
	if int(index) >= len(sc.images) {
		err := fmt.Errorf("swapchain: acquire returned image %d of %d: %w", index, len(sc.images), core.ErrUnknown)
		core.LogError(err.Error())
		return err
	}

	sc.imageIndex = index
	sc.semaphoreSlot = slot
	sc.imageAcquired = true
	sc.everAcquired = true
	sc.acquiresSinceReset++
	sc.state = StateImageAcquired
	return nil
}

// Present queues the acquired image. It waits on the render complete semaphore
// of the current command list when that list was submitted, otherwise on the
// semaphore the acquire signalled.
func (sc *SwapChain) Present() error {
	if !sc.imageAcquired {
		err := fmt.Errorf("swapchain: present: %w", core.ErrImageNotAcquired)
		core.LogError(err.Error())
		return err
	}

	// with nothing submitted the present consumes the acquire semaphore, so the
	// ring slot is unsignaled again before it is reused
	var wait Handle
	if cl := sc.CommandList(); cl != nil && cl.State() == CommandListSubmitted {
		wait = cl.RenderCompleteSemaphore().Handle()
	} else if s := sc.ImageAcquiredSemaphore(); s != nil {
		wait = s.Handle()
	}

	if err := sc.device.Present(sc.swapChain, sc.imageIndex, wait); err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			core.LogWarn("swapchain: out of date on present")
		}
		return sc.fail("swapchain: failed to present: %w", err)
	}

	sc.imageAcquired = false
	sc.state = StateReady
	return nil
}

// Resize rebuilds the chain at the new size. Same size is a no-op.
func (sc *SwapChain) Resize(width, height uint32) error {
	if sc.initialized && width == sc.desc.Width && height == sc.desc.Height {
		return nil
	}
	return sc.resize(width, height)
}

// Recreate rebuilds the chain at its current size, after the surface reported
// it out of date.
func (sc *SwapChain) Recreate() error {
	return sc.resize(sc.desc.Width, sc.desc.Height)
}

func (sc *SwapChain) resize(width, height uint32) error {
	if !sc.validated {
		err := fmt.Errorf("swapchain: resize: %w", core.ErrNotInitialized)
		core.LogError(err.Error())
		return err
	}
	if err := sc.validateResolution(width, height); err != nil {
		return err
	}

	sc.state = StateResizing
	if err := sc.device.WaitIdle(); err != nil {
		sc.state = sc.settledState()
		return sc.fail("swapchain: resize: wait idle failed: %w", err)
	}

	sc.frames.Run()
	sc.presentation.Run()
	sc.desc.Width = width
	sc.desc.Height = height
	sc.imageAcquired = false
	sc.everAcquired = false
	sc.imageIndex = 0
	sc.semaphoreSlot = 0
	sc.acquiresSinceReset = 0

	if err := sc.rebuild(); err != nil {
		sc.initialized = false
		sc.state = StateUninitialized
		return err
	}

	sc.initialized = true
	sc.state = StateReady
	core.LogInfo("swapchain resized to %dx%d", sc.extent.Width, sc.extent.Height)
	return nil
}

func (sc *SwapChain) rebuild() error {
	if err := sc.create(); err != nil {
		return err
	}
	if sc.commandPool == nil {
		if err := sc.createCommandPool(); err != nil {
			return err
		}
	}
	return sc.createCommandLists()
}

func (sc *SwapChain) settledState() SwapChainState {
	switch {
	case !sc.initialized:
		return StateUninitialized
	case sc.imageAcquired:
		return StateImageAcquired
	}
	return StateReady
}

// Destroy releases everything the chain owns. Calling it twice is safe.
func (sc *SwapChain) Destroy() {
	if sc.validated && sc.presentation.Len()+sc.frames.Len()+sc.owned.Len() > 0 {
		if err := sc.device.WaitIdle(); err != nil {
			core.LogError("swapchain: destroy: wait idle failed: %s", err)
		}
	}
	sc.frames.Run()
	sc.presentation.Run()
	sc.owned.Run()
	sc.images = nil
	sc.initialized = false
	sc.imageAcquired = false
	sc.everAcquired = false
	sc.state = StateUninitialized
}

// Initialize and Shutdown let the engine registry own the chain.
func (sc *SwapChain) Initialize() error {
	if !sc.initialized {
		return fmt.Errorf("swapchain: %w", core.ErrNotInitialized)
	}
	return nil
}

func (sc *SwapChain) Shutdown() error {
	sc.Destroy()
	return nil
}

func (sc *SwapChain) IsInitialized() bool {
	return sc.initialized
}

func (sc *SwapChain) State() SwapChainState {
	return sc.state
}

// Width is the width of the swap chain images.
func (sc *SwapChain) Width() uint32 {
	return sc.extent.Width
}

func (sc *SwapChain) Height() uint32 {
	return sc.extent.Height
}

// RequestedSize is the size last asked for, before the surface had its say.
func (sc *SwapChain) RequestedSize() (uint32, uint32) {
	return sc.desc.Width, sc.desc.Height
}

func (sc *SwapChain) BufferCount() uint32 {
	return sc.desc.BufferCount
}

// ImageCount is the number of native images, which may exceed BufferCount.
func (sc *SwapChain) ImageCount() int {
	return len(sc.images)
}

func (sc *SwapChain) ImageIndex() uint32 {
	return sc.imageIndex
}

func (sc *SwapChain) ImageAcquired() bool {
	return sc.imageAcquired
}

func (sc *SwapChain) Format() Format {
	return sc.format
}

func (sc *SwapChain) RenderPass() Handle {
	return sc.renderPass
}

// PoolResets counts command pool resets since construction.
func (sc *SwapChain) PoolResets() uint64 {
	return sc.poolResets
}

func (sc *SwapChain) Viewport() Viewport {
	return NewViewport(sc.extent.Width, sc.extent.Height)
}

// RenderTargetView is the view of the acquired image, nil when nothing is acquired.
func (sc *SwapChain) RenderTargetView() Handle {
	if !sc.imageAcquired {
		return nil
	}
	return sc.images[sc.imageIndex].view
}

func (sc *SwapChain) Framebuffer() Handle {
	if !sc.imageAcquired {
		return nil
	}
	return sc.images[sc.imageIndex].framebuffer
}

// CommandList returns the list bound to the current semaphore slot.
func (sc *SwapChain) CommandList() *CommandList {
	if int(sc.semaphoreSlot) >= len(sc.commandLists) {
		return nil
	}
	return sc.commandLists[sc.semaphoreSlot]
}

func (sc *SwapChain) ImageAcquiredSemaphore() *Semaphore {
	if int(sc.semaphoreSlot) >= len(sc.semaphores) {
		return nil
	}
	return sc.semaphores[sc.semaphoreSlot]
}
