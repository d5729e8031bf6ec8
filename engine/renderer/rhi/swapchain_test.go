package rhi_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/headless"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func defaultDesc(bufferCount uint32) rhi.SwapChainDesc {
	return rhi.SwapChainDesc{
		Width:       800,
		Height:      600,
		Format:      rhi.FormatB8G8R8A8Unorm,
		BufferCount: bufferCount,
		Flags:       rhi.PresentMailbox | rhi.PresentFifo,
	}
}

func newSwapChain(t *testing.T, bufferCount uint32, opts ...headless.Option) (*rhi.SwapChain, *headless.Device) {
	t.Helper()
	device := headless.New(opts...)
	sc := rhi.NewSwapChain(device, headless.NewWindow(800, 600), defaultDesc(bufferCount))
	require.True(t, sc.IsInitialized())
	t.Cleanup(sc.Destroy)
	return sc, device
}

// frame runs one acquire, record, submit, present cycle.
func frame(t *testing.T, sc *rhi.SwapChain) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, sc.AcquireNextImage(ctx))
	cl := sc.CommandList()
	require.NoError(t, cl.Begin(ctx))
	require.NoError(t, cl.End())
	require.NoError(t, cl.Submit(sc.ImageAcquiredSemaphore()))
	require.NoError(t, sc.Present())
}

func TestSwapChainCreation(t *testing.T) {
	sc, device := newSwapChain(t, 2)

	assert.Equal(t, rhi.StateReady, sc.State())
	assert.Equal(t, uint32(2), sc.BufferCount())
	assert.Equal(t, 3, sc.ImageCount())
	assert.Equal(t, rhi.FormatB8G8R8A8Unorm, sc.Format())
	assert.NotNil(t, sc.RenderPass())
	assert.False(t, sc.ImageAcquired())
	assert.Nil(t, sc.RenderTargetView())

	assert.Equal(t, 1, device.LiveOf("surface"))
	assert.Equal(t, 1, device.LiveOf("swapchain"))
	assert.Equal(t, 3, device.LiveOf("image_view"))
	assert.Equal(t, 3, device.LiveOf("framebuffer"))
	// two ring semaphores plus one render complete semaphore per list
	assert.Equal(t, 4, device.LiveOf("semaphore"))
	assert.Equal(t, 1, device.LiveOf("command_pool"))
	assert.Equal(t, 2, device.LiveOf("command_buffer"))
	assert.Equal(t, 2, device.LiveOf("fence"))

	names := device.CallNames()
	order := []string{"CreateSurface", "CreateSwapChain", "SwapChainImages", "CreateImageView", "CreateRenderPass", "CreateFramebuffer", "CreateSemaphore", "CreateCommandPool", "AllocateCommandBuffer"}
	last := -1
	for _, name := range order {
		idx := indexOf(names, name)
		require.GreaterOrEqual(t, idx, 0, name)
		assert.Greater(t, idx, last, name)
		last = idx
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestSwapChainValidation(t *testing.T) {
	window := headless.NewWindow(800, 600)
	closed := headless.NewWindow(800, 600)
	closed.Close()
	shutdown := headless.New()
	require.NoError(t, shutdown.Shutdown())

	tests := []struct {
		name   string
		device rhi.Device
		window rhi.Window
		desc   rhi.SwapChainDesc
	}{
		{"nil device", nil, window, defaultDesc(2)},
		{"uninitialized device", shutdown, window, defaultDesc(2)},
		{"nil window", headless.New(), nil, defaultDesc(2)},
		{"closed window", headless.New(), closed, defaultDesc(2)},
		{"zero width", headless.New(), window, rhi.SwapChainDesc{Width: 0, Height: 600, BufferCount: 2}},
		{"too tall", headless.New(), window, rhi.SwapChainDesc{Width: 800, Height: 16385, BufferCount: 2}},
		{"custom max resolution", headless.New(), window, rhi.SwapChainDesc{Width: 800, Height: 600, BufferCount: 2, MaxResolution: 512}},
		{"no buffers", headless.New(), window, defaultDesc(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := rhi.NewSwapChain(tt.device, tt.window, tt.desc)
			assert.False(t, sc.IsInitialized())
			assert.Equal(t, rhi.StateUninitialized, sc.State())
			assert.ErrorIs(t, sc.AcquireNextImage(context.Background()), core.ErrNotInitialized)
			sc.Destroy()
		})
	}
}

func TestSwapChainCreationFailureLeavesUninitialized(t *testing.T) {
	device := headless.New()
	device.FailOn("CreateFramebuffer", errors.New("out of memory"))

	sc := rhi.NewSwapChain(device, headless.NewWindow(800, 600), defaultDesc(2))
	assert.False(t, sc.IsInitialized())

	sc.Destroy()
	assert.Zero(t, device.Live())
}

func TestPresentWithoutAcquire(t *testing.T) {
	sc, device := newSwapChain(t, 2)

	err := sc.Present()
	assert.ErrorIs(t, err, core.ErrImageNotAcquired)
	assert.Zero(t, device.Count("Present"))
}

func TestAcquirePresentPairing(t *testing.T) {
	sc, device := newSwapChain(t, 2)
	ctx := context.Background()

	require.NoError(t, sc.AcquireNextImage(ctx))
	assert.Equal(t, rhi.StateImageAcquired, sc.State())
	assert.True(t, sc.ImageAcquired())
	assert.NotNil(t, sc.RenderTargetView())
	assert.NotNil(t, sc.Framebuffer())

	require.NoError(t, sc.Present())
	assert.Equal(t, rhi.StateReady, sc.State())
	assert.False(t, sc.ImageAcquired())

	assert.ErrorIs(t, sc.Present(), core.ErrImageNotAcquired)
	assert.Equal(t, 1, device.Count("Present"))
}

func TestPresentWaitsOnRenderComplete(t *testing.T) {
	sc, device := newSwapChain(t, 2)
	frame(t, sc)

	presents := device.CallsNamed("Present")
	require.Len(t, presents, 1)
	assert.Equal(t, sc.CommandList().RenderCompleteSemaphore().Handle(), presents[0].Args[2])

	submits := device.CallsNamed("Submit")
	require.Len(t, submits, 1)
	info := submits[0].Args[0].(rhi.SubmitInfo)
	assert.Equal(t, sc.ImageAcquiredSemaphore().Handle(), info.WaitSemaphore)
	assert.Equal(t, sc.CommandList().Fence().Handle(), info.Fence)
}

func TestPresentWithoutSubmitWaitsOnAcquire(t *testing.T) {
	sc, device := newSwapChain(t, 2)

	require.NoError(t, sc.AcquireNextImage(context.Background()))
	acquired := sc.ImageAcquiredSemaphore().Handle()
	require.NoError(t, sc.Present())

	presents := device.CallsNamed("Present")
	require.Len(t, presents, 1)
	assert.Equal(t, acquired, presents[0].Args[2])
}

func TestNegotiatedExtent(t *testing.T) {
	sc, device := newSwapChain(t, 2, headless.WithSurfaceExtent(640, 480))

	assert.Equal(t, uint32(640), sc.Width())
	assert.Equal(t, uint32(480), sc.Height())
	w, h := sc.RequestedSize()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
	assert.Equal(t, rhi.NewViewport(640, 480), sc.Viewport())

	framebuffers := device.CallsNamed("CreateFramebuffer")
	require.NotEmpty(t, framebuffers)
	for _, c := range framebuffers {
		assert.Equal(t, uint32(640), c.Args[2])
		assert.Equal(t, uint32(480), c.Args[3])
	}

	// the request did not change, so nothing is rebuilt
	device.ResetCalls()
	require.NoError(t, sc.Resize(800, 600))
	assert.Empty(t, device.Calls())

	require.NoError(t, sc.Resize(1024, 768))
	assert.Equal(t, uint32(640), sc.Width())
	for _, c := range device.CallsNamed("CreateFramebuffer") {
		assert.Equal(t, uint32(640), c.Args[2])
	}
	frame(t, sc)
}

func TestBufferCountWraparound(t *testing.T) {
	const n = 3
	sc, device := newSwapChain(t, n)

	for i := 0; i < n; i++ {
		frame(t, sc)
	}
	assert.Zero(t, device.Count("ResetCommandPool"))
	assert.Zero(t, sc.PoolResets())

	device.ResetCalls()
	require.NoError(t, sc.AcquireNextImage(context.Background()))
	names := device.CallNames()
	assert.Equal(t, 1, device.Count("ResetCommandPool"))
	assert.Equal(t, "AcquireNextImage", names[len(names)-1])
	assert.Equal(t, "ResetCommandPool", names[len(names)-2])
	assert.Equal(t, uint64(1), sc.PoolResets())
}

func TestPoolResetWaitsForSubmittedLists(t *testing.T) {
	sc, device := newSwapChain(t, 2)

	frame(t, sc)
	frame(t, sc)
	device.ResetCalls()
	require.NoError(t, sc.AcquireNextImage(context.Background()))

	assert.Equal(t, []string{"WaitFence", "WaitFence", "ResetCommandPool", "AcquireNextImage"}, device.CallNames())
}

func TestPoolResetFailsOnDeviceLost(t *testing.T) {
	sc, device := newSwapChain(t, 1)

	frame(t, sc)
	device.FailOn("WaitFence", core.ErrDeviceLost)

	err := sc.AcquireNextImage(context.Background())
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.False(t, sc.ImageAcquired())
	assert.Zero(t, device.Count("ResetCommandPool"))
}

func TestSemaphoreSlotFollowsImageIndex(t *testing.T) {
	sc, device := newSwapChain(t, 2, headless.WithImageCount(3))
	ctx := context.Background()
	ring := func() []rhi.Handle {
		var handles []rhi.Handle
		for _, c := range device.CallsNamed("AcquireNextImage") {
			handles = append(handles, c.Args[1])
		}
		return handles
	}

	require.NoError(t, sc.AcquireNextImage(ctx))
	first := sc.ImageAcquiredSemaphore().Handle()
	require.NoError(t, sc.Present())

	// image 0 was acquired, next slot is (0+1)%2
	require.NoError(t, sc.AcquireNextImage(ctx))
	second := sc.ImageAcquiredSemaphore().Handle()
	require.NoError(t, sc.Present())
	assert.NotEqual(t, first, second)

	// image 1 was acquired, next slot is (1+1)%2
	require.NoError(t, sc.AcquireNextImage(ctx))
	assert.Equal(t, uint32(2), sc.ImageIndex())
	require.NoError(t, sc.Present())

	assert.Equal(t, []rhi.Handle{first, second, first}, ring())
}

func TestAcquireFailureKeepsState(t *testing.T) {
	sc, device := newSwapChain(t, 2)
	device.SetOutOfDate(true)

	err := sc.AcquireNextImage(context.Background())
	assert.ErrorIs(t, err, core.ErrSwapchainOutOfDate)
	assert.Equal(t, rhi.StateReady, sc.State())
	assert.False(t, sc.ImageAcquired())
}

func TestAcquireHonoursCancelledContext(t *testing.T) {
	sc, device := newSwapChain(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sc.AcquireNextImage(ctx), context.Canceled)
	assert.Zero(t, device.Count("AcquireNextImage"))
}

func TestResizeIdempotence(t *testing.T) {
	sc, device := newSwapChain(t, 2)
	device.ResetCalls()

	require.NoError(t, sc.Resize(800, 600))
	assert.Empty(t, device.Calls())
	assert.Equal(t, rhi.StateReady, sc.State())
}

func TestResizeRebuilds(t *testing.T) {
	sc, device := newSwapChain(t, 2)
	frame(t, sc)
	oldList := sc.CommandList()
	device.ResetCalls()

	require.NoError(t, sc.Resize(1024, 768))
	assert.Equal(t, uint32(1024), sc.Width())
	assert.Equal(t, uint32(768), sc.Height())
	assert.Equal(t, rhi.StateReady, sc.State())
	assert.NotSame(t, oldList, sc.CommandList())

	names := device.CallNames()
	assert.Equal(t, "WaitIdle", names[0])
	assert.Equal(t, 1, device.Count("CreateSwapChain"))
	assert.Zero(t, device.Count("CreateRenderPass"))
	assert.Zero(t, device.Count("CreateCommandPool"))
	for _, c := range device.CallsNamed("CreateFramebuffer") {
		assert.Equal(t, uint32(1024), c.Args[2])
		assert.Equal(t, uint32(768), c.Args[3])
	}

	assert.Equal(t, 1, device.LiveOf("surface"))
	assert.Equal(t, 3, device.LiveOf("framebuffer"))
	assert.Equal(t, 4, device.LiveOf("semaphore"))
	assert.Equal(t, 2, device.LiveOf("command_buffer"))

	frame(t, sc)
}

func TestRecreateAfterOutOfDate(t *testing.T) {
	sc, device := newSwapChain(t, 2)
	frame(t, sc)

	device.SetOutOfDate(true)
	assert.ErrorIs(t, sc.AcquireNextImage(context.Background()), core.ErrSwapchainOutOfDate)
	device.SetOutOfDate(false)
	device.ResetCalls()

	require.NoError(t, sc.Recreate())
	assert.Equal(t, 1, device.Count("CreateSwapChain"))
	assert.Equal(t, uint32(800), sc.Width())
	assert.Equal(t, rhi.StateReady, sc.State())
	frame(t, sc)
}

func TestResizeRejectsInvalidResolution(t *testing.T) {
	sc, device := newSwapChain(t, 2)
	device.ResetCalls()

	assert.ErrorIs(t, sc.Resize(0, 600), core.ErrInvalidResolution)
	assert.ErrorIs(t, sc.Resize(800, 20000), core.ErrInvalidResolution)
	assert.Empty(t, device.Calls())
	assert.True(t, sc.IsInitialized())
}

func TestResizeFailureLeavesUninitialized(t *testing.T) {
	sc, device := newSwapChain(t, 2)
	device.FailOn("CreateSwapChain", errors.New("surface lost"))

	assert.Error(t, sc.Resize(1024, 768))
	assert.False(t, sc.IsInitialized())
	assert.Equal(t, rhi.StateUninitialized, sc.State())

	device.ClearFailure("CreateSwapChain")
	require.NoError(t, sc.Resize(1024, 768))
	assert.True(t, sc.IsInitialized())
	frame(t, sc)
}

func TestDestroyOrder(t *testing.T) {
	device := headless.New(headless.WithImageCount(2))
	sc := rhi.NewSwapChain(device, headless.NewWindow(800, 600), defaultDesc(1))
	require.True(t, sc.IsInitialized())

	sc.Destroy()
	var kinds []string
	for _, o := range device.Destroyed() {
		if len(kinds) == 0 || kinds[len(kinds)-1] != o.Kind {
			kinds = append(kinds, o.Kind)
		}
	}
	assert.Equal(t, []string{
		// command list
		"semaphore", "fence", "command_buffer",
		// presentation objects
		"semaphore", "framebuffer", "image_view", "swapchain", "surface",
		// owned
		"command_pool", "render_pass",
	}, kinds)
	assert.Zero(t, device.Live())

	sc.Destroy()
	assert.Equal(t, rhi.StateUninitialized, sc.State())
}
