package rhi

// StateDevice receives the committed pipeline state. Every call reports failure
// through its error; callers do not retry.
type StateDevice interface {
	Draw(vertexCount uint32) error
	DrawIndexed(indexCount, indexOffset, vertexOffset uint32) error

	SetRenderTargets(views []Handle, depthStencil Handle) error
	SetTextures(startSlot uint32, textures []Handle) error
	SetSamplers(startSlot uint32, samplers []Handle) error
	SetConstantBuffers(startSlot uint32, scope BufferScope, buffers []Handle) error
	SetVertexShader(shader Handle) error
	SetPixelShader(shader Handle) error
	SetInputLayout(layout Handle) error
	SetViewport(viewport Viewport) error
	SetPrimitiveTopology(topology PrimitiveTopology) error
	SetCullMode(mode CullMode) error
	SetFillMode(mode FillMode) error
	SetAlphaBlendingEnabled(enabled bool) error
	SetDepthEnabled(enabled bool) error

	ClearRenderTarget(view Handle, color [4]float32) error
	ClearDepthStencil(view Handle, flags ClearFlags, depth float32, stencil uint8) error
}

type SwapChainCreateInfo struct {
	Surface     Handle
	Width       uint32
	Height      uint32
	Format      Format
	BufferCount uint32
	Flags       PresentFlags
}

// NativeSwapChain is what a backend negotiated for a swap chain request.
type NativeSwapChain struct {
	Handle Handle
	Extent Extent
	Format Format
}

type SubmitInfo struct {
	CommandBuffer   Handle
	WaitSemaphore   Handle
	SignalSemaphore Handle
	Fence           Handle
}

// ObjectDevice creates and destroys native objects and drives the queues.
// Destroy calls given a nil Handle do nothing.
type ObjectDevice interface {
	CreateSurface(window Window) (Handle, error)
	DestroySurface(surface Handle)

	CreateSwapChain(info SwapChainCreateInfo) (NativeSwapChain, error)
	DestroySwapChain(swapChain Handle)
	SwapChainImages(swapChain Handle) ([]Handle, error)

	CreateImageView(image Handle, format Format) (Handle, error)
	DestroyImageView(view Handle)

	CreateRenderPass(format Format) (Handle, error)
	DestroyRenderPass(pass Handle)

	CreateFramebuffer(pass Handle, attachments []Handle, width, height uint32) (Handle, error)
	DestroyFramebuffer(framebuffer Handle)

	CreateSemaphore() (Handle, error)
	DestroySemaphore(semaphore Handle)

	CreateFence(signaled bool) (Handle, error)
	DestroyFence(fence Handle)
	// WaitFence blocks without a timeout.
	WaitFence(fence Handle) error
	ResetFence(fence Handle) error

	CreateCommandPool() (Handle, error)
	DestroyCommandPool(pool Handle)
	ResetCommandPool(pool Handle) error
	AllocateCommandBuffer(pool Handle) (Handle, error)
	FreeCommandBuffer(pool Handle, buffer Handle)
	BeginCommandBuffer(buffer Handle) error
	EndCommandBuffer(buffer Handle) error

	Submit(info SubmitInfo) error
	// AcquireNextImage blocks without a timeout and signals semaphore once the
	// returned image is available.
	AcquireNextImage(swapChain Handle, semaphore Handle) (uint32, error)
	Present(swapChain Handle, imageIndex uint32, waitSemaphore Handle) error
	WaitIdle() error
}

// Device is a complete backend.
type Device interface {
	StateDevice
	ObjectDevice

	Initialized() bool
	Name() string
	Shutdown() error
}
