package headless

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func init() {
	rhi.RegisterBackend(rhi.BackendHeadless, func(config rhi.DeviceConfig) (rhi.Device, error) {
		return New(WithName(config.ApplicationName)), nil
	})
}

// Object is the native handle type of the headless backend.
type Object struct {
	Kind string
	ID   uuid.UUID
}

func newObject(kind string) Object {
	return Object{Kind: kind, ID: uuid.New()}
}

func (o Object) String() string {
	return fmt.Sprintf("%s(%s)", o.Kind, o.ID.String()[:8])
}

// Call is one recorded device call.
type Call struct {
	Name string
	Args []any
}

// State mirrors what the last immediate state calls left on the device.
type State struct {
	RenderTargets     []rhi.Handle
	DepthStencil      rhi.Handle
	DepthEnabled      bool
	Textures          map[uint32]rhi.Handle
	Samplers          map[uint32]rhi.Handle
	ConstantBuffers   map[rhi.BufferScope]map[uint32]rhi.Handle
	VertexShader      rhi.Handle
	PixelShader       rhi.Handle
	InputLayout       rhi.Handle
	Viewport          rhi.Viewport
	PrimitiveTopology rhi.PrimitiveTopology
	CullMode          rhi.CullMode
	FillMode          rhi.FillMode
	AlphaBlending     bool
	VertexBuffer      rhi.Handle
	IndexBuffer       rhi.Handle
}

type swapChain struct {
	surface rhi.Handle
	images  []rhi.Handle
	extent  rhi.Extent
	next    uint32
	queued  []uint32
}

type Option func(d *Device)

func WithName(name string) Option {
	return func(d *Device) {
		if name != "" {
			d.name = name
		}
	}
}

// WithImageCount fixes the number of native images per swap chain. By default
// a swap chain gets one image more than its buffer count.
func WithImageCount(count uint32) Option {
	return func(d *Device) {
		d.imageCount = count
	}
}

// WithSurfaceExtent makes every swap chain come out at the given size whatever
// was requested, like a surface with a fixed current extent.
func WithSurfaceExtent(width, height uint32) Option {
	return func(d *Device) {
		d.surfaceExtent = rhi.Extent{Width: width, Height: height}
	}
}

var (
	_ rhi.Device       = (*Device)(nil)
	_ rhi.ShaderLoader = (*Device)(nil)
	_ rhi.Window       = (*Window)(nil)
)

// Device is an rhi.Device that executes nothing and records everything. GPU
// work completes at submit time.
type Device struct {
	name        string
	initialized bool
	imageCount  uint32

	surfaceExtent rhi.Extent

	calls    []Call
	failures map[string]error

	live      map[Object]struct{}
	destroyed []Object

	swapChains map[Object]*swapChain
	fences     map[Object]bool
	recording  map[Object]bool

	outOfDate bool
	state     State
}

func New(opts ...Option) *Device {
	d := &Device{
		name:        "headless",
		initialized: true,
		failures:    make(map[string]error),
		live:        make(map[Object]struct{}),
		swapChains:  make(map[Object]*swapChain),
		fences:      make(map[Object]bool),
		recording:   make(map[Object]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.resetState()
	return d
}

func (d *Device) resetState() {
	d.state = State{
		Textures:        make(map[uint32]rhi.Handle),
		Samplers:        make(map[uint32]rhi.Handle),
		ConstantBuffers: make(map[rhi.BufferScope]map[uint32]rhi.Handle),
	}
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) Initialized() bool {
	return d.initialized
}

func (d *Device) Shutdown() error {
	d.record("Shutdown")
	if n := len(d.live); n > 0 {
		core.LogWarn("headless device shut down with %d live objects", n)
	}
	d.initialized = false
	return nil
}

// FailOn makes every later call named name fail with err until ClearFailure.
func (d *Device) FailOn(name string, err error) {
	d.failures[name] = err
}

func (d *Device) ClearFailure(name string) {
	delete(d.failures, name)
}

// SetOutOfDate makes acquire and present report an out of date swap chain.
func (d *Device) SetOutOfDate(outOfDate bool) {
	d.outOfDate = outOfDate
}

// QueueImageIndices scripts the image indices the next acquires on swapChain
// return. Unscripted acquires walk the images in order.
func (d *Device) QueueImageIndices(swapChain rhi.Handle, indices ...uint32) {
	if sc, ok := d.swapChains[asObject(swapChain)]; ok {
		sc.queued = append(sc.queued, indices...)
	}
}

func (d *Device) record(name string, args ...any) error {
	d.calls = append(d.calls, Call{Name: name, Args: args})
	return d.failures[name]
}

func (d *Device) Calls() []Call {
	return slices.Clone(d.calls)
}

// CallNames lists recorded call names, in order.
func (d *Device) CallNames() []string {
	names := make([]string, len(d.calls))
	for i, c := range d.calls {
		names[i] = c.Name
	}
	return names
}

// Count returns how many calls named name were recorded.
func (d *Device) Count(name string) int {
	n := 0
	for _, c := range d.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// CallsNamed returns the recorded calls named name, in order.
func (d *Device) CallsNamed(name string) []Call {
	var calls []Call
	for _, c := range d.calls {
		if c.Name == name {
			calls = append(calls, c)
		}
	}
	return calls
}

func (d *Device) ResetCalls() {
	d.calls = nil
}

func (d *Device) State() State {
	return d.state
}

// Live returns the number of native objects created and not yet destroyed.
func (d *Device) Live() int {
	return len(d.live)
}

func (d *Device) LiveOf(kind string) int {
	n := 0
	for o := range d.live {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Destroyed lists destroyed objects in destruction order.
func (d *Device) Destroyed() []Object {
	return slices.Clone(d.destroyed)
}

func (d *Device) create(kind string) Object {
	o := newObject(kind)
	d.live[o] = struct{}{}
	return o
}

func (d *Device) destroy(kind string, h rhi.Handle) {
	if h == nil {
		return
	}
	o := asObject(h)
	if _, ok := d.live[o]; !ok || o.Kind != kind {
		core.LogError("headless: destroy of unknown %s %v", kind, h)
		return
	}
	delete(d.live, o)
	d.destroyed = append(d.destroyed, o)
}

func asObject(h rhi.Handle) Object {
	o, _ := h.(Object)
	return o
}

func (d *Device) isLive(h rhi.Handle, kind string) bool {
	o := asObject(h)
	_, ok := d.live[o]
	return ok && o.Kind == kind
}

func (d *Device) CreateSurface(window rhi.Window) (rhi.Handle, error) {
	if err := d.record("CreateSurface", window); err != nil {
		return nil, err
	}
	if window == nil || !window.IsValid() {
		return nil, fmt.Errorf("create surface: %w", core.ErrInvalidArgument)
	}
	return d.create("surface"), nil
}

func (d *Device) DestroySurface(surface rhi.Handle) {
	if surface == nil {
		return
	}
	d.record("DestroySurface", surface)
	d.destroy("surface", surface)
}

func (d *Device) CreateSwapChain(info rhi.SwapChainCreateInfo) (rhi.NativeSwapChain, error) {
	if err := d.record("CreateSwapChain", info); err != nil {
		return rhi.NativeSwapChain{}, err
	}
	if !d.isLive(info.Surface, "surface") {
		return rhi.NativeSwapChain{}, fmt.Errorf("create swap chain: surface %v: %w", info.Surface, core.ErrInvalidArgument)
	}
	format := info.Format
	if format == rhi.FormatUndefined {
		format = rhi.FormatB8G8R8A8Unorm
	}
	count := d.imageCount
	if count == 0 {
		count = info.BufferCount + 1
	}

	extent := rhi.Extent{Width: info.Width, Height: info.Height}
	if d.surfaceExtent.Width > 0 && d.surfaceExtent.Height > 0 {
		extent = d.surfaceExtent
	}

	o := d.create("swapchain")
	sc := &swapChain{
		surface: info.Surface,
		extent:  extent,
	}
	for i := uint32(0); i < count; i++ {
		// images belong to the swap chain, they are not tracked as live objects
		sc.images = append(sc.images, newObject("image"))
	}
	d.swapChains[o] = sc
	return rhi.NativeSwapChain{Handle: o, Extent: sc.extent, Format: format}, nil
}

func (d *Device) DestroySwapChain(swapChain rhi.Handle) {
	if swapChain == nil {
		return
	}
	d.record("DestroySwapChain", swapChain)
	delete(d.swapChains, asObject(swapChain))
	d.destroy("swapchain", swapChain)
}

func (d *Device) SwapChainImages(swapChain rhi.Handle) ([]rhi.Handle, error) {
	if err := d.record("SwapChainImages", swapChain); err != nil {
		return nil, err
	}
	sc, ok := d.swapChains[asObject(swapChain)]
	if !ok {
		return nil, fmt.Errorf("swap chain images: unknown swap chain %v: %w", swapChain, core.ErrInvalidArgument)
	}
	return slices.Clone(sc.images), nil
}

func (d *Device) CreateImageView(image rhi.Handle, format rhi.Format) (rhi.Handle, error) {
	if err := d.record("CreateImageView", image, format); err != nil {
		return nil, err
	}
	return d.create("image_view"), nil
}

func (d *Device) DestroyImageView(view rhi.Handle) {
	if view == nil {
		return
	}
	d.record("DestroyImageView", view)
	d.destroy("image_view", view)
}

func (d *Device) CreateRenderPass(format rhi.Format) (rhi.Handle, error) {
	if err := d.record("CreateRenderPass", format); err != nil {
		return nil, err
	}
	return d.create("render_pass"), nil
}

func (d *Device) DestroyRenderPass(pass rhi.Handle) {
	if pass == nil {
		return
	}
	d.record("DestroyRenderPass", pass)
	d.destroy("render_pass", pass)
}

func (d *Device) CreateFramebuffer(pass rhi.Handle, attachments []rhi.Handle, width, height uint32) (rhi.Handle, error) {
	if err := d.record("CreateFramebuffer", pass, attachments, width, height); err != nil {
		return nil, err
	}
	if !d.isLive(pass, "render_pass") {
		return nil, fmt.Errorf("create framebuffer: render pass %v: %w", pass, core.ErrInvalidArgument)
	}
	return d.create("framebuffer"), nil
}

func (d *Device) DestroyFramebuffer(framebuffer rhi.Handle) {
	if framebuffer == nil {
		return
	}
	d.record("DestroyFramebuffer", framebuffer)
	d.destroy("framebuffer", framebuffer)
}

func (d *Device) CreateSemaphore() (rhi.Handle, error) {
	if err := d.record("CreateSemaphore"); err != nil {
		return nil, err
	}
	return d.create("semaphore"), nil
}

func (d *Device) DestroySemaphore(semaphore rhi.Handle) {
	if semaphore == nil {
		return
	}
	d.record("DestroySemaphore", semaphore)
	d.destroy("semaphore", semaphore)
}

func (d *Device) CreateFence(signaled bool) (rhi.Handle, error) {
	if err := d.record("CreateFence", signaled); err != nil {
		return nil, err
	}
	o := d.create("fence")
	d.fences[o] = signaled
	return o, nil
}

func (d *Device) DestroyFence(fence rhi.Handle) {
	if fence == nil {
		return
	}
	d.record("DestroyFence", fence)
	delete(d.fences, asObject(fence))
	d.destroy("fence", fence)
}

// WaitFence fails for a fence nothing will ever signal instead of hanging.
func (d *Device) WaitFence(fence rhi.Handle) error {
	if err := d.record("WaitFence", fence); err != nil {
		return err
	}
	signaled, ok := d.fences[asObject(fence)]
	if !ok {
		return fmt.Errorf("wait fence: unknown fence %v: %w", fence, core.ErrInvalidArgument)
	}
	if !signaled {
		return fmt.Errorf("wait fence: %v is never signaled: %w", fence, core.ErrUnknown)
	}
	return nil
}

func (d *Device) ResetFence(fence rhi.Handle) error {
	if err := d.record("ResetFence", fence); err != nil {
		return err
	}
	if _, ok := d.fences[asObject(fence)]; !ok {
		return fmt.Errorf("reset fence: unknown fence %v: %w", fence, core.ErrInvalidArgument)
	}
	d.fences[asObject(fence)] = false
	return nil
}

func (d *Device) CreateCommandPool() (rhi.Handle, error) {
	if err := d.record("CreateCommandPool"); err != nil {
		return nil, err
	}
	return d.create("command_pool"), nil
}

func (d *Device) DestroyCommandPool(pool rhi.Handle) {
	if pool == nil {
		return
	}
	d.record("DestroyCommandPool", pool)
	d.destroy("command_pool", pool)
}

func (d *Device) ResetCommandPool(pool rhi.Handle) error {
	return d.record("ResetCommandPool", pool)
}

func (d *Device) AllocateCommandBuffer(pool rhi.Handle) (rhi.Handle, error) {
	if err := d.record("AllocateCommandBuffer", pool); err != nil {
		return nil, err
	}
	if !d.isLive(pool, "command_pool") {
		return nil, fmt.Errorf("allocate command buffer: pool %v: %w", pool, core.ErrInvalidArgument)
	}
	return d.create("command_buffer"), nil
}

func (d *Device) FreeCommandBuffer(pool rhi.Handle, buffer rhi.Handle) {
	if buffer == nil {
		return
	}
	d.record("FreeCommandBuffer", pool, buffer)
	delete(d.recording, asObject(buffer))
	d.destroy("command_buffer", buffer)
}

func (d *Device) BeginCommandBuffer(buffer rhi.Handle) error {
	if err := d.record("BeginCommandBuffer", buffer); err != nil {
		return err
	}
	d.recording[asObject(buffer)] = true
	return nil
}

func (d *Device) EndCommandBuffer(buffer rhi.Handle) error {
	if err := d.record("EndCommandBuffer", buffer); err != nil {
		return err
	}
	if !d.recording[asObject(buffer)] {
		return fmt.Errorf("end command buffer: %v is not recording: %w", buffer, core.ErrInvalidArgument)
	}
	d.recording[asObject(buffer)] = false
	return nil
}

func (d *Device) Submit(info rhi.SubmitInfo) error {
	if err := d.record("Submit", info); err != nil {
		return err
	}
	if info.Fence != nil {
		d.fences[asObject(info.Fence)] = true
	}
	return nil
}

func (d *Device) AcquireNextImage(swapChain rhi.Handle, semaphore rhi.Handle) (uint32, error) {
	if err := d.record("AcquireNextImage", swapChain, semaphore); err != nil {
		return 0, err
	}
	if d.outOfDate {
		return 0, core.ErrSwapchainOutOfDate
	}
	sc, ok := d.swapChains[asObject(swapChain)]
	if !ok {
		return 0, fmt.Errorf("acquire: unknown swap chain %v: %w", swapChain, core.ErrInvalidArgument)
	}
	if len(sc.queued) > 0 {
		index := sc.queued[0]
		sc.queued = sc.queued[1:]
		return index, nil
	}
	index := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return index, nil
}

func (d *Device) Present(swapChain rhi.Handle, imageIndex uint32, waitSemaphore rhi.Handle) error {
	if err := d.record("Present", swapChain, imageIndex, waitSemaphore); err != nil {
		return err
	}
	if d.outOfDate {
		return core.ErrSwapchainOutOfDate
	}
	if _, ok := d.swapChains[asObject(swapChain)]; !ok {
		return fmt.Errorf("present: unknown swap chain %v: %w", swapChain, core.ErrInvalidArgument)
	}
	return nil
}

func (d *Device) WaitIdle() error {
	return d.record("WaitIdle")
}
