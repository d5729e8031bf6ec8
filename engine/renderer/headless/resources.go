package headless

import (
	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

type InputLayout struct {
	handle Object
}

func NewInputLayout() *InputLayout {
	return &InputLayout{handle: newObject("input_layout")}
}

func (l *InputLayout) Handle() rhi.Handle {
	return l.handle
}

// Shader has an optional vertex and pixel stage. Recompile swaps both native
// objects and issues a new ID.
type Shader struct {
	id     core.ResourceID
	vertex rhi.Handle
	pixel  rhi.Handle
	layout *InputLayout

	hasVertex bool
	hasPixel  bool
}

func NewShader(vertex, pixel bool) *Shader {
	s := &Shader{hasVertex: vertex, hasPixel: pixel}
	if vertex {
		s.layout = NewInputLayout()
	}
	s.Recompile()
	return s
}

func (s *Shader) Recompile() {
	s.id = core.NewResourceID()
	s.vertex, s.pixel = nil, nil
	if s.hasVertex {
		s.vertex = newObject("vertex_shader")
	}
	if s.hasPixel {
		s.pixel = newObject("pixel_shader")
	}
}

func (s *Shader) ID() core.ResourceID {
	return s.id
}

func (s *Shader) HasVertexShader() bool {
	return s.hasVertex
}

func (s *Shader) HasPixelShader() bool {
	return s.hasPixel
}

func (s *Shader) VertexShaderHandle() rhi.Handle {
	return s.vertex
}

func (s *Shader) PixelShaderHandle() rhi.Handle {
	return s.pixel
}

// InputLayout is nil for pixel only shaders.
func (s *Shader) InputLayout() rhi.InputLayout {
	if s.layout == nil {
		return nil
	}
	return s.layout
}

// LoadShader ignores the binaries beyond which stages they provide.
func (d *Device) LoadShader(vertex, pixel []byte) (rhi.Shader, error) {
	if err := d.record("LoadShader", len(vertex), len(pixel)); err != nil {
		return nil, err
	}
	return NewShader(len(vertex) > 0, len(pixel) > 0), nil
}

func (d *Device) UnloadShader(shader rhi.Shader) {
	if shader == nil {
		return
	}
	d.record("UnloadShader", shader.ID())
}

// Buffer binds itself on the device that created it.
type Buffer struct {
	handle Object
	bind   func(h rhi.Handle) error
}

func (d *Device) NewVertexBuffer() *Buffer {
	return &Buffer{handle: newObject("vertex_buffer"), bind: d.bindVertexBuffer}
}

func (d *Device) NewIndexBuffer() *Buffer {
	return &Buffer{handle: newObject("index_buffer"), bind: d.bindIndexBuffer}
}

func (b *Buffer) Handle() rhi.Handle {
	return b.handle
}

func (b *Buffer) Bind() error {
	return b.bind(b.handle)
}

type Texture struct {
	srv Object
}

func NewTexture() *Texture {
	return &Texture{srv: newObject("shader_resource_view")}
}

func (t *Texture) ShaderResource() rhi.Handle {
	return t.srv
}

type RenderTexture struct {
	srv Object
	rtv Object
	dsv rhi.Handle
}

func NewRenderTexture(withDepth bool) *RenderTexture {
	rt := &RenderTexture{
		srv: newObject("shader_resource_view"),
		rtv: newObject("render_target_view"),
	}
	if withDepth {
		rt.dsv = newObject("depth_stencil_view")
	}
	return rt
}

func (rt *RenderTexture) ShaderResource() rhi.Handle {
	return rt.srv
}

func (rt *RenderTexture) RenderTargetView() rhi.Handle {
	return rt.rtv
}

func (rt *RenderTexture) DepthStencilView() rhi.Handle {
	return rt.dsv
}

type Sampler struct {
	handle Object
}

func NewSampler() *Sampler {
	return &Sampler{handle: newObject("sampler")}
}

func (s *Sampler) Handle() rhi.Handle {
	return s.handle
}

type ConstantBuffer struct {
	handle Object
}

func NewConstantBuffer() *ConstantBuffer {
	return &ConstantBuffer{handle: newObject("constant_buffer")}
}

func (c *ConstantBuffer) Handle() rhi.Handle {
	return c.handle
}

// Window stands in for a platform window.
type Window struct {
	valid  bool
	width  uint32
	height uint32
}

func NewWindow(width, height uint32) *Window {
	return &Window{valid: true, width: width, height: height}
}

func (w *Window) IsValid() bool {
	return w != nil && w.valid
}

func (w *Window) Native() any {
	return w
}

// Close invalidates the window.
func (w *Window) Close() {
	w.valid = false
}

func (w *Window) Resize(width, height uint32) {
	w.width, w.height = width, height
}

func (w *Window) FramebufferSize() (uint32, uint32) {
	return w.width, w.height
}
