package rhi

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spaghettifunk/anima-rhi/engine/core"
)

const DefaultMaxSlots uint32 = 10

// BindGroups is a set of state groups, listed in commit order.
type BindGroups uint16

const (
	GroupRenderTargets BindGroups = 1 << iota
	GroupTextures
	GroupSamplers
	GroupConstantBuffers
	GroupVertexShader
	GroupPixelShader
	GroupInputLayout
	GroupViewport
	GroupPrimitiveTopology
	GroupCullMode
	GroupFillMode
	GroupIndexBuffer
	GroupVertexBuffer
	GroupAlphaBlending
)

var groupNames = []string{
	"render_targets",
	"textures",
	"samplers",
	"constant_buffers",
	"vertex_shader",
	"pixel_shader",
	"input_layout",
	"viewport",
	"primitive_topology",
	"cull_mode",
	"fill_mode",
	"index_buffer",
	"vertex_buffer",
	"alpha_blending",
}

func (g BindGroups) Has(group BindGroups) bool {
	return g&group == group
}

func (g BindGroups) String() string {
	s := ""
	for i, name := range groupNames {
		if g&(1<<i) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += name
	}
	if s == "" {
		return "none"
	}
	return s
}

// BindReport describes the outcome of the most recent Bind.
type BindReport struct {
	// Committed holds every group pushed to the device.
	Committed BindGroups
	// Failed is the group that aborted the bind, zero when none did.
	Failed BindGroups

	IndexBuffer   error
	VertexBuffer  error
	AlphaBlending error
	Err           error
}

type PipelineOption func(p *Pipeline)

func WithProfiler(profiler *core.Profiler) PipelineOption {
	return func(p *Pipeline) {
		p.profiler = profiler
	}
}

// WithReverseZ makes render target clears write 1 - MaxDepth.
func WithReverseZ(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.reverseZ = enabled
	}
}

// WithMaxSlots sets how many texture, sampler and constant buffer slots Reset unbinds.
func WithMaxSlots(slots uint32) PipelineOption {
	return func(p *Pipeline) {
		if slots > 0 {
			p.maxSlots = slots
		}
	}
}

// Pipeline caches the requested pipeline state and pushes only what changed to
// the device right before a draw. It is not safe for concurrent use.
type Pipeline struct {
	device   StateDevice
	profiler *core.Profiler
	reverseZ bool
	maxSlots uint32

	state pipelineState
	last  BindReport
}

func NewPipeline(device StateDevice, opts ...PipelineOption) (*Pipeline, error) {
	if device == nil {
		err := fmt.Errorf("failed to create pipeline: device is nil: %w", core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}
	p := &Pipeline{
		device:   device,
		maxSlots: DefaultMaxSlots,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Reset()
	return p, nil
}

func (p *Pipeline) Initialize() error {
	p.Reset()
	return nil
}

func (p *Pipeline) Shutdown() error {
	p.state = pipelineState{}
	p.last = BindReport{}
	return nil
}

func (p *Pipeline) invalid(op, reason string) error {
	core.LogWarn("pipeline %s: %s", op, reason)
	return fmt.Errorf("pipeline %s: %s: %w", op, reason, core.ErrInvalidArgument)
}

func (p *Pipeline) SetShader(shader Shader) error {
	if shader == nil {
		return p.invalid("SetShader", "shader is nil")
	}
	if err := p.SetVertexShader(shader); err != nil {
		return err
	}
	return p.SetPixelShader(shader)
}

// SetVertexShader also takes over the shader's input layout. Shaders without a
// vertex stage are ignored.
func (p *Pipeline) SetVertexShader(shader Shader) error {
	if shader == nil {
		return p.invalid("SetVertexShader", "shader is nil")
	}
	if !shader.HasVertexShader() {
		return nil
	}
	layout := shader.InputLayout()
	if layout != nil && layout.Handle() == nil {
		return p.invalid("SetVertexShader", "shader input layout is nil")
	}
	if !p.state.vertexShaderID.set(shader.ID()) {
		return nil
	}
	p.state.vertexShader = shader
	if layout != nil {
		p.state.inputLayout.set(layout.Handle())
	}
	return nil
}

func (p *Pipeline) SetPixelShader(shader Shader) error {
	if shader == nil {
		return p.invalid("SetPixelShader", "shader is nil")
	}
	if !shader.HasPixelShader() {
		return nil
	}
	if p.state.pixelShaderID.set(shader.ID()) {
		p.state.pixelShader = shader
	}
	return nil
}

func (p *Pipeline) SetInputLayout(layout InputLayout) error {
	if layout == nil || layout.Handle() == nil {
		return p.invalid("SetInputLayout", "input layout is nil")
	}
	p.state.inputLayout.set(layout.Handle())
	return nil
}

func (p *Pipeline) SetVertexBuffer(buffer Buffer) error {
	if buffer == nil {
		return p.invalid("SetVertexBuffer", "buffer is nil")
	}
	if !reflect.TypeOf(buffer).Comparable() {
		return p.invalid("SetVertexBuffer", fmt.Sprintf("buffer type %T is not comparable", buffer))
	}
	p.state.vertexBuffer.set(buffer)
	return nil
}

func (p *Pipeline) SetIndexBuffer(buffer Buffer) error {
	if buffer == nil {
		return p.invalid("SetIndexBuffer", "buffer is nil")
	}
	if !reflect.TypeOf(buffer).Comparable() {
		return p.invalid("SetIndexBuffer", fmt.Sprintf("buffer type %T is not comparable", buffer))
	}
	p.state.indexBuffer.set(buffer)
	return nil
}

// SetSampler appends to the sampler slots, slot order is call order.
func (p *Pipeline) SetSampler(sampler Sampler) error {
	if sampler == nil || sampler.Handle() == nil {
		return p.invalid("SetSampler", "sampler is nil")
	}
	p.state.samplers.add(sampler.Handle())
	return nil
}

// SetTexture appends to the texture slots. A nil texture keeps its slot empty.
func (p *Pipeline) SetTexture(texture Texture) error {
	var h Handle
	if texture != nil {
		h = texture.ShaderResource()
	}
	return p.SetTextureHandle(h)
}

func (p *Pipeline) SetRenderTexture(texture RenderTexture) error {
	var h Handle
	if texture != nil {
		h = texture.ShaderResource()
	}
	return p.SetTextureHandle(h)
}

func (p *Pipeline) SetTextureHandle(view Handle) error {
	p.state.textures.add(view)
	return nil
}

func (p *Pipeline) SetConstantBuffer(buffer ConstantBuffer, slot uint32, scope BufferScope) error {
	if buffer == nil || buffer.Handle() == nil {
		return p.invalid("SetConstantBuffer", "constant buffer is nil")
	}
	if scope > ScopeGlobal {
		return p.invalid("SetConstantBuffer", fmt.Sprintf("unknown scope %s", scope))
	}
	p.state.constantBuffers.add(ConstantBufferBinding{Buffer: buffer.Handle(), Slot: slot, Scope: scope})
	return nil
}

func (p *Pipeline) SetRenderTarget(target RenderTexture, depthStencil Handle, clear bool) error {
	if target == nil || target.RenderTargetView() == nil {
		return p.invalid("SetRenderTarget", "render texture is nil")
	}
	return p.setRenderTargets([]Handle{target.RenderTargetView()}, depthStencil, clear)
}

func (p *Pipeline) SetRenderTargetView(view Handle, depthStencil Handle, clear bool) error {
	if view == nil {
		return p.invalid("SetRenderTargetView", "render target view is nil")
	}
	return p.setRenderTargets([]Handle{view}, depthStencil, clear)
}

// SetRenderTargetViews replaces the bound targets. Nil views are skipped.
func (p *Pipeline) SetRenderTargetViews(views []Handle, depthStencil Handle, clear bool) error {
	if len(views) == 0 {
		return p.invalid("SetRenderTargetViews", "no render target views")
	}
	kept := make([]Handle, 0, len(views))
	for _, v := range views {
		if v != nil {
			kept = append(kept, v)
		}
	}
	return p.setRenderTargets(kept, depthStencil, clear)
}

func (p *Pipeline) setRenderTargets(views []Handle, depthStencil Handle, clear bool) error {
	rt := &p.state.renderTargets
	rt.views = views
	rt.depthStencil = depthStencil
	rt.clearOnBind = clear
	rt.dirty = true
	return nil
}

func (p *Pipeline) SetPrimitiveTopology(topology PrimitiveTopology) error {
	if topology > TopologyPointList {
		return p.invalid("SetPrimitiveTopology", fmt.Sprintf("unknown topology %s", topology))
	}
	p.state.primitiveTopology.set(topology)
	return nil
}

func (p *Pipeline) SetCullMode(mode CullMode) error {
	if mode > CullBack {
		return p.invalid("SetCullMode", fmt.Sprintf("unknown cull mode %s", mode))
	}
	p.state.cullMode.set(mode)
	return nil
}

func (p *Pipeline) SetFillMode(mode FillMode) error {
	if mode > FillWireframe {
		return p.invalid("SetFillMode", fmt.Sprintf("unknown fill mode %s", mode))
	}
	p.state.fillMode.set(mode)
	return nil
}

func (p *Pipeline) SetAlphaBlending(enabled bool) error {
	p.state.alphaBlending.set(enabled)
	return nil
}

func (p *Pipeline) SetViewport(viewport Viewport) error {
	if viewport.Width <= 0 || viewport.Height <= 0 {
		return p.invalid("SetViewport", fmt.Sprintf("empty viewport %gx%g", viewport.Width, viewport.Height))
	}
	p.state.viewport.set(viewport)
	return nil
}

// Dirty returns the groups the next Bind would commit.
func (p *Pipeline) Dirty() BindGroups {
	return p.state.dirtyGroups()
}

func (p *Pipeline) LastBind() BindReport {
	return p.last
}

// Bind commits every dirty group to the device. A failing group aborts the call
// and stays dirty together with every group after it; nothing is rolled back.
// Index buffer, vertex buffer and alpha blending always run and only their
// combined result is returned.
func (p *Pipeline) Bind() error {
	report := BindReport{}
	err := p.bindState(&report)
	if err == nil {
		err = p.bindBuffers(&report)
	}
	report.Err = err
	p.last = report
	return err
}

func (p *Pipeline) fail(report *BindReport, group BindGroups, err error) error {
	report.Failed = group
	err = fmt.Errorf("failed to bind %s: %w", group, err)
	core.LogError(err.Error())
	return err
}

func (p *Pipeline) bindState(report *BindReport) error {
	s := &p.state
	d := p.device

	if s.renderTargets.dirty {
		if err := p.bindRenderTargets(); err != nil {
			return p.fail(report, GroupRenderTargets, err)
		}
		report.Committed |= GroupRenderTargets
	}

	if s.textures.dirty {
		if err := d.SetTextures(0, s.textures.items); err != nil {
			return p.fail(report, GroupTextures, err)
		}
		p.count(func(c *core.BindingCounters) { c.Texture++ })
		s.textures.take()
		report.Committed |= GroupTextures
	}

	if s.samplers.dirty {
		if err := d.SetSamplers(0, s.samplers.items); err != nil {
			return p.fail(report, GroupSamplers, err)
		}
		p.count(func(c *core.BindingCounters) { c.Sampler++ })
		s.samplers.take()
		report.Committed |= GroupSamplers
	}

	if s.constantBuffers.dirty {
		// entries that made it to the device are dropped even if a later one fails
		for len(s.constantBuffers.items) > 0 {
			cb := s.constantBuffers.items[0]
			if err := d.SetConstantBuffers(cb.Slot, cb.Scope, []Handle{cb.Buffer}); err != nil {
				return p.fail(report, GroupConstantBuffers, err)
			}
			s.constantBuffers.items = s.constantBuffers.items[1:]
			p.count(func(c *core.BindingCounters) {
				c.ConstantBuffer++
				if cb.Scope == ScopeGlobal {
					c.ConstantBuffer++
				}
			})
		}
		s.constantBuffers.clear()
		report.Committed |= GroupConstantBuffers
	}

	if s.vertexShaderID.dirty {
		if err := d.SetVertexShader(s.vertexShader.VertexShaderHandle()); err != nil {
			return p.fail(report, GroupVertexShader, err)
		}
		p.count(func(c *core.BindingCounters) { c.VertexShader++ })
		s.vertexShaderID.commit()
		report.Committed |= GroupVertexShader
	}

	if s.pixelShaderID.dirty {
		if err := d.SetPixelShader(s.pixelShader.PixelShaderHandle()); err != nil {
			return p.fail(report, GroupPixelShader, err)
		}
		p.count(func(c *core.BindingCounters) { c.PixelShader++ })
		s.pixelShaderID.commit()
		report.Committed |= GroupPixelShader
	}

	if s.inputLayout.dirty {
		if err := d.SetInputLayout(s.inputLayout.value); err != nil {
			return p.fail(report, GroupInputLayout, err)
		}
		s.inputLayout.commit()
		report.Committed |= GroupInputLayout
	}

	if s.viewport.dirty {
		if err := d.SetViewport(s.viewport.value); err != nil {
			return p.fail(report, GroupViewport, err)
		}
		s.viewport.commit()
		report.Committed |= GroupViewport
	}

	if s.primitiveTopology.dirty {
		if err := d.SetPrimitiveTopology(s.primitiveTopology.value); err != nil {
			return p.fail(report, GroupPrimitiveTopology, err)
		}
		s.primitiveTopology.commit()
		report.Committed |= GroupPrimitiveTopology
	}

	if s.cullMode.dirty {
		if err := d.SetCullMode(s.cullMode.value); err != nil {
			return p.fail(report, GroupCullMode, err)
		}
		s.cullMode.commit()
		report.Committed |= GroupCullMode
	}

	if s.fillMode.dirty {
		if err := d.SetFillMode(s.fillMode.value); err != nil {
			return p.fail(report, GroupFillMode, err)
		}
		s.fillMode.commit()
		report.Committed |= GroupFillMode
	}

	return nil
}

func (p *Pipeline) bindRenderTargets() error {
	rt := &p.state.renderTargets
	if len(rt.views) == 0 {
		return core.ErrNoRenderTarget
	}

	if err := p.device.SetDepthEnabled(rt.depthStencil != nil); err != nil {
		return err
	}
	if err := p.device.SetRenderTargets(rt.views, rt.depthStencil); err != nil {
		return err
	}
	p.count(func(c *core.BindingCounters) { c.RenderTarget++ })

	if rt.clearOnBind {
		for _, view := range rt.views {
			if err := p.device.ClearRenderTarget(view, [4]float32{0, 0, 0, 0}); err != nil {
				return err
			}
		}
		if rt.depthStencil != nil {
			depth := p.state.viewport.value.MaxDepth
			if p.reverseZ {
				depth = 1 - depth
			}
			if err := p.device.ClearDepthStencil(rt.depthStencil, ClearDepth, depth, 0); err != nil {
				return err
			}
		}
		rt.clearOnBind = false
	}
	rt.dirty = false
	return nil
}

func (p *Pipeline) bindBuffers(report *BindReport) error {
	s := &p.state

	if s.indexBuffer.dirty {
		report.IndexBuffer = s.indexBuffer.value.Bind()
		if report.IndexBuffer == nil {
			s.indexBuffer.commit()
			report.Committed |= GroupIndexBuffer
			p.count(func(c *core.BindingCounters) { c.IndexBuffer++ })
		}
	}

	if s.vertexBuffer.dirty {
		report.VertexBuffer = s.vertexBuffer.value.Bind()
		if report.VertexBuffer == nil {
			s.vertexBuffer.commit()
			report.Committed |= GroupVertexBuffer
			p.count(func(c *core.BindingCounters) { c.VertexBuffer++ })
		}
	}

	if s.alphaBlending.dirty {
		report.AlphaBlending = p.device.SetAlphaBlendingEnabled(s.alphaBlending.value)
		if report.AlphaBlending == nil {
			s.alphaBlending.commit()
			report.Committed |= GroupAlphaBlending
		}
	}

	if err := errors.Join(report.IndexBuffer, report.VertexBuffer, report.AlphaBlending); err != nil {
		err = fmt.Errorf("failed to bind buffers: %w", err)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (p *Pipeline) Draw(vertexCount uint32) error {
	if err := p.Bind(); err != nil {
		return err
	}
	if err := p.device.Draw(vertexCount); err != nil {
		err = fmt.Errorf("failed to draw %d vertices: %w", vertexCount, err)
		core.LogError(err.Error())
		return err
	}
	p.count(func(c *core.BindingCounters) { c.DrawCalls++ })
	return nil
}

func (p *Pipeline) DrawIndexed(indexCount, indexOffset, vertexOffset uint32) error {
	if err := p.Bind(); err != nil {
		return err
	}
	if err := p.device.DrawIndexed(indexCount, indexOffset, vertexOffset); err != nil {
		err = fmt.Errorf("failed to draw %d indices: %w", indexCount, err)
		core.LogError(err.Error())
		return err
	}
	p.count(func(c *core.BindingCounters) { c.DrawCalls++ })
	return nil
}

// Reset pushes the default state to the device and forgets everything pending.
// Device failures are logged only.
func (p *Pipeline) Reset() {
	d := p.device
	empty := make([]Handle, p.maxSlots)

	logFailure := func(what string, err error) {
		if err != nil {
			core.LogError("pipeline reset: failed to %s: %s", what, err)
		}
	}
	logFailure("unbind textures", d.SetTextures(0, empty))
	logFailure("unbind samplers", d.SetSamplers(0, empty))
	logFailure("unbind vertex stage constant buffers", d.SetConstantBuffers(0, ScopeVertexStage, empty))
	logFailure("unbind pixel stage constant buffers", d.SetConstantBuffers(0, ScopePixelStage, empty))
	logFailure("set fill mode", d.SetFillMode(FillSolid))
	logFailure("set cull mode", d.SetCullMode(CullBack))
	logFailure("set primitive topology", d.SetPrimitiveTopology(TopologyTriangleList))
	logFailure("disable alpha blending", d.SetAlphaBlendingEnabled(false))

	s := &p.state
	s.textures.clear()
	s.samplers.clear()
	s.constantBuffers.clear()
	s.renderTargets = renderTargets{}

	s.vertexShader = nil
	s.pixelShader = nil
	s.vertexShaderID.force(core.NilResourceID)
	s.pixelShaderID.force(core.NilResourceID)
	s.inputLayout.force(nil)
	s.indexBuffer.force(nil)
	s.vertexBuffer.force(nil)
	s.viewport.force(Viewport{})

	s.fillMode.force(FillSolid)
	s.cullMode.force(CullBack)
	s.primitiveTopology.force(TopologyTriangleList)
	s.alphaBlending.force(false)

	p.last = BindReport{}
}

func (p *Pipeline) count(fn func(c *core.BindingCounters)) {
	if p.profiler != nil {
		fn(&p.profiler.Bindings)
	}
}

func (p *Pipeline) CullMode() CullMode {
	return p.state.cullMode.value
}

func (p *Pipeline) FillMode() FillMode {
	return p.state.fillMode.value
}

func (p *Pipeline) PrimitiveTopology() PrimitiveTopology {
	return p.state.primitiveTopology.value
}

func (p *Pipeline) Viewport() Viewport {
	return p.state.viewport.value
}
