package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

// graphicsState is the device level state set through rhi.StateDevice. It
// outlives command buffers: every recording starts from it.
type graphicsState struct {
	renderTarget *VulkanFramebuffer
	depthStencil rhi.Handle

	vertexShader *VulkanShaderStage
	pixelShader  *VulkanShaderStage
	inputLayout  *VulkanInputLayout

	viewport rhi.Viewport
	topology rhi.PrimitiveTopology
	cullMode rhi.CullMode
	fillMode rhi.FillMode
	blending bool
	depth    bool

	// Descriptor bindings, kept by slot.
	textures        map[uint32]rhi.Handle
	samplers        map[uint32]rhi.Handle
	constantBuffers map[rhi.BufferScope]map[uint32]rhi.Handle
}

func newGraphicsState() graphicsState {
	return graphicsState{
		cullMode:        rhi.CullBack,
		textures:        make(map[uint32]rhi.Handle),
		samplers:        make(map[uint32]rhi.Handle),
		constantBuffers: make(map[rhi.BufferScope]map[uint32]rhi.Handle),
	}
}

func (s *graphicsState) key() pipelineKey {
	return pipelineKey{
		vertex:   s.vertexShader,
		pixel:    s.pixelShader,
		layout:   s.inputLayout,
		pass:     s.renderTarget.Renderpass,
		topology: s.topology,
		cullMode: s.cullMode,
		fillMode: s.fillMode,
		blending: s.blending,
		depth:    s.depth,
	}
}

func storeSlots(slots map[uint32]rhi.Handle, startSlot uint32, handles []rhi.Handle) {
	for i, h := range handles {
		slot := startSlot + uint32(i)
		if h == nil {
			delete(slots, slot)
			continue
		}
		slots[slot] = h
	}
}

// SetRenderTargets begins the render pass of the framebuffer that owns the first
// view. Framebuffers hold a single colour attachment, so further views are ignored.
func (d *Device) SetRenderTargets(views []rhi.Handle, depthStencil rhi.Handle) error {
	if len(views) == 0 {
		err := fmt.Errorf("SetRenderTargets: %w", core.ErrNoRenderTarget)
		core.LogError(err.Error())
		return err
	}
	view, _ := views[0].(vk.ImageView)
	fb, ok := d.context.Framebuffers[view]
	if !ok {
		err := fmt.Errorf("render target view %v has no framebuffer: %w", views[0], core.ErrInvalidArgument)
		core.LogError(err.Error())
		return err
	}
	if len(views) > 1 {
		core.LogWarn("SetRenderTargets: %d views given, only the first is bound", len(views))
	}

	d.state.renderTarget = fb
	d.state.depthStencil = depthStencil

	if cb := d.context.Recording; cb != nil {
		if cb.State == CommandBufferStateInRenderPass {
			RenderpassEnd(cb)
		}
		RenderpassBegin(cb, fb)
	}
	return nil
}

// activePass returns the recording command buffer inside the render pass of the
// current render target, starting the pass when a new recording has not yet.
func (d *Device) activePass(call string) (*VulkanCommandBuffer, error) {
	cb, err := d.recording(call)
	if err != nil {
		return nil, err
	}
	if d.state.renderTarget == nil || d.state.renderTarget.Handle == nil {
		err := fmt.Errorf("%s: %w", call, core.ErrNoRenderTarget)
		core.LogError(err.Error())
		return nil, err
	}
	if cb.State != CommandBufferStateInRenderPass || cb.Framebuffer != d.state.renderTarget {
		if cb.State == CommandBufferStateInRenderPass {
			RenderpassEnd(cb)
		}
		RenderpassBegin(cb, d.state.renderTarget)
	}
	return cb, nil
}

func (d *Device) SetTextures(startSlot uint32, textures []rhi.Handle) error {
	storeSlots(d.state.textures, startSlot, textures)
	return nil
}

func (d *Device) SetSamplers(startSlot uint32, samplers []rhi.Handle) error {
	storeSlots(d.state.samplers, startSlot, samplers)
	return nil
}

func (d *Device) SetConstantBuffers(startSlot uint32, scope rhi.BufferScope, buffers []rhi.Handle) error {
	slots, ok := d.state.constantBuffers[scope]
	if !ok {
		slots = make(map[uint32]rhi.Handle)
		d.state.constantBuffers[scope] = slots
	}
	storeSlots(slots, startSlot, buffers)
	return nil
}

func (d *Device) SetVertexShader(shader rhi.Handle) error {
	if shader == nil {
		d.state.vertexShader = nil
		return nil
	}
	stage, ok := shader.(*VulkanShaderStage)
	if !ok || stage.Stage != vk.ShaderStageVertexBit {
		err := fmt.Errorf("%v is not a Vulkan vertex shader: %w", shader, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return err
	}
	d.state.vertexShader = stage
	return nil
}

func (d *Device) SetPixelShader(shader rhi.Handle) error {
	if shader == nil {
		d.state.pixelShader = nil
		return nil
	}
	stage, ok := shader.(*VulkanShaderStage)
	if !ok || stage.Stage != vk.ShaderStageFragmentBit {
		err := fmt.Errorf("%v is not a Vulkan pixel shader: %w", shader, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return err
	}
	d.state.pixelShader = stage
	return nil
}

func (d *Device) SetInputLayout(layout rhi.Handle) error {
	if layout == nil {
		d.state.inputLayout = nil
		return nil
	}
	l, ok := layout.(*VulkanInputLayout)
	if !ok {
		err := fmt.Errorf("%v is not a Vulkan input layout: %w", layout, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return err
	}
	d.state.inputLayout = l
	return nil
}

func (d *Device) SetViewport(viewport rhi.Viewport) error {
	d.state.viewport = viewport
	return nil
}

func (d *Device) SetPrimitiveTopology(topology rhi.PrimitiveTopology) error {
	if _, ok := topologies[topology]; !ok {
		err := fmt.Errorf("topology %s: %w", topology, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return err
	}
	d.state.topology = topology
	return nil
}

func (d *Device) SetCullMode(mode rhi.CullMode) error {
	d.state.cullMode = mode
	return nil
}

func (d *Device) SetFillMode(mode rhi.FillMode) error {
	d.state.fillMode = mode
	return nil
}

func (d *Device) SetAlphaBlendingEnabled(enabled bool) error {
	d.state.blending = enabled
	return nil
}

func (d *Device) SetDepthEnabled(enabled bool) error {
	d.state.depth = enabled
	return nil
}

func (d *Device) ClearRenderTarget(view rhi.Handle, color [4]float32) error {
	cb, err := d.activePass("ClearRenderTarget")
	if err != nil {
		return err
	}
	fb := cb.Framebuffer
	v, _ := view.(vk.ImageView)
	attachment := -1
	for i, a := range fb.Attachments {
		if a == v {
			attachment = i
			break
		}
	}
	if attachment < 0 {
		err := fmt.Errorf("view %v is not bound as a render target: %w", view, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return err
	}

	clearAttachment := vk.ClearAttachment{
		AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
		ColorAttachment: uint32(attachment),
	}
	clearAttachment.ClearValue.SetColor(color[:])
	vk.CmdClearAttachments(cb.Handle, 1, []vk.ClearAttachment{clearAttachment}, 1, []vk.ClearRect{fullRect(fb)})
	return nil
}

// ClearDepthStencil is a no-op: the swap chain render pass has no depth attachment.
func (d *Device) ClearDepthStencil(view rhi.Handle, flags rhi.ClearFlags, depth float32, stencil uint8) error {
	cb, err := d.activePass("ClearDepthStencil")
	if err != nil {
		return err
	}
	if view == nil || toVulkanAspect(flags) == 0 {
		return nil
	}
	core.LogDebug("ClearDepthStencil: framebuffer %v has no depth attachment, skipping", cb.Framebuffer.Handle)
	return nil
}

func fullRect(fb *VulkanFramebuffer) vk.ClearRect {
	return vk.ClearRect{
		Rect: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height},
		},
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

// prepareDraw binds the pipeline for the current state and the dynamic viewport.
// A nil command buffer without error means there is nothing to draw with.
func (d *Device) prepareDraw(call string) (*VulkanCommandBuffer, error) {
	cb, err := d.activePass(call)
	if err != nil {
		return nil, err
	}
	if d.state.vertexShader == nil {
		core.LogWarn("%s: no vertex shader bound, skipping", call)
		return nil, nil
	}
	if len(d.state.textures) > 0 || len(d.state.samplers) > 0 || len(d.state.constantBuffers) > 0 {
		core.LogDebug("%s: descriptor bindings are not written by this backend", call)
	}

	pipeline, err := d.pipelines.get(d.state.key())
	if err != nil {
		return nil, err
	}
	pipeline.Bind(cb)

	vp := d.state.viewport
	if vp.Width == 0 || vp.Height == 0 {
		vp = rhi.NewViewport(cb.Framebuffer.Width, cb.Framebuffer.Height)
	}
	vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}})
	vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{fullRect(cb.Framebuffer).Rect})
	return cb, nil
}

func (d *Device) Draw(vertexCount uint32) error {
	cb, err := d.prepareDraw("Draw")
	if err != nil || cb == nil {
		return err
	}
	vk.CmdDraw(cb.Handle, vertexCount, 1, 0, 0)
	return nil
}

func (d *Device) DrawIndexed(indexCount, indexOffset, vertexOffset uint32) error {
	cb, err := d.prepareDraw("DrawIndexed")
	if err != nil || cb == nil {
		return err
	}
	vk.CmdDrawIndexed(cb.Handle, indexCount, 1, indexOffset, int32(vertexOffset), 0)
	return nil
}
