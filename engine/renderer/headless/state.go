package headless

import (
	"fmt"
	"slices"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func (d *Device) Draw(vertexCount uint32) error {
	return d.record("Draw", vertexCount)
}

func (d *Device) DrawIndexed(indexCount, indexOffset, vertexOffset uint32) error {
	return d.record("DrawIndexed", indexCount, indexOffset, vertexOffset)
}

func (d *Device) SetRenderTargets(views []rhi.Handle, depthStencil rhi.Handle) error {
	if err := d.record("SetRenderTargets", slices.Clone(views), depthStencil); err != nil {
		return err
	}
	d.state.RenderTargets = slices.Clone(views)
	d.state.DepthStencil = depthStencil
	return nil
}

func (d *Device) SetTextures(startSlot uint32, textures []rhi.Handle) error {
	if err := d.record("SetTextures", startSlot, slices.Clone(textures)); err != nil {
		return err
	}
	setSlots(d.state.Textures, startSlot, textures)
	return nil
}

func (d *Device) SetSamplers(startSlot uint32, samplers []rhi.Handle) error {
	if err := d.record("SetSamplers", startSlot, slices.Clone(samplers)); err != nil {
		return err
	}
	setSlots(d.state.Samplers, startSlot, samplers)
	return nil
}

func (d *Device) SetConstantBuffers(startSlot uint32, scope rhi.BufferScope, buffers []rhi.Handle) error {
	if err := d.record("SetConstantBuffers", startSlot, scope, slices.Clone(buffers)); err != nil {
		return err
	}
	scopes := []rhi.BufferScope{scope}
	if scope == rhi.ScopeGlobal {
		scopes = []rhi.BufferScope{rhi.ScopeVertexStage, rhi.ScopePixelStage}
	}
	for _, s := range scopes {
		slots, ok := d.state.ConstantBuffers[s]
		if !ok {
			slots = make(map[uint32]rhi.Handle)
			d.state.ConstantBuffers[s] = slots
		}
		setSlots(slots, startSlot, buffers)
	}
	return nil
}

// setSlots writes handles from startSlot on, nil entries unbind.
func setSlots(slots map[uint32]rhi.Handle, startSlot uint32, handles []rhi.Handle) {
	for i, h := range handles {
		slot := startSlot + uint32(i)
		if h == nil {
			delete(slots, slot)
			continue
		}
		slots[slot] = h
	}
}

func (d *Device) SetVertexShader(shader rhi.Handle) error {
	if err := d.record("SetVertexShader", shader); err != nil {
		return err
	}
	d.state.VertexShader = shader
	return nil
}

func (d *Device) SetPixelShader(shader rhi.Handle) error {
	if err := d.record("SetPixelShader", shader); err != nil {
		return err
	}
	d.state.PixelShader = shader
	return nil
}

func (d *Device) SetInputLayout(layout rhi.Handle) error {
	if err := d.record("SetInputLayout", layout); err != nil {
		return err
	}
	d.state.InputLayout = layout
	return nil
}

func (d *Device) SetViewport(viewport rhi.Viewport) error {
	if err := d.record("SetViewport", viewport); err != nil {
		return err
	}
	d.state.Viewport = viewport
	return nil
}

func (d *Device) SetPrimitiveTopology(topology rhi.PrimitiveTopology) error {
	if err := d.record("SetPrimitiveTopology", topology); err != nil {
		return err
	}
	d.state.PrimitiveTopology = topology
	return nil
}

func (d *Device) SetCullMode(mode rhi.CullMode) error {
	if err := d.record("SetCullMode", mode); err != nil {
		return err
	}
	d.state.CullMode = mode
	return nil
}

func (d *Device) SetFillMode(mode rhi.FillMode) error {
	if err := d.record("SetFillMode", mode); err != nil {
		return err
	}
	d.state.FillMode = mode
	return nil
}

func (d *Device) SetAlphaBlendingEnabled(enabled bool) error {
	if err := d.record("SetAlphaBlendingEnabled", enabled); err != nil {
		return err
	}
	d.state.AlphaBlending = enabled
	return nil
}

func (d *Device) SetDepthEnabled(enabled bool) error {
	if err := d.record("SetDepthEnabled", enabled); err != nil {
		return err
	}
	d.state.DepthEnabled = enabled
	return nil
}

func (d *Device) ClearRenderTarget(view rhi.Handle, color [4]float32) error {
	if err := d.record("ClearRenderTarget", view, color); err != nil {
		return err
	}
	if view == nil {
		return fmt.Errorf("clear render target: %w", core.ErrInvalidArgument)
	}
	return nil
}

func (d *Device) ClearDepthStencil(view rhi.Handle, flags rhi.ClearFlags, depth float32, stencil uint8) error {
	if err := d.record("ClearDepthStencil", view, flags, depth, stencil); err != nil {
		return err
	}
	if view == nil {
		return fmt.Errorf("clear depth stencil: %w", core.ErrInvalidArgument)
	}
	return nil
}

func (d *Device) bindVertexBuffer(buffer rhi.Handle) error {
	if err := d.record("BindVertexBuffer", buffer); err != nil {
		return err
	}
	d.state.VertexBuffer = buffer
	return nil
}

func (d *Device) bindIndexBuffer(buffer rhi.Handle) error {
	if err := d.record("BindIndexBuffer", buffer); err != nil {
		return err
	}
	d.state.IndexBuffer = buffer
	return nil
}
