package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

type VulkanRenderpass struct {
	Handle vk.RenderPass
	Format vk.Format
}

// CreateRenderPass builds a single subpass pass with one colour attachment that is
// handed to presentation when the pass ends.
func (d *Device) CreateRenderPass(format rhi.Format) (rhi.Handle, error) {
	colorFormat := toVulkanFormat(format)
	if colorFormat == vk.FormatUndefined {
		err := fmt.Errorf("render pass format %s: %w", format, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}

	colorAttachment := vk.AttachmentDescription{
		Format:         colorFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,  // Do not expect any particular layout before render pass starts.
		FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
	}

	colorAttachmentReference := []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorAttachmentReference,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pRenderPass vk.RenderPass
	if err := d.lockPool.SafeCall(RenderpassManagement, func() error {
		return resultError("vkCreateRenderPass",
			vk.CreateRenderPass(d.context.Device.LogicalDevice, &renderpassCreateInfo, d.context.Allocator, &pRenderPass))
	}); err != nil {
		return nil, err
	}
	return &VulkanRenderpass{Handle: pRenderPass, Format: colorFormat}, nil
}

func (d *Device) DestroyRenderPass(pass rhi.Handle) {
	rp, ok := pass.(*VulkanRenderpass)
	if !ok || rp == nil || rp.Handle == nil {
		return
	}
	d.lockPool.SafeCall(RenderpassManagement, func() error {
		d.pipelines.evict(rp)
		vk.DestroyRenderPass(d.context.Device.LogicalDevice, rp.Handle, d.context.Allocator)
		rp.Handle = nil
		return nil
	})
}

// RenderpassBegin starts the pass of framebuffer over its full extent, clearing
// the colour attachment to transparent black.
func RenderpassBegin(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer) {
	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetColor([]float32{0, 0, 0, 0})

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  framebuffer.Renderpass.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: framebuffer.Width, Height: framebuffer.Height},
		},
		ClearValueCount: 1,
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = CommandBufferStateInRenderPass
	commandBuffer.Framebuffer = framebuffer
}

func RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = CommandBufferStateRecording
	commandBuffer.Framebuffer = nil
}
