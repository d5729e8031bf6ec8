package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
	Width       uint32
	Height      uint32
}

func (d *Device) CreateFramebuffer(pass rhi.Handle, attachments []rhi.Handle, width, height uint32) (rhi.Handle, error) {
	rp, ok := pass.(*VulkanRenderpass)
	if !ok || rp == nil || rp.Handle == nil {
		err := fmt.Errorf("render pass handle %v is not a Vulkan render pass: %w", pass, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}
	if len(attachments) == 0 {
		err := fmt.Errorf("framebuffer needs at least one attachment: %w", core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}

	// Take a copy of the attachments
	views := make([]vk.ImageView, 0, len(attachments))
	for _, a := range attachments {
		v, ok := a.(vk.ImageView)
		if !ok || v == nil {
			err := fmt.Errorf("framebuffer attachment %v is not a Vulkan image view: %w", a, core.ErrInvalidArgument)
			core.LogError(err.Error())
			return nil, err
		}
		views = append(views, v)
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.Handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	var pFramebuffer vk.Framebuffer
	if err := d.lockPool.SafeCall(RenderpassManagement, func() error {
		return resultError("vkCreateFramebuffer",
			vk.CreateFramebuffer(d.context.Device.LogicalDevice, &framebufferCreateInfo, d.context.Allocator, &pFramebuffer))
	}); err != nil {
		return nil, err
	}

	fb := &VulkanFramebuffer{
		Handle:      pFramebuffer,
		Attachments: views,
		Renderpass:  rp,
		Width:       width,
		Height:      height,
	}
	// render targets are bound by view, so remember which framebuffer owns it
	d.context.Framebuffers[views[0]] = fb
	return fb, nil
}

func (d *Device) DestroyFramebuffer(framebuffer rhi.Handle) {
	fb, ok := framebuffer.(*VulkanFramebuffer)
	if !ok || fb == nil || fb.Handle == nil {
		return
	}
	d.lockPool.SafeCall(RenderpassManagement, func() error {
		vk.DestroyFramebuffer(d.context.Device.LogicalDevice, fb.Handle, d.context.Allocator)
		if len(fb.Attachments) > 0 && d.context.Framebuffers[fb.Attachments[0]] == fb {
			delete(d.context.Framebuffers, fb.Attachments[0])
		}
		if d.state.renderTarget == fb {
			d.state.renderTarget = nil
		}
		fb.Handle = nil
		fb.Attachments = nil
		fb.Renderpass = nil
		return nil
	})
}
