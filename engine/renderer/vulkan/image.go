package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func (d *Device) CreateImageView(image rhi.Handle, format rhi.Format) (rhi.Handle, error) {
	img, ok := image.(vk.Image)
	if !ok || img == nil {
		err := fmt.Errorf("image handle %v is not a Vulkan image: %w", image, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}

	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if format == rhi.FormatD32Float {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   toVulkanFormat(format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if err := d.lockPool.SafeCall(ImageManagement, func() error {
		return resultError("vkCreateImageView",
			vk.CreateImageView(d.context.Device.LogicalDevice, &viewInfo, d.context.Allocator, &view))
	}); err != nil {
		return nil, err
	}
	return view, nil
}

// DestroyImageView only destroys the view. Swapchain images are owned by the
// swapchain and go away with it.
func (d *Device) DestroyImageView(view rhi.Handle) {
	v, ok := view.(vk.ImageView)
	if !ok || v == nil {
		return
	}
	d.lockPool.SafeCall(ImageManagement, func() error {
		vk.DestroyImageView(d.context.Device.LogicalDevice, v, d.context.Allocator)
		return nil
	})
}
