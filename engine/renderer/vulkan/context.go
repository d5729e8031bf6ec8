package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanContext holds the instance level objects shared by every call into the
// backend, plus the command buffer currently being recorded.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	// only set when validation is enabled
	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	// the command buffer between BeginCommandBuffer and EndCommandBuffer
	Recording *VulkanCommandBuffer
	// command buffers by handle, so the state recorder can track render passes
	CommandBuffers map[vk.CommandBuffer]*VulkanCommandBuffer

	// framebuffers by their first colour attachment
	Framebuffers map[vk.ImageView]*VulkanFramebuffer
}

func newVulkanContext() *VulkanContext {
	return &VulkanContext{
		Allocator:      nil,
		CommandBuffers: make(map[vk.CommandBuffer]*VulkanCommandBuffer),
		Framebuffers:   make(map[vk.ImageView]*VulkanFramebuffer),
	}
}
