package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

type VulkanCommandBufferState int

const (
	CommandBufferStateReady VulkanCommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
	CommandBufferStateNotAllocated
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	Pool   vk.CommandPool
	// Command buffer state.
	State VulkanCommandBufferState
	// the framebuffer of the active render pass
	Framebuffer *VulkanFramebuffer
	// the graphics pipeline last bound in this recording
	BoundPipeline vk.Pipeline
}

func (d *Device) CreateCommandPool() (rhi.Handle, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(d.context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}

	var pool vk.CommandPool
	if err := d.lockPool.SafeCall(CommandPoolManagement, func() error {
		return resultError("vkCreateCommandPool",
			vk.CreateCommandPool(d.context.Device.LogicalDevice, &poolCreateInfo, d.context.Allocator, &pool))
	}); err != nil {
		return nil, err
	}
	core.LogDebug("Graphics command pool created.")
	return pool, nil
}

func (d *Device) DestroyCommandPool(pool rhi.Handle) {
	p, ok := pool.(vk.CommandPool)
	if !ok || p == nil {
		return
	}
	d.lockPool.SafeCall(CommandPoolManagement, func() error {
		for handle, cb := range d.context.CommandBuffers {
			if cb.Pool == p {
				delete(d.context.CommandBuffers, handle)
			}
		}
		vk.DestroyCommandPool(d.context.Device.LogicalDevice, p, d.context.Allocator)
		return nil
	})
}

func (d *Device) ResetCommandPool(pool rhi.Handle) error {
	p, ok := pool.(vk.CommandPool)
	if !ok || p == nil {
		err := fmt.Errorf("command pool handle %v is not a Vulkan command pool: %w", pool, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return err
	}
	return d.lockPool.SafeCall(CommandPoolManagement, func() error {
		if err := resultError("vkResetCommandPool", vk.ResetCommandPool(d.context.Device.LogicalDevice, p, 0)); err != nil {
			return err
		}
		for _, cb := range d.context.CommandBuffers {
			if cb.Pool == p {
				cb.State = CommandBufferStateReady
				cb.Framebuffer = nil
				cb.BoundPipeline = nil
			}
		}
		return nil
	})
}

func (d *Device) AllocateCommandBuffer(pool rhi.Handle) (rhi.Handle, error) {
	p, ok := pool.(vk.CommandPool)
	if !ok || p == nil {
		err := fmt.Errorf("command pool handle %v is not a Vulkan command pool: %w", pool, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := d.lockPool.SafeCall(CommandBufferManagement, func() error {
		return resultError("vkAllocateCommandBuffers",
			vk.AllocateCommandBuffers(d.context.Device.LogicalDevice, &allocateInfo, handles))
	}); err != nil {
		return nil, err
	}

	d.context.CommandBuffers[handles[0]] = &VulkanCommandBuffer{
		Handle: handles[0],
		Pool:   p,
		State:  CommandBufferStateReady,
	}
	return handles[0], nil
}

func (d *Device) FreeCommandBuffer(pool rhi.Handle, buffer rhi.Handle) {
	p, ok := pool.(vk.CommandPool)
	if !ok {
		return
	}
	cb, ok := buffer.(vk.CommandBuffer)
	if !ok || cb == nil {
		return
	}
	d.lockPool.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(d.context.Device.LogicalDevice, p, 1, []vk.CommandBuffer{cb})
		if d.context.Recording != nil && d.context.Recording.Handle == cb {
			d.context.Recording = nil
		}
		delete(d.context.CommandBuffers, cb)
		return nil
	})
}

func (d *Device) BeginCommandBuffer(buffer rhi.Handle) error {
	cb, err := d.commandBuffer(buffer)
	if err != nil {
		return err
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := resultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(cb.Handle, &beginInfo)); err != nil {
		return err
	}
	cb.State = CommandBufferStateRecording
	cb.Framebuffer = nil
	cb.BoundPipeline = nil
	d.context.Recording = cb
	return nil
}

// EndCommandBuffer closes the active render pass, if any, before ending.
func (d *Device) EndCommandBuffer(buffer rhi.Handle) error {
	cb, err := d.commandBuffer(buffer)
	if err != nil {
		return err
	}
	if cb.State == CommandBufferStateInRenderPass {
		RenderpassEnd(cb)
	}
	if err := resultError("vkEndCommandBuffer", vk.EndCommandBuffer(cb.Handle)); err != nil {
		return err
	}
	cb.State = CommandBufferStateRecordingEnded
	if d.context.Recording == cb {
		d.context.Recording = nil
	}
	return nil
}

func (d *Device) Submit(info rhi.SubmitInfo) error {
	cb, err := d.commandBuffer(info.CommandBuffer)
	if err != nil {
		return err
	}
	fence, err := asFence(info.Fence)
	if err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}

	// The semaphore(s) to be signaled when the queue is complete.
	if signal := asSemaphore(info.SignalSemaphore); signal != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = signal
	}

	// Wait semaphore ensures that the operation cannot begin until the image is available.
	// Colour attachment writes wait for it, so one frame is presented at a time.
	if wait := asSemaphore(info.WaitSemaphore); wait != nil {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = wait
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}

	queueIndex := uint32(d.context.Device.GraphicsQueueIndex)
	if err := d.lockPool.SafeQueueCall(queueIndex, func() error {
		return resultError("vkQueueSubmit",
			vk.QueueSubmit(d.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence))
	}); err != nil {
		return err
	}
	cb.State = CommandBufferStateSubmitted
	return nil
}

func (d *Device) WaitIdle() error {
	if d.context.Device == nil || d.context.Device.LogicalDevice == nil {
		return nil
	}
	return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.context.Device.LogicalDevice))
}

func (d *Device) commandBuffer(buffer rhi.Handle) (*VulkanCommandBuffer, error) {
	handle, ok := buffer.(vk.CommandBuffer)
	if ok {
		if cb, found := d.context.CommandBuffers[handle]; found {
			return cb, nil
		}
	}
	err := fmt.Errorf("command buffer %v was not allocated by this device: %w", buffer, core.ErrInvalidArgument)
	core.LogError(err.Error())
	return nil, err
}

// recording returns the command buffer state calls are recorded into.
func (d *Device) recording(call string) (*VulkanCommandBuffer, error) {
	if d.context.Recording == nil {
		err := fmt.Errorf("%s: no command buffer is recording: %w", call, core.ErrNotInitialized)
		core.LogError(err.Error())
		return nil, err
	}
	return d.context.Recording, nil
}
