package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func (d *Device) CreateSemaphore() (rhi.Handle, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	if err := d.lockPool.SafeCall(SynchronizationManagement, func() error {
		return resultError("vkCreateSemaphore",
			vk.CreateSemaphore(d.context.Device.LogicalDevice, &semaphoreCreateInfo, d.context.Allocator, &semaphore))
	}); err != nil {
		return nil, err
	}
	return semaphore, nil
}

func (d *Device) DestroySemaphore(semaphore rhi.Handle) {
	s, ok := semaphore.(vk.Semaphore)
	if !ok || s == vk.NullSemaphore {
		return
	}
	d.lockPool.SafeCall(SynchronizationManagement, func() error {
		vk.DestroySemaphore(d.context.Device.LogicalDevice, s, d.context.Allocator)
		return nil
	})
}

func (d *Device) CreateFence(signaled bool) (rhi.Handle, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	// Make sure to signal the fence if required.
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := d.lockPool.SafeCall(SynchronizationManagement, func() error {
		return resultError("vkCreateFence",
			vk.CreateFence(d.context.Device.LogicalDevice, &fenceCreateInfo, d.context.Allocator, &fence))
	}); err != nil {
		return nil, err
	}
	return fence, nil
}

func (d *Device) DestroyFence(fence rhi.Handle) {
	f, ok := fence.(vk.Fence)
	if !ok || f == vk.NullFence {
		return
	}
	d.lockPool.SafeCall(SynchronizationManagement, func() error {
		vk.DestroyFence(d.context.Device.LogicalDevice, f, d.context.Allocator)
		return nil
	})
}

func (d *Device) WaitFence(fence rhi.Handle) error {
	f, err := asFence(fence)
	if err != nil {
		return err
	}
	result := vk.WaitForFences(d.context.Device.LogicalDevice, 1, []vk.Fence{f}, vk.True, math.MaxUint64)
	if result == vk.Timeout {
		err := fmt.Errorf("vk_fence_wait - timed out")
		core.LogWarn(err.Error())
		return err
	}
	return resultError("vkWaitForFences", result)
}

func (d *Device) ResetFence(fence rhi.Handle) error {
	f, err := asFence(fence)
	if err != nil {
		return err
	}
	return resultError("vkResetFences", vk.ResetFences(d.context.Device.LogicalDevice, 1, []vk.Fence{f}))
}

func asFence(fence rhi.Handle) (vk.Fence, error) {
	f, ok := fence.(vk.Fence)
	if !ok || f == vk.NullFence {
		err := fmt.Errorf("fence handle %v is not a Vulkan fence: %w", fence, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return vk.NullFence, err
	}
	return f, nil
}

func asSemaphore(semaphore rhi.Handle) []vk.Semaphore {
	if s, ok := semaphore.(vk.Semaphore); ok && s != vk.NullSemaphore {
		return []vk.Semaphore{s}
	}
	return nil
}
