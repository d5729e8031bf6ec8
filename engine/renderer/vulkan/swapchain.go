package vulkan

import (
	"fmt"
	stdmath "math"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/math"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

// surfaceSource is implemented by *glfw.Window.
type surfaceSource interface {
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

func (d *Device) CreateSurface(window rhi.Window) (rhi.Handle, error) {
	if window == nil || !window.IsValid() {
		err := fmt.Errorf("cannot create a surface without a window: %w", core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}
	surface, err := createVulkanSurface(d.context, window)
	if err != nil {
		return nil, err
	}

	// The device was picked against the window given at construction; a second
	// window has to be presentable from the same queue family.
	var supportsPresent vk.Bool32 = vk.False
	vk.GetPhysicalDeviceSurfaceSupport(
		d.context.Device.PhysicalDevice,
		uint32(d.context.Device.PresentQueueIndex),
		surface,
		&supportsPresent)
	if supportsPresent != vk.True {
		vk.DestroySurface(d.context.Instance, surface, d.context.Allocator)
		err := fmt.Errorf("present queue family %d cannot present to the surface", d.context.Device.PresentQueueIndex)
		core.LogError(err.Error())
		return nil, err
	}
	return surface, nil
}

func createVulkanSurface(context *VulkanContext, window rhi.Window) (vk.Surface, error) {
	source, ok := window.Native().(surfaceSource)
	if !ok {
		err := fmt.Errorf("window %T cannot create Vulkan surfaces: %w", window.Native(), core.ErrInvalidArgument)
		core.LogError(err.Error())
		return vk.NullSurface, err
	}
	core.LogDebug("Creating Vulkan surface...")
	ptr, err := source.CreateWindowSurface(context.Instance, nil)
	if err != nil || ptr == 0 {
		err := fmt.Errorf("vulkan surface creation failed: %v", err)
		core.LogError(err.Error())
		return vk.NullSurface, err
	}
	core.LogDebug("Vulkan surface created.")
	return vk.SurfaceFromPointer(ptr), nil
}

func (d *Device) DestroySurface(surface rhi.Handle) {
	s, ok := surface.(vk.Surface)
	if !ok || s == vk.NullSurface {
		return
	}
	core.LogDebug("Destroying Vulkan surface...")
	vk.DestroySurface(d.context.Instance, s, d.context.Allocator)
}

// negotiateExtent uses the surface's fixed extent when it has one, otherwise the
// requested size clamped to what the GPU allows.
func negotiateExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != stdmath.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  math.Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// negotiateImageCount bounds the requested buffer count by the surface limits. A
// zero maximum means there is none.
func negotiateImageCount(caps vk.SurfaceCapabilities, bufferCount uint32) uint32 {
	count := bufferCount
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func (d *Device) CreateSwapChain(info rhi.SwapChainCreateInfo) (rhi.NativeSwapChain, error) {
	surface, ok := info.Surface.(vk.Surface)
	if !ok || surface == vk.NullSurface {
		err := fmt.Errorf("surface handle %v is not a Vulkan surface: %w", info.Surface, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return rhi.NativeSwapChain{}, err
	}

	support, err := DeviceQuerySwapchainSupport(d.context.Device.PhysicalDevice, surface)
	if err != nil {
		return rhi.NativeSwapChain{}, err
	}

	imageFormat, ok := chooseSurfaceFormat(info.Format, support.Formats)
	if !ok {
		err := fmt.Errorf("surface reports no formats")
		core.LogError(err.Error())
		return rhi.NativeSwapChain{}, err
	}
	if imageFormat.Format != toVulkanFormat(info.Format) {
		core.LogWarn("swapchain format %s is not supported, using %d", info.Format, imageFormat.Format)
	}
	presentMode := choosePresentMode(info.Flags, support.PresentModes)
	swapchainExtent := negotiateExtent(support.Capabilities, info.Width, info.Height)
	imageCount := negotiateImageCount(support.Capabilities, info.BufferCount)

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      imageFormat.Format,
		ImageColorSpace:  imageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	// Setup the queue family indices
	if d.context.Device.GraphicsQueueIndex != d.context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(d.context.Device.GraphicsQueueIndex),
			uint32(d.context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var swapchain vk.Swapchain
	if err := d.lockPool.SafeCall(SwapchainManagement, func() error {
		return resultError("vkCreateSwapchain",
			vk.CreateSwapchain(d.context.Device.LogicalDevice, &swapchainCreateInfo, d.context.Allocator, &swapchain))
	}); err != nil {
		return rhi.NativeSwapChain{}, err
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.",
		swapchainExtent.Width, swapchainExtent.Height, imageCount, presentMode)

	return rhi.NativeSwapChain{
		Handle: swapchain,
		Extent: rhi.Extent{Width: swapchainExtent.Width, Height: swapchainExtent.Height},
		Format: fromVulkanFormat(imageFormat.Format),
	}, nil
}

func (d *Device) DestroySwapChain(swapChain rhi.Handle) {
	sc, ok := swapChain.(vk.Swapchain)
	if !ok || sc == nil {
		return
	}
	d.lockPool.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(d.context.Device.LogicalDevice, sc, d.context.Allocator)
		return nil
	})
}

func (d *Device) SwapChainImages(swapChain rhi.Handle) ([]rhi.Handle, error) {
	sc, err := asSwapchain(swapChain)
	if err != nil {
		return nil, err
	}

	var imageCount uint32
	if err := resultError("vkGetSwapchainImages",
		vk.GetSwapchainImages(d.context.Device.LogicalDevice, sc, &imageCount, nil)); err != nil {
		return nil, err
	}
	images := make([]vk.Image, imageCount)
	if err := resultError("vkGetSwapchainImages",
		vk.GetSwapchainImages(d.context.Device.LogicalDevice, sc, &imageCount, images)); err != nil {
		return nil, err
	}

	handles := make([]rhi.Handle, len(images))
	for i, img := range images {
		handles[i] = img
	}
	return handles, nil
}

func (d *Device) AcquireNextImage(swapChain rhi.Handle, semaphore rhi.Handle) (uint32, error) {
	sc, err := asSwapchain(swapChain)
	if err != nil {
		return 0, err
	}
	s, _ := semaphore.(vk.Semaphore)

	var imageIndex uint32
	result := vk.AcquireNextImage(d.context.Device.LogicalDevice, sc, stdmath.MaxUint64, s, vk.NullFence, &imageIndex)
	if result == vk.Suboptimal {
		core.LogDebug("swapchain is suboptimal for the surface")
	}
	if err := resultError("vkAcquireNextImage", result); err != nil {
		return 0, err
	}
	return imageIndex, nil
}

func (d *Device) Present(swapChain rhi.Handle, imageIndex uint32, waitSemaphore rhi.Handle) error {
	sc, err := asSwapchain(swapChain)
	if err != nil {
		return err
	}

	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc},
		PImageIndices:  []uint32{imageIndex},
	}
	if wait := asSemaphore(waitSemaphore); wait != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = wait
	}

	queueIndex := uint32(d.context.Device.PresentQueueIndex)
	return d.lockPool.SafeQueueCall(queueIndex, func() error {
		result := vk.QueuePresent(d.context.Device.PresentQueue, &presentInfo)
		if result == vk.Suboptimal {
			core.LogDebug("swapchain is suboptimal for the surface")
		}
		return resultError("vkQueuePresent", result)
	})
}

func asSwapchain(swapChain rhi.Handle) (vk.Swapchain, error) {
	sc, ok := swapChain.(vk.Swapchain)
	if !ok || sc == nil {
		err := fmt.Errorf("swapchain handle %v is not a Vulkan swapchain: %w", swapChain, core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}
	return sc, nil
}
