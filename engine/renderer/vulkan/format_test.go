package vulkan

import (
	"encoding/binary"
	"errors"
	stdmath "math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func TestFormatConversion(t *testing.T) {
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, toVulkanFormat(rhi.FormatB8G8R8A8Unorm))
	assert.Equal(t, rhi.FormatB8G8R8A8Unorm, fromVulkanFormat(vk.FormatB8g8r8a8Unorm))
	assert.Equal(t, rhi.FormatD32Float, fromVulkanFormat(toVulkanFormat(rhi.FormatD32Float)))
	assert.Equal(t, rhi.FormatUndefined, fromVulkanFormat(vk.FormatR8Unorm))
	assert.Equal(t, vk.FormatUndefined, toVulkanFormat(rhi.Format(200)))
}

func TestChooseSurfaceFormat(t *testing.T) {
	_, ok := chooseSurfaceFormat(rhi.FormatB8G8R8A8Unorm, nil)
	assert.False(t, ok)

	sf, ok := chooseSurfaceFormat(rhi.FormatB8G8R8A8Unorm, []vk.SurfaceFormat{{Format: vk.FormatUndefined}})
	require.True(t, ok)
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, sf.Format)
	assert.Equal(t, vk.ColorSpaceSrgbNonlinear, sf.ColorSpace)

	supported := []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceExtendedSrgbLinear},
		{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	sf, ok = chooseSurfaceFormat(rhi.FormatB8G8R8A8Unorm, supported)
	require.True(t, ok)
	assert.Equal(t, supported[2], sf)

	sf, _ = chooseSurfaceFormat(rhi.FormatB8G8R8A8Unorm, supported[:2])
	assert.Equal(t, supported[1], sf, "format match wins over colour space")

	sf, _ = chooseSurfaceFormat(rhi.FormatR16G16B16A16Float, supported)
	assert.Equal(t, supported[0], sf, "falls back to the first entry")
}

func TestChoosePresentMode(t *testing.T) {
	supported := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate}

	assert.Equal(t, vk.PresentModeImmediate, choosePresentMode(rhi.PresentImmediate|rhi.PresentFifo, supported))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(rhi.PresentMailbox, supported))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(0, supported))
	assert.Equal(t, vk.PresentModeMailbox,
		choosePresentMode(rhi.PresentMailbox|rhi.PresentFifo, []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}))
}

func TestNegotiateExtent(t *testing.T) {
	fixed := vk.SurfaceCapabilities{CurrentExtent: vk.Extent2D{Width: 1024, Height: 768}}
	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, negotiateExtent(fixed, 800, 600))

	free := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: stdmath.MaxUint32, Height: stdmath.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 2048},
	}
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, negotiateExtent(free, 800, 600))
	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 2048}, negotiateExtent(free, 8000, 6000))
	assert.Equal(t, vk.Extent2D{Width: 1, Height: 1}, negotiateExtent(free, 0, 0))
}

func TestNegotiateImageCount(t *testing.T) {
	caps := vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 4}
	assert.Equal(t, uint32(3), negotiateImageCount(caps, 3))
	assert.Equal(t, uint32(2), negotiateImageCount(caps, 1))
	assert.Equal(t, uint32(4), negotiateImageCount(caps, 8))

	unbounded := vk.SurfaceCapabilities{MinImageCount: 2}
	assert.Equal(t, uint32(8), negotiateImageCount(unbounded, 8))
}

func TestToVulkanAspect(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(0), toVulkanAspect(0))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), toVulkanAspect(rhi.ClearDepth))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit),
		toVulkanAspect(rhi.ClearDepth|rhi.ClearStencil))
}

func TestDecodeSPIRV(t *testing.T) {
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code, spirvMagic)
	binary.LittleEndian.PutUint32(code[4:], 0x00010000)

	words, err := decodeSPIRV(code)
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010000}, words)

	_, err = decodeSPIRV(code[:6])
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	_, err = decodeSPIRV(nil)
	assert.Error(t, err)

	_, err = decodeSPIRV([]byte{1, 2, 3, 4})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}
