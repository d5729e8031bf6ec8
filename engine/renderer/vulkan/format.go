package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

var formats = map[rhi.Format]vk.Format{
	rhi.FormatUndefined:         vk.FormatUndefined,
	rhi.FormatR8G8B8A8Unorm:     vk.FormatR8g8b8a8Unorm,
	rhi.FormatB8G8R8A8Unorm:     vk.FormatB8g8r8a8Unorm,
	rhi.FormatR8G8B8A8Srgb:      vk.FormatR8g8b8a8Srgb,
	rhi.FormatB8G8R8A8Srgb:      vk.FormatB8g8r8a8Srgb,
	rhi.FormatR16G16B16A16Float: vk.FormatR16g16b16a16Sfloat,
	rhi.FormatD32Float:          vk.FormatD32Sfloat,
}

func toVulkanFormat(f rhi.Format) vk.Format {
	if vf, ok := formats[f]; ok {
		return vf
	}
	return vk.FormatUndefined
}

func fromVulkanFormat(vf vk.Format) rhi.Format {
	for f, candidate := range formats {
		if candidate == vf {
			return f
		}
	}
	return rhi.FormatUndefined
}

var presentModes = map[rhi.PresentFlags]vk.PresentMode{
	rhi.PresentImmediate:   vk.PresentModeImmediate,
	rhi.PresentMailbox:     vk.PresentModeMailbox,
	rhi.PresentFifo:        vk.PresentModeFifo,
	rhi.PresentFifoRelaxed: vk.PresentModeFifoRelaxed,
}

// choosePresentMode takes the first requested mode the surface supports. FIFO is
// always available.
func choosePresentMode(flags rhi.PresentFlags, supported []vk.PresentMode) vk.PresentMode {
	for _, flag := range flags.Modes() {
		want := presentModes[flag]
		for _, mode := range supported {
			if mode == want {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}

// chooseSurfaceFormat prefers the requested format in the sRGB non-linear colour
// space, then any entry with the requested format, then whatever comes first.
func chooseSurfaceFormat(want rhi.Format, supported []vk.SurfaceFormat) (vk.SurfaceFormat, bool) {
	if len(supported) == 0 {
		return vk.SurfaceFormat{}, false
	}
	target := toVulkanFormat(want)
	// A single undefined entry means the surface has no preference.
	if len(supported) == 1 && supported[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: target, ColorSpace: vk.ColorSpaceSrgbNonlinear}, true
	}
	for _, sf := range supported {
		if sf.Format == target && sf.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return sf, true
		}
	}
	for _, sf := range supported {
		if sf.Format == target {
			return sf, true
		}
	}
	return supported[0], true
}

var topologies = map[rhi.PrimitiveTopology]vk.PrimitiveTopology{
	rhi.TopologyTriangleList:  vk.PrimitiveTopologyTriangleList,
	rhi.TopologyTriangleStrip: vk.PrimitiveTopologyTriangleStrip,
	rhi.TopologyLineList:      vk.PrimitiveTopologyLineList,
	rhi.TopologyPointList:     vk.PrimitiveTopologyPointList,
}

func toVulkanCullMode(mode rhi.CullMode) vk.CullModeFlags {
	switch mode {
	case rhi.CullNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case rhi.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

func toVulkanPolygonMode(mode rhi.FillMode) vk.PolygonMode {
	if mode == rhi.FillWireframe {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

func toVulkanAspect(flags rhi.ClearFlags) vk.ImageAspectFlags {
	var aspect vk.ImageAspectFlags
	if flags&rhi.ClearDepth != 0 {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	if flags&rhi.ClearStencil != 0 {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}
