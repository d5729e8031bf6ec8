package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

const spirvMagic uint32 = 0x07230203

// VulkanShaderStage is one shader module plus the stage it runs in.
type VulkanShaderStage struct {
	Handle vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
}

func (s *VulkanShaderStage) createInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  s.Stage,
		Module: s.Handle,
		PName:  VulkanSafeString("main"),
	}
}

// VulkanInputLayout describes the single interleaved vertex stream a shader reads.
// A zero stride means the shader takes no vertex input.
type VulkanInputLayout struct {
	Stride     uint32
	Attributes []vk.VertexInputAttributeDescription
}

func (l *VulkanInputLayout) Handle() rhi.Handle {
	return l
}

// Shader is a pair of precompiled SPIR-V modules.
type Shader struct {
	id     core.ResourceID
	vertex *VulkanShaderStage
	pixel  *VulkanShaderStage
	layout *VulkanInputLayout
}

func (s *Shader) ID() core.ResourceID { return s.id }
func (s *Shader) HasVertexShader() bool { return s.vertex != nil }
func (s *Shader) HasPixelShader() bool { return s.pixel != nil }
func (s *Shader) InputLayout() rhi.InputLayout { return s.layout }

func (s *Shader) VertexShaderHandle() rhi.Handle {
	if s.vertex == nil {
		return nil
	}
	return s.vertex
}

func (s *Shader) PixelShaderHandle() rhi.Handle {
	if s.pixel == nil {
		return nil
	}
	return s.pixel
}

// decodeSPIRV turns a SPIR-V binary into the words Vulkan expects.
func decodeSPIRV(code []byte) ([]uint32, error) {
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V size %d is not a positive multiple of 4: %w", len(code), core.ErrInvalidArgument)
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("bad SPIR-V magic %#08x: %w", words[0], core.ErrInvalidArgument)
	}
	return words, nil
}

func (d *Device) newShaderModule(code []byte, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	words, err := decodeSPIRV(code)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}

	var module vk.ShaderModule
	if err := d.lockPool.SafeCall(ShaderManagement, func() error {
		return resultError("vkCreateShaderModule",
			vk.CreateShaderModule(d.context.Device.LogicalDevice, &createInfo, d.context.Allocator, &module))
	}); err != nil {
		return nil, err
	}
	return &VulkanShaderStage{Handle: module, Stage: stage}, nil
}

// LoadShader creates the shader modules for precompiled vertex and pixel SPIR-V.
// Either stage may be empty. The input layout has no vertex attributes.
func (d *Device) LoadShader(vertexCode, pixelCode []byte) (rhi.Shader, error) {
	s := &Shader{
		id:     core.NewResourceID(),
		layout: &VulkanInputLayout{},
	}
	if len(vertexCode) > 0 {
		stage, err := d.newShaderModule(vertexCode, vk.ShaderStageVertexBit)
		if err != nil {
			return nil, err
		}
		s.vertex = stage
	}
	if len(pixelCode) > 0 {
		stage, err := d.newShaderModule(pixelCode, vk.ShaderStageFragmentBit)
		if err != nil {
			d.destroyShaderStage(s.vertex)
			return nil, err
		}
		s.pixel = stage
	}
	core.LogDebug("shader %s loaded", s.id)
	return s, nil
}

// UnloadShader destroys the modules and every pipeline built from them.
func (d *Device) UnloadShader(shader rhi.Shader) {
	s, ok := shader.(*Shader)
	if !ok || s == nil {
		return
	}
	d.destroyShaderStage(s.vertex)
	d.destroyShaderStage(s.pixel)
	s.vertex, s.pixel = nil, nil
}

func (d *Device) destroyShaderStage(stage *VulkanShaderStage) {
	if stage == nil || stage.Handle == nil {
		return
	}
	d.pipelines.evictShader(stage)
	if d.state.vertexShader == stage {
		d.state.vertexShader = nil
	}
	if d.state.pixelShader == stage {
		d.state.pixelShader = nil
	}
	d.lockPool.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(d.context.Device.LogicalDevice, stage.Handle, d.context.Allocator)
		stage.Handle = nil
		return nil
	})
}
