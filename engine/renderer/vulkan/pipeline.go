package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

// VulkanPipeline holds a Vulkan pipeline and its layout.
type VulkanPipeline struct {
	Handle         vk.Pipeline
	PipelineLayout vk.PipelineLayout
}

// pipelineKey is the fixed function state baked into a graphics pipeline.
// Viewport and scissor are dynamic and not part of it.
type pipelineKey struct {
	vertex   *VulkanShaderStage
	pixel    *VulkanShaderStage
	layout   *VulkanInputLayout
	pass     *VulkanRenderpass
	topology rhi.PrimitiveTopology
	cullMode rhi.CullMode
	fillMode rhi.FillMode
	blending bool
	depth    bool
}

type pipelineCache struct {
	device    *Device
	pipelines map[pipelineKey]*VulkanPipeline
}

func newPipelineCache(device *Device) *pipelineCache {
	return &pipelineCache{
		device:    device,
		pipelines: make(map[pipelineKey]*VulkanPipeline),
	}
}

// get returns the pipeline for key, building it on first use.
func (c *pipelineCache) get(key pipelineKey) (*VulkanPipeline, error) {
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}
	p, err := NewGraphicsPipeline(c.device, key)
	if err != nil {
		return nil, err
	}
	c.pipelines[key] = p
	core.LogDebug("graphics pipeline cache holds %d pipelines", len(c.pipelines))
	return p, nil
}

func (c *pipelineCache) evict(pass *VulkanRenderpass) {
	for key, p := range c.pipelines {
		if key.pass == pass {
			p.Destroy(c.device)
			delete(c.pipelines, key)
		}
	}
}

func (c *pipelineCache) evictShader(stage *VulkanShaderStage) {
	for key, p := range c.pipelines {
		if key.vertex == stage || key.pixel == stage {
			p.Destroy(c.device)
			delete(c.pipelines, key)
		}
	}
}

func (c *pipelineCache) destroyAll() {
	for key, p := range c.pipelines {
		p.Destroy(c.device)
		delete(c.pipelines, key)
	}
}

func NewGraphicsPipeline(device *Device, key pipelineKey) (*VulkanPipeline, error) {
	if key.vertex == nil || key.pass == nil {
		err := fmt.Errorf("a graphics pipeline needs a vertex shader and a render pass: %w", core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}
	context := device.context
	outPipeline := &VulkanPipeline{}

	// Viewport and scissor are set per draw.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             toVulkanPolygonMode(key.fillMode),
		LineWidth:               1.0,
		CullMode:                toVulkanCullMode(key.cullMode),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if key.depth {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLessOrEqual
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if key.blending {
		colorBlendAttachmentState.BlendEnable = vk.True
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if key.layout != nil && key.layout.Stride > 0 {
		vertexInputInfo.VertexBindingDescriptionCount = 1
		vertexInputInfo.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    key.layout.Stride,
			InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
		}}
		vertexInputInfo.VertexAttributeDescriptionCount = uint32(len(key.layout.Attributes))
		vertexInputInfo.PVertexAttributeDescriptions = key.layout.Attributes
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topologies[key.topology],
		PrimitiveRestartEnable: vk.False,
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}

	var pPipelineLayout vk.PipelineLayout
	if err := device.lockPool.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreatePipelineLayout",
			vk.CreatePipelineLayout(context.Device.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &pPipelineLayout))
	}); err != nil {
		return nil, err
	}
	outPipeline.PipelineLayout = pPipelineLayout

	stages := []vk.PipelineShaderStageCreateInfo{key.vertex.createInfo()}
	if key.pixel != nil {
		stages = append(stages, key.pixel.createInfo())
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          key.pass.Handle,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := device.lockPool.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines))
	}); err != nil {
		outPipeline.Destroy(device)
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline created: topology %s, cull %s, fill %s, blending %t.",
		key.topology, key.cullMode, key.fillMode, key.blending)
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(device *Device) {
	device.lockPool.SafeCall(PipelineManagement, func() error {
		if pipeline.Handle != nil {
			vk.DestroyPipeline(device.context.Device.LogicalDevice, pipeline.Handle, device.context.Allocator)
			pipeline.Handle = nil
		}
		if pipeline.PipelineLayout != nil {
			vk.DestroyPipelineLayout(device.context.Device.LogicalDevice, pipeline.PipelineLayout, device.context.Allocator)
			pipeline.PipelineLayout = nil
		}
		return nil
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	if commandBuffer.BoundPipeline == pipeline.Handle {
		return
	}
	vk.CmdBindPipeline(commandBuffer.Handle, vk.PipelineBindPointGraphics, pipeline.Handle)
	commandBuffer.BoundPipeline = pipeline.Handle
}
