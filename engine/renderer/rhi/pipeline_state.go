package rhi

import "github.com/spaghettifunk/anima-rhi/engine/core"

// tracked holds a scalar aspect of the pipeline state next to the value last
// committed to the device. The aspect is dirty while the two differ.
type tracked[T comparable] struct {
	value     T
	committed T
	dirty     bool
}

// set reports whether v replaced the stored value.
func (t *tracked[T]) set(v T) bool {
	if t.value == v {
		return false
	}
	t.value = v
	t.dirty = t.value != t.committed
	return true
}

func (t *tracked[T]) commit() {
	t.committed = t.value
	t.dirty = false
}

// force stores v as both the pending and the committed value.
func (t *tracked[T]) force(v T) {
	t.value = v
	t.committed = v
	t.dirty = false
}

// pending is an append-only list flushed on every bind.
type pending[T any] struct {
	items []T
	dirty bool
}

func (p *pending[T]) add(v T) {
	p.items = append(p.items, v)
	p.dirty = true
}

// take hands the items to the device and starts a fresh list, the device may
// keep the returned slice.
func (p *pending[T]) take() []T {
	items := p.items
	p.items = nil
	p.dirty = false
	return items
}

func (p *pending[T]) clear() {
	p.items = nil
	p.dirty = false
}

type renderTargets struct {
	views        []Handle
	depthStencil Handle
	clearOnBind  bool
	dirty        bool
}

type pipelineState struct {
	renderTargets renderTargets

	textures        pending[Handle]
	samplers        pending[Handle]
	constantBuffers pending[ConstantBufferBinding]

	vertexShader   Shader
	vertexShaderID tracked[core.ResourceID]
	pixelShader    Shader
	pixelShaderID  tracked[core.ResourceID]

	inputLayout       tracked[Handle]
	viewport          tracked[Viewport]
	primitiveTopology tracked[PrimitiveTopology]
	cullMode          tracked[CullMode]
	fillMode          tracked[FillMode]
	indexBuffer       tracked[Buffer]
	vertexBuffer      tracked[Buffer]
	alphaBlending     tracked[bool]
}

// dirtyGroups collects every group that Bind would commit.
func (s *pipelineState) dirtyGroups() BindGroups {
	var groups BindGroups
	mark := func(dirty bool, g BindGroups) {
		if dirty {
			groups |= g
		}
	}
	mark(s.renderTargets.dirty, GroupRenderTargets)
	mark(s.textures.dirty, GroupTextures)
	mark(s.samplers.dirty, GroupSamplers)
	mark(s.constantBuffers.dirty, GroupConstantBuffers)
	mark(s.vertexShaderID.dirty, GroupVertexShader)
	mark(s.pixelShaderID.dirty, GroupPixelShader)
	mark(s.inputLayout.dirty, GroupInputLayout)
	mark(s.viewport.dirty, GroupViewport)
	mark(s.primitiveTopology.dirty, GroupPrimitiveTopology)
	mark(s.cullMode.dirty, GroupCullMode)
	mark(s.fillMode.dirty, GroupFillMode)
	mark(s.indexBuffer.dirty, GroupIndexBuffer)
	mark(s.vertexBuffer.dirty, GroupVertexBuffer)
	mark(s.alphaBlending.dirty, GroupAlphaBlending)
	return groups
}
