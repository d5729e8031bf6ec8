package rhi

import "github.com/spaghettifunk/anima-rhi/engine/core"

// Shader is a compiled shader program. ID changes whenever the native object is
// recreated.
type Shader interface {
	ID() core.ResourceID
	HasVertexShader() bool
	HasPixelShader() bool
	VertexShaderHandle() Handle
	PixelShaderHandle() Handle
	InputLayout() InputLayout
}

type InputLayout interface {
	Handle() Handle
}

// Buffer is a vertex or index buffer that binds itself. The pipeline compares
// buffers with ==, so implementations must be comparable; pointer types are.
type Buffer interface {
	Bind() error
	Handle() Handle
}

type Sampler interface {
	Handle() Handle
}

type Texture interface {
	ShaderResource() Handle
}

type RenderTexture interface {
	Texture
	RenderTargetView() Handle
	DepthStencilView() Handle
}

type ConstantBuffer interface {
	Handle() Handle
}

// ConstantBufferBinding is one pending constant buffer bind.
type ConstantBufferBinding struct {
	Buffer Handle
	Slot   uint32
	Scope  BufferScope
}

// ShaderLoader is implemented by backends that turn precompiled shader binaries
// into a Shader. Either stage may be empty.
type ShaderLoader interface {
	LoadShader(vertex, pixel []byte) (Shader, error)
	UnloadShader(shader Shader)
}
