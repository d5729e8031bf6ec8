package rhi

import (
	"fmt"
	"strings"
)

// Handle is an opaque native object owned by a backend. A nil Handle is the null
// object. Backends must hand out comparable values.
type Handle any

type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

func (m CullMode) String() string {
	switch m {
	case CullNone:
		return "none"
	case CullFront:
		return "front"
	case CullBack:
		return "back"
	}
	return fmt.Sprintf("CullMode(%d)", uint8(m))
}

type FillMode uint8

const (
	FillSolid FillMode = iota
	FillWireframe
)

func (m FillMode) String() string {
	switch m {
	case FillSolid:
		return "solid"
	case FillWireframe:
		return "wireframe"
	}
	return fmt.Sprintf("FillMode(%d)", uint8(m))
}

type PrimitiveTopology uint8

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

func (t PrimitiveTopology) String() string {
	switch t {
	case TopologyTriangleList:
		return "triangle_list"
	case TopologyTriangleStrip:
		return "triangle_strip"
	case TopologyLineList:
		return "line_list"
	case TopologyPointList:
		return "point_list"
	}
	return fmt.Sprintf("PrimitiveTopology(%d)", uint8(t))
}

// BufferScope selects the shader stages a constant buffer is visible to.
type BufferScope uint8

const (
	ScopeVertexStage BufferScope = iota
	ScopePixelStage
	ScopeGlobal
)

func (s BufferScope) String() string {
	switch s {
	case ScopeVertexStage:
		return "vertex"
	case ScopePixelStage:
		return "pixel"
	case ScopeGlobal:
		return "global"
	}
	return fmt.Sprintf("BufferScope(%d)", uint8(s))
}

type ClearFlags uint8

const (
	ClearDepth ClearFlags = 1 << iota
	ClearStencil
)

type Format uint8

const (
	FormatUndefined Format = iota
	FormatR8G8B8A8Unorm
	FormatB8G8R8A8Unorm
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Srgb
	FormatR16G16B16A16Float
	FormatD32Float
)

var formatNames = map[Format]string{
	FormatUndefined:         "undefined",
	FormatR8G8B8A8Unorm:     "r8g8b8a8_unorm",
	FormatB8G8R8A8Unorm:     "b8g8r8a8_unorm",
	FormatR8G8B8A8Srgb:      "r8g8b8a8_srgb",
	FormatB8G8R8A8Srgb:      "b8g8r8a8_srgb",
	FormatR16G16B16A16Float: "r16g16b16a16_float",
	FormatD32Float:          "d32_float",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range formatNames {
		if n == name && f != FormatUndefined {
			return f, nil
		}
	}
	return FormatUndefined, fmt.Errorf("unknown format `%s`", name)
}

// PresentFlags is the set of acceptable present modes. Backends pick the first
// supported mode in declaration order and fall back to FIFO.
type PresentFlags uint32

const (
	PresentImmediate PresentFlags = 1 << iota
	PresentMailbox
	PresentFifo
	PresentFifoRelaxed
)

var presentNames = []struct {
	flag PresentFlags
	name string
}{
	{PresentImmediate, "immediate"},
	{PresentMailbox, "mailbox"},
	{PresentFifo, "fifo"},
	{PresentFifoRelaxed, "fifo_relaxed"},
}

func (p PresentFlags) Has(flag PresentFlags) bool {
	return p&flag != 0
}

// Modes lists the individual flags in preference order.
func (p PresentFlags) Modes() []PresentFlags {
	var modes []PresentFlags
	for _, pn := range presentNames {
		if p.Has(pn.flag) {
			modes = append(modes, pn.flag)
		}
	}
	return modes
}

func (p PresentFlags) String() string {
	var names []string
	for _, pn := range presentNames {
		if p.Has(pn.flag) {
			names = append(names, pn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

func ParsePresentFlags(names []string) (PresentFlags, error) {
	var flags PresentFlags
	for _, name := range names {
		found := false
		for _, pn := range presentNames {
			if strings.EqualFold(pn.name, strings.TrimSpace(name)) {
				flags |= pn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown present mode `%s`", name)
		}
	}
	return flags, nil
}

type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// NewViewport covers the whole target with the [0, 1] depth range.
func NewViewport(width, height uint32) Viewport {
	return Viewport{
		Width:    float32(width),
		Height:   float32(height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

type Extent struct {
	Width  uint32
	Height uint32
}

// Window is the platform surface source a swap chain presents to.
type Window interface {
	IsValid() bool
	Native() any
}
