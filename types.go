package glove

import (
	vk "github.com/vulkan-go/vulkan"
)

// Implementation limits. These mirror the minimums the targeted GL ES
// feature level guarantees; a link fails when a program exceeds them.
const (
	MaxVertexAttribs          = 32
	MaxVertexUniformVectors   = 128
	MaxFragmentUniformVectors = 128
	MaxTextureUnits           = 32
)

// ShaderStageType identifies one shader stage. The values form a bitmask so
// a uniform block can record which stages reference it.
type ShaderStageType uint32

const (
	ShaderStageVertex   ShaderStageType = 1 << 0
	ShaderStageFragment ShaderStageType = 1 << 1
)

func (s ShaderStageType) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageVertex | ShaderStageFragment:
		return "vertex|fragment"
	}
	return "unknown"
}

// VkFlags returns the Vulkan stage mask for this stage set.
func (s ShaderStageType) VkFlags() vk.ShaderStageFlags {
	var f vk.ShaderStageFlags
	if s&ShaderStageVertex != 0 {
		f |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if s&ShaderStageFragment != 0 {
		f |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	return f
}

// DataType is the shading-language type of an attribute or uniform as
// reported by the compiler's reflection.
type DataType uint32

const (
	TypeFloat DataType = iota
	TypeVec2
	TypeVec3
	TypeVec4
	TypeInt
	TypeIVec2
	TypeIVec3
	TypeIVec4
	TypeBool
	TypeBVec2
	TypeBVec3
	TypeBVec4
	TypeMat2
	TypeMat3
	TypeMat4
	TypeSampler2D
	TypeSamplerCube
)

// IsSampler reports whether the type is an opaque sampler type.
func (t DataType) IsSampler() bool {
	return t == TypeSampler2D || t == TypeSamplerCube
}

// ByteSize is the client-side storage footprint of one element of this type.
// Samplers store their texture-unit index as an int32.
func (t DataType) ByteSize() int {
	switch t {
	case TypeFloat, TypeInt, TypeBool, TypeSampler2D, TypeSamplerCube:
		return 4
	case TypeVec2, TypeIVec2, TypeBVec2:
		return 8
	case TypeVec3, TypeIVec3, TypeBVec3:
		return 12
	case TypeVec4, TypeIVec4, TypeBVec4, TypeMat2:
		return 16
	case TypeMat3:
		return 36
	case TypeMat4:
		return 64
	}
	return 0
}

// OccupiedLocations is how many consecutive vertex-input locations an
// attribute of this type consumes. Matrices take one location per column.
func (t DataType) OccupiedLocations() uint32 {
	switch t {
	case TypeMat2:
		return 2
	case TypeMat3:
		return 3
	case TypeMat4:
		return 4
	}
	return 1
}

// IndexType is the element type of index data handed to a draw call.
type IndexType uint32

const (
	IndexUnsignedByte IndexType = iota
	IndexUnsignedShort
	IndexUnsignedInt
)

// ByteSize of one index element.
func (t IndexType) ByteSize() int {
	switch t {
	case IndexUnsignedByte:
		return 1
	case IndexUnsignedShort:
		return 2
	case IndexUnsignedInt:
		return 4
	}
	return 0
}

// PrimitiveMode is the draw-call primitive topology.
type PrimitiveMode uint32

const (
	PrimitivePoints PrimitiveMode = iota
	PrimitiveLines
	PrimitiveLineLoop
	PrimitiveLineStrip
	PrimitiveTriangles
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
)

// BufferTarget is the binding target of a buffer object.
type BufferTarget uint32

const (
	TargetArrayBuffer BufferTarget = iota
	TargetElementArrayBuffer
)

// TextureTarget is the binding target of a texture object.
type TextureTarget uint32

const (
	TargetTexture2D TextureTarget = iota
	TargetTextureCubeMap
)

// LayerCount is how many image layers a texture of this target owns.
func (t TextureTarget) LayerCount() int {
	if t == TargetTextureCubeMap {
		return 6
	}
	return 1
}

// AttachmentType tags what kind of object backs a framebuffer attachment
// point.
type AttachmentType uint32

const (
	AttachmentNone AttachmentType = iota
	AttachmentTexture
	AttachmentRenderbuffer
)
