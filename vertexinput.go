package glove

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// GenericVertexAttribute is one slot of the context-wide vertex attribute
// table. A slot either points into an application buffer object, carries
// client-memory data uploaded into an internal buffer, or holds a constant
// generic value replicated per vertex at draw time.
type GenericVertexAttribute struct {
	active      bool
	numElements int32
	normalized  bool
	stride      int32
	offset      uint32

	vbo        *BufferObject
	clientData []byte

	internalVBO *BufferObject

	genericValue [4]float32

	updated bool
}

func (g *GenericVertexAttribute) Enable() {
	g.active = true
	g.updated = true
}

func (g *GenericVertexAttribute) Disable() {
	g.active = false
	g.updated = true
}

func (g *GenericVertexAttribute) IsActive() bool {
	return g.active
}

// SetPointer configures the slot from a vertex attribute pointer call. When
// vbo is nil the data slice holds client memory to be uploaded at draw
// preparation.
func (g *GenericVertexAttribute) SetPointer(vbo *BufferObject, numElements int32, normalized bool, stride int32, offset uint32, data []byte) {
	g.vbo = vbo
	g.numElements = numElements
	g.normalized = normalized
	g.stride = stride
	g.offset = offset
	g.clientData = data
	g.updated = true
}

// SetGenericValue sets the constant value used while the slot is disabled.
func (g *GenericVertexAttribute) SetGenericValue(v [4]float32) {
	g.genericValue = v
	g.updated = true
}

func (g *GenericVertexAttribute) GenericValue() [4]float32 {
	return g.genericValue
}

func (g *GenericVertexAttribute) IsUpdated() bool {
	return g.updated
}

func (g *GenericVertexAttribute) clearUpdated() {
	g.updated = false
}

// effectiveStride is the distance between consecutive vertices; a zero GL
// stride means tightly packed.
func (g *GenericVertexAttribute) effectiveStride() int32 {
	if g.stride != 0 {
		return g.stride
	}
	return g.numElements * 4
}

func (g *GenericVertexAttribute) vkFormat() vk.Format {
	switch g.numElements {
	case 1:
		return vk.FormatR32Sfloat
	case 2:
		return vk.FormatR32g32Sfloat
	case 3:
		return vk.FormatR32g32b32Sfloat
	}
	return vk.FormatR32g32b32a32Sfloat
}

// resolveBuffer returns the buffer object feeding this slot for a draw of
// vertCount vertices starting at firstVertex. Disabled slots replicate the
// generic value; enabled slots without a bound buffer upload their client
// data. Internal buffers from earlier draws are retired to the cache manager
// before being replaced.
func (g *GenericVertexAttribute) resolveBuffer(ctx *Context, firstVertex, vertCount int) (*BufferObject, error) {
	if g.active && g.vbo != nil {
		return g.vbo, nil
	}

	if g.internalVBO != nil {
		ctx.CacheManager.CacheVBO(g.internalVBO)
		g.internalVBO = nil
	}

	var data []byte
	if g.active {
		if g.clientData == nil {
			return nil, fmt.Errorf("enabled vertex attribute has neither buffer nor client data")
		}
		stride := int(g.effectiveStride())
		need := (firstVertex + vertCount) * stride
		if need > len(g.clientData) {
			need = len(g.clientData)
		}
		data = g.clientData[:need]
	} else {
		data = make([]byte, vertCount*16)
		for v := 0; v < vertCount; v++ {
			putFloat32Slice(data[v*16:], g.genericValue[:])
		}
	}

	g.internalVBO = NewVertexBufferObject()
	if err := g.internalVBO.Allocate(ctx, len(data), data); err != nil {
		return nil, err
	}
	return g.internalVBO, nil
}

// drawStride and drawOffset describe the slot's layout inside whatever
// buffer resolveBuffer chose.
func (g *GenericVertexAttribute) drawStride() int32 {
	if g.active {
		return g.effectiveStride()
	}
	return 16
}

func (g *GenericVertexAttribute) drawOffset() uint32 {
	if g.active {
		return g.offset
	}
	return 0
}

// Release frees the internal buffer, if any.
func (g *GenericVertexAttribute) Release(ctx *Context) {
	if g.internalVBO != nil {
		g.internalVBO.Release(ctx)
		g.internalVBO = nil
	}
}

// vertexBindingKey collapses attribute slots sharing a backing buffer and
// stride into one vertex input binding.
type vertexBindingKey struct {
	buf    *DeviceBuffer
	stride int32
}

type vertexAttributeSlot struct {
	location uint32
	binding  uint32
	format   vk.Format
	offset   uint32
}

// ResetVulkanVertexInput drops the generated vertex input state so the next
// draw preparation rebuilds it. Linking calls this; so do attribute table
// changes.
func (p *ShaderProgram) ResetVulkanVertexInput() {
	p.vkBindingDescriptions = p.vkBindingDescriptions[:0]
	p.vkAttributeDescriptions = p.vkAttributeDescriptions[:0]
	p.activeVertexVkBuffers = p.activeVertexVkBuffers[:0]
	p.vertexInputDirty = true
}

// PrepareVertexAttribBufferObjects regenerates the program's vertex input
// bindings for a draw. Regeneration is skipped when nothing changed since
// the last draw; the returned flag reports whether it ran.
func (p *ShaderProgram) PrepareVertexAttribBufferObjects(ctx *Context, firstVertex, vertCount int, gvas []GenericVertexAttribute) (bool, error) {
	lineLoop := ctx.IsModeLineLoop() && !p.hasActiveIndexBuffer

	dirty := p.vertexInputDirty || lineLoop
	if !dirty {
		for i := range p.resources.attributes {
			a := &p.resources.attributes[i]
			for l := a.location; l < a.location+a.typ.OccupiedLocations(); l++ {
				if gvas[l].IsUpdated() {
					dirty = true
				}
			}
		}
	}
	if !dirty {
		return false, nil
	}

	if err := p.updateVertexAttribProperties(ctx, firstVertex, vertCount, gvas, lineLoop); err != nil {
		return true, err
	}
	p.generateVertexInputProperties()
	p.vertexInputDirty = false
	return true, nil
}

func (p *ShaderProgram) updateVertexAttribProperties(ctx *Context, firstVertex, vertCount int, gvas []GenericVertexAttribute, lineLoop bool) error {
	p.vertexBindings = p.vertexBindings[:0]
	p.vertexAttributes = p.vertexAttributes[:0]
	p.activeVertexVkBuffers = p.activeVertexVkBuffers[:0]

	bindingOf := make(map[vertexBindingKey]uint32)

	for i := range p.resources.attributes {
		a := &p.resources.attributes[i]
		occupied := a.typ.OccupiedLocations()

		for l := a.location; l < a.location+occupied; l++ {
			gva := &gvas[l]

			vbo, err := gva.resolveBuffer(ctx, firstVertex, vertCount)
			if err != nil {
				return err
			}
			stride := gva.drawStride()
			offset := gva.drawOffset()

			if lineLoop {
				vbo, err = duplicateFirstVertex(ctx, vbo, firstVertex, vertCount, int(stride))
				if err != nil {
					return err
				}
				// One extra vertex per buffer; the loop's closing segment
				// reads it.
				ctx.CacheManager.CacheVBO(vbo)
			}

			key := vertexBindingKey{buf: vbo.GetDeviceBuffer(), stride: stride}
			binding, ok := bindingOf[key]
			if !ok {
				binding = uint32(len(p.vertexBindings))
				bindingOf[key] = binding
				p.vertexBindings = append(p.vertexBindings, key)
				p.activeVertexVkBuffers = append(p.activeVertexVkBuffers, vbo.GetVkBuffer())
			}

			p.vertexAttributes = append(p.vertexAttributes, vertexAttributeSlot{
				location: l,
				binding:  binding,
				format:   gva.vkFormat(),
				offset:   offset,
			})

			gva.clearUpdated()
		}
	}
	return nil
}

// duplicateFirstVertex builds a fresh buffer holding the draw's vertex range
// with the first vertex appended, closing a line loop without index data.
func duplicateFirstVertex(ctx *Context, vbo *BufferObject, firstVertex, vertCount, stride int) (*BufferObject, error) {
	size := (firstVertex + vertCount) * stride
	if size > vbo.Size() {
		size = vbo.Size()
	}
	data, err := vbo.GetData(ctx, size, 0)
	if err != nil {
		return nil, err
	}

	first := data[firstVertex*stride : firstVertex*stride+stride]
	closed := make([]byte, 0, len(data)+stride)
	closed = append(closed, data...)
	closed = append(closed, first...)

	out := NewVertexBufferObject()
	if err := out.Allocate(ctx, len(closed), closed); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *ShaderProgram) generateVertexInputProperties() {
	p.vkBindingDescriptions = p.vkBindingDescriptions[:0]
	for i, b := range p.vertexBindings {
		p.vkBindingDescriptions = append(p.vkBindingDescriptions, vk.VertexInputBindingDescription{
			Binding:   uint32(i),
			Stride:    uint32(b.stride),
			InputRate: vk.VertexInputRateVertex,
		})
	}

	p.vkAttributeDescriptions = p.vkAttributeDescriptions[:0]
	for _, a := range p.vertexAttributes {
		p.vkAttributeDescriptions = append(p.vkAttributeDescriptions, vk.VertexInputAttributeDescription{
			Location: a.location,
			Binding:  a.binding,
			Format:   a.format,
			Offset:   a.offset,
		})
	}
}

func (p *ShaderProgram) GetVkBindingDescriptions() []vk.VertexInputBindingDescription {
	return p.vkBindingDescriptions
}

func (p *ShaderProgram) GetVkAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return p.vkAttributeDescriptions
}

func (p *ShaderProgram) GetActiveVertexVkBuffers() []vk.Buffer {
	return p.activeVertexVkBuffers
}

func (p *ShaderProgram) GetActiveVertexBuffersCount() int {
	return len(p.activeVertexVkBuffers)
}
