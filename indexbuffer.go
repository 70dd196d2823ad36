package glove

import (
	"encoding/binary"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// PrepareIndexBufferObject readies index data for an indexed draw. A bound
// element buffer is used in place when it can be, with the byte offset
// converted to a first-index; otherwise (client-memory indices, unsigned
// byte indices the native API lacks, line loops needing a closing index) the
// data is staged through an explicit index buffer owned by the program. It
// returns the first index and the largest index referenced.
func (p *ShaderProgram) PrepareIndexBufferObject(ctx *Context, indexCount int, kind IndexType, clientData []byte, offset int, ibo *BufferObject) (uint32, uint32, error) {
	lineLoop := ctx.IsModeLineLoop()

	needExplicit := ibo == nil || kind == IndexUnsignedByte || lineLoop
	if !needExplicit {
		p.activeIndexVkBuffer = ibo.GetVkBuffer()
		p.hasActiveIndexBuffer = true
		p.vkIndexType = nativeIndexType(kind)

		data, err := ibo.GetData(ctx, indexCount*kind.ByteSize(), offset)
		if err != nil {
			return 0, 0, err
		}
		max := getMaxIndex(data, kind)
		return uint32(offset / kind.ByteSize()), max, nil
	}

	var raw []byte
	if ibo != nil {
		var err error
		raw, err = ibo.GetData(ctx, indexCount*kind.ByteSize(), offset)
		if err != nil {
			return 0, 0, err
		}
	} else {
		if len(clientData) < indexCount*kind.ByteSize() {
			return 0, 0, fmt.Errorf("index data too short: need %d bytes, have %d", indexCount*kind.ByteSize(), len(clientData))
		}
		raw = clientData[:indexCount*kind.ByteSize()]
	}

	finalKind := kind
	if kind == IndexUnsignedByte {
		raw = convertIndexBufferToUint16(raw)
		finalKind = IndexUnsignedShort
	}

	if lineLoop && indexCount > 0 {
		es := finalKind.ByteSize()
		closed := make([]byte, 0, len(raw)+es)
		closed = append(closed, raw...)
		closed = append(closed, raw[:es]...)
		raw = closed
	}

	if p.explicitIbo != nil {
		ctx.CacheManager.CacheVBO(p.explicitIbo)
	}
	p.explicitIbo = NewIndexBufferObject()
	if err := p.explicitIbo.Allocate(ctx, len(raw), raw); err != nil {
		return 0, 0, err
	}

	p.activeIndexVkBuffer = p.explicitIbo.GetVkBuffer()
	p.hasActiveIndexBuffer = true
	p.vkIndexType = nativeIndexType(finalKind)

	return 0, getMaxIndex(raw, finalKind), nil
}

// ClearActiveIndexBuffer resets the index binding for non-indexed draws.
func (p *ShaderProgram) ClearActiveIndexBuffer() {
	p.activeIndexVkBuffer = vk.NullBuffer
	p.hasActiveIndexBuffer = false
}

func (p *ShaderProgram) GetActiveIndexVkBuffer() vk.Buffer {
	return p.activeIndexVkBuffer
}

func (p *ShaderProgram) GetVkIndexType() vk.IndexType {
	return p.vkIndexType
}

func nativeIndexType(kind IndexType) vk.IndexType {
	if kind == IndexUnsignedInt {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

// convertIndexBufferToUint16 widens unsigned byte indices to the narrowest
// type the native API supports.
func convertIndexBufferToUint16(data []byte) []byte {
	out := make([]byte, 2*len(data))
	for i, b := range data {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(b))
	}
	return out
}

// getMaxIndex scans index data for the largest referenced index.
func getMaxIndex(data []byte, kind IndexType) uint32 {
	var max uint32
	switch kind {
	case IndexUnsignedInt:
		for i := 0; i+4 <= len(data); i += 4 {
			if v := binary.LittleEndian.Uint32(data[i:]); v > max {
				max = v
			}
		}
	case IndexUnsignedShort:
		for i := 0; i+2 <= len(data); i += 2 {
			if v := uint32(binary.LittleEndian.Uint16(data[i:])); v > max {
				max = v
			}
		}
	default:
		for _, b := range data {
			if uint32(b) > max {
				max = uint32(b)
			}
		}
	}
	return max
}
