package glove

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// BufferObject is a GL buffer backed by a host-visible native buffer. The
// usage flag is fixed at construction by the binding target the object was
// created for.
type BufferObject struct {
	refObject

	target BufferTarget
	usage  vk.BufferUsageFlagBits
	size   int

	deviceBuffer *DeviceBuffer
	descInfo     vk.DescriptorBufferInfo
}

func NewVertexBufferObject() *BufferObject {
	return &BufferObject{
		target: TargetArrayBuffer,
		usage:  vk.BufferUsageVertexBufferBit,
	}
}

func NewIndexBufferObject() *BufferObject {
	return &BufferObject{
		target: TargetElementArrayBuffer,
		usage:  vk.BufferUsageIndexBufferBit,
	}
}

func NewUniformBufferObject() *BufferObject {
	return &BufferObject{
		target: TargetArrayBuffer,
		usage:  vk.BufferUsageUniformBufferBit,
	}
}

func (b *BufferObject) Target() BufferTarget {
	return b.target
}

func (b *BufferObject) Size() int {
	return b.size
}

func (b *BufferObject) HasData() bool {
	return b.deviceBuffer != nil
}

// Allocate creates (or recreates) the native buffer at the given size and
// optionally fills it with data.
func (b *BufferObject) Allocate(ctx *Context, size int, data []byte) error {
	if b.deviceBuffer != nil {
		ctx.Dispatch.DestroyBuffer(b.deviceBuffer)
		b.deviceBuffer = nil
	}

	buf, err := ctx.Dispatch.CreateBuffer(size, b.usage)
	if err != nil {
		return err
	}
	b.deviceBuffer = buf
	b.size = size
	b.descInfo = vk.DescriptorBufferInfo{
		Buffer: buf.VKBuffer,
		Offset: 0,
		Range:  vk.DeviceSize(size),
	}

	if len(data) > 0 {
		return ctx.Dispatch.WriteBuffer(buf, 0, data)
	}
	return nil
}

// UpdateData writes a byte range into the buffer. A write past the current
// size reallocates the buffer, preserving the prefix before the write; the
// returned flag tells the caller the native handle changed.
func (b *BufferObject) UpdateData(ctx *Context, size, offset int, data []byte) (bool, error) {
	if b.deviceBuffer == nil || offset+size > b.size {
		var preserved []byte
		if b.deviceBuffer != nil && offset > 0 {
			n := offset
			if n > b.size {
				n = b.size
			}
			preserved = make([]byte, n)
			if err := ctx.Dispatch.ReadBuffer(b.deviceBuffer, 0, preserved); err != nil {
				return false, err
			}
		}

		if err := b.Allocate(ctx, offset+size, nil); err != nil {
			return false, err
		}
		if len(preserved) > 0 {
			if err := ctx.Dispatch.WriteBuffer(b.deviceBuffer, 0, preserved); err != nil {
				return true, err
			}
		}
		if err := ctx.Dispatch.WriteBuffer(b.deviceBuffer, offset, data[:size]); err != nil {
			return true, err
		}
		return true, nil
	}

	return false, ctx.Dispatch.WriteBuffer(b.deviceBuffer, offset, data[:size])
}

// GetData reads a byte range back from the buffer.
func (b *BufferObject) GetData(ctx *Context, size, offset int) ([]byte, error) {
	if b.deviceBuffer == nil {
		return nil, fmt.Errorf("buffer object has no data store")
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("buffer read of %d bytes at %d exceeds size %d", size, offset, b.size)
	}

	data := make([]byte, size)
	if err := ctx.Dispatch.ReadBuffer(b.deviceBuffer, offset, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (b *BufferObject) GetVkBuffer() vk.Buffer {
	if b.deviceBuffer == nil {
		return vk.NullBuffer
	}
	return b.deviceBuffer.VKBuffer
}

func (b *BufferObject) GetDeviceBuffer() *DeviceBuffer {
	return b.deviceBuffer
}

// GetBufferDescInfo returns the descriptor info used when the buffer backs a
// uniform block.
func (b *BufferObject) GetBufferDescInfo() *vk.DescriptorBufferInfo {
	return &b.descInfo
}

// Release destroys the native buffer.
func (b *BufferObject) Release(ctx *Context) {
	if b.deviceBuffer != nil {
		ctx.Dispatch.DestroyBuffer(b.deviceBuffer)
		b.deviceBuffer = nil
		b.size = 0
	}
}
