package glove

import (
	"bytes"
	"testing"
)

func attribOnlyReflection(attrs ...ReflectionAttribute) *Reflection {
	return &Reflection{Attributes: attrs}
}

func vboWithData(t *testing.T, ctx *Context, data []byte) *BufferObject {
	t.Helper()
	vbo := NewVertexBufferObject()
	if err := vbo.Allocate(ctx, len(data), data); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	return vbo
}

func TestVertexBindingDedup(t *testing.T) {
	ctx, p, _, _ := linkedProgram(t, attribOnlyReflection(
		ReflectionAttribute{Name: "a_position", Type: TypeVec3, Location: 0},
		ReflectionAttribute{Name: "a_normal", Type: TypeVec3, Location: 1},
		ReflectionAttribute{Name: "a_uv", Type: TypeVec2, Location: 2},
	))

	shared := vboWithData(t, ctx, make([]byte, 4*12))
	gvas := ctx.ResourceManager.GenericVertexAttributes()

	// Positions and normals interleave in one buffer with one stride; UVs
	// read the same buffer at a different stride.
	gvas[0].Enable()
	gvas[0].SetPointer(shared, 3, false, 12, 0, nil)
	gvas[1].Enable()
	gvas[1].SetPointer(shared, 3, false, 12, 24, nil)
	gvas[2].Enable()
	gvas[2].SetPointer(shared, 2, false, 16, 0, nil)

	regenerated, err := p.PrepareVertexAttribBufferObjects(ctx, 0, 4, gvas)
	if err != nil {
		t.Fatalf("PrepareVertexAttribBufferObjects: %v", err)
	}
	if !regenerated {
		t.Fatal("first preparation did not regenerate")
	}

	if len(p.GetVkBindingDescriptions()) != 2 {
		t.Fatalf("bindings = %d, want 2", len(p.GetVkBindingDescriptions()))
	}
	if p.GetActiveVertexBuffersCount() != 2 {
		t.Errorf("active vertex buffers = %d, want 2", p.GetActiveVertexBuffersCount())
	}

	attrs := p.GetVkAttributeDescriptions()
	if len(attrs) != 3 {
		t.Fatalf("attribute descriptions = %d, want 3", len(attrs))
	}
	if attrs[0].Binding != attrs[1].Binding {
		t.Error("same (buffer, stride) pair split into two bindings")
	}
	if attrs[2].Binding == attrs[0].Binding {
		t.Error("different stride collapsed into one binding")
	}
	if attrs[1].Offset != 24 {
		t.Errorf("normal offset = %d, want 24", attrs[1].Offset)
	}
}

func TestVertexInputDirtyGating(t *testing.T) {
	ctx, p, _, _ := linkedProgram(t, attribOnlyReflection(
		ReflectionAttribute{Name: "a_position", Type: TypeVec3, Location: 0},
	))

	vbo := vboWithData(t, ctx, make([]byte, 4*12))
	gvas := ctx.ResourceManager.GenericVertexAttributes()
	gvas[0].Enable()
	gvas[0].SetPointer(vbo, 3, false, 12, 0, nil)

	regenerated, err := p.PrepareVertexAttribBufferObjects(ctx, 0, 4, gvas)
	if err != nil || !regenerated {
		t.Fatalf("first preparation = %v, %v", regenerated, err)
	}

	regenerated, err = p.PrepareVertexAttribBufferObjects(ctx, 0, 4, gvas)
	if err != nil {
		t.Fatalf("PrepareVertexAttribBufferObjects: %v", err)
	}
	if regenerated {
		t.Error("unchanged attribute table regenerated vertex input")
	}

	gvas[0].SetPointer(vbo, 3, false, 12, 4, nil)
	regenerated, err = p.PrepareVertexAttribBufferObjects(ctx, 0, 4, gvas)
	if err != nil || !regenerated {
		t.Errorf("pointer change did not regenerate: %v, %v", regenerated, err)
	}

	p.ResetVulkanVertexInput()
	regenerated, err = p.PrepareVertexAttribBufferObjects(ctx, 0, 4, gvas)
	if err != nil || !regenerated {
		t.Errorf("reset did not force regeneration: %v, %v", regenerated, err)
	}
}

func TestMatrixAttributeOccupiesLocations(t *testing.T) {
	ctx, p, _, _ := linkedProgram(t, attribOnlyReflection(
		ReflectionAttribute{Name: "a_model", Type: TypeMat4, Location: 0},
	))

	vbo := vboWithData(t, ctx, make([]byte, 4*64))
	gvas := ctx.ResourceManager.GenericVertexAttributes()
	for col := 0; col < 4; col++ {
		gvas[col].Enable()
		gvas[col].SetPointer(vbo, 4, false, 64, uint32(16*col), nil)
	}

	if _, err := p.PrepareVertexAttribBufferObjects(ctx, 0, 4, gvas); err != nil {
		t.Fatalf("PrepareVertexAttribBufferObjects: %v", err)
	}

	attrs := p.GetVkAttributeDescriptions()
	if len(attrs) != 4 {
		t.Fatalf("attribute descriptions = %d, want 4 (one per column)", len(attrs))
	}
	for col, a := range attrs {
		if a.Location != uint32(col) || a.Offset != uint32(16*col) {
			t.Errorf("column %d at location %d offset %d", col, a.Location, a.Offset)
		}
		if a.Binding != attrs[0].Binding {
			t.Errorf("column %d split from the matrix binding", col)
		}
	}
	if len(p.GetVkBindingDescriptions()) != 1 {
		t.Errorf("bindings = %d, want 1", len(p.GetVkBindingDescriptions()))
	}
}

func TestGenericValueAttribute(t *testing.T) {
	ctx, p, _, fake := linkedProgram(t, attribOnlyReflection(
		ReflectionAttribute{Name: "a_color", Type: TypeVec4, Location: 0},
	))

	gvas := ctx.ResourceManager.GenericVertexAttributes()
	gvas[0].Disable()
	gvas[0].SetGenericValue([4]float32{0.5, 0.25, 1, 1})

	if _, err := p.PrepareVertexAttribBufferObjects(ctx, 0, 3, gvas); err != nil {
		t.Fatalf("PrepareVertexAttribBufferObjects: %v", err)
	}

	internal := gvas[0].internalVBO
	if internal == nil {
		t.Fatal("disabled attribute did not build an internal buffer")
	}
	if internal.Size() != 3*16 {
		t.Fatalf("internal buffer size = %d, want 48", internal.Size())
	}

	stored := fake.buffers[internal.GetDeviceBuffer()]
	want := make([]byte, 16)
	putFloat32Slice(want, []float32{0.5, 0.25, 1, 1})
	if !bytes.Equal(stored[:16], want) || !bytes.Equal(stored[32:], want) {
		t.Error("generic value not replicated per vertex")
	}
}

func TestLineLoopVertexDuplication(t *testing.T) {
	ctx, p, _, fake := linkedProgram(t, attribOnlyReflection(
		ReflectionAttribute{Name: "a_position", Type: TypeVec2, Location: 0},
	))
	ctx.SetPrimitiveMode(PrimitiveLineLoop)

	// Three vertices of 8 bytes each.
	src := []byte{
		1, 1, 1, 1, 1, 1, 1, 1,
		2, 2, 2, 2, 2, 2, 2, 2,
		3, 3, 3, 3, 3, 3, 3, 3,
	}
	vbo := vboWithData(t, ctx, src)
	gvas := ctx.ResourceManager.GenericVertexAttributes()
	gvas[0].Enable()
	gvas[0].SetPointer(vbo, 2, false, 8, 0, nil)

	if _, err := p.PrepareVertexAttribBufferObjects(ctx, 0, 3, gvas); err != nil {
		t.Fatalf("PrepareVertexAttribBufferObjects: %v", err)
	}

	if ctx.CacheManager.CachedVBOCount() != 1 {
		t.Fatalf("cached buffers = %d, want 1 closing-segment copy", ctx.CacheManager.CachedVBOCount())
	}
	closed := ctx.CacheManager.vbos[0]
	if closed.Size() != len(src)+8 {
		t.Fatalf("closed buffer size = %d, want %d", closed.Size(), len(src)+8)
	}
	stored := fake.buffers[closed.GetDeviceBuffer()]
	if !bytes.Equal(stored[:len(src)], src) {
		t.Error("closed buffer lost the original vertices")
	}
	if !bytes.Equal(stored[len(src):], src[:8]) {
		t.Error("closed buffer does not end with the first vertex")
	}

	// The generated binding reads the copy, not the original.
	if p.GetActiveVertexVkBuffers()[0] != closed.GetVkBuffer() {
		t.Error("binding still points at the open buffer")
	}
	if p.vertexBindings[0].buf != closed.GetDeviceBuffer() {
		t.Error("binding key still points at the open buffer")
	}
}

func TestLineLoopWithIndexBufferSkipsDuplication(t *testing.T) {
	ctx, p, _, _ := linkedProgram(t, attribOnlyReflection(
		ReflectionAttribute{Name: "a_position", Type: TypeVec2, Location: 0},
	))
	ctx.SetPrimitiveMode(PrimitiveLineLoop)

	// Indexed line loops close through the index stream instead.
	indices := []byte{0, 0, 1, 0, 2, 0}
	if _, _, err := p.PrepareIndexBufferObject(ctx, 3, IndexUnsignedShort, indices, 0, nil); err != nil {
		t.Fatalf("PrepareIndexBufferObject: %v", err)
	}
	cached := ctx.CacheManager.CachedVBOCount()

	vbo := vboWithData(t, ctx, make([]byte, 3*8))
	gvas := ctx.ResourceManager.GenericVertexAttributes()
	gvas[0].Enable()
	gvas[0].SetPointer(vbo, 2, false, 8, 0, nil)

	if _, err := p.PrepareVertexAttribBufferObjects(ctx, 0, 3, gvas); err != nil {
		t.Fatalf("PrepareVertexAttribBufferObjects: %v", err)
	}
	if ctx.CacheManager.CachedVBOCount() != cached {
		t.Error("vertex data duplicated although the index stream closes the loop")
	}
	if p.vertexBindings[0].buf != vbo.GetDeviceBuffer() {
		t.Error("binding does not read the bound buffer directly")
	}
}
