package glove

import (
	"bytes"
	"reflect"
	"testing"
)

func TestReflectionBlobRoundTrip(t *testing.T) {
	r := basicReflection()

	blob := r.Marshal()
	if len(blob) != r.Size() {
		t.Errorf("Size() = %d, marshaled %d bytes", r.Size(), len(blob))
	}

	// The blob self-describes its length, so trailing data must be left
	// untouched.
	trailer := []byte{0xde, 0xad, 0xbe, 0xef}
	decoded, consumed, err := UnmarshalReflection(append(append([]byte(nil), blob...), trailer...))
	if err != nil {
		t.Fatalf("UnmarshalReflection: %v", err)
	}
	if consumed != len(blob) {
		t.Errorf("consumed = %d, want %d", consumed, len(blob))
	}
	if !reflect.DeepEqual(decoded, r) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, r)
	}
}

func TestReflectionBlobTruncated(t *testing.T) {
	blob := basicReflection().Marshal()

	if _, _, err := UnmarshalReflection(blob[:2]); err == nil {
		t.Error("no error for a blob shorter than its header")
	}
	if _, _, err := UnmarshalReflection(blob[:len(blob)/2]); err == nil {
		t.Error("no error for a half blob")
	}
}

func TestUniformLocationLookup(t *testing.T) {
	r := basicReflection()
	r.Uniforms = append(r.Uniforms, ReflectionUniform{
		Name: "u_lights", Type: TypeVec4, Location: 8, ArraySize: 4, Offset: 80, BlockIndex: 0,
	})
	r.UniformBlocks[0].BlockSize = 80 + 4*16

	s := NewShaderResourceInterface(NewCacheManager())
	s.CreateInterface(r)

	cases := []struct {
		name string
		want int32
	}{
		{"u_mvp", 0},
		{"u_color", 1},
		{"u_tex", 2},
		{"u_lights", 8},
		{"u_lights[0]", 8},
		{"u_lights[2]", 10},
		{"u_lights[4]", -1},
		{"u_missing", -1},
	}
	for _, c := range cases {
		if got := s.GetUniformLocation(c.name); got != c.want {
			t.Errorf("GetUniformLocation(%q) = %d, want %d", c.name, got, c.want)
		}
	}

	if loc, ok := s.GetAttributeLocation("a_position"); !ok || loc != 0 {
		t.Errorf("a_position = %d,%v", loc, ok)
	}
	if _, ok := s.GetAttributeLocation("a_missing"); ok {
		t.Error("unknown attribute resolved")
	}
}

func TestUniformClientDataLayout(t *testing.T) {
	r := basicReflection()
	r.Uniforms = append(r.Uniforms, ReflectionUniform{
		Name: "u_lights", Type: TypeVec4, Location: 8, ArraySize: 4, Offset: 80, BlockIndex: 0,
	})
	r.UniformBlocks[0].BlockSize = 80 + 4*16

	s := NewShaderResourceInterface(NewCacheManager())
	s.CreateInterface(r)

	// mat4 + vec4 + sampler int + 4x vec4
	if len(s.clientData) != 64+16+4+64 {
		t.Fatalf("client data slab = %d bytes", len(s.clientData))
	}

	value := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if err := s.SetUniformClientData(10, 16, value); err != nil {
		t.Fatalf("SetUniformClientData: %v", err)
	}
	got, err := s.GetUniformClientData(10, 16)
	if err != nil {
		t.Fatalf("GetUniformClientData: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("array element read back %v", got)
	}

	// Neighboring elements untouched.
	for _, loc := range []int32{8, 9, 11} {
		neighbor, err := s.GetUniformClientData(loc, 16)
		if err != nil {
			t.Fatalf("GetUniformClientData(%d): %v", loc, err)
		}
		if !bytes.Equal(neighbor, make([]byte, 16)) {
			t.Errorf("element at location %d disturbed: %v", loc, neighbor)
		}
	}

	if err := s.SetUniformSampler(2, 5); err != nil {
		t.Fatalf("SetUniformSampler: %v", err)
	}
	if unit := s.GetSamplerUnit(2); unit != 5 {
		t.Errorf("sampler unit = %d, want 5", unit)
	}
	if err := s.SetUniformSampler(0, 1); err == nil {
		t.Error("non-sampler uniform accepted a sampler binding")
	}
	if err := s.SetUniformSampler(2, MaxTextureUnits); err == nil {
		t.Error("texture unit past the table accepted")
	}
	if err := s.SetUniformSampler(2, -1); err == nil {
		t.Error("negative texture unit accepted")
	}
	if unit := s.GetSamplerUnit(2); unit != 5 {
		t.Errorf("rejected binding changed the unit to %d", unit)
	}
}

func TestUniformClientDataBounds(t *testing.T) {
	r := basicReflection()
	r.Uniforms = append(r.Uniforms, ReflectionUniform{
		Name: "u_lights", Type: TypeVec4, Location: 8, ArraySize: 4, Offset: 80, BlockIndex: 0,
	})
	r.UniformBlocks[0].BlockSize = 80 + 4*16

	s := NewShaderResourceInterface(NewCacheManager())
	s.CreateInterface(r)

	// Writing the whole array from its first element is fine.
	if err := s.SetUniformClientData(8, 64, make([]byte, 64)); err != nil {
		t.Fatalf("SetUniformClientData: %v", err)
	}

	// From the third element only two vec4s remain.
	if err := s.SetUniformClientData(10, 32, make([]byte, 32)); err != nil {
		t.Fatalf("SetUniformClientData: %v", err)
	}
	if err := s.SetUniformClientData(10, 48, make([]byte, 48)); err == nil {
		t.Error("write past the uniform's storage accepted")
	}
	if _, err := s.GetUniformClientData(10, 48); err == nil {
		t.Error("read past the uniform's storage accepted")
	}

	// A scalar uniform takes only its own size.
	if err := s.SetUniformClientData(1, 32, make([]byte, 32)); err == nil {
		t.Error("oversized write into a vec4 uniform accepted")
	}
	if err := s.SetUniformClientData(1, 16, make([]byte, 16)); err != nil {
		t.Fatalf("SetUniformClientData: %v", err)
	}
}

func TestUniformBufferDataFlush(t *testing.T) {
	fake := newFakeDispatch()
	ctx := NewContext(fake)

	s := NewShaderResourceInterface(ctx.CacheManager)
	s.CreateInterface(basicReflection())
	if err := s.AllocateUniformBufferObjects(ctx); err != nil {
		t.Fatalf("AllocateUniformBufferObjects: %v", err)
	}

	// Only the non-opaque block gets a buffer.
	if s.GetUniformBufferObject(0) == nil {
		t.Fatal("block buffer missing")
	}
	if s.GetUniformBufferObject(1) != nil {
		t.Error("opaque block got a buffer")
	}

	color := []byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x80, 0x3f}
	if err := s.SetUniformClientData(1, 16, color); err != nil {
		t.Fatalf("SetUniformClientData: %v", err)
	}

	allocatedNew, err := s.UpdateUniformBufferData(ctx)
	if err != nil {
		t.Fatalf("UpdateUniformBufferData: %v", err)
	}
	if allocatedNew {
		t.Error("in-place flush reallocated the block buffer")
	}

	stored := fake.buffers[s.GetUniformBufferObject(0).GetDeviceBuffer()]
	if len(stored) != 80 {
		t.Fatalf("block buffer size = %d, want 80", len(stored))
	}
	// u_color lives at block offset 64.
	if !bytes.Equal(stored[64:80], color) {
		t.Errorf("block bytes at offset 64 = %v", stored[64:80])
	}
}

func TestInterfaceReleaseRetiresBuffers(t *testing.T) {
	fake := newFakeDispatch()
	ctx := NewContext(fake)

	s := NewShaderResourceInterface(ctx.CacheManager)
	s.CreateInterface(basicReflection())
	if err := s.AllocateUniformBufferObjects(ctx); err != nil {
		t.Fatalf("AllocateUniformBufferObjects: %v", err)
	}

	s.Release()
	if ctx.CacheManager.CachedVBOCount() != 1 {
		t.Fatalf("cached buffers = %d, want 1", ctx.CacheManager.CachedVBOCount())
	}
	if fake.destroyedBuffers != 0 {
		t.Error("release destroyed the buffer instead of retiring it")
	}

	ctx.CacheManager.CleanUp(ctx)
	if fake.destroyedBuffers != 1 {
		t.Errorf("cleanup destroyed %d buffers, want 1", fake.destroyedBuffers)
	}
}
