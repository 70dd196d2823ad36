package glove

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Compiler translates shader source to SPIR-V and reports the linked
// program's interface through reflection. The runtime core never inspects
// source or SPIR-V itself; everything it needs comes through this interface.
type Compiler interface {
	// ValidateProgram checks the attached stages against each other before
	// any translation happens.
	ValidateProgram(vs, fs *Shader) bool

	// PrepareReflection runs the pre-link reflection pass so attribute
	// locations are known before translation.
	PrepareReflection()

	// PreprocessShader rewrites one stage's source for the native target,
	// applying the Y-inversion fixup when the surface needs it.
	PreprocessShader(stage ShaderStageType, yInverted bool) bool

	// LinkProgram performs the cross-stage link and final translation.
	LinkProgram(vs, fs *Shader) bool

	// GetReflection returns the reflection of the most recent link.
	GetReflection() *Reflection

	// GetProgramInfoLog returns diagnostics from the most recent
	// validate/link.
	GetProgramInfoLog() string
}

// ReflectionAttribute describes one active vertex attribute.
type ReflectionAttribute struct {
	Name     string
	Type     DataType
	Location uint32
}

// ReflectionUniform describes one active uniform. Array uniforms occupy
// ArraySize consecutive locations starting at Location. Offset is the byte
// offset of the uniform inside its block; BlockIndex selects the block, and
// is negative only for uniforms the compiler did not assign to any block.
type ReflectionUniform struct {
	Name       string
	Type       DataType
	Location   int32
	ArraySize  int32
	Offset     uint32
	BlockIndex int32
}

// ReflectionUniformBlock describes one uniform block the compiler emitted.
// Opaque blocks hold only sampler state and get no backing buffer.
type ReflectionUniformBlock struct {
	Name      string
	Binding   uint32
	BlockSize uint32
	Stage     ShaderStageType
	Opaque    bool
}

// Reflection is the linked program interface the compiler reports.
type Reflection struct {
	Attributes    []ReflectionAttribute
	Uniforms      []ReflectionUniform
	UniformBlocks []ReflectionUniformBlock
}

func putString(w *bytes.Buffer, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	w.Write(n[:])
	w.WriteString(s)
}

func putUint32(w *bytes.Buffer, v uint32) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], v)
	w.Write(n[:])
}

// Marshal encodes the reflection as a self-describing blob: a uint32 byte
// count followed by that many payload bytes. The blob heads the program
// binary format so a consumer can skip it without decoding.
func (r *Reflection) Marshal() []byte {
	var payload bytes.Buffer

	putUint32(&payload, uint32(len(r.Attributes)))
	for i := range r.Attributes {
		a := &r.Attributes[i]
		putString(&payload, a.Name)
		putUint32(&payload, uint32(a.Type))
		putUint32(&payload, a.Location)
	}

	putUint32(&payload, uint32(len(r.Uniforms)))
	for i := range r.Uniforms {
		u := &r.Uniforms[i]
		putString(&payload, u.Name)
		putUint32(&payload, uint32(u.Type))
		putUint32(&payload, uint32(u.Location))
		putUint32(&payload, uint32(u.ArraySize))
		putUint32(&payload, u.Offset)
		putUint32(&payload, uint32(u.BlockIndex))
	}

	putUint32(&payload, uint32(len(r.UniformBlocks)))
	for i := range r.UniformBlocks {
		b := &r.UniformBlocks[i]
		putString(&payload, b.Name)
		putUint32(&payload, b.Binding)
		putUint32(&payload, b.BlockSize)
		putUint32(&payload, uint32(b.Stage))
		opaque := uint32(0)
		if b.Opaque {
			opaque = 1
		}
		putUint32(&payload, opaque)
	}

	out := make([]byte, 0, 4+payload.Len())
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(payload.Len()))
	out = append(out, n[:]...)
	return append(out, payload.Bytes()...)
}

// Size returns the marshaled byte size, length prefix included.
func (r *Reflection) Size() int {
	size := 4 + 4
	for i := range r.Attributes {
		size += 4 + len(r.Attributes[i].Name) + 8
	}
	size += 4
	for i := range r.Uniforms {
		size += 4 + len(r.Uniforms[i].Name) + 20
	}
	size += 4
	for i := range r.UniformBlocks {
		size += 4 + len(r.UniformBlocks[i].Name) + 16
	}
	return size
}

type blobReader struct {
	data []byte
	off  int
	err  error
}

func (r *blobReader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.data) {
		r.err = fmt.Errorf("reflection blob truncated at offset %d", r.off)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *blobReader) string() string {
	n := int(r.uint32())
	if r.err != nil {
		return ""
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("reflection blob truncated at offset %d", r.off)
		return ""
	}
	s := string(r.data[r.off : r.off+n])
	r.off += n
	return s
}

// UnmarshalReflection decodes a blob produced by Marshal. It returns the
// reflection and the number of bytes consumed so callers can continue
// parsing a larger binary past the blob.
func UnmarshalReflection(data []byte) (*Reflection, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("reflection blob too short: %d bytes", len(data))
	}
	payloadLen := int(binary.LittleEndian.Uint32(data))
	if 4+payloadLen > len(data) {
		return nil, 0, fmt.Errorf("reflection blob claims %d payload bytes, have %d", payloadLen, len(data)-4)
	}

	r := &blobReader{data: data[:4+payloadLen], off: 4}
	refl := &Reflection{}

	attrCount := r.uint32()
	for i := uint32(0); i < attrCount && r.err == nil; i++ {
		var a ReflectionAttribute
		a.Name = r.string()
		a.Type = DataType(r.uint32())
		a.Location = r.uint32()
		refl.Attributes = append(refl.Attributes, a)
	}

	uniformCount := r.uint32()
	for i := uint32(0); i < uniformCount && r.err == nil; i++ {
		var u ReflectionUniform
		u.Name = r.string()
		u.Type = DataType(r.uint32())
		u.Location = int32(r.uint32())
		u.ArraySize = int32(r.uint32())
		u.Offset = r.uint32()
		u.BlockIndex = int32(r.uint32())
		refl.Uniforms = append(refl.Uniforms, u)
	}

	blockCount := r.uint32()
	for i := uint32(0); i < blockCount && r.err == nil; i++ {
		var b ReflectionUniformBlock
		b.Name = r.string()
		b.Binding = r.uint32()
		b.BlockSize = r.uint32()
		b.Stage = ShaderStageType(r.uint32())
		b.Opaque = r.uint32() != 0
		refl.UniformBlocks = append(refl.UniformBlocks, b)
	}

	if r.err != nil {
		return nil, 0, r.err
	}
	return refl, 4 + payloadLen, nil
}
