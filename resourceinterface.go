package glove

import (
	"fmt"
)

type resourceAttribute struct {
	name     string
	typ      DataType
	location uint32
}

type resourceUniform struct {
	name       string
	typ        DataType
	location   int32
	arraySize  int32
	blockIndex int32

	// blockOffset is the uniform's byte offset inside its block's buffer;
	// clientDataOffset is its byte offset inside the client data slab.
	blockOffset      uint32
	clientDataOffset int
}

type resourceUniformBlock struct {
	name      string
	binding   uint32
	blockSize uint32
	stage     ShaderStageType
	opaque    bool

	ubo *BufferObject
}

// ShaderResourceInterface is the linked program's view of its own interface:
// the active attribute and uniform tables derived from reflection, the
// client-side uniform data slab, and the uniform buffer objects backing the
// non-opaque blocks.
type ShaderResourceInterface struct {
	attributes    []resourceAttribute
	uniforms      []resourceUniform
	uniformBlocks []resourceUniformBlock

	clientData []byte

	savedReflection *Reflection
	reflectionSize  int

	activeAttributeMaxLength int
	activeUniformMaxLength   int

	cacheManager *CacheManager
}

func NewShaderResourceInterface(cacheManager *CacheManager) *ShaderResourceInterface {
	return &ShaderResourceInterface{cacheManager: cacheManager}
}

// SetReflection retains the reflection so the program binary can be produced
// later without consulting the compiler again.
func (s *ShaderResourceInterface) SetReflection(r *Reflection) {
	s.savedReflection = r
	s.reflectionSize = r.Size()
}

func (s *ShaderResourceInterface) GetReflection() *Reflection {
	return s.savedReflection
}

// UpdateAttributeInterface rebuilds only the attribute table. It runs as a
// pre-link pass so attribute locations are settled before translation.
func (s *ShaderResourceInterface) UpdateAttributeInterface(r *Reflection) {
	s.attributes = s.attributes[:0]
	s.activeAttributeMaxLength = 0
	for i := range r.Attributes {
		a := &r.Attributes[i]
		s.attributes = append(s.attributes, resourceAttribute{
			name:     a.Name,
			typ:      a.Type,
			location: a.Location,
		})
		if len(a.Name)+1 > s.activeAttributeMaxLength {
			s.activeAttributeMaxLength = len(a.Name) + 1
		}
	}
}

// CreateInterface rebuilds the full attribute, uniform, and block tables
// from a post-link reflection and lays out the client data slab.
func (s *ShaderResourceInterface) CreateInterface(r *Reflection) {
	s.SetReflection(r)
	s.UpdateAttributeInterface(r)

	// A relink replaces the block table; retire the previous link's buffers
	// before their pointers are dropped.
	s.retireUniformBufferObjects()
	s.uniformBlocks = s.uniformBlocks[:0]
	for i := range r.UniformBlocks {
		b := &r.UniformBlocks[i]
		s.uniformBlocks = append(s.uniformBlocks, resourceUniformBlock{
			name:      b.Name,
			binding:   b.Binding,
			blockSize: b.BlockSize,
			stage:     b.Stage,
			opaque:    b.Opaque,
		})
	}

	s.uniforms = s.uniforms[:0]
	s.activeUniformMaxLength = 0
	for i := range r.Uniforms {
		u := &r.Uniforms[i]
		s.uniforms = append(s.uniforms, resourceUniform{
			name:        u.Name,
			typ:         u.Type,
			location:    u.Location,
			arraySize:   u.ArraySize,
			blockIndex:  u.BlockIndex,
			blockOffset: u.Offset,
		})
		if len(u.Name)+1 > s.activeUniformMaxLength {
			s.activeUniformMaxLength = len(u.Name) + 1
		}
	}

	s.allocateUniformClientData()
}

// allocateUniformClientData sizes one contiguous slab holding every
// uniform's client-side value and assigns each uniform its slice of it.
func (s *ShaderResourceInterface) allocateUniformClientData() {
	size := 0
	for i := range s.uniforms {
		u := &s.uniforms[i]
		u.clientDataOffset = size
		size += int(u.arraySize) * u.typ.ByteSize()
	}
	s.clientData = make([]byte, size)
}

// AllocateUniformBufferObjects creates one uniform buffer per non-opaque
// block, replacing any previous buffers.
func (s *ShaderResourceInterface) AllocateUniformBufferObjects(ctx *Context) error {
	for i := range s.uniformBlocks {
		b := &s.uniformBlocks[i]
		if b.opaque {
			continue
		}
		if b.ubo != nil {
			s.cacheManager.CacheVBO(b.ubo)
		}
		b.ubo = NewUniformBufferObject()
		if err := b.ubo.Allocate(ctx, int(b.blockSize), nil); err != nil {
			return err
		}
	}
	return nil
}

// UpdateUniformBufferData flushes the client data slab into the block
// buffers. The returned flag reports whether any buffer was reallocated and
// its descriptor therefore went stale.
func (s *ShaderResourceInterface) UpdateUniformBufferData(ctx *Context) (bool, error) {
	allocatedNew := false
	for i := range s.uniformBlocks {
		b := &s.uniformBlocks[i]
		if b.opaque || b.ubo == nil {
			continue
		}

		block := make([]byte, b.blockSize)
		for j := range s.uniforms {
			u := &s.uniforms[j]
			if u.blockIndex != int32(i) {
				continue
			}
			n := int(u.arraySize) * u.typ.ByteSize()
			copy(block[u.blockOffset:int(u.blockOffset)+n], s.clientData[u.clientDataOffset:u.clientDataOffset+n])
		}

		fresh, err := b.ubo.UpdateData(ctx, len(block), 0, block)
		if err != nil {
			return allocatedNew, err
		}
		if fresh {
			allocatedNew = true
		}
	}
	return allocatedNew, nil
}

func (s *ShaderResourceInterface) uniformAtLocation(location int32) (*resourceUniform, int32) {
	for i := range s.uniforms {
		u := &s.uniforms[i]
		if location >= u.location && location < u.location+u.arraySize {
			return u, location - u.location
		}
	}
	return nil, 0
}

// uniformStorageLeft is the number of slab bytes from the given element to
// the end of the uniform's storage.
func uniformStorageLeft(u *resourceUniform, elem int32) int {
	return int(u.arraySize-elem) * u.typ.ByteSize()
}

// SetUniformClientData stores size bytes of uniform value at the given
// location, which may address any element of an array uniform. Writes past
// the uniform's storage are rejected so they cannot spill into a neighbor.
func (s *ShaderResourceInterface) SetUniformClientData(location int32, size int, data []byte) error {
	u, elem := s.uniformAtLocation(location)
	if u == nil {
		return fmt.Errorf("no active uniform at location %d", location)
	}
	if size < 0 || size > uniformStorageLeft(u, elem) {
		return fmt.Errorf("uniform data size %d exceeds storage at location %d", size, location)
	}
	off := u.clientDataOffset + int(elem)*u.typ.ByteSize()
	copy(s.clientData[off:off+size], data[:size])
	return nil
}

// GetUniformClientData reads back size bytes of uniform value from the given
// location.
func (s *ShaderResourceInterface) GetUniformClientData(location int32, size int) ([]byte, error) {
	u, elem := s.uniformAtLocation(location)
	if u == nil {
		return nil, fmt.Errorf("no active uniform at location %d", location)
	}
	if size < 0 || size > uniformStorageLeft(u, elem) {
		return nil, fmt.Errorf("uniform data size %d exceeds storage at location %d", size, location)
	}
	off := u.clientDataOffset + int(elem)*u.typ.ByteSize()
	return s.clientData[off : off+size], nil
}

// SetUniformSampler binds a sampler uniform to a texture unit.
func (s *ShaderResourceInterface) SetUniformSampler(location int32, unit int32) error {
	u, elem := s.uniformAtLocation(location)
	if u == nil || !u.typ.IsSampler() {
		return fmt.Errorf("no active sampler uniform at location %d", location)
	}
	if unit < 0 || unit >= MaxTextureUnits {
		return fmt.Errorf("texture unit %d out of range for sampler at location %d", unit, location)
	}
	off := u.clientDataOffset + int(elem)*u.typ.ByteSize()
	putInt32(s.clientData[off:], unit)
	return nil
}

// GetSamplerUnit returns the texture unit a sampler uniform selects.
func (s *ShaderResourceInterface) GetSamplerUnit(location int32) int32 {
	u, elem := s.uniformAtLocation(location)
	if u == nil {
		return 0
	}
	off := u.clientDataOffset + int(elem)*u.typ.ByteSize()
	return getInt32(s.clientData[off:])
}

func (s *ShaderResourceInterface) GetLiveAttributes() int {
	return len(s.attributes)
}

func (s *ShaderResourceInterface) GetLiveUniforms() int {
	return len(s.uniforms)
}

func (s *ShaderResourceInterface) GetLiveUniformBlocks() int {
	return len(s.uniformBlocks)
}

func (s *ShaderResourceInterface) GetAttributeName(index int) string {
	return s.attributes[index].name
}

func (s *ShaderResourceInterface) GetAttributeType(index int) DataType {
	return s.attributes[index].typ
}

func (s *ShaderResourceInterface) GetAttributeLocation(name string) (uint32, bool) {
	for i := range s.attributes {
		if s.attributes[i].name == name {
			return s.attributes[i].location, true
		}
	}
	return 0, false
}

func (s *ShaderResourceInterface) GetAttribute(index int) (name string, typ DataType, location uint32) {
	a := &s.attributes[index]
	return a.name, a.typ, a.location
}

func (s *ShaderResourceInterface) GetUniformName(index int) string {
	return s.uniforms[index].name
}

func (s *ShaderResourceInterface) GetUniformType(index int) DataType {
	return s.uniforms[index].typ
}

func (s *ShaderResourceInterface) GetUniformArraySize(index int) int32 {
	return s.uniforms[index].arraySize
}

// GetUniformLocation resolves a uniform name, including the "name[i]" form
// addressing one array element. Unknown names yield -1.
func (s *ShaderResourceInterface) GetUniformLocation(name string) int32 {
	base := name
	elem := int32(0)
	if i := indexSuffix(name); i >= 0 {
		base = name[:bracketPos(name)]
		elem = int32(i)
	}
	for i := range s.uniforms {
		u := &s.uniforms[i]
		if u.name == base && elem < u.arraySize {
			return u.location + elem
		}
	}
	return -1
}

func bracketPos(name string) int {
	for i := 0; i < len(name); i++ {
		if name[i] == '[' {
			return i
		}
	}
	return -1
}

func indexSuffix(name string) int {
	b := bracketPos(name)
	if b < 0 || name[len(name)-1] != ']' {
		return -1
	}
	n := 0
	for _, c := range name[b+1 : len(name)-1] {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func (s *ShaderResourceInterface) GetUniformBlockBinding(index int) uint32 {
	return s.uniformBlocks[index].binding
}

func (s *ShaderResourceInterface) IsUniformBlockOpaque(index int) bool {
	return s.uniformBlocks[index].opaque
}

func (s *ShaderResourceInterface) GetUniformBlockStage(index int) ShaderStageType {
	return s.uniformBlocks[index].stage
}

func (s *ShaderResourceInterface) GetUniformBufferObject(index int) *BufferObject {
	return s.uniformBlocks[index].ubo
}

func (s *ShaderResourceInterface) GetActiveAttribMaxLength() int {
	return s.activeAttributeMaxLength
}

func (s *ShaderResourceInterface) GetActiveUniformMaxLength() int {
	return s.activeUniformMaxLength
}

// SerializeReflection emits the retained reflection blob for the program
// binary.
func (s *ShaderResourceInterface) SerializeReflection() []byte {
	if s.savedReflection == nil {
		return nil
	}
	return s.savedReflection.Marshal()
}

func (s *ShaderResourceInterface) GetReflectionSize() int {
	return s.reflectionSize
}

// retireUniformBufferObjects hands every live block buffer to the cache
// manager, where it stays valid until the in-flight frame completes.
func (s *ShaderResourceInterface) retireUniformBufferObjects() {
	for i := range s.uniformBlocks {
		if s.uniformBlocks[i].ubo != nil {
			s.cacheManager.CacheVBO(s.uniformBlocks[i].ubo)
			s.uniformBlocks[i].ubo = nil
		}
	}
}

// Release retires the block buffers to the cache manager and clears the
// tables.
func (s *ShaderResourceInterface) Release() {
	s.retireUniformBufferObjects()
	s.attributes = nil
	s.uniforms = nil
	s.uniformBlocks = nil
	s.clientData = nil
}
