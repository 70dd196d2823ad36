package glove

// pool hands out object names from a monotonically increasing counter. Name
// zero is never valid and names are not recycled, so a stale name can never
// alias a newer object.
type pool[T any] struct {
	objects map[uint32]*T
	nextID  uint32
}

func newPool[T any]() pool[T] {
	return pool[T]{objects: make(map[uint32]*T), nextID: 1}
}

func (p *pool[T]) insert(obj *T) uint32 {
	id := p.nextID
	p.nextID++
	p.objects[id] = obj
	return id
}

func (p *pool[T]) get(id uint32) *T {
	return p.objects[id]
}

func (p *pool[T]) remove(id uint32) *T {
	obj := p.objects[id]
	delete(p.objects, id)
	return obj
}

// ShadingObjectType distinguishes what a shading-namespace name refers to.
// Shaders and programs share one name space in GL.
type ShadingObjectType uint32

const (
	ShadingObjectShader ShadingObjectType = iota
	ShadingObjectProgram
)

type shadingObject struct {
	typ ShadingObjectType
}

// ResourceManager owns every named GL object of a context and the deferred
// deletion machinery. Deleting an object removes it from name lookup
// immediately but frees it only once nothing holds a reference, on the next
// purge sweep.
type ResourceManager struct {
	textures      pool[Texture]
	buffers       pool[BufferObject]
	renderbuffers pool[Renderbuffer]
	framebuffers  pool[Framebuffer]

	shadingObjects map[uint32]shadingObject
	shadingNextID  uint32
	shaders        map[uint32]*Shader
	programs       map[uint32]*ShaderProgram

	purgeShaders       []*Shader
	purgePrograms      []purgedProgram
	purgeTextures      []*Texture
	purgeBuffers       []*BufferObject
	purgeRenderbuffers []*Renderbuffer

	defaultTexture2D      *Texture
	defaultTextureCubeMap *Texture

	genericVertexAttribs []GenericVertexAttribute
}

type purgedProgram struct {
	id      uint32
	program *ShaderProgram
}

func NewResourceManager() *ResourceManager {
	rm := &ResourceManager{
		textures:       newPool[Texture](),
		buffers:        newPool[BufferObject](),
		renderbuffers:  newPool[Renderbuffer](),
		framebuffers:   newPool[Framebuffer](),
		shadingObjects: make(map[uint32]shadingObject),
		shadingNextID:  1,
		shaders:        make(map[uint32]*Shader),
		programs:       make(map[uint32]*ShaderProgram),

		genericVertexAttribs: make([]GenericVertexAttribute, MaxVertexAttribs),
	}
	rm.createDefaultTextures()
	return rm
}

// createDefaultTextures builds the 1x1 opaque black textures that stand in
// for unbound or invalid samplers. Native allocation is deferred to first
// use.
func (r *ResourceManager) createDefaultTextures() {
	black := []byte{0, 0, 0, 255}

	r.defaultTexture2D = NewTexture(TargetTexture2D)
	r.defaultTexture2D.SetState(1, 1, 0, 0, black)

	r.defaultTextureCubeMap = NewTexture(TargetTextureCubeMap)
	for face := 0; face < r.defaultTextureCubeMap.Target().LayerCount(); face++ {
		r.defaultTextureCubeMap.SetState(1, 1, 0, face, black)
	}
}

// DefaultTexture returns the substitute texture for a target.
func (r *ResourceManager) DefaultTexture(target TextureTarget) *Texture {
	if target == TargetTextureCubeMap {
		return r.defaultTextureCubeMap
	}
	return r.defaultTexture2D
}

// GenericVertexAttributes returns the context-wide vertex attribute table.
func (r *ResourceManager) GenericVertexAttributes() []GenericVertexAttribute {
	return r.genericVertexAttribs
}

func (r *ResourceManager) AllocateTexture(target TextureTarget) uint32 {
	return r.textures.insert(NewTexture(target))
}

func (r *ResourceManager) GetTexture(id uint32) *Texture {
	return r.textures.get(id)
}

// DeleteTexture removes the texture from name lookup and parks it for the
// next purge sweep. Framebuffer attachments referencing the name are
// invalidated.
func (r *ResourceManager) DeleteTexture(id uint32) {
	tex := r.textures.remove(id)
	if tex == nil {
		return
	}
	tex.MarkForDeletion()
	r.purgeTextures = append(r.purgeTextures, tex)
	r.UpdateFramebufferObjects(id, AttachmentTexture)
}

func (r *ResourceManager) AllocateVertexBuffer() uint32 {
	return r.buffers.insert(NewVertexBufferObject())
}

func (r *ResourceManager) AllocateIndexBuffer() uint32 {
	return r.buffers.insert(NewIndexBufferObject())
}

func (r *ResourceManager) GetBuffer(id uint32) *BufferObject {
	return r.buffers.get(id)
}

func (r *ResourceManager) DeleteBuffer(id uint32) {
	buf := r.buffers.remove(id)
	if buf == nil {
		return
	}
	buf.MarkForDeletion()
	r.purgeBuffers = append(r.purgeBuffers, buf)
}

func (r *ResourceManager) AllocateRenderbuffer() uint32 {
	return r.renderbuffers.insert(NewRenderbuffer())
}

func (r *ResourceManager) GetRenderbuffer(id uint32) *Renderbuffer {
	return r.renderbuffers.get(id)
}

func (r *ResourceManager) DeleteRenderbuffer(id uint32) {
	rb := r.renderbuffers.remove(id)
	if rb == nil {
		return
	}
	rb.MarkForDeletion()
	r.purgeRenderbuffers = append(r.purgeRenderbuffers, rb)
	r.UpdateFramebufferObjects(id, AttachmentRenderbuffer)
}

func (r *ResourceManager) AllocateFramebuffer() uint32 {
	return r.framebuffers.insert(NewFramebuffer())
}

func (r *ResourceManager) GetFramebuffer(id uint32) *Framebuffer {
	return r.framebuffers.get(id)
}

// DeleteFramebuffer deletes directly; framebuffers hold no refcounted
// native state of their own so they skip the purge list.
func (r *ResourceManager) DeleteFramebuffer(id uint32) {
	r.framebuffers.remove(id)
}

// CreateShader allocates a shading-namespace name bound to a new shader.
func (r *ResourceManager) CreateShader(stage ShaderStageType) uint32 {
	id := r.shadingNextID
	r.shadingNextID++
	r.shadingObjects[id] = shadingObject{typ: ShadingObjectShader}
	r.shaders[id] = NewShader(stage)
	return id
}

// CreateShaderProgram allocates a shading-namespace name bound to a new
// program.
func (r *ResourceManager) CreateShaderProgram(compiler Compiler, cacheManager *CacheManager) uint32 {
	id := r.shadingNextID
	r.shadingNextID++
	r.shadingObjects[id] = shadingObject{typ: ShadingObjectProgram}
	r.programs[id] = NewShaderProgram(compiler, cacheManager)
	return id
}

// IsShadingObject reports whether a name exists in the shading namespace
// with the given type. Name zero is never valid.
func (r *ResourceManager) IsShadingObject(id uint32, typ ShadingObjectType) bool {
	if id == 0 {
		return false
	}
	obj, ok := r.shadingObjects[id]
	return ok && obj.typ == typ
}

func (r *ResourceManager) GetShader(id uint32) *Shader {
	return r.shaders[id]
}

func (r *ResourceManager) GetShaderProgram(id uint32) *ShaderProgram {
	return r.programs[id]
}

// FindShaderID reverse-looks-up the name of a shader object.
func (r *ResourceManager) FindShaderID(s *Shader) uint32 {
	for id, sh := range r.shaders {
		if sh == s {
			return id
		}
	}
	return 0
}

// FindShaderProgramID reverse-looks-up the name of a program object.
func (r *ResourceManager) FindShaderProgramID(p *ShaderProgram) uint32 {
	for id, prog := range r.programs {
		if prog == p {
			return id
		}
	}
	return 0
}

// DeleteShader removes the shader from lookup, releases its name, and parks
// the object for the next purge sweep. Programs still holding it keep it
// alive through its refcount.
func (r *ResourceManager) DeleteShader(id uint32) {
	s := r.shaders[id]
	if s == nil {
		return
	}
	delete(r.shaders, id)
	delete(r.shadingObjects, id)
	s.MarkForDeletion()
	r.purgeShaders = append(r.purgeShaders, s)
}

// DeleteShaderProgram removes the program from lookup and parks it for the
// next purge sweep. Its shading-namespace name is released once the object
// is actually freed.
func (r *ResourceManager) DeleteShaderProgram(id uint32) {
	p := r.programs[id]
	if p == nil {
		return
	}
	delete(r.programs, id)
	p.MarkForDeletion()
	r.purgePrograms = append(r.purgePrograms, purgedProgram{id: id, program: p})
}

// CleanPurgeList frees every parked object whose reference count dropped to
// zero. Freed programs first detach their shaders, which may in turn let a
// parked shader go on the same sweep, and release their namespace name.
func (r *ResourceManager) CleanPurgeList(ctx *Context) {
	kept := r.purgePrograms[:0]
	for _, pp := range r.purgePrograms {
		if !pp.program.FreeForDeletion() {
			kept = append(kept, pp)
			continue
		}
		pp.program.DetachShaders()
		pp.program.ReleaseVkObjects(ctx)
		delete(r.shadingObjects, pp.id)
	}
	r.purgePrograms = kept

	keptShaders := r.purgeShaders[:0]
	for _, s := range r.purgeShaders {
		if !s.FreeForDeletion() {
			keptShaders = append(keptShaders, s)
			continue
		}
		s.ReleaseVkObjects(ctx)
	}
	r.purgeShaders = keptShaders

	keptTextures := r.purgeTextures[:0]
	for _, t := range r.purgeTextures {
		if !t.FreeForDeletion() {
			keptTextures = append(keptTextures, t)
			continue
		}
		t.Release(ctx)
	}
	r.purgeTextures = keptTextures

	keptBuffers := r.purgeBuffers[:0]
	for _, b := range r.purgeBuffers {
		if !b.FreeForDeletion() {
			keptBuffers = append(keptBuffers, b)
			continue
		}
		b.Release(ctx)
	}
	r.purgeBuffers = keptBuffers

	keptRenderbuffers := r.purgeRenderbuffers[:0]
	for _, rb := range r.purgeRenderbuffers {
		if !rb.FreeForDeletion() {
			keptRenderbuffers = append(keptRenderbuffers, rb)
			continue
		}
		rb.Release(ctx)
	}
	r.purgeRenderbuffers = keptRenderbuffers
}

// PendingPurgeCount reports how many objects await a purge sweep.
func (r *ResourceManager) PendingPurgeCount() int {
	return len(r.purgeShaders) + len(r.purgePrograms) + len(r.purgeTextures) +
		len(r.purgeBuffers) + len(r.purgeRenderbuffers)
}

// IsTextureAttachedToFBO reports whether any framebuffer has the texture
// attached.
func (r *ResourceManager) IsTextureAttachedToFBO(tex *Texture) bool {
	return r.FramebufferAttachedTo(tex) != nil
}

// FramebufferAttachedTo returns a framebuffer the texture is attached to,
// or nil.
func (r *ResourceManager) FramebufferAttachedTo(tex *Texture) *Framebuffer {
	for _, fb := range r.framebuffers.objects {
		if fb.HasTextureAttachment(tex) {
			return fb
		}
	}
	return nil
}

// UpdateFramebufferObjects invalidates every framebuffer attachment that
// references a deleted object name.
func (r *ResourceManager) UpdateFramebufferObjects(name uint32, typ AttachmentType) {
	for _, fb := range r.framebuffers.objects {
		fb.InvalidateAttachment(typ, name)
	}
}

// Release frees every object the manager still tracks, live or parked.
func (r *ResourceManager) Release(ctx *Context) {
	for id, p := range r.programs {
		p.DetachShaders()
		p.ReleaseVkObjects(ctx)
		delete(r.programs, id)
	}
	for _, pp := range r.purgePrograms {
		pp.program.DetachShaders()
		pp.program.ReleaseVkObjects(ctx)
	}
	r.purgePrograms = nil

	for id, s := range r.shaders {
		s.ReleaseVkObjects(ctx)
		delete(r.shaders, id)
	}
	for _, s := range r.purgeShaders {
		s.ReleaseVkObjects(ctx)
	}
	r.purgeShaders = nil

	for id, t := range r.textures.objects {
		t.Release(ctx)
		delete(r.textures.objects, id)
	}
	for _, t := range r.purgeTextures {
		t.Release(ctx)
	}
	r.purgeTextures = nil

	for id, b := range r.buffers.objects {
		b.Release(ctx)
		delete(r.buffers.objects, id)
	}
	for _, b := range r.purgeBuffers {
		b.Release(ctx)
	}
	r.purgeBuffers = nil

	for id, rb := range r.renderbuffers.objects {
		rb.Release(ctx)
		delete(r.renderbuffers.objects, id)
	}
	for _, rb := range r.purgeRenderbuffers {
		rb.Release(ctx)
	}
	r.purgeRenderbuffers = nil

	for id := range r.framebuffers.objects {
		delete(r.framebuffers.objects, id)
	}
	r.shadingObjects = make(map[uint32]shadingObject)

	for i := range r.genericVertexAttribs {
		r.genericVertexAttribs[i].Release(ctx)
	}

	if r.defaultTexture2D != nil {
		r.defaultTexture2D.Release(ctx)
	}
	if r.defaultTextureCubeMap != nil {
		r.defaultTextureCubeMap.Release(ctx)
	}
}
