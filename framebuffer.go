package glove

// framebufferAttachment records what object is cached at one attachment
// point of a framebuffer.
type framebufferAttachment struct {
	typ          AttachmentType
	name         uint32
	texture      *Texture
	renderbuffer *Renderbuffer
}

func (a *framebufferAttachment) clear() {
	*a = framebufferAttachment{}
}

// Framebuffer is a render target assembled from texture and renderbuffer
// attachments. The updated flag tells samplers bound to an attached texture
// that the attachment contents may have changed since they last copied it.
type Framebuffer struct {
	colorAttachment   framebufferAttachment
	depthAttachment   framebufferAttachment
	stencilAttachment framebufferAttachment

	updated bool
}

func NewFramebuffer() *Framebuffer {
	return &Framebuffer{updated: true}
}

func (f *Framebuffer) attachmentPoints() [3]*framebufferAttachment {
	return [3]*framebufferAttachment{&f.colorAttachment, &f.depthAttachment, &f.stencilAttachment}
}

// CacheColorTexture attaches a texture to the color attachment point.
func (f *Framebuffer) CacheColorTexture(tex *Texture, name uint32) {
	f.colorAttachment = framebufferAttachment{typ: AttachmentTexture, name: name, texture: tex}
	f.updated = true
}

// CacheColorRenderbuffer attaches a renderbuffer to the color attachment
// point.
func (f *Framebuffer) CacheColorRenderbuffer(rb *Renderbuffer, name uint32) {
	f.colorAttachment = framebufferAttachment{typ: AttachmentRenderbuffer, name: name, renderbuffer: rb}
	f.updated = true
}

// CacheDepthRenderbuffer attaches a renderbuffer to the depth attachment
// point.
func (f *Framebuffer) CacheDepthRenderbuffer(rb *Renderbuffer, name uint32) {
	f.depthAttachment = framebufferAttachment{typ: AttachmentRenderbuffer, name: name, renderbuffer: rb}
	f.updated = true
}

// CacheStencilRenderbuffer attaches a renderbuffer to the stencil attachment
// point.
func (f *Framebuffer) CacheStencilRenderbuffer(rb *Renderbuffer, name uint32) {
	f.stencilAttachment = framebufferAttachment{typ: AttachmentRenderbuffer, name: name, renderbuffer: rb}
	f.updated = true
}

// ColorTexture returns the texture attached at the color attachment point,
// or nil.
func (f *Framebuffer) ColorTexture() *Texture {
	if f.colorAttachment.typ == AttachmentTexture {
		return f.colorAttachment.texture
	}
	return nil
}

// HasTextureAttachment reports whether tex is attached at any attachment
// point.
func (f *Framebuffer) HasTextureAttachment(tex *Texture) bool {
	for _, a := range f.attachmentPoints() {
		if a.typ == AttachmentTexture && a.texture == tex {
			return true
		}
	}
	return false
}

// InvalidateAttachment drops any attachment of the given type referencing
// the named object; used when the object is deleted out from under the
// framebuffer.
func (f *Framebuffer) InvalidateAttachment(typ AttachmentType, name uint32) {
	for _, a := range f.attachmentPoints() {
		if a.typ == typ && a.name == name {
			a.clear()
			f.updated = true
		}
	}
}

// SetUpdated marks the framebuffer contents as changed since the last
// sampler copy.
func (f *Framebuffer) SetUpdated() {
	f.updated = true
}

func (f *Framebuffer) IsUpdated() bool {
	return f.updated
}

func (f *Framebuffer) ClearUpdated() {
	f.updated = false
}
