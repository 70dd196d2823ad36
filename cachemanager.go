package glove

// CacheManager parks native-backed objects that went out of use mid-frame
// but may still be referenced by commands in flight. CleanUp runs once the
// device is known to be done with them.
type CacheManager struct {
	vbos     []*BufferObject
	textures []*Texture
}

func NewCacheManager() *CacheManager {
	return &CacheManager{}
}

// CacheVBO defers destruction of a buffer object.
func (c *CacheManager) CacheVBO(vbo *BufferObject) {
	c.vbos = append(c.vbos, vbo)
}

// CacheTexture defers destruction of a texture.
func (c *CacheManager) CacheTexture(tex *Texture) {
	c.textures = append(c.textures, tex)
}

func (c *CacheManager) CachedVBOCount() int {
	return len(c.vbos)
}

func (c *CacheManager) CachedTextureCount() int {
	return len(c.textures)
}

// CleanUp destroys everything parked since the last call.
func (c *CacheManager) CleanUp(ctx *Context) {
	for _, vbo := range c.vbos {
		vbo.Release(ctx)
	}
	c.vbos = c.vbos[:0]

	for _, tex := range c.textures {
		tex.Release(ctx)
	}
	c.textures = c.textures[:0]
}
