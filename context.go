package glove

// Context carries the per-context state the runtime core needs while
// servicing a call: the native device dispatch, the object tables, and the
// few pieces of draw state (primitive mode, active textures, Y orientation)
// that leak into resource preparation. Callers thread it explicitly; there is
// no ambient current context.
type Context struct {
	Dispatch        Dispatch
	ResourceManager *ResourceManager
	CacheManager    *CacheManager

	yInverted      bool
	primitiveMode  PrimitiveMode
	activeTextures [2][MaxTextureUnits]*Texture
}

// NewContext creates a context bound to the given device dispatch with fresh
// resource and cache managers.
func NewContext(d Dispatch) *Context {
	return &Context{
		Dispatch:        d,
		ResourceManager: NewResourceManager(),
		CacheManager:    NewCacheManager(),
	}
}

// SetYInverted sets whether clip-space Y must be flipped for the surface the
// context presents to.
func (c *Context) SetYInverted(inverted bool) {
	c.yInverted = inverted
}

func (c *Context) IsYInverted() bool {
	return c.yInverted
}

// SetPrimitiveMode records the topology of the draw call being prepared.
func (c *Context) SetPrimitiveMode(mode PrimitiveMode) {
	c.primitiveMode = mode
}

func (c *Context) PrimitiveMode() PrimitiveMode {
	return c.primitiveMode
}

// IsModeLineLoop reports whether the pending draw uses a line-loop topology,
// which needs closing-segment fixups in vertex and index preparation.
func (c *Context) IsModeLineLoop() bool {
	return c.primitiveMode == PrimitiveLineLoop
}

// BindTexture makes tex the active texture for the given target and unit.
// A nil tex unbinds.
func (c *Context) BindTexture(target TextureTarget, unit int, tex *Texture) {
	c.activeTextures[target][unit] = tex
}

// ActiveTexture returns the texture bound to the given target and unit, or
// the resource manager's default texture for that target when none is bound.
func (c *Context) ActiveTexture(target TextureTarget, unit int) *Texture {
	if tex := c.activeTextures[target][unit]; tex != nil {
		return tex
	}
	return c.ResourceManager.DefaultTexture(target)
}

// Release frees every native object the context's managers still hold.
func (c *Context) Release() {
	c.CacheManager.CleanUp(c)
	c.ResourceManager.Release(c)
}
