package glove

import (
	vk "github.com/vulkan-go/vulkan"
)

// Renderbuffer is an offscreen attachment surface. It reuses the texture
// machinery for its backing image; the separate type exists because GL names
// renderbuffers in their own namespace with their own attachment semantics.
type Renderbuffer struct {
	refObject

	format  vk.Format
	texture *Texture
}

func NewRenderbuffer() *Renderbuffer {
	return &Renderbuffer{
		format:  vk.FormatR8g8b8a8Unorm,
		texture: NewTexture(TargetTexture2D),
	}
}

// SetStorage defines the renderbuffer's dimensions and allocates its
// backing image.
func (r *Renderbuffer) SetStorage(ctx *Context, width, height int) error {
	r.texture.SetState(width, height, 0, 0, nil)
	return r.texture.Allocate(ctx)
}

func (r *Renderbuffer) Width() int {
	return r.texture.Width()
}

func (r *Renderbuffer) Height() int {
	return r.texture.Height()
}

func (r *Renderbuffer) GetTexture() *Texture {
	return r.texture
}

func (r *Renderbuffer) Release(ctx *Context) {
	r.texture.Release(ctx)
}
