package glove

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

const texturePixelBytes = 4

type textureLevelState struct {
	width  int
	height int
	data   []byte
	set    bool
}

// Texture is a GL texture backed by a host-visible native image. Pixel data
// is shadowed per layer and level so completeness can be judged and the
// native image rebuilt without asking the application again.
type Texture struct {
	refObject

	target TextureTarget
	format vk.Format

	magFilter vk.Filter
	minFilter vk.Filter
	wrapU     vk.SamplerAddressMode
	wrapV     vk.SamplerAddressMode

	// states[layer][level]
	states [][]textureLevelState

	deviceImage *DeviceImage
	vkImageView vk.ImageView
	hasView     bool

	vkSampler    vk.Sampler
	hasSampler   bool
	samplerDirty bool

	dataDirty bool
}

func NewTexture(target TextureTarget) *Texture {
	t := &Texture{
		target:    target,
		format:    vk.FormatR8g8b8a8Unorm,
		magFilter: vk.FilterNearest,
		minFilter: vk.FilterNearest,
		wrapU:     vk.SamplerAddressModeRepeat,
		wrapV:     vk.SamplerAddressModeRepeat,
	}
	t.states = make([][]textureLevelState, target.LayerCount())
	return t
}

func (t *Texture) Target() TextureTarget {
	return t.target
}

func (t *Texture) Format() vk.Format {
	return t.format
}

func (t *Texture) Width() int {
	if len(t.states[0]) == 0 {
		return 0
	}
	return t.states[0][0].width
}

func (t *Texture) Height() int {
	if len(t.states[0]) == 0 {
		return 0
	}
	return t.states[0][0].height
}

func (t *Texture) MipLevels() int {
	levels := 0
	for _, s := range t.states[0] {
		if !s.set {
			break
		}
		levels++
	}
	return levels
}

// SetFilters updates the sampling filters; the native sampler is rebuilt on
// next use.
func (t *Texture) SetFilters(magFilter, minFilter vk.Filter) {
	t.magFilter = magFilter
	t.minFilter = minFilter
	t.samplerDirty = true
}

// SetWrapModes updates the texture coordinate wrap modes; the native sampler
// is rebuilt on next use.
func (t *Texture) SetWrapModes(wrapU, wrapV vk.SamplerAddressMode) {
	t.wrapU = wrapU
	t.wrapV = wrapV
	t.samplerDirty = true
}

// SetState records pixel data for one layer and level. A nil data slice
// defines the level's dimensions without contents.
func (t *Texture) SetState(width, height, level, layer int, data []byte) {
	for len(t.states[layer]) <= level {
		t.states[layer] = append(t.states[layer], textureLevelState{})
	}

	st := &t.states[layer][level]
	st.width = width
	st.height = height
	st.set = true
	if data != nil {
		st.data = append([]byte(nil), data...)
	} else {
		st.data = make([]byte, width*height*texturePixelBytes)
	}
	t.dataDirty = true
}

func (t *Texture) levelState(layer, level int) *textureLevelState {
	if layer >= len(t.states) || level >= len(t.states[layer]) {
		return nil
	}
	st := &t.states[layer][level]
	if !st.set {
		return nil
	}
	return st
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// IsCompleted reports texture completeness: every layer defines level 0 with
// matching dimensions, and whatever mip levels exist form a proper halving
// chain, identical across layers.
func (t *Texture) IsCompleted() bool {
	base := t.levelState(0, 0)
	if base == nil || base.width == 0 || base.height == 0 {
		return false
	}

	levels := t.MipLevels()
	usesMipmaps := t.minFilter != vk.FilterNearest && t.minFilter != vk.FilterLinear
	if usesMipmaps && levels < fullMipChain(base.width, base.height) {
		return false
	}

	for layer := range t.states {
		w, h := base.width, base.height
		for level := 0; level < levels; level++ {
			st := t.levelState(layer, level)
			if st == nil || st.width != w || st.height != h {
				return false
			}
			if w > 1 {
				w >>= 1
			}
			if h > 1 {
				h >>= 1
			}
		}
	}
	return true
}

func fullMipChain(width, height int) int {
	levels := 1
	for width > 1 || height > 1 {
		if width > 1 {
			width >>= 1
		}
		if height > 1 {
			height >>= 1
		}
		levels++
	}
	return levels
}

// IsNPOTAccessCompleted reports whether sampling the texture is valid given
// its dimensions: non-power-of-two textures must use clamp-to-edge wrapping
// and non-mipmapped minification.
func (t *Texture) IsNPOTAccessCompleted() bool {
	base := t.levelState(0, 0)
	if base == nil {
		return false
	}
	if isPowerOfTwo(base.width) && isPowerOfTwo(base.height) {
		return true
	}
	if t.wrapU != vk.SamplerAddressModeClampToEdge || t.wrapV != vk.SamplerAddressModeClampToEdge {
		return false
	}
	return t.minFilter == vk.FilterNearest || t.minFilter == vk.FilterLinear
}

func (t *Texture) viewType() vk.ImageViewType {
	if t.target == TargetTextureCubeMap {
		return vk.ImageViewTypeCube
	}
	return vk.ImageViewType2d
}

// Allocate builds the native image and view from the shadowed state and
// uploads every defined level. Existing native objects are replaced.
func (t *Texture) Allocate(ctx *Context) error {
	base := t.levelState(0, 0)
	if base == nil {
		return fmt.Errorf("texture has no level 0 state")
	}

	t.releaseImage(ctx)

	levels := t.MipLevels()
	img, err := ctx.Dispatch.CreateImage(base.width, base.height, t.target.LayerCount(), levels,
		t.format, vk.ImageUsageSampledBit|vk.ImageUsageTransferSrcBit|vk.ImageUsageTransferDstBit)
	if err != nil {
		return err
	}
	t.deviceImage = img

	for layer := range t.states {
		for level := 0; level < levels; level++ {
			st := t.levelState(layer, level)
			if st == nil || len(st.data) == 0 {
				continue
			}
			if err := ctx.Dispatch.WriteImage(img, layer, level, st.data); err != nil {
				return err
			}
		}
	}

	view, err := ctx.Dispatch.CreateImageView(img, t.viewType())
	if err != nil {
		return err
	}
	t.vkImageView = view
	t.hasView = true
	t.dataDirty = false
	return nil
}

func (t *Texture) HasImage() bool {
	return t.deviceImage != nil
}

func (t *Texture) IsDataDirty() bool {
	return t.dataDirty
}

func (t *Texture) GetVkImageView() vk.ImageView {
	return t.vkImageView
}

// CreateVkSampler returns the texture's native sampler, creating or
// recreating it only when missing or stale.
func (t *Texture) CreateVkSampler(ctx *Context) (vk.Sampler, error) {
	if t.hasSampler && !t.samplerDirty {
		return t.vkSampler, nil
	}
	if t.hasSampler {
		ctx.Dispatch.DestroySampler(t.vkSampler)
		t.hasSampler = false
	}

	// Mipmapped GL filters collapse to the base filter; level selection is
	// carried by the sampler mipmap mode which stays nearest here since the
	// runtime uploads explicit levels.
	sampler, err := ctx.Dispatch.CreateSampler(t.magFilter, baseFilter(t.minFilter), t.wrapU, t.wrapV)
	if err != nil {
		return vk.NullSampler, err
	}
	t.vkSampler = sampler
	t.hasSampler = true
	t.samplerDirty = false
	return sampler, nil
}

func baseFilter(f vk.Filter) vk.Filter {
	if f == vk.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

// ReadPixels reads back one layer and level from the native image.
func (t *Texture) ReadPixels(ctx *Context, layer, level int) ([]byte, error) {
	if t.deviceImage == nil {
		return nil, fmt.Errorf("texture has no native image")
	}
	st := t.levelState(layer, level)
	if st == nil {
		return nil, fmt.Errorf("texture layer %d level %d undefined", layer, level)
	}

	data := make([]byte, st.width*st.height*texturePixelBytes)
	if err := ctx.Dispatch.ReadImage(t.deviceImage, layer, level, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (t *Texture) releaseImage(ctx *Context) {
	if t.hasView {
		ctx.Dispatch.DestroyImageView(t.vkImageView)
		t.hasView = false
	}
	if t.deviceImage != nil {
		ctx.Dispatch.DestroyImage(t.deviceImage)
		t.deviceImage = nil
	}
}

// Release destroys every native object the texture owns.
func (t *Texture) Release(ctx *Context) {
	if t.hasSampler {
		ctx.Dispatch.DestroySampler(t.vkSampler)
		t.hasSampler = false
	}
	t.releaseImage(ctx)
}
