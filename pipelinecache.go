package glove

// PipelineCache wraps the native pipeline cache a linked program owns. It is
// created empty at link time or seeded from a program binary.
type PipelineCache struct {
	cache *DevicePipelineCache
}

func NewPipelineCache() *PipelineCache {
	return &PipelineCache{}
}

// Create builds the native cache, seeding it with data when provided. Any
// previous cache is destroyed first.
func (p *PipelineCache) Create(ctx *Context, data []byte) error {
	p.Release(ctx)

	cache, err := ctx.Dispatch.CreatePipelineCache(data)
	if err != nil {
		return err
	}
	p.cache = cache
	return nil
}

// GetData returns the driver's serialized cache contents, or nil when no
// cache exists.
func (p *PipelineCache) GetData(ctx *Context) ([]byte, error) {
	if p.cache == nil {
		return nil, nil
	}
	return ctx.Dispatch.GetPipelineCacheData(p.cache)
}

func (p *PipelineCache) GetDeviceCache() *DevicePipelineCache {
	return p.cache
}

func (p *PipelineCache) Release(ctx *Context) {
	if p.cache != nil {
		ctx.Dispatch.DestroyPipelineCache(p.cache)
		p.cache = nil
	}
}
