package glove

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

// fakeDispatch satisfies Dispatch with in-memory state keyed by the wrapper
// pointers, so the runtime machinery runs without a driver. It records an
// event trail for ordering assertions.
type fakeDispatch struct {
	buffers map[*DeviceBuffer][]byte
	images  map[*DeviceImage]map[[2]int][]byte
	caches  map[*DevicePipelineCache][]byte

	liveModules   int
	liveSamplers  int
	liveViews     int
	liveLayouts   int
	livePools     int
	liveSets      int
	livePipLayout int

	destroyedBuffers int
	destroyedImages  int

	updateCalls int
	lastWrites  []vk.WriteDescriptorSet

	events []string
}

func newFakeDispatch() *fakeDispatch {
	return &fakeDispatch{
		buffers: make(map[*DeviceBuffer][]byte),
		images:  make(map[*DeviceImage]map[[2]int][]byte),
		caches:  make(map[*DevicePipelineCache][]byte),
	}
}

func (f *fakeDispatch) CreateShaderModule(spirv []uint32) (vk.ShaderModule, error) {
	f.liveModules++
	f.events = append(f.events, "create-module")
	return vk.NullShaderModule, nil
}

func (f *fakeDispatch) DestroyShaderModule(module vk.ShaderModule) {
	f.liveModules--
	f.events = append(f.events, "destroy-module")
}

func (f *fakeDispatch) CreateBuffer(size int, usage vk.BufferUsageFlagBits) (*DeviceBuffer, error) {
	buf := &DeviceBuffer{Size: size}
	f.buffers[buf] = make([]byte, size)
	return buf, nil
}

func (f *fakeDispatch) WriteBuffer(buffer *DeviceBuffer, offset int, data []byte) error {
	copy(f.buffers[buffer][offset:], data)
	return nil
}

func (f *fakeDispatch) ReadBuffer(buffer *DeviceBuffer, offset int, data []byte) error {
	copy(data, f.buffers[buffer][offset:])
	return nil
}

func (f *fakeDispatch) DestroyBuffer(buffer *DeviceBuffer) {
	delete(f.buffers, buffer)
	f.destroyedBuffers++
}

func (f *fakeDispatch) CreateImage(width, height, layers, levels int, format vk.Format, usage vk.ImageUsageFlagBits) (*DeviceImage, error) {
	img := &DeviceImage{Width: width, Height: height, Layers: layers, Levels: levels, Format: format}
	f.images[img] = make(map[[2]int][]byte)
	return img, nil
}

func (f *fakeDispatch) WriteImage(image *DeviceImage, layer, level int, data []byte) error {
	f.images[image][[2]int{layer, level}] = append([]byte(nil), data...)
	return nil
}

func (f *fakeDispatch) ReadImage(image *DeviceImage, layer, level int, data []byte) error {
	copy(data, f.images[image][[2]int{layer, level}])
	return nil
}

func (f *fakeDispatch) DestroyImage(image *DeviceImage) {
	delete(f.images, image)
	f.destroyedImages++
}

func (f *fakeDispatch) CreateImageView(image *DeviceImage, viewType vk.ImageViewType) (vk.ImageView, error) {
	f.liveViews++
	return vk.NullImageView, nil
}

func (f *fakeDispatch) DestroyImageView(view vk.ImageView) {
	f.liveViews--
}

func (f *fakeDispatch) CreateSampler(magFilter, minFilter vk.Filter, wrapU, wrapV vk.SamplerAddressMode) (vk.Sampler, error) {
	f.liveSamplers++
	return vk.NullSampler, nil
}

func (f *fakeDispatch) DestroySampler(sampler vk.Sampler) {
	f.liveSamplers--
}

func (f *fakeDispatch) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	f.liveLayouts++
	f.events = append(f.events, "create-layout")
	return vk.NullDescriptorSetLayout, nil
}

func (f *fakeDispatch) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	f.liveLayouts--
	f.events = append(f.events, "destroy-layout")
}

func (f *fakeDispatch) CreateDescriptorPool(sizes []vk.DescriptorPoolSize, maxSets int) (vk.DescriptorPool, error) {
	f.livePools++
	f.events = append(f.events, "create-pool")
	return vk.NullDescriptorPool, nil
}

func (f *fakeDispatch) DestroyDescriptorPool(pool vk.DescriptorPool) {
	f.livePools--
	f.events = append(f.events, "destroy-pool")
}

func (f *fakeDispatch) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	f.liveSets++
	f.events = append(f.events, "allocate-set")
	return vk.NullDescriptorSet, nil
}

func (f *fakeDispatch) FreeDescriptorSet(pool vk.DescriptorPool, set vk.DescriptorSet) error {
	f.liveSets--
	f.events = append(f.events, "free-set")
	return nil
}

func (f *fakeDispatch) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	f.updateCalls++
	f.lastWrites = writes
}

func (f *fakeDispatch) CreatePipelineLayout(layout vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	f.livePipLayout++
	f.events = append(f.events, "create-pipeline-layout")
	return vk.NullPipelineLayout, nil
}

func (f *fakeDispatch) DestroyPipelineLayout(layout vk.PipelineLayout) {
	f.livePipLayout--
	f.events = append(f.events, "destroy-pipeline-layout")
}

func (f *fakeDispatch) CreatePipelineCache(initialData []byte) (*DevicePipelineCache, error) {
	cache := &DevicePipelineCache{}
	f.caches[cache] = append([]byte(nil), initialData...)
	return cache, nil
}

func (f *fakeDispatch) GetPipelineCacheData(cache *DevicePipelineCache) ([]byte, error) {
	return f.caches[cache], nil
}

func (f *fakeDispatch) DestroyPipelineCache(cache *DevicePipelineCache) {
	delete(f.caches, cache)
}

// fakeCompiler hands back canned reflection and SPIR-V.
type fakeCompiler struct {
	reflection *Reflection
	linkOK     bool
	validateOK bool
	infoLog    string

	vsSPV []uint32
	fsSPV []uint32

	prepareCalls    int
	preprocessCalls int
	linkCalls       int
}

func newFakeCompiler(r *Reflection) *fakeCompiler {
	return &fakeCompiler{
		reflection: r,
		linkOK:     true,
		validateOK: true,
		vsSPV:      []uint32{0x07230203, 1, 2, 3},
		fsSPV:      []uint32{0x07230203, 9, 8, 7, 6},
	}
}

func (c *fakeCompiler) ValidateProgram(vs, fs *Shader) bool {
	return c.validateOK
}

func (c *fakeCompiler) PrepareReflection() {
	c.prepareCalls++
}

func (c *fakeCompiler) PreprocessShader(stage ShaderStageType, yInverted bool) bool {
	c.preprocessCalls++
	return true
}

func (c *fakeCompiler) LinkProgram(vs, fs *Shader) bool {
	c.linkCalls++
	if !c.linkOK {
		return false
	}
	vs.SetSPV(c.vsSPV)
	fs.SetSPV(c.fsSPV)
	return true
}

func (c *fakeCompiler) GetReflection() *Reflection {
	return c.reflection
}

func (c *fakeCompiler) GetProgramInfoLog() string {
	return c.infoLog
}

// basicReflection is a two-attribute program with one uniform block and one
// 2D sampler.
func basicReflection() *Reflection {
	return &Reflection{
		Attributes: []ReflectionAttribute{
			{Name: "a_position", Type: TypeVec4, Location: 0},
			{Name: "a_uv", Type: TypeVec2, Location: 1},
		},
		Uniforms: []ReflectionUniform{
			{Name: "u_mvp", Type: TypeMat4, Location: 0, ArraySize: 1, Offset: 0, BlockIndex: 0},
			{Name: "u_color", Type: TypeVec4, Location: 1, ArraySize: 1, Offset: 64, BlockIndex: 0},
			{Name: "u_tex", Type: TypeSampler2D, Location: 2, ArraySize: 1, Offset: 0, BlockIndex: 1},
		},
		UniformBlocks: []ReflectionUniformBlock{
			{Name: "vs_block", Binding: 0, BlockSize: 80, Stage: ShaderStageVertex},
			{Name: "sampler_u_tex", Binding: 1, BlockSize: 0, Stage: ShaderStageFragment, Opaque: true},
		},
	}
}

// linkedProgram builds a context and a program linked against the given
// reflection.
func linkedProgram(t *testing.T, r *Reflection) (*Context, *ShaderProgram, *fakeCompiler, *fakeDispatch) {
	t.Helper()

	fake := newFakeDispatch()
	ctx := NewContext(fake)
	compiler := newFakeCompiler(r)

	p := NewShaderProgram(compiler, ctx.CacheManager)
	vs := NewShader(ShaderStageVertex)
	vs.SetCompiled(true)
	fs := NewShader(ShaderStageFragment)
	fs.SetCompiled(true)
	p.AttachShader(vs)
	p.AttachShader(fs)

	ok, err := p.LinkProgram(ctx)
	if err != nil {
		t.Fatalf("LinkProgram: %v", err)
	}
	if !ok {
		t.Fatalf("LinkProgram failed")
	}
	return ctx, p, compiler, fake
}

// completeTexture builds an allocated 2x2 texture.
func completeTexture(ctx *Context) *Texture {
	tex := NewTexture(TargetTexture2D)
	tex.SetState(2, 2, 0, 0, []byte{
		1, 0, 0, 255, 0, 1, 0, 255,
		0, 0, 1, 255, 1, 1, 1, 255,
	})
	return tex
}
