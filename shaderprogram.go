package glove

import (
	"encoding/binary"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

const (
	stageVertexIndex   = 0
	stageFragmentIndex = 1
	stageCount         = 2
)

type samplerCacheEntry struct {
	unit     int32
	tex      *Texture
	resolved *Texture
}

// ShaderProgram owns everything a linked program needs to draw: the attached
// shaders, the compiler collaborator, the resource interface, the native
// descriptor objects, the pipeline cache, and the per-draw vertex and index
// input state.
type ShaderProgram struct {
	refObject

	compiler  Compiler
	resources *ShaderResourceInterface

	shaders [stageCount]*Shader

	linked      bool
	validated   bool
	precompiled bool

	shaderSPVs           [stageCount][]uint32
	vkShaderModules      [stageCount]vk.ShaderModule
	hasShaderModules     bool
	pipelineShaderStages [stageCount]vk.PipelineShaderStageCreateInfo

	pipelineCache *PipelineCache

	vkDescSetLayout   vk.DescriptorSetLayout
	hasDescSetLayout  bool
	vkDescPool        vk.DescriptorPool
	hasDescPool       bool
	vkDescSet         vk.DescriptorSet
	hasDescSet        bool
	vkPipelineLayout  vk.PipelineLayout
	hasPipelineLayout bool

	// updateDescriptorData marks dirty uniform client data awaiting a buffer
	// flush; updateDescriptorSets marks stale descriptor contents awaiting a
	// batched native write.
	updateDescriptorData bool
	updateDescriptorSets bool

	cachedSamplers map[uint32]*samplerCacheEntry

	// Initialized inverted so the first depth-range update always lands.
	minDepthRange float32
	maxDepthRange float32

	vertexBindings          []vertexBindingKey
	vertexAttributes        []vertexAttributeSlot
	vkBindingDescriptions   []vk.VertexInputBindingDescription
	vkAttributeDescriptions []vk.VertexInputAttributeDescription
	activeVertexVkBuffers   []vk.Buffer
	vertexInputDirty        bool

	activeIndexVkBuffer  vk.Buffer
	hasActiveIndexBuffer bool
	vkIndexType          vk.IndexType
	explicitIbo          *BufferObject
}

func NewShaderProgram(compiler Compiler, cacheManager *CacheManager) *ShaderProgram {
	return &ShaderProgram{
		compiler:         compiler,
		resources:        NewShaderResourceInterface(cacheManager),
		pipelineCache:    NewPipelineCache(),
		cachedSamplers:   make(map[uint32]*samplerCacheEntry),
		minDepthRange:    1.0,
		maxDepthRange:    0.0,
		vertexInputDirty: true,
	}
}

func stageIndex(stage ShaderStageType) int {
	if stage == ShaderStageFragment {
		return stageFragmentIndex
	}
	return stageVertexIndex
}

// AttachShader attaches a shader to its stage slot. Attachment fails when
// the slot is occupied.
func (p *ShaderProgram) AttachShader(s *Shader) bool {
	idx := stageIndex(s.Stage())
	if p.shaders[idx] != nil {
		return false
	}
	p.shaders[idx] = s
	s.Bind()
	return true
}

// DetachShader removes a shader from the program if it is attached.
func (p *ShaderProgram) DetachShader(s *Shader) bool {
	for i := range p.shaders {
		if p.shaders[i] == s {
			p.shaders[i] = nil
			s.Unbind()
			return true
		}
	}
	return false
}

// DetachShaders removes whatever shaders are attached.
func (p *ShaderProgram) DetachShaders() {
	for i := range p.shaders {
		if p.shaders[i] != nil {
			p.shaders[i].Unbind()
			p.shaders[i] = nil
		}
	}
}

func (p *ShaderProgram) IsShaderAttached(s *Shader) bool {
	for i := range p.shaders {
		if p.shaders[i] == s {
			return true
		}
	}
	return false
}

func (p *ShaderProgram) AttachedShader(stage ShaderStageType) *Shader {
	return p.shaders[stageIndex(stage)]
}

func (p *ShaderProgram) AttachedShaderCount() int {
	n := 0
	for i := range p.shaders {
		if p.shaders[i] != nil {
			n++
		}
	}
	return n
}

func (p *ShaderProgram) IsLinked() bool {
	return p.linked
}

func (p *ShaderProgram) IsPrecompiled() bool {
	return p.precompiled
}

// LinkProgram runs the full link pipeline: both stages must hold compiled
// shaders, the vertex input is reset, the compiler's reflection pre-pass
// settles attribute locations, each stage is preprocessed for the surface
// orientation, the cross-stage link runs, and on success the program builds
// its resource interface and descriptor objects. A link whose interface
// exceeds the implementation limits fails even though the compiler
// succeeded. The boolean is the link status; the error reports native
// failures only.
func (p *ShaderProgram) LinkProgram(ctx *Context) (bool, error) {
	vs := p.shaders[stageVertexIndex]
	fs := p.shaders[stageFragmentIndex]
	if vs == nil || fs == nil || !vs.IsCompiled() || !fs.IsCompiled() {
		return false, nil
	}

	p.linked = false
	p.precompiled = false
	p.ResetVulkanVertexInput()

	p.compiler.PrepareReflection()
	p.resources.UpdateAttributeInterface(p.compiler.GetReflection())

	if !p.compiler.PreprocessShader(ShaderStageVertex, ctx.IsYInverted()) {
		return false, nil
	}
	if !p.compiler.PreprocessShader(ShaderStageFragment, ctx.IsYInverted()) {
		return false, nil
	}

	if !p.compiler.LinkProgram(vs, fs) {
		return false, nil
	}

	p.shaderSPVs[stageVertexIndex] = vs.GetSPV()
	p.shaderSPVs[stageFragmentIndex] = fs.GetSPV()

	if err := p.buildShaderResourceInterface(ctx); err != nil {
		return false, err
	}

	if !p.withinLimits() {
		p.ReleaseVkObjects(ctx)
		return false, nil
	}

	if err := p.pipelineCache.Create(ctx, nil); err != nil {
		return false, err
	}

	p.linked = true
	return true, nil
}

// withinLimits enforces the post-link interface limits: attribute locations
// and per-stage uniform vector counts.
func (p *ShaderProgram) withinLimits() bool {
	locations := uint32(0)
	for i := range p.resources.attributes {
		a := &p.resources.attributes[i]
		occupied := a.typ.OccupiedLocations()
		// Each attribute must fit inside the slot table, not just the sum.
		if a.location+occupied > MaxVertexAttribs {
			return false
		}
		locations += occupied
	}
	if locations > MaxVertexAttribs {
		return false
	}

	var vsVectors, fsVectors int
	for i := range p.resources.uniforms {
		u := &p.resources.uniforms[i]
		if u.blockIndex < 0 || int(u.blockIndex) >= len(p.resources.uniformBlocks) {
			continue
		}
		vectors := int(u.arraySize) * ((u.typ.ByteSize() + 15) / 16)
		stage := p.resources.uniformBlocks[u.blockIndex].stage
		if stage&ShaderStageVertex != 0 {
			vsVectors += vectors
		}
		if stage&ShaderStageFragment != 0 {
			fsVectors += vectors
		}
	}
	return vsVectors <= MaxVertexUniformVectors && fsVectors <= MaxFragmentUniformVectors
}

func (p *ShaderProgram) buildShaderResourceInterface(ctx *Context) error {
	p.resources.CreateInterface(p.compiler.GetReflection())
	if err := p.resources.AllocateUniformBufferObjects(ctx); err != nil {
		return err
	}
	if err := p.AllocateVkDescriptorSet(ctx); err != nil {
		return err
	}
	p.updateDescriptorData = true
	p.updateDescriptorSets = true
	return nil
}

// AllocateVkDescriptorSet rebuilds the program's descriptor objects from its
// uniform blocks. The layout and pipeline layout always exist after a
// successful call; pool and set exist only when the program has blocks to
// describe.
func (p *ShaderProgram) AllocateVkDescriptorSet(ctx *Context) error {
	p.releaseDescriptorObjects(ctx)

	var bindings []vk.DescriptorSetLayoutBinding
	uboCount := 0
	samplerCount := 0
	for i := range p.resources.uniformBlocks {
		b := &p.resources.uniformBlocks[i]
		descType := vk.DescriptorTypeUniformBuffer
		if b.opaque {
			descType = vk.DescriptorTypeCombinedImageSampler
			samplerCount++
		} else {
			uboCount++
		}
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         b.binding,
			DescriptorType:  descType,
			DescriptorCount: 1,
			StageFlags:      b.stage.VkFlags(),
		})
	}

	layout, err := ctx.Dispatch.CreateDescriptorSetLayout(bindings)
	if err != nil {
		return err
	}
	p.vkDescSetLayout = layout
	p.hasDescSetLayout = true

	pipelineLayout, err := ctx.Dispatch.CreatePipelineLayout(layout)
	if err != nil {
		return err
	}
	p.vkPipelineLayout = pipelineLayout
	p.hasPipelineLayout = true

	if len(bindings) == 0 {
		return nil
	}

	var sizes []vk.DescriptorPoolSize
	if uboCount > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: uint32(uboCount),
		})
	}
	if samplerCount > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: uint32(samplerCount),
		})
	}

	pool, err := ctx.Dispatch.CreateDescriptorPool(sizes, 1)
	if err != nil {
		return err
	}
	p.vkDescPool = pool
	p.hasDescPool = true

	set, err := ctx.Dispatch.AllocateDescriptorSet(pool, layout)
	if err != nil {
		return err
	}
	p.vkDescSet = set
	p.hasDescSet = true
	return nil
}

// releaseDescriptorObjects tears down in allocation-dependency order: set,
// pool, layout, pipeline layout.
func (p *ShaderProgram) releaseDescriptorObjects(ctx *Context) {
	if p.hasDescSet {
		ctx.Dispatch.FreeDescriptorSet(p.vkDescPool, p.vkDescSet)
		p.hasDescSet = false
	}
	if p.hasDescPool {
		ctx.Dispatch.DestroyDescriptorPool(p.vkDescPool)
		p.hasDescPool = false
	}
	if p.hasDescSetLayout {
		ctx.Dispatch.DestroyDescriptorSetLayout(p.vkDescSetLayout)
		p.hasDescSetLayout = false
	}
	if p.hasPipelineLayout {
		ctx.Dispatch.DestroyPipelineLayout(p.vkPipelineLayout)
		p.hasPipelineLayout = false
	}
}

// ReleaseVkObjects drops every native object the program owns and returns it
// to the unlinked state.
func (p *ShaderProgram) ReleaseVkObjects(ctx *Context) {
	p.releaseDescriptorObjects(ctx)

	if p.hasShaderModules {
		for i := range p.vkShaderModules {
			ctx.Dispatch.DestroyShaderModule(p.vkShaderModules[i])
		}
		p.hasShaderModules = false
	}
	for i := range p.shaderSPVs {
		p.shaderSPVs[i] = nil
	}

	p.pipelineCache.Release(ctx)
	p.resources.Release()

	if p.explicitIbo != nil {
		p.explicitIbo.Release(ctx)
		p.explicitIbo = nil
	}

	p.cachedSamplers = make(map[uint32]*samplerCacheEntry)
	p.linked = false
	p.validated = false
}

// SetShaderModules creates the native shader modules from the program's
// retained SPIR-V and fills the pipeline stage create infos.
func (p *ShaderProgram) SetShaderModules(ctx *Context) error {
	if p.hasShaderModules {
		for i := range p.vkShaderModules {
			ctx.Dispatch.DestroyShaderModule(p.vkShaderModules[i])
		}
		p.hasShaderModules = false
	}

	stages := [stageCount]vk.ShaderStageFlagBits{vk.ShaderStageVertexBit, vk.ShaderStageFragmentBit}
	for i := range p.shaderSPVs {
		module, err := ctx.Dispatch.CreateShaderModule(p.shaderSPVs[i])
		if err != nil {
			return err
		}
		p.vkShaderModules[i] = module
		p.pipelineShaderStages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stages[i],
			Module: module,
			PName:  safeString("main"),
		}
	}
	p.hasShaderModules = true
	return nil
}

// SetPipelineShaderStage returns the pipeline stage create infos for
// pipeline construction.
func (p *ShaderProgram) SetPipelineShaderStage() ([]vk.PipelineShaderStageCreateInfo, int) {
	if !p.hasShaderModules {
		return nil, 0
	}
	return p.pipelineShaderStages[:], stageCount
}

func (p *ShaderProgram) GetVkPipelineLayout() vk.PipelineLayout {
	return p.vkPipelineLayout
}

func (p *ShaderProgram) GetVkDescSet() vk.DescriptorSet {
	return p.vkDescSet
}

func (p *ShaderProgram) GetPipelineCache() *PipelineCache {
	return p.pipelineCache
}

// UpdateDescriptorSet brings the program's descriptor set in sync with its
// uniform state: dirty client data is flushed into the block buffers,
// sampler bindings are re-resolved against the current texture and
// framebuffer state, and when anything went stale a single batched native
// descriptor write refreshes the whole set.
func (p *ShaderProgram) UpdateDescriptorSet(ctx *Context) error {
	if !p.hasDescSet || len(p.resources.uniformBlocks) == 0 {
		return nil
	}

	if p.updateDescriptorData {
		allocatedNew, err := p.resources.UpdateUniformBufferData(ctx)
		if err != nil {
			return err
		}
		if allocatedNew {
			p.updateDescriptorSets = true
		}
		p.updateDescriptorData = false
	}

	imageInfos, changed, err := p.resolveSamplers(ctx)
	if err != nil {
		return err
	}
	if changed {
		p.updateDescriptorSets = true
	}

	if !p.updateDescriptorSets {
		return nil
	}

	var writes []vk.WriteDescriptorSet
	for i := range p.resources.uniformBlocks {
		b := &p.resources.uniformBlocks[i]
		if b.opaque {
			info, ok := imageInfos[b.binding]
			if !ok {
				continue
			}
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          p.vkDescSet,
				DstBinding:      b.binding,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
				PImageInfo:      []vk.DescriptorImageInfo{info},
			})
			continue
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          p.vkDescSet,
			DstBinding:      b.binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{*b.ubo.GetBufferDescInfo()},
		})
	}

	ctx.Dispatch.UpdateDescriptorSets(writes)
	p.updateDescriptorSets = false
	return nil
}

// samplerUniformOfBlock finds the sampler uniform an opaque block carries.
func (p *ShaderProgram) samplerUniformOfBlock(blockIndex int) *resourceUniform {
	for i := range p.resources.uniforms {
		u := &p.resources.uniforms[i]
		if int(u.blockIndex) == blockIndex && u.typ.IsSampler() {
			return u
		}
	}
	return nil
}

// resolveSamplers maps every sampler binding to the image it must read this
// draw. Resolution order: textures that are incomplete or invalid for their
// dimensions fall back to the opaque-black substitute; textures attached to
// a framebuffer are sampled through a Y-flipped copy refreshed whenever the
// framebuffer contents changed; everything else binds directly.
func (p *ShaderProgram) resolveSamplers(ctx *Context) (map[uint32]vk.DescriptorImageInfo, bool, error) {
	infos := make(map[uint32]vk.DescriptorImageInfo)
	changed := false

	for i := range p.resources.uniformBlocks {
		b := &p.resources.uniformBlocks[i]
		if !b.opaque {
			continue
		}
		u := p.samplerUniformOfBlock(i)
		if u == nil {
			continue
		}

		unit := p.resources.GetSamplerUnit(u.location)
		target := TargetTexture2D
		if u.typ == TypeSamplerCube {
			target = TargetTextureCubeMap
		}
		tex := ctx.ActiveTexture(target, int(unit))

		entry := p.cachedSamplers[b.binding]
		resolved := tex

		switch {
		case !tex.IsCompleted() || !tex.IsNPOTAccessCompleted():
			resolved = ctx.ResourceManager.DefaultTexture(target)

		case ctx.ResourceManager.IsTextureAttachedToFBO(tex):
			fb := ctx.ResourceManager.FramebufferAttachedTo(tex)
			if entry != nil && entry.tex == tex && entry.unit == unit && entry.resolved != tex && !fb.IsUpdated() {
				resolved = entry.resolved
			} else {
				copyTex, err := yFlippedCopy(ctx, tex)
				if err != nil {
					return nil, false, err
				}
				ctx.CacheManager.CacheTexture(copyTex)
				fb.ClearUpdated()
				resolved = copyTex
			}
		}

		if !resolved.HasImage() || resolved.IsDataDirty() {
			if err := resolved.Allocate(ctx); err != nil {
				return nil, false, err
			}
		}
		sampler, err := resolved.CreateVkSampler(ctx)
		if err != nil {
			return nil, false, err
		}

		if entry == nil || entry.unit != unit || entry.tex != tex || entry.resolved != resolved {
			changed = true
			p.cachedSamplers[b.binding] = &samplerCacheEntry{unit: unit, tex: tex, resolved: resolved}
		}

		infos[b.binding] = vk.DescriptorImageInfo{
			Sampler:     sampler,
			ImageView:   resolved.GetVkImageView(),
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}
	}
	return infos, changed, nil
}

// yFlippedCopy reads a framebuffer-attached texture back and rebuilds it
// with rows reversed, converting render orientation to sampling orientation.
func yFlippedCopy(ctx *Context, tex *Texture) (*Texture, error) {
	pixels, err := tex.ReadPixels(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	width := tex.Width()
	height := tex.Height()
	rowBytes := width * texturePixelBytes
	flipped := make([]byte, len(pixels))
	for row := 0; row < height; row++ {
		copy(flipped[row*rowBytes:(row+1)*rowBytes], pixels[(height-1-row)*rowBytes:(height-row)*rowBytes])
	}

	out := NewTexture(TargetTexture2D)
	out.SetFilters(tex.magFilter, tex.minFilter)
	out.SetWrapModes(tex.wrapU, tex.wrapV)
	out.SetState(width, height, 0, 0, flipped)
	if err := out.Allocate(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// SetUniformData stores uniform value bytes and marks the block buffers
// stale.
func (p *ShaderProgram) SetUniformData(location int32, size int, data []byte) error {
	if err := p.resources.SetUniformClientData(location, size, data); err != nil {
		return err
	}
	p.updateDescriptorData = true
	return nil
}

// GetUniformData reads back stored uniform value bytes.
func (p *ShaderProgram) GetUniformData(location int32, size int) ([]byte, error) {
	return p.resources.GetUniformClientData(location, size)
}

// SetUniformSampler binds a sampler uniform to a texture unit.
func (p *ShaderProgram) SetUniformSampler(location int32, unit int32) error {
	return p.resources.SetUniformSampler(location, unit)
}

// UpdateBuiltInUniformData refreshes the depth-range built-ins when the
// viewport depth range changed since the last draw.
func (p *ShaderProgram) UpdateBuiltInUniformData(minDepthRange, maxDepthRange float32) {
	if p.minDepthRange == minDepthRange && p.maxDepthRange == maxDepthRange {
		return
	}
	p.minDepthRange = minDepthRange
	p.maxDepthRange = maxDepthRange

	var scratch [4]byte
	if loc := p.resources.GetUniformLocation("gl_DepthRange.near"); loc >= 0 {
		putFloat32Slice(scratch[:], []float32{minDepthRange})
		p.resources.SetUniformClientData(loc, 4, scratch[:])
		p.updateDescriptorData = true
	}
	if loc := p.resources.GetUniformLocation("gl_DepthRange.far"); loc >= 0 {
		putFloat32Slice(scratch[:], []float32{maxDepthRange})
		p.resources.SetUniformClientData(loc, 4, scratch[:])
		p.updateDescriptorData = true
	}
	if loc := p.resources.GetUniformLocation("gl_DepthRange.diff"); loc >= 0 {
		putFloat32Slice(scratch[:], []float32{maxDepthRange - minDepthRange})
		p.resources.SetUniformClientData(loc, 4, scratch[:])
		p.updateDescriptorData = true
	}
}

// Validate runs the compiler's cross-stage validation and records the
// result for queries.
func (p *ShaderProgram) Validate() {
	p.validated = p.compiler.ValidateProgram(p.shaders[stageVertexIndex], p.shaders[stageFragmentIndex])
}

func (p *ShaderProgram) IsValidated() bool {
	return p.validated
}

func (p *ShaderProgram) GetInfoLog() string {
	return p.compiler.GetProgramInfoLog()
}

func (p *ShaderProgram) GetInfoLogLength() int {
	if log := p.GetInfoLog(); len(log) > 0 {
		return len(log) + 1
	}
	return 0
}

func (p *ShaderProgram) GetNumberOfActiveAttributes() int {
	return p.resources.GetLiveAttributes()
}

func (p *ShaderProgram) GetNumberOfActiveUniforms() int {
	return p.resources.GetLiveUniforms()
}

func (p *ShaderProgram) GetAttributeLocation(name string) (uint32, bool) {
	return p.resources.GetAttributeLocation(name)
}

func (p *ShaderProgram) GetUniformLocation(name string) int32 {
	return p.resources.GetUniformLocation(name)
}

func (p *ShaderProgram) GetResourceInterface() *ShaderResourceInterface {
	return p.resources
}

// GetBinaryData serializes the linked program: the reflection blob, both
// stages' SPIR-V with byte-length prefixes, and the driver's pipeline cache
// contents. The compiler is not consulted.
func (p *ShaderProgram) GetBinaryData(ctx *Context) ([]byte, error) {
	if !p.linked {
		return nil, fmt.Errorf("program is not linked")
	}

	out := append([]byte(nil), p.resources.SerializeReflection()...)

	for i := range p.shaderSPVs {
		words := wordsToBytes(p.shaderSPVs[i])
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(words)))
		out = append(out, n[:]...)
		out = append(out, words...)
	}

	cacheData, err := p.pipelineCache.GetData(ctx)
	if err != nil {
		return nil, err
	}
	return append(out, cacheData...), nil
}

func (p *ShaderProgram) GetBinaryLength(ctx *Context) (int, error) {
	data, err := p.GetBinaryData(ctx)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// UsePrecompiledBinary restores a program from a binary produced by
// GetBinaryData. The program links without attached shaders or a compiler
// invocation; the pipeline cache is seeded with the serialized contents.
func (p *ShaderProgram) UsePrecompiledBinary(ctx *Context, data []byte) error {
	refl, consumed, err := UnmarshalReflection(data)
	if err != nil {
		return err
	}
	rest := data[consumed:]

	for i := range p.shaderSPVs {
		if len(rest) < 4 {
			return fmt.Errorf("program binary truncated in stage %d header", i)
		}
		n := int(binary.LittleEndian.Uint32(rest))
		rest = rest[4:]
		if n%4 != 0 || n > len(rest) {
			return fmt.Errorf("program binary has invalid stage %d length %d", i, n)
		}
		p.shaderSPVs[i] = bytesToWords(rest[:n])
		rest = rest[n:]
	}

	p.resources.CreateInterface(refl)
	if err := p.resources.AllocateUniformBufferObjects(ctx); err != nil {
		return err
	}
	if err := p.AllocateVkDescriptorSet(ctx); err != nil {
		return err
	}
	if err := p.pipelineCache.Create(ctx, rest); err != nil {
		return err
	}

	p.ResetVulkanVertexInput()
	p.updateDescriptorData = true
	p.updateDescriptorSets = true
	p.linked = true
	p.precompiled = true
	return nil
}
