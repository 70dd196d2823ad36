package glove

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// PhysicalDevice is the hardware device the logical device was created from.
type PhysicalDevice struct {
	DeviceName       string
	VKPhysicalDevice vk.PhysicalDevice
}

func (p *PhysicalDevice) String() string {
	return p.DeviceName
}

// FindMemoryType locates a memory type index matching the type filter and
// the requested property flags.
func (p *PhysicalDevice) FindMemoryType(memoryTypeBits uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(p.VKPhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	var i uint32
	for i = 0; i < memoryProperties.MemoryTypeCount; i++ {
		mt := memoryProperties.MemoryTypes[i]
		mt.Deref()
		if memoryTypeBits&(1<<i) != 0 && mt.PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no matching memory type found")
}

// Device is the production Dispatch implementation. Every resource it hands
// out is host visible, so uniform and pixel data move with plain
// map/copy/unmap sequences; command-buffer staging is the renderer's concern,
// not this layer's.
type Device struct {
	PhysicalDevice *PhysicalDevice
	VKDevice       vk.Device
}

// NewDevice wraps an existing logical device handle.
func NewDevice(physicalDevice vk.PhysicalDevice, device vk.Device) *Device {
	return &Device{
		PhysicalDevice: &PhysicalDevice{VKPhysicalDevice: physicalDevice},
		VKDevice:       device,
	}
}

func (d *Device) String() string {
	return fmt.Sprintf("{ PhysicalDevice: %s }", d.PhysicalDevice)
}

func (d *Device) WaitIdle() {
	vk.DeviceWaitIdle(d.VKDevice)
}

func (d *Device) Destroy() {
	vk.DestroyDevice(d.VKDevice, nil)
}

func (d *Device) allocate(sizeInBytes int, memoryTypeBits uint32, memoryProperties vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	var allocateInfo = vk.MemoryAllocateInfo{}
	allocateInfo.SType = vk.StructureTypeMemoryAllocateInfo
	allocateInfo.AllocationSize = vk.DeviceSize(sizeInBytes)

	var err error
	allocateInfo.MemoryTypeIndex, err = d.PhysicalDevice.FindMemoryType(memoryTypeBits, memoryProperties)
	if err != nil {
		return vk.NullDeviceMemory, err
	}

	var deviceMemory vk.DeviceMemory
	err = vk.Error(vk.AllocateMemory(d.VKDevice, &allocateInfo, nil, &deviceMemory))
	if err != nil {
		return vk.NullDeviceMemory, err
	}
	return deviceMemory, nil
}

func (d *Device) mapCopy(memory vk.DeviceMemory, offset int, data []byte, write bool) error {
	var ptr unsafe.Pointer
	err := vk.Error(vk.MapMemory(d.VKDevice, memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr))
	if err != nil {
		return err
	}

	mapped := ToBytes(ptr, len(data))
	if write {
		copy(mapped, data)
	} else {
		copy(data, mapped)
	}

	vk.UnmapMemory(d.VKDevice, memory)
	return nil
}

func (d *Device) CreateShaderModule(spirv []uint32) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	err := vk.Error(vk.CreateShaderModule(d.VKDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(4 * len(spirv)),
		PCode:    spirv,
	}, nil, &module))
	if err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

func (d *Device) DestroyShaderModule(module vk.ShaderModule) {
	vk.DestroyShaderModule(d.VKDevice, module, nil)
}

func (d *Device) CreateBuffer(size int, usage vk.BufferUsageFlagBits) (*DeviceBuffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	err := vk.Error(vk.CreateBuffer(d.VKDevice, &bufferCreateInfo, nil, &buffer))
	if err != nil {
		return nil, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.VKDevice, buffer, &memoryRequirements)
	memoryRequirements.Deref()

	memory, err := d.allocate(int(memoryRequirements.Size), memoryRequirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(d.VKDevice, buffer, nil)
		return nil, err
	}

	err = vk.Error(vk.BindBufferMemory(d.VKDevice, buffer, memory, 0))
	if err != nil {
		vk.FreeMemory(d.VKDevice, memory, nil)
		vk.DestroyBuffer(d.VKDevice, buffer, nil)
		return nil, err
	}

	return &DeviceBuffer{VKBuffer: buffer, VKDeviceMemory: memory, Size: size}, nil
}

func (d *Device) WriteBuffer(buffer *DeviceBuffer, offset int, data []byte) error {
	return d.mapCopy(buffer.VKDeviceMemory, offset, data, true)
}

func (d *Device) ReadBuffer(buffer *DeviceBuffer, offset int, data []byte) error {
	return d.mapCopy(buffer.VKDeviceMemory, offset, data, false)
}

func (d *Device) DestroyBuffer(buffer *DeviceBuffer) {
	vk.DestroyBuffer(d.VKDevice, buffer.VKBuffer, nil)
	vk.FreeMemory(d.VKDevice, buffer.VKDeviceMemory, nil)
}

func (d *Device) CreateImage(width, height, layers, levels int, format vk.Format, usage vk.ImageUsageFlagBits) (*DeviceImage, error) {
	var imageInfo = vk.ImageCreateInfo{}
	imageInfo.SType = vk.StructureTypeImageCreateInfo
	imageInfo.ImageType = vk.ImageType2d
	imageInfo.Extent.Width = uint32(width)
	imageInfo.Extent.Height = uint32(height)
	imageInfo.Extent.Depth = 1
	imageInfo.MipLevels = uint32(levels)
	imageInfo.ArrayLayers = uint32(layers)
	imageInfo.Format = format
	imageInfo.Tiling = vk.ImageTilingLinear
	imageInfo.InitialLayout = vk.ImageLayoutPreinitialized
	imageInfo.Usage = vk.ImageUsageFlags(usage)
	imageInfo.Samples = vk.SampleCount1Bit
	imageInfo.SharingMode = vk.SharingModeExclusive
	if layers == 6 {
		imageInfo.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	var image vk.Image
	err := vk.Error(vk.CreateImage(d.VKDevice, &imageInfo, nil, &image))
	if err != nil {
		return nil, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.VKDevice, image, &memoryRequirements)
	memoryRequirements.Deref()

	memory, err := d.allocate(int(memoryRequirements.Size), memoryRequirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyImage(d.VKDevice, image, nil)
		return nil, err
	}

	err = vk.Error(vk.BindImageMemory(d.VKDevice, image, memory, 0))
	if err != nil {
		vk.FreeMemory(d.VKDevice, memory, nil)
		vk.DestroyImage(d.VKDevice, image, nil)
		return nil, err
	}

	return &DeviceImage{
		VKImage:        image,
		VKDeviceMemory: memory,
		Width:          width,
		Height:         height,
		Layers:         layers,
		Levels:         levels,
		Format:         format,
	}, nil
}

// copyImageRows moves pixel rows one at a time, honoring the driver's row
// pitch for linear images.
func (d *Device) copyImageRows(image *DeviceImage, layer, level int, data []byte, write bool) error {
	var layout vk.SubresourceLayout
	vk.GetImageSubresourceLayout(d.VKDevice, image.VKImage, &vk.ImageSubresource{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:   uint32(level),
		ArrayLayer: uint32(layer),
	}, &layout)
	layout.Deref()

	width := image.Width >> uint(level)
	if width == 0 {
		width = 1
	}
	height := image.Height >> uint(level)
	if height == 0 {
		height = 1
	}
	rowBytes := width * 4

	var ptr unsafe.Pointer
	err := vk.Error(vk.MapMemory(d.VKDevice, image.VKDeviceMemory, layout.Offset, layout.Size, 0, &ptr))
	if err != nil {
		return err
	}

	mapped := ToBytes(ptr, int(layout.Size))
	for row := 0; row < height; row++ {
		src := data[row*rowBytes : (row+1)*rowBytes]
		dst := mapped[row*int(layout.RowPitch) : row*int(layout.RowPitch)+rowBytes]
		if write {
			copy(dst, src)
		} else {
			copy(src, dst)
		}
	}

	vk.UnmapMemory(d.VKDevice, image.VKDeviceMemory)
	return nil
}

func (d *Device) WriteImage(image *DeviceImage, layer, level int, data []byte) error {
	return d.copyImageRows(image, layer, level, data, true)
}

func (d *Device) ReadImage(image *DeviceImage, layer, level int, data []byte) error {
	return d.copyImageRows(image, layer, level, data, false)
}

func (d *Device) DestroyImage(image *DeviceImage) {
	vk.DestroyImage(d.VKDevice, image.VKImage, nil)
	vk.FreeMemory(d.VKDevice, image.VKDeviceMemory, nil)
}

func (d *Device) CreateImageView(image *DeviceImage, viewType vk.ImageViewType) (vk.ImageView, error) {
	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.VKImage,
		ViewType: viewType,
		Format:   image.Format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: uint32(image.Levels),
			LayerCount: uint32(image.Layers),
		},
	}

	var view vk.ImageView
	err := vk.Error(vk.CreateImageView(d.VKDevice, createInfo, nil, &view))
	if err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

func (d *Device) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.VKDevice, view, nil)
}

func (d *Device) CreateSampler(magFilter, minFilter vk.Filter, wrapU, wrapV vk.SamplerAddressMode) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               magFilter,
		MinFilter:               minFilter,
		MipmapMode:              vk.SamplerMipmapModeNearest,
		AddressModeU:            wrapU,
		AddressModeV:            wrapV,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		MaxAnisotropy:           1.0,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}

	var sampler vk.Sampler
	err := vk.Error(vk.CreateSampler(d.VKDevice, &samplerInfo, nil, &sampler))
	if err != nil {
		return vk.NullSampler, err
	}
	return sampler, nil
}

func (d *Device) DestroySampler(sampler vk.Sampler) {
	vk.DestroySampler(d.VKDevice, sampler, nil)
}

func (d *Device) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	descriptorSetLayoutCreateInfo := &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var descriptorSetLayout vk.DescriptorSetLayout
	err := vk.Error(vk.CreateDescriptorSetLayout(d.VKDevice, descriptorSetLayoutCreateInfo, nil, &descriptorSetLayout))
	if err != nil {
		return vk.NullDescriptorSetLayout, err
	}
	return descriptorSetLayout, nil
}

func (d *Device) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(d.VKDevice, layout, nil)
}

func (d *Device) CreateDescriptorPool(sizes []vk.DescriptorPoolSize, maxSets int) (vk.DescriptorPool, error) {
	descriptorPoolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(maxSets),
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}

	var descriptorPool vk.DescriptorPool
	err := vk.Error(vk.CreateDescriptorPool(d.VKDevice, &descriptorPoolCreateInfo, nil, &descriptorPool))
	if err != nil {
		return vk.NullDescriptorPool, err
	}
	return descriptorPool, nil
}

func (d *Device) DestroyDescriptorPool(pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(d.VKDevice, pool, nil)
}

func (d *Device) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	descriptorSetAllocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}

	var descriptorSet vk.DescriptorSet
	err := vk.Error(vk.AllocateDescriptorSets(d.VKDevice, &descriptorSetAllocateInfo, &descriptorSet))
	if err != nil {
		return vk.NullDescriptorSet, err
	}
	return descriptorSet, nil
}

func (d *Device) FreeDescriptorSet(pool vk.DescriptorPool, set vk.DescriptorSet) error {
	return vk.Error(vk.FreeDescriptorSets(d.VKDevice, pool, 1, &set))
}

func (d *Device) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(d.VKDevice, uint32(len(writes)), writes, 0, nil)
}

func (d *Device) CreatePipelineLayout(layout vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{layout},
	}

	var pipelineLayout vk.PipelineLayout
	err := vk.Error(vk.CreatePipelineLayout(d.VKDevice, &pipelineLayoutCreateInfo, nil, &pipelineLayout))
	if err != nil {
		return vk.NullPipelineLayout, err
	}
	return pipelineLayout, nil
}

func (d *Device) DestroyPipelineLayout(layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(d.VKDevice, layout, nil)
}

func (d *Device) CreatePipelineCache(initialData []byte) (*DevicePipelineCache, error) {
	pipelineCacheCreateInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if len(initialData) > 0 {
		pipelineCacheCreateInfo.InitialDataSize = uint(len(initialData))
		pipelineCacheCreateInfo.PInitialData = unsafe.Pointer(&initialData[0])
	}

	var pipelineCache vk.PipelineCache
	err := vk.Error(vk.CreatePipelineCache(d.VKDevice, &pipelineCacheCreateInfo, nil, &pipelineCache))
	if err != nil {
		return nil, err
	}
	return &DevicePipelineCache{VKPipelineCache: pipelineCache}, nil
}

func (d *Device) GetPipelineCacheData(cache *DevicePipelineCache) ([]byte, error) {
	var size uint
	err := vk.Error(vk.GetPipelineCacheData(d.VKDevice, cache.VKPipelineCache, &size, nil))
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}

	data := make([]byte, size)
	err = vk.Error(vk.GetPipelineCacheData(d.VKDevice, cache.VKPipelineCache, &size, unsafe.Pointer(&data[0])))
	if err != nil {
		return nil, err
	}
	return data[:size], nil
}

func (d *Device) DestroyPipelineCache(cache *DevicePipelineCache) {
	vk.DestroyPipelineCache(d.VKDevice, cache.VKPipelineCache, nil)
}
