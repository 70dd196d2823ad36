package glove

import (
	vk "github.com/vulkan-go/vulkan"
)

// DeviceBuffer is a native buffer together with the memory backing it.
// Native handles are exposed with the VK prefix so callers aren't limited
// by what this package provides.
type DeviceBuffer struct {
	VKBuffer       vk.Buffer
	VKDeviceMemory vk.DeviceMemory
	Size           int
}

// DeviceImage is a native image together with the memory backing it.
type DeviceImage struct {
	VKImage        vk.Image
	VKDeviceMemory vk.DeviceMemory
	Width          int
	Height         int
	Layers         int
	Levels         int
	Format         vk.Format
}

// DevicePipelineCache wraps a native pipeline cache handle.
type DevicePipelineCache struct {
	VKPipelineCache vk.PipelineCache
}

// Dispatch is the narrow native-device surface the runtime core is written
// against. Device implements it with real Vulkan calls; tests substitute an
// in-memory fake so the linking and lifetime machinery can run without a
// driver. All operations are synchronous.
type Dispatch interface {
	CreateShaderModule(spirv []uint32) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)

	CreateBuffer(size int, usage vk.BufferUsageFlagBits) (*DeviceBuffer, error)
	WriteBuffer(buffer *DeviceBuffer, offset int, data []byte) error
	ReadBuffer(buffer *DeviceBuffer, offset int, data []byte) error
	DestroyBuffer(buffer *DeviceBuffer)

	CreateImage(width, height, layers, levels int, format vk.Format, usage vk.ImageUsageFlagBits) (*DeviceImage, error)
	WriteImage(image *DeviceImage, layer, level int, data []byte) error
	ReadImage(image *DeviceImage, layer, level int, data []byte) error
	DestroyImage(image *DeviceImage)

	CreateImageView(image *DeviceImage, viewType vk.ImageViewType) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)

	CreateSampler(magFilter, minFilter vk.Filter, wrapU, wrapV vk.SamplerAddressMode) (vk.Sampler, error)
	DestroySampler(sampler vk.Sampler)

	CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	CreateDescriptorPool(sizes []vk.DescriptorPoolSize, maxSets int) (vk.DescriptorPool, error)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error)
	FreeDescriptorSet(pool vk.DescriptorPool, set vk.DescriptorSet) error
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)

	CreatePipelineLayout(layout vk.DescriptorSetLayout) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)

	CreatePipelineCache(initialData []byte) (*DevicePipelineCache, error)
	GetPipelineCacheData(cache *DevicePipelineCache) ([]byte, error)
	DestroyPipelineCache(cache *DevicePipelineCache)
}
