package glove

import (
	vk "github.com/vulkan-go/vulkan"
)

// Shader is one compilation unit of a program. The compiler owns translation;
// the shader only tracks source, compile status, the SPIR-V the compiler
// produced, and the native module created from it at link time.
type Shader struct {
	refObject

	stage    ShaderStageType
	source   []byte
	compiled bool
	spv      []uint32

	vkShaderModule vk.ShaderModule
	hasModule      bool
}

func NewShader(stage ShaderStageType) *Shader {
	return &Shader{stage: stage}
}

func (s *Shader) Stage() ShaderStageType {
	return s.stage
}

// SetSource replaces the shader source and resets the compile state.
func (s *Shader) SetSource(source []byte) {
	s.source = append([]byte(nil), source...)
	s.compiled = false
	s.spv = nil
}

func (s *Shader) Source() []byte {
	return s.source
}

func (s *Shader) IsCompiled() bool {
	return s.compiled
}

// SetCompiled records the compiler's verdict for the current source.
func (s *Shader) SetCompiled(compiled bool) {
	s.compiled = compiled
}

func (s *Shader) SetSPV(spv []uint32) {
	s.spv = spv
}

func (s *Shader) GetSPV() []uint32 {
	return s.spv
}

// CreateVkShaderModule builds the native module from the shader's SPIR-V,
// destroying any previous module first.
func (s *Shader) CreateVkShaderModule(ctx *Context) (vk.ShaderModule, error) {
	if s.hasModule {
		ctx.Dispatch.DestroyShaderModule(s.vkShaderModule)
		s.hasModule = false
	}

	module, err := ctx.Dispatch.CreateShaderModule(s.spv)
	if err != nil {
		return vk.NullShaderModule, err
	}
	s.vkShaderModule = module
	s.hasModule = true
	return module, nil
}

// ReleaseVkObjects destroys the shader's native module if one exists.
func (s *Shader) ReleaseVkObjects(ctx *Context) {
	if s.hasModule {
		ctx.Dispatch.DestroyShaderModule(s.vkShaderModule)
		s.hasModule = false
	}
}
