/*
Package glove implements the resource core of an OpenGL ES style runtime on
top of the Vulkan graphics framework for go. OpenGL hands applications a
forgiving, stateful API; Vulkan demands explicit management of every object
and byte of memory. This package sits between the two: it owns the GL-side
object model (shaders, programs, buffers, textures, framebuffers) and turns
it into the explicit Vulkan state a renderer needs.

The package is organized around a few cooperating pieces:

Context:
	the per-context state threaded explicitly through every operation - the
	native device dispatch, the object tables, and the little draw state
	(primitive mode, texture units, surface orientation) that resource
	preparation depends on
ShaderProgram:
	the linked program object - it drives the external compiler, derives its
	uniform and attribute interface from reflection, owns the Vulkan
	descriptor set machinery, and prepares vertex and index input for draws
ResourceManager:
	the named-object tables with GL deletion semantics - deleting an object
	removes its name immediately but frees it only once nothing references
	it, on an explicit purge sweep
CacheManager:
	a parking lot for native objects replaced mid-frame that commands in
	flight may still read

The compiler that translates shader source to SPIR-V stays behind the
Compiler interface, and all native work goes through the Dispatch interface,
so the whole linking and lifetime machinery runs against fakes in tests.
Native handles are exposed with the 'VK' prefix in the object types so
renderers aren't limited by what this package provides.
*/
package glove
