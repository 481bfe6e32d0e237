package backend

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// BackendType identifies the GPU backend implementation used by a Context.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU BackendType = iota

	// BackendTypeRecording selects the in-memory recording backend. It drives no GPU and is used for
	// headless runs and tests.
	BackendTypeRecording
)

// Handle is an opaque backend resource name. The zero Handle names no resource; binding it
// unbinds the target.
type Handle uint32

// Location is a backend uniform location. Locations are only meaningful for the program that
// resolved them.
type Location int32

// BuildResult is the outcome of a compile, link or validate step.
// Log carries the backend's diagnostic text verbatim and may be non-empty on success.
type BuildResult struct {
	Success bool
	Log     string
}

// Backend is the driver-facing capability set the resource layer delegates every GPU call to.
// It is implemented once per graphics API. All methods are called from the single thread that
// owns the graphics context.
//
// Buffer transfer and layout calls follow binding-point semantics: they act on whatever is bound
// to the given target (or, for attribute slots, on the bound vertex array and vertex buffer).
type Backend interface {
	// CreateBuffer allocates a buffer name without storage.
	//
	// Returns:
	//   - Handle: the new buffer handle
	//   - error: an error if the backend could not create the resource
	CreateBuffer() (Handle, error)

	// DeleteBuffer releases a buffer name and its storage.
	//
	// Parameters:
	//   - h: the buffer to release
	//
	// Returns:
	//   - error: an error if the handle is unknown to the backend
	DeleteBuffer(h Handle) error

	CreateVertexArray() (Handle, error)
	DeleteVertexArray(h Handle) error
	CreateProgram() (Handle, error)
	DeleteProgram(h Handle) error

	// CreateShaderStage allocates a shader stage object of the given type.
	CreateShaderStage(stage common.StageType) (Handle, error)
	DeleteShaderStage(h Handle) error

	// BindBuffer makes h the buffer bound to target. The zero Handle unbinds.
	BindBuffer(target common.TargetKind, h Handle) error

	// BindVertexArray makes h the active vertex array. The zero Handle unbinds.
	BindVertexArray(h Handle) error

	// UseProgram makes h the active program. The zero Handle deactivates programs.
	UseProgram(h Handle) error

	// UploadFull (re)allocates the storage of the buffer bound to target to exactly sizeBytes and
	// copies data into it. A nil data allocates zero-filled storage.
	//
	// Parameters:
	//   - target: the binding point whose buffer is allocated
	//   - sizeBytes: the new storage size in bytes
	//   - data: the initial contents, nil or at most sizeBytes long
	//   - usage: the allocation usage hint
	//
	// Returns:
	//   - error: an error if the allocation or upload failed
	UploadFull(target common.TargetKind, sizeBytes int, data []byte, usage common.UsageHint) error

	// UploadRange writes data into the buffer bound to target starting at byteOffset. The range must
	// lie within the allocated storage.
	//
	// Parameters:
	//   - target: the binding point whose buffer is written
	//   - byteOffset: the destination offset in bytes
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if no storage is allocated or the range is out of bounds
	UploadRange(target common.TargetKind, byteOffset int, data []byte) error

	// MapRange opens a client-visible view of sizeBytes of the bound buffer's storage starting at
	// byteOffset. Writes to the view reach the buffer no later than the matching Unmap.
	//
	// Returns:
	//   - []byte: the mapped view, valid until Unmap
	//   - error: an error if the buffer is already mapped or the range is out of bounds
	MapRange(target common.TargetKind, byteOffset, sizeBytes int, access common.MapAccess) ([]byte, error)

	// Unmap closes the mapping of the buffer bound to target.
	Unmap(target common.TargetKind) error

	// DescribeAttribute records, on the bound vertex array, how attribute slot reads the vertex
	// buffer currently bound to common.TargetVertex.
	//
	// Parameters:
	//   - slot: the attribute slot index
	//   - componentCount: the number of components per vertex
	//   - elementType: the type of each component
	//   - normalized: whether integer components are normalized to [0, 1] or [-1, 1]
	//   - strideBytes: the byte size of one vertex record
	//   - byteOffset: the offset of the attribute within the record
	//
	// Returns:
	//   - error: an error if no vertex array or vertex buffer is bound
	DescribeAttribute(slot, componentCount int, elementType common.ElementType, normalized bool, strideBytes, byteOffset int) error
	EnableAttributeSlot(slot int) error
	DisableAttributeSlot(slot int) error

	// CompileStage compiles source into the stage object. A source the compiler rejects is reported
	// through BuildResult, not through the error, which is reserved for backend failures.
	CompileStage(stage Handle, source string) (BuildResult, error)
	AttachStage(program, stage Handle) error
	LinkProgram(program Handle) (BuildResult, error)
	ValidateProgram(program Handle) (BuildResult, error)

	// UniformLocation resolves a uniform name on a linked program. ok is false when the program has
	// no active uniform with that name.
	UniformLocation(program Handle, name string) (loc Location, ok bool)

	// UploadUniform writes value to the uniform at loc of program.
	UploadUniform(program Handle, loc Location, value common.UniformValue) error

	// Draw issues a non-indexed draw of count vertices starting at first using the active program
	// and vertex array.
	Draw(topology common.Topology, first, count int) error

	// DrawIndexed issues an indexed draw of count indices of indexType read from the buffer bound to
	// common.TargetIndex.
	DrawIndexed(topology common.Topology, indexType common.ElementType, count int) error
}

// FrameBackend is implemented by backends that present to a surface and therefore bracket draw
// calls in frames.
type FrameBackend interface {
	// BeginFrame acquires the next surface image and opens the frame's render pass.
	BeginFrame() error

	// EndFrame closes the render pass and submits the recorded work.
	EndFrame() error

	// Present presents the acquired surface image.
	Present() error

	// Resize reconfigures the surface for a new size in pixels.
	Resize(width, height int)
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping the frame rate
	// to the monitor's refresh rate.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// MSAASampleCount is the number of samples per pixel of the main render target. WebGPU guarantees
// support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	MSAAOff MSAASampleCount = 1
	MSAA4x  MSAASampleCount = 4
)
