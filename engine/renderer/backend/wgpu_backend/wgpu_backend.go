package wgpu_backend

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuBackendImpl is the implementation of the WGPUBackend interface.
type wgpuBackendImpl struct {
	mu     sync.Mutex
	logger *slog.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	sampleCount          backend.MSAASampleCount
	clearColor           wgpu.Color
	depthTest            bool

	surfaceFormat        wgpu.TextureFormat
	msaaTextureView      *wgpu.TextureView
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	next     backend.Handle
	buffers  map[backend.Handle]*gpuBuffer
	arrays   map[backend.Handle]*vertexArray
	stages   map[backend.Handle]*shaderStage
	programs map[backend.Handle]*program

	bound       map[common.TargetKind]backend.Handle
	vertexArray backend.Handle
	program     backend.Handle
}

// WGPUBackend is the WebGPU implementation of backend.Backend. It emulates binding-point semantics
// over WebGPU: vertex arrays and attribute slots are recorded on the CPU and turned into render
// pipelines lazily at draw time, one per program, vertex layout, topology and index format.
// Draw calls are only valid between BeginFrame and EndFrame.
type WGPUBackend interface {
	backend.Backend
	backend.FrameBackend

	// Device returns the underlying WebGPU device.
	Device() *wgpu.Device

	// Queue returns the device's queue.
	Queue() *wgpu.Queue

	// SetPresentMode changes the surface present mode. It takes effect on the next Resize.
	SetPresentMode(mode backend.PresentMode)

	// Release releases every GPU object owned by the backend.
	Release()
}

var _ WGPUBackend = &wgpuBackendImpl{}

// NewWGPUBackend creates the WebGPU instance, adapter, device and surface and configures the
// surface for the given size.
//
// Parameters:
//   - surfaceDescriptor: the platform surface to render into, usually from a window
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//   - options: variadic list of WGPUBackendBuilderOption functions to configure the backend
//
// Returns:
//   - WGPUBackend: the new backend
//   - error: an error if no adapter or device could be acquired
func NewWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, options ...WGPUBackendBuilderOption) (WGPUBackend, error) {
	b := &wgpuBackendImpl{
		presentMode: wgpu.PresentModeFifo,
		sampleCount: backend.MSAA4x,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
		depthTest:   true,
		buffers:     make(map[backend.Handle]*gpuBuffer),
		arrays:      make(map[backend.Handle]*vertexArray),
		stages:      make(map[backend.Handle]*shaderStage),
		programs:    make(map[backend.Handle]*program),
		bound:       make(map[common.TargetKind]backend.Handle),
	}
	for _, opt := range options {
		opt(b)
	}
	if b.logger == nil {
		b.logger = common.Logger()
	}

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-gfx device",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	if err := b.configureSurface(width, height); err != nil {
		return nil, err
	}
	b.logger.Info("webgpu backend ready",
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("samples", int(b.sampleCount)),
		slog.Bool("fallback", b.forceFallbackAdapter))
	return b, nil
}

func (b *wgpuBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuBackendImpl) SetPresentMode(mode backend.PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case backend.PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuBackendImpl) newHandle() backend.Handle {
	b.next++
	return b.next
}

// Lifecycle

func (b *wgpuBackendImpl) CreateBuffer() (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.newHandle()
	b.buffers[h] = &gpuBuffer{}
	return h, nil
}

func (b *wgpuBackendImpl) DeleteBuffer(h backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[h]
	if !ok {
		return fmt.Errorf("unknown buffer %d", h)
	}
	if buf.gpu != nil {
		buf.gpu.Release()
	}
	delete(b.buffers, h)
	for target, cur := range b.bound {
		if cur == h {
			delete(b.bound, target)
		}
	}
	return nil
}

func (b *wgpuBackendImpl) CreateVertexArray() (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.newHandle()
	b.arrays[h] = &vertexArray{slots: make(map[int]*attributeSlot)}
	return h, nil
}

func (b *wgpuBackendImpl) DeleteVertexArray(h backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.arrays[h]; !ok {
		return fmt.Errorf("unknown vertex array %d", h)
	}
	delete(b.arrays, h)
	if b.vertexArray == h {
		b.vertexArray = 0
	}
	return nil
}

func (b *wgpuBackendImpl) CreateProgram() (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.newHandle()
	b.programs[h] = &program{
		uniforms:  make(map[string]backend.Location),
		pipelines: make(map[string]*wgpu.RenderPipeline),
	}
	return h, nil
}

func (b *wgpuBackendImpl) DeleteProgram(h backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[h]
	if !ok {
		return fmt.Errorf("unknown program %d", h)
	}
	releaseProgram(p)
	delete(b.programs, h)
	if b.program == h {
		b.program = 0
	}
	return nil
}

func (b *wgpuBackendImpl) CreateShaderStage(stage common.StageType) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.newHandle()
	b.stages[h] = &shaderStage{stage: stage}
	return h, nil
}

func (b *wgpuBackendImpl) DeleteShaderStage(h backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.stages[h]
	if !ok {
		return fmt.Errorf("unknown shader stage %d", h)
	}
	if s.module != nil {
		s.module.Release()
	}
	delete(b.stages, h)
	return nil
}

// Binding

func (b *wgpuBackendImpl) BindBuffer(target common.TargetKind, h backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h == 0 {
		delete(b.bound, target)
		return nil
	}
	if _, ok := b.buffers[h]; !ok {
		return fmt.Errorf("unknown buffer %d", h)
	}
	b.bound[target] = h
	return nil
}

func (b *wgpuBackendImpl) BindVertexArray(h backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.arrays[h]; h != 0 && !ok {
		return fmt.Errorf("unknown vertex array %d", h)
	}
	b.vertexArray = h
	return nil
}

func (b *wgpuBackendImpl) UseProgram(h backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h != 0 {
		p, ok := b.programs[h]
		if !ok {
			return fmt.Errorf("unknown program %d", h)
		}
		if !p.linked {
			return fmt.Errorf("program %d is not linked", h)
		}
	}
	b.program = h
	return nil
}

// Transfer

// boundBuffer returns the buffer bound to target. It must be called with b.mu held.
func (b *wgpuBackendImpl) boundBuffer(target common.TargetKind) (*gpuBuffer, error) {
	h, ok := b.bound[target]
	if !ok || h == 0 {
		return nil, fmt.Errorf("no buffer bound to %s target", target)
	}
	return b.buffers[h], nil
}

func (b *wgpuBackendImpl) UploadFull(target common.TargetKind, sizeBytes int, data []byte, usage common.UsageHint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.boundBuffer(target)
	if err != nil {
		return err
	}
	if buf.mapped {
		return errors.New("buffer is mapped")
	}
	if sizeBytes < 0 || len(data) > sizeBytes {
		return fmt.Errorf("invalid allocation of %d bytes with %d bytes of data", sizeBytes, len(data))
	}

	gpu, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("%s buffer %d", target, b.bound[target]),
		Size:  uint64(max(align4(sizeBytes), 4)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return err
	}
	if buf.gpu != nil {
		buf.gpu.Release()
	}
	buf.gpu = gpu
	buf.shadow = make([]byte, align4(sizeBytes))
	copy(buf.shadow, data)
	buf.size = sizeBytes
	buf.allocated = true
	buf.usage = usage

	if len(data) > 0 {
		b.queue.WriteBuffer(buf.gpu, 0, buf.shadow[:align4(len(data))])
	}
	return nil
}

func (b *wgpuBackendImpl) UploadRange(target common.TargetKind, byteOffset int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.boundBuffer(target)
	if err != nil {
		return err
	}
	if !buf.allocated {
		return errors.New("buffer has no storage")
	}
	if buf.mapped {
		return errors.New("buffer is mapped")
	}
	if byteOffset < 0 || byteOffset+len(data) > buf.size {
		return fmt.Errorf("range [%d, %d) outside storage of %d bytes", byteOffset, byteOffset+len(data), buf.size)
	}
	copy(buf.shadow[byteOffset:], data)
	b.flushRange(buf, byteOffset, len(data))
	return nil
}

// flushRange copies the shadow bytes covering [offset, offset+size) to the GPU, widened to
// 4-byte bounds.
func (b *wgpuBackendImpl) flushRange(buf *gpuBuffer, offset, size int) {
	if size == 0 {
		return
	}
	start := offset &^ 3
	end := align4(offset + size)
	b.queue.WriteBuffer(buf.gpu, uint64(start), buf.shadow[start:end])
}

func (b *wgpuBackendImpl) MapRange(target common.TargetKind, byteOffset, sizeBytes int, access common.MapAccess) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.boundBuffer(target)
	if err != nil {
		return nil, err
	}
	if buf.mapped {
		return nil, errors.New("buffer is already mapped")
	}
	if !buf.allocated {
		return nil, errors.New("buffer has no storage")
	}
	if byteOffset < 0 || sizeBytes < 0 || byteOffset+sizeBytes > buf.size {
		return nil, fmt.Errorf("range [%d, %d) outside storage of %d bytes", byteOffset, byteOffset+sizeBytes, buf.size)
	}
	buf.mapped = true
	buf.mapOffset = byteOffset
	buf.mapSize = sizeBytes
	buf.mapAccess = access
	return buf.shadow[byteOffset : byteOffset+sizeBytes : byteOffset+sizeBytes], nil
}

func (b *wgpuBackendImpl) Unmap(target common.TargetKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.boundBuffer(target)
	if err != nil {
		return err
	}
	if !buf.mapped {
		return errors.New("buffer is not mapped")
	}
	buf.mapped = false
	if buf.mapAccess != common.MapRead {
		b.flushRange(buf, buf.mapOffset, buf.mapSize)
	}
	return nil
}

// Layout

func (b *wgpuBackendImpl) DescribeAttribute(slot, componentCount int, elementType common.ElementType, normalized bool, strideBytes, byteOffset int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	va, ok := b.arrays[b.vertexArray]
	if !ok {
		return errors.New("no vertex array bound")
	}
	vb, ok := b.bound[common.TargetVertex]
	if !ok || vb == 0 {
		return errors.New("no vertex buffer bound")
	}
	if _, err := vertexFormat(elementType, componentCount, normalized); err != nil {
		return err
	}
	s := va.slot(slot)
	s.buffer = vb
	s.count = componentCount
	s.elemType = elementType
	s.normalized = normalized
	s.stride = strideBytes
	s.offset = byteOffset
	return nil
}

func (b *wgpuBackendImpl) EnableAttributeSlot(slot int) error {
	return b.setSlotEnabled(slot, true)
}

func (b *wgpuBackendImpl) DisableAttributeSlot(slot int) error {
	return b.setSlotEnabled(slot, false)
}

func (b *wgpuBackendImpl) setSlotEnabled(slot int, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	va, ok := b.arrays[b.vertexArray]
	if !ok {
		return errors.New("no vertex array bound")
	}
	va.slot(slot).enabled = enabled
	return nil
}

func (va *vertexArray) slot(i int) *attributeSlot {
	s, ok := va.slots[i]
	if !ok {
		s = &attributeSlot{}
		va.slots[i] = s
	}
	return s
}

// Shader

func (b *wgpuBackendImpl) CompileStage(stage backend.Handle, source string) (backend.BuildResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.stages[stage]
	if !ok {
		return backend.BuildResult{}, fmt.Errorf("unknown shader stage %d", stage)
	}
	if s.module != nil {
		s.module.Release()
		s.module = nil
	}
	s.source = source
	s.compiled = false

	s.entry = backend.WGSLEntryPoint(source, s.stage)
	if s.entry == "" {
		return backend.BuildResult{Log: fmt.Sprintf("no @%s entry point found", s.stage)}, nil
	}

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: fmt.Sprintf("%s stage %d", s.stage, stage),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return backend.BuildResult{Log: err.Error()}, nil
	}
	s.module = module
	s.compiled = true
	return backend.BuildResult{Success: true}, nil
}

func (b *wgpuBackendImpl) AttachStage(programHandle, stage backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[programHandle]
	if !ok {
		return fmt.Errorf("unknown program %d", programHandle)
	}
	if _, ok := b.stages[stage]; !ok {
		return fmt.Errorf("unknown shader stage %d", stage)
	}
	p.stages = append(p.stages, stage)
	return nil
}

func (b *wgpuBackendImpl) LinkProgram(programHandle backend.Handle) (backend.BuildResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[programHandle]
	if !ok {
		return backend.BuildResult{}, fmt.Errorf("unknown program %d", programHandle)
	}
	releaseProgram(p)
	p.vertex, p.fragment = nil, nil

	for _, h := range p.stages {
		s, ok := b.stages[h]
		if !ok || !s.compiled {
			return backend.BuildResult{Log: fmt.Sprintf("shader stage %d is not compiled", h)}, nil
		}
		switch s.stage {
		case common.StageVertex:
			p.vertex = s
		case common.StageFragment:
			p.fragment = s
		}
	}
	if p.vertex == nil || p.fragment == nil {
		return backend.BuildResult{Log: "a program needs one vertex and one fragment stage"}, nil
	}

	if err := b.linkUniforms(programHandle, p); err != nil {
		releaseProgram(p)
		return backend.BuildResult{Log: err.Error()}, nil
	}
	p.linked = true
	return backend.BuildResult{Success: true}, nil
}

// linkUniforms reflects the uniform blocks of both stages, creates one uniform buffer per block
// and the bind group layouts, bind groups and pipeline layout that expose them to the pipeline.
func (b *wgpuBackendImpl) linkUniforms(h backend.Handle, p *program) error {
	type bindingKey struct{ group, binding int }
	seen := make(map[bindingKey]bool)
	maxGroup := -1
	for _, source := range []string{p.vertex.source, p.fragment.source} {
		for _, block := range backend.ReflectWGSLUniforms(source) {
			key := bindingKey{block.Group, block.Binding}
			if seen[key] {
				continue
			}
			seen[key] = true
			buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: fmt.Sprintf("program %d uniform %s", h, block.Var),
				Size:  block.Size,
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			})
			if err != nil {
				return err
			}
			p.bindings = append(p.bindings, &uniformBinding{block: block, buffer: buf})
			maxGroup = max(maxGroup, block.Group)
		}
	}

	for i, ub := range p.bindings {
		for _, f := range ub.block.Fields {
			if _, dup := p.uniforms[f.Name]; dup {
				continue
			}
			p.uniforms[f.Name] = backend.Location(len(p.refs))
			p.refs = append(p.refs, uniformRef{binding: i, field: f})
		}
	}

	// Pipeline layouts address groups by index, so unused group indices get empty layouts.
	p.groupLayouts = make([]*wgpu.BindGroupLayout, maxGroup+1)
	p.bindGroups = make([]*wgpu.BindGroup, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		var layoutEntries []wgpu.BindGroupLayoutEntry
		var entries []wgpu.BindGroupEntry
		for _, ub := range p.bindings {
			if ub.block.Group != g {
				continue
			}
			layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
				Binding:    uint32(ub.block.Binding),
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: ub.block.Size,
				},
			})
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: uint32(ub.block.Binding),
				Buffer:  ub.buffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			})
		}
		sort.Slice(layoutEntries, func(i, j int) bool { return layoutEntries[i].Binding < layoutEntries[j].Binding })

		layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("program %d group %d", h, g),
			Entries: layoutEntries,
		})
		if err != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		p.groupLayouts[g] = layout

		group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("program %d bind group %d", h, g),
			Layout:  layout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("failed to create bind group %d: %w", g, err)
		}
		p.bindGroups[g] = group
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            fmt.Sprintf("program %d", h),
		BindGroupLayouts: p.groupLayouts,
	})
	if err != nil {
		return err
	}
	p.layout = layout
	return nil
}

func (b *wgpuBackendImpl) ValidateProgram(programHandle backend.Handle) (backend.BuildResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[programHandle]
	if !ok {
		return backend.BuildResult{}, fmt.Errorf("unknown program %d", programHandle)
	}
	if !p.linked {
		return backend.BuildResult{Log: "program is not linked"}, nil
	}
	return backend.BuildResult{Success: true}, nil
}

func (b *wgpuBackendImpl) UniformLocation(programHandle backend.Handle, name string) (backend.Location, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[programHandle]
	if !ok || !p.linked {
		return -1, false
	}
	loc, ok := p.uniforms[name]
	return loc, ok
}

func (b *wgpuBackendImpl) UploadUniform(programHandle backend.Handle, loc backend.Location, value common.UniformValue) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[programHandle]
	if !ok || !p.linked {
		return fmt.Errorf("program %d is not linked", programHandle)
	}
	if loc < 0 || int(loc) >= len(p.refs) {
		return fmt.Errorf("invalid uniform location %d", loc)
	}
	ref := p.refs[loc]
	data, err := backend.PackUniform(value, ref.field.Type)
	if err != nil {
		return fmt.Errorf("uniform %s: %w", ref.field.Name, err)
	}
	b.queue.WriteBuffer(p.bindings[ref.binding].buffer, ref.field.Offset, data)
	return nil
}

// Draw

func (b *wgpuBackendImpl) Draw(topology common.Topology, first, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.prepareDraw(topology, wgpu.IndexFormatUndefined); err != nil {
		return err
	}
	b.framePass.Draw(uint32(count), 1, uint32(first), 0)
	return nil
}

func (b *wgpuBackendImpl) DrawIndexed(topology common.Topology, indexType common.ElementType, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	format, err := wgpuIndexFormat(indexType)
	if err != nil {
		return err
	}
	ib, err := b.boundBuffer(common.TargetIndex)
	if err != nil {
		return err
	}
	if !ib.allocated {
		return errors.New("index buffer has no storage")
	}
	if err := b.prepareDraw(topology, format); err != nil {
		return err
	}
	b.framePass.SetIndexBuffer(ib.gpu, format, 0, wgpu.WholeSize)
	b.framePass.DrawIndexed(uint32(count), 1, 0, 0, 0)
	return nil
}

// prepareDraw sets the pipeline, bind groups and vertex buffers of the current pass for the
// active program and vertex array. It must be called with b.mu held.
func (b *wgpuBackendImpl) prepareDraw(topology common.Topology, indexFormat wgpu.IndexFormat) error {
	if b.framePass == nil {
		return errors.New("draw outside of a frame")
	}
	p, ok := b.programs[b.program]
	if !ok {
		return errors.New("no program in use")
	}
	va, ok := b.arrays[b.vertexArray]
	if !ok {
		return errors.New("no vertex array bound")
	}

	streams, err := b.vertexStreams(va)
	if err != nil {
		return err
	}
	pipeline, err := b.pipeline(p, streams, topology, indexFormat)
	if err != nil {
		return err
	}

	b.framePass.SetPipeline(pipeline)
	for g, group := range p.bindGroups {
		b.framePass.SetBindGroup(uint32(g), group, nil)
	}
	for i, s := range streams {
		buf := b.buffers[s.buffer]
		if buf == nil || !buf.allocated {
			return fmt.Errorf("vertex buffer %d has no storage", s.buffer)
		}
		b.framePass.SetVertexBuffer(uint32(i), buf.gpu, 0, wgpu.WholeSize)
	}
	return nil
}

// vertexStreams groups the enabled slots of va into one vertex buffer layout per (buffer, stride),
// ordered by their lowest slot. Each slot becomes the shader location of the same index.
func (b *wgpuBackendImpl) vertexStreams(va *vertexArray) ([]vertexStream, error) {
	slots := make([]int, 0, len(va.slots))
	for i, s := range va.slots {
		if s.enabled {
			slots = append(slots, i)
		}
	}
	sort.Ints(slots)

	type streamKey struct {
		buffer backend.Handle
		stride int
	}
	index := make(map[streamKey]int)
	var streams []vertexStream
	for _, i := range slots {
		s := va.slots[i]
		format, err := vertexFormat(s.elemType, s.count, s.normalized)
		if err != nil {
			return nil, fmt.Errorf("attribute slot %d: %w", i, err)
		}
		key := streamKey{s.buffer, s.stride}
		n, ok := index[key]
		if !ok {
			n = len(streams)
			index[key] = n
			streams = append(streams, vertexStream{
				buffer: s.buffer,
				layout: wgpu.VertexBufferLayout{
					ArrayStride: uint64(s.stride),
					StepMode:    wgpu.VertexStepModeVertex,
				},
			})
		}
		streams[n].layout.Attributes = append(streams[n].layout.Attributes, wgpu.VertexAttribute{
			Format:         format,
			Offset:         uint64(s.offset),
			ShaderLocation: uint32(i),
		})
	}
	return streams, nil
}

// pipeline returns the render pipeline of p for the given vertex streams, topology and index
// format, creating and caching it on first use.
func (b *wgpuBackendImpl) pipeline(p *program, streams []vertexStream, topology common.Topology, indexFormat wgpu.IndexFormat) (*wgpu.RenderPipeline, error) {
	primitive, err := wgpuTopology(topology)
	if err != nil {
		return nil, err
	}
	stripFormat := wgpu.IndexFormatUndefined
	if isStrip(primitive) {
		stripFormat = indexFormat
	}

	var key strings.Builder
	fmt.Fprintf(&key, "%d/%d", primitive, stripFormat)
	layouts := make([]wgpu.VertexBufferLayout, len(streams))
	for i, s := range streams {
		layouts[i] = s.layout
		fmt.Fprintf(&key, "|%d", s.layout.ArrayStride)
		for _, a := range s.layout.Attributes {
			fmt.Fprintf(&key, ":%d,%d,%d", a.ShaderLocation, a.Format, a.Offset)
		}
	}
	if cached, ok := p.pipelines[key.String()]; ok {
		return cached, nil
	}

	depthCompare := wgpu.CompareFunctionLess
	if !b.depthTest {
		depthCompare = wgpu.CompareFunctionAlways
	}
	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "pipeline " + key.String(),
		Layout: p.layout,
		Vertex: wgpu.VertexState{
			Module:     p.vertex.module,
			EntryPoint: p.vertex.entry,
			Buffers:    layouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.fragment.module,
			EntryPoint: p.fragment.entry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    b.surfaceFormat,
					Blend:     &alphaBlend,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:         primitive,
			StripIndexFormat: stripFormat,
			FrontFace:        wgpu.FrontFaceCCW,
			CullMode:         wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: b.depthTest,
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	p.pipelines[key.String()] = created
	return created, nil
}

// releaseProgram releases every GPU object created when p was linked and returns p to the
// unlinked state. Attached stages are kept.
func releaseProgram(p *program) {
	for _, rp := range p.pipelines {
		rp.Release()
	}
	clear(p.pipelines)
	for _, bg := range p.bindGroups {
		if bg != nil {
			bg.Release()
		}
	}
	for _, l := range p.groupLayouts {
		if l != nil {
			l.Release()
		}
	}
	for _, ub := range p.bindings {
		ub.buffer.Release()
	}
	if p.layout != nil {
		p.layout.Release()
	}
	p.bindGroups, p.groupLayouts, p.bindings, p.layout = nil, nil, nil, nil
	p.refs = nil
	clear(p.uniforms)
	p.linked = false
}

func (b *wgpuBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.programs {
		releaseProgram(p)
	}
	for _, s := range b.stages {
		if s.module != nil {
			s.module.Release()
		}
	}
	for _, buf := range b.buffers {
		if buf.gpu != nil {
			buf.gpu.Release()
		}
	}
	clear(b.programs)
	clear(b.stages)
	clear(b.buffers)
	clear(b.arrays)
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}
