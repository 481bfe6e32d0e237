package backend

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// Op names a Backend method in the recording backend's call log.
type Op string

const (
	OpCreateBuffer         Op = "CreateBuffer"
	OpDeleteBuffer         Op = "DeleteBuffer"
	OpCreateVertexArray    Op = "CreateVertexArray"
	OpDeleteVertexArray    Op = "DeleteVertexArray"
	OpCreateProgram        Op = "CreateProgram"
	OpDeleteProgram        Op = "DeleteProgram"
	OpCreateShaderStage    Op = "CreateShaderStage"
	OpDeleteShaderStage    Op = "DeleteShaderStage"
	OpBindBuffer           Op = "BindBuffer"
	OpBindVertexArray      Op = "BindVertexArray"
	OpUseProgram           Op = "UseProgram"
	OpUploadFull           Op = "UploadFull"
	OpUploadRange          Op = "UploadRange"
	OpMapRange             Op = "MapRange"
	OpUnmap                Op = "Unmap"
	OpDescribeAttribute    Op = "DescribeAttribute"
	OpEnableAttributeSlot  Op = "EnableAttributeSlot"
	OpDisableAttributeSlot Op = "DisableAttributeSlot"
	OpCompileStage         Op = "CompileStage"
	OpAttachStage          Op = "AttachStage"
	OpLinkProgram          Op = "LinkProgram"
	OpValidateProgram      Op = "ValidateProgram"
	OpUniformLocation      Op = "UniformLocation"
	OpUploadUniform        Op = "UploadUniform"
	OpDraw                 Op = "Draw"
	OpDrawIndexed          Op = "DrawIndexed"
	OpBeginFrame           Op = "BeginFrame"
	OpEndFrame             Op = "EndFrame"
	OpPresent              Op = "Present"
	OpResize               Op = "Resize"
)

// Call is one entry of the recording backend's call log.
type Call struct {
	Op   Op
	Args []any
	// Err is the error the call returned, if any.
	Err error
}

func (c Call) String() string {
	var sb strings.Builder
	sb.WriteString(string(c.Op))
	sb.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprint(&sb, a)
	}
	sb.WriteByte(')')
	if c.Err != nil {
		sb.WriteString(" -> ")
		sb.WriteString(c.Err.Error())
	}
	return sb.String()
}

// SlotState is the attribute slot state recorded on a vertex array.
type SlotState struct {
	Enabled        bool
	Buffer         Handle
	ComponentCount int
	ElementType    common.ElementType
	Normalized     bool
	Stride         int
	Offset         int
}

// ErrUnknownHandle is returned by the recording backend for handles it never created or already deleted.
var ErrUnknownHandle = errors.New("unknown handle")

type recordedBuffer struct {
	data      []byte
	allocated bool
	usage     common.UsageHint
	mapped    bool
}

type recordedArray struct {
	slots map[int]*SlotState
}

type recordedStage struct {
	stage    common.StageType
	source   string
	compiled bool
}

type recordedProgram struct {
	stages   []Handle
	linked   bool
	uniforms map[string]Location
	values   map[Location]common.UniformValue
}

// failure is an injected error returned by the call after skip successful calls of an op.
type failure struct {
	err  error
	skip int
}

// recordingBackendImpl is the implementation of the Recorder interface.
type recordingBackendImpl struct {
	mu       sync.Mutex
	next     Handle
	buffers  map[Handle]*recordedBuffer
	arrays   map[Handle]*recordedArray
	stages   map[Handle]*recordedStage
	programs map[Handle]*recordedProgram

	bound       map[common.TargetKind]Handle
	vertexArray Handle
	program     Handle

	inFrame  bool
	width    int
	height   int
	calls    []Call
	failures map[Op]*failure
}

// Recorder is an in-memory Backend that drives no GPU. It keeps a faithful model of buffer storage,
// attribute slots and linked programs, records every call, and can be told to fail specific
// operations. It backs headless runs and every test of the resource layer.
type Recorder interface {
	Backend
	FrameBackend

	// Calls returns how many times op was called, including calls that failed.
	Calls(op Op) int

	// Log returns a copy of the call log in call order.
	Log() []Call

	// Reset clears the call log. Resource state is kept.
	Reset()

	// InjectFailure makes op return err once, after skip further successful calls of op.
	//
	// Parameters:
	//   - op: the operation to fail
	//   - skip: how many calls of op succeed before the failing one
	//   - err: the error to return
	InjectFailure(op Op, skip int, err error)

	// BufferData returns a copy of the storage of buffer h and whether h has allocated storage.
	BufferData(h Handle) ([]byte, bool)

	// Slot returns the recorded state of attribute slot on vertex array h.
	Slot(array Handle, slot int) (SlotState, bool)

	// UniformValue returns the last value uploaded to the named uniform of program h.
	UniformValue(program Handle, name string) (common.UniformValue, bool)

	// Live returns the number of handles created and not yet deleted.
	Live() int

	// Bound returns the handle the backend currently has bound to target.
	Bound(target common.TargetKind) Handle

	// SurfaceSize returns the size last passed to Resize.
	SurfaceSize() (width, height int)
}

var _ Recorder = &recordingBackendImpl{}

// glslUniformRegex matches GLSL-style declarations such as "uniform mat4 model;" or
// "uniform highp vec3 lightPos;".
var glslUniformRegex = regexp.MustCompile(`\buniform\s+(?:(?:lowp|mediump|highp)\s+)?\w+\s+(\w+)\s*(?:\[\s*\d+\s*\])?\s*;`)

// NewRecordingBackend creates a Recorder.
//
// Parameters:
//   - options: variadic list of RecordingBackendBuilderOption functions to configure the backend
//
// Returns:
//   - Recorder: the new recording backend
func NewRecordingBackend(options ...RecordingBackendBuilderOption) Recorder {
	b := &recordingBackendImpl{
		buffers:  make(map[Handle]*recordedBuffer),
		arrays:   make(map[Handle]*recordedArray),
		stages:   make(map[Handle]*recordedStage),
		programs: make(map[Handle]*recordedProgram),
		bound:    make(map[common.TargetKind]Handle),
		failures: make(map[Op]*failure),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *recordingBackendImpl) Calls(op Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, c := range b.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (b *recordingBackendImpl) Log() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

func (b *recordingBackendImpl) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *recordingBackendImpl) InjectFailure(op Op, skip int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = &failure{err: err, skip: skip}
}

func (b *recordingBackendImpl) BufferData(h Handle) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[h]
	if !ok || !buf.allocated {
		return nil, false
	}
	return append([]byte(nil), buf.data...), true
}

func (b *recordingBackendImpl) Slot(array Handle, slot int) (SlotState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	va, ok := b.arrays[array]
	if !ok {
		return SlotState{}, false
	}
	s, ok := va.slots[slot]
	if !ok {
		return SlotState{}, false
	}
	return *s, true
}

func (b *recordingBackendImpl) UniformValue(program Handle, name string) (common.UniformValue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[program]
	if !ok {
		return common.UniformValue{}, false
	}
	loc, ok := p.uniforms[name]
	if !ok {
		return common.UniformValue{}, false
	}
	v, ok := p.values[loc]
	return v, ok
}

func (b *recordingBackendImpl) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers) + len(b.arrays) + len(b.stages) + len(b.programs)
}

func (b *recordingBackendImpl) Bound(target common.TargetKind) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch target {
	case common.TargetVertexArray:
		return b.vertexArray
	case common.TargetProgram:
		return b.program
	default:
		return b.bound[target]
	}
}

func (b *recordingBackendImpl) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// record appends a call to the log and returns the injected failure for op, if one is due.
// It must be called with b.mu held. When it returns a non-nil error the caller returns it untouched.
func (b *recordingBackendImpl) record(op Op, args ...any) error {
	var err error
	if f, ok := b.failures[op]; ok {
		if f.skip == 0 {
			err = f.err
			delete(b.failures, op)
		} else {
			f.skip--
		}
	}
	b.calls = append(b.calls, Call{Op: op, Args: args, Err: err})
	return err
}

// fail marks the last logged call as failed with err and returns err.
func (b *recordingBackendImpl) fail(err error) error {
	if n := len(b.calls); n > 0 {
		b.calls[n-1].Err = err
	}
	return err
}

func (b *recordingBackendImpl) newHandle() Handle {
	b.next++
	return b.next
}

func (b *recordingBackendImpl) CreateBuffer() (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpCreateBuffer); err != nil {
		return 0, err
	}
	h := b.newHandle()
	b.buffers[h] = &recordedBuffer{}
	b.calls[len(b.calls)-1].Args = []any{h}
	return h, nil
}

func (b *recordingBackendImpl) DeleteBuffer(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpDeleteBuffer, h); err != nil {
		return err
	}
	if _, ok := b.buffers[h]; !ok {
		return b.fail(fmt.Errorf("buffer %d: %w", h, ErrUnknownHandle))
	}
	delete(b.buffers, h)
	for target, cur := range b.bound {
		if cur == h {
			delete(b.bound, target)
		}
	}
	return nil
}

func (b *recordingBackendImpl) CreateVertexArray() (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpCreateVertexArray); err != nil {
		return 0, err
	}
	h := b.newHandle()
	b.arrays[h] = &recordedArray{slots: make(map[int]*SlotState)}
	b.calls[len(b.calls)-1].Args = []any{h}
	return h, nil
}

func (b *recordingBackendImpl) DeleteVertexArray(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpDeleteVertexArray, h); err != nil {
		return err
	}
	if _, ok := b.arrays[h]; !ok {
		return b.fail(fmt.Errorf("vertex array %d: %w", h, ErrUnknownHandle))
	}
	delete(b.arrays, h)
	if b.vertexArray == h {
		b.vertexArray = 0
	}
	return nil
}

func (b *recordingBackendImpl) CreateProgram() (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpCreateProgram); err != nil {
		return 0, err
	}
	h := b.newHandle()
	b.programs[h] = &recordedProgram{
		uniforms: make(map[string]Location),
		values:   make(map[Location]common.UniformValue),
	}
	b.calls[len(b.calls)-1].Args = []any{h}
	return h, nil
}

func (b *recordingBackendImpl) DeleteProgram(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpDeleteProgram, h); err != nil {
		return err
	}
	if _, ok := b.programs[h]; !ok {
		return b.fail(fmt.Errorf("program %d: %w", h, ErrUnknownHandle))
	}
	delete(b.programs, h)
	if b.program == h {
		b.program = 0
	}
	return nil
}

func (b *recordingBackendImpl) CreateShaderStage(stage common.StageType) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpCreateShaderStage, stage); err != nil {
		return 0, err
	}
	h := b.newHandle()
	b.stages[h] = &recordedStage{stage: stage}
	return h, nil
}

func (b *recordingBackendImpl) DeleteShaderStage(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpDeleteShaderStage, h); err != nil {
		return err
	}
	if _, ok := b.stages[h]; !ok {
		return b.fail(fmt.Errorf("shader stage %d: %w", h, ErrUnknownHandle))
	}
	delete(b.stages, h)
	return nil
}

func (b *recordingBackendImpl) BindBuffer(target common.TargetKind, h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpBindBuffer, target, h); err != nil {
		return err
	}
	if h == 0 {
		delete(b.bound, target)
		return nil
	}
	if _, ok := b.buffers[h]; !ok {
		return b.fail(fmt.Errorf("buffer %d: %w", h, ErrUnknownHandle))
	}
	b.bound[target] = h
	return nil
}

func (b *recordingBackendImpl) BindVertexArray(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpBindVertexArray, h); err != nil {
		return err
	}
	if _, ok := b.arrays[h]; h != 0 && !ok {
		return b.fail(fmt.Errorf("vertex array %d: %w", h, ErrUnknownHandle))
	}
	b.vertexArray = h
	return nil
}

func (b *recordingBackendImpl) UseProgram(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpUseProgram, h); err != nil {
		return err
	}
	if h != 0 {
		p, ok := b.programs[h]
		if !ok {
			return b.fail(fmt.Errorf("program %d: %w", h, ErrUnknownHandle))
		}
		if !p.linked {
			return b.fail(fmt.Errorf("program %d is not linked", h))
		}
	}
	b.program = h
	return nil
}

// boundBuffer returns the buffer bound to target. It must be called with b.mu held.
func (b *recordingBackendImpl) boundBuffer(target common.TargetKind) (*recordedBuffer, error) {
	h, ok := b.bound[target]
	if !ok || h == 0 {
		return nil, fmt.Errorf("no buffer bound to %s target", target)
	}
	return b.buffers[h], nil
}

func (b *recordingBackendImpl) UploadFull(target common.TargetKind, sizeBytes int, data []byte, usage common.UsageHint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpUploadFull, target, sizeBytes, len(data), usage); err != nil {
		return err
	}
	buf, err := b.boundBuffer(target)
	if err != nil {
		return b.fail(err)
	}
	if buf.mapped {
		return b.fail(errors.New("buffer is mapped"))
	}
	if sizeBytes < 0 || len(data) > sizeBytes {
		return b.fail(fmt.Errorf("invalid allocation of %d bytes with %d bytes of data", sizeBytes, len(data)))
	}
	buf.data = make([]byte, sizeBytes)
	copy(buf.data, data)
	buf.allocated = true
	buf.usage = usage
	return nil
}

func (b *recordingBackendImpl) UploadRange(target common.TargetKind, byteOffset int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpUploadRange, target, byteOffset, len(data)); err != nil {
		return err
	}
	buf, err := b.boundBuffer(target)
	if err != nil {
		return b.fail(err)
	}
	if !buf.allocated {
		return b.fail(errors.New("buffer has no storage"))
	}
	if buf.mapped {
		return b.fail(errors.New("buffer is mapped"))
	}
	if byteOffset < 0 || byteOffset+len(data) > len(buf.data) {
		return b.fail(fmt.Errorf("range [%d, %d) outside storage of %d bytes", byteOffset, byteOffset+len(data), len(buf.data)))
	}
	copy(buf.data[byteOffset:], data)
	return nil
}

func (b *recordingBackendImpl) MapRange(target common.TargetKind, byteOffset, sizeBytes int, access common.MapAccess) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpMapRange, target, byteOffset, sizeBytes, access); err != nil {
		return nil, err
	}
	buf, err := b.boundBuffer(target)
	if err != nil {
		return nil, b.fail(err)
	}
	if buf.mapped {
		return nil, b.fail(errors.New("buffer is already mapped"))
	}
	if !buf.allocated {
		return nil, b.fail(errors.New("buffer has no storage"))
	}
	if byteOffset < 0 || sizeBytes < 0 || byteOffset+sizeBytes > len(buf.data) {
		return nil, b.fail(fmt.Errorf("range [%d, %d) outside storage of %d bytes", byteOffset, byteOffset+sizeBytes, len(buf.data)))
	}
	buf.mapped = true
	return buf.data[byteOffset : byteOffset+sizeBytes : byteOffset+sizeBytes], nil
}

func (b *recordingBackendImpl) Unmap(target common.TargetKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpUnmap, target); err != nil {
		return err
	}
	buf, err := b.boundBuffer(target)
	if err != nil {
		return b.fail(err)
	}
	if !buf.mapped {
		return b.fail(errors.New("buffer is not mapped"))
	}
	buf.mapped = false
	return nil
}

// boundArray returns the bound vertex array. It must be called with b.mu held.
func (b *recordingBackendImpl) boundArray() (*recordedArray, error) {
	if b.vertexArray == 0 {
		return nil, errors.New("no vertex array bound")
	}
	return b.arrays[b.vertexArray], nil
}

func (b *recordingBackendImpl) slot(va *recordedArray, slot int) *SlotState {
	s, ok := va.slots[slot]
	if !ok {
		s = &SlotState{}
		va.slots[slot] = s
	}
	return s
}

func (b *recordingBackendImpl) DescribeAttribute(slot, componentCount int, elementType common.ElementType, normalized bool, strideBytes, byteOffset int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpDescribeAttribute, slot, componentCount, elementType, normalized, strideBytes, byteOffset); err != nil {
		return err
	}
	va, err := b.boundArray()
	if err != nil {
		return b.fail(err)
	}
	vb, ok := b.bound[common.TargetVertex]
	if !ok || vb == 0 {
		return b.fail(errors.New("no vertex buffer bound"))
	}
	if slot < 0 || componentCount < 1 || strideBytes < 0 || byteOffset < 0 {
		return b.fail(fmt.Errorf("invalid attribute description for slot %d", slot))
	}
	s := b.slot(va, slot)
	s.Buffer = vb
	s.ComponentCount = componentCount
	s.ElementType = elementType
	s.Normalized = normalized
	s.Stride = strideBytes
	s.Offset = byteOffset
	return nil
}

func (b *recordingBackendImpl) EnableAttributeSlot(slot int) error {
	return b.setSlotEnabled(OpEnableAttributeSlot, slot, true)
}

func (b *recordingBackendImpl) DisableAttributeSlot(slot int) error {
	return b.setSlotEnabled(OpDisableAttributeSlot, slot, false)
}

func (b *recordingBackendImpl) setSlotEnabled(op Op, slot int, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(op, slot); err != nil {
		return err
	}
	va, err := b.boundArray()
	if err != nil {
		return b.fail(err)
	}
	if slot < 0 {
		return b.fail(fmt.Errorf("invalid attribute slot %d", slot))
	}
	b.slot(va, slot).Enabled = enabled
	return nil
}

func (b *recordingBackendImpl) CompileStage(stage Handle, source string) (BuildResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpCompileStage, stage, len(source)); err != nil {
		return BuildResult{}, err
	}
	s, ok := b.stages[stage]
	if !ok {
		return BuildResult{}, b.fail(fmt.Errorf("shader stage %d: %w", stage, ErrUnknownHandle))
	}
	s.source = source
	s.compiled = false

	if strings.TrimSpace(source) == "" {
		return BuildResult{Log: "ERROR: 0:1: '' : empty shader source"}, nil
	}
	for i, line := range strings.Split(source, "\n") {
		if msg, ok := strings.CutPrefix(strings.TrimSpace(line), "#error"); ok {
			return BuildResult{Log: fmt.Sprintf("ERROR: 0:%d: '#error' : %s", i+1, strings.TrimSpace(msg))}, nil
		}
	}
	s.compiled = true
	return BuildResult{Success: true}, nil
}

func (b *recordingBackendImpl) AttachStage(program, stage Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpAttachStage, program, stage); err != nil {
		return err
	}
	p, ok := b.programs[program]
	if !ok {
		return b.fail(fmt.Errorf("program %d: %w", program, ErrUnknownHandle))
	}
	if _, ok := b.stages[stage]; !ok {
		return b.fail(fmt.Errorf("shader stage %d: %w", stage, ErrUnknownHandle))
	}
	p.stages = append(p.stages, stage)
	return nil
}

func (b *recordingBackendImpl) LinkProgram(program Handle) (BuildResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpLinkProgram, program); err != nil {
		return BuildResult{}, err
	}
	p, ok := b.programs[program]
	if !ok {
		return BuildResult{}, b.fail(fmt.Errorf("program %d: %w", program, ErrUnknownHandle))
	}
	p.linked = false
	clear(p.uniforms)
	clear(p.values)

	if len(p.stages) == 0 {
		return BuildResult{Log: "error: no shader stages attached"}, nil
	}
	for _, sh := range p.stages {
		s, ok := b.stages[sh]
		if !ok {
			return BuildResult{Log: fmt.Sprintf("error: shader stage %d was deleted", sh)}, nil
		}
		if !s.compiled {
			return BuildResult{Log: fmt.Sprintf("error: %s shader stage %d is not compiled", s.stage, sh)}, nil
		}
		for _, name := range reflectUniformNames(s.source) {
			if _, dup := p.uniforms[name]; !dup {
				p.uniforms[name] = Location(len(p.uniforms))
			}
		}
	}
	p.linked = true
	return BuildResult{Success: true}, nil
}

func (b *recordingBackendImpl) ValidateProgram(program Handle) (BuildResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpValidateProgram, program); err != nil {
		return BuildResult{}, err
	}
	p, ok := b.programs[program]
	if !ok {
		return BuildResult{}, b.fail(fmt.Errorf("program %d: %w", program, ErrUnknownHandle))
	}
	if !p.linked {
		return BuildResult{Log: "error: program is not linked"}, nil
	}
	return BuildResult{Success: true}, nil
}

func (b *recordingBackendImpl) UniformLocation(program Handle, name string) (Location, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpUniformLocation, program, name); err != nil {
		return -1, false
	}
	p, ok := b.programs[program]
	if !ok || !p.linked {
		return -1, false
	}
	loc, ok := p.uniforms[name]
	if !ok {
		return -1, false
	}
	return loc, true
}

func (b *recordingBackendImpl) UploadUniform(program Handle, loc Location, value common.UniformValue) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpUploadUniform, program, loc, value); err != nil {
		return err
	}
	p, ok := b.programs[program]
	if !ok {
		return b.fail(fmt.Errorf("program %d: %w", program, ErrUnknownHandle))
	}
	if loc < 0 || int(loc) >= len(p.uniforms) {
		return b.fail(fmt.Errorf("invalid uniform location %d", loc))
	}
	p.values[loc] = value
	return nil
}

func (b *recordingBackendImpl) Draw(topology common.Topology, first, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpDraw, topology, first, count); err != nil {
		return err
	}
	if b.vertexArray == 0 {
		return b.fail(errors.New("no vertex array bound"))
	}
	if first < 0 || count < 0 {
		return b.fail(fmt.Errorf("invalid draw range first=%d count=%d", first, count))
	}
	return nil
}

func (b *recordingBackendImpl) DrawIndexed(topology common.Topology, indexType common.ElementType, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpDrawIndexed, topology, indexType, count); err != nil {
		return err
	}
	if b.vertexArray == 0 {
		return b.fail(errors.New("no vertex array bound"))
	}
	buf, err := b.boundBuffer(common.TargetIndex)
	if err != nil {
		return b.fail(err)
	}
	if indexType != common.ElementUnsignedShort && indexType != common.ElementUnsignedInt {
		return b.fail(fmt.Errorf("invalid index type %s", indexType))
	}
	if count < 0 || count*indexType.ByteSize() > len(buf.data) {
		return b.fail(fmt.Errorf("%d indices exceed index buffer of %d bytes", count, len(buf.data)))
	}
	return nil
}

func (b *recordingBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpBeginFrame); err != nil {
		return err
	}
	if b.inFrame {
		return b.fail(errors.New("previous frame not ended"))
	}
	b.inFrame = true
	return nil
}

func (b *recordingBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(OpEndFrame); err != nil {
		return err
	}
	if !b.inFrame {
		return b.fail(errors.New("no frame in progress"))
	}
	b.inFrame = false
	return nil
}

func (b *recordingBackendImpl) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record(OpPresent)
}

func (b *recordingBackendImpl) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_ = b.record(OpResize, width, height)
	b.width, b.height = width, height
}

// reflectUniformNames returns the uniform names declared by a shader source, accepting both
// GLSL-style "uniform T name;" declarations and WGSL var<uniform> blocks.
func reflectUniformNames(source string) []string {
	var names []string
	for _, m := range glslUniformRegex.FindAllStringSubmatch(source, -1) {
		names = append(names, m[1])
	}
	for _, block := range ReflectWGSLUniforms(source) {
		for _, f := range block.Fields {
			names = append(names, f.Name)
		}
	}
	return names
}
