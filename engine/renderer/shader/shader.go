package shader

import (
	"fmt"
	"image/color"
	"log/slog"

	"cogentcore.org/core/math32"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
)

// State is the link state of a Shader.
type State int

const (
	// StateUnlinked accepts new stages. Every shader starts here.
	StateUnlinked State = iota

	// StateReady is entered by the first successful Setup and never left.
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "unlinked"
}

// Uniform is a snapshot of one cached uniform of a Shader.
type Uniform struct {
	Name     string
	Location backend.Location
	Value    common.UniformValue
}

// uniformEntry is the cache record of a resolved uniform. Entries are created on the first Set
// that resolves to a location; uploaded is false until an upload succeeded.
type uniformEntry struct {
	location backend.Location
	value    common.UniformValue
	uploaded bool
}

// shader is the implementation of the Shader interface.
type shader struct {
	ctx    backend.Context
	logger *slog.Logger
	label  string
	handle backend.Handle
	pp     PreProcessor

	stages   []backend.Handle
	state    State
	disposed bool

	uniforms map[string]*uniformEntry
	// inactive holds names that resolved to no location, so they are looked up once.
	inactive map[string]struct{}
}

// Shader is a backend program built from compiled stages, with a uniform cache that only forwards
// changed values to the backend.
//
// A Shader moves from StateUnlinked to StateReady on the first successful Setup. Stages can only
// be added while unlinked. Enable, Disable and Set call Setup implicitly.
type Shader interface {
	// Handle returns the backend program handle.
	Handle() backend.Handle

	// Label returns the debug label of the shader.
	Label() string

	// State returns the link state.
	State() State

	// Add pre-processes and compiles source as a stage of the given type and attaches it to the
	// program. When compilation fails the stage is released and a *common.ShaderCompileError
	// carrying the compiler log verbatim is returned.
	//
	// Parameters:
	//   - stage: the stage type
	//   - source: the stage source
	//
	// Returns:
	//   - error: common.ErrAlreadyLinked after Setup, a pre-processing error, a
	//     *common.ShaderCompileError, or a backend error
	Add(stage common.StageType, source string) error

	// Setup links and validates the program. Only the first successful call does any work.
	//
	// Returns:
	//   - error: a *common.ShaderLinkError carrying the linker or validation log, or a backend error
	Setup() error

	// Enable makes this program the active one.
	Enable() error

	// Disable deactivates this program if it is the active one.
	Disable() error

	// Set uploads value to the named uniform unless the cache already holds an equal value.
	// A name the program has no active uniform for is a silent no-op.
	//
	// Parameters:
	//   - name: the uniform name
	//   - value: the new value
	//
	// Returns:
	//   - bool: true when the value was uploaded
	//   - error: an error if the shader cannot be set up or the upload failed; the cache keeps
	//     its previous value in that case
	Set(name string, value common.UniformValue) (bool, error)

	SetInt(name string, v int32) (bool, error)
	SetFloat(name string, v float32) (bool, error)
	SetVec2(name string, v math32.Vector2) (bool, error)
	SetVec3(name string, v math32.Vector3) (bool, error)
	SetVec4(name string, v math32.Vector4) (bool, error)

	// SetMat2 sets a 2x2 matrix given column-major.
	SetMat2(name string, m [4]float32) (bool, error)
	SetMat3(name string, m math32.Matrix3) (bool, error)
	SetMat4(name string, m math32.Matrix4) (bool, error)

	// SetColor sets a color as normalized non-premultiplied RGBA.
	SetColor(name string, c color.Color) (bool, error)
	SetQuat(name string, q math32.Quat) (bool, error)

	// Uniform returns the cached state of the named uniform. It reports false for names that were
	// never set or have no active location.
	Uniform(name string) (Uniform, bool)

	// Dispose releases the program and its stages. Disposing twice returns common.ErrDisposed. When
	// the backend fails to delete the program the shader stays undisposed so Dispose can be retried.
	Dispose() error
}

var _ Shader = &shader{}

// NewShader creates an unlinked Shader. The backend program is created immediately.
//
// Parameters:
//   - ctx: the graphics context the shader belongs to
//   - options: variadic list of ShaderBuilderOption functions to configure the shader
//
// Returns:
//   - Shader: the new shader
//   - error: an error if the backend could not create the program
func NewShader(ctx backend.Context, options ...ShaderBuilderOption) (Shader, error) {
	if ctx == nil {
		return nil, fmt.Errorf("shader context: %w", common.ErrNullArgument)
	}
	h, err := ctx.Backend().CreateProgram()
	if err != nil {
		return nil, common.WrapBackend("CreateProgram", err)
	}

	s := &shader{
		ctx:      ctx,
		handle:   h,
		pp:       NewPreProcessor(),
		uniforms: make(map[string]*uniformEntry),
		inactive: make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	s.label = common.Coalesce(s.label, fmt.Sprintf("program %d", h))
	s.logger = ctx.Logger().With(slog.String("shader", s.label))
	return s, nil
}

func (s *shader) Handle() backend.Handle { return s.handle }
func (s *shader) Label() string          { return s.label }
func (s *shader) State() State           { return s.state }

func (s *shader) usable(op string) error {
	if s.disposed {
		return fmt.Errorf("%s %s: %w", op, s.label, common.ErrDisposed)
	}
	return nil
}

func (s *shader) Add(stage common.StageType, source string) error {
	if err := s.usable("add stage to"); err != nil {
		return err
	}
	if s.state == StateReady {
		return fmt.Errorf("add %s stage to %s: %w", stage, s.label, common.ErrAlreadyLinked)
	}
	processed, err := s.pp.Process(source)
	if err != nil {
		return fmt.Errorf("pre-process %s stage of %s: %w", stage, s.label, err)
	}

	b := s.ctx.Backend()
	h, err := b.CreateShaderStage(stage)
	if err != nil {
		return common.WrapBackend("CreateShaderStage", err)
	}
	res, err := b.CompileStage(h, processed)
	if err != nil {
		s.deleteStage(h)
		return common.WrapBackend("CompileStage", err)
	}
	if !res.Success {
		s.deleteStage(h)
		s.logger.Warn("shader stage failed to compile",
			slog.String("stage", stage.String()),
			slog.String("log", res.Log))
		return &common.ShaderCompileError{Stage: stage, Diagnostic: res.Log}
	}
	if err := b.AttachStage(s.handle, h); err != nil {
		s.deleteStage(h)
		return common.WrapBackend("AttachStage", err)
	}
	s.stages = append(s.stages, h)
	return nil
}

// deleteStage releases a stage that never became part of the program.
func (s *shader) deleteStage(h backend.Handle) {
	if err := s.ctx.Backend().DeleteShaderStage(h); err != nil {
		s.logger.Warn("shader stage release failed", slog.Any("error", err))
	}
}

func (s *shader) Setup() error {
	if err := s.usable("set up"); err != nil {
		return err
	}
	if s.state == StateReady {
		return nil
	}

	b := s.ctx.Backend()
	res, err := b.LinkProgram(s.handle)
	if err != nil {
		return common.WrapBackend("LinkProgram", err)
	}
	if !res.Success {
		s.logger.Warn("shader program failed to link", slog.String("log", res.Log))
		return &common.ShaderLinkError{Diagnostic: res.Log}
	}
	res, err = b.ValidateProgram(s.handle)
	if err != nil {
		return common.WrapBackend("ValidateProgram", err)
	}
	if !res.Success {
		s.logger.Warn("shader program failed validation", slog.String("log", res.Log))
		return &common.ShaderLinkError{Diagnostic: res.Log}
	}

	s.state = StateReady
	s.logger.Debug("shader program linked", slog.Int("stages", len(s.stages)))
	return nil
}

func (s *shader) Enable() error {
	if err := s.Setup(); err != nil {
		return err
	}
	return s.ctx.UseProgram(s.handle)
}

func (s *shader) Disable() error {
	if err := s.Setup(); err != nil {
		return err
	}
	if cur, ok := s.ctx.Bindings().Bound(0, common.TargetProgram); ok && cur != s.handle {
		return nil
	}
	return s.ctx.UseProgram(0)
}

func (s *shader) Set(name string, value common.UniformValue) (bool, error) {
	if err := s.Setup(); err != nil {
		return false, err
	}
	if _, ok := s.inactive[name]; ok {
		return false, nil
	}

	u, ok := s.uniforms[name]
	if !ok {
		loc, found := s.ctx.Backend().UniformLocation(s.handle, name)
		if !found {
			s.inactive[name] = struct{}{}
			s.logger.Debug("uniform has no active location", slog.String("name", name))
			return false, nil
		}
		u = &uniformEntry{location: loc}
		s.uniforms[name] = u
	}
	if u.uploaded && u.value == value {
		return false, nil
	}

	if err := s.ctx.Backend().UploadUniform(s.handle, u.location, value); err != nil {
		return false, common.WrapBackend("UploadUniform", err)
	}
	u.value = value
	u.uploaded = true
	return true, nil
}

func (s *shader) SetInt(name string, v int32) (bool, error) {
	return s.Set(name, common.IntValue(v))
}

func (s *shader) SetFloat(name string, v float32) (bool, error) {
	return s.Set(name, common.FloatValue(v))
}

func (s *shader) SetVec2(name string, v math32.Vector2) (bool, error) {
	return s.Set(name, common.Vec2Value(v))
}

func (s *shader) SetVec3(name string, v math32.Vector3) (bool, error) {
	return s.Set(name, common.Vec3Value(v))
}

func (s *shader) SetVec4(name string, v math32.Vector4) (bool, error) {
	return s.Set(name, common.Vec4Value(v))
}

func (s *shader) SetMat2(name string, m [4]float32) (bool, error) {
	return s.Set(name, common.Mat2Value(m))
}

func (s *shader) SetMat3(name string, m math32.Matrix3) (bool, error) {
	return s.Set(name, common.Mat3Value(m))
}

func (s *shader) SetMat4(name string, m math32.Matrix4) (bool, error) {
	return s.Set(name, common.Mat4Value(m))
}

func (s *shader) SetColor(name string, c color.Color) (bool, error) {
	return s.Set(name, common.ColorValue(c))
}

func (s *shader) SetQuat(name string, q math32.Quat) (bool, error) {
	return s.Set(name, common.QuatValue(q))
}

func (s *shader) Uniform(name string) (Uniform, bool) {
	u, ok := s.uniforms[name]
	if !ok || !u.uploaded {
		return Uniform{}, false
	}
	return Uniform{Name: name, Location: u.location, Value: u.value}, true
}

func (s *shader) Dispose() error {
	if s.disposed {
		return fmt.Errorf("dispose %s: %w", s.label, common.ErrDisposed)
	}
	s.ctx.Release(s.handle)

	b := s.ctx.Backend()
	for _, h := range s.stages {
		s.deleteStage(h)
	}
	s.stages = nil
	clear(s.uniforms)
	clear(s.inactive)
	if err := b.DeleteProgram(s.handle); err != nil {
		return common.WrapBackend("DeleteProgram", err)
	}
	s.disposed = true
	s.logger.Debug("shader disposed")
	return nil
}
