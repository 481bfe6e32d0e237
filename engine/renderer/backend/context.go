package backend

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// gfxContext is the implementation of the Context interface.
type gfxContext struct {
	label    string
	backend  Backend
	bindings *BindingCache
	logger   *slog.Logger

	// skipRedundantBinds disables the binding cache when false; every bind then reaches the backend.
	skipRedundantBinds bool
}

// Context is the explicit graphics context every resource is constructed with. It owns the backend
// adapter, the binding cache and the logger, replacing any process-wide engine handle. Several
// contexts may exist side by side, each used from its own rendering thread.
type Context interface {
	// Label returns the debug label of the context.
	Label() string

	// Backend returns the adapter all resources of this context delegate to.
	//
	// Returns:
	//   - Backend: the backend adapter
	Backend() Backend

	// Bindings returns the binding cache of the context.
	Bindings() *BindingCache

	// Logger returns the logger resources of this context log through. It never returns nil.
	Logger() *slog.Logger

	// BindBuffer binds h to target unless it is already bound.
	//
	// Parameters:
	//   - target: common.TargetVertex or common.TargetIndex
	//   - h: the buffer handle, zero to unbind
	//
	// Returns:
	//   - error: a *common.BackendError if the backend call failed
	BindBuffer(target common.TargetKind, h Handle) error

	// BindVertexArray binds h as the active vertex array unless it is already bound.
	BindVertexArray(h Handle) error

	// UseProgram makes h the active program unless it already is.
	UseProgram(h Handle) error

	// Release invalidates every binding point that references h. Resources call it when they are
	// disposed, before the backend deletes the handle.
	Release(h Handle)
}

var _ Context = &gfxContext{}

// NewContext creates a Context around the given backend adapter.
//
// Parameters:
//   - b: the backend adapter
//   - options: variadic list of ContextBuilderOption functions to configure the context
//
// Returns:
//   - Context: the new context
func NewContext(b Backend, options ...ContextBuilderOption) Context {
	c := &gfxContext{
		label:              "context",
		backend:            b,
		bindings:           NewBindingCache(),
		skipRedundantBinds: true,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.logger == nil {
		c.logger = common.Logger()
	}
	c.logger = c.logger.With(slog.String("context", c.label))
	return c
}

func (c *gfxContext) Label() string {
	return c.label
}

func (c *gfxContext) Backend() Backend {
	return c.backend
}

func (c *gfxContext) Bindings() *BindingCache {
	return c.bindings
}

func (c *gfxContext) Logger() *slog.Logger {
	return c.logger
}

func (c *gfxContext) BindBuffer(target common.TargetKind, h Handle) error {
	if !c.shouldBind(target, h) {
		return nil
	}
	if err := c.backend.BindBuffer(target, h); err != nil {
		c.bindings.Forget(0, target)
		return common.WrapBackend("BindBuffer", err)
	}
	return nil
}

func (c *gfxContext) BindVertexArray(h Handle) error {
	if !c.shouldBind(common.TargetVertexArray, h) {
		return nil
	}
	if err := c.backend.BindVertexArray(h); err != nil {
		c.bindings.Forget(0, common.TargetVertexArray)
		return common.WrapBackend("BindVertexArray", err)
	}
	return nil
}

func (c *gfxContext) UseProgram(h Handle) error {
	if !c.shouldBind(common.TargetProgram, h) {
		return nil
	}
	if err := c.backend.UseProgram(h); err != nil {
		c.bindings.Forget(0, common.TargetProgram)
		return common.WrapBackend("UseProgram", err)
	}
	return nil
}

func (c *gfxContext) Release(h Handle) {
	c.bindings.Invalidate(h)
}

// shouldBind updates the binding cache and reports whether the backend must see the bind.
func (c *gfxContext) shouldBind(target common.TargetKind, h Handle) bool {
	changed := c.bindings.Bind(0, target, h)
	return changed || !c.skipRedundantBinds
}
