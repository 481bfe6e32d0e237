package backend

import (
	"log/slog"
)

// ContextBuilderOption is a functional option applied to a context during construction via NewContext.
type ContextBuilderOption func(*gfxContext)

// WithLabel sets the debug label of the context. The label is attached to every log record.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - ContextBuilderOption: a function that applies the label option to a context
func WithLabel(label string) ContextBuilderOption {
	return func(c *gfxContext) {
		c.label = label
	}
}

// WithLogger sets the logger used by the context and every resource created with it, instead of
// the package-wide default from common.Logger.
//
// Parameters:
//   - l: the logger to use
//
// Returns:
//   - ContextBuilderOption: a function that applies the logger option to a context
func WithLogger(l *slog.Logger) ContextBuilderOption {
	return func(c *gfxContext) {
		c.logger = l
	}
}

// WithRedundantBindSkipping enables or disables skipping of bind calls for handles that are already
// bound. It is enabled by default; disabling it is useful when another library shares the driver
// context and changes bindings behind the cache's back.
//
// Parameters:
//   - enabled: true to skip redundant binds (default), false to forward every bind
//
// Returns:
//   - ContextBuilderOption: a function that applies the option to a context
func WithRedundantBindSkipping(enabled bool) ContextBuilderOption {
	return func(c *gfxContext) {
		c.skipRedundantBinds = enabled
	}
}
