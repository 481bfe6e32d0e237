package attribute_map

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// AttributeMapBuilderOption is a function that configures an AttributeMap during construction.
type AttributeMapBuilderOption func(*attributeMapImpl)

// WithLogger sets the logger that reports replaced attributes.
//
// Parameters:
//   - l: the logger to use
//
// Returns:
//   - AttributeMapBuilderOption: a function that applies the logger option to an attributeMapImpl
func WithLogger(l *slog.Logger) AttributeMapBuilderOption {
	return func(m *attributeMapImpl) {
		m.logger = l
	}
}

// WithAttribute puts an attribute during construction. Invalid attributes are skipped and logged.
//
// Parameters:
//   - name: the attribute name
//   - elementType: the type of each component
//   - componentCount: the number of components
//   - normalized: whether integer components are normalized when read
//
// Returns:
//   - AttributeMapBuilderOption: a function that applies the attribute to an attributeMapImpl
func WithAttribute(name string, elementType common.ElementType, componentCount int, normalized bool) AttributeMapBuilderOption {
	return func(m *attributeMapImpl) {
		if m.logger == nil {
			m.logger = common.Logger()
		}
		if _, err := m.Put(name, elementType, componentCount, normalized); err != nil {
			m.logger.Warn("attribute skipped", slog.String("name", name), slog.Any("error", err))
		}
	}
}
