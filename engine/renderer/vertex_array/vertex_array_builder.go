package vertex_array

// VertexArrayBuilderOption is a function that configures a VertexArray during construction.
type VertexArrayBuilderOption func(*vertexArrayImpl)

// WithLabel sets the debug label of the vertex array.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - VertexArrayBuilderOption: a function that applies the label option to a vertexArrayImpl
func WithLabel(label string) VertexArrayBuilderOption {
	return func(va *vertexArrayImpl) {
		va.label = label
	}
}
