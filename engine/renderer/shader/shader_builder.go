package shader

// ShaderBuilderOption is a function that configures a Shader during construction.
type ShaderBuilderOption func(*shader)

// WithLabel sets the debug label of the shader.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - ShaderBuilderOption: a function that applies the label option to a shader
func WithLabel(label string) ShaderBuilderOption {
	return func(s *shader) {
		s.label = label
	}
}

// WithInclude registers a snippet that stage sources can pull in with //@oxy:include <name>.
//
// Parameters:
//   - name: the include name
//   - source: the snippet source
//
// Returns:
//   - ShaderBuilderOption: a function that registers the snippet on the shader's pre-processor
func WithInclude(name, source string) ShaderBuilderOption {
	return func(s *shader) {
		s.pp.Register(name, source)
	}
}

// WithPreProcessor replaces the shader's pre-processor, for sharing one snippet registry between
// shaders. Options applied before this one that registered snippets are discarded.
//
// Parameters:
//   - pp: the pre-processor to use
//
// Returns:
//   - ShaderBuilderOption: a function that applies the pre-processor option to a shader
func WithPreProcessor(pp PreProcessor) ShaderBuilderOption {
	return func(s *shader) {
		if pp != nil {
			s.pp = pp
		}
	}
}
