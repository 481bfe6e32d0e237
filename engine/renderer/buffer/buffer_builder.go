package buffer

// bufferConfig collects the options applied by NewBuffer. Options are not generic so the same
// option values work for vertex and index buffers.
type bufferConfig struct {
	label string
	eager bool
}

// BufferBuilderOption is a functional option applied to a buffer during construction.
type BufferBuilderOption func(*bufferConfig)

// WithLabel sets the debug label of the buffer. The label appears in log records and errors.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - BufferBuilderOption: a function that applies the label option to a buffer
func WithLabel(label string) BufferBuilderOption {
	return func(c *bufferConfig) {
		c.label = label
	}
}

// WithEagerAllocation allocates zero-filled storage for the initial capacity at construction
// instead of on first use.
//
// Returns:
//   - BufferBuilderOption: a function that applies the option to a buffer
func WithEagerAllocation() BufferBuilderOption {
	return func(c *bufferConfig) {
		c.eager = true
	}
}
