package backend

// RecordingBackendBuilderOption is a functional option applied to a recording backend during
// construction via NewRecordingBackend.
type RecordingBackendBuilderOption func(*recordingBackendImpl)

// WithFailure makes the first call of op return err.
//
// Parameters:
//   - op: the operation to fail
//   - err: the error to return
//
// Returns:
//   - RecordingBackendBuilderOption: a function that applies the failure to a recording backend
func WithFailure(op Op, err error) RecordingBackendBuilderOption {
	return func(b *recordingBackendImpl) {
		b.failures[op] = &failure{err: err}
	}
}

// WithSurfaceSize sets the initial size reported to the recording backend, as if Resize had been
// called before the first frame.
func WithSurfaceSize(width, height int) RecordingBackendBuilderOption {
	return func(b *recordingBackendImpl) {
		b.width, b.height = width, height
	}
}
