package common

import (
	"errors"
	"fmt"
)

// Error kinds raised by the resource layer. Every precondition failure wraps exactly one of these
// sentinels, so callers branch with errors.Is.
var (
	// ErrCapacityExceeded is returned when a partial write would overflow a buffer's capacity.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrAlreadyMapped is returned when a mapping session is opened twice, or when a buffer is used
	// while its mapping session is still open.
	ErrAlreadyMapped = errors.New("buffer already mapped")

	// ErrNotMapped is returned when a mapping session is closed without being opened.
	ErrNotMapped = errors.New("buffer not mapped")

	// ErrInvalidLayout is returned for empty or malformed attribute layouts.
	ErrInvalidLayout = errors.New("invalid attribute layout")

	// ErrAlreadyLinked is returned when a shader stage is added after the program was linked.
	ErrAlreadyLinked = errors.New("shader program already linked")

	// ErrDisposed is returned by any operation on a resource that has been released.
	ErrDisposed = errors.New("resource disposed")

	// ErrNullArgument is returned when a required data argument is missing.
	ErrNullArgument = errors.New("required argument is nil")

	// ErrBackend is wrapped by every BackendError.
	ErrBackend = errors.New("backend failure")
)

// ShaderCompileError reports a shader stage that the backend refused to compile.
// Diagnostic carries the backend's compiler log verbatim.
type ShaderCompileError struct {
	Stage      StageType
	Diagnostic string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("%s shader failed to compile: %s", e.Stage, e.Diagnostic)
}

// ShaderLinkError reports a program that failed to link or validate.
// Diagnostic carries the backend's linker log verbatim.
type ShaderLinkError struct {
	Diagnostic string
}

func (e *ShaderLinkError) Error() string {
	return "shader program failed to link: " + e.Diagnostic
}

// BackendError wraps an error reported by a backend adapter call. It is fatal to the resource that
// issued the call only.
type BackendError struct {
	// Op names the adapter operation that failed, e.g. "UploadFull".
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackend, e.Err}
}

// WrapBackend wraps err in a BackendError for op. A nil err returns nil.
//
// Parameters:
//   - op: the adapter operation name
//   - err: the error returned by the adapter
//
// Returns:
//   - error: the wrapped error, or nil
func WrapBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}
