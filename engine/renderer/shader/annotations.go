// annotations.go defines the annotation syntax of the shader source pre-processor. Annotations
// are single-line comments prefixed with @oxy: so that sources stay valid GLSL and WGSL when
// they are compiled without pre-processing.
package shader

import (
	"fmt"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a registered source snippet at the annotation site.
	//
	// Syntax: //@oxy:include <name>
	//
	// Example: //@oxy:include lighting
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeDefine replaces every later whole-word occurrence of a name with a value.
	//
	// Syntax: //@oxy:define <name> <value>
	//
	// Example: //@oxy:define MAX_LIGHTS 8
	AnnotationTypeDefine AnnotationType = "define"
)

// Annotation is a single parsed annotation.
type Annotation struct {
	Type AnnotationType

	// Args holds the annotation arguments:
	//   - include: [0] = snippet name
	//   - define:  [0] = name, [1] = value
	Args []string

	// Line is the 1-based line number of the annotation in the source it was parsed from.
	Line int
}

// parseAnnotation attempts to parse a single source line as an annotation. Lines that do not
// carry the prefix return nil with no error.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: an error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, "//")
	if !ok {
		return nil, nil
	}
	_, after, ok := strings.Cut(rest, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{Type: AnnotationTypeInclude, Args: args[1:], Line: lineNum}, nil
	case AnnotationTypeDefine:
		if len(args) < 3 {
			return nil, fmt.Errorf("line %d: @oxy define annotation requires a name and a value", lineNum)
		}
		value := strings.Join(args[2:], " ")
		return &Annotation{Type: AnnotationTypeDefine, Args: []string{args[1], value}, Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
