package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// maxIncludeDepth bounds nested includes so that a snippet including itself fails instead of
// recursing forever.
const maxIncludeDepth = 16

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// includes maps snippet names to their source.
	includes map[string]string

	// declarations accumulates the annotations of the most recent Process call.
	declarations []Annotation
}

// PreProcessor expands @oxy: annotations in shader source before it reaches the backend
// compiler. Include annotations are replaced by registered snippets, which may themselves
// contain annotations; define annotations substitute whole-word tokens in the lines after them.
type PreProcessor interface {
	// Register adds or replaces an include snippet.
	//
	// Parameters:
	//   - name: the name include annotations refer to
	//   - source: the snippet source
	Register(name, source string)

	// Process expands every annotation in source.
	//
	// Parameters:
	//   - source: the raw shader source
	//
	// Returns:
	//   - string: the expanded source
	//   - error: an error if an annotation is malformed, names an unknown snippet or includes
	//     recursively
	Process(source string) (string, error)

	// Declarations returns the annotations collected by the most recent Process call in source
	// order, including those of included snippets.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with no registered snippets.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		includes: make(map[string]string),
	}
}

func (p *preProcessor) Register(name, source string) {
	p.includes[name] = source
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	defines := make(map[string]string)
	out, err := p.expand(source, defines, 0)
	if err != nil {
		return "", err
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// expand processes the lines of source, applying defines collected so far to every line that is
// not itself an annotation.
func (p *preProcessor) expand(source string, defines map[string]string, depth int) ([]string, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("includes nested deeper than %d levels", maxIncludeDepth)
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return nil, err
		}
		if a == nil {
			out = append(out, applyDefines(line, defines))
			continue
		}
		p.declarations = append(p.declarations, *a)

		switch a.Type {
		case AnnotationTypeInclude:
			snippet, ok := p.includes[a.Args[0]]
			if !ok {
				return nil, fmt.Errorf("line %d: unknown @oxy include %q", a.Line, a.Args[0])
			}
			included, err := p.expand(snippet, defines, depth+1)
			if err != nil {
				return nil, fmt.Errorf("include %q: %w", a.Args[0], err)
			}
			out = append(out, included...)
		case AnnotationTypeDefine:
			defines[a.Args[0]] = a.Args[1]
			// Keep line numbers of the rest of the file stable for compiler diagnostics.
			out = append(out, "")
		}
	}
	return out, nil
}

var identifierRegex = regexp.MustCompile(`\b[A-Za-z_]\w*\b`)

// applyDefines replaces whole-word identifiers of line that have a define.
func applyDefines(line string, defines map[string]string) string {
	if len(defines) == 0 {
		return line
	}
	return identifierRegex.ReplaceAllStringFunc(line, func(word string) string {
		if v, ok := defines[word]; ok {
			return v
		}
		return word
	})
}
