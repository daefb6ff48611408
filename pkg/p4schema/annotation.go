package p4schema

import (
	"regexp"
	"strings"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"

	"github.com/finsy-network/finsy/pkg/p4values"
)

// P4Annotation is one unstructured annotation, split into its name and
// body. Marker annotations like @hidden have an empty body.
type P4Annotation struct {
	Name string
	Body string
}

// Bodies may span multiple lines; (?s) lets . match newlines.
var annotationRE = regexp.MustCompile(`(?s)^@(\w+)(?:\(\s*(.*?)\s*\))?$`)

// ParseAnnotation splits a source-level annotation like "@name" or
// "@name(body)". Backslash escapes in the body are resolved. Returns
// false for strings that are not annotations.
func ParseAnnotation(raw string) (P4Annotation, bool) {
	m := annotationRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return P4Annotation{}, false
	}
	return P4Annotation{Name: m[1], Body: unescapeBody(m[2])}, true
}

// ParseAnnotations parses every recognizable annotation in raw, skipping
// strings that do not parse.
func ParseAnnotations(raw []string) []P4Annotation {
	var out []P4Annotation
	for _, r := range raw {
		if a, ok := ParseAnnotation(r); ok {
			out = append(out, a)
		}
	}
	return out
}

func unescapeBody(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// P4Annotations carries the annotations of one preamble: the parsed
// unstructured ones plus the structured (expression list / key-value)
// ones as declared.
type P4Annotations struct {
	Unstructured []P4Annotation
	Structured   []*p4config.StructuredAnnotation
}

func annotationsOf(pre *p4config.Preamble) P4Annotations {
	return P4Annotations{
		Unstructured: ParseAnnotations(pre.GetAnnotations()),
		Structured:   pre.GetStructuredAnnotations(),
	}
}

// Get returns the first unstructured annotation with the given name.
func (a P4Annotations) Get(name string) (P4Annotation, bool) {
	for _, ann := range a.Unstructured {
		if ann.Name == name {
			return ann, true
		}
	}
	return P4Annotation{}, false
}

var addressFormats = map[string]bool{
	"IPV4_ADDRESS": true,
	"IPV6_ADDRESS": true,
	"MAC_ADDRESS":  true,
	"ADDRESS":      true,
}

// formatFromAnnotations derives the decode format of a field from its
// unstructured annotations. An @format annotation naming an address kind
// selects address decoding; everything else keeps the default.
func formatFromAnnotations(annotations []string) p4values.DecodeFormat {
	for _, a := range ParseAnnotations(annotations) {
		if a.Name == "format" && addressFormats[a.Body] {
			return p4values.Address
		}
	}
	return p4values.Default
}
