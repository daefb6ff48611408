package gnmipath

import (
	"fmt"
	"strconv"
	"strings"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
)

// Escape sets per position. Structural characters and backslash must be
// escaped; everything else passes through.
const (
	nameEscapes  = `/[]\`
	keyEscapes   = `=]\`
	valueEscapes = `]\`
)

// Parse converts the slash form back into a Path. "" and "/" both give
// the empty path.
func Parse(s string) (Path, error) {
	p := &parser{in: s}
	pb, err := p.parsePath()
	if err != nil {
		return Path{}, fmt.Errorf("gnmi path %q: %w", s, err)
	}
	return Path{pb: pb}, nil
}

// MustParse is Parse for compile-time constant paths; it panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

type parser struct {
	in  string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.in) }

func (p *parser) peek() byte { return p.in[p.pos] }

func (p *parser) parsePath() (*gnmipb.Path, error) {
	pb := &gnmipb.Path{}
	if !p.done() && p.peek() == '/' {
		p.pos++
	}
	if p.done() {
		return pb, nil
	}
	for {
		elem, err := p.parseElem()
		if err != nil {
			return nil, err
		}
		pb.Elem = append(pb.Elem, elem)
		if p.done() {
			return pb, nil
		}
		if p.peek() != '/' {
			return nil, fmt.Errorf("unexpected %q at offset %d", p.peek(), p.pos)
		}
		p.pos++
		if p.done() {
			return nil, fmt.Errorf("trailing slash")
		}
	}
}

func (p *parser) parseElem() (*gnmipb.PathElem, error) {
	name, err := p.scan("/[")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("empty element at offset %d", p.pos)
	}
	elem := &gnmipb.PathElem{Name: name}
	for !p.done() && p.peek() == '[' {
		p.pos++
		key, err := p.scan("=")
		if err != nil {
			return nil, err
		}
		if key == "" || p.done() {
			return nil, fmt.Errorf("malformed key at offset %d", p.pos)
		}
		p.pos++ // '='
		value, err := p.scan("]")
		if err != nil {
			return nil, err
		}
		if p.done() {
			return nil, fmt.Errorf("unterminated key at offset %d", p.pos)
		}
		p.pos++ // ']'
		if elem.Key == nil {
			elem.Key = map[string]string{}
		}
		if _, dup := elem.Key[key]; dup {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		elem.Key[key] = value
	}
	return elem, nil
}

// scan consumes input until one of the stop bytes, decoding backslash
// escapes. The stop byte is not consumed.
func (p *parser) scan(stop string) (string, error) {
	var b strings.Builder
	for !p.done() {
		c := p.peek()
		if strings.IndexByte(stop, c) >= 0 {
			break
		}
		p.pos++
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if p.done() {
			return "", fmt.Errorf("dangling backslash")
		}
		esc := p.peek()
		p.pos++
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'x':
			r, err := p.hexRune(2)
			if err != nil {
				return "", err
			}
			b.WriteByte(byte(r))
		case 'u':
			r, err := p.hexRune(4)
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
		case 'U':
			r, err := p.hexRune(8)
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
		default:
			b.WriteByte(esc)
		}
	}
	return b.String(), nil
}

func (p *parser) hexRune(digits int) (rune, error) {
	if p.pos+digits > len(p.in) {
		return 0, fmt.Errorf("truncated hex escape at offset %d", p.pos)
	}
	v, err := strconv.ParseUint(p.in[p.pos:p.pos+digits], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad hex escape at offset %d", p.pos)
	}
	p.pos += digits
	return rune(v), nil
}

// writeEscaped emits s with backslash escapes for the given structural
// characters and for control characters.
func writeEscaped(b *strings.Builder, s, structural string) {
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(b, `\x%02x`, r)
		case strings.ContainsRune(structural, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
}
