// Package gnmipath represents gNMI paths and converts them to and from
// the human-readable string form used in configuration and logs, e.g.
// "interfaces/interface[name=eth0]/state/oper-status".
package gnmipath

import (
	"sort"
	"strings"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"google.golang.org/protobuf/proto"
)

// Path is an immutable wrapper around a gnmi.Path. The zero value is the
// empty path.
type Path struct {
	pb *gnmipb.Path
}

// FromProto wraps an existing gnmi.Path without copying it.
func FromProto(pb *gnmipb.Path) Path {
	if pb == nil {
		pb = &gnmipb.Path{}
	}
	return Path{pb: pb}
}

// Proto returns the underlying gnmi.Path. Callers must not modify it.
func (p Path) Proto() *gnmipb.Path {
	if p.pb == nil {
		return &gnmipb.Path{}
	}
	return p.pb
}

// Len returns the number of path elements.
func (p Path) Len() int { return len(p.Proto().GetElem()) }

// Elem returns the name of the i'th element.
func (p Path) Elem(i int) string { return p.Proto().GetElem()[i].GetName() }

// Key returns the named key of the first element called elem, or "".
func (p Path) Key(elem, key string) string {
	for _, e := range p.Proto().GetElem() {
		if e.GetName() == elem {
			return e.GetKey()[key]
		}
	}
	return ""
}

// Origin returns the path origin.
func (p Path) Origin() string { return p.Proto().GetOrigin() }

// Target returns the path target.
func (p Path) Target() string { return p.Proto().GetTarget() }

// WithOrigin returns a copy of the path with the origin set.
func (p Path) WithOrigin(origin string) Path {
	pb := proto.Clone(p.Proto()).(*gnmipb.Path)
	pb.Origin = origin
	return Path{pb: pb}
}

// WithTarget returns a copy of the path with the target set.
func (p Path) WithTarget(target string) Path {
	pb := proto.Clone(p.Proto()).(*gnmipb.Path)
	pb.Target = target
	return Path{pb: pb}
}

// WithKey returns a copy of the path with one key set on the last
// element named elem.
func (p Path) WithKey(elem, key, value string) Path {
	pb := proto.Clone(p.Proto()).(*gnmipb.Path)
	for i := len(pb.GetElem()) - 1; i >= 0; i-- {
		e := pb.GetElem()[i]
		if e.GetName() != elem {
			continue
		}
		if e.Key == nil {
			e.Key = map[string]string{}
		}
		e.Key[key] = value
		break
	}
	return Path{pb: pb}
}

// Append returns p extended with the elements of sub. Origin and target
// come from p.
func (p Path) Append(sub Path) Path {
	pb := proto.Clone(p.Proto()).(*gnmipb.Path)
	for _, e := range sub.Proto().GetElem() {
		pb.Elem = append(pb.Elem, proto.Clone(e).(*gnmipb.PathElem))
	}
	return Path{pb: pb}
}

// Equal reports whether two paths are the same, keys included.
func (p Path) Equal(other Path) bool {
	return proto.Equal(p.Proto(), other.Proto())
}

// String renders the path in slash form with bracketed keys. Keys are
// sorted by name so output is deterministic.
func (p Path) String() string {
	elems := p.Proto().GetElem()
	if len(elems) == 0 {
		return "/"
	}
	var b strings.Builder
	for i, e := range elems {
		if i > 0 {
			b.WriteByte('/')
		}
		writeEscaped(&b, e.GetName(), nameEscapes)
		keys := make([]string, 0, len(e.GetKey()))
		for k := range e.GetKey() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte('[')
			writeEscaped(&b, k, keyEscapes)
			b.WriteByte('=')
			writeEscaped(&b, e.GetKey()[k], valueEscapes)
			b.WriteByte(']')
		}
	}
	return b.String()
}
