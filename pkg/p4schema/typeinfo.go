package p4schema

import (
	"fmt"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/pkg/p4values"
	"github.com/finsy-network/finsy/pkg/util"
)

// P4Type encodes and decodes P4Data values for a type from the type_info
// section of a P4Info document.
type P4Type interface {
	// TypeName returns the declared name of named types, or a synthetic
	// name like "bit<9>" for anonymous ones.
	TypeName() string
	// Encode converts a Go value to P4Data.
	Encode(value any) (*p4v1.P4Data, error)
	// Decode converts P4Data back to a Go value.
	Decode(data *p4v1.P4Data) (any, error)
}

// P4BitsType is a bit<N>, int<N> or SDN string type. New types with a
// translated representation also resolve to this, carrying the declared
// type name.
type P4BitsType struct {
	Name      string
	Bitwidth  int
	Signed    bool
	Varbit    bool
	SdnString bool
	Format    p4values.DecodeFormat
}

func (t *P4BitsType) TypeName() string {
	switch {
	case t.Name != "":
		return t.Name
	case t.SdnString:
		return "string"
	case t.Signed:
		return fmt.Sprintf("int<%d>", t.Bitwidth)
	default:
		return fmt.Sprintf("bit<%d>", t.Bitwidth)
	}
}

func (t *P4BitsType) width() int {
	if t.SdnString {
		return 0
	}
	return t.Bitwidth
}

func (t *P4BitsType) Encode(value any) (*p4v1.P4Data, error) {
	data, err := p4values.EncodeExact(value, t.width())
	if err != nil {
		return nil, err
	}
	return &p4v1.P4Data{Data: &p4v1.P4Data_Bitstring{Bitstring: data}}, nil
}

func (t *P4BitsType) Decode(data *p4v1.P4Data) (any, error) {
	return p4values.DecodeExact(data.GetBitstring(), t.width(), t.Format)
}

// P4BoolType is the P4 bool type.
type P4BoolType struct{}

func (t *P4BoolType) TypeName() string { return "bool" }

func (t *P4BoolType) Encode(value any) (*p4v1.P4Data, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, util.NewEncodeError("bool", value, 1, "not a bool")
	}
	return &p4v1.P4Data{Data: &p4v1.P4Data_Bool{Bool: b}}, nil
}

func (t *P4BoolType) Decode(data *p4v1.P4Data) (any, error) {
	return data.GetBool(), nil
}

// P4TupleType is an anonymous tuple.
type P4TupleType struct {
	Members []P4Type
}

func (t *P4TupleType) TypeName() string { return "tuple" }

func (t *P4TupleType) Encode(value any) (*p4v1.P4Data, error) {
	vals, ok := value.([]any)
	if !ok || len(vals) != len(t.Members) {
		return nil, util.NewEncodeError("tuple", value, 0, fmt.Sprintf("need %d members", len(t.Members)))
	}
	members := make([]*p4v1.P4Data, len(vals))
	for i, m := range t.Members {
		d, err := m.Encode(vals[i])
		if err != nil {
			return nil, err
		}
		members[i] = d
	}
	return &p4v1.P4Data{Data: &p4v1.P4Data_Tuple{Tuple: &p4v1.P4StructLike{Members: members}}}, nil
}

func (t *P4TupleType) Decode(data *p4v1.P4Data) (any, error) {
	members := data.GetTuple().GetMembers()
	if len(members) != len(t.Members) {
		return nil, util.NewEncodeError("tuple", data, 0, "member count mismatch")
	}
	vals := make([]any, len(members))
	for i, m := range t.Members {
		v, err := m.Decode(members[i])
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// P4StructMember is a named member of a struct type.
type P4StructMember struct {
	Name string
	Type P4Type
}

// P4StructType is a named struct from type_info.
type P4StructType struct {
	Name    string
	Members []P4StructMember
}

func (t *P4StructType) TypeName() string { return t.Name }

func (t *P4StructType) Encode(value any) (*p4v1.P4Data, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, util.NewEncodeError(t.Name, value, 0, "struct value must be map[string]any")
	}
	members := make([]*p4v1.P4Data, len(t.Members))
	for i, m := range t.Members {
		v, ok := fields[m.Name]
		if !ok {
			return nil, util.NewEncodeError(t.Name, value, 0, "missing member "+m.Name)
		}
		d, err := m.Type.Encode(v)
		if err != nil {
			return nil, err
		}
		members[i] = d
	}
	return &p4v1.P4Data{Data: &p4v1.P4Data_Struct{Struct: &p4v1.P4StructLike{Members: members}}}, nil
}

func (t *P4StructType) Decode(data *p4v1.P4Data) (any, error) {
	members := data.GetStruct().GetMembers()
	if len(members) != len(t.Members) {
		return nil, util.NewEncodeError(t.Name, data, 0, "member count mismatch")
	}
	fields := make(map[string]any, len(members))
	for i, m := range t.Members {
		v, err := m.Type.Decode(members[i])
		if err != nil {
			return nil, err
		}
		fields[m.Name] = v
	}
	return fields, nil
}

// P4HeaderField is one bitstring field of a header type.
type P4HeaderField struct {
	Name string
	Bits P4BitsType
}

// P4HeaderType is a named header from type_info. A nil value encodes an
// invalid header; decoding an invalid header yields nil.
type P4HeaderType struct {
	Name   string
	Fields []P4HeaderField
}

func (t *P4HeaderType) TypeName() string { return t.Name }

func (t *P4HeaderType) Encode(value any) (*p4v1.P4Data, error) {
	hdr, err := t.encodeHeader(value)
	if err != nil {
		return nil, err
	}
	return &p4v1.P4Data{Data: &p4v1.P4Data_Header{Header: hdr}}, nil
}

func (t *P4HeaderType) encodeHeader(value any) (*p4v1.P4Header, error) {
	if value == nil {
		return &p4v1.P4Header{IsValid: false}, nil
	}
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, util.NewEncodeError(t.Name, value, 0, "header value must be map[string]any or nil")
	}
	bitstrings := make([][]byte, len(t.Fields))
	for i, f := range t.Fields {
		v, ok := fields[f.Name]
		if !ok {
			return nil, util.NewEncodeError(t.Name, value, 0, "missing field "+f.Name)
		}
		data, err := p4values.EncodeExact(v, f.Bits.Bitwidth)
		if err != nil {
			return nil, err
		}
		bitstrings[i] = data
	}
	return &p4v1.P4Header{IsValid: true, Bitstrings: bitstrings}, nil
}

func (t *P4HeaderType) Decode(data *p4v1.P4Data) (any, error) {
	return t.decodeHeader(data.GetHeader())
}

func (t *P4HeaderType) decodeHeader(hdr *p4v1.P4Header) (any, error) {
	if hdr == nil || !hdr.IsValid {
		return nil, nil
	}
	if len(hdr.Bitstrings) != len(t.Fields) {
		return nil, util.NewEncodeError(t.Name, hdr, 0, "field count mismatch")
	}
	fields := make(map[string]any, len(t.Fields))
	for i, f := range t.Fields {
		v, err := p4values.DecodeExact(hdr.Bitstrings[i], f.Bits.Bitwidth, f.Bits.Format)
		if err != nil {
			return nil, err
		}
		fields[f.Name] = v
	}
	return fields, nil
}

// P4HeaderUnionMember is one alternative of a header union.
type P4HeaderUnionMember struct {
	Name   string
	Header *P4HeaderType
}

// P4HeaderUnionType is a named header union. Values are single-entry maps
// keyed by the valid member name; nil means no member is valid.
type P4HeaderUnionType struct {
	Name    string
	Members []P4HeaderUnionMember
}

func (t *P4HeaderUnionType) TypeName() string { return t.Name }

func (t *P4HeaderUnionType) member(name string) *P4HeaderUnionMember {
	for i := range t.Members {
		if t.Members[i].Name == name {
			return &t.Members[i]
		}
	}
	return nil
}

func (t *P4HeaderUnionType) Encode(value any) (*p4v1.P4Data, error) {
	union, err := t.encodeUnion(value)
	if err != nil {
		return nil, err
	}
	return &p4v1.P4Data{Data: &p4v1.P4Data_HeaderUnion{HeaderUnion: union}}, nil
}

func (t *P4HeaderUnionType) encodeUnion(value any) (*p4v1.P4HeaderUnion, error) {
	if value == nil {
		return &p4v1.P4HeaderUnion{}, nil
	}
	fields, ok := value.(map[string]any)
	if !ok || len(fields) != 1 {
		return nil, util.NewEncodeError(t.Name, value, 0, "union value must be a single-entry map or nil")
	}
	for name, hv := range fields {
		m := t.member(name)
		if m == nil {
			return nil, util.NewEncodeError(t.Name, value, 0, "no union member named "+name)
		}
		hdr, err := m.Header.encodeHeader(hv)
		if err != nil {
			return nil, err
		}
		return &p4v1.P4HeaderUnion{ValidHeaderName: name, ValidHeader: hdr}, nil
	}
	return &p4v1.P4HeaderUnion{}, nil
}

func (t *P4HeaderUnionType) Decode(data *p4v1.P4Data) (any, error) {
	return t.decodeUnion(data.GetHeaderUnion())
}

func (t *P4HeaderUnionType) decodeUnion(union *p4v1.P4HeaderUnion) (any, error) {
	if union == nil || union.ValidHeaderName == "" {
		return nil, nil
	}
	m := t.member(union.ValidHeaderName)
	if m == nil {
		return nil, util.NewEncodeError(t.Name, union, 0, "no union member named "+union.ValidHeaderName)
	}
	hv, err := m.Header.decodeHeader(union.ValidHeader)
	if err != nil {
		return nil, err
	}
	return map[string]any{union.ValidHeaderName: hv}, nil
}

// P4HeaderStackType is a fixed-size stack of headers; values are slices.
type P4HeaderStackType struct {
	Header *P4HeaderType
	Size   int
}

func (t *P4HeaderStackType) TypeName() string {
	return fmt.Sprintf("%s[%d]", t.Header.TypeName(), t.Size)
}

func (t *P4HeaderStackType) Encode(value any) (*p4v1.P4Data, error) {
	vals, ok := value.([]any)
	if !ok || len(vals) != t.Size {
		return nil, util.NewEncodeError(t.TypeName(), value, 0, fmt.Sprintf("need %d headers", t.Size))
	}
	entries := make([]*p4v1.P4Header, len(vals))
	for i, v := range vals {
		hdr, err := t.Header.encodeHeader(v)
		if err != nil {
			return nil, err
		}
		entries[i] = hdr
	}
	return &p4v1.P4Data{Data: &p4v1.P4Data_HeaderStack{HeaderStack: &p4v1.P4HeaderStack{Entries: entries}}}, nil
}

func (t *P4HeaderStackType) Decode(data *p4v1.P4Data) (any, error) {
	entries := data.GetHeaderStack().GetEntries()
	vals := make([]any, len(entries))
	for i, hdr := range entries {
		v, err := t.Header.decodeHeader(hdr)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// P4HeaderUnionStackType is a fixed-size stack of header unions; values
// are slices of union values.
type P4HeaderUnionStackType struct {
	Union *P4HeaderUnionType
	Size  int
}

func (t *P4HeaderUnionStackType) TypeName() string {
	return fmt.Sprintf("%s[%d]", t.Union.TypeName(), t.Size)
}

func (t *P4HeaderUnionStackType) Encode(value any) (*p4v1.P4Data, error) {
	vals, ok := value.([]any)
	if !ok || len(vals) != t.Size {
		return nil, util.NewEncodeError(t.TypeName(), value, 0, fmt.Sprintf("need %d header unions", t.Size))
	}
	entries := make([]*p4v1.P4HeaderUnion, len(vals))
	for i, v := range vals {
		u, err := t.Union.encodeUnion(v)
		if err != nil {
			return nil, err
		}
		entries[i] = u
	}
	return &p4v1.P4Data{Data: &p4v1.P4Data_HeaderUnionStack{HeaderUnionStack: &p4v1.P4HeaderUnionStack{Entries: entries}}}, nil
}

func (t *P4HeaderUnionStackType) Decode(data *p4v1.P4Data) (any, error) {
	entries := data.GetHeaderUnionStack().GetEntries()
	vals := make([]any, len(entries))
	for i, u := range entries {
		v, err := t.Union.decodeUnion(u)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// P4EnumMember is one member of a serializable enum.
type P4EnumMember struct {
	Name  string
	Value []byte
}

// P4SerializableEnumType is a named serializable enum. Member names encode
// to their declared bitstring value; unknown decoded values fall back to
// the numeric form.
type P4SerializableEnumType struct {
	Name     string
	Bitwidth int
	Members  []P4EnumMember
}

func (t *P4SerializableEnumType) TypeName() string { return t.Name }

func (t *P4SerializableEnumType) Encode(value any) (*p4v1.P4Data, error) {
	if name, ok := value.(string); ok {
		for _, m := range t.Members {
			if m.Name == name {
				return &p4v1.P4Data{Data: &p4v1.P4Data_EnumValue{EnumValue: m.Value}}, nil
			}
		}
	}
	data, err := p4values.EncodeExact(value, t.Bitwidth)
	if err != nil {
		return nil, util.NewEncodeError(t.Name, value, t.Bitwidth, "not an enum member")
	}
	return &p4v1.P4Data{Data: &p4v1.P4Data_EnumValue{EnumValue: data}}, nil
}

func (t *P4SerializableEnumType) Decode(data *p4v1.P4Data) (any, error) {
	raw := data.GetEnumValue()
	canon := p4values.Truncate(raw)
	for _, m := range t.Members {
		if string(p4values.Truncate(m.Value)) == string(canon) {
			return m.Name, nil
		}
	}
	return p4values.DecodeExact(raw, t.Bitwidth, p4values.Default)
}

// P4EnumType is a non-serializable (safe) enum; values are member names.
type P4EnumType struct {
	Name    string
	Members []string
}

func (t *P4EnumType) TypeName() string { return t.Name }

func (t *P4EnumType) Encode(value any) (*p4v1.P4Data, error) {
	name, ok := value.(string)
	if !ok {
		return nil, util.NewEncodeError(t.Name, value, 0, "enum value must be a string")
	}
	for _, m := range t.Members {
		if m == name {
			return &p4v1.P4Data{Data: &p4v1.P4Data_Enum{Enum: name}}, nil
		}
	}
	return nil, util.NewEncodeError(t.Name, value, 0, "not an enum member")
}

func (t *P4EnumType) Decode(data *p4v1.P4Data) (any, error) {
	return data.GetEnum(), nil
}

// P4TypeInfo resolves the type_info section of a P4Info document. New types
// are flattened to their underlying representation, with translated types
// keeping the declared SDN bitwidth or SDN string form.
type P4TypeInfo struct {
	pb                *p4config.P4TypeInfo
	structs           map[string]*P4StructType
	headers           map[string]*P4HeaderType
	headerUnions      map[string]*P4HeaderUnionType
	enums             map[string]*P4EnumType
	serializableEnums map[string]*P4SerializableEnumType
	newTypes          map[string]P4Type
}

func newTypeInfo(pb *p4config.P4TypeInfo) (*P4TypeInfo, error) {
	ti := &P4TypeInfo{
		pb:                pb,
		structs:           make(map[string]*P4StructType),
		headers:           make(map[string]*P4HeaderType),
		headerUnions:      make(map[string]*P4HeaderUnionType),
		enums:             make(map[string]*P4EnumType),
		serializableEnums: make(map[string]*P4SerializableEnumType),
		newTypes:          make(map[string]P4Type),
	}
	if pb == nil {
		return ti, nil
	}

	for name, spec := range pb.Headers {
		hdr := &P4HeaderType{Name: name}
		for _, m := range spec.GetMembers() {
			bits, err := bitsFromSpec(m.GetTypeSpec(), "")
			if err != nil {
				return nil, err
			}
			hdr.Fields = append(hdr.Fields, P4HeaderField{Name: m.GetName(), Bits: *bits})
		}
		ti.headers[name] = hdr
	}
	for name, spec := range pb.HeaderUnions {
		union := &P4HeaderUnionType{Name: name}
		for _, m := range spec.GetMembers() {
			hdr, ok := ti.headers[m.GetHeader().GetName()]
			if !ok {
				return nil, util.NewSchemaError("header", m.GetHeader().GetName(), "referenced by union "+name)
			}
			union.Members = append(union.Members, P4HeaderUnionMember{Name: m.GetName(), Header: hdr})
		}
		ti.headerUnions[name] = union
	}
	for name, spec := range pb.Enums {
		e := &P4EnumType{Name: name}
		for _, m := range spec.GetMembers() {
			e.Members = append(e.Members, m.GetName())
		}
		ti.enums[name] = e
	}
	for name, spec := range pb.SerializableEnums {
		e := &P4SerializableEnumType{
			Name:     name,
			Bitwidth: int(spec.GetUnderlyingType().GetBitwidth()),
		}
		for _, m := range spec.GetMembers() {
			e.Members = append(e.Members, P4EnumMember{Name: m.GetName(), Value: m.GetValue()})
		}
		ti.serializableEnums[name] = e
	}

	// Structs and new types can reference each other; resolve lazily with
	// cycle detection.
	resolving := make(map[string]bool)
	for name := range pb.Structs {
		if _, err := ti.resolveStruct(name, resolving); err != nil {
			return nil, err
		}
	}
	for name := range pb.NewTypes {
		if _, err := ti.resolveNewType(name, resolving); err != nil {
			return nil, err
		}
	}
	return ti, nil
}

func bitsFromSpec(spec *p4config.P4BitstringLikeTypeSpec, name string) (*P4BitsType, error) {
	switch s := spec.GetTypeSpec().(type) {
	case *p4config.P4BitstringLikeTypeSpec_Bit:
		return &P4BitsType{Name: name, Bitwidth: int(s.Bit.GetBitwidth())}, nil
	case *p4config.P4BitstringLikeTypeSpec_Int:
		return &P4BitsType{Name: name, Bitwidth: int(s.Int.GetBitwidth()), Signed: true}, nil
	case *p4config.P4BitstringLikeTypeSpec_Varbit:
		return &P4BitsType{Name: name, Bitwidth: int(s.Varbit.GetMaxBitwidth()), Varbit: true}, nil
	default:
		return nil, util.NewSchemaError("type", name, "unsupported bitstring spec")
	}
}

func (ti *P4TypeInfo) resolveStruct(name string, resolving map[string]bool) (*P4StructType, error) {
	if st, ok := ti.structs[name]; ok {
		return st, nil
	}
	spec, ok := ti.pb.GetStructs()[name]
	if !ok {
		return nil, util.NewLookupError("struct", name)
	}
	if resolving["struct:"+name] {
		return nil, util.NewSchemaError("struct", name, "recursive type")
	}
	resolving["struct:"+name] = true
	defer delete(resolving, "struct:"+name)

	st := &P4StructType{Name: name}
	ti.structs[name] = st // allow siblings to share the pointer
	for _, m := range spec.GetMembers() {
		typ, err := ti.resolveData(m.GetTypeSpec(), resolving)
		if err != nil {
			delete(ti.structs, name)
			return nil, err
		}
		st.Members = append(st.Members, P4StructMember{Name: m.GetName(), Type: typ})
	}
	return st, nil
}

func (ti *P4TypeInfo) resolveNewType(name string, resolving map[string]bool) (P4Type, error) {
	if t, ok := ti.newTypes[name]; ok {
		return t, nil
	}
	spec, ok := ti.pb.GetNewTypes()[name]
	if !ok {
		return nil, util.NewLookupError("new_type", name)
	}
	if resolving["new_type:"+name] {
		return nil, util.NewSchemaError("new_type", name, "recursive type")
	}
	resolving["new_type:"+name] = true
	defer delete(resolving, "new_type:"+name)

	var t P4Type
	switch rep := spec.GetRepresentation().(type) {
	case *p4config.P4NewTypeSpec_TranslatedType:
		switch sdn := rep.TranslatedType.GetSdnType().(type) {
		case *p4config.P4NewTypeTranslation_SdnBitwidth:
			t = &P4BitsType{Name: name, Bitwidth: int(sdn.SdnBitwidth)}
		case *p4config.P4NewTypeTranslation_SdnString_:
			t = &P4BitsType{Name: name, SdnString: true}
		default:
			return nil, util.NewSchemaError("new_type", name, "translated type without sdn_type")
		}
	case *p4config.P4NewTypeSpec_OriginalType:
		inner, err := ti.resolveData(rep.OriginalType, resolving)
		if err != nil {
			return nil, err
		}
		if bits, ok := inner.(*P4BitsType); ok {
			named := *bits
			named.Name = name
			t = &named
		} else {
			t = inner
		}
	default:
		return nil, util.NewSchemaError("new_type", name, "missing representation")
	}
	ti.newTypes[name] = t
	return t, nil
}

func (ti *P4TypeInfo) resolveData(spec *p4config.P4DataTypeSpec, resolving map[string]bool) (P4Type, error) {
	switch s := spec.GetTypeSpec().(type) {
	case *p4config.P4DataTypeSpec_Bitstring:
		return bitsFromSpec(s.Bitstring, "")
	case *p4config.P4DataTypeSpec_Bool:
		return &P4BoolType{}, nil
	case *p4config.P4DataTypeSpec_Tuple:
		tuple := &P4TupleType{}
		for _, m := range s.Tuple.GetMembers() {
			typ, err := ti.resolveData(m, resolving)
			if err != nil {
				return nil, err
			}
			tuple.Members = append(tuple.Members, typ)
		}
		return tuple, nil
	case *p4config.P4DataTypeSpec_Struct:
		return ti.resolveStruct(s.Struct.GetName(), resolving)
	case *p4config.P4DataTypeSpec_Header:
		hdr, ok := ti.headers[s.Header.GetName()]
		if !ok {
			return nil, util.NewLookupError("header", s.Header.GetName())
		}
		return hdr, nil
	case *p4config.P4DataTypeSpec_HeaderUnion:
		union, ok := ti.headerUnions[s.HeaderUnion.GetName()]
		if !ok {
			return nil, util.NewLookupError("header_union", s.HeaderUnion.GetName())
		}
		return union, nil
	case *p4config.P4DataTypeSpec_HeaderStack:
		hdr, ok := ti.headers[s.HeaderStack.GetHeader().GetName()]
		if !ok {
			return nil, util.NewLookupError("header", s.HeaderStack.GetHeader().GetName())
		}
		return &P4HeaderStackType{Header: hdr, Size: int(s.HeaderStack.GetSize())}, nil
	case *p4config.P4DataTypeSpec_HeaderUnionStack:
		union, ok := ti.headerUnions[s.HeaderUnionStack.GetHeaderUnion().GetName()]
		if !ok {
			return nil, util.NewLookupError("header_union", s.HeaderUnionStack.GetHeaderUnion().GetName())
		}
		return &P4HeaderUnionStackType{Union: union, Size: int(s.HeaderUnionStack.GetSize())}, nil
	case *p4config.P4DataTypeSpec_Enum:
		e, ok := ti.enums[s.Enum.GetName()]
		if !ok {
			return nil, util.NewLookupError("enum", s.Enum.GetName())
		}
		return e, nil
	case *p4config.P4DataTypeSpec_SerializableEnum:
		e, ok := ti.serializableEnums[s.SerializableEnum.GetName()]
		if !ok {
			return nil, util.NewLookupError("serializable_enum", s.SerializableEnum.GetName())
		}
		return e, nil
	case *p4config.P4DataTypeSpec_NewType:
		return ti.resolveNewType(s.NewType.GetName(), resolving)
	default:
		return nil, util.NewSchemaError("type", fmt.Sprintf("%v", spec), "unsupported type spec")
	}
}

// Struct returns a named struct type.
func (ti *P4TypeInfo) Struct(name string) (*P4StructType, bool) {
	st, ok := ti.structs[name]
	return st, ok
}

// Header returns a named header type.
func (ti *P4TypeInfo) Header(name string) (*P4HeaderType, bool) {
	h, ok := ti.headers[name]
	return h, ok
}

// HeaderUnion returns a named header union type.
func (ti *P4TypeInfo) HeaderUnion(name string) (*P4HeaderUnionType, bool) {
	h, ok := ti.headerUnions[name]
	return h, ok
}

// NewType returns a resolved new_type.
func (ti *P4TypeInfo) NewType(name string) (P4Type, bool) {
	t, ok := ti.newTypes[name]
	return t, ok
}

// DataType resolves an arbitrary data type spec against this type_info.
func (ti *P4TypeInfo) DataType(spec *p4config.P4DataTypeSpec) (P4Type, error) {
	return ti.resolveData(spec, make(map[string]bool))
}

// fieldWidth applies a named-type override to a declared field bitwidth.
// Returns the effective bitwidth, with 0 meaning an SDN string field.
func (ti *P4TypeInfo) fieldWidth(typeName string, declared int) int {
	if typeName == "" {
		return declared
	}
	if t, ok := ti.newTypes[typeName]; ok {
		if bits, ok := t.(*P4BitsType); ok {
			if bits.SdnString {
				return 0
			}
			if bits.Bitwidth > 0 {
				return bits.Bitwidth
			}
		}
	}
	return declared
}
