package p4schema

import (
	"testing"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"

	"github.com/finsy-network/finsy/internal/testutil"
)

func TestStructTypeRoundTrip(t *testing.T) {
	s := demoSchema(t)
	st, ok := s.TypeInfo().Struct("digest_t")
	if !ok {
		t.Fatal("digest_t struct should resolve")
	}

	data, err := st.Encode(map[string]any{
		"src_addr":     "00:11:22:33:44:55",
		"ingress_port": 3,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	members := data.GetStruct().GetMembers()
	if len(members) != 2 {
		t.Fatalf("struct members = %d", len(members))
	}

	back, err := st.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	fields := back.(map[string]any)
	if fields["ingress_port"] != uint64(3) {
		t.Errorf("ingress_port = %v", fields["ingress_port"])
	}

	if _, err := st.Encode(map[string]any{"src_addr": 1}); err == nil {
		t.Error("missing struct member should fail")
	}
}

func TestDigestType(t *testing.T) {
	s := demoSchema(t)
	d, err := s.Digests().Get("digest_t")
	if err != nil {
		t.Fatal(err)
	}
	if d.Type.TypeName() != "digest_t" {
		t.Errorf("digest type = %q", d.Type.TypeName())
	}
}

func TestBitsTypeNames(t *testing.T) {
	tests := []struct {
		typ  P4BitsType
		want string
	}{
		{P4BitsType{Bitwidth: 9}, "bit<9>"},
		{P4BitsType{Bitwidth: 8, Signed: true}, "int<8>"},
		{P4BitsType{SdnString: true}, "string"},
		{P4BitsType{Name: "PortId_t", Bitwidth: 32}, "PortId_t"},
	}
	for _, tt := range tests {
		if got := tt.typ.TypeName(); got != tt.want {
			t.Errorf("TypeName = %q, want %q", got, tt.want)
		}
	}
}

func TestSerializableEnumType(t *testing.T) {
	e := &P4SerializableEnumType{
		Name:     "color_t",
		Bitwidth: 8,
		Members: []P4EnumMember{
			{Name: "GREEN", Value: []byte{0x00}},
			{Name: "RED", Value: []byte{0x02}},
		},
	}

	data, err := e.Encode("RED")
	if err != nil {
		t.Fatal(err)
	}
	back, err := e.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if back != "RED" {
		t.Errorf("Decode = %v, want RED", back)
	}

	data, err = e.Encode(9)
	if err != nil {
		t.Fatal(err)
	}
	back, err = e.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if back != uint64(9) {
		t.Errorf("unknown enum value decode = %v, want 9", back)
	}
}

func TestHeaderType(t *testing.T) {
	h := &P4HeaderType{
		Name: "ethernet_t",
		Fields: []P4HeaderField{
			{Name: "dst", Bits: P4BitsType{Bitwidth: 48}},
			{Name: "eth_type", Bits: P4BitsType{Bitwidth: 16}},
		},
	}

	data, err := h.Encode(map[string]any{"dst": 1, "eth_type": 0x800})
	if err != nil {
		t.Fatal(err)
	}
	if !data.GetHeader().GetIsValid() {
		t.Error("header should be valid")
	}

	back, err := h.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.(map[string]any)["eth_type"] != uint64(0x800) {
		t.Errorf("decoded header = %v", back)
	}

	// nil encodes an invalid header, which decodes back to nil.
	data, err = h.Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	back, err = h.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if back != nil {
		t.Errorf("invalid header decode = %v, want nil", back)
	}
}

func TestHeaderUnionStackType(t *testing.T) {
	v4 := &P4HeaderType{
		Name:   "ipv4_t",
		Fields: []P4HeaderField{{Name: "ttl", Bits: P4BitsType{Bitwidth: 8}}},
	}
	v6 := &P4HeaderType{
		Name:   "ipv6_t",
		Fields: []P4HeaderField{{Name: "hop_limit", Bits: P4BitsType{Bitwidth: 8}}},
	}
	us := &P4HeaderUnionStackType{
		Union: &P4HeaderUnionType{
			Name: "ip_t",
			Members: []P4HeaderUnionMember{
				{Name: "v4", Header: v4},
				{Name: "v6", Header: v6},
			},
		},
		Size: 2,
	}
	if us.TypeName() != "ip_t[2]" {
		t.Errorf("TypeName = %q", us.TypeName())
	}

	data, err := us.Encode([]any{
		map[string]any{"v4": map[string]any{"ttl": 64}},
		nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	entries := data.GetHeaderUnionStack().GetEntries()
	if len(entries) != 2 || entries[0].GetValidHeaderName() != "v4" {
		t.Fatalf("stack entries = %v", entries)
	}

	back, err := us.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	vals := back.([]any)
	hdr := vals[0].(map[string]any)["v4"].(map[string]any)
	if hdr["ttl"] != uint64(64) || vals[1] != nil {
		t.Errorf("round trip = %v", vals)
	}

	if _, err := us.Encode([]any{nil}); err == nil {
		t.Error("wrong stack arity should fail")
	}
}

func TestHeaderUnionStackResolves(t *testing.T) {
	p4info := testutil.DemoP4Info()
	p4info.TypeInfo.Headers = map[string]*p4config.P4HeaderTypeSpec{
		"ipv4_t": {Members: []*p4config.P4HeaderTypeSpec_Member{{
			Name: "ttl",
			TypeSpec: &p4config.P4BitstringLikeTypeSpec{
				TypeSpec: &p4config.P4BitstringLikeTypeSpec_Bit{
					Bit: &p4config.P4BitTypeSpec{Bitwidth: 8},
				},
			},
		}}},
	}
	p4info.TypeInfo.HeaderUnions = map[string]*p4config.P4HeaderUnionTypeSpec{
		"ip_t": {Members: []*p4config.P4HeaderUnionTypeSpec_Member{{
			Name:   "v4",
			Header: &p4config.P4NamedType{Name: "ipv4_t"},
		}}},
	}
	s, err := New(p4info, nil)
	if err != nil {
		t.Fatal(err)
	}

	typ, err := s.TypeInfo().DataType(&p4config.P4DataTypeSpec{
		TypeSpec: &p4config.P4DataTypeSpec_HeaderUnionStack{
			HeaderUnionStack: &p4config.P4HeaderUnionStackTypeSpec{
				HeaderUnion: &p4config.P4NamedType{Name: "ip_t"},
				Size:        3,
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if typ.TypeName() != "ip_t[3]" {
		t.Errorf("resolved type = %q", typ.TypeName())
	}
}

func TestRecursiveNewTypeFatal(t *testing.T) {
	ti := &p4config.P4TypeInfo{
		NewTypes: map[string]*p4config.P4NewTypeSpec{
			"loop_t": {
				Representation: &p4config.P4NewTypeSpec_OriginalType{
					OriginalType: &p4config.P4DataTypeSpec{
						TypeSpec: &p4config.P4DataTypeSpec_NewType{
							NewType: &p4config.P4NamedType{Name: "loop_t"},
						},
					},
				},
			},
		},
	}
	p4info := testutil.DemoP4Info()
	p4info.TypeInfo = ti
	if _, err := New(p4info, nil); err == nil {
		t.Fatal("recursive new_type should be fatal")
	}
}

func TestTupleType(t *testing.T) {
	tt := &P4TupleType{Members: []P4Type{
		&P4BitsType{Bitwidth: 8},
		&P4BoolType{},
	}}

	data, err := tt.Encode([]any{5, true})
	if err != nil {
		t.Fatal(err)
	}
	back, err := tt.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	vals := back.([]any)
	if vals[0] != uint64(5) || vals[1] != true {
		t.Errorf("tuple round trip = %v", vals)
	}

	if _, err := tt.Encode([]any{1}); err == nil {
		t.Error("wrong tuple arity should fail")
	}
}
