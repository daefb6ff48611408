// Package testutil builds in-memory P4Info documents for package tests.
package testutil

import (
	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
)

// Well-known ids of the demo pipeline. The top byte of each id encodes the
// resource kind, as the P4 compiler would assign them.
const (
	NoActionID      uint32 = 21257015
	SetEgressPortID uint32 = 24677122
	DropID          uint32 = 25652968
	FloodID         uint32 = 21866827
	SetGroupID      uint32 = 26150030

	L2ExactTableID   uint32 = 34391805
	L2TernaryTableID uint32 = 34911717
	IPv4LpmTableID   uint32 = 37375156
	EcmpTableID      uint32 = 36113025

	EcmpSelectorID uint32 = 297808402

	PortCounterID    uint32 = 302055478
	L2DirectCountID  uint32 = 318767159
	PortMeterID      uint32 = 335544420
	Register1ID      uint32 = 369098761
	DigestID         uint32 = 385875969
	PacketInID       uint32 = 67108865
	PacketOutID      uint32 = 67108866
	ParserValueSetID uint32 = 50331655
)

func preamble(id uint32, name, alias string, annotations ...string) *p4config.Preamble {
	return &p4config.Preamble{Id: id, Name: name, Alias: alias, Annotations: annotations}
}

func action(id uint32, name, alias string, params ...*p4config.Action_Param) *p4config.Action {
	return &p4config.Action{Preamble: preamble(id, name, alias), Params: params}
}

func bitType(width int32) *p4config.P4BitstringLikeTypeSpec {
	return &p4config.P4BitstringLikeTypeSpec{
		TypeSpec: &p4config.P4BitstringLikeTypeSpec_Bit{
			Bit: &p4config.P4BitTypeSpec{Bitwidth: width},
		},
	}
}

// DemoP4Info builds a small but representative pipeline: exact, ternary and
// LPM tables, an action selector, counters, a meter, a register, a digest,
// controller packet metadata, a parser value set and a translated new type.
func DemoP4Info() *p4config.P4Info {
	return &p4config.P4Info{
		PkgInfo: &p4config.PkgInfo{Name: "demo.p4", Arch: "v1model", Version: "1.0.0"},
		Actions: []*p4config.Action{
			action(NoActionID, "NoAction", "NoAction"),
			action(SetEgressPortID, "ingress.set_egress_port", "set_egress_port",
				&p4config.Action_Param{Id: 1, Name: "port", Bitwidth: 9}),
			action(DropID, "ingress.drop", "drop"),
			action(FloodID, "ingress.flood", "flood"),
			action(SetGroupID, "ingress.set_group", "set_group",
				&p4config.Action_Param{Id: 1, Name: "gid", Bitwidth: 32}),
		},
		ActionProfiles: []*p4config.ActionProfile{
			{
				Preamble:     preamble(EcmpSelectorID, "ingress.ecmp_selector", "ecmp_selector"),
				TableIds:     []uint32{EcmpTableID},
				WithSelector: true,
				Size:         128,
				MaxGroupSize: 16,
			},
		},
		Tables: []*p4config.Table{
			{
				Preamble: preamble(L2ExactTableID, "ingress.l2_exact_table", "l2_exact_table"),
				MatchFields: []*p4config.MatchField{
					{
						Id: 1, Name: "hdr.ethernet.dst_addr", Bitwidth: 48,
						Match:       &p4config.MatchField_MatchType_{MatchType: p4config.MatchField_EXACT},
						Annotations: []string{"@format(MAC_ADDRESS)"},
					},
				},
				ActionRefs: []*p4config.ActionRef{
					{Id: SetEgressPortID},
					{Id: DropID},
					{Id: NoActionID, Scope: p4config.ActionRef_DEFAULT_ONLY},
				},
				DirectResourceIds: []uint32{L2DirectCountID},
				Size:              1024,
			},
			{
				Preamble: preamble(L2TernaryTableID, "ingress.l2_ternary_table", "l2_ternary_table"),
				MatchFields: []*p4config.MatchField{
					{
						Id: 1, Name: "hdr.ethernet.dst_addr", Bitwidth: 48,
						Match:       &p4config.MatchField_MatchType_{MatchType: p4config.MatchField_TERNARY},
						Annotations: []string{"@format(MAC_ADDRESS)"},
					},
				},
				ActionRefs: []*p4config.ActionRef{
					{Id: FloodID},
					{Id: DropID},
				},
				ConstDefaultActionId: DropID,
				Size:                 128,
			},
			{
				Preamble: preamble(IPv4LpmTableID, "ingress.ipv4_lpm", "ipv4_lpm"),
				MatchFields: []*p4config.MatchField{
					{
						Id: 1, Name: "hdr.ipv4.dst_addr", Bitwidth: 32,
						Match:       &p4config.MatchField_MatchType_{MatchType: p4config.MatchField_LPM},
						Annotations: []string{"@format(IPV4_ADDRESS)"},
					},
					{
						Id: 2, Name: "local_metadata.port", Bitwidth: 9,
						Match: &p4config.MatchField_MatchType_{MatchType: p4config.MatchField_OPTIONAL},
					},
				},
				ActionRefs: []*p4config.ActionRef{
					{Id: SetEgressPortID},
					{Id: DropID},
				},
				IdleTimeoutBehavior: p4config.Table_NOTIFY_CONTROL,
				Size:                1024,
			},
			{
				Preamble: preamble(EcmpTableID, "ingress.ecmp_table", "ecmp_table"),
				MatchFields: []*p4config.MatchField{
					{
						Id: 1, Name: "hdr.ipv4.dst_addr", Bitwidth: 32,
						Match: &p4config.MatchField_MatchType_{MatchType: p4config.MatchField_EXACT},
					},
				},
				ActionRefs: []*p4config.ActionRef{
					{Id: SetEgressPortID},
				},
				ImplementationId: EcmpSelectorID,
				Size:             256,
			},
		},
		Counters: []*p4config.Counter{
			{
				Preamble: preamble(PortCounterID, "ingress.port_counter", "port_counter"),
				Spec:     &p4config.CounterSpec{Unit: p4config.CounterSpec_PACKETS},
				Size:     512,
			},
		},
		DirectCounters: []*p4config.DirectCounter{
			{
				Preamble:      preamble(L2DirectCountID, "ingress.l2_count", "l2_count"),
				Spec:          &p4config.CounterSpec{Unit: p4config.CounterSpec_BOTH},
				DirectTableId: L2ExactTableID,
			},
		},
		Meters: []*p4config.Meter{
			{
				Preamble: preamble(PortMeterID, "ingress.port_meter", "port_meter"),
				Spec:     &p4config.MeterSpec{Unit: p4config.MeterSpec_BYTES},
				Size:     512,
			},
		},
		Registers: []*p4config.Register{
			{
				Preamble: preamble(Register1ID, "ingress.reg1", "reg1"),
				TypeSpec: &p4config.P4DataTypeSpec{
					TypeSpec: &p4config.P4DataTypeSpec_Bitstring{Bitstring: bitType(32)},
				},
				Size: 128,
			},
		},
		Digests: []*p4config.Digest{
			{
				Preamble: preamble(DigestID, "digest_t", "digest_t"),
				TypeSpec: &p4config.P4DataTypeSpec{
					TypeSpec: &p4config.P4DataTypeSpec_Struct{
						Struct: &p4config.P4NamedType{Name: "digest_t"},
					},
				},
			},
		},
		ValueSets: []*p4config.ValueSet{
			{
				Preamble: preamble(ParserValueSetID, "parser.pvs", "pvs"),
				Match: []*p4config.MatchField{
					{
						Id: 1, Name: "ether_type", Bitwidth: 16,
						Match: &p4config.MatchField_MatchType_{MatchType: p4config.MatchField_EXACT},
					},
				},
				Size: 4,
			},
		},
		ControllerPacketMetadata: []*p4config.ControllerPacketMetadata{
			{
				Preamble: preamble(PacketInID, "packet_in", "packet_in"),
				Metadata: []*p4config.ControllerPacketMetadata_Metadata{
					{Id: 1, Name: "ingress_port", Bitwidth: 9},
					{Id: 2, Name: "_pad", Bitwidth: 7},
				},
			},
			{
				Preamble: preamble(PacketOutID, "packet_out", "packet_out"),
				Metadata: []*p4config.ControllerPacketMetadata_Metadata{
					{Id: 1, Name: "egress_port", Bitwidth: 9},
					{Id: 2, Name: "_pad", Bitwidth: 7},
				},
			},
		},
		TypeInfo: &p4config.P4TypeInfo{
			Structs: map[string]*p4config.P4StructTypeSpec{
				"digest_t": {
					Members: []*p4config.P4StructTypeSpec_Member{
						{
							Name: "src_addr",
							TypeSpec: &p4config.P4DataTypeSpec{
								TypeSpec: &p4config.P4DataTypeSpec_Bitstring{Bitstring: bitType(48)},
							},
						},
						{
							Name: "ingress_port",
							TypeSpec: &p4config.P4DataTypeSpec{
								TypeSpec: &p4config.P4DataTypeSpec_Bitstring{Bitstring: bitType(9)},
							},
						},
					},
				},
			},
			NewTypes: map[string]*p4config.P4NewTypeSpec{
				"PortId_t": {
					Representation: &p4config.P4NewTypeSpec_TranslatedType{
						TranslatedType: &p4config.P4NewTypeTranslation{
							Uri: "p4.org/psa/v1/PortId_t",
							SdnType: &p4config.P4NewTypeTranslation_SdnBitwidth{
								SdnBitwidth: 32,
							},
						},
					},
				},
			},
		},
	}
}
