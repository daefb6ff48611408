package p4entity

import (
	"bytes"
	"testing"
	"time"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/internal/testutil"
	"github.com/finsy-network/finsy/pkg/p4schema"
	"github.com/finsy-network/finsy/pkg/p4values"
)

func demoSchema(t *testing.T) *p4schema.P4Schema {
	t.Helper()
	s, err := p4schema.New(testutil.DemoP4Info(), nil)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func TestTableEntryEncode(t *testing.T) {
	s := demoSchema(t)
	entry := &TableEntry{
		Table:  "l2_exact_table",
		Match:  Match{"dst_addr": "00:00:00:00:00:01"},
		Action: NewAction("set_egress_port", map[string]any{"port": 1}),
	}

	entity, err := entry.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	wire := entity.GetTableEntry()
	if wire.GetTableId() != testutil.L2ExactTableID {
		t.Errorf("table_id = %d", wire.GetTableId())
	}
	if len(wire.GetMatch()) != 1 {
		t.Fatalf("match count = %d", len(wire.GetMatch()))
	}
	exact := wire.GetMatch()[0].GetExact()
	if !bytes.Equal(exact.GetValue(), []byte{0x01}) {
		t.Errorf("match value = %#v, want canonical {0x01}", exact.GetValue())
	}
	action := wire.GetAction().GetAction()
	if action.GetActionId() != testutil.SetEgressPortID {
		t.Errorf("action_id = %d", action.GetActionId())
	}
	if !bytes.Equal(action.GetParams()[0].GetValue(), []byte{0x01}) {
		t.Errorf("param value = %#v", action.GetParams()[0].GetValue())
	}
}

func TestTableEntryWildcard(t *testing.T) {
	s := demoSchema(t)
	entity, err := (&TableEntry{}).Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	if entity.GetTableEntry().GetTableId() != 0 {
		t.Error("empty table name should encode a wildcard entry")
	}
}

func TestTableEntryWildcardFieldsOmitted(t *testing.T) {
	s := demoSchema(t)
	tests := []struct {
		name  string
		entry *TableEntry
	}{
		{"lpm prefix zero", &TableEntry{
			Table: "ipv4_lpm",
			Match: Match{"dst_addr": "0.0.0.0/0"},
		}},
		{"ternary mask zero", &TableEntry{
			Table: "l2_ternary_table",
			Match: Match{"dst_addr": p4values.Ternary{Value: 0, Mask: 0}},
		}},
		{"optional absent", &TableEntry{
			Table: "ipv4_lpm",
			Match: Match{"port": nil},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity, err := tt.entry.Encode(s)
			if err != nil {
				t.Fatal(err)
			}
			if n := len(entity.GetTableEntry().GetMatch()); n != 0 {
				t.Errorf("wildcard field should be omitted, got %d matches", n)
			}
		})
	}
}

func TestTableEntryAutoPromotion(t *testing.T) {
	s := demoSchema(t)
	entry := &TableEntry{
		Table:  "ecmp_table",
		Match:  Match{"dst_addr": "10.0.0.1"},
		Action: NewAction("set_egress_port", map[string]any{"port": 2}),
	}

	entity, err := entry.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	set := entity.GetTableEntry().GetAction().GetActionProfileActionSet()
	if set == nil {
		t.Fatal("plain action on an indirect table should become a one-shot")
	}
	actions := set.GetActionProfileActions()
	if len(actions) != 1 || actions[0].GetWeight() != 1 {
		t.Errorf("one-shot = %v, want single weight-1 action", actions)
	}
}

func TestTableEntryIndirect(t *testing.T) {
	s := demoSchema(t)

	entity, err := (&TableEntry{
		Table:          "ecmp_table",
		IndirectAction: &IndirectAction{MemberID: 5},
	}).Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	if entity.GetTableEntry().GetAction().GetActionProfileMemberId() != 5 {
		t.Error("member id should pass through")
	}

	_, err = (&TableEntry{
		Table:          "ecmp_table",
		IndirectAction: &IndirectAction{MemberID: 5, GroupID: 6},
	}).Encode(s)
	if err == nil {
		t.Error("member and group together should fail")
	}

	entity, err = (&TableEntry{
		Table: "ecmp_table",
		IndirectAction: &IndirectAction{
			ActionSet: []WeightedAction{
				{Weight: 2, Action: NewAction("set_egress_port", map[string]any{"port": 1})},
				{Weight: 1, WatchPort: 3, Action: NewAction("set_egress_port", map[string]any{"port": 2})},
			},
		},
	}).Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	actions := entity.GetTableEntry().GetAction().GetActionProfileActionSet().GetActionProfileActions()
	if len(actions) != 2 || actions[0].GetWeight() != 2 {
		t.Fatalf("action set = %v", actions)
	}
	if !bytes.Equal(actions[1].GetWatchPort(), []byte{0x03}) {
		t.Errorf("watch port = %#v", actions[1].GetWatchPort())
	}
}

func TestTableEntryRoundTrip(t *testing.T) {
	s := demoSchema(t)
	entry := &TableEntry{
		Table:    "ipv4_lpm",
		Match:    Match{"dst_addr": "10.1.0.0/16"},
		Action:   NewAction("drop", nil),
		Priority: 10,
	}

	entity, err := entry.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeTableEntry(s, entity.GetTableEntry())
	if err != nil {
		t.Fatal(err)
	}
	if back.Table != "ipv4_lpm" || back.Priority != 10 {
		t.Errorf("round trip = %+v", back)
	}
	if back.Action == nil || back.Action.Name != "drop" {
		t.Errorf("action = %+v", back.Action)
	}
	if _, ok := back.Match["dst_addr"]; !ok {
		t.Errorf("match = %v", back.Match)
	}
}

func TestUpdateTagging(t *testing.T) {
	s := demoSchema(t)
	entry := &TableEntry{Table: "l2_exact_table", Match: Match{"dst_addr": 1}}

	updates := Insert(entry)
	if len(updates) != 1 || updates[0].Type != p4v1.Update_INSERT {
		t.Fatalf("Insert = %v", updates)
	}
	if Modify(entry)[0].Type != p4v1.Update_MODIFY {
		t.Error("Modify type")
	}
	if Delete(entry)[0].Type != p4v1.Update_DELETE {
		t.Error("Delete type")
	}

	wire, err := EncodeUpdates(s, updates)
	if err != nil {
		t.Fatal(err)
	}
	if wire[0].GetType() != p4v1.Update_INSERT || wire[0].GetEntity().GetTableEntry() == nil {
		t.Errorf("EncodeUpdates = %v", wire)
	}

	if _, err := (Update{Entity: entry}).Encode(s); err == nil {
		t.Error("untagged update should fail to encode")
	}
}

func TestMulticastGroupEntry(t *testing.T) {
	s := demoSchema(t)
	entry := &MulticastGroupEntry{
		GroupID: 1,
		Replicas: []Replica{
			{Port: 1, Instance: 0},
			{Port: 2, Instance: 1},
		},
	}

	entity, err := entry.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	mge := entity.GetPacketReplicationEngineEntry().GetMulticastGroupEntry()
	if mge.GetMulticastGroupId() != 1 || len(mge.GetReplicas()) != 2 {
		t.Fatalf("encode = %v", mge)
	}

	back, err := DecodeEntity(s, entity)
	if err != nil {
		t.Fatal(err)
	}
	decoded := back.(*MulticastGroupEntry)
	if decoded.Replicas[1].Port != uint64(2) || decoded.Replicas[1].Instance != 1 {
		t.Errorf("round trip = %+v", decoded)
	}
}

func TestDigestEntryConfig(t *testing.T) {
	s := demoSchema(t)
	entity, err := (&DigestEntry{
		Digest:      "digest_t",
		MaxListSize: 100,
		MaxTimeout:  time.Millisecond,
	}).Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	cfg := entity.GetDigestEntry().GetConfig()
	if cfg.GetMaxListSize() != 100 || cfg.GetMaxTimeoutNs() != int64(time.Millisecond) {
		t.Errorf("config = %v", cfg)
	}
}

func TestRegisterEntry(t *testing.T) {
	s := demoSchema(t)
	idx := int64(3)
	entity, err := (&RegisterEntry{Register: "reg1", Index: &idx, Data: 42}).Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	wire := entity.GetRegisterEntry()
	if wire.GetIndex().GetIndex() != 3 {
		t.Errorf("index = %v", wire.GetIndex())
	}
	if !bytes.Equal(wire.GetData().GetBitstring(), []byte{0x2a}) {
		t.Errorf("data = %#v", wire.GetData())
	}

	back, err := DecodeEntity(s, entity)
	if err != nil {
		t.Fatal(err)
	}
	reg := back.(*RegisterEntry)
	if reg.Register != "reg1" || reg.Data != uint64(42) {
		t.Errorf("round trip = %+v", reg)
	}
}

func TestValueSetEntry(t *testing.T) {
	s := demoSchema(t)
	entity, err := (&ValueSetEntry{
		ValueSet: "pvs",
		Members:  []Match{{"ether_type": 0x800}, {"ether_type": 0x86dd}},
	}).Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(entity.GetValueSetEntry().GetMembers()) != 2 {
		t.Errorf("members = %v", entity.GetValueSetEntry())
	}
}

func TestPacketOutEncode(t *testing.T) {
	s := demoSchema(t)
	msg, err := (&PacketOut{
		Payload:  []byte{0xde, 0xad},
		Metadata: map[string]any{"egress_port": 7, "_pad": 0},
	}).EncodeMessage(s)
	if err != nil {
		t.Fatal(err)
	}
	packet := msg.GetPacket()
	if !bytes.Equal(packet.GetPayload(), []byte{0xde, 0xad}) {
		t.Error("payload should pass through")
	}
	if len(packet.GetMetadata()) != 2 {
		t.Errorf("metadata = %v", packet.GetMetadata())
	}
}

func TestPacketInDecode(t *testing.T) {
	s := demoSchema(t)
	payload := make([]byte, 14)
	payload[12], payload[13] = 0x08, 0x00

	p, err := DecodePacketIn(s, &p4v1.PacketIn{
		Payload: payload,
		Metadata: []*p4v1.PacketMetadata{
			{MetadataId: 1, Value: []byte{0x03}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Metadata["ingress_port"] != uint64(3) {
		t.Errorf("metadata = %v", p.Metadata)
	}
	if p.EtherType() != 0x0800 {
		t.Errorf("EtherType = %#x", p.EtherType())
	}
}

func TestDigestListDecodeAndAck(t *testing.T) {
	s := demoSchema(t)
	item := &p4v1.P4Data{
		Data: &p4v1.P4Data_Struct{
			Struct: &p4v1.P4StructLike{
				Members: []*p4v1.P4Data{
					{Data: &p4v1.P4Data_Bitstring{Bitstring: []byte{0x01}}},
					{Data: &p4v1.P4Data_Bitstring{Bitstring: []byte{0x02}}},
				},
			},
		},
	}
	d, err := DecodeDigestList(s, &p4v1.DigestList{
		DigestId: testutil.DigestID,
		ListId:   9,
		Data:     []*p4v1.P4Data{item},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Digest != "digest_t" || len(d.Data) != 1 {
		t.Fatalf("digest list = %+v", d)
	}
	fields := d.Data[0].(map[string]any)
	if fields["ingress_port"] != uint64(2) {
		t.Errorf("digest data = %v", fields)
	}

	ack, err := d.Ack().EncodeMessage(s)
	if err != nil {
		t.Fatal(err)
	}
	if ack.GetDigestAck().GetListId() != 9 || ack.GetDigestAck().GetDigestId() != testutil.DigestID {
		t.Errorf("ack = %v", ack)
	}
}

func TestMatchAndActionStrings(t *testing.T) {
	s := demoSchema(t)
	entry := &TableEntry{
		Table:  "ipv4_lpm",
		Match:  Match{"dst_addr": "10.0.0.0/8"},
		Action: NewAction("set_egress_port", map[string]any{"port": 1}),
	}

	ms, err := entry.MatchString(s)
	if err != nil {
		t.Fatal(err)
	}
	if ms != "dst_addr=10.0.0.0/8 port=*" {
		t.Errorf("MatchString = %q", ms)
	}

	as, err := entry.ActionString(s)
	if err != nil {
		t.Fatal(err)
	}
	if as != "set_egress_port(port=1)" {
		t.Errorf("ActionString = %q", as)
	}

	full, err := entry.FullMatch(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 2 || full["port"] != nil {
		t.Errorf("FullMatch = %v", full)
	}
}
