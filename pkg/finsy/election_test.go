package finsy

import "testing"

func TestElectionIDDecrement(t *testing.T) {
	id := ElectionIDFromUint64(10)
	next, ok := id.Decrement()
	if !ok || next.Low != 9 {
		t.Errorf("Decrement(10) = %v, %v", next, ok)
	}

	// Borrow across the 64-bit boundary.
	id = ElectionID{High: 1, Low: 0}
	next, ok = id.Decrement()
	if !ok || next.High != 0 || next.Low != ^uint64(0) {
		t.Errorf("Decrement(1<<64) = %v, %v", next, ok)
	}

	// One is the lowest usable id.
	if _, ok := ElectionIDFromUint64(1).Decrement(); ok {
		t.Error("decrementing 1 should report exhaustion")
	}
	if _, ok := (ElectionID{}).Decrement(); ok {
		t.Error("decrementing 0 should report exhaustion")
	}
}

func TestElectionIDCmp(t *testing.T) {
	a := ElectionIDFromUint64(5)
	b := ElectionIDFromUint64(9)
	high := ElectionID{High: 1}
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(a) != 0 {
		t.Error("low word comparison")
	}
	if b.Cmp(high) != -1 || high.Cmp(b) != 1 {
		t.Error("high word comparison")
	}
}

func TestElectionIDProto(t *testing.T) {
	if (ElectionID{}).Proto() != nil {
		t.Error("zero id must encode as absent")
	}
	pb := ElectionIDFromUint64(10).Proto()
	if pb.GetHigh() != 0 || pb.GetLow() != 10 {
		t.Errorf("proto = %v", pb)
	}
	if electionIDFromProto(pb) != ElectionIDFromUint64(10) {
		t.Error("proto round trip")
	}
}

func TestElectionIDString(t *testing.T) {
	if s := ElectionIDFromUint64(10).String(); s != "10" {
		t.Errorf("String = %q", s)
	}
	if s := (ElectionID{High: 2, Low: 0xab}).String(); s != "0x2_00000000000000ab" {
		t.Errorf("String = %q", s)
	}
}
