package gnmiclient

import (
	"testing"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"

	"github.com/finsy-network/finsy/pkg/gnmipath"
)

func TestFlattenJoinsPrefix(t *testing.T) {
	n := &gnmipb.Notification{
		Timestamp: 42,
		Prefix:    gnmipath.MustParse("interfaces/interface[name=eth0]").Proto(),
		Update: []*gnmipb.Update{
			{
				Path: gnmipath.MustParse("state/oper-status").Proto(),
				Val:  &gnmipb.TypedValue{Value: &gnmipb.TypedValue_StringVal{StringVal: "UP"}},
			},
			{
				Path: gnmipath.MustParse("state/ifindex").Proto(),
				Val:  &gnmipb.TypedValue{Value: &gnmipb.TypedValue_UintVal{UintVal: 7}},
			},
		},
	}

	updates := flatten(n)
	if len(updates) != 2 {
		t.Fatalf("flatten = %d updates", len(updates))
	}
	if updates[0].Timestamp != 42 {
		t.Errorf("timestamp = %d", updates[0].Timestamp)
	}
	want := "interfaces/interface[name=eth0]/state/oper-status"
	if updates[0].Path.String() != want {
		t.Errorf("path = %q, want %q", updates[0].Path.String(), want)
	}
	if updates[0].Str() != "UP" {
		t.Errorf("Str = %q", updates[0].Str())
	}
	if updates[1].Uint() != 7 {
		t.Errorf("Uint = %d", updates[1].Uint())
	}
}

func TestUpdateValueHelpers(t *testing.T) {
	u := Update{Value: &gnmipb.TypedValue{Value: &gnmipb.TypedValue_IntVal{IntVal: 9}}}
	if u.Uint() != 9 {
		t.Errorf("Uint from int = %d", u.Uint())
	}
	u = Update{Value: &gnmipb.TypedValue{Value: &gnmipb.TypedValue_BoolVal{BoolVal: true}}}
	if !u.Bool() {
		t.Error("Bool = false")
	}
	u = Update{Value: &gnmipb.TypedValue{Value: &gnmipb.TypedValue_AsciiVal{AsciiVal: "x"}}}
	if u.Str() != "x" {
		t.Errorf("Str from ascii = %q", u.Str())
	}
	// Mismatched accessors return zero values.
	if u.Uint() != 0 || u.Bool() {
		t.Error("mismatched accessor should be zero")
	}
	if (Update{}).Str() != "" {
		t.Error("nil value should be empty")
	}
}
