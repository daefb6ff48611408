package finsy

import (
	"testing"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"

	"github.com/finsy-network/finsy/pkg/gnmiclient"
	"github.com/finsy-network/finsy/pkg/gnmipath"
)

func operStatus(t *testing.T, port, status string) gnmiclient.Update {
	t.Helper()
	return gnmiclient.Update{
		Path:  gnmipath.MustParse("interfaces/interface[name=" + port + "]/state/oper-status"),
		Value: &gnmipb.TypedValue{Value: &gnmipb.TypedValue_StringVal{StringVal: status}},
	}
}

func TestApplyPortUpdates(t *testing.T) {
	sw := demoSwitch(t)
	var events []Event
	sw.Subscribe(func(ev Event) {
		if ev.Kind == EventPortUp || ev.Kind == EventPortDown {
			events = append(events, ev)
		}
	})

	ids := map[string]uint64{"eth0": 7}
	sw.applyPortUpdates(ids, []gnmiclient.Update{
		operStatus(t, "eth1", "UP"),
		operStatus(t, "eth0", "DOWN"),
	}, false)

	ports := sw.Ports()
	if len(ports) != 2 {
		t.Fatalf("Ports = %v", ports)
	}
	if ports[0].Name != "eth0" || ports[0].ID != 7 || ports[0].Up {
		t.Errorf("eth0 = %+v", ports[0])
	}
	if ports[1].Name != "eth1" || ports[1].ID != 0 || !ports[1].Up {
		t.Errorf("eth1 = %+v", ports[1])
	}
	if len(events) != 0 {
		t.Errorf("initial sync emitted %v", events)
	}

	// Only transitions produce events.
	sw.applyPortUpdates(ids, []gnmiclient.Update{
		operStatus(t, "eth0", "UP"),
		operStatus(t, "eth1", "UP"),
	}, true)
	if len(events) != 1 || events[0].Kind != EventPortUp || events[0].Port != "eth0" {
		t.Fatalf("events = %v", events)
	}

	sw.applyPortUpdates(ids, []gnmiclient.Update{
		operStatus(t, "eth1", "DOWN"),
	}, true)
	if len(events) != 2 || events[1].Kind != EventPortDown || events[1].Port != "eth1" {
		t.Fatalf("events = %v", events)
	}
}

func TestApplyPortUpdatesIgnoresUnnamed(t *testing.T) {
	sw := demoSwitch(t)
	sw.applyPortUpdates(nil, []gnmiclient.Update{{
		Path:  gnmipath.MustParse("interfaces/interface/state/oper-status"),
		Value: &gnmipb.TypedValue{Value: &gnmipb.TypedValue_StringVal{StringVal: "UP"}},
	}}, true)
	if n := len(sw.Ports()); n != 0 {
		t.Errorf("Ports = %d, want 0", n)
	}
}
