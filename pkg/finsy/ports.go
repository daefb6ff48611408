package finsy

import (
	"context"
	"sort"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"

	"github.com/finsy-network/finsy/pkg/gnmiclient"
	"github.com/finsy-network/finsy/pkg/gnmipath"
)

// Port is one device interface, tracked via gNMI.
type Port struct {
	Name string
	ID   uint64 // ifindex; 0 when the device does not report one
	Up   bool
}

var (
	ifIndexPath    = gnmipath.MustParse("interfaces/interface[name=*]/state/ifindex")
	operStatusPath = gnmipath.MustParse("interfaces/interface[name=*]/state/oper-status")
)

// Ports returns a snapshot of the tracked interfaces, sorted by name.
// Empty when the device does not serve gNMI.
func (sw *Switch) Ports() []Port {
	sw.mu.Lock()
	out := make([]Port, 0, len(sw.ports))
	for _, p := range sw.ports {
		out = append(out, *p)
	}
	sw.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// watchPorts follows interface oper-status over gNMI for the lifetime
// of the READY epoch. Devices without gNMI are tolerated: the watcher
// just logs and returns.
func (sw *Switch) watchPorts(ctx context.Context) error {
	if sw.gnmi == nil {
		return nil
	}

	sub, err := sw.gnmi.Subscribe(ctx, gnmiclient.Subscription{
		Paths: []gnmipath.Path{operStatusPath},
		Mode:  gnmipb.SubscriptionMode_ON_CHANGE,
	})
	if err != nil {
		sw.log.Debugf("gNMI port tracking unavailable: %v", err)
		return nil
	}
	defer sub.Close()

	// ifindex is a one-shot read; not all devices serve it.
	ids := map[string]uint64{}
	if updates, err := sw.gnmi.Get(ctx, ifIndexPath); err == nil {
		for _, u := range updates {
			if name := u.Path.Key("interface", "name"); name != "" {
				ids[name] = u.Uint()
			}
		}
	}

	initial, err := sub.Synchronize()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sw.log.Debugf("gNMI port tracking unavailable: %v", err)
		return nil
	}
	sw.applyPortUpdates(ids, initial, false)
	sw.log.Debugf("tracking %d ports", len(sw.Ports()))

	for {
		updates, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sw.log.Debugf("gNMI port subscription ended: %v", err)
			return nil
		}
		sw.applyPortUpdates(ids, updates, true)
	}
}

// applyPortUpdates folds oper-status updates into the port table,
// emitting PORT_UP/PORT_DOWN for changes after the initial sync.
func (sw *Switch) applyPortUpdates(ids map[string]uint64, updates []gnmiclient.Update, emitEvents bool) {
	for _, u := range updates {
		name := u.Path.Key("interface", "name")
		if name == "" {
			continue
		}
		up := u.Str() == "UP"

		sw.mu.Lock()
		port := sw.ports[name]
		if port == nil {
			port = &Port{Name: name, ID: ids[name]}
			sw.ports[name] = port
		}
		changed := port.Up != up
		port.Up = up
		sw.mu.Unlock()

		if emitEvents && changed {
			kind := EventPortDown
			if up {
				kind = EventPortUp
			}
			sw.log.Infof("port %s: %s", name, kind)
			sw.emit(Event{Kind: kind, Switch: sw, Port: name})
		}
	}
}
