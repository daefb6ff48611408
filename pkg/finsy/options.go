package finsy

import (
	"context"
	"fmt"
	"os"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/finsy-network/finsy/pkg/creds"
	"github.com/finsy-network/finsy/pkg/p4schema"
)

// ReadyHandler runs while the switch is READY. Its context is cancelled
// whenever the switch leaves READY; returning early is fine, tasks
// created via Switch.CreateTask keep the epoch alive.
type ReadyHandler func(ctx context.Context, sw *Switch) error

// SwitchOptions configures one Switch. The value is copied when a
// Switch is created; later changes to the original have no effect. Use
// With to derive a modified copy.
type SwitchOptions struct {
	// P4Info and P4Blob name the pipeline to install, as in-memory
	// values or file paths. All empty means no pipeline: the switch
	// adopts whatever the device is running.
	P4Info     *p4config.P4Info
	P4InfoPath string
	P4Blob     []byte
	P4BlobPath string

	// P4Force reinstalls the pipeline even when the device cookie
	// already matches.
	P4Force bool

	// DeviceID is the P4Runtime device id. Zero means 1.
	DeviceID uint64

	// InitialElectionID is the first election id requested during
	// arbitration. Zero means 10.
	InitialElectionID ElectionID

	// RoleName and RoleConfig select a P4Runtime role. Empty RoleName
	// is the default full-access role.
	RoleName   string
	RoleConfig *anypb.Any

	// Credentials secure the gRPC channel. Nil means plaintext.
	Credentials *creds.Credentials

	// ReadyHandler runs each time the switch reaches READY.
	ReadyHandler ReadyHandler

	// FailFast propagates programming errors out of the supervisor
	// instead of reconnecting.
	FailFast bool
}

// With returns a copy of the options with the given overrides applied.
func (o SwitchOptions) With(modify func(*SwitchOptions)) SwitchOptions {
	modify(&o)
	return o
}

func (o SwitchOptions) withDefaults() SwitchOptions {
	if o.DeviceID == 0 {
		o.DeviceID = 1
	}
	if o.InitialElectionID.IsZero() {
		o.InitialElectionID = ElectionIDFromUint64(10)
	}
	return o
}

// loadSchema builds the configured pipeline schema. With no pipeline
// configured it returns an empty schema.
func (o SwitchOptions) loadSchema() (*p4schema.P4Schema, error) {
	blob := o.P4Blob
	if blob == nil && o.P4BlobPath != "" {
		b, err := os.ReadFile(o.P4BlobPath)
		if err != nil {
			return nil, fmt.Errorf("read pipeline blob: %w", err)
		}
		blob = b
	}

	switch {
	case o.P4Info != nil:
		return p4schema.New(o.P4Info, blob)
	case o.P4InfoPath != "":
		p4info, err := p4schema.LoadP4Info(o.P4InfoPath)
		if err != nil {
			return nil, err
		}
		return p4schema.New(p4info, blob)
	case blob != nil:
		return nil, fmt.Errorf("pipeline blob configured without P4Info")
	default:
		return p4schema.New(nil, nil)
	}
}
