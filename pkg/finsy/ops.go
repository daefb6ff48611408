package finsy

import (
	"context"
	"fmt"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/pkg/p4client"
	"github.com/finsy-network/finsy/pkg/p4entity"
	"github.com/finsy-network/finsy/pkg/p4schema"
	"github.com/finsy-network/finsy/pkg/util"
)

// WriteOptions tunes a batched write.
type WriteOptions struct {
	// Atomicity is the P4Runtime atomicity hint. The zero value is
	// CONTINUE_ON_ERROR.
	Atomicity p4v1.WriteRequest_Atomicity

	// WarnOnly logs write failures instead of returning them.
	WarnOnly bool

	// IgnoreNotFound swallows batches where every failure is
	// NOT_FOUND, for deletes of entries that may already be gone.
	IgnoreNotFound bool
}

func (sw *Switch) writeRequest(updates []*p4v1.Update, atomicity p4v1.WriteRequest_Atomicity) (*p4v1.WriteRequest, error) {
	if sw.arb == nil {
		return nil, util.ErrNotConnected
	}
	return &p4v1.WriteRequest{
		DeviceId:   sw.options.DeviceID,
		Role:       sw.options.RoleName,
		ElectionId: sw.arb.currentElectionID().Proto(),
		Updates:    updates,
		Atomicity:  atomicity,
	}, nil
}

// Write sends a batch of updates in one WriteRequest. Updates are
// delivered to the device in the order given.
func (sw *Switch) Write(ctx context.Context, updates []p4entity.Update, opts WriteOptions) error {
	wire, err := p4entity.EncodeUpdates(sw.Schema(), updates)
	if err != nil {
		return fmt.Errorf("switch %s: %w", sw.name, err)
	}
	req, err := sw.writeRequest(wire, opts.Atomicity)
	if err != nil {
		return err
	}

	err = sw.client.Write(ctx, req)
	switch {
	case err == nil:
		return nil
	case opts.IgnoreNotFound && p4client.IsNotFoundOnly(err):
		sw.log.Debugf("write: entries already absent")
		return nil
	case opts.WarnOnly:
		sw.log.Warnf("write failed: %v", err)
		return nil
	default:
		return fmt.Errorf("switch %s: %w", sw.name, err)
	}
}

// Insert writes the entities as INSERT updates.
func (sw *Switch) Insert(ctx context.Context, entities ...p4entity.Entity) error {
	return sw.Write(ctx, p4entity.Insert(entities...), WriteOptions{})
}

// Modify writes the entities as MODIFY updates.
func (sw *Switch) Modify(ctx context.Context, entities ...p4entity.Entity) error {
	return sw.Write(ctx, p4entity.Modify(entities...), WriteOptions{})
}

// Delete writes the entities as DELETE updates.
func (sw *Switch) Delete(ctx context.Context, entities ...p4entity.Entity) error {
	return sw.Write(ctx, p4entity.Delete(entities...), WriteOptions{})
}

// Read fetches and decodes every entity matching the given patterns.
// An empty TableEntry reads all tables.
func (sw *Switch) Read(ctx context.Context, entities ...p4entity.Entity) ([]p4entity.Entity, error) {
	schema := sw.Schema()
	wire, err := p4entity.EncodeEntities(schema, entities)
	if err != nil {
		return nil, fmt.Errorf("switch %s: %w", sw.name, err)
	}
	if sw.client == nil {
		return nil, util.ErrNotConnected
	}

	var out []p4entity.Entity
	err = sw.client.Read(ctx, &p4v1.ReadRequest{
		DeviceId: sw.options.DeviceID,
		Role:     sw.options.RoleName,
		Entities: wire,
	}, func(e *p4v1.Entity) error {
		decoded, err := p4entity.DecodeEntity(schema, e)
		if err != nil {
			return err
		}
		out = append(out, decoded)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("switch %s: %w", sw.name, err)
	}
	return out, nil
}

// Send transmits a stream message (packet-out, digest ack) through the
// single stream writer, preserving issue order.
func (sw *Switch) Send(ctx context.Context, msg p4entity.StreamMessage) error {
	req, err := msg.EncodeMessage(sw.Schema())
	if err != nil {
		return fmt.Errorf("switch %s: %w", sw.name, err)
	}
	return sw.sendStream(ctx, req)
}

// WriteBatch accepts a mixed sequence of tagged updates and stream
// messages. Stream messages are flushed through the stream writer as
// they are encountered, then the accumulated updates go out in a single
// WriteRequest. Items must be p4entity.Update or p4entity.StreamMessage;
// a bare p4entity.Entity is rejected because its operation is ambiguous.
func (sw *Switch) WriteBatch(ctx context.Context, items []any, opts WriteOptions) error {
	var updates []p4entity.Update
	for _, item := range items {
		switch v := item.(type) {
		case p4entity.Update:
			updates = append(updates, v)
		case p4entity.StreamMessage:
			if err := sw.Send(ctx, v); err != nil {
				return err
			}
		case p4entity.Entity:
			return fmt.Errorf("switch %s: %w", sw.name,
				util.NewSchemaError("write batch", fmt.Sprintf("%T", v),
					"untagged entity; wrap it with p4entity.Insert, Modify or Delete"))
		default:
			return fmt.Errorf("switch %s: %w", sw.name,
				util.NewSchemaError("write batch", fmt.Sprintf("%T", v), "unsupported item"))
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return sw.Write(ctx, updates, opts)
}

// DeleteAll removes every writable entity from the device: table
// entries (const tables skipped), action profile groups and members,
// multicast groups, clone sessions and digest configs, and resets
// modifiable default entries. Some targets retain state DeleteAll
// cannot reach; the device decides.
func (sw *Switch) DeleteAll(ctx context.Context) error {
	if sw.client == nil {
		return util.ErrNotConnected
	}
	schema := sw.Schema()

	// Raw wildcard reads: decode is unnecessary, each read entity is
	// deleted back as-is.
	wildcards := []*p4v1.Entity{
		{Entity: &p4v1.Entity_TableEntry{TableEntry: &p4v1.TableEntry{}}},
		{Entity: &p4v1.Entity_ActionProfileGroup{ActionProfileGroup: &p4v1.ActionProfileGroup{}}},
		{Entity: &p4v1.Entity_ActionProfileMember{ActionProfileMember: &p4v1.ActionProfileMember{}}},
		{Entity: &p4v1.Entity_PacketReplicationEngineEntry{
			PacketReplicationEngineEntry: &p4v1.PacketReplicationEngineEntry{
				Type: &p4v1.PacketReplicationEngineEntry_MulticastGroupEntry{
					MulticastGroupEntry: &p4v1.MulticastGroupEntry{},
				},
			},
		}},
		{Entity: &p4v1.Entity_PacketReplicationEngineEntry{
			PacketReplicationEngineEntry: &p4v1.PacketReplicationEngineEntry{
				Type: &p4v1.PacketReplicationEngineEntry_CloneSessionEntry{
					CloneSessionEntry: &p4v1.CloneSessionEntry{},
				},
			},
		}},
	}

	for _, wildcard := range wildcards {
		entities, err := sw.client.ReadAll(ctx, &p4v1.ReadRequest{
			DeviceId: sw.options.DeviceID,
			Role:     sw.options.RoleName,
			Entities: []*p4v1.Entity{wildcard},
		})
		if err != nil {
			// Wildcard reads of unsupported kinds are not fatal.
			sw.log.Debugf("delete all: read %T: %v", wildcard.GetEntity(), err)
			continue
		}

		var updates []*p4v1.Update
		for _, e := range entities {
			if skipOnDeleteAll(schema, e) {
				continue
			}
			updates = append(updates, &p4v1.Update{Type: p4v1.Update_DELETE, Entity: e})
		}
		if len(updates) == 0 {
			continue
		}
		req, err := sw.writeRequest(updates, p4v1.WriteRequest_CONTINUE_ON_ERROR)
		if err != nil {
			return err
		}
		if err := sw.client.Write(ctx, req); err != nil && !p4client.IsNotFoundOnly(err) {
			return fmt.Errorf("switch %s: delete all: %w", sw.name, err)
		}
	}

	// Modifiable default entries are reset to their P4-specified action
	// by a MODIFY with the action left unset.
	var resets []*p4v1.Update
	for _, table := range schema.Tables().All() {
		if table.IsConst || table.ConstDefaultAction != nil {
			continue
		}
		resets = append(resets, &p4v1.Update{
			Type: p4v1.Update_MODIFY,
			Entity: &p4v1.Entity{Entity: &p4v1.Entity_TableEntry{
				TableEntry: &p4v1.TableEntry{TableId: table.ID, IsDefaultAction: true},
			}},
		})
	}
	if len(resets) > 0 {
		req, err := sw.writeRequest(resets, p4v1.WriteRequest_CONTINUE_ON_ERROR)
		if err != nil {
			return err
		}
		if err := sw.client.Write(ctx, req); err != nil {
			sw.log.Warnf("delete all: default entry reset: %v", err)
		}
	}

	// Digest configs are deleted per declared digest.
	for _, dg := range schema.Digests().All() {
		err := sw.Write(ctx, p4entity.Delete(&p4entity.DigestEntry{Digest: dg.Name}),
			WriteOptions{IgnoreNotFound: true, WarnOnly: true})
		if err != nil {
			return err
		}
	}
	return nil
}

// skipOnDeleteAll filters entities that cannot or must not be deleted:
// const table entries and default actions.
func skipOnDeleteAll(schema *p4schema.P4Schema, e *p4v1.Entity) bool {
	entry := e.GetTableEntry()
	if entry == nil {
		return false
	}
	if entry.GetIsDefaultAction() || entry.GetIsConst() {
		return true
	}
	if table, ok := schema.Tables().GetByID(entry.GetTableId()); ok && table.IsConst {
		return true
	}
	return false
}
