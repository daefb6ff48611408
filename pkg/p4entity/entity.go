// Package p4entity converts between user-level entity values and the
// P4Runtime wire messages they correspond to. Encoding requires a schema:
// entities refer to tables, actions and fields by name, and the schema
// supplies ids, bitwidths and decode formats.
package p4entity

import (
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/pkg/p4schema"
	"github.com/finsy-network/finsy/pkg/util"
)

// Entity is a value that encodes to a p4.v1.Entity.
type Entity interface {
	Encode(s *p4schema.P4Schema) (*p4v1.Entity, error)
}

// Update pairs an entity with a write operation.
type Update struct {
	Type   p4v1.Update_Type
	Entity Entity
}

// Encode builds the wire update.
func (u Update) Encode(s *p4schema.P4Schema) (*p4v1.Update, error) {
	if u.Type == p4v1.Update_UNSPECIFIED {
		return nil, util.NewSchemaError("update", "", "update type not specified")
	}
	entity, err := u.Entity.Encode(s)
	if err != nil {
		return nil, err
	}
	return &p4v1.Update{Type: u.Type, Entity: entity}, nil
}

// Insert tags entities for insertion.
func Insert(entities ...Entity) []Update {
	return tag(p4v1.Update_INSERT, entities)
}

// Modify tags entities for modification.
func Modify(entities ...Entity) []Update {
	return tag(p4v1.Update_MODIFY, entities)
}

// Delete tags entities for deletion.
func Delete(entities ...Entity) []Update {
	return tag(p4v1.Update_DELETE, entities)
}

func tag(t p4v1.Update_Type, entities []Entity) []Update {
	updates := make([]Update, len(entities))
	for i, e := range entities {
		updates[i] = Update{Type: t, Entity: e}
	}
	return updates
}

// EncodeUpdates encodes a batch of updates for one WriteRequest.
func EncodeUpdates(s *p4schema.P4Schema, updates []Update) ([]*p4v1.Update, error) {
	out := make([]*p4v1.Update, len(updates))
	for i, u := range updates {
		wire, err := u.Encode(s)
		if err != nil {
			return nil, err
		}
		out[i] = wire
	}
	return out, nil
}

// EncodeEntities encodes a batch of entities for one ReadRequest.
func EncodeEntities(s *p4schema.P4Schema, entities []Entity) ([]*p4v1.Entity, error) {
	out := make([]*p4v1.Entity, len(entities))
	for i, e := range entities {
		wire, err := e.Encode(s)
		if err != nil {
			return nil, err
		}
		out[i] = wire
	}
	return out, nil
}

// DecodeEntity converts a wire entity to its typed counterpart.
func DecodeEntity(s *p4schema.P4Schema, entity *p4v1.Entity) (Entity, error) {
	switch e := entity.GetEntity().(type) {
	case *p4v1.Entity_TableEntry:
		return DecodeTableEntry(s, e.TableEntry)
	case *p4v1.Entity_ActionProfileMember:
		return decodeActionProfileMember(s, e.ActionProfileMember)
	case *p4v1.Entity_ActionProfileGroup:
		return decodeActionProfileGroup(s, e.ActionProfileGroup)
	case *p4v1.Entity_PacketReplicationEngineEntry:
		switch pre := e.PacketReplicationEngineEntry.GetType().(type) {
		case *p4v1.PacketReplicationEngineEntry_MulticastGroupEntry:
			return decodeMulticastGroupEntry(pre.MulticastGroupEntry)
		case *p4v1.PacketReplicationEngineEntry_CloneSessionEntry:
			return decodeCloneSessionEntry(pre.CloneSessionEntry)
		default:
			return nil, util.NewSchemaError("entity", "packet_replication", "unknown replication entry")
		}
	case *p4v1.Entity_DigestEntry:
		return decodeDigestEntry(s, e.DigestEntry)
	case *p4v1.Entity_RegisterEntry:
		return decodeRegisterEntry(s, e.RegisterEntry)
	case *p4v1.Entity_CounterEntry:
		return decodeCounterEntry(s, e.CounterEntry)
	case *p4v1.Entity_DirectCounterEntry:
		return decodeDirectCounterEntry(s, e.DirectCounterEntry)
	case *p4v1.Entity_MeterEntry:
		return decodeMeterEntry(s, e.MeterEntry)
	case *p4v1.Entity_DirectMeterEntry:
		return decodeDirectMeterEntry(s, e.DirectMeterEntry)
	case *p4v1.Entity_ValueSetEntry:
		return decodeValueSetEntry(s, e.ValueSetEntry)
	case *p4v1.Entity_ExternEntry:
		return decodeExternEntry(e.ExternEntry)
	default:
		return nil, util.NewSchemaError("entity", "", "unsupported entity type")
	}
}
