package p4entity

import (
	"fmt"
	"time"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/finsy-network/finsy/pkg/p4schema"
	"github.com/finsy-network/finsy/pkg/p4values"
	"github.com/finsy-network/finsy/pkg/util"
)

// ActionProfileMember is one member of an action profile.
type ActionProfileMember struct {
	Profile  string
	MemberID uint32
	Action   *Action
}

func (e *ActionProfileMember) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	profile, err := s.ActionProfiles().Get(e.Profile)
	if err != nil {
		return nil, err
	}
	member := &p4v1.ActionProfileMember{
		ActionProfileId: profile.ID,
		MemberId:        e.MemberID,
	}
	if e.Action != nil {
		action, err := s.Actions().Get(e.Action.Name)
		if err != nil {
			return nil, err
		}
		wire, err := action.Encode(e.Action.Params)
		if err != nil {
			return nil, err
		}
		member.Action = wire
	}
	return &p4v1.Entity{Entity: &p4v1.Entity_ActionProfileMember{ActionProfileMember: member}}, nil
}

func decodeActionProfileMember(s *p4schema.P4Schema, pb *p4v1.ActionProfileMember) (*ActionProfileMember, error) {
	profile, ok := s.ActionProfiles().GetByID(pb.GetActionProfileId())
	if !ok {
		return nil, util.NewLookupError("action profile", fmt.Sprintf("%#x", pb.GetActionProfileId()))
	}
	e := &ActionProfileMember{Profile: profile.Alias, MemberID: pb.GetMemberId()}
	if pb.GetAction() != nil {
		action, err := decodeAction(s, pb.GetAction())
		if err != nil {
			return nil, err
		}
		e.Action = action
	}
	return e, nil
}

// GroupMember references a member from a group, with weight and optional
// watch port.
type GroupMember struct {
	MemberID  uint32
	Weight    int32
	WatchPort any
}

// ActionProfileGroup is a group of weighted members in a selector profile.
type ActionProfileGroup struct {
	Profile string
	GroupID uint32
	MaxSize int32
	Members []GroupMember
}

func (e *ActionProfileGroup) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	profile, err := s.ActionProfiles().Get(e.Profile)
	if err != nil {
		return nil, err
	}
	group := &p4v1.ActionProfileGroup{
		ActionProfileId: profile.ID,
		GroupId:         e.GroupID,
		MaxSize:         e.MaxSize,
	}
	for _, m := range e.Members {
		member := &p4v1.ActionProfileGroup_Member{
			MemberId: m.MemberID,
			Weight:   m.Weight,
		}
		if m.WatchPort != nil {
			port, err := p4values.EncodeExact(m.WatchPort, 32)
			if err != nil {
				return nil, err
			}
			member.WatchKind = &p4v1.ActionProfileGroup_Member_WatchPort{WatchPort: port}
		}
		group.Members = append(group.Members, member)
	}
	return &p4v1.Entity{Entity: &p4v1.Entity_ActionProfileGroup{ActionProfileGroup: group}}, nil
}

func decodeActionProfileGroup(s *p4schema.P4Schema, pb *p4v1.ActionProfileGroup) (*ActionProfileGroup, error) {
	profile, ok := s.ActionProfiles().GetByID(pb.GetActionProfileId())
	if !ok {
		return nil, util.NewLookupError("action profile", fmt.Sprintf("%#x", pb.GetActionProfileId()))
	}
	e := &ActionProfileGroup{
		Profile: profile.Alias,
		GroupID: pb.GetGroupId(),
		MaxSize: pb.GetMaxSize(),
	}
	for _, m := range pb.GetMembers() {
		member := GroupMember{MemberID: m.GetMemberId(), Weight: m.GetWeight()}
		if port := m.GetWatchPort(); len(port) > 0 {
			v, err := p4values.DecodeExact(port, 32, p4values.Default)
			if err != nil {
				return nil, err
			}
			member.WatchPort = v
		}
		e.Members = append(e.Members, member)
	}
	return e, nil
}

// Replica is a multicast or clone replica. Port accepts any value the
// 32-bit port codec accepts; a bare integer Instance defaults to 0.
type Replica struct {
	Port     any
	Instance uint32
}

func encodeReplicas(replicas []Replica) ([]*p4v1.Replica, error) {
	out := make([]*p4v1.Replica, len(replicas))
	for i, r := range replicas {
		port, err := p4values.EncodeExact(r.Port, 32)
		if err != nil {
			return nil, err
		}
		out[i] = &p4v1.Replica{
			PortKind: &p4v1.Replica_Port{Port: port},
			Instance: r.Instance,
		}
	}
	return out, nil
}

func decodeReplicas(replicas []*p4v1.Replica) ([]Replica, error) {
	out := make([]Replica, len(replicas))
	for i, r := range replicas {
		var port any
		switch pk := r.GetPortKind().(type) {
		case *p4v1.Replica_Port:
			v, err := p4values.DecodeExact(pk.Port, 32, p4values.Default)
			if err != nil {
				return nil, err
			}
			port = v
		case *p4v1.Replica_EgressPort:
			port = uint64(pk.EgressPort)
		}
		out[i] = Replica{Port: port, Instance: r.GetInstance()}
	}
	return out, nil
}

// MulticastGroupEntry replicates packets to a set of ports.
type MulticastGroupEntry struct {
	GroupID  uint32
	Replicas []Replica
}

func (e *MulticastGroupEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	replicas, err := encodeReplicas(e.Replicas)
	if err != nil {
		return nil, err
	}
	return &p4v1.Entity{
		Entity: &p4v1.Entity_PacketReplicationEngineEntry{
			PacketReplicationEngineEntry: &p4v1.PacketReplicationEngineEntry{
				Type: &p4v1.PacketReplicationEngineEntry_MulticastGroupEntry{
					MulticastGroupEntry: &p4v1.MulticastGroupEntry{
						MulticastGroupId: e.GroupID,
						Replicas:         replicas,
					},
				},
			},
		},
	}, nil
}

func decodeMulticastGroupEntry(pb *p4v1.MulticastGroupEntry) (*MulticastGroupEntry, error) {
	replicas, err := decodeReplicas(pb.GetReplicas())
	if err != nil {
		return nil, err
	}
	return &MulticastGroupEntry{GroupID: pb.GetMulticastGroupId(), Replicas: replicas}, nil
}

// CloneSessionEntry mirrors packets to a clone session.
type CloneSessionEntry struct {
	SessionID         uint32
	ClassOfService    uint32
	PacketLengthBytes int32
	Replicas          []Replica
}

func (e *CloneSessionEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	replicas, err := encodeReplicas(e.Replicas)
	if err != nil {
		return nil, err
	}
	return &p4v1.Entity{
		Entity: &p4v1.Entity_PacketReplicationEngineEntry{
			PacketReplicationEngineEntry: &p4v1.PacketReplicationEngineEntry{
				Type: &p4v1.PacketReplicationEngineEntry_CloneSessionEntry{
					CloneSessionEntry: &p4v1.CloneSessionEntry{
						SessionId:         e.SessionID,
						ClassOfService:    e.ClassOfService,
						PacketLengthBytes: e.PacketLengthBytes,
						Replicas:          replicas,
					},
				},
			},
		},
	}, nil
}

func decodeCloneSessionEntry(pb *p4v1.CloneSessionEntry) (*CloneSessionEntry, error) {
	replicas, err := decodeReplicas(pb.GetReplicas())
	if err != nil {
		return nil, err
	}
	return &CloneSessionEntry{
		SessionID:         pb.GetSessionId(),
		ClassOfService:    pb.GetClassOfService(),
		PacketLengthBytes: pb.GetPacketLengthBytes(),
		Replicas:          replicas,
	}, nil
}

// DigestEntry configures digest generation for a digest declaration.
type DigestEntry struct {
	Digest      string
	MaxListSize int32
	MaxTimeout  time.Duration
	AckTimeout  time.Duration
}

func (e *DigestEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	digest, err := s.Digests().Get(e.Digest)
	if err != nil {
		return nil, err
	}
	entry := &p4v1.DigestEntry{DigestId: digest.ID}
	if e.MaxListSize != 0 || e.MaxTimeout != 0 || e.AckTimeout != 0 {
		entry.Config = &p4v1.DigestEntry_Config{
			MaxListSize:  e.MaxListSize,
			MaxTimeoutNs: e.MaxTimeout.Nanoseconds(),
			AckTimeoutNs: e.AckTimeout.Nanoseconds(),
		}
	}
	return &p4v1.Entity{Entity: &p4v1.Entity_DigestEntry{DigestEntry: entry}}, nil
}

func decodeDigestEntry(s *p4schema.P4Schema, pb *p4v1.DigestEntry) (*DigestEntry, error) {
	digest, ok := s.Digests().GetByID(pb.GetDigestId())
	if !ok {
		return nil, util.NewLookupError("digest", fmt.Sprintf("%#x", pb.GetDigestId()))
	}
	return &DigestEntry{
		Digest:      digest.Name,
		MaxListSize: pb.GetConfig().GetMaxListSize(),
		MaxTimeout:  time.Duration(pb.GetConfig().GetMaxTimeoutNs()),
		AckTimeout:  time.Duration(pb.GetConfig().GetAckTimeoutNs()),
	}, nil
}

// RegisterEntry reads or modifies one register cell, or the whole array
// when Index is nil.
type RegisterEntry struct {
	Register string
	Index    *int64
	Data     any
}

func (e *RegisterEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	register, err := s.Registers().Get(e.Register)
	if err != nil {
		return nil, err
	}
	entry := &p4v1.RegisterEntry{RegisterId: register.ID}
	if e.Index != nil {
		entry.Index = &p4v1.Index{Index: *e.Index}
	}
	if e.Data != nil {
		data, err := register.Type.Encode(e.Data)
		if err != nil {
			return nil, err
		}
		entry.Data = data
	}
	return &p4v1.Entity{Entity: &p4v1.Entity_RegisterEntry{RegisterEntry: entry}}, nil
}

func decodeRegisterEntry(s *p4schema.P4Schema, pb *p4v1.RegisterEntry) (*RegisterEntry, error) {
	register, ok := s.Registers().GetByID(pb.GetRegisterId())
	if !ok {
		return nil, util.NewLookupError("register", fmt.Sprintf("%#x", pb.GetRegisterId()))
	}
	e := &RegisterEntry{Register: register.Alias}
	if pb.GetIndex() != nil {
		idx := pb.GetIndex().GetIndex()
		e.Index = &idx
	}
	if pb.GetData() != nil {
		v, err := register.Type.Decode(pb.GetData())
		if err != nil {
			return nil, err
		}
		e.Data = v
	}
	return e, nil
}

// CounterEntry reads or modifies an indexed counter.
type CounterEntry struct {
	Counter string
	Index   *int64
	Data    *p4v1.CounterData
}

func (e *CounterEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	counter, err := s.Counters().Get(e.Counter)
	if err != nil {
		return nil, err
	}
	entry := &p4v1.CounterEntry{CounterId: counter.ID, Data: e.Data}
	if e.Index != nil {
		entry.Index = &p4v1.Index{Index: *e.Index}
	}
	return &p4v1.Entity{Entity: &p4v1.Entity_CounterEntry{CounterEntry: entry}}, nil
}

func decodeCounterEntry(s *p4schema.P4Schema, pb *p4v1.CounterEntry) (*CounterEntry, error) {
	counter, ok := s.Counters().GetByID(pb.GetCounterId())
	if !ok {
		return nil, util.NewLookupError("counter", fmt.Sprintf("%#x", pb.GetCounterId()))
	}
	e := &CounterEntry{Counter: counter.Alias, Data: pb.GetData()}
	if pb.GetIndex() != nil {
		idx := pb.GetIndex().GetIndex()
		e.Index = &idx
	}
	return e, nil
}

// DirectCounterEntry reads or modifies the counter attached to a table
// entry.
type DirectCounterEntry struct {
	TableEntry *TableEntry
	Data       *p4v1.CounterData
}

func (e *DirectCounterEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	var entry *p4v1.TableEntry
	if e.TableEntry != nil {
		wire, err := e.TableEntry.EncodeEntry(s)
		if err != nil {
			return nil, err
		}
		entry = wire
	}
	return &p4v1.Entity{
		Entity: &p4v1.Entity_DirectCounterEntry{
			DirectCounterEntry: &p4v1.DirectCounterEntry{TableEntry: entry, Data: e.Data},
		},
	}, nil
}

func decodeDirectCounterEntry(s *p4schema.P4Schema, pb *p4v1.DirectCounterEntry) (*DirectCounterEntry, error) {
	e := &DirectCounterEntry{Data: pb.GetData()}
	if pb.GetTableEntry() != nil {
		entry, err := DecodeTableEntry(s, pb.GetTableEntry())
		if err != nil {
			return nil, err
		}
		e.TableEntry = entry
	}
	return e, nil
}

// MeterEntry reads or modifies an indexed meter.
type MeterEntry struct {
	Meter       string
	Index       *int64
	Config      *p4v1.MeterConfig
	CounterData *p4v1.MeterCounterData
}

func (e *MeterEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	meter, err := s.Meters().Get(e.Meter)
	if err != nil {
		return nil, err
	}
	entry := &p4v1.MeterEntry{MeterId: meter.ID, Config: e.Config, CounterData: e.CounterData}
	if e.Index != nil {
		entry.Index = &p4v1.Index{Index: *e.Index}
	}
	return &p4v1.Entity{Entity: &p4v1.Entity_MeterEntry{MeterEntry: entry}}, nil
}

func decodeMeterEntry(s *p4schema.P4Schema, pb *p4v1.MeterEntry) (*MeterEntry, error) {
	meter, ok := s.Meters().GetByID(pb.GetMeterId())
	if !ok {
		return nil, util.NewLookupError("meter", fmt.Sprintf("%#x", pb.GetMeterId()))
	}
	e := &MeterEntry{Meter: meter.Alias, Config: pb.GetConfig(), CounterData: pb.GetCounterData()}
	if pb.GetIndex() != nil {
		idx := pb.GetIndex().GetIndex()
		e.Index = &idx
	}
	return e, nil
}

// DirectMeterEntry reads or modifies the meter attached to a table entry.
type DirectMeterEntry struct {
	TableEntry  *TableEntry
	Config      *p4v1.MeterConfig
	CounterData *p4v1.MeterCounterData
}

func (e *DirectMeterEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	var entry *p4v1.TableEntry
	if e.TableEntry != nil {
		wire, err := e.TableEntry.EncodeEntry(s)
		if err != nil {
			return nil, err
		}
		entry = wire
	}
	return &p4v1.Entity{
		Entity: &p4v1.Entity_DirectMeterEntry{
			DirectMeterEntry: &p4v1.DirectMeterEntry{
				TableEntry:  entry,
				Config:      e.Config,
				CounterData: e.CounterData,
			},
		},
	}, nil
}

func decodeDirectMeterEntry(s *p4schema.P4Schema, pb *p4v1.DirectMeterEntry) (*DirectMeterEntry, error) {
	e := &DirectMeterEntry{Config: pb.GetConfig(), CounterData: pb.GetCounterData()}
	if pb.GetTableEntry() != nil {
		entry, err := DecodeTableEntry(s, pb.GetTableEntry())
		if err != nil {
			return nil, err
		}
		e.TableEntry = entry
	}
	return e, nil
}

// ValueSetEntry replaces the members of a parser value set. Each member
// maps the value set's field names to match values.
type ValueSetEntry struct {
	ValueSet string
	Members  []Match
}

func (e *ValueSetEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	vs, err := s.ValueSets().Get(e.ValueSet)
	if err != nil {
		return nil, err
	}
	entry := &p4v1.ValueSetEntry{ValueSetId: vs.ID}
	for _, member := range e.Members {
		wire := &p4v1.ValueSetMember{}
		for name, value := range member {
			field, err := vs.Match.Get(name)
			if err != nil {
				return nil, err
			}
			fm, err := field.EncodeField(value)
			if err != nil {
				return nil, err
			}
			if fm != nil {
				wire.Match = append(wire.Match, fm)
			}
		}
		entry.Members = append(entry.Members, wire)
	}
	return &p4v1.Entity{Entity: &p4v1.Entity_ValueSetEntry{ValueSetEntry: entry}}, nil
}

func decodeValueSetEntry(s *p4schema.P4Schema, pb *p4v1.ValueSetEntry) (*ValueSetEntry, error) {
	vs, ok := s.ValueSets().GetByID(pb.GetValueSetId())
	if !ok {
		return nil, util.NewLookupError("value set", fmt.Sprintf("%#x", pb.GetValueSetId()))
	}
	e := &ValueSetEntry{ValueSet: vs.Alias}
	for _, member := range pb.GetMembers() {
		match := make(Match)
		for _, fm := range member.GetMatch() {
			field, ok := vs.Match.GetByID(fm.GetFieldId())
			if !ok {
				return nil, util.NewLookupError("match_field", fmt.Sprintf("%d", fm.GetFieldId()))
			}
			v, err := field.DecodeField(fm)
			if err != nil {
				return nil, err
			}
			match[field.Alias] = v
		}
		e.Members = append(e.Members, match)
	}
	return e, nil
}

// ExternEntry wraps a vendor extern entity.
type ExternEntry struct {
	ExternTypeID uint32
	ExternID     uint32
	Entry        *anypb.Any
}

func (e *ExternEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	return &p4v1.Entity{
		Entity: &p4v1.Entity_ExternEntry{
			ExternEntry: &p4v1.ExternEntry{
				ExternTypeId: e.ExternTypeID,
				ExternId:     e.ExternID,
				Entry:        e.Entry,
			},
		},
	}, nil
}

func decodeExternEntry(pb *p4v1.ExternEntry) (*ExternEntry, error) {
	return &ExternEntry{
		ExternTypeID: pb.GetExternTypeId(),
		ExternID:     pb.GetExternId(),
		Entry:        pb.GetEntry(),
	}, nil
}
