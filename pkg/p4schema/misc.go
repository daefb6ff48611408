package p4schema

import (
	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/finsy-network/finsy/pkg/p4values"
	"github.com/finsy-network/finsy/pkg/util"
)

// P4Counter is an indexed counter array.
type P4Counter struct {
	ID          uint32
	Name        string
	Alias       string
	Annotations P4Annotations
	Size        int64
	Unit        p4config.CounterSpec_Unit
}

// P4DirectCounter is a counter attached directly to a table.
type P4DirectCounter struct {
	ID          uint32
	Name        string
	Alias       string
	Annotations P4Annotations
	Unit        p4config.CounterSpec_Unit
	TableID     uint32
}

// P4Meter is an indexed meter array.
type P4Meter struct {
	ID          uint32
	Name        string
	Alias       string
	Annotations P4Annotations
	Size        int64
	Unit        p4config.MeterSpec_Unit
}

// P4DirectMeter is a meter attached directly to a table.
type P4DirectMeter struct {
	ID          uint32
	Name        string
	Alias       string
	Annotations P4Annotations
	Unit        p4config.MeterSpec_Unit
	TableID     uint32
}

// P4Register is an indexed register array.
type P4Register struct {
	ID          uint32
	Name        string
	Alias       string
	Annotations P4Annotations
	Size        int64
	Type        P4Type
}

// P4Digest is a digest declaration. Type describes the digest payload.
type P4Digest struct {
	ID          uint32
	Name        string
	Annotations P4Annotations
	Type        P4Type
}

// P4ValueSet is a parser value set.
type P4ValueSet struct {
	ID          uint32
	Name        string
	Alias       string
	Annotations P4Annotations
	Size        int32
	Match       *EntityMap[*P4MatchField]
}

// P4PacketMetadataField is one metadata field of a controller packet
// header.
type P4PacketMetadataField struct {
	ID       uint32
	Name     string
	Bitwidth int
	Format   p4values.DecodeFormat
}

// P4ControllerPacketMetadata describes the metadata header of PacketIn or
// PacketOut messages.
type P4ControllerPacketMetadata struct {
	ID          uint32
	Name        string
	Alias       string // "packet_in" or "packet_out" by convention
	Annotations P4Annotations
	Metadata    *EntityMap[*P4PacketMetadataField]
}

func newControllerPacketMetadata(pb *p4config.ControllerPacketMetadata, ti *P4TypeInfo) (*P4ControllerPacketMetadata, error) {
	pre := pb.GetPreamble()
	cpm := &P4ControllerPacketMetadata{
		ID:          pre.GetId(),
		Name:        pre.GetName(),
		Alias:       aliasOf(pre),
		Annotations: annotationsOf(pre),
		Metadata:    newEntityMap[*P4PacketMetadataField]("packet metadata"),
	}
	for _, md := range pb.GetMetadata() {
		typeName := md.GetTypeName().GetName()
		f := &P4PacketMetadataField{
			ID:       md.GetId(),
			Name:     md.GetName(),
			Bitwidth: ti.fieldWidth(typeName, int(md.GetBitwidth())),
			Format:   formatFromAnnotations(md.GetAnnotations()),
		}
		if err := cpm.Metadata.insert(f, f.ID, false, f.Name); err != nil {
			return nil, err
		}
	}
	return cpm, nil
}

// EncodeMetadata converts a name-keyed metadata map to wire form.
// Every declared field must be present.
func (c *P4ControllerPacketMetadata) EncodeMetadata(metadata map[string]any) ([]*p4v1.PacketMetadata, error) {
	if len(metadata) != c.Metadata.Len() {
		return nil, util.NewSchemaError("packet metadata", c.Alias, "wrong number of metadata fields")
	}
	out := make([]*p4v1.PacketMetadata, 0, len(metadata))
	for _, f := range c.Metadata.All() {
		v, ok := metadata[f.Name]
		if !ok {
			return nil, util.NewSchemaError("packet metadata", f.Name, "missing for "+c.Alias)
		}
		data, err := p4values.EncodeExact(v, f.Bitwidth)
		if err != nil {
			return nil, err
		}
		out = append(out, &p4v1.PacketMetadata{MetadataId: f.ID, Value: data})
	}
	return out, nil
}

// DecodeMetadata converts wire metadata to a name-keyed map. Unknown
// metadata ids are skipped.
func (c *P4ControllerPacketMetadata) DecodeMetadata(metadata []*p4v1.PacketMetadata) (map[string]any, error) {
	out := make(map[string]any, len(metadata))
	for _, md := range metadata {
		f, ok := c.Metadata.GetByID(md.GetMetadataId())
		if !ok {
			continue
		}
		v, err := p4values.DecodeExact(md.GetValue(), f.Bitwidth, f.Format)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

// P4ExternInstance is an instance of a vendor extern.
type P4ExternInstance struct {
	ExternTypeID   uint32
	ExternTypeName string
	ID             uint32
	Name           string
	Annotations    P4Annotations
	Info           *anypb.Any
}
