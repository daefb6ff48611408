package p4entity

import (
	"encoding/binary"
	"fmt"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/pkg/p4schema"
	"github.com/finsy-network/finsy/pkg/util"
)

// StreamMessage is a value that encodes to an outbound stream message.
type StreamMessage interface {
	EncodeMessage(s *p4schema.P4Schema) (*p4v1.StreamMessageRequest, error)
}

// PacketOut is a packet injected through the stream channel, with metadata
// named per the "packet_out" controller header.
type PacketOut struct {
	Payload  []byte
	Metadata map[string]any
}

func (p *PacketOut) EncodeMessage(s *p4schema.P4Schema) (*p4v1.StreamMessageRequest, error) {
	packet := &p4v1.PacketOut{Payload: p.Payload}
	if len(p.Metadata) > 0 {
		cpm, err := s.PacketMetadata().Get("packet_out")
		if err != nil {
			return nil, err
		}
		md, err := cpm.EncodeMetadata(p.Metadata)
		if err != nil {
			return nil, err
		}
		packet.Metadata = md
	}
	return &p4v1.StreamMessageRequest{
		Update: &p4v1.StreamMessageRequest_Packet{Packet: packet},
	}, nil
}

// PacketIn is a packet punted to the controller.
type PacketIn struct {
	Payload  []byte
	Metadata map[string]any
}

// EtherType returns the Ethernet type from the payload, or 0 for runt
// packets.
func (p *PacketIn) EtherType() uint16 {
	if len(p.Payload) < 14 {
		return 0
	}
	return binary.BigEndian.Uint16(p.Payload[12:14])
}

// DecodePacketIn decodes a punted packet; metadata ids the schema does not
// know are skipped.
func DecodePacketIn(s *p4schema.P4Schema, pb *p4v1.PacketIn) (*PacketIn, error) {
	p := &PacketIn{Payload: pb.GetPayload()}
	if len(pb.GetMetadata()) > 0 {
		cpm, err := s.PacketMetadata().Get("packet_in")
		if err != nil {
			// No packet_in header declared; keep the payload only.
			return p, nil
		}
		md, err := cpm.DecodeMetadata(pb.GetMetadata())
		if err != nil {
			return nil, err
		}
		p.Metadata = md
	}
	return p, nil
}

// DigestList is a batch of digest messages for one digest declaration.
type DigestList struct {
	Digest    string
	ListID    uint64
	Timestamp int64
	Data      []any
}

// DecodeDigestList decodes a digest batch, including each entry per the
// digest's declared type.
func DecodeDigestList(s *p4schema.P4Schema, pb *p4v1.DigestList) (*DigestList, error) {
	digest, ok := s.Digests().GetByID(pb.GetDigestId())
	if !ok {
		return nil, util.NewLookupError("digest", fmt.Sprintf("%#x", pb.GetDigestId()))
	}
	d := &DigestList{
		Digest:    digest.Name,
		ListID:    pb.GetListId(),
		Timestamp: pb.GetTimestamp(),
	}
	for _, item := range pb.GetData() {
		v, err := digest.Type.Decode(item)
		if err != nil {
			return nil, err
		}
		d.Data = append(d.Data, v)
	}
	return d, nil
}

// Ack builds the acknowledgement for this digest list.
func (d *DigestList) Ack() *DigestListAck {
	return &DigestListAck{Digest: d.Digest, ListID: d.ListID}
}

// DigestListAck acknowledges a received digest list.
type DigestListAck struct {
	Digest string
	ListID uint64
}

func (a *DigestListAck) EncodeMessage(s *p4schema.P4Schema) (*p4v1.StreamMessageRequest, error) {
	digest, err := s.Digests().Get(a.Digest)
	if err != nil {
		return nil, err
	}
	return &p4v1.StreamMessageRequest{
		Update: &p4v1.StreamMessageRequest_DigestAck{
			DigestAck: &p4v1.DigestListAck{DigestId: digest.ID, ListId: a.ListID},
		},
	}, nil
}

// IdleTimeoutNotification reports table entries that have idled out.
type IdleTimeoutNotification struct {
	Timestamp int64
	Entries   []*TableEntry
}

// DecodeIdleTimeout decodes an idle timeout notification.
func DecodeIdleTimeout(s *p4schema.P4Schema, pb *p4v1.IdleTimeoutNotification) (*IdleTimeoutNotification, error) {
	n := &IdleTimeoutNotification{Timestamp: pb.GetTimestamp()}
	for _, wire := range pb.GetTableEntry() {
		entry, err := DecodeTableEntry(s, wire)
		if err != nil {
			return nil, err
		}
		n.Entries = append(n.Entries, entry)
	}
	return n, nil
}
