package pbuf

import (
	"bytes"
	"strings"
	"testing"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/protobuf/proto"
)

func TestTextRoundTrip(t *testing.T) {
	in := &p4v1.Uint128{High: 2, Low: 0xab}
	out := &p4v1.Uint128{}
	if err := FromText([]byte(Text(in)), out); err != nil {
		t.Fatal(err)
	}
	if !proto.Equal(in, out) {
		t.Errorf("round trip = %v", out)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := &p4v1.MasterArbitrationUpdate{
		DeviceId:   1,
		ElectionId: &p4v1.Uint128{Low: 10},
	}
	data, err := JSON(in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("device_id")) {
		t.Errorf("JSON should use proto field names: %s", data)
	}
	out := &p4v1.MasterArbitrationUpdate{}
	if err := FromJSON(data, out); err != nil {
		t.Fatal(err)
	}
	if !proto.Equal(in, out) {
		t.Errorf("round trip = %v", out)
	}
}

func TestShort(t *testing.T) {
	msg := &p4v1.Uint128{High: 1, Low: 2}
	s := Short(msg)
	if strings.ContainsRune(s, '\n') {
		t.Errorf("Short output has newline: %q", s)
	}

	big := &p4v1.PacketOut{Payload: bytes.Repeat([]byte{0xff}, 200)}
	s = Short(big)
	if len(s) != MaxShort+len("...") || !strings.HasSuffix(s, "...") {
		t.Errorf("Short did not truncate: len=%d", len(s))
	}
}
