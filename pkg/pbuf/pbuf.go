// Package pbuf holds small protobuf helpers: stable text and JSON
// rendering, and a compact one-line form for log messages.
package pbuf

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

// Text renders a message in protobuf text format.
func Text(m proto.Message) string {
	return prototext.MarshalOptions{Multiline: true, Indent: "  "}.Format(m)
}

// FromText parses protobuf text format into m.
func FromText(data []byte, m proto.Message) error {
	return prototext.Unmarshal(data, m)
}

// JSON renders a message in protobuf JSON format.
func JSON(m proto.Message) ([]byte, error) {
	return protojson.MarshalOptions{UseProtoNames: true}.Marshal(m)
}

// FromJSON parses protobuf JSON into m.
func FromJSON(data []byte, m proto.Message) error {
	return protojson.Unmarshal(data, m)
}

// MaxShort caps the length of Short output.
const MaxShort = 256

// Short renders a message on a single line for logging, truncated to
// MaxShort characters.
func Short(m proto.Message) string {
	s := prototext.MarshalOptions{Multiline: false}.Format(m)
	if len(s) > MaxShort {
		s = s[:MaxShort] + "..."
	}
	return s
}
