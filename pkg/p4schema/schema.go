package p4schema

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/protobuf/proto"

	"github.com/finsy-network/finsy/pkg/pbuf"
	"github.com/finsy-network/finsy/pkg/util"
)

// P4Runtime id prefixes (id >> 24) per resource kind.
const (
	prefixAction           = 0x01
	prefixTable            = 0x02
	prefixValueSet         = 0x03
	prefixControllerHeader = 0x04
	prefixActionProfile    = 0x11
	prefixCounter          = 0x12
	prefixDirectCounter    = 0x13
	prefixMeter            = 0x14
	prefixDirectMeter      = 0x15
	prefixRegister         = 0x16
	prefixDigest           = 0x17
)

// P4Schema is an indexed view of a P4Info document plus the compiled
// device config blob. A schema with no P4Info ("empty" schema) is valid:
// it belongs to a switch that does not manage its own pipeline.
type P4Schema struct {
	pb     *p4config.P4Info
	blob   []byte
	cookie uint64

	typeInfo       *P4TypeInfo
	tables         *EntityMap[*P4Table]
	actions        *EntityMap[*P4Action]
	actionProfiles *EntityMap[*P4ActionProfile]
	counters       *EntityMap[*P4Counter]
	directCounters *EntityMap[*P4DirectCounter]
	meters         *EntityMap[*P4Meter]
	directMeters   *EntityMap[*P4DirectMeter]
	registers      *EntityMap[*P4Register]
	digests        *EntityMap[*P4Digest]
	valueSets      *EntityMap[*P4ValueSet]
	packetMetadata *EntityMap[*P4ControllerPacketMetadata]
	externs        []*P4ExternInstance
}

// New builds a schema from an in-memory P4Info and optional device config
// blob. p4info may be nil for an empty schema.
func New(p4info *p4config.P4Info, p4blob []byte) (*P4Schema, error) {
	s := &P4Schema{pb: p4info, blob: p4blob}
	if err := s.index(); err != nil {
		return nil, err
	}
	if p4info != nil {
		cookie, err := computeCookie(p4info, p4blob)
		if err != nil {
			return nil, err
		}
		s.cookie = cookie
	}
	return s, nil
}

// Load reads a P4Info file (prototext, JSON or binary, by extension) and
// an optional device config blob.
func Load(p4infoPath, p4blobPath string) (*P4Schema, error) {
	p4info, err := LoadP4Info(p4infoPath)
	if err != nil {
		return nil, err
	}
	var blob []byte
	if p4blobPath != "" {
		blob, err = os.ReadFile(p4blobPath)
		if err != nil {
			return nil, err
		}
	}
	return New(p4info, blob)
}

// LoadP4Info parses a P4Info file. Files ending in .bin or .pb are read as
// binary protobuf, .json as protobuf JSON, everything else as prototext
// with a binary fallback.
func LoadP4Info(path string) (*p4config.P4Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p4info := &p4config.P4Info{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin", ".pb":
		err = proto.Unmarshal(data, p4info)
	case ".json":
		err = pbuf.FromJSON(data, p4info)
	default:
		err = pbuf.FromText(data, p4info)
		if err != nil {
			if binErr := proto.Unmarshal(data, p4info); binErr == nil {
				err = nil
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("p4info %s: %w", path, err)
	}
	return p4info, nil
}

func computeCookie(p4info *p4config.P4Info, blob []byte) (uint64, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(p4info)
	if err != nil {
		return 0, err
	}
	h := sha256.New()
	h.Write(data)
	h.Write(blob)
	return binary.BigEndian.Uint64(h.Sum(nil)[:8]), nil
}

func aliasOf(pre *p4config.Preamble) string {
	if a := pre.GetAlias(); a != "" {
		return a
	}
	return lastComponent(pre.GetName())
}

func checkIDPrefix(id uint32, prefix uint32, kind, name string) error {
	if id>>24 != prefix {
		return util.NewSchemaError(kind, name, fmt.Sprintf("id %#x has wrong resource prefix", id))
	}
	return nil
}

func (s *P4Schema) index() error {
	var err error
	s.typeInfo, err = newTypeInfo(s.pb.GetTypeInfo())
	if err != nil {
		return err
	}

	s.actions = newEntityMap[*P4Action]("action")
	s.tables = newEntityMap[*P4Table]("table")
	s.actionProfiles = newEntityMap[*P4ActionProfile]("action profile")
	s.counters = newEntityMap[*P4Counter]("counter")
	s.directCounters = newEntityMap[*P4DirectCounter]("direct counter")
	s.meters = newEntityMap[*P4Meter]("meter")
	s.directMeters = newEntityMap[*P4DirectMeter]("direct meter")
	s.registers = newEntityMap[*P4Register]("register")
	s.digests = newEntityMap[*P4Digest]("digest")
	s.valueSets = newEntityMap[*P4ValueSet]("value set")
	s.packetMetadata = newEntityMap[*P4ControllerPacketMetadata]("controller packet metadata")
	if s.pb == nil {
		return nil
	}

	for _, pb := range s.pb.GetActions() {
		a, err := newAction(pb, s.typeInfo)
		if err != nil {
			return err
		}
		if err := checkIDPrefix(a.ID, prefixAction, "action", a.Name); err != nil {
			return err
		}
		if err := s.actions.insert(a, a.ID, false, a.Name, a.Alias); err != nil {
			return err
		}
	}
	for _, pb := range s.pb.GetActionProfiles() {
		p := newActionProfile(pb)
		if err := checkIDPrefix(p.ID, prefixActionProfile, "action profile", p.Name); err != nil {
			return err
		}
		if err := s.actionProfiles.insert(p, p.ID, false, p.Name, p.Alias); err != nil {
			return err
		}
	}
	for _, pb := range s.pb.GetCounters() {
		pre := pb.GetPreamble()
		c := &P4Counter{
			ID:          pre.GetId(),
			Name:        pre.GetName(),
			Alias:       aliasOf(pre),
			Annotations: annotationsOf(pre),
			Size:        pb.GetSize(),
			Unit:        pb.GetSpec().GetUnit(),
		}
		if err := checkIDPrefix(c.ID, prefixCounter, "counter", c.Name); err != nil {
			return err
		}
		if err := s.counters.insert(c, c.ID, false, c.Name, c.Alias); err != nil {
			return err
		}
	}
	for _, pb := range s.pb.GetDirectCounters() {
		pre := pb.GetPreamble()
		c := &P4DirectCounter{
			ID:          pre.GetId(),
			Name:        pre.GetName(),
			Alias:       aliasOf(pre),
			Annotations: annotationsOf(pre),
			Unit:        pb.GetSpec().GetUnit(),
			TableID:     pb.GetDirectTableId(),
		}
		if err := checkIDPrefix(c.ID, prefixDirectCounter, "direct counter", c.Name); err != nil {
			return err
		}
		if err := s.directCounters.insert(c, c.ID, false, c.Name, c.Alias); err != nil {
			return err
		}
	}
	for _, pb := range s.pb.GetMeters() {
		pre := pb.GetPreamble()
		m := &P4Meter{
			ID:          pre.GetId(),
			Name:        pre.GetName(),
			Alias:       aliasOf(pre),
			Annotations: annotationsOf(pre),
			Size:        pb.GetSize(),
			Unit:        pb.GetSpec().GetUnit(),
		}
		if err := checkIDPrefix(m.ID, prefixMeter, "meter", m.Name); err != nil {
			return err
		}
		if err := s.meters.insert(m, m.ID, false, m.Name, m.Alias); err != nil {
			return err
		}
	}
	for _, pb := range s.pb.GetDirectMeters() {
		pre := pb.GetPreamble()
		m := &P4DirectMeter{
			ID:          pre.GetId(),
			Name:        pre.GetName(),
			Alias:       aliasOf(pre),
			Annotations: annotationsOf(pre),
			Unit:        pb.GetSpec().GetUnit(),
			TableID:     pb.GetDirectTableId(),
		}
		if err := checkIDPrefix(m.ID, prefixDirectMeter, "direct meter", m.Name); err != nil {
			return err
		}
		if err := s.directMeters.insert(m, m.ID, false, m.Name, m.Alias); err != nil {
			return err
		}
	}
	for _, pb := range s.pb.GetRegisters() {
		pre := pb.GetPreamble()
		typ, err := s.typeInfo.DataType(pb.GetTypeSpec())
		if err != nil {
			return err
		}
		r := &P4Register{
			ID:          pre.GetId(),
			Name:        pre.GetName(),
			Alias:       aliasOf(pre),
			Annotations: annotationsOf(pre),
			Size:        int64(pb.GetSize()),
			Type:        typ,
		}
		if err := checkIDPrefix(r.ID, prefixRegister, "register", r.Name); err != nil {
			return err
		}
		if err := s.registers.insert(r, r.ID, false, r.Name, r.Alias); err != nil {
			return err
		}
	}
	for _, pb := range s.pb.GetDigests() {
		pre := pb.GetPreamble()
		typ, err := s.typeInfo.DataType(pb.GetTypeSpec())
		if err != nil {
			return err
		}
		d := &P4Digest{
			ID:          pre.GetId(),
			Name:        pre.GetName(),
			Annotations: annotationsOf(pre),
			Type:        typ,
		}
		if err := checkIDPrefix(d.ID, prefixDigest, "digest", d.Name); err != nil {
			return err
		}
		if err := s.digests.insert(d, d.ID, false, d.Name, aliasOf(pre)); err != nil {
			return err
		}
	}
	for _, pb := range s.pb.GetValueSets() {
		pre := pb.GetPreamble()
		vs := &P4ValueSet{
			ID:          pre.GetId(),
			Name:        pre.GetName(),
			Alias:       aliasOf(pre),
			Annotations: annotationsOf(pre),
			Size:        pb.GetSize(),
			Match:       newEntityMap[*P4MatchField]("match_field"),
		}
		for _, mf := range pb.GetMatch() {
			f := newMatchField(mf, s.typeInfo)
			if err := vs.Match.insert(f, f.ID, false, f.Name, f.Alias); err != nil {
				return err
			}
		}
		if err := checkIDPrefix(vs.ID, prefixValueSet, "value set", vs.Name); err != nil {
			return err
		}
		if err := s.valueSets.insert(vs, vs.ID, false, vs.Name, vs.Alias); err != nil {
			return err
		}
	}
	for _, pb := range s.pb.GetControllerPacketMetadata() {
		cpm, err := newControllerPacketMetadata(pb, s.typeInfo)
		if err != nil {
			return err
		}
		if err := checkIDPrefix(cpm.ID, prefixControllerHeader, "controller packet metadata", cpm.Name); err != nil {
			return err
		}
		if err := s.packetMetadata.insert(cpm, cpm.ID, false, cpm.Name, cpm.Alias); err != nil {
			return err
		}
	}
	for _, ext := range s.pb.GetExterns() {
		for _, inst := range ext.GetInstances() {
			pre := inst.GetPreamble()
			s.externs = append(s.externs, &P4ExternInstance{
				ExternTypeID:   ext.GetExternTypeId(),
				ExternTypeName: ext.GetExternTypeName(),
				ID:             pre.GetId(),
				Name:           pre.GetName(),
				Annotations:    annotationsOf(pre),
				Info:           inst.GetInfo(),
			})
		}
	}

	// Tables last: they reference actions, profiles and direct resources.
	for _, pb := range s.pb.GetTables() {
		t, err := s.newTable(pb)
		if err != nil {
			return err
		}
		if err := checkIDPrefix(t.ID, prefixTable, "table", t.Name); err != nil {
			return err
		}
		if err := s.tables.insert(t, t.ID, false, t.Name, t.Alias); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether the schema holds a P4Info document.
func (s *P4Schema) Exists() bool { return s.pb != nil }

// P4Info returns the underlying protobuf document, or nil.
func (s *P4Schema) P4Info() *p4config.P4Info { return s.pb }

// P4Blob returns the compiled device config, or nil.
func (s *P4Schema) P4Blob() []byte { return s.blob }

// Cookie returns the pipeline cookie: the top 8 bytes of the SHA-256 of
// the deterministic P4Info encoding followed by the device config blob.
func (s *P4Schema) Cookie() uint64 { return s.cookie }

// Name returns pkg_info.name.
func (s *P4Schema) Name() string { return s.pb.GetPkgInfo().GetName() }

// Version returns pkg_info.version.
func (s *P4Schema) Version() string { return s.pb.GetPkgInfo().GetVersion() }

// Arch returns pkg_info.arch.
func (s *P4Schema) Arch() string { return s.pb.GetPkgInfo().GetArch() }

func (s *P4Schema) Tables() *EntityMap[*P4Table] { return s.tables }
func (s *P4Schema) Actions() *EntityMap[*P4Action] { return s.actions }
func (s *P4Schema) ActionProfiles() *EntityMap[*P4ActionProfile] { return s.actionProfiles }
func (s *P4Schema) Counters() *EntityMap[*P4Counter] { return s.counters }
func (s *P4Schema) DirectCounters() *EntityMap[*P4DirectCounter] { return s.directCounters }
func (s *P4Schema) Meters() *EntityMap[*P4Meter] { return s.meters }
func (s *P4Schema) DirectMeters() *EntityMap[*P4DirectMeter] { return s.directMeters }
func (s *P4Schema) Registers() *EntityMap[*P4Register] { return s.registers }
func (s *P4Schema) Digests() *EntityMap[*P4Digest] { return s.digests }
func (s *P4Schema) ValueSets() *EntityMap[*P4ValueSet] { return s.valueSets }
func (s *P4Schema) TypeInfo() *P4TypeInfo { return s.typeInfo }

// PacketMetadata returns the controller packet metadata declarations
// ("packet_in", "packet_out").
func (s *P4Schema) PacketMetadata() *EntityMap[*P4ControllerPacketMetadata] {
	return s.packetMetadata
}

// Externs returns all extern instances.
func (s *P4Schema) Externs() []*P4ExternInstance { return s.externs }

// Extern finds an extern instance by type id and instance id.
func (s *P4Schema) Extern(externTypeID, externID uint32) (*P4ExternInstance, error) {
	for _, e := range s.externs {
		if e.ExternTypeID == externTypeID && e.ID == externID {
			return e, nil
		}
	}
	return nil, util.NewLookupError("extern", fmt.Sprintf("%#x/%#x", externTypeID, externID))
}

// ForwardingPipelineConfig assembles the pipeline config message for
// SetForwardingPipelineConfig.
func (s *P4Schema) ForwardingPipelineConfig() *p4v1.ForwardingPipelineConfig {
	return &p4v1.ForwardingPipelineConfig{
		P4Info:         s.pb,
		P4DeviceConfig: s.blob,
		Cookie:         &p4v1.ForwardingPipelineConfig_Cookie{Cookie: s.cookie},
	}
}

// Description returns a concise multi-line summary of the pipeline, one
// block per table, for logging.
func (s *P4Schema) Description() string {
	if !s.Exists() {
		return "<no pipeline>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s", s.Name(), s.Arch())
	if v := s.Version(); v != "" {
		fmt.Fprintf(&b, " %s", v)
	}
	b.WriteString(")\n")
	for _, t := range s.tables.All() {
		fmt.Fprintf(&b, "%s[%d]\n", t.Alias, t.Size)
		for _, f := range t.MatchFields.All() {
			fmt.Fprintf(&b, "  %s:%d/%s\n", f.Alias, f.Bitwidth, matchTypeName(f))
		}
		for _, ref := range t.Actions.All() {
			b.WriteString("  " + ref.Action.Alias + "(")
			for i, p := range ref.Action.Params.All() {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s:%d", p.Name, p.Bitwidth)
			}
			b.WriteString(")\n")
		}
	}
	return b.String()
}

func matchTypeName(f *P4MatchField) string {
	if f.OtherMatchType != "" {
		return f.OtherMatchType
	}
	return strings.ToLower(f.MatchType.String())
}
