package p4schema

import (
	"strings"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/pkg/p4values"
	"github.com/finsy-network/finsy/pkg/util"
)

// P4MatchField is a key field of a table or value set.
type P4MatchField struct {
	ID             uint32
	Name           string
	Alias          string
	Bitwidth       int // effective width; 0 means SDN string
	MatchType      p4config.MatchField_MatchType
	OtherMatchType string
	TypeName       string
	Format         p4values.DecodeFormat
}

func newMatchField(pb *p4config.MatchField, ti *P4TypeInfo) *P4MatchField {
	typeName := pb.GetTypeName().GetName()
	f := &P4MatchField{
		ID:             pb.GetId(),
		Name:           pb.GetName(),
		Alias:          lastComponent(pb.GetName()),
		Bitwidth:       ti.fieldWidth(typeName, int(pb.GetBitwidth())),
		MatchType:      pb.GetMatchType(),
		OtherMatchType: pb.GetOtherMatchType(),
		TypeName:       typeName,
		Format:         formatFromAnnotations(pb.GetAnnotations()),
	}
	return f
}

func lastComponent(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// EncodeField encodes one match value. A nil return with nil error means
// the field is a wildcard and must be omitted from the wire entry: a
// ternary match with an all-zero mask, an LPM match with prefix length 0,
// or an absent optional.
func (f *P4MatchField) EncodeField(value any) (*p4v1.FieldMatch, error) {
	if value == nil {
		return nil, nil
	}
	switch f.MatchType {
	case p4config.MatchField_EXACT:
		data, err := p4values.EncodeExact(value, f.Bitwidth)
		if err != nil {
			return nil, err
		}
		return &p4v1.FieldMatch{
			FieldId:        f.ID,
			FieldMatchType: &p4v1.FieldMatch_Exact_{Exact: &p4v1.FieldMatch_Exact{Value: data}},
		}, nil

	case p4config.MatchField_LPM:
		data, prefixLen, err := p4values.EncodeLPM(value, f.Bitwidth)
		if err != nil {
			return nil, err
		}
		if prefixLen == 0 {
			return nil, nil
		}
		return &p4v1.FieldMatch{
			FieldId:        f.ID,
			FieldMatchType: &p4v1.FieldMatch_Lpm{Lpm: &p4v1.FieldMatch_LPM{Value: data, PrefixLen: int32(prefixLen)}},
		}, nil

	case p4config.MatchField_TERNARY:
		data, mask, err := p4values.EncodeTernary(value, f.Bitwidth)
		if err != nil {
			return nil, err
		}
		if p4values.IsAllZero(mask) {
			return nil, nil
		}
		return &p4v1.FieldMatch{
			FieldId:        f.ID,
			FieldMatchType: &p4v1.FieldMatch_Ternary_{Ternary: &p4v1.FieldMatch_Ternary{Value: data, Mask: mask}},
		}, nil

	case p4config.MatchField_RANGE:
		low, high, err := p4values.EncodeRange(value, f.Bitwidth)
		if err != nil {
			return nil, err
		}
		return &p4v1.FieldMatch{
			FieldId:        f.ID,
			FieldMatchType: &p4v1.FieldMatch_Range_{Range: &p4v1.FieldMatch_Range{Low: low, High: high}},
		}, nil

	case p4config.MatchField_OPTIONAL:
		data, err := p4values.EncodeExact(value, f.Bitwidth)
		if err != nil {
			return nil, err
		}
		return &p4v1.FieldMatch{
			FieldId:        f.ID,
			FieldMatchType: &p4v1.FieldMatch_Optional_{Optional: &p4v1.FieldMatch_Optional{Value: data}},
		}, nil

	default:
		return nil, util.NewSchemaError("match_field", f.Name, "unsupported match type "+f.OtherMatchType)
	}
}

// DecodeField decodes one wire match to its Go value.
func (f *P4MatchField) DecodeField(fm *p4v1.FieldMatch) (any, error) {
	switch m := fm.GetFieldMatchType().(type) {
	case *p4v1.FieldMatch_Exact_:
		return p4values.DecodeExact(m.Exact.GetValue(), f.Bitwidth, f.Format)
	case *p4v1.FieldMatch_Lpm:
		return p4values.DecodeLPM(m.Lpm.GetValue(), int(m.Lpm.GetPrefixLen()), f.Bitwidth, f.Format)
	case *p4v1.FieldMatch_Ternary_:
		return p4values.DecodeTernary(m.Ternary.GetValue(), m.Ternary.GetMask(), f.Bitwidth, f.Format)
	case *p4v1.FieldMatch_Range_:
		return p4values.DecodeRange(m.Range.GetLow(), m.Range.GetHigh(), f.Bitwidth, f.Format)
	case *p4v1.FieldMatch_Optional_:
		return p4values.DecodeExact(m.Optional.GetValue(), f.Bitwidth, f.Format)
	default:
		return nil, util.NewSchemaError("match_field", f.Name, "unsupported wire match type")
	}
}

// P4Table is a match-action table declared in P4Info.
type P4Table struct {
	ID                 uint32
	Name               string
	Alias              string
	Brief              string
	Annotations        P4Annotations
	Size               int64
	MatchFields        *EntityMap[*P4MatchField]
	Actions            *EntityMap[*P4ActionRef]
	ConstDefaultAction *P4Action
	ActionProfile      *P4ActionProfile
	DirectCounter      *P4DirectCounter
	DirectMeter        *P4DirectMeter
	IsConst            bool
	IdleNotify         bool
}

func (s *P4Schema) newTable(pb *p4config.Table) (*P4Table, error) {
	pre := pb.GetPreamble()
	t := &P4Table{
		ID:          pre.GetId(),
		Name:        pre.GetName(),
		Alias:       aliasOf(pre),
		Brief:       pre.GetDoc().GetBrief(),
		Annotations: annotationsOf(pre),
		Size:        pb.GetSize(),
		MatchFields: newEntityMap[*P4MatchField]("match_field"),
		Actions:     newEntityMap[*P4ActionRef]("action"),
		IsConst:     pb.GetIsConstTable(),
		IdleNotify:  pb.GetIdleTimeoutBehavior() == p4config.Table_NOTIFY_CONTROL,
	}

	for _, mf := range pb.GetMatchFields() {
		f := newMatchField(mf, s.typeInfo)
		if err := t.MatchFields.insert(f, f.ID, false, f.Name, f.Alias); err != nil {
			return nil, err
		}
	}

	for _, ref := range pb.GetActionRefs() {
		action, ok := s.actions.GetByID(ref.GetId())
		if !ok {
			return nil, util.NewSchemaError("table", t.Name, "unknown action id in action_refs")
		}
		ar := &P4ActionRef{Action: action, Scope: ref.GetScope()}
		if err := t.Actions.insert(ar, action.ID, true, action.Name, action.Alias); err != nil {
			return nil, err
		}
	}

	if id := pb.GetConstDefaultActionId(); id != 0 {
		action, ok := s.actions.GetByID(id)
		if !ok {
			return nil, util.NewSchemaError("table", t.Name, "unknown const default action id")
		}
		t.ConstDefaultAction = action
	}
	if id := pb.GetImplementationId(); id != 0 {
		profile, ok := s.actionProfiles.GetByID(id)
		if !ok {
			return nil, util.NewSchemaError("table", t.Name, "unknown implementation id")
		}
		t.ActionProfile = profile
	}
	for _, id := range pb.GetDirectResourceIds() {
		if dc, ok := s.directCounters.GetByID(id); ok {
			t.DirectCounter = dc
		} else if dm, ok := s.directMeters.GetByID(id); ok {
			t.DirectMeter = dm
		}
	}
	return t, nil
}

// HasDefaultOnlyActions reports whether any action is restricted to the
// default entry.
func (t *P4Table) HasDefaultOnlyActions() bool {
	for _, ref := range t.Actions.All() {
		if ref.Scope == p4config.ActionRef_DEFAULT_ONLY {
			return true
		}
	}
	return false
}
