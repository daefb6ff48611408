package p4entity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/pkg/p4schema"
	"github.com/finsy-network/finsy/pkg/p4values"
	"github.com/finsy-network/finsy/pkg/util"
)

// Match maps field names (full names or aliases) to match values.
type Match map[string]any

// Action is a direct action invocation with named parameters.
type Action struct {
	Name   string
	Params map[string]any
}

// NewAction builds an action value. Params may be nil for actions without
// parameters.
func NewAction(name string, params map[string]any) *Action {
	return &Action{Name: name, Params: params}
}

// WeightedAction is one member of a one-shot action set.
type WeightedAction struct {
	Weight    int32
	WatchPort any // optional; encoded as a 32-bit port value
	Action    *Action
}

// IndirectAction selects the action of an indirect table: exactly one of
// MemberID, GroupID or ActionSet must be set.
type IndirectAction struct {
	MemberID  uint32
	GroupID   uint32
	ActionSet []WeightedAction
}

// TableEntry is a table entry or, with an empty Table name, a wildcard
// covering all tables in a read request.
type TableEntry struct {
	Table           string
	Match           Match
	Action          *Action
	IndirectAction  *IndirectAction
	IsDefaultAction bool
	Priority        int32
	Metadata        []byte
	IdleTimeout     time.Duration
	MeterConfig     *p4v1.MeterConfig
	CounterData     *p4v1.CounterData

	// Decode-only fields.
	TimeSinceLastHit time.Duration
	IsConst          bool
}

func (e *TableEntry) table(s *p4schema.P4Schema) (*p4schema.P4Table, error) {
	return s.Tables().Get(e.Table)
}

// Encode builds the wire entity.
func (e *TableEntry) Encode(s *p4schema.P4Schema) (*p4v1.Entity, error) {
	entry, err := e.EncodeEntry(s)
	if err != nil {
		return nil, err
	}
	return &p4v1.Entity{Entity: &p4v1.Entity_TableEntry{TableEntry: entry}}, nil
}

// EncodeEntry builds the wire table entry.
func (e *TableEntry) EncodeEntry(s *p4schema.P4Schema) (*p4v1.TableEntry, error) {
	if e.Table == "" {
		// Wildcard: all tables, no further constraints.
		return &p4v1.TableEntry{}, nil
	}
	table, err := e.table(s)
	if err != nil {
		return nil, err
	}

	entry := &p4v1.TableEntry{
		TableId:         table.ID,
		IsDefaultAction: e.IsDefaultAction,
		Priority:        e.Priority,
		Metadata:        e.Metadata,
		MeterConfig:     e.MeterConfig,
		CounterData:     e.CounterData,
		IdleTimeoutNs:   e.IdleTimeout.Nanoseconds(),
	}

	for name, value := range e.Match {
		field, err := table.MatchFields.Get(name)
		if err != nil {
			return nil, err
		}
		fm, err := field.EncodeField(value)
		if err != nil {
			return nil, util.NewEncodeError(field.Name, value, field.Bitwidth, err.Error())
		}
		if fm != nil {
			entry.Match = append(entry.Match, fm)
		}
	}
	// Canonical field order.
	sort.Slice(entry.Match, func(i, j int) bool {
		return entry.Match[i].GetFieldId() < entry.Match[j].GetFieldId()
	})

	tableAction, err := e.encodeAction(table)
	if err != nil {
		return nil, err
	}
	entry.Action = tableAction
	return entry, nil
}

func (e *TableEntry) encodeAction(table *p4schema.P4Table) (*p4v1.TableAction, error) {
	switch {
	case e.Action != nil && e.IndirectAction != nil:
		return nil, util.NewSchemaError("table", table.Name, "both direct and indirect action set")

	case e.Action != nil:
		action, err := encodeAction(table, e.Action)
		if err != nil {
			return nil, err
		}
		if table.ActionProfile != nil {
			// Indirect table given a plain action: promote to a one-shot
			// action set with weight 1.
			return &p4v1.TableAction{
				Type: &p4v1.TableAction_ActionProfileActionSet{
					ActionProfileActionSet: &p4v1.ActionProfileActionSet{
						ActionProfileActions: []*p4v1.ActionProfileAction{
							{Action: action, Weight: 1},
						},
					},
				},
			}, nil
		}
		return &p4v1.TableAction{Type: &p4v1.TableAction_Action{Action: action}}, nil

	case e.IndirectAction != nil:
		return e.encodeIndirect(table)

	default:
		return nil, nil
	}
}

func (e *TableEntry) encodeIndirect(table *p4schema.P4Table) (*p4v1.TableAction, error) {
	ind := e.IndirectAction
	set := 0
	if ind.MemberID != 0 {
		set++
	}
	if ind.GroupID != 0 {
		set++
	}
	if ind.ActionSet != nil {
		set++
	}
	if set != 1 {
		return nil, util.NewSchemaError("table", table.Name, "indirect action needs exactly one of member, group or action set")
	}

	switch {
	case ind.MemberID != 0:
		return &p4v1.TableAction{
			Type: &p4v1.TableAction_ActionProfileMemberId{ActionProfileMemberId: ind.MemberID},
		}, nil
	case ind.GroupID != 0:
		return &p4v1.TableAction{
			Type: &p4v1.TableAction_ActionProfileGroupId{ActionProfileGroupId: ind.GroupID},
		}, nil
	default:
		actions := make([]*p4v1.ActionProfileAction, len(ind.ActionSet))
		for i, wa := range ind.ActionSet {
			action, err := encodeAction(table, wa.Action)
			if err != nil {
				return nil, err
			}
			pa := &p4v1.ActionProfileAction{Action: action, Weight: wa.Weight}
			if wa.WatchPort != nil {
				port, err := p4values.EncodeExact(wa.WatchPort, 32)
				if err != nil {
					return nil, err
				}
				pa.WatchKind = &p4v1.ActionProfileAction_WatchPort{WatchPort: port}
			}
			actions[i] = pa
		}
		return &p4v1.TableAction{
			Type: &p4v1.TableAction_ActionProfileActionSet{
				ActionProfileActionSet: &p4v1.ActionProfileActionSet{ActionProfileActions: actions},
			},
		}, nil
	}
}

func encodeAction(table *p4schema.P4Table, a *Action) (*p4v1.Action, error) {
	ref, err := table.Actions.Get(a.Name)
	if err != nil {
		return nil, err
	}
	return ref.Action.Encode(a.Params)
}

// DecodeTableEntry converts a wire table entry back to its typed form.
// Match fields are keyed by their short alias.
func DecodeTableEntry(s *p4schema.P4Schema, entry *p4v1.TableEntry) (*TableEntry, error) {
	e := &TableEntry{
		IsDefaultAction:  entry.GetIsDefaultAction(),
		Priority:         entry.GetPriority(),
		Metadata:         entry.GetMetadata(),
		MeterConfig:      entry.GetMeterConfig(),
		CounterData:      entry.GetCounterData(),
		IdleTimeout:      time.Duration(entry.GetIdleTimeoutNs()),
		TimeSinceLastHit: time.Duration(entry.GetTimeSinceLastHit().GetElapsedNs()),
		IsConst:          entry.GetIsConst(),
	}
	if entry.GetTableId() == 0 {
		return e, nil
	}
	table, ok := s.Tables().GetByID(entry.GetTableId())
	if !ok {
		return nil, util.NewLookupError("table", fmt.Sprintf("%#x", entry.GetTableId()))
	}
	e.Table = table.Alias

	if len(entry.GetMatch()) > 0 {
		e.Match = make(Match, len(entry.GetMatch()))
		for _, fm := range entry.GetMatch() {
			field, ok := table.MatchFields.GetByID(fm.GetFieldId())
			if !ok {
				return nil, util.NewLookupError("match_field", fmt.Sprintf("%d", fm.GetFieldId()))
			}
			v, err := field.DecodeField(fm)
			if err != nil {
				return nil, err
			}
			e.Match[field.Alias] = v
		}
	}

	switch a := entry.GetAction().GetType().(type) {
	case nil:
	case *p4v1.TableAction_Action:
		action, err := decodeAction(s, a.Action)
		if err != nil {
			return nil, err
		}
		e.Action = action
	case *p4v1.TableAction_ActionProfileMemberId:
		e.IndirectAction = &IndirectAction{MemberID: a.ActionProfileMemberId}
	case *p4v1.TableAction_ActionProfileGroupId:
		e.IndirectAction = &IndirectAction{GroupID: a.ActionProfileGroupId}
	case *p4v1.TableAction_ActionProfileActionSet:
		ind := &IndirectAction{ActionSet: []WeightedAction{}}
		for _, pa := range a.ActionProfileActionSet.GetActionProfileActions() {
			action, err := decodeAction(s, pa.GetAction())
			if err != nil {
				return nil, err
			}
			wa := WeightedAction{Weight: pa.GetWeight(), Action: action}
			if port := pa.GetWatchPort(); len(port) > 0 {
				v, err := p4values.DecodeExact(port, 32, p4values.Default)
				if err != nil {
					return nil, err
				}
				wa.WatchPort = v
			}
			ind.ActionSet = append(ind.ActionSet, wa)
		}
		e.IndirectAction = ind
	default:
		return nil, util.NewSchemaError("table", e.Table, "unsupported table action type")
	}
	return e, nil
}

func decodeAction(s *p4schema.P4Schema, wire *p4v1.Action) (*Action, error) {
	action, ok := s.Actions().GetByID(wire.GetActionId())
	if !ok {
		return nil, util.NewLookupError("action", fmt.Sprintf("%#x", wire.GetActionId()))
	}
	params, err := action.DecodeParams(wire.GetParams())
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		params = nil
	}
	return &Action{Name: action.Alias, Params: params}, nil
}

// FullMatch returns the entry's match with every declared field present;
// fields the entry does not constrain map to nil.
func (e *TableEntry) FullMatch(s *p4schema.P4Schema) (Match, error) {
	table, err := e.table(s)
	if err != nil {
		return nil, err
	}
	full := make(Match, table.MatchFields.Len())
	for _, f := range table.MatchFields.All() {
		full[f.Alias] = nil
	}
	for name, v := range e.Match {
		field, err := table.MatchFields.Get(name)
		if err != nil {
			return nil, err
		}
		full[field.Alias] = v
	}
	return full, nil
}

// MatchString formats the match in field order, marking wildcard fields
// with "*".
func (e *TableEntry) MatchString(s *p4schema.P4Schema) (string, error) {
	table, err := e.table(s)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, f := range table.MatchFields.All() {
		v := e.matchValue(table, f)
		if v == nil {
			parts = append(parts, f.Alias+"=*")
		} else {
			parts = append(parts, fmt.Sprintf("%s=%v", f.Alias, v))
		}
	}
	return strings.Join(parts, " "), nil
}

func (e *TableEntry) matchValue(table *p4schema.P4Table, f *p4schema.P4MatchField) any {
	for name, v := range e.Match {
		if field, err := table.MatchFields.Get(name); err == nil && field == f {
			return v
		}
	}
	return nil
}

// ActionString formats the entry's action like "fwd(port=1)".
func (e *TableEntry) ActionString(s *p4schema.P4Schema) (string, error) {
	switch {
	case e.Action != nil:
		return formatAction(e.Action), nil
	case e.IndirectAction != nil:
		ind := e.IndirectAction
		switch {
		case ind.MemberID != 0:
			return fmt.Sprintf("member(%d)", ind.MemberID), nil
		case ind.GroupID != 0:
			return fmt.Sprintf("group(%d)", ind.GroupID), nil
		default:
			var parts []string
			for _, wa := range ind.ActionSet {
				parts = append(parts, fmt.Sprintf("%dx%s", wa.Weight, formatAction(wa.Action)))
			}
			return strings.Join(parts, " "), nil
		}
	default:
		return "", nil
	}
}

func formatAction(a *Action) string {
	if len(a.Params) == 0 {
		return a.Name + "()"
	}
	keys := make([]string, 0, len(a.Params))
	for k := range a.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, a.Params[k])
	}
	return a.Name + "(" + strings.Join(parts, ", ") + ")"
}
