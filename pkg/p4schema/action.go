package p4schema

import (
	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/pkg/p4values"
	"github.com/finsy-network/finsy/pkg/util"
)

// P4ActionParam is a runtime parameter of an action.
type P4ActionParam struct {
	ID       uint32
	Name     string
	Bitwidth int // effective width; 0 means SDN string
	TypeName string
	Format   p4values.DecodeFormat
}

// P4Action is an action declared in P4Info.
type P4Action struct {
	ID          uint32
	Name        string
	Alias       string
	Brief       string
	Annotations P4Annotations
	Params      *EntityMap[*P4ActionParam]
}

func newAction(pb *p4config.Action, ti *P4TypeInfo) (*P4Action, error) {
	pre := pb.GetPreamble()
	a := &P4Action{
		ID:          pre.GetId(),
		Name:        pre.GetName(),
		Alias:       aliasOf(pre),
		Brief:       pre.GetDoc().GetBrief(),
		Annotations: annotationsOf(pre),
		Params:      newEntityMap[*P4ActionParam]("param"),
	}
	for _, p := range pb.GetParams() {
		typeName := p.GetTypeName().GetName()
		param := &P4ActionParam{
			ID:       p.GetId(),
			Name:     p.GetName(),
			Bitwidth: ti.fieldWidth(typeName, int(p.GetBitwidth())),
			TypeName: typeName,
			Format:   formatFromAnnotations(p.GetAnnotations()),
		}
		if err := a.Params.insert(param, param.ID, false, param.Name); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// EncodeParams encodes named parameter values in declaration order.
func (a *P4Action) EncodeParams(params map[string]any) ([]*p4v1.Action_Param, error) {
	if len(params) != a.Params.Len() {
		return nil, util.NewSchemaError("action", a.Alias, "wrong number of parameters")
	}
	out := make([]*p4v1.Action_Param, 0, len(params))
	for _, p := range a.Params.All() {
		v, ok := params[p.Name]
		if !ok {
			return nil, util.NewSchemaError("param", p.Name, "missing for action "+a.Alias)
		}
		data, err := p4values.EncodeExact(v, p.Bitwidth)
		if err != nil {
			return nil, err
		}
		out = append(out, &p4v1.Action_Param{ParamId: p.ID, Value: data})
	}
	return out, nil
}

// DecodeParams decodes wire parameters to a name-keyed map.
func (a *P4Action) DecodeParams(params []*p4v1.Action_Param) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for _, wp := range params {
		p, ok := a.Params.GetByID(wp.GetParamId())
		if !ok {
			return nil, util.NewSchemaError("param", a.Alias, "unknown param id")
		}
		v, err := p4values.DecodeExact(wp.GetValue(), p.Bitwidth, p.Format)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

// Encode builds the wire action with its parameters.
func (a *P4Action) Encode(params map[string]any) (*p4v1.Action, error) {
	wire, err := a.EncodeParams(params)
	if err != nil {
		return nil, err
	}
	return &p4v1.Action{ActionId: a.ID, Params: wire}, nil
}

// P4ActionRef is an action as referenced by a table, with its scope.
type P4ActionRef struct {
	Action *P4Action
	Scope  p4config.ActionRef_Scope
}

// P4ActionProfile is an action profile or selector implementing one or
// more tables.
type P4ActionProfile struct {
	ID           uint32
	Name         string
	Alias        string
	Annotations  P4Annotations
	WithSelector bool
	Size         int64
	MaxGroupSize int
	tableIDs     []uint32
}

func newActionProfile(pb *p4config.ActionProfile) *P4ActionProfile {
	pre := pb.GetPreamble()
	return &P4ActionProfile{
		ID:           pre.GetId(),
		Name:         pre.GetName(),
		Alias:        aliasOf(pre),
		Annotations:  annotationsOf(pre),
		WithSelector: pb.GetWithSelector(),
		Size:         pb.GetSize(),
		MaxGroupSize: int(pb.GetMaxGroupSize()),
		tableIDs:     pb.GetTableIds(),
	}
}
