package blocks

import (
	"cowboys.arena/internal/lang/value"
	"cowboys.arena/internal/sim/actions"
)

type VariablesGet struct {
	node
	Var *VarRef
}

func (b *VariablesGet) ResultKind() value.Kind { return b.Var.Kind }

func (b *VariablesGet) pinResult(k value.Kind) error { return b.Var.Pin(k) }

func (b *VariablesGet) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	v, ok := r.Vars[b.Var.Name]
	if !ok {
		return value.Value{}, faultf(b.kind, "variable %s has no value", b.Var.Name)
	}
	return v, nil
}

type VariablesSet struct {
	node
	Var   *VarRef
	Value Expr
}

func (b *VariablesSet) Exec(r *Run) (*actions.Action, error) {
	if err := r.charge(); err != nil {
		return nil, err
	}
	v, err := b.Value.Eval(r)
	if err != nil {
		return nil, err
	}
	r.Vars[b.Var.Name] = v
	return b.proceed(r)
}

// MathChange adds DELTA to an integer variable.
type MathChange struct {
	node
	Var   *VarRef
	Delta Expr
}

func (b *MathChange) Exec(r *Run) (*actions.Action, error) {
	if err := r.charge(); err != nil {
		return nil, err
	}
	d, err := evalInt(r, b.Delta)
	if err != nil {
		return nil, err
	}
	cur, ok := r.Vars[b.Var.Name]
	if !ok || cur.Kind != value.Int {
		return nil, faultf(b.kind, "variable %s is not an integer", b.Var.Name)
	}
	r.Vars[b.Var.Name] = value.OfInt(cur.I + d)
	return b.proceed(r)
}

func init() {
	register(&Spec{
		Name: "variables_get", Expr: true, Returns: value.Unresolved,
		Inputs: []Input{{Kind: FieldInput, Name: VarFieldName, Variable: true}},
		build: func(a *args) (Block, error) {
			return &VariablesGet{Var: a.varRef(VarFieldName)}, nil
		},
	})
	register(&Spec{
		Name: "variables_set", HasNext: true,
		Inputs: []Input{
			{Kind: FieldInput, Name: VarFieldName, Variable: true},
			{Kind: ValueInput, Name: "VALUE"},
		},
		build: func(a *args) (Block, error) {
			ref, val := a.varRef(VarFieldName), a.values["VALUE"]
			if err := ref.Pin(val.ResultKind()); err != nil {
				return nil, parseErrorf("value VALUE: %v", err)
			}
			return &VariablesSet{Var: ref, Value: val}, nil
		},
	})
	register(&Spec{
		Name: "math_change", HasNext: true,
		Inputs: []Input{
			{Kind: FieldInput, Name: VarFieldName, Type: value.Int, Variable: true},
			{Kind: ValueInput, Name: "DELTA", Type: value.Int},
		},
		build: func(a *args) (Block, error) {
			return &MathChange{Var: a.varRef(VarFieldName), Delta: a.values["DELTA"]}, nil
		},
	})
}
