package blocks

import (
	"strconv"

	"cowboys.arena/internal/lang/value"
	"cowboys.arena/internal/sim/actions"
)

// Repeat runs its body TIMES times, one step per iteration.
type Repeat struct {
	node
	Times Expr
	Do    Stmt
}

func (b *Repeat) Exec(r *Run) (*actions.Action, error) {
	n, err := evalInt(r, b.Times)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if err := r.charge(); err != nil {
			return nil, err
		}
		act, err := b.Do.Exec(r)
		if err != nil || act != nil {
			return act, err
		}
	}
	return b.proceed(r)
}

// For counts VAR from FROM toward TO (exclusive) in steps of BY. A zero BY
// ends the whole chain without running the body or what follows.
type For struct {
	node
	Var          *VarRef
	From, To, By Expr
	Do           Stmt
}

func (b *For) Exec(r *Run) (*actions.Action, error) {
	from, err := evalInt(r, b.From)
	if err != nil {
		return nil, err
	}
	to, err := evalInt(r, b.To)
	if err != nil {
		return nil, err
	}
	by, err := evalInt(r, b.By)
	if err != nil {
		return nil, err
	}
	if by == 0 {
		return nil, nil
	}
	for i := from; (by > 0 && i < to) || (by < 0 && i > to); i += by {
		if err := r.charge(); err != nil {
			return nil, err
		}
		r.Vars[b.Var.Name] = value.OfInt(i)
		act, err := b.Do.Exec(r)
		if err != nil || act != nil {
			return act, err
		}
	}
	return b.proceed(r)
}

// Branch is one IF/DO pair of an If.
type Branch struct {
	Cond Expr
	Do   Stmt
}

// If runs the body of the first true condition, or Else when none holds.
// The whole test chain costs one step.
type If struct {
	node
	Branches []Branch
	Else     Stmt
}

func (b *If) Exec(r *Run) (*actions.Action, error) {
	if err := r.charge(); err != nil {
		return nil, err
	}
	var body Stmt
	for _, br := range b.Branches {
		ok, err := evalBool(r, br.Cond)
		if err != nil {
			return nil, err
		}
		if ok {
			body = br.Do
			break
		}
	}
	if body == nil {
		body = b.Else
	}
	if body != nil {
		act, err := body.Exec(r)
		if err != nil || act != nil {
			return act, err
		}
	}
	return b.proceed(r)
}

func init() {
	register(&Spec{
		Name: "controls_repeat_ext", HasNext: true,
		Inputs: []Input{
			{Kind: ValueInput, Name: "TIMES", Type: value.Int},
			{Kind: StatementInput, Name: "DO"},
		},
		build: func(a *args) (Block, error) {
			return &Repeat{Times: a.values["TIMES"], Do: a.statements["DO"]}, nil
		},
	})
	register(&Spec{
		Name: "controls_for", HasNext: true,
		Inputs: []Input{
			{Kind: FieldInput, Name: VarFieldName, Type: value.Int, Variable: true},
			{Kind: ValueInput, Name: "FROM", Type: value.Int},
			{Kind: ValueInput, Name: "TO", Type: value.Int},
			{Kind: ValueInput, Name: "BY", Type: value.Int},
			{Kind: StatementInput, Name: "DO"},
		},
		build: func(a *args) (Block, error) {
			return &For{
				Var:  a.varRef(VarFieldName),
				From: a.values["FROM"],
				To:   a.values["TO"],
				By:   a.values["BY"],
				Do:   a.statements["DO"],
			}, nil
		},
	})
	register(&Spec{
		Name: "controls_if", HasNext: true,
		MutationInputs: ifInputs,
		build: func(a *args) (Block, error) {
			b := &If{Else: a.statements["ELSE"]}
			for i := 0; ; i++ {
				cond, ok := a.values["IF"+strconv.Itoa(i)]
				if !ok {
					break
				}
				b.Branches = append(b.Branches, Branch{Cond: cond, Do: a.statements["DO"+strconv.Itoa(i)]})
			}
			return b, nil
		},
	})
}
