package blocks

import (
	"cowboys.arena/internal/lang/value"
	"cowboys.arena/internal/sim/actions"
)

// Act is an action leaf with a fixed result. Free carries no step cost
// (nop and the bullet steering blocks).
type Act struct {
	node
	Action actions.Action
	Free   bool
}

func (b *Act) Exec(r *Run) (*actions.Action, error) {
	if !b.Free {
		if err := r.charge(); err != nil {
			return nil, err
		}
	}
	act := b.Action
	return &act, nil
}

// ActByNumber turns an integer into a move or a shot. Negative numbers
// mean standing still.
type ActByNumber struct {
	node
	Fire bool
	Dir  Expr
}

func (b *ActByNumber) Exec(r *Run) (*actions.Action, error) {
	if err := r.charge(); err != nil {
		return nil, err
	}
	i, err := evalInt(r, b.Dir)
	if err != nil {
		return nil, err
	}
	act := actions.Nop()
	switch {
	case i < 0:
	case b.Fire:
		act = actions.Fire(actions.FromInt(i))
	default:
		act = actions.Move(actions.Cowboy[(i%actions.Count)/2])
	}
	return &act, nil
}

func init() {
	fixed := func(name string, act actions.Action, free bool) {
		register(&Spec{
			Name: name,
			build: func(*args) (Block, error) {
				return &Act{Action: act, Free: free}, nil
			},
		})
	}
	fixed("nop", actions.Nop(), true)
	fixed("bullet_fly", actions.Nop(), true)
	fixed("bullet_left", actions.TurnLeft(), true)
	fixed("bullet_right", actions.TurnRight(), true)

	var cowboyNames, allNames []string
	for _, d := range actions.Cowboy {
		cowboyNames = append(cowboyNames, d.String())
	}
	for _, d := range actions.All {
		allNames = append(allNames, d.String())
	}
	register(&Spec{
		Name:   "move_direction",
		Inputs: []Input{{Kind: FieldInput, Name: "DIRECTION", Type: value.Text, Dropdown: cowboyNames}},
		build: func(a *args) (Block, error) {
			d, _ := actions.CowboyByName(a.text("DIRECTION"))
			return &Act{Action: actions.Move(d)}, nil
		},
	})
	register(&Spec{
		Name:   "fire_direction",
		Inputs: []Input{{Kind: FieldInput, Name: "DIRECTION", Type: value.Text, Dropdown: allNames}},
		build: func(a *args) (Block, error) {
			d, _ := actions.ByName(a.text("DIRECTION"))
			return &Act{Action: actions.Fire(d)}, nil
		},
	})
	register(&Spec{
		Name:   "move_direction_number",
		Inputs: []Input{{Kind: ValueInput, Name: "DIRECTION", Type: value.Int}},
		build: func(a *args) (Block, error) {
			return &ActByNumber{Dir: a.values["DIRECTION"]}, nil
		},
	})
	register(&Spec{
		Name:   "fire_direction_by_number",
		Inputs: []Input{{Kind: ValueInput, Name: "DIRECTION", Type: value.Int}},
		build: func(a *args) (Block, error) {
			return &ActByNumber{Fire: true, Dir: a.values["DIRECTION"]}, nil
		},
	})
}

// NewNop is the one-block program that always stands still.
func NewNop() Stmt {
	return &Act{node: node{kind: "nop"}, Action: actions.Nop(), Free: true}
}
