package blocks

import (
	"cowboys.arena/internal/lang/value"
	"cowboys.arena/internal/sim/actions"
	"cowboys.arena/internal/sim/entity"
	"cowboys.arena/internal/sim/mathx"
)

// ModifyPosition shifts a position one cell in a direction given as an
// integer taken modulo 8.
type ModifyPosition struct {
	node
	Pos Expr
	Dir Expr
}

func (b *ModifyPosition) ResultKind() value.Kind { return value.Position }

func (b *ModifyPosition) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	p, err := evalPos(r, b.Pos)
	if err != nil {
		return value.Value{}, err
	}
	d, err := evalInt(r, b.Dir)
	if err != nil {
		return value.Value{}, err
	}
	return value.OfPosition(p.Step(actions.FromInt(d), r.World.Width(), r.World.Height())), nil
}

// PositionPart extracts X, or Y when Y is set.
type PositionPart struct {
	node
	Pos Expr
	Y   bool
}

func (b *PositionPart) ResultKind() value.Kind { return value.Int }

func (b *PositionPart) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	p, err := evalPos(r, b.Pos)
	if err != nil {
		return value.Value{}, err
	}
	if b.Y {
		return value.OfInt(p.Y), nil
	}
	return value.OfInt(p.X), nil
}

// MakePosition builds a position from two integers as given, without
// wrapping.
type MakePosition struct {
	node
	X Expr
	Y Expr
}

func (b *MakePosition) ResultKind() value.Kind { return value.Position }

func (b *MakePosition) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	x, err := evalInt(r, b.X)
	if err != nil {
		return value.Value{}, err
	}
	y, err := evalInt(r, b.Y)
	if err != nil {
		return value.Value{}, err
	}
	return value.OfPosition(entity.Position{X: x, Y: y}), nil
}

// CountDistance is the 8-way distance ignoring walls: the larger of the two
// wrapped coordinate differences.
type CountDistance struct {
	node
	Pos Expr
}

func (b *CountDistance) ResultKind() value.Kind { return value.Int }

func (b *CountDistance) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	to, err := evalPos(r, b.Pos)
	if err != nil {
		return value.Value{}, err
	}
	from, err := r.position(b.kind)
	if err != nil {
		return value.Value{}, err
	}
	dx := mathx.TorusDist(from.X, to.X, r.World.Width())
	dy := mathx.TorusDist(from.Y, to.Y, r.World.Height())
	return value.OfInt(mathx.MaxInt(dx, dy)), nil
}

// ComputeDirection picks the 8-way heading toward a target ignoring walls.
// An axis is only used when its difference is at least half of the other.
type ComputeDirection struct {
	node
	Pos Expr
}

func (b *ComputeDirection) ResultKind() value.Kind { return value.Int }

func (b *ComputeDirection) Eval(r *Run) (value.Value, error) {
	to, err := evalPos(r, b.Pos)
	if err != nil {
		return value.Value{}, err
	}
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	from, err := r.position(b.kind)
	if err != nil {
		return value.Value{}, err
	}
	return value.OfInt(HeadingToward(from, to, r.World.Width(), r.World.Height())), nil
}

// HeadingToward returns the 8-way direction index from one cell toward
// another on a width x height torus.
func HeadingToward(from, to entity.Position, width, height int) int {
	dx := mathx.SignedTorusDelta(from.X, to.X, width)
	dy := mathx.SignedTorusDelta(from.Y, to.Y, height)
	ox, oy := 0, 0
	if mathx.AbsInt(dy) <= 2*mathx.AbsInt(dx) {
		ox = sign(dx)
	}
	if mathx.AbsInt(dx) <= 2*mathx.AbsInt(dy) {
		oy = sign(dy)
	}
	d, ok := actions.FromDelta(ox, oy)
	if !ok {
		return -1
	}
	return int(d)
}

func sign(v int) int {
	if v > 0 {
		return 1
	}
	return -1
}

// ComputeDistance is the cowboy's walking distance to a cell around walls.
type ComputeDistance struct {
	node
	Pos Expr
}

func (b *ComputeDistance) ResultKind() value.Kind { return value.Int }

func (b *ComputeDistance) Eval(r *Run) (value.Value, error) {
	to, err := evalPos(r, b.Pos)
	if err != nil {
		return value.Value{}, err
	}
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	c, err := r.cowboy(b.kind)
	if err != nil {
		return value.Value{}, err
	}
	return value.OfInt(r.World.Distance(c, to)), nil
}

// FirstStep is the 8-way index of the first move on a shortest walk to a
// cell, or -1 when there is none.
type FirstStep struct {
	node
	Pos Expr
}

func (b *FirstStep) ResultKind() value.Kind { return value.Int }

func (b *FirstStep) Eval(r *Run) (value.Value, error) {
	to, err := evalPos(r, b.Pos)
	if err != nil {
		return value.Value{}, err
	}
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	c, err := r.cowboy(b.kind)
	if err != nil {
		return value.Value{}, err
	}
	return value.OfInt(r.World.FirstStep(c, to)), nil
}

func init() {
	position := Input{Kind: ValueInput, Name: "POSITION", Type: value.Position}
	register(&Spec{
		Name: "modify_position", Expr: true, Returns: value.Position,
		Inputs: []Input{position, {Kind: ValueInput, Name: "DIRECTION", Type: value.Int}},
		build: func(a *args) (Block, error) {
			return &ModifyPosition{Pos: a.values["POSITION"], Dir: a.values["DIRECTION"]}, nil
		},
	})
	register(&Spec{
		Name: "transform_position_x", Expr: true, Returns: value.Int,
		Inputs: []Input{position},
		build: func(a *args) (Block, error) {
			return &PositionPart{Pos: a.values["POSITION"]}, nil
		},
	})
	register(&Spec{
		Name: "transform_position_y", Expr: true, Returns: value.Int,
		Inputs: []Input{position},
		build: func(a *args) (Block, error) {
			return &PositionPart{Pos: a.values["POSITION"], Y: true}, nil
		},
	})
	register(&Spec{
		Name: "transform_x_y_position", Expr: true, Returns: value.Position,
		Inputs: []Input{
			{Kind: ValueInput, Name: "X", Type: value.Int},
			{Kind: ValueInput, Name: "Y", Type: value.Int},
		},
		build: func(a *args) (Block, error) {
			return &MakePosition{X: a.values["X"], Y: a.values["Y"]}, nil
		},
	})
	register(&Spec{
		Name: "count_distance", Expr: true, Returns: value.Int,
		Inputs: []Input{position},
		build: func(a *args) (Block, error) {
			return &CountDistance{Pos: a.values["POSITION"]}, nil
		},
	})
	register(&Spec{
		Name: "compute_direction", Expr: true, Returns: value.Int,
		Inputs: []Input{position},
		build: func(a *args) (Block, error) {
			return &ComputeDirection{Pos: a.values["POSITION"]}, nil
		},
	})
	register(&Spec{
		Name: "compute_distance", Expr: true, Returns: value.Int,
		Inputs: []Input{position},
		build: func(a *args) (Block, error) {
			return &ComputeDistance{Pos: a.values["POSITION"]}, nil
		},
	})
	register(&Spec{
		Name: "compute_first_step", Expr: true, Returns: value.Int,
		Inputs: []Input{position},
		build: func(a *args) (Block, error) {
			return &FirstStep{Pos: a.values["POSITION"]}, nil
		},
	})
}
