package blocks

import (
	"cowboys.arena/internal/lang/value"
	"cowboys.arena/internal/sim/entity"
	"cowboys.arena/internal/sim/mathx"
)

// Info answers a question about the acting unit or the whole grid that
// needs no input.
type Info struct {
	node
}

func (b *Info) ResultKind() value.Kind {
	if b.kind == "info_position" {
		return value.Position
	}
	return value.Int
}

func (b *Info) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	w := r.World
	switch b.kind {
	case "info_team":
		return value.OfInt(r.Actor.TeamIndex()), nil
	case "info_points":
		return value.OfInt(w.Points(r.Actor.TeamIndex())), nil
	case "info_index":
		c, err := r.cowboy(b.kind)
		if err != nil {
			return value.Value{}, err
		}
		return value.OfInt(c.Index), nil
	case "info_id":
		return value.OfInt(w.ActorID(r.Actor)), nil
	case "info_position":
		p, ok := r.Actor.Location()
		if !ok {
			p = entity.Nowhere
		}
		return value.OfPosition(p), nil
	case "info_turn":
		return value.OfInt(w.Turn()), nil
	case "info_my_direction":
		bl, err := r.bullet(b.kind)
		if err != nil {
			return value.Value{}, err
		}
		return value.OfInt(int(bl.Dir)), nil
	case "info_my_range":
		bl, err := r.bullet(b.kind)
		if err != nil {
			return value.Value{}, err
		}
		return value.OfInt(w.BulletLifetime() - bl.TurnsMade), nil
	case "info_gold_count":
		return value.OfInt(w.GoldCount()), nil
	case "info_cowboy_count":
		return value.OfInt(w.CowboyCount()), nil
	case "info_bullet_count":
		return value.OfInt(w.BulletCount()), nil
	}
	return value.Value{}, faultf(b.kind, "unknown query")
}

// MapCell tells whether a cell holds something of one layer. Coordinates
// wrap around the grid.
type MapCell struct {
	node
	Pos   Expr
	Layer entity.Layer
}

func (b *MapCell) ResultKind() value.Kind { return value.Bool }

func (b *MapCell) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	p, err := evalPos(r, b.Pos)
	if err != nil {
		return value.Value{}, err
	}
	w := r.World
	p = entity.Position{X: mathx.Wrap(p.X, w.Width()), Y: mathx.Wrap(p.Y, w.Height())}
	return value.OfBool(w.Has(b.Layer, p)), nil
}

// Lookup reads one attribute of the i-th gold, cowboy or bullet of the
// current sub-turn. Indexes out of range give (-1,-1) or -1.
type Lookup struct {
	node
	Of       entity.Layer
	Position bool
	Index    Expr
}

func (b *Lookup) ResultKind() value.Kind {
	if b.Position {
		return value.Position
	}
	return value.Int
}

func (b *Lookup) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	i, err := evalInt(r, b.Index)
	if err != nil {
		return value.Value{}, err
	}
	w := r.World
	switch {
	case b.Of == entity.LayerGold && b.Position:
		return value.OfPosition(w.GoldPosition(i)), nil
	case b.Of == entity.LayerCowboy && b.Position:
		return value.OfPosition(w.CowboyPosition(i)), nil
	case b.Of == entity.LayerCowboy:
		return value.OfInt(w.CowboyTeam(i)), nil
	case b.Of == entity.LayerBullet && b.Position:
		return value.OfPosition(w.BulletPosition(i)), nil
	case b.Of == entity.LayerBullet:
		return value.OfInt(w.BulletTeam(i)), nil
	}
	return value.Value{}, faultf(b.kind, "unsupported lookup")
}

func init() {
	for _, name := range []string{
		"info_team", "info_points", "info_index", "info_id", "info_turn",
		"info_my_direction", "info_my_range",
		"info_gold_count", "info_cowboy_count", "info_bullet_count",
	} {
		register(&Spec{Name: name, Expr: true, Returns: value.Int, build: buildInfo})
	}
	register(&Spec{Name: "info_position", Expr: true, Returns: value.Position, build: buildInfo})

	register(&Spec{
		Name: "info_map_position", Expr: true, Returns: value.Bool,
		Inputs: []Input{
			{Kind: ValueInput, Name: "POSITION", Type: value.Position},
			{Kind: FieldInput, Name: "ENTITY", Type: value.Text, Dropdown: []string{"WALL", "GOLD", "COWBOY", "BULLET"}},
		},
		build: func(a *args) (Block, error) {
			layer, _ := entity.LayerByName(a.text("ENTITY"))
			return &MapCell{Pos: a.values["POSITION"], Layer: layer}, nil
		},
	})

	lookups := []struct {
		name     string
		input    string
		of       entity.Layer
		position bool
	}{
		{"info_gold_position", "GOLD", entity.LayerGold, true},
		{"info_cowboy_team", "COWBOY", entity.LayerCowboy, false},
		{"info_cowboy_position", "COWBOY", entity.LayerCowboy, true},
		{"info_bullet_team", "BULLET", entity.LayerBullet, false},
		{"info_bullet_position", "BULLET", entity.LayerBullet, true},
	}
	for _, l := range lookups {
		l := l
		returns := value.Int
		if l.position {
			returns = value.Position
		}
		register(&Spec{
			Name: l.name, Expr: true, Returns: returns,
			Inputs: []Input{{Kind: ValueInput, Name: l.input, Type: value.Int}},
			build: func(a *args) (Block, error) {
				return &Lookup{Of: l.of, Position: l.position, Index: a.values[l.input]}, nil
			},
		})
	}
}

func buildInfo(*args) (Block, error) { return &Info{}, nil }
