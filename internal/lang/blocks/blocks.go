// Package blocks is the typed syntax tree of block programs and its
// interpreter. A tree is built once by the parser through a Catalog and is
// immutable afterwards; every evaluation goes through a Run that carries the
// step budget.
package blocks

import (
	"cowboys.arena/internal/lang/value"
	"cowboys.arena/internal/sim/actions"
	"cowboys.arena/internal/sim/entity"
)

// World is the read-only view of the simulation that query blocks consult.
type World interface {
	Width() int
	Height() int
	Turn() int
	Points(team int) int
	BulletLifetime() int
	// ActorID is the actor's position in this sub-turn's acting order.
	ActorID(a entity.Actor) int
	Has(layer entity.Layer, p entity.Position) bool

	GoldCount() int
	GoldPosition(i int) entity.Position
	CowboyCount() int
	CowboyTeam(i int) int
	CowboyPosition(i int) entity.Position
	BulletCount() int
	BulletTeam(i int) int
	BulletPosition(i int) entity.Position

	Distance(c *entity.Cowboy, p entity.Position) int
	FirstStep(c *entity.Cowboy, p entity.Position) int
}

// Block is implemented only by the node types of this package.
type Block interface {
	Type() string
	structure() *node
}

// Expr is a block that yields a value.
type Expr interface {
	Block
	ResultKind() value.Kind
	Eval(r *Run) (value.Value, error)
}

// Stmt is a block that may produce an action. A nil action means "fall
// through to whatever comes next".
type Stmt interface {
	Block
	Exec(r *Run) (*actions.Action, error)
}

type namedExpr struct {
	name string
	expr Expr
}

type namedStmt struct {
	name string
	stmt Stmt
}

// node keeps the source layout of a block so a tree can be written back out.
type node struct {
	kind       string
	mutation   map[string]string
	fields     []Field
	values     []namedExpr
	statements []namedStmt
	next       Stmt
}

func (n *node) Type() string     { return n.kind }
func (n *node) structure() *node { return n }

// Next returns the statement chained after this one, if any.
func (n *node) Next() Stmt { return n.next }

func (n *node) proceed(r *Run) (*actions.Action, error) {
	if n.next == nil {
		return nil, nil
	}
	return n.next.Exec(r)
}

// Run is the mutable state of one program execution.
type Run struct {
	Budget int
	Steps  int
	Vars   map[string]value.Value
	World  World
	Actor  entity.Actor
}

func NewRun(budget int, vars map[string]value.Value, w World, actor entity.Actor) *Run {
	if vars == nil {
		vars = map[string]value.Value{}
	}
	return &Run{Budget: budget, Vars: vars, World: w, Actor: actor}
}

// charge books one step. Steps never exceeds Budget.
func (r *Run) charge() error {
	if r.Steps >= r.Budget {
		return ErrOutOfSteps
	}
	r.Steps++
	return nil
}

func (r *Run) cowboy(kind string) (*entity.Cowboy, error) {
	c, ok := r.Actor.(*entity.Cowboy)
	if !ok {
		return nil, faultf(kind, "actor is not a cowboy")
	}
	return c, nil
}

func (r *Run) bullet(kind string) (*entity.Bullet, error) {
	b, ok := r.Actor.(*entity.Bullet)
	if !ok {
		return nil, faultf(kind, "actor is not a bullet")
	}
	return b, nil
}

func (r *Run) position(kind string) (entity.Position, error) {
	if r.Actor == nil {
		return entity.Position{}, faultf(kind, "no actor")
	}
	p, ok := r.Actor.Location()
	if !ok {
		return entity.Position{}, faultf(kind, "actor is not on the grid")
	}
	return p, nil
}

func evalKind(r *Run, e Expr, k value.Kind) (value.Value, error) {
	v, err := e.Eval(r)
	if err != nil {
		return v, err
	}
	if v.Kind != k {
		return v, faultf(e.Type(), "got %s, want %s", v.Kind, k)
	}
	return v, nil
}

func evalInt(r *Run, e Expr) (int, error) {
	v, err := evalKind(r, e, value.Int)
	return v.I, err
}

func evalBool(r *Run, e Expr) (bool, error) {
	v, err := evalKind(r, e, value.Bool)
	return v.B, err
}

func evalPos(r *Run, e Expr) (entity.Position, error) {
	v, err := evalKind(r, e, value.Position)
	return v.P, err
}
