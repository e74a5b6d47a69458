package actions

import (
	"fmt"

	"cowboys.arena/internal/sim/mathx"
)

// Direction indexes the 8-way compass table. Index 0 is west and the order
// runs clockwise, so the integer form round-trips through programs.
type Direction int

const (
	W Direction = iota
	NW
	N
	NE
	E
	SE
	S
	SW
)

const Count = 8

var deltas = [Count][2]int{
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1},
	{1, 0}, {1, -1}, {0, -1}, {-1, -1},
}

var names = [Count]string{"W", "NW", "N", "NE", "E", "SE", "S", "SW"}

// All is the 8-way table used for firing and bullet flight.
var All = [Count]Direction{W, NW, N, NE, E, SE, S, SW}

// Cowboy is the 4-way table used for cowboy movement.
var Cowboy = [4]Direction{W, N, E, S}

func (d Direction) Valid() bool { return d >= 0 && d < Count }

func (d Direction) Delta() (dx, dy int) {
	v := deltas[mathx.Mod(int(d), Count)]
	return v[0], v[1]
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return names[d]
}

func (d Direction) Opposite() Direction { return Direction(mathx.Mod(int(d)+4, Count)) }
func (d Direction) Left() Direction     { return Direction(mathx.Mod(int(d)-1, Count)) }
func (d Direction) Right() Direction    { return Direction(mathx.Mod(int(d)+1, Count)) }

// FromInt reduces an arbitrary program integer onto the 8-way table.
func FromInt(i int) Direction { return Direction(mathx.Mod(i, Count)) }

func ByName(name string) (Direction, bool) {
	for i, n := range names {
		if n == name {
			return Direction(i), true
		}
	}
	return 0, false
}

func CowboyByName(name string) (Direction, bool) {
	for _, d := range Cowboy {
		if names[d] == name {
			return d, true
		}
	}
	return 0, false
}

func FromDelta(dx, dy int) (Direction, bool) {
	for i, v := range deltas {
		if v[0] == dx && v[1] == dy {
			return Direction(i), true
		}
	}
	return 0, false
}

type Type int

const (
	TypeNop Type = iota
	TypeMove
	TypeFire
	TypeTurnLeft
	TypeTurnRight
)

func (t Type) String() string {
	switch t {
	case TypeNop:
		return "NOP"
	case TypeMove:
		return "MOVE"
	case TypeFire:
		return "FIRE"
	case TypeTurnLeft:
		return "TURN_LEFT"
	case TypeTurnRight:
		return "TURN_RIGHT"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Action is what a program hands back to the simulation. Dir is meaningful
// only for moves and shots.
type Action struct {
	Type Type
	Dir  Direction
}

func Nop() Action             { return Action{Type: TypeNop} }
func Move(d Direction) Action { return Action{Type: TypeMove, Dir: d} }
func Fire(d Direction) Action { return Action{Type: TypeFire, Dir: d} }
func TurnLeft() Action        { return Action{Type: TypeTurnLeft} }
func TurnRight() Action       { return Action{Type: TypeTurnRight} }
func (a Action) HasDir() bool { return a.Type == TypeMove || a.Type == TypeFire }

func (a Action) String() string {
	if a.HasDir() {
		return a.Type.String() + "(" + a.Dir.String() + ")"
	}
	return a.Type.String()
}
