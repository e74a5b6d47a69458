package entity

import (
	"fmt"

	"cowboys.arena/internal/sim/actions"
	"cowboys.arena/internal/sim/mathx"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Nowhere is what queries return for missing or out-of-range entities.
var Nowhere = Position{X: -1, Y: -1}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Step moves one cell in d on a width x height torus.
func (p Position) Step(d actions.Direction, width, height int) Position {
	dx, dy := d.Delta()
	return Position{X: mathx.Wrap(p.X+dx, width), Y: mathx.Wrap(p.Y+dy, height)}
}

func (p Position) InBounds(width, height int) bool {
	return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height
}

// Actor is a unit a program runs for.
type Actor interface {
	TeamIndex() int
	Location() (Position, bool)
}

type Cowboy struct {
	Team  int
	Index int // stable for the whole game
	Pos   Position
	// OnGrid is false while the cowboy waits for respawn.
	OnGrid bool
}

func (c *Cowboy) TeamIndex() int             { return c.Team }
func (c *Cowboy) Location() (Position, bool) { return c.Pos, c.OnGrid }

func (c *Cowboy) String() string {
	if !c.OnGrid {
		return fmt.Sprintf("Cowboy(team=%d,index=%d,position=none)", c.Team, c.Index)
	}
	return fmt.Sprintf("Cowboy(team=%d,index=%d,position=%s)", c.Team, c.Index, c.Pos)
}

type Bullet struct {
	Team      int
	Pos       Position
	OnGrid    bool
	Dir       actions.Direction
	TurnsMade int
}

func (b *Bullet) TeamIndex() int             { return b.Team }
func (b *Bullet) Location() (Position, bool) { return b.Pos, b.OnGrid }

func (b *Bullet) String() string {
	return fmt.Sprintf("Bullet(team=%d,position=%s,direction=%s,turns_made=%d)", b.Team, b.Pos, b.Dir, b.TurnsMade)
}

type Gold struct {
	Pos    Position
	OnGrid bool
}

// GunTrigger marks a cowboy that fired this turn, for rendering.
type GunTrigger struct {
	X   int               `json:"x"`
	Y   int               `json:"y"`
	Dir actions.Direction `json:"direction"`
}

type TeamStats struct {
	Points        int   `json:"points"`
	Golds         int   `json:"golds"`
	FiredBullets  int   `json:"fired_bullets"`
	Deaths        int   `json:"deaths"`
	Kills         []int `json:"kills"` // indexed by victim team
	KilledBullets int   `json:"killed_bullets"`
}

func NewTeamStats(teams int) TeamStats {
	return TeamStats{Kills: make([]int, teams)}
}

// Layer selects one of the grid's occupancy maps.
type Layer int

const (
	LayerWall Layer = iota
	LayerGold
	LayerCowboy
	LayerBullet
)

var layerNames = [...]string{"WALL", "GOLD", "COWBOY", "BULLET"}

func (l Layer) String() string {
	if l < 0 || int(l) >= len(layerNames) {
		return fmt.Sprintf("Layer(%d)", int(l))
	}
	return layerNames[l]
}

func LayerByName(name string) (Layer, bool) {
	for i, n := range layerNames {
		if n == name {
			return Layer(i), true
		}
	}
	return 0, false
}
