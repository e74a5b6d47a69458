package grid

import (
	"cowboys.arena/internal/sim/entity"
)

func (g *Grid) Width() int          { return g.width }
func (g *Grid) Height() int         { return g.height }
func (g *Grid) Turn() int           { return g.turn }
func (g *Grid) BulletLifetime() int { return g.rules.BulletLifetime }

func (g *Grid) Points(team int) int {
	if team < 0 || team >= len(g.stats) {
		return 0
	}
	return g.stats[team].Points
}

// ActorID is the actor's index in the current acting order: the shuffled
// cowboy list or the bullet list. Units not in that order get -1.
func (g *Grid) ActorID(a entity.Actor) int {
	switch a := a.(type) {
	case *entity.Cowboy:
		for i, c := range g.active {
			if c == a {
				return i
			}
		}
	case *entity.Bullet:
		for i, b := range g.bullets {
			if b == a {
				return i
			}
		}
	}
	return -1
}

func (g *Grid) Has(layer entity.Layer, p entity.Position) bool {
	if !p.InBounds(g.width, g.height) {
		return false
	}
	i := g.idx(p)
	switch layer {
	case entity.LayerWall:
		return g.walls[i]
	case entity.LayerGold:
		return g.goldAt[i] != nil
	case entity.LayerCowboy:
		return g.cowboyAt[i] != nil
	case entity.LayerBullet:
		return g.bulletAt[i] != nil
	}
	return false
}

func (g *Grid) GoldCount() int {
	n := 0
	for _, gold := range g.golds {
		if gold.OnGrid {
			n++
		}
	}
	return n
}

// GoldPosition is the i-th gold on the board, counting only placed ones.
func (g *Grid) GoldPosition(i int) entity.Position {
	for _, gold := range g.golds {
		if !gold.OnGrid {
			continue
		}
		if i == 0 {
			return gold.Pos
		}
		i--
	}
	return entity.Nowhere
}

func (g *Grid) CowboyCount() int { return len(g.active) }

func (g *Grid) CowboyTeam(i int) int {
	if i < 0 || i >= len(g.active) {
		return -1
	}
	return g.active[i].Team
}

func (g *Grid) CowboyPosition(i int) entity.Position {
	if i < 0 || i >= len(g.active) {
		return entity.Nowhere
	}
	return g.active[i].Pos
}

func (g *Grid) BulletCount() int { return len(g.bullets) }

func (g *Grid) BulletTeam(i int) int {
	if i < 0 || i >= len(g.bullets) {
		return -1
	}
	return g.bullets[i].Team
}

func (g *Grid) BulletPosition(i int) entity.Position {
	if i < 0 || i >= len(g.bullets) {
		return entity.Nowhere
	}
	return g.bullets[i].Pos
}
