package grid

import (
	"fmt"

	"cowboys.arena/internal/sim/actions"
	"cowboys.arena/internal/sim/entity"
)

const maxWallAttempts = 100

// bfs returns the step distance from the seed cells to every cell, moving in
// dirs and never entering walls. Unreached cells hold g.infty.
func (g *Grid) bfs(seeds []entity.Position, dirs []actions.Direction) []int {
	dist := make([]int, g.width*g.height)
	for i := range dist {
		dist[i] = g.infty
	}
	queue := make([]entity.Position, 0, len(seeds))
	for _, s := range seeds {
		if dist[g.idx(s)] == 0 {
			continue
		}
		dist[g.idx(s)] = 0
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range dirs {
			n := g.step(p, d)
			i := g.idx(n)
			if g.walls[i] || dist[i] != g.infty {
				continue
			}
			dist[i] = dist[g.idx(p)] + 1
			queue = append(queue, n)
		}
	}
	return dist
}

// connected reports whether every free cell is reachable from every other by
// cowboy moves.
func (g *Grid) connected() bool {
	start := -1
	for i, w := range g.walls {
		if !w {
			start = i
			break
		}
	}
	if start < 0 {
		return true
	}
	dist := g.bfs([]entity.Position{g.at(start)}, actions.Cowboy[:])
	for i, w := range g.walls {
		if !w && dist[i] == g.infty {
			return false
		}
	}
	return true
}

// generateWalls drops random wall clusters until the free cells form one
// 4-connected region.
func (g *Grid) generateWalls() error {
	if g.cfg.WallFraction <= 0 {
		return nil
	}
	clusters := g.width * g.height / g.cfg.WallFraction
	for attempt := 0; attempt < maxWallAttempts; attempt++ {
		for i := range g.walls {
			g.walls[i] = false
		}
		for c := 0; c < clusters; c++ {
			p := entity.Position{X: g.rng.Intn(g.width), Y: g.rng.Intn(g.height)}
			d := g.rng.Intn(4)
			for i := 0; i < g.cfg.ClusterMax; i++ {
				switch g.rng.Intn(6) {
				case 0:
					d++
				case 1:
					d += 3
				}
				p = g.step(p, actions.Cowboy[d%4])
				g.walls[g.idx(p)] = true
				if g.rng.Intn(g.cfg.ClusterMax-i) == 0 {
					break
				}
			}
		}
		if g.connected() {
			g.distCache = map[entity.Position][]int{}
			return nil
		}
	}
	return fmt.Errorf("%w: walls still disconnected after %d attempts", ErrBadConfig, maxWallAttempts)
}

func (g *Grid) free(i int) bool {
	return !g.walls[i] && g.cowboyAt[i] == nil && g.bulletAt[i] == nil && g.goldAt[i] == nil
}

// randomFreePosition searches outward from a random cell for the nearest
// completely empty one.
func (g *Grid) randomFreePosition() (entity.Position, error) {
	start := entity.Position{X: g.rng.Intn(g.width), Y: g.rng.Intn(g.height)}
	seen := make([]bool, g.width*g.height)
	seen[g.idx(start)] = true
	queue := []entity.Position{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if g.free(g.idx(p)) {
			return p, nil
		}
		for _, d := range actions.All {
			n := g.step(p, d)
			if !seen[g.idx(n)] {
				seen[g.idx(n)] = true
				queue = append(queue, n)
			}
		}
	}
	return entity.Nowhere, ErrNoFreeCell
}

// spawnGold places gold on a random reachable cell, weighting each cell by
// its distance to the nearest gold or cowboy. It reports false when no cell
// qualifies; the gold then stays off the board until the next attempt.
func (g *Grid) spawnGold(gold *entity.Gold) bool {
	var seeds []entity.Position
	for i := range g.walls {
		if g.goldAt[i] != nil || g.cowboyAt[i] != nil {
			seeds = append(seeds, g.at(i))
		}
	}
	if len(seeds) == 0 {
		p, err := g.randomFreePosition()
		if err != nil {
			g.logger.Printf("no cell for gold: %v", err)
			return false
		}
		g.putGold(gold, p)
		return true
	}
	dist := g.bfs(seeds, actions.All[:])
	total := 0
	for _, d := range dist {
		if d < g.infty {
			total += d
		}
	}
	if total == 0 {
		g.logger.Printf("no cell for gold")
		return false
	}
	r := g.rng.Intn(total)
	for x := 0; x < g.width; x++ {
		for y := 0; y < g.height; y++ {
			p := entity.Position{X: x, Y: y}
			d := dist[g.idx(p)]
			if d >= g.infty {
				continue
			}
			if d > r {
				g.putGold(gold, p)
				return true
			}
			r -= d
		}
	}
	return false
}

func (g *Grid) putGold(gold *entity.Gold, p entity.Position) {
	gold.Pos, gold.OnGrid = p, true
	g.goldAt[g.idx(p)] = gold
}

// spawnCowboy puts a cowboy back on the empty reachable cell farthest from
// all cowboys and golds, picking uniformly among ties.
func (g *Grid) spawnCowboy(c *entity.Cowboy) bool {
	var seeds []entity.Position
	for i := range g.walls {
		if g.goldAt[i] != nil || g.cowboyAt[i] != nil {
			seeds = append(seeds, g.at(i))
		}
	}
	var candidates []entity.Position
	if len(seeds) == 0 {
		for i := range g.walls {
			if g.free(i) {
				candidates = append(candidates, g.at(i))
			}
		}
	} else {
		dist := g.bfs(seeds, actions.Cowboy[:])
		best := -1
		for i, d := range dist {
			if d >= g.infty || !g.free(i) {
				continue
			}
			switch {
			case d > best:
				best = d
				candidates = append(candidates[:0], g.at(i))
			case d == best:
				candidates = append(candidates, g.at(i))
			}
		}
	}
	if len(candidates) == 0 {
		return false
	}
	p := candidates[g.rng.Intn(len(candidates))]
	c.Pos, c.OnGrid = p, true
	g.cowboyAt[g.idx(p)] = c
	g.logger.Printf("respawned %s", c)
	return true
}
