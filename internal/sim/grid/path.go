package grid

import (
	"container/heap"

	"cowboys.arena/internal/sim/actions"
	"cowboys.arena/internal/sim/entity"
	"cowboys.arena/internal/sim/mathx"
)

// Metric estimates the remaining distance between two cells.
type Metric func(a, b entity.Position) int

func (g *Grid) coordDiffs(a, b entity.Position) (int, int) {
	return mathx.TorusDist(a.X, b.X, g.width), mathx.TorusDist(a.Y, b.Y, g.height)
}

// Manhattan is exact for 4-way movement on an empty torus.
func (g *Grid) Manhattan(a, b entity.Position) int {
	dx, dy := g.coordDiffs(a, b)
	return dx + dy
}

// Chebyshev is exact for 8-way movement on an empty torus.
func (g *Grid) Chebyshev(a, b entity.Position) int {
	dx, dy := g.coordDiffs(a, b)
	return mathx.MaxInt(dx, dy)
}

type pqItem struct {
	prio int
	dist int
	seq  int
	pos  entity.Position
}

type pq []pqItem

func (q pq) Len() int { return len(q) }

func (q pq) Less(i, j int) bool {
	if q[i].prio != q[j].prio {
		return q[i].prio < q[j].prio
	}
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}

func (q pq) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pq) Push(x any)   { *q = append(*q, x.(pqItem)) }

func (q *pq) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// AStar returns a distance field from start, moving in dirs around walls.
// The search stops as soon as goal is settled, so only cells closer than
// the goal are guaranteed exact. Unreached cells hold the grid's infinity.
func (g *Grid) AStar(start, goal entity.Position, dirs []actions.Direction, metric Metric) []int {
	dist := make([]int, g.width*g.height)
	for i := range dist {
		dist[i] = g.infty
	}
	dist[g.idx(start)] = 0
	q := &pq{{prio: metric(goal, start), pos: start}}
	seq := 1
	for q.Len() > 0 {
		it := heap.Pop(q).(pqItem)
		if it.pos == goal {
			return dist
		}
		if it.dist > dist[g.idx(it.pos)] {
			continue
		}
		for _, d := range dirs {
			n := g.step(it.pos, d)
			i := g.idx(n)
			if g.walls[i] || dist[i] <= it.dist+1 {
				continue
			}
			dist[i] = it.dist + 1
			heap.Push(q, pqItem{prio: it.dist + 1 + metric(goal, n), dist: it.dist + 1, seq: seq, pos: n})
			seq++
		}
	}
	g.logger.Printf("no path from %s to %s", start, goal)
	return dist
}

// Infinity is the distance value of unreachable cells.
func (g *Grid) Infinity() int { return g.infty }

// DistanceField is the full 4-way distance field from origin. Fields are
// cached for the current cowboy sub-turn only.
func (g *Grid) DistanceField(origin entity.Position) []int {
	if d, ok := g.distCache[origin]; ok {
		return d
	}
	d := g.bfs([]entity.Position{origin}, actions.Cowboy[:])
	g.distCache[origin] = d
	return d
}

// Distance is the number of cowboy moves from c to p, the board area when
// p is off the board, and infinity when there is no path. A single goal is
// searched with A* unless the full field from c is already cached.
func (g *Grid) Distance(c *entity.Cowboy, p entity.Position) int {
	if !p.InBounds(g.width, g.height) {
		return g.width * g.height
	}
	if c == nil || !c.OnGrid {
		return g.infty
	}
	if d, ok := g.distCache[c.Pos]; ok {
		return d[g.idx(p)]
	}
	return g.AStar(c.Pos, p, actions.Cowboy[:], g.Manhattan)[g.idx(p)]
}

// FirstStep is the 8-way direction index of the first move on a shortest
// path from c to p, or -1 when c is already there or no path exists.
func (g *Grid) FirstStep(c *entity.Cowboy, p entity.Position) int {
	if c == nil || !c.OnGrid || !p.InBounds(g.width, g.height) || c.Pos == p {
		return -1
	}
	dist := g.DistanceField(c.Pos)
	cur := p
	for n := 0; n < g.width*g.height; n++ {
		moved := false
		for _, d := range actions.Cowboy {
			next := g.step(cur, d)
			if dist[g.idx(next)] >= dist[g.idx(cur)] {
				continue
			}
			if next == c.Pos {
				dx, dy := d.Delta()
				back, _ := actions.FromDelta(-dx, -dy)
				return int(back)
			}
			cur, moved = next, true
			break
		}
		if !moved {
			break
		}
	}
	g.logger.Printf("no first step from %s to %s", c.Pos, p)
	return -1
}
