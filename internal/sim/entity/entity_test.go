package entity

import (
	"testing"

	"cowboys.arena/internal/sim/actions"
)

func TestStepWrapsAndReverses(t *testing.T) {
	sizes := [][2]int{{1, 1}, {3, 3}, {5, 2}, {7, 11}}
	for _, sz := range sizes {
		w, h := sz[0], sz[1]
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				p := Position{X: x, Y: y}
				for _, d := range actions.All {
					q := p.Step(d, w, h)
					if !q.InBounds(w, h) {
						t.Fatalf("%v step %v left the %dx%d grid: %v", p, d, w, h, q)
					}
					if back := q.Step(d.Opposite(), w, h); back != p {
						t.Fatalf("%v step %v then back gives %v on %dx%d", p, d, back, w, h)
					}
				}
			}
		}
	}
}

func TestStepCrossesEdges(t *testing.T) {
	p := Position{X: 0, Y: 0}
	if got := p.Step(actions.W, 4, 3); got != (Position{X: 3, Y: 0}) {
		t.Fatalf("W from origin: %v", got)
	}
	if got := p.Step(actions.SW, 4, 3); got != (Position{X: 3, Y: 2}) {
		t.Fatalf("SW from origin: %v", got)
	}
	if got := (Position{X: 3, Y: 2}).Step(actions.NE, 4, 3); got != p {
		t.Fatalf("NE from corner: %v", got)
	}
}

func TestActorLocation(t *testing.T) {
	c := &Cowboy{Team: 1, Index: 2, Pos: Position{X: 4, Y: 5}, OnGrid: true}
	var a Actor = c
	if p, ok := a.Location(); !ok || p != c.Pos {
		t.Fatalf("cowboy location: %v %v", p, ok)
	}
	c.OnGrid = false
	if _, ok := a.Location(); ok {
		t.Fatalf("expected off-grid cowboy")
	}
	if a.TeamIndex() != 1 {
		t.Fatalf("team index: %d", a.TeamIndex())
	}
}
