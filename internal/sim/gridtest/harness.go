// Package gridtest drives a grid through its exported API with fixed
// programs per team, for scenario tests outside the grid package.
package gridtest

import (
	"fmt"
	"testing"

	"cowboys.arena/internal/lang/blocks"
	"cowboys.arena/internal/lang/parser"
	"cowboys.arena/internal/lang/program"
	"cowboys.arena/internal/sim/grid"
)

const ns = `xmlns="https://developers.google.com/blockly/xml"`

// Doc wraps block XML into a program document without variables.
func Doc(body string) string { return "<xml " + ns + ">" + body + "</xml>" }

func Move(dir string) string {
	return Doc(fmt.Sprintf(`<block type="move_direction"><field name="DIRECTION">%s</field></block>`, dir))
}

func Fire(dir string) string {
	return Doc(fmt.Sprintf(`<block type="fire_direction"><field name="DIRECTION">%s</field></block>`, dir))
}

func Bullet(kind string) string { return Doc(`<block type="` + kind + `"></block>`) }

// Harness holds a grid plus the programs its teams run. Teams without a
// program run the no-op program.
type Harness struct {
	T *testing.T
	G *grid.Grid

	cowboy map[int]*program.Program
	bullet map[int]*program.Program
}

func NewHarness(t *testing.T, g *grid.Grid) *Harness {
	t.Helper()
	if g == nil {
		t.Fatalf("NewHarness: nil grid")
	}
	return &Harness{
		T:      t,
		G:      g,
		cowboy: map[int]*program.Program{},
		bullet: map[int]*program.Program{},
	}
}

// Blank builds an empty grid for hand-placed scenarios.
func Blank(t *testing.T, width, height, teams int) *grid.Grid {
	t.Helper()
	g, err := grid.NewBlank(grid.Config{Width: width, Height: height, Teams: teams})
	if err != nil {
		t.Fatalf("grid.NewBlank: %v", err)
	}
	return g
}

func (h *Harness) SetCowboy(team int, src string) {
	h.T.Helper()
	h.cowboy[team] = h.parse(src, blocks.CowboyCatalog())
}

func (h *Harness) SetBullet(team int, src string) {
	h.T.Helper()
	h.bullet[team] = h.parse(src, blocks.BulletCatalog())
}

func (h *Harness) parse(src string, cat *blocks.Catalog) *program.Program {
	h.T.Helper()
	p, err := parser.Parse(src, cat)
	if err != nil {
		h.T.Fatalf("parse %s program: %v", cat.Name(), err)
	}
	return p
}

func (h *Harness) CowboyProgram(team int) *program.Program {
	if p, ok := h.cowboy[team]; ok {
		return p
	}
	return program.Nop()
}

func (h *Harness) BulletProgram(team int) *program.Program {
	if p, ok := h.bullet[team]; ok {
		return p
	}
	return program.Nop()
}

func (h *Harness) Cowboys() grid.TurnReport { return h.G.SimulateCowboysTurn(h) }
func (h *Harness) Bullets() grid.TurnReport { return h.G.SimulateBulletsTurn(h) }

// Turn plays one full turn: the cowboy sub-turn and then n bullet
// sub-turns.
func (h *Harness) Turn(n int) {
	h.Cowboys()
	for i := 0; i < n; i++ {
		h.Bullets()
	}
}
