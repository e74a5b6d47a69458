package grid_test

import (
	"testing"

	"cowboys.arena/internal/sim/entity"
	"cowboys.arena/internal/sim/gridtest"
)

func TestQueriesBeforeAndAfterTurn(t *testing.T) {
	g := gridtest.Blank(t, 8, 8, 2)
	a := g.PlaceCowboy(0, at(1, 1))
	b := g.PlaceCowboy(1, at(5, 5))
	g.PlaceGold(at(3, 3))

	if g.CowboyCount() != 0 {
		t.Fatalf("acting order exists before the first turn")
	}
	if g.ActorID(a) != -1 {
		t.Fatalf("ActorID before first turn = %d", g.ActorID(a))
	}

	h := gridtest.NewHarness(t, g)
	h.Cowboys()
	if g.CowboyCount() != 2 {
		t.Fatalf("cowboy count=%d", g.CowboyCount())
	}
	for _, c := range []*entity.Cowboy{a, b} {
		id := g.ActorID(c)
		if id < 0 || g.CowboyPosition(id) != c.Pos || g.CowboyTeam(id) != c.Team {
			t.Fatalf("id %d does not point back at %s", id, c)
		}
	}
	if g.CowboyPosition(2) != entity.Nowhere || g.CowboyTeam(-1) != -1 {
		t.Fatalf("out of range lookups must be empty")
	}
	if g.GoldCount() != 1 || g.GoldPosition(0) != at(3, 3) || g.GoldPosition(1) != entity.Nowhere {
		t.Fatalf("gold lookups wrong")
	}
	if !g.Has(entity.LayerCowboy, at(1, 1)) || g.Has(entity.LayerWall, at(1, 1)) || g.Has(entity.LayerGold, at(99, 1)) {
		t.Fatalf("layer lookups wrong")
	}
	if g.Points(5) != 0 || g.Turn() != 1 {
		t.Fatalf("points=%d turn=%d", g.Points(5), g.Turn())
	}
}

func TestChaseGoldWithFirstStep(t *testing.T) {
	g := gridtest.Blank(t, 9, 9, 1)
	g.PlaceCowboy(0, at(0, 0))
	g.PlaceGold(at(3, 2))
	g.PlaceWall(at(1, 0))
	h := gridtest.NewHarness(t, g)
	h.SetCowboy(0, gridtest.Doc(`<block type="move_direction_number"><value name="DIRECTION">`+
		`<block type="compute_first_step"><value name="POSITION">`+
		`<block type="info_gold_position"><value name="GOLD"><block type="math_number"><field name="NUM">0</field></block></value></block>`+
		`</value></block></value></block>`))

	for i := 0; i < 5; i++ {
		h.Cowboys()
	}
	if got := g.Stats()[0].Golds; got != 1 {
		t.Fatalf("golds collected=%d want 1", got)
	}
}
