package actions

import "testing"

func TestDirectionTable(t *testing.T) {
	if len(All) != Count {
		t.Fatalf("expected %d directions", Count)
	}
	for i, d := range All {
		if int(d) != i {
			t.Fatalf("direction %v at index %d", d, i)
		}
		dx, dy := d.Delta()
		back, ok := FromDelta(dx, dy)
		if !ok || back != d {
			t.Fatalf("FromDelta(%d,%d)=%v,%v want %v", dx, dy, back, ok, d)
		}
		ox, oy := d.Opposite().Delta()
		if ox != -dx || oy != -dy {
			t.Fatalf("opposite of %v is %v", d, d.Opposite())
		}
		if d.Left().Right() != d {
			t.Fatalf("left/right of %v do not cancel", d)
		}
	}
}

func TestNamesAndTurns(t *testing.T) {
	if d, ok := ByName("NE"); !ok || d != NE {
		t.Fatalf("ByName(NE)=%v,%v", d, ok)
	}
	if _, ok := CowboyByName("NE"); ok {
		t.Fatalf("NE must not be a cowboy direction")
	}
	if d, ok := CowboyByName("S"); !ok || d != S {
		t.Fatalf("CowboyByName(S)=%v,%v", d, ok)
	}
	if W.Left() != SW {
		t.Fatalf("W.Left()=%v", W.Left())
	}
	if SW.Right() != W {
		t.Fatalf("SW.Right()=%v", SW.Right())
	}
	if FromInt(-1) != SW || FromInt(12) != E {
		t.Fatalf("FromInt wrap broken")
	}
	if got := Fire(NE).String(); got != "FIRE(NE)" {
		t.Fatalf("Fire(NE).String()=%q", got)
	}
}
