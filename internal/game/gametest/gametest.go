// Package gametest builds small running games for transport tests.
package gametest

import (
	"testing"

	"cowboys.arena/internal/game"
	"cowboys.arena/internal/sim/entity"
	"cowboys.arena/internal/sim/gridtest"
	"cowboys.arena/internal/sim/tuning"
	"cowboys.arena/internal/team"
)

// Accounts are the logins every game built here knows.
var Accounts = []tuning.Account{
	{Login: "red", Password: "red-pw"},
	{Login: "blue", Password: "blue-pw"},
}

var Org = tuning.Account{Login: "org", Password: "org-pw"}

// New returns a 6x6 board with one cowboy per team, red at (1,1) and blue
// at (4,4), saving snapshots into a temp dir.
func New(t *testing.T) *game.Game {
	t.Helper()
	g := gridtest.Blank(t, 6, 6, len(Accounts))
	g.PlaceCowboy(0, entity.Position{X: 1, Y: 1})
	g.PlaceCowboy(1, entity.Position{X: 4, Y: 4})

	reg, err := team.NewRegistry(t.TempDir(), Accounts, nil)
	if err != nil {
		t.Fatalf("team.NewRegistry: %v", err)
	}
	tune := tuning.Defaults()
	tune.Org = Org
	tune.Teams = Accounts
	gm, err := game.New(game.Config{Tuning: tune, SaveDir: t.TempDir()}, g, reg)
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	t.Cleanup(gm.Close)
	return gm
}
