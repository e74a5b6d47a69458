package game

import "cowboys.arena/internal/team"

// Program changes take the game lock so a sub-turn always sees one
// consistent set of active programs.

func (gm *Game) SaveProgram(t *team.Team, k team.Kind, req team.SaveRequest) (team.Info, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return t.Save(k, req)
}

func (gm *Game) ActivateProgram(t *team.Team, k team.Kind, id string) error {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return t.Activate(k, id)
}

func (gm *Game) DeleteProgram(t *team.Team, k team.Kind, id string) error {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return t.Delete(k, id)
}
