package grid

import (
	"cowboys.arena/internal/lang/program"
	"cowboys.arena/internal/sim/actions"
	"cowboys.arena/internal/sim/entity"
)

const (
	KindCowboy = "cowboy"
	KindBullet = "bullet"
)

// ActorResult is one unit's program outcome in a sub-turn.
type ActorResult struct {
	Position entity.Position `json:"position"`
	// Index is the cowboy's stable index; bullets report -1.
	Index  int    `json:"index"`
	OK     bool   `json:"ok"`
	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
	Steps  int    `json:"steps"`
}

// TurnReport lists what every unit's program did in one sub-turn, grouped
// by team. Turn and Subturn are the counters after the sub-turn.
type TurnReport struct {
	Kind    string          `json:"kind"`
	Turn    int             `json:"turn"`
	Subturn int             `json:"subturn"`
	Teams   [][]ActorResult `json:"teams"`
}

func newReport(kind string, teams int) TurnReport {
	return TurnReport{Kind: kind, Teams: make([][]ActorResult, teams)}
}

func (r *TurnReport) add(team int, at entity.Position, index int, res program.Result) {
	ar := ActorResult{Position: at, Index: index, OK: res.OK, Steps: res.Steps, Detail: res.Detail}
	if res.OK {
		ar.Action = res.Action.String()
	} else {
		ar.Error = res.Message
	}
	if team >= 0 && team < len(r.Teams) {
		r.Teams[team] = append(r.Teams[team], ar)
	}
}

// SimulateCowboysTurn brings back due cowboys, runs every cowboy's program
// once in random order, applies the actions and re-spawns taken gold.
func (g *Grid) SimulateCowboysTurn(progs Programs) TurnReport {
	g.explosions = nil
	g.triggers = nil
	g.distCache = map[entity.Position][]int{}
	g.respawnDue()

	g.active = g.active[:0]
	for _, c := range g.cowboys {
		if c.OnGrid {
			g.active = append(g.active, c)
		}
	}
	g.rng.Shuffle(len(g.active), func(i, j int) { g.active[i], g.active[j] = g.active[j], g.active[i] })

	report := newReport(KindCowboy, g.Teams())
	var taken []*entity.Gold
	order := append([]*entity.Cowboy(nil), g.active...)
	for _, c := range order {
		if !c.OnGrid {
			continue
		}
		res := progs.CowboyProgram(c.Team).Execute(g.rules.CowboyMaxSteps, g, c)
		report.add(c.Team, c.Pos, c.Index, res)
		if !res.OK {
			continue
		}
		switch res.Action.Type {
		case actions.TypeMove:
			if gold := g.moveCowboy(c, res.Action.Dir); gold != nil {
				taken = append(taken, gold)
			}
		case actions.TypeFire:
			g.fire(c, res.Action.Dir)
		}
	}

	for _, gold := range taken {
		g.spawnGold(gold)
	}
	for _, gold := range g.golds {
		if !gold.OnGrid {
			g.spawnGold(gold)
		}
	}
	g.turn++
	g.subturn = 0
	report.Turn, report.Subturn = g.turn, g.subturn
	return report
}

// moveCowboy applies a MOVE. It returns the gold picked up, if any.
func (g *Grid) moveCowboy(c *entity.Cowboy, d actions.Direction) *entity.Gold {
	dst := g.step(c.Pos, d)
	i := g.idx(dst)
	if g.walls[i] || g.cowboyAt[i] != nil {
		return nil
	}
	g.cowboyAt[g.idx(c.Pos)] = nil
	c.Pos = dst
	g.cowboyAt[i] = c
	if b := g.bulletAt[i]; b != nil {
		g.bulletHit(b, c)
		return nil
	}
	gold := g.goldAt[i]
	if gold == nil {
		return nil
	}
	g.goldAt[i] = nil
	gold.OnGrid = false
	st := &g.stats[c.Team]
	st.Golds++
	st.Points += g.rules.GoldPrice
	return gold
}

func (g *Grid) fire(c *entity.Cowboy, d actions.Direction) {
	st := &g.stats[c.Team]
	st.Points -= g.rules.BulletPrice
	st.FiredBullets++
	g.triggers = append(g.triggers, entity.GunTrigger{X: c.Pos.X, Y: c.Pos.Y, Dir: d})

	muzzle := g.step(c.Pos, d)
	i := g.idx(muzzle)
	if g.walls[i] || g.bulletAt[i] != nil {
		g.explosions = append(g.explosions, muzzle)
		if other := g.bulletAt[i]; other != nil {
			g.removeBullet(other)
		}
		return
	}
	b := g.PlaceBullet(c.Team, muzzle, d)
	if victim := g.cowboyAt[i]; victim != nil {
		g.bulletHit(b, victim)
	}
}

// SimulateBulletsTurn runs every bullet's program once, then flies each
// bullet one cell.
func (g *Grid) SimulateBulletsTurn(progs Programs) TurnReport {
	g.explosions = nil
	report := newReport(KindBullet, g.Teams())
	order := append([]*entity.Bullet(nil), g.bullets...)
	for _, b := range order {
		if !b.OnGrid {
			continue
		}
		res := progs.BulletProgram(b.Team).Execute(g.rules.BulletMaxSteps, g, b)
		report.add(b.Team, b.Pos, -1, res)
		act := actions.Nop()
		if res.OK {
			act = res.Action
		}
		switch act.Type {
		case actions.TypeTurnLeft:
			b.Dir = b.Dir.Left()
		case actions.TypeTurnRight:
			b.Dir = b.Dir.Right()
		}
		g.flyBullet(b)
	}

	kept := g.triggers[:0]
	for _, t := range g.triggers {
		if g.cowboyAt[g.idx(entity.Position{X: t.X, Y: t.Y})] != nil {
			kept = append(kept, t)
		}
	}
	g.triggers = kept
	g.subturn++
	report.Turn, report.Subturn = g.turn, g.subturn
	return report
}

func (g *Grid) flyBullet(b *entity.Bullet) {
	dst := g.step(b.Pos, b.Dir)
	i := g.idx(dst)
	if g.walls[i] {
		g.removeBullet(b)
		g.explosions = append(g.explosions, dst)
		return
	}
	g.bulletAt[g.idx(b.Pos)] = nil
	b.Pos = dst
	if other := g.bulletAt[i]; other != nil {
		g.bulletCollision(b, other)
		return
	}
	if c := g.cowboyAt[i]; c != nil {
		g.bulletHit(b, c)
		return
	}
	g.bulletAt[i] = b
	b.TurnsMade++
	if b.TurnsMade >= g.rules.BulletLifetime {
		g.removeBullet(b)
	}
}

// bulletCollision destroys both bullets; each team is credited with the
// other's bullet.
func (g *Grid) bulletCollision(a, b *entity.Bullet) {
	g.stats[a.Team].KilledBullets++
	g.stats[b.Team].KilledBullets++
	g.removeBullet(a)
	g.removeBullet(b)
	g.explosions = append(g.explosions, b.Pos)
}

func (g *Grid) bulletHit(b *entity.Bullet, c *entity.Cowboy) {
	g.stats[b.Team].Kills[c.Team]++
	g.stats[c.Team].Deaths++
	if b.Team != c.Team {
		g.stats[b.Team].Points += g.rules.ShotdownBounty
	}
	g.removeBullet(b)
	at := c.Pos
	g.cowboyAt[g.idx(at)] = nil
	c.OnGrid = false
	for i, a := range g.active {
		if a == c {
			g.active = append(g.active[:i], g.active[i+1:]...)
			break
		}
	}
	g.respawns = append(g.respawns, respawn{turn: g.turn + g.rules.TurnsToRespawn, cowboy: c})
	g.explosions = append(g.explosions, at)
	g.logger.Printf("turn %d: %s shot by team %d", g.turn, c, b.Team)
}

// removeBullet takes b off the board and out of the bullet list. Only the
// cell it occupies is cleared, so a bullet in flight never erases another.
func (g *Grid) removeBullet(b *entity.Bullet) {
	if b.OnGrid && g.bulletAt[g.idx(b.Pos)] == b {
		g.bulletAt[g.idx(b.Pos)] = nil
	}
	b.OnGrid = false
	for i, o := range g.bullets {
		if o == b {
			g.bullets = append(g.bullets[:i], g.bullets[i+1:]...)
			return
		}
	}
}

// respawnDue brings back every queued cowboy whose turn has come. Cowboys
// that find no empty cell stay queued.
func (g *Grid) respawnDue() {
	var waiting []respawn
	rest := g.respawns
	for len(rest) > 0 && rest[0].turn <= g.turn {
		if !g.spawnCowboy(rest[0].cowboy) {
			waiting = append(waiting, rest[0])
		}
		rest = rest[1:]
	}
	g.respawns = append(waiting, rest...)
}
