package grid

import (
	"fmt"
	"sort"

	"cowboys.arena/internal/persistence/snapshot"
	"cowboys.arena/internal/sim/actions"
	"cowboys.arena/internal/sim/entity"
)

func pair(p entity.Position) [2]int { return [2]int{p.X, p.Y} }

func unpair(v [2]int) entity.Position { return entity.Position{X: v[0], Y: v[1]} }

// ExportSnapshot captures the whole board after the last sub-turn.
func (g *Grid) ExportSnapshot() snapshot.RoundV1 {
	teams := len(g.stats)
	s := snapshot.RoundV1{
		Header:        snapshot.Header{Version: snapshot.Version, Turn: g.turn, BulletSubturn: g.subturn},
		Width:         g.width,
		Height:        g.height,
		TurnIdx:       g.turn,
		BulletSubturn: g.subturn,

		TeamStatsPoints:        make([]int, teams),
		TeamStatsGolds:         make([]int, teams),
		TeamStatsFiredBullets:  make([]int, teams),
		TeamStatsDeaths:        make([]int, teams),
		TeamStatsKills:         make([][]int, teams),
		TeamStatsKilledBullets: make([]int, teams),

		Walls:          [][2]int{},
		Golds:          []*[2]int{},
		Cowboys:        []snapshot.CowboyV1{},
		Bullets:        []snapshot.BulletV1{},
		Explosions:     [][2]int{},
		ShotDirections: [][3]int{},
		RespawnQueue:   [][2]int{},
	}
	for i, st := range g.stats {
		s.TeamStatsPoints[i] = st.Points
		s.TeamStatsGolds[i] = st.Golds
		s.TeamStatsFiredBullets[i] = st.FiredBullets
		s.TeamStatsDeaths[i] = st.Deaths
		s.TeamStatsKills[i] = append([]int(nil), st.Kills...)
		s.TeamStatsKilledBullets[i] = st.KilledBullets
	}
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if g.walls[g.idx(entity.Position{X: x, Y: y})] {
				s.Walls = append(s.Walls, [2]int{x, y})
			}
		}
	}
	for _, gold := range g.golds {
		if !gold.OnGrid {
			s.Golds = append(s.Golds, nil)
			continue
		}
		p := pair(gold.Pos)
		s.Golds = append(s.Golds, &p)
	}
	slot := map[*entity.Cowboy]int{}
	for i, c := range g.cowboys {
		slot[c] = i
		cv := snapshot.CowboyV1{Team: c.Team, Index: c.Index}
		if c.OnGrid {
			p := pair(c.Pos)
			cv.Position = &p
		}
		s.Cowboys = append(s.Cowboys, cv)
	}
	for _, b := range g.bullets {
		s.Bullets = append(s.Bullets, snapshot.BulletV1{
			Team:      b.Team,
			Position:  pair(b.Pos),
			Direction: int(b.Dir),
			TurnsMade: b.TurnsMade,
		})
	}
	for _, e := range g.explosions {
		s.Explosions = append(s.Explosions, pair(e))
	}
	for _, t := range g.triggers {
		s.ShotDirections = append(s.ShotDirections, [3]int{t.X, t.Y, int(t.Dir)})
	}
	for _, r := range g.respawns {
		s.RespawnQueue = append(s.RespawnQueue, [2]int{r.turn, slot[r.cowboy]})
	}
	return s
}

// ImportSnapshot replaces the board with a saved round. The round may come
// from a game with other settings: golds beyond the configured count are
// dropped and missing ones spawned, cowboys beyond the per-team count are
// dropped and missing ones placed on free cells. The number of teams must
// match.
func (g *Grid) ImportSnapshot(s snapshot.RoundV1) error {
	if s.Teams() != len(g.stats) {
		return fmt.Errorf("%w: snapshot has %d teams, game has %d", ErrTeamCountMismatch, s.Teams(), len(g.stats))
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: snapshot is %dx%d", ErrBadConfig, s.Width, s.Height)
	}
	in := func(v [2]int) bool { return unpair(v).InBounds(s.Width, s.Height) }

	g.resize(s.Width, s.Height)
	g.turn, g.subturn = s.TurnIdx, s.BulletSubturn
	for i := range g.stats {
		st := entity.NewTeamStats(len(g.stats))
		st.Points = at(s.TeamStatsPoints, i)
		st.Golds = at(s.TeamStatsGolds, i)
		st.FiredBullets = at(s.TeamStatsFiredBullets, i)
		st.Deaths = at(s.TeamStatsDeaths, i)
		if i < len(s.TeamStatsKills) {
			copy(st.Kills, s.TeamStatsKills[i])
		}
		st.KilledBullets = at(s.TeamStatsKilledBullets, i)
		g.stats[i] = st
	}
	for _, w := range s.Walls {
		if in(w) {
			g.walls[g.idx(unpair(w))] = true
		}
	}

	g.cowboys, g.active, g.respawns = nil, nil, nil
	kept := map[int]*entity.Cowboy{}
	perTeam := make([]int, len(g.stats))
	for i, cv := range s.Cowboys {
		if cv.Team < 0 || cv.Team >= len(g.stats) || cv.Index >= g.cfg.CowboysPerTeam {
			continue
		}
		c := &entity.Cowboy{Team: cv.Team, Index: cv.Index}
		if cv.Position != nil && in(*cv.Position) && g.cowboyAt[g.idx(unpair(*cv.Position))] == nil {
			c.Pos, c.OnGrid = unpair(*cv.Position), true
			g.cowboyAt[g.idx(c.Pos)] = c
		}
		g.cowboys = append(g.cowboys, c)
		kept[i] = c
		perTeam[cv.Team]++
	}
	queued := map[*entity.Cowboy]bool{}
	for _, r := range s.RespawnQueue {
		c, ok := kept[r[1]]
		if !ok || c.OnGrid || queued[c] {
			continue
		}
		g.respawns = append(g.respawns, respawn{turn: r[0], cowboy: c})
		queued[c] = true
	}
	for _, c := range g.cowboys {
		if !c.OnGrid && !queued[c] {
			g.respawns = append(g.respawns, respawn{turn: g.turn, cowboy: c})
		}
	}
	sort.SliceStable(g.respawns, func(i, j int) bool { return g.respawns[i].turn < g.respawns[j].turn })

	g.bullets = nil
	for _, bv := range s.Bullets {
		if !in(bv.Position) || bv.Team < 0 || bv.Team >= len(g.stats) {
			continue
		}
		p := unpair(bv.Position)
		if g.bulletAt[g.idx(p)] != nil {
			continue
		}
		b := g.PlaceBullet(bv.Team, p, actions.FromInt(bv.Direction))
		b.TurnsMade = bv.TurnsMade
	}

	g.golds = nil
	for _, gv := range s.Golds {
		if len(g.golds) == g.cfg.GoldCount {
			break
		}
		gold := &entity.Gold{}
		g.golds = append(g.golds, gold)
		if gv != nil && in(*gv) && g.goldAt[g.idx(unpair(*gv))] == nil {
			g.putGold(gold, unpair(*gv))
		}
	}
	for len(g.golds) < g.cfg.GoldCount {
		g.golds = append(g.golds, &entity.Gold{})
	}
	for _, gold := range g.golds {
		if !gold.OnGrid {
			g.spawnGold(gold)
		}
	}

	for team, n := range perTeam {
		for ; n < g.cfg.CowboysPerTeam; n++ {
			p, err := g.randomFreePosition()
			if err != nil {
				return err
			}
			g.PlaceCowboy(team, p)
		}
	}

	g.explosions = nil
	for _, e := range s.Explosions {
		g.explosions = append(g.explosions, unpair(e))
	}
	g.triggers = nil
	for _, t := range s.ShotDirections {
		g.triggers = append(g.triggers, entity.GunTrigger{X: t[0], Y: t[1], Dir: actions.FromInt(t[2])})
	}
	return nil
}

func at(v []int, i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}
