// Package grid is the toroidal game board: walls, gold, cowboys and
// bullets, the two kinds of sub-turn that move them, and the path queries
// programs can ask.
//
// A Grid is not safe for concurrent use. Callers serialize every sub-turn
// and every read of its state behind one lock.
package grid

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"

	"cowboys.arena/internal/lang/program"
	"cowboys.arena/internal/sim/actions"
	"cowboys.arena/internal/sim/entity"
)

// Rules are the scoring and pacing constants of a game.
type Rules struct {
	BulletPrice    int
	GoldPrice      int
	ShotdownBounty int
	TurnsToRespawn int
	BulletLifetime int
	CowboyMaxSteps int
	BulletMaxSteps int
}

func DefaultRules() Rules {
	return Rules{
		BulletPrice:    1,
		GoldPrice:      10,
		ShotdownBounty: 5,
		TurnsToRespawn: 5,
		BulletLifetime: 9,
		CowboyMaxSteps: 6000,
		BulletMaxSteps: 2000,
	}
}

type Config struct {
	Width          int
	Height         int
	Teams          int
	CowboysPerTeam int
	// GoldCount golds are kept on the board at all times.
	GoldCount int
	// (Width*Height)/WallFraction wall clusters of at most ClusterMax cells
	// are generated. Zero disables walls.
	WallFraction int
	ClusterMax   int
	Rules        Rules
	Seed         int64
	Logger       *log.Logger
}

// Programs hands out the active program of each team.
type Programs interface {
	CowboyProgram(team int) *program.Program
	BulletProgram(team int) *program.Program
}

var (
	ErrTeamCountMismatch = errors.New("team count mismatch")
	ErrBadConfig         = errors.New("bad grid config")
	ErrNoFreeCell        = errors.New("no free cell")
)

type respawn struct {
	turn   int
	cowboy *entity.Cowboy
}

type Grid struct {
	cfg    Config
	rules  Rules
	width  int
	height int
	// infty is larger than any path length on the board.
	infty  int
	rng    *rand.Rand
	logger *log.Logger

	walls    []bool
	cowboyAt []*entity.Cowboy
	bulletAt []*entity.Bullet
	goldAt   []*entity.Gold

	cowboys []*entity.Cowboy
	bullets []*entity.Bullet
	golds   []*entity.Gold
	// active is the acting order of the current cowboy sub-turn; cowboys
	// shot during the sub-turn are removed from it.
	active   []*entity.Cowboy
	respawns []respawn

	stats      []entity.TeamStats
	explosions []entity.Position
	triggers   []entity.GunTrigger
	turn       int
	subturn    int

	distCache map[entity.Position][]int
}

func validate(cfg *Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: width and height must be positive", ErrBadConfig)
	}
	if cfg.Teams < 0 || cfg.CowboysPerTeam < 0 || cfg.GoldCount < 0 {
		return fmt.Errorf("%w: negative counts", ErrBadConfig)
	}
	if cfg.ClusterMax <= 0 {
		cfg.ClusterMax = 5
	}
	if cfg.Rules == (Rules{}) {
		cfg.Rules = DefaultRules()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return nil
}

// NewBlank returns an empty board of the configured size: no walls, no
// units, no gold. Tools and tests populate it with the Place methods.
func NewBlank(cfg Config) (*Grid, error) {
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	g := &Grid{
		cfg:       cfg,
		rules:     cfg.Rules,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		logger:    cfg.Logger,
		distCache: map[entity.Position][]int{},
	}
	g.resize(cfg.Width, cfg.Height)
	g.stats = make([]entity.TeamStats, cfg.Teams)
	for i := range g.stats {
		g.stats[i] = entity.NewTeamStats(cfg.Teams)
	}
	return g, nil
}

// New generates a fresh game: connected walls, every cowboy on a free cell
// and all golds placed.
func New(cfg Config) (*Grid, error) {
	g, err := NewBlank(cfg)
	if err != nil {
		return nil, err
	}
	if err := g.generateWalls(); err != nil {
		return nil, err
	}
	for team := 0; team < cfg.Teams; team++ {
		for i := 0; i < cfg.CowboysPerTeam; i++ {
			p, err := g.randomFreePosition()
			if err != nil {
				return nil, err
			}
			g.PlaceCowboy(team, p)
		}
	}
	for i := 0; i < cfg.GoldCount; i++ {
		gold := &entity.Gold{}
		g.golds = append(g.golds, gold)
		g.spawnGold(gold)
	}
	return g, nil
}

func (g *Grid) resize(w, h int) {
	g.width, g.height = w, h
	g.infty = 2 * w * h
	g.walls = make([]bool, w*h)
	g.cowboyAt = make([]*entity.Cowboy, w*h)
	g.bulletAt = make([]*entity.Bullet, w*h)
	g.goldAt = make([]*entity.Gold, w*h)
	g.distCache = map[entity.Position][]int{}
}

func (g *Grid) idx(p entity.Position) int { return p.Y*g.width + p.X }

func (g *Grid) at(i int) entity.Position {
	return entity.Position{X: i % g.width, Y: i / g.width}
}

func (g *Grid) step(p entity.Position, d actions.Direction) entity.Position {
	return p.Step(d, g.width, g.height)
}

// PlaceWall puts a wall on p. Existing walls are kept.
func (g *Grid) PlaceWall(p entity.Position) {
	g.walls[g.idx(p)] = true
	g.distCache = map[entity.Position][]int{}
}

// PlaceCowboy adds a cowboy of team at p with the team's lowest free index.
func (g *Grid) PlaceCowboy(team int, p entity.Position) *entity.Cowboy {
	used := map[int]bool{}
	for _, c := range g.cowboys {
		if c.Team == team {
			used[c.Index] = true
		}
	}
	index := 0
	for used[index] {
		index++
	}
	c := &entity.Cowboy{Team: team, Index: index, Pos: p, OnGrid: true}
	g.cowboys = append(g.cowboys, c)
	g.cowboyAt[g.idx(p)] = c
	return c
}

func (g *Grid) PlaceGold(p entity.Position) *entity.Gold {
	gold := &entity.Gold{Pos: p, OnGrid: true}
	g.golds = append(g.golds, gold)
	g.goldAt[g.idx(p)] = gold
	return gold
}

// PlaceBullet adds a bullet as if it had just been fired.
func (g *Grid) PlaceBullet(team int, p entity.Position, d actions.Direction) *entity.Bullet {
	b := &entity.Bullet{Team: team, Pos: p, OnGrid: true, Dir: d}
	g.bullets = append(g.bullets, b)
	g.bulletAt[g.idx(p)] = b
	return b
}

func (g *Grid) Rules() Rules { return g.rules }

// Subturn is the number of bullet sub-turns played since the last cowboy
// sub-turn.
func (g *Grid) Subturn() int { return g.subturn }

func (g *Grid) Teams() int { return len(g.stats) }

// Stats returns a copy of the per-team statistics.
func (g *Grid) Stats() []entity.TeamStats {
	out := make([]entity.TeamStats, len(g.stats))
	for i, s := range g.stats {
		s.Kills = append([]int(nil), s.Kills...)
		out[i] = s
	}
	return out
}

func (g *Grid) Cowboys() []entity.Cowboy {
	out := make([]entity.Cowboy, len(g.cowboys))
	for i, c := range g.cowboys {
		out[i] = *c
	}
	return out
}

func (g *Grid) Bullets() []entity.Bullet {
	out := make([]entity.Bullet, len(g.bullets))
	for i, b := range g.bullets {
		out[i] = *b
	}
	return out
}

// Golds returns the cells of every gold on the board.
func (g *Grid) Golds() []entity.Position {
	var out []entity.Position
	for _, gold := range g.golds {
		if gold.OnGrid {
			out = append(out, gold.Pos)
		}
	}
	return out
}

func (g *Grid) Walls() []entity.Position {
	var out []entity.Position
	for i, w := range g.walls {
		if w {
			out = append(out, g.at(i))
		}
	}
	return out
}

func (g *Grid) Explosions() []entity.Position {
	return append([]entity.Position(nil), g.explosions...)
}

func (g *Grid) Triggers() []entity.GunTrigger {
	return append([]entity.GunTrigger(nil), g.triggers...)
}

// PendingRespawns is the number of cowboys waiting to come back.
func (g *Grid) PendingRespawns() int { return len(g.respawns) }
