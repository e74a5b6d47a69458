package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cowboys.arena/internal/sim/grid"
)

type Tuning struct {
	Width          int   `yaml:"width"`
	Height         int   `yaml:"height"`
	CowboysPerTeam int   `yaml:"cowboys_per_team"`
	GoldCount      int   `yaml:"gold_count"`
	WallFraction   int   `yaml:"wall_fraction"`
	ClusterMax     int   `yaml:"cluster_max"`
	Seed           int64 `yaml:"seed"`

	BulletPrice    int `yaml:"bullet_price"`
	GoldPrice      int `yaml:"gold_price"`
	ShotdownBounty int `yaml:"shotdown_bounty"`
	TurnsToRespawn int `yaml:"turns_to_respawn"`
	BulletLifetime int `yaml:"bullet_lifetime"`
	CowboyMaxSteps int `yaml:"cowboy_max_steps"`
	BulletMaxSteps int `yaml:"bullet_max_steps"`

	Timer Timer `yaml:"timer"`
	// ResultsHistory is how many sub-turns of action results a team can
	// read back.
	ResultsHistory int `yaml:"results_history"`
	// CheckpointEveryTurns archives a turn snapshot every that many turns;
	// 0 disables checkpoints.
	CheckpointEveryTurns int `yaml:"checkpoint_every_turns"`

	Org   Account   `yaml:"org"`
	Teams []Account `yaml:"teams"`
}

type Timer struct {
	CowboyTurnPeriodMs int `yaml:"cowboy_turn_period_ms"`
	BulletTurnPeriodMs int `yaml:"bullet_turn_period_ms"`
	BulletTurns        int `yaml:"bullet_turns"`
}

func (t Timer) CowboyPeriod() time.Duration {
	return time.Duration(t.CowboyTurnPeriodMs) * time.Millisecond
}

func (t Timer) BulletPeriod() time.Duration {
	return time.Duration(t.BulletTurnPeriodMs) * time.Millisecond
}

type Account struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

func Defaults() Tuning {
	r := grid.DefaultRules()
	return Tuning{
		Width:          40,
		Height:         30,
		CowboysPerTeam: 3,
		GoldCount:      5,
		WallFraction:   20,
		ClusterMax:     5,
		Seed:           1,

		BulletPrice:    r.BulletPrice,
		GoldPrice:      r.GoldPrice,
		ShotdownBounty: r.ShotdownBounty,
		TurnsToRespawn: r.TurnsToRespawn,
		BulletLifetime: r.BulletLifetime,
		CowboyMaxSteps: r.CowboyMaxSteps,
		BulletMaxSteps: r.BulletMaxSteps,

		Timer:          Timer{CowboyTurnPeriodMs: 1000, BulletTurnPeriodMs: 250, BulletTurns: 3},
		ResultsHistory: 10,
		Org:            Account{Login: "org"},
	}
}

// Load reads path over Defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.Width <= 0 || t.Height <= 0:
		return errors.New("width and height must be positive")
	case t.CowboysPerTeam < 0 || t.GoldCount < 0:
		return errors.New("cowboys_per_team and gold_count must not be negative")
	case t.BulletLifetime <= 0:
		return errors.New("bullet_lifetime must be positive")
	case t.CowboyMaxSteps <= 0 || t.BulletMaxSteps <= 0:
		return errors.New("step budgets must be positive")
	case t.Timer.BulletTurns < 0:
		return errors.New("timer.bullet_turns must not be negative")
	case t.CheckpointEveryTurns < 0:
		return errors.New("checkpoint_every_turns must not be negative")
	}
	seen := map[string]bool{t.Org.Login: true}
	for i, a := range t.Teams {
		if a.Login == "" {
			return fmt.Errorf("teams[%d]: empty login", i)
		}
		if seen[a.Login] {
			return fmt.Errorf("teams[%d]: duplicate login %q", i, a.Login)
		}
		seen[a.Login] = true
	}
	return nil
}

func (t Tuning) Rules() grid.Rules {
	return grid.Rules{
		BulletPrice:    t.BulletPrice,
		GoldPrice:      t.GoldPrice,
		ShotdownBounty: t.ShotdownBounty,
		TurnsToRespawn: t.TurnsToRespawn,
		BulletLifetime: t.BulletLifetime,
		CowboyMaxSteps: t.CowboyMaxSteps,
		BulletMaxSteps: t.BulletMaxSteps,
	}
}

// GridConfig is the board configuration for the configured teams.
func (t Tuning) GridConfig() grid.Config {
	return grid.Config{
		Width:          t.Width,
		Height:         t.Height,
		Teams:          len(t.Teams),
		CowboysPerTeam: t.CowboysPerTeam,
		GoldCount:      t.GoldCount,
		WallFraction:   t.WallFraction,
		ClusterMax:     t.ClusterMax,
		Rules:          t.Rules(),
		Seed:           t.Seed,
	}
}
