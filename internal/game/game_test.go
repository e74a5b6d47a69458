package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cowboys.arena/internal/persistence/archive"
	"cowboys.arena/internal/persistence/snapshot"
	"cowboys.arena/internal/sim/entity"
	"cowboys.arena/internal/sim/grid"
	"cowboys.arena/internal/sim/gridtest"
	"cowboys.arena/internal/sim/tuning"
	"cowboys.arena/internal/team"
)

type recorder struct {
	mu       sync.Mutex
	reports  []grid.TurnReport
	subturns int
	stats    int
	snaps    []string
	events   []Event
}

func (r *recorder) WriteResults(rep grid.TurnReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return nil
}

func (r *recorder) RecordSubturn(grid.TurnReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subturns++
}

func (r *recorder) RecordStats(int, int, []entity.TeamStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats++
}

func (r *recorder) RecordSnapshot(path string, _ snapshot.RoundV1) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, path)
}

func (r *recorder) OnSubturn(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type fixture struct {
	game *Game
	reg  *team.Registry
	rec  *recorder
	save string
}

func newFixture(t *testing.T, history int) *fixture {
	t.Helper()
	g := gridtest.Blank(t, 6, 6, 2)
	g.PlaceCowboy(0, entity.Position{X: 1, Y: 1})
	g.PlaceCowboy(1, entity.Position{X: 4, Y: 4})

	reg, err := team.NewRegistry(t.TempDir(), []tuning.Account{{Login: "red", Password: "r"}, {Login: "blue", Password: "b"}}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	tune := tuning.Defaults()
	tune.ResultsHistory = history
	save := t.TempDir()
	gm, err := New(Config{Tuning: tune, SaveDir: save}, g, reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &recorder{}
	gm.SetResultSink(rec)
	gm.SetIndex(rec)
	gm.AddListener(rec)
	return &fixture{game: gm, reg: reg, rec: rec, save: save}
}

func TestCowboysTurnPersistsAndPublishes(t *testing.T) {
	f := newFixture(t, 5)
	red, _ := f.reg.ByLogin("red")
	if _, err := f.game.SaveProgram(red, team.KindCowboy, team.SaveRequest{Name: "east", Source: gridtest.Move("E")}); err != nil {
		t.Fatalf("SaveProgram: %v", err)
	}

	rep, err := f.game.CowboysTurn()
	if err != nil {
		t.Fatalf("CowboysTurn: %v", err)
	}
	if rep.Turn != 1 || rep.Kind != grid.KindCowboy {
		t.Fatalf("report=%+v", rep)
	}

	rounds, err := f.game.Rounds()
	if err != nil || len(rounds) != 1 {
		t.Fatalf("rounds=%v err=%v", rounds, err)
	}
	if turn, sub, ok := snapshot.ParseFileName(rounds[0]); !ok || turn != 1 || sub != 0 {
		t.Fatalf("snapshot name %s", rounds[0])
	}
	st, err := f.game.Round(0)
	if err != nil {
		t.Fatalf("Round: %v", err)
	}
	live := f.game.State()
	if live.Turn != st.Turn || len(live.Cowboys) != len(st.Cowboys) {
		t.Fatalf("live state %+v differs from saved %+v", live, st)
	}
	found := false
	for _, c := range st.Cowboys {
		if c.Team == "red" && c.Position == [2]int{2, 1} {
			found = true
		}
	}
	if !found {
		t.Fatalf("red cowboy did not move east: %+v", st.Cowboys)
	}
	if _, err := f.game.Round(1); !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("Round(1): %v", err)
	}

	if len(f.rec.reports) != 1 || f.rec.subturns != 1 || f.rec.stats != 1 || len(f.rec.snaps) != 1 || len(f.rec.events) != 1 {
		t.Fatalf("sinks: reports=%d subturns=%d stats=%d snaps=%d events=%d",
			len(f.rec.reports), f.rec.subturns, f.rec.stats, len(f.rec.snaps), len(f.rec.events))
	}

	res, err := f.game.Results("red")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(res.Cowboy) != 1 || len(res.Bullet) != 0 {
		t.Fatalf("results=%+v", res)
	}
	if line := res.Cowboy[0].Lines[0]; !strings.Contains(line, "Cowboy at (1, 1): action MOVE(E)") {
		t.Fatalf("line=%q", line)
	}
	if _, err := f.game.Results("nobody"); !errors.Is(err, ErrUnknownTeam) {
		t.Fatalf("unknown team: %v", err)
	}
}

func TestResultsHistoryIsBounded(t *testing.T) {
	f := newFixture(t, 2)
	for i := 0; i < 3; i++ {
		if _, err := f.game.CowboysTurn(); err != nil {
			t.Fatalf("CowboysTurn: %v", err)
		}
		if _, err := f.game.BulletsTurn(); err != nil {
			t.Fatalf("BulletsTurn: %v", err)
		}
	}
	res, _ := f.game.Results("blue")
	if len(res.Cowboy) != 2 || len(res.Bullet) != 2 {
		t.Fatalf("history lengths cowboy=%d bullet=%d", len(res.Cowboy), len(res.Bullet))
	}
	if res.Cowboy[1].Turn != 3 || res.Bullet[1].Subturn != 1 {
		t.Fatalf("latest rounds %+v %+v", res.Cowboy[1], res.Bullet[1])
	}
}

func TestProgramChangesGoThroughGame(t *testing.T) {
	f := newFixture(t, 1)
	blue, _ := f.reg.ByLogin("blue")
	info, err := f.game.SaveProgram(blue, team.KindBullet, team.SaveRequest{Name: "left", Source: gridtest.Bullet("bullet_left")})
	if err != nil {
		t.Fatalf("SaveProgram: %v", err)
	}
	if err := f.game.DeleteProgram(blue, team.KindBullet, info.UUID); !errors.Is(err, team.ErrActive) {
		t.Fatalf("delete active: %v", err)
	}
	other, _ := f.game.SaveProgram(blue, team.KindBullet, team.SaveRequest{Name: "right", Source: gridtest.Bullet("bullet_right")})
	if err := f.game.ActivateProgram(blue, team.KindBullet, other.UUID); err != nil {
		t.Fatalf("ActivateProgram: %v", err)
	}
	if err := f.game.DeleteProgram(blue, team.KindBullet, info.UUID); err != nil {
		t.Fatalf("DeleteProgram: %v", err)
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture(t, 1)
	stats := f.game.Statistics()
	if len(stats.Teams) != 2 || stats.Teams[0].Team != "red" || stats.Teams[1].Team != "blue" {
		t.Fatalf("stats=%+v", stats)
	}
	if len(stats.Teams[0].Kills) != 2 {
		t.Fatalf("kills matrix row=%v", stats.Teams[0].Kills)
	}
}

func TestNewRejectsTeamMismatch(t *testing.T) {
	g := gridtest.Blank(t, 4, 4, 3)
	reg, err := team.NewRegistry(t.TempDir(), []tuning.Account{{Login: "red", Password: "r"}}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := New(Config{Tuning: tuning.Defaults()}, g, reg); !errors.Is(err, grid.ErrTeamCountMismatch) {
		t.Fatalf("expected team mismatch, got %v", err)
	}
}

func TestTimerPlaysTurnsUntilStopped(t *testing.T) {
	f := newFixture(t, 1)
	settings := tuning.Timer{CowboyTurnPeriodMs: 2, BulletTurnPeriodMs: 1, BulletTurns: 2}

	if err := f.game.StartTimer(context.Background(), tuning.Timer{}); !errors.Is(err, ErrBadTimer) {
		t.Fatalf("zero periods: %v", err)
	}
	if err := f.game.StartTimer(context.Background(), settings); err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	if err := f.game.StartTimer(context.Background(), settings); !errors.Is(err, ErrTimerRunning) {
		t.Fatalf("second start: %v", err)
	}
	if st := f.game.Status(); !st.TimerRunning || st.Timer.BulletTurns != 2 {
		t.Fatalf("status=%+v", st)
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.game.Status().Turn < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("timer did not advance: %+v", f.game.Status())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := f.game.StopTimer(); err != nil {
		t.Fatalf("StopTimer: %v", err)
	}
	stopped := f.game.Status()
	if stopped.TimerRunning {
		t.Fatalf("timer still reported running")
	}
	time.Sleep(20 * time.Millisecond)
	if after := f.game.Status(); after.Turn != stopped.Turn || after.BulletSubturn != stopped.BulletSubturn {
		t.Fatalf("turns played after stop: %+v -> %+v", stopped, after)
	}
	if err := f.game.StopTimer(); !errors.Is(err, ErrTimerStopped) {
		t.Fatalf("second stop: %v", err)
	}
}

func TestTimerEndsWithContext(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := f.game.StartTimer(ctx, tuning.Timer{CowboyTurnPeriodMs: 1, BulletTurnPeriodMs: 1, BulletTurns: 0}); err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	cancel()
	deadline := time.Now().Add(5 * time.Second)
	for f.game.Status().TimerRunning {
		if time.Now().After(deadline) {
			t.Fatalf("timer survived its context")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestResultLines(t *testing.T) {
	lines := ResultLines(grid.KindBullet, []grid.ActorResult{
		{Position: entity.Position{X: 3, Y: 0}, Index: -1, OK: true, Action: "TURN_LEFT", Steps: 2},
		{Position: entity.Position{X: 0, Y: 5}, Index: -1, Error: "out of steps", Steps: 2000},
	})
	want := []string{
		"Bullet at (3, 0): action TURN_LEFT, 2 steps",
		"Bullet at (0, 5): ERROR: out of steps (2000 steps)",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d=%q want %q", i, lines[i], want[i])
		}
	}
}

func TestCheckpointsEveryConfiguredTurn(t *testing.T) {
	g := gridtest.Blank(t, 6, 6, 2)
	g.PlaceCowboy(0, entity.Position{X: 1, Y: 1})
	g.PlaceCowboy(1, entity.Position{X: 4, Y: 4})
	reg, err := team.NewRegistry(t.TempDir(), []tuning.Account{{Login: "red", Password: "r"}, {Login: "blue", Password: "b"}}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	tune := tuning.Defaults()
	tune.CheckpointEveryTurns = 2
	archives := t.TempDir()
	gm, err := New(Config{Tuning: tune, SaveDir: t.TempDir(), ArchiveDir: archives}, g, reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := gm.CowboysTurn(); err != nil {
			t.Fatalf("CowboysTurn: %v", err)
		}
		if _, err := gm.BulletsTurn(); err != nil {
			t.Fatalf("BulletsTurn: %v", err)
		}
	}
	metas, err := archive.List(archives)
	if err != nil {
		t.Fatalf("archive.List: %v", err)
	}
	if len(metas) != 1 || metas[0].Turn != 2 {
		t.Fatalf("checkpoints=%+v, want only turn 2", metas)
	}
}
