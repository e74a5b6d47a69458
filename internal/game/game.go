// Package game serializes everything that mutates a running game: cowboy
// and bullet sub-turns, program changes, and the timer that plays turns on
// its own. After each sub-turn it persists the board and fans the results
// out to the sinks and listeners.
package game

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"

	"cowboys.arena/internal/persistence/archive"
	"cowboys.arena/internal/persistence/snapshot"
	"cowboys.arena/internal/protocol"
	"cowboys.arena/internal/sim/entity"
	"cowboys.arena/internal/sim/grid"
	"cowboys.arena/internal/sim/tuning"
	"cowboys.arena/internal/team"
)

var (
	ErrTimerRunning  = errors.New("timer already running")
	ErrTimerStopped  = errors.New("timer not running")
	ErrBadTimer      = errors.New("bad timer settings")
	ErrUnknownTeam   = errors.New("unknown team")
	ErrRoundNotFound = errors.New("round not found")
)

// ResultSink receives every sub-turn report (the action-result log).
type ResultSink interface {
	WriteResults(rep grid.TurnReport) error
}

// Index is the read-model fed after each sub-turn.
type Index interface {
	RecordSubturn(rep grid.TurnReport)
	RecordStats(turn, subturn int, teams []entity.TeamStats)
	RecordSnapshot(path string, snap snapshot.RoundV1)
}

// Event is what listeners see after a sub-turn.
type Event struct {
	Report grid.TurnReport
	State  protocol.StateMsg
	Stats  []entity.TeamStats
	// Lines holds the formatted result lines per team, in board order.
	Lines [][]string
}

// Listener must not block; it runs with the game locked.
type Listener interface {
	OnSubturn(ev Event)
}

type Config struct {
	Tuning tuning.Tuning
	// SaveDir receives one snapshot per sub-turn; empty disables saving.
	SaveDir string
	// ArchiveDir keeps a checkpoint copy every Tuning.CheckpointEveryTurns
	// turns.
	ArchiveDir string
	Logger     *log.Logger
}

type teamHistory struct {
	cowboy []protocol.ResultRound
	bullet []protocol.ResultRound
}

type Game struct {
	mu sync.Mutex

	cfg    Config
	grid   *grid.Grid
	teams  *team.Registry
	logger *log.Logger

	results   ResultSink
	index     Index
	listeners []Listener

	history []teamHistory
	state   protocol.StateMsg

	timerMu sync.Mutex
	timer   *runningTimer
}

func New(cfg Config, g *grid.Grid, teams *team.Registry) (*Game, error) {
	if g.Teams() != teams.Len() {
		return nil, fmt.Errorf("%w: grid has %d teams, registry %d", grid.ErrTeamCountMismatch, g.Teams(), teams.Len())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	gm := &Game{
		cfg:     cfg,
		grid:    g,
		teams:   teams,
		logger:  logger,
		history: make([]teamHistory, teams.Len()),
	}
	gm.state = protocol.StateFromRound(g.ExportSnapshot(), teams.Logins())
	return gm, nil
}

func (gm *Game) SetResultSink(s ResultSink) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.results = s
}

func (gm *Game) SetIndex(ix Index) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.index = ix
}

func (gm *Game) AddListener(l Listener) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.listeners = append(gm.listeners, l)
}

func (gm *Game) Teams() *team.Registry { return gm.teams }

// CowboysTurn plays one cowboy sub-turn, opening a new turn.
func (gm *Game) CowboysTurn() (grid.TurnReport, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	rep := gm.grid.SimulateCowboysTurn(gm.teams)
	return rep, gm.afterSubturnLocked(rep)
}

// BulletsTurn plays one bullet sub-turn of the current turn.
func (gm *Game) BulletsTurn() (grid.TurnReport, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	rep := gm.grid.SimulateBulletsTurn(gm.teams)
	return rep, gm.afterSubturnLocked(rep)
}

// afterSubturnLocked persists the new board and publishes the results.
// A failed snapshot write is reported but does not hold back the rest.
func (gm *Game) afterSubturnLocked(rep grid.TurnReport) error {
	round := gm.grid.ExportSnapshot()
	var saveErr error
	if gm.cfg.SaveDir != "" {
		path := filepath.Join(gm.cfg.SaveDir, snapshot.FileName(rep.Turn, rep.Subturn))
		if err := snapshot.WriteSnapshot(path, round); err != nil {
			gm.logger.Printf("snapshot %s: %v", path, err)
			saveErr = fmt.Errorf("save snapshot: %w", err)
		} else {
			if gm.index != nil {
				gm.index.RecordSnapshot(path, round)
			}
			gm.checkpointLocked(path, round)
		}
	}
	if gm.index != nil {
		gm.index.RecordSubturn(rep)
		gm.index.RecordStats(rep.Turn, rep.Subturn, gm.grid.Stats())
	}
	if gm.results != nil {
		if err := gm.results.WriteResults(rep); err != nil {
			gm.logger.Printf("result log: %v", err)
		}
	}

	lines := make([][]string, len(rep.Teams))
	for i, actors := range rep.Teams {
		lines[i] = ResultLines(rep.Kind, actors)
		gm.pushHistoryLocked(i, rep, lines[i])
	}
	gm.state = protocol.StateFromRound(round, gm.teams.Logins())
	ev := Event{Report: rep, State: gm.state, Stats: gm.grid.Stats(), Lines: lines}
	for _, l := range gm.listeners {
		l.OnSubturn(ev)
	}
	return saveErr
}

func (gm *Game) checkpointLocked(path string, round snapshot.RoundV1) {
	if gm.cfg.ArchiveDir == "" {
		return
	}
	dst, ok, err := archive.Checkpoint(gm.cfg.ArchiveDir, path, round, gm.cfg.Tuning.CheckpointEveryTurns)
	if err != nil {
		gm.logger.Printf("checkpoint turn %d: %v", round.TurnIdx, err)
	} else if ok {
		gm.logger.Printf("checkpoint turn %d: %s", round.TurnIdx, dst)
	}
}

func (gm *Game) pushHistoryLocked(teamIdx int, rep grid.TurnReport, lines []string) {
	if teamIdx >= len(gm.history) {
		return
	}
	limit := gm.cfg.Tuning.ResultsHistory
	if limit <= 0 {
		limit = 1
	}
	push := func(rounds []protocol.ResultRound) []protocol.ResultRound {
		rounds = append(rounds, protocol.ResultRound{Turn: rep.Turn, Subturn: rep.Subturn, Lines: lines})
		if len(rounds) > limit {
			rounds = append([]protocol.ResultRound(nil), rounds[len(rounds)-limit:]...)
		}
		return rounds
	}
	h := &gm.history[teamIdx]
	if rep.Kind == grid.KindBullet {
		h.bullet = push(h.bullet)
	} else {
		h.cowboy = push(h.cowboy)
	}
}

// ResultLines renders one team's actors of a sub-turn, one line each.
func ResultLines(kind string, actors []grid.ActorResult) []string {
	who := "Cowboy"
	if kind == grid.KindBullet {
		who = "Bullet"
	}
	out := make([]string, 0, len(actors))
	for _, a := range actors {
		if a.OK {
			out = append(out, fmt.Sprintf("%s at (%d, %d): action %s, %d steps", who, a.Position.X, a.Position.Y, a.Action, a.Steps))
		} else {
			out = append(out, fmt.Sprintf("%s at (%d, %d): ERROR: %s (%d steps)", who, a.Position.X, a.Position.Y, a.Error, a.Steps))
		}
	}
	return out
}

// Results returns the last rounds of action results of one team.
func (gm *Game) Results(login string) (protocol.ResultsMsg, error) {
	t, ok := gm.teams.ByLogin(login)
	if !ok {
		return protocol.ResultsMsg{}, ErrUnknownTeam
	}
	gm.mu.Lock()
	defer gm.mu.Unlock()
	h := gm.history[t.Index]
	return protocol.ResultsMsg{
		Type:            protocol.TypeResults,
		ProtocolVersion: protocol.Version,
		Team:            t.Login,
		Cowboy:          append([]protocol.ResultRound{}, h.cowboy...),
		Bullet:          append([]protocol.ResultRound{}, h.bullet...),
	}, nil
}

// State is the board after the latest sub-turn.
func (gm *Game) State() protocol.StateMsg {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return gm.state
}

func (gm *Game) Statistics() protocol.StatisticsMsg {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	logins := gm.teams.Logins()
	msg := protocol.StatisticsMsg{
		Type:            protocol.TypeStatistics,
		ProtocolVersion: protocol.Version,
		Turn:            gm.grid.Turn(),
		Teams:           []protocol.TeamStatistics{},
	}
	for i, s := range gm.grid.Stats() {
		ts := protocol.TeamStatistics{
			Points:        s.Points,
			Golds:         s.Golds,
			FiredBullets:  s.FiredBullets,
			Deaths:        s.Deaths,
			Kills:         append([]int{}, s.Kills...),
			KilledBullets: s.KilledBullets,
		}
		if i < len(logins) {
			ts.Team = logins[i]
		}
		msg.Teams = append(msg.Teams, ts)
	}
	return msg
}

// Rounds lists the saved snapshots in play order.
func (gm *Game) Rounds() ([]string, error) {
	if gm.cfg.SaveDir == "" {
		return nil, nil
	}
	return snapshot.List(gm.cfg.SaveDir)
}

// Round renders the i-th saved snapshot for playback.
func (gm *Game) Round(i int) (protocol.StateMsg, error) {
	files, err := gm.Rounds()
	if err != nil {
		return protocol.StateMsg{}, err
	}
	if i < 0 || i >= len(files) {
		return protocol.StateMsg{}, ErrRoundNotFound
	}
	r, err := snapshot.ReadSnapshot(files[i])
	if err != nil {
		return protocol.StateMsg{}, err
	}
	return protocol.StateFromRound(r, gm.teams.Logins()), nil
}

// Rules never change during a game.
func (gm *Game) Rules() grid.Rules { return gm.grid.Rules() }

func (gm *Game) Authenticate(login, password string) (*team.Team, bool) {
	return gm.teams.Authenticate(login, password)
}
