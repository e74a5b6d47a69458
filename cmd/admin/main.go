package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cowboys.arena/internal/game"
	"cowboys.arena/internal/lang/parser"
	"cowboys.arena/internal/lang/program"
	"cowboys.arena/internal/persistence/archive"
	"cowboys.arena/internal/persistence/snapshot"
	"cowboys.arena/internal/sim/grid"
	"cowboys.arena/internal/sim/tuning"
	"cowboys.arena/internal/team"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "check":
			os.Exit(checkCmd(os.Args[2:]))
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "turn":
			turnCmd(os.Args[2:])
			return
		case "timer":
			timerCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the saved snapshots in play order.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	files, err := snapshot.List(filepath.Join(*dataDir, "saves"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for i, path := range files {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			fmt.Printf("%d\t%s\t(unreadable: %v)\n", i, filepath.Base(path), err)
			continue
		}
		fmt.Printf("%d\t%s\tturn=%d subturn=%d\n", i, filepath.Base(path), h.Turn, h.BulletSubturn)
	}

	metas, err := archive.List(filepath.Join(*dataDir, "archives"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read archives:", err)
		os.Exit(1)
	}
	for _, m := range metas {
		fmt.Printf("checkpoint\tturn=%d\t%s\tpoints=%v\tcreated=%s\n", m.Turn, m.Snapshot, m.Points, m.CreatedAt)
	}
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	snapPath := fs.String("path", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		var err error
		if path, err = snapshot.Latest(filepath.Join(*dataDir, "saves")); err != nil || path == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found", err)
			os.Exit(2)
		}
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	onGrid, golds := 0, 0
	for _, c := range snap.Cowboys {
		if c.Position != nil {
			onGrid++
		}
	}
	for _, g := range snap.Golds {
		if g != nil {
			golds++
		}
	}
	fmt.Printf("snapshot v%d %dx%d turn=%d subturn=%d teams=%d walls=%d cowboys=%d/%d bullets=%d golds=%d/%d respawns=%d\n",
		snap.Header.Version, snap.Width, snap.Height, snap.TurnIdx, snap.BulletSubturn, snap.Teams(),
		len(snap.Walls), onGrid, len(snap.Cowboys), len(snap.Bullets), golds, len(snap.Golds), len(snap.RespawnQueue))
	for i := 0; i < snap.Teams(); i++ {
		fmt.Printf("team %d: points=%d golds=%d fired=%d deaths=%d killed_bullets=%d kills=%v\n", i,
			at(snap.TeamStatsPoints, i), at(snap.TeamStatsGolds, i), at(snap.TeamStatsFiredBullets, i),
			at(snap.TeamStatsDeaths, i), at(snap.TeamStatsKilledBullets, i), kills(snap.TeamStatsKills, i))
	}
}

func at(v []int, i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}

func kills(v [][]int, i int) []int {
	if i < len(v) {
		return v[i]
	}
	return nil
}

// singleProgram runs one program for one team and stands everyone else
// still.
type singleProgram struct {
	team int
	kind team.Kind
	prog *program.Program
}

func (s singleProgram) CowboyProgram(t int) *program.Program {
	if t == s.team && s.kind == team.KindCowboy {
		return s.prog
	}
	return program.Nop()
}

func (s singleProgram) BulletProgram(t int) *program.Program {
	if t == s.team && s.kind == team.KindBullet {
		return s.prog
	}
	return program.Nop()
}

// checkCmd parses a program and plays one sub-turn with it on a fresh or
// saved board. The exit code is 1 when the program does not parse.
func checkCmd(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	kindName := fs.String("kind", "cowboy", "program kind: cowboy or bullet")
	progPath := fs.String("program", "", "program xml file (required)")
	tuningPath := fs.String("tuning", "./configs/tuning.yaml", "tuning for a fresh board")
	snapPath := fs.String("snapshot", "", "play on this snapshot instead of a fresh board")
	teamIdx := fs.Int("team", 0, "team slot that runs the program")
	_ = fs.Parse(args)

	kind, ok := team.ParseKind(*kindName)
	if !ok {
		fmt.Fprintln(os.Stderr, "bad -kind:", *kindName)
		return 2
	}
	if strings.TrimSpace(*progPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -program")
		return 2
	}
	src, err := os.ReadFile(*progPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read program:", err)
		return 2
	}
	prog, err := parser.Parse(string(src), kind.Catalog())
	if err != nil {
		fmt.Println("invalid:", err)
		return 1
	}
	fmt.Printf("ok: %s program, variables %v\n", kind, prog.Declared)

	g, err := checkGrid(*tuningPath, *snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "board:", err)
		return 2
	}
	if *teamIdx < 0 || *teamIdx >= g.Teams() {
		fmt.Fprintf(os.Stderr, "-team must be in [0,%d)\n", g.Teams())
		return 2
	}
	progs := singleProgram{team: *teamIdx, kind: kind, prog: prog}
	var rep grid.TurnReport
	if kind == team.KindCowboy {
		rep = g.SimulateCowboysTurn(progs)
	} else {
		rep = g.SimulateBulletsTurn(progs)
	}
	for _, line := range game.ResultLines(rep.Kind, rep.Teams[*teamIdx]) {
		fmt.Println(line)
	}
	return 0
}

func checkGrid(tuningPath, snapPath string) (*grid.Grid, error) {
	if strings.TrimSpace(snapPath) == "" {
		tune, err := tuning.Load(tuningPath)
		if err != nil {
			return nil, err
		}
		return grid.New(tune.GridConfig())
	}
	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, err
	}
	g, err := grid.NewBlank(grid.Config{Width: snap.Width, Height: snap.Height, Teams: snap.Teams()})
	if err != nil {
		return nil, err
	}
	return g, g.ImportSnapshot(snap)
}
