package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"cowboys.arena/internal/game"
	plog "cowboys.arena/internal/persistence/log"
	"cowboys.arena/internal/persistence/snapshot"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		snapPath = flag.String("snapshot", "", "print one snapshot instead of the timeline (optional)")
		results  = flag.Bool("results", false, "print program results from data/results")
		teamIdx  = flag.Int("team", -1, "only this team's results (-1 = all)")
		fromTurn = flag.Int("from_turn", 0, "first turn to print (inclusive)")
		toTurn   = flag.Int("to_turn", -1, "last turn to print (inclusive, -1 = all)")
	)
	flag.Parse()

	inRange := func(turn int) bool {
		return turn >= *fromTurn && (*toTurn < 0 || turn <= *toTurn)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		printRound(snap)
		return
	}

	if *results {
		files, err := listResultFiles(filepath.Join(*dataDir, "results"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "list results:", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "no results files found in", filepath.Join(*dataDir, "results"))
			os.Exit(1)
		}
		for _, path := range files {
			if err := printResultFile(path, *teamIdx, inRange); err != nil {
				fmt.Fprintln(os.Stderr, "results:", err)
				os.Exit(1)
			}
		}
		return
	}

	files, err := snapshot.List(filepath.Join(*dataDir, "saves"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list snapshots:", err)
		os.Exit(1)
	}
	var rounds, gaps int
	prevTurn := -1
	for _, path := range files {
		turn, _, _ := snapshot.ParseFileName(path)
		if !inRange(turn) {
			continue
		}
		if prevTurn >= 0 && turn > prevTurn+1 {
			fmt.Printf("gap: no snapshot for turns %d..%d\n", prevTurn+1, turn-1)
			gaps++
		}
		prevTurn = turn
		snap, err := snapshot.ReadSnapshot(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		printRound(snap)
		rounds++
	}
	fmt.Printf("timeline: rounds=%d gaps=%d\n", rounds, gaps)
}

func printRound(snap snapshot.RoundV1) {
	alive := make([]int, snap.Teams())
	for _, c := range snap.Cowboys {
		if c.Position != nil && c.Team >= 0 && c.Team < len(alive) {
			alive[c.Team]++
		}
	}
	fmt.Printf("turn=%d subturn=%d bullets=%d explosions=%d points=%v alive=%v\n",
		snap.TurnIdx, snap.BulletSubturn, len(snap.Bullets), len(snap.Explosions), snap.TeamStatsPoints, alive)
}

func listResultFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "results-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func printResultFile(path string, team int, inRange func(int) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var entry plog.ResultEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if !inRange(entry.Turn) {
			continue
		}
		fmt.Printf("== #%d %s turn=%d subturn=%d failures=%d at %s\n",
			entry.Seq, entry.Kind, entry.Turn, entry.Subturn, entry.Failures, entry.Time.Format("2006-01-02 15:04:05"))
		for i, actors := range entry.Teams {
			if team >= 0 && i != team {
				continue
			}
			for _, line := range game.ResultLines(entry.Kind, actors) {
				fmt.Printf("team %d: %s\n", i, line)
			}
		}
	}
	return sc.Err()
}
