package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cowboys.arena/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	teamIdx := fs.Int("team", 0, "team slot (history)")
	_ = fs.Parse(args)

	q := "history"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "game.sqlite")
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch q {
	case "history":
		points, err := r.TeamHistory(ctx, *teamIdx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, p := range points {
			printJSON(p)
		}
	case "failures":
		fails, err := r.Failures(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, f := range fails {
			printJSON(f)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want history or failures)")
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
