package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	plog "cowboys.arena/internal/persistence/log"
	"cowboys.arena/internal/persistence/snapshot"
	"cowboys.arena/internal/sim/entity"
	"cowboys.arena/internal/sim/grid"
	"cowboys.arena/internal/sim/tuning"
)

func TestSQLiteIndex_RecordsSubturnsAndStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}

	idx.RecordSubturn(grid.TurnReport{
		Kind: grid.KindCowboy, Turn: 1,
		Teams: [][]grid.ActorResult{
			{{Index: 0, OK: true, Action: "FIRE(E)", Steps: 1}},
			{{Index: 0, Error: "Out of steps", Steps: 6000}},
		},
	})
	for turn := 1; turn <= 3; turn++ {
		st := []entity.TeamStats{entity.NewTeamStats(2), entity.NewTeamStats(2)}
		st[0].Points = turn * 10
		idx.RecordStats(turn, 0, st)
	}
	one := [2]int{1, 1}
	idx.RecordSnapshot("/data/save_000001_0.json.zst", snapshot.RoundV1{
		TurnIdx: 1, Width: 4, Height: 3,
		Golds:   []*[2]int{&one, nil},
		Cowboys: []snapshot.CowboyV1{{Position: &one}, {}},
	})
	_ = idx.WriteAudit(plog.AuditEntry{Actor: "org", Action: "COWBOYS_TURN"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var actors, failures int
	if err := db.QueryRow(`SELECT actors,failures FROM subturns WHERE turn=1 AND subturn=0`).Scan(&actors, &failures); err != nil {
		t.Fatalf("subturns: %v", err)
	}
	if actors != 2 || failures != 1 {
		t.Fatalf("actors=%d failures=%d", actors, failures)
	}
	var golds, cowboys int
	if err := db.QueryRow(`SELECT golds,cowboys FROM snapshots WHERE turn=1`).Scan(&golds, &cowboys); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if golds != 1 || cowboys != 1 {
		t.Fatalf("golds=%d cowboys=%d", golds, cowboys)
	}
	var tuneJSON string
	if err := db.QueryRow(`SELECT json FROM config WHERE name='tuning'`).Scan(&tuneJSON); err != nil {
		t.Fatalf("config: %v", err)
	}
	var audits int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audits`).Scan(&audits); err != nil || audits != 1 {
		t.Fatalf("audits=%d err=%v", audits, err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	hist, err := r.TeamHistory(context.Background(), 0)
	if err != nil {
		t.Fatalf("TeamHistory: %v", err)
	}
	if len(hist) != 3 || hist[2].Points != 30 {
		t.Fatalf("history=%+v", hist)
	}
	fails, err := r.Failures(context.Background())
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(fails) != 1 || fails[0].Team != 1 || fails[0].Error != "Out of steps" {
		t.Fatalf("failures=%+v", fails)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqSubturn}

	s.RecordSubturn(grid.TurnReport{})
	s.RecordStats(1, 0, nil)
	s.RecordSnapshot("/tmp/x", snapshot.RoundV1{})
	_ = s.WriteAudit(plog.AuditEntry{})

	st := s.Stats()
	if st.DropSubturnTotal != 1 || st.DropStatsTotal != 1 || st.DropSnapshotTotal != 1 || st.DropAuditTotal != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if st.QueueDepth != 1 {
		t.Fatalf("depth=%d", st.QueueDepth)
	}

	var nilIdx *SQLiteIndex
	nilIdx.RecordSubturn(grid.TurnReport{})
	if nilIdx.Stats() != (QueueStats{}) {
		t.Fatalf("nil index must be inert")
	}
}
