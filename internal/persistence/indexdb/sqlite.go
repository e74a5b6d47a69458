// Package indexdb is a queryable SQLite copy of what the game already keeps
// in snapshots and JSONL logs. Writes are queued and applied by one
// goroutine; a full queue drops rows instead of stalling a sub-turn.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	plog "cowboys.arena/internal/persistence/log"
	"cowboys.arena/internal/persistence/snapshot"
	"cowboys.arena/internal/sim/entity"
	"cowboys.arena/internal/sim/grid"
	"cowboys.arena/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropSubturn  atomic.Uint64
	dropStats    atomic.Uint64
	dropSnapshot atomic.Uint64
	dropAudit    atomic.Uint64
}

// QueueStats counts rows dropped because the writer fell behind.
type QueueStats struct {
	DropSubturnTotal  uint64
	DropStatsTotal    uint64
	DropSnapshotTotal uint64
	DropAuditTotal    uint64
	QueueDepth        int
}

type reqKind int

const (
	reqSubturn reqKind = iota + 1
	reqStats
	reqSnapshot
	reqAudit
)

type req struct {
	kind reqKind

	report   grid.TurnReport
	stats    statsRow
	snapshot snapshotRow
	audit    plog.AuditEntry
}

type statsRow struct {
	Turn    int
	Subturn int
	Teams   []entity.TeamStats
}

type snapshotRow struct {
	Turn    int
	Subturn int
	Path    string
	Width   int
	Height  int
	Cowboys int
	Bullets int
	Golds   int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subturns (
			turn INTEGER NOT NULL,
			subturn INTEGER NOT NULL,
			kind TEXT NOT NULL,
			actors INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (turn, subturn)
		);`,
		`CREATE TABLE IF NOT EXISTS program_results (
			turn INTEGER NOT NULL,
			subturn INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			team INTEGER NOT NULL,
			cowboy_index INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			action TEXT,
			error TEXT,
			steps INTEGER NOT NULL,
			PRIMARY KEY (turn, subturn, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_program_results_team ON program_results(team, turn);`,
		`CREATE TABLE IF NOT EXISTS team_stats (
			turn INTEGER NOT NULL,
			subturn INTEGER NOT NULL,
			team INTEGER NOT NULL,
			points INTEGER NOT NULL,
			golds INTEGER NOT NULL,
			fired_bullets INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			killed_bullets INTEGER NOT NULL,
			kills_json TEXT NOT NULL,
			PRIMARY KEY (turn, subturn, team)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			turn INTEGER NOT NULL,
			subturn INTEGER NOT NULL,
			path TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			cowboys INTEGER NOT NULL,
			bullets INTEGER NOT NULL,
			golds INTEGER NOT NULL,
			PRIMARY KEY (turn, subturn)
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor ON audits(actor, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		DropSubturnTotal:  s.dropSubturn.Load(),
		DropStatsTotal:    s.dropStats.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		QueueDepth:        len(s.ch),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// The JSONL logs and snapshots remain the source of truth.
		drops.Add(1)
	}
}

// RecordSubturn indexes one sub-turn's program results.
func (s *SQLiteIndex) RecordSubturn(rep grid.TurnReport) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSubturn, report: rep}, &s.dropSubturn)
}

// RecordStats indexes the team statistics after a sub-turn.
func (s *SQLiteIndex) RecordStats(turn, subturn int, teams []entity.TeamStats) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqStats, stats: statsRow{Turn: turn, Subturn: subturn, Teams: teams}}, &s.dropStats)
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.RoundV1) {
	if s == nil {
		return
	}
	golds := 0
	for _, g := range snap.Golds {
		if g != nil {
			golds++
		}
	}
	cowboys := 0
	for _, c := range snap.Cowboys {
		if c.Position != nil {
			cowboys++
		}
	}
	r := snapshotRow{
		Turn:    snap.TurnIdx,
		Subturn: snap.BulletSubturn,
		Path:    path,
		Width:   snap.Width,
		Height:  snap.Height,
		Cowboys: cowboys,
		Bullets: len(snap.Bullets),
		Golds:   golds,
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

func (s *SQLiteIndex) WriteAudit(e plog.AuditEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: e}, &s.dropAudit)
	return nil
}

// UpsertTuning stores the configuration the game runs with.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	// Credentials stay out of the index.
	tune.Org.Password = ""
	teams := make([]tuning.Account, len(tune.Teams))
	for i, a := range tune.Teams {
		teams[i] = tuning.Account{Login: a.Login}
	}
	tune.Teams = teams

	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSubturn, _ := s.db.Prepare(`INSERT OR REPLACE INTO subturns(turn,subturn,kind,actors,failures,raw_json) VALUES(?,?,?,?,?,?)`)
	insertResult, _ := s.db.Prepare(`INSERT OR REPLACE INTO program_results(turn,subturn,seq,team,cowboy_index,ok,action,error,steps) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertStats, _ := s.db.Prepare(`INSERT OR REPLACE INTO team_stats(turn,subturn,team,points,golds,fired_bullets,deaths,killed_bullets,kills_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(turn,subturn,path,width,height,cowboys,bullets,golds) VALUES(?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(time,actor,action,raw_json) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertSubturn, insertResult, insertStats, insertSnapshot, insertAudit} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqSubturn:
			rep := r.report
			raw, _ := json.Marshal(rep)
			actors, failures := 0, 0
			for _, team := range rep.Teams {
				for _, a := range team {
					actors++
					if !a.OK {
						failures++
					}
				}
			}
			if insertSubturn != nil {
				if _, err := tx.Stmt(insertSubturn).Exec(rep.Turn, rep.Subturn, rep.Kind, actors, failures, string(raw)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			seq := 0
		results:
			for team, list := range rep.Teams {
				for _, a := range list {
					if insertResult == nil {
						break results
					}
					if _, err := tx.Stmt(insertResult).Exec(rep.Turn, rep.Subturn, seq, team, a.Index, a.OK, a.Action, a.Error, a.Steps); err != nil {
						rollback()
						break results
					}
					seq++
					opCount++
				}
			}

		case reqStats:
			st := r.stats
			for team, ts := range st.Teams {
				if insertStats == nil {
					break
				}
				kills, _ := json.Marshal(ts.Kills)
				if _, err := tx.Stmt(insertStats).Exec(st.Turn, st.Subturn, team, ts.Points, ts.Golds, ts.FiredBullets, ts.Deaths, ts.KilledBullets, string(kills)); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(sn.Turn, sn.Subturn, sn.Path, sn.Width, sn.Height, sn.Cowboys, sn.Bullets, sn.Golds); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(a.Time.UTC().Format(time.RFC3339Nano), a.Actor, a.Action, string(raw)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
