package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

// Reader queries an index written by SQLiteIndex, usually from another
// process.
type Reader struct{ db *sql.DB }

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type StatsPoint struct {
	Turn          int
	Subturn       int
	Points        int
	Golds         int
	FiredBullets  int
	Deaths        int
	KilledBullets int
}

// TeamHistory returns the team's statistics after every indexed sub-turn,
// oldest first.
func (r *Reader) TeamHistory(ctx context.Context, team int) ([]StatsPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT turn,subturn,points,golds,fired_bullets,deaths,killed_bullets FROM team_stats WHERE team=? ORDER BY turn,subturn`, team)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatsPoint
	for rows.Next() {
		var p StatsPoint
		if err := rows.Scan(&p.Turn, &p.Subturn, &p.Points, &p.Golds, &p.FiredBullets, &p.Deaths, &p.KilledBullets); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type FailureCount struct {
	Team     int
	Error    string
	Count    int
	LastTurn int
}

// Failures counts failed program runs per team and message.
func (r *Reader) Failures(ctx context.Context) ([]FailureCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT team,error,COUNT(*),MAX(turn) FROM program_results WHERE ok=0 GROUP BY team,error ORDER BY team,error`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FailureCount
	for rows.Next() {
		var f FailureCount
		var msg sql.NullString
		if err := rows.Scan(&f.Team, &msg, &f.Count, &f.LastTurn); err != nil {
			return nil, err
		}
		f.Error = msg.String
		out = append(out, f)
	}
	return out, rows.Err()
}
