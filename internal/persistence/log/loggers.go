package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"cowboys.arena/internal/sim/grid"
)

// journal appends JSON lines to one zstd file per UTC day, named
// <name>-YYYYMMDD.jsonl.zst under dir. Every line is flushed to disk
// before Append returns.
type journal struct {
	dir  string
	name string
	now  func() time.Time

	mu   sync.Mutex
	day  string
	seq  int64
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
	enc  *json.Encoder
}

func newJournal(dir, name string) *journal {
	return &journal{dir: dir, name: name, now: func() time.Time { return time.Now().UTC() }}
}

func (j *journal) fileFor(day string) string {
	return filepath.Join(j.dir, j.name+"-"+day+".jsonl.zst")
}

// Append writes one record; next may fill in the sequence number and
// timestamp before the record is encoded.
func (j *journal) Append(next func(seq int64, at time.Time) any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	at := j.now()
	if day := at.Format("20060102"); day != j.day {
		if err := j.openDayLocked(day); err != nil {
			return err
		}
	}
	j.seq++
	if err := j.enc.Encode(next(j.seq, at)); err != nil {
		return err
	}
	if err := j.buf.Flush(); err != nil {
		return err
	}
	return j.zw.Flush()
}

func (j *journal) openDayLocked(day string) error {
	if err := j.shutLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.fileFor(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.file, j.zw, j.day = f, zw, day
	j.buf = bufio.NewWriterSize(zw, 64*1024)
	j.enc = json.NewEncoder(j.buf)
	return nil
}

func (j *journal) shutLocked() error {
	if j.file == nil {
		return nil
	}
	err := j.buf.Flush()
	if cerr := j.zw.Close(); err == nil {
		err = cerr
	}
	if cerr := j.file.Close(); err == nil {
		err = cerr
	}
	j.file, j.zw, j.buf, j.enc, j.day = nil, nil, nil, nil, ""
	return err
}

func (j *journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.shutLocked()
}

// ResultEntry is one sub-turn of program results.
type ResultEntry struct {
	Seq      int64                `json:"seq"`
	Time     time.Time            `json:"time"`
	Kind     string               `json:"kind"`
	Turn     int                  `json:"turn"`
	Subturn  int                  `json:"subturn"`
	Failures int                  `json:"failures"`
	Teams    [][]grid.ActorResult `json:"teams"`
}

// ResultLogger keeps every sub-turn's program results (compressed).
type ResultLogger struct{ j *journal }

func NewResultLogger(dataDir string) *ResultLogger {
	return &ResultLogger{j: newJournal(filepath.Join(dataDir, "results"), "results")}
}

func (l *ResultLogger) WriteResults(rep grid.TurnReport) error {
	failed := 0
	for _, actors := range rep.Teams {
		for _, a := range actors {
			if !a.OK {
				failed++
			}
		}
	}
	return l.j.Append(func(seq int64, at time.Time) any {
		return ResultEntry{
			Seq: seq, Time: at, Kind: rep.Kind, Turn: rep.Turn, Subturn: rep.Subturn,
			Failures: failed, Teams: rep.Teams,
		}
	})
}

func (l *ResultLogger) Close() error { return l.j.Close() }

type AuditEntry struct {
	Time   time.Time         `json:"time"`
	Actor  string            `json:"actor"`
	Action string            `json:"action"`
	Fields map[string]string `json:"fields,omitempty"`
}

// AuditLogger records program changes and org commands (compressed).
type AuditLogger struct{ j *journal }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{j: newJournal(filepath.Join(dataDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(e AuditEntry) error {
	return l.j.Append(func(_ int64, at time.Time) any {
		if e.Time.IsZero() {
			e.Time = at
		}
		return e
	})
}

func (l *AuditLogger) Close() error { return l.j.Close() }
