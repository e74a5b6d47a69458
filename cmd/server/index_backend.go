package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cowboys.arena/internal/game"
	"cowboys.arena/internal/persistence/indexdb"
	plog "cowboys.arena/internal/persistence/log"
	"cowboys.arena/internal/sim/tuning"
	"cowboys.arena/internal/transport/api"
)

type runtimeIndex interface {
	game.Index
	api.Auditor
	UpsertTuning(tune tuning.Tuning) error
	Stats() indexdb.QueueStats
	Close() error
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CA_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "game.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported CA_INDEX_BACKEND: %s", backend)
	}
}

type multiAuditLogger struct {
	a api.Auditor
	b api.Auditor
}

func (m multiAuditLogger) WriteAudit(e plog.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(e)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(e)
	}
	return nil
}
