package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cowboys.arena/internal/persistence/snapshot"
)

type CheckpointMeta struct {
	Turn      int    `json:"turn"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Teams     int    `json:"teams"`
	Points    []int  `json:"points"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// Checkpoint copies the snapshot taken right after a cowboy sub-turn into
// `archiveDir/turn_<NNNNNN>/` every `every` turns. It reports archived=false
// for any other snapshot, and for every <= 0.
func Checkpoint(archiveDir, snapshotPath string, snap snapshot.RoundV1, every int) (archivedPath string, archived bool, err error) {
	if every <= 0 || snap.BulletSubturn != 0 || snap.TurnIdx <= 0 {
		return "", false, nil
	}
	if snap.TurnIdx%every != 0 {
		return "", false, nil
	}

	dir := filepath.Join(archiveDir, fmt.Sprintf("turn_%06d", snap.TurnIdx))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := CheckpointMeta{
		Turn:      snap.TurnIdx,
		Width:     snap.Width,
		Height:    snap.Height,
		Teams:     snap.Teams(),
		Points:    snap.TeamStatsPoints,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}

	return dst, true, nil
}

// List returns the archived checkpoints of archiveDir, oldest first.
func List(archiveDir string) ([]CheckpointMeta, error) {
	ents, err := os.ReadDir(archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []CheckpointMeta
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(archiveDir, e.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var m CheckpointMeta
		if err := json.Unmarshal(b, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
