package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version       int `json:"version"`
	Turn          int `json:"turn"`
	BulletSubturn int `json:"bullet_subturn"`
}

// RoundV1 is the complete grid state after one sub-turn.
type RoundV1 struct {
	Header Header `json:"header"`

	Width         int `json:"width"`
	Height        int `json:"height"`
	TurnIdx       int `json:"turn_idx"`
	BulletSubturn int `json:"bullet_subturn"`

	// Team statistics, one slot per team.
	TeamStatsPoints        []int   `json:"team_stats_points"`
	TeamStatsGolds         []int   `json:"team_stats_golds"`
	TeamStatsFiredBullets  []int   `json:"team_stats_fired_bullets"`
	TeamStatsDeaths        []int   `json:"team_stats_deaths"`
	TeamStatsKills         [][]int `json:"team_stats_kills"`
	TeamStatsKilledBullets []int   `json:"team_stats_killed_bullets"`

	Walls   [][2]int   `json:"walls"`
	Golds   []*[2]int  `json:"golds"`
	Cowboys []CowboyV1 `json:"cowboys"`
	Bullets []BulletV1 `json:"bullets"`

	Explosions     [][2]int `json:"explosions"`
	ShotDirections [][3]int `json:"shot_directions"`
	// RespawnQueue holds [turn, index into Cowboys].
	RespawnQueue [][2]int `json:"respawn_queue"`
}

type CowboyV1 struct {
	Team     int     `json:"team"`
	Index    int     `json:"index"`
	Position *[2]int `json:"position"`
}

type BulletV1 struct {
	Team      int    `json:"team"`
	Position  [2]int `json:"position"`
	Direction int    `json:"direction"`
	TurnsMade int    `json:"turns_made"`
}

// Teams is the number of teams recorded in the round.
func (r RoundV1) Teams() int { return len(r.TeamStatsPoints) }

func WriteSnapshot(path string, snap RoundV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (RoundV1, error) {
	var snap RoundV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The header line is only for quick inspection; the body repeats it.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("json decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version: %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the first line of a snapshot file.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}

// FileName is the name of the snapshot taken after the given sub-turn.
func FileName(turn, bulletSubturn int) string {
	return fmt.Sprintf("save_%06d_%d.json.zst", turn, bulletSubturn)
}

// ParseFileName is the inverse of FileName.
func ParseFileName(name string) (turn, bulletSubturn int, ok bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, "save_") || !strings.HasSuffix(base, ".json.zst") {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(base, "save_"), ".json.zst"), "_")
	if len(parts) != 2 {
		return 0, 0, false
	}
	t, err1 := strconv.Atoi(parts[0])
	s, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return t, s, true
}

// List returns the snapshot files of dir in play order.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	type item struct {
		path      string
		turn, sub int
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		t, s, ok := ParseFileName(e.Name())
		if !ok {
			continue
		}
		items = append(items, item{path: filepath.Join(dir, e.Name()), turn: t, sub: s})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].turn != items[j].turn {
			return items[i].turn < items[j].turn
		}
		return items[i].sub < items[j].sub
	})
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.path
	}
	return out, nil
}

// Latest returns the newest snapshot in dir, or "" when there is none.
func Latest(dir string) (string, error) {
	files, err := List(dir)
	if err != nil || len(files) == 0 {
		return "", err
	}
	return files[len(files)-1], nil
}
