// Package team keeps each team's saved cowboy and bullet programs, which of
// them is active, and their files on disk.
package team

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cowboys.arena/internal/lang/blocks"
	"cowboys.arena/internal/lang/parser"
	"cowboys.arena/internal/lang/program"
)

type Kind string

const (
	KindCowboy Kind = "cowboy"
	KindBullet Kind = "bullet"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindCowboy, KindBullet:
		return Kind(s), true
	}
	return "", false
}

func (k Kind) Catalog() *blocks.Catalog {
	if k == KindBullet {
		return blocks.BulletCatalog()
	}
	return blocks.CowboyCatalog()
}

var (
	ErrNotFound       = errors.New("program not found")
	ErrActive         = errors.New("cannot delete the active program")
	ErrInvalidProgram = errors.New("program is not executable")
	ErrEmptyName      = errors.New("name must not be empty")
	ErrBadID          = errors.New("id may contain only lowercase letters, digits and '-'")
)

const timeLayout = "2006-01-02 15:04:05"

// Info describes a saved program without its tree.
type Info struct {
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	LastModified time.Time `json:"last_modified"`
	Active       bool      `json:"active"`
	Valid        bool      `json:"valid"`
	// Error is the parse error of an invalid program.
	Error string `json:"error,omitempty"`
}

type entry struct {
	name         string
	description  string
	lastModified time.Time
	prog         *program.Program
}

type programSet struct {
	programs map[string]*entry
	active   string
	// retained keeps running the last valid active program after its id was
	// overwritten with source that does not parse.
	retained *program.Program
}

type Team struct {
	Login    string
	Password string
	// Index is the team's slot on the board.
	Index int

	dir    string
	logger *log.Logger

	mu   sync.RWMutex
	sets map[Kind]*programSet
}

// SaveRequest creates a program, or replaces one when UUID names an existing
// program.
type SaveRequest struct {
	UUID        string
	Name        string
	Description string
	Source      string
}

func newTeam(login, password string, index int, dir string, logger *log.Logger) *Team {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Team{
		Login:    login,
		Password: password,
		Index:    index,
		dir:      dir,
		logger:   logger,
		sets: map[Kind]*programSet{
			KindCowboy: {programs: map[string]*entry{}},
			KindBullet: {programs: map[string]*entry{}},
		},
	}
}

func (t *Team) teamFile() string {
	return filepath.Join(t.dir, "team_"+t.Login+".json")
}

func (t *Team) programFile(k Kind, id string) string {
	return filepath.Join(t.dir, fmt.Sprintf("%s_%s_%s.xml", k, t.Login, id))
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}

// Save parses and stores a program. A program that does not parse is still
// stored so it can be edited later, but it is never made active.
func (t *Team) Save(k Kind, req SaveRequest) (Info, error) {
	id := req.UUID
	if id == "" {
		id = uuid.NewString()
	} else if !validID(id) {
		return Info{}, ErrBadID
	}
	if strings.TrimSpace(req.Name) == "" {
		return Info{}, ErrEmptyName
	}
	prog, err := parser.Parse(req.Source, k.Catalog())
	if err != nil {
		t.logger.Printf("team %s: %s program %s does not parse: %v", t.Login, k, id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return Info{}, err
	}
	if err := os.WriteFile(t.programFile(k, id), []byte(req.Source), 0o644); err != nil {
		return Info{}, err
	}
	set := t.sets[k]
	e := &entry{name: req.Name, description: req.Description, lastModified: time.Now().Truncate(time.Second), prog: prog}
	if id == set.active && !prog.Valid() {
		if old, ok := set.programs[id]; ok && old.prog.Valid() {
			set.retained = old.prog
		}
		set.active = ""
	}
	set.programs[id] = e
	if set.active == "" && prog.Valid() {
		set.active = id
		set.retained = nil
	}
	if err := t.saveLocked(); err != nil {
		return Info{}, err
	}
	return t.infoLocked(set, id, e), nil
}

func (t *Team) Activate(k Kind, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.sets[k]
	e, ok := set.programs[id]
	if !ok {
		return ErrNotFound
	}
	if !e.prog.Valid() {
		return ErrInvalidProgram
	}
	set.active = id
	set.retained = nil
	return t.saveLocked()
}

func (t *Team) Delete(k Kind, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.sets[k]
	if _, ok := set.programs[id]; !ok {
		return ErrNotFound
	}
	if set.active == id {
		return ErrActive
	}
	delete(set.programs, id)
	if err := os.Remove(t.programFile(k, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return t.saveLocked()
}

// List returns the programs of kind k sorted by name.
func (t *Team) List(k Kind) []Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.sets[k]
	out := make([]Info, 0, len(set.programs))
	for id, e := range set.programs {
		out = append(out, t.infoLocked(set, id, e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// Code is the XML source of a saved program.
func (t *Team) Code(k Kind, id string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.sets[k].programs[id]
	if !ok {
		return "", ErrNotFound
	}
	return e.prog.Source, nil
}

// Program is the active program of kind k. Without one it is the retained
// program, if any, or the no-op program.
func (t *Team) Program(k Kind) *program.Program {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.sets[k]
	if e, ok := set.programs[set.active]; ok && e.prog.Valid() {
		return e.prog
	}
	if set.retained.Valid() {
		return set.retained
	}
	return program.Nop()
}

func (t *Team) infoLocked(set *programSet, id string, e *entry) Info {
	info := Info{
		UUID:         id,
		Name:         e.name,
		Description:  e.description,
		LastModified: e.lastModified,
		Active:       id == set.active,
		Valid:        e.prog.Valid(),
	}
	if e.prog.Err != nil {
		info.Error = e.prog.Err.Error()
	}
	return info
}

type programRecord struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	LastModified string `json:"last_modified"`
}

type teamFile struct {
	CowboyPrograms []programRecord `json:"cowboy_programs"`
	ActiveCowboy   *string         `json:"active_cowboy"`
	BulletPrograms []programRecord `json:"bullet_programs"`
	ActiveBullet   *string         `json:"active_bullet"`
	// Retained* hold the source of a retained program.
	RetainedCowboy string `json:"retained_cowboy,omitempty"`
	RetainedBullet string `json:"retained_bullet,omitempty"`
}

func (t *Team) records(k Kind) ([]programRecord, *string) {
	set := t.sets[k]
	ids := make([]string, 0, len(set.programs))
	for id := range set.programs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	recs := make([]programRecord, 0, len(ids))
	for _, id := range ids {
		e := set.programs[id]
		recs = append(recs, programRecord{
			UUID:         id,
			Name:         e.name,
			Description:  e.description,
			LastModified: e.lastModified.Format(timeLayout),
		})
	}
	if set.active == "" {
		return recs, nil
	}
	active := set.active
	return recs, &active
}

func (t *Team) saveLocked() error {
	var f teamFile
	f.CowboyPrograms, f.ActiveCowboy = t.records(KindCowboy)
	f.BulletPrograms, f.ActiveBullet = t.records(KindBullet)
	if r := t.sets[KindCowboy].retained; r != nil {
		f.RetainedCowboy = r.Source
	}
	if r := t.sets[KindBullet].retained; r != nil {
		f.RetainedBullet = r.Source
	}
	raw, err := json.MarshalIndent(f, "", "    ")
	if err != nil {
		return err
	}
	tmp := t.teamFile() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, t.teamFile())
}

// load reads the team file. A missing file is an empty team; programs whose
// XML file is gone are skipped.
func (t *Team) load() error {
	raw, err := os.ReadFile(t.teamFile())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var f teamFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%s: %w", t.teamFile(), err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loadSet(KindCowboy, f.CowboyPrograms, f.ActiveCowboy, f.RetainedCowboy)
	t.loadSet(KindBullet, f.BulletPrograms, f.ActiveBullet, f.RetainedBullet)
	return nil
}

func (t *Team) loadSet(k Kind, recs []programRecord, active *string, retained string) {
	set := t.sets[k]
	if retained != "" {
		if prog, err := parser.Parse(retained, k.Catalog()); err == nil {
			set.retained = prog
		}
	}
	for _, r := range recs {
		src, err := os.ReadFile(t.programFile(k, r.UUID))
		if err != nil {
			t.logger.Printf("team %s: skip %s program %s: %v", t.Login, k, r.UUID, err)
			continue
		}
		prog, err := parser.Parse(string(src), k.Catalog())
		if err != nil {
			t.logger.Printf("team %s: %s program %s does not parse: %v", t.Login, k, r.UUID, err)
		}
		modified, _ := time.ParseInLocation(timeLayout, r.LastModified, time.Local)
		set.programs[r.UUID] = &entry{name: r.Name, description: r.Description, lastModified: modified, prog: prog}
	}
	if active == nil {
		return
	}
	if e, ok := set.programs[*active]; ok && e.prog.Valid() {
		set.active = *active
		set.retained = nil
	}
}
