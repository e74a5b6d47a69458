package team

import (
	"crypto/subtle"
	"fmt"
	"log"

	"cowboys.arena/internal/lang/program"
	"cowboys.arena/internal/sim/tuning"
)

// Registry is the fixed set of teams of one game, in board order.
type Registry struct {
	teams   []*Team
	byLogin map[string]*Team
}

// NewRegistry loads every account's saved programs from dir.
func NewRegistry(dir string, accounts []tuning.Account, logger *log.Logger) (*Registry, error) {
	r := &Registry{byLogin: map[string]*Team{}}
	for i, a := range accounts {
		if _, dup := r.byLogin[a.Login]; dup {
			return nil, fmt.Errorf("duplicate team login %q", a.Login)
		}
		t := newTeam(a.Login, a.Password, i, dir, logger)
		if err := t.load(); err != nil {
			return nil, fmt.Errorf("team %s: %w", a.Login, err)
		}
		r.teams = append(r.teams, t)
		r.byLogin[a.Login] = t
	}
	return r, nil
}

func (r *Registry) Len() int { return len(r.teams) }

func (r *Registry) Teams() []*Team { return append([]*Team(nil), r.teams...) }

func (r *Registry) ByLogin(login string) (*Team, bool) {
	t, ok := r.byLogin[login]
	return t, ok
}

func (r *Registry) At(i int) (*Team, bool) {
	if i < 0 || i >= len(r.teams) {
		return nil, false
	}
	return r.teams[i], true
}

// Authenticate returns the team whose login and password match.
func (r *Registry) Authenticate(login, password string) (*Team, bool) {
	t, ok := r.byLogin[login]
	if !ok || subtle.ConstantTimeCompare([]byte(t.Password), []byte(password)) != 1 {
		return nil, false
	}
	return t, true
}

// Logins are the team names in board order.
func (r *Registry) Logins() []string {
	out := make([]string, len(r.teams))
	for i, t := range r.teams {
		out[i] = t.Login
	}
	return out
}

func (r *Registry) CowboyProgram(team int) *program.Program {
	if t, ok := r.At(team); ok {
		return t.Program(KindCowboy)
	}
	return program.Nop()
}

func (r *Registry) BulletProgram(team int) *program.Program {
	if t, ok := r.At(team); ok {
		return t.Program(KindBullet)
	}
	return program.Nop()
}
