package team

import (
	"errors"
	"os"
	"testing"

	"cowboys.arena/internal/lang/program"
	"cowboys.arena/internal/sim/tuning"
)

const (
	moveEast = `<xml xmlns="https://developers.google.com/blockly/xml"><block type="move_direction"><field name="DIRECTION">E</field></block></xml>`
	fireWest = `<xml xmlns="https://developers.google.com/blockly/xml"><block type="fire_direction"><field name="DIRECTION">W</field></block></xml>`
	turnLeft = `<xml xmlns="https://developers.google.com/blockly/xml"><block type="bullet_left"></block></xml>`
	broken   = `<xml xmlns="https://developers.google.com/blockly/xml"><block type="bullet_left"></xml>`
)

func newRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	r, err := NewRegistry(dir, []tuning.Account{{Login: "red", Password: "r"}, {Login: "blue", Password: "b"}}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestFirstValidProgramBecomesActive(t *testing.T) {
	r := newRegistry(t, t.TempDir())
	red, _ := r.ByLogin("red")

	if r.CowboyProgram(0) != program.Nop() {
		t.Fatalf("team without programs must run the no-op program")
	}
	bad, err := red.Save(KindCowboy, SaveRequest{Name: "bad", Source: broken})
	if err != nil {
		t.Fatalf("save invalid: %v", err)
	}
	if bad.Valid || bad.Active || bad.Error == "" {
		t.Fatalf("invalid program info=%+v", bad)
	}
	good, err := red.Save(KindCowboy, SaveRequest{Name: "east", Source: moveEast})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !good.Active || !good.Valid || good.UUID == "" {
		t.Fatalf("info=%+v", good)
	}
	second, _ := red.Save(KindCowboy, SaveRequest{Name: "fire", Source: fireWest})
	if second.Active {
		t.Fatalf("second program must not replace the active one")
	}
	if got := r.CowboyProgram(0).Source; got != moveEast {
		t.Fatalf("active source=%q", got)
	}
	if err := red.Activate(KindCowboy, bad.UUID); !errors.Is(err, ErrInvalidProgram) {
		t.Fatalf("activate invalid: %v", err)
	}
	if err := red.Activate(KindCowboy, second.UUID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := r.CowboyProgram(0).Source; got != fireWest {
		t.Fatalf("active source=%q", got)
	}
}

func TestDeleteRules(t *testing.T) {
	dir := t.TempDir()
	r := newRegistry(t, dir)
	blue, _ := r.ByLogin("blue")
	a, _ := blue.Save(KindBullet, SaveRequest{Name: "a", Source: turnLeft})
	b, _ := blue.Save(KindBullet, SaveRequest{Name: "b", Source: turnLeft})

	if err := blue.Delete(KindBullet, a.UUID); !errors.Is(err, ErrActive) {
		t.Fatalf("delete active: %v", err)
	}
	if err := blue.Delete(KindBullet, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
	if err := blue.Delete(KindBullet, b.UUID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(blue.programFile(KindBullet, b.UUID)); !os.IsNotExist(err) {
		t.Fatalf("program file still there: %v", err)
	}
	if got := blue.List(KindBullet); len(got) != 1 || got[0].UUID != a.UUID {
		t.Fatalf("list=%+v", got)
	}
}

func TestSaveValidation(t *testing.T) {
	r := newRegistry(t, t.TempDir())
	red, _ := r.ByLogin("red")
	if _, err := red.Save(KindCowboy, SaveRequest{Name: " ", Source: moveEast}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := red.Save(KindCowboy, SaveRequest{UUID: "../x", Name: "n", Source: moveEast}); !errors.Is(err, ErrBadID) {
		t.Fatalf("bad id: %v", err)
	}
	info, err := red.Save(KindBullet, SaveRequest{Name: "n", Source: moveEast})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if info.Valid {
		t.Fatalf("cowboy blocks accepted in a bullet program")
	}
}

func TestReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	r := newRegistry(t, dir)
	red, _ := r.ByLogin("red")
	a, _ := red.Save(KindCowboy, SaveRequest{UUID: "prog-1", Name: "one", Description: "d", Source: moveEast})
	b, _ := red.Save(KindCowboy, SaveRequest{Name: "two", Source: fireWest})
	if err := red.Activate(KindCowboy, b.UUID); err != nil {
		t.Fatal(err)
	}

	again := newRegistry(t, dir)
	red2, _ := again.ByLogin("red")
	list := red2.List(KindCowboy)
	if len(list) != 2 {
		t.Fatalf("list=%+v", list)
	}
	if list[0].UUID != a.UUID || list[0].Description != "d" || list[0].Active {
		t.Fatalf("first=%+v", list[0])
	}
	if !list[1].Active || !list[0].LastModified.Equal(a.LastModified) {
		t.Fatalf("second=%+v first=%+v", list[1], list[0])
	}
	code, err := red2.Code(KindCowboy, a.UUID)
	if err != nil || code != moveEast {
		t.Fatalf("code=%q err=%v", code, err)
	}
}

func TestResaveActiveWithBrokenSourceKeepsRunningProgram(t *testing.T) {
	dir := t.TempDir()
	r := newRegistry(t, dir)
	red, _ := r.ByLogin("red")
	good, err := red.Save(KindCowboy, SaveRequest{Name: "east", Source: moveEast})
	if err != nil || !good.Active {
		t.Fatalf("save: info=%+v err=%v", good, err)
	}
	if err := red.Activate(KindCowboy, good.UUID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	bad, err := red.Save(KindCowboy, SaveRequest{UUID: good.UUID, Name: "east", Source: broken})
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
	if bad.Valid || bad.Active {
		t.Fatalf("broken resave info=%+v", bad)
	}
	for _, info := range red.List(KindCowboy) {
		if info.Active && !info.Valid {
			t.Fatalf("invalid program listed active: %+v", info)
		}
	}
	if got := r.CowboyProgram(0); !got.Valid() || got.Source != moveEast {
		t.Fatalf("running program valid=%v source=%q", got.Valid(), got.Source)
	}
	if code, _ := red.Code(KindCowboy, good.UUID); code != broken {
		t.Fatalf("stored source=%q", code)
	}

	again := newRegistry(t, dir)
	if got := again.CowboyProgram(0); !got.Valid() || got.Source != moveEast {
		t.Fatalf("after reload valid=%v source=%q", got.Valid(), got.Source)
	}

	fixed, err := red.Save(KindCowboy, SaveRequest{UUID: good.UUID, Name: "east", Source: fireWest})
	if err != nil || !fixed.Active {
		t.Fatalf("fixed resave info=%+v err=%v", fixed, err)
	}
	if got := r.CowboyProgram(0).Source; got != fireWest {
		t.Fatalf("running source=%q", got)
	}
}

func TestAuthenticate(t *testing.T) {
	r := newRegistry(t, t.TempDir())
	if tm, ok := r.Authenticate("blue", "b"); !ok || tm.Index != 1 {
		t.Fatalf("blue login failed")
	}
	if _, ok := r.Authenticate("blue", "r"); ok {
		t.Fatalf("wrong password accepted")
	}
	if _, ok := r.Authenticate("nobody", ""); ok {
		t.Fatalf("unknown team accepted")
	}
}
