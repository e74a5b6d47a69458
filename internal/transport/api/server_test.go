package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cowboys.arena/internal/game"
	"cowboys.arena/internal/game/gametest"
	plog "cowboys.arena/internal/persistence/log"
	"cowboys.arena/internal/protocol"
	"cowboys.arena/internal/sim/gridtest"
	"cowboys.arena/internal/sim/tuning"
)

type auditRecorder struct{ entries []plog.AuditEntry }

func (a *auditRecorder) WriteAudit(e plog.AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

type fixture struct {
	t     *testing.T
	game  *game.Game
	srv   *httptest.Server
	audit *auditRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gm := gametest.New(t)
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "save_program.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	s := NewServer(Config{
		Org:        gametest.Org,
		Timer:      tuning.Timer{CowboyTurnPeriodMs: 1000, BulletTurnPeriodMs: 250, BulletTurns: 3},
		SaveSchema: schema,
	}, gm)
	a := &auditRecorder{}
	s.SetAuditor(a)
	mux := http.NewServeMux()
	s.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{t: t, game: gm, srv: srv, audit: a}
}

// do sends a request as login (empty for anonymous) and returns the status
// and body.
func (f *fixture) do(method, path, login, password, body string) (int, []byte) {
	f.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		f.t.Fatalf("NewRequest: %v", err)
	}
	if login != "" {
		req.SetBasicAuth(login, password)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		f.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func (f *fixture) red(method, path, body string) (int, []byte) {
	return f.do(method, path, "red", "red-pw", body)
}

func (f *fixture) org(method, path, body string) (int, []byte) {
	return f.do(method, path, "org", "org-pw", body)
}

func errorCode(t *testing.T, b []byte) string {
	t.Helper()
	var e protocol.ErrorBody
	if err := json.Unmarshal(b, &e); err != nil {
		t.Fatalf("error body %s: %v", b, err)
	}
	return e.Error.Code
}

func saveBody(t *testing.T, req protocol.SaveProgramReq) string {
	t.Helper()
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestProgramLifecycle(t *testing.T) {
	f := newFixture(t)

	status, body := f.red(http.MethodPost, "/api/v1/team/cowboy/programs",
		saveBody(t, protocol.SaveProgramReq{Name: "east", Program: gridtest.Move("E")}))
	if status != http.StatusOK {
		t.Fatalf("save: %d %s", status, body)
	}
	var first protocol.ProgramInfo
	_ = json.Unmarshal(body, &first)
	if !first.Active || !first.Valid || first.UUID == "" {
		t.Fatalf("first program=%+v", first)
	}

	status, body = f.red(http.MethodPost, "/api/v1/team/cowboy/programs",
		saveBody(t, protocol.SaveProgramReq{UUID: "my-west", Name: "a-west", Program: gridtest.Move("W")}))
	if status != http.StatusOK {
		t.Fatalf("save with uuid: %d %s", status, body)
	}

	status, body = f.red(http.MethodGet, "/api/v1/team/cowboy/programs", "")
	var list []protocol.ProgramInfo
	_ = json.Unmarshal(body, &list)
	if status != http.StatusOK || len(list) != 2 || list[0].Name != "a-west" || list[1].Name != "east" {
		t.Fatalf("list: %d %+v", status, list)
	}

	status, body = f.red(http.MethodGet, "/api/v1/team/cowboy/programs/my-west", "")
	if status != http.StatusOK || string(body) != gridtest.Move("W") {
		t.Fatalf("code: %d %s", status, body)
	}

	if status, body = f.red(http.MethodDelete, "/api/v1/team/cowboy/programs/"+first.UUID, ""); status != http.StatusBadRequest || errorCode(t, body) != protocol.ErrConflict {
		t.Fatalf("delete active: %d %s", status, body)
	}
	if status, _ = f.red(http.MethodPost, "/api/v1/team/cowboy/programs/my-west/activate", ""); status != http.StatusNoContent {
		t.Fatalf("activate: %d", status)
	}
	if status, _ = f.red(http.MethodDelete, "/api/v1/team/cowboy/programs/"+first.UUID, ""); status != http.StatusNoContent {
		t.Fatalf("delete: %d", status)
	}
	if status, body = f.red(http.MethodDelete, "/api/v1/team/cowboy/programs/"+first.UUID, ""); status != http.StatusNotFound || errorCode(t, body) != protocol.ErrNotFound {
		t.Fatalf("delete missing: %d %s", status, body)
	}

	actions := map[string]int{}
	for _, e := range f.audit.entries {
		if e.Actor != "red" {
			t.Fatalf("audit actor=%q", e.Actor)
		}
		actions[e.Action]++
	}
	if actions["program_save"] != 2 || actions["program_activate"] != 1 || actions["program_delete"] != 1 {
		t.Fatalf("audit=%v", actions)
	}
}

func TestSaveValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		body string
		code string
	}{
		{"empty name", saveBody(t, protocol.SaveProgramReq{Program: gridtest.Move("E")}), protocol.ErrBadRequest},
		{"bad uuid", saveBody(t, protocol.SaveProgramReq{UUID: "../x", Name: "n", Program: gridtest.Move("E")}), protocol.ErrBadRequest},
		{"not json", "<xml/>", protocol.ErrBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.red(http.MethodPost, "/api/v1/team/cowboy/programs", tc.body)
			if status != http.StatusBadRequest || errorCode(t, body) != tc.code {
				t.Fatalf("%d %s", status, body)
			}
		})
	}

	// A program that does not parse is kept but cannot be activated.
	status, body := f.red(http.MethodPost, "/api/v1/team/bullet/programs",
		saveBody(t, protocol.SaveProgramReq{UUID: "broken", Name: "broken", Program: "<xml><block"}))
	if status != http.StatusOK {
		t.Fatalf("save broken: %d %s", status, body)
	}
	var info protocol.ProgramInfo
	_ = json.Unmarshal(body, &info)
	if info.Valid || info.Active || info.Error == "" {
		t.Fatalf("broken info=%+v", info)
	}
	if status, body = f.red(http.MethodPost, "/api/v1/team/bullet/programs/broken/activate", ""); status != http.StatusBadRequest || errorCode(t, body) != protocol.ErrInvalidProgram {
		t.Fatalf("activate broken: %d %s", status, body)
	}
	if status, _ = f.red(http.MethodGet, "/api/v1/team/tank/programs", ""); status != http.StatusNotFound {
		t.Fatalf("unknown kind: %d", status)
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t)
	if status, body := f.do(http.MethodGet, "/api/v1/team/results", "", "", ""); status != http.StatusUnauthorized || errorCode(t, body) != protocol.ErrUnauthorized {
		t.Fatalf("anonymous: %d %s", status, body)
	}
	if status, _ := f.do(http.MethodGet, "/api/v1/team/results", "red", "wrong", ""); status != http.StatusUnauthorized {
		t.Fatalf("bad password: %d", status)
	}
	if status, body := f.red(http.MethodPost, "/api/v1/org/turn/cowboys", ""); status != http.StatusForbidden || errorCode(t, body) != protocol.ErrNoPermission {
		t.Fatalf("team as org: %d %s", status, body)
	}
	if status, _ := f.do(http.MethodGet, "/api/v1/state", "", "", ""); status != http.StatusOK {
		t.Fatalf("state must be public: %d", status)
	}
}

func TestOrgTurnsAndPlayback(t *testing.T) {
	f := newFixture(t)
	f.red(http.MethodPost, "/api/v1/team/cowboy/programs",
		saveBody(t, protocol.SaveProgramReq{Name: "east", Program: gridtest.Move("E")}))

	status, body := f.org(http.MethodPost, "/api/v1/org/turn/cowboys", "")
	if status != http.StatusOK {
		t.Fatalf("cowboys turn: %d %s", status, body)
	}
	if status, _ = f.org(http.MethodPost, "/api/v1/org/turn/bullets", ""); status != http.StatusOK {
		t.Fatalf("bullets turn: %d", status)
	}
	var st protocol.GameStatus
	_, body = f.do(http.MethodGet, "/api/v1/status", "", "", "")
	_ = json.Unmarshal(body, &st)
	if st.Turn != 1 || st.BulletSubturn != 1 || st.Rounds != 2 {
		t.Fatalf("status=%+v", st)
	}

	_, body = f.red(http.MethodGet, "/api/v1/team/results", "")
	var res protocol.ResultsMsg
	_ = json.Unmarshal(body, &res)
	if len(res.Cowboy) != 1 || !strings.Contains(res.Cowboy[0].Lines[0], "MOVE(E)") {
		t.Fatalf("results=%+v", res)
	}

	status, body = f.org(http.MethodGet, "/api/v1/org/rounds/0", "")
	var round protocol.StateMsg
	_ = json.Unmarshal(body, &round)
	if status != http.StatusOK || round.Turn != 1 || round.BulletSubturn != 0 {
		t.Fatalf("round 0: %d %+v", status, round)
	}
	if status, _ = f.org(http.MethodGet, "/api/v1/org/rounds/9", ""); status != http.StatusNotFound {
		t.Fatalf("missing round: %d", status)
	}
	if status, _ = f.org(http.MethodGet, "/api/v1/org/rounds/x", ""); status != http.StatusBadRequest {
		t.Fatalf("bad round index: %d", status)
	}
	if status, _ = f.org(http.MethodPost, "/api/v1/org/turn/sideways", ""); status != http.StatusNotFound {
		t.Fatalf("unknown turn: %d", status)
	}
}

func TestOrgTimer(t *testing.T) {
	f := newFixture(t)
	if status, body := f.org(http.MethodPost, "/api/v1/org/timer/stop", ""); status != http.StatusConflict {
		t.Fatalf("stop idle timer: %d %s", status, body)
	}
	if status, body := f.org(http.MethodPost, "/api/v1/org/timer/start", `{"cowboy_turn_period_ms":0}`); status != http.StatusBadRequest {
		t.Fatalf("zero period: %d %s", status, body)
	}
	status, body := f.org(http.MethodPost, "/api/v1/org/timer/start", `{"cowboy_turn_period_ms":50,"bullet_turn_period_ms":10,"bullet_turns":2}`)
	var st protocol.GameStatus
	_ = json.Unmarshal(body, &st)
	if status != http.StatusOK || !st.TimerRunning || st.Timer.BulletTurns != 2 {
		t.Fatalf("start: %d %s", status, body)
	}
	if status, _ = f.org(http.MethodPost, "/api/v1/org/timer/start", ""); status != http.StatusConflict {
		t.Fatalf("second start: %d", status)
	}
	status, body = f.org(http.MethodPost, "/api/v1/org/timer/stop", "")
	_ = json.Unmarshal(body, &st)
	if status != http.StatusOK || st.TimerRunning {
		t.Fatalf("stop: %d %s", status, body)
	}
}
