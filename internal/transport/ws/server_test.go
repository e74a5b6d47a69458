package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cowboys.arena/internal/game"
	"cowboys.arena/internal/game/gametest"
	"cowboys.arena/internal/protocol"
	"cowboys.arena/internal/sim/grid"
	"cowboys.arena/internal/sim/gridtest"
	"cowboys.arena/internal/team"
)

func start(t *testing.T) (*game.Game, *httptest.Server) {
	t.Helper()
	gm := gametest.New(t)
	s := NewServer(gm, nil)
	gm.AddListener(s)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return gm, srv
}

func hello(t *testing.T, srv *httptest.Server, login, password string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	msg := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Login: login, Password: password}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("hello: %v", err)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(msg, v); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
}

func TestTeamReceivesOwnResults(t *testing.T) {
	gm, srv := start(t)
	blue, _ := gm.Teams().ByLogin("blue")
	if _, err := gm.SaveProgram(blue, team.KindCowboy, team.SaveRequest{Name: "fire", Source: gridtest.Fire("N")}); err != nil {
		t.Fatalf("SaveProgram: %v", err)
	}

	conn := hello(t, srv, "blue", "blue-pw")
	var welcome protocol.WelcomeMsg
	read(t, conn, &welcome)
	if welcome.Type != protocol.TypeWelcome || welcome.Team != "blue" || welcome.TeamIndex != 1 {
		t.Fatalf("welcome=%+v", welcome)
	}

	// The history reply proves the session is registered.
	if err := conn.WriteJSON(protocol.BaseMessage{Type: protocol.TypeResults, ProtocolVersion: protocol.Version}); err != nil {
		t.Fatalf("results request: %v", err)
	}
	var history protocol.ResultsMsg
	read(t, conn, &history)
	if history.Team != "blue" || len(history.Cowboy) != 0 {
		t.Fatalf("history=%+v", history)
	}

	if _, err := gm.CowboysTurn(); err != nil {
		t.Fatalf("CowboysTurn: %v", err)
	}
	var res protocol.SubturnResultsMsg
	read(t, conn, &res)
	if res.Type != protocol.TypeSubturn || res.Kind != grid.KindCowboy || res.Turn != 1 || len(res.Lines) != 1 {
		t.Fatalf("results=%+v", res)
	}
	if !strings.Contains(res.Lines[0], "Cowboy at (4, 4): action FIRE(N)") {
		t.Fatalf("line=%q", res.Lines[0])
	}
}

func TestRejectsBadPassword(t *testing.T) {
	_, srv := start(t)
	conn := hello(t, srv, "red", "nope")
	var e protocol.ErrorBody
	read(t, conn, &e)
	if e.Error.Code != protocol.ErrUnauthorized {
		t.Fatalf("error=%+v", e)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected close, got %v", err)
	}
}
