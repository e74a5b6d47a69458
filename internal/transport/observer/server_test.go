package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cowboys.arena/internal/game"
	"cowboys.arena/internal/game/gametest"
	"cowboys.arena/internal/observerproto"
	"cowboys.arena/internal/protocol"
)

func startServer(t *testing.T) (*game.Game, *Server, *httptest.Server) {
	t.Helper()
	gm := gametest.New(t)
	obs := NewServer(gm, gm.Teams().Logins(), nil)
	gm.AddListener(obs)

	mux := http.NewServeMux()
	mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obs.WSHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return gm, obs, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, want string, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read %s: %v", want, err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != want {
		t.Fatalf("expected %s, got %s", want, msg)
	}
	if err := json.Unmarshal(msg, v); err != nil {
		t.Fatalf("decode %s: %v", want, err)
	}
}

func TestStreamsStateAfterEverySubturn(t *testing.T) {
	gm, obs, srv := startServer(t)
	conn := dial(t, srv)
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, Statistics: true}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var st protocol.StateMsg
	var stats protocol.StatisticsMsg
	readType(t, conn, protocol.TypeState, &st)
	readType(t, conn, protocol.TypeStatistics, &stats)
	if st.Turn != 0 || st.Width != 6 || len(st.Cowboys) != 2 {
		t.Fatalf("initial state=%+v", st)
	}
	if obs.Clients() != 1 {
		t.Fatalf("clients=%d", obs.Clients())
	}

	if _, err := gm.CowboysTurn(); err != nil {
		t.Fatalf("CowboysTurn: %v", err)
	}
	readType(t, conn, protocol.TypeState, &st)
	readType(t, conn, protocol.TypeStatistics, &stats)
	if st.Turn != 1 || stats.Turn != 1 || len(stats.Teams) != 2 || stats.Teams[1].Team != "blue" {
		t.Fatalf("after turn: state=%+v stats=%+v", st, stats)
	}

	// Statistics can be switched off without reconnecting.
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version}); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		obs.mu.Lock()
		var on bool
		for _, c := range obs.clients {
			on = c.statistics.Load()
		}
		obs.mu.Unlock()
		if !on {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("resubscribe not applied")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := gm.BulletsTurn(); err != nil {
		t.Fatalf("BulletsTurn: %v", err)
	}
	readType(t, conn, protocol.TypeState, &st)
	if st.BulletSubturn != 1 {
		t.Fatalf("bullet state=%+v", st)
	}
}

func TestRejectsMissingSubscribe(t *testing.T) {
	_, _, srv := startServer(t)
	conn := dial(t, srv)
	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestBootstrap(t *testing.T) {
	_, _, srv := startServer(t)
	resp, err := http.Get(srv.URL + "/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Width != 6 || b.Height != 6 || len(b.Teams) != 2 || b.Teams[0] != "red" || b.Rules.GoldPrice != 10 {
		t.Fatalf("bootstrap=%+v", b)
	}
}

func TestLoopbackOnly(t *testing.T) {
	gm := gametest.New(t)
	obs := NewServer(gm, nil, nil)
	obs.LoopbackOnly = true

	req := httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "203.0.113.7:5000"
	rec := httptest.NewRecorder()
	obs.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote viewer: %d", rec.Code)
	}

	req.RemoteAddr = "[::1]:5000"
	rec = httptest.NewRecorder()
	obs.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("local viewer: %d", rec.Code)
	}
}
