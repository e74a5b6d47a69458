package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"cowboys.arena/internal/game"
	"cowboys.arena/internal/observerproto"
	"cowboys.arena/internal/protocol"
	"cowboys.arena/internal/sim/grid"
)

// Source is the read side of a running game.
type Source interface {
	State() protocol.StateMsg
	Statistics() protocol.StatisticsMsg
	Status() protocol.GameStatus
	Rules() grid.Rules
}

type client struct {
	out        chan []byte
	statistics atomic.Bool
}

// Server streams the board to map viewers: the current STATE on subscribe,
// then one STATE after every sub-turn.
type Server struct {
	src    Source
	logins []string
	log    *log.Logger

	// LoopbackOnly rejects viewers that are not on this machine.
	LoopbackOnly bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	clients map[string]*client
	drops   atomic.Uint64
}

func NewServer(src Source, logins []string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		src:     src,
		logins:  append([]string(nil), logins...),
		log:     logger,
		clients: map[string]*client{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Clients is the number of connected viewers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Drops counts messages not delivered to slow viewers.
func (s *Server) Drops() uint64 { return s.drops.Load() }

// OnSubturn fans the new board out to every viewer without blocking.
func (s *Server) OnSubturn(ev game.Event) {
	state, err := json.Marshal(ev.State)
	if err != nil {
		s.log.Printf("observer: marshal state: %v", err)
		return
	}
	var stats []byte

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		s.send(id, c, state)
		if !c.statistics.Load() {
			continue
		}
		if stats == nil {
			// The game is locked here, so statistics come from the event.
			stats, _ = json.Marshal(statisticsFromEvent(ev))
		}
		s.send(id, c, stats)
	}
}

func (s *Server) send(id string, c *client, b []byte) {
	select {
	case c.out <- b:
	default:
		if n := s.drops.Add(1); n%100 == 1 {
			s.log.Printf("observer: %s is slow, dropped %d messages so far", id, n)
		}
	}
}

func statisticsFromEvent(ev game.Event) protocol.StatisticsMsg {
	msg := protocol.StatisticsMsg{
		Type:            protocol.TypeStatistics,
		ProtocolVersion: protocol.Version,
		Turn:            ev.State.Turn,
		Teams:           []protocol.TeamStatistics{},
	}
	for i, p := range ev.State.Points {
		ts := protocol.TeamStatistics{Team: p.Team, Points: p.Points, Kills: []int{}}
		if i < len(ev.Stats) {
			st := ev.Stats[i]
			ts.Golds = st.Golds
			ts.FiredBullets = st.FiredBullets
			ts.Deaths = st.Deaths
			ts.Kills = append(ts.Kills, st.Kills...)
			ts.KilledBullets = st.KilledBullets
		}
		msg.Teams = append(msg.Teams, ts)
	}
	return msg
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if s.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		st := s.src.State()
		rules := s.src.Rules()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Width:           st.Width,
			Height:          st.Height,
			Teams:           s.logins,
			Status:          s.src.Status(),
			Rules: observerproto.Rules{
				BulletPrice:    rules.BulletPrice,
				GoldPrice:      rules.GoldPrice,
				ShotdownBounty: rules.ShotdownBounty,
				TurnsToRespawn: rules.TurnsToRespawn,
				BulletLifetime: rules.BulletLifetime,
			},
			Statistics: s.src.Statistics(),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		c := &client{out: make(chan []byte, 64)}
		c.statistics.Store(sub.Statistics)

		s.mu.Lock()
		s.clients[sid] = c
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.clients, sid)
			s.mu.Unlock()
		}()

		// The current board goes first; sub-turns played meanwhile queue up
		// behind it.
		if err := writeJSON(conn, s.src.State()); err != nil {
			return
		}
		if sub.Statistics {
			if err := writeJSON(conn, s.src.Statistics()); err != nil {
				return
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				c.statistics.Store(sub.Statistics)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	return sub, sub.Type == observerproto.TypeSubscribe && sub.ProtocolVersion == observerproto.Version
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
