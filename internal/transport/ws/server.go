// Package ws serves the team channel: after a HELLO with the team's
// credentials, the team receives its own action results after every
// sub-turn and can ask for its recent history.
package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cowboys.arena/internal/game"
	"cowboys.arena/internal/protocol"
	"cowboys.arena/internal/team"
)

// Backend authenticates teams and serves their result history.
type Backend interface {
	Authenticate(login, password string) (*team.Team, bool)
	Results(login string) (protocol.ResultsMsg, error)
}

type session struct {
	team int
	out  chan []byte
}

type Server struct {
	backend Backend
	log     *log.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func NewServer(b Backend, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		backend:  b,
		log:      logger,
		sessions: map[*session]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// OnSubturn sends each connected team its own lines.
func (s *Server) OnSubturn(ev game.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) == 0 {
		return
	}
	msgs := make(map[int][]byte, len(ev.Lines))
	for sess := range s.sessions {
		b, ok := msgs[sess.team]
		if !ok {
			if sess.team >= len(ev.Lines) {
				continue
			}
			b, _ = json.Marshal(protocol.SubturnResultsMsg{
				Type:            protocol.TypeSubturn,
				ProtocolVersion: protocol.Version,
				Kind:            ev.Report.Kind,
				Turn:            ev.Report.Turn,
				Subturn:         ev.Report.Subturn,
				Lines:           ev.Lines[sess.team],
			})
			msgs[sess.team] = b
		}
		select {
		case sess.out <- b:
		default:
			// The team reads its history on reconnect.
		}
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		t := s.handshake(conn)
		if t == nil {
			return
		}
		sess := &session{team: t.Index, out: make(chan []byte, 32)}
		s.mu.Lock()
		s.sessions[sess] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: a RESULTS request replays the history.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeResults {
				continue
			}
			res, err := s.backend.Results(t.Login)
			if err != nil {
				continue
			}
			b, _ := json.Marshal(res)
			select {
			case sess.out <- b:
			case <-ctx.Done():
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *team.Team {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}
	t, ok := s.backend.Authenticate(hello.Login, hello.Password)
	if !ok {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrUnauthorized, "bad login or password"))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"), time.Now().Add(time.Second))
		s.log.Printf("ws: rejected HELLO for %q", hello.Login)
		return nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Team:            t.Login,
		TeamIndex:       t.Index,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return t
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
