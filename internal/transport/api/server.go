// Package api is the HTTP surface of a game: teams manage their programs and
// read their results, anyone reads the board, and the organizer drives
// turns and the timer.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cowboys.arena/internal/game"
	plog "cowboys.arena/internal/persistence/log"
	"cowboys.arena/internal/protocol"
	"cowboys.arena/internal/sim/tuning"
	"cowboys.arena/internal/team"
)

const maxBody = 1 << 20

// Auditor records who changed what.
type Auditor interface {
	WriteAudit(e plog.AuditEntry) error
}

type Config struct {
	Org   tuning.Account
	Timer tuning.Timer
	// SaveSchema, when set, validates program uploads before parsing.
	SaveSchema *jsonschema.Schema
	Logger     *log.Logger
	// Context bounds timers started over the API.
	Context context.Context
}

type Server struct {
	cfg   Config
	game  *game.Game
	audit Auditor
	log   *log.Logger
}

func NewServer(cfg Config, g *game.Game) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	return &Server{cfg: cfg, game: g, log: logger}
}

func (s *Server) SetAuditor(a Auditor) { s.audit = a }

// Register mounts every route on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/state", s.handleState)
	mux.HandleFunc("/api/v1/statistics", s.handleStatistics)
	mux.HandleFunc("/api/v1/status", s.handleStatus)

	mux.HandleFunc("/api/v1/team/results", s.teamOnly(s.handleResults))
	mux.HandleFunc("/api/v1/team/", s.teamOnly(s.handlePrograms))

	mux.HandleFunc("/api/v1/org/turn/", s.orgOnly(s.handleTurn))
	mux.HandleFunc("/api/v1/org/timer/", s.orgOnly(s.handleTimer))
	mux.HandleFunc("/api/v1/org/rounds", s.orgOnly(s.handleRounds))
	mux.HandleFunc("/api/v1/org/rounds/", s.orgOnly(s.handleRound))
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.NewError(code, msg))
}

func methodNotAllowed(rw http.ResponseWriter) {
	writeError(rw, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "method not allowed")
}

func (s *Server) auditf(actor, action string, fields map[string]string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.WriteAudit(plog.AuditEntry{Time: time.Now().UTC(), Actor: actor, Action: action, Fields: fields}); err != nil {
		s.log.Printf("audit %s %s: %v", actor, action, err)
	}
}

type teamHandler func(rw http.ResponseWriter, r *http.Request, t *team.Team)

func (s *Server) teamOnly(h teamHandler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		login, password, ok := r.BasicAuth()
		if !ok {
			rw.Header().Set("WWW-Authenticate", `Basic realm="team"`)
			writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, "login required")
			return
		}
		t, ok := s.game.Authenticate(login, password)
		if !ok {
			writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, "bad login or password")
			return
		}
		h(rw, r, t)
	}
}

func (s *Server) orgOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		login, password, ok := r.BasicAuth()
		if !ok {
			rw.Header().Set("WWW-Authenticate", `Basic realm="org"`)
			writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, "login required")
			return
		}
		if login != s.cfg.Org.Login || subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Org.Password)) != 1 {
			writeError(rw, http.StatusForbidden, protocol.ErrNoPermission, "organizer only")
			return
		}
		h(rw, r)
	}
}

func (s *Server) handleState(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw)
		return
	}
	writeJSON(rw, http.StatusOK, s.game.State())
}

func (s *Server) handleStatistics(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw)
		return
	}
	writeJSON(rw, http.StatusOK, s.game.Statistics())
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw)
		return
	}
	writeJSON(rw, http.StatusOK, s.game.Status())
}

func (s *Server) handleResults(rw http.ResponseWriter, r *http.Request, t *team.Team) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw)
		return
	}
	res, err := s.game.Results(t.Login)
	if err != nil {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, res)
}

// handlePrograms serves /api/v1/team/{kind}/programs[/{uuid}[/activate]].
func (s *Server) handlePrograms(rw http.ResponseWriter, r *http.Request, t *team.Team) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/team/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[1] != "programs" {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "not found")
		return
	}
	kind, ok := team.ParseKind(parts[0])
	if !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "unknown program kind "+parts[0])
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		out := []protocol.ProgramInfo{}
		for _, info := range t.List(kind) {
			out = append(out, programInfo(info))
		}
		writeJSON(rw, http.StatusOK, out)

	case len(parts) == 2 && r.Method == http.MethodPost:
		s.saveProgram(rw, r, t, kind)

	case len(parts) == 3 && r.Method == http.MethodGet:
		src, err := t.Code(kind, parts[2])
		if err != nil {
			writeTeamError(rw, err)
			return
		}
		rw.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = io.WriteString(rw, src)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		if err := s.game.DeleteProgram(t, kind, parts[2]); err != nil {
			writeTeamError(rw, err)
			return
		}
		s.auditf(t.Login, "program_delete", map[string]string{"kind": string(kind), "uuid": parts[2]})
		rw.WriteHeader(http.StatusNoContent)

	case len(parts) == 4 && parts[3] == "activate" && r.Method == http.MethodPost:
		if err := s.game.ActivateProgram(t, kind, parts[2]); err != nil {
			writeTeamError(rw, err)
			return
		}
		s.auditf(t.Login, "program_activate", map[string]string{"kind": string(kind), "uuid": parts[2]})
		rw.WriteHeader(http.StatusNoContent)

	case len(parts) > 4 || (len(parts) == 4 && parts[3] != "activate"):
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "not found")

	default:
		methodNotAllowed(rw)
	}
}

func (s *Server) saveProgram(rw http.ResponseWriter, r *http.Request, t *team.Team, kind team.Kind) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	if s.cfg.SaveSchema != nil {
		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid json: "+err.Error())
			return
		}
		if err := s.cfg.SaveSchema.Validate(doc); err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			return
		}
	}
	var req protocol.SaveProgramReq
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid json: "+err.Error())
		return
	}
	info, err := s.game.SaveProgram(t, kind, team.SaveRequest{
		UUID:        req.UUID,
		Name:        req.Name,
		Description: req.Description,
		Source:      req.Program,
	})
	if err != nil {
		writeTeamError(rw, err)
		return
	}
	s.auditf(t.Login, "program_save", map[string]string{"kind": string(kind), "uuid": info.UUID, "valid": strconv.FormatBool(info.Valid)})
	writeJSON(rw, http.StatusOK, programInfo(info))
}

func programInfo(i team.Info) protocol.ProgramInfo {
	return protocol.ProgramInfo{
		UUID:         i.UUID,
		Name:         i.Name,
		Description:  i.Description,
		LastModified: i.LastModified,
		Active:       i.Active,
		Valid:        i.Valid,
		Error:        i.Error,
	}
}

func writeTeamError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, team.ErrNotFound):
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, err.Error())
	case errors.Is(err, team.ErrActive):
		writeError(rw, http.StatusBadRequest, protocol.ErrConflict, err.Error())
	case errors.Is(err, team.ErrInvalidProgram):
		writeError(rw, http.StatusBadRequest, protocol.ErrInvalidProgram, err.Error())
	case errors.Is(err, team.ErrEmptyName), errors.Is(err, team.ErrBadID):
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
	default:
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
	}
}

// handleTurn plays one sub-turn: /api/v1/org/turn/{cowboys|bullets}.
func (s *Server) handleTurn(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(rw)
		return
	}
	var err error
	switch which := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/org/turn/"), "/"); which {
	case "cowboys":
		_, err = s.game.CowboysTurn()
	case "bullets":
		_, err = s.game.BulletsTurn()
	default:
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "unknown turn "+which)
		return
	}
	if err != nil {
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	s.auditf(s.cfg.Org.Login, "turn", map[string]string{"path": r.URL.Path})
	writeJSON(rw, http.StatusOK, s.game.Status())
}

// handleTimer serves /api/v1/org/timer/{start|stop}. A start body may
// override the configured periods.
func (s *Server) handleTimer(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(rw)
		return
	}
	switch which := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/org/timer/"), "/"); which {
	case "start":
		settings := s.cfg.Timer
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			return
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			var req protocol.TimerSettings
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid json: "+err.Error())
				return
			}
			settings = tuning.Timer{
				CowboyTurnPeriodMs: req.CowboyTurnPeriodMs,
				BulletTurnPeriodMs: req.BulletTurnPeriodMs,
				BulletTurns:        req.BulletTurns,
			}
		}
		if err := s.game.StartTimer(s.cfg.Context, settings); err != nil {
			switch {
			case errors.Is(err, game.ErrTimerRunning):
				writeError(rw, http.StatusConflict, protocol.ErrConflict, err.Error())
			default:
				writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			}
			return
		}
		s.auditf(s.cfg.Org.Login, "timer_start", map[string]string{
			"cowboy_turn_period_ms": strconv.Itoa(settings.CowboyTurnPeriodMs),
			"bullet_turn_period_ms": strconv.Itoa(settings.BulletTurnPeriodMs),
			"bullet_turns":          strconv.Itoa(settings.BulletTurns),
		})
	case "stop":
		if err := s.game.StopTimer(); err != nil {
			writeError(rw, http.StatusConflict, protocol.ErrConflict, err.Error())
			return
		}
		s.auditf(s.cfg.Org.Login, "timer_stop", nil)
	default:
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "unknown timer action "+which)
		return
	}
	writeJSON(rw, http.StatusOK, s.game.Status())
}

func (s *Server) handleRounds(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw)
		return
	}
	files, err := s.game.Rounds()
	if err != nil {
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"rounds": len(files)})
}

// handleRound replays one saved sub-turn: /api/v1/org/rounds/{i}.
func (s *Server) handleRound(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw)
		return
	}
	i, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/org/rounds/"), "/"))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "round index must be a number")
		return
	}
	st, err := s.game.Round(i)
	switch {
	case errors.Is(err, game.ErrRoundNotFound):
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, err.Error())
	case err != nil:
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
	default:
		writeJSON(rw, http.StatusOK, st)
	}
}

// Timeout answers E_BUSY when h takes longer than d.
func Timeout(h http.Handler, d time.Duration) http.Handler {
	return http.TimeoutHandler(h, d, `{"error":{"code":"E_BUSY","message":"timeout"}}`)
}
