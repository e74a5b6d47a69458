package protocol

import (
	"time"

	"cowboys.arena/internal/persistence/snapshot"
)

// Unit is a cowboy or bullet on the map, tagged with its team's login.
type Unit struct {
	Position [2]int `json:"position"`
	Team     string `json:"team"`
}

type TeamPoints struct {
	Team   string `json:"team"`
	Points int    `json:"points"`
}

// StateMsg is what map viewers draw: the board after one sub-turn.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Turn            int    `json:"turn"`
	BulletSubturn   int    `json:"bullet_subturn"`

	Width          int          `json:"width"`
	Height         int          `json:"height"`
	Cowboys        []Unit       `json:"cowboys"`
	Bullets        []Unit       `json:"bullets"`
	Walls          [][2]int     `json:"walls"`
	Golds          [][2]int     `json:"golds"`
	Explosions     [][2]int     `json:"explosions"`
	ShotDirections [][3]int     `json:"shot_directions"`
	Points         []TeamPoints `json:"points"`
}

func login(logins []string, team int) string {
	if team >= 0 && team < len(logins) {
		return logins[team]
	}
	return ""
}

// StateFromRound renders a saved round for viewers. logins name the teams
// in board order.
func StateFromRound(r snapshot.RoundV1, logins []string) StateMsg {
	m := StateMsg{
		Type:            TypeState,
		ProtocolVersion: Version,
		Turn:            r.TurnIdx,
		BulletSubturn:   r.BulletSubturn,
		Width:           r.Width,
		Height:          r.Height,
		Cowboys:         []Unit{},
		Bullets:         []Unit{},
		Walls:           append([][2]int{}, r.Walls...),
		Golds:           [][2]int{},
		Explosions:      append([][2]int{}, r.Explosions...),
		ShotDirections:  append([][3]int{}, r.ShotDirections...),
		Points:          []TeamPoints{},
	}
	for _, c := range r.Cowboys {
		if c.Position != nil {
			m.Cowboys = append(m.Cowboys, Unit{Position: *c.Position, Team: login(logins, c.Team)})
		}
	}
	for _, b := range r.Bullets {
		m.Bullets = append(m.Bullets, Unit{Position: b.Position, Team: login(logins, b.Team)})
	}
	for _, g := range r.Golds {
		if g != nil {
			m.Golds = append(m.Golds, *g)
		}
	}
	for i, p := range r.TeamStatsPoints {
		m.Points = append(m.Points, TeamPoints{Team: login(logins, i), Points: p})
	}
	return m
}

type TeamStatistics struct {
	Team          string `json:"team"`
	Points        int    `json:"points"`
	Golds         int    `json:"golds"`
	FiredBullets  int    `json:"fired_bullets"`
	Deaths        int    `json:"deaths"`
	Kills         []int  `json:"kills"`
	KilledBullets int    `json:"killed_bullets"`
}

type StatisticsMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Turn            int              `json:"turn"`
	Teams           []TeamStatistics `json:"teams"`
}

// ResultRound is one sub-turn of a team's program results, one line per
// unit.
type ResultRound struct {
	Turn    int      `json:"turn"`
	Subturn int      `json:"subturn"`
	Lines   []string `json:"lines"`
}

type ResultsMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Team            string        `json:"team"`
	Cowboy          []ResultRound `json:"cowboy"`
	Bullet          []ResultRound `json:"bullet"`
}

// SaveProgramReq is the body of a program upload.
type SaveProgramReq struct {
	UUID        string `json:"uuid,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Program     string `json:"program"`
}

type ProgramInfo struct {
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	LastModified time.Time `json:"last_modified"`
	Active       bool      `json:"active"`
	Valid        bool      `json:"valid"`
	Error        string    `json:"error,omitempty"`
}

type TimerSettings struct {
	CowboyTurnPeriodMs int `json:"cowboy_turn_period_ms"`
	BulletTurnPeriodMs int `json:"bullet_turn_period_ms"`
	BulletTurns        int `json:"bullet_turns"`
}

type GameStatus struct {
	Turn          int           `json:"turn"`
	BulletSubturn int           `json:"bullet_subturn"`
	TimerRunning  bool          `json:"timer_running"`
	Timer         TimerSettings `json:"timer"`
	Rounds        int           `json:"rounds"`
}

// HelloMsg opens a team's results stream.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Login           string `json:"login"`
	Password        string `json:"password"`
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Team            string `json:"team"`
	TeamIndex       int    `json:"team_index"`
}

// SubturnResultsMsg carries one team's results of the sub-turn just played.
type SubturnResultsMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Kind            string   `json:"kind"`
	Turn            int      `json:"turn"`
	Subturn         int      `json:"subturn"`
	Lines           []string `json:"lines"`
}
