package observerproto

import "cowboys.arena/internal/protocol"

// Version is the observer protocol version (separate from the team API).
const Version = "0.1"

const TypeSubscribe = "SUBSCRIBE"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Statistics asks for a STATISTICS message after every STATE.
	Statistics bool `json:"statistics,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string                 `json:"protocol_version"`
	Width           int                    `json:"width"`
	Height          int                    `json:"height"`
	Teams           []string               `json:"teams"`
	Status          protocol.GameStatus    `json:"status"`
	Rules           Rules                  `json:"rules"`
	Statistics      protocol.StatisticsMsg `json:"statistics"`
}

type Rules struct {
	BulletPrice    int `json:"bullet_price"`
	GoldPrice      int `json:"gold_price"`
	ShotdownBounty int `json:"shotdown_bounty"`
	TurnsToRespawn int `json:"turns_to_respawn"`
	BulletLifetime int `json:"bullet_lifetime"`
}
