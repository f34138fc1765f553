package protocol

import "time"

// Control message types exchanged on the first stream of a device's
// multiplexed session.
const (
	TypeHello       = "hello"
	TypeHeartbeat   = "heartbeat"
	TypePunch       = "punch"
	TypePunchOffer  = "punch_offer"
	TypePunchAnswer = "punch_answer"
	TypeRelay       = "relay"
	TypeRelayOpen   = "relay_open"
	TypeAck         = "ack"
	TypeError       = "error"
)

// Connection kinds brokered by the server.
const (
	KindPunchHole = "punch_hole"
	KindRelay     = "relay"
)

// Message is one JSON control frame. Fields are populated per Type:
// punch/relay carry Target, forwarded offers carry Source and Addr,
// relay_open carries SessionID on the payload stream header.
type Message struct {
	Type      string `json:"type"`
	Target    string `json:"target,omitempty"`
	Source    string `json:"source,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Addr      string `json:"addr,omitempty"`
	Payload   string `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

type RegisterRequest struct {
	DeviceID  string        `json:"device_id"`
	ExpiresIn time.Duration `json:"expires_in,omitempty"`
}

type RegisterResponse struct {
	DeviceID          string        `json:"device_id"`
	Token             string        `json:"token"`
	ExpiresIn         time.Duration `json:"expires_in"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
}
