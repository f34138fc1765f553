package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/yamux"

	"rondo/internal/constants"
	"rondo/internal/protocol"
	"rondo/internal/relay"
)

// Config is the device-side configuration.
type Config struct {
	ServerURL string // http(s)://host:port of the signaling server
	DeviceID  string
	LocalAddr string // where inbound relay streams are delivered, e.g. 127.0.0.1:3389
}

// Agent is a minimal device client: it registers, attaches the
// multiplexed signaling connection, heartbeats, answers punch offers,
// and forwards inbound relay streams to a local service.
type Agent struct {
	cfg     Config
	clock   clock.Clock
	token   string
	session *yamux.Session

	encMu sync.Mutex
	enc   *json.Encoder
	dec   *json.Decoder

	heartbeat time.Duration
}

func New(cfg Config) *Agent {
	return &Agent{cfg: cfg, clock: clock.New(), heartbeat: constants.HeartbeatInterval}
}

// Register obtains an auth token for the configured device id.
func (a *Agent) Register(ctx context.Context) error {
	body, err := json.Marshal(protocol.RegisterRequest{DeviceID: a.cfg.DeviceID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.ServerURL+constants.EndpointRegister, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registration rejected: %s", resp.Status)
	}

	var reg protocol.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return fmt.Errorf("malformed registration response: %w", err)
	}

	a.token = reg.Token
	if reg.HeartbeatInterval > 0 {
		a.heartbeat = reg.HeartbeatInterval
	}
	log.Printf("✅ Registered as %s", a.cfg.DeviceID)
	return nil
}

// Connect attaches the signaling connection and opens the control
// stream. Register must have succeeded first.
func (a *Agent) Connect(ctx context.Context) error {
	if a.token == "" {
		return fmt.Errorf("not registered")
	}

	wsURL := strings.Replace(a.cfg.ServerURL, "http", "ws", 1) +
		constants.EndpointWebSocket + a.cfg.DeviceID + "?token=" + a.token

	dialer := &websocket.Dialer{
		ReadBufferSize:   constants.WSBufferSize,
		WriteBufferSize:  constants.WSBufferSize,
		HandshakeTimeout: constants.WSHandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("server refused attach: %s", resp.Status)
		}
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	conn.SetReadLimit(int64(constants.MaxWSMessageSize))

	session, err := yamux.Client(relay.NewWSConn(conn), relay.YamuxConfig())
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create yamux session: %w", err)
	}

	ctrl, err := session.Open()
	if err != nil {
		session.Close()
		return fmt.Errorf("failed to open control stream: %w", err)
	}

	a.session = session
	a.enc = json.NewEncoder(ctrl)
	a.dec = json.NewDecoder(ctrl)

	if err := a.send(protocol.Message{Type: protocol.TypeHello}); err != nil {
		session.Close()
		return err
	}

	log.Printf("🔌 Attached to %s", a.cfg.ServerURL)
	return nil
}

// Run services the connection until ctx is cancelled or the session
// dies: heartbeats, inbound relay streams, and control traffic.
func (a *Agent) Run(ctx context.Context) error {
	if a.session == nil {
		return fmt.Errorf("not connected")
	}

	go a.heartbeatLoop(ctx)
	go a.acceptLoop()

	for {
		var msg protocol.Message
		if err := a.dec.Decode(&msg); err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("control stream closed: %w", err)
			}
		}
		a.handleControl(msg)
	}
}

func (a *Agent) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}

// Punch asks the server to broker a direct path to target.
func (a *Agent) Punch(target, payload string) error {
	return a.send(protocol.Message{Type: protocol.TypePunch, Target: target, Payload: payload})
}

// Relay asks the server for a relayed path to target.
func (a *Agent) Relay(target string) error {
	return a.send(protocol.Message{Type: protocol.TypeRelay, Target: target})
}

func (a *Agent) send(msg protocol.Message) error {
	a.encMu.Lock()
	defer a.encMu.Unlock()
	return a.enc.Encode(msg)
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := a.clock.Ticker(a.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.send(protocol.Message{Type: protocol.TypeHeartbeat}); err != nil {
				return
			}
		}
	}
}

// acceptLoop delivers server-opened relay streams to the local service.
func (a *Agent) acceptLoop() {
	for {
		stream, err := a.session.Accept()
		if err != nil {
			return
		}
		go a.handleRelayStream(stream)
	}
}

func (a *Agent) handleRelayStream(stream net.Conn) {
	header, err := protocol.ReadHeader(stream)
	if err != nil {
		log.Printf("❌ Bad relay stream header: %v", err)
		stream.Close()
		return
	}
	if header.Type != protocol.TypeRelayOpen {
		log.Printf("❌ Unexpected stream header type: %s", header.Type)
		stream.Close()
		return
	}

	if a.cfg.LocalAddr == "" {
		log.Printf("⚠️  Relay stream %s refused: no local address configured", header.SessionID)
		stream.Close()
		return
	}

	local, err := net.DialTimeout("tcp", a.cfg.LocalAddr, 10*time.Second)
	if err != nil {
		log.Printf("❌ Failed to reach local service %s: %v", a.cfg.LocalAddr, err)
		stream.Close()
		return
	}

	log.Printf("🔀 Relay stream %s connected to %s", header.SessionID, a.cfg.LocalAddr)
	relay.Pipe(relay.Session{
		ID:        header.SessionID,
		SourceID:  header.Source,
		TargetID:  header.Target,
		StartedAt: a.clock.Now(),
	}, stream, local)
}

func (a *Agent) handleControl(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypePunchOffer:
		log.Printf("🤝 Punch offer from %s (addr %s)", msg.Source, msg.Addr)
		// Answer with our view of the local endpoint; actual NAT
		// traversal happens outside the signaling plane.
		a.send(protocol.Message{Type: protocol.TypePunchAnswer, Target: msg.Source, Payload: a.cfg.LocalAddr})

	case protocol.TypePunchAnswer:
		log.Printf("🤝 Punch answer from %s (addr %s, payload %s)", msg.Source, msg.Addr, msg.Payload)

	case protocol.TypeAck:
		if msg.SessionID != "" {
			log.Printf("✅ Relay session granted: %s (peer %s)", msg.SessionID, msg.Target)
		} else {
			log.Printf("✅ Request acknowledged for %s", msg.Target)
		}

	case protocol.TypeError:
		log.Printf("⛔ Server refused request: %s", msg.Error)

	default:
		log.Printf("❓ Unknown control message: %s", msg.Type)
	}
}
