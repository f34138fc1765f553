package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/yamux"

	"rondo/internal/constants"
	"rondo/internal/device"
	"rondo/internal/gate"
	"rondo/internal/metrics"
	"rondo/internal/protocol"
	"rondo/internal/relay"
	"rondo/internal/security"
	"rondo/internal/utils"
)

// HandleRegister issues a device its auth token. Registration is open
// to banned devices on purpose: the ban is enforced at connection
// brokering, and the dashboard wants banned devices visible when they
// come online.
func (s *Server) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRegisterBodySize)

	var req protocol.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, constants.MsgInvalidJSON, http.StatusBadRequest)
		return
	}

	if !security.ValidateDeviceID(req.DeviceID) {
		http.Error(w, constants.MsgInvalidDeviceID, http.StatusBadRequest)
		return
	}

	duration := constants.DeviceDuration
	if req.ExpiresIn > 0 {
		duration = req.ExpiresIn
		if duration < constants.MinDeviceDuration {
			duration = constants.MinDeviceDuration
		}
		if duration > constants.MaxDeviceDuration {
			duration = constants.MaxDeviceDuration
		}
	}

	token := uuid.New().String()
	now := s.Clock.Now()

	s.Devices.Save(&device.Device{
		ID:           req.DeviceID,
		TokenHash:    utils.HashSHA256(token),
		RegisteredAt: now,
		ExpiresAt:    now.Add(duration),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.RegisterResponse{
		DeviceID:          req.DeviceID,
		Token:             token,
		ExpiresIn:         duration,
		HeartbeatInterval: constants.HeartbeatInterval,
	})

	log.Printf("✅ Device registered: %s (expires in %s)", req.DeviceID, duration)
}

// HandleWebSocket attaches a registered device's signaling connection:
// websocket, wrapped to net.Conn, multiplexed with yamux. The first
// accepted stream is the control channel; server-opened streams carry
// relay payloads.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := security.GetClientIP(r)

	if !s.ConnLimiter.TryConnect(clientIP) {
		if s.Audit != nil {
			s.Audit.LogConnectionLimit(clientIP)
		}
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}
	defer s.ConnLimiter.Disconnect(clientIP)

	deviceID := strings.TrimPrefix(r.URL.Path, constants.EndpointWebSocket)
	if !security.ValidateDeviceID(deviceID) {
		http.Error(w, constants.MsgInvalidDeviceID, http.StatusBadRequest)
		return
	}

	dev, ok := s.Devices.Get(deviceID)
	if !ok {
		http.Error(w, constants.MsgDeviceNotFound, http.StatusNotFound)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" || !dev.VerifyToken(token) {
		if s.Audit != nil {
			s.Audit.LogAuthFailure(clientIP, deviceID, "Invalid or missing token")
		}
		http.Error(w, constants.MsgUnauthorized, http.StatusUnauthorized)
		return
	}

	conn, err := relay.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(int64(constants.MaxWSMessageSize))

	session, err := yamux.Server(relay.NewWSConn(conn), relay.YamuxConfig())
	if err != nil {
		log.Printf("❌ Failed to create yamux session for %s: %v", deviceID, err)
		conn.Close()
		return
	}
	defer session.Close()

	ctrlStream, err := session.Accept()
	if err != nil {
		log.Printf("❌ No control stream from %s: %v", deviceID, err)
		return
	}

	cl := &client{
		id:      deviceID,
		ip:      clientIP,
		session: session,
		ctrl:    &control{enc: json.NewEncoder(ctrlStream)},
	}
	s.addClient(cl)
	defer s.removeClient(cl)

	// Attaching counts as a heartbeat.
	s.Registry.Touch(deviceID, s.Clock.Now())
	log.Printf("🔌 Device connected: %s from %s", deviceID, clientIP)

	dec := json.NewDecoder(ctrlStream)
	for {
		var msg protocol.Message
		if err := dec.Decode(&msg); err != nil {
			break
		}
		s.handleControlMessage(cl, msg)
	}

	log.Printf("🔌 Device disconnected: %s", deviceID)
}

func (s *Server) handleControlMessage(cl *client, msg protocol.Message) {
	// Any control traffic proves the device is alive.
	s.Registry.Touch(cl.id, s.Clock.Now())

	switch msg.Type {
	case protocol.TypeHello, protocol.TypeHeartbeat:
		metrics.HeartbeatsTotal.Inc()

	case protocol.TypePunch:
		s.handlePunch(cl, msg)

	case protocol.TypePunchAnswer:
		s.forwardPunchAnswer(cl, msg)

	case protocol.TypeRelay:
		s.handleRelay(cl, msg)

	default:
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Error: "unknown message type: " + msg.Type})
	}
}

// handlePunch brokers a direct peer-to-peer attempt. The gate decision
// happens here, before the target ever learns the request exists.
func (s *Server) handlePunch(cl *client, msg protocol.Message) {
	if !security.ValidateDeviceID(msg.Target) {
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: constants.MsgInvalidDeviceID})
		return
	}

	now := s.Clock.Now()
	decision := s.Gate.Decide(gate.Request{
		SourceID: cl.id,
		TargetID: msg.Target,
		Kind:     protocol.KindPunchHole,
	}, now)
	if !decision.Allowed {
		// The reason tag stays in the audit trail; the caller only
		// learns that the connection was refused.
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: constants.MsgConnectionDenied})
		return
	}

	target, ok := s.getClient(msg.Target)
	if !ok || !s.Registry.IsOnline(msg.Target, now) {
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: constants.MsgTargetOffline})
		return
	}

	if err := target.ctrl.send(protocol.Message{
		Type:    protocol.TypePunchOffer,
		Source:  cl.id,
		Addr:    cl.ip,
		Payload: msg.Payload,
	}); err != nil {
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: constants.MsgTargetOffline})
		return
	}

	cl.ctrl.send(protocol.Message{Type: protocol.TypeAck, Target: msg.Target})
	log.Printf("🤝 Punch-hole brokered: %s -> %s", cl.id, msg.Target)
}

// forwardPunchAnswer relays the target's half of an in-flight punch
// negotiation back to the requester.
func (s *Server) forwardPunchAnswer(cl *client, msg protocol.Message) {
	source, ok := s.getClient(msg.Target)
	if !ok {
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: constants.MsgTargetOffline})
		return
	}

	source.ctrl.send(protocol.Message{
		Type:    protocol.TypePunchAnswer,
		Source:  cl.id,
		Addr:    cl.ip,
		Payload: msg.Payload,
	})
}

// handleRelay brokers the relay fallback. Same gate entry point as the
// punch path: patching one without the other is the historical bug this
// layout exists to prevent.
func (s *Server) handleRelay(cl *client, msg protocol.Message) {
	if !security.ValidateDeviceID(msg.Target) {
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: constants.MsgInvalidDeviceID})
		return
	}

	now := s.Clock.Now()
	decision := s.Gate.Decide(gate.Request{
		SourceID: cl.id,
		TargetID: msg.Target,
		Kind:     protocol.KindRelay,
	}, now)
	if !decision.Allowed {
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: constants.MsgConnectionDenied})
		return
	}

	target, ok := s.getClient(msg.Target)
	if !ok || !s.Registry.IsOnline(msg.Target, now) {
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: constants.MsgTargetOffline})
		return
	}

	sess := relay.Session{
		ID:        uuid.New().String(),
		SourceID:  cl.id,
		TargetID:  msg.Target,
		StartedAt: now,
	}

	srcStream, err := cl.session.Open()
	if err != nil {
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: "failed to open relay stream"})
		return
	}
	dstStream, err := target.session.Open()
	if err != nil {
		srcStream.Close()
		cl.ctrl.send(protocol.Message{Type: protocol.TypeError, Target: msg.Target, Error: constants.MsgTargetOffline})
		return
	}

	header := protocol.Message{Type: protocol.TypeRelayOpen, SessionID: sess.ID, Source: cl.id, Target: msg.Target}
	if err := protocol.WriteHeader(srcStream, header); err != nil {
		srcStream.Close()
		dstStream.Close()
		return
	}
	if err := protocol.WriteHeader(dstStream, header); err != nil {
		srcStream.Close()
		dstStream.Close()
		return
	}

	log.Printf("🔀 Relay session started: %s (%s -> %s)", sess.ID, cl.id, msg.Target)
	go relay.Pipe(sess, srcStream, dstStream)

	cl.ctrl.send(protocol.Message{Type: protocol.TypeAck, Target: msg.Target, SessionID: sess.ID})
}
