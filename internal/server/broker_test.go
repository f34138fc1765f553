package server

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rondo/internal/constants"
	"rondo/internal/gate"
	"rondo/internal/protocol"
	"rondo/internal/relay"
)

// fakeDevice wires up one attached device the way HandleWebSocket
// would: a yamux session pair plus a control pipe. The returned decoder
// reads what the server sends on the device's control stream.
type fakeDevice struct {
	cl    *client
	ctrl  *json.Decoder
	agent *yamux.Session
}

func attachFakeDevice(t *testing.T, s *Server, id string) *fakeDevice {
	t.Helper()

	serverConn, agentConn := net.Pipe()
	serverSess, err := yamux.Server(serverConn, relay.YamuxConfig())
	require.NoError(t, err)
	agentSess, err := yamux.Client(agentConn, relay.YamuxConfig())
	require.NoError(t, err)

	ctrlServer, ctrlAgent := net.Pipe()

	cl := &client{
		id:      id,
		ip:      "127.0.0.1",
		session: serverSess,
		ctrl:    &control{enc: json.NewEncoder(ctrlServer)},
	}
	s.addClient(cl)
	s.Registry.Touch(id, s.Clock.Now())

	t.Cleanup(func() {
		serverSess.Close()
		agentSess.Close()
		ctrlServer.Close()
		ctrlAgent.Close()
	})

	return &fakeDevice{cl: cl, ctrl: json.NewDecoder(ctrlAgent), agent: agentSess}
}

func (d *fakeDevice) nextCtrl(t *testing.T) protocol.Message {
	t.Helper()

	var msg protocol.Message
	done := make(chan error, 1)
	go func() { done <- d.ctrl.Decode(&msg) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for control message")
	}
	return msg
}

func TestPunch_BrokersOfferAndAck(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Bans.Refresh(context.Background()))

	a := attachFakeDevice(t, s, "alpha")
	b := attachFakeDevice(t, s, "beta")

	go s.handleControlMessage(a.cl, protocol.Message{Type: protocol.TypePunch, Target: "beta", Payload: "caddr"})

	offer := b.nextCtrl(t)
	assert.Equal(t, protocol.TypePunchOffer, offer.Type)
	assert.Equal(t, "alpha", offer.Source)
	assert.Equal(t, "caddr", offer.Payload)

	ack := a.nextCtrl(t)
	assert.Equal(t, protocol.TypeAck, ack.Type)
	assert.Equal(t, "beta", ack.Target)
}

func TestPunch_DeniedForBannedSourceWithoutLeakingReason(t *testing.T) {
	ctx := context.Background()
	s, store := newTestServer(t)

	require.NoError(t, store.SetBan(ctx, "alpha", "abuse", "admin"))
	require.NoError(t, s.Bans.Refresh(ctx))

	a := attachFakeDevice(t, s, "alpha")
	attachFakeDevice(t, s, "beta")

	go s.handleControlMessage(a.cl, protocol.Message{Type: protocol.TypePunch, Target: "beta"})

	msg := a.nextCtrl(t)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Equal(t, constants.MsgConnectionDenied, msg.Error)
	assert.NotContains(t, msg.Error, "banned")
}

func TestPunch_DeniedForBannedTarget(t *testing.T) {
	ctx := context.Background()
	s, store := newTestServer(t)

	require.NoError(t, store.SetBan(ctx, "beta", "abuse", "admin"))
	require.NoError(t, s.Bans.Refresh(ctx))

	a := attachFakeDevice(t, s, "alpha")
	attachFakeDevice(t, s, "beta")

	go s.handleControlMessage(a.cl, protocol.Message{Type: protocol.TypePunch, Target: "beta"})

	msg := a.nextCtrl(t)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Equal(t, constants.MsgConnectionDenied, msg.Error)
}

func TestPunch_OfflineTarget(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Bans.Refresh(context.Background()))

	a := attachFakeDevice(t, s, "alpha")

	go s.handleControlMessage(a.cl, protocol.Message{Type: protocol.TypePunch, Target: "nobody"})

	msg := a.nextCtrl(t)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Equal(t, constants.MsgTargetOffline, msg.Error)
}

func TestRelay_BridgesStreamsBetweenDevices(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Bans.Refresh(context.Background()))

	a := attachFakeDevice(t, s, "alpha")
	b := attachFakeDevice(t, s, "beta")

	go s.handleControlMessage(a.cl, protocol.Message{Type: protocol.TypeRelay, Target: "beta"})

	streamA, err := a.agent.Accept()
	require.NoError(t, err)
	streamB, err := b.agent.Accept()
	require.NoError(t, err)

	headerA, err := protocol.ReadHeader(streamA)
	require.NoError(t, err)
	headerB, err := protocol.ReadHeader(streamB)
	require.NoError(t, err)

	assert.Equal(t, protocol.TypeRelayOpen, headerA.Type)
	assert.Equal(t, headerA.SessionID, headerB.SessionID)
	assert.Equal(t, "alpha", headerA.Source)
	assert.Equal(t, "beta", headerA.Target)

	ack := a.nextCtrl(t)
	assert.Equal(t, protocol.TypeAck, ack.Type)
	assert.Equal(t, headerA.SessionID, ack.SessionID)

	// Payload flows through the bridge in both directions.
	_, err = streamA.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = streamB.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	_, err = streamB.Write([]byte("world"))
	require.NoError(t, err)
	_, err = streamA.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf))
}

func TestRelay_DeniedForBannedSource(t *testing.T) {
	ctx := context.Background()
	s, store := newTestServer(t)

	require.NoError(t, store.SetBan(ctx, "alpha", "abuse", "admin"))
	require.NoError(t, s.Bans.Refresh(ctx))

	a := attachFakeDevice(t, s, "alpha")
	attachFakeDevice(t, s, "beta")

	go s.handleControlMessage(a.cl, protocol.Message{Type: protocol.TypeRelay, Target: "beta"})

	msg := a.nextCtrl(t)
	assert.Equal(t, protocol.TypeError, msg.Type)
	assert.Equal(t, constants.MsgConnectionDenied, msg.Error)
}

func TestFailClosed_DeniesBothPathsUntilFirstRefresh(t *testing.T) {
	s, _ := newTestServer(t)
	s.Gate = gate.New(s.Bans, gate.FailClosed, nil)

	a := attachFakeDevice(t, s, "alpha")
	attachFakeDevice(t, s, "beta")

	go s.handleControlMessage(a.cl, protocol.Message{Type: protocol.TypePunch, Target: "beta"})
	msg := a.nextCtrl(t)
	assert.Equal(t, protocol.TypeError, msg.Type)

	go s.handleControlMessage(a.cl, protocol.Message{Type: protocol.TypeRelay, Target: "beta"})
	msg = a.nextCtrl(t)
	assert.Equal(t, protocol.TypeError, msg.Type)
}
