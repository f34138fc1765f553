package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rondo/internal/constants"
	"rondo/internal/protocol"
)

func registerDevice(t *testing.T, s *Server, deviceID string) protocol.RegisterResponse {
	t.Helper()

	body, err := json.Marshal(protocol.RegisterRequest{DeviceID: deviceID})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, constants.EndpointRegister, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.HandleRegister(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp protocol.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleRegister_IssuesVerifiableToken(t *testing.T) {
	s, _ := newTestServer(t)

	resp := registerDevice(t, s, "dev-1")
	assert.Equal(t, "dev-1", resp.DeviceID)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, constants.DeviceDuration, resp.ExpiresIn)
	assert.Equal(t, constants.HeartbeatInterval, resp.HeartbeatInterval)

	dev, ok := s.Devices.Get("dev-1")
	require.True(t, ok)
	assert.True(t, dev.VerifyToken(resp.Token))
	assert.False(t, dev.VerifyToken("forged"))
}

func TestHandleRegister_RejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, constants.EndpointRegister, nil)
	rec := httptest.NewRecorder()
	s.HandleRegister(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, constants.EndpointRegister, bytes.NewReader([]byte("{broken")))
	rec = httptest.NewRecorder()
	s.HandleRegister(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, _ := json.Marshal(protocol.RegisterRequest{DeviceID: "has space"})
	req = httptest.NewRequest(http.MethodPost, constants.EndpointRegister, bytes.NewReader(body))
	rec = httptest.NewRecorder()
	s.HandleRegister(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebSocket_RejectsUnknownOrUnauthorized(t *testing.T) {
	s, _ := newTestServer(t)

	// Unknown device.
	req := httptest.NewRequest(http.MethodGet, constants.EndpointWebSocket+"ghost", nil)
	rec := httptest.NewRecorder()
	s.HandleWebSocket(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Registered device, bad token.
	resp := registerDevice(t, s, "dev-1")
	req = httptest.NewRequest(http.MethodGet, constants.EndpointWebSocket+"dev-1?token=00000000-0000-0000-0000-000000000000", nil)
	rec = httptest.NewRecorder()
	s.HandleWebSocket(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Invalid device id in path.
	req = httptest.NewRequest(http.MethodGet, constants.EndpointWebSocket+"bad/../id?token="+resp.Token, nil)
	rec = httptest.NewRecorder()
	s.HandleWebSocket(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
