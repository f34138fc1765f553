package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripLeavesPayloadUntouched(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, Message{Type: TypeRelayOpen, SessionID: "sess-1", Source: "a", Target: "b"}))
	buf.WriteString("raw payload bytes")

	msg, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypeRelayOpen, msg.Type)
	assert.Equal(t, "sess-1", msg.SessionID)

	rest := buf.String()
	assert.Equal(t, "raw payload bytes", rest)
}

func TestReadHeaderRejectsGarbage(t *testing.T) {
	_, err := ReadHeader(strings.NewReader("not json\nmore"))
	assert.Error(t, err)
}

func TestReadHeaderRejectsOversizedHeader(t *testing.T) {
	_, err := ReadHeader(strings.NewReader(strings.Repeat("x", maxHeaderSize+2) + "\n"))
	assert.Error(t, err)
}
