package relay

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe_CopiesBothDirectionsAndClosesPeers(t *testing.T) {
	aServer, aClient := net.Pipe()
	bServer, bClient := net.Pipe()

	sess := Session{ID: "sess-1", SourceID: "a", TargetID: "b", StartedAt: time.Now()}

	done := make(chan struct{})
	go func() {
		Pipe(sess, aServer, bServer)
		close(done)
	}()

	_, err := aClient.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = bClient.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	_, err = bClient.Write([]byte("pong"))
	require.NoError(t, err)

	_, err = aClient.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf))

	// Closing one end tears the whole bridge down.
	aClient.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not shut down after one side closed")
	}

	bClient.SetReadDeadline(time.Now().Add(time.Second))
	_, err = bClient.Read(buf)
	assert.Error(t, err)
}
