package relay

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/yamux"

	"rondo/internal/constants"
)

// Upgrader is shared by every signaling websocket endpoint.
var Upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	ReadBufferSize:    constants.WSBufferSize,
	WriteBufferSize:   constants.WSBufferSize,
	EnableCompression: constants.WSCompression,
}

// YamuxConfig returns the session config used on both the server and
// the agent side.
func YamuxConfig() *yamux.Config {
	config := yamux.DefaultConfig()
	config.MaxStreamWindowSize = constants.YamuxMaxStreamWindowSize
	config.AcceptBacklog = constants.YamuxAcceptBacklog
	config.EnableKeepAlive = constants.YamuxEnableKeepAlive
	config.KeepAliveInterval = constants.YamuxKeepAliveInterval
	return config
}
