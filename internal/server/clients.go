package server

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/hashicorp/yamux"

	"rondo/internal/metrics"
	"rondo/internal/protocol"
)

// client is one attached device's signaling connection: its yamux
// session plus a write-serialized control stream. Connection state is
// deliberately separate from the presence registry, which only holds
// heartbeat timestamps.
type client struct {
	id      string
	ip      string
	session *yamux.Session
	ctrl    *control
}

// control serializes JSON frames onto the device's control stream.
type control struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (c *control) send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(msg)
}

func (s *Server) addClient(cl *client) {
	s.clientsMu.Lock()
	old, replaced := s.clients[cl.id]
	s.clients[cl.id] = cl
	s.clientsMu.Unlock()

	if replaced {
		log.Printf("🔁 Device reconnected, closing previous session: %s", cl.id)
		old.session.Close()
	} else {
		metrics.DevicesConnected.Inc()
	}
}

// removeClient drops cl only if it is still the registered connection
// for its id; a reconnect that already replaced it is left alone.
func (s *Server) removeClient(cl *client) {
	s.clientsMu.Lock()
	if cur, ok := s.clients[cl.id]; ok && cur == cl {
		delete(s.clients, cl.id)
		metrics.DevicesConnected.Dec()
	}
	s.clientsMu.Unlock()
}

func (s *Server) getClient(id string) (*client, bool) {
	s.clientsMu.RLock()
	cl, ok := s.clients[id]
	s.clientsMu.RUnlock()
	return cl, ok
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	for id, cl := range s.clients {
		cl.session.Close()
		delete(s.clients, id)
	}
	s.clientsMu.Unlock()
}
