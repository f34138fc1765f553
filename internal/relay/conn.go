package relay

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSConn adapts a websocket connection to net.Conn so a yamux session
// can run over it. Reads stitch consecutive binary messages into one
// byte stream; each Write emits a single binary message.
type WSConn struct {
	conn   *websocket.Conn
	reader io.Reader
	mu     sync.Mutex
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (w *WSConn) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if w.reader == nil {
		_, w.reader, err = w.conn.NextReader()
		if err != nil {
			return 0, err
		}
	}

	n, err = w.reader.Read(p)
	if err == io.EOF {
		w.reader = nil
		err = nil
	}
	return n, err
}

func (w *WSConn) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WSConn) Close() error                       { return w.conn.Close() }
func (w *WSConn) LocalAddr() net.Addr                { return w.conn.LocalAddr() }
func (w *WSConn) RemoteAddr() net.Addr               { return w.conn.RemoteAddr() }
func (w *WSConn) SetDeadline(t time.Time) error      { return nil }
func (w *WSConn) SetReadDeadline(t time.Time) error  { return w.conn.SetReadDeadline(t) }
func (w *WSConn) SetWriteDeadline(t time.Time) error { return w.conn.SetWriteDeadline(t) }
