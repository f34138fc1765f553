package relay

import (
	"io"
	"log"
	"sync"
	"time"

	"rondo/internal/metrics"
)

// Session identifies one approved relay bridge between two devices.
type Session struct {
	ID        string
	SourceID  string
	TargetID  string
	StartedAt time.Time
}

// Pipe copies bytes both ways between the two ends of a relay session
// until either side closes. Both ends are closed on return so the
// opposite copy never blocks forever.
func Pipe(sess Session, src, dst io.ReadWriteCloser) {
	metrics.RelaySessionsActive.Inc()
	defer metrics.RelaySessionsActive.Dec()

	var wg sync.WaitGroup
	var bytesUp, bytesDown int64

	copyOne := func(w io.Writer, r io.Reader, counted *int64) {
		defer wg.Done()
		buf := GetBuffer()
		defer PutBuffer(buf)

		n, _ := io.CopyBuffer(w, r, buf)
		*counted = n
		metrics.RelayBytesTotal.Add(float64(n))

		// First direction to finish tears down both ends.
		src.Close()
		dst.Close()
	}

	wg.Add(2)
	go copyOne(dst, src, &bytesUp)
	go copyOne(src, dst, &bytesDown)
	wg.Wait()

	log.Printf("🔌 Relay session closed: %s (%s -> %s, %d/%d bytes, %s)",
		sess.ID, sess.SourceID, sess.TargetID, bytesUp, bytesDown,
		time.Since(sess.StartedAt).Round(time.Millisecond))
}
