package presence

import (
	"hash/fnv"
	"sync"
	"time"

	"rondo/internal/constants"
)

// Registry tracks the last heartbeat per device and answers "is device X
// online now?". Entries are overwritten in place and never evicted: a
// silent device simply ages past PresenceTimeout and reads as offline.
//
// The map is sharded so heartbeats for unrelated devices never contend
// on the same lock.
type Registry struct {
	shards [constants.PresenceShards]shard
}

type shard struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

// PeerStatus is one entry of a point-in-time Snapshot.
type PeerStatus struct {
	ID     string
	Online bool
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].seen = make(map[string]time.Time)
	}
	return r
}

func (r *Registry) shard(deviceID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(deviceID))
	return &r.shards[h.Sum32()%constants.PresenceShards]
}

// Touch records a heartbeat at now. A stale timestamp never moves
// last-seen backward, so out-of-order delivery cannot flip a live
// device to offline.
func (r *Registry) Touch(deviceID string, now time.Time) {
	s := r.shard(deviceID)
	s.mu.Lock()
	if prev, ok := s.seen[deviceID]; !ok || now.After(prev) {
		s.seen[deviceID] = now
	}
	s.mu.Unlock()
}

// IsOnline reports whether deviceID heartbeated within PresenceTimeout
// of now. Unknown devices are offline.
func (r *Registry) IsOnline(deviceID string, now time.Time) bool {
	s := r.shard(deviceID)
	s.mu.RLock()
	last, ok := s.seen[deviceID]
	s.mu.RUnlock()
	return ok && now.Sub(last) < constants.PresenceTimeout
}

// LastSeen returns the recorded heartbeat time for deviceID.
func (r *Registry) LastSeen(deviceID string) (time.Time, bool) {
	s := r.shard(deviceID)
	s.mu.RLock()
	last, ok := s.seen[deviceID]
	s.mu.RUnlock()
	return last, ok
}

// Snapshot returns every known device with its online state at now.
// Each entry is internally consistent; the snapshot as a whole is not
// atomic across shards, which is fine for the status API.
func (r *Registry) Snapshot(now time.Time) []PeerStatus {
	out := make([]PeerStatus, 0, r.Count())
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for id, last := range s.seen {
			out = append(out, PeerStatus{ID: id, Online: now.Sub(last) < constants.PresenceTimeout})
		}
		s.mu.RUnlock()
	}
	return out
}

// Count returns the number of devices ever seen.
func (r *Registry) Count() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.seen)
		s.mu.RUnlock()
	}
	return n
}

// OnlineCount returns the number of devices online at now.
func (r *Registry) OnlineCount(now time.Time) int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, last := range s.seen {
			if now.Sub(last) < constants.PresenceTimeout {
				n++
			}
		}
		s.mu.RUnlock()
	}
	return n
}
