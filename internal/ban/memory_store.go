package ban

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the ban list in process memory. Used when Redis is
// not configured and as the storage double in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (st *MemoryStore) ListBans(_ context.Context) ([]Record, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]Record, 0, len(st.records))
	for _, rec := range st.records {
		out = append(out, rec)
	}
	return out, nil
}

func (st *MemoryStore) SetBan(_ context.Context, deviceID, reason, by string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.records[deviceID] = Record{
		DeviceID: deviceID,
		Banned:   true,
		Reason:   reason,
		BannedAt: time.Now(),
		BannedBy: by,
	}
	return nil
}

func (st *MemoryStore) ClearBan(_ context.Context, deviceID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.records, deviceID)
	return nil
}

func (st *MemoryStore) Close() error {
	return nil
}
