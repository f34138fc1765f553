package device

import (
	"sync"
	"time"

	"rondo/internal/constants"
)

type MemoryStore struct {
	devices sync.Map
	done    chan struct{}
}

func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{done: make(chan struct{})}
	go store.cleanupLoop()
	return store
}

func (st *MemoryStore) Save(device *Device) {
	st.devices.Store(device.ID, device)
}

func (st *MemoryStore) Get(id string) (*Device, bool) {
	val, ok := st.devices.Load(id)
	if !ok {
		return nil, false
	}
	dev := val.(*Device)
	if dev.IsExpired() {
		st.devices.Delete(id)
		return nil, false
	}
	return dev, true
}

func (st *MemoryStore) Delete(id string) {
	st.devices.Delete(id)
}

func (st *MemoryStore) Close() error {
	close(st.done)
	return nil
}

func (st *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(constants.PresenceTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-st.done:
			return
		case <-ticker.C:
			st.devices.Range(func(key, value interface{}) bool {
				if value.(*Device).IsExpired() {
					st.devices.Delete(key)
				}
				return true
			})
		}
	}
}
