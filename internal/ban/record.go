package ban

import "time"

// Record mirrors one row of the durable ban table. The durable store is
// authoritative; the in-process directory only caches it.
type Record struct {
	DeviceID string    `json:"device_id"`
	Banned   bool      `json:"banned"`
	Reason   string    `json:"reason,omitempty"`
	BannedAt time.Time `json:"banned_at"`
	BannedBy string    `json:"banned_by,omitempty"`
}
