package device

import (
	"time"

	"rondo/internal/utils"
)

// Device is one registered device's auth session. The token proves that
// whoever attaches the signaling connection is the same party that
// registered the id; it is not an identity claim beyond that.
type Device struct {
	ID           string    `json:"id"`
	TokenHash    string    `json:"token_hash"`
	RegisteredAt time.Time `json:"registered_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (d *Device) IsExpired() bool {
	return time.Now().After(d.ExpiresAt)
}

func (d *Device) VerifyToken(token string) bool {
	return utils.VerifyHash(token, d.TokenHash)
}
