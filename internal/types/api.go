package types

// APIResponse is the envelope for every status API response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *string     `json:"error"`
}

// PeerInfo is one row of GET /peers: the presence snapshot joined with
// ban state. Note carries the ban reason when the device is banned.
type PeerInfo struct {
	ID     string  `json:"id"`
	Note   *string `json:"note"`
	Online bool    `json:"online"`
}
