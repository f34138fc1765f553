package security

import "regexp"

// Device identifiers are client-supplied and opaque; this only rejects
// ids that would be unsafe in log lines, URLs, or redis keys.
var deviceIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

var tokenRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateDeviceID checks a claimed device identifier.
func ValidateDeviceID(id string) bool {
	return deviceIDRegex.MatchString(id)
}

// ValidateToken checks token format (tokens are issued as UUIDs).
func ValidateToken(token string) bool {
	return tokenRegex.MatchString(token)
}
