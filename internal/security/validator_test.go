package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDeviceID(t *testing.T) {
	valid := []string{"dev-1", "A", "node_42", "host.example", "0123456789abcdef"}
	for _, id := range valid {
		assert.True(t, ValidateDeviceID(id), "expected valid: %q", id)
	}

	invalid := []string{"", ".hidden", "-lead", "has space", "slash/id", "a\x00b",
		"waaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaay-too-long"}
	for _, id := range invalid {
		assert.False(t, ValidateDeviceID(id), "expected invalid: %q", id)
	}
}

func TestValidateToken(t *testing.T) {
	assert.True(t, ValidateToken("0b815c76-6fed-4e54-a36b-6cf92dff1b5f"))
	assert.False(t, ValidateToken(""))
	assert.False(t, ValidateToken("not-a-uuid"))
	assert.False(t, ValidateToken("0B815C76-6FED-4E54-A36B-6CF92DFF1B5F/extra"))
}
