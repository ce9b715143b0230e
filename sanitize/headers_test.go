package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaders(t *testing.T) {
	input := map[string]string{
		"Authorization":   "Bearer secret",
		"cookie":          "session=abc",
		"HOST":            "evil.example.com",
		"X-Forwarded-For": "1.2.3.4",
		"x-ForWarded-for": "5.6.7.8",
		"X-My-Key":        "user-value",
		"Content-Type":    "application/json",
	}

	got := Headers(input)

	assert.Equal(t, map[string]string{
		"X-My-Key":     "user-value",
		"Content-Type": "application/json",
	}, got)
	// input must not be mutated
	assert.Len(t, input, 7)
}

func TestHeadersEmpty(t *testing.T) {
	assert.Empty(t, Headers(nil))
	assert.Empty(t, Headers(map[string]string{}))
}

func TestAllowed(t *testing.T) {
	assert.False(t, Allowed("authorization"))
	assert.False(t, Allowed(" Set-Cookie "))
	assert.False(t, Allowed("Proxy-Authorization"))
	assert.False(t, Allowed("Via"))
	assert.True(t, Allowed("X-My-Key"))
	assert.True(t, Allowed("Accept"))
}
