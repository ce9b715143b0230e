// Package sanitize filters user-configured request headers before they are sent
// to arbitrary third-party endpoints.
package sanitize

import "strings"

// Headers that must never be forwarded from a custom service definition.
// Connection-control headers can smuggle or break the request, auth headers can
// leak host credentials, and forwarded-style headers can spoof origin info.
var deniedHeaders = map[string]bool{
	"host":                true,
	"connection":          true,
	"content-length":      true,
	"transfer-encoding":   true,
	"keep-alive":          true,
	"te":                  true,
	"trailer":             true,
	"upgrade":             true,
	"proxy-authorization": true,
	"proxy-connection":    true,
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-forwarded-for":     true,
	"x-forwarded-host":    true,
	"x-forwarded-proto":   true,
	"x-real-ip":           true,
	"forwarded":           true,
	"via":                 true,
}

// Headers returns a copy of headers with every denied header removed,
// matching case-insensitively. Arbitrary user-defined headers pass through.
func Headers(headers map[string]string) map[string]string {
	sanitized := make(map[string]string, len(headers))
	for name, value := range headers {
		if deniedHeaders[strings.ToLower(strings.TrimSpace(name))] {
			continue
		}
		sanitized[name] = value
	}
	return sanitized
}

// Allowed reports whether a single header name would survive sanitization.
func Allowed(name string) bool {
	return !deniedHeaders[strings.ToLower(strings.TrimSpace(name))]
}
