// Package urlcheck validates URLs returned by hosting services before they are
// handed back to the host application, which may render or auto-open them.
package urlcheck

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate returns an error unless rawURL is an absolute http(s) URL pointing at
// a public, plausibly-real host. Third-party responses are not trusted blindly:
// a service that echoes back a loopback or metadata-service address must fail
// the attempt instead of reaching the caller.
func Validate(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unexpected URL scheme %q, only http and https are allowed", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no hostname")
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := validateIP(ip); err != nil {
			return err
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("hostname %q resolves to the local machine", host)
	}

	if !strings.Contains(host, ".") {
		return fmt.Errorf("hostname %q has no top-level domain", host)
	}

	if isNumericOnly(host) {
		return fmt.Errorf("hostname %q is numeric only", host)
	}

	return nil
}

func validateIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("IP address %s is a loopback address", ip)
	case ip.IsPrivate():
		return fmt.Errorf("IP address %s is a private address", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("IP address %s is a link-local address", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("IP address %s is unspecified", ip)
	}
	return nil
}

func isNumericOnly(host string) bool {
	for _, r := range host {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
