// Package network extracts request-level network details for audit and
// rate-limit records.
package network

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address. The first X-Forwarded-For entry
// wins, then X-Real-IP, then RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// UserAgent returns the trimmed User-Agent, cut to 256 bytes.
func UserAgent(r *http.Request) string {
	ua := strings.TrimSpace(r.UserAgent())
	if len(ua) > 256 {
		ua = ua[:256]
	}
	return ua
}
