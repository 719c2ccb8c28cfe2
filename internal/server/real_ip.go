package server

import (
	"net"
	"net/http"
	"strings"
)

// RealIP returns the client address for logging, preferring proxy
// headers over the socket peer.
func RealIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := hostOnly(hop); ip != "" {
			return ip
		}
	}
	if ip := hostOnly(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// hostOnly strips ports, brackets, and quotes from a forwarded address
// value and rejects placeholders such as "unknown".
func hostOnly(value string) string {
	value = strings.Trim(strings.TrimSpace(value), "\"")
	if value == "" || strings.EqualFold(value, "unknown") {
		return ""
	}
	if strings.HasPrefix(value, "[") {
		if end := strings.Index(value, "]"); end > 0 {
			value = value[1:end]
		}
	}
	if host, _, err := net.SplitHostPort(value); err == nil && host != "" {
		value = host
	}
	if ip := net.ParseIP(value); ip != nil {
		return ip.String()
	}
	return value
}
