package affinity

import (
	"net"
	"strings"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// SelectionKey derives the session key spec.md §4.10 asks for — a named
// cookie's value, or the client IP — per the group's configured affinity
// source. A group without an affinity policy gets the client IP. Returns
// "" if the configured cookie is absent from the request or the source is
// unrecognised, in which case normal load balancing applies.
func SelectionKey(group *domain.UpstreamGroup, req *domain.Request) string {
	if group.Affinity == nil {
		return ClientIP(req)
	}

	switch group.Affinity.KeySource {
	case domain.AffinityByCookie:
		if v, ok := cookieValue(req, group.Affinity.CookieName); ok {
			return v
		}
		return ""
	case domain.AffinityByIP:
		return ClientIP(req)
	default:
		return ""
	}
}

// cookieValue parses the request's Cookie header for name, the same
// manual-header-parsing style the teacher's request.go uses for
// X-Forwarded-For/X-Real-IP rather than reaching for a cookie jar.
func cookieValue(req *domain.Request, name string) (string, bool) {
	raw := req.Headers.Get("Cookie")
	if raw == "" {
		return "", false
	}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		k, v, found := strings.Cut(part, "=")
		if found && k == name {
			return v, true
		}
	}
	return "", false
}

// ClientIP returns the host portion of RemoteAddr, the same
// net.SplitHostPort fallback the teacher's GetClientIP uses when proxy
// headers aren't trusted.
func ClientIP(req *domain.Request) string {
	if ip, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return ip
	}
	return req.RemoteAddr
}
