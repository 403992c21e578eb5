// Package origin decides whether a browser request comes from an allowed site
// and which CORS origin to advertise back.
package origin

import (
	"net/url"
	"slices"
	"strings"
)

// Guard checks Origin and Referer headers against an exact allow-list.
type Guard struct {
	allowed []string
	dev     bool
}

// New builds a Guard. Entries are compared after trimming a trailing slash.
func New(allowed []string, dev bool) *Guard {
	list := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			list = append(list, o)
		}
	}
	return &Guard{allowed: list, dev: dev}
}

// IsAllowed is the guard's decision for one request.
func (g *Guard) IsAllowed(origin, referer string) bool {
	return IsAllowed(origin, referer, g.allowed, g.dev)
}

// AllowOrigin is the Access-Control-Allow-Origin value for origin.
func (g *Guard) AllowOrigin(origin string) string {
	if g.dev {
		return "*"
	}
	if origin != "" && slices.Contains(g.allowed, origin) {
		return origin
	}
	if len(g.allowed) > 0 {
		return g.allowed[0]
	}
	return ""
}

// Allowed returns a copy of the allow-list.
func (g *Guard) Allowed() []string {
	return slices.Clone(g.allowed)
}

// IsAllowed reports whether a request may proceed. Development mode allows
// everything; otherwise a present Origin must match exactly, and without one
// the Referer's scheme://host[:port] must. No wildcards.
func IsAllowed(origin, referer string, allowed []string, dev bool) bool {
	if dev {
		return true
	}
	if origin != "" {
		return slices.Contains(allowed, origin)
	}
	if referer == "" {
		return false
	}
	ref := refererOrigin(referer)
	return ref != "" && slices.Contains(allowed, ref)
}

func refererOrigin(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
