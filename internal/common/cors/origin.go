// Package cors decides which front-end origins may read responses.
package cors

import "net/http"

const (
	allowMethods = "POST, OPTIONS"
	allowHeaders = "Content-Type"
)

// AllowList is a fixed set of origins matched by exact string equality.
type AllowList struct {
	origins map[string]struct{}
}

func NewAllowList(origins []string) *AllowList {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return &AllowList{origins: set}
}

// Allowed reports whether origin is on the list. An absent origin is never allowed.
func (a *AllowList) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := a.origins[origin]
	return ok
}

// Apply sets the response headers for origin. Access-Control-Allow-Origin is
// only emitted for allowed origins; the request is still processed either way.
func (a *AllowList) Apply(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Content-Type", "application/json")
	if a.Allowed(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	}
}
