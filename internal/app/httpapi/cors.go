package httpapi

import (
	"net/http"
	"strings"
)

// CORSPolicy resolves the Access-Control-Allow-Origin value for a
// request. An empty or "*" configuration allows any origin; otherwise the
// request origin must match the comma-separated allow-list exactly, and a
// miss falls back to the first configured origin. The fallback only picks
// the header value echoed back, it never loosens validation elsewhere.
type CORSPolicy struct {
	allowAll bool
	origins  []string
}

func NewCORSPolicy(allowed string) CORSPolicy {
	trimmed := strings.TrimSpace(allowed)
	if trimmed == "" || trimmed == "*" {
		return CORSPolicy{allowAll: true}
	}

	var origins []string
	for _, part := range strings.Split(trimmed, ",") {
		if part = strings.TrimSpace(part); part != "" {
			origins = append(origins, part)
		}
	}
	if len(origins) == 0 {
		return CORSPolicy{allowAll: true}
	}
	return CORSPolicy{origins: origins}
}

func (p CORSPolicy) Resolve(origin string) string {
	if p.allowAll {
		return "*"
	}
	for _, o := range p.origins {
		if o == origin {
			return origin
		}
	}
	if len(p.origins) > 0 {
		return p.origins[0]
	}
	return "null"
}

// Every response, success or error, carries the same CORS header set.
func applyCORS(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type,X-Client-Id")
	h.Set("Access-Control-Max-Age", "86400")
	h.Add("Vary", "Origin")
}
