package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// publicPaths are reachable without the gateway key.
var publicPaths = map[string]bool{
	"/api/health": true,
}

// Auth guards the gateway with a shared key. A front-end acting as a bridge
// context presents it on the WebSocket handshake as ?token=, since browsers
// cannot set headers there; HTTP callers use a Bearer token or X-API-Key.
// An empty key turns the check off.
func Auth(apiKey string) func(http.Handler) http.Handler {
	if apiKey == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			got := credential(r)
			switch {
			case got == "":
				unauthorized(w, "missing gateway key")
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				unauthorized(w, "invalid gateway key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func credential(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if r.URL.Path == "/ws" {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("WWW-Authenticate", `Bearer realm="predictlive"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
