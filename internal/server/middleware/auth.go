package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth returns middleware that requires apiKey as a Bearer token or in
// X-API-Key. Requests matching a public rule skip the check. A rule is a path,
// optionally preceded by a method ("GET /api/markets"); it matches that path
// and anything below it, segment by segment. An empty apiKey disables the
// middleware.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, rule := range public {
				if isPublic(rule, r) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				writeUnauthorized(w, "invalid authentication token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublic(rule string, r *http.Request) bool {
	method, path, ok := strings.Cut(rule, " ")
	if !ok {
		method, path = "", rule
	}
	if method != "" && method != r.Method && !(method == http.MethodGet && r.Method == http.MethodHead) {
		return false
	}
	p := r.URL.Path
	return p == path || strings.HasPrefix(p, strings.TrimSuffix(path, "/")+"/")
}

// extractToken reads "Authorization: Bearer <token>", then X-API-Key.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

// writeError writes {"error": msg}. msg is always one of this package's
// constant strings or a sentinel message, so no escaping is needed.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
