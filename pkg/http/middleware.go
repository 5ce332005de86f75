// Package http pkg/http/middleware.go
package http

import (
	"net/http"
	"strings"

	"github.com/polewatch/polewatch/pkg/models"
)

// CommonMiddleware applies CORS headers from the configured allow-list and
// short-circuits preflight requests.
func CommonMiddleware(next http.Handler, cors models.CORSConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := allowedOrigin(origin, cors.AllowedOrigins); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if cors.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func allowedOrigin(origin string, allowList []string) string {
	if origin == "" {
		return "*"
	}

	for _, allowed := range allowList {
		if allowed == "*" {
			return "*"
		}

		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}

	return ""
}

// APIKeyMiddleware rejects requests that do not carry the configured key.
// An empty key disables the check.
func APIKeyMiddleware(apiKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			requestKey := r.Header.Get("X-API-Key")
			if requestKey == "" {
				requestKey = r.URL.Query().Get("api_key")
			}

			if requestKey != apiKey {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
