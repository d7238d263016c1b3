package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration. AllowedOrigins is "*" or a comma
// separated list of origins.
type CORSConfig struct {
	AllowedOrigins   string
	AllowedMethods   string
	AllowedHeaders   string
	AllowCredentials bool
	MaxAge           int
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when it is not allowed. A wildcard is echoed back as the request origin
// when credentials are allowed, since browsers reject "*" in that case.
func (c CORSConfig) allowOrigin(origin string) string {
	for _, allowed := range strings.Split(c.AllowedOrigins, ",") {
		allowed = strings.TrimSpace(allowed)
		switch {
		case allowed == "*" && (origin == "" || !c.AllowCredentials):
			return "*"
		case allowed == "*", strings.EqualFold(allowed, origin):
			return origin
		}
	}
	return ""
}

// CORS middleware adds CORS headers to responses
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			if origin := config.allowOrigin(r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", config.AllowedMethods)
				w.Header().Set("Access-Control-Allow-Headers", config.AllowedHeaders)

				if config.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}

				if config.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
			}

			// Handle preflight OPTIONS request
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
