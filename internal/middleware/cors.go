package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// DefaultFrontendOrigin is always allowed.
const DefaultFrontendOrigin = "http://localhost:3000"

// CORS allows the comma-separated origins in frontendURL plus the local
// development origin.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   ParseOrigins(frontendURL),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", ConversationHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}

// ParseOrigins splits, trims and de-duplicates a comma-separated origin list.
func ParseOrigins(frontendURL string) []string {
	origins := []string{DefaultFrontendOrigin}
	seen := map[string]bool{DefaultFrontendOrigin: true}
	for _, o := range strings.Split(frontendURL, ",") {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	return origins
}
