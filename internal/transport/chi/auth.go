package chi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	searchuc "github.com/kindred-places/kindred/internal/usecase/search"
)

type contextKey string

const subjectKey contextKey = "auth-subject"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens.
// If apiKeys is empty, authentication is disabled (pass-through). On
// success a stable subject derived from the token is stored in the
// context so rate limiting can attribute searches to the caller.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled — pass everything through
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exempt paths
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeBadRequest, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					codeBadRequest, "authorization header must use Bearer scheme")
				return
			}

			token := auth[len(bearerPrefix):]
			if _, ok := validKeys[token]; !ok {
				writeError(w, http.StatusUnauthorized, codeBadRequest, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subjectForToken(token))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// subjectForToken derives an opaque caller id. The raw token never
// appears in storage keys or logs.
func subjectForToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// identityFromRequest builds the rate-limit identity: the authenticated
// subject when present plus the client IP.
func identityFromRequest(r *http.Request) searchuc.Identity {
	id := searchuc.Identity{IP: clientIP(r)}
	if subject, ok := r.Context().Value(subjectKey).(string); ok {
		id.UserID = subject
	}
	return id
}

// clientIP trusts the RealIP middleware's rewrite of RemoteAddr and
// strips the port when one is present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
