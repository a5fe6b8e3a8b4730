package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/btouchard/recents/internal/auth"
)

// BearerAuth returns middleware that validates static API bearer tokens.
// When the verifier has no tokens configured every request passes.
func BearerAuth(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				challengeAuth(w, "missing Authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				challengeAuth(w, "invalid Authorization header format")
				return
			}

			name, ok := v.Verify(strings.TrimSpace(parts[1]))
			if !ok {
				slog.Debug("token validation failed", "remote", r.RemoteAddr)
				invalidToken(w, "invalid token")
				return
			}

			slog.Debug("request authenticated", "token", name, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// challengeAuth sends a 401 with a Bearer challenge for unauthenticated requests.
func challengeAuth(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="recents"`)
	http.Error(w, msg, http.StatusUnauthorized)
}

// invalidToken sends a 401 for requests with an unknown Bearer token.
func invalidToken(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	http.Error(w, msg, http.StatusUnauthorized)
}
