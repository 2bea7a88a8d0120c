package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bookshelf/backend/internal/auth"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RequireAuth is middleware that validates the bearer token and injects the
// caller's user id into the request context. Every failure is answered with
// the same 401 body.
func RequireAuth(tokens TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err == nil {
				var userID string
				userID, err = tokens.Verify(token)
				if err == nil {
					ctx := auth.ContextWithUserID(r.Context(), userID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			log.DebugContext(r.Context(), "rejected request", "reason", err, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"not authenticated"}`))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", auth.ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}
