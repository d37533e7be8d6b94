package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/auth"
)

// AccessTokenParam is the query parameter checked when no Authorization
// header is present. Browsers cannot set headers on a websocket handshake.
const AccessTokenParam = "access_token"

// Auth refuses requests without a verifiable bearer credential and puts the
// resolved identity on the request context.
func Auth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearer(r)
			if tok == "" {
				tok = r.URL.Query().Get(AccessTokenParam)
			}
			if tok != "" {
				ident, err := verifier.Verify(r.Context(), tok)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
					return
				}
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("auth: credential rejected")
			}

			http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}
