package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/isdelr/acquisitions-api/internal/models"
	"github.com/rs/zerolog/log"
)

// TokenCookieName is the cookie carrying the bearer credential.
const TokenCookieName = "token"

type contextKey string

const identityKey = contextKey("identity")

// Verifier turns a raw token into an identity.
type Verifier interface {
	Verify(token string) (models.Identity, error)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller attached by Authenticate, or nil for guests.
func IdentityFrom(ctx context.Context) *models.Identity {
	id, ok := ctx.Value(identityKey).(models.Identity)
	if !ok {
		return nil
	}
	return &id
}

// Authenticate classifies the caller. A valid token attaches its identity to
// the request context; a missing or bad one leaves the caller a guest. It
// never rejects a request: route access is decided later.
func Authenticate(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, tokenStr := range tokensFromRequest(r) {
				id, err := verifier.Verify(tokenStr)
				if err != nil {
					log.Debug().Err(err).Str("path", r.URL.Path).Msg("Ignoring invalid auth token")
					continue
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// tokensFromRequest lists candidate tokens, cookie first, then the bearer
// header. The first one that verifies is used.
func tokensFromRequest(r *http.Request) []string {
	var tokens []string
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}

	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		tokens = append(tokens, parts[1])
	}
	return tokens
}
