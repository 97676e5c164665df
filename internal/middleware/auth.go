package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tableside-pos/api/internal/auth"
	"github.com/tableside-pos/api/internal/session"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenResolver turns a bearer token into claims. Satisfied by *session.Manager.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Claims, error)
}

func Authenticate(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
				return
			}

			claims, err := resolver.Resolve(r.Context(), parts[1])
			if err != nil {
				status, msg := resolveFailure(err)
				writeJSON(w, status, map[string]string{"error": msg})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func resolveFailure(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrRevoked):
		return http.StatusUnauthorized, "session signed out"
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	default:
		return http.StatusServiceUnavailable, "unable to verify session"
	}
}

// WithClaims stores claims on ctx.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
