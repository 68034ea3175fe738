package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/recallio/recallio/internal/api"
)

type contextKey string

const (
	UserIDKey  contextKey = "user_id"
	BYOKKeyKey contextKey = "byok_key"
)

// BYOKHeader carries a caller-supplied provider API key. When present the
// request is served on the caller's own key and never touches the credit
// ledger.
const BYOKHeader = "X-Provider-Key"

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// BearerAuth resolves the bearer token to a user ID and stashes it, along
// with any BYOK header, on the request context.
func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			userID, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid access token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			if byok := strings.TrimSpace(r.Header.Get(BYOKHeader)); byok != "" {
				ctx = context.WithValue(ctx, BYOKKeyKey, byok)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

func GetBYOKKey(ctx context.Context) string {
	key, _ := ctx.Value(BYOKKeyKey).(string)
	return key
}
