package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"feedback-backend/internal/identity"
)

type contextKey string

const claimsKey contextKey = "claims"

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*identity.Claims, error)
}

// JWTAuth rejects requests without a valid, unrevoked session token. The token
// comes from the Authorization header, or the token query parameter for
// websocket upgrades.
func JWTAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing token")
				return
			}
			claims, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func GetClaims(ctx context.Context) *identity.Claims {
	claims, _ := ctx.Value(claimsKey).(*identity.Claims)
	return claims
}
