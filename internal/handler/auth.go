package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"go.uber.org/zap"

	"github.com/go-faster/sdk/zctx"

	"github.com/xenking/rentkart/internal/domain/auth"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "api_key"

// Authenticator resolves API keys to principals via HMAC-SHA256 hashes.
type Authenticator struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewAuthenticator creates an Authenticator with the given API key
// repository and HMAC pepper.
func NewAuthenticator(apikeys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate rejects requests without a valid API key and stores the
// resolved principal in the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing api key")
			return
		}
		hexHash := auth.HashKey(a.pepper, key)

		info, err := a.apikeys.FindByHash(r.Context(), hexHash)
		if err != nil {
			zctx.From(r.Context()).Debug("API key lookup failed", zap.Error(err))
			writeProblem(w, http.StatusUnauthorized, "unauthorized", "invalid api key")
			return
		}

		// The stored row must match the computed hash byte for byte.
		stored, err := hex.DecodeString(info.KeyHash)
		computed, _ := hex.DecodeString(hexHash)
		if err != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
			writeProblem(w, http.StatusUnauthorized, "unauthorized", "invalid api key")
			return
		}

		ctx := auth.WithPrincipal(r.Context(), auth.Principal{
			UserID: info.UserID,
			Scopes: info.Scopes,
		})
		ctx = zctx.With(ctx, zap.String("user_id", info.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope rejects authenticated callers lacking scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing api key")
				return
			}
			if !p.HasScope(scope) {
				writeProblem(w, http.StatusForbidden, "forbidden", "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
