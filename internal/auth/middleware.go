package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dukanlabs/checkout-api/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware wires the caller identity into HTTP handlers. Every downstream
// operation receives identity through the request context, never from
// process-global state.
type Middleware struct {
	Verifier Verifier
}

// RequireAuth enforces that a valid bearer token is present before executing the next handler.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	token := extractBearer(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	identity, err := m.Verifier.ParseIdentity(token)
	if err != nil {
		return r.Context(), err
	}
	ctx := common.WithUserID(r.Context(), identity.UserID)
	if identity.Tier != "" {
		ctx = common.WithUserTier(ctx, identity.Tier)
	}
	return ctx, nil
}

func extractBearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
