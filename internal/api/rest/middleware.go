package rest

import (
	"context"
	"net/http"
	"strings"

	"smartflow/internal/domain/user"
	"smartflow/pkg/errors"
)

type contextKey struct{}

var userContextKey contextKey

// requireAuth resolves the bearer token to a user before calling next
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.writeError(w, errors.Wrap(errors.ErrUnauthorized, "missing bearer token"))
			return
		}

		u, err := h.users.Authenticate(r.Context(), token)
		if err != nil {
			h.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, u)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// userFrom returns the authenticated user stored by requireAuth
func userFrom(ctx context.Context) *user.User {
	return ctx.Value(userContextKey).(*user.User)
}
