package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/salesdesk/internal/domain/auth"
)

type userKey struct{}

// UserFromContext returns the user authenticated by the bearer middleware.
func UserFromContext(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey{}).(*auth.User)
	return u
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detail)
}

// authenticate resolves the bearer token of the request to an active user.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
			unauthorized(w, "Not authenticated")
			return
		}

		u, err := h.auth.Authenticate(r.Context(), raw)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrInvalidToken):
			unauthorized(w, "Could not validate credentials")
			return
		case errors.Is(err, auth.ErrInactive):
			writeDetail(w, http.StatusBadRequest, "Inactive user")
			return
		default:
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, u)
		ctx = zctx.Base(ctx, zctx.From(ctx).With(zap.String("user", u.Username)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSeller lets through only roles allowed to create and cancel sales.
func requireSeller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := UserFromContext(r.Context()); u == nil || !u.Role.CanSell() {
			writeDetail(w, http.StatusForbidden, "Not enough permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}
