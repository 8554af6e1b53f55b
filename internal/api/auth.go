package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/salesdesk/internal/domain/auth"
	"github.com/xenking/salesdesk/internal/wire"
)

// login implements the OAuth2 password flow: a form with username and
// password yields a bearer token.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		writeDetail(w, http.StatusBadRequest, "username and password are required")
		return
	}

	tok, err := h.auth.Login(r.Context(), username, password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		unauthorized(w, "Incorrect username or password")
		return
	case errors.Is(err, auth.ErrInactive):
		writeDetail(w, http.StatusBadRequest, "Inactive user")
		return
	default:
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeToken(e, tok) })
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeUser(e, u) })
}
