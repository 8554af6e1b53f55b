package console

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/salesdesk/internal/wire"
)

type loginRequest struct {
	Username string
	Password string
}

func (req *loginRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "username":
			req.Username, err = d.Str()
		case "password":
			req.Password, err = d.Str()
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, req.decode); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	s, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("session_id", func(e *jx.Encoder) { e.Str(s.ID) })
			e.Field("user", func(e *jx.Encoder) { wire.EncodeUser(e, &s.User) })
			if !s.ExpiresAt.IsZero() {
				e.Field("expires_at", func(e *jx.Encoder) { wire.EncodeTime(e, s.ExpiresAt) })
			}
			e.Field("draft", func(e *jx.Encoder) { encodeSnapshot(e, s.Latest()) })
		})
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(sessionFrom(r.Context()).ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	l, err := h.catalog.Warm(r.Context(), s.Token())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("products", func(e *jx.Encoder) {
				e.ArrStart()
				for _, p := range l.Products {
					wire.EncodeProduct(e, p)
				}
				e.ArrEnd()
			})
			e.Field("clients", func(e *jx.Encoder) {
				e.ArrStart()
				for _, c := range l.Clients {
					wire.EncodeClient(e, c)
				}
				e.ArrEnd()
			})
		})
	})
}
