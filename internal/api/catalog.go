package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/salesdesk/internal/domain/client"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/wire"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	f := product.Filter{
		Search:     q.str("search"),
		ActiveOnly: q.bool("active"),
		Offset:     q.int("offset"),
		Limit:      q.int("limit"),
	}
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			wire.EncodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeProduct(e, *p) })
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	f := client.Filter{
		Search:     q.str("search"),
		ActiveOnly: q.bool("active"),
		Offset:     q.int("offset"),
		Limit:      q.int("limit"),
	}
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	clients, err := h.clients.List(r.Context(), f)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list clients"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range clients {
			wire.EncodeClient(e, c)
		}
		e.ArrEnd()
	})
}
