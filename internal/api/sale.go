package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/salesdesk/internal/domain/sale"
	"github.com/xenking/salesdesk/internal/wire"
)

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req wire.SaleRequest
	if err := readJSON(r, req.Decode); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	u := UserFromContext(r.Context())
	s, err := h.sales.Create(r.Context(), req.CreateRequest(u.ID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodeSale(e, s) })
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	f := saleFilter(&q)
	f.SellerID = q.str("seller_id")
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	h.writeSalePage(w, r, f)
}

// listOwnSales lists the sales created by the caller.
func (h *Handler) listOwnSales(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	f := saleFilter(&q)
	f.SellerID = UserFromContext(r.Context()).ID
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	h.writeSalePage(w, r, f)
}

func saleFilter(q *query) sale.Filter {
	f := sale.Filter{
		ClientID: q.str("client_id"),
		Status:   sale.Status(q.str("status")),
		From:     q.time("from", false),
		To:       q.time("to", true),
		Offset:   q.int("offset"),
		Limit:    q.int("limit"),
	}
	if q.err == nil && f.Status != "" && !f.Status.Valid() {
		q.err = &queryError{Param: "status", Err: errUnknownStatus}
	}
	return f
}

func (h *Handler) writeSalePage(w http.ResponseWriter, r *http.Request, f sale.Filter) {
	sales, total, err := h.sales.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("total", func(e *jx.Encoder) { e.Int(total) })
			e.Field("items", func(e *jx.Encoder) {
				e.ArrStart()
				for i := range sales {
					wire.EncodeSale(e, &sales[i])
				}
				e.ArrEnd()
			})
		})
	})
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.sales.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeSale(e, s) })
}

func (h *Handler) getSaleByNumber(w http.ResponseWriter, r *http.Request) {
	s, err := h.sales.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeSale(e, s) })
}

func (h *Handler) cancelSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.sales.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeSale(e, s) })
}

// advanceSale serves a fulfilment step such as confirm or prepare.
func (h *Handler) advanceSale(step func(*sale.Service, context.Context, string) (*sale.Sale, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := step(h.sales, r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeSale(e, s) })
	}
}

func (h *Handler) summarizeSales(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	from, to := q.time("from", false), q.time("to", true)
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	sum, err := h.sales.Summarize(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeSummary(e, sum) })
}
