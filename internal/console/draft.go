package console

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/draft"
	"github.com/xenking/salesdesk/internal/domain/sale"
	"github.com/xenking/salesdesk/internal/wire"
)

// addLineRequest accepts quantity and unit_price either as JSON numbers or as
// the raw text typed by the operator.
type addLineRequest struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.NullDecimal
}

func (req *addLineRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			req.ProductID, err = d.Str()
		case "name":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.Name, err = d.Str()
		case "quantity":
			req.Quantity, err = decodeQuantity(d)
		case "unit_price":
			req.UnitPrice, err = decodePrice(d)
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func decodeQuantity(d *jx.Decoder) (int, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return draft.ParseQuantity(s)
	default:
		n, err := d.Int()
		if err != nil {
			return 0, &draft.ValidationError{Err: errors.Errorf("%w: %v", draft.ErrInvalidQuantity, err)}
		}
		return n, nil
	}
}

func decodePrice(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		return draft.ParsePrice(s)
	}
	p, err := wire.DecodeNullDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, &draft.ValidationError{Err: errors.Errorf("%w: %v", draft.ErrInvalidPrice, err)}
	}
	return p, nil
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	writeDraft(w, http.StatusOK, s.Latest())
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())

	var req addLineRequest
	if err := decodeBody(r, req.decode); err != nil {
		var verr *draft.ValidationError
		if errors.As(err, &verr) {
			h.writeError(w, r, err)
			return
		}
		writeBadRequest(w, err)
		return
	}

	in := draft.LineInput{
		ProductID:   req.ProductID,
		DisplayName: req.Name,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	}
	in, err := h.catalog.Resolve(r.Context(), s.Token(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	line, err := s.Draft.Add(in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("line", func(e *jx.Encoder) { encodeLine(e, line) })
			e.Field("draft", func(e *jx.Encoder) { encodeSnapshot(e, s.Latest()) })
		})
	})
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	if err := s.Draft.Remove(draft.LineID(chi.URLParam(r, "lineID"))); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeDraft(w, http.StatusOK, s.Latest())
}

func (h *Handler) removeLineAt(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "line index must be an integer")
		return
	}
	if err := s.Draft.RemoveAt(index); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeDraft(w, http.StatusOK, s.Latest())
}

func (h *Handler) resetDraft(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	if err := s.Draft.Reset(); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeDraft(w, http.StatusOK, s.Latest())
}

type submitRequest struct {
	ClientID    string
	PaymentType string
}

func (req *submitRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "client_id":
			req.ClientID, err = d.Str()
		case "payment_type":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.PaymentType, err = d.Str()
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())

	var req submitRequest
	if err := decodeBody(r, req.decode); err != nil {
		writeBadRequest(w, err)
		return
	}

	receipt, err := s.Submit(r.Context(), draft.SubmitRequest{
		ClientID:    req.ClientID,
		PaymentType: sale.PaymentType(req.PaymentType),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order_id", func(e *jx.Encoder) { e.Str(receipt.OrderID) })
			e.Field("number", func(e *jx.Encoder) { e.Str(receipt.Number) })
			e.Field("total", func(e *jx.Encoder) { wire.EncodeDecimal(e, receipt.Total) })
			e.Field("draft", func(e *jx.Encoder) { encodeSnapshot(e, s.Latest()) })
		})
	})
}
