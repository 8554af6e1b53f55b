package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/sale"
)

// SaleRequest is the body of POST /api/sales.
type SaleRequest struct {
	ClientID        string `validate:"required"`
	PaymentType     string `validate:"omitempty,oneof=contado credito transferencia cheque"`
	DocumentType    string `validate:"omitempty,oneof=factura boleta nota_venta"`
	Discount        decimal.Decimal
	DeliveryAddress string `validate:"max=500"`
	Notes           string `validate:"max=2000"`
	Lines           []SaleLineRequest `validate:"required,min=1,dive"`
}

// SaleLineRequest is one line of a SaleRequest.
type SaleLineRequest struct {
	ProductID       string `validate:"required"`
	Quantity        int    `validate:"gt=0"`
	UnitPrice       decimal.NullDecimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
}

// Encode writes r. Optional header fields are omitted when empty.
func (r SaleRequest) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("client_id", func(e *jx.Encoder) { e.Str(r.ClientID) })
		if r.PaymentType != "" {
			e.Field("payment_type", func(e *jx.Encoder) { e.Str(r.PaymentType) })
		}
		if r.DocumentType != "" {
			e.Field("document_type", func(e *jx.Encoder) { e.Str(r.DocumentType) })
		}
		if !r.Discount.IsZero() {
			e.Field("discount", func(e *jx.Encoder) { EncodeDecimal(e, r.Discount) })
		}
		if r.DeliveryAddress != "" {
			e.Field("delivery_address", func(e *jx.Encoder) { e.Str(r.DeliveryAddress) })
		}
		if r.Notes != "" {
			e.Field("notes", func(e *jx.Encoder) { e.Str(r.Notes) })
		}
		e.Field("lines", func(e *jx.Encoder) {
			e.ArrStart()
			for _, l := range r.Lines {
				l.encode(e)
			}
			e.ArrEnd()
		})
	})
}

func (l SaleLineRequest) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		if l.UnitPrice.Valid {
			e.Field("unit_price", func(e *jx.Encoder) { EncodeDecimal(e, l.UnitPrice.Decimal) })
		}
		if !l.DiscountPercent.IsZero() {
			e.Field("discount_percent", func(e *jx.Encoder) { EncodeDecimal(e, l.DiscountPercent) })
		}
		if !l.DiscountAmount.IsZero() {
			e.Field("discount_amount", func(e *jx.Encoder) { EncodeDecimal(e, l.DiscountAmount) })
		}
	})
}

// Decode reads r, ignoring unknown fields.
func (r *SaleRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "client_id":
			return str(d, &r.ClientID)
		case "payment_type":
			return strOrNull(d, &r.PaymentType)
		case "document_type":
			return strOrNull(d, &r.DocumentType)
		case "discount":
			r.Discount, err = DecodeDecimal(d)
		case "delivery_address":
			return strOrNull(d, &r.DeliveryAddress)
		case "notes":
			return strOrNull(d, &r.Notes)
		case "lines":
			err = d.Arr(func(d *jx.Decoder) error {
				var l SaleLineRequest
				if err := l.decode(d); err != nil {
					return err
				}
				r.Lines = append(r.Lines, l)
				return nil
			})
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func (l *SaleLineRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			return str(d, &l.ProductID)
		case "quantity":
			l.Quantity, err = d.Int()
		case "unit_price":
			l.UnitPrice, err = DecodeNullDecimal(d)
		case "discount_percent":
			l.DiscountPercent, err = DecodeDecimal(d)
		case "discount_amount":
			l.DiscountAmount, err = DecodeDecimal(d)
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

// CreateRequest converts r to the domain request.
func (r SaleRequest) CreateRequest(sellerID string) sale.CreateRequest {
	req := sale.CreateRequest{
		ClientID:        r.ClientID,
		SellerID:        sellerID,
		DocumentType:    sale.DocumentType(r.DocumentType),
		PaymentType:     sale.PaymentType(r.PaymentType),
		Discount:        r.Discount,
		DeliveryAddress: r.DeliveryAddress,
		Notes:           r.Notes,
		Lines:           make([]sale.LineRequest, len(r.Lines)),
	}
	for i, l := range r.Lines {
		req.Lines[i] = sale.LineRequest{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			DiscountAmount:  l.DiscountAmount,
		}
	}
	return req
}

// EncodeSale writes s with its lines.
func EncodeSale(e *jx.Encoder, s *sale.Sale) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
		e.Field("number", func(e *jx.Encoder) { e.Str(s.Number) })
		e.Field("client_id", func(e *jx.Encoder) { e.Str(s.ClientID) })
		e.Field("seller_id", func(e *jx.Encoder) { e.Str(s.SellerID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(s.Status)) })
		e.Field("document_type", func(e *jx.Encoder) { e.Str(string(s.DocumentType)) })
		e.Field("payment_type", func(e *jx.Encoder) { e.Str(string(s.PaymentType)) })
		e.Field("subtotal", func(e *jx.Encoder) { EncodeDecimal(e, s.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { EncodeDecimal(e, s.Discount) })
		e.Field("tax", func(e *jx.Encoder) { EncodeDecimal(e, s.Tax) })
		e.Field("total", func(e *jx.Encoder) { EncodeDecimal(e, s.Total) })
		e.Field("payment_due", func(e *jx.Encoder) {
			if s.PaymentDue == nil {
				e.Null()
				return
			}
			EncodeTime(e, *s.PaymentDue)
		})
		e.Field("delivery_address", func(e *jx.Encoder) { e.Str(s.DeliveryAddress) })
		e.Field("notes", func(e *jx.Encoder) { e.Str(s.Notes) })
		e.Field("created_at", func(e *jx.Encoder) { EncodeTime(e, s.CreatedAt) })
		e.Field("lines", func(e *jx.Encoder) {
			e.ArrStart()
			for _, l := range s.Lines {
				e.Obj(func(e *jx.Encoder) {
					e.Field("product_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
					e.Field("unit_price", func(e *jx.Encoder) { EncodeDecimal(e, l.UnitPrice) })
					e.Field("discount_percent", func(e *jx.Encoder) { EncodeDecimal(e, l.DiscountPercent) })
					e.Field("discount_amount", func(e *jx.Encoder) { EncodeDecimal(e, l.DiscountAmount) })
					e.Field("subtotal", func(e *jx.Encoder) { EncodeDecimal(e, l.Subtotal) })
				})
			}
			e.ArrEnd()
		})
	})
}

// SaleHeader is the part of a sale response the console needs.
type SaleHeader struct {
	ID     string
	Number string
	Status sale.Status
	Total  decimal.Decimal
}

// DecodeSaleHeader reads the identifying fields of a sale response and skips
// the rest.
func DecodeSaleHeader(d *jx.Decoder) (SaleHeader, error) {
	var h SaleHeader
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			return str(d, &h.ID)
		case "number":
			return str(d, &h.Number)
		case "status":
			var s string
			err = str(d, &s)
			h.Status = sale.Status(s)
		case "total":
			h.Total, err = DecodeDecimal(d)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return SaleHeader{}, errors.Wrap(err, "decode sale")
	}
	if h.ID == "" {
		return SaleHeader{}, errors.New("decode sale: missing id")
	}
	return h, nil
}

// EncodeSummary writes a sales summary.
func EncodeSummary(e *jx.Encoder, s sale.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("total_sales", func(e *jx.Encoder) { EncodeDecimal(e, s.TotalSales) })
		e.Field("count", func(e *jx.Encoder) { e.Int(s.Count) })
		e.Field("average_ticket", func(e *jx.Encoder) { EncodeDecimal(e, s.AverageTicket) })
		e.Field("by_status", func(e *jx.Encoder) {
			e.ObjStart()
			for _, st := range statusOrder {
				if n, ok := s.ByStatus[st]; ok {
					e.Field(string(st), func(e *jx.Encoder) { e.Int(n) })
				}
			}
			e.ObjEnd()
		})
	})
}

var statusOrder = []sale.Status{
	sale.StatusDraft, sale.StatusConfirmed, sale.StatusPreparing, sale.StatusReadyToShip,
	sale.StatusInTransit, sale.StatusDelivered, sale.StatusCancelled,
}
