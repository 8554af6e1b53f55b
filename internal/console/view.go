package console

import (
	"github.com/go-faster/jx"

	"github.com/xenking/salesdesk/internal/domain/draft"
	"github.com/xenking/salesdesk/internal/wire"
)

// encodeSnapshot renders what the operator sees: the ordered lines with their
// totals, the three aggregates and whether the draft can be submitted.
func encodeSnapshot(e *jx.Encoder, s draft.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) { e.Str(s.State.String()) })
		e.Field("empty", func(e *jx.Encoder) { e.Bool(s.Empty()) })
		e.Field("lines", func(e *jx.Encoder) {
			e.ArrStart()
			for _, l := range s.Lines {
				encodeLine(e, l)
			}
			e.ArrEnd()
		})
		e.Field("subtotal", func(e *jx.Encoder) { wire.EncodeDecimal(e, s.Totals.Subtotal) })
		e.Field("tax", func(e *jx.Encoder) { wire.EncodeDecimal(e, s.Totals.Tax) })
		e.Field("total", func(e *jx.Encoder) { wire.EncodeDecimal(e, s.Totals.Total) })
	})
}

func encodeLine(e *jx.Encoder, l draft.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(string(l.ID)) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.DisplayName) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { wire.EncodeDecimal(e, l.UnitPrice) })
		e.Field("total", func(e *jx.Encoder) { wire.EncodeDecimal(e, l.Total()) })
	})
}
