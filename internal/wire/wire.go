// Package wire holds the JSON representations exchanged between the console
// and the sales API, encoded and decoded with go-faster/jx.
package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// EncodeDecimal writes d as a JSON number with two decimals.
func EncodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

// DecodeDecimal reads a JSON number or numeric string.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.Errorf("expected number, got %s", d.Next())
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse decimal %q", raw)
	}
	return v, nil
}

// DecodeNullDecimal reads a number, numeric string or null.
func DecodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := DecodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

// EncodeTime writes t in RFC 3339 with nanoseconds, UTC.
func EncodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

// DecodeTime reads an RFC 3339 timestamp.
func DecodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse time %q", s)
	}
	return t, nil
}

// EncodeDetail writes the error body {"detail": msg}.
func EncodeDetail(e *jx.Encoder, msg string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("detail", func(e *jx.Encoder) { e.Str(msg) })
	})
}

// DecodeDetail extracts the detail message of an error body. Validation
// errors may carry a list of {"msg": ...} objects instead of a string; their
// messages are joined.
func DecodeDetail(data []byte) (string, error) {
	var detail string
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "detail" {
			return d.Skip()
		}
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			detail = s
			return err
		case jx.Array:
			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "msg" {
						return d.Skip()
					}
					s, err := d.Str()
					if err != nil {
						return err
					}
					if detail != "" {
						detail += "; "
					}
					detail += s
					return nil
				})
			})
		default:
			return d.Skip()
		}
	})
	return detail, err
}

func str(d *jx.Decoder, dst *string) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

// strOrNull decodes an optional string into dst, leaving it empty on null.
func strOrNull(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return str(d, dst)
}
