package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/salesdesk/internal/domain/auth"
	"github.com/xenking/salesdesk/internal/domain/client"
	"github.com/xenking/salesdesk/internal/domain/product"
)

// EncodeProduct writes p.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(p.Code) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { EncodeDecimal(e, p.Price) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(p.Active) })
	})
}

// DecodeProduct reads a product, ignoring unknown fields.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			return str(d, &p.ID)
		case "code":
			return str(d, &p.Code)
		case "name":
			return str(d, &p.Name)
		case "price":
			p.Price, err = DecodeDecimal(d)
		case "active":
			p.Active, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "decode product")
	}
	return p, nil
}

// EncodeClient writes c.
func EncodeClient(e *jx.Encoder, c client.Client) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("business_name", func(e *jx.Encoder) { e.Str(c.BusinessName) })
		e.Field("tax_id", func(e *jx.Encoder) { e.Str(c.TaxID) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(c.Kind)) })
		e.Field("district", func(e *jx.Encoder) { e.Str(c.District) })
		e.Field("credit_days", func(e *jx.Encoder) { e.Int(c.CreditDays) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(c.Active) })
	})
}

// DecodeClient reads a client, ignoring unknown fields.
func DecodeClient(d *jx.Decoder) (client.Client, error) {
	var c client.Client
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			return str(d, &c.ID)
		case "code":
			return str(d, &c.Code)
		case "business_name":
			return str(d, &c.BusinessName)
		case "tax_id":
			return strOrNull(d, &c.TaxID)
		case "kind":
			var s string
			err = str(d, &s)
			c.Kind = client.Kind(s)
		case "district":
			return strOrNull(d, &c.District)
		case "credit_days":
			c.CreditDays, err = d.Int()
		case "active":
			c.Active, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return client.Client{}, errors.Wrap(err, "decode client")
	}
	return c, nil
}

// EncodeUser writes the public fields of u. The password hash is never
// encoded.
func EncodeUser(e *jx.Encoder, u *auth.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(u.ID) })
		e.Field("username", func(e *jx.Encoder) { e.Str(u.Username) })
		e.Field("full_name", func(e *jx.Encoder) { e.Str(u.FullName) })
		e.Field("email", func(e *jx.Encoder) { e.Str(u.Email) })
		e.Field("role", func(e *jx.Encoder) { e.Str(string(u.Role)) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(u.Active) })
	})
}

// DecodeUser reads a user.
func DecodeUser(d *jx.Decoder) (auth.User, error) {
	var u auth.User
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			return str(d, &u.ID)
		case "username":
			return str(d, &u.Username)
		case "full_name":
			return strOrNull(d, &u.FullName)
		case "email":
			return strOrNull(d, &u.Email)
		case "role":
			var s string
			err = str(d, &s)
			u.Role = auth.Role(s)
		case "active":
			u.Active, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return auth.User{}, errors.Wrap(err, "decode user")
	}
	return u, nil
}

// EncodeToken writes a login response.
func EncodeToken(e *jx.Encoder, t auth.Token) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("access_token", func(e *jx.Encoder) { e.Str(t.AccessToken) })
		e.Field("token_type", func(e *jx.Encoder) { e.Str("bearer") })
		e.Field("expires_at", func(e *jx.Encoder) { EncodeTime(e, t.ExpiresAt) })
	})
}

// DecodeToken reads a login response.
func DecodeToken(d *jx.Decoder) (auth.Token, error) {
	var t auth.Token
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "access_token":
			return str(d, &t.AccessToken)
		case "expires_at":
			t.ExpiresAt, err = DecodeTime(d)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return auth.Token{}, errors.Wrap(err, "decode token")
	}
	if t.AccessToken == "" {
		return auth.Token{}, errors.New("decode token: missing access_token")
	}
	return t, nil
}
