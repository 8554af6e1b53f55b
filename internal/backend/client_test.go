package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/salesdesk/internal/domain/draft"
	"github.com/xenking/salesdesk/internal/domain/sale"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/api")
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New("localhost:8080")
	require.Error(t, err)

	c, err := New("http://sales.local/api/")
	require.NoError(t, err)
	assert.Equal(t, "http://sales.local/readyz", c.ReadyURL())
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "ana" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"incorrect username or password"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"bearer","expires_at":"2026-10-19T20:00:00Z"}`)
	})

	tok, err := c.Login(context.Background(), "ana", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC), tok.ExpiresAt)

	_, err = c.Login(context.Background(), "ana", "wrong")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode())
	assert.Equal(t, "incorrect username or password", apiErr.Detail())
	assert.True(t, IsUnauthorized(err))
}

func TestMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":"u1","username":"ana","full_name":"Ana Diaz","email":null,"role":"vendedor","active":true}`)
	})

	u, err := c.Me(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Ana Diaz", u.FullName)
	assert.True(t, u.Role.CanSell())
}

func TestListProducts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "jabón azul", r.URL.Query().Get("search"))
		_, _ = io.WriteString(w, `[
			{"id":"p1","code":"SOAP","name":"Soap","price":5.00,"active":true},
			{"id":"p2","code":"PASTE","name":"Toothpaste","price":"7.50","active":true,"stock":12}
		]`)
	})

	got, err := c.ListProducts(context.Background(), "tok", "jabón azul")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Soap", got[0].Name)
	assert.True(t, decimal.RequireFromString("7.5").Equal(got[1].Price))
}

func TestListClients(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"c1","code":"CL1","business_name":"Bodega Sol","tax_id":"20123456789","kind":"minorista","district":null,"credit_days":0,"active":true}]`)
	})

	got, err := c.ListClients(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bodega Sol", got[0].BusinessName)
}

func TestCreateSale(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sales", r.URL.Path)
		assert.Equal(t, "req-1", r.Header.Get(httpmiddleware.RequestIDHeader))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"client_id":"c1",
			"payment_type":"credito",
			"lines":[
				{"product_id":"p1","quantity":2,"unit_price":5.00},
				{"product_id":"p2","quantity":1,"unit_price":10.00}
			]
		}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"s1","number":"V20261000001","status":"borrador","total":23.60,"lines":[]}`)
	})

	ctx := httpmiddleware.WithRequestID(context.Background(), "req-1")
	rc, err := c.Sender("tok").CreateSale(ctx, draft.Submission{
		ClientID:    "c1",
		PaymentType: sale.PaymentCredit,
		Lines: []draft.SubmissionLine{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(5)},
			{ProductID: "p2", Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", rc.OrderID)
	assert.Equal(t, "V20261000001", rc.Number)
	assert.True(t, decimal.RequireFromString("23.60").Equal(rc.Total))
}

func TestAPIErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		status int
		body   string
		header map[string]string
		want   string
	}{
		{"Detail", http.StatusBadRequest, `{"detail":"Producto p9 no encontrado"}`, nil, "Producto p9 no encontrado"},
		{"ValidationList", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"too long"}]}`, nil, "field required; too long"},
		{"NotJSON", http.StatusBadGateway, `<html>bad gateway</html>`, nil, "Bad Gateway"},
		{"RetryAfter", http.StatusTooManyRequests, `{"detail":"too many requests"}`, map[string]string{"Retry-After": "7"}, "too many requests (retry after 7s)"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.CreateSale(context.Background(), "tok", draft.Submission{ClientID: "c1"})
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.False(t, IsUnauthorized(err))
		})
	}
}

func TestCreateSaleUnreadableReply(t *testing.T) {
	for _, tt := range []struct {
		name string
		body string
	}{
		{"Truncated", `{"id":"s1","number":"V2026`},
		{"NotJSON", `<html>ok</html>`},
		{"MissingID", `{"number":"V20261000001","total":1.00}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.CreateSale(context.Background(), "tok", draft.Submission{ClientID: "c1"})
			require.ErrorIs(t, err, draft.ErrUnconfirmed)
			var apiErr *APIError
			assert.False(t, errors.As(err, &apiErr))
		})
	}
}

func TestUnreadableReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":`)
	})
	_, err := c.ListClients(context.Background(), "tok")
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusOK, respErr.Status)
	assert.NotErrorIs(t, err, draft.ErrUnconfirmed)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL + "/api")
	require.NoError(t, err)
	srv.Close()

	_, err = c.ListClients(context.Background(), "tok")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestContextDeadline(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ListProducts(ctx, "tok", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
