package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/salesdesk/internal/domain/auth"
	"github.com/xenking/salesdesk/internal/domain/client"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/domain/sale"
)

// --- Mock implementations ---

type mockUserRepo struct {
	users map[string]*auth.User
}

func (m *mockUserRepo) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

type mockProductRepo struct {
	products []product.Product
	listErr  error
	lastF    product.Filter
}

func (m *mockProductRepo) List(_ context.Context, f product.Filter) ([]product.Product, error) {
	m.lastF = f
	return m.products, m.listErr
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.products {
		if slices.Contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockClientRepo struct {
	clients []client.Client
}

func (m *mockClientRepo) List(_ context.Context, _ client.Filter) ([]client.Client, error) {
	return m.clients, nil
}

func (m *mockClientRepo) GetByID(_ context.Context, id string) (*client.Client, error) {
	for _, c := range m.clients {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, client.ErrNotFound
}

type mockSaleRepo struct {
	mu    sync.Mutex
	sales []*sale.Sale
	lastF sale.Filter
}

func (m *mockSaleRepo) Create(_ context.Context, s *sale.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, s)
	return nil
}

func (m *mockSaleRepo) Get(_ context.Context, id string) (*sale.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sales {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sale.ErrNotFound
}

func (m *mockSaleRepo) GetByNumber(_ context.Context, number string) (*sale.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sales {
		if s.Number == number {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sale.ErrNotFound
}

func (m *mockSaleRepo) List(_ context.Context, f sale.Filter) ([]sale.Sale, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastF = f
	out := make([]sale.Sale, 0, len(m.sales))
	for _, s := range m.sales {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockSaleRepo) LastNumber(_ context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := ""
	for _, s := range m.sales {
		if strings.HasPrefix(s.Number, prefix) && s.Number > last {
			last = s.Number
		}
	}
	return last, nil
}

func (m *mockSaleRepo) UpdateStatus(_ context.Context, id string, st sale.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sales {
		if s.ID == id {
			s.Status = st
			return nil
		}
	}
	return sale.ErrNotFound
}

// --- Helpers ---

type testAPI struct {
	t        *testing.T
	h        http.Handler
	tokens   *auth.Tokens
	users    *mockUserRepo
	products *mockProductRepo
	sales    *mockSaleRepo
}

var testHash = sync.OnceValue(func() []byte {
	h, err := auth.HashPassword("secret")
	if err != nil {
		panic(err)
	}
	return h
})

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	users := &mockUserRepo{users: map[string]*auth.User{
		"u1": {ID: "u1", Username: "ana", Role: auth.RoleSeller, PasswordHash: testHash(), Active: true},
		"u2": {ID: "u2", Username: "luis", Role: auth.RoleAccountant, PasswordHash: testHash(), Active: true},
		"u3": {ID: "u3", Username: "old", Role: auth.RoleSeller, PasswordHash: testHash(), Active: false},
	}}
	products := &mockProductRepo{products: []product.Product{
		{ID: "p1", Code: "SOAP", Name: "Soap", Price: decimal.NewFromInt(10), Active: true},
		{ID: "p2", Code: "PASTE", Name: "Toothpaste", Price: decimal.NewFromInt(5), Active: true},
	}}
	clients := &mockClientRepo{clients: []client.Client{
		{ID: "c1", Code: "CL1", BusinessName: "Bodega Sol", Kind: client.KindRetail, CreditDays: 30, Active: true},
	}}
	sales := &mockSaleRepo{}
	tokens := auth.NewTokens([]byte("test-secret"), time.Hour)

	h := NewHandler(
		auth.NewService(users, tokens),
		products,
		clients,
		sale.NewService(products, clients, sales),
	)
	return &testAPI{t: t, h: h.Routes(), tokens: tokens, users: users, products: products, sales: sales}
}

func (a *testAPI) token(userID string) string {
	a.t.Helper()
	tok, err := a.tokens.Issue(a.users.users[userID])
	require.NoError(a.t, err)
	return tok.AccessToken
}

func (a *testAPI) do(method, target, token, contentType, body string) (int, http.Header, any) {
	a.t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)

	var out any
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, rec.Header(), out
}

func (a *testAPI) get(target, token string) (int, any) {
	code, _, body := a.do(http.MethodGet, target, token, "", "")
	return code, body
}

func (a *testAPI) postJSON(target, token, body string) (int, any) {
	code, _, out := a.do(http.MethodPost, target, token, "application/json", body)
	return code, out
}

func field(t *testing.T, v any, key string) any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "%v", v)
	return m[key]
}

// --- Tests ---

func TestLogin(t *testing.T) {
	a := newTestAPI(t)
	form := func(u, p string) string {
		return url.Values{"username": {u}, "password": {p}}.Encode()
	}
	const ct = "application/x-www-form-urlencoded"

	code, _, body := a.do(http.MethodPost, "/auth/login", "", ct, form("ana", "secret"))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bearer", field(t, body, "token_type"))
	raw := field(t, body, "access_token").(string)

	code, me := a.get("/auth/me", raw)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ana", field(t, me, "username"))
	assert.Nil(t, field(t, me, "password_hash"))

	code, hdr, body := a.do(http.MethodPost, "/auth/login", "", ct, form("ana", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Bearer", hdr.Get("WWW-Authenticate"))
	assert.Equal(t, "Incorrect username or password", field(t, body, "detail"))

	code, _, _ = a.do(http.MethodPost, "/auth/login", "", ct, form("nobody", "secret"))
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _, body = a.do(http.MethodPost, "/auth/login", "", ct, form("old", "secret"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Inactive user", field(t, body, "detail"))

	code, _, _ = a.do(http.MethodPost, "/auth/login", "", ct, form("ana", ""))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAuthentication(t *testing.T) {
	a := newTestAPI(t)

	code, body := a.get("/products", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Not authenticated", field(t, body, "detail"))

	code, body = a.get("/products", "garbage")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Could not validate credentials", field(t, body, "detail"))

	other := auth.NewTokens([]byte("other-secret"), time.Hour)
	tok, err := other.Issue(a.users.users["u1"])
	require.NoError(t, err)
	code, _ = a.get("/products", tok.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.get("/products", a.token("u3"))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCatalog(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token("u1")

	code, body := a.get("/products?search=soa&active=true&limit=5", tok)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body, 2)
	assert.Equal(t, product.Filter{Search: "soa", ActiveOnly: true, Limit: 5}, a.products.lastF)

	code, body = a.get("/products/p1", tok)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Soap", field(t, body, "name"))
	assert.InDelta(t, 10.0, field(t, body, "price"), 1e-9)

	code, body = a.get("/products/p9", tok)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "product not found", field(t, body, "detail"))

	code, _ = a.get("/products?limit=-1", tok)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = a.get("/products?active=maybe", tok)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.get("/clients", tok)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body, 1)

	a.products.listErr = errors.New("db down")
	code, body = a.get("/products", tok)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", field(t, body, "detail"))
}

func TestCreateSale(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token("u1")

	code, body := a.postJSON("/sales", tok, `{
		"client_id": "c1",
		"payment_type": "credito",
		"lines": [
			{"product_id": "p1", "quantity": 2},
			{"product_id": "p2", "quantity": 3, "unit_price": "5.00"}
		]
	}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "borrador", field(t, body, "status"))
	assert.Equal(t, "u1", field(t, body, "seller_id"))
	assert.InDelta(t, 35.0, field(t, body, "subtotal"), 1e-9)
	assert.InDelta(t, 6.3, field(t, body, "tax"), 1e-9)
	assert.InDelta(t, 41.3, field(t, body, "total"), 1e-9)
	assert.NotNil(t, field(t, body, "payment_due"))
	number := field(t, body, "number").(string)
	assert.True(t, strings.HasSuffix(number, "00001"), number)

	code, body = a.postJSON("/sales", tok, `{"client_id":"c1","lines":[{"product_id":"p1","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.True(t, strings.HasSuffix(field(t, body, "number").(string), "00002"))
	assert.Nil(t, field(t, body, "payment_due"))
}

func TestCreateSaleErrors(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token("u1")

	for _, tt := range []struct {
		name   string
		body   string
		status int
		detail string
	}{
		{"Malformed", `{"client_id":`, http.StatusBadRequest, "invalid request body"},
		{"NoLines", `{"client_id":"c1","lines":[]}`, http.StatusBadRequest, "Lines"},
		{"NoClient", `{"lines":[{"product_id":"p1","quantity":1}]}`, http.StatusBadRequest, "ClientID: required"},
		{"BadPayment", `{"client_id":"c1","payment_type":"trueque","lines":[{"product_id":"p1","quantity":1}]}`, http.StatusBadRequest, "PaymentType"},
		{"ZeroQuantity", `{"client_id":"c1","lines":[{"product_id":"p1","quantity":0}]}`, http.StatusBadRequest, "Quantity"},
		{"UnknownClient", `{"client_id":"c9","lines":[{"product_id":"p1","quantity":1}]}`, http.StatusBadRequest, "client c9 not found"},
		{"UnknownProduct", `{"client_id":"c1","lines":[{"product_id":"p9","quantity":1}]}`, http.StatusBadRequest, "product p9 not found"},
		{"NegativeDiscount", `{"client_id":"c1","discount":-1,"lines":[{"product_id":"p1","quantity":1}]}`, http.StatusBadRequest, "discount must not be negative"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			code, body := a.postJSON("/sales", tok, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Contains(t, field(t, body, "detail"), tt.detail)
		})
	}
	assert.Empty(t, a.sales.sales)
}

func TestCreateSaleForbidden(t *testing.T) {
	a := newTestAPI(t)
	code, body := a.postJSON("/sales", a.token("u2"), `{"client_id":"c1","lines":[{"product_id":"p1","quantity":1}]}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Not enough permissions", field(t, body, "detail"))
}

func TestSaleLookupAndCancel(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token("u1")

	code, created := a.postJSON("/sales", tok, `{"client_id":"c1","lines":[{"product_id":"p1","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, code)
	id := field(t, created, "id").(string)
	number := field(t, created, "number").(string)

	code, body := a.get("/sales/"+id, tok)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, number, field(t, body, "number"))

	code, body = a.get("/sales/number/"+number, tok)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, field(t, body, "id"))

	code, _ = a.get("/sales/nope", tok)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = a.postJSON("/sales/"+id+"/cancel", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancelado", field(t, body, "status"))

	code, body = a.postJSON("/sales/"+id+"/cancel", tok, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, field(t, body, "detail"), "cancelado")

	code, _ = a.postJSON("/sales/"+id+"/cancel", a.token("u2"), "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestSaleFulfilment(t *testing.T) {
	a := newTestAPI(t)
	seller, accountant := a.token("u1"), a.token("u2")

	code, created := a.postJSON("/sales", seller, `{"client_id":"c1","lines":[{"product_id":"p1","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, code)
	id := field(t, created, "id").(string)

	code, body := a.postJSON("/sales/"+id+"/prepare", seller, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, field(t, body, "detail"), "borrador")

	code, _ = a.postJSON("/sales/"+id+"/confirm", accountant, "")
	assert.Equal(t, http.StatusForbidden, code)

	for _, st := range []struct {
		path, token, want string
	}{
		{"confirm", seller, "confirmado"},
		{"prepare", accountant, "en_preparacion"},
		{"ready", accountant, "listo_envio"},
		{"dispatch", accountant, "en_ruta"},
		{"deliver", accountant, "entregado"},
	} {
		code, body = a.postJSON("/sales/"+id+"/"+st.path, st.token, "")
		require.Equal(t, http.StatusOK, code, st.path)
		assert.Equal(t, st.want, field(t, body, "status"), st.path)
	}

	code, _ = a.postJSON("/sales/"+id+"/cancel", seller, "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = a.postJSON("/sales/nope/confirm", seller, "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.postJSON("/sales/"+id+"/prepare", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestListOwnSales(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token("u1")

	code, body := a.get("/sales/mine?status=borrador&seller_id=u2", tok)
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 0.0, field(t, body, "total"), 0)
	assert.Equal(t, "u1", a.sales.lastF.SellerID)
	assert.Equal(t, sale.StatusDraft, a.sales.lastF.Status)

	code, _ = a.get("/sales/mine?status=perdido", tok)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.get("/sales?seller_id=u2", tok)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u2", a.sales.lastF.SellerID)
}

func TestListAndSummarize(t *testing.T) {
	a := newTestAPI(t)
	tok := a.token("u1")
	for range 2 {
		code, _ := a.postJSON("/sales", tok, `{"client_id":"c1","lines":[{"product_id":"p1","quantity":1}]}`)
		require.Equal(t, http.StatusCreated, code)
	}

	code, body := a.get("/sales?client_id=c1&status=borrador&from=2026-10-01&to=2026-10-19&limit=10", tok)
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 2.0, field(t, body, "total"), 0)
	assert.Len(t, field(t, body, "items"), 2)
	f := a.sales.lastF
	assert.Equal(t, "c1", f.ClientID)
	assert.Equal(t, sale.StatusDraft, f.Status)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), f.To)
	assert.Equal(t, 10, f.Limit)

	code, _ = a.get("/sales?status=perdido", tok)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = a.get("/sales?from=yesterday", tok)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.get("/sales/summary", tok)
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 2.0, field(t, body, "count"), 0)
	assert.InDelta(t, 23.6, field(t, body, "total_sales"), 1e-9)
	assert.InDelta(t, 11.8, field(t, body, "average_ticket"), 1e-9)
}

func TestNotFoundRoute(t *testing.T) {
	a := newTestAPI(t)
	code, body := a.get("/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not Found", field(t, body, "detail"))
}
