//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/salesdesk/internal/console"
	"github.com/xenking/salesdesk/internal/domain/auth"
	"github.com/xenking/salesdesk/internal/domain/client"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/storage/postgres"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

var (
	apiURL     string
	consoleURL string
	httpClient = &http.Client{Timeout: 10 * time.Second}
)

// Response shapes are declared here so the tests only see the wire format.

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type draftView struct {
	State    string          `json:"state"`
	Empty    bool            `json:"empty"`
	Lines    []lineView      `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type lineView struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

type loginResponse struct {
	SessionID string    `json:"session_id"`
	Draft     draftView `json:"draft"`
}

type submitResponse struct {
	OrderID string          `json:"order_id"`
	Number  string          `json:"number"`
	Total   decimal.Decimal `json:"total"`
	Draft   draftView       `json:"draft"`
}

type saleResponse struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	Status     string          `json:"status"`
	PaymentDue *time.Time      `json:"payment_due"`
	Total      decimal.Decimal `json:"total"`
	Lines      []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "salesdesk",
				"POSTGRES_PASSWORD": "salesdesk",
				"POSTGRES_DB":       "salesdesk",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		return 1
	}
	defer func() { _ = pg.Terminate(context.Background()) }()

	host, err := pg.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "host: %v\n", err)
		return 1
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "mapped port: %v\n", err)
		return 1
	}

	dsn := fmt.Sprintf("postgres://salesdesk:salesdesk@%s:%s/salesdesk?sslmode=disable", host, port.Port())
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pool: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "migrations: %v\n", err)
		return 1
	}
	if err := seed(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		return 1
	}

	srvCtx, stop := context.WithCancel(context.Background())
	defer stop()
	tp, mp := tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider()

	api := newSalesAPIServer(srvCtx, &SalesAPIConfig{
		JWTSecret: "integration-secret-0123456789",
		TokenTTL:  time.Hour,
		RateLimit: RateLimitConfig{Max: 1000, Window: time.Minute},
	}, pool)
	apiServer := httptest.NewServer(api.handler(srvCtx, tp, mp))
	defer apiServer.Close()
	defer api.health.Stop()
	apiURL = apiServer.URL

	con, err := newConsoleServer(srvCtx, &ConsoleConfig{
		BackendURL: apiURL + "/api",
		TaxRate:    "0.18",
		Session:    SessionConfig{IdleTTL: time.Minute, MaxSessions: 16, SubmitTimeout: 5 * time.Second},
		Catalog:    CatalogConfig{Size: 64, TTL: time.Minute},
		RateLimit:  RateLimitConfig{Max: 1000, Window: time.Minute},
	}, tp, mp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		return 1
	}
	consoleServer := httptest.NewServer(con.handler(srvCtx, tp, mp))
	defer consoleServer.Close()
	defer con.health.Stop()
	consoleURL = consoleServer.URL

	return m.Run()
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	products := postgres.NewProductRepository(pool)
	for _, p := range []product.Product{
		{ID: "soap", Code: "P001", Name: "Soap", Price: decimal.RequireFromString("10.00"), Active: true},
		{ID: "paste", Code: "P002", Name: "Toothpaste", Price: decimal.RequireFromString("15.00"), Active: true},
		{ID: "old", Code: "P003", Name: "Discontinued", Price: decimal.RequireFromString("1.00"), Active: false},
	} {
		if err := products.Upsert(ctx, p); err != nil {
			return err
		}
	}

	if err := postgres.NewClientRepository(pool).Upsert(ctx, client.Client{
		ID: "rosa", Code: "C001", BusinessName: "Bodega Rosa", Kind: client.KindRetail, CreditDays: 30, Active: true,
	}); err != nil {
		return err
	}

	users := postgres.NewUserRepository(pool)
	for _, u := range []struct {
		id, name string
		role     auth.Role
	}{
		{"u-seller", "vendedor1", auth.RoleSeller},
		{"u-warehouse", "almacenero1", auth.RoleWarehouse},
	} {
		hash, err := auth.HashPassword("secret123")
		if err != nil {
			return err
		}
		if err := users.Upsert(ctx, auth.User{ID: u.id, Username: u.name, Role: u.role, PasswordHash: hash, Active: true}); err != nil {
			return err
		}
	}
	return nil
}

// HTTP helpers.

func do(t *testing.T, method, url string, body any, header http.Header) *http.Response {
	t.Helper()

	var r *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func consoleLogin(t *testing.T, username string) string {
	t.Helper()

	resp := do(t, http.MethodPost, consoleURL+"/session", map[string]string{"username": username, "password": "secret123"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeJSON[loginResponse](t, resp)
	require.NotEmpty(t, body.SessionID)
	assert.True(t, body.Draft.Empty)
	return body.SessionID
}

func sessionHeader(id string) http.Header {
	return http.Header{console.SessionHeader: []string{id}}
}

func apiToken(t *testing.T, username string) string {
	t.Helper()

	form := url.Values{"username": {username}, "password": {"secret123"}}
	resp, err := httpClient.PostForm(apiURL+"/api/auth/login", form)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON[struct {
		AccessToken string `json:"access_token"`
	}](t, resp)
	return body.AccessToken
}

func TestProbes(t *testing.T) {
	for _, base := range []string{apiURL, consoleURL} {
		for _, path := range []string{"/livez", "/readyz"} {
			resp := do(t, http.MethodGet, base+path, nil, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, base+path)
			assert.Equal(t, "ok", decodeJSON[healthResponse](t, resp).Status)
		}
	}
}

func TestMiddlewareChain(t *testing.T) {
	t.Run("RequestIDEchoed", func(t *testing.T) {
		resp := do(t, http.MethodGet, consoleURL+"/livez", nil, http.Header{
			httpmiddleware.RequestIDHeader: []string{"custom-request-id-12345"},
		})
		assert.Equal(t, "custom-request-id-12345", resp.Header.Get(httpmiddleware.RequestIDHeader))
	})
	t.Run("RequestIDGenerated", func(t *testing.T) {
		resp := do(t, http.MethodGet, apiURL+"/livez", nil, nil)
		assert.NotEmpty(t, resp.Header.Get(httpmiddleware.RequestIDHeader))
	})
	t.Run("CORSPreflight", func(t *testing.T) {
		resp := do(t, http.MethodOptions, apiURL+"/api/products", nil, http.Header{
			"Origin":                        []string{"http://example.com"},
			"Access-Control-Request-Method": []string{http.MethodGet},
		})
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Methods"))
	})
	t.Run("RateLimitHeaders", func(t *testing.T) {
		resp := do(t, http.MethodGet, consoleURL+"/draft", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "1000", resp.Header.Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
	})
}

func TestConsoleLoginRejectsNonSellers(t *testing.T) {
	resp := do(t, http.MethodPost, consoleURL+"/session", map[string]string{"username": "almacenero1", "password": "secret123"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodPost, consoleURL+"/session", map[string]string{"username": "vendedor1", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDraftToSale(t *testing.T) {
	sid := consoleLogin(t, "vendedor1")
	h := sessionHeader(sid)

	resp := do(t, http.MethodGet, consoleURL+"/session/catalog", nil, h)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing := decodeJSON[struct {
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
		Clients []struct {
			ID string `json:"id"`
		} `json:"clients"`
	}](t, resp)
	assert.Len(t, listing.Products, 2)
	assert.Len(t, listing.Clients, 1)

	resp = do(t, http.MethodPost, consoleURL+"/draft/lines", map[string]any{"product_id": "soap", "quantity": "2"}, h)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, http.MethodPost, consoleURL+"/draft/lines", map[string]any{"product_id": "paste", "quantity": 1}, h)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, http.MethodPost, consoleURL+"/draft/lines", map[string]any{"product_id": "old", "quantity": 1}, h)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, http.MethodGet, consoleURL+"/draft", nil, h)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decodeJSON[draftView](t, resp)
	require.Len(t, d.Lines, 2)
	assert.Equal(t, "Soap", d.Lines[0].Name)
	assert.Equal(t, "35.00", d.Subtotal.StringFixed(2))
	assert.Equal(t, "6.30", d.Tax.StringFixed(2))
	assert.Equal(t, "41.30", d.Total.StringFixed(2))

	resp = do(t, http.MethodPost, consoleURL+"/draft/submit", map[string]string{"client_id": "rosa", "payment_type": "credito"}, h)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	receipt := decodeJSON[submitResponse](t, resp)
	assert.Equal(t, "41.30", receipt.Total.StringFixed(2))
	assert.True(t, receipt.Draft.Empty)
	assert.Equal(t, "empty", receipt.Draft.State)

	token := apiToken(t, "vendedor1")
	resp = do(t, http.MethodGet, apiURL+"/api/sales/number/"+receipt.Number, nil, http.Header{
		"Authorization": []string{"Bearer " + token},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decodeJSON[saleResponse](t, resp)
	assert.Equal(t, receipt.OrderID, s.ID)
	assert.Equal(t, "borrador", s.Status)
	assert.NotNil(t, s.PaymentDue)
	require.Len(t, s.Lines, 2)
	assert.Equal(t, "soap", s.Lines[0].ProductID)
	assert.Equal(t, 2, s.Lines[0].Quantity)

	resp = do(t, http.MethodDelete, consoleURL+"/session", nil, h)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodGet, consoleURL+"/draft", nil, h)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitRejectedKeepsDraft(t *testing.T) {
	h := sessionHeader(consoleLogin(t, "vendedor1"))

	resp := do(t, http.MethodPost, consoleURL+"/draft/lines", map[string]any{"product_id": "soap", "quantity": 1}, h)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, consoleURL+"/draft/submit", map[string]string{"client_id": "ghost"}, h)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = do(t, http.MethodGet, consoleURL+"/draft", nil, h)
	d := decodeJSON[draftView](t, resp)
	require.Len(t, d.Lines, 1)
	assert.Equal(t, "building", d.State)
}
