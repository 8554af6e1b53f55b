// Package backend is the console's client for the sales API.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/salesdesk/internal/domain/auth"
	"github.com/xenking/salesdesk/internal/domain/client"
	"github.com/xenking/salesdesk/internal/domain/draft"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/wire"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx response of the sales API.
type APIError struct {
	Status  int
	Message string
}

var _ draft.Rejection = (*APIError)(nil)

func (e *APIError) Error() string {
	return fmt.Sprintf("sales api: %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status.
func (e *APIError) StatusCode() int { return e.Status }

// Detail returns the human-readable message sent by the API.
func (e *APIError) Detail() string { return e.Message }

// ResponseError is a 2xx response whose body could not be decoded. The
// request took effect on the server.
type ResponseError struct {
	Status int
	Err    error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("sales api: %d: decode response: %v", e.Status, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is
// wrapped for tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTelemetry traces and measures outgoing requests with the given
// providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(c *Client) {
		c.otelOpts = append(c.otelOpts,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		)
	}
}

// Client calls the sales API. It holds no credentials; every call takes the
// session's token.
type Client struct {
	base     *url.URL
	http     *http.Client
	otelOpts []otelhttp.Option
}

// New creates a Client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}

	transport := c.http.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	hc := *c.http
	hc.Transport = otelhttp.NewTransport(transport, c.otelOpts...)
	c.http = &hc
	return c, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (auth.Token, error) {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := c.request(ctx, http.MethodPost, "/auth/login", "", strings.NewReader(form.Encode()))
	if err != nil {
		return auth.Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok auth.Token
	err = c.do(req, func(d *jx.Decoder) (err error) {
		tok, err = wire.DecodeToken(d)
		return err
	})
	return tok, errors.Wrap(err, "login")
}

// Me returns the user owning token.
func (c *Client) Me(ctx context.Context, token string) (auth.User, error) {
	var u auth.User
	err := c.get(ctx, "/auth/me", token, func(d *jx.Decoder) (err error) {
		u, err = wire.DecodeUser(d)
		return err
	})
	return u, errors.Wrap(err, "me")
}

// ListProducts returns active catalog products matching search.
func (c *Client) ListProducts(ctx context.Context, token, search string) ([]product.Product, error) {
	path := "/products?active=true"
	if search != "" {
		path += "&search=" + url.QueryEscape(search)
	}
	var out []product.Product
	err := c.get(ctx, path, token, func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			p, err := wire.DecodeProduct(d)
			out = append(out, p)
			return err
		})
	})
	return out, errors.Wrap(err, "list products")
}

// GetProduct returns one product.
func (c *Client) GetProduct(ctx context.Context, token, id string) (product.Product, error) {
	var p product.Product
	err := c.get(ctx, "/products/"+url.PathEscape(id), token, func(d *jx.Decoder) (err error) {
		p, err = wire.DecodeProduct(d)
		return err
	})
	return p, errors.Wrapf(err, "get product %s", id)
}

// ListClients returns active clients.
func (c *Client) ListClients(ctx context.Context, token string) ([]client.Client, error) {
	var out []client.Client
	err := c.get(ctx, "/clients?active=true", token, func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			cl, err := wire.DecodeClient(d)
			out = append(out, cl)
			return err
		})
	})
	return out, errors.Wrap(err, "list clients")
}

// CreateSale posts a submission and returns the created sale's identity.
func (c *Client) CreateSale(ctx context.Context, token string, s draft.Submission) (draft.Receipt, error) {
	body := wire.SaleRequest{
		ClientID:    s.ClientID,
		PaymentType: string(s.PaymentType),
		Lines:       make([]wire.SaleLineRequest, len(s.Lines)),
	}
	for i, l := range s.Lines {
		body.Lines[i] = wire.SaleLineRequest{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: decimal.NewNullDecimal(l.UnitPrice),
		}
	}
	var e jx.Encoder
	body.Encode(&e)

	req, err := c.request(ctx, http.MethodPost, "/sales", token, bytes.NewReader(e.Bytes()))
	if err != nil {
		return draft.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var h wire.SaleHeader
	err = c.do(req, func(d *jx.Decoder) (err error) {
		h, err = wire.DecodeSaleHeader(d)
		return err
	})
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		// The sale exists; retrying would create a duplicate.
		return draft.Receipt{}, errors.Wrapf(draft.ErrUnconfirmed, "create sale: %v", respErr)
	}
	if err != nil {
		return draft.Receipt{}, errors.Wrap(err, "create sale")
	}
	return draft.Receipt{OrderID: h.ID, Number: h.Number, Total: h.Total}, nil
}

// ReadyURL returns the API's readiness endpoint, which lives next to /api.
func (c *Client) ReadyURL() string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/api") + "/readyz"
	return u.String()
}

// Sender binds token to c so it can be handed to a draft.
func (c *Client) Sender(token string) draft.Sender {
	return tokenSender{c: c, token: token}
}

type tokenSender struct {
	c     *Client
	token string
}

func (s tokenSender) CreateSale(ctx context.Context, sub draft.Submission) (draft.Receipt, error) {
	return s.c.CreateSale(ctx, s.token, sub)
}

// HTTPClient returns the instrumented HTTP client.
func (c *Client) HTTPClient() *http.Client { return c.http }

func (c *Client) get(ctx context.Context, path, token string, decode func(*jx.Decoder) error) error {
	req, err := c.request(ctx, http.MethodGet, path, token, http.NoBody)
	if err != nil {
		return err
	}
	return c.do(req, decode)
}

func (c *Client) request(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	target := c.base.String() + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(httpmiddleware.RequestIDHeader, id)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, decode func(*jx.Decoder) error) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if err := decode(jx.Decode(resp.Body, 4096)); err != nil {
		return &ResponseError{Status: resp.StatusCode, Err: err}
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg, err := wire.DecodeDetail(data)
	if err != nil || msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	apiErr := &APIError{Status: resp.StatusCode, Message: msg}
	if resp.StatusCode == http.StatusTooManyRequests {
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				apiErr.Message = fmt.Sprintf("%s (retry after %ds)", msg, secs)
			}
		}
	}
	return apiErr
}
