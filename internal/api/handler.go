// Package api serves the sales API consumed by the console: authentication,
// catalog lookups and sale creation and reporting.
package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/salesdesk/internal/domain/auth"
	"github.com/xenking/salesdesk/internal/domain/client"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/domain/sale"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

const maxBody = 1 << 20

var errUnknownStatus = errors.New("unknown sale status")

// Handler serves the sales API, delegating to the domain services and
// repositories.
type Handler struct {
	auth     *auth.Service
	products product.Repository
	clients  client.Repository
	sales    *sale.Service
	validate *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	authService *auth.Service,
	products product.Repository,
	clients client.Repository,
	sales *sale.Service,
) *Handler {
	return &Handler{
		auth:     authService,
		products: products,
		clients:  clients,
		sales:    sales,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes returns the API router. It is meant to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Post("/auth/login", h.login)
	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/auth/me", h.me)

		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/clients", h.listClients)

		r.Get("/sales", h.listSales)
		r.Get("/sales/mine", h.listOwnSales)
		r.Get("/sales/summary", h.summarizeSales)
		r.Get("/sales/number/{number}", h.getSaleByNumber)
		r.Get("/sales/{id}", h.getSale)
		r.Post("/sales/{id}/prepare", h.advanceSale((*sale.Service).Prepare))
		r.Post("/sales/{id}/ready", h.advanceSale((*sale.Service).MarkReady))
		r.Post("/sales/{id}/dispatch", h.advanceSale((*sale.Service).Dispatch))
		r.Post("/sales/{id}/deliver", h.advanceSale((*sale.Service).Deliver))
		r.Group(func(r chi.Router) {
			r.Use(requireSeller)
			r.Post("/sales", h.createSale)
			r.Post("/sales/{id}/confirm", h.advanceSale((*sale.Service).Confirm))
			r.Post("/sales/{id}/cancel", h.cancelSale)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, encode func(*jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	httpmiddleware.WriteDetail(w, status, detail)
}

func readJSON(r *http.Request, decode func(*jx.Decoder) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	return decode(jx.DecodeBytes(data))
}

// writeError maps domain errors to statuses. Anything unrecognized is logged
// and reported as a 500 without leaking its text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs validator.ValidationErrors
		qerr  *queryError
	)
	switch {
	case errors.Is(err, sale.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "sale not found")
	case errors.Is(err, product.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "product not found")
	case errors.Is(err, sale.ErrDuplicateNumber):
		writeDetail(w, http.StatusConflict, "sale number already taken, retry")
	case errors.As(err, &verrs):
		writeDetail(w, http.StatusBadRequest, describeValidation(verrs))
	case errors.As(err, &qerr):
		writeDetail(w, http.StatusBadRequest, qerr.Error())
	case sale.IsValidation(err):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

func describeValidation(errs validator.ValidationErrors) string {
	msgs := make([]string, len(errs))
	for i, fe := range errs {
		field := strings.TrimPrefix(fe.Namespace(), "SaleRequest.")
		if fe.Param() != "" {
			msgs[i] = field + ": must satisfy " + fe.Tag() + "=" + fe.Param()
		} else {
			msgs[i] = field + ": " + fe.Tag()
		}
	}
	return strings.Join(msgs, "; ")
}

// queryError is a malformed query parameter.
type queryError struct {
	Param string
	Err   error
}

func (e *queryError) Error() string { return "invalid query parameter " + e.Param + ": " + e.Err.Error() }

func (e *queryError) Unwrap() error { return e.Err }

type query struct {
	r   *http.Request
	err error
}

func (q *query) str(name string) string {
	return q.r.URL.Query().Get(name)
}

func (q *query) int(name string) int {
	s := q.str(name)
	if s == "" || q.err != nil {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		q.err = &queryError{Param: name, Err: errors.New("must be a non-negative integer")}
	}
	return n
}

func (q *query) bool(name string) bool {
	s := q.str(name)
	if s == "" || q.err != nil {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		q.err = &queryError{Param: name, Err: errors.New("must be a boolean")}
	}
	return b
}

// time accepts RFC 3339 timestamps and plain dates. A plain date used as an
// upper bound covers the whole day.
func (q *query) time(name string, endOfDay bool) time.Time {
	s := q.str(name)
	if s == "" || q.err != nil {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		q.err = &queryError{Param: name, Err: errors.New("must be a date or an RFC 3339 timestamp")}
		return time.Time{}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}
