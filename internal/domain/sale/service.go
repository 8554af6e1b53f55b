package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/client"
	"github.com/xenking/salesdesk/internal/domain/product"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	// numberAttempts bounds retries when a concurrent sale takes the number
	// computed for this one.
	numberAttempts = 3
)

// LineRequest is one requested line. A null UnitPrice uses the catalog price.
type LineRequest struct {
	ProductID       string
	Quantity        int
	UnitPrice       decimal.NullDecimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
}

// CreateRequest holds the input for creating a sale.
type CreateRequest struct {
	ClientID        string
	SellerID        string
	DocumentType    DocumentType
	PaymentType     PaymentType
	Discount        decimal.Decimal
	DeliveryAddress string
	Notes           string
	Lines           []LineRequest
}

// Service encapsulates sale business logic.
type Service struct {
	products product.Repository
	clients  client.Repository
	sales    Repository
	taxRate  decimal.Decimal
	now      func() time.Time
}

// NewService creates a sale Service with the required domain dependencies.
func NewService(
	products product.Repository,
	clients client.Repository,
	sales Repository,
) *Service {
	return &Service{
		products: products,
		clients:  clients,
		sales:    sales,
		taxRate:  DefaultTaxRate,
		now:      time.Now,
	}
}

// Create validates the request, prices it against the catalog, numbers it
// and persists it in draft status.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Sale, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	c, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, &ClientNotFoundError{ClientID: req.ClientID}
		}
		return nil, errors.Wrap(err, "get client")
	}

	lines, err := s.resolveLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	now := s.now()
	totals := Price(lines, req.Discount, s.taxRate)
	sl := &Sale{
		ID:              uuid.New().String(),
		ClientID:        c.ID,
		SellerID:        req.SellerID,
		Status:          StatusDraft,
		DocumentType:    req.DocumentType,
		PaymentType:     req.PaymentType,
		Subtotal:        totals.Subtotal,
		Discount:        req.Discount.Round(2),
		Tax:             totals.Tax,
		Total:           totals.Total,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		CreatedAt:       now,
		Lines:           lines,
	}
	if req.PaymentType == PaymentCredit && c.CreditDays > 0 {
		due := now.AddDate(0, 0, c.CreditDays)
		sl.PaymentDue = &due
	}

	prefix := NumberPrefix(now)
	for attempt := 1; ; attempt++ {
		last, err := s.sales.LastNumber(ctx, prefix)
		if err != nil {
			return nil, errors.Wrap(err, "last sale number")
		}
		if sl.Number, err = NextNumber(prefix, last); err != nil {
			return nil, err
		}

		err = s.sales.Create(ctx, sl)
		if err == nil {
			return sl, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) || attempt == numberAttempts {
			return nil, errors.Wrap(err, "create sale")
		}
	}
}

func validateRequest(req *CreateRequest) error {
	if req.ClientID == "" {
		return ErrNoClient
	}
	if len(req.Lines) == 0 {
		return ErrEmptyLines
	}
	if req.PaymentType == "" {
		req.PaymentType = PaymentCash
	}
	if !req.PaymentType.Valid() {
		return ErrInvalidPaymentType
	}
	if req.DocumentType == "" {
		req.DocumentType = DocumentInvoice
	}
	if !req.DocumentType.Valid() {
		return ErrInvalidDocument
	}
	if req.Discount.IsNegative() {
		return ErrInvalidDiscount
	}

	for _, l := range req.Lines {
		switch {
		case l.Quantity <= 0:
			return &InvalidLineError{ProductID: l.ProductID, Reason: "quantity must be greater than 0"}
		case l.UnitPrice.Valid && l.UnitPrice.Decimal.IsNegative():
			return &InvalidLineError{ProductID: l.ProductID, Reason: "unit price must not be negative"}
		case l.UnitPrice.Valid && !l.UnitPrice.Decimal.Round(2).Equal(l.UnitPrice.Decimal):
			return &InvalidLineError{ProductID: l.ProductID, Reason: "unit price must be in whole cents"}
		case l.DiscountPercent.IsNegative() || l.DiscountPercent.GreaterThan(hundred):
			return &InvalidLineError{ProductID: l.ProductID, Reason: "discount percent must be between 0 and 100"}
		case l.DiscountAmount.IsNegative():
			return &InvalidLineError{ProductID: l.ProductID, Reason: "discount amount must not be negative"}
		}
	}
	return nil
}

// resolveLines fetches all referenced products in a single batch and fills in
// catalog prices where none was given.
func (s *Service) resolveLines(ctx context.Context, reqs []LineRequest) ([]Line, error) {
	ids := make([]string, len(reqs))
	for i, l := range reqs {
		ids[i] = l.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]Line, len(reqs))
	for i, l := range reqs {
		p, ok := byID[l.ProductID]
		if !ok || !p.Active {
			return nil, &ProductNotFoundError{ProductID: l.ProductID}
		}
		price := p.Price
		if l.UnitPrice.Valid {
			price = l.UnitPrice.Decimal
		}
		lines[i] = Line{
			ProductID:       p.ID,
			Quantity:        l.Quantity,
			UnitPrice:       price,
			DiscountPercent: l.DiscountPercent,
			DiscountAmount:  l.DiscountAmount,
		}
	}
	return lines, nil
}

// Get returns a sale by ID.
func (s *Service) Get(ctx context.Context, id string) (*Sale, error) {
	return s.sales.Get(ctx, id)
}

// GetByNumber returns a sale by its document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Sale, error) {
	return s.sales.GetByNumber(ctx, number)
}

// List returns a page of sales matching f. The page size defaults to 100 and
// is capped at 1000.
func (s *Service) List(ctx context.Context, f Filter) ([]Sale, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, errors.Errorf("unknown status %q", f.Status)
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.sales.List(ctx, f)
}

// Cancel moves a draft or confirmed sale to cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (*Sale, error) {
	sl, err := s.sales.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sl.Status.Cancellable() {
		return nil, &StatusError{Op: "cancelled", Status: sl.Status}
	}
	if err := s.sales.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	sl.Status = StatusCancelled
	return sl, nil
}

// Confirm moves a draft sale to confirmed.
func (s *Service) Confirm(ctx context.Context, id string) (*Sale, error) {
	return s.advance(ctx, id, "confirmed", StatusConfirmed)
}

// Prepare starts picking a confirmed sale.
func (s *Service) Prepare(ctx context.Context, id string) (*Sale, error) {
	return s.advance(ctx, id, "prepared", StatusPreparing)
}

// MarkReady marks a sale in preparation as ready to ship.
func (s *Service) MarkReady(ctx context.Context, id string) (*Sale, error) {
	return s.advance(ctx, id, "marked ready", StatusReadyToShip)
}

// Dispatch hands a ready sale over for delivery.
func (s *Service) Dispatch(ctx context.Context, id string) (*Sale, error) {
	return s.advance(ctx, id, "dispatched", StatusInTransit)
}

// Deliver closes a sale in transit.
func (s *Service) Deliver(ctx context.Context, id string) (*Sale, error) {
	return s.advance(ctx, id, "delivered", StatusDelivered)
}

// advance moves the sale to target, which must directly follow its current
// status.
func (s *Service) advance(ctx context.Context, id, op string, target Status) (*Sale, error) {
	sl, err := s.sales.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n, ok := sl.Status.Next(); !ok || n != target {
		return nil, &StatusError{Op: op, Status: sl.Status}
	}
	if err := s.sales.UpdateStatus(ctx, id, target); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	sl.Status = target
	return sl, nil
}

// Summarize aggregates the sales created in [from, to], excluding cancelled
// ones.
func (s *Service) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	sales, _, err := s.sales.List(ctx, Filter{From: from, To: to})
	if err != nil {
		return Summary{}, errors.Wrap(err, "list sales")
	}

	sum := Summary{
		TotalSales:    zero,
		AverageTicket: zero,
		ByStatus:      make(map[Status]int),
	}
	for _, sl := range sales {
		if sl.Status == StatusCancelled {
			continue
		}
		sum.TotalSales = sum.TotalSales.Add(sl.Total)
		sum.Count++
		sum.ByStatus[sl.Status]++
	}
	if sum.Count > 0 {
		sum.AverageTicket = sum.TotalSales.Div(decimal.NewFromInt(int64(sum.Count))).Round(2)
	}
	return sum, nil
}
