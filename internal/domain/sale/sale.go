// Package sale holds the authoritative sales order domain: pricing, numbering
// and status handling of orders submitted by operators.
package sale

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType is how a sale is paid.
type PaymentType string

const (
	PaymentCash     PaymentType = "contado"
	PaymentCredit   PaymentType = "credito"
	PaymentTransfer PaymentType = "transferencia"
	PaymentCheque   PaymentType = "cheque"
)

// Valid reports whether p is a known payment type.
func (p PaymentType) Valid() bool {
	switch p {
	case PaymentCash, PaymentCredit, PaymentTransfer, PaymentCheque:
		return true
	}
	return false
}

// DocumentType is the fiscal document issued for a sale.
type DocumentType string

const (
	DocumentInvoice  DocumentType = "factura"
	DocumentReceipt  DocumentType = "boleta"
	DocumentSaleNote DocumentType = "nota_venta"
)

// Valid reports whether d is a known document type.
func (d DocumentType) Valid() bool {
	switch d {
	case DocumentInvoice, DocumentReceipt, DocumentSaleNote:
		return true
	}
	return false
}

// Status is the fulfilment stage of a sale.
type Status string

const (
	StatusDraft       Status = "borrador"
	StatusConfirmed   Status = "confirmado"
	StatusPreparing   Status = "en_preparacion"
	StatusReadyToShip Status = "listo_envio"
	StatusInTransit   Status = "en_ruta"
	StatusDelivered   Status = "entregado"
	StatusCancelled   Status = "cancelado"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusConfirmed, StatusPreparing, StatusReadyToShip,
		StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether a sale in status s may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusDraft || s == StatusConfirmed
}

// next maps each fulfilment status to the one that follows it. Cancelled
// and delivered sales are final.
var next = map[Status]Status{
	StatusDraft:       StatusConfirmed,
	StatusConfirmed:   StatusPreparing,
	StatusPreparing:   StatusReadyToShip,
	StatusReadyToShip: StatusInTransit,
	StatusInTransit:   StatusDelivered,
}

// Next returns the status that follows s in fulfilment order.
func (s Status) Next() (Status, bool) {
	n, ok := next[s]
	return n, ok
}

// Line is one product entry of a persisted sale.
type Line struct {
	ProductID       string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Subtotal        decimal.Decimal
}

// Sale is a persisted sales order.
type Sale struct {
	ID              string
	Number          string
	ClientID        string
	SellerID        string
	Status          Status
	DocumentType    DocumentType
	PaymentType     PaymentType
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	PaymentDue      *time.Time
	DeliveryAddress string
	Notes           string
	CreatedAt       time.Time
	Lines           []Line
}

// Filter narrows sale listings. Zero values disable the corresponding
// condition; a zero Limit returns every match.
type Filter struct {
	ClientID string
	SellerID string
	Status   Status
	From     time.Time
	To       time.Time
	Offset   int
	Limit    int
}

// Summary aggregates non-cancelled sales over a period.
type Summary struct {
	TotalSales    decimal.Decimal
	Count         int
	AverageTicket decimal.Decimal
	ByStatus      map[Status]int
}

// Repository defines persistence operations for sales.
type Repository interface {
	// Create stores s with its lines. It returns ErrDuplicateNumber when
	// s.Number is already taken.
	Create(ctx context.Context, s *Sale) error
	Get(ctx context.Context, id string) (*Sale, error)
	GetByNumber(ctx context.Context, number string) (*Sale, error)
	// List returns the matching page and the total number of matches.
	List(ctx context.Context, f Filter) ([]Sale, int, error)
	// LastNumber returns the greatest number with the given prefix, or ""
	// when there is none.
	LastNumber(ctx context.Context, prefix string) (string, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}
