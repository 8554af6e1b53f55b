package draft

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/sale"
)

// SubmitRequest holds the order header chosen by the operator.
type SubmitRequest struct {
	ClientID string
	// PaymentType defaults to cash when empty.
	PaymentType sale.PaymentType
}

// SubmissionLine is the wire shape of one line. Display names and derived
// totals are not sent; the backend prices the order itself.
type SubmissionLine struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Submission is what a Sender transmits to the backend.
type Submission struct {
	ClientID    string
	PaymentType sale.PaymentType
	Lines       []SubmissionLine
}

// Receipt identifies the order created by the backend.
type Receipt struct {
	OrderID string
	Number  string
	Total   decimal.Decimal
}

// Sender delivers a submission to the backend.
type Sender interface {
	CreateSale(ctx context.Context, s Submission) (Receipt, error)
}

// Submit sends the draft through s. Only one submission may be in flight;
// meanwhile every mutation fails with ErrSubmitting.
//
// On success the draft is reset. On failure the lines are kept as they were
// and a *SubmissionError is returned; a KindUnconfirmed failure resets the
// draft too since the order may already exist. Validation failures never
// reach s. If s panics the draft is released before the panic propagates.
func (d *Draft) Submit(ctx context.Context, s Sender, req SubmitRequest) (Receipt, error) {
	if req.PaymentType == "" {
		req.PaymentType = sale.PaymentCash
	}

	d.mu.Lock()
	if d.submitting {
		d.mu.Unlock()
		return Receipt{}, ErrSubmitting
	}
	var verr error
	switch {
	case len(d.lines) == 0:
		verr = ErrEmpty
	case req.ClientID == "":
		verr = ErrNoClient
	case !req.PaymentType.Valid():
		verr = ErrInvalidPaymentType
	}
	if verr != nil {
		d.mu.Unlock()
		return Receipt{}, &ValidationError{Err: verr}
	}

	sub := Submission{
		ClientID:    req.ClientID,
		PaymentType: req.PaymentType,
		Lines:       make([]SubmissionLine, len(d.lines)),
	}
	for i, l := range d.lines {
		sub.Lines[i] = SubmissionLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	d.submitting = true
	d.publish()

	returned := false
	defer func() {
		if returned {
			return
		}
		d.mu.Lock()
		d.submitting = false
		d.publish()
	}()

	ctx, cancel := context.WithTimeout(ctx, d.submitTimeout)
	defer cancel()
	receipt, err := s.CreateSale(ctx, sub)
	returned = true

	d.mu.Lock()
	d.submitting = false
	if err != nil {
		subErr := classify(err, ctx.Err())
		if subErr.Kind == KindUnconfirmed {
			d.lines = nil
		}
		d.publish()
		return Receipt{}, subErr
	}
	d.lines = nil
	d.publish()
	return receipt, nil
}
