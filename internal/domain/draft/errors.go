package draft

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
)

// Validation failures. They are always wrapped in a *ValidationError.
var (
	ErrNoProduct          = errors.New("no product selected")
	ErrEmpty              = errors.New("at least one line required")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidPrice       = errors.New("invalid unit price")
	ErrNoClient           = errors.New("no client selected")
	ErrInvalidPaymentType = errors.New("invalid payment type")
)

var (
	// ErrLineNotFound is returned by Remove for an unknown line ID.
	ErrLineNotFound = errors.New("line not found")
	// ErrIndexOutOfRange is returned by RemoveAt for a position outside the
	// draft. Callers must derive indexes from the current snapshot.
	ErrIndexOutOfRange = errors.New("line index out of range")
	// ErrSubmitting is returned for any mutation or second submission while a
	// submission is in flight.
	ErrSubmitting = errors.New("submission in progress")
	// ErrUnconfirmed is wrapped by senders when the backend accepted the
	// order but its reply could not be read. The order may exist, so the
	// draft is cleared instead of being offered for a retry.
	ErrUnconfirmed = errors.New("order accepted but reply unreadable")
)

// ValidationError is a local input failure. The draft is unchanged and the
// backend was not contacted.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// SubmissionKind classifies why a submission failed.
type SubmissionKind int

const (
	KindNetwork SubmissionKind = iota
	KindTimeout
	KindCanceled
	KindRejected
	KindUnauthorized
	KindUnconfirmed
)

func (k SubmissionKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindRejected:
		return "rejected"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnconfirmed:
		return "unconfirmed"
	default:
		return "unknown"
	}
}

// Rejection is implemented by backend errors that carry an HTTP status and a
// human-readable detail message.
type Rejection interface {
	error
	StatusCode() int
	Detail() string
}

// SubmissionError is a failed submission. The draft keeps its lines, except
// for KindUnconfirmed where the order was probably created.
type SubmissionError struct {
	Kind   SubmissionKind
	Detail string
	Err    error
}

func (e *SubmissionError) Error() string {
	return "submit " + e.Kind.String() + ": " + e.Detail
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Unauthorized reports whether the backend refused the session's credentials.
func (e *SubmissionError) Unauthorized() bool { return e.Kind == KindUnauthorized }

// classify maps a Sender failure to a SubmissionError. ctxErr is the state
// of the submission context, which senders may not wrap.
func classify(err, ctxErr error) *SubmissionError {
	var rej Rejection
	switch {
	case errors.Is(err, ErrUnconfirmed):
		return &SubmissionError{
			Kind:   KindUnconfirmed,
			Detail: "order sent but the reply was unreadable; check recent sales before sending it again",
			Err:    err,
		}
	case errors.As(err, &rej):
		kind := KindRejected
		if rej.StatusCode() == http.StatusUnauthorized {
			kind = KindUnauthorized
		}
		return &SubmissionError{Kind: kind, Detail: rej.Detail(), Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctxErr, context.DeadlineExceeded):
		return &SubmissionError{Kind: KindTimeout, Detail: "backend did not respond in time", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(ctxErr, context.Canceled):
		return &SubmissionError{Kind: KindCanceled, Detail: "submission canceled", Err: err}
	default:
		return &SubmissionError{Kind: KindNetwork, Detail: "backend unreachable", Err: err}
	}
}
